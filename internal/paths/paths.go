// Package paths resolves the supervisor's on-disk locations (SQLite file,
// config file, credentials file) relative to a base data directory.
package paths

import "path/filepath"

// DefaultDataDir is used when no override is supplied via the
// SUPERVISOR_DATA_DIR environment variable (read in cmd/supervisor).
const DefaultDataDir = "/var/lib/supervisor"

// Paths resolves well-known file locations under a base data directory.
type Paths struct {
	DataDir string
}

// New constructs a Paths rooted at dataDir. An empty dataDir falls back
// to DefaultDataDir.
func New(dataDir string) Paths {
	if dataDir == "" {
		dataDir = DefaultDataDir
	}
	return Paths{DataDir: dataDir}
}

// ConfigFile is the YAML configuration file path.
func (p Paths) ConfigFile() string { return filepath.Join(p.DataDir, "config.yaml") }

// CredentialsFile is the {client_id, secret_key} JSON file path.
func (p Paths) CredentialsFile() string { return filepath.Join(p.DataDir, "credentials.json") }

// DatabaseFile is the SQLite database file path.
func (p Paths) DatabaseFile() string { return filepath.Join(p.DataDir, "supervisor.db") }
