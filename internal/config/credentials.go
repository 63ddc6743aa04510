package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Credentials is the {client_id, secret_key} pair loaded from the
// credentials file. Loaded once at startup and never reloaded in the
// hot path, the same ambient-configuration-object treatment applied
// to the rest of the config package.
type Credentials struct {
	ClientID  string `json:"client_id"`
	SecretKey string `json:"secret_key"`
}

// LoadCredentials reads and parses the credentials file at path.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials file: %w", err)
	}
	if creds.ClientID == "" || creds.SecretKey == "" {
		return nil, fmt.Errorf("credentials file %s: client_id and secret_key are both required", path)
	}
	return &creds, nil
}
