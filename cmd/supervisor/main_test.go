package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRunFailsOnInvalidConfigPath(t *testing.T) {
	originalEnv := os.Getenv("SUPERVISOR_CONFIG")
	defer os.Setenv("SUPERVISOR_CONFIG", originalEnv)
	os.Setenv("SUPERVISOR_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with a nonexistent config path")
	}
}

func TestRunFailsOnMissingDeviceIdentity(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := `
device:
  organization_id: ""
  site_id: ""
  iot_device_id: ""
database:
  path: "` + filepath.Join(tmpDir, "test.db") + `"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	originalEnv := os.Getenv("SUPERVISOR_CONFIG")
	defer os.Setenv("SUPERVISOR_CONFIG", originalEnv)
	os.Setenv("SUPERVISOR_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail validation with empty device identity")
	}
}

func TestRunFailsWhenMQTTBrokerUnreachable(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := `
device:
  organization_id: "org-1"
  site_id: "site-1"
  iot_device_id: "device-1"
database:
  path: "` + filepath.Join(tmpDir, "test.db") + `"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "supervisor-test"
  qos: 1
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	originalEnv := os.Getenv("SUPERVISOR_CONFIG")
	defer os.Setenv("SUPERVISOR_CONFIG", originalEnv)
	os.Setenv("SUPERVISOR_CONFIG", configPath)

	// MQTT connect has its own internal ~10s timeout; give it headroom.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail when the configured MQTT broker is unreachable")
	}
}

func TestGetConfigPathDefaultsWhenUnset(t *testing.T) {
	originalEnv := os.Getenv("SUPERVISOR_CONFIG")
	defer os.Setenv("SUPERVISOR_CONFIG", originalEnv)
	os.Unsetenv("SUPERVISOR_CONFIG")

	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
}

func TestGetConfigPathHonorsEnvOverride(t *testing.T) {
	originalEnv := os.Getenv("SUPERVISOR_CONFIG")
	defer os.Setenv("SUPERVISOR_CONFIG", originalEnv)

	want := "/custom/path/config.yaml"
	os.Setenv("SUPERVISOR_CONFIG", want)

	if got := getConfigPath(); got != want {
		t.Errorf("getConfigPath() = %q, want %q", got, want)
	}
}
