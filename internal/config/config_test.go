package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
device:
  organization_id: "org-1"
  site_id: "site-1"
  iot_device_id: "device-1"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 30
mqtt:
  broker:
    host: "broker.example.com"
    port: 1883
    client_id: "device-1"
  qos: 1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Device.IoTDeviceID != "device-1" {
		t.Errorf("IoTDeviceID = %q", cfg.Device.IoTDeviceID)
	}
	if cfg.MQTT.Broker.Host != "broker.example.com" {
		t.Errorf("MQTT.Broker.Host = %q", cfg.MQTT.Broker.Host)
	}
	if cfg.Database.BusyTimeout != 30 {
		t.Errorf("Database.BusyTimeout = %d, want 30", cfg.Database.BusyTimeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadRejectsMissingDeviceIdentifiers(t *testing.T) {
	path := writeConfig(t, `
device:
  organization_id: "org-1"
mqtt:
  broker:
    host: "broker.example.com"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for missing site_id/iot_device_id")
	}
}

func TestLoadRejectsTLSEnabledWithoutCAFile(t *testing.T) {
	path := writeConfig(t, `
device:
  organization_id: "org-1"
  site_id: "site-1"
  iot_device_id: "device-1"
mqtt:
  broker:
    host: "broker.example.com"
  tls:
    enabled: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for TLS enabled without ca_file")
	}
}

func TestLoadRejectsDuplicateReaderEndpoints(t *testing.T) {
	path := writeConfig(t, `
device:
  organization_id: "org-1"
  site_id: "site-1"
  iot_device_id: "device-1"
bacnet:
  readers:
    - id: "r1"
      bind_ip: "10.0.0.1"
      port: 47808
      is_active: true
    - id: "r2"
      bind_ip: "10.0.0.1"
      port: 47808
      is_active: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for duplicate reader endpoint")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `
device:
  organization_id: "org-1"
  site_id: "site-1"
  iot_device_id: "device-1"
mqtt:
  broker:
    host: "broker.example.com"
`)
	t.Setenv("SUPERVISOR_MQTT_HOST", "override.example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MQTT.Broker.Host != "override.example.com" {
		t.Errorf("expected env override to win, got %q", cfg.MQTT.Broker.Host)
	}
}

func TestLoadCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")
	if err := os.WriteFile(path, []byte(`{"client_id":"c1","secret_key":"s1"}`), 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}
	creds, err := LoadCredentials(path)
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if creds.ClientID != "c1" || creds.SecretKey != "s1" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
}

func TestLoadCredentialsRejectsIncomplete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")
	if err := os.WriteFile(path, []byte(`{"client_id":"c1"}`), 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}
	if _, err := LoadCredentials(path); err == nil {
		t.Fatal("expected error for missing secret_key")
	}
}
