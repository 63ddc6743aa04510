// Package config loads the supervisor's YAML configuration file:
// default-then-file-then-env layering, a SUPERVISOR_-prefixed env
// override convention, and a Validate step that refuses to boot into
// a degraded state silently.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the supervisor's root configuration structure.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	BACnet   BACnetConfig   `yaml:"bacnet"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	TSDB     TSDBConfig     `yaml:"tsdb"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Uploader UploaderConfig `yaml:"uploader"`
	Logging  LoggingConfig  `yaml:"logging"`
	Diag     DiagConfig     `yaml:"diag"`
}

// DeviceConfig identifies this agent instance,
// (organization_id, site_id, iot_device_id) triple.
type DeviceConfig struct {
	OrganizationID string `yaml:"organization_id"`
	SiteID         string `yaml:"site_id"`
	IoTDeviceID    string `yaml:"iot_device_id"`
}

// DatabaseConfig configures the embedded SQLite point store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig configures the MQTT transport.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	TLS       MQTTTLSConfig       `yaml:"tls"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTTLSConfig configures TLS; the design requires failing closed if
// TLS is enabled but the CA file is missing.
type MQTTTLSConfig struct {
	Enabled bool   `yaml:"enabled"`
	CAFile  string `yaml:"ca_file"`
}

type MQTTReconnectConfig struct {
	InitialDelaySeconds int `yaml:"initial_delay_seconds"`
	MaxDelaySeconds     int `yaml:"max_delay_seconds"`
	MaxAttempts         int `yaml:"max_attempts"` // 0 = unlimited
}

// BACnetConfig configures the reader pool. cmd/supervisor initializes
// the pool from Readers at startup; the persisted bacnet_config
// snapshot does not populate it.
type BACnetConfig struct {
	Strategy string         `yaml:"strategy"` // round_robin | least_busy | first_available
	Readers  []ReaderConfig `yaml:"readers"`
}

// ReaderConfig mirrors bacnet.ReaderConfig's YAML-facing shape.
type ReaderConfig struct {
	ID                 string `yaml:"id"`
	BindIP             string `yaml:"bind_ip"`
	SubnetPrefixLength int    `yaml:"subnet_prefix_length"`
	DeviceInstance     uint32 `yaml:"device_instance"`
	Port               int    `yaml:"port"`
	BBMDAddress        string `yaml:"bbmd_address,omitempty"`
	IsActive           bool   `yaml:"is_active"`
}

// MonitorConfig configures the Monitor actor's per-cycle polling loop
//.
type MonitorConfig struct {
	CycleIntervalSeconds int `yaml:"cycle_interval_seconds"`
}

// TSDBConfig configures the VictoriaMetrics-style line-protocol sink
//.
type TSDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // seconds
}

// InfluxDBConfig configures the official InfluxDB client sink
//.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// UploaderConfig configures the upload pipeline (the design,
// this design).
type UploaderConfig struct {
	BatchSize                   int `yaml:"batch_size"`
	SerializedSizeThresholdBytes int `yaml:"serialized_size_threshold_bytes"`
	PollIntervalSeconds          int `yaml:"poll_interval_seconds"`
	CleanupIntervalSeconds       int `yaml:"cleanup_interval_seconds"`
}

// LoggingConfig configures the slog-based logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DiagConfig configures the loopback-only diagnostics HTTP surface.
type DiagConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Load reads the YAML file at path, applies defaults first and
// environment-variable overrides last, then validates. Layering order:
// defaults -> file -> env.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "/var/lib/supervisor/supervisor.db",
			WALMode:     true,
			BusyTimeout: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "supervisor"},
			QoS:    1,
			Reconnect: MQTTReconnectConfig{
				InitialDelaySeconds: 1,
				MaxDelaySeconds:     60,
			},
		},
		BACnet:  BACnetConfig{Strategy: "round_robin"},
		Monitor: MonitorConfig{CycleIntervalSeconds: 60},
		Uploader: UploaderConfig{
			BatchSize:                    500,
			SerializedSizeThresholdBytes: 10 * 1024,
			PollIntervalSeconds:          30,
			CleanupIntervalSeconds:       300,
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Diag:    DiagConfig{Enabled: true, Addr: "127.0.0.1:9090"},
	}
}

// applyEnvOverrides applies SUPERVISOR_SECTION_KEY-style overrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SUPERVISOR_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SUPERVISOR_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SUPERVISOR_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SUPERVISOR_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("SUPERVISOR_DEVICE_ID"); v != "" {
		cfg.Device.IoTDeviceID = v
	}
	if v := os.Getenv("SUPERVISOR_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("SUPERVISOR_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate refuses to boot into a degraded state silently (the design
// "Configuration" error kind): missing required identifiers or
// duplicate reader endpoints are startup-fatal.
func (c *Config) Validate() error {
	if c.Device.OrganizationID == "" || c.Device.SiteID == "" || c.Device.IoTDeviceID == "" {
		return fmt.Errorf("config: device.organization_id, site_id, and iot_device_id are all required")
	}
	if c.MQTT.TLS.Enabled && c.MQTT.TLS.CAFile == "" {
		return fmt.Errorf("config: mqtt.tls.enabled is true but ca_file is empty")
	}

	seen := make(map[string]string)
	for _, r := range c.BACnet.Readers {
		if !r.IsActive {
			continue
		}
		key := fmt.Sprintf("%s:%d", r.BindIP, r.Port)
		if existing, dup := seen[key]; dup {
			return fmt.Errorf("config: duplicate reader endpoint %s (readers %s and %s)", key, existing, r.ID)
		}
		seen[key] = r.ID
	}
	return nil
}
