package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/openbms-io/supervisor/internal/config"
	"github.com/openbms-io/supervisor/internal/topics"
)

// Connection constants.
const (
	defaultConnectTimeout   = 10 * time.Second
	defaultPublishTimeout   = 5 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
	defaultKeepAlive        = 60 * time.Second
	maxQoS                  = 2
	tlsMinVersion           = tls.VersionTLS12
)

// buildClientOptions creates paho MQTT options from the supervisor's
// config, failing closed if TLS is enabled but the CA file is missing
// or unreadable.
func buildClientOptions(cfg config.MQTTConfig) (*pahomqtt.ClientOptions, error) {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.TLS.Enabled {
		scheme = "ssl"
	}
	brokerURL := fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
	opts.AddBroker(brokerURL)
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelaySeconds) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelaySeconds) * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.TLS.Enabled {
		tlsConfig, err := buildTLSConfig(cfg.TLS)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	return opts, nil
}

// buildTLSConfig loads the configured CA file and fails closed if it is
// missing, unreadable, or not a valid PEM certificate.
func buildTLSConfig(cfg config.MQTTTLSConfig) (*tls.Config, error) {
	if cfg.CAFile == "" {
		return nil, fmt.Errorf("mqtt: tls.enabled is true but tls.ca_file is empty")
	}
	pemBytes, err := os.ReadFile(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("mqtt: reading tls.ca_file %q: %w", cfg.CAFile, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemBytes) {
		return nil, fmt.Errorf("mqtt: tls.ca_file %q contains no usable certificates", cfg.CAFile)
	}
	return &tls.Config{
		MinVersion: tlsMinVersion,
		RootCAs:    pool,
	}, nil
}

// configureLWT sets up the Last Will and Testament on the device's
// heartbeat topic: an unexpected disconnect must be observable the
// same way a graceful stop is, via the retained heartbeat topic going
// to an offline status.
func configureLWT(opts *pahomqtt.ClientOptions, schema *topics.Schema, clientID string) {
	willTopic := schema.Status.Heartbeat.Topic
	willPayload := fmt.Sprintf(
		`{"status":"offline","client_id":"%s","reason":"unexpected_disconnect"}`,
		clientID,
	)
	opts.SetWill(willTopic, willPayload, schema.Status.Heartbeat.QoS, schema.Status.Heartbeat.Retain)
}

// buildOfflinePayload creates the JSON payload for a graceful, planned
// disconnect, distinct from the LWT's crash payload.
func buildOfflinePayload(clientID string) string {
	return fmt.Sprintf(`{"status":"offline","client_id":"%s","reason":"graceful_shutdown"}`, clientID)
}
