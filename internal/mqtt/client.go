// Package mqtt wraps paho.mqtt.golang with the supervisor's connection
// management, subscription restoration, and panic-recovering message
// dispatch. Topics are not hardcoded: the client takes a pre-compiled
// *topics.Schema (internal/topics) so the LWT and heartbeat topics
// follow the declarative schema instead.
package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/openbms-io/supervisor/internal/config"
	"github.com/openbms-io/supervisor/internal/topics"
)

// Client wraps paho.mqtt.golang with the supervisor's connection
// management, publishing, and subscription handling.
//
// Thread Safety: all methods are safe for concurrent use. Subscriptions
// are automatically restored on reconnection.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig
	schema  *topics.Schema

	subscriptions map[string]subscription
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex

	reconnectAttempts atomic.Int32
}

// Logger is the optional logging interface, compatible with
// internal/logging and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription holds subscription details for re-subscription on
// reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
// Handlers are invoked in a separate goroutine per message and should
// not block for extended periods; their error return is logged, not
// acted on.
type MessageHandler func(topic string, payload []byte) error

// Connect establishes a connection to the MQTT broker using the given
// compiled topic schema for LWT construction.
func Connect(cfg config.MQTTConfig, schema *topics.Schema) (*Client, error) {
	opts, err := buildClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	configureLWT(opts, schema, cfg.Broker.ClientID)

	c := &Client{
		cfg:           cfg,
		schema:        schema,
		options:       opts,
		subscriptions: make(map[string]subscription),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	opts.SetReconnectingHandler(func(client pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.handleReconnecting(client)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnectHandler runs asynchronously and may not have executed
	// yet; set connected here so IsConnected() is accurate immediately
	// after a successful Connect call.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return c, nil
}

func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()
	c.reconnectAttempts.Store(0)

	c.restoreSubscriptions()

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// handleReconnecting enforces reconnect.max_attempts (0 = unlimited)
// so a permanently-unreachable broker doesn't retry forever in the
// background.
func (c *Client) handleReconnecting(client pahomqtt.Client) {
	if c.cfg.Reconnect.MaxAttempts <= 0 {
		return
	}
	attempts := c.reconnectAttempts.Add(1)
	if attempts > int32(c.cfg.Reconnect.MaxAttempts) {
		if logger := c.getLogger(); logger != nil {
			logger.Error("mqtt: exceeded max reconnect attempts, giving up", "attempts", attempts)
		}
		client.Disconnect(defaultDisconnectQuiesce)
	}
}

// restoreSubscriptions re-subscribes to all tracked topics after
// reconnect, ignoring errors (the broker is freshly reconnected; a
// failure here will surface on the next publish/subscribe call).
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// Close gracefully disconnects, publishing a graceful offline status to
// the heartbeat topic first so it's distinguishable from an LWT-driven
// crash offline status by its "reason" field.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		topic := c.schema.Status.Heartbeat.Topic
		payload := buildOfflinePayload(c.cfg.Broker.ClientID)
		token := c.client.Publish(topic, c.schema.Status.Heartbeat.QoS, c.schema.Status.Heartbeat.Retain, payload)
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// HealthCheck reports whether the connection is currently alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last-known connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect registers a callback invoked on initial connect and on
// every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect registers a callback invoked when the connection is
// lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets the logger used for handler panics and warnings. If
// unset, such events are silently dropped.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler adds panic recovery and error logging around a
// MessageHandler before handing it to paho.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("mqtt handler panic recovered", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("mqtt handler returned error", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
