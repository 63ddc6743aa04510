// Package dispatcher implements the MQTT command dispatcher:
// topic-based routing of the six supported commands
// (get_config, config_upload, reboot, set_value_to_point,
// start_monitoring, stop_monitoring) into typed ActorMessages, plus the
// matching response/heartbeat/bulk-point publish helpers, using typed
// errors and small interfaces throughout instead of dynamic dispatch.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openbms-io/supervisor/internal/model"
	"github.com/openbms-io/supervisor/internal/topics"
)

// Publisher is the bounded capability the dispatcher needs to emit
// responses, heartbeats, and bulk payloads: a narrow
// publish(topic, payload, qos, retain) handle rather than a reference to
// the full MQTT client, so the dispatcher never holds (and is never
// held by) the transport object.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Sender is the narrow slice of *actor.Registry the dispatcher needs:
// enqueue a message without importing the full actor package surface.
type Sender interface {
	SendFrom(sender, receiver model.ActorName, msgType model.MessageType, payload model.CommandPayload) error
}

// Logger is the dispatcher's small logging dependency.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Dispatcher routes incoming command-request frames to actor inboxes
// and exposes the matching publish helpers.
type Dispatcher struct {
	pub    Publisher
	sender Sender
	schema *topics.Schema
	logger Logger

	routes map[string]route
}

type route struct {
	msgType  model.MessageType
	receiver model.ActorName
	parse    func([]byte) (model.CommandPayload, error)
}

// New builds a Dispatcher wired to the given compiled topic schema.
// Routing targets follow the component table in the design: Monitor
// owns start/stop monitoring (internal/monitor, actor BACNET), the
// writer owns set_value_to_point (actor BACNET_WRITER), and
// get_config/config_upload/reboot — which report on or act on the
// process itself (or the configuration it persists) rather than any
// single domain actor — are routed to SYSTEM_METRICS, the one
// registered actor name this design's actor enum otherwise leaves
// unclaimed by a component in this table.
func New(pub Publisher, sender Sender, schema *topics.Schema, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	d := &Dispatcher{pub: pub, sender: sender, schema: schema, logger: logger}

	d.routes = map[string]route{
		schema.Command.GetConfig.Request.Topic: {
			msgType:  model.MessageGetConfigRequest,
			receiver: model.ActorSystemMetrics,
			parse:    parseGetConfigRequest,
		},
		schema.Command.ConfigUpload.Request.Topic: {
			msgType:  model.MessageConfigUpload,
			receiver: model.ActorSystemMetrics,
			parse:    parseConfigUpload,
		},
		schema.Command.Reboot.Request.Topic: {
			msgType:  model.MessageDeviceReboot,
			receiver: model.ActorSystemMetrics,
			parse:    parseDeviceReboot,
		},
		schema.Command.SetValueToPoint.Request.Topic: {
			msgType:  model.MessageSetValueToPointRequest,
			receiver: model.ActorBACnetWriter,
			parse:    parseSetValueToPointRequest,
		},
		schema.Command.StartMonitoring.Request.Topic: {
			msgType:  model.MessageStartMonitoringRequest,
			receiver: model.ActorBACnet,
			parse:    parseStartMonitoringRequest,
		},
		schema.Command.StopMonitoring.Request.Topic: {
			msgType:  model.MessageStopMonitoringRequest,
			receiver: model.ActorBACnet,
			parse:    parseStopMonitoringRequest,
		},
	}

	return d
}

// RequestTopics returns the six request topics this dispatcher handles,
// each at QoS 1, for the caller (composition root) to
// subscribe to.
func (d *Dispatcher) RequestTopics() []string {
	out := make([]string, 0, len(d.routes))
	for t := range d.routes {
		out = append(out, t)
	}
	return out
}

// Dispatch routes one received (topic, payload) frame. Unknown topics
// are logged, not errored. A malformed JSON body never crashes the
// dispatcher — the error is logged and the frame is dropped rather than
// answered, since a parse failure means there is no commandId to echo a
// success=false response against; the one-response-per-command contract
// applies to commands that parsed, not to frames that never became one.
func (d *Dispatcher) Dispatch(_ context.Context, topic string, payload []byte) error {
	r, ok := d.routes[topic]
	if !ok {
		d.logger.Warn("dispatcher: no handler for topic", "topic", topic)
		return nil
	}

	cmdPayload, err := r.parse(payload)
	if err != nil {
		d.logger.Error("dispatcher: malformed command payload", "topic", topic, "error", err)
		return nil
	}

	if err := d.sender.SendFrom(model.ActorMQTT, r.receiver, r.msgType, cmdPayload); err != nil {
		d.logger.Error("dispatcher: failed to enqueue command", "topic", topic, "error", err)
	}
	return nil
}

// commandEnvelope is the minimal shape every request shares: an id to
// echo back. Routing here is by topic rather than by field, so no
// command-type field is read from the body.
type commandEnvelope struct {
	CommandID string `json:"commandId"`
}

func parseGetConfigRequest(payload []byte) (model.CommandPayload, error) {
	var env commandEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("parsing get_config request: %w", err)
	}
	return model.GetConfigRequestPayload{CommandID: env.CommandID}, nil
}

func parseConfigUpload(payload []byte) (model.CommandPayload, error) {
	var wire struct {
		CommandID string         `json:"commandId"`
		Config    map[string]any `json:"config"`
	}
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("parsing config_upload request: %w", err)
	}
	return model.ConfigUploadPayload{CommandID: wire.CommandID, Config: wire.Config}, nil
}

func parseDeviceReboot(payload []byte) (model.CommandPayload, error) {
	var env commandEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("parsing reboot request: %w", err)
	}
	return model.DeviceRebootPayload{CommandID: env.CommandID}, nil
}

func parseSetValueToPointRequest(payload []byte) (model.CommandPayload, error) {
	var wire struct {
		CommandID       string  `json:"commandId"`
		ControllerID    string  `json:"controllerId"`
		PointInstanceID string  `json:"pointInstanceId"`
		PresentValue    float64 `json:"presentValue"`
		Priority        int     `json:"priority"`
	}
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("parsing set_value_to_point request: %w", err)
	}
	return model.SetValueToPointRequestPayload{
		CommandID:       wire.CommandID,
		ControllerID:    wire.ControllerID,
		PointInstanceID: wire.PointInstanceID,
		Value:           wire.PresentValue,
		Priority:        wire.Priority,
	}, nil
}

func parseStartMonitoringRequest(payload []byte) (model.CommandPayload, error) {
	var env commandEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("parsing start_monitoring request: %w", err)
	}
	return model.StartMonitoringRequestPayload{CommandID: env.CommandID}, nil
}

func parseStopMonitoringRequest(payload []byte) (model.CommandPayload, error) {
	var env commandEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("parsing stop_monitoring request: %w", err)
	}
	return model.StopMonitoringRequestPayload{CommandID: env.CommandID}, nil
}
