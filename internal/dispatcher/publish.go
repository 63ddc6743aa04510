package dispatcher

import (
	"encoding/json"
	"fmt"

	"github.com/openbms-io/supervisor/internal/model"
	"github.com/openbms-io/supervisor/internal/topics"
)

// PublishResponse publishes a typed response payload to the response
// topic matching msgType.
func (d *Dispatcher) PublishResponse(msgType model.MessageType, payload model.CommandPayload) error {
	topicCfg, err := d.responseTopicFor(msgType)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("dispatcher: marshaling response for %s: %w", msgType, err)
	}
	return d.pub.Publish(topicCfg.Topic, body, topicCfg.QoS, topicCfg.Retain)
}

func (d *Dispatcher) responseTopicFor(msgType model.MessageType) (topics.TopicConfig, error) {
	switch msgType {
	case model.MessageGetConfigResponse:
		return d.schema.Command.GetConfig.Response, nil
	case model.MessageConfigUpload:
		return d.schema.Command.ConfigUpload.Response, nil
	case model.MessageDeviceReboot:
		return d.schema.Command.Reboot.Response, nil
	case model.MessageSetValueToPointResponse:
		return d.schema.Command.SetValueToPoint.Response, nil
	case model.MessageStartMonitoringResponse:
		return d.schema.Command.StartMonitoring.Response, nil
	case model.MessageStopMonitoringResponse:
		return d.schema.Command.StopMonitoring.Response, nil
	default:
		return topics.TopicConfig{}, fmt.Errorf("%w: %s", ErrUnknownCommand, msgType)
	}
}

// PublishHeartbeat publishes the device status payload to the heartbeat
// topic, QoS 1 and retained per the compiled schema so
// new subscribers immediately see the last-known status.
func (d *Dispatcher) PublishHeartbeat(payload model.HeartbeatStatusPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("dispatcher: marshaling heartbeat: %w", err)
	}
	t := d.schema.Status.Heartbeat
	return d.pub.Publish(t.Topic, body, t.QoS, t.Retain)
}

// pointBulkEnvelope wraps the points array in a {"points": [...]} shape.
type pointBulkEnvelope struct {
	Points []model.ControllerPoint `json:"points"`
}

// PublishPointBulk publishes a batch of uploaded points to the
// data.point_bulk topic. Returns an error if the schema
// has no point_bulk topic, which cannot happen given
// internal/topics.Compile always populates it, but is checked anyway
// since nothing prevents a caller from constructing a zero-value
// Dispatcher in tests.
func (d *Dispatcher) PublishPointBulk(points []model.ControllerPoint) error {
	t := d.schema.Data.PointBulk
	if t.Topic == "" {
		return fmt.Errorf("dispatcher: point_bulk topic is not set")
	}
	body, err := json.Marshal(pointBulkEnvelope{Points: points})
	if err != nil {
		return fmt.Errorf("dispatcher: marshaling point bulk: %w", err)
	}
	return d.pub.Publish(t.Topic, body, t.QoS, t.Retain)
}

// PublishPointBulkRaw publishes an already-serialized bulk upload body
// to the data.point_bulk topic. Used by the uploader, which applies its
// own upload-time re-serialization (status_flags split into a list, the
// ~8 JSON-string fields re-parsed into structured values) rather than
// publishing ControllerPoint rows verbatim.
func (d *Dispatcher) PublishPointBulkRaw(body []byte) error {
	t := d.schema.Data.PointBulk
	if t.Topic == "" {
		return fmt.Errorf("dispatcher: point_bulk topic is not set")
	}
	return d.pub.Publish(t.Topic, body, t.QoS, t.Retain)
}
