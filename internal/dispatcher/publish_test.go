package dispatcher

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/openbms-io/supervisor/internal/model"
)

func TestPublishResponseUsesMatchingTopic(t *testing.T) {
	schema := testSchema(t)
	pub := &fakePublisher{}
	d := New(pub, &fakeSender{}, schema, nil)

	err := d.PublishResponse(model.MessageStartMonitoringResponse, model.StartMonitoringResponsePayload{
		CommandID: "c1",
		Success:   true,
	})
	if err != nil {
		t.Fatalf("PublishResponse: %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(pub.published))
	}
	got := pub.published[0]
	if got.topic != schema.Command.StartMonitoring.Response.Topic {
		t.Errorf("topic = %q, want %q", got.topic, schema.Command.StartMonitoring.Response.Topic)
	}

	var decoded map[string]any
	if err := json.Unmarshal(got.payload, &decoded); err != nil {
		t.Fatalf("unmarshal published payload: %v", err)
	}
	if decoded["commandId"] != "c1" {
		t.Errorf("commandId = %v, want c1", decoded["commandId"])
	}
}

func TestPublishResponseRejectsUnknownMessageType(t *testing.T) {
	schema := testSchema(t)
	d := New(&fakePublisher{}, &fakeSender{}, schema, nil)

	err := d.PublishResponse(model.MessageType("unknown"), model.DeviceRebootPayload{})
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("err = %v, want ErrUnknownCommand", err)
	}
}

func TestPublishHeartbeatUsesHeartbeatTopicAndIsRetained(t *testing.T) {
	schema := testSchema(t)
	pub := &fakePublisher{}
	d := New(pub, &fakeSender{}, schema, nil)

	err := d.PublishHeartbeat(model.HeartbeatStatusPayload{
		Status:         model.DeviceStatus{MonitoringStatus: model.MonitoringActive},
		OrganizationID: "org-1",
	})
	if err != nil {
		t.Fatalf("PublishHeartbeat: %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(pub.published))
	}
	got := pub.published[0]
	if got.topic != schema.Status.Heartbeat.Topic {
		t.Errorf("topic = %q, want %q", got.topic, schema.Status.Heartbeat.Topic)
	}
	if !got.retained {
		t.Error("expected heartbeat publish to be retained")
	}
}

func TestPublishPointBulkWrapsPointsEnvelope(t *testing.T) {
	schema := testSchema(t)
	pub := &fakePublisher{}
	d := New(pub, &fakeSender{}, schema, nil)

	points := []model.ControllerPoint{{ControllerID: "ctrl-1", ObjectType: "analogInput"}}
	if err := d.PublishPointBulk(points); err != nil {
		t.Fatalf("PublishPointBulk: %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(pub.published))
	}
	got := pub.published[0]
	if got.topic != schema.Data.PointBulk.Topic {
		t.Errorf("topic = %q, want %q", got.topic, schema.Data.PointBulk.Topic)
	}

	var decoded pointBulkEnvelope
	if err := json.Unmarshal(got.payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Points) != 1 || decoded.Points[0].ControllerID != "ctrl-1" {
		t.Errorf("unexpected decoded points: %+v", decoded.Points)
	}
}

func TestPublishPointBulkRawPublishesBodyVerbatim(t *testing.T) {
	schema := testSchema(t)
	pub := &fakePublisher{}
	d := New(pub, &fakeSender{}, schema, nil)

	body := []byte(`{"points":[{"controller_id":"ctrl-1"}]}`)
	if err := d.PublishPointBulkRaw(body); err != nil {
		t.Fatalf("PublishPointBulkRaw: %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(pub.published))
	}
	got := pub.published[0]
	if got.topic != schema.Data.PointBulk.Topic {
		t.Errorf("topic = %q, want %q", got.topic, schema.Data.PointBulk.Topic)
	}
	if string(got.payload) != string(body) {
		t.Errorf("payload = %s, want it published verbatim", got.payload)
	}
}
