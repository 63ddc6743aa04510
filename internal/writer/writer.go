// Package writer implements the Writer actor: handling one
// SET_VALUE_TO_POINT_REQUEST at a time against the BACnet reader pool.
package writer

import (
	"context"
	"strconv"
	"time"

	"github.com/openbms-io/supervisor/internal/bacnet"
	"github.com/openbms-io/supervisor/internal/controllerconfig"
	"github.com/openbms-io/supervisor/internal/model"
)

// defaultPriority is the BACnet write priority used when a request
// doesn't specify one.
const defaultPriority = 8

// Logger is the minimal logging surface Writer depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store is the narrow point-store capability Writer needs: load the
// latest configuration to resolve a point, and persist the synthetic
// row recording a successful write.
type Store interface {
	GetBACnetConfig(ctx context.Context) ([]byte, error)
	Insert(ctx context.Context, p model.ControllerPoint) (uint64, error)
}

// Responder publishes the writer's SET_VALUE_TO_POINT_RESPONSE.
type Responder interface {
	PublishResponse(msgType model.MessageType, payload model.CommandPayload) error
}

// Sender delivers IMMEDIATE_UPLOAD_TRIGGER to the Uploader actor after a
// successful write.
type Sender interface {
	SendFrom(sender, receiver model.ActorName, msgType model.MessageType, payload model.CommandPayload) error
}

// Writer is the Writer actor's handler.
type Writer struct {
	pool      *bacnet.Pool
	store     Store
	responder Responder
	sender    Sender
	logger    Logger
}

// New constructs a Writer.
func New(pool *bacnet.Pool, store Store, responder Responder, sender Sender, logger Logger) *Writer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Writer{pool: pool, store: store, responder: responder, sender: sender, logger: logger}
}

// Handle is the Writer actor's registered handler (actor.Handler).
func (w *Writer) Handle(ctx context.Context, msg model.ActorMessage) {
	if msg.MessageType != model.MessageSetValueToPointRequest {
		w.logger.Warn("writer: unhandled message type", "type", msg.MessageType)
		return
	}

	payload, ok := msg.Payload.(model.SetValueToPointRequestPayload)
	if !ok {
		w.logger.Error("writer: set_value_to_point payload has wrong type", "payload", msg.Payload)
		return
	}

	resp := w.write(ctx, payload)
	if err := w.responder.PublishResponse(model.MessageSetValueToPointResponse, resp); err != nil {
		w.logger.Error("writer: publishing set_value_to_point response", "err", err)
	}

	if resp.Success {
		if err := w.sender.SendFrom(model.ActorBACnetWriter, model.ActorUploader, model.MessageImmediateUploadTrigger, model.ImmediateUploadTriggerPayload{}); err != nil {
			w.logger.Error("writer: triggering immediate upload", "err", err)
		}
	}
}

// write resolves the target point, performs the write with read-back
// verification, and on success inserts a synthetic ControllerPoint row
// carrying the new value.
func (w *Writer) write(ctx context.Context, req model.SetValueToPointRequestPayload) model.SetValueToPointResponsePayload {
	raw, err := w.store.GetBACnetConfig(ctx)
	if err != nil {
		w.logger.Error("writer: loading bacnet config", "err", err)
		return model.SetValueToPointResponsePayload{CommandID: req.CommandID, Success: false, Message: err.Error()}
	}

	controllers, err := controllerconfig.Parse(raw)
	if err != nil {
		w.logger.Error("writer: parsing bacnet config", "err", err)
		return model.SetValueToPointResponsePayload{CommandID: req.CommandID, Success: false, Message: err.Error()}
	}

	controller, point, ok := controllerconfig.FindPoint(controllers, req.ControllerID, req.PointInstanceID)
	if !ok {
		w.logger.Error("writer: point not found in configuration", "controller", req.ControllerID, "point", req.PointInstanceID)
		return model.SetValueToPointResponsePayload{CommandID: req.CommandID, Success: false, Message: "point not found in configuration"}
	}

	priority := req.Priority
	if priority <= 0 {
		priority = defaultPriority
	}

	wrapper := w.pool.GetForOperation()
	if wrapper == nil {
		w.logger.Error("writer: no wrapper available", "controller", controller.ControllerID)
		return model.SetValueToPointResponsePayload{CommandID: req.CommandID, Success: false, Message: "no bacnet reader available"}
	}

	obj := bacnet.ObjectRef{Type: point.ObjectType, Instance: point.ObjectInstance}
	if err := wrapper.WriteWithPriority(ctx, controller.IP, obj, req.Value, priority); err != nil {
		w.logger.Error("writer: write failed", "controller", controller.ControllerID, "point", point.IoTDevicePointID, "err", err)
		return model.SetValueToPointResponsePayload{CommandID: req.CommandID, Success: false, Message: err.Error()}
	}

	now := time.Now().UTC()
	row := model.ControllerPoint{
		IoTDevicePointID:   point.IoTDevicePointID,
		ControllerID:       controller.ControllerID,
		ObjectType:         point.ObjectType.String(),
		ObjectInstance:     point.ObjectInstance,
		ControllerIP:       controller.IP,
		ControllerDeviceID: controller.DeviceInstance,
		PresentValue:       strconv.FormatFloat(req.Value, 'f', -1, 64),
		CreatedAt:          now,
		CreatedAtUnixMilli: now.UnixMilli(),
		IsUploaded:         false,
		UpdatedAt:          now,
	}
	if _, err := w.store.Insert(ctx, row); err != nil {
		w.logger.Error("writer: persisting write result", "point", point.IoTDevicePointID, "err", err)
	}

	return model.SetValueToPointResponsePayload{CommandID: req.CommandID, Success: true}
}
