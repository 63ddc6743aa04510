// Package systemmetrics implements the SYSTEM_METRICS actor: the
// get_config, config_upload, and reboot commands, which report on or
// act on the supervisor process itself rather than any single domain
// actor. get_config is read-only here: a snapshot of the persisted
// bacnet_config row plus the live reader-pool utilization report.
// config_upload is the write side: it merges an uploaded document into
// that same snapshot.
package systemmetrics

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openbms-io/supervisor/internal/bacnet"
	"github.com/openbms-io/supervisor/internal/model"
)

// Logger is the minimal logging surface this actor depends on.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}
func (noopLogger) Error(string, ...any) {}

// Store is the narrow point-store capability this actor needs.
type Store interface {
	GetBACnetConfig(ctx context.Context) ([]byte, error)
	MergeBACnetConfig(ctx context.Context, patchJSON []byte) ([]byte, error)
}

// Pool is the narrow BACnet pool capability this actor needs.
type Pool interface {
	Utilization() map[string]bacnet.WrapperUtilization
}

// Responder publishes the command response.
type Responder interface {
	PublishResponse(msgType model.MessageType, payload model.CommandPayload) error
}

// SystemMetrics is the SYSTEM_METRICS actor's handler.
type SystemMetrics struct {
	store     Store
	pool      Pool
	responder Responder
	logger    Logger
}

// New constructs a SystemMetrics handler.
func New(store Store, pool Pool, responder Responder, logger Logger) *SystemMetrics {
	if logger == nil {
		logger = noopLogger{}
	}
	return &SystemMetrics{store: store, pool: pool, responder: responder, logger: logger}
}

// Handle dispatches on message type: GET_CONFIG_REQUEST returns the
// persisted config plus pool utilization, CONFIG_UPLOAD merges an
// uploaded patch into the persisted config, DEVICE_REBOOT acknowledges
// the request without taking any action — the original implementation
// never implemented reboot either ("Implement reboot logic here"),
// left for the host OS/supervisor process manager to act on.
func (s *SystemMetrics) Handle(ctx context.Context, msg model.ActorMessage) {
	switch msg.MessageType {
	case model.MessageGetConfigRequest:
		s.handleGetConfig(ctx, msg)
	case model.MessageConfigUpload:
		s.handleConfigUpload(ctx, msg)
	case model.MessageDeviceReboot:
		s.handleReboot(msg)
	default:
		s.logger.Warn("systemmetrics: unhandled message type", "type", msg.MessageType)
	}
}

func (s *SystemMetrics) handleGetConfig(ctx context.Context, msg model.ActorMessage) {
	req, ok := msg.Payload.(model.GetConfigRequestPayload)
	if !ok {
		s.logger.Error("systemmetrics: unexpected payload type for GET_CONFIG_REQUEST")
		return
	}

	config, err := s.configSnapshot(ctx)
	if err != nil {
		s.logger.Error("systemmetrics: reading bacnet config", "err", err)
		config = map[string]any{}
	}

	poolStatus, err := s.poolSnapshot()
	if err != nil {
		s.logger.Error("systemmetrics: building pool status", "err", err)
		poolStatus = map[string]any{}
	}

	resp := model.GetConfigResponsePayload{
		CommandID:  req.CommandID,
		Config:     config,
		PoolStatus: poolStatus,
	}
	if err := s.responder.PublishResponse(model.MessageGetConfigResponse, resp); err != nil {
		s.logger.Error("systemmetrics: publishing get_config response", "err", err)
	}
}

func (s *SystemMetrics) configSnapshot(ctx context.Context) (map[string]any, error) {
	raw, err := s.store.GetBACnetConfig(ctx)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling bacnet config: %w", err)
	}
	return doc, nil
}

// poolSnapshot round-trips Pool.Utilization through JSON to get a
// map[string]any matching GetConfigResponsePayload's field type,
// without this actor needing its own copy of bacnet's field layout.
func (s *SystemMetrics) poolSnapshot() (map[string]any, error) {
	if s.pool == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(s.pool.Utilization())
	if err != nil {
		return nil, fmt.Errorf("marshaling pool utilization: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling pool utilization: %w", err)
	}
	return doc, nil
}

// handleConfigUpload merges an uploaded config document into the
// persisted bacnet_config snapshot and acknowledges the command. The
// uploaded document is treated as a merge-patch: fields it omits are
// left untouched in the stored snapshot (see
// pointstore.MergeBACnetConfig), matching the upstream behavior of
// persisting iotDeviceControllers/bacnetReaders from a config push
// rather than requiring a full replacement document on every upload.
func (s *SystemMetrics) handleConfigUpload(ctx context.Context, msg model.ActorMessage) {
	req, ok := msg.Payload.(model.ConfigUploadPayload)
	if !ok {
		s.logger.Error("systemmetrics: unexpected payload type for CONFIG_UPLOAD")
		return
	}

	resp := model.ConfigUploadPayload{CommandID: req.CommandID}

	patch, err := json.Marshal(req.Config)
	if err != nil {
		s.logger.Error("systemmetrics: marshaling config_upload patch", "err", err)
	} else if _, err := s.store.MergeBACnetConfig(ctx, patch); err != nil {
		s.logger.Error("systemmetrics: merging bacnet config", "err", err)
	} else {
		resp.Config = req.Config
	}

	if err := s.responder.PublishResponse(model.MessageConfigUpload, resp); err != nil {
		s.logger.Error("systemmetrics: publishing config_upload response", "err", err)
	}
}

func (s *SystemMetrics) handleReboot(msg model.ActorMessage) {
	req, ok := msg.Payload.(model.DeviceRebootPayload)
	commandID := ""
	if ok {
		commandID = req.CommandID
	}
	s.logger.Info("systemmetrics: received reboot request", "commandId", commandID)

	resp := model.DeviceRebootPayload{CommandID: commandID, Success: true}
	if err := s.responder.PublishResponse(model.MessageDeviceReboot, resp); err != nil {
		s.logger.Error("systemmetrics: publishing reboot response", "err", err)
	}
}
