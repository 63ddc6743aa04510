// Package monitor implements the Monitor actor: the per-cycle BACnet
// polling loop and its ACTIVE/STOPPED/ERROR state machine, built on
// internal/bacnet's reader pool and internal/pointstore's point store.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/openbms-io/supervisor/internal/bacnet"
	"github.com/openbms-io/supervisor/internal/controllerconfig"
	"github.com/openbms-io/supervisor/internal/model"
)

// defaultControllerPort is the standard BACnet/IP UDP port, used to
// populate ControllerPoint.ControllerPort since the persisted controller
// descriptor does not itself carry a port.
const defaultControllerPort = 47808

// Logger is the minimal logging surface Monitor depends on, matching
// actor.Logger's shape so either a real structured logger or the actor
// runtime's own logger satisfies it without an adapter.
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

// Store is the narrow point-store capability Monitor needs: load the
// latest configuration snapshot, persist readings, and upsert the device
// status row. A bounded-capability handle, not a
// reference to the full pointstore.DB.
type Store interface {
	GetBACnetConfig(ctx context.Context) ([]byte, error)
	Insert(ctx context.Context, p model.ControllerPoint) (uint64, error)
	BulkInsert(ctx context.Context, points []model.ControllerPoint) ([]uint64, error)
	UpsertDeviceStatus(ctx context.Context, s model.DeviceStatus) error
}

// Responder publishes a typed response to the command's response topic.
type Responder interface {
	PublishResponse(msgType model.MessageType, payload model.CommandPayload) error
}

// Sender delivers a message to another actor's inbox — here used only to
// notify the Heartbeat actor of a state change (the design: "sends
// FORCE_HEARTBEAT_REQUEST to the Heartbeat actor").
type Sender interface {
	SendFrom(sender, receiver model.ActorName, msgType model.MessageType, payload model.CommandPayload) error
}

// Monitor is the Monitor actor's handler plus its background cycle loop.
type Monitor struct {
	pool      *bacnet.Pool
	store     Store
	responder Responder
	sender    Sender
	logger    Logger
	interval  time.Duration

	mu         sync.Mutex
	state      model.MonitoringStatus
	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// New constructs a Monitor in the INITIALIZING state. interval is the
// per-cycle polling period once ACTIVE; if zero, a default
// of 60s is used.
func New(pool *bacnet.Pool, store Store, responder Responder, sender Sender, logger Logger, interval time.Duration) *Monitor {
	if logger == nil {
		logger = noopLogger{}
	}
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Monitor{
		pool:      pool,
		store:     store,
		responder: responder,
		sender:    sender,
		logger:    logger,
		interval:  interval,
		state:     model.MonitoringInitializing,
	}
}

// State returns the current monitoring state.
func (m *Monitor) State() model.MonitoringStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Handle is the Monitor actor's registered handler (actor.Handler),
// dispatching on msg.MessageType. Unrecognized message types are logged
// and dropped, matching the dispatcher's own "never crash on an
// unexpected input" discipline.
func (m *Monitor) Handle(ctx context.Context, msg model.ActorMessage) {
	switch msg.MessageType {
	case model.MessageStartMonitoringRequest:
		m.handleStart(ctx, msg)
	case model.MessageStopMonitoringRequest:
		m.handleStop(ctx, msg)
	default:
		m.logger.Warn("monitor: unhandled message type", "type", msg.MessageType)
	}
}

func (m *Monitor) handleStart(ctx context.Context, msg model.ActorMessage) {
	payload, ok := msg.Payload.(model.StartMonitoringRequestPayload)
	if !ok {
		m.logger.Error("monitor: start_monitoring payload has wrong type", "payload", msg.Payload)
		return
	}

	m.startLoop(ctx)
	m.transition(ctx, model.MonitoringActive)

	if err := m.responder.PublishResponse(model.MessageStartMonitoringResponse, model.StartMonitoringResponsePayload{
		CommandID: payload.CommandID,
		Success:   true,
	}); err != nil {
		m.logger.Error("monitor: publishing start_monitoring response", "err", err)
	}
}

func (m *Monitor) handleStop(ctx context.Context, msg model.ActorMessage) {
	payload, ok := msg.Payload.(model.StopMonitoringRequestPayload)
	if !ok {
		m.logger.Error("monitor: stop_monitoring payload has wrong type", "payload", msg.Payload)
		return
	}

	m.stopLoop()
	m.transition(ctx, model.MonitoringStopped)

	if err := m.responder.PublishResponse(model.MessageStopMonitoringResponse, model.StopMonitoringResponsePayload{
		CommandID: payload.CommandID,
		Success:   true,
	}); err != nil {
		m.logger.Error("monitor: publishing stop_monitoring response", "err", err)
	}
}

// transition updates the state machine, upserts the device-status
// snapshot, and sends FORCE_HEARTBEAT_REQUEST to the Heartbeat actor, per
// the design "Upon state change" clause.
func (m *Monitor) transition(ctx context.Context, next model.MonitoringStatus) {
	m.mu.Lock()
	m.state = next
	m.mu.Unlock()

	if err := m.store.UpsertDeviceStatus(ctx, model.DeviceStatus{
		MonitoringStatus: next,
		UpdatedAt:        time.Now().UTC(),
	}); err != nil {
		m.logger.Error("monitor: upserting device status on transition", "err", err)
	}

	if err := m.sender.SendFrom(model.ActorBACnet, model.ActorHeartbeat, model.MessageForceHeartbeatRequest, model.ForceHeartbeatRequestPayload{}); err != nil {
		m.logger.Error("monitor: notifying heartbeat of state change", "err", err)
	}
}

// startLoop spawns the background per-cycle loop if not already running.
func (m *Monitor) startLoop(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loopCancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.loopCancel = cancel
	m.loopDone = make(chan struct{})

	go m.runLoop(loopCtx, m.loopDone)
}

// stopLoop cancels the background loop and waits for it to exit, so a
// STOP always observes the current cycle finish before the state
// machine reports STOPPED.
func (m *Monitor) stopLoop() {
	m.mu.Lock()
	cancel := m.loopCancel
	done := m.loopDone
	m.loopCancel = nil
	m.loopDone = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Monitor) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runCycle(ctx)
		}
	}
}

// runCycle is monitor_all_devices(): load controllers, bulk-read each,
// persist, with per-point and per-controller fallback.
func (m *Monitor) runCycle(ctx context.Context) {
	raw, err := m.store.GetBACnetConfig(ctx)
	if err != nil {
		m.logger.Error("monitor: loading bacnet config", "err", err)
		m.enterError(ctx)
		return
	}

	controllers, err := controllerconfig.Parse(raw)
	if err != nil {
		m.logger.Error("monitor: parsing bacnet config", "err", err)
		m.enterError(ctx)
		return
	}
	if len(controllers) == 0 {
		m.logger.Warn("monitor: no controllers found in configuration")
		return
	}

	m.logger.Info("monitor: pool utilization before cycle", "utilization", m.pool.Utilization())

	for _, controller := range controllers {
		select {
		case <-ctx.Done():
			return
		default:
		}
		m.monitorController(ctx, controller)
	}

	m.logger.Info("monitor: pool utilization after cycle", "utilization", m.pool.Utilization())
}

func (m *Monitor) enterError(ctx context.Context) {
	m.transition(ctx, model.MonitoringError)
}

// monitorController assembles one bulk read covering every point on
// controller, then partitions the result between successful rows (queued
// for bulk insert) and per-point fallback candidates (the design steps
// 3-7).
func (m *Monitor) monitorController(ctx context.Context, controller model.ControllerDescriptor) {
	if len(controller.Points) == 0 {
		return
	}

	requests := make([]bacnet.PointRequest, 0, len(controller.Points))
	for _, pd := range controller.Points {
		props, onlyPresentValue := bacnet.AvailableDeviceProperties(pd.AvailableProperties)
		if onlyPresentValue {
			m.logger.Warn("monitor: no additional properties to read", "point", pd.IoTDevicePointID, "controller", controller.ControllerID)
		}
		requests = append(requests, bacnet.PointRequest{
			Object:     bacnet.ObjectRef{Type: pd.ObjectType, Instance: pd.ObjectInstance},
			Properties: props,
		})
	}

	wrapper := m.pool.GetForOperation()
	if wrapper == nil {
		m.logger.Error("monitor: no wrapper available", "controller", controller.ControllerID)
		return
	}

	results, err := wrapper.ReadMultiplePoints(ctx, controller.IP, requests)
	if err != nil {
		m.logger.Warn("monitor: bulk read failed, falling back to individual reads", "controller", controller.ControllerID, "err", err)
		for _, pd := range controller.Points {
			m.fallbackRead(ctx, wrapper, controller, pd)
		}
		return
	}

	var toInsert []model.ControllerPoint
	var fallback []model.PointDescriptor
	for _, pd := range controller.Points {
		key := bacnet.ObjectKey(pd.ObjectType, pd.ObjectInstance)
		props := results[key]
		if len(props) == 0 {
			fallback = append(fallback, pd)
			continue
		}
		toInsert = append(toInsert, buildControllerPoint(controller, pd, props, ""))
	}

	if len(toInsert) > 0 {
		if _, err := m.store.BulkInsert(ctx, toInsert); err != nil {
			m.logger.Error("monitor: bulk insert failed, falling back to individual inserts", "controller", controller.ControllerID, "err", err)
			for _, p := range toInsert {
				if _, err := m.store.Insert(ctx, p); err != nil {
					m.logger.Error("monitor: individual insert failed", "point", p.IoTDevicePointID, "err", err)
				}
			}
		}
	}

	for _, pd := range fallback {
		m.fallbackRead(ctx, wrapper, controller, pd)
	}
}

// fallbackRead retries a single point with read_properties, then with
// read_present_value alone if that also fails, recording an error_info
// blob on the present-value-only path (the design step 5, §8 scenario
// 3).
func (m *Monitor) fallbackRead(ctx context.Context, w *bacnet.Wrapper, controller model.ControllerDescriptor, pd model.PointDescriptor) {
	obj := bacnet.ObjectRef{Type: pd.ObjectType, Instance: pd.ObjectInstance}
	props, _ := bacnet.AvailableDeviceProperties(pd.AvailableProperties)

	values, err := w.ReadProperties(ctx, controller.IP, obj, props)
	if err == nil {
		m.persist(ctx, buildControllerPoint(controller, pd, values, ""))
		return
	}
	m.logger.Debug("monitor: fallback read_properties failed, trying present value only", "point", pd.IoTDevicePointID, "err", err)

	pv, pvErr := w.ReadPresentValue(ctx, controller.IP, obj)
	if pvErr != nil {
		m.logger.Error("monitor: all fallback reads failed for point", "point", pd.IoTDevicePointID, "controller", controller.ControllerID, "err", pvErr)
		return
	}

	errInfo, _ := json.Marshal(map[string]string{
		"error_class": "monitor",
		"error_code":  fmt.Sprintf("read_properties failed, fell back to present value only: %v", err),
	})
	point := buildControllerPoint(controller, pd, bacnet.PropertyValues{bacnet.PropPresentValue: pv}, string(errInfo))
	m.persist(ctx, point)
}

func (m *Monitor) persist(ctx context.Context, p model.ControllerPoint) {
	if _, err := m.store.Insert(ctx, p); err != nil {
		m.logger.Error("monitor: persisting fallback point", "point", p.IoTDevicePointID, "err", err)
	}
}
