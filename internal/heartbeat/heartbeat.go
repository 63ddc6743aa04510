// Package heartbeat implements the Heartbeat actor: publishing the
// device-status snapshot on a fixed interval and on
// FORCE_HEARTBEAT_REQUEST, using a ticker-plus-"publish now" shape over
// the supervisor's persisted DeviceStatus row.
package heartbeat

import (
	"context"
	"sync"
	"time"

	"github.com/openbms-io/supervisor/internal/model"
)

const defaultInterval = 30 * time.Second

// Logger is the minimal logging surface Heartbeat depends on.
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

// Store is the narrow point-store capability Heartbeat needs.
type Store interface {
	GetDeviceStatus(ctx context.Context) (model.DeviceStatus, error)
}

// Publisher publishes the enriched heartbeat payload.
type Publisher interface {
	PublishHeartbeat(payload model.HeartbeatStatusPayload) error
}

// Identity is the device triple the heartbeat payload is enriched with
// at publish time.
type Identity struct {
	OrganizationID string
	SiteID         string
	IoTDeviceID    string
}

// Heartbeat is the Heartbeat actor's handler plus its background ticker.
type Heartbeat struct {
	store     Store
	publisher Publisher
	identity  Identity
	logger    Logger
	interval  time.Duration

	mu         sync.Mutex
	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// New constructs a Heartbeat. A zero interval defaults to 30s.
func New(store Store, publisher Publisher, identity Identity, logger Logger, interval time.Duration) *Heartbeat {
	if logger == nil {
		logger = noopLogger{}
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Heartbeat{store: store, publisher: publisher, identity: identity, logger: logger, interval: interval}
}

// Start launches the background ticker loop. Idempotent.
func (h *Heartbeat) Start(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loopCancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	h.loopCancel = cancel
	h.loopDone = make(chan struct{})
	go h.runLoop(loopCtx, h.loopDone)
}

// Stop cancels the loop and waits for it to finish.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	cancel := h.loopCancel
	done := h.loopDone
	h.loopCancel = nil
	h.loopDone = nil
	h.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (h *Heartbeat) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.PublishNow(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.PublishNow(ctx)
		}
	}
}

// Handle is the Heartbeat actor's registered handler: a
// FORCE_HEARTBEAT_REQUEST (sent by Monitor on every state transition,
// the design) triggers an immediate out-of-band publish.
func (h *Heartbeat) Handle(ctx context.Context, msg model.ActorMessage) {
	if msg.MessageType != model.MessageForceHeartbeatRequest {
		h.logger.Warn("heartbeat: unhandled message type", "type", msg.MessageType)
		return
	}
	h.PublishNow(ctx)
}

// PublishNow reads the current device status and publishes it,
// applying the design three-way fallback: a missing row publishes
// as nulls (already what the zero-value DeviceStatus/GetDeviceStatus
// returns), an actual read error publishes ERROR connection statuses
// with null metrics, and the happy path copies every field verbatim.
func (h *Heartbeat) PublishNow(ctx context.Context) {
	status, err := h.store.GetDeviceStatus(ctx)
	if err != nil {
		h.logger.Error("heartbeat: reading device status", "err", err)
		status = model.DeviceStatus{
			MQTTConnectionStatus:   model.ConnectionError,
			BACnetConnectionStatus: model.ConnectionError,
		}
	}

	payload := model.HeartbeatStatusPayload{
		Status:         status,
		Timestamp:      time.Now().UTC().UnixMilli(),
		OrganizationID: h.identity.OrganizationID,
		SiteID:         h.identity.SiteID,
		IoTDeviceID:    h.identity.IoTDeviceID,
	}
	if err := h.publisher.PublishHeartbeat(payload); err != nil {
		h.logger.Error("heartbeat: publishing heartbeat", "err", err)
	}
}
