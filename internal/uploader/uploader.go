// Package uploader implements the upload pipeline: batching pending
// points, re-serializing them into the cloud wire format, publishing
// them, and retiring uploaded rows on a background ticker with
// graceful cancellation, the same shape internal/monitor's polling
// loop uses.
package uploader

import (
	"context"
	"sync"
	"time"

	"github.com/openbms-io/supervisor/internal/model"
)

const (
	defaultBatchSize      = 500
	defaultSizeThreshold  = 10 * 1024
	defaultPollInterval   = 30 * time.Second
	defaultCleanupInterval = 5 * time.Minute
)

// Logger is the minimal logging surface Uploader depends on.
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

// Store is the narrow point-store capability Uploader needs (the design
// "Cyclic ownership").
type Store interface {
	GetPending(ctx context.Context, limit int) ([]model.ControllerPoint, error)
	MarkUploaded(ctx context.Context, ids []uint64) (skipped int, err error)
	DeleteUploaded(ctx context.Context, olderThan time.Time) (int64, error)
}

// Publisher publishes an already-serialized bulk upload body.
type Publisher interface {
	PublishPointBulkRaw(body []byte) error
}

// Mirror optionally fans uploaded points out to a local time-series
// sink. Mirror failures are logged, never
// fatal to the upload pipeline: the cloud publish is the operation of
// record, the design failure semantics apply only to it.
type Mirror interface {
	WritePoints(ctx context.Context, points []model.ControllerPoint) error
}

// Options configures batch size, size threshold, and the two
// background tick intervals — cleanup interval and upload batch size
// are both configurable.
type Options struct {
	BatchSize              int
	SerializedSizeThresholdBytes int
	PollInterval           time.Duration
	CleanupInterval        time.Duration
	RetentionAfterUpload   time.Duration // how long an uploaded row survives before cleanup deletes it
}

// Uploader drains pending points on a timer and on IMMEDIATE_UPLOAD_TRIGGER.
type Uploader struct {
	store     Store
	publisher Publisher
	mirrors   []Mirror
	logger    Logger
	opts      Options

	mu         sync.Mutex
	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// New constructs an Uploader. Zero-valued Options fields fall back to
// the design defaults.
func New(store Store, publisher Publisher, logger Logger, opts Options, mirrors ...Mirror) *Uploader {
	if logger == nil {
		logger = noopLogger{}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.SerializedSizeThresholdBytes <= 0 {
		opts.SerializedSizeThresholdBytes = defaultSizeThreshold
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	if opts.RetentionAfterUpload <= 0 {
		opts.RetentionAfterUpload = time.Hour
	}
	return &Uploader{store: store, publisher: publisher, mirrors: mirrors, logger: logger, opts: opts}
}

// Start launches the poll and cleanup background loops. Idempotent.
func (u *Uploader) Start(ctx context.Context) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.pollCancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	u.pollCancel = cancel
	u.pollDone = make(chan struct{})
	go u.runLoops(loopCtx, u.pollDone)
}

// Stop cancels the background loops and waits for them to finish.
func (u *Uploader) Stop() {
	u.mu.Lock()
	cancel := u.pollCancel
	done := u.pollDone
	u.pollCancel = nil
	u.pollDone = nil
	u.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (u *Uploader) runLoops(ctx context.Context, done chan struct{}) {
	defer close(done)

	pollTicker := time.NewTicker(u.opts.PollInterval)
	defer pollTicker.Stop()
	cleanupTicker := time.NewTicker(u.opts.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			u.UploadPending(ctx)
		case <-cleanupTicker.C:
			u.Cleanup(ctx)
		}
	}
}

// Handle is the Uploader's registered actor handler: an
// IMMEDIATE_UPLOAD_TRIGGER shortens upload latency after a write
// by running an out-of-band upload pass right away.
func (u *Uploader) Handle(ctx context.Context, msg model.ActorMessage) {
	if msg.MessageType != model.MessageImmediateUploadTrigger {
		u.logger.Warn("uploader: unhandled message type", "type", msg.MessageType)
		return
	}
	u.UploadPending(ctx)
}

// UploadPending drains up to one batch of pending points, publishes
// them, and marks them uploaded on success (the design steps 1-4).
// Publish failure leaves the points pending for the next cycle
// (at-least-once delivery).
func (u *Uploader) UploadPending(ctx context.Context) {
	points, err := u.store.GetPending(ctx, u.opts.BatchSize)
	if err != nil {
		u.logger.Error("uploader: loading pending points", "err", err)
		return
	}
	if len(points) == 0 {
		return
	}

	body, err := serializeBatch(points)
	if err != nil {
		u.logger.Error("uploader: serializing batch", "err", err)
		return
	}
	if len(body) > u.opts.SerializedSizeThresholdBytes {
		u.logger.Warn("uploader: batch exceeds serialized size threshold, publishing anyway",
			"size", len(body), "threshold", u.opts.SerializedSizeThresholdBytes, "count", len(points))
	}

	if err := u.publisher.PublishPointBulkRaw(body); err != nil {
		u.logger.Error("uploader: publishing point bulk", "err", err, "count", len(points))
		return
	}

	ids := make([]uint64, len(points))
	for i, p := range points {
		ids[i] = p.ID
	}
	if skipped, err := u.store.MarkUploaded(ctx, ids); err != nil {
		u.logger.Error("uploader: marking points uploaded", "err", err)
	} else if skipped > 0 {
		u.logger.Warn("uploader: skipped marking zero-id rows uploaded", "skipped", skipped)
	}

	for _, m := range u.mirrors {
		if err := m.WritePoints(ctx, points); err != nil {
			u.logger.Warn("uploader: mirror write failed", "err", err)
		}
	}
}

// Cleanup reclaims space by deleting rows already marked uploaded
// (the design step 5). Deletion failure leaves tolerable garbage
// behind for the next tick.
func (u *Uploader) Cleanup(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-u.opts.RetentionAfterUpload)
	n, err := u.store.DeleteUploaded(ctx, cutoff)
	if err != nil {
		u.logger.Error("uploader: cleanup failed", "err", err)
		return
	}
	if n > 0 {
		u.logger.Debug("uploader: cleanup removed rows", "count", n)
	}
}
