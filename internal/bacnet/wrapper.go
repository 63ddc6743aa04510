package bacnet

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
)

// ReaderConfig describes one local BACnet/IP endpoint,
// ("Reader configuration"). A reader pool is built from a filtered,
// deduplicated list of these.
type ReaderConfig struct {
	ID                 string
	BindIP             string
	SubnetPrefixLength int
	DeviceInstance     uint32
	Port               int
	BBMDAddress        string // optional
	IsActive           bool
}

// endpointKey identifies a reader config by its bindable (IP, port) pair,
// used to reject duplicate active entries
func (r ReaderConfig) endpointKey() string {
	return fmt.Sprintf("%s:%d", r.BindIP, r.Port)
}

// NewClientFunc constructs the underlying BACnet library client for one
// reader endpoint. Production composition roots supply a factory backed
// by a real BACnet/IP stack; tests supply a factory returning a fake.
type NewClientFunc func(cfg ReaderConfig) Client

// Wrapper is the runtime object owning one protocol endpoint. All calls
// into the underlying Client are serialized by mu — at most one
// operation is ever in flight per wrapper.
type Wrapper struct {
	id     string
	cfg    ReaderConfig
	client Client

	mu          sync.Mutex
	connected   bool
	activeOps   atomic.Int32 // always 0 or 1 given mu, exposed for LB accounting
}

// NewWrapper constructs a wrapper around a lazily-connected Client. The
// Client itself is not dialed until the first operation (the design:
// "connection handle created lazily on first use").
func NewWrapper(cfg ReaderConfig, client Client) *Wrapper {
	return &Wrapper{id: cfg.ID, cfg: cfg, client: client}
}

// ID returns the wrapper's stable identifier.
func (w *Wrapper) ID() string { return w.id }

// Config returns the reader configuration this wrapper was built from.
func (w *Wrapper) Config() ReaderConfig { return w.cfg }

// ActiveOperations returns 0 or 1: whether an operation is currently in
// flight. Reading this does not require holding mu for the operation's
// full duration — the load balancer's "least-busy" strategy calls this to
// make a selection decision without blocking on in-flight work.
func (w *Wrapper) ActiveOperations() int {
	return int(w.activeOps.Load())
}

// IsConnected reports whether the wrapper has an established connection.
func (w *Wrapper) IsConnected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

// enter marks one operation as in-flight and lazily connects if needed.
// Must be paired with a deferred call to leave.
func (w *Wrapper) enter(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.activeOps.Store(1)

	if !w.connected {
		if err := w.client.Connect(ctx); err != nil {
			w.activeOps.Store(0)
			return fmt.Errorf("wrapper %s: connect: %w", w.id, err)
		}
		w.connected = true
	}
	return nil
}

func (w *Wrapper) leave() {
	w.activeOps.Store(0)
}

// Start forces the lazy connection to establish immediately, without
// performing an operation. Used by the pool at construction time if
// eager connection is desired; the supervisor's default path leaves
// the connection lazy, dialed on first use.
func (w *Wrapper) Start(ctx context.Context) error {
	if err := w.enter(ctx); err != nil {
		return err
	}
	defer w.leave()
	return nil
}

// Disconnect tears down the underlying connection.
func (w *Wrapper) Disconnect() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected {
		return nil
	}
	err := w.client.Close()
	w.connected = false
	return err
}

// WhoIs issues a Who-Is request through the wrapper's client.
func (w *Wrapper) WhoIs(ctx context.Context, address string) ([]uint32, error) {
	if err := w.enter(ctx); err != nil {
		return nil, err
	}
	defer w.leave()
	return w.client.WhoIs(ctx, address)
}

// ReadObjectList reads a device's object list.
func (w *Wrapper) ReadObjectList(ctx context.Context, ip string, deviceInstance uint32) ([]ObjectRef, error) {
	if err := w.enter(ctx); err != nil {
		return nil, err
	}
	defer w.leave()
	return w.client.ReadObjectList(ctx, ip, deviceInstance)
}

// ReadPresentValue reads a single object's presentValue.
func (w *Wrapper) ReadPresentValue(ctx context.Context, ip string, obj ObjectRef) (any, error) {
	if err := w.enter(ctx); err != nil {
		return nil, err
	}
	defer w.leave()
	return w.client.ReadPresentValue(ctx, ip, obj)
}

// ReadProperties reads a named subset of properties from one object.
func (w *Wrapper) ReadProperties(ctx context.Context, ip string, obj ObjectRef, props []PropertyName) (PropertyValues, error) {
	if err := w.enter(ctx); err != nil {
		return nil, err
	}
	defer w.leave()
	return w.client.ReadProperties(ctx, ip, obj, props)
}

// ReadMultiplePoints issues one ReadPropertyMultiple covering every
// requested object/property pair, then translates the underlying
// library's native object-type keys back into the agent's canonical
// vocabulary. A requested object missing from the reply surfaces as an
// empty property map rather than failing the whole call — callers can
// always fall back to per-point reads for such an object.
func (w *Wrapper) ReadMultiplePoints(ctx context.Context, ip string, requests []PointRequest) (map[string]PropertyValues, error) {
	if err := w.enter(ctx); err != nil {
		return nil, err
	}
	defer w.leave()

	raw, err := w.client.ReadMultiplePoints(ctx, ip, requests)
	if err != nil {
		return nil, fmt.Errorf("wrapper %s: read_multiple_points: %w", w.id, err)
	}

	// Ensure every requested object has an entry, even if the library
	// omitted it — the design: "Missing entries in the response map to
	// empty property dicts; all downstream code must tolerate this."
	out := make(map[string]PropertyValues, len(requests))
	for _, req := range requests {
		key := ObjectKey(req.Object.Type, req.Object.Instance)
		libKey := fmt.Sprintf("%s:%d", req.Object.Type.LibraryName(), req.Object.Instance)
		if v, ok := raw[key]; ok {
			out[key] = v
		} else if v, ok := raw[libKey]; ok {
			out[key] = v
		} else {
			out[key] = PropertyValues{}
		}
	}
	return out, nil
}

// Write issues a raw library-native write command.
func (w *Wrapper) Write(ctx context.Context, command string) error {
	if err := w.enter(ctx); err != nil {
		return err
	}
	defer w.leave()
	return w.client.Write(ctx, command)
}

// WriteWithPriority writes value at the given priority slot, then reads
// presentValue back and verifies equality. On mismatch it returns
// ErrWriteVerificationFailed wrapping a message naming both values,
// e.g. "Write failed: 25.0 != 30.0".
func (w *Wrapper) WriteWithPriority(ctx context.Context, ip string, obj ObjectRef, value any, priority int) error {
	if err := w.enter(ctx); err != nil {
		return err
	}
	defer w.leave()

	if err := w.client.WriteWithPriority(ctx, ip, obj, value, priority); err != nil {
		return fmt.Errorf("wrapper %s: write: %w", w.id, err)
	}

	readBack, err := w.client.ReadPresentValue(ctx, ip, obj)
	if err != nil {
		return fmt.Errorf("wrapper %s: write verification read-back: %w", w.id, err)
	}

	if !valuesEqual(readBack, value) {
		return fmt.Errorf("%w: %s != %s", ErrWriteVerificationFailed, formatVerificationValue(readBack), formatVerificationValue(value))
	}
	return nil
}

// formatVerificationValue renders a write-verification value the way the
// wire-level response reports it: one decimal place for anything
// numeric, the default string form otherwise.
func formatVerificationValue(v any) string {
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return fmt.Sprintf("%v", v)
}

// valuesEqual compares BACnet scalar values for write verification,
// tolerating the common float/int/string representational mismatches a
// round trip through the underlying library can introduce.
func valuesEqual(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
