package bacnet

import "context"

// ObjectRef identifies one BACnet object on a remote device.
type ObjectRef struct {
	Type     ObjectType
	Instance uint32
}

// PointRequest is one element of a read_multiple_points call: one object
// plus the properties to fetch from it.
type PointRequest struct {
	Object     ObjectRef
	Properties []PropertyName
}

// PropertyValues is the per-object result of a multi-point read: property
// name -> decoded value. A present-but-empty map means the underlying
// library returned no properties for that object (the design — "Missing
// entries in the response map to empty property dicts").
type PropertyValues map[PropertyName]any

// Client is the contract the underlying BACnet/IP protocol library is
// assumed to satisfy. It is treated as an external collaborator per
// the design ("the BACnet protocol stack itself... treated as a library
// providing read/write/who-is primitives") — this package never implements
// the wire protocol, only the pooling and vocabulary-normalization layered
// on top of it. A production build supplies a concrete Client backed by a
// real BACnet/IP stack; tests supply a fake.
type Client interface {
	// Connect establishes the local UDP endpoint. Idempotent.
	Connect(ctx context.Context) error

	// Close releases the local UDP endpoint.
	Close() error

	// IsConnected reports whether Connect has succeeded and Close has not
	// since been called.
	IsConnected() bool

	// WhoIs broadcasts a Who-Is request, optionally scoped to a specific
	// remote address, and returns discovered device instance ids.
	WhoIs(ctx context.Context, address string) ([]uint32, error)

	// ReadObjectList reads the device's object list (the set of objects
	// it exposes).
	ReadObjectList(ctx context.Context, ip string, deviceInstance uint32) ([]ObjectRef, error)

	// ReadPresentValue reads a single object's presentValue property.
	ReadPresentValue(ctx context.Context, ip string, obj ObjectRef) (any, error)

	// ReadProperties reads a named subset of properties from one object.
	// Library-native quirk: a property absent from the reply because the
	// object doesn't support it is simply missing from the result map,
	// not an error.
	ReadProperties(ctx context.Context, ip string, obj ObjectRef, props []PropertyName) (PropertyValues, error)

	// ReadMultiplePoints issues one ReadPropertyMultiple covering every
	// requested object/property pair in a single round trip. The result
	// is keyed by ObjectKey(obj.Type, obj.Instance). May return
	// ErrMalformedResponse (wrapped) on known library misbehavior with
	// malformed replies; the caller falls back to per-point reads.
	ReadMultiplePoints(ctx context.Context, ip string, requests []PointRequest) (map[string]PropertyValues, error)

	// Write issues a raw BACnet write described by a pre-built command
	// string understood by the underlying library (e.g. a CLI-style
	// write command). Present for parity with the design `write`
	// primitive; the supervisor core only calls WriteWithPriority.
	Write(ctx context.Context, command string) error

	// WriteWithPriority writes value to obj's presentValue at the given
	// BACnet priority slot (1-16). Does not itself verify the write —
	// Wrapper.WriteWithPriority performs the read-back verification on
	// top of it.
	WriteWithPriority(ctx context.Context, ip string, obj ObjectRef, value any, priority int) error
}
