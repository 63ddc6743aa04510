package bacnet

import "errors"

// Domain errors for the bacnet package.
var (
	// ErrNotConnected is returned when an operation requires an endpoint
	// connection that has not been established yet.
	ErrNotConnected = errors.New("bacnet: not connected")

	// ErrNoWrapperAvailable is returned by the pool when no wrapper is
	// registered or all are excluded by the current strategy.
	ErrNoWrapperAvailable = errors.New("bacnet: no reader wrapper available")

	// ErrDuplicateEndpoint is a configuration error: two active reader
	// entries share the same (IP, port).
	ErrDuplicateEndpoint = errors.New("bacnet: duplicate reader endpoint")

	// ErrWriteVerificationFailed is returned by write_with_priority when
	// the read-back value does not equal the intended value. The message
	// text itself ("Write failed") matches the literal wire-level wording
	// set_value_to_point callers report back over MQTT.
	ErrWriteVerificationFailed = errors.New("Write failed")

	// ErrMalformedResponse wraps the underlying library's known
	// index-error misbehavior on malformed read_multiple_points replies.
	ErrMalformedResponse = errors.New("bacnet: malformed read_multiple_points response")

	// ErrTimeout is returned when the underlying library's own operation
	// timeout elapses. The wrapper applies no outer timeout of its own
	//.
	ErrTimeout = errors.New("bacnet: operation timed out")
)
