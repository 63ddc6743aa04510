package tsdb

import "errors"

// Sentinel errors shared by both sinks. Check with errors.Is().
var (
	// ErrNotConnected indicates the sink has not established a connection.
	ErrNotConnected = errors.New("tsdb: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("tsdb: connection failed")

	// ErrWriteFailed indicates a write/flush operation failed.
	ErrWriteFailed = errors.New("tsdb: write failed")

	// ErrDisabled indicates the sink is disabled in configuration.
	ErrDisabled = errors.New("tsdb: disabled in configuration")
)
