package dispatcher

import "errors"

// Sentinel errors for this package.
var (
	ErrUnknownCommand    = errors.New("dispatcher: no response topic for command")
	ErrPublisherRequired = errors.New("dispatcher: publisher is required")
)
