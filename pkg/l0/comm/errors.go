package comm

import (
	"errors"
	"fmt"
)

var (
	// ErrTimedOut indicates no response was received within the wait window.
	ErrTimedOut = errors.New("timed out")
	// ErrPayloadTooLarge indicates the payload doesn't fit the 1-byte length field.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrNotFinite indicates NaN or Inf is passed to the numeric encoder.
	ErrNotFinite = errors.New("not a finite number")
	// ErrEndpointExists indicates the endpoint id is already registered.
	ErrEndpointExists = errors.New("endpoint already registered")
	// ErrNoEphemeralID indicates the ephemeral id range is exhausted.
	ErrNoEphemeralID = errors.New("no ephemeral endpoint id available")
	// ErrNoDevice indicates discovery found nothing to open.
	ErrNoDevice = errors.New("no device found")
)

// LinkError wraps an I/O failure on the physical link.
type LinkError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *LinkError) Error() string {
	return fmt.Sprintf("link %s error: %v", e.Op, e.Err)
}
