package devtools

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAvailabilityTimeout = errors.New("timed out waiting for devtools")
	ErrFetch               = errors.New("failed to fetch devtools targets")
	ErrTargetNotFound      = errors.New("target tab not found")
	ErrTargetNoSocket      = errors.New("target has no webSocketDebuggerUrl")
	ErrSocketTimeout       = errors.New("websocket open timeout")
	ErrSocket              = errors.New("websocket error")
	ErrLaunch              = errors.New("launch browser")
)

// AvailabilityTimeoutError is returned when a launched browser never
// exposed its debugging endpoint.
type AvailabilityTimeoutError struct {
	Endpoint string
	Elapsed  time.Duration
}

func (e *AvailabilityTimeoutError) Error() string {
	return fmt.Sprintf("%s on %s after %s", ErrAvailabilityTimeout, e.Endpoint, e.Elapsed.Round(time.Millisecond))
}

func (e *AvailabilityTimeoutError) Is(target error) bool {
	return target == ErrAvailabilityTimeout
}

// Hint explains the usual cause
func (e *AvailabilityTimeoutError) Hint() string {
	return "if the browser is already running with the default profile it may have absorbed the launch; close it or use a dedicated --user-data-dir"
}
