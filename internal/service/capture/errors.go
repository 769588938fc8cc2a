package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceUnavailable is returned when no capture device can be opened.
	ErrDeviceUnavailable = errors.New("capture: no camera device available")
	// ErrPermissionDenied is returned when access to the camera is refused.
	ErrPermissionDenied = errors.New("capture: camera access denied")
	// ErrPlayback is returned when the stream opened but no frame could be played.
	ErrPlayback = errors.New("capture: stream could not be played")

	ErrAlreadyRunning  = errors.New("capture: session already running")
	ErrNothingDetected = errors.New("capture: no detected value to act on")
	ErrStartAborted    = errors.New("capture: session stopped while starting")
	ErrSubmitInFlight  = errors.New("capture: invoice submission already in progress")
)

// ValidationError rejects a submission before anything is sent to the backend.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
