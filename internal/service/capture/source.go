package capture

import (
	"context"
	"time"

	"invoicecam/internal/dto"
)

// Frame is a single sampled image, JPEG encoded.
// A zero-dimension frame carries no data and is still submitted.
type Frame struct {
	Data       []byte
	Width      int
	Height     int
	CapturedAt time.Time
}

// Empty reports whether the frame carries no image.
func (f Frame) Empty() bool {
	return len(f.Data) == 0 || f.Width == 0 || f.Height == 0
}

// FrameSource opens a live stream. Open must map failures to
// ErrDeviceUnavailable, ErrPermissionDenied or ErrPlayback.
type FrameSource interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open frame stream owned by exactly one session.
type Stream interface {
	Read() (Frame, error)
	Close() error
}

// Detector uploads a frame and returns what was recognized on it.
type Detector interface {
	Detect(ctx context.Context, frame []byte) (*dto.DetectionResult, error)
}

// InvoiceClient persists an invoice on the bookkeeping backend.
type InvoiceClient interface {
	CreateInvoice(ctx context.Context, invoice dto.InvoiceRequest) (*dto.CreatedInvoice, error)
}

// Observer is notified about session activity. Calls may come from
// different goroutines and must not block.
type Observer interface {
	StateChanged(state dto.SessionState)
	FrameSampled(frame Frame, detections []dto.Detection)
	ValueDetected(sessionID string, frame Frame, result dto.DetectionResult)
}
