package dto

import "time"

// SessionStats counts what the capture loop did during the current process lifetime.
type SessionStats struct {
	Ticks              uint64 `json:"ticks"`
	TicksSkipped       uint64 `json:"ticksSkipped"`
	FramesSubmitted    uint64 `json:"framesSubmitted"`
	DetectorFailures   uint64 `json:"detectorFailures"`
	ResponsesDiscarded uint64 `json:"responsesDiscarded"`
}

// SessionState is a read-only copy of the capture session for viewers.
type SessionState struct {
	SessionID     string       `json:"sessionId,omitempty"`
	Status        string       `json:"status"`
	Running       bool         `json:"running"`
	Searching     bool         `json:"searching"`
	Detections    []Detection  `json:"detections"`
	DetectedValue *float64     `json:"detectedValue"`
	FrameWidth    int          `json:"frameWidth"`
	FrameHeight   int          `json:"frameHeight"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	Stats         SessionStats `json:"stats"`
}

// ViewerMessage is the envelope pushed to WebSocket viewers.
type ViewerMessage struct {
	Type  string        `json:"type"` // "state" or "frame"
	State *SessionState `json:"state,omitempty"`
	Image string        `json:"image,omitempty"` // base64 JPEG
}
