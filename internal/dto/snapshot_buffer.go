package dto

import "time"

// BufferedSnapshot holds a frame that produced a tonnage before it is flushed to disk.
type BufferedSnapshot struct {
	Timestamp  time.Time
	SessionID  string
	Tonaj      float64
	Detections []Detection
	Data       []byte
}
