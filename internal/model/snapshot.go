package model

import "time"

// Snapshot represents a stored frame that produced a tonnage reading.
type Snapshot struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	SessionID string    `json:"session_id"`
	Tonaj     float64   `json:"tonaj"`
	Timestamp time.Time `json:"timestamp"`
	FilePath  string    `json:"filepath"`
	FileSize  int64     `json:"filesize"`
}
