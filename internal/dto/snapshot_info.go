package dto

import (
	"encoding/json"
	"time"
)

// SnapshotInfo describes a stored snapshot for the operator panel.
type SnapshotInfo struct {
	Name      string    `json:"name"`
	Date      time.Time `json:"date"`
	TimeOfDay time.Time `json:"timeOfDay"`
	SessionID string    `json:"sessionId"`
	Tonaj     float64   `json:"tonaj"`
	Classes   []string  `json:"classes"`
}

// MarshalJSON customizes JSON output for SnapshotInfo to format date and time-of-day.
func (p SnapshotInfo) MarshalJSON() ([]byte, error) {
	type Alias SnapshotInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      p.Date.Format("02-01-2006"),
		TimeOfDay: p.TimeOfDay.Format("15:04"),
		Alias:     (Alias)(p),
	})
}
