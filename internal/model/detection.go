package model

// Detection represents a detected region stored with a snapshot.
type Detection struct {
	ID         int64   `json:"id"`
	SnapshotID int64   `json:"snapshot_id"`
	Class      string  `json:"class"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence"`
	Text       string  `json:"text"`
}
