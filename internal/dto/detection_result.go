package dto

// BoundingBox is a detection region in frame pixel coordinates.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns the horizontal extent of the box.
func (b BoundingBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b BoundingBox) Height() float64 { return b.Y2 - b.Y1 }

// Detection is one recognized region returned by the detector.
type Detection struct {
	BBox       BoundingBox `json:"bbox"`
	Confidence float64     `json:"confidence"`
	Class      string      `json:"class"`
	Text       string      `json:"text,omitempty"`
}

// DetectionResult is the detector response for a single uploaded frame.
// Tonaj is nil while no tonnage could be read from the frame.
type DetectionResult struct {
	Detections []Detection `json:"detections"`
	Tonaj      *float64    `json:"tonaj"`
}
