package camera

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"invoicecam/internal/dto"

	"gocv.io/x/gocv"
)

var overlayColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}

// DrawDetections draws each detection box with its confidence percentage and
// returns a re-encoded JPEG. An empty image is returned unchanged.
func DrawDetections(img []byte, detections []dto.Detection, quality int) ([]byte, error) {
	if len(img) == 0 || len(detections) == 0 {
		return img, nil
	}

	mat, err := gocv.IMDecode(img, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return img, nil
	}

	for _, detection := range detections {
		if err := gocv.Rectangle(&mat, boxRect(detection.BBox), overlayColor, 2); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %v", err)
		}

		err := gocv.PutText(&mat, confidenceLabel(detection.Confidence), labelOrigin(detection.BBox),
			gocv.FontHersheySimplex, 0.6, overlayColor, 2)
		if err != nil {
			return nil, fmt.Errorf("failed to draw text: %v", err)
		}
	}

	return encodeJPEG(mat, quality)
}

func boxRect(b dto.BoundingBox) image.Rectangle {
	return image.Rect(round(b.X1), round(b.Y1), round(b.X2), round(b.Y2))
}

// labelOrigin puts the label just above the box, or inside it near the top
// edge when there is no room above.
func labelOrigin(b dto.BoundingBox) image.Point {
	if b.Y1 > 20 {
		return image.Pt(round(b.X1), round(b.Y1-5))
	}
	return image.Pt(round(b.X1), round(b.Y1+20))
}

func confidenceLabel(confidence float64) string {
	return fmt.Sprintf("%d%%", round(confidence*100))
}

func round(v float64) int {
	return int(math.Round(v))
}
