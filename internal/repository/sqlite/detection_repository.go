package sqlite

import (
	"database/sql"
	"fmt"
	"math"

	"invoicecam/internal/model"
)

// Detections of a snapshot are listed strongest first; ties go to the
// larger box.
const detectionOrder = `ORDER BY confidence DESC, (x2 - x1) * (y2 - y1) DESC, id`

type DetectionRepository struct {
	db *DB
}

func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// InsertBatch stores the detections of one flush atomically. Boxes are
// stored with (x1, y1) as the top-left corner whatever order the detector
// reported the corners in.
func (r *DetectionRepository) InsertBatch(detections []model.Detection) error {
	if len(detections) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("begin detection batch: %w", err)
	}
	defer tx.Rollback()

	insert, err := tx.Prepare(`INSERT INTO detections (snapshot_id, class, x1, y1, x2, y2, confidence, text) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare detection insert: %w", err)
	}
	defer insert.Close()

	for i, det := range detections {
		box := normalizeBox(det)
		if _, err := insert.Exec(det.SnapshotID, det.Class, box.X1, box.Y1, box.X2, box.Y2, det.Confidence, det.Text); err != nil {
			return fmt.Errorf("insert detection %d of snapshot %d: %w", i, det.SnapshotID, err)
		}
	}
	return tx.Commit()
}

func normalizeBox(det model.Detection) model.Detection {
	det.X1, det.X2 = math.Min(det.X1, det.X2), math.Max(det.X1, det.X2)
	det.Y1, det.Y2 = math.Min(det.Y1, det.Y2), math.Max(det.Y1, det.Y2)
	return det
}

// GetBySnapshotID returns the detections stored with a snapshot.
func (r *DetectionRepository) GetBySnapshotID(snapshotID int64) ([]model.Detection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT id, snapshot_id, class, x1, y1, x2, y2, confidence, text
		FROM detections WHERE snapshot_id = ? `+detectionOrder, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("query detections of snapshot %d: %w", snapshotID, err)
	}
	defer rows.Close()
	return scanDetections(rows)
}

func scanDetections(rows *sql.Rows) ([]model.Detection, error) {
	var detections []model.Detection
	for rows.Next() {
		var d model.Detection
		if err := rows.Scan(&d.ID, &d.SnapshotID, &d.Class, &d.X1, &d.Y1, &d.X2, &d.Y2, &d.Confidence, &d.Text); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		detections = append(detections, d)
	}
	return detections, rows.Err()
}

// GetClassesBySnapshotID returns each class found in a snapshot once,
// ranked by its most confident detection.
func (r *DetectionRepository) GetClassesBySnapshotID(snapshotID int64) ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT class FROM detections WHERE snapshot_id = ?
		GROUP BY class ORDER BY MAX(confidence) DESC, class`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("query classes of snapshot %d: %w", snapshotID, err)
	}
	defer rows.Close()

	var classes []string
	for rows.Next() {
		var class string
		if err := rows.Scan(&class); err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		classes = append(classes, class)
	}
	return classes, rows.Err()
}
