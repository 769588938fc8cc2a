package sqlite

import (
	"database/sql"
	"fmt"

	"invoicecam/internal/dto"
	"invoicecam/internal/model"
)

// SnapshotRepository implements repository.SnapshotRepository for SQLite.
type SnapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a new SQLite snapshot repository.
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Insert adds a new snapshot record to the database.
func (r *SnapshotRepository) Insert(snap *model.Snapshot) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO snapshots (filename, session_id, tonaj, timestamp, filepath, filesize)
		VALUES (?, ?, ?, ?, ?, ?)
	`, snap.Filename, snap.SessionID, snap.Tonaj, snap.Timestamp.UTC(), snap.FilePath, snap.FileSize)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return result.LastInsertId()
}

// GetByFilename retrieves a snapshot by its filename. Returns nil when absent.
func (r *SnapshotRepository) GetByFilename(filename string) (*model.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var snap model.Snapshot
	err := r.db.Conn().QueryRow(`
		SELECT id, filename, session_id, tonaj, timestamp, filepath, filesize
		FROM snapshots WHERE filename = ?
	`, filename).Scan(&snap.ID, &snap.Filename, &snap.SessionID, &snap.Tonaj, &snap.Timestamp, &snap.FilePath, &snap.FileSize)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &snap, nil
}

// buildWhere renders the filter into a WHERE suffix and its arguments.
func buildWhere(filter *dto.SnapshotFilters) (string, []interface{}) {
	where := " WHERE 1=1"
	args := []interface{}{}
	if filter == nil {
		return where, args
	}

	if filter.SessionID != "" {
		where += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}

	if !filter.DateAfter.IsZero() {
		where += " AND DATE(timestamp) >= DATE(?)"
		args = append(args, filter.DateAfter.Format("2006-01-02"))
	}

	if !filter.DateBefore.IsZero() {
		where += " AND DATE(timestamp) <= DATE(?)"
		args = append(args, filter.DateBefore.Format("2006-01-02"))
	}

	return where, args
}

// GetAll retrieves snapshots based on filter criteria, newest first.
func (r *SnapshotRepository) GetAll(filter *dto.SnapshotFilters) ([]model.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	query := `SELECT id, filename, session_id, tonaj, timestamp, filepath, filesize FROM snapshots` +
		where + " ORDER BY timestamp DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []model.Snapshot
	for rows.Next() {
		var snap model.Snapshot
		if err := rows.Scan(&snap.ID, &snap.Filename, &snap.SessionID, &snap.Tonaj, &snap.Timestamp, &snap.FilePath, &snap.FileSize); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, rows.Err()
}

// GetTotalCount returns the total count of snapshots matching the filter.
func (r *SnapshotRepository) GetTotalCount(filter *dto.SnapshotFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM snapshots`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}

	return count, nil
}

// DeleteByFilename removes a snapshot and its detections.
func (r *SnapshotRepository) DeleteByFilename(filename string) error {
	r.db.Lock()
	defer r.db.Unlock()

	var snapshotID int64
	err := r.db.Conn().QueryRow(`SELECT id FROM snapshots WHERE filename = ?`, filename).Scan(&snapshotID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get snapshot id: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM detections WHERE snapshot_id = ?`, snapshotID); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM snapshots WHERE id = ?`, snapshotID); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
