package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"invoicecam/internal/config"
	"invoicecam/internal/dto"
	"invoicecam/internal/logger"
	"invoicecam/internal/model"
	"invoicecam/internal/repository"
)

// TimestampLayout is the timestamp part of a snapshot filename.
const TimestampLayout = "2006-01-02_15-04-05.000"

const sessionPrefixLen = 8

// BufferService buffers frames that produced a tonnage and periodically
// flushes them to disk and the database.
type BufferService struct {
	snapshotsDir  string
	limit         int
	flushInterval time.Duration
	snapshots     []dto.BufferedSnapshot
	mu            sync.Mutex
	logger        *logger.Logger
	snapshotRepo  repository.SnapshotRepository
	detectionRepo repository.DetectionRepository
}

// NewBufferService creates a BufferService. The repositories may be nil, in
// which case snapshots are only written to disk.
func NewBufferService(config *config.Config, logger *logger.Logger, snapshotRepo repository.SnapshotRepository, detectionRepo repository.DetectionRepository) *BufferService {
	return &BufferService{
		snapshotsDir:  config.SnapshotDirectory,
		limit:         config.SnapshotBufferLimit,
		flushInterval: time.Duration(config.SnapshotFlushInterval) * time.Second,
		snapshots:     make([]dto.BufferedSnapshot, 0),
		logger:        logger,
		snapshotRepo:  snapshotRepo,
		detectionRepo: detectionRepo,
	}
}

// Run flushes on every interval until ctx is cancelled, then flushes once more.
func (s *BufferService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.FlushSnapshots()
			return
		case <-ticker.C:
			s.FlushSnapshots()
		}
	}
}

// AddSnapshot buffers a snapshot. It returns false when the buffer is full.
func (s *BufferService) AddSnapshot(snapshot dto.BufferedSnapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.snapshots) >= s.limit {
		s.logger.Warning("Snapshot buffer full (%d), dropping snapshot for session %s", s.limit, snapshot.SessionID)
		return false
	}

	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now()
	}
	s.snapshots = append(s.snapshots, snapshot)
	s.logger.Info("Snapshot buffer size: %d/%d", len(s.snapshots), s.limit)
	return true
}

// Pending returns the number of buffered snapshots.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

// FlushSnapshots writes buffered snapshots to disk, records them in the
// database and empties the buffer. It returns how many were saved.
func (s *BufferService) FlushSnapshots() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.snapshots) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.snapshotsDir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return 0
	}

	savedCount := 0
	for _, snapshot := range s.snapshots {
		filename := SnapshotFilename(snapshot.Timestamp, snapshot.SessionID, snapshot.Tonaj)
		fullpath := filepath.Join(s.snapshotsDir, filename)

		if err := os.WriteFile(fullpath, snapshot.Data, 0644); err != nil {
			s.logger.Error("Error saving snapshot %s: %v", filename, err)
			continue
		}

		if s.snapshotRepo != nil {
			if err := s.record(snapshot, filename, fullpath); err != nil {
				s.logger.Error("Error saving snapshot to database %s: %v", filename, err)
				continue
			}
		}

		savedCount++
	}

	s.logger.Info("Flushed %d snapshots to disk", savedCount)
	s.snapshots = s.snapshots[:0]
	return savedCount
}

func (s *BufferService) record(snapshot dto.BufferedSnapshot, filename, fullpath string) error {
	snapshotID, err := s.snapshotRepo.Insert(&model.Snapshot{
		Filename:  filename,
		SessionID: snapshot.SessionID,
		Tonaj:     snapshot.Tonaj,
		Timestamp: snapshot.Timestamp,
		FilePath:  fullpath,
		FileSize:  int64(len(snapshot.Data)),
	})
	if err != nil {
		return err
	}

	if s.detectionRepo == nil || len(snapshot.Detections) == 0 {
		return nil
	}

	detections := make([]model.Detection, 0, len(snapshot.Detections))
	for _, det := range snapshot.Detections {
		detections = append(detections, model.Detection{
			SnapshotID: snapshotID,
			Class:      det.Class,
			X1:         det.BBox.X1,
			Y1:         det.BBox.Y1,
			X2:         det.BBox.X2,
			Y2:         det.BBox.Y2,
			Confidence: det.Confidence,
			Text:       det.Text,
		})
	}
	if err := s.detectionRepo.InsertBatch(detections); err != nil {
		s.logger.Error("Error saving detections to database: %v", err)
	}
	return nil
}

// SnapshotFilename builds "<timestamp>_<session prefix>_<tonnage>.jpg".
func SnapshotFilename(ts time.Time, sessionID string, tonaj float64) string {
	return fmt.Sprintf("%s_%s_%s.jpg",
		ts.Format(TimestampLayout),
		sessionPrefix(sessionID),
		strconv.FormatFloat(tonaj, 'f', -1, 64))
}

// ParseSnapshotFilename reverses SnapshotFilename. The session part is the
// prefix stored in the name, not the full id.
func ParseSnapshotFilename(name string) (time.Time, string, float64, error) {
	base := filepath.Base(name)
	if !strings.HasSuffix(strings.ToLower(base), ".jpg") {
		return time.Time{}, "", 0, fmt.Errorf("not a snapshot: %s", base)
	}
	base = base[:len(base)-len(".jpg")]

	parts := strings.Split(base, "_")
	if len(parts) != 4 {
		return time.Time{}, "", 0, fmt.Errorf("unexpected snapshot name: %s", name)
	}

	ts, err := time.ParseInLocation(TimestampLayout, parts[0]+"_"+parts[1], time.Local)
	if err != nil {
		return time.Time{}, "", 0, fmt.Errorf("snapshot timestamp: %w", err)
	}

	tonaj, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return time.Time{}, "", 0, fmt.Errorf("snapshot tonnage: %w", err)
	}

	return ts, parts[2], tonaj, nil
}

func sessionPrefix(sessionID string) string {
	id := strings.ReplaceAll(sessionID, "_", "")
	if id == "" {
		return "unknown"
	}
	if len(id) > sessionPrefixLen {
		return id[:sessionPrefixLen]
	}
	return id
}
