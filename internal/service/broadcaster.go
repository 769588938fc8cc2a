package service

import (
	"invoicecam/internal/dto"
	"invoicecam/internal/logger"
	"invoicecam/internal/service/camera"
	"invoicecam/internal/service/capture"
)

// ViewerHub receives state and preview frames for connected viewers.
type ViewerHub interface {
	PublishState(state dto.SessionState)
	PublishFrame(jpeg []byte)
	GetClientCount() int
}

// SnapshotSink keeps frames that produced a tonnage.
type SnapshotSink interface {
	AddSnapshot(snapshot dto.BufferedSnapshot) bool
}

// Broadcaster forwards capture session activity to viewers and the snapshot
// buffer. Preview frames are annotated with the latest detections.
type Broadcaster struct {
	hub       ViewerHub
	snapshots SnapshotSink
	quality   int
	logger    *logger.Logger
	draw      func(img []byte, detections []dto.Detection, quality int) ([]byte, error)
}

var _ capture.Observer = (*Broadcaster)(nil)

func NewBroadcaster(hub ViewerHub, snapshots SnapshotSink, quality int, logger *logger.Logger) *Broadcaster {
	return &Broadcaster{
		hub:       hub,
		snapshots: snapshots,
		quality:   quality,
		logger:    logger,
		draw:      camera.DrawDetections,
	}
}

func (b *Broadcaster) StateChanged(state dto.SessionState) {
	b.hub.PublishState(state)
}

// FrameSampled sends an annotated preview, skipping the overlay work when
// nobody is watching.
func (b *Broadcaster) FrameSampled(frame capture.Frame, detections []dto.Detection) {
	if b.hub.GetClientCount() == 0 || frame.Empty() {
		return
	}
	b.hub.PublishFrame(b.annotate(frame, detections))
}

func (b *Broadcaster) ValueDetected(sessionID string, frame capture.Frame, result dto.DetectionResult) {
	if b.snapshots == nil || result.Tonaj == nil || frame.Empty() {
		return
	}

	b.snapshots.AddSnapshot(dto.BufferedSnapshot{
		Timestamp:  frame.CapturedAt,
		SessionID:  sessionID,
		Tonaj:      *result.Tonaj,
		Detections: result.Detections,
		Data:       b.annotate(frame, result.Detections),
	})
}

func (b *Broadcaster) annotate(frame capture.Frame, detections []dto.Detection) []byte {
	annotated, err := b.draw(frame.Data, detections, b.quality)
	if err != nil {
		b.logger.Warning("Failed to draw detections: %v", err)
		return frame.Data
	}
	return annotated
}
