// Package capture drives the camera-to-detector polling loop: it samples one
// frame per tick while searching, keeps at most one frame in flight to the
// detector, and holds the detected tonnage until it is submitted as an invoice.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"invoicecam/internal/dto"
	"invoicecam/internal/logger"
	"invoicecam/internal/model"
	"invoicecam/internal/repository"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// Status is the lifecycle state of a capture session.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusAcquiring Status = "acquiring"
	StatusSearching Status = "searching"
	StatusFound     Status = "found"
	StatusStopping  Status = "stopping"
)

// DateLayout matches the ISO-8601 form the backend expects for tarih.
const DateLayout = "2006-01-02T15:04:05.000Z"

const (
	DefaultPollInterval   = time.Second
	DefaultRequestTimeout = 10 * time.Second
)

// Params holds the collaborators of a Session.
type Params struct {
	Source   FrameSource
	Detector Detector
	Invoices InvoiceClient
	Journal  repository.InvoiceRepository // optional
	Observer Observer                     // optional
	Clock    clock.Clock                  // defaults to the wall clock
	Logger   *logger.Logger

	PollInterval   time.Duration
	RequestTimeout time.Duration
}

var errStreamClosed = errors.New("capture: stream closed")

// Session is the single capture session of the station.
type Session struct {
	source   FrameSource
	detector Detector
	invoices InvoiceClient
	journal  repository.InvoiceRepository
	observer Observer
	clock    clock.Clock
	logger   *logger.Logger

	pollInterval   time.Duration
	requestTimeout time.Duration

	// slot holds the one frame allowed in flight to the detector.
	slot chan struct{}

	mu         sync.Mutex
	status     Status
	generation uint64
	sessionID  string
	detections []dto.Detection
	value      *float64
	frameW     int
	frameH     int
	updatedAt  time.Time
	submitting bool
	stats      dto.SessionStats
	cancel     context.CancelFunc
	loopDone   chan struct{}

	streamMu sync.Mutex
	stream   Stream

	// notifyMu orders observer deliveries, so the last state an observer
	// receives is the session's current one.
	notifyMu sync.Mutex
}

// NewSession creates an idle session.
func NewSession(p Params) *Session {
	if p.Clock == nil {
		p.Clock = clock.New()
	}
	if p.PollInterval <= 0 {
		p.PollInterval = DefaultPollInterval
	}
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = DefaultRequestTimeout
	}

	return &Session{
		source:         p.Source,
		detector:       p.Detector,
		invoices:       p.Invoices,
		journal:        p.Journal,
		observer:       p.Observer,
		clock:          p.Clock,
		logger:         p.Logger,
		pollInterval:   p.PollInterval,
		requestTimeout: p.RequestTimeout,
		slot:           make(chan struct{}, 1),
		status:         StatusIdle,
		updatedAt:      p.Clock.Now(),
	}
}

// Start opens the frame source and begins polling.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusIdle {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.status = StatusAcquiring
	s.updatedAt = s.clock.Now()
	gen := s.generation
	s.mu.Unlock()
	s.notify()

	stream, err := s.source.Open(ctx)

	s.mu.Lock()
	if err != nil {
		if s.generation == gen && s.status == StatusAcquiring {
			s.status = StatusIdle
			s.updatedAt = s.clock.Now()
		}
		s.mu.Unlock()
		s.notify()
		s.logger.Warning("Could not open camera: %v", err)
		return err
	}

	if s.generation != gen || s.status != StatusAcquiring {
		s.mu.Unlock()
		if cerr := stream.Close(); cerr != nil {
			s.logger.Error("Error releasing stream: %v", cerr)
		}
		return ErrStartAborted
	}

	s.streamMu.Lock()
	s.stream = stream
	s.streamMu.Unlock()

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.loopDone = make(chan struct{})
	s.sessionID = uuid.NewString()
	s.status = StatusSearching
	s.detections = nil
	s.value = nil
	s.updatedAt = s.clock.Now()

	// The ticker exists before Start returns so no tick is lost.
	ticker := s.clock.Ticker(s.pollInterval)
	go s.run(loopCtx, gen, ticker, s.loopDone)

	id := s.sessionID
	s.mu.Unlock()

	s.notify()
	s.logger.Info("Capture session %s started, polling every %v", id, s.pollInterval)
	return nil
}

// Stop halts polling, releases the stream and clears any detection. Stopping
// an idle session is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	switch s.status {
	case StatusIdle, StatusStopping:
		s.mu.Unlock()
		return
	case StatusAcquiring:
		// Start sees the new generation and releases the stream itself.
		s.generation++
		s.status = StatusIdle
		s.updatedAt = s.clock.Now()
		s.mu.Unlock()
		s.notify()
		return
	}

	s.status = StatusStopping
	s.updatedAt = s.clock.Now()
	s.generation++
	s.cancel()
	done := s.loopDone
	id := s.sessionID
	s.mu.Unlock()

	<-done

	s.streamMu.Lock()
	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			s.logger.Error("Error releasing stream: %v", err)
		}
		s.stream = nil
	}
	s.streamMu.Unlock()

	s.mu.Lock()
	s.status = StatusIdle
	s.sessionID = ""
	s.detections = nil
	s.value = nil
	s.frameW, s.frameH = 0, 0
	s.cancel = nil
	s.loopDone = nil
	s.updatedAt = s.clock.Now()
	s.mu.Unlock()

	s.notify()
	s.logger.Info("Capture session %s stopped", id)
}

// ContinueSearching discards the detected value and resumes polling on the
// same stream.
func (s *Session) ContinueSearching() error {
	s.mu.Lock()
	if s.status != StatusFound {
		s.mu.Unlock()
		return ErrNothingDetected
	}
	s.resumeLocked()
	s.mu.Unlock()

	s.notify()
	return nil
}

// Submit sends the detected tonnage as an invoice for the given truck plate.
// On success the value is cleared, searching resumes and the invoice is
// mirrored into the local journal.
func (s *Session) Submit(ctx context.Context, form dto.SubmitForm) (*dto.CreatedInvoice, error) {
	plate := strings.TrimSpace(form.KamyonPlaka)

	s.mu.Lock()
	if s.value == nil {
		s.mu.Unlock()
		return nil, &ValidationError{Field: "tonaj", Message: "no detected tonnage to submit"}
	}
	if plate == "" {
		s.mu.Unlock()
		return nil, &ValidationError{Field: "kamyon_plaka", Message: "truck plate is required"}
	}
	if s.submitting {
		s.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	s.submitting = true
	tonaj := *s.value
	gen := s.generation
	sessionID := s.sessionID
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.submitting = false
		s.mu.Unlock()
	}()

	now := s.clock.Now().UTC()
	req := dto.InvoiceRequest{
		KamyonPlaka: plate,
		Tonaj:       tonaj,
		Tarih:       now.Format(DateLayout),
	}

	created, err := s.invoices.CreateInvoice(ctx, req)
	if err != nil {
		s.logger.Warning("Invoice submission failed for %s: %v", plate, err)
		return nil, fmt.Errorf("submit invoice: %w", err)
	}

	if s.journal != nil {
		_, jerr := s.journal.Insert(&model.Invoice{
			RemoteID:    created.RemoteID,
			KamyonPlaka: plate,
			Tonaj:       tonaj,
			Tarih:       now,
			SessionID:   sessionID,
			CreatedAt:   now,
		})
		if jerr != nil {
			s.logger.Error("Error writing invoice to journal: %v", jerr)
		}
	}

	s.mu.Lock()
	if s.generation == gen && s.status == StatusFound {
		s.resumeLocked()
	}
	s.mu.Unlock()

	s.notify()
	s.logger.Info("Invoice submitted: %s, %.2f t", plate, tonaj)
	return created, nil
}

// State returns a copy of the observable session state.
func (s *Session) State() dto.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) run(ctx context.Context, gen uint64, ticker *clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, gen)
		}
	}
}

// tick samples and submits one frame when the session is searching and the
// slot is free. A busy slot skips the tick.
func (s *Session) tick(ctx context.Context, gen uint64) {
	defer func() {
		s.mu.Lock()
		s.stats.Ticks++
		s.mu.Unlock()
	}()

	s.mu.Lock()
	active := s.generation == gen && s.status == StatusSearching
	s.mu.Unlock()
	if !active {
		return
	}

	select {
	case s.slot <- struct{}{}:
	default:
		s.mu.Lock()
		s.stats.TicksSkipped++
		s.mu.Unlock()
		return
	}

	frame, err := s.readFrame()
	if err != nil {
		<-s.slot
		s.logger.Warning("Frame read failed: %v", err)
		return
	}

	s.mu.Lock()
	s.stats.FramesSubmitted++
	s.frameW, s.frameH = frame.Width, frame.Height
	s.mu.Unlock()

	go s.detect(ctx, gen, frame)
}

func (s *Session) readFrame() (Frame, error) {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	if s.stream == nil {
		return Frame{}, errStreamClosed
	}
	frame, err := s.stream.Read()
	if err != nil {
		return Frame{}, err
	}
	if frame.CapturedAt.IsZero() {
		frame.CapturedAt = s.clock.Now()
	}
	return frame, nil
}

func (s *Session) detect(ctx context.Context, gen uint64, frame Frame) {
	defer func() { <-s.slot }()

	reqCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	result, err := s.detector.Detect(reqCtx, frame.Data)

	s.mu.Lock()
	if s.generation != gen || s.status != StatusSearching {
		s.stats.ResponsesDiscarded++
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.stats.DetectorFailures++
		s.mu.Unlock()
		s.logger.Warning("Detector call failed: %v", err)
		return
	}

	s.detections = append([]dto.Detection(nil), result.Detections...)
	found := result.Tonaj != nil
	if found {
		v := *result.Tonaj
		s.value = &v
		s.status = StatusFound
	}
	s.updatedAt = s.clock.Now()
	detections := append([]dto.Detection(nil), s.detections...)
	sessionID := s.sessionID
	s.mu.Unlock()

	if found {
		s.logger.Info("Tonnage detected: %.2f", *result.Tonaj)
	}
	s.deliver(gen, frame, detections, sessionID, result, found)
}

// deliver hands a response to the observer unless Stop has moved the
// session to a new generation meanwhile.
func (s *Session) deliver(gen uint64, frame Frame, detections []dto.Detection, sessionID string, result *dto.DetectionResult, found bool) {
	if s.observer == nil {
		return
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if !s.current(gen) {
		s.mu.Lock()
		s.stats.ResponsesDiscarded++
		s.mu.Unlock()
		return
	}
	s.observer.FrameSampled(frame, detections)
	if found && s.current(gen) {
		s.observer.ValueDetected(sessionID, frame, *result)
	}
	s.observer.StateChanged(s.State())
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen
}

// resumeLocked clears the detected value and returns to searching.
func (s *Session) resumeLocked() {
	s.value = nil
	s.detections = nil
	s.status = StatusSearching
	s.updatedAt = s.clock.Now()
}

func (s *Session) stateLocked() dto.SessionState {
	state := dto.SessionState{
		SessionID:   s.sessionID,
		Status:      string(s.status),
		Running:     s.status == StatusSearching || s.status == StatusFound || s.status == StatusStopping,
		Searching:   s.value == nil,
		Detections:  append([]dto.Detection{}, s.detections...),
		FrameWidth:  s.frameW,
		FrameHeight: s.frameH,
		UpdatedAt:   s.updatedAt,
		Stats:       s.stats,
	}
	if s.value != nil {
		v := *s.value
		state.DetectedValue = &v
	}
	return state
}

// notify publishes the state as it is at delivery time.
func (s *Session) notify() {
	if s.observer == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.observer.StateChanged(s.State())
}
