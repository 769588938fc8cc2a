package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"invoicecam/internal/config"
	"invoicecam/internal/dto"
	"invoicecam/internal/logger"
	"invoicecam/internal/middleware"
	"invoicecam/internal/model"
	"invoicecam/internal/repository/sqlite"
	"invoicecam/internal/service/backend"
	"invoicecam/internal/service/capture"
)

type fakeSession struct {
	startErr    error
	continueErr error
	submitErr   error
	stopped     int
	submitted   []dto.SubmitForm
	state       dto.SessionState
}

func (s *fakeSession) Start(ctx context.Context) error {
	if s.startErr == nil {
		s.state.Status = "searching"
	}
	return s.startErr
}

func (s *fakeSession) Stop() {
	s.stopped++
	s.state.Status = "idle"
}

func (s *fakeSession) ContinueSearching() error { return s.continueErr }

func (s *fakeSession) Submit(ctx context.Context, form dto.SubmitForm) (*dto.CreatedInvoice, error) {
	s.submitted = append(s.submitted, form)
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return &dto.CreatedInvoice{
		RemoteID: "7",
		Request:  dto.InvoiceRequest{KamyonPlaka: form.KamyonPlaka, Tonaj: 3250, Tarih: "2025-03-14T09:30:00.000Z"},
	}, nil
}

func (s *fakeSession) State() dto.SessionState { return s.state }

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log := logger.NewLogger(&config.Config{LogDirectory: t.TempDir()})
	t.Cleanup(func() { log.Close() })
	return log
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Invalid error body: %v", err)
	}
	return body
}

func TestStartCaptureHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{nil, http.StatusOK},
		{capture.ErrAlreadyRunning, http.StatusConflict},
		{fmt.Errorf("open 0: %w", capture.ErrDeviceUnavailable), http.StatusServiceUnavailable},
		{capture.ErrPermissionDenied, http.StatusForbidden},
		{capture.ErrPlayback, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		session := &fakeSession{startErr: tt.err}
		rec := httptest.NewRecorder()

		StartCaptureHandler(session, newTestLogger(t))(rec, httptest.NewRequest(http.MethodPost, "/api/capture/start", nil))

		if rec.Code != tt.expected {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.expected, rec.Code)
		}
		if tt.err != nil && decodeMessage(t, rec).Message == "" {
			t.Errorf("%v: expected a message", tt.err)
		}
	}
}

func TestCaptureHandlers_RequirePost(t *testing.T) {
	session := &fakeSession{}
	log := newTestLogger(t)

	for _, h := range []http.HandlerFunc{
		StartCaptureHandler(session, log),
		StopCaptureHandler(session, log),
		ContinueCaptureHandler(session, log),
		SubmitCaptureHandler(session, log),
	} {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/api/capture", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected 405, got %d", rec.Code)
		}
	}
}

func TestStopCaptureHandler(t *testing.T) {
	session := &fakeSession{state: dto.SessionState{Status: "found"}}
	rec := httptest.NewRecorder()

	StopCaptureHandler(session, newTestLogger(t))(rec, httptest.NewRequest(http.MethodPost, "/api/capture/stop", nil))

	if rec.Code != http.StatusOK || session.stopped != 1 {
		t.Fatalf("Expected stop to succeed, got %d", rec.Code)
	}
	var state dto.SessionState
	json.NewDecoder(rec.Body).Decode(&state)
	if state.Status != "idle" {
		t.Errorf("Expected idle state in response, got %s", state.Status)
	}
}

func TestCaptureStateHandler(t *testing.T) {
	tonaj := 3250.0
	session := &fakeSession{state: dto.SessionState{Status: "found", Running: true, DetectedValue: &tonaj}}
	rec := httptest.NewRecorder()

	CaptureStateHandler(session, newTestLogger(t))(rec, httptest.NewRequest(http.MethodGet, "/api/capture/state", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var state dto.SessionState
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("Invalid state body: %v", err)
	}
	if state.Status != "found" || state.DetectedValue == nil || *state.DetectedValue != 3250 {
		t.Errorf("Unexpected state %+v", state)
	}
}

func TestContinueCaptureHandler_NothingDetected(t *testing.T) {
	session := &fakeSession{continueErr: capture.ErrNothingDetected}
	rec := httptest.NewRecorder()

	ContinueCaptureHandler(session, newTestLogger(t))(rec, httptest.NewRequest(http.MethodPost, "/api/capture/continue", nil))

	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", rec.Code)
	}
}

func TestSubmitCaptureHandler(t *testing.T) {
	session := &fakeSession{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/capture/submit", strings.NewReader(`{"kamyon_plaka":"34 ABC 123"}`))

	SubmitCaptureHandler(session, newTestLogger(t))(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(session.submitted) != 1 || session.submitted[0].KamyonPlaka != "34 ABC 123" {
		t.Errorf("Expected form to reach the session, got %+v", session.submitted)
	}

	var resp SubmitResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Invalid response: %v", err)
	}
	if resp.RemoteID != "7" || resp.Invoice.Tonaj != 3250 {
		t.Errorf("Unexpected response %+v", resp)
	}
}

func TestSubmitCaptureHandler_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		expected int
		message  string
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, "invalid request body"},
		{"validation", `{"kamyon_plaka":""}`, &capture.ValidationError{Field: "kamyon_plaka", Message: "truck plate is required"}, http.StatusBadRequest, "truck plate is required"},
		{"in flight", `{"kamyon_plaka":"34 ABC 123"}`, capture.ErrSubmitInFlight, http.StatusConflict, capture.ErrSubmitInFlight.Error()},
		{"backend", `{"kamyon_plaka":"34 ABC 123"}`, fmt.Errorf("submit invoice: %w", &backend.APIError{StatusCode: 400, Message: "plate not registered"}), http.StatusBadGateway, "plate not registered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &fakeSession{submitErr: tt.err}
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/capture/submit", strings.NewReader(tt.body))

			SubmitCaptureHandler(session, newTestLogger(t))(rec, req)

			if rec.Code != tt.expected {
				t.Fatalf("Expected %d, got %d", tt.expected, rec.Code)
			}
			if msg := decodeMessage(t, rec).Message; msg != tt.message {
				t.Errorf("Expected message %q, got %q", tt.message, msg)
			}
		})
	}
}

func TestJournalHandler(t *testing.T) {
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	repo := sqlite.NewInvoiceRepository(db)

	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := repo.Insert(&model.Invoice{
			KamyonPlaka: fmt.Sprintf("34 ABC %03d", i),
			Tonaj:       float64(1000 + i),
			Tarih:       base.Add(time.Duration(i) * time.Hour),
			CreatedAt:   base,
		})
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	rec := httptest.NewRecorder()
	JournalHandler(repo, newTestLogger(t))(rec, httptest.NewRequest(http.MethodGet, "/api/journal?page=2&limit=2", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var data dto.JournalData
	if err := json.NewDecoder(rec.Body).Decode(&data); err != nil {
		t.Fatalf("Invalid response: %v", err)
	}
	if data.Length != 5 || data.TotalPages != 3 || data.CurrentPage != 2 || data.Limit != 2 {
		t.Errorf("Unexpected pagination %+v", data)
	}
	if len(data.Invoices) != 2 || data.Invoices[0].KamyonPlaka != "34 ABC 002" {
		t.Errorf("Expected newest-first second page, got %+v", data.Invoices)
	}
}

func TestSnapshotHandlers(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{SnapshotDirectory: dir}

	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	snapshotRepo := sqlite.NewSnapshotRepository(db)
	detectionRepo := sqlite.NewDetectionRepository(db)

	name := "2025-03-14_09-30-00.000_abcdef12_1200.jpg"
	if err := os.WriteFile(filepath.Join(dir, name), []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0644); err != nil {
		t.Fatalf("Failed to write snapshot: %v", err)
	}
	id, err := snapshotRepo.Insert(&model.Snapshot{
		Filename:  name,
		SessionID: "abcdef12",
		Tonaj:     1200,
		Timestamp: time.Date(2025, 3, 14, 9, 30, 0, 0, time.Local),
		FilePath:  filepath.Join(dir, name),
		FileSize:  4,
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := detectionRepo.InsertBatch([]model.Detection{{SnapshotID: id, Class: "tonaj", Confidence: 0.9}}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	log := newTestLogger(t)

	rec := httptest.NewRecorder()
	GetSnapshotsHandler(cfg, log, snapshotRepo, detectionRepo)(rec, httptest.NewRequest(http.MethodGet, "/api/snapshots?session=abcdef12", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{name, `"14-03-2025"`, `"09:30"`, `"tonaj"`} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected response to contain %s, got %s", want, body)
		}
	}

	rec = httptest.NewRecorder()
	ViewSnapshotHandler(cfg)(rec, httptest.NewRequest(http.MethodGet, "/api/snapshots/view?image=../../"+name, nil))
	if rec.Code != http.StatusOK || rec.Body.Len() != 4 {
		t.Errorf("Expected snapshot bytes, got %d with %d bytes", rec.Code, rec.Body.Len())
	}

	rec = httptest.NewRecorder()
	DeleteSnapshotHandler(cfg, log, snapshotRepo)(rec, httptest.NewRequest(http.MethodPost, "/api/snapshots/delete?filename="+name, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
		t.Error("Expected snapshot file to be removed")
	}
	if snap, _ := snapshotRepo.GetByFilename(name); snap != nil {
		t.Error("Expected snapshot row to be removed")
	}
}

func TestLoginHandler(t *testing.T) {
	cfg := &config.Config{Password: "secret", AuthTTL: time.Hour}
	log := newTestLogger(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("password=wrong"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	LoginHandler(cfg, log)(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong password, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("password=secret"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	LoginHandler(cfg, log)(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("Expected redirect, got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("Expected auth cookie, got %+v", cookies)
	}
	if err := middleware.ValidateToken(cfg.AuthSecret(), cookies[0].Value); err != nil {
		t.Errorf("Expected a valid signed token, got %v", err)
	}
}

func TestLogsHandlers(t *testing.T) {
	log := newTestLogger(t)
	log.Warning("detector call failed")

	rec := httptest.NewRecorder()
	ShowLogsHandler(log, logger.WarningFile)(rec, httptest.NewRequest(http.MethodGet, "/logs/warning", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "detector call failed") {
		t.Fatalf("Expected warning log contents, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	ClearLogsHandler(log, logger.WarningFile)(rec, httptest.NewRequest(http.MethodPost, "/logs/warning/clear", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}

	data, _ := os.ReadFile(filepath.Join(log.Directory(), logger.WarningFile))
	if len(data) != 0 {
		t.Errorf("Expected cleared log, got %q", data)
	}
}
