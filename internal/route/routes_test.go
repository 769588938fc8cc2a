package route

import (
	"context"
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
	"invoicecam/internal/repository/sqlite"

	"github.com/gorilla/websocket"
)

type stubSession struct{}

func (stubSession) Start(ctx context.Context) error { return nil }
func (stubSession) Stop()                           {}
func (stubSession) ContinueSearching() error        { return nil }
func (stubSession) Submit(ctx context.Context, form dto.SubmitForm) (*dto.CreatedInvoice, error) {
	return &dto.CreatedInvoice{}, nil
}
func (stubSession) State() dto.SessionState { return dto.SessionState{Status: "idle", Searching: true} }

type stubViewers struct{}

func (stubViewers) Register(*websocket.Conn)   {}
func (stubViewers) Unregister(*websocket.Conn) {}

func newTestRouter(t *testing.T) (http.Handler, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Password:          "secret",
		AuthTTL:           time.Hour,
		SnapshotDirectory: filepath.Join(dir, "snapshots"),
		LogDirectory:      filepath.Join(dir, "logs"),
	}
	log := logger.NewLogger(cfg)
	db, err := sqlite.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		log.Close()
	})

	return SetupRoutes(Dependencies{
		Config:        cfg,
		Logger:        log,
		Session:       stubSession{},
		Viewers:       stubViewers{},
		InvoiceRepo:   sqlite.NewInvoiceRepository(db),
		SnapshotRepo:  sqlite.NewSnapshotRepository(db),
		DetectionRepo: sqlite.NewDetectionRepository(db),
	}), cfg
}

func TestSetupRoutes(t *testing.T) {
	router, cfg := newTestRouter(t)
	token, err := middleware.IssueToken(cfg.AuthSecret(), time.Hour)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	tests := []struct {
		method   string
		path     string
		auth     bool
		expected int
	}{
		{http.MethodGet, "/api/capture/state", false, http.StatusUnauthorized},
		{http.MethodGet, "/api/capture/state", true, http.StatusOK},
		{http.MethodPost, "/api/capture/start", true, http.StatusOK},
		{http.MethodPost, "/api/capture/stop", true, http.StatusOK},
		{http.MethodGet, "/api/journal", true, http.StatusOK},
		{http.MethodGet, "/api/snapshots", true, http.StatusOK},
		{http.MethodGet, "/logs/info", true, http.StatusOK},
		{http.MethodGet, "/missing-page", true, http.StatusNotFound},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		if tt.auth {
			req.AddCookie(&http.Cookie{Name: middleware.AuthCookieName, Value: token})
		}
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != tt.expected {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.expected, rec.Code)
		}
	}
}

func TestSetupRoutes_LandingPageAfterLogin(t *testing.T) {
	// Static pages resolve relative to the repository root.
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if err := os.Chdir(filepath.Join("..", "..")); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	router, cfg := newTestRouter(t)

	login := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("password=secret"))
	login.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, login)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("Expected login redirect, got %d", rec.Code)
	}
	location := rec.Header().Get("Location")

	token, err := middleware.IssueToken(cfg.AuthSecret(), time.Hour)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, location, nil)
	req.AddCookie(&http.Cookie{Name: middleware.AuthCookieName, Value: token})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected landing page %s to exist, got %d", location, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/api/capture/view") {
		t.Error("Expected landing page to open the capture view")
	}
}
