package route

import (
	"net/http"
	"os"
	"path/filepath"

	"invoicecam/internal/config"
	"invoicecam/internal/handler"
	"invoicecam/internal/logger"
	"invoicecam/internal/middleware"
	"invoicecam/internal/repository"
)

// Dependencies are the services the HTTP routes are served from.
type Dependencies struct {
	Config        *config.Config
	Logger        *logger.Logger
	Session       handler.CaptureSession
	Viewers       handler.ViewerRegistry
	InvoiceRepo   repository.InvoiceRepository
	SnapshotRepo  repository.SnapshotRepository
	DetectionRepo repository.DetectionRepository
}

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", filepath.Clean(path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers the operator API, log and auth endpoints and wraps
// the mux with the authentication middleware.
func SetupRoutes(deps Dependencies) http.Handler {
	mux := http.NewServeMux()
	cfg, log := deps.Config, deps.Logger

	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// Capture session
	mux.HandleFunc("/api/capture/start", handler.StartCaptureHandler(deps.Session, log))
	mux.HandleFunc("/api/capture/stop", handler.StopCaptureHandler(deps.Session, log))
	mux.HandleFunc("/api/capture/continue", handler.ContinueCaptureHandler(deps.Session, log))
	mux.HandleFunc("/api/capture/submit", handler.SubmitCaptureHandler(deps.Session, log))
	mux.HandleFunc("/api/capture/state", handler.CaptureStateHandler(deps.Session, log))
	mux.HandleFunc("/api/capture/view", handler.ViewWebsocketHandler(deps.Viewers, log))

	// Journal and snapshots
	mux.HandleFunc("/api/journal", handler.JournalHandler(deps.InvoiceRepo, log))
	mux.HandleFunc("/api/snapshots", handler.GetSnapshotsHandler(cfg, log, deps.SnapshotRepo, deps.DetectionRepo))
	mux.HandleFunc("/api/snapshots/view", handler.ViewSnapshotHandler(cfg))
	mux.HandleFunc("/api/snapshots/delete", handler.DeleteSnapshotHandler(cfg, log, deps.SnapshotRepo))

	// Log endpoints
	for path, file := range map[string]string{
		"/logs/info":    logger.InfoFile,
		"/logs/warning": logger.WarningFile,
		"/logs/error":   logger.ErrorFile,
	} {
		mux.HandleFunc(path, handler.ShowLogsHandler(log, file))
		mux.HandleFunc(path+"/clear", handler.ClearLogsHandler(log, file))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, log))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	// Automatic HTML handler mapping for example: /journal -> /static/journal.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	return middleware.AuthMiddleware(cfg.AuthSecret(), mux)
}
