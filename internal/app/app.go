package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"invoicecam/internal/config"
	"invoicecam/internal/logger"
	"invoicecam/internal/repository/sqlite"
	"invoicecam/internal/route"
	"invoicecam/internal/service"
	"invoicecam/internal/service/backend"
	"invoicecam/internal/service/camera"
	"invoicecam/internal/service/capture"
	"invoicecam/internal/service/storage"
	"invoicecam/internal/service/websocket"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config        *config.Config
	logger        *logger.Logger
	db            *sqlite.DB
	bufferService *storage.BufferService
	hubService    *websocket.HubService
	session       *capture.Session
	server        *http.Server
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	invoiceRepo := sqlite.NewInvoiceRepository(db)
	snapshotRepo := sqlite.NewSnapshotRepository(db)
	detectionRepo := sqlite.NewDetectionRepository(db)

	hub := websocket.NewHubService(log)
	buffer := storage.NewBufferService(cfg, log, snapshotRepo, detectionRepo)
	client := backend.NewClient(cfg.APIURL, cfg.RequestTimeout)

	session := capture.NewSession(capture.Params{
		Source:         camera.NewSource(cfg, log),
		Detector:       client,
		Invoices:       client,
		Journal:        invoiceRepo,
		Observer:       service.NewBroadcaster(hub, buffer, cfg.JPEGQuality, log),
		Logger:         log,
		PollInterval:   cfg.PollInterval,
		RequestTimeout: cfg.RequestTimeout,
	})

	router := route.SetupRoutes(route.Dependencies{
		Config:        cfg,
		Logger:        log,
		Session:       session,
		Viewers:       hub,
		InvoiceRepo:   invoiceRepo,
		SnapshotRepo:  snapshotRepo,
		DetectionRepo: detectionRepo,
	})

	return &App{
		config:        cfg,
		logger:        log,
		db:            db,
		bufferService: buffer,
		hubService:    hub,
		session:       session,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves until SIGINT or SIGTERM, then stops the capture session, flushes
// pending snapshots and closes the database.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	background, cancelBackground := context.WithCancel(context.Background())
	bufferDone := make(chan struct{})
	go a.hubService.Run(background)
	go func() {
		defer close(bufferDone)
		a.bufferService.Run(background)
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.ListenAndServe()
	}()

	a.logger.Info("Invoice capture station listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Backend: %s, camera: %s, polling every %v", a.config.APIURL, a.config.CameraDevice, a.config.PollInterval)

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	a.session.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Server shutdown failed: %v", err)
	}

	cancelBackground()
	<-bufferDone

	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database: %v", err)
	}
	a.logger.Close()
	return runErr
}
