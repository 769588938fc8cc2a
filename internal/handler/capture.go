package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"invoicecam/internal/dto"
	"invoicecam/internal/logger"
)

// CaptureSession is the capture session as seen by the HTTP layer.
type CaptureSession interface {
	Start(ctx context.Context) error
	Stop()
	ContinueSearching() error
	Submit(ctx context.Context, form dto.SubmitForm) (*dto.CreatedInvoice, error)
	State() dto.SessionState
}

// SubmitResponse is returned after an invoice was accepted by the backend.
type SubmitResponse struct {
	RemoteID string             `json:"remoteId,omitempty"`
	Invoice  dto.InvoiceRequest `json:"invoice"`
	State    dto.SessionState   `json:"state"`
}

// StartCaptureHandler handles POST /api/capture/start.
func StartCaptureHandler(session CaptureSession, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		if err := session.Start(r.Context()); err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, session.State())
	}
}

// StopCaptureHandler handles POST /api/capture/stop. Stopping an idle session succeeds.
func StopCaptureHandler(session CaptureSession, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		session.Stop()
		writeJSON(w, logger, http.StatusOK, session.State())
	}
}

// ContinueCaptureHandler handles POST /api/capture/continue.
func ContinueCaptureHandler(session CaptureSession, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		if err := session.ContinueSearching(); err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, session.State())
	}
}

// SubmitCaptureHandler handles POST /api/capture/submit with a JSON {kamyon_plaka} body.
func SubmitCaptureHandler(session CaptureSession, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}

		var form dto.SubmitForm
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&form); err != nil {
			writeJSON(w, logger, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
			return
		}

		created, err := session.Submit(r.Context(), form)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusCreated, SubmitResponse{
			RemoteID: created.RemoteID,
			Invoice:  created.Request,
			State:    session.State(),
		})
	}
}

// CaptureStateHandler handles GET /api/capture/state.
func CaptureStateHandler(session CaptureSession, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, session.State())
	}
}
