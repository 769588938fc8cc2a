package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"invoicecam/internal/config"
	"invoicecam/internal/dto"
	"invoicecam/internal/logger"
	"invoicecam/internal/repository"
)

// GetSnapshotsHandler returns the filtered snapshot list from the database.
func GetSnapshotsHandler(cfg *config.Config, logger *logger.Logger,
	snapshotRepo repository.SnapshotRepository, detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &dto.SnapshotFilters{
			SessionID:  q.Get("session"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
			Limit:      limit,
			Offset:     (page - 1) * limit,
		}

		snapshots, err := snapshotRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying snapshots from database: %v", err)
			writeJSON(w, logger, http.StatusInternalServerError, errorResponse{Message: "Internal Server Error"})
			return
		}

		totalCount, err := snapshotRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting snapshots: %v", err)
			totalCount = len(snapshots)
		}

		infos := make([]dto.SnapshotInfo, 0, len(snapshots))
		for _, snap := range snapshots {
			classes := []string{}
			if detectionRepo != nil {
				if classes, err = detectionRepo.GetClassesBySnapshotID(snap.ID); err != nil {
					logger.Error("Error getting classes for snapshot %d: %v", snap.ID, err)
					classes = []string{}
				}
			}

			infos = append(infos, dto.SnapshotInfo{
				Name:      snap.Filename,
				Date:      snap.Timestamp,
				TimeOfDay: snap.Timestamp,
				SessionID: snap.SessionID,
				Tonaj:     snap.Tonaj,
				Classes:   classes,
			})
		}

		writeJSON(w, logger, http.StatusOK, dto.SnapshotsData{
			Snapshots:   infos,
			Length:      totalCount,
			TotalPages:  totalPages(totalCount, limit),
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// ViewSnapshotHandler serves a single snapshot named by the "image" query parameter.
func ViewSnapshotHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		image := r.URL.Query().Get("image")
		if image == "" {
			http.Error(w, "Image parameter is required", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, filepath.Join(cfg.SnapshotDirectory, filepath.Base(image)))
	}
}

// DeleteSnapshotHandler removes a snapshot from disk and database.
func DeleteSnapshotHandler(cfg *config.Config, logger *logger.Logger, snapshotRepo repository.SnapshotRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		filename := filepath.Base(r.URL.Query().Get("filename"))
		if filename == "" || filename == "." || filename == string(filepath.Separator) {
			writeJSON(w, logger, http.StatusBadRequest, errorResponse{Message: "filename required"})
			return
		}

		filePath := filepath.Join(cfg.SnapshotDirectory, filename)
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			logger.Error("Failed to delete file %s: %v", filePath, err)
		}

		if err := snapshotRepo.DeleteByFilename(filename); err != nil {
			logger.Error("Failed to delete from database: %v", err)
		}

		logger.Info("Deleted snapshot: %s", filename)
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "deleted", "filename": filename})
	}
}
