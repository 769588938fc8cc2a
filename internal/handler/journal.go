package handler

import (
	"net/http"

	"invoicecam/internal/dto"
	"invoicecam/internal/logger"
	"invoicecam/internal/repository"
)

// JournalHandler handles GET /api/journal?page&limit, newest invoices first.
func JournalHandler(invoiceRepo repository.InvoiceRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 20)

		invoices, err := invoiceRepo.List(limit, (page-1)*limit)
		if err != nil {
			logger.Error("Error querying invoice journal: %v", err)
			writeJSON(w, logger, http.StatusInternalServerError, errorResponse{Message: "Internal Server Error"})
			return
		}

		total, err := invoiceRepo.Count()
		if err != nil {
			logger.Error("Error counting invoices: %v", err)
			total = len(invoices)
		}

		entries := make([]dto.JournalEntry, 0, len(invoices))
		for _, inv := range invoices {
			entries = append(entries, dto.JournalEntry{
				ID:          inv.ID,
				RemoteID:    inv.RemoteID,
				KamyonPlaka: inv.KamyonPlaka,
				Tonaj:       inv.Tonaj,
				Tarih:       inv.Tarih,
				SessionID:   inv.SessionID,
			})
		}

		writeJSON(w, logger, http.StatusOK, dto.JournalData{
			Invoices:    entries,
			Length:      total,
			TotalPages:  totalPages(total, limit),
			CurrentPage: page,
			Limit:       limit,
		})
	}
}
