// JournalData is a paginated response payload for the local invoice journal.
package dto

import "time"

type JournalEntry struct {
	ID          int64     `json:"id"`
	RemoteID    string    `json:"remoteId,omitempty"`
	KamyonPlaka string    `json:"kamyon_plaka"`
	Tonaj       float64   `json:"tonaj"`
	Tarih       time.Time `json:"tarih"`
	SessionID   string    `json:"sessionId,omitempty"`
}

type JournalData struct {
	Invoices    []JournalEntry `json:"invoices"`
	Length      int            `json:"length"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Limit       int            `json:"pageSize"`
}
