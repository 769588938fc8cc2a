package model

import "time"

// Invoice is the local journal copy of an invoice accepted by the backend.
type Invoice struct {
	ID          int64     `json:"id"`
	RemoteID    string    `json:"remote_id"`
	KamyonPlaka string    `json:"kamyon_plaka"`
	Tonaj       float64   `json:"tonaj"`
	Tarih       time.Time `json:"tarih"`
	SessionID   string    `json:"session_id"`
	CreatedAt   time.Time `json:"created_at"`
}
