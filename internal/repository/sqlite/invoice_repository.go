package sqlite

import (
	"database/sql"
	"fmt"

	"invoicecam/internal/model"
)

// InvoiceRepository implements repository.InvoiceRepository for SQLite.
type InvoiceRepository struct {
	db *DB
}

// NewInvoiceRepository creates a new SQLite invoice journal.
func NewInvoiceRepository(db *DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Insert adds a submitted invoice to the journal.
func (r *InvoiceRepository) Insert(inv *model.Invoice) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO invoices (remote_id, kamyon_plaka, tonaj, tarih, session_id)
		VALUES (?, ?, ?, ?, ?)
	`, inv.RemoteID, inv.KamyonPlaka, inv.Tonaj, inv.Tarih.UTC(), inv.SessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert invoice: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves an invoice by its local ID. Returns nil when absent.
func (r *InvoiceRepository) GetByID(id int64) (*model.Invoice, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var inv model.Invoice
	err := r.db.Conn().QueryRow(`
		SELECT id, remote_id, kamyon_plaka, tonaj, tarih, session_id, created_at
		FROM invoices WHERE id = ?
	`, id).Scan(&inv.ID, &inv.RemoteID, &inv.KamyonPlaka, &inv.Tonaj, &inv.Tarih, &inv.SessionID, &inv.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return &inv, nil
}

// List returns journal entries, newest first.
func (r *InvoiceRepository) List(limit, offset int) ([]model.Invoice, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, remote_id, kamyon_plaka, tonaj, tarih, session_id, created_at
		FROM invoices ORDER BY tarih DESC, id DESC
	`
	args := []interface{}{}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
		if offset > 0 {
			query += " OFFSET ?"
			args = append(args, offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []model.Invoice
	for rows.Next() {
		var inv model.Invoice
		if err := rows.Scan(&inv.ID, &inv.RemoteID, &inv.KamyonPlaka, &inv.Tonaj, &inv.Tarih, &inv.SessionID, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}

	return invoices, rows.Err()
}

// Count returns the number of journal entries.
func (r *InvoiceRepository) Count() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM invoices`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return count, nil
}
