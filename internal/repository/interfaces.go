package repository

import (
	"invoicecam/internal/dto"
	"invoicecam/internal/model"
)

// InvoiceRepository defines the interface for the local invoice journal.
type InvoiceRepository interface {
	// Create operations
	Insert(inv *model.Invoice) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Invoice, error)
	List(limit, offset int) ([]model.Invoice, error)
	Count() (int, error)
}

// SnapshotRepository defines the interface for snapshot data operations.
type SnapshotRepository interface {
	// Create operations
	Insert(snap *model.Snapshot) (int64, error)

	// Read operations
	GetByFilename(filename string) (*model.Snapshot, error)
	GetAll(filter *dto.SnapshotFilters) ([]model.Snapshot, error)
	GetTotalCount(filter *dto.SnapshotFilters) (int, error)

	// Delete operations
	DeleteByFilename(filename string) error
}

// DetectionRepository defines the interface for detection data operations.
type DetectionRepository interface {
	// Create operations
	InsertBatch(detections []model.Detection) error

	// Read operations
	GetBySnapshotID(snapshotID int64) ([]model.Detection, error)
	GetClassesBySnapshotID(snapshotID int64) ([]string, error)
}
