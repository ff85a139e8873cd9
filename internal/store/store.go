// Package store provides persistence interfaces for build reports.
package store

import (
	"context"
	"errors"

	"github.com/narvanalabs/codebuild-runner/internal/models"
)

// ErrNotFound is returned when a requested report does not exist.
var ErrNotFound = errors.New("report not found")

// ListFilter narrows a report listing.
type ListFilter struct {
	// Project restricts results to one project when non-empty.
	Project string
	// Limit caps the number of results. Zero means the store default.
	Limit int
}

// ReportStore defines operations on persisted build reports.
type ReportStore interface {
	// Save inserts or updates a report. Stored log lines are not replaced.
	Save(ctx context.Context, rec *models.ReportRecord) error
	// AppendLogs appends lines to the stored log of buildID.
	AppendLogs(ctx context.Context, buildID string, lines []string) error
	// Get retrieves a report by build id.
	Get(ctx context.Context, buildID string) (*models.ReportRecord, error)
	// List retrieves reports, most recently updated first.
	List(ctx context.Context, filter ListFilter) ([]*models.ReportRecord, error)
}

// Store is the main interface for database operations.
type Store interface {
	// Reports returns the ReportStore.
	Reports() ReportStore
	// WithTx executes fn within a transaction.
	WithTx(ctx context.Context, fn func(Store) error) error
	// Close releases the underlying connection.
	Close() error
}
