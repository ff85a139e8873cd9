package postgres

import (
	"errors"
	"strings"

	"github.com/narvanalabs/codebuild-runner/internal/store"
)

// Common store errors.
var (
	// ErrNotFound is returned when a requested report does not exist.
	ErrNotFound = store.ErrNotFound

	// ErrMissingBuildID is returned when saving a report without a build id.
	ErrMissingBuildID = errors.New("report has no build id")
)

// isUndefinedTable checks if the error is a PostgreSQL undefined_table error.
func isUndefinedTable(err error) bool {
	if err == nil {
		return false
	}
	// 42P01 is undefined_table
	return strings.Contains(err.Error(), "42P01") ||
		strings.Contains(err.Error(), "does not exist")
}
