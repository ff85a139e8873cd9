package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/narvanalabs/codebuild-runner/internal/api/errors"
	"github.com/narvanalabs/codebuild-runner/internal/api/middleware"
	"github.com/narvanalabs/codebuild-runner/internal/models"
	"github.com/narvanalabs/codebuild-runner/internal/store"
	"github.com/narvanalabs/codebuild-runner/internal/store/cache"
)

// Listing bounds for GET /v1/reports.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// ReportCache is the read side of the live report cache.
type ReportCache interface {
	GetReport(ctx context.Context, buildID string) (*models.ReportRecord, error)
	RecentBuildIDs(ctx context.Context, n int) ([]string, error)
}

// ReportHandler serves persisted reports, falling back to the cache for
// builds the database has not seen.
type ReportHandler struct {
	reports store.ReportStore
	cache   ReportCache
	logger  *slog.Logger
}

// NewReportHandler creates a report handler. Either backend may be nil.
func NewReportHandler(reports store.ReportStore, c ReportCache, logger *slog.Logger) *ReportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportHandler{reports: reports, cache: c, logger: logger}
}

// ListResponse is the body of GET /v1/reports.
type ListResponse struct {
	Reports []*models.ReportRecord `json:"reports"`
}

// List handles GET /v1/reports?project=&limit=.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	limit := DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxListLimit {
			writeError(w, r, apierrors.InvalidRequest("limit must be between 1 and %d", MaxListLimit).
				With("field", "limit"))
			return
		}
		limit = n
	}

	if claims := middleware.GetClaims(r.Context()); claims != nil && claims.Project != "" {
		if project != "" && project != claims.Project {
			writeError(w, r, apierrors.Forbidden("Access denied"))
			return
		}
		project = claims.Project
	}

	var (
		recs []*models.ReportRecord
		err  error
	)
	switch {
	case h.reports != nil:
		recs, err = h.reports.List(r.Context(), store.ListFilter{Project: project, Limit: limit})
	case h.cache != nil:
		recs, err = h.listCached(r.Context(), project, limit)
	default:
		writeError(w, r, apierrors.Unavailable("No report backend configured"))
		return
	}
	if err != nil {
		h.logger.Error("failed to list reports", "error", err, "project", project)
		writeError(w, r, apierrors.Internal("Failed to list reports"))
		return
	}
	if recs == nil {
		recs = []*models.ReportRecord{}
	}
	WriteJSON(w, http.StatusOK, ListResponse{Reports: recs})
}

// listCached pages through the recent index until limit matching reports
// are found. The index holds every project so a filtered listing may see
// fewer than limit results.
func (h *ReportHandler) listCached(ctx context.Context, project string, limit int) ([]*models.ReportRecord, error) {
	ids, err := h.cache.RecentBuildIDs(ctx, MaxListLimit)
	if err != nil {
		return nil, err
	}

	recs := make([]*models.ReportRecord, 0, limit)
	for _, id := range ids {
		rec, err := h.cache.GetReport(ctx, id)
		if errors.Is(err, cache.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if project != "" && rec.Project != project {
			continue
		}
		recs = append(recs, rec)
		if len(recs) == limit {
			break
		}
	}
	return recs, nil
}

// Get handles GET /v1/reports/{buildID}.
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	buildID := chi.URLParam(r, "buildID")
	if buildID == "" {
		writeError(w, r, apierrors.InvalidRequest("Build ID is required"))
		return
	}

	rec, apiErr := h.lookup(r.Context(), buildID)
	if apiErr != nil {
		writeError(w, r, apiErr)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

func (h *ReportHandler) hasBackend() bool {
	return h.reports != nil || h.cache != nil
}

// lookup finds the report of buildID and checks the caller may read it.
func (h *ReportHandler) lookup(ctx context.Context, buildID string) (*models.ReportRecord, *apierrors.APIError) {
	if !h.hasBackend() {
		return nil, apierrors.Unavailable("No report backend configured")
	}

	rec, err := h.find(ctx, buildID)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, cache.ErrNotFound) {
		return nil, apierrors.NotFound("Report not found")
	}
	if err != nil {
		h.logger.Error("failed to get report", "error", err, "build_id", buildID)
		return nil, apierrors.Internal("Failed to get report")
	}

	if claims := middleware.GetClaims(ctx); claims != nil && !claims.CanRead(rec.Project) {
		h.logger.Debug("report access denied", "subject", claims.Subject, "build_id", buildID)
		return nil, apierrors.NotFound("Report not found")
	}
	return rec, nil
}

func (h *ReportHandler) find(ctx context.Context, buildID string) (*models.ReportRecord, error) {
	if h.reports != nil {
		rec, err := h.reports.Get(ctx, buildID)
		if err == nil || h.cache == nil || !errors.Is(err, store.ErrNotFound) {
			return rec, err
		}
	}
	return h.cache.GetReport(ctx, buildID)
}
