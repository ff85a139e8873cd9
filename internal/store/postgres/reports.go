package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/narvanalabs/codebuild-runner/internal/models"
	"github.com/narvanalabs/codebuild-runner/internal/store"
)

// defaultListLimit caps List when the filter sets no limit.
const defaultListLimit = 50

// ReportStore implements store.ReportStore using PostgreSQL.
type ReportStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *ReportStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const reportColumns = `build_id, arn, project, invocation_id, start_time, status, current_phase,
	source_type, source_location, source_version, git_clone_depth, report_build_status,
	phases, logs, dashboard_url, s3_artifact_url, s3_bucket_name, artifact_type_override,
	cloudwatch_logs_url, s3_logs_url, artifacts_location, succeeded, updated_at`

// Save inserts rec or updates the stored report with the same build id.
// The stored log is only written on insert; use AppendLogs afterwards.
func (s *ReportStore) Save(ctx context.Context, rec *models.ReportRecord) error {
	if rec == nil || rec.BuildID == "" {
		return ErrMissingBuildID
	}

	phases, err := json.Marshal(nonNilPhases(rec.Phases))
	if err != nil {
		return fmt.Errorf("marshaling phases: %w", err)
	}
	logs := rec.Logs
	if logs == nil {
		logs = []string{}
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	query := `
		INSERT INTO build_reports (` + reportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (build_id) DO UPDATE SET
			arn = EXCLUDED.arn,
			status = EXCLUDED.status,
			current_phase = EXCLUDED.current_phase,
			start_time = EXCLUDED.start_time,
			phases = EXCLUDED.phases,
			cloudwatch_logs_url = EXCLUDED.cloudwatch_logs_url,
			s3_logs_url = EXCLUDED.s3_logs_url,
			artifacts_location = EXCLUDED.artifacts_location,
			succeeded = EXCLUDED.succeeded,
			updated_at = EXCLUDED.updated_at`

	_, err = s.conn().ExecContext(ctx, query,
		rec.BuildID,
		rec.ARN,
		rec.Project,
		rec.InvocationID,
		rec.StartTime,
		string(rec.Status),
		rec.CurrentPhase,
		rec.SourceType,
		rec.SourceLocation,
		rec.SourceVersion,
		rec.GitCloneDepth,
		rec.ReportBuildStatus,
		phases,
		pq.Array(logs),
		rec.DashboardURL,
		rec.S3ArtifactURL,
		rec.S3BucketName,
		rec.ArtifactTypeOverride,
		rec.CloudWatchLogsURL,
		rec.S3LogsURL,
		rec.ArtifactsLocation,
		rec.Succeeded,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving report: %w", err)
	}

	s.logger.Debug("report saved", "build_id", rec.BuildID, "status", rec.Status)
	return nil
}

// AppendLogs appends lines to the stored log of buildID.
func (s *ReportStore) AppendLogs(ctx context.Context, buildID string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}

	query := `UPDATE build_reports SET logs = logs || $2::text[], updated_at = NOW() WHERE build_id = $1`
	result, err := s.conn().ExecContext(ctx, query, buildID, pq.Array(lines))
	if err != nil {
		return fmt.Errorf("appending logs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Get retrieves a report by build id.
func (s *ReportStore) Get(ctx context.Context, buildID string) (*models.ReportRecord, error) {
	query := `SELECT ` + reportColumns + ` FROM build_reports WHERE build_id = $1`

	rec, err := scanReport(s.conn().QueryRowContext(ctx, query, buildID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		if isUndefinedTable(err) {
			return nil, fmt.Errorf("querying report (schema not applied?): %w", err)
		}
		return nil, fmt.Errorf("querying report: %w", err)
	}
	return rec, nil
}

// List retrieves reports, most recently updated first.
func (s *ReportStore) List(ctx context.Context, filter store.ListFilter) ([]*models.ReportRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `SELECT ` + reportColumns + ` FROM build_reports
		WHERE ($1 = '' OR project = $1)
		ORDER BY updated_at DESC
		LIMIT $2`

	rows, err := s.conn().QueryContext(ctx, query, filter.Project, limit)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.ReportRecord
	for rows.Next() {
		rec, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		reports = append(reports, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reports: %w", err)
	}
	return reports, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.ReportRecord, error) {
	var (
		rec       models.ReportRecord
		status    string
		startTime sql.NullTime
		phases    []byte
		logs      pq.StringArray
		succeeded sql.NullBool
	)

	err := row.Scan(
		&rec.BuildID,
		&rec.ARN,
		&rec.Project,
		&rec.InvocationID,
		&startTime,
		&status,
		&rec.CurrentPhase,
		&rec.SourceType,
		&rec.SourceLocation,
		&rec.SourceVersion,
		&rec.GitCloneDepth,
		&rec.ReportBuildStatus,
		&phases,
		&logs,
		&rec.DashboardURL,
		&rec.S3ArtifactURL,
		&rec.S3BucketName,
		&rec.ArtifactTypeOverride,
		&rec.CloudWatchLogsURL,
		&rec.S3LogsURL,
		&rec.ArtifactsLocation,
		&succeeded,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = models.BuildStatus(status)
	if startTime.Valid {
		t := startTime.Time
		rec.StartTime = &t
	}
	if succeeded.Valid {
		v := succeeded.Bool
		rec.Succeeded = &v
	}
	if len(phases) > 0 {
		if err := json.Unmarshal(phases, &rec.Phases); err != nil {
			return nil, fmt.Errorf("unmarshaling phases: %w", err)
		}
	}
	rec.Logs = []string(logs)
	return &rec, nil
}

func nonNilPhases(p []models.BuildPhase) []models.BuildPhase {
	if p == nil {
		return []models.BuildPhase{}
	}
	return p
}
