// Package postgres provides PostgreSQL implementation of the store interfaces.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/narvanalabs/codebuild-runner/internal/store"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db      *sql.DB
	logger  *slog.Logger
	reports *ReportStore
}

// Config holds PostgreSQL connection configuration.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(dsn string) *Config {
	return &Config{
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

// NewPostgresStore opens a connection pool and verifies it with a ping.
func NewPostgresStore(cfg *Config, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to PostgreSQL database")
	return newStore(db, logger), nil
}

func newStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:      db,
		logger:  logger,
		reports: &ReportStore{db: db, logger: logger},
	}
}

// EnsureSchema creates the report table and its index when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

// Reports returns the ReportStore.
func (s *PostgresStore) Reports() store.ReportStore {
	return s.reports
}

// WithTx executes the given function within a database transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(&txStore{tx: tx, logger: s.logger}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("failed to rollback transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	s.logger.Info("closing PostgreSQL connection")
	return s.db.Close()
}

// txStore wraps a transaction and implements the Store interface.
type txStore struct {
	tx      *sql.Tx
	logger  *slog.Logger
	reports *ReportStore
}

func (s *txStore) Reports() store.ReportStore {
	if s.reports == nil {
		s.reports = &ReportStore{tx: s.tx, logger: s.logger}
	}
	return s.reports
}

func (s *txStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	return fn(s)
}

func (s *txStore) Close() error {
	return nil
}

// queryable is an interface that both *sql.DB and *sql.Tx implement.
type queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS build_reports (
		build_id               TEXT PRIMARY KEY,
		arn                    TEXT NOT NULL DEFAULT '',
		project                TEXT NOT NULL,
		invocation_id          TEXT NOT NULL DEFAULT '',
		start_time             TIMESTAMPTZ,
		status                 VARCHAR(20) NOT NULL,
		current_phase          VARCHAR(40) NOT NULL DEFAULT '',
		source_type            TEXT NOT NULL DEFAULT '',
		source_location        TEXT NOT NULL DEFAULT '',
		source_version         TEXT NOT NULL DEFAULT '',
		git_clone_depth        TEXT NOT NULL DEFAULT '',
		report_build_status    TEXT NOT NULL DEFAULT '',
		phases                 JSONB NOT NULL DEFAULT '[]',
		logs                   TEXT[] NOT NULL DEFAULT '{}',
		dashboard_url          TEXT NOT NULL DEFAULT '',
		s3_artifact_url        TEXT NOT NULL DEFAULT '',
		s3_bucket_name         TEXT NOT NULL DEFAULT '',
		artifact_type_override TEXT NOT NULL DEFAULT '',
		cloudwatch_logs_url    TEXT NOT NULL DEFAULT '',
		s3_logs_url            TEXT NOT NULL DEFAULT '',
		artifacts_location     TEXT NOT NULL DEFAULT '',
		succeeded              BOOLEAN,
		updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_build_reports_project ON build_reports (project, updated_at DESC)`,
}
