package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/V4T54L/hekad-gateway/internal/domain"
)

// Schema creates the crash table if it does not exist.
const Schema = `
CREATE TABLE IF NOT EXISTS daemon_crashes (
	run_id       UUID PRIMARY KEY,
	process_name TEXT NOT NULL,
	exit_code    INTEGER NOT NULL,
	state        TEXT NOT NULL,
	detail       TEXT NOT NULL,
	last_output  TEXT[] NOT NULL,
	occurred_at  TIMESTAMPTZ NOT NULL
);`

const insertCrash = `
	INSERT INTO daemon_crashes (run_id, process_name, exit_code, state, detail, last_output, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (run_id) DO NOTHING;`

// CrashRepository implements domain.CrashRepository for PostgreSQL.
type CrashRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCrashRepository creates a new PostgreSQL crash repository.
func NewCrashRepository(db *sql.DB, logger *slog.Logger) *CrashRepository {
	return &CrashRepository{db: db, logger: logger.With("component", "crash_repository")}
}

// EnsureSchema creates the backing table.
func (r *CrashRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create daemon_crashes table: %w", err)
	}
	return nil
}

// SaveCrash stores report. Saving the same run twice is a no-op.
func (r *CrashRepository) SaveCrash(ctx context.Context, report domain.CrashReport) error {
	lastOutput := report.LastOutput
	if lastOutput == nil {
		lastOutput = []string{}
	}
	_, err := r.db.ExecContext(ctx, insertCrash,
		report.RunID,
		report.ProcessName,
		report.ExitCode,
		string(report.State),
		report.Detail,
		pq.Array(lastOutput),
		report.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert crash report: %w", err)
	}
	r.logger.Info("Saved crash report", "run_id", report.RunID)
	return nil
}
