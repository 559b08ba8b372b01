package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/aevon-lab/classgroup/internal/classgroup"
	"github.com/lib/pq"
)

// JournalAdapter appends run summaries to class_group_runs.
type JournalAdapter struct {
	db            *sql.DB
	stmtInsertRun *sql.Stmt
}

var _ classgroup.Journal = (*JournalAdapter)(nil)

// NewJournalAdapter prepares the insert statement on db. The table is
// created by the migrations package.
func NewJournalAdapter(db *sql.DB) (*JournalAdapter, error) {
	stmt, err := db.Prepare(queryInsertRun)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert run statement: %w", err)
	}
	return &JournalAdapter{db: db, stmtInsertRun: stmt}, nil
}

// RecordRun inserts one run summary.
func (j *JournalAdapter) RecordRun(ctx context.Context, s *classgroup.Summary) error {
	_, err := j.stmtInsertRun.ExecContext(ctx,
		s.RunID.String(),
		s.Dataset,
		pq.Array(s.Fields),
		s.NumField,
		s.TextField,
		s.Combinations,
		s.Applied,
		s.Skipped,
		s.Matched,
		string(s.State),
		s.StartedAt,
		s.FinishedAt,
	)
	if err != nil {
		return mapError(err, "record run")
	}

	slog.Info("[Journal] Recorded run", "run_id", s.RunID, "state", s.State)
	return nil
}

// Close releases the prepared statement. The pool belongs to the Adapter.
func (j *JournalAdapter) Close() error {
	if err := j.stmtInsertRun.Close(); err != nil {
		return fmt.Errorf("failed to close journal statement: %w", err)
	}
	return nil
}
