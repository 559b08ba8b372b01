package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aevon-lab/classgroup/internal/classgroup"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestJournalAdapter_RecordRun(t *testing.T) {
	started := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)
	summary := &classgroup.Summary{
		RunID:        uuid.MustParse("0b7ad0b6-8f7a-4c1e-9e3b-2d55f1f0c001"),
		Dataset:      "gis.parcels",
		Fields:       []string{"zone", "use"},
		NumField:     "group_num",
		TextField:    "group_text",
		Combinations: 6,
		Applied:      5,
		Skipped:      1,
		Matched:      40,
		State:        classgroup.StateDone,
		StartedAt:    started,
		FinishedAt:   started.Add(3 * time.Second),
	}

	tests := []struct {
		name      string
		execErr   error
		wantError bool
	}{
		{name: "success"},
		{name: "insert failure", execErr: errors.New("relation missing"), wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectPrepare(regexp.QuoteMeta(queryInsertRun))
			journal, err := NewJournalAdapter(db)
			require.NoError(t, err)

			exec := mock.ExpectExec(regexp.QuoteMeta(queryInsertRun)).
				WithArgs(
					summary.RunID.String(),
					summary.Dataset,
					sqlmock.AnyArg(),
					summary.NumField,
					summary.TextField,
					summary.Combinations,
					summary.Applied,
					summary.Skipped,
					summary.Matched,
					string(summary.State),
					summary.StartedAt,
					summary.FinishedAt,
				)
			if tt.execErr != nil {
				exec.WillReturnError(tt.execErr)
			} else {
				exec.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			err = journal.RecordRun(context.Background(), summary)
			if tt.wantError {
				require.ErrorIs(t, err, tt.execErr)
			} else {
				require.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestNewJournalAdapter_PrepareError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare(regexp.QuoteMeta(queryInsertRun)).WillReturnError(errors.New("no table"))

	_, err = NewJournalAdapter(db)
	require.Error(t, err)
}
