package classgroup

import (
	"context"
	"errors"
	"testing"

	coreerrors "github.com/aevon-lab/classgroup/internal/core/errors"
	"github.com/aevon-lab/classgroup/internal/core/storage"
	"github.com/aevon-lab/classgroup/internal/core/storage/memory"
	"github.com/aevon-lab/classgroup/internal/core/value"
	storagemocks "github.com/aevon-lab/classgroup/internal/mocks/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type abRow struct {
	a value.Value
	b value.Value
}

func newDataset(rows ...abRow) *memory.Dataset {
	ds := memory.NewDataset("features", "OBJECTID", []storage.FieldSpec{
		{Name: "A", Type: storage.FieldTypeLong, Nullable: true},
		{Name: "B", Type: storage.FieldTypeText, Nullable: true},
	})
	for _, r := range rows {
		ds.Append(map[string]value.Value{"A": r.a, "B": r.b})
	}
	return ds
}

func groupOf(t *testing.T, ds *memory.Dataset, id int64) (string, string) {
	t.Helper()
	rec, ok := ds.Get(id)
	require.True(t, ok, "record %d missing", id)
	return rec["GROUP_Num"].String(), rec["GROUP_Text"].String()
}

type fakeJournal struct {
	runs []*Summary
	err  error
}

func (j *fakeJournal) RecordRun(ctx context.Context, s *Summary) error {
	j.runs = append(j.runs, s)
	return j.err
}

func TestRun_AssignsGroupsInEnumerationOrder(t *testing.T) {
	ds := newDataset(
		abRow{value.Int(2), value.Text("y")},
		abRow{value.Int(1), value.Text("x")},
		abRow{value.Int(2), value.Text("x")},
		abRow{value.Int(1), value.Text("y")},
		abRow{value.Int(1), value.Text("x")},
	)
	journal := &fakeJournal{}

	summary, err := NewRunner(ds, journal).Run(context.Background(), Config{Fields: []string{"A", "B"}})
	require.NoError(t, err)

	assert.Equal(t, StateDone, summary.State)
	assert.Equal(t, int64(4), summary.Combinations)
	assert.Equal(t, int64(4), summary.Applied)
	assert.Equal(t, int64(0), summary.Skipped)
	assert.Equal(t, int64(5), summary.Matched)
	assert.Equal(t, "GROUP_Num", summary.NumField)
	assert.Equal(t, "GROUP_Text", summary.TextField)

	want := map[int64][2]string{
		1: {"4", `"A" = 2 AND "B" = 'y'`},
		2: {"1", `"A" = 1 AND "B" = 'x'`},
		3: {"3", `"A" = 2 AND "B" = 'x'`},
		4: {"2", `"A" = 1 AND "B" = 'y'`},
		5: {"1", `"A" = 1 AND "B" = 'x'`},
	}
	for id, w := range want {
		num, text := groupOf(t, ds, id)
		assert.Equal(t, w[0], num, "record %d", id)
		assert.Equal(t, w[1], text, "record %d", id)
	}

	require.Len(t, journal.runs, 1)
	assert.Equal(t, summary.RunID, journal.runs[0].RunID)
	assert.False(t, journal.runs[0].FinishedAt.IsZero())
}

func TestRun_UnmatchedKeepSentinels(t *testing.T) {
	ds := newDataset(
		abRow{value.Int(1), value.Text("x")},
		abRow{value.Int(1), value.Null},
		abRow{value.Int(0), value.Text("x")},
	)

	summary, err := NewRunner(ds, nil).Run(context.Background(), Config{
		Fields:      []string{"A", "B"},
		FilterFalsy: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Combinations)

	num, text := groupOf(t, ds, 1)
	assert.Equal(t, "1", num)
	assert.Equal(t, `"A" = 1 AND "B" = 'x'`, text)

	for _, id := range []int64{2, 3} {
		num, text := groupOf(t, ds, id)
		assert.Equal(t, "0", num)
		assert.Equal(t, NoData, text)
	}
}

func TestRun_NullIsADistinctValue(t *testing.T) {
	ds := newDataset(
		abRow{value.Int(1), value.Text("x")},
		abRow{value.Int(1), value.Null},
		abRow{value.Int(2), value.Null},
	)

	summary, err := NewRunner(ds, nil).Run(context.Background(), Config{Fields: []string{"A", "B"}})
	require.NoError(t, err)

	// A {1,2} x B {null,x}
	assert.Equal(t, int64(4), summary.Combinations)
	assert.Equal(t, int64(3), summary.Matched)

	num, text := groupOf(t, ds, 2)
	assert.Equal(t, "1", num)
	assert.Equal(t, `"A" = 1 AND "B" IS NULL`, text)

	num, text = groupOf(t, ds, 3)
	assert.Equal(t, "3", num)
	assert.Equal(t, `"A" = 2 AND "B" IS NULL`, text)
}

func TestRun_RerunIsIdempotent(t *testing.T) {
	ds := newDataset(
		abRow{value.Int(1), value.Text("x")},
		abRow{value.Int(2), value.Text("y")},
	)
	runner := NewRunner(ds, nil)

	first, err := runner.Run(context.Background(), Config{Fields: []string{"A", "B"}})
	require.NoError(t, err)

	// stale value from an earlier grouping is overwritten
	require.NoError(t, ds.UpdateRecords(context.Background(), []string{"GROUP_Num"}, []storage.Record{
		{ID: 1, Values: map[string]value.Value{"GROUP_Num": value.Int(99)}},
	}))

	second, err := runner.Run(context.Background(), Config{Fields: []string{"A", "B"}})
	require.NoError(t, err)
	assert.Equal(t, first.Applied, second.Applied)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Len(t, ds.Fields(), 4)

	num, _ := groupOf(t, ds, 1)
	assert.Equal(t, "1", num)
}

func TestRun_FieldOrderKeepsPartition(t *testing.T) {
	rows := []abRow{
		{value.Int(1), value.Text("x")},
		{value.Int(2), value.Text("x")},
		{value.Int(1), value.Text("y")},
		{value.Int(1), value.Text("x")},
		{value.Int(2), value.Null},
	}

	partition := func(fields []string) map[string][]int64 {
		ds := newDataset(rows...)
		_, err := NewRunner(ds, nil).Run(context.Background(), Config{Fields: fields})
		require.NoError(t, err)

		groups := map[string][]int64{}
		for id := int64(1); id <= int64(len(rows)); id++ {
			num, _ := groupOf(t, ds, id)
			groups[num] = append(groups[num], id)
		}
		return groups
	}

	canonical := func(groups map[string][]int64) [][]int64 {
		var out [][]int64
		for id := int64(1); id <= int64(len(rows)); id++ {
			for _, members := range groups {
				if members[0] == id {
					out = append(out, members)
				}
			}
		}
		return out
	}

	assert.Equal(t, canonical(partition([]string{"A", "B"})), canonical(partition([]string{"B", "A"})))
}

// failingDataset rejects writes for one predicate.
type failingDataset struct {
	*memory.Dataset
	failOn string
	lastQ  string
}

func (f *failingDataset) Select(ctx context.Context, fields []string, where string, nullValues map[string]value.Value) ([]storage.Record, error) {
	f.lastQ = where
	return f.Dataset.Select(ctx, fields, where, nullValues)
}

func (f *failingDataset) UpdateRecords(ctx context.Context, fields []string, records []storage.Record) error {
	if f.lastQ == f.failOn {
		return errors.New("write conflict")
	}
	return f.Dataset.UpdateRecords(ctx, fields, records)
}

func TestRun_SkipsFailingCombination(t *testing.T) {
	mem := newDataset(
		abRow{value.Int(1), value.Text("x")},
		abRow{value.Int(1), value.Text("y")},
		abRow{value.Int(2), value.Text("x")},
	)
	ds := &failingDataset{Dataset: mem, failOn: `"A" = 1 AND "B" = 'y'`}

	summary, err := NewRunner(ds, nil).Run(context.Background(), Config{Fields: []string{"A", "B"}})
	require.NoError(t, err)
	assert.Equal(t, StateDone, summary.State)
	assert.Equal(t, int64(4), summary.Combinations)
	assert.Equal(t, int64(3), summary.Applied)
	assert.Equal(t, int64(1), summary.Skipped)

	num, text := groupOf(t, mem, 2)
	assert.Equal(t, "0", num)
	assert.Equal(t, NoData, text)

	// the counter does not advance past a skipped combination
	num, _ = groupOf(t, mem, 3)
	assert.Equal(t, "2", num)
}

func TestRun_TypeMismatchIsSkippedNotFatal(t *testing.T) {
	ds := newDataset(abRow{value.Int(1), value.Text("x")})
	// a text label longer than the field allows fails every write
	require.NoError(t, ds.AddField(context.Background(), storage.FieldSpec{
		Name: "GROUP_Text", Type: storage.FieldTypeText, Length: 3, Nullable: true,
	}))

	summary, err := NewRunner(ds, nil).Run(context.Background(), Config{Fields: []string{"A", "B"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Skipped)
	assert.Equal(t, int64(0), summary.Applied)
}

func TestRun_NoFieldsIsFatal(t *testing.T) {
	ds := newDataset()
	summary, err := NewRunner(ds, nil).Run(context.Background(), Config{Fields: []string{" ", ""}})

	var se *coreerrors.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, coreerrors.StageConfig, se.Stage)
	assert.Equal(t, StateInit, summary.State)
}

func TestRun_UnknownFieldIsFatal(t *testing.T) {
	ds := newDataset(abRow{value.Int(1), value.Text("x")})
	journal := &fakeJournal{err: errors.New("journal down")}

	summary, err := NewRunner(ds, journal).Run(context.Background(), Config{Fields: []string{"A", "Missing"}})

	var se *coreerrors.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, coreerrors.StageScan, se.Stage)
	require.ErrorIs(t, err, storage.ErrFieldNotFound)
	assert.Equal(t, StateFieldsEnsured, summary.State)
	require.Len(t, journal.runs, 1)
}

func TestRun_FieldSetupFailuresAreFatal(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name  string
		setup func(ds *storagemocks.Dataset)
	}{
		{
			name: "field check fails",
			setup: func(ds *storagemocks.Dataset) {
				ds.On("FieldExists", mock.Anything, "GROUP_Num").Return(false, boom).Once()
			},
		},
		{
			name: "add field fails",
			setup: func(ds *storagemocks.Dataset) {
				ds.On("FieldExists", mock.Anything, "GROUP_Num").Return(true, nil).Once()
				ds.On("FieldExists", mock.Anything, "GROUP_Text").Return(false, nil).Once()
				ds.On("AddField", mock.Anything, mock.MatchedBy(func(spec storage.FieldSpec) bool {
					return spec.Name == "GROUP_Text" && spec.Type == storage.FieldTypeText
				})).Return(boom).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := storagemocks.NewDataset(t)
			ds.On("Name").Return("features")
			ds.On("ValidateFieldName", "GROUP_Num").Return("GROUP_Num")
			ds.On("ValidateFieldName", "GROUP_Text").Return("GROUP_Text")
			tt.setup(ds)

			summary, err := NewRunner(ds, nil).Run(context.Background(), Config{Fields: []string{"A"}})

			var se *coreerrors.StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, coreerrors.StageFields, se.Stage)
			require.ErrorIs(t, err, boom)
			assert.Equal(t, StateInit, summary.State)
		})
	}
}

func TestRun_AddsMissingFieldsWithSentinelDefaults(t *testing.T) {
	ds := storagemocks.NewDataset(t)
	ds.On("Name").Return("features")
	ds.On("ValidateFieldName", "zone_Num").Return("zone_num")
	ds.On("ValidateFieldName", "zone_Text").Return("zone_text")
	ds.On("FieldExists", mock.Anything, "zone_num").Return(false, nil).Once()
	ds.On("FieldExists", mock.Anything, "zone_text").Return(false, nil).Once()
	ds.On("AddField", mock.Anything, mock.MatchedBy(func(spec storage.FieldSpec) bool {
		return spec.Name == "zone_num" && spec.Type == storage.FieldTypeLong && spec.Default.Equal(value.Int(0))
	})).Return(nil).Once()
	ds.On("AddField", mock.Anything, mock.MatchedBy(func(spec storage.FieldSpec) bool {
		return spec.Name == "zone_text" && spec.Type == storage.FieldTypeText && spec.Default.Equal(value.Text(NoData))
	})).Return(nil).Once()
	ds.On("ScanField", mock.Anything, "zone", mock.Anything).Return(func(ctx context.Context, field string, fn func(value.Value) error) error {
		return fn(value.Text("R1"))
	}).Once()
	ds.On("QuoteIdentifier", "zone").Return(`"zone"`)
	ds.On("Select", mock.Anything, []string{"zone_num", "zone_text"}, `"zone" = 'R1'`, mock.Anything).
		Return([]storage.Record{
			{ID: 7, Values: map[string]value.Value{"zone_num": value.Int(0), "zone_text": value.Text(NoData)}},
		}, nil).Once()
	ds.On("UpdateRecords", mock.Anything, []string{"zone_num", "zone_text"}, mock.MatchedBy(func(recs []storage.Record) bool {
		return len(recs) == 1 && recs[0].ID == 7 &&
			recs[0].Values["zone_num"].Equal(value.Int(1)) &&
			recs[0].Values["zone_text"].Str == `"zone" = 'R1'`
	})).Return(nil).Once()

	summary, err := NewRunner(ds, nil).Run(context.Background(), Config{Fields: []string{"zone"}, BaseName: "zone"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Applied)
	assert.Equal(t, int64(1), summary.Matched)
}

func TestRun_CancelledContextAborts(t *testing.T) {
	ds := newDataset(
		abRow{value.Int(1), value.Text("x")},
		abRow{value.Int(2), value.Text("y")},
	)
	ctx, cancel := context.WithCancel(context.Background())

	canceller := &cancellingDataset{Dataset: ds, cancel: cancel}
	summary, err := NewRunner(canceller, nil).Run(ctx, Config{Fields: []string{"A", "B"}})

	var se *coreerrors.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, coreerrors.StageEnumerate, se.Stage)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateEnumerating, summary.State)
	assert.Equal(t, int64(1), summary.Applied)
}

// cancellingDataset cancels the run after the first successful write.
type cancellingDataset struct {
	*memory.Dataset
	cancel context.CancelFunc
}

func (c *cancellingDataset) UpdateRecords(ctx context.Context, fields []string, records []storage.Record) error {
	defer c.cancel()
	return c.Dataset.UpdateRecords(ctx, fields, records)
}

func TestParseFields(t *testing.T) {
	assert.Equal(t, []string{"CBSA_POP", "D5cri"}, ParseFields("CBSA_POP;D5cri"))
	assert.Equal(t, []string{"a", "b"}, ParseFields(" a ; ;b;"))
	assert.Empty(t, ParseFields(""))
}

func TestConfigNormalized(t *testing.T) {
	cfg := Config{Fields: []string{" A ", ""}}.normalized()
	assert.Equal(t, []string{"A"}, cfg.Fields)
	assert.Equal(t, "GROUP", cfg.BaseName)
	assert.Equal(t, "AND", cfg.ChainOperator)
	assert.Equal(t, int64(1000), cfg.VerboseLimit)
}
