package classgroup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	coreerrors "github.com/aevon-lab/classgroup/internal/core/errors"
	"github.com/aevon-lab/classgroup/internal/core/grouping"
	"github.com/aevon-lab/classgroup/internal/core/storage"
	"github.com/aevon-lab/classgroup/internal/core/value"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

const (
	defaultBaseName     = "GROUP"
	defaultVerboseLimit = 1000

	// NoData is the label kept by records that match no combination.
	NoData = "No Data"
)

// State is the position of a run in its lifecycle.
type State string

const (
	StateInit          State = "init"
	StateFieldsEnsured State = "fields_ensured"
	StateScanned       State = "scanned"
	StateEnumerating   State = "enumerating"
	StateDone          State = "done"
)

// Config is everything a run needs besides the dataset itself.
type Config struct {
	Fields        []string
	BaseName      string
	FilterFalsy   bool
	ChainOperator string
	// VerboseLimit is the highest combination count for which each
	// predicate is logged as it is processed.
	VerboseLimit int64
}

func (c Config) normalized() Config {
	n := c
	n.Fields = make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		if f = strings.TrimSpace(f); f != "" {
			n.Fields = append(n.Fields, f)
		}
	}
	if strings.TrimSpace(n.BaseName) == "" {
		n.BaseName = defaultBaseName
	}
	if strings.TrimSpace(n.ChainOperator) == "" {
		n.ChainOperator = grouping.DefaultChainOperator
	}
	if n.VerboseLimit <= 0 {
		n.VerboseLimit = defaultVerboseLimit
	}
	return n
}

// ParseFields splits a semicolon separated field list, dropping blanks.
func ParseFields(list string) []string {
	var fields []string
	for _, f := range strings.Split(list, ";") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// Summary describes a finished (or aborted) run.
type Summary struct {
	RunID        uuid.UUID
	Dataset      string
	Fields       []string
	NumField     string
	TextField    string
	Combinations int64
	Applied      int64
	Skipped      int64
	Matched      int64
	State        State
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Journal records run summaries.
type Journal interface {
	RecordRun(ctx context.Context, summary *Summary) error
}

// Runner assigns group ids and labels to the records of one dataset.
type Runner struct {
	ds      storage.Dataset
	journal Journal
	now     func() time.Time
}

// NewRunner creates a runner for ds. journal may be nil.
func NewRunner(ds storage.Dataset, journal Journal) *Runner {
	return &Runner{ds: ds, journal: journal, now: time.Now}
}

// Run executes a full grouping pass. Failures while adding fields or scanning
// are fatal; a failure on a single combination is logged and skipped.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Summary, error) {
	cfg = cfg.normalized()

	summary := &Summary{
		RunID:     uuid.New(),
		Dataset:   r.ds.Name(),
		Fields:    cfg.Fields,
		State:     StateInit,
		StartedAt: r.now(),
	}
	defer r.record(summary)

	if len(cfg.Fields) == 0 {
		return summary, coreerrors.Fatal(coreerrors.StageConfig, fmt.Errorf("no input fields given"))
	}

	slog.Info("[ClassGroup] Adding class fields",
		"run_id", summary.RunID,
		"dataset", summary.Dataset,
		"fields", cfg.Fields)

	summary.NumField = r.ds.ValidateFieldName(cfg.BaseName + "_Num")
	summary.TextField = r.ds.ValidateFieldName(cfg.BaseName + "_Text")
	if err := r.ensureField(ctx, storage.FieldSpec{
		Name:     summary.NumField,
		Type:     storage.FieldTypeLong,
		Nullable: true,
		Default:  value.Int(0),
	}); err != nil {
		return summary, coreerrors.Fatal(coreerrors.StageFields, err)
	}
	if err := r.ensureField(ctx, storage.FieldSpec{
		Name:     summary.TextField,
		Type:     storage.FieldTypeText,
		Nullable: true,
		Default:  value.Text(NoData),
	}); err != nil {
		return summary, coreerrors.Fatal(coreerrors.StageFields, err)
	}
	summary.State = StateFieldsEnsured

	slog.Info("[ClassGroup] Computing unique values for input fields")
	uniqueLists, counts, err := grouping.UniqueValueLists(ctx, r.ds, cfg.Fields, cfg.FilterFalsy)
	if err != nil {
		return summary, coreerrors.Fatal(coreerrors.StageScan, err)
	}

	product := grouping.NewProduct(uniqueLists)
	summary.Combinations = product.Count()
	summary.State = StateScanned

	slog.Info("[ClassGroup] Generated combinatorial product",
		"combinations", humanize.Comma(summary.Combinations),
		"unique_counts", counts)
	for _, w := range grouping.SizeWarnings(summary.Combinations) {
		slog.Warn("[ClassGroup] " + w.Message)
	}

	slog.Info("[ClassGroup] Constructing class groups")
	summary.State = StateEnumerating
	verbose := summary.Combinations <= cfg.VerboseLimit
	counter := int64(1)

	for {
		tuple, ok := product.Next()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return summary, coreerrors.Fatal(coreerrors.StageEnumerate, err)
		}

		query := grouping.Chained(r.ds, cfg.Fields, tuple, cfg.ChainOperator, grouping.DefaultEqualityOperator)
		if verbose {
			slog.Info("[ClassGroup] Processing query", "query", query)
		}

		matched, err := r.apply(ctx, summary, query, counter)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return summary, coreerrors.Fatal(coreerrors.StageEnumerate, err)
			}
			slog.Error("[ClassGroup] Skipped query", "query", query, "error", err)
			summary.Skipped++
			continue
		}

		summary.Applied++
		summary.Matched += int64(matched)
		counter++
	}

	summary.State = StateDone
	slog.Info("[ClassGroup] Completed successfully",
		"run_id", summary.RunID,
		"combinations", summary.Combinations,
		"applied", summary.Applied,
		"skipped", summary.Skipped,
		"records_matched", summary.Matched)

	return summary, nil
}

func (r *Runner) ensureField(ctx context.Context, spec storage.FieldSpec) error {
	exists, err := r.ds.FieldExists(ctx, spec.Name)
	if err != nil {
		return fmt.Errorf("check field %q: %w", spec.Name, err)
	}
	if exists {
		slog.Info("[ClassGroup] Field exists", "field", spec.Name)
		return nil
	}

	slog.Info("[ClassGroup] Adding field", "field", spec.Name, "type", spec.Type)
	if err := r.ds.AddField(ctx, spec); err != nil {
		return fmt.Errorf("add field %q: %w", spec.Name, err)
	}
	return nil
}

// apply stamps every record matching query with id and the query itself as
// label, returning the number of records written.
func (r *Runner) apply(ctx context.Context, summary *Summary, query string, id int64) (int, error) {
	fields := []string{summary.NumField, summary.TextField}
	records, err := r.ds.Select(ctx, fields, query, map[string]value.Value{
		summary.NumField:  value.Int(0),
		summary.TextField: value.Text(NoData),
	})
	if err != nil {
		return 0, fmt.Errorf("select records: %w", err)
	}

	label := value.Text(query)
	num := value.Int(id)
	for i := range records {
		records[i].Values[summary.NumField] = num
		records[i].Values[summary.TextField] = label
	}

	if err := r.ds.UpdateRecords(ctx, fields, records); err != nil {
		return 0, fmt.Errorf("update records: %w", err)
	}
	return len(records), nil
}

func (r *Runner) record(summary *Summary) {
	summary.FinishedAt = r.now()
	if r.journal == nil {
		return
	}

	// the run context may already be cancelled; the journal entry still matters
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.journal.RecordRun(ctx, summary); err != nil {
		slog.Error("[ClassGroup] Failed to record run", "run_id", summary.RunID, "error", err)
	}
}
