package storage

import (
	"context"
	"errors"

	"github.com/aevon-lab/classgroup/internal/core/value"
)

var (
	// ErrDatasetNotFound is returned when the referenced table or fixture does not exist.
	ErrDatasetNotFound = errors.New("dataset not found")
	// ErrFieldNotFound is returned when a named field is not part of the dataset schema.
	ErrFieldNotFound = errors.New("field not found")
	// ErrFieldExists is returned by AddField when the field is already present.
	ErrFieldExists = errors.New("field already exists")
	// ErrInvalidReference is returned for a dataset reference that cannot be parsed.
	ErrInvalidReference = errors.New("invalid dataset reference")
	// ErrUnsupportedIDType is returned when the id field cannot key records as integers.
	ErrUnsupportedIDType = errors.New("unsupported id field type")
)

// FieldType is the portable type name used when adding fields.
type FieldType string

const (
	FieldTypeLong   FieldType = "LONG"
	FieldTypeDouble FieldType = "DOUBLE"
	FieldTypeText   FieldType = "TEXT"
)

// FieldSpec describes a field to add. Zero Precision/Scale/Length mean
// "backend default". Existing records receive Default.
type FieldSpec struct {
	Name      string
	Type      FieldType
	Precision int
	Scale     int
	Length    int
	Nullable  bool
	Default   value.Value
}

// Record is one row restricted to a set of fields, keyed by its row id.
type Record struct {
	ID     int64
	Values map[string]value.Value
}

// Dataset is the read/introspect/update boundary of an external tabular store.
type Dataset interface {
	// Name returns the dataset reference as given by the caller.
	Name() string

	// IDField returns the name of the stable row identifier field.
	IDField() string

	// QuoteIdentifier delimits a field name the way the backing engine expects.
	QuoteIdentifier(name string) string

	// ValidateFieldName rewrites a proposed field name into one the backend accepts.
	ValidateFieldName(name string) string

	FieldExists(ctx context.Context, name string) (bool, error)

	AddField(ctx context.Context, spec FieldSpec) error

	// ScanField reads every value of one field across all records, calling fn once per record.
	ScanField(ctx context.Context, field string, fn func(value.Value) error) error

	// Select reads fields for all records matching where. Null values of a
	// field listed in nullValues are replaced by the mapped value. The id field
	// is always populated in Record.ID and need not appear in fields.
	Select(ctx context.Context, fields []string, where string, nullValues map[string]value.Value) ([]Record, error)

	// UpdateRecords overwrites fields of the given records, matched by id.
	// Unlisted records and fields are untouched.
	UpdateRecords(ctx context.Context, fields []string, records []Record) error
}
