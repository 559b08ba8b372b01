package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aevon-lab/classgroup/internal/core/storage"
	"github.com/aevon-lab/classgroup/internal/core/value"
)

// Dataset is an in-memory implementation of storage.Dataset.
// Useful for testing and for small datasets kept in YAML files.
type Dataset struct {
	mu      sync.RWMutex
	name    string
	idField string
	fields  []storage.FieldSpec
	rows    []*row
	byID    map[int64]*row
	nextID  int64
}

type row struct {
	id     int64
	values map[string]value.Value
}

// NewDataset creates an empty dataset with the given schema. The id field is
// implicit and must not appear in fields.
func NewDataset(name, idField string, fields []storage.FieldSpec) *Dataset {
	d := &Dataset{
		name:    name,
		idField: idField,
		byID:    make(map[int64]*row),
		nextID:  1,
	}
	d.fields = append(d.fields, fields...)
	return d
}

// Append adds a record and returns its id. Fields not present in values are null.
func (d *Dataset) Append(values map[string]value.Value) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.insertLocked(id, values)
	return id
}

func (d *Dataset) insertLocked(id int64, values map[string]value.Value) {
	r := &row{id: id, values: make(map[string]value.Value, len(d.fields))}
	for _, f := range d.fields {
		v, ok := values[f.Name]
		if !ok {
			v = value.Null
		}
		r.values[f.Name] = v
	}
	d.rows = append(d.rows, r)
	d.byID[id] = r
	if id >= d.nextID {
		d.nextID = id + 1
	}
}

// Get returns a copy of the record with the given id.
func (d *Dataset) Get(id int64) (map[string]value.Value, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.byID[id]
	if !ok {
		return nil, false
	}
	return copyValues(r.values), true
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rows)
}

// Fields returns a copy of the schema, excluding the id field.
func (d *Dataset) Fields() []storage.FieldSpec {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]storage.FieldSpec, len(d.fields))
	copy(out, d.fields)
	return out
}

func (d *Dataset) Name() string { return d.name }

func (d *Dataset) IDField() string { return d.idField }

func (d *Dataset) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ValidateFieldName replaces every character outside [A-Za-z0-9_] with an
// underscore and prefixes names that start with a digit.
func (d *Dataset) ValidateFieldName(name string) string {
	var sb strings.Builder
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if isIdentPart(ch) {
			sb.WriteByte(ch)
		} else {
			sb.WriteByte('_')
		}
	}
	out := sb.String()
	if out == "" || isDigit(out[0]) {
		out = "_" + out
	}
	return out
}

func (d *Dataset) FieldExists(ctx context.Context, name string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if name == d.idField {
		return true, nil
	}
	_, ok := d.fieldLocked(name)
	return ok, nil
}

func (d *Dataset) AddField(ctx context.Context, spec storage.FieldSpec) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if spec.Name == "" {
		return fmt.Errorf("add field: empty name")
	}
	if _, ok := d.fieldLocked(spec.Name); ok || spec.Name == d.idField {
		return fmt.Errorf("add field %q: %w", spec.Name, storage.ErrFieldExists)
	}
	switch spec.Type {
	case storage.FieldTypeLong, storage.FieldTypeDouble, storage.FieldTypeText:
	default:
		return fmt.Errorf("add field %q: unsupported type %q", spec.Name, spec.Type)
	}

	if err := checkAssignable(spec, spec.Default); err != nil {
		return fmt.Errorf("add field %q: default: %w", spec.Name, err)
	}

	d.fields = append(d.fields, spec)
	for _, r := range d.rows {
		r.values[spec.Name] = spec.Default
	}
	return nil
}

func (d *Dataset) ScanField(ctx context.Context, field string, fn func(value.Value) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if field != d.idField {
		if _, ok := d.fieldLocked(field); !ok {
			return fmt.Errorf("scan %q: %w", field, storage.ErrFieldNotFound)
		}
	}

	for _, r := range d.rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(d.valueLocked(r, field)); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dataset) Select(ctx context.Context, fields []string, where string, nullValues map[string]value.Value) ([]storage.Record, error) {
	cond, err := parseWhere(where)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, f := range fields {
		if _, ok := d.fieldLocked(f); !ok && f != d.idField {
			return nil, fmt.Errorf("select %q: %w", f, storage.ErrFieldNotFound)
		}
	}

	var out []storage.Record
	for _, r := range d.rows {
		view := copyValues(r.values)
		view[d.idField] = value.Int(r.id)

		ok, err := matches(cond, view)
		if err != nil {
			return nil, fmt.Errorf("evaluate where clause: %w", err)
		}
		if !ok {
			continue
		}

		rec := storage.Record{ID: r.id, Values: make(map[string]value.Value, len(fields))}
		for _, f := range fields {
			v := view[f]
			if sub, ok := nullValues[f]; ok && v.IsNull() {
				v = sub
			}
			rec.Values[f] = v
		}
		out = append(out, rec)
	}
	return out, nil
}

func (d *Dataset) UpdateRecords(ctx context.Context, fields []string, records []storage.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	specs := make([]storage.FieldSpec, len(fields))
	for i, f := range fields {
		if f == d.idField {
			return fmt.Errorf("update: id field %q is read-only", f)
		}
		spec, ok := d.fieldLocked(f)
		if !ok {
			return fmt.Errorf("update %q: %w", f, storage.ErrFieldNotFound)
		}
		specs[i] = spec
	}

	// validate everything before touching any row
	for _, rec := range records {
		for _, spec := range specs {
			if err := checkAssignable(spec, rec.Values[spec.Name]); err != nil {
				return fmt.Errorf("update record %d: %w", rec.ID, err)
			}
		}
	}

	for _, rec := range records {
		r, ok := d.byID[rec.ID]
		if !ok {
			continue
		}
		for _, spec := range specs {
			r.values[spec.Name] = rec.Values[spec.Name]
		}
	}
	return nil
}

func (d *Dataset) fieldLocked(name string) (storage.FieldSpec, bool) {
	for _, f := range d.fields {
		if f.Name == name {
			return f, true
		}
	}
	return storage.FieldSpec{}, false
}

func (d *Dataset) valueLocked(r *row, field string) value.Value {
	if field == d.idField {
		return value.Int(r.id)
	}
	return r.values[field]
}

func checkAssignable(spec storage.FieldSpec, v value.Value) error {
	if v.IsNull() {
		if !spec.Nullable {
			return fmt.Errorf("field %q does not accept null", spec.Name)
		}
		return nil
	}
	switch spec.Type {
	case storage.FieldTypeLong:
		if v.Kind != value.KindNumber || !v.Num.IsInteger() {
			return fmt.Errorf("type mismatch: field %q is LONG, got %s %q", spec.Name, v.Kind, v.String())
		}
	case storage.FieldTypeDouble:
		if v.Kind != value.KindNumber {
			return fmt.Errorf("type mismatch: field %q is DOUBLE, got %s", spec.Name, v.Kind)
		}
	case storage.FieldTypeText:
		if v.Kind != value.KindText {
			return fmt.Errorf("type mismatch: field %q is TEXT, got %s", spec.Name, v.Kind)
		}
		if spec.Length > 0 && len(v.Str) > spec.Length {
			return fmt.Errorf("value of %d bytes exceeds length %d of field %q", len(v.Str), spec.Length, spec.Name)
		}
	}
	return nil
}

func copyValues(in map[string]value.Value) map[string]value.Value {
	out := make(map[string]value.Value, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
