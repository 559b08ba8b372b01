package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aevon-lab/classgroup/internal/core/storage"
	"github.com/aevon-lab/classgroup/internal/core/value"
	"github.com/lib/pq"
)

// Table implements storage.Dataset for one PostgreSQL (PostGIS) table.
type Table struct {
	db        *sql.DB
	ref       string
	schema    string
	name      string
	idField   string
	qualified string
}

var _ storage.Dataset = (*Table)(nil)

var integerTypes = map[string]bool{
	"smallint": true,
	"integer":  true,
	"bigint":   true,
}

// OpenTable resolves ref ("schema.table" or "table") and checks that the
// table exists and has an integer id column.
func (a *Adapter) OpenTable(ctx context.Context, ref, idField string) (*Table, error) {
	schema, name, err := parseTableRef(ref)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(idField) == "" {
		return nil, fmt.Errorf("%w: empty id field", storage.ErrInvalidReference)
	}

	t := &Table{
		db:        a.db,
		ref:       ref,
		schema:    schema,
		name:      name,
		idField:   idField,
		qualified: pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(name),
	}

	var exists bool
	if err := a.db.QueryRowContext(ctx, queryTableExists, schema, name).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check table %s: %w", t.qualified, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", storage.ErrDatasetNotFound, t.qualified)
	}

	var idType string
	err = a.db.QueryRowContext(ctx, queryColumnType, schema, name, idField).Scan(&idType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("id field %q of %s: %w", idField, t.qualified, storage.ErrFieldNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check id field %q: %w", idField, err)
	}
	// records are keyed by int64
	if !integerTypes[idType] {
		return nil, fmt.Errorf("id field %q of %s is %s: %w", idField, t.qualified, idType, storage.ErrUnsupportedIDType)
	}

	slog.Info("[Postgres] Opened table", "table", t.qualified, "id_field", idField)
	return t, nil
}

func (t *Table) Name() string { return t.ref }

func (t *Table) IDField() string { return t.idField }

func (t *Table) QuoteIdentifier(name string) string { return pq.QuoteIdentifier(name) }

func (t *Table) ValidateFieldName(name string) string { return validFieldName(name) }

func (t *Table) FieldExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	if err := t.db.QueryRowContext(ctx, queryColumnExists, t.schema, t.name, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check column %q: %w", name, err)
	}
	return exists, nil
}

func (t *Table) AddField(ctx context.Context, spec storage.FieldSpec) error {
	ddl, err := addColumnDDL(t.qualified, spec)
	if err != nil {
		return fmt.Errorf("add field %q: %w", spec.Name, err)
	}
	if _, err := t.db.ExecContext(ctx, ddl); err != nil {
		return mapError(err, fmt.Sprintf("add field %q", spec.Name))
	}

	slog.Info("[Postgres] Added column", "table", t.qualified, "column", spec.Name, "type", spec.Type)
	return nil
}

func (t *Table) ScanField(ctx context.Context, field string, fn func(value.Value) error) error {
	query := fmt.Sprintf("SELECT %s FROM %s", pq.QuoteIdentifier(field), t.qualified)
	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return mapError(err, fmt.Sprintf("scan %q", field))
	}
	defer rows.Close()

	dbType := columnTypeName(rows)
	for rows.Next() {
		var raw interface{}
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("failed to scan %q row: %w", field, err)
		}
		v, err := decodeValue(raw, dbType)
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating %q: %w", field, err)
	}
	return nil
}

func (t *Table) Select(ctx context.Context, fields []string, where string, nullValues map[string]value.Value) ([]storage.Record, error) {
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != t.idField {
			cols = append(cols, f)
		}
	}
	query := selectQuery(t.qualified, t.idField, cols, where)

	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(err, "select records")
	}
	defer rows.Close()

	dbTypes := make([]string, len(cols))
	if types, err := rows.ColumnTypes(); err == nil && len(types) == len(cols)+1 {
		for i := range cols {
			dbTypes[i] = types[i+1].DatabaseTypeName()
		}
	}

	var records []storage.Record
	for rows.Next() {
		var id int64
		raws := make([]interface{}, len(cols))
		dest := make([]interface{}, 0, len(cols)+1)
		dest = append(dest, &id)
		for i := range raws {
			dest = append(dest, &raws[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}

		rec := storage.Record{ID: id, Values: make(map[string]value.Value, len(fields))}
		for i, col := range cols {
			v, err := decodeValue(raws[i], dbTypes[i])
			if err != nil {
				return nil, err
			}
			if sub, ok := nullValues[col]; ok && v.IsNull() {
				v = sub
			}
			rec.Values[col] = v
		}
		if containsField(fields, t.idField) {
			rec.Values[t.idField] = value.Int(id)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

// UpdateRecords writes all records in one transaction with a prepared keyed UPDATE.
func (t *Table) UpdateRecords(ctx context.Context, fields []string, records []storage.Record) error {
	if len(records) == 0 || len(fields) == 0 {
		return nil
	}
	if containsField(fields, t.idField) {
		return fmt.Errorf("update: id field %q is read-only", t.idField)
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update records: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, updateQuery(t.qualified, t.idField, fields))
	if err != nil {
		return mapError(err, "update records: prepare")
	}
	defer stmt.Close()

	args := make([]interface{}, len(fields)+1)
	for _, rec := range records {
		for i, f := range fields {
			args[i] = rec.Values[f]
		}
		args[len(fields)] = rec.ID
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return mapError(err, fmt.Sprintf("update record %d", rec.ID))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update records: commit: %w", err)
	}

	slog.Debug("[Postgres] Updated records", "table", t.qualified, "count", len(records))
	return nil
}

func selectQuery(qualified, idField string, cols []string, where string) string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(pq.QuoteIdentifier(idField))
	for _, c := range cols {
		sb.WriteString(", ")
		sb.WriteString(pq.QuoteIdentifier(c))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(qualified)
	if strings.TrimSpace(where) != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	return sb.String()
}

func updateQuery(qualified, idField string, fields []string) string {
	sets := make([]string, len(fields))
	for i, f := range fields {
		sets[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(f), i+1)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		qualified, strings.Join(sets, ", "), pq.QuoteIdentifier(idField), len(fields)+1)
}

func columnTypeName(rows *sql.Rows) string {
	types, err := rows.ColumnTypes()
	if err != nil || len(types) == 0 {
		return ""
	}
	return types[0].DatabaseTypeName()
}

func containsField(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}
