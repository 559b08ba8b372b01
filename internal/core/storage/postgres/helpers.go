package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aevon-lab/classgroup/internal/core/storage"
	"github.com/aevon-lab/classgroup/internal/core/value"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const (
	defaultSchema = "public"

	// maxIdentifierLength is NAMEDATALEN-1 on a stock server.
	maxIdentifierLength = 63

	pqDuplicateColumn = "42701"
	pqUndefinedColumn = "42703"
	pqUndefinedTable  = "42P01"
)

// parseTableRef splits "schema.table" or "table" into its parts.
// Double-quoted parts keep their case and may contain dots.
func parseTableRef(ref string) (schema, table string, err error) {
	parts, err := splitQualified(strings.TrimSpace(ref))
	if err != nil {
		return "", "", err
	}
	switch len(parts) {
	case 1:
		return defaultSchema, parts[0], nil
	case 2:
		return parts[0], parts[1], nil
	}
	return "", "", fmt.Errorf("%w: %q has more than two parts", storage.ErrInvalidReference, ref)
}

func splitQualified(ref string) ([]string, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", storage.ErrInvalidReference)
	}

	var parts []string
	var sb strings.Builder
	quoted := false
	wasQuoted := false
	for i := 0; i < len(ref); i++ {
		ch := ref[i]
		switch {
		case ch == '"' && quoted && i+1 < len(ref) && ref[i+1] == '"':
			sb.WriteByte('"')
			i++
		case ch == '"':
			quoted = !quoted
			wasQuoted = true
		case ch == '.' && !quoted:
			part, err := finishPart(sb.String(), wasQuoted, ref)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
			sb.Reset()
			wasQuoted = false
		default:
			sb.WriteByte(ch)
		}
	}
	if quoted {
		return nil, fmt.Errorf("%w: unbalanced quotes in %q", storage.ErrInvalidReference, ref)
	}
	part, err := finishPart(sb.String(), wasQuoted, ref)
	if err != nil {
		return nil, err
	}
	return append(parts, part), nil
}

func finishPart(part string, wasQuoted bool, ref string) (string, error) {
	if wasQuoted {
		if part == "" {
			return "", fmt.Errorf("%w: empty name in %q", storage.ErrInvalidReference, ref)
		}
		return part, nil
	}
	part = strings.TrimSpace(part)
	if part == "" {
		return "", fmt.Errorf("%w: empty name in %q", storage.ErrInvalidReference, ref)
	}
	// unquoted identifiers fold to lower case
	return strings.ToLower(part), nil
}

// validFieldName lower-cases name, replaces anything outside [a-z0-9_] with
// an underscore and truncates to the identifier limit.
func validFieldName(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	out := sb.String()
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		out = "_" + out
	}
	if len(out) > maxIdentifierLength {
		out = out[:maxIdentifierLength]
	}
	return out
}

// columnType maps a portable field spec onto a PostgreSQL column type.
func columnType(spec storage.FieldSpec) (string, error) {
	switch spec.Type {
	case storage.FieldTypeLong:
		if spec.Precision > 0 {
			return fmt.Sprintf("numeric(%d,0)", spec.Precision), nil
		}
		return "integer", nil
	case storage.FieldTypeDouble:
		if spec.Precision > 0 {
			return fmt.Sprintf("numeric(%d,%d)", spec.Precision, spec.Scale), nil
		}
		return "double precision", nil
	case storage.FieldTypeText:
		if spec.Length > 0 {
			return fmt.Sprintf("varchar(%d)", spec.Length), nil
		}
		return "text", nil
	}
	return "", fmt.Errorf("unsupported field type %q", spec.Type)
}

// addColumnDDL renders ALTER TABLE ... ADD COLUMN for spec.
func addColumnDDL(qualifiedTable string, spec storage.FieldSpec) (string, error) {
	typ, err := columnType(spec)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "ALTER TABLE %s ADD COLUMN %s %s", qualifiedTable, pq.QuoteIdentifier(spec.Name), typ)
	if !spec.Default.IsNull() {
		sb.WriteString(" DEFAULT ")
		sb.WriteString(spec.Default.Literal())
	}
	if !spec.Nullable {
		sb.WriteString(" NOT NULL")
	}
	return sb.String(), nil
}

// decodeValue converts what lib/pq hands back for a column into a Value,
// using the column's database type name to tell numeric bytes from text.
func decodeValue(raw interface{}, dbType string) (value.Value, error) {
	switch v := raw.(type) {
	case nil:
		return value.Null, nil
	case []byte:
		switch strings.ToUpper(dbType) {
		case "NUMERIC", "DECIMAL", "MONEY":
			switch string(v) {
			case "NaN", "Infinity", "-Infinity":
				return value.Text(string(v)), nil
			}
			d, err := decimal.NewFromString(string(v))
			if err != nil {
				return value.Value{}, fmt.Errorf("decode numeric %q: %w", string(v), err)
			}
			return value.Number(d), nil
		}
		return value.Text(string(v)), nil
	}
	return value.FromAny(raw), nil
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// mapError translates lib/pq error codes into storage sentinels.
func mapError(err error, what string) error {
	switch pqCode(err) {
	case pqUndefinedColumn:
		return fmt.Errorf("%s: %w: %v", what, storage.ErrFieldNotFound, err)
	case pqUndefinedTable:
		return fmt.Errorf("%s: %w: %v", what, storage.ErrDatasetNotFound, err)
	case pqDuplicateColumn:
		return fmt.Errorf("%s: %w: %v", what, storage.ErrFieldExists, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}
