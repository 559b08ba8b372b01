package grouping

import (
	"log/slog"
	"strings"

	"github.com/aevon-lab/classgroup/internal/core/value"
)

const (
	DefaultChainOperator    = "AND"
	DefaultEqualityOperator = "="
)

// Quoter delimits field names for a specific backend.
type Quoter interface {
	QuoteIdentifier(name string) string
}

// Equality builds a single comparison of field against v. Text is quoted,
// numbers render bare. A null value becomes an IS NULL test since an
// equality against NULL never matches.
func Equality(q Quoter, field string, v value.Value, op string) string {
	if op == "" {
		op = DefaultEqualityOperator
	}
	name := q.QuoteIdentifier(field)
	if v.IsNull() {
		if op == "<>" || op == "!=" {
			return name + " IS NOT NULL"
		}
		return name + " IS NULL"
	}
	return name + " " + op + " " + v.Literal()
}

// Chained builds one equality per field/value pair and joins them with
// chainOp. fields and values are positionally aligned; on a length mismatch
// the shorter length is used and a warning is logged.
func Chained(q Quoter, fields []string, values []value.Value, chainOp, eqOp string) string {
	chainOp = strings.TrimSpace(chainOp)
	if chainOp == "" {
		chainOp = DefaultChainOperator
	}

	n := len(fields)
	if len(values) != n {
		slog.Warn("[Predicate] Field/value lengths do not match, using minimum",
			"fields", len(fields),
			"values", len(values))
		if len(values) < n {
			n = len(values)
		}
	}

	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = Equality(q, fields[i], values[i], eqOp)
	}
	return strings.Join(parts, " "+chainOp+" ")
}
