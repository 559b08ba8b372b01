package value

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind tags the contents of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a single attribute value read from or written to a dataset.
// Quoting and ordering decisions are made from Kind, never from the Go type
// of whatever the driver handed back.
type Value struct {
	Kind Kind
	Num  decimal.Decimal
	Str  string
}

// Null is the absent value.
var Null = Value{Kind: KindNull}

func Number(d decimal.Decimal) Value { return Value{Kind: KindNumber, Num: d} }

func Int(n int64) Value { return Number(decimal.NewFromInt(n)) }

func Text(s string) Value { return Value{Kind: KindText, Str: s} }

// TimestampLayout keeps sub-second precision and the zone so that an
// equality predicate built from a scanned timestamp matches its own row.
const TimestampLayout = "2006-01-02 15:04:05.999999999Z07:00"

// Float converts a float. NaN and the infinities have no decimal form, so they
// become text in PostgreSQL's float spelling ('NaN', 'Infinity', '-Infinity'),
// which the server casts back to float8 when compared.
func Float(f float64) Value {
	switch {
	case math.IsNaN(f):
		return Text("NaN")
	case math.IsInf(f, 1):
		return Text("Infinity")
	case math.IsInf(f, -1):
		return Text("-Infinity")
	}
	return Number(decimal.NewFromFloat(f))
}

// IsNonFinite reports whether f is NaN or an infinity.
func IsNonFinite(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// FromAny converts a loosely typed value (driver output, YAML scalar) into a
// Value. Unsupported types are rendered as text.
func FromAny(v interface{}) Value {
	switch val := v.(type) {
	case nil:
		return Null
	case Value:
		return val
	case decimal.Decimal:
		return Number(val)
	case int:
		return Int(int64(val))
	case int32:
		return Int(int64(val))
	case int64:
		return Int(val)
	case uint32:
		return Int(int64(val))
	case float32:
		if IsNonFinite(float64(val)) {
			return Float(float64(val))
		}
		return Number(decimal.NewFromFloat32(val))
	case float64:
		return Float(val)
	case string:
		return Text(val)
	case []byte:
		return Text(string(val))
	case bool:
		if val {
			return Text("true")
		}
		return Text("false")
	case time.Time:
		return Text(val.Format(TimestampLayout))
	default:
		return Text(fmt.Sprint(val))
	}
}

func (v Value) IsNull() bool { return v.Kind == KindNull }

// Falsy reports whether the value counts as empty for unique-value filtering:
// null, empty text, or numeric zero.
func (v Value) Falsy() bool {
	switch v.Kind {
	case KindNull:
		return true
	case KindNumber:
		return v.Num.IsZero()
	case KindText:
		return v.Str == ""
	}
	return false
}

// Key returns a canonical identity for distinct-set membership.
// Numerically equal decimals share a key regardless of scale.
func (v Value) Key() string {
	switch v.Kind {
	case KindNumber:
		return "n:" + v.Num.String()
	case KindText:
		return "t:" + v.Str
	default:
		return "null"
	}
}

// String renders the value in its natural, unquoted form.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return v.Num.String()
	case KindText:
		return v.Str
	default:
		return "null"
	}
}

// Literal renders the value as a SQL literal: text is single-quoted with
// embedded quotes doubled, numbers are bare, null is NULL.
func (v Value) Literal() string {
	switch v.Kind {
	case KindNumber:
		return v.Num.String()
	case KindText:
		return "'" + strings.ReplaceAll(v.Str, "'", "''") + "'"
	default:
		return "NULL"
	}
}

// Equal reports whether two values are the same kind and content.
func (v Value) Equal(o Value) bool {
	return Compare(v, o) == 0
}

// Value implements driver.Valuer.
func (v Value) Value() (driver.Value, error) {
	switch v.Kind {
	case KindNull:
		return nil, nil
	case KindNumber:
		if v.Num.IsInteger() {
			return v.Num.IntPart(), nil
		}
		return v.Num.String(), nil
	case KindText:
		return v.Str, nil
	}
	return nil, fmt.Errorf("unsupported value kind %s", v.Kind)
}

// Compare orders values: null first, then numbers ascending, then text in
// byte order.
func Compare(a, b Value) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case KindNumber:
		return a.Num.Cmp(b.Num)
	case KindText:
		return strings.Compare(a.Str, b.Str)
	}
	return 0
}
