package value

import (
	"math"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFromAny(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want Value
	}{
		{name: "nil", in: nil, want: Null},
		{name: "int", in: 3, want: Int(3)},
		{name: "int64", in: int64(-7), want: Int(-7)},
		{name: "float64", in: 12.5, want: Number(decimal.RequireFromString("12.5"))},
		{name: "string", in: "x", want: Text("x")},
		{name: "bytes", in: []byte("abc"), want: Text("abc")},
		{name: "bool", in: true, want: Text("true")},
		{name: "time", in: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), want: Text("2026-01-02 03:04:05Z")},
		{name: "time keeps micros", in: time.Date(2024, 1, 2, 3, 4, 5, 123456000, time.UTC), want: Text("2024-01-02 03:04:05.123456Z")},
		{name: "time keeps offset", in: time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("", -5*3600)), want: Text("2024-01-02 03:04:05-05:00")},
		{name: "nan", in: math.NaN(), want: Text("NaN")},
		{name: "positive infinity", in: math.Inf(1), want: Text("Infinity")},
		{name: "negative infinity", in: math.Inf(-1), want: Text("-Infinity")},
		{name: "float32 infinity", in: float32(math.Inf(1)), want: Text("Infinity")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromAny(tt.in)
			require.Equal(t, tt.want.Kind, got.Kind)
			require.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
		})
	}
}

func TestFalsy(t *testing.T) {
	require.True(t, Null.Falsy())
	require.True(t, Int(0).Falsy())
	require.True(t, Text("").Falsy())
	require.False(t, Int(1).Falsy())
	require.False(t, Text("0").Falsy())
}

func TestKeyIgnoresScale(t *testing.T) {
	a := Number(decimal.RequireFromString("1.0"))
	b := Int(1)
	require.Equal(t, a.Key(), b.Key())
	require.NotEqual(t, Int(1).Key(), Text("1").Key())
}

func TestLiteral(t *testing.T) {
	require.Equal(t, "'x'", Text("x").Literal())
	require.Equal(t, "'O''Brien'", Text("O'Brien").Literal())
	require.Equal(t, "42", Int(42).Literal())
	require.Equal(t, "2.5", Number(decimal.RequireFromString("2.50")).Literal())
	require.Equal(t, "NULL", Null.Literal())
}

func TestCompareOrdersNullNumberText(t *testing.T) {
	vals := []Value{Text("b"), Int(10), Null, Text("a"), Int(2)}
	sort.Slice(vals, func(i, j int) bool { return Compare(vals[i], vals[j]) < 0 })

	require.Equal(t, []string{"null", "2", "10", "a", "b"}, []string{
		vals[0].String(), vals[1].String(), vals[2].String(), vals[3].String(), vals[4].String(),
	})
}

func TestDriverValue(t *testing.T) {
	v, err := Int(5).Value()
	require.NoError(t, err)
	require.Equal(t, int64(5), v)

	v, err = Number(decimal.RequireFromString("1.25")).Value()
	require.NoError(t, err)
	require.Equal(t, "1.25", v)

	v, err = Null.Value()
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = Text("No Data").Value()
	require.NoError(t, err)
	require.Equal(t, "No Data", v)
}

func TestFloatLiteral(t *testing.T) {
	require.Equal(t, "'NaN'", Float(math.NaN()).Literal())
	require.Equal(t, "'-Infinity'", Float(math.Inf(-1)).Literal())
	require.Equal(t, "2.25", Float(2.25).Literal())
}
