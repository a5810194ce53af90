package functions

import (
	"math"
	"testing"
	"time"

	"github.com/vogtb/sheetkernel/engine"
)

type fixedClock struct{ at time.Time }

func (c *fixedClock) Now() time.Time { return c.at }

type fixedRand struct{ value float64 }

func (r *fixedRand) Float64() float64 { return r.value }

func num(n float64) engine.Value  { return engine.NumberValue(n) }
func str(s string) engine.Value   { return engine.StringValue(s) }
func boolean(b bool) engine.Value { return engine.BoolValue(b) }

func grid(rows, cols uint32, values ...float64) engine.Value {
	cells := make([]engine.Value, len(values))
	for i, v := range values {
		cells[i] = engine.NumberValue(v)
	}
	bounds := engine.RangeAddress{EndRow: rows - 1, EndColumn: cols - 1}
	return engine.RangeValue(engine.NewRange(bounds, cells))
}

func call(t *testing.T, lib *Library, name string, args ...engine.Value) engine.Value {
	t.Helper()
	v, err := lib.Call(name, nil, args...)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return v
}

func expectNumber(t *testing.T, lib *Library, name string, want float64, args ...engine.Value) {
	t.Helper()
	v := call(t, lib, name, args...)
	n, ok := v.Number()
	if !ok || n != want {
		t.Errorf("%s(...) = %v, want %v", name, v, want)
	}
}

func expectErrorCode(t *testing.T, lib *Library, name string, want engine.ErrorCode, args ...engine.Value) {
	t.Helper()
	v := call(t, lib, name, args...)
	if !v.IsError() || v.AsError().Code != want {
		t.Errorf("%s(...) = %v, want error %v", name, v, want)
	}
}

func TestAggregates(t *testing.T) {
	lib := Default()
	expectNumber(t, lib, "SUM", 10, grid(2, 2, 1, 2, 3, 4))
	expectNumber(t, lib, "SUM", 6, num(1), num(2), num(3))
	expectNumber(t, lib, "SUM", 0)
	expectNumber(t, lib, "AVERAGE", 2.5, grid(2, 2, 1, 2, 3, 4))
	expectNumber(t, lib, "COUNT", 4, grid(2, 2, 1, 2, 3, 4))
	expectNumber(t, lib, "MAX", 4, grid(2, 2, 1, 2, 3, 4))
	expectNumber(t, lib, "MIN", 1, grid(2, 2, 1, 2, 3, 4))
	expectErrorCode(t, lib, "AVERAGE", engine.ErrorDivZero)
}

func TestAggregatesSkipNonNumeric(t *testing.T) {
	lib := Default()
	expectNumber(t, lib, "SUM", 3, num(1), str("x"), num(2))
	expectNumber(t, lib, "COUNT", 2, num(1), str("x"), num(2))
}

func TestOmittedArguments(t *testing.T) {
	// an omitted positional argument arrives as the empty value
	lib := Default()
	expectNumber(t, lib, "SUM", 3, num(1), engine.EmptyValue(), num(2))
	expectNumber(t, lib, "COUNT", 2, num(1), engine.EmptyValue(), num(2))
	v := call(t, lib, "IF", boolean(true), engine.EmptyValue(), num(5))
	if !v.IsEmpty() {
		t.Errorf("IF with an omitted then-branch = %v, want empty", v)
	}
}

func TestLogic(t *testing.T) {
	lib := Default()
	expectNumber(t, lib, "IF", 1, boolean(true), num(1), num(2))
	expectNumber(t, lib, "IF", 2, boolean(false), num(1), num(2))
	v := call(t, lib, "AND", boolean(true), num(1))
	if v.String() != "TRUE" {
		t.Errorf("AND(TRUE,1) = %v", v)
	}
	v = call(t, lib, "OR", boolean(false), num(0))
	if v.String() != "FALSE" {
		t.Errorf("OR(FALSE,0) = %v", v)
	}
	v = call(t, lib, "NOT", boolean(false))
	if v.String() != "TRUE" {
		t.Errorf("NOT(FALSE) = %v", v)
	}
	expectErrorCode(t, lib, "IF", engine.ErrorValue, str("maybe"), num(1), num(2))
}

func TestText(t *testing.T) {
	lib := Default()
	v := call(t, lib, "CONCATENATE", str("a"), num(1), str("b"))
	if v.String() != "a1b" {
		t.Errorf("CONCATENATE = %q", v.String())
	}
	expectNumber(t, lib, "LEN", 5, str("héllo"))
	if got := call(t, lib, "UPPER", str("abc")).String(); got != "ABC" {
		t.Errorf("UPPER = %q", got)
	}
	if got := call(t, lib, "LOWER", str("AbC")).String(); got != "abc" {
		t.Errorf("LOWER = %q", got)
	}
}

func TestExactRespectsCaseSensitivity(t *testing.T) {
	insensitive := Default()
	if got := call(t, insensitive, "EXACT", str("abc"), str("ABC")).String(); got != "TRUE" {
		t.Errorf("case-insensitive EXACT = %v", got)
	}
	sensitive := New(Options{CaseSensitive: true})
	if got := call(t, sensitive, "EXACT", str("abc"), str("ABC")).String(); got != "FALSE" {
		t.Errorf("case-sensitive EXACT = %v", got)
	}
}

func TestNumeric(t *testing.T) {
	lib := Default()
	expectNumber(t, lib, "ABS", 3, num(-3))
	expectNumber(t, lib, "ROUND", 3.14, num(3.14159), num(2))
	expectNumber(t, lib, "MOD", 1, num(7), num(3))
	expectNumber(t, lib, "MOD", 2, num(-7), num(3))
	expectNumber(t, lib, "SQRT", 3, num(9))
	expectErrorCode(t, lib, "SQRT", engine.ErrorNum, num(-1))
	expectErrorCode(t, lib, "MOD", engine.ErrorDivZero, num(1), num(0))
	expectNumber(t, lib, "PI", math.Pi)
}

func TestVolatileFunctions(t *testing.T) {
	lib := New(Options{
		Clock: &fixedClock{at: time.UnixMilli(86400000)},
		Rand:  &fixedRand{value: 0.25},
	})
	if !lib.IsVolatile("NOW") || !lib.IsVolatile("rand") {
		t.Error("NOW and RAND must be volatile")
	}
	if lib.IsVolatile("SUM") {
		t.Error("SUM must not be volatile")
	}
	expectNumber(t, lib, "NOW", 1)
	expectNumber(t, lib, "RAND", 0.25)
}

func TestUnknownFunctionIsNameError(t *testing.T) {
	expectErrorCode(t, Default(), "NOPE", engine.ErrorName)
}

func TestErrorArgumentsPropagate(t *testing.T) {
	lib := Default()
	boom := engine.ErrorValueOf(engine.NewCellError(engine.ErrorDivZero, ""))
	v := call(t, lib, "SUM", num(1), boom)
	if !v.IsError() || v.AsError().Code != engine.ErrorDivZero {
		t.Errorf("SUM with an error argument = %v, want the error propagated", v)
	}
}

func TestMMULT(t *testing.T) {
	lib := Default()
	v := call(t, lib, "MMULT", grid(2, 2, 1, 2, 3, 4), grid(2, 2, 5, 6, 7, 8))
	if v.Kind != engine.ValueRangeKind {
		t.Fatalf("MMULT returned %v, want a range", v)
	}
	r := v.AsRange()
	want := []float64{19, 22, 43, 50}
	values := r.Values()
	if len(values) != len(want) {
		t.Fatalf("MMULT produced %d values, want %d", len(values), len(want))
	}
	for i, w := range want {
		if n, ok := values[i].Number(); !ok || n != w {
			t.Errorf("MMULT[%d] = %v, want %v", i, values[i], w)
		}
	}
	expectErrorCode(t, lib, "MMULT", engine.ErrorValue, grid(1, 2, 1, 2), grid(1, 2, 3, 4))
	expectErrorCode(t, lib, "MMULT", engine.ErrorValue, num(1), num(2))
}
