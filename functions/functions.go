// Package functions provides the default function-library collaborator
// for the calculation engine. The engine itself only sees the
// engine.FunctionLibrary contract; everything here is replaceable by an
// embedding host.
package functions

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/vogtb/sheetkernel/engine"
)

// Clock provides time functionality so NOW is testable.
type Clock interface {
	Now() time.Time
}

// WallClock is the default Clock using system time.
type WallClock struct{}

func (w *WallClock) Now() time.Time { return time.Now() }

// RandomGenerator provides random numbers so RAND is testable.
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses the standard library's rand package.
type DefaultRandomGenerator struct{}

func (d *DefaultRandomGenerator) Float64() float64 { return rand.Float64() }

// Options configures a Library. CaseSensitive selects whether string
// equality (EXACT) distinguishes case.
type Options struct {
	Clock         Clock
	Rand          RandomGenerator
	CaseSensitive bool
}

// Library is the default engine.FunctionLibrary implementation.
type Library struct {
	clock         Clock
	rng           RandomGenerator
	caseSensitive bool
}

// New creates a Library, filling unset options with defaults.
func New(opts Options) *Library {
	if opts.Clock == nil {
		opts.Clock = &WallClock{}
	}
	if opts.Rand == nil {
		opts.Rand = &DefaultRandomGenerator{}
	}
	return &Library{clock: opts.Clock, rng: opts.Rand, caseSensitive: opts.CaseSensitive}
}

// Default returns a Library with wall-clock time, real randomness, and
// case-insensitive string equality.
func Default() *Library { return New(Options{}) }

// IsVolatile reports whether a function must be recomputed on every
// recalculation cycle regardless of dependency changes.
func (l *Library) IsVolatile(name string) bool {
	switch strings.ToUpper(name) {
	case "NOW", "RAND":
		return true
	}
	return false
}

// Call dispatches a function by name. Unknown names yield the name
// error as a value, never a Go panic.
func (l *Library) Call(name string, resolver engine.CellResolver, args ...engine.Value) (engine.Value, error) {
	switch strings.ToUpper(name) {
	case "SUM":
		return l.sum(args)
	case "AVERAGE":
		return l.average(args)
	case "COUNT":
		return l.count(args)
	case "MAX":
		return l.max(args)
	case "MIN":
		return l.min(args)
	case "IF":
		return l.ifFn(args)
	case "AND":
		return l.and(args)
	case "OR":
		return l.or(args)
	case "NOT":
		return l.not(args)
	case "CONCATENATE":
		return l.concatenate(args)
	case "LEN":
		return l.lenFn(args)
	case "UPPER":
		return l.upper(args)
	case "LOWER":
		return l.lower(args)
	case "EXACT":
		return l.exact(args)
	case "ABS":
		return l.abs(args)
	case "ROUND":
		return l.round(args)
	case "SQRT":
		return l.sqrt(args)
	case "MOD":
		return l.mod(args)
	case "PI":
		return engine.NumberValue(math.Pi), nil
	case "NOW":
		return engine.NumberValue(float64(l.clock.Now().UnixMilli()) / 86400000.0), nil
	case "RAND":
		return engine.NumberValue(l.rng.Float64()), nil
	case "MMULT":
		return l.mmult(args)
	default:
		return errValue(engine.ErrorName, "unknown function "+strings.ToUpper(name)), nil
	}
}

func errValue(code engine.ErrorCode, message string) engine.Value {
	return engine.ErrorValueOf(engine.NewCellError(code, message))
}

// firstError propagates an error argument, looking through ranges.
func firstError(args []engine.Value) (engine.Value, bool) {
	for _, a := range args {
		switch a.Kind {
		case engine.ValueErrorKind:
			return a, true
		case engine.ValueRangeKind:
			for _, v := range a.AsRange().Values() {
				if v.IsError() {
					return v, true
				}
			}
		}
	}
	return engine.Value{}, false
}

// flattenNumbers collects every numeric value from scalar and range
// arguments, skipping empties and non-numeric strings.
func flattenNumbers(args []engine.Value) []float64 {
	var result []float64
	for _, a := range args {
		if a.Kind == engine.ValueRangeKind {
			for _, v := range a.AsRange().Values() {
				if v.IsEmpty() {
					continue
				}
				if n, ok := v.Number(); ok {
					result = append(result, n)
				}
			}
			continue
		}
		if a.IsEmpty() {
			continue
		}
		if n, ok := a.Number(); ok {
			result = append(result, n)
		}
	}
	return result
}

func (l *Library) sum(args []engine.Value) (engine.Value, error) {
	if e, ok := firstError(args); ok {
		return e, nil
	}
	total := 0.0
	for _, n := range flattenNumbers(args) {
		total += n
	}
	return engine.NumberValue(total), nil
}

func (l *Library) average(args []engine.Value) (engine.Value, error) {
	if e, ok := firstError(args); ok {
		return e, nil
	}
	nums := flattenNumbers(args)
	if len(nums) == 0 {
		return errValue(engine.ErrorDivZero, "AVERAGE of no numeric values"), nil
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return engine.NumberValue(total / float64(len(nums))), nil
}

func (l *Library) count(args []engine.Value) (engine.Value, error) {
	return engine.NumberValue(float64(len(flattenNumbers(args)))), nil
}

func (l *Library) max(args []engine.Value) (engine.Value, error) {
	if e, ok := firstError(args); ok {
		return e, nil
	}
	nums := flattenNumbers(args)
	if len(nums) == 0 {
		return engine.NumberValue(0), nil
	}
	best := nums[0]
	for _, n := range nums[1:] {
		if n > best {
			best = n
		}
	}
	return engine.NumberValue(best), nil
}

func (l *Library) min(args []engine.Value) (engine.Value, error) {
	if e, ok := firstError(args); ok {
		return e, nil
	}
	nums := flattenNumbers(args)
	if len(nums) == 0 {
		return engine.NumberValue(0), nil
	}
	best := nums[0]
	for _, n := range nums[1:] {
		if n < best {
			best = n
		}
	}
	return engine.NumberValue(best), nil
}

// truthy coerces a scalar to a condition: booleans directly, numbers by
// non-zero, everything else fails with a value error.
func truthy(v engine.Value) (bool, *engine.Value) {
	if v.IsError() {
		return false, &v
	}
	if n, ok := v.Number(); ok {
		return n != 0, nil
	}
	e := errValue(engine.ErrorValue, "expected a logical value")
	return false, &e
}

func (l *Library) ifFn(args []engine.Value) (engine.Value, error) {
	if len(args) < 2 || len(args) > 3 {
		return errValue(engine.ErrorValue, "IF expects 2 or 3 arguments"), nil
	}
	cond, errv := truthy(args[0])
	if errv != nil {
		return *errv, nil
	}
	if cond {
		return args[1], nil
	}
	if len(args) == 3 {
		return args[2], nil
	}
	return engine.BoolValue(false), nil
}

func (l *Library) and(args []engine.Value) (engine.Value, error) {
	if len(args) == 0 {
		return errValue(engine.ErrorValue, "AND expects at least one argument"), nil
	}
	for _, a := range args {
		b, errv := truthy(a)
		if errv != nil {
			return *errv, nil
		}
		if !b {
			return engine.BoolValue(false), nil
		}
	}
	return engine.BoolValue(true), nil
}

func (l *Library) or(args []engine.Value) (engine.Value, error) {
	if len(args) == 0 {
		return errValue(engine.ErrorValue, "OR expects at least one argument"), nil
	}
	for _, a := range args {
		b, errv := truthy(a)
		if errv != nil {
			return *errv, nil
		}
		if b {
			return engine.BoolValue(true), nil
		}
	}
	return engine.BoolValue(false), nil
}

func (l *Library) not(args []engine.Value) (engine.Value, error) {
	if len(args) != 1 {
		return errValue(engine.ErrorValue, "NOT expects one argument"), nil
	}
	b, errv := truthy(args[0])
	if errv != nil {
		return *errv, nil
	}
	return engine.BoolValue(!b), nil
}

func (l *Library) concatenate(args []engine.Value) (engine.Value, error) {
	if e, ok := firstError(args); ok {
		return e, nil
	}
	var sb strings.Builder
	for _, a := range args {
		if a.Kind == engine.ValueRangeKind {
			for _, v := range a.AsRange().Values() {
				sb.WriteString(v.String())
			}
			continue
		}
		sb.WriteString(a.String())
	}
	return engine.StringValue(sb.String()), nil
}

func (l *Library) lenFn(args []engine.Value) (engine.Value, error) {
	if len(args) != 1 {
		return errValue(engine.ErrorValue, "LEN expects one argument"), nil
	}
	if args[0].IsError() {
		return args[0], nil
	}
	return engine.NumberValue(float64(len([]rune(args[0].String())))), nil
}

func (l *Library) upper(args []engine.Value) (engine.Value, error) {
	if len(args) != 1 {
		return errValue(engine.ErrorValue, "UPPER expects one argument"), nil
	}
	if args[0].IsError() {
		return args[0], nil
	}
	return engine.StringValue(strings.ToUpper(args[0].String())), nil
}

func (l *Library) lower(args []engine.Value) (engine.Value, error) {
	if len(args) != 1 {
		return errValue(engine.ErrorValue, "LOWER expects one argument"), nil
	}
	if args[0].IsError() {
		return args[0], nil
	}
	return engine.StringValue(strings.ToLower(args[0].String())), nil
}

func (l *Library) exact(args []engine.Value) (engine.Value, error) {
	if len(args) != 2 {
		return errValue(engine.ErrorValue, "EXACT expects two arguments"), nil
	}
	if e, ok := firstError(args); ok {
		return e, nil
	}
	a, b := args[0].String(), args[1].String()
	if l.caseSensitive {
		return engine.BoolValue(a == b), nil
	}
	return engine.BoolValue(strings.EqualFold(a, b)), nil
}

func (l *Library) abs(args []engine.Value) (engine.Value, error) {
	n, errv := singleNumber(args, "ABS")
	if errv != nil {
		return *errv, nil
	}
	return engine.NumberValue(math.Abs(n)), nil
}

func (l *Library) sqrt(args []engine.Value) (engine.Value, error) {
	n, errv := singleNumber(args, "SQRT")
	if errv != nil {
		return *errv, nil
	}
	if n < 0 {
		return errValue(engine.ErrorNum, "SQRT of a negative number"), nil
	}
	return engine.NumberValue(math.Sqrt(n)), nil
}

func (l *Library) round(args []engine.Value) (engine.Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return errValue(engine.ErrorValue, "ROUND expects 1 or 2 arguments"), nil
	}
	if e, ok := firstError(args); ok {
		return e, nil
	}
	n, ok := args[0].Number()
	if !ok {
		return errValue(engine.ErrorValue, "ROUND expects a number"), nil
	}
	places := 0.0
	if len(args) == 2 {
		if places, ok = args[1].Number(); !ok {
			return errValue(engine.ErrorValue, "ROUND expects a numeric place count"), nil
		}
	}
	factor := math.Pow(10, math.Trunc(places))
	return engine.NumberValue(math.Round(n*factor) / factor), nil
}

func (l *Library) mod(args []engine.Value) (engine.Value, error) {
	if len(args) != 2 {
		return errValue(engine.ErrorValue, "MOD expects two arguments"), nil
	}
	if e, ok := firstError(args); ok {
		return e, nil
	}
	a, aok := args[0].Number()
	b, bok := args[1].Number()
	if !aok || !bok {
		return errValue(engine.ErrorValue, "MOD expects numbers"), nil
	}
	if b == 0 {
		return errValue(engine.ErrorDivZero, "MOD by zero"), nil
	}
	result := math.Mod(a, b)
	if result != 0 && (result < 0) != (b < 0) {
		result += b
	}
	return engine.NumberValue(result), nil
}

func singleNumber(args []engine.Value, name string) (float64, *engine.Value) {
	if len(args) != 1 {
		e := errValue(engine.ErrorValue, name+" expects one argument")
		return 0, &e
	}
	if args[0].IsError() {
		return 0, &args[0]
	}
	n, ok := args[0].Number()
	if !ok {
		e := errValue(engine.ErrorValue, name+" expects a number")
		return 0, &e
	}
	return n, nil
}

// mmult multiplies two numeric ranges; the result range's width is the
// right operand's and its height the left operand's.
func (l *Library) mmult(args []engine.Value) (engine.Value, error) {
	if len(args) != 2 {
		return errValue(engine.ErrorValue, "MMULT expects two ranges"), nil
	}
	if e, ok := firstError(args); ok {
		return e, nil
	}
	left, lok := rangeMatrix(args[0])
	right, rok := rangeMatrix(args[1])
	if !lok || !rok {
		return errValue(engine.ErrorValue, "MMULT expects numeric ranges"), nil
	}
	inner := len(left[0])
	if inner != len(right) {
		return errValue(engine.ErrorValue, "MMULT dimension mismatch"), nil
	}
	rows, cols := len(left), len(right[0])
	values := make([]engine.Value, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			total := 0.0
			for k := 0; k < inner; k++ {
				total += left[r][k] * right[k][c]
			}
			values = append(values, engine.NumberValue(total))
		}
	}
	bounds := engine.RangeAddress{EndRow: uint32(rows - 1), EndColumn: uint32(cols - 1)}
	return engine.RangeValue(engine.NewRange(bounds, values)), nil
}

// rangeMatrix reshapes a range value into a dense row-major matrix,
// treating empty cells as 0 and failing on anything non-numeric.
func rangeMatrix(v engine.Value) ([][]float64, bool) {
	if v.Kind != engine.ValueRangeKind {
		return nil, false
	}
	r := v.AsRange()
	bounds := r.Bounds()
	rows, cols := int(bounds.Height()), int(bounds.Width())
	flat := r.Values()
	if rows*cols != len(flat) || rows == 0 || cols == 0 {
		return nil, false
	}
	result := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		result[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			cell := flat[i*cols+j]
			if cell.IsEmpty() {
				continue
			}
			n, ok := cell.Number()
			if !ok {
				return nil, false
			}
			result[i][j] = n
		}
	}
	return result, true
}
