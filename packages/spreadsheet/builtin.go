package spreadsheet

import (
	"fmt"
	"math"
	"slices"
)

// builtinFunction describes a function callable from a formula. arity is
// checked when the formula is parsed, so call can rely on it
type builtinFunction struct {
	name          string
	minArgs       int
	maxArgs       int // -1 for variadic
	acceptsRanges bool
	call          func(args []float64) (float64, error)
}

func (f *builtinFunction) arityDescription() string {
	switch {
	case f.maxArgs < 0:
		return fmt.Sprintf("requires at least %d argument(s)", f.minArgs)
	case f.minArgs == f.maxArgs:
		return fmt.Sprintf("requires exactly %d argument(s)", f.minArgs)
	default:
		return fmt.Sprintf("requires %d to %d arguments", f.minArgs, f.maxArgs)
	}
}

// builtinFunctions is keyed by upper case name. every function is pure;
// volatile functions would defeat result caching
var builtinFunctions = map[string]*builtinFunction{
	"SUM":     {name: "SUM", minArgs: 1, maxArgs: -1, acceptsRanges: true, call: SUM},
	"AVERAGE": {name: "AVERAGE", minArgs: 1, maxArgs: -1, acceptsRanges: true, call: AVERAGE},
	"MIN":     {name: "MIN", minArgs: 1, maxArgs: -1, acceptsRanges: true, call: MIN},
	"MAX":     {name: "MAX", minArgs: 1, maxArgs: -1, acceptsRanges: true, call: MAX},
	"ABS":     {name: "ABS", minArgs: 1, maxArgs: 1, call: ABS},
	"ROUND":   {name: "ROUND", minArgs: 1, maxArgs: 2, call: ROUND},
	"FLOOR":   {name: "FLOOR", minArgs: 1, maxArgs: 1, call: FLOOR},
	"CEILING": {name: "CEILING", minArgs: 1, maxArgs: 1, call: CEILING},
	"SQRT":    {name: "SQRT", minArgs: 1, maxArgs: 1, call: SQRT},
	"POWER":   {name: "POWER", minArgs: 2, maxArgs: 2, call: POWER},
	"MOD":     {name: "MOD", minArgs: 2, maxArgs: 2, call: MOD},
	"PI":      {name: "PI", minArgs: 0, maxArgs: 0, call: PI},
}

// BuiltinFunctionNames lists the callable function names in sorted order,
// used for completion in interactive front ends
func BuiltinFunctionNames() []string {
	names := make([]string, 0, len(builtinFunctions))
	for name := range builtinFunctions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func SUM(args []float64) (float64, error) {
	sum := 0.0
	for _, num := range args {
		sum += num
	}
	return sum, nil
}

// AVERAGE counts every covered cell of a range, blank cells as zero
func AVERAGE(args []float64) (float64, error) {
	if len(args) == 0 {
		return 0, NewSpreadsheetError(ErrorCodeDiv0, "Division by zero")
	}
	sum, _ := SUM(args)
	return sum / float64(len(args)), nil
}

func MIN(args []float64) (float64, error) {
	result := math.Inf(1)
	for _, num := range args {
		result = math.Min(result, num)
	}
	return result, nil
}

func MAX(args []float64) (float64, error) {
	result := math.Inf(-1)
	for _, num := range args {
		result = math.Max(result, num)
	}
	return result, nil
}

func ABS(args []float64) (float64, error) {
	return math.Abs(args[0]), nil
}

func ROUND(args []float64) (float64, error) {
	places := 0.0
	if len(args) == 2 {
		places = math.Trunc(args[1])
	}
	multiplier := math.Pow(10, places)
	if multiplier == 0 {
		return 0, nil
	}
	scaled := args[0] * multiplier
	// more places than a float64 holds leaves the value as is
	if math.IsInf(multiplier, 0) || math.IsInf(scaled, 0) {
		return args[0], nil
	}
	return math.Round(scaled) / multiplier, nil
}

func FLOOR(args []float64) (float64, error) {
	return math.Floor(args[0]), nil
}

func CEILING(args []float64) (float64, error) {
	return math.Ceil(args[0]), nil
}

func SQRT(args []float64) (float64, error) {
	if args[0] < 0 {
		return 0, NewSpreadsheetError(ErrorCodeValue, "SQRT requires a non-negative argument")
	}
	return math.Sqrt(args[0]), nil
}

func POWER(args []float64) (float64, error) {
	return math.Pow(args[0], args[1]), nil
}

func MOD(args []float64) (float64, error) {
	if args[1] == 0 {
		return 0, NewSpreadsheetError(ErrorCodeDiv0, "Division by zero")
	}
	return math.Mod(args[0], args[1]), nil
}

func PI(args []float64) (float64, error) {
	return math.Pi, nil
}
