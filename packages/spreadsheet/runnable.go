package spreadsheet

import (
	"fmt"
	"io"
)

// RunnableSheet provides a chainable interface for scripting sheet
// operations. it wraps a Sheet and keeps the first error; every later call
// becomes a no-op
type RunnableSheet struct {
	sheet   *Sheet
	err     error
	printLn func(string)
}

// NewRunnableSheet creates a new RunnableSheet around a fresh sheet. printLn
// is required and will be used for all logging operations (Log, CheckError)
func NewRunnableSheet(printLn func(string)) *RunnableSheet {
	return NewRunnableSheetWithOptions(printLn, Options{})
}

// NewRunnableSheetWithOptions is NewRunnableSheet with sheet options
func NewRunnableSheetWithOptions(printLn func(string), opts Options) *RunnableSheet {
	return &RunnableSheet{
		sheet:   NewSheetWithOptions(opts),
		printLn: printLn,
	}
}

// Set sets a cell's text (chainable)
func (r *RunnableSheet) Set(address string, text string) *RunnableSheet {
	if r.err != nil {
		return r
	}
	r.err = r.sheet.Set(address, text)
	return r
}

// Clear empties a cell (chainable)
func (r *RunnableSheet) Clear(address string) *RunnableSheet {
	if r.err != nil {
		return r
	}
	r.err = r.sheet.Clear(address)
	return r
}

// SetBatch sets cells in the order given (chainable). pairs are address,
// text, address, text, ...
func (r *RunnableSheet) SetBatch(pairs ...string) *RunnableSheet {
	if r.err != nil {
		return r
	}
	if len(pairs)%2 != 0 {
		r.err = NewApplicationError(InvalidArgument, "SetBatch requires address/text pairs")
		return r
	}
	for i := 0; i < len(pairs); i += 2 {
		if err := r.sheet.Set(pairs[i], pairs[i+1]); err != nil {
			r.err = err
			return r
		}
	}
	return r
}

// Calculate evaluates every stale formula (chainable)
func (r *RunnableSheet) Calculate() *RunnableSheet {
	if r.err != nil {
		return r
	}
	r.err = r.sheet.Calculate()
	return r
}

// Run returns the sheet and the first error, if any
func (r *RunnableSheet) Run() (*Sheet, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.sheet, nil
}

// Error returns the current error state
func (r *RunnableSheet) Error() error {
	return r.err
}

// CheckError logs the current error using the printLn function (chainable)
func (r *RunnableSheet) CheckError() *RunnableSheet {
	if r.err != nil {
		r.printLn(fmt.Sprintf("ERROR: %v", r.err))
	} else {
		r.printLn("No errors")
	}
	return r
}

// Sheet returns the underlying sheet. use with caution as it bypasses error
// tracking.
func (r *RunnableSheet) Sheet() *Sheet {
	return r.sheet
}

// Reset clears the error state (chainable)
func (r *RunnableSheet) Reset() *RunnableSheet {
	r.err = nil
	return r
}

// Then allows conditional execution based on current error state
func (r *RunnableSheet) Then(fn func(*RunnableSheet) *RunnableSheet) *RunnableSheet {
	if r.err != nil {
		return r
	}
	return fn(r)
}

// OnError allows error handling in the chain
func (r *RunnableSheet) OnError(fn func(error) error) *RunnableSheet {
	if r.err != nil {
		r.err = fn(r.err)
	}
	return r
}

// Must panics if there's an error (chainable)
func (r *RunnableSheet) Must() *RunnableSheet {
	if r.err != nil {
		panic(r.err)
	}
	return r
}

// Value is a helper to get a single value from the chain.
// example: val := NewRunnableSheet(printLn).Set("A1", "10").Set("A2", "=A1*2").Value("A2")
func (r *RunnableSheet) Value(address string) Primitive {
	if r.err != nil {
		return nil
	}
	val, err := r.sheet.Get(address)
	if err != nil {
		r.err = err
		return nil
	}
	return val
}

// Values is a helper to get multiple values from the chain
func (r *RunnableSheet) Values(addresses ...string) []Primitive {
	if r.err != nil {
		return nil
	}
	values := make([]Primitive, len(addresses))
	for i, address := range addresses {
		val, err := r.sheet.Get(address)
		if err != nil {
			r.err = err
			return nil
		}
		values[i] = val
	}
	return values
}

// Text returns a cell's text from the chain
func (r *RunnableSheet) Text(address string) string {
	if r.err != nil {
		return ""
	}
	text, err := r.sheet.Text(address)
	if err != nil {
		r.err = err
		return ""
	}
	return text
}

// Log logs the value of a cell using the printLn function (chainable)
func (r *RunnableSheet) Log(address string) *RunnableSheet {
	if r.err != nil {
		return r
	}
	val, err := r.sheet.Get(address)
	if err != nil {
		r.err = err
		return r
	}
	if val == nil {
		r.printLn(fmt.Sprintf("%s: <empty>", address))
	} else {
		r.printLn(fmt.Sprintf("%s: %s", address, FormatPrimitive(val)))
	}
	return r
}

// PrintValues writes the printable area's values to w (chainable)
func (r *RunnableSheet) PrintValues(w io.Writer) *RunnableSheet {
	if r.err != nil {
		return r
	}
	r.err = r.sheet.PrintValues(w)
	return r
}

// PrintTexts writes the printable area's texts to w (chainable)
func (r *RunnableSheet) PrintTexts(w io.Writer) *RunnableSheet {
	if r.err != nil {
		return r
	}
	r.err = r.sheet.PrintTexts(w)
	return r
}
