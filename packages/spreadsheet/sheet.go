package spreadsheet

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// AppErrorCode represents gRPC-style error codes for application-level errors.
// note that we are skipping error codes that don't make sense for our use-case,
// like unauthenticated, or permission denied.
type AppErrorCode int

const (
	// OK indicates the operation completed successfully.
	OK AppErrorCode = 0

	// Unknown error.
	Unknown AppErrorCode = 2

	// InvalidArgument indicates client specified an invalid argument, such
	// as a formula that does not parse.
	InvalidArgument AppErrorCode = 3

	// ResourceExhausted indicates some resource has been exhausted. used
	// when formula evaluation nests deeper than allowed.
	ResourceExhausted AppErrorCode = 8

	// FailedPrecondition indicates operation was rejected because the
	// system is not in a state required for the operation's execution,
	// e.g. the write would close a reference cycle.
	FailedPrecondition AppErrorCode = 9

	// OutOfRange means operation was attempted past the valid range.
	OutOfRange AppErrorCode = 11

	// Internal errors. Means some invariants expected by underlying
	// system has been broken.
	Internal AppErrorCode = 13
)

// AppError represents errors at the application level (not
// spreadsheet formula errors)
type AppError struct {
	Code    AppErrorCode
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// Is matches any AppError with the same code, so errors.Is works against
// the sentinels below
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

var (
	ErrInvalidPosition    = NewApplicationError(OutOfRange, "invalid position")
	ErrFormulaSyntax      = NewApplicationError(InvalidArgument, "formula syntax error")
	ErrCircularDependency = NewApplicationError(FailedPrecondition, "circular dependency")
	ErrEvalDepthExceeded  = NewApplicationError(ResourceExhausted, "evaluation depth exceeded")
)

func newInvalidPositionError(addr Address) error {
	return NewApplicationError(OutOfRange, fmt.Sprintf("invalid position: row %d, col %d", addr.Row, addr.Col))
}

func newCircularDependencyError(addr Address) error {
	return NewApplicationError(FailedPrecondition, fmt.Sprintf("circular dependency: %s would read itself", addr))
}

// DefaultMaxEvalDepth bounds how many formulas may be evaluated inside one
// another before a read gives up
const DefaultMaxEvalDepth = 4096

// Options configures a Sheet. zero values select defaults
type Options struct {
	MaxEvalDepth int
	Logger       *slog.Logger
}

// Sheet is a single grid of cells holding text or formulas. formula results
// are computed on first read and cached until a cell they depend on changes.
//
// a Sheet is not safe for concurrent use; callers must serialize access,
// reads included, since a read may fill caches
type Sheet struct {
	grid   *grid
	logger *slog.Logger
}

// NewSheet creates an empty sheet with default options
func NewSheet() *Sheet {
	return NewSheetWithOptions(Options{})
}

// NewSheetWithOptions creates an empty sheet
func NewSheetWithOptions(opts Options) *Sheet {
	if opts.MaxEvalDepth <= 0 {
		opts.MaxEvalDepth = DefaultMaxEvalDepth
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sheet{
		grid:   newGrid(opts.MaxEvalDepth, opts.Logger),
		logger: opts.Logger,
	}
}

// SetCell sets the text of a cell. text starting with '=' and longer than
// one character is a formula; "" empties the cell. on error the sheet is
// unchanged
func (s *Sheet) SetCell(addr Address, text string) error {
	if !addr.Valid() {
		return newInvalidPositionError(addr)
	}
	if err := s.grid.set(addr, text); err != nil {
		s.logger.Debug("rejected cell write", "cell", addr.String(), "error", err)
		return fmt.Errorf("set %s: %w", addr, err)
	}
	if cell := s.grid.lookup(addr); cell != nil {
		s.logger.Debug("committed cell", "cell", addr.String(), "kind", cell.content.kind, "refs", len(cell.readsFrom))
	}
	return nil
}

// GetCell returns the cell at addr, or nil if there is none. it never
// creates a cell
func (s *Sheet) GetCell(addr Address) (*Cell, error) {
	if !addr.Valid() {
		return nil, newInvalidPositionError(addr)
	}
	return s.grid.lookup(addr), nil
}

// ClearCell empties a cell. formulas reading it see it as blank afterwards
func (s *Sheet) ClearCell(addr Address) error {
	if !addr.Valid() {
		return newInvalidPositionError(addr)
	}
	s.grid.clear(addr)
	s.logger.Debug("cleared cell", "cell", addr.String())
	return nil
}

// Value returns the value of the cell at addr, or nil if there is none
func (s *Sheet) Value(addr Address) (Primitive, error) {
	cell, err := s.GetCell(addr)
	if err != nil || cell == nil {
		return nil, err
	}
	return cell.Value()
}

// Set sets a cell by A1-style address
func (s *Sheet) Set(address string, text string) error {
	addr, err := parseAddressArg(address)
	if err != nil {
		return err
	}
	return s.SetCell(addr, text)
}

// Get returns the value of a cell by A1-style address, or nil if there is
// no cell
func (s *Sheet) Get(address string) (Primitive, error) {
	addr, err := parseAddressArg(address)
	if err != nil {
		return nil, err
	}
	return s.Value(addr)
}

// Text returns the text of a cell by A1-style address, "" if there is none
func (s *Sheet) Text(address string) (string, error) {
	addr, err := parseAddressArg(address)
	if err != nil {
		return "", err
	}
	cell := s.grid.lookup(addr)
	if cell == nil {
		return "", nil
	}
	return cell.Text(), nil
}

// Clear empties a cell by A1-style address
func (s *Sheet) Clear(address string) error {
	addr, err := parseAddressArg(address)
	if err != nil {
		return err
	}
	return s.ClearCell(addr)
}

func parseAddressArg(address string) (Address, error) {
	addr := ParseAddress(address)
	if !addr.Valid() {
		return NoAddress, NewApplicationError(OutOfRange, fmt.Sprintf("invalid position: %q", address))
	}
	return addr, nil
}

// Precedents returns every cell addr reads from, directly or transitively
func (s *Sheet) Precedents(addr Address) ([]Address, error) {
	if !addr.Valid() {
		return nil, newInvalidPositionError(addr)
	}
	return s.grid.GetAllPrecedents(addr), nil
}

// Dependents returns every cell that reads addr, directly or transitively
func (s *Sheet) Dependents(addr Address) ([]Address, error) {
	if !addr.Valid() {
		return nil, newInvalidPositionError(addr)
	}
	return s.grid.GetAllDependents(addr), nil
}

// CellCount returns the number of stored cells, empty placeholders included
func (s *Sheet) CellCount() int {
	return len(s.grid.cells)
}

// Calculate evaluates every formula that has no cached result, precedents
// first, so later reads are served from cache
func (s *Sheet) Calculate() error {
	evaluated := 0
	for _, cell := range s.grid.GetCalculationOrder() {
		if cell.hasCache() {
			continue
		}
		if _, err := cell.Value(); err != nil {
			return fmt.Errorf("calculate %s: %w", cell.addr, err)
		}
		evaluated++
	}
	s.logger.Debug("calculated sheet", "evaluated", evaluated)
	return nil
}

// PrintableSize returns the smallest box anchored at A1 that holds every
// cell with non-empty text
func (s *Sheet) PrintableSize() Size {
	return s.grid.printable
}

// PrintValues writes the values of the printable area, one line per row
// with tab-separated fields
func (s *Sheet) PrintValues(w io.Writer) error {
	return s.print(w, false)
}

// PrintTexts writes the texts of the printable area, one line per row with
// tab-separated fields
func (s *Sheet) PrintTexts(w io.Writer) error {
	return s.print(w, true)
}

// Rows returns the printable area as rows of fields, rendered from texts or
// from values. absent cells are empty fields
func (s *Sheet) Rows(texts bool) ([][]string, error) {
	size := s.grid.printable
	rows := make([][]string, 0, size.Rows)
	for row := 0; row < size.Rows; row++ {
		fields := make([]string, size.Cols)
		for col := 0; col < size.Cols; col++ {
			cell := s.grid.lookup(Address{Row: row, Col: col})
			if cell == nil {
				continue
			}
			if texts {
				fields[col] = cell.Text()
				continue
			}
			value, err := cell.Value()
			if err != nil {
				return nil, err
			}
			fields[col] = FormatPrimitive(value)
		}
		rows = append(rows, fields)
	}
	return rows, nil
}

func (s *Sheet) print(w io.Writer, texts bool) error {
	rows, err := s.Rows(texts)
	if err != nil {
		return err
	}
	out := bufio.NewWriter(w)
	for _, fields := range rows {
		out.WriteString(strings.Join(fields, "\t"))
		out.WriteByte('\n')
	}
	return out.Flush()
}

// FormatPrimitive renders a cell value for display
func FormatPrimitive(value Primitive) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return formatNumber(v)
	case *SpreadsheetError:
		return v.Token()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
