package spreadsheet

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// grid is the sparse cell store behind a Sheet. it owns every cell and
// keeps the bookkeeping needed to answer PrintableSize without a scan
type grid struct {
	cells    map[Address]*Cell
	formulas *FormulaTable

	// counts of non-empty cells per row and column, and the resulting box
	rowCounts map[int]int
	colCounts map[int]int
	printable Size

	evalDepth    int
	maxEvalDepth int

	logger *slog.Logger
}

func newGrid(maxEvalDepth int, logger *slog.Logger) *grid {
	return &grid{
		cells:        make(map[Address]*Cell),
		formulas:     NewFormulaTable(),
		rowCounts:    make(map[int]int),
		colCounts:    make(map[int]int),
		maxEvalDepth: maxEvalDepth,
		logger:       logger,
	}
}

// lookup returns the cell at addr, or nil. it never creates
func (g *grid) lookup(addr Address) *Cell {
	return g.cells[addr]
}

// materialize returns the cell at addr, creating an empty one if needed
func (g *grid) materialize(addr Address) *Cell {
	if cell, ok := g.cells[addr]; ok {
		return cell
	}
	cell := newCell(g, addr)
	g.cells[addr] = cell
	return cell
}

// set writes text to addr, creating the cell if it is absent. a new cell is
// only added once the write has been accepted, so a rejected write leaves no
// trace. "" on an absent address stores an empty cell
func (g *grid) set(addr Address, text string) error {
	if cell := g.lookup(addr); cell != nil {
		return cell.set(text)
	}
	if text == "" {
		g.cells[addr] = newCell(g, addr)
		return nil
	}

	cell := newCell(g, addr)
	if err := cell.set(text); err != nil {
		return err
	}
	g.cells[addr] = cell
	return nil
}

// clear empties addr. the slot is dropped unless formulas still read it
func (g *grid) clear(addr Address) {
	cell := g.lookup(addr)
	if cell == nil {
		return
	}
	cell.clear()
	if len(cell.readBy) == 0 {
		delete(g.cells, addr)
	}
}

// trackPrintable updates the printable box when a cell moves between empty
// and non-empty
func (g *grid) trackPrintable(addr Address, wasPrintable, isPrintable bool) {
	switch {
	case wasPrintable == isPrintable:
		return
	case isPrintable:
		g.rowCounts[addr.Row]++
		g.colCounts[addr.Col]++
		g.printable.Rows = max(g.printable.Rows, addr.Row+1)
		g.printable.Cols = max(g.printable.Cols, addr.Col+1)
	default:
		if decrement(g.rowCounts, addr.Row) && addr.Row+1 == g.printable.Rows {
			g.printable.Rows = extent(g.rowCounts)
		}
		if decrement(g.colCounts, addr.Col) && addr.Col+1 == g.printable.Cols {
			g.printable.Cols = extent(g.colCounts)
		}
	}
}

// decrement lowers counts[key] and reports whether it reached zero
func decrement(counts map[int]int, key int) bool {
	counts[key]--
	if counts[key] > 0 {
		return false
	}
	delete(counts, key)
	return true
}

// extent returns one past the largest key with a positive count
func extent(counts map[int]int) int {
	result := 0
	for key := range counts {
		result = max(result, key+1)
	}
	return result
}

// evaluate computes a formula cell's result under the depth guard. a
// structural error means nothing may be cached on the way back up
func (g *grid) evaluate(c *Cell) (*formulaResult, error) {
	if g.evalDepth >= g.maxEvalDepth {
		g.logger.Warn("evaluation depth exceeded", "cell", c.addr.String(), "limit", g.maxEvalDepth)
		return nil, NewApplicationError(ResourceExhausted,
			fmt.Sprintf("evaluation of %s exceeds maximum depth %d", c.addr, g.maxEvalDepth))
	}

	g.evalDepth++
	defer func() { g.evalDepth-- }()

	num, err := c.content.formula.Evaluate(g.resolve)
	if err != nil {
		var formulaErr *SpreadsheetError
		if errors.As(err, &formulaErr) {
			return &formulaResult{err: formulaErr}, nil
		}
		return nil, err
	}
	return &formulaResult{number: num}, nil
}

// resolve turns an operand address into a number for formula evaluation
func (g *grid) resolve(addr Address) (float64, error) {
	if !addr.Valid() {
		return 0, NewSpreadsheetError(ErrorCodeRef, "Invalid cell reference")
	}
	cell := g.lookup(addr)
	if cell == nil {
		return 0, nil
	}

	value, err := cell.Value()
	if err != nil {
		return 0, err
	}
	switch v := value.(type) {
	case float64:
		return v, nil
	case *SpreadsheetError:
		return 0, v
	case string:
		return textToNumber(v)
	default:
		return 0, NewSpreadsheetError(ErrorCodeValue, "")
	}
}

// textToNumber converts an operand's text. blank text is zero; anything else
// must be a finite decimal number in full. hex floats and digit separators
// are not numbers here
func textToNumber(text string) (float64, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, nil
	}
	if strings.ContainsAny(trimmed, "xXpP_") {
		return 0, NewSpreadsheetError(ErrorCodeValue, fmt.Sprintf("Cannot convert %q to a number", text))
	}
	num, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsInf(num, 0) || math.IsNaN(num) {
		return 0, NewSpreadsheetError(ErrorCodeValue, fmt.Sprintf("Cannot convert %q to a number", text))
	}
	return num, nil
}
