package spreadsheet

import (
	"strings"
)

// Primitive represents the value of a cell.
// types:
//   - string: text values, and the value of an empty cell ("")
//   - float64: the result of a formula
//   - *SpreadsheetError: a formula error (#REF!, #VALUE!, #DIV/0!)
type Primitive any

// ErrorCode represents spreadsheet error codes following Excel conventions.
// formulas here only ever produce the three below
type ErrorCode uint8

const (
	ErrorCodeDiv0  ErrorCode = 2 // #DIV/0! - division by zero or a non-finite result
	ErrorCodeValue ErrorCode = 3 // #VALUE! - operand text that is not a number
	ErrorCodeRef   ErrorCode = 4 // #REF! - reference outside the grid
)

// ErrorMapper maps error code numbers to their string representations
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeDiv0:  "#DIV/0!",
	ErrorCodeValue: "#VALUE!",
	ErrorCodeRef:   "#REF!",
}

// SpreadsheetError preserves error code for display in cells. it is a value,
// not a failure of the call that produced it
type SpreadsheetError struct {
	ErrorCode ErrorCode
	Message   string
}

func (e *SpreadsheetError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ErrorMapper[e.ErrorCode]
}

// Token returns the display form of the error, e.g. "#DIV/0!"
func (e *SpreadsheetError) Token() string {
	return ErrorMapper[e.ErrorCode]
}

func NewSpreadsheetError(code ErrorCode, message string) *SpreadsheetError {
	if message == "" {
		message = ErrorMapper[code]
	}
	return &SpreadsheetError{
		ErrorCode: code,
		Message:   message,
	}
}

const (
	escapeSign   = '\''
	formulaStart = "="
)

// contentKind is the closed set of things a cell can hold
type contentKind uint8

const (
	contentEmpty contentKind = iota
	contentText
	contentFormula
)

func (k contentKind) String() string {
	switch k {
	case contentText:
		return "text"
	case contentFormula:
		return "formula"
	default:
		return "empty"
	}
}

// formulaResult is a memoized formula outcome. exactly one of number or err
// is meaningful
type formulaResult struct {
	number float64
	err    *SpreadsheetError
}

func (r *formulaResult) primitive() Primitive {
	if r.err != nil {
		return r.err
	}
	return r.number
}

// content is what a cell holds. text is set for contentText, formula and
// cache for contentFormula
type content struct {
	kind    contentKind
	text    string
	formula *Formula
	cache   *formulaResult
}

// classifyContent turns raw input text into cell content. a lone "=" is text
func classifyContent(text string) (content, error) {
	if text == "" {
		return content{kind: contentEmpty}, nil
	}
	if hasFormulaPrefix(text) {
		formula, err := ParseFormula(text[1:])
		if err != nil {
			return content{}, err
		}
		return content{kind: contentFormula, formula: formula}, nil
	}
	return content{kind: contentText, text: text}, nil
}

// Cell is a single slot of a sheet. cells are owned by their sheet and are
// only modified through it
type Cell struct {
	addr    Address
	grid    *grid
	content content

	readsFrom map[Address]struct{} // cells this formula reads
	readBy    map[Address]struct{} // formula cells that read this one
}

func newCell(g *grid, addr Address) *Cell {
	return &Cell{
		addr:      addr,
		grid:      g,
		readsFrom: make(map[Address]struct{}),
		readBy:    make(map[Address]struct{}),
	}
}

// Address returns the position of the cell
func (c *Cell) Address() Address {
	return c.addr
}

// IsFormula reports whether the cell holds a formula
func (c *Cell) IsFormula() bool {
	return c.content.kind == contentFormula
}

// IsEmpty reports whether the cell has no content. an empty cell can exist
// when other formulas reference it
func (c *Cell) IsEmpty() bool {
	return c.content.kind == contentEmpty
}

// Text returns the text the cell would be set from. formulas are printed in
// canonical form
func (c *Cell) Text() string {
	switch c.content.kind {
	case contentText:
		return c.content.text
	case contentFormula:
		return formulaStart + c.content.formula.Expression()
	default:
		return ""
	}
}

// Value returns the cell's value, evaluating and caching a formula result
// if needed. the only error is a structural one from the evaluation depth
// guard; formula errors come back as a *SpreadsheetError value
func (c *Cell) Value() (Primitive, error) {
	switch c.content.kind {
	case contentText:
		if c.content.text[0] == escapeSign {
			return c.content.text[1:], nil
		}
		return c.content.text, nil
	case contentFormula:
		if c.content.cache == nil {
			result, err := c.grid.evaluate(c)
			if err != nil {
				return nil, err
			}
			c.content.cache = result
		}
		return c.content.cache.primitive(), nil
	default:
		return "", nil
	}
}

// ReferencedCells returns the cells this cell's formula reads, in row-major
// order
func (c *Cell) ReferencedCells() []Address {
	return sortedAddresses(c.readsFrom)
}

// DependentCells returns the formula cells that read this cell, in row-major
// order
func (c *Cell) DependentCells() []Address {
	return sortedAddresses(c.readBy)
}

// hasCache reports whether the cell holds a memoized formula result
func (c *Cell) hasCache() bool {
	return c.content.cache != nil
}

// set replaces the cell content. on error nothing changes
func (c *Cell) set(text string) error {
	if text == c.Text() {
		return nil
	}

	next, err := classifyContent(text)
	if err != nil {
		return err
	}

	var refs []Address
	if next.kind == contentFormula {
		refs = next.formula.ReferencedCells()
		if c.grid.reaches(refs, c.addr) {
			return newCircularDependencyError(c.addr)
		}
	}

	c.commit(next, refs)
	return nil
}

// clear resets the cell to empty, detaching it from the cells it read
func (c *Cell) clear() {
	if c.content.kind == contentEmpty {
		return
	}
	c.commit(content{kind: contentEmpty}, nil)
}

// commit swaps in validated content. edges are rewired before any cache is
// dropped so the graph is consistent when invalidation walks it
func (c *Cell) commit(next content, refs []Address) {
	for addr := range c.readsFrom {
		if dep := c.grid.lookup(addr); dep != nil {
			delete(dep.readBy, c.addr)
		}
	}

	previous := c.content.kind
	if previous == contentFormula {
		c.grid.formulas.Release(c.content.formula)
	}
	if next.kind == contentFormula {
		next.formula = c.grid.formulas.Intern(next.formula)
	}
	c.content = next
	c.readsFrom = make(map[Address]struct{}, len(refs))
	for _, addr := range refs {
		c.readsFrom[addr] = struct{}{}
		c.grid.materialize(addr).readBy[c.addr] = struct{}{}
	}

	c.grid.trackPrintable(c.addr, previous != contentEmpty, next.kind != contentEmpty)
	c.grid.invalidate(c)
}

func sortedAddresses(set map[Address]struct{}) []Address {
	addrs := make([]Address, 0, len(set))
	for addr := range set {
		addrs = append(addrs, addr)
	}
	sortAddresses(addrs)
	return addrs
}

// hasFormulaPrefix reports whether text would be stored as a formula
func hasFormulaPrefix(text string) bool {
	return len(text) > 1 && strings.HasPrefix(text, formulaStart)
}
