package spreadsheet

import "iter"

// MaxRangeCells caps how many cells a single range argument may cover. every
// covered cell becomes an edge in the dependency graph
const MaxRangeCells = 10000

// CellRange is a rectangular block of cells with its corners normalized so
// Start is the top-left and End the bottom-right
type CellRange struct {
	Start Address
	End   Address
}

// NewCellRange builds a range from two opposite corners in any order. if
// either corner is invalid the range is invalid
func NewCellRange(a, b Address) CellRange {
	if !a.Valid() || !b.Valid() {
		return CellRange{Start: NoAddress, End: NoAddress}
	}
	return CellRange{
		Start: Address{Row: min(a.Row, b.Row), Col: min(a.Col, b.Col)},
		End:   Address{Row: max(a.Row, b.Row), Col: max(a.Col, b.Col)},
	}
}

// Valid reports whether both corners lie within the grid
func (r CellRange) Valid() bool {
	return r.Start.Valid() && r.End.Valid()
}

// Count returns the number of cells covered
func (r CellRange) Count() int {
	if !r.Valid() {
		return 0
	}
	return (r.End.Row - r.Start.Row + 1) * (r.End.Col - r.Start.Col + 1)
}

func (r CellRange) String() string {
	if !r.Valid() {
		return ""
	}
	return r.Start.String() + ":" + r.End.String()
}

// Addresses iterates the covered cells in row-major order
func (r CellRange) Addresses() iter.Seq[Address] {
	return func(yield func(Address) bool) {
		if !r.Valid() {
			return
		}
		for row := r.Start.Row; row <= r.End.Row; row++ {
			for col := r.Start.Col; col <= r.End.Col; col++ {
				if !yield(Address{Row: row, Col: col}) {
					return
				}
			}
		}
	}
}
