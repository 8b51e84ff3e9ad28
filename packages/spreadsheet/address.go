package spreadsheet

import (
	"slices"
	"strconv"
	"strings"
)

// maximum grid dimensions. addresses outside these bounds are never stored
const (
	MaxRows = 16384
	MaxCols = 16384
)

// maxColumnLetters is the longest column prefix that can still be valid
const maxColumnLetters = 3

// Address identifies a cell by zero-based row and column
type Address struct {
	Row int
	Col int
}

// NoAddress is returned when a string cannot be parsed as a cell address
var NoAddress = Address{Row: -1, Col: -1}

// Size is a row/column count, used for the printable area of a sheet
type Size struct {
	Rows int
	Cols int
}

// Valid reports whether the address lies within the grid bounds
func (a Address) Valid() bool {
	return a.Row >= 0 && a.Col >= 0 && a.Row < MaxRows && a.Col < MaxCols
}

// Less orders addresses row-major
func (a Address) Less(b Address) bool {
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Col < b.Col
}

// String returns the A1-style form of the address, or "" if it is not valid
func (a Address) String() string {
	if !a.Valid() {
		return ""
	}
	return columnToLetters(a.Col) + strconv.Itoa(a.Row+1)
}

// ParseAddress parses an A1-style address. column letters must be upper case.
// malformed or out of bounds input yields NoAddress
func ParseAddress(s string) Address {
	letterEnd := 0
	for letterEnd < len(s) && s[letterEnd] >= 'A' && s[letterEnd] <= 'Z' {
		letterEnd++
	}
	if letterEnd == 0 || letterEnd == len(s) || letterEnd > maxColumnLetters {
		return NoAddress
	}

	rowStr := s[letterEnd:]
	for i := 0; i < len(rowStr); i++ {
		if rowStr[i] < '0' || rowStr[i] > '9' {
			return NoAddress
		}
	}
	rowNum, err := strconv.Atoi(rowStr)
	if err != nil || rowNum < 1 || rowNum > MaxRows {
		return NoAddress
	}

	// A=0, B=1, ..., Z=25, AA=26, AB=27, ...
	col := 0
	for i := 0; i < letterEnd; i++ {
		col = col*26 + int(s[i]-'A') + 1
	}
	col--

	addr := Address{Row: rowNum - 1, Col: col}
	if !addr.Valid() {
		return NoAddress
	}
	return addr
}

// columnToLetters converts a zero-based column index to letters
func columnToLetters(col int) string {
	var sb strings.Builder
	letters := make([]byte, 0, maxColumnLetters)
	for col >= 0 {
		letters = append(letters, byte('A'+col%26))
		col = col/26 - 1
	}
	for i := len(letters) - 1; i >= 0; i-- {
		sb.WriteByte(letters[i])
	}
	return sb.String()
}

// sortAddresses sorts addresses row-major in place
func sortAddresses(addrs []Address) {
	slices.SortFunc(addrs, func(a, b Address) int {
		if a.Less(b) {
			return -1
		}
		if b.Less(a) {
			return 1
		}
		return 0
	})
}
