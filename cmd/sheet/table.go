package main

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

// writeTable draws rows as a bordered table with column letters across the
// top and row numbers down the left. widths are measured in terminal cells
func writeTable(w io.Writer, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	cols := len(rows[0])
	header := make([]string, cols+1)
	for col := 0; col < cols; col++ {
		header[col+1] = columnLabel(col)
	}

	table := make([][]string, 0, len(rows)+1)
	table = append(table, header)
	for i, fields := range rows {
		line := make([]string, 0, cols+1)
		line = append(line, strconv.Itoa(i+1))
		line = append(line, fields...)
		table = append(table, line)
	}

	widths := make([]int, cols+1)
	for _, line := range table {
		for i, field := range line {
			if n := runewidth.StringWidth(field); n > widths[i] {
				widths[i] = n
			}
		}
	}

	out := bufio.NewWriter(w)
	border := tableBorder(widths)
	out.WriteString(border)
	for i, line := range table {
		out.WriteString("|")
		for col, field := range line {
			out.WriteString(" ")
			if col == 0 {
				out.WriteString(runewidth.FillLeft(field, widths[col]))
			} else {
				out.WriteString(runewidth.FillRight(field, widths[col]))
			}
			out.WriteString(" |")
		}
		out.WriteString("\n")
		if i == 0 {
			out.WriteString(border)
		}
	}
	out.WriteString(border)
	return out.Flush()
}

func tableBorder(widths []int) string {
	var b strings.Builder
	b.WriteString("+")
	for _, width := range widths {
		b.WriteString(strings.Repeat("-", width+2))
		b.WriteString("+")
	}
	b.WriteString("\n")
	return b.String()
}

// columnLabel returns the letters of a zero-based column, e.g. 27 -> "AB"
func columnLabel(col int) string {
	name := spreadsheet.Address{Row: 0, Col: col}.String()
	return strings.TrimRight(name, "0123456789")
}
