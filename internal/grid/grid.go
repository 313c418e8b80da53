// internal/grid/grid.go
package grid

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

/*
 * Line reading for ';'-separated matrix text.
 *
 * Lines keep their 1-based number so parse errors can point at the input.
 * Cells are trimmed; rows may be ragged and Cell reads past the end as "".
 */

// Separator splits the cells of a row.
const Separator = ";"

// Line is one input line with its 1-based number.
type Line struct {
	Number int
	Text   string
}

// Empty reports whether the line holds only whitespace.
func (l Line) Empty() bool {
	return strings.TrimSpace(l.Text) == ""
}

// Blank reports whether the line has no non-blank cell.
func (l Line) Blank() bool {
	return strings.Trim(l.Text, Separator+" \t") == ""
}

// Cells splits the line into trimmed cells.
func (l Line) Cells() []string {
	return SplitRow(l.Text)
}

// ReadLines returns every line of r with trailing CR removed.
func ReadLines(r io.Reader) ([]Line, error) {
	var out []Line
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		out = append(out, Line{Number: n, Text: strings.TrimRight(scanner.Text(), "\r")})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read matrix: %w", err)
	}
	return out, nil
}

// SplitRow splits a row into trimmed cells.
func SplitRow(row string) []string {
	cells := strings.Split(row, Separator)
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

// Cell returns cells[i], or "" past the end.
func Cell(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}
