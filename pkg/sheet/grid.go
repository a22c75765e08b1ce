// Package sheet reads uploaded spreadsheets into a cell grid and locates
// labelled columns and key/value sections inside it.
package sheet

import "strings"

// SectionDepth is the number of rows read beneath a section title
const SectionDepth = 10

// Position addresses a cell by zero-based row and column
type Position struct {
	Row int
	Col int
}

// Grid is a rectangular, read-only table of cell values.
// Cells past the end of a short row read as empty.
type Grid struct {
	rows  [][]Value
	width int
}

func NewGrid(rows [][]Value) *Grid {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return &Grid{rows: rows, width: width}
}

// FromStrings builds a grid from raw cell strings, classifying each with Parse
func FromStrings(rows [][]string) *Grid {
	values := make([][]Value, len(rows))
	for i, row := range rows {
		values[i] = make([]Value, len(row))
		for j, cell := range row {
			values[i][j] = Parse(cell)
		}
	}
	return NewGrid(values)
}

func (g *Grid) Rows() int {
	return len(g.rows)
}

func (g *Grid) Cols() int {
	return g.width
}

func (g *Grid) At(row, col int) Value {
	if row < 0 || row >= len(g.rows) || col < 0 || col >= len(g.rows[row]) {
		return Value{}
	}
	return g.rows[row][col]
}

// Find scans rows top-to-bottom and columns left-to-right and returns the
// position of the first cell accepted by match.
func (g *Grid) Find(match func(Value) bool) (Position, bool) {
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			if match(g.At(r, c)) {
				return Position{Row: r, Col: c}, true
			}
		}
	}
	return Position{}, false
}

// Column locates the first cell whose trimmed text equals label, ignoring
// case, and returns the contiguous run of non-empty cells below it.
// It returns nil when the label is absent.
func (g *Grid) Column(label string) []Value {
	pos, ok := g.Find(func(v Value) bool {
		return strings.EqualFold(v.String(), label)
	})
	if !ok {
		return nil
	}

	values := []Value{}
	for r := pos.Row + 1; r < g.Rows(); r++ {
		v := g.At(r, pos.Col)
		if v.IsEmpty() {
			break
		}
		values = append(values, v)
	}
	return values
}

// Section locates the first cell whose trimmed text equals title and reads
// key/value pairs from the SectionDepth rows beneath it. Within a row the
// non-empty cells pair up left to right; an odd trailing cell is dropped.
// Later keys overwrite earlier ones.
func (g *Grid) Section(title string) map[string]string {
	pairs := map[string]string{}

	pos, ok := g.Find(func(v Value) bool {
		return v.String() == title
	})
	if !ok {
		return pairs
	}

	for r := pos.Row + 1; r <= pos.Row+SectionDepth && r < g.Rows(); r++ {
		cells := g.nonEmpty(r)
		for i := 0; i+1 < len(cells); i += 2 {
			pairs[cells[i].String()] = cells[i+1].String()
		}
	}
	return pairs
}

func (g *Grid) nonEmpty(row int) []Value {
	var cells []Value
	for c := 0; c < g.Cols(); c++ {
		if v := g.At(row, c); !v.IsEmpty() {
			cells = append(cells, v)
		}
	}
	return cells
}
