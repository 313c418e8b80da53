// internal/connectivity/matrix.go
package connectivity

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/solatis/qamatrix/internal/grid"
	"github.com/solatis/qamatrix/internal/types"
)

/*
 * Connectivity matrix text format.
 *
 *   ;;ROADS;ROADS;RAILS;
 *   ;;Highway;Street;;
 *   JUNCTION;;;;;            <- node type rows: cell 3 blank
 *   ROADS;Highway;x;x;0;     <- adjacency rows, upper triangle
 *   ROADS;Street;;2;x;
 *   RAILS;;;;x;
 *
 * Rows 1 and 2 list the line types from the third column on: class and
 * subtype. A blank class repeats the class to its left and then requires a
 * subtype; a blank subtype means the whole class.
 *
 * Every block starts with zero or more node type rows followed by one
 * adjacency row per line type. The first two cells of an adjacency row are
 * labels and are not read. Cells hold "x" (may connect, no count limit), 0
 * (must not connect) or, on the diagonal only, the maximum number of lines
 * of that type at one node. Lower triangle cells may be blank; when present
 * they must mirror the upper triangle.
 */

const matStart = 2

// Cell value of "x".
const unconstrained = -1

// NodeBlock is the adjacency of line types at nodes of the given types.
type NodeBlock struct {
	Types []ConnectionType
	Cells [][]int
}

func newNodeBlock(nodeTypes []ConnectionType, n int) *NodeBlock {
	cells := make([][]int, n)
	for i := range cells {
		cells[i] = make([]int, n)
	}
	return &NodeBlock{Types: nodeTypes, Cells: cells}
}

// Matrix is a parsed connectivity matrix.
type Matrix struct {
	LineTypes []ConnectionType
	Nodes     []*NodeBlock
}

// Create reads a connectivity matrix.
func Create(r io.Reader) (*Matrix, error) {
	lines, err := grid.ReadLines(r)
	if err != nil {
		return nil, err
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: connectivity matrix needs class and subtype rows", types.ErrFormat)
	}
	// the subtype row is all blank when no line type has a subtype
	var rest []grid.Line
	for _, l := range lines[2:] {
		if !l.Blank() {
			rest = append(rest, l)
		}
	}

	m := &Matrix{}
	classes, subtypes := lines[0].Cells(), lines[1].Cells()
	var last string
	for i := matStart; i < len(classes); i++ {
		class, subtype := classes[i], grid.Cell(subtypes, i)
		if class == "" && subtype == "" && i == len(classes)-1 {
			break
		}
		if class == "" {
			if subtype == "" {
				return nil, fmt.Errorf("%w: line %d, column %d: undefined line type", types.ErrFormat, lines[0].Number, i+1)
			}
			class = last
		}
		if class == "" {
			return nil, fmt.Errorf("%w: line %d, column %d: subtype %q without class", types.ErrFormat, lines[0].Number, i+1, subtype)
		}
		m.LineTypes = append(m.LineTypes, NewConnectionType(class, subtype))
		last = class
	}
	if len(m.LineTypes) == 0 {
		return nil, fmt.Errorf("%w: connectivity matrix lists no line types", types.ErrFormat)
	}

	for len(rest) > 0 {
		block, used, err := parseBlock(rest, len(m.LineTypes))
		if err != nil {
			return nil, err
		}
		m.Nodes = append(m.Nodes, block)
		rest = rest[used:]
	}
	return m, nil
}

func parseBlock(lines []grid.Line, n int) (*NodeBlock, int, error) {
	block := newNodeBlock(nil, n)
	var lastClass string

	used, row := 0, 0
	for row < n {
		if used >= len(lines) {
			return nil, 0, fmt.Errorf("%w: node block ends after %d of %d adjacency rows", types.ErrFormat, row, n)
		}
		line := lines[used]
		used++
		cells := line.Cells()

		if row == 0 && grid.Cell(cells, matStart) == "" {
			class, subtype := grid.Cell(cells, 0), grid.Cell(cells, 1)
			if class == "" {
				class = lastClass
			}
			if class == "" {
				return nil, 0, fmt.Errorf("%w: line %d: undefined node type", types.ErrFormat, line.Number)
			}
			lastClass = class
			block.Types = append(block.Types, NewConnectionType(class, subtype))
			continue
		}

		for col := 0; col < n; col++ {
			s := grid.Cell(cells, col+matStart)
			if col < row {
				if s == "" {
					continue
				}
				v, err := parseCell(s, false)
				if err != nil {
					return nil, 0, fmt.Errorf("line %d, column %d: %w", line.Number, col+matStart+1, err)
				}
				if v != block.Cells[row][col] {
					return nil, 0, fmt.Errorf("%w: line %d, column %d: %q differs from its mirror",
						types.ErrAsymmetricMatrix, line.Number, col+matStart+1, s)
				}
				continue
			}

			v, err := parseCell(s, row == col)
			if err != nil {
				return nil, 0, fmt.Errorf("line %d, column %d: %w", line.Number, col+matStart+1, err)
			}
			block.Cells[row][col] = v
			block.Cells[col][row] = v
		}
		row++
	}
	return block, used, nil
}

func parseCell(s string, diagonal bool) (int, error) {
	if strings.EqualFold(s, "x") {
		return unconstrained, nil
	}
	if s == "" {
		return 0, fmt.Errorf("%w: missing value", types.ErrFormat)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid value %q", types.ErrFormat, s)
	}
	if v < 0 || (!diagonal && v != 0) {
		return 0, fmt.Errorf("%w: can handle values other than 0 and x only on the diagonal, got %q", types.ErrFormat, s)
	}
	return v, nil
}

// ToCsv renders the matrix in the format read by Create.
func (m *Matrix) ToCsv() string {
	var sb strings.Builder
	n := len(m.LineTypes)

	sb.WriteString(strings.Repeat(separator, matStart))
	for _, lt := range m.LineTypes {
		sb.WriteString(lt.Class + separator)
	}
	sb.WriteByte('\n')
	sb.WriteString(strings.Repeat(separator, matStart))
	for _, lt := range m.LineTypes {
		sb.WriteString(lt.SubtypeName + separator)
	}
	sb.WriteByte('\n')

	for _, block := range m.Nodes {
		for _, nt := range block.Types {
			fmt.Fprintf(&sb, "%s;%s;%s\n", nt.Class, nt.SubtypeName, strings.Repeat(separator, n))
		}
		for row := 0; row < n; row++ {
			fmt.Fprintf(&sb, "%s;%s;%s", m.LineTypes[row].Class, m.LineTypes[row].SubtypeName, strings.Repeat(separator, row))
			for col := row; col < n; col++ {
				v := block.Cells[row][col]
				if v == unconstrained {
					sb.WriteString("x")
				} else {
					sb.WriteString(strconv.Itoa(v))
				}
				sb.WriteString(separator)
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// LineTypeIndex returns the index of the untyped line type of class, or -1.
func (m *Matrix) LineTypeIndex(class string) int {
	for i, lt := range m.LineTypes {
		if strings.EqualFold(lt.Class, class) && !lt.Typed() {
			return i
		}
	}
	return -1
}

// LineTypeIndexOf returns the index of the line type with the given class
// and subtype code, or -1.
func (m *Matrix) LineTypeIndexOf(class string, code int) int {
	for i, lt := range m.LineTypes {
		if strings.EqualFold(lt.Class, class) && lt.SubtypeCode == code {
			return i
		}
	}
	return -1
}

// AddNode appends an empty block for nodeTypes.
func (m *Matrix) AddNode(nodeTypes []ConnectionType) *NodeBlock {
	block := newNodeBlock(nodeTypes, len(m.LineTypes))
	m.Nodes = append(m.Nodes, block)
	return block
}

// clone returns a deep copy.
func (m *Matrix) clone() *Matrix {
	c := &Matrix{LineTypes: append([]ConnectionType(nil), m.LineTypes...)}
	for _, b := range m.Nodes {
		nb := newNodeBlock(append([]ConnectionType(nil), b.Types...), len(b.Cells))
		for i := range b.Cells {
			copy(nb.Cells[i], b.Cells[i])
		}
		c.Nodes = append(c.Nodes, nb)
	}
	return c
}
