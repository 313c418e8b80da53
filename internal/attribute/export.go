// internal/attribute/export.go
package attribute

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/qamatrix/internal/expr"
)

/*
 * Attribute matrix export.
 *
 * The tree keeps no record of the matrix it came from, so export re-derives
 * field and codes from each node's condition text. Recognized forms:
 *
 *   F = x                 F IN (x,y)
 *   ISNULL(F,n) = n       ISNULL(F,x) = x       ISNULL(F,x) IN (x,y)
 *
 * where F is a coded-value field of the dataset and every x names one of
 * its codes. Anything else lands in the general column. The result is
 * equivalent to the input matrix, not identical: cell order, synonyms and
 * collapsed shapes such as "F = F" come back normalized.
 *
 * Top-level leaves accumulate into shared rows, written before the next
 * node with children; such a node becomes one row keyed by its own
 * condition. Nodes below the second level
 * have no matrix representation and are dropped with a warning.
 */

// ToCsv renders the constraints as an attribute matrix.
func (dc *DatasetConstraints) ToCsv() (string, error) {
	columns, err := dc.fields.codedFields()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s;;%s;", dc.Dataset.Name, dc.opts.GeneralColumnName)
	for _, t := range columns {
		sb.WriteString(t.field)
		sb.WriteString(strings.Repeat(separator, max(1, len(t.names))))
	}
	sb.WriteByte('\n')

	sb.WriteString(";;;")
	for _, t := range columns {
		if len(t.names) == 0 {
			sb.WriteString(separator)
			continue
		}
		for _, name := range t.names {
			sb.WriteString(name)
			sb.WriteString(separator)
		}
	}
	sb.WriteByte('\n')

	w := &rowWriter{sb: &sb, columns: columns}
	tree := dc.Constraints
	top := w.row("", "")

	for _, id := range tree.Roots() {
		children := tree.Children(id)
		if len(children) == 0 {
			if err := top.add(tree.Condition(id)); err != nil {
				return "", err
			}
			continue
		}

		// keeps leaves ahead of the keyed rows that follow them
		top.flush()

		field, code := dc.rowKey(tree.Condition(id))
		r := w.row(field, code)
		for _, child := range children {
			if n := len(tree.Children(child)); n > 0 {
				dc.opts.Logger.Warn().
					Str("dataset", dc.Dataset.Name).
					Str("condition", tree.Condition(child)).
					Int("dropped", n).
					Msg("nested constraints below second level are not exported")
			}
			if err := r.add(tree.Condition(child)); err != nil {
				return "", err
			}
		}
		r.flush()
	}
	top.flush()

	return sb.String(), nil
}

// rowKey derives the attribute and code cells of a node with children.
func (dc *DatasetConstraints) rowKey(condition string) (string, string) {
	terms, err := expr.SplitCondition(condition)
	if err == nil && len(terms) == 3 && terms[1] == "=" {
		if name, ok := dc.fields.subtypeName(terms); ok {
			return dc.Dataset.SubtypeField, name
		}
		if t, ok := dc.columnTable(terms[0]); ok {
			if i := t.indexOfValue(expr.Unquote(terms[2])); i >= 0 {
				return t.field, t.names[i]
			}
		}
	}
	return condition, ""
}

func (dc *DatasetConstraints) columnTable(field string) (*codeTable, bool) {
	columns, err := dc.fields.codedFields()
	if err != nil {
		return nil, false
	}
	for _, t := range columns {
		if strings.EqualFold(t.field, field) {
			return t, true
		}
	}
	return nil, false
}

type rowWriter struct {
	sb      *strings.Builder
	columns []*codeTable
}

func (w *rowWriter) row(field, code string) *row {
	return &row{w: w, field: field, code: code}
}

// row accumulates the conditions of one matrix row.
type row struct {
	w           *rowWriter
	field, code string
	general     *string
	allowed     map[*codeTable][]int
}

func (r *row) add(condition string) error {
	t, idx, ok := r.w.domainCondition(condition)
	if !ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(condition)); err == nil && b {
			condition = ""
		}
		if r.general != nil {
			r.flush()
		}
		r.general = &condition
		return nil
	}

	if _, dup := r.allowed[t]; dup {
		r.flush()
	}
	if r.allowed == nil {
		r.allowed = make(map[*codeTable][]int)
	}
	r.allowed[t] = idx
	return nil
}

func (r *row) flush() {
	if r.general == nil && len(r.allowed) == 0 {
		return
	}
	general := ""
	if r.general != nil {
		general = *r.general
	}
	fmt.Fprintf(r.w.sb, "%s;%s;%s;", r.field, r.code, general)

	for _, t := range r.w.columns {
		cells := make([]byte, len(t.names))
		for i := range cells {
			cells[i] = '0'
		}
		for _, i := range r.allowed[t] {
			cells[i] = '1'
		}
		for _, c := range cells {
			r.w.sb.WriteByte(c)
			r.w.sb.WriteString(separator)
		}
	}
	r.w.sb.WriteByte('\n')

	r.general = nil
	r.allowed = nil
}

// domainCondition recognizes a condition restricting one coded field to a
// set of codes and returns the table and the allowed entry indexes.
func (w *rowWriter) domainCondition(condition string) (*codeTable, []int, bool) {
	terms, err := expr.SplitCondition(condition)
	if err != nil || len(terms) < 3 {
		return nil, nil, false
	}

	field, start, isNull := terms[0], 1, false
	if strings.EqualFold(terms[0], "ISNULL") {
		if len(terms) < 8 || terms[1] != "(" || terms[3] != "," || terms[5] != ")" {
			return nil, nil, false
		}
		field, start, isNull = terms[2], 6, true
	}

	var table *codeTable
	for _, t := range w.columns {
		if strings.EqualFold(t.field, field) {
			table = t
		}
	}
	if table == nil || table.nullIndex < 0 {
		return nil, nil, false
	}

	var idx []int
	switch {
	case terms[start] == "=":
		if start != len(terms)-2 {
			return nil, nil, false
		}
		i := table.indexOfValue(expr.Unquote(terms[len(terms)-1]))
		if isNull {
			if i >= 0 && i != table.nullIndex {
				idx = append(idx, i)
			}
			idx = append(idx, table.nullIndex)
		} else {
			if i < 0 {
				return nil, nil, false
			}
			idx = append(idx, i)
		}

	case strings.EqualFold(terms[start], "IN"):
		last := len(terms) - 1
		if start+1 > last || terms[start+1] != "(" || terms[last] != ")" {
			return nil, nil, false
		}
		for k := start + 2; k < last; k += 2 {
			if k != last-1 && terms[k+1] != "," {
				return nil, nil, false
			}
			i := table.indexOfValue(expr.Unquote(terms[k]))
			if i < 0 {
				return nil, nil, false
			}
			idx = append(idx, i)
		}
		if isNull {
			idx = append(idx, table.nullIndex)
		}

	default:
		return nil, nil, false
	}

	return table, idx, true
}

// Flatten returns the '+'-prefixed form of the tree.
func (dc *DatasetConstraints) Flatten() []string {
	return dc.Constraints.Flatten()
}
