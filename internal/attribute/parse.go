// internal/attribute/parse.go
package attribute

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/solatis/qamatrix/internal/constraint"
	"github.com/solatis/qamatrix/internal/grid"
	"github.com/solatis/qamatrix/internal/types"
)

/*
 * Attribute matrix parsing.
 *
 * Layout (';'-separated):
 *
 *   ROADS      ;          ;<Generell>;WIDTH;     ;     ;LANES;...
 *              ;          ;          ;1    ;2    ;<NULL>;1   ;...
 *   SUBTYPE    ;Highway   ;          ;1    ;0    ;0    ;1   ;...
 *              ;Street    ;LEN > 10  ;1    ;1    ;1    ;    ;...
 *
 * Header row 1 names the dataset and, from column 3 on, the field owning
 * each column; a blank field cell repeats the field to its left. Header row
 * 2 names the code of each column; a blank code cell marks an unused column.
 *
 * Each data row yields a list of fragments: the general cell verbatim, then
 * one condition per field collapsing the row's allowed (1) codes. Where the
 * fragments go depends on the first two cells:
 *
 *   attr + code  new top-level node "attr = id" with the fragments as children
 *   attr only    new top-level node "attr" wrapping every top-level node so
 *                far followed by the fragments
 *   neither      fragments appended at top level
 *
 * A code without attr reuses the attr of the previous code row.
 */

// Quality condition vocabulary.
const (
	TestDescriptor      = "QaDatasetConstraintFactory"
	TableParameter      = "table"
	ConstraintParameter = "constraint"
	QualityConditionTag = "qc_dataset_"
)

const separator = grid.Separator

// fixed leading columns: attribute, code, general condition
const leadColumns = 3

// DatasetConstraints is the compiled form of an attribute matrix: the
// constraint tree of one dataset.
type DatasetConstraints struct {
	Dataset     *types.Dataset
	Constraints *constraint.Tree

	opts   Options
	fields *fieldCache
}

// New wraps an existing tree for export.
func New(dataset *types.Dataset, tree *constraint.Tree, opts Options) *DatasetConstraints {
	opts = opts.withDefaults()
	if tree == nil {
		tree = constraint.New()
	}
	return &DatasetConstraints{
		Dataset:     dataset,
		Constraints: tree,
		opts:        opts,
		fields:      newFieldCache(dataset, opts.Logger),
	}
}

// fragment is a constraint node under construction. The arena tree fixes
// parents on insert, and "attr only" rows re-parent existing nodes, so rows
// are collected here first.
type fragment struct {
	condition string
	children  []*fragment
}

func leaves(conditions []string) []*fragment {
	out := make([]*fragment, len(conditions))
	for i, c := range conditions {
		out[i] = &fragment{condition: c}
	}
	return out
}

// Parse reads an attribute matrix and resolves it against catalog.
func Parse(ctx context.Context, r io.Reader, catalog types.Catalog, opts Options) (*DatasetConstraints, error) {
	opts = opts.withDefaults()

	lines, err := grid.ReadLines(r)
	if err != nil {
		return nil, err
	}
	lines = slices.DeleteFunc(lines, grid.Line.Empty)
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: attribute matrix needs two header rows, got %d", types.ErrFormat, len(lines))
	}

	attributes := lines[0].Cells()
	codeNames := lines[1].Cells()

	if len(attributes) < leadColumns {
		return nil, fmt.Errorf("%w: line 1: expected dataset;;%s;fields..., got %q", types.ErrFormat, opts.GeneralColumnName, lines[0].Text)
	}
	if attributes[1] != "" {
		return nil, fmt.Errorf("%w: line 1: column 2 must be empty, got %q", types.ErrFormat, attributes[1])
	}
	if attributes[2] != "" && !strings.EqualFold(attributes[2], opts.GeneralColumnName) {
		return nil, fmt.Errorf("%w: line 1: column 3 must be empty or %s, got %q", types.ErrFormat, opts.GeneralColumnName, attributes[2])
	}
	for i := 0; i < leadColumns && i < len(codeNames); i++ {
		if codeNames[i] != "" {
			return nil, fmt.Errorf("%w: line 2: column %d must be empty, got %q", types.ErrFormat, i+1, codeNames[i])
		}
	}

	dataset, err := catalog.Dataset(ctx, attributes[0])
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dataset %s: %w", attributes[0], err)
	}

	dc := New(dataset, nil, opts)

	columns, err := dc.columnCodes(attributes, codeNames)
	if err != nil {
		return nil, err
	}

	var top []*fragment
	var rowAttr string
	var rowTable *codeTable

	for _, line := range lines[2:] {
		cells := line.Cells()
		for len(cells) < leadColumns+len(columns) {
			cells = append(cells, "")
		}
		attr, codeName, general := cells[0], cells[1], cells[2]

		conditions, err := dc.rowConditions(columns, cells[leadColumns:], line.Number)
		if err != nil {
			return nil, err
		}
		if general != "" {
			conditions = append([]string{general}, conditions...)
		}

		switch {
		case codeName == "" && attr == "":
			top = append(top, leaves(conditions)...)

		case codeName == "":
			wrapper := &fragment{condition: attr, children: append(top, leaves(conditions)...)}
			top = []*fragment{wrapper}

		default:
			if attr != "" && !strings.EqualFold(attr, rowAttr) {
				rowTable, err = dc.fields.codes(attr)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", line.Number, err)
				}
				rowAttr = attr
			}
			if rowTable == nil {
				return nil, fmt.Errorf("%w: line %d: code %q without attribute", types.ErrFormat, line.Number, codeName)
			}
			code, err := dc.opts.resolveCode(rowTable, rowAttr, codeName)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line.Number, err)
			}
			top = append(top, &fragment{
				condition: fmt.Sprintf("%s = %s", code.Field, code.Literal()),
				children:  leaves(conditions),
			})
		}
	}

	tree := constraint.New()
	var add func(parent constraint.NodeID, frags []*fragment)
	add = func(parent constraint.NodeID, frags []*fragment) {
		for _, f := range frags {
			add(tree.Add(parent, f.condition), f.children)
		}
	}
	add(constraint.Root, top)
	dc.Constraints = tree

	opts.Logger.Debug().Str("dataset", dataset.Name).Int("nodes", tree.Len()).Msg("parsed attribute matrix")
	return dc, nil
}

// columnCodes resolves the code of every matrix column. Unused columns
// (blank code cell) are nil.
func (dc *DatasetConstraints) columnCodes(attributes, codeNames []string) ([]*Code, error) {
	columns := make([]*Code, 0, len(attributes)-leadColumns)

	var table *codeTable
	var attr string
	for i := leadColumns; i < len(attributes); i++ {
		if name := attributes[i]; name != "" && name != attr {
			t, err := dc.fields.codes(name)
			if err != nil {
				return nil, fmt.Errorf("line 1, column %d: %w", i+1, err)
			}
			table, attr = t, name
		}

		codeName := ""
		if i < len(codeNames) {
			codeName = codeNames[i]
		}
		if codeName == "" {
			columns = append(columns, nil)
			continue
		}
		if table == nil {
			return nil, fmt.Errorf("%w: line 2, column %d: code %q below no field", types.ErrFormat, i+1, codeName)
		}

		code, err := dc.opts.resolveCode(table, attr, codeName)
		if err != nil {
			return nil, fmt.Errorf("line 2, column %d: %w", i+1, err)
		}
		columns = append(columns, &code)
	}
	return columns, nil
}

// rowConditions collapses the allowed codes of one data row into one
// condition per field, in field name order.
func (dc *DatasetConstraints) rowConditions(columns []*Code, cells []string, lineNumber int) ([]string, error) {
	var allowed []Code
	for i, column := range columns {
		value := strings.TrimSpace(cells[i])
		switch {
		case value == "":
		case column == nil:
			return nil, fmt.Errorf("%w: line %d, column %d: value %q in unused column", types.ErrFormat, lineNumber, i+leadColumns+1, value)
		case value == "1":
			allowed = append(allowed, *column)
		case value == "0":
		default:
			return nil, fmt.Errorf("%w: line %d, column %d: unhandled value %q", types.ErrFormat, lineNumber, i+leadColumns+1, value)
		}
	}

	sort.SliceStable(allowed, func(a, b int) bool {
		return strings.ToUpper(allowed[a].Field) < strings.ToUpper(allowed[b].Field)
	})

	var conditions []string
	for start := 0; start < len(allowed); {
		end := start + 1
		for end < len(allowed) && strings.EqualFold(allowed[end].Field, allowed[start].Field) {
			end++
		}
		condition, err := dc.opts.conditionFor(allowed[start:end])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNumber, err)
		}
		if condition != "" {
			conditions = append(conditions, condition)
		}
		start = end
	}
	return conditions, nil
}
