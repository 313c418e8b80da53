// internal/attribute/quality.go
package attribute

import (
	"context"
	"fmt"
	"strings"

	"github.com/solatis/qamatrix/internal/constraint"
	"github.com/solatis/qamatrix/internal/types"
)

/*
 * Parameter bag conversion.
 *
 * A dataset constraint condition holds one "table" dataset parameter and
 * the flattened tree as "constraint" strings, each prefixed by '+' per
 * level of depth. Reading accepts exactly that shape; any other parameter
 * name or kind is rejected.
 */

// ToQualityCondition flattens the constraints into a parameter bag: one
// table reference followed by one constraint string per node, in pre-order.
func (dc *DatasetConstraints) ToQualityCondition() *types.QualityCondition {
	qc := types.NewQualityCondition(QualityConditionTag+dc.Dataset.Name, TestDescriptor)
	qc.Add(types.DatasetValue(TableParameter, dc.Dataset.Name, ""))
	for _, line := range dc.Constraints.Flatten() {
		qc.Add(types.StringValue(ConstraintParameter, line))
	}
	return qc
}

// FromQualityCondition rebuilds constraints from a parameter bag produced
// by ToQualityCondition.
func FromQualityCondition(ctx context.Context, qc *types.QualityCondition, catalog types.Catalog, opts Options) (*DatasetConstraints, error) {
	if err := qc.Validate(); err != nil {
		return nil, err
	}

	var table string
	var lines []string
	for _, v := range qc.Values {
		switch {
		case strings.EqualFold(v.Name, TableParameter):
			if v.Kind != types.KindDataset {
				return nil, fmt.Errorf("%w: %s must reference a dataset", types.ErrInvalidParameters, TableParameter)
			}
			if table != "" {
				return nil, fmt.Errorf("%w: multiple %s parameters", types.ErrInvalidParameters, TableParameter)
			}
			table = v.Dataset
		case strings.EqualFold(v.Name, ConstraintParameter):
			if v.Kind != types.KindString {
				return nil, fmt.Errorf("%w: %s must be a string", types.ErrInvalidParameters, ConstraintParameter)
			}
			lines = append(lines, v.Text)
		default:
			return nil, fmt.Errorf("%w: unexpected parameter %s", types.ErrInvalidParameters, v.Name)
		}
	}
	if table == "" {
		return nil, fmt.Errorf("%w: missing %s parameter", types.ErrInvalidParameters, TableParameter)
	}

	tree, err := constraint.Hierarchy(lines)
	if err != nil {
		return nil, fmt.Errorf("quality condition %s: %w", qc.Name, err)
	}

	dataset, err := catalog.Dataset(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dataset %s: %w", table, err)
	}

	return New(dataset, tree, opts), nil
}
