// internal/connectivity/convert.go
package connectivity

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/qamatrix/internal/types"
)

/*
 * Matrix to rule parameters.
 *
 * The quality condition lists the feature classes (line classes in matrix
 * column order, then node classes in order of first use) followed by rule
 * groups of one rule per class, in that same class order.
 *
 * Per node block and connection group:
 *   - line class rule: "false" if no member belongs to the class, "true"
 *     if an untyped member does, else "F IN (c1, c2)" over member subtypes
 *   - node class rule: the same over the block's node types
 *   - each member with a diagonal >= 0 gets a counter "; mK: <selector>"
 *     on its class rule, and the first rule gets ";mK < max+1 AND ..."
 *     (a diagonal of 0 counts as 1)
 */

// Quality condition vocabulary.
const (
	TestDescriptor              = "QaLineConnection"
	DefaultQualityConditionName = "qc_line_connection"
	FeatureClassesParameter     = "featureClasses"
	RulesParameter              = "rules"
)

const (
	separator = ";"
	ruleTrue  = "true"
	ruleFalse = "false"
	ruleDummy = "dummy"
)

// classRule accumulates the selection of one feature class.
type classRule struct {
	all   bool
	field string
	codes []int
}

func (r *classRule) add(t ConnectionType) {
	if r.all {
		return
	}
	if !t.Typed() {
		r.all, r.codes = true, nil
		return
	}
	r.field = t.SubtypeField
	r.codes = append(r.codes, t.SubtypeCode)
}

func (r *classRule) String() string {
	switch {
	case r.all:
		return ruleTrue
	case len(r.codes) == 0:
		return ruleFalse
	}
	codes := make([]string, len(r.codes))
	for i, c := range r.codes {
		codes[i] = strconv.Itoa(c)
	}
	return fmt.Sprintf("%s IN (%s)", r.field, strings.Join(codes, ", "))
}

// nodeRule renders the rule of class over the node types of a block.
func nodeRule(nodeTypes []ConnectionType, class string) string {
	var r classRule
	for _, t := range nodeTypes {
		if strings.EqualFold(t.Class, class) {
			r.add(t)
		}
	}
	return r.String()
}

// classes is the ordered feature class list of a quality condition.
type classes struct {
	line, node []*types.Dataset
}

func (c *classes) all() []*types.Dataset {
	return append(append([]*types.Dataset(nil), c.line...), c.node...)
}

func (c *classes) lineIndex(class string) int {
	for i, d := range c.line {
		if strings.EqualFold(d.Name, class) {
			return i
		}
	}
	return -1
}

// Convert compiles m into a line connection quality condition. Class names
// are resolved through catalog; ranker may be nil to keep block order.
func Convert(ctx context.Context, m *Matrix, catalog types.Catalog, ranker *Ranker) (*types.QualityCondition, error) {
	m = m.clone()

	var cls classes
	resolved := make(map[string]*types.Dataset)
	seen := make(map[string]bool)
	resolve := func(class string) (*types.Dataset, bool, error) {
		key := strings.ToUpper(class)
		d, ok := resolved[key]
		if !ok {
			var err error
			if d, err = catalog.Dataset(ctx, class); err != nil {
				return nil, false, fmt.Errorf("failed to resolve feature class %s: %w", class, err)
			}
			resolved[key] = d
		}
		isNew := !seen[d.Name]
		seen[d.Name] = true
		return d, isNew, nil
	}

	for i := range m.LineTypes {
		d, isNew, err := resolve(m.LineTypes[i].Class)
		if err != nil {
			return nil, err
		}
		if isNew {
			if d.Geometry == types.GeometryPoint {
				return nil, fmt.Errorf("%w: line class %s is a point dataset", types.ErrInvariant, d.Name)
			}
			cls.line = append(cls.line, d)
		}
		m.LineTypes[i].Class = d.Name
	}
	for _, block := range m.Nodes {
		for i := range block.Types {
			d, isNew, err := resolve(block.Types[i].Class)
			if err != nil {
				return nil, err
			}
			if isNew {
				if d.Geometry != types.GeometryPoint {
					return nil, fmt.Errorf("%w: node class %s is not a point dataset", types.ErrInvariant, d.Name)
				}
				cls.node = append(cls.node, d)
			} else if cls.lineIndex(d.Name) >= 0 {
				return nil, fmt.Errorf("%w: %s is used as line and as node class", types.ErrInvariant, d.Name)
			}
			block.Types[i].Class = d.Name
		}
	}

	for _, d := range cls.line {
		if err := assignSubtypes(m.LineTypes, d, d.Name); err != nil {
			return nil, err
		}
	}
	for _, d := range cls.node {
		for _, block := range m.Nodes {
			if err := assignSubtypes(block.Types, d, d.Name); err != nil {
				return nil, err
			}
		}
	}

	var groups []*RuleCount
	for _, block := range m.Nodes {
		nodeRules := make([]string, len(cls.node))
		for i, d := range cls.node {
			nodeRules[i] = nodeRule(block.Types, d.Name)
		}
		for _, g := range ConnectionGroups(block.Cells) {
			groups = append(groups, &RuleCount{
				Rules: groupRules(g, block, m.LineTypes, &cls, nodeRules),
				Count: -1,
			})
		}
	}

	all := cls.all()
	if ranker != nil {
		tables := make([]Table, len(all))
		for i, d := range all {
			tables[i] = Table{Dataset: d.Name, Filter: classFilter(m, d.Name)}
		}
		if err := ranker.Rank(ctx, groups, tables); err != nil {
			return nil, err
		}
	}

	qc := types.NewQualityCondition(DefaultQualityConditionName, TestDescriptor)
	for _, d := range all {
		qc.Add(types.DatasetValue(FeatureClassesParameter, d.Name, classFilter(m, d.Name)))
	}
	for _, g := range groups {
		for _, rule := range g.Rules {
			qc.Add(types.StringValue(RulesParameter, rule))
		}
	}
	return qc, nil
}

// classFilter returns the row filter carried by the line types of class.
func classFilter(m *Matrix, class string) string {
	for _, lt := range m.LineTypes {
		if strings.EqualFold(lt.Class, class) && lt.Filter != "" {
			return lt.Filter
		}
	}
	return ""
}

// groupRules renders the rules of one connection group.
func groupRules(group []int, block *NodeBlock, lineTypes []ConnectionType, cls *classes, nodeRules []string) []string {
	builders := make([]classRule, len(cls.line))
	for _, idx := range group {
		lt := lineTypes[idx]
		builders[cls.lineIndex(lt.Class)].add(lt)
	}

	rules := make([]string, 0, len(cls.line)+len(nodeRules))
	for i := range builders {
		rules = append(rules, builders[i].String())
	}
	rules = append(rules, nodeRules...)

	var limits []string
	for _, idx := range group {
		limit := block.Cells[idx][idx]
		if limit < 0 {
			continue
		}
		lt := lineTypes[idx]
		k := len(limits)
		ci := cls.lineIndex(lt.Class)
		rules[ci] += fmt.Sprintf("; m%d: %s", k, lt.selector())

		if limit == 0 {
			limit = 1
		}
		limits = append(limits, fmt.Sprintf("m%d < %d", k, limit+1))
	}
	if len(limits) > 0 {
		rules[0] += separator + strings.Join(limits, " AND ")
	}
	return rules
}
