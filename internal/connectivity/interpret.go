// internal/connectivity/interpret.go
package connectivity

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/solatis/qamatrix/internal/types"
)

/*
 * Rule parameters to matrix.
 *
 * Feature classes are line classes (non-point) followed by node classes
 * (point). Rules come in groups of one rule per class.
 *
 * Line types: a class whose rules ever select subtypes gets one line type
 * per subtype, ordered by code; any other class gets one untyped type.
 * Node blocks: one per distinct combination of node class rules, in order
 * of first use.
 *
 * Each group marks its selected line types as pairwise connectable in its
 * block. Counters ("mK: selector" on a class rule, "mK < n" in the single
 * statement without ':') set the diagonal of the counted type to n-1.
 *
 * A condition without rules yields a template: all line types, one empty
 * block per node class.
 */

// selection is the parsed first statement of a rule. all selects the whole
// class; otherwise codes lists subtypes.
type selection struct {
	all   bool
	codes []int
}

// parseSelection parses "true", "false", "dummy", "F IN (1, 2)" or "F = 1".
// A nil selection selects nothing.
func parseSelection(statement string) (*selection, error) {
	s := strings.TrimSpace(statement)
	switch {
	case s == ruleDummy, strings.EqualFold(s, ruleFalse):
		return nil, nil
	case strings.EqualFold(s, ruleTrue):
		return &selection{all: true}, nil
	}

	if open := strings.IndexByte(s, '('); open > 0 {
		if !strings.HasSuffix(s, ")") {
			return nil, fmt.Errorf("%w: unterminated list in %q", types.ErrFormat, s)
		}
		inner := strings.TrimSpace(s[open+1 : len(s)-1])
		if inner == "" {
			return &selection{all: true}, nil
		}
		sel := &selection{}
		for _, part := range strings.Split(inner, ",") {
			code, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, fmt.Errorf("%w: invalid subtype code %q in %q", types.ErrFormat, part, s)
			}
			sel.codes = append(sel.codes, code)
		}
		return sel, nil
	}

	if eq := strings.IndexByte(s, '='); eq > 0 {
		code, err := strconv.Atoi(strings.TrimSpace(s[eq+1:]))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid subtype code in %q", types.ErrFormat, s)
		}
		return &selection{codes: []int{code}}, nil
	}

	return nil, fmt.Errorf("%w: unexpected rule %q", types.ErrFormat, s)
}

func statements(rule string) []string {
	return strings.Split(rule, separator)
}

// limitStatement returns the statement without ':' following the first
// statement of rule, if any.
func limitStatement(rule string) (string, error) {
	var found string
	for _, st := range statements(rule)[1:] {
		if strings.Contains(st, ":") {
			continue
		}
		if found != "" {
			return "", fmt.Errorf("%w: max condition already defined: %s <--> %s", types.ErrInvalidParameters, found, st)
		}
		found = st
	}
	return found, nil
}

// parseLimits parses "m0 < 2 AND m1 < 3" into variable limits.
func parseLimits(condition string) (map[string]int, error) {
	limits := make(map[string]int)
	upper := strings.ToUpper(condition)
	const and = " AND "

	for start := 0; start >= 0; {
		var term string
		if end := strings.Index(upper[start:], and); end >= 0 {
			term = condition[start : start+end]
			start += end + len(and)
		} else {
			term = condition[start:]
			start = -1
		}

		parts := strings.Split(term, "<")
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: unexpected condition %q in %q", types.ErrInvalidParameters, term, condition)
		}
		name := strings.TrimSpace(parts[0])
		if _, dup := limits[name]; dup {
			return nil, fmt.Errorf("%w: multiple conditions for variable %q in %q", types.ErrInvalidParameters, name, condition)
		}
		n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("%w: unexpected term %q in %q", types.ErrInvalidParameters, parts[1], term)
		}
		limits[name] = n
	}
	return limits, nil
}

// counter is one "mK: selector" statement.
type counter struct {
	name    string
	untyped bool
	code    int
}

func parseCounters(rule string) ([]counter, error) {
	var out []counter
	for _, st := range statements(rule)[1:] {
		colon := strings.IndexByte(st, ':')
		if colon < 0 {
			continue
		}
		c := counter{name: strings.TrimSpace(st[:colon])}
		rhs := strings.TrimSpace(st[colon+1:])

		if eq := strings.IndexByte(rhs, '='); eq >= 0 {
			code, err := strconv.Atoi(strings.TrimSpace(rhs[eq+1:]))
			if err != nil {
				return nil, fmt.Errorf("%w: unexpected statement %q", types.ErrInvalidParameters, st)
			}
			c.code = code
		} else if strings.EqualFold(rhs, ruleTrue) {
			c.untyped = true
		} else {
			return nil, fmt.Errorf("%w: unexpected statement %q", types.ErrInvalidParameters, st)
		}
		out = append(out, c)
	}

	for _, c := range out {
		if c.untyped && len(out) > 1 {
			return nil, fmt.Errorf("%w: unexpected rule %q", types.ErrInvalidParameters, rule)
		}
	}
	return out, nil
}

// ConvertQualityCondition rebuilds a matrix from a quality condition
// created by Convert.
func ConvertQualityCondition(ctx context.Context, qc *types.QualityCondition, catalog types.Catalog) (*Matrix, error) {
	if err := qc.Validate(); err != nil {
		return nil, err
	}

	classValues := qc.ValuesOf(FeatureClassesParameter)
	ruleValues := qc.ValuesOf(RulesParameter)
	if len(classValues) == 0 {
		return nil, fmt.Errorf("%w: no %s", types.ErrInvalidParameters, FeatureClassesParameter)
	}
	if len(ruleValues)%len(classValues) != 0 {
		return nil, fmt.Errorf("%w: number of rules %d does not correspond to number of feature classes %d",
			types.ErrInvalidParameters, len(ruleValues), len(classValues))
	}

	datasets := make([]*types.Dataset, len(classValues))
	filters := make([]string, len(classValues))
	lineCount := 0
	for i, v := range classValues {
		if v.Kind != types.KindDataset {
			return nil, fmt.Errorf("%w: %s must reference datasets", types.ErrInvalidParameters, FeatureClassesParameter)
		}
		d, err := catalog.Dataset(ctx, v.Dataset)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve feature class %s: %w", v.Dataset, err)
		}
		if d.Geometry != types.GeometryPoint {
			if lineCount != i {
				return nil, fmt.Errorf("%w: line class %s follows a point class", types.ErrInvalidParameters, d.Name)
			}
			lineCount++
		}
		datasets[i], filters[i] = d, v.Filter
	}

	rules := make([]string, len(ruleValues))
	for i, v := range ruleValues {
		if v.Kind != types.KindString {
			return nil, fmt.Errorf("%w: %s must be strings", types.ErrInvalidParameters, RulesParameter)
		}
		rules[i] = v.Text
	}
	if len(rules) == 0 {
		rules = templateRules(len(datasets), lineCount)
	}

	m := initMatrix(datasets, filters, lineCount, rules)

	blocks := make(map[string]*NodeBlock)
	for start := 0; start < len(rules); start += len(datasets) {
		if err := m.interpretRule(rules[start:start+len(datasets)], datasets, lineCount, blocks); err != nil {
			return nil, fmt.Errorf("rule group %d: %w", start/len(datasets)+1, err)
		}
	}

	for _, d := range datasets[lineCount:] {
		for _, block := range m.Nodes {
			if err := assignSubtypes(block.Types, d, d.Name); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// templateRules builds one rule group per node class, each selecting that
// node class only.
func templateRules(classCount, lineCount int) []string {
	var rules []string
	blocks := max(1, classCount-lineCount)
	for b := 0; b < blocks; b++ {
		for i := 0; i < lineCount; i++ {
			rules = append(rules, ruleDummy)
		}
		for i := lineCount; i < classCount; i++ {
			if i == b+lineCount {
				rules = append(rules, ruleTrue)
			} else {
				rules = append(rules, ruleFalse)
			}
		}
	}
	return rules
}

func initMatrix(datasets []*types.Dataset, filters []string, lineCount int, rules []string) *Matrix {
	typed := make([]bool, lineCount)
	for start := 0; start < len(rules); start += len(datasets) {
		for i := 0; i < lineCount; i++ {
			first := strings.TrimSpace(statements(rules[start+i])[0])
			if strings.EqualFold(first, ruleTrue) || strings.EqualFold(first, ruleFalse) {
				continue
			}
			typed[i] = true
		}
	}

	m := &Matrix{}
	for i, d := range datasets[:lineCount] {
		if !typed[i] || !d.HasSubtypes() {
			lt := NewConnectionType(d.Name, "")
			lt.Filter = filters[i]
			m.LineTypes = append(m.LineTypes, lt)
			continue
		}
		subtypes := append([]types.Subtype(nil), d.Subtypes...)
		sort.SliceStable(subtypes, func(a, b int) bool { return subtypes[a].Code < subtypes[b].Code })
		for _, s := range subtypes {
			m.LineTypes = append(m.LineTypes, ConnectionType{
				Class:        d.Name,
				SubtypeField: d.SubtypeField,
				SubtypeName:  s.Name,
				SubtypeCode:  s.Code,
				Filter:       filters[i],
			})
		}
	}
	return m
}

// interpretRule applies one rule group to the block of its node rules.
func (m *Matrix) interpretRule(group []string, datasets []*types.Dataset, lineCount int, blocks map[string]*NodeBlock) error {
	var key strings.Builder
	for _, r := range group[lineCount:] {
		key.WriteString(strings.TrimSpace(r) + separator)
	}
	block, ok := blocks[key.String()]
	if !ok {
		nodeTypes, err := nodeConnections(group[lineCount:], datasets[lineCount:])
		if err != nil {
			return err
		}
		block = m.AddNode(nodeTypes)
		blocks[key.String()] = block
	}

	var limitCondition string
	for _, r := range group {
		c, err := limitStatement(r)
		if err != nil {
			return err
		}
		if c == "" {
			continue
		}
		if limitCondition != "" {
			return fmt.Errorf("%w: max condition already defined: %s <--> %s", types.ErrInvalidParameters, limitCondition, c)
		}
		limitCondition = c
	}
	limits := map[string]int{}
	if limitCondition != "" {
		var err error
		if limits, err = parseLimits(limitCondition); err != nil {
			return err
		}
	}

	var connections []int
	maxCounts := make(map[int]int)
	for i := 0; i < lineCount; i++ {
		rule, class := group[i], datasets[i].Name

		sel, err := parseSelection(statements(rule)[0])
		if err != nil {
			return err
		}
		if sel == nil {
			continue
		}

		var selected []int
		if sel.all {
			if idx := m.LineTypeIndex(class); idx >= 0 {
				selected = []int{idx}
			} else {
				for j, lt := range m.LineTypes {
					if strings.EqualFold(lt.Class, class) {
						selected = append(selected, j)
					}
				}
			}
		} else {
			for _, code := range sel.codes {
				idx := m.LineTypeIndexOf(class, code)
				if idx < 0 {
					return fmt.Errorf("%w: unknown subtype %d of %s in rule %q", types.ErrSubtypeNotFound, code, class, rule)
				}
				selected = append(selected, idx)
			}
		}
		connections = append(connections, selected...)

		counters, err := parseCounters(rule)
		if err != nil {
			return err
		}
		for _, c := range counters {
			limit, ok := limits[c.name]
			if !ok {
				return fmt.Errorf("%w: count for %s not defined", types.ErrInvalidParameters, c.name)
			}
			delete(limits, c.name)

			idx := -1
			if c.untyped {
				if sel.all && len(selected) == 1 {
					idx = selected[0]
				}
			} else {
				idx = m.LineTypeIndexOf(class, c.code)
			}
			if idx < 0 {
				return fmt.Errorf("%w: counter %s of rule %q selects no line type", types.ErrInvalidParameters, c.name, rule)
			}
			if prev, dup := maxCounts[idx]; dup && prev != limit {
				return fmt.Errorf("%w: differing max counts (%d, %d) for %s", types.ErrInvalidParameters, prev, limit, m.LineTypes[idx].label())
			}
			maxCounts[idx] = limit
		}
	}

	if len(limits) > 0 {
		missing := make([]string, 0, len(limits))
		for name := range limits {
			missing = append(missing, name)
		}
		sort.Strings(missing)
		return fmt.Errorf("%w: following variables are not defined: %s", types.ErrInvalidParameters, strings.Join(missing, ", "))
	}

	for a, ca := range connections {
		for _, cb := range connections[a:] {
			block.Cells[ca][cb] = unconstrained
			block.Cells[cb][ca] = unconstrained
		}
	}
	for idx, limit := range maxCounts {
		block.Cells[idx][idx] = limit - 1
	}
	return nil
}

// nodeConnections derives the node types of a block from its node rules.
func nodeConnections(rules []string, datasets []*types.Dataset) ([]ConnectionType, error) {
	var out []ConnectionType
	for i, r := range rules {
		sel, err := parseSelection(r)
		if err != nil {
			return nil, err
		}
		switch {
		case sel == nil:
		case sel.all:
			out = append(out, NewConnectionType(datasets[i].Name, ""))
		default:
			for _, code := range sel.codes {
				out = append(out, TypeWithCode(datasets[i].Name, code))
			}
		}
	}
	return out, nil
}
