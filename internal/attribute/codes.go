// internal/attribute/codes.go
package attribute

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/solatis/qamatrix/internal/expr"
	"github.com/solatis/qamatrix/internal/types"
)

/*
 * Code tables and allowed-code collapsing.
 *
 * A code table lists the codes an attribute column may name, in domain
 * order. Coded-value fields get a trailing NULL pseudo-code whose id is a
 * placeholder absent from the domain (see nullObject); the subtype field
 * lists subtypes and has no NULL entry.
 *
 * Tables are built on first use and cached for the lifetime of the owning
 * DatasetConstraints. Metadata is assumed stable while a matrix is compiled.
 *
 * conditionFor collapses the allowed codes of one field into the shortest
 * condition that admits exactly those codes.
 */

// Code is one resolved column or row code of a matrix.
type Code struct {
	Field  string
	Name   string
	ID     any
	IsNull bool
}

// Literal renders the id as it appears in a condition.
func (c Code) Literal() string {
	return literalValue(c.ID)
}

type codeTable struct {
	field     string
	domain    string
	names     []string
	ids       []any
	nullIndex int
}

func (t *codeTable) code(i int) Code {
	return Code{Field: t.field, Name: t.names[i], ID: t.ids[i], IsNull: i == t.nullIndex}
}

// sortedIndexes lists entry indexes ordered by code name, the order in
// which ambiguous matches are resolved.
func (t *codeTable) sortedIndexes() []int {
	idx := make([]int, len(t.names))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return t.names[idx[a]] < t.names[idx[b]] })
	return idx
}

// indexOfValue finds the entry whose id renders as s. The NULL pseudo-code
// also answers to its sentinel name.
func (t *codeTable) indexOfValue(s string) int {
	for i, id := range t.ids {
		if formatValue(id) == s {
			return i
		}
	}
	if t.nullIndex >= 0 && s == expr.NullValue {
		return t.nullIndex
	}
	return -1
}

type fieldCache struct {
	dataset *types.Dataset
	tables  map[string]*codeTable
	log     zerolog.Logger
}

func newFieldCache(dataset *types.Dataset, log zerolog.Logger) *fieldCache {
	return &fieldCache{dataset: dataset, tables: make(map[string]*codeTable), log: log}
}

// codes returns the code table of fieldName.
func (fc *fieldCache) codes(fieldName string) (*codeTable, error) {
	key := strings.ToUpper(fieldName)
	if t, ok := fc.tables[key]; ok {
		return t, nil
	}

	t, err := fc.load(fieldName)
	if err != nil {
		return nil, err
	}
	fc.tables[key] = t
	return t, nil
}

func (fc *fieldCache) load(fieldName string) (*codeTable, error) {
	fc.log.Debug().Str("dataset", fc.dataset.Name).Str("field", fieldName).Msg("reading code values")

	ds := fc.dataset
	field, found := ds.Field(fieldName)
	isSubtypeField := ds.HasSubtypes() && strings.EqualFold(fieldName, ds.SubtypeField)

	switch {
	case found && field.Domain != nil:
		return codedTable(field)
	case isSubtypeField:
		t := &codeTable{field: ds.SubtypeField, domain: "No Domain", nullIndex: -1}
		for _, s := range ds.Subtypes {
			t.names = append(t.names, s.Name)
			t.ids = append(t.ids, int64(s.Code))
		}
		return t, nil
	case !found:
		return nil, fmt.Errorf("%w: %s in dataset %s", types.ErrFieldNotFound, fieldName, ds.Name)
	default:
		return nil, fmt.Errorf("%w: field %s of dataset %s has no coded value domain", types.ErrLookup, field.Name, ds.Name)
	}
}

func codedTable(field *types.Field) (*codeTable, error) {
	t := &codeTable{field: field.Name, domain: field.Domain.Name}
	for _, cv := range field.Domain.Codes {
		if cv.Name == expr.NullValue {
			return nil, fmt.Errorf("%w: %s exists in domain of field %s", types.ErrInvariant, expr.NullValue, field.Name)
		}
		t.names = append(t.names, cv.Name)
		t.ids = append(t.ids, normalizeValue(field.Type, cv.Value))
	}
	t.nullIndex = len(t.names)
	t.names = append(t.names, expr.NullValue)
	t.ids = append(t.ids, nullObject(field.Type, t.ids))
	return t, nil
}

// codedFields lists the tables of all coded-value fields except the subtype
// field, in dataset field order. These are the matrix columns on export.
func (fc *fieldCache) codedFields() ([]*codeTable, error) {
	var out []*codeTable
	for _, f := range fc.dataset.Fields {
		if f.Domain == nil {
			continue
		}
		if fc.dataset.HasSubtypes() && strings.EqualFold(f.Name, fc.dataset.SubtypeField) {
			continue
		}
		t, err := fc.codes(f.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// subtypeName resolves the subtype field equality "SUBTYPE = 3" to the
// subtype's name.
func (fc *fieldCache) subtypeName(terms []string) (string, bool) {
	ds := fc.dataset
	if !ds.HasSubtypes() || len(terms) != 3 || terms[1] != "=" {
		return "", false
	}
	if !strings.EqualFold(terms[0], ds.SubtypeField) {
		return "", false
	}
	n, ok := parseNumber(terms[2])
	if !ok || n != float64(int(n)) {
		return "", false
	}
	s, ok := ds.SubtypeByCode(int(n))
	return s.Name, ok
}

// resolveCode maps free text from a code cell to an entry of t.
func (o Options) resolveCode(t *codeTable, attr, input string) (Code, error) {
	name := input
	if canonical, ok := o.Synonyms[input]; ok {
		name = canonical
	}

	order := t.sortedIndexes()
	for _, i := range order {
		if strings.EqualFold(t.names[i], name) {
			return t.code(i), nil
		}
	}

	if num, ok := parseNumber(name); ok {
		match := -1
		for _, i := range order {
			v, isNum := parseNumber(t.names[i])
			if !isNum || v != num {
				continue
			}
			if match >= 0 {
				return Code{}, fmt.Errorf("%w: %s for attribute %s, domain %s", types.ErrAmbiguousCode, name, attr, t.domain)
			}
			match = i
		}
		if match >= 0 {
			return t.code(match), nil
		}
	}

	return Code{}, fmt.Errorf("%w: %s for attribute %s, domain %s", types.ErrCodeNotFound, name, attr, t.domain)
}

// conditionFor collapses the allowed codes of a single field. It returns ""
// when no code is allowed.
func (o Options) conditionFor(codes []Code) (string, error) {
	if len(codes) == 0 {
		return "", nil
	}

	field := codes[0].Field
	if len(codes) == 1 {
		c := codes[0]
		switch {
		case c.IsNull:
			return fmt.Sprintf("ISNULL(%s,%s) = %s", field, c.Literal(), c.Literal()), nil
		case c.Name == o.GeneralColumnName:
			return fmt.Sprintf("ISNULL(%s,%s) <> %s", field, c.Literal(), c.Literal()), nil
		default:
			return fmt.Sprintf("%s = %s", field, c.Literal()), nil
		}
	}

	var general, null, nonApplicable *Code
	var listed []string
	for i := range codes {
		c := &codes[i]
		switch {
		case c.IsNull:
			null = c
		case c.Name == o.GeneralColumnName:
			general = c
		default:
			if c.Name == o.NonApplicableValueName {
				nonApplicable = c
			}
			listed = append(listed, c.Literal())
		}
	}

	if general != nil {
		switch {
		case len(codes) == 2 && null != nil:
			return fmt.Sprintf("ISNULL(%s,%s) <> %s", field, null.Literal(), general.Literal()), nil
		case len(codes) == 2 && nonApplicable != nil:
			// false for NULL values
			return fmt.Sprintf("%s = %s", field, field), nil
		default:
			return "", fmt.Errorf("%w: unhandled combination of %s with other codes of field %s",
				types.ErrInvariant, o.GeneralColumnName, field)
		}
	}

	if null == nil {
		return fmt.Sprintf("%s IN (%s)", field, strings.Join(listed, ",")), nil
	}
	if len(listed) == 1 {
		return fmt.Sprintf("ISNULL(%s,%s) = %s", field, listed[0], listed[0]), nil
	}
	return fmt.Sprintf("ISNULL(%s,%s) IN (%s)", field, listed[0], strings.Join(listed, ",")), nil
}
