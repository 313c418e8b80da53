// Package connectivity compiles line connectivity matrices into rule
// parameters for the line connection test, and back.
//
// A matrix lists line types (feature class plus optional subtype) as
// columns and, per node type, a symmetric adjacency block saying which line
// types may meet at a node of that type. Convert derives the minimal sets of
// mutually connectable line types from each block and renders one rule per
// feature class and set; ConvertQualityCondition expands stored rules back
// into adjacency cells.
package connectivity

import (
	"fmt"
	"strings"

	"github.com/solatis/qamatrix/internal/types"
)

// ConnectionType is a feature class, optionally narrowed to one subtype.
// SubtypeCode is -1 until resolved.
type ConnectionType struct {
	Class        string
	SubtypeField string
	SubtypeName  string
	SubtypeCode  int

	// Filter restricts the rows of Class taking part in connections.
	Filter string
}

// NewConnectionType creates a type from its matrix spelling. An empty
// subtype means the whole class.
func NewConnectionType(class, subtype string) ConnectionType {
	return ConnectionType{Class: class, SubtypeName: subtype, SubtypeCode: -1}
}

// TypeWithCode creates a type from a stored subtype code.
func TypeWithCode(class string, code int) ConnectionType {
	return ConnectionType{Class: class, SubtypeCode: code}
}

// Typed reports whether the type names a subtype.
func (c ConnectionType) Typed() bool {
	return c.SubtypeName != "" || c.SubtypeCode >= 0
}

// Same reports whether both types denote the same class and subtype.
func (c ConnectionType) Same(o ConnectionType) bool {
	return strings.EqualFold(c.Class, o.Class) && c.SubtypeCode == o.SubtypeCode
}

// AssignSubtype resolves the missing half of the subtype (code from name or
// name from code) against the subtypes of the class. Untyped types are left
// unchanged.
func (c *ConnectionType) AssignSubtype(field string, subtypes []types.Subtype) error {
	if !c.Typed() {
		return nil
	}
	if field == "" {
		return fmt.Errorf("%w: %s has no subtype field, but %s is used as subtype",
			types.ErrSubtypeNotFound, c.Class, c.label())
	}
	c.SubtypeField = field

	for _, s := range subtypes {
		if c.SubtypeCode < 0 && strings.EqualFold(s.Name, c.SubtypeName) {
			c.SubtypeName, c.SubtypeCode = s.Name, s.Code
			return nil
		}
		if c.SubtypeCode >= 0 && s.Code == c.SubtypeCode {
			c.SubtypeName = s.Name
			return nil
		}
	}
	return fmt.Errorf("%w: '%s' is no subtype of %s", types.ErrSubtypeNotFound, c.label(), c.Class)
}

func (c ConnectionType) label() string {
	if c.SubtypeName != "" {
		return c.SubtypeName
	}
	return fmt.Sprintf("%d", c.SubtypeCode)
}

// selector renders the condition picking this type's rows of its class.
func (c ConnectionType) selector() string {
	if !c.Typed() {
		return ruleTrue
	}
	return fmt.Sprintf("%s = %d", c.SubtypeField, c.SubtypeCode)
}

// assignSubtypes resolves every type of class in list.
func assignSubtypes(list []ConnectionType, dataset *types.Dataset, class string) error {
	for i := range list {
		if !strings.EqualFold(list[i].Class, class) {
			continue
		}
		if err := list[i].AssignSubtype(dataset.SubtypeField, dataset.Subtypes); err != nil {
			return err
		}
	}
	return nil
}
