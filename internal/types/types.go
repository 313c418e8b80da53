// Package types provides domain models shared across qamatrix components.
//
// Dataset metadata (fields, coded-value domains, subtypes) is supplied by a
// Catalog and consumed read-only by the compilers. Parameter bags
// (QualityCondition) are the compilers' output and the inverse compilers'
// input; see params.go.
package types

import (
	"context"
	"strings"
)

// Catalog resolves dataset metadata by name.
// Implementations match names case-insensitively and accept unqualified
// names: "OWNER.ROADS" is found by "roads".
type Catalog interface {
	Dataset(ctx context.Context, name string) (*Dataset, error)
}

// GeometryType classifies a dataset for connectivity purposes.
type GeometryType string

const (
	GeometryNone    GeometryType = "none"
	GeometryPoint   GeometryType = "point"
	GeometryLine    GeometryType = "line"
	GeometryPolygon GeometryType = "polygon"
)

// FieldType is the storage type of a field and of its coded values.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldInteger FieldType = "integer"
	FieldDouble  FieldType = "double"
	FieldDate    FieldType = "date"
)

// Dataset describes one table of the catalog.
type Dataset struct {
	Name         string       `yaml:"name"`
	Geometry     GeometryType `yaml:"geometry"`
	Fields       []Field      `yaml:"fields"`
	SubtypeField string       `yaml:"subtype_field,omitempty"`
	Subtypes     []Subtype    `yaml:"subtypes,omitempty"`
}

// Field is a column of a dataset. Domain is nil for uncoded fields.
type Field struct {
	Name   string       `yaml:"name"`
	Type   FieldType    `yaml:"type"`
	Domain *CodedDomain `yaml:"domain,omitempty"`
}

// CodedDomain is an ordered list of named code values.
type CodedDomain struct {
	Name  string       `yaml:"name"`
	Codes []CodedValue `yaml:"codes"`
}

// CodedValue pairs a code name with its stored value. Value holds a string,
// int64, float64 or time.Time, matching the owning field's type.
type CodedValue struct {
	Name  string `yaml:"name"`
	Value any    `yaml:"value"`
}

// Subtype is one entry of a dataset's subtype list.
type Subtype struct {
	Name string `yaml:"name"`
	Code int    `yaml:"code"`
}

// Field returns the field with the given name, ignoring case.
func (d *Dataset) Field(name string) (*Field, bool) {
	for i := range d.Fields {
		if strings.EqualFold(d.Fields[i].Name, name) {
			return &d.Fields[i], true
		}
	}
	return nil, false
}

// HasSubtypes reports whether the dataset defines a subtype field.
func (d *Dataset) HasSubtypes() bool {
	return d.SubtypeField != ""
}

// SubtypeByName finds a subtype by name, ignoring case.
func (d *Dataset) SubtypeByName(name string) (Subtype, bool) {
	for _, s := range d.Subtypes {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Subtype{}, false
}

// SubtypeByCode finds a subtype by its code.
func (d *Dataset) SubtypeByCode(code int) (Subtype, bool) {
	for _, s := range d.Subtypes {
		if s.Code == code {
			return s, true
		}
	}
	return Subtype{}, false
}

// MatchesName reports whether name designates this dataset, either fully
// qualified or by its unqualified part.
func (d *Dataset) MatchesName(name string) bool {
	if strings.EqualFold(d.Name, name) {
		return true
	}
	return strings.EqualFold(UnqualifiedName(d.Name), UnqualifiedName(name))
}

// UnqualifiedName strips owner/database qualifiers from a dataset name.
func UnqualifiedName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}
