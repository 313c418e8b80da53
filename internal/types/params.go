package types

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind tags the variant held by a ParameterValue.
type ValueKind string

const (
	KindDataset ValueKind = "dataset"
	KindString  ValueKind = "string"
	KindNumber  ValueKind = "number"
	KindBool    ValueKind = "bool"
)

// ParameterValue is one named entry of a parameter bag. Exactly the fields
// belonging to Kind are meaningful; constructors below are the only
// supported way to build one.
type ParameterValue struct {
	Name string
	Kind ValueKind

	// KindDataset
	Dataset string
	Filter  string

	// KindString
	Text string

	// KindNumber
	Number float64

	// KindBool
	Bool bool
}

// DatasetValue references a dataset, optionally restricted by a filter expression.
func DatasetValue(name, dataset, filter string) ParameterValue {
	return ParameterValue{Name: name, Kind: KindDataset, Dataset: dataset, Filter: filter}
}

// StringValue holds free text.
func StringValue(name, text string) ParameterValue {
	return ParameterValue{Name: name, Kind: KindString, Text: text}
}

// NumberValue holds a scalar number.
func NumberValue(name string, n float64) ParameterValue {
	return ParameterValue{Name: name, Kind: KindNumber, Number: n}
}

// BoolValue holds a flag.
func BoolValue(name string, b bool) ParameterValue {
	return ParameterValue{Name: name, Kind: KindBool, Bool: b}
}

// String renders the value the way it is shown to users: the dataset name
// for references, the raw text for strings.
func (v ParameterValue) String() string {
	switch v.Kind {
	case KindDataset:
		return v.Dataset
	case KindString:
		return v.Text
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	}
	return ""
}

// Validate checks that the value is a well-formed member of its variant.
func (v ParameterValue) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("%w: parameter without name", ErrInvalidParameters)
	}
	switch v.Kind {
	case KindDataset:
		if strings.TrimSpace(v.Dataset) == "" {
			return fmt.Errorf("%w: parameter %s references no dataset", ErrInvalidParameters, v.Name)
		}
	case KindString, KindNumber, KindBool:
	default:
		return fmt.Errorf("%w: parameter %s has unknown kind %q", ErrInvalidParameters, v.Name, v.Kind)
	}
	return nil
}

// QualityCondition is a named, ordered parameter bag for one test
// descriptor. Parameter names repeat; order is significant.
type QualityCondition struct {
	ID             QualityConditionID
	Name           string
	TestDescriptor string
	Values         []ParameterValue
}

// NewQualityCondition creates an empty parameter bag with a fresh ID.
func NewQualityCondition(name, descriptor string) *QualityCondition {
	return &QualityCondition{
		ID:             NewQualityConditionID(),
		Name:           name,
		TestDescriptor: descriptor,
	}
}

// Add appends a parameter value.
func (qc *QualityCondition) Add(v ParameterValue) {
	qc.Values = append(qc.Values, v)
}

// ValuesOf returns all values named name, ignoring case, in bag order.
func (qc *QualityCondition) ValuesOf(name string) []ParameterValue {
	var out []ParameterValue
	for _, v := range qc.Values {
		if strings.EqualFold(v.Name, name) {
			out = append(out, v)
		}
	}
	return out
}

// Validate checks the bag header and every value.
func (qc *QualityCondition) Validate() error {
	if strings.TrimSpace(qc.Name) == "" {
		return fmt.Errorf("%w: quality condition without name", ErrInvalidParameters)
	}
	for i, v := range qc.Values {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("quality condition %s, value %d: %w", qc.Name, i, err)
		}
	}
	return nil
}
