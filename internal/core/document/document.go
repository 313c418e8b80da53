// Package document reads and writes quality conditions as YAML:
//
//	name: qc_line_connection
//	test_descriptor: QaLineConnection
//	parameters:
//	  - {name: featureClasses, dataset: NET.ROADS, filter: "STATE = 1"}
//	  - {name: rules, string: "KIND IN (1, 2)"}
//
// Each parameter carries exactly one of dataset, string, number or bool.
package document

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/solatis/qamatrix/internal/types"
)

type condition struct {
	ID             string      `yaml:"id,omitempty"`
	Name           string      `yaml:"name"`
	TestDescriptor string      `yaml:"test_descriptor"`
	Parameters     []parameter `yaml:"parameters"`
}

type parameter struct {
	Name    string   `yaml:"name"`
	Dataset *string  `yaml:"dataset,omitempty"`
	Filter  string   `yaml:"filter,omitempty"`
	String  *string  `yaml:"string,omitempty"`
	Number  *float64 `yaml:"number,omitempty"`
	Bool    *bool    `yaml:"bool,omitempty"`
}

// Marshal renders qc as a YAML document.
func Marshal(qc *types.QualityCondition) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, qc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes qc as a YAML document to w.
func Encode(w io.Writer, qc *types.QualityCondition) error {
	if err := qc.Validate(); err != nil {
		return err
	}

	doc := condition{ID: string(qc.ID), Name: qc.Name, TestDescriptor: qc.TestDescriptor}
	for _, v := range qc.Values {
		v := v
		p := parameter{Name: v.Name}
		switch v.Kind {
		case types.KindDataset:
			p.Dataset, p.Filter = &v.Dataset, v.Filter
		case types.KindString:
			p.String = &v.Text
		case types.KindNumber:
			p.Number = &v.Number
		case types.KindBool:
			p.Bool = &v.Bool
		}
		doc.Parameters = append(doc.Parameters, p)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("failed to encode quality condition %s: %w", qc.Name, err)
	}
	return enc.Close()
}

// Unmarshal parses a YAML document. A missing id gets a fresh one.
func Unmarshal(data []byte) (*types.QualityCondition, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads one YAML document from r.
func Decode(r io.Reader) (*types.QualityCondition, error) {
	var doc condition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: failed to decode quality condition: %v", types.ErrFormat, err)
	}

	qc := types.NewQualityCondition(doc.Name, doc.TestDescriptor)
	if doc.ID != "" {
		id, err := types.ParseQualityConditionID(doc.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: quality condition %s has invalid id %q", types.ErrFormat, doc.Name, doc.ID)
		}
		qc.ID = id
	}

	for i, p := range doc.Parameters {
		v, err := p.value()
		if err != nil {
			return nil, fmt.Errorf("quality condition %s, parameter %d: %w", doc.Name, i, err)
		}
		qc.Add(v)
	}

	if err := qc.Validate(); err != nil {
		return nil, err
	}
	return qc, nil
}

func (p parameter) value() (types.ParameterValue, error) {
	var out []types.ParameterValue
	if p.Dataset != nil {
		out = append(out, types.DatasetValue(p.Name, *p.Dataset, p.Filter))
	}
	if p.String != nil {
		out = append(out, types.StringValue(p.Name, *p.String))
	}
	if p.Number != nil {
		out = append(out, types.NumberValue(p.Name, *p.Number))
	}
	if p.Bool != nil {
		out = append(out, types.BoolValue(p.Name, *p.Bool))
	}

	switch {
	case len(out) != 1:
		return types.ParameterValue{}, fmt.Errorf("%w: parameter %s needs exactly one of dataset, string, number, bool", types.ErrFormat, p.Name)
	case p.Filter != "" && p.Dataset == nil:
		return types.ParameterValue{}, fmt.Errorf("%w: parameter %s has a filter but no dataset", types.ErrFormat, p.Name)
	}
	return out[0], nil
}
