// Package catalog provides dataset metadata to the compilers.
//
// Static serves a fixed list of datasets, typically loaded from a YAML
// document. SQL serves the catalog tables created by the migrations.
// Both implement types.Catalog.
package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/solatis/qamatrix/internal/types"
)

// Static is an in-memory catalog.
type Static struct {
	datasets []*types.Dataset
}

// NewStatic creates a catalog serving datasets.
func NewStatic(datasets ...*types.Dataset) *Static {
	return &Static{datasets: datasets}
}

// Dataset resolves name to a dataset. An exact (case-insensitive) match
// wins over an unqualified one; several unqualified matches are an error.
func (s *Static) Dataset(_ context.Context, name string) (*types.Dataset, error) {
	return resolve(s.datasets, name)
}

// Datasets returns all datasets in load order.
func (s *Static) Datasets() []*types.Dataset {
	return s.datasets
}

func resolve(datasets []*types.Dataset, name string) (*types.Dataset, error) {
	var match *types.Dataset
	for _, d := range datasets {
		if strings.EqualFold(d.Name, name) {
			return d, nil
		}
		if d.MatchesName(name) {
			if match != nil {
				return nil, fmt.Errorf("%w: %s is ambiguous (%s, %s)", types.ErrLookup, name, match.Name, d.Name)
			}
			match = d
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrDatasetNotFound, name)
	}
	return match, nil
}

type document struct {
	Datasets []*types.Dataset `yaml:"datasets"`
}

// LoadYAML reads a catalog document:
//
//	datasets:
//	  - name: ROADS
//	    geometry: line
//	    subtype_field: SUBTYPE
//	    subtypes: [{name: Highway, code: 1}]
//	    fields:
//	      - name: WIDTH
//	        type: integer
//	        domain: {name: WidthDomain, codes: [{name: narrow, value: 1}]}
func LoadYAML(r io.Reader) (*Static, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	for _, d := range doc.Datasets {
		if err := Validate(d); err != nil {
			return nil, err
		}
	}
	return NewStatic(doc.Datasets...), nil
}

// Validate checks a dataset definition for internal consistency.
func Validate(d *types.Dataset) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: dataset without name", types.ErrFormat)
	}
	switch d.Geometry {
	case "":
		d.Geometry = types.GeometryNone
	case types.GeometryNone, types.GeometryPoint, types.GeometryLine, types.GeometryPolygon:
	default:
		return fmt.Errorf("%w: dataset %s has unknown geometry %q", types.ErrFormat, d.Name, d.Geometry)
	}

	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		key := strings.ToUpper(f.Name)
		if f.Name == "" || seen[key] {
			return fmt.Errorf("%w: dataset %s has empty or duplicate field %q", types.ErrFormat, d.Name, f.Name)
		}
		seen[key] = true
		switch f.Type {
		case types.FieldString, types.FieldInteger, types.FieldDouble, types.FieldDate:
		default:
			return fmt.Errorf("%w: field %s.%s has unknown type %q", types.ErrFormat, d.Name, f.Name, f.Type)
		}
	}

	if len(d.Subtypes) > 0 && d.SubtypeField == "" {
		return fmt.Errorf("%w: dataset %s lists subtypes without a subtype field", types.ErrFormat, d.Name)
	}
	codes := make(map[int]bool, len(d.Subtypes))
	for _, s := range d.Subtypes {
		if codes[s.Code] {
			return fmt.Errorf("%w: dataset %s has duplicate subtype code %d", types.ErrFormat, d.Name, s.Code)
		}
		codes[s.Code] = true
	}
	return nil
}
