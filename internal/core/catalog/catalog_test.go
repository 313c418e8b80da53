package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/qamatrix/internal/core/db"
	"github.com/solatis/qamatrix/internal/types"
)

const catalogYAML = `datasets:
  - name: TLM.ROADS
    geometry: line
    subtype_field: KIND
    subtypes:
      - {name: Highway, code: 1}
      - {name: Street, code: 2}
    fields:
      - name: KIND
        type: integer
      - name: WIDTH
        type: integer
        domain: {name: WidthDomain, codes: [{name: narrow, value: 1}, {name: wide, value: 2}]}
  - name: OTHER.ROADS
    geometry: polygon
  - name: TLM.JUNCTIONS
    geometry: point
`

func TestLoadYAML(t *testing.T) {
	c, err := LoadYAML(strings.NewReader(catalogYAML))
	require.NoError(t, err)
	require.Len(t, c.Datasets(), 3)

	ctx := context.Background()
	d, err := c.Dataset(ctx, "tlm.roads")
	require.NoError(t, err)
	assert.Equal(t, "TLM.ROADS", d.Name)
	assert.Equal(t, types.GeometryLine, d.Geometry)

	f, ok := d.Field("width")
	require.True(t, ok)
	require.NotNil(t, f.Domain)
	assert.Equal(t, "wide", f.Domain.Codes[1].Name)

	j, err := c.Dataset(ctx, "JUNCTIONS")
	require.NoError(t, err)
	assert.Equal(t, "TLM.JUNCTIONS", j.Name)
}

func TestStatic_Dataset_Errors(t *testing.T) {
	c, err := LoadYAML(strings.NewReader(catalogYAML))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.Dataset(ctx, "ROADS")
	assert.ErrorIs(t, err, types.ErrLookup, "unqualified name matches two datasets")

	_, err = c.Dataset(ctx, "CANALS")
	assert.ErrorIs(t, err, types.ErrDatasetNotFound)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		dataset types.Dataset
	}{
		{name: "no name", dataset: types.Dataset{}},
		{name: "unknown geometry", dataset: types.Dataset{Name: "A", Geometry: "curve"}},
		{name: "duplicate field", dataset: types.Dataset{Name: "A", Fields: []types.Field{
			{Name: "X", Type: types.FieldString}, {Name: "x", Type: types.FieldString},
		}}},
		{name: "unknown field type", dataset: types.Dataset{Name: "A", Fields: []types.Field{{Name: "X", Type: "blob"}}}},
		{name: "subtypes without field", dataset: types.Dataset{Name: "A", Subtypes: []types.Subtype{{Name: "S", Code: 1}}}},
		{name: "duplicate subtype code", dataset: types.Dataset{Name: "A", SubtypeField: "K", Subtypes: []types.Subtype{
			{Name: "S", Code: 1}, {Name: "T", Code: 1},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.dataset
			if err := Validate(&d); !errors.Is(err, types.ErrFormat) {
				t.Fatalf("Validate() error = %v, want ErrFormat", err)
			}
		})
	}

	d := types.Dataset{Name: "A"}
	require.NoError(t, Validate(&d))
	assert.Equal(t, types.GeometryNone, d.Geometry)
}

func TestLoadYAML_UnknownKey(t *testing.T) {
	_, err := LoadYAML(strings.NewReader("datasets:\n  - name: A\n    colour: red\n"))
	assert.Error(t, err)
}

func openCatalog(t *testing.T) *SQL {
	t.Helper()
	ctx := context.Background()
	database, err := db.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.MigrateUp(ctx, database, zerolog.Nop()))
	q, err := db.LoadQueries(database)
	require.NoError(t, err)
	return NewSQL(q)
}

func TestSQL_PutDataset(t *testing.T) {
	ctx := context.Background()
	c := openCatalog(t)

	roads := &types.Dataset{
		Name:         "TLM.ROADS",
		Geometry:     types.GeometryLine,
		SubtypeField: "KIND",
		Subtypes:     []types.Subtype{{Name: "Street", Code: 2}, {Name: "Highway", Code: 1}},
		Fields: []types.Field{
			{Name: "KIND", Type: types.FieldInteger},
			{Name: "WIDTH", Type: types.FieldInteger, Domain: &types.CodedDomain{
				Name:  "WidthDomain",
				Codes: []types.CodedValue{{Name: "narrow", Value: 1}, {Name: "wide", Value: int64(2)}},
			}},
			{Name: "RATIO", Type: types.FieldDouble, Domain: &types.CodedDomain{
				Name:  "RatioDomain",
				Codes: []types.CodedValue{{Name: "half", Value: 0.5}},
			}},
			{Name: "SURFACE", Type: types.FieldString, Domain: &types.CodedDomain{
				Name:  "SurfaceDomain",
				Codes: []types.CodedValue{{Name: "asphalt", Value: "A"}},
			}},
			{Name: "BUILT", Type: types.FieldDate, Domain: &types.CodedDomain{
				Name:  "EpochDomain",
				Codes: []types.CodedValue{{Name: "epoch", Value: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)}},
			}},
		},
	}
	require.NoError(t, c.Put(ctx, roads))
	// replacing keeps a single definition
	require.NoError(t, c.Put(ctx, roads))

	got, err := c.Dataset(ctx, "roads")
	require.NoError(t, err)

	want := &types.Dataset{
		Name:         "TLM.ROADS",
		Geometry:     types.GeometryLine,
		SubtypeField: "KIND",
		Subtypes:     []types.Subtype{{Name: "Highway", Code: 1}, {Name: "Street", Code: 2}},
		Fields: []types.Field{
			{Name: "KIND", Type: types.FieldInteger},
			{Name: "WIDTH", Type: types.FieldInteger, Domain: &types.CodedDomain{
				Name:  "WidthDomain",
				Codes: []types.CodedValue{{Name: "narrow", Value: int64(1)}, {Name: "wide", Value: int64(2)}},
			}},
			{Name: "RATIO", Type: types.FieldDouble, Domain: &types.CodedDomain{
				Name:  "RatioDomain",
				Codes: []types.CodedValue{{Name: "half", Value: 0.5}},
			}},
			{Name: "SURFACE", Type: types.FieldString, Domain: &types.CodedDomain{
				Name:  "SurfaceDomain",
				Codes: []types.CodedValue{{Name: "asphalt", Value: "A"}},
			}},
			{Name: "BUILT", Type: types.FieldDate, Domain: &types.CodedDomain{
				Name:  "EpochDomain",
				Codes: []types.CodedValue{{Name: "epoch", Value: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)}},
			}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Dataset() mismatch (-want +got):\n%s", diff)
	}

	_, err = c.Dataset(ctx, "CANALS")
	assert.ErrorIs(t, err, types.ErrDatasetNotFound)

	assert.ErrorIs(t, c.Put(ctx, &types.Dataset{Name: "BAD", Geometry: "curve"}), types.ErrFormat)
}
