// internal/attribute/attribute_test.go
package attribute

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/qamatrix/internal/constraint"
	"github.com/solatis/qamatrix/internal/core/catalog"
	"github.com/solatis/qamatrix/internal/expr"
	"github.com/solatis/qamatrix/internal/types"
)

func roadsDataset() *types.Dataset {
	return &types.Dataset{
		Name:         "TLM.ROADS",
		Geometry:     types.GeometryLine,
		SubtypeField: "SUBTYPE",
		Subtypes: []types.Subtype{
			{Name: "Highway", Code: 1},
			{Name: "Street", Code: 2},
		},
		Fields: []types.Field{
			{Name: "OBJECTID", Type: types.FieldInteger},
			{Name: "SUBTYPE", Type: types.FieldInteger},
			{Name: "WIDTH", Type: types.FieldInteger, Domain: &types.CodedDomain{
				Name: "WidthDomain",
				Codes: []types.CodedValue{
					{Name: "narrow", Value: 1},
					{Name: "wide", Value: 2},
					{Name: "k_W", Value: 0},
					{Name: "<Generell>", Value: 9},
				},
			}},
			{Name: "SURFACE", Type: types.FieldString, Domain: &types.CodedDomain{
				Name: "SurfaceDomain",
				Codes: []types.CodedValue{
					{Name: "asphalt", Value: "A"},
					{Name: "gravel", Value: "G"},
				},
			}},
		},
	}
}

func codesDataset() *types.Dataset {
	return &types.Dataset{
		Name: "CODES",
		Fields: []types.Field{
			{Name: "NUM", Type: types.FieldInteger, Domain: &types.CodedDomain{
				Name:  "NumDomain",
				Codes: []types.CodedValue{{Name: "01", Value: 1}, {Name: "5", Value: 5}},
			}},
			{Name: "AMBIG", Type: types.FieldInteger, Domain: &types.CodedDomain{
				Name:  "AmbigDomain",
				Codes: []types.CodedValue{{Name: "1", Value: 1}, {Name: "1.0", Value: 2}},
			}},
			{Name: "BROKEN", Type: types.FieldString, Domain: &types.CodedDomain{
				Name:  "BrokenDomain",
				Codes: []types.CodedValue{{Name: "<NULL>", Value: "x"}},
			}},
			{Name: "PLAIN", Type: types.FieldString},
		},
	}
}

func ownersDataset() *types.Dataset {
	return &types.Dataset{
		Name:     "TLM.OWNERS",
		Geometry: types.GeometryNone,
		Fields: []types.Field{
			{Name: "OBJECTID", Type: types.FieldInteger},
			{Name: "OWNER", Type: types.FieldString, Domain: &types.CodedDomain{
				Name: "OwnerDomain",
				Codes: []types.CodedValue{
					{Name: "OBrien", Value: "O'Brien"},
					{Name: "Smith", Value: "Smith"},
				},
			}},
		},
	}
}

func testCatalog() *catalog.Static {
	return catalog.NewStatic(roadsDataset(), codesDataset(), ownersDataset())
}

const roadsMatrix = `ROADS;;<Generell>;WIDTH;;;;;SURFACE;;
;;;narrow;wide;k_W;<Generell>;<NULL>;asphalt;gravel;<NULL>
SUBTYPE;Highway;;1;0;0;0;0;1;0;0
;Street;LENGTH > 10;1;1;0;0;1;;;
;;SHAPE_LEN > 0;;;;;;;;
`

func TestParse(t *testing.T) {
	dc, err := Parse(context.Background(), strings.NewReader(roadsMatrix), testCatalog(), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "TLM.ROADS", dc.Dataset.Name)
	assert.Equal(t,
		"[SUBTYPE = 1[SURFACE = 'A',WIDTH = 1],SUBTYPE = 2[LENGTH > 10,ISNULL(WIDTH,1) IN (1,2)],SHAPE_LEN > 0]",
		dc.Constraints.String())
}

func TestParse_AttributeOnlyRowWrapsTopLevel(t *testing.T) {
	matrix := "ROADS;;;WIDTH;\n;;;narrow;wide\n;;A > 1;;\nGROUP;;B > 2;1;\n"

	dc, err := Parse(context.Background(), strings.NewReader(matrix), testCatalog(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "[GROUP[A > 1,B > 2,WIDTH = 1]]", dc.Constraints.String())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		matrix  string
		wantErr error
	}{
		{
			name:    "single header row",
			matrix:  "ROADS;;;WIDTH\n",
			wantErr: types.ErrFormat,
		},
		{
			name:    "second header cell not empty",
			matrix:  "ROADS;x;;WIDTH\n;;;narrow\n",
			wantErr: types.ErrFormat,
		},
		{
			name:    "wrong general column name",
			matrix:  "ROADS;;General;WIDTH\n;;;narrow\n",
			wantErr: types.ErrFormat,
		},
		{
			name:    "code row with leading cells",
			matrix:  "ROADS;;;WIDTH\nx;;;narrow\n",
			wantErr: types.ErrFormat,
		},
		{
			name:    "unknown dataset",
			matrix:  "RIVERS;;;WIDTH\n;;;narrow\n",
			wantErr: types.ErrDatasetNotFound,
		},
		{
			name:    "unknown field",
			matrix:  "ROADS;;;COLOR\n;;;red\n",
			wantErr: types.ErrFieldNotFound,
		},
		{
			name:    "field without coded domain",
			matrix:  "ROADS;;;OBJECTID\n;;;1\n",
			wantErr: types.ErrLookup,
		},
		{
			name:    "unknown code",
			matrix:  "ROADS;;;WIDTH\n;;;huge\n",
			wantErr: types.ErrCodeNotFound,
		},
		{
			name:    "unhandled cell value",
			matrix:  "ROADS;;;WIDTH\n;;;narrow\n;;;2\n",
			wantErr: types.ErrFormat,
		},
		{
			name:    "value in unused column",
			matrix:  "ROADS;;;WIDTH;\n;;;narrow;\n;;;1;1\n",
			wantErr: types.ErrFormat,
		},
		{
			name:    "code row without attribute",
			matrix:  "ROADS;;;WIDTH\n;;;narrow\n;Highway;;1\n",
			wantErr: types.ErrFormat,
		},
		{
			name:    "unknown subtype",
			matrix:  "ROADS;;;WIDTH\n;;;narrow\nSUBTYPE;Trail;;1\n",
			wantErr: types.ErrCodeNotFound,
		},
		{
			name:    "general combined with a regular code",
			matrix:  "ROADS;;;WIDTH;;\n;;;narrow;wide;<Generell>\n;;;1;1;1\n",
			wantErr: types.ErrInvariant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(context.Background(), strings.NewReader(tt.matrix), testCatalog(), DefaultOptions())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConditionFor(t *testing.T) {
	opts := DefaultOptions()
	fc := newFieldCache(roadsDataset(), opts.Logger)
	width, err := fc.codes("width")
	require.NoError(t, err)
	surface, err := fc.codes("SURFACE")
	require.NoError(t, err)

	// WIDTH entries: narrow=1, wide=2, k_W=0, <Generell>=9, <NULL>=-1
	narrow, wide, kw, general, null := width.code(0), width.code(1), width.code(2), width.code(3), width.code(4)

	tests := []struct {
		name  string
		codes []Code
		want  string
	}{
		{name: "none", codes: nil, want: ""},
		{name: "single", codes: []Code{wide}, want: "WIDTH = 2"},
		{name: "null only", codes: []Code{null}, want: "ISNULL(WIDTH,-1) = -1"},
		{name: "general only", codes: []Code{general}, want: "ISNULL(WIDTH,9) <> 9"},
		{name: "null and single code", codes: []Code{null, wide}, want: "ISNULL(WIDTH,2) = 2"},
		{name: "list", codes: []Code{narrow, wide, kw}, want: "WIDTH IN (1,2,0)"},
		{name: "list with null", codes: []Code{narrow, null, wide}, want: "ISNULL(WIDTH,1) IN (1,2)"},
		{name: "general and null", codes: []Code{general, null}, want: "ISNULL(WIDTH,-1) <> 9"},
		{name: "general and not applicable", codes: []Code{kw, general}, want: "WIDTH = WIDTH"},
		{name: "string codes are quoted", codes: []Code{surface.code(0), surface.code(1)}, want: "SURFACE IN ('A','G')"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := opts.conditionFor(tt.codes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err = opts.conditionFor([]Code{general, narrow, wide})
	assert.True(t, errors.Is(err, types.ErrInvariant))
}

func TestResolveCode(t *testing.T) {
	opts := DefaultOptions()
	fc := newFieldCache(codesDataset(), opts.Logger)
	roads := newFieldCache(roadsDataset(), opts.Logger)

	width, err := roads.codes("WIDTH")
	require.NoError(t, err)
	num, err := fc.codes("NUM")
	require.NoError(t, err)
	ambig, err := fc.codes("AMBIG")
	require.NoError(t, err)

	tests := []struct {
		name   string
		table  *codeTable
		input  string
		want   string
		isNull bool
	}{
		{name: "exact", table: width, input: "narrow", want: "narrow"},
		{name: "case-insensitive", table: width, input: "WIDE", want: "wide"},
		{name: "synonym for not applicable", table: width, input: "kein Wert", want: "k_W"},
		{name: "synonym for null", table: width, input: "nicht erfasst", want: expr.NullValue, isNull: true},
		{name: "null sentinel", table: width, input: "<NULL>", want: expr.NullValue, isNull: true},
		{name: "numeric fallback", table: num, input: "1", want: "01"},
		{name: "numeric fallback with decimals", table: num, input: "5.0", want: "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := opts.resolveCode(tt.table, tt.table.field, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, code.Name)
			assert.Equal(t, tt.isNull, code.IsNull)
		})
	}

	_, err = opts.resolveCode(ambig, "AMBIG", "01")
	assert.True(t, errors.Is(err, types.ErrAmbiguousCode), "err = %v", err)
	assert.True(t, errors.Is(err, types.ErrLookup))

	_, err = opts.resolveCode(width, "WIDTH", "huge")
	assert.True(t, errors.Is(err, types.ErrCodeNotFound))
	assert.Contains(t, err.Error(), "WidthDomain")
}

func TestFieldCache(t *testing.T) {
	fc := newFieldCache(codesDataset(), DefaultOptions().Logger)

	_, err := fc.codes("BROKEN")
	assert.True(t, errors.Is(err, types.ErrInvariant), "NULL inside a domain: err = %v", err)

	_, err = fc.codes("PLAIN")
	assert.True(t, errors.Is(err, types.ErrLookup))

	roads := newFieldCache(roadsDataset(), DefaultOptions().Logger)
	surface, err := roads.codes("surface")
	require.NoError(t, err)
	assert.Equal(t, []string{"asphalt", "gravel", expr.NullValue}, surface.names)
	assert.Equal(t, []any{"A", "G", "<NULL>"}, surface.ids)

	subtypes, err := roads.codes("SUBTYPE")
	require.NoError(t, err)
	assert.Equal(t, -1, subtypes.nullIndex)
	assert.Equal(t, []string{"Highway", "Street"}, subtypes.names)

	again, err := roads.codes("SURFACE")
	require.NoError(t, err)
	assert.Same(t, surface, again)
}

func TestNullObject(t *testing.T) {
	assert.Equal(t, int64(-2), nullObject(types.FieldInteger, []any{int64(-1), int64(3)}))
	assert.Equal(t, "<NULL>_", nullObject(types.FieldString, []any{"<NULL>"}))
	assert.Equal(t, -1.0, nullObject(types.FieldDouble, []any{1.5}))
}

func TestToCsv(t *testing.T) {
	dc, err := Parse(context.Background(), strings.NewReader(roadsMatrix), testCatalog(), DefaultOptions())
	require.NoError(t, err)

	got, err := dc.ToCsv()
	require.NoError(t, err)

	want := "TLM.ROADS;;<Generell>;WIDTH;;;;;SURFACE;;;\n" +
		";;;narrow;wide;k_W;<Generell>;<NULL>;asphalt;gravel;<NULL>;\n" +
		"SUBTYPE;Highway;;1;0;0;0;0;1;0;0;\n" +
		"SUBTYPE;Street;LENGTH > 10;1;1;0;0;1;0;0;0;\n" +
		";;SHAPE_LEN > 0;0;0;0;0;0;0;0;0;\n"
	assert.Equal(t, want, got)

	again, err := Parse(context.Background(), strings.NewReader(got), testCatalog(), DefaultOptions())
	require.NoError(t, err)
	assert.True(t, dc.Constraints.Equal(again.Constraints), "got %s, want %s", again.Constraints, dc.Constraints)
}

func TestToCsv_QuotedCodes(t *testing.T) {
	const roadsHeader = "TLM.ROADS;;<Generell>;WIDTH;;;;;SURFACE;;;\n" +
		";;;narrow;wide;k_W;<Generell>;<NULL>;asphalt;gravel;<NULL>;\n"

	tests := []struct {
		name     string
		matrix   string
		wantTree string
		wantCsv  string
	}{
		{
			name: "null code row on a string field",
			matrix: "ROADS;;<Generell>;WIDTH;;;;;SURFACE;;\n" +
				";;;narrow;wide;k_W;<Generell>;<NULL>;asphalt;gravel;<NULL>\n" +
				";;SHAPE_LEN > 0;;;;;;;;\n" +
				"SURFACE;<NULL>;;1;0;0;0;0;;;\n" +
				";asphalt;;0;1;0;0;0;;;\n",
			wantTree: "[SHAPE_LEN > 0,SURFACE = '<NULL>'[WIDTH = 1],SURFACE = 'A'[WIDTH = 2]]",
			wantCsv: roadsHeader +
				";;SHAPE_LEN > 0;0;0;0;0;0;0;0;0;\n" +
				"SURFACE;<NULL>;;1;0;0;0;0;0;0;0;\n" +
				"SURFACE;asphalt;;0;1;0;0;0;0;0;0;\n",
		},
		{
			name:     "null sentinel inside a general literal",
			matrix:   "ROADS;;;WIDTH;\n;;;narrow;wide\n;;NAME <> '<NULL>';1;\n",
			wantTree: "[NAME <> '<NULL>',WIDTH = 1]",
			wantCsv:  roadsHeader + ";;NAME <> '<NULL>';1;0;0;0;0;0;0;0;\n",
		},
		{
			name:     "quote inside a string code",
			matrix:   "OWNERS;;;OWNER;;\n;;;OBrien;Smith;<NULL>\n;;;1;1;0\nOWNER;OBrien;;0;1;0\n",
			wantTree: "[OWNER IN ('O''Brien','Smith'),OWNER = 'O''Brien'[OWNER = 'Smith']]",
			wantCsv: "TLM.OWNERS;;<Generell>;OWNER;;;\n" +
				";;;OBrien;Smith;<NULL>;\n" +
				";;;1;1;0;\n" +
				"OWNER;OBrien;;0;1;0;\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			dc, err := Parse(ctx, strings.NewReader(tt.matrix), testCatalog(), DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, tt.wantTree, dc.Constraints.String())

			got, err := dc.ToCsv()
			require.NoError(t, err)
			assert.Equal(t, tt.wantCsv, got)

			again, err := Parse(ctx, strings.NewReader(got), testCatalog(), DefaultOptions())
			require.NoError(t, err)
			assert.True(t, dc.Constraints.Equal(again.Constraints), "got %s, want %s", again.Constraints, dc.Constraints)
		})
	}
}

func TestLiteralValue(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{value: int64(5), want: "5"},
		{value: 1.5, want: "1.5"},
		{value: "A", want: "'A'"},
		{value: "12", want: "'12'"},
		{value: "O'Brien", want: "'O''Brien'"},
		{value: "<NULL>", want: "'<NULL>'"},
	}

	for _, tt := range tests {
		if got := literalValue(tt.value); got != tt.want {
			t.Errorf("literalValue(%v) = %s, want %s", tt.value, got, tt.want)
		}
	}
}

func TestToCsv_UnrecognizedConditionsGoToGeneralColumn(t *testing.T) {
	tree, err := constraint.Hierarchy([]string{
		"true",
		"LENGTH > 10",
		"WIDTH = WIDTH",
		"WIDTH IN (1,2)",
		"NAME = 'x'",
		"+SURFACE = 'G'",
		"++LANES = 2",
	})
	require.NoError(t, err)

	dc := New(roadsDataset(), tree, DefaultOptions())
	got, err := dc.ToCsv()
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, ";;;0;0;0;0;0;0;0;0;", lines[2], "boolean true becomes an empty general cell")
	assert.Equal(t, ";;LENGTH > 10;0;0;0;0;0;0;0;0;", lines[3])
	assert.Equal(t, ";;WIDTH = WIDTH;1;1;0;0;0;0;0;0;", lines[4])
	assert.Equal(t, "NAME = 'x';;;0;0;0;0;0;0;1;0;", lines[5])
}

func TestQualityConditionRoundTrip(t *testing.T) {
	ctx := context.Background()
	dc, err := Parse(ctx, strings.NewReader(roadsMatrix), testCatalog(), DefaultOptions())
	require.NoError(t, err)

	qc := dc.ToQualityCondition()
	assert.Equal(t, "qc_dataset_TLM.ROADS", qc.Name)
	assert.Equal(t, TestDescriptor, qc.TestDescriptor)
	require.NotEmpty(t, qc.Values)
	assert.Equal(t, types.DatasetValue(TableParameter, "TLM.ROADS", ""), qc.Values[0])

	var constraints []string
	for _, v := range qc.ValuesOf(ConstraintParameter) {
		constraints = append(constraints, v.Text)
	}
	assert.Equal(t, []string{
		"SUBTYPE = 1", "+SURFACE = 'A'", "+WIDTH = 1",
		"SUBTYPE = 2", "+LENGTH > 10", "+ISNULL(WIDTH,1) IN (1,2)",
		"SHAPE_LEN > 0",
	}, constraints)

	back, err := FromQualityCondition(ctx, qc, testCatalog(), DefaultOptions())
	require.NoError(t, err)
	assert.True(t, dc.Constraints.Equal(back.Constraints))
}

func TestFromQualityCondition_Errors(t *testing.T) {
	ctx := context.Background()

	twoTables := types.NewQualityCondition("qc", TestDescriptor)
	twoTables.Add(types.DatasetValue(TableParameter, "ROADS", ""))
	twoTables.Add(types.DatasetValue(TableParameter, "ROADS", ""))

	unexpected := types.NewQualityCondition("qc", TestDescriptor)
	unexpected.Add(types.DatasetValue(TableParameter, "ROADS", ""))
	unexpected.Add(types.StringValue("tolerance", "1"))

	noTable := types.NewQualityCondition("qc", TestDescriptor)
	noTable.Add(types.StringValue(ConstraintParameter, "A > 1"))

	skipped := types.NewQualityCondition("qc", TestDescriptor)
	skipped.Add(types.DatasetValue(TableParameter, "ROADS", ""))
	skipped.Add(types.StringValue(ConstraintParameter, "A > 1"))
	skipped.Add(types.StringValue(ConstraintParameter, "++B > 1"))

	tests := []struct {
		name    string
		qc      *types.QualityCondition
		wantErr error
	}{
		{name: "two tables", qc: twoTables, wantErr: types.ErrInvalidParameters},
		{name: "unexpected parameter", qc: unexpected, wantErr: types.ErrInvalidParameters},
		{name: "missing table", qc: noTable, wantErr: types.ErrInvalidParameters},
		{name: "skipped level", qc: skipped, wantErr: types.ErrSkippedLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromQualityCondition(ctx, tt.qc, testCatalog(), DefaultOptions())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("FromQualityCondition() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// subtrees renders each top-level subtree; siblings are AND-combined, so
// their order carries no meaning.
func subtrees(tree *constraint.Tree) []string {
	var out []string
	for _, id := range tree.Roots() {
		var sb strings.Builder
		sb.WriteString(tree.Condition(id))
		for _, c := range tree.Children(id) {
			sb.WriteString("|" + tree.Condition(c))
		}
		out = append(out, sb.String())
	}
	sort.Strings(out)
	return out
}

func TestRoundTrip_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	header := "ROADS;;;WIDTH;;;;SURFACE;;\n;;;narrow;wide;k_W;<NULL>;asphalt;gravel;<NULL>\n"
	subtypes := []string{"Highway", "Street"}
	cell := gen.IntRange(0, 2).Map(func(i int) string {
		return []string{"", "0", "1"}[i]
	})

	properties.Property("export then parse preserves the constraints", prop.ForAll(
		func(rows [][]string) bool {
			var sb strings.Builder
			sb.WriteString(header)
			for i, r := range rows {
				attr := ""
				if i == 0 {
					attr = "SUBTYPE"
				}
				sb.WriteString(attr + ";" + subtypes[i%2] + ";;" + strings.Join(r, ";") + "\n")
			}

			ctx := context.Background()
			first, err := Parse(ctx, strings.NewReader(sb.String()), testCatalog(), DefaultOptions())
			if err != nil {
				t.Logf("Parse() error = %v", err)
				return false
			}
			csv, err := first.ToCsv()
			if err != nil {
				return false
			}
			second, err := Parse(ctx, strings.NewReader(csv), testCatalog(), DefaultOptions())
			if err != nil {
				t.Logf("Parse(ToCsv()) error = %v\n%s", err, csv)
				return false
			}
			return assert.ObjectsAreEqual(subtrees(first.Constraints), subtrees(second.Constraints))
		},
		gen.SliceOfN(4, gen.SliceOfN(7, cell)),
	))

	properties.TestingRun(t)
}
