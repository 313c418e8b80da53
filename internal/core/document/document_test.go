package document

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/qamatrix/internal/types"
)

func TestMarshalUnmarshal(t *testing.T) {
	qc := types.NewQualityCondition("qc_line_connection", "QaLineConnection")
	qc.Add(types.DatasetValue("featureClasses", "NET.ROADS", "STATE = 1"))
	qc.Add(types.DatasetValue("featureClasses", "NET.JUNCTIONS", ""))
	qc.Add(types.StringValue("rules", "KIND IN (1, 2); m0: KIND = 2;m0 < 3"))
	qc.Add(types.StringValue("rules", "true"))
	qc.Add(types.NumberValue("tolerance", 0.5))
	qc.Add(types.BoolValue("strict", false))

	data, err := Marshal(qc)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)

	if diff := cmp.Diff(qc, got); diff != "" {
		t.Errorf("Unmarshal(Marshal()) mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshal(t *testing.T) {
	input := `name: qc_roads
test_descriptor: QaConstraintsListFactory
parameters:
  - {name: table, dataset: TLM.ROADS}
  - {name: constraint, string: "SUBTYPE = 1"}
  - {name: constraint, string: "+WIDTH = 2"}
`
	qc, err := Unmarshal([]byte(input))
	require.NoError(t, err)

	assert.NotEmpty(t, qc.ID)
	assert.Equal(t, "qc_roads", qc.Name)
	assert.Equal(t, []types.ParameterValue{
		types.DatasetValue("table", "TLM.ROADS", ""),
		types.StringValue("constraint", "SUBTYPE = 1"),
		types.StringValue("constraint", "+WIDTH = 2"),
	}, qc.Values)
}

func TestUnmarshal_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:    "two kinds",
			input:   "name: a\nparameters:\n  - {name: x, string: s, bool: true}\n",
			wantErr: types.ErrFormat,
		},
		{
			name:    "no kind",
			input:   "name: a\nparameters:\n  - {name: x}\n",
			wantErr: types.ErrFormat,
		},
		{
			name:    "filter without dataset",
			input:   "name: a\nparameters:\n  - {name: x, string: s, filter: y}\n",
			wantErr: types.ErrFormat,
		},
		{
			name:    "unknown key",
			input:   "name: a\ncolour: red\n",
			wantErr: types.ErrFormat,
		},
		{
			name:    "bad id",
			input:   "id: nope\nname: a\n",
			wantErr: types.ErrFormat,
		},
		{
			name:    "no name",
			input:   "test_descriptor: X\n",
			wantErr: types.ErrInvalidParameters,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: types.ErrFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
