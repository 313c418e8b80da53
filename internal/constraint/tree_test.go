// internal/constraint/tree_test.go
package constraint

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/qamatrix/internal/types"
)

func TestHierarchy(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{name: "empty", lines: nil, want: "[]"},
		{name: "chain", lines: []string{"a", "+b", "++c"}, want: "[a[b[c]]]"},
		{name: "siblings", lines: []string{"a", "b"}, want: "[a,b]"},
		{name: "close two levels", lines: []string{"a", "+b", "++c", "d", "+e"}, want: "[a[b[c]],d[e]]"},
		{name: "back to middle level", lines: []string{"a", "+b", "++c", "+d"}, want: "[a[b[c],d]]"},
		{name: "whitespace around markers", lines: []string{" a ", " + b"}, want: "[a[b]]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Hierarchy(tt.lines)
			if err != nil {
				t.Fatalf("Hierarchy() error = %v, want nil", err)
			}
			if got := tree.String(); got != tt.want {
				t.Errorf("Hierarchy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHierarchy_Errors(t *testing.T) {
	tests := []struct {
		name    string
		lines   []string
		wantErr error
	}{
		{name: "skipped level", lines: []string{"a", "++b"}, wantErr: types.ErrSkippedLevel},
		{name: "child without parent", lines: []string{"+a"}, wantErr: types.ErrSkippedLevel},
		{name: "empty condition", lines: []string{"a", "+"}, wantErr: types.ErrFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Hierarchy(tt.lines)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Hierarchy() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, types.ErrFormat) {
				t.Errorf("Hierarchy() error = %v, want a format error", err)
			}
		})
	}
}

func TestTree_AddAndWalk(t *testing.T) {
	tree := New()
	a := tree.Add(Root, "SUBTYPE = 1")
	tree.Add(a, "WIDTH IN (1,2)")
	tree.Add(a, "LANES = 2")
	tree.Add(Root, "SUBTYPE = 2")

	want := []string{"SUBTYPE = 1", "+WIDTH IN (1,2)", "+LANES = 2", "SUBTYPE = 2"}
	if diff := cmp.Diff(want, tree.Flatten()); diff != "" {
		t.Errorf("Flatten() mismatch (-want +got):\n%s", diff)
	}
	if tree.Len() != 4 {
		t.Errorf("Len() = %v, want 4", tree.Len())
	}
	if got := len(tree.Children(Root)); got != 2 {
		t.Errorf("len(Children(Root)) = %v, want 2", got)
	}

	var depths []int
	_ = tree.Walk(func(_ NodeID, depth int) error {
		depths = append(depths, depth)
		return nil
	})
	if diff := cmp.Diff([]int{0, 1, 1, 0}, depths); diff != "" {
		t.Errorf("Walk() depths mismatch (-want +got):\n%s", diff)
	}
}

func TestHierarchy_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	// steps[i] decides the depth of line i relative to line i-1: it may go
	// one level deeper or close any number of levels.
	genDepths := gen.SliceOf(gen.IntRange(-3, 1)).Map(func(steps []int) []int {
		depths := make([]int, len(steps))
		depth := 0
		for i, s := range steps {
			if i == 0 {
				depth = 0
			} else {
				depth = max(0, depth+s)
			}
			depths[i] = depth
		}
		return depths
	})

	properties.Property("flatten inverts hierarchy for well-formed input", prop.ForAll(
		func(depths []int) bool {
			lines := make([]string, len(depths))
			for i, d := range depths {
				lines[i] = strings.Repeat("+", d) + "c" + strings.Repeat("x", i)
			}
			tree, err := Hierarchy(lines)
			if err != nil {
				return false
			}
			return cmp.Equal(lines, tree.Flatten()) || (len(lines) == 0 && len(tree.Flatten()) == 0)
		},
		genDepths,
	))

	properties.Property("skipping a level always fails", prop.ForAll(
		func(depths []int, extra int) bool {
			lines := make([]string, 0, len(depths)+1)
			last := -1
			for _, d := range depths {
				lines = append(lines, strings.Repeat("+", d)+"c")
				last = d
			}
			lines = append(lines, strings.Repeat("+", last+2+extra)+"c")
			_, err := Hierarchy(lines)
			return errors.Is(err, types.ErrSkippedLevel)
		},
		genDepths,
		gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}
