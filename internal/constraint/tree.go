// internal/constraint/tree.go
package constraint

import (
	"fmt"
	"strings"

	"github.com/solatis/qamatrix/internal/types"
)

/*
 * Constraint trees.
 *
 * A tree is an ordered forest of conditions. Siblings are AND-combined; a
 * node with children means "when the condition holds, the children must
 * hold too". Nodes live in an arena and are addressed by NodeID; Root is the
 * pseudo-parent of top-level nodes.
 *
 * The flat form used in parameter bags prefixes each condition with one '+'
 * per level of depth, in pre-order:
 *
 *   SUBTYPE = 1
 *   +WIDTH IN (1,2)
 *   +LANES = 2
 *   SUBTYPE = 2
 *
 * Hierarchy parses that form in one pass with a stack of open parents.
 * A line may close any number of levels but open at most one.
 */

// NodeID addresses a node of a Tree.
type NodeID int

// Root is the parent of top-level nodes.
const Root NodeID = -1

// DepthMarker prefixes a flattened condition once per level.
const DepthMarker = '+'

type node struct {
	condition string
	children  []NodeID
}

// Tree is an arena of constraint nodes. The zero value is an empty tree.
type Tree struct {
	nodes []node
	roots []NodeID
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{}
}

// Add appends a node under parent and returns its ID.
// Panics when parent does not belong to the tree.
func (t *Tree) Add(parent NodeID, condition string) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, node{condition: condition})
	if parent == Root {
		t.roots = append(t.roots, id)
	} else {
		p := &t.nodes[t.index(parent)]
		p.children = append(p.children, id)
	}
	return id
}

func (t *Tree) index(id NodeID) int {
	if id < 0 || int(id) >= len(t.nodes) {
		panic(fmt.Sprintf("constraint: node %d out of range", id))
	}
	return int(id)
}

// Roots returns the top-level nodes in order.
func (t *Tree) Roots() []NodeID {
	return t.roots
}

// Children returns the children of id in order. Children(Root) == Roots().
func (t *Tree) Children(id NodeID) []NodeID {
	if id == Root {
		return t.roots
	}
	return t.nodes[t.index(id)].children
}

// Condition returns the condition text of id.
func (t *Tree) Condition(id NodeID) string {
	return t.nodes[t.index(id)].condition
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Walk visits all nodes in pre-order with their depth (0 for roots).
// A non-nil error from fn stops the walk and is returned.
func (t *Tree) Walk(fn func(id NodeID, depth int) error) error {
	var visit func(ids []NodeID, depth int) error
	visit = func(ids []NodeID, depth int) error {
		for _, id := range ids {
			if err := fn(id, depth); err != nil {
				return err
			}
			if err := visit(t.nodes[id].children, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(t.roots, 0)
}

// Flatten renders the tree in its '+'-prefixed pre-order form.
func (t *Tree) Flatten() []string {
	out := make([]string, 0, len(t.nodes))
	_ = t.Walk(func(id NodeID, depth int) error {
		out = append(out, strings.Repeat(string(DepthMarker), depth)+t.nodes[id].condition)
		return nil
	})
	return out
}

// String renders the tree compactly, e.g. "[a[b[c]],d]".
func (t *Tree) String() string {
	var sb strings.Builder
	var write func(ids []NodeID)
	write = func(ids []NodeID) {
		sb.WriteByte('[')
		for i, id := range ids {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(t.nodes[id].condition)
			if len(t.nodes[id].children) > 0 {
				write(t.nodes[id].children)
			}
		}
		sb.WriteByte(']')
	}
	write(t.roots)
	return sb.String()
}

// Equal reports whether both trees hold the same conditions in the same shape.
func (t *Tree) Equal(o *Tree) bool {
	a, b := t.Flatten(), o.Flatten()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Hierarchy builds a tree from '+'-prefixed lines.
func Hierarchy(lines []string) (*Tree, error) {
	t := New()

	// open[d] is the parent for nodes at depth d
	open := []NodeID{Root}

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		depth := 0
		for depth < len(line) && line[depth] == DepthMarker {
			depth++
		}
		condition := strings.TrimSpace(line[depth:])
		if condition == "" {
			return nil, fmt.Errorf("%w: line %d %q has no condition", types.ErrFormat, i+1, raw)
		}

		if len(open) > depth+1 {
			open = open[:depth+1]
		}
		if len(open) != depth+1 {
			return nil, fmt.Errorf("%w: line %d %q is nested below a missing parent", types.ErrSkippedLevel, i+1, raw)
		}

		id := t.Add(open[depth], condition)
		open = append(open, id)
	}

	return t, nil
}
