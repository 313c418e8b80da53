// internal/connectivity/grouping.go
package connectivity

import "slices"

/*
 * Connection groups.
 *
 * A group is a set of line type indexes that are pairwise adjacent in a
 * node block (cell != 0). Each group becomes one rule set: a node may join
 * any lines whose types all lie in one group.
 *
 * Groups grow incrementally in index order. For each new index i, every
 * existing group g is tested:
 *   - i adjacent to all of g: g is replaced by g+i
 *   - i adjacent to part of g: g stays, (adjacent part)+i is a new group
 * New groups contained in other new groups are dropped. If nothing took i,
 * it starts a singleton. Afterwards singletons whose diagonal is 0 (the
 * type may not meet itself) are dropped, and so is any group contained in
 * another.
 *
 * Members of a group are ascending; groups are sorted lexicographically.
 * The result depends only on the cells.
 */

// ConnectionGroups returns the maximal sets of mutually adjacent line types
// of cells.
func ConnectionGroups(cells [][]int) [][]int {
	var groups [][]int

	for i := range cells {
		var kept, fresh [][]int
		for _, g := range groups {
			adjacent := adjacentMembers(g, i, cells)
			if len(adjacent) < len(g) {
				kept = append(kept, g)
			}
			if len(adjacent) > 0 {
				fresh = append(fresh, append(adjacent, i))
			}
		}

		fresh = maximal(fresh)
		if len(fresh) == 0 {
			kept = append(kept, []int{i})
		}
		groups = append(kept, fresh...)
		slices.SortFunc(groups, compareGroups)
	}

	groups = slices.DeleteFunc(groups, func(g []int) bool {
		return len(g) == 1 && cells[g[0]][g[0]] == 0
	})
	return maximal(groups)
}

func adjacentMembers(group []int, i int, cells [][]int) []int {
	out := make([]int, 0, len(group)+1)
	for _, j := range group {
		if cells[min(i, j)][max(i, j)] != 0 {
			out = append(out, j)
		}
	}
	return out
}

// maximal drops duplicates and groups contained in another group, and
// sorts the rest.
func maximal(groups [][]int) [][]int {
	var out [][]int
	for i, g := range groups {
		covered := false
		for j, h := range groups {
			if i == j || !isSubset(g, h) {
				continue
			}
			if len(g) < len(h) || j < i {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, g)
		}
	}
	slices.SortFunc(out, compareGroups)
	return out
}

func compareGroups(a, b []int) int {
	return slices.Compare(a, b)
}

// isSubset reports whether every member of a is in b. Both are ascending.
func isSubset(a, b []int) bool {
	j := 0
	for _, x := range a {
		for j < len(b) && b[j] < x {
			j++
		}
		if j == len(b) || b[j] != x {
			return false
		}
	}
	return true
}
