// internal/connectivity/ranker.go
package connectivity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

/*
 * Rule group ranking.
 *
 * Rule groups are written most-used first: each group is weighted by the
 * number of rows its class rules select, summed over all classes. The
 * weight only orders the output; any order is a valid rule set.
 *
 * Only the first ';' statement of a rule selects rows; counter statements
 * are ignored. "true" counts the whole table, "false" counts nothing, any
 * other statement is passed to the database as WHERE clause.
 *
 * Identical (table, where) queries run once. With Parallelism > 1 queries
 * run concurrently, bounded by Parallelism; the sort is stable either way.
 */

// RowCounter counts rows of a dataset matching a where clause. An empty
// where counts all rows.
type RowCounter interface {
	RowCount(ctx context.Context, dataset, where string) (int64, error)
}

// RuleCount is the rule set of one connection group, one rule per feature
// class. Count is -1 until ranked.
type RuleCount struct {
	Rules []string
	Count int64
}

// Table is a feature class as seen by the ranker.
type Table struct {
	Dataset string
	Filter  string
}

// Ranker orders rule groups by row count.
type Ranker struct {
	counter     RowCounter
	parallelism int
	log         zerolog.Logger

	mu     sync.Mutex
	cache  map[string]int64
	flight singleflight.Group
}

// NewRanker creates a ranker. parallelism <= 1 counts sequentially.
func NewRanker(counter RowCounter, parallelism int, log zerolog.Logger) *Ranker {
	return &Ranker{
		counter:     counter,
		parallelism: parallelism,
		log:         log,
		cache:       make(map[string]int64),
	}
}

// Rank counts every group and sorts groups descending by count.
func (r *Ranker) Rank(ctx context.Context, groups []*RuleCount, tables []Table) error {
	for _, g := range groups {
		if len(g.Rules) != len(tables) {
			return fmt.Errorf("rule group has %d rules for %d feature classes", len(g.Rules), len(tables))
		}
	}

	counts := make([][]int64, len(groups))
	for i := range counts {
		counts[i] = make([]int64, len(tables))
	}

	if r.parallelism > 1 {
		eg, egctx := errgroup.WithContext(ctx)
		eg.SetLimit(r.parallelism)
		for gi, g := range groups {
			gi, g := gi, g
			for ti, t := range tables {
				ti, t := ti, t
				eg.Go(func() error {
					n, err := r.count(egctx, t, g.Rules[ti])
					counts[gi][ti] = n
					return err
				})
			}
		}
		if err := eg.Wait(); err != nil {
			return err
		}
	} else {
		for gi, g := range groups {
			for ti, t := range tables {
				n, err := r.count(ctx, t, g.Rules[ti])
				if err != nil {
					return err
				}
				counts[gi][ti] = n
			}
		}
	}

	for gi, g := range groups {
		g.Count = 0
		for _, n := range counts[gi] {
			g.Count += n
		}
	}

	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].Count > groups[b].Count
	})

	r.log.Debug().Int("groups", len(groups)).Msg("ranked rule groups")
	return nil
}

func (r *Ranker) count(ctx context.Context, t Table, rule string) (int64, error) {
	where, none := whereClause(rule, t.Filter)
	if none {
		return 0, nil
	}

	key := t.Dataset + "\x00" + where
	r.mu.Lock()
	n, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return n, nil
	}

	v, err, _ := r.flight.Do(key, func() (any, error) {
		r.mu.Lock()
		n, ok := r.cache[key]
		r.mu.Unlock()
		if ok {
			return n, nil
		}

		n, err := r.counter.RowCount(ctx, t.Dataset, where)
		if err != nil {
			return int64(0), err
		}
		r.mu.Lock()
		r.cache[key] = n
		r.mu.Unlock()
		r.log.Debug().Str("dataset", t.Dataset).Str("where", where).Int64("rows", n).Msg("counted rows")
		return n, nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", t.Dataset, err)
	}
	return v.(int64), nil
}

// whereClause derives the row selection of rule. none is true when the
// rule selects nothing.
func whereClause(rule, filter string) (where string, none bool) {
	statement := strings.TrimSpace(strings.SplitN(rule, separator, 2)[0])
	switch {
	case strings.EqualFold(statement, ruleFalse):
		return "", true
	case strings.EqualFold(statement, ruleTrue):
		return filter, false
	case filter == "":
		return statement, false
	default:
		return "(" + filter + ") AND (" + statement + ")", false
	}
}
