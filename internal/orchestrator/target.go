package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Target is one master table the Apply phase writes staging_valid rows
// into. Targets with a DependsOn relationship run strictly after their
// dependencies (reference tables before fact tables, spec §4.G); targets
// with no dependency on one another run concurrently, up to
// Config.MaxConcurrentSheets (spec §5).
//
// Exactly one Target in a graph should set Primary: true — its
// CountApplied backs the Reconcile phase's insertedCount (spec §4.G).
// Since the target master schema is application-defined and out of scope
// here, both Apply and CountApplied are supplied by the caller.
type Target[T any] struct {
	Name         string
	DependsOn    []string
	Primary      bool
	Apply        func(ctx context.Context, pool *pgxpool.Pool, rows []T) (inserted int, err error)
	CountApplied func(ctx context.Context, pool *pgxpool.Pool, jobID string) (int64, error)
}

// levelize orders targets into dependency levels via Kahn's algorithm:
// level 0 has no unresolved dependencies, level 1 depends only on level 0
// names, and so on. Targets within a level have no dependency relationship
// to one another and may run concurrently. Returns an error if a target
// names an unknown dependency, or, if targets contain a cycle, an error
// giving how many targets remain unresolved.
func levelize[T any](targets []Target[T]) ([][]Target[T], error) {
	byName := make(map[string]Target[T], len(targets))
	remaining := make(map[string][]string, len(targets))
	for _, t := range targets {
		byName[t.Name] = t
		remaining[t.Name] = append([]string(nil), t.DependsOn...)
	}
	for name, deps := range remaining {
		for _, d := range deps {
			if _, ok := byName[d]; !ok {
				return nil, newTargetErrorf("target %q depends on unknown target %q", name, d)
			}
		}
	}

	var levels [][]Target[T]
	done := map[string]bool{}
	for len(done) < len(targets) {
		var level []string
		for name, deps := range remaining {
			if done[name] {
				continue
			}
			ready := true
			for _, d := range deps {
				if !done[d] {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, name)
			}
		}
		if len(level) == 0 {
			return nil, newTargetErrorf("target graph has a dependency cycle among %d unresolved targets", len(targets)-len(done))
		}
		sort.Strings(level) // deterministic ordering for tests and logs
		var lvl []Target[T]
		for _, name := range level {
			lvl = append(lvl, byName[name])
			done[name] = true
		}
		levels = append(levels, lvl)
	}
	return levels, nil
}

// primaryTarget returns the Target marked Primary, or the first target if
// none is marked, matching spec §9's assumption that one target's insert
// count is what Reconcile compares against validCount.
func primaryTarget[T any](targets []Target[T]) (Target[T], bool) {
	if len(targets) == 0 {
		return Target[T]{}, false
	}
	for _, t := range targets {
		if t.Primary {
			return t, true
		}
	}
	return targets[0], true
}

type targetError struct{ msg string }

func (e *targetError) Error() string { return e.msg }

func newTargetErrorf(format string, args ...any) error {
	return &targetError{msg: fmt.Sprintf(format, args...)}
}
