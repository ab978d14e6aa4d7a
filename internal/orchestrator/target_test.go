package orchestrator

import (
	"reflect"
	"testing"
)

type fakeRow struct{ Name string }

func names[T any](targets []Target[T]) []string {
	out := make([]string, len(targets))
	for i, t := range targets {
		out[i] = t.Name
	}
	return out
}

func TestLevelize_OrdersByDependency(t *testing.T) {
	targets := []Target[fakeRow]{
		{Name: "fact_orders", DependsOn: []string{"dim_customer", "dim_product"}},
		{Name: "dim_customer"},
		{Name: "dim_product"},
	}

	levels, err := levelize(targets)
	if err != nil {
		t.Fatalf("levelize() error = %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("len(levels) = %d, want 2", len(levels))
	}
	if got := names(levels[0]); !reflect.DeepEqual(got, []string{"dim_customer", "dim_product"}) {
		t.Errorf("level 0 = %v, want [dim_customer dim_product]", got)
	}
	if got := names(levels[1]); !reflect.DeepEqual(got, []string{"fact_orders"}) {
		t.Errorf("level 1 = %v, want [fact_orders]", got)
	}
}

func TestLevelize_IndependentTargetsShareALevel(t *testing.T) {
	targets := []Target[fakeRow]{{Name: "b"}, {Name: "a"}, {Name: "c"}}
	levels, err := levelize(targets)
	if err != nil {
		t.Fatalf("levelize() error = %v", err)
	}
	if len(levels) != 1 {
		t.Fatalf("len(levels) = %d, want 1", len(levels))
	}
	if got := names(levels[0]); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("level 0 = %v, want sorted [a b c]", got)
	}
}

func TestLevelize_RejectsCycle(t *testing.T) {
	targets := []Target[fakeRow]{
		{Name: "a", DependsOn: []string{"b"}},
		{Name: "b", DependsOn: []string{"a"}},
	}
	if _, err := levelize(targets); err == nil {
		t.Fatal("levelize() on a cycle: want error, got nil")
	}
}

func TestLevelize_RejectsUnknownDependency(t *testing.T) {
	targets := []Target[fakeRow]{{Name: "a", DependsOn: []string{"nonexistent"}}}
	if _, err := levelize(targets); err == nil {
		t.Fatal("levelize() on unknown dependency: want error, got nil")
	}
}

func TestPrimaryTarget_PrefersExplicitlyMarked(t *testing.T) {
	targets := []Target[fakeRow]{
		{Name: "aux"},
		{Name: "main", Primary: true},
	}
	got, ok := primaryTarget(targets)
	if !ok || got.Name != "main" {
		t.Errorf("primaryTarget() = %v, %v, want main, true", got.Name, ok)
	}
}

func TestPrimaryTarget_FallsBackToFirst(t *testing.T) {
	targets := []Target[fakeRow]{{Name: "first"}, {Name: "second"}}
	got, ok := primaryTarget(targets)
	if !ok || got.Name != "first" {
		t.Errorf("primaryTarget() = %v, %v, want first, true", got.Name, ok)
	}
}
