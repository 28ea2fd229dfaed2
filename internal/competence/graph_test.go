package competence

import (
	"errors"
	"slices"
	"sync"
	"testing"
)

// testGraph builds a small numbers strand:
//
//	N1.1 -> N1.2 -> N1.4
//	N1.1 -> N1.3 -> N1.4
//	N1.3 ~> N1.5 (recommended, weight 2)
//	N1.2 ~> N1.5 (recommended, weight 5)
//	N1.1 .. N1.5 (helpful)
func testGraph(t *testing.T) *Graph {
	t.Helper()
	nodes := []Node{
		{Code: "CP.MA.N1.1", Level: "CP", Subject: "MA", Domain: "N1"},
		{Code: "CP.MA.N1.2", Level: "CP", Subject: "MA", Domain: "N1"},
		{Code: "CP.MA.N1.3", Level: "CP", Subject: "MA", Domain: "N1"},
		{Code: "CP.MA.N1.4", Level: "CP", Subject: "MA", Domain: "N1"},
		{Code: "CP.MA.N1.5", Level: "CP", Subject: "MA", Domain: "N1"},
	}
	edges := []Edge{
		{Target: "CP.MA.N1.2", Source: "CP.MA.N1.1", Kind: EdgeRequired, Threshold: 80, Weight: 1},
		{Target: "CP.MA.N1.3", Source: "CP.MA.N1.1", Kind: EdgeRequired, Threshold: 70, Weight: 1},
		{Target: "CP.MA.N1.4", Source: "CP.MA.N1.2", Kind: EdgeRequired, Threshold: 80, Weight: 1},
		{Target: "CP.MA.N1.4", Source: "CP.MA.N1.3", Kind: EdgeRequired, Threshold: 60, Weight: 1},
		{Target: "CP.MA.N1.5", Source: "CP.MA.N1.3", Kind: EdgeRecommended, Threshold: 0, Weight: 2},
		{Target: "CP.MA.N1.5", Source: "CP.MA.N1.2", Kind: EdgeRecommended, Threshold: 0, Weight: 5},
		{Target: "CP.MA.N1.5", Source: "CP.MA.N1.1", Kind: EdgeHelpful, Threshold: 0, Weight: 9},
	}
	g, err := Build(nodes, edges)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func TestNode_NotFound(t *testing.T) {
	g := testGraph(t)
	_, err := g.Node("CP.MA.X")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected *NotFoundError, got %v", err)
	}
	if nf.Code != "CP.MA.X" {
		t.Errorf("Code = %q, want CP.MA.X", nf.Code)
	}
}

func TestTopologicalOrder_PrerequisitesFirst(t *testing.T) {
	g := testGraph(t)
	topo := g.TopologicalOrder()
	if len(topo) != 5 {
		t.Fatalf("got %d codes, want 5", len(topo))
	}
	for _, e := range g.Edges() {
		if !e.Blocks() {
			continue
		}
		if g.TopoIndex(e.Source) >= g.TopoIndex(e.Target) {
			t.Errorf("%s (pos %d) should precede %s (pos %d)",
				e.Source, g.TopoIndex(e.Source), e.Target, g.TopoIndex(e.Target))
		}
	}
}

func TestTopologicalOrder_Deterministic(t *testing.T) {
	a := testGraph(t).TopologicalOrder()
	b := testGraph(t).TopologicalOrder()
	if !slices.Equal(a, b) {
		t.Errorf("topological order differs between builds: %v vs %v", a, b)
	}
}

func TestDepth(t *testing.T) {
	g := testGraph(t)
	tests := []struct {
		code string
		want int
	}{
		{"CP.MA.N1.1", 0},
		{"CP.MA.N1.2", 1},
		{"CP.MA.N1.3", 1},
		{"CP.MA.N1.4", 2},
		{"CP.MA.N1.5", 0}, // recommended edges do not add depth
	}
	for _, tt := range tests {
		if got := g.Depth(tt.code); got != tt.want {
			t.Errorf("Depth(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestRoots(t *testing.T) {
	g := testGraph(t)
	roots := g.Roots()
	want := []string{"CP.MA.N1.1", "CP.MA.N1.5"}
	slices.Sort(roots)
	if !slices.Equal(roots, want) {
		t.Errorf("Roots() = %v, want %v", roots, want)
	}
}

func TestDependentsOf(t *testing.T) {
	g := testGraph(t)

	deps, err := g.DependentsOf("CP.MA.N1.3")
	if err != nil {
		t.Fatalf("DependentsOf: %v", err)
	}
	want := []string{"CP.MA.N1.4", "CP.MA.N1.5"}
	if !slices.Equal(deps, want) {
		t.Errorf("DependentsOf(N1.3) = %v, want %v", deps, want)
	}

	// Helpful edges are not part of the cascade.
	deps, err = g.DependentsOf("CP.MA.N1.1")
	if err != nil {
		t.Fatalf("DependentsOf: %v", err)
	}
	if slices.Contains(deps, "CP.MA.N1.5") {
		t.Error("helpful edge target should not be a dependent")
	}

	if _, err := g.DependentsOf("nope"); err == nil {
		t.Error("expected error for unknown code")
	}
}

func TestRecommendedWeight(t *testing.T) {
	g := testGraph(t)
	if got := g.RecommendedWeight("CP.MA.N1.5"); got != 5 {
		t.Errorf("RecommendedWeight(N1.5) = %g, want 5", got)
	}
	if got := g.RecommendedWeight("CP.MA.N1.4"); got != 0 {
		t.Errorf("RecommendedWeight(N1.4) = %g, want 0", got)
	}
}

func TestIsUnlocked(t *testing.T) {
	g := testGraph(t)
	empty := ProgressMap(nil)

	if ok, _ := g.IsUnlocked(empty, "CP.MA.N1.1"); !ok {
		t.Error("root should be unlocked with no progress")
	}
	if ok, _ := g.IsUnlocked(empty, "CP.MA.N1.5"); !ok {
		t.Error("recommended/helpful edges must never block")
	}
	if ok, _ := g.IsUnlocked(empty, "CP.MA.N1.2"); ok {
		t.Error("N1.2 should be locked with no progress")
	}

	// Threshold is inclusive.
	if ok, _ := g.IsUnlocked(ProgressMap(map[string]int{"CP.MA.N1.1": 80}), "CP.MA.N1.2"); !ok {
		t.Error("N1.2 should unlock when N1.1 progress equals threshold")
	}
	if ok, _ := g.IsUnlocked(ProgressMap(map[string]int{"CP.MA.N1.1": 79}), "CP.MA.N1.2"); ok {
		t.Error("N1.2 should stay locked one point below threshold")
	}

	// Both required prerequisites must be met (AND semantics).
	partial := ProgressMap(map[string]int{"CP.MA.N1.2": 100, "CP.MA.N1.3": 59})
	if ok, _ := g.IsUnlocked(partial, "CP.MA.N1.4"); ok {
		t.Error("N1.4 should be locked with one unmet prerequisite")
	}
	both := ProgressMap(map[string]int{"CP.MA.N1.2": 80, "CP.MA.N1.3": 60})
	if ok, _ := g.IsUnlocked(both, "CP.MA.N1.4"); !ok {
		t.Error("N1.4 should be unlocked when both thresholds are met")
	}

	if _, err := g.IsUnlocked(empty, "missing"); err == nil {
		t.Error("expected NotFoundError for unknown code")
	}
}

func TestBlockingReasons(t *testing.T) {
	g := testGraph(t)

	reasons, err := g.BlockingReasons(ProgressMap(nil), "CP.MA.N1.4")
	if err != nil {
		t.Fatalf("BlockingReasons: %v", err)
	}
	want := []string{"CP.MA.N1.2", "CP.MA.N1.3"}
	if !slices.Equal(reasons, want) {
		t.Errorf("BlockingReasons = %v, want %v", reasons, want)
	}

	reasons, _ = g.BlockingReasons(ProgressMap(map[string]int{"CP.MA.N1.3": 90}), "CP.MA.N1.4")
	if !slices.Equal(reasons, []string{"CP.MA.N1.2"}) {
		t.Errorf("BlockingReasons = %v, want [CP.MA.N1.2]", reasons)
	}

	reasons, _ = g.BlockingReasons(ProgressMap(nil), "CP.MA.N1.1")
	if len(reasons) != 0 {
		t.Errorf("root should have no blocking reasons, got %v", reasons)
	}
}

func TestScenario_ThresholdUnlock(t *testing.T) {
	nodes := []Node{{Code: "X"}, {Code: "Y"}}
	edges := []Edge{{Target: "X", Source: "Y", Kind: EdgeRequired, Threshold: 80, Weight: 1}}
	g, err := Build(nodes, edges)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	progress := map[string]int{"Y": 60}
	if ok, _ := g.IsUnlocked(ProgressMap(progress), "X"); ok {
		t.Error("X should be locked while Y is at 60")
	}
	reasons, _ := g.BlockingReasons(ProgressMap(progress), "X")
	if !slices.Equal(reasons, []string{"Y"}) {
		t.Errorf("BlockingReasons = %v, want [Y]", reasons)
	}

	progress["Y"] = 85
	if ok, _ := g.IsUnlocked(ProgressMap(progress), "X"); !ok {
		t.Error("X should unlock once Y reaches 85")
	}
}

func TestUnlock_MonotonicInProgress(t *testing.T) {
	g := testGraph(t)
	progress := map[string]int{}
	unlockedBefore := map[string]bool{}

	// Raise every source's progress step by step; nothing unlocked may re-lock.
	for p := 0; p <= 100; p += 10 {
		for _, n := range g.Nodes() {
			progress[n.Code] = p
		}
		for _, code := range g.TopologicalOrder() {
			ok, _ := g.IsUnlocked(ProgressMap(progress), code)
			if unlockedBefore[code] && !ok {
				t.Fatalf("%s re-locked at progress %d", code, p)
			}
			if ok {
				unlockedBefore[code] = true
			}
		}
	}
	if len(unlockedBefore) != 5 {
		t.Errorf("expected all 5 competences unlocked at 100%%, got %d", len(unlockedBefore))
	}
}

func TestNodes_ReturnsCopy(t *testing.T) {
	g := testGraph(t)
	a := g.Nodes()
	a[0].Title = "MUTATED"
	if g.Nodes()[0].Title == "MUTATED" {
		t.Error("Nodes did not return a defensive copy")
	}
}

func TestRegistry_Swap(t *testing.T) {
	r := NewRegistry(nil)
	if _, err := r.Current(); !errors.Is(err, ErrNoGraph) {
		t.Fatalf("expected ErrNoGraph, got %v", err)
	}

	g1 := testGraph(t)
	if v := r.Swap(g1); v != 1 {
		t.Errorf("first Swap version = %d, want 1", v)
	}
	g2 := testGraph(t)
	if v := r.Swap(g2); v != 2 {
		t.Errorf("second Swap version = %d, want 2", v)
	}

	cur, err := r.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if cur.Version() != 2 || !slices.Equal(cur.TopologicalOrder(), g2.TopologicalOrder()) {
		t.Errorf("Current() did not return the latest graph")
	}
	if g1.Version() != 0 || g2.Version() != 0 {
		t.Errorf("Swap modified the graphs it was given: versions %d, %d", g1.Version(), g2.Version())
	}
}

func TestRegistry_SharedGraphKeepsPerRegistryVersions(t *testing.T) {
	g := testGraph(t)
	a := NewRegistry(nil)
	b := NewRegistry(nil)
	a.Swap(testGraph(t))

	var wg sync.WaitGroup
	for _, r := range []*Registry{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Swap(g)
		}()
	}
	wg.Wait()

	ga, _ := a.Current()
	gb, _ := b.Current()
	if ga.Version() != 2 || gb.Version() != 1 {
		t.Errorf("versions = %d, %d, want 2, 1", ga.Version(), gb.Version())
	}
	if g.Version() != 0 {
		t.Errorf("shared graph version = %d, want 0", g.Version())
	}
}
