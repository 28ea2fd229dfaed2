package competence

import (
	"slices"
	"sort"
)

// Graph is an immutable competence DAG with precomputed indices.
// It is safe for concurrent use by any number of readers.
type Graph struct {
	version    int64
	nodes      []Node
	byCode     map[string]*Node
	edges      []Edge
	incoming   map[string][]Edge // every edge, keyed by target
	required   map[string][]Edge // required edges, keyed by target
	dependents map[string][]string
	recWeight  map[string]float64
	topoOrder  []string
	topoIndex  map[string]int
	depth      map[string]int
}

// Build validates the nodes and edges and constructs a graph.
// Any structural problem, including a cycle among required edges,
// is returned as a *ConfigError.
func Build(nodes []Node, edges []Edge) (*Graph, error) {
	if cfgErr := validate(nodes, edges); cfgErr != nil {
		return nil, cfgErr
	}

	g := &Graph{
		nodes:      slices.Clone(nodes),
		byCode:     make(map[string]*Node, len(nodes)),
		edges:      slices.Clone(edges),
		incoming:   make(map[string][]Edge),
		required:   make(map[string][]Edge),
		dependents: make(map[string][]string),
		recWeight:  make(map[string]float64),
		topoIndex:  make(map[string]int, len(nodes)),
		depth:      make(map[string]int, len(nodes)),
	}

	for i := range g.nodes {
		g.byCode[g.nodes[i].Code] = &g.nodes[i]
	}

	for _, e := range g.edges {
		g.incoming[e.Target] = append(g.incoming[e.Target], e)
		switch e.Kind {
		case EdgeRequired:
			g.required[e.Target] = append(g.required[e.Target], e)
			g.dependents[e.Source] = append(g.dependents[e.Source], e.Target)
		case EdgeRecommended:
			g.dependents[e.Source] = append(g.dependents[e.Source], e.Target)
			if e.Weight > g.recWeight[e.Target] {
				g.recWeight[e.Target] = e.Weight
			}
		}
	}
	for code, deps := range g.dependents {
		sort.Strings(deps)
		g.dependents[code] = slices.Compact(deps)
	}

	g.buildTopoOrder()
	return g, nil
}

// buildTopoOrder runs Kahn's algorithm over required edges with a sorted
// queue so the order is deterministic, and records each node's depth
// (longest chain of required prerequisites above it).
func (g *Graph) buildTopoOrder() {
	inDegree := make(map[string]int, len(g.nodes))
	out := make(map[string][]string)
	for _, n := range g.nodes {
		inDegree[n.Code] = len(g.required[n.Code])
	}
	for _, e := range g.edges {
		if e.Blocks() {
			out[e.Source] = append(out[e.Source], e.Target)
		}
	}

	var queue []string
	for code, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, code)
		}
	}
	sort.Strings(queue)

	for len(queue) > 0 {
		code := queue[0]
		queue = queue[1:]
		g.topoIndex[code] = len(g.topoOrder)
		g.topoOrder = append(g.topoOrder, code)

		targets := slices.Clone(out[code])
		sort.Strings(targets)
		for _, t := range targets {
			if d := g.depth[code] + 1; d > g.depth[t] {
				g.depth[t] = d
			}
			inDegree[t]--
			if inDegree[t] == 0 {
				queue = append(queue, t)
			}
		}
	}
}

// Version returns the version assigned by the Registry (0 if never installed).
func (g *Graph) Version() int64 {
	return g.version
}

// Node returns a competence node by code.
func (g *Graph) Node(code string) (Node, error) {
	n, ok := g.byCode[code]
	if !ok {
		return Node{}, &NotFoundError{Code: code}
	}
	return *n, nil
}

// Has reports whether the code names a competence in the graph.
func (g *Graph) Has(code string) bool {
	_, ok := g.byCode[code]
	return ok
}

// Nodes returns all nodes in declaration order.
func (g *Graph) Nodes() []Node {
	return slices.Clone(g.nodes)
}

// Edges returns all edges in declaration order.
func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// Prerequisites returns every edge (of any kind) that targets code.
func (g *Graph) Prerequisites(code string) ([]Edge, error) {
	if !g.Has(code) {
		return nil, &NotFoundError{Code: code}
	}
	return slices.Clone(g.incoming[code]), nil
}

// DependentsOf returns the codes reachable from code by one required or
// recommended edge, sorted. These are the nodes to recheck on a cascade.
func (g *Graph) DependentsOf(code string) ([]string, error) {
	if !g.Has(code) {
		return nil, &NotFoundError{Code: code}
	}
	return slices.Clone(g.dependents[code]), nil
}

// Roots returns the codes of competences with no required prerequisites,
// in topological order.
func (g *Graph) Roots() []string {
	var roots []string
	for _, code := range g.topoOrder {
		if len(g.required[code]) == 0 {
			roots = append(roots, code)
		}
	}
	return roots
}

// TopologicalOrder returns every code such that required prerequisites
// always precede their targets.
func (g *Graph) TopologicalOrder() []string {
	return slices.Clone(g.topoOrder)
}

// TopoIndex returns the position of code in TopologicalOrder, or -1.
func (g *Graph) TopoIndex(code string) int {
	i, ok := g.topoIndex[code]
	if !ok {
		return -1
	}
	return i
}

// Depth returns the length of the longest chain of required
// prerequisites leading to code. Roots have depth 0.
func (g *Graph) Depth(code string) int {
	return g.depth[code]
}

// RecommendedWeight returns the largest weight among recommended edges
// that target code, or 0 if there are none.
func (g *Graph) RecommendedWeight(code string) float64 {
	return g.recWeight[code]
}
