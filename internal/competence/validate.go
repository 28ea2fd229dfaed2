package competence

import (
	"fmt"
	"slices"
	"strings"
)

// validate performs all structural checks on a node and edge set.
// Returns a *ConfigError describing every problem found, or nil if valid.
func validate(nodes []Node, edges []Edge) *ConfigError {
	var errs []string

	codes := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.Code == "" {
			errs = append(errs, "competence with empty code")
			continue
		}
		if codes[n.Code] {
			errs = append(errs, fmt.Sprintf("duplicate competence code: %q", n.Code))
		}
		codes[n.Code] = true
	}

	for _, e := range edges {
		prefix := fmt.Sprintf("edge %s -> %s", e.Source, e.Target)
		if !codes[e.Source] {
			errs = append(errs, fmt.Sprintf("%s: unknown source competence %q", prefix, e.Source))
		}
		if !codes[e.Target] {
			errs = append(errs, fmt.Sprintf("%s: unknown target competence %q", prefix, e.Target))
		}
		if e.Source == e.Target {
			errs = append(errs, fmt.Sprintf("%s: competence cannot depend on itself", prefix))
		}
		if _, err := ParseEdgeKind(string(e.Kind)); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", prefix, err))
		}
		if e.Threshold < 0 || e.Threshold > 100 {
			errs = append(errs, fmt.Sprintf("%s: threshold must be in [0, 100], got %d", prefix, e.Threshold))
		}
		if e.Weight <= 0 {
			errs = append(errs, fmt.Sprintf("%s: weight must be > 0, got %g", prefix, e.Weight))
		}
	}

	// Cycle detection only makes sense once every edge resolves.
	if len(errs) > 0 {
		return &ConfigError{Problems: errs}
	}

	if cycle := findRequiredCycle(nodes, edges); cycle != nil {
		return &ConfigError{
			Problems: []string{fmt.Sprintf("cycle in required prerequisites: %s", strings.Join(cycle, " -> "))},
			Cycle:    cycle,
		}
	}
	return nil
}

// findRequiredCycle runs Kahn's algorithm over the required-edge subgraph.
// If some nodes are never released, it walks back through unreleased
// prerequisites until a code repeats and returns that cycle in
// prerequisite order, closed on its first code. Returns nil for a DAG.
func findRequiredCycle(nodes []Node, edges []Edge) []string {
	inDegree := make(map[string]int, len(nodes))
	adjList := make(map[string][]string)
	prereqs := make(map[string][]string)
	for _, n := range nodes {
		inDegree[n.Code] = 0
	}
	for _, e := range edges {
		if !e.Blocks() {
			continue
		}
		inDegree[e.Target]++
		adjList[e.Source] = append(adjList[e.Source], e.Target)
		prereqs[e.Target] = append(prereqs[e.Target], e.Source)
	}

	var queue []string
	for _, n := range nodes {
		if inDegree[n.Code] == 0 {
			queue = append(queue, n.Code)
		}
	}

	visited := 0
	for len(queue) > 0 {
		code := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range adjList[code] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if visited == len(nodes) {
		return nil
	}

	var remaining []string
	for _, n := range nodes {
		if inDegree[n.Code] > 0 {
			remaining = append(remaining, n.Code)
		}
	}
	slices.Sort(remaining)

	// Every unreleased node has at least one unreleased prerequisite,
	// so walking backwards must eventually revisit a code.
	seenAt := make(map[string]int)
	var walk []string
	cur := remaining[0]
	for {
		if at, ok := seenAt[cur]; ok {
			cycle := slices.Clone(walk[at:])
			slices.Reverse(cycle)
			return append(cycle, cycle[0])
		}
		seenAt[cur] = len(walk)
		walk = append(walk, cur)

		candidates := slices.Clone(prereqs[cur])
		slices.Sort(candidates)
		next := ""
		for _, p := range candidates {
			if inDegree[p] > 0 {
				next = p
				break
			}
		}
		if next == "" {
			// Unreachable for a well-formed Kahn residue.
			return remaining
		}
		cur = next
	}
}
