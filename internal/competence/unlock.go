package competence

import "sort"

// IsUnlocked reports whether every required prerequisite of code has
// reached its threshold for the student described by progress.
// Recommended and helpful edges never block.
func (g *Graph) IsUnlocked(progress ProgressLookup, code string) (bool, error) {
	if !g.Has(code) {
		return false, &NotFoundError{Code: code}
	}
	for _, e := range g.required[code] {
		if progress(e.Source) < e.Threshold {
			return false, nil
		}
	}
	return true, nil
}

// BlockingReasons returns the sorted codes of required prerequisites of
// code whose threshold is not yet met. An empty result means unlocked.
// Multiple required edges are independently necessary.
func (g *Graph) BlockingReasons(progress ProgressLookup, code string) ([]string, error) {
	if !g.Has(code) {
		return nil, &NotFoundError{Code: code}
	}
	var blocking []string
	for _, e := range g.required[code] {
		if progress(e.Source) < e.Threshold {
			blocking = append(blocking, e.Source)
		}
	}
	sort.Strings(blocking)
	return blocking, nil
}

// Unlocked returns every unlocked code in topological order.
func (g *Graph) Unlocked(progress ProgressLookup) []string {
	var result []string
	for _, code := range g.topoOrder {
		if ok, _ := g.IsUnlocked(progress, code); ok {
			result = append(result, code)
		}
	}
	return result
}
