package competence

import "fmt"

// EdgeKind classifies a prerequisite edge.
type EdgeKind string

const (
	EdgeRequired    EdgeKind = "required"    // Source must reach the threshold before the target unlocks
	EdgeRecommended EdgeKind = "recommended" // Ordering hint; never blocks
	EdgeHelpful     EdgeKind = "helpful"     // Weak hint; never blocks
)

// ParseEdgeKind converts a string into an EdgeKind.
func ParseEdgeKind(s string) (EdgeKind, error) {
	switch EdgeKind(s) {
	case EdgeRequired, EdgeRecommended, EdgeHelpful:
		return EdgeKind(s), nil
	default:
		return "", fmt.Errorf("unknown edge kind %q", s)
	}
}

// Node is a single curriculum competence, identified by a stable code
// such as "CP.MA.N1.4".
type Node struct {
	Code    string
	Title   string
	Level   string // School level tag, e.g. "CP", "CE1"
	Subject string // e.g. "MA" (mathematics), "FR" (french)
	Domain  string // e.g. "N1" (numbers), "GR" (graphism)
}

// Edge is a directed prerequisite edge: Source should be worked on before Target.
type Edge struct {
	Target    string
	Source    string
	Kind      EdgeKind
	Threshold int     // Minimum source progress percent for a required edge (0-100)
	Weight    float64 // Ordering weight for recommended/helpful edges (> 0)
}

// Blocks reports whether the edge can keep its target locked.
func (e Edge) Blocks() bool {
	return e.Kind == EdgeRequired
}

// ProgressLookup returns a student's progress percent on a competence.
// Competences the student has never attempted report 0.
type ProgressLookup func(code string) int

// ProgressMap adapts a map of code to progress percent into a ProgressLookup.
func ProgressMap(m map[string]int) ProgressLookup {
	return func(code string) int {
		return m[code]
	}
}
