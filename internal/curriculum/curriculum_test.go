package curriculum

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/yous2911/fastrevedkids-sub011/internal/competence"
)

func TestSeedBuilds(t *testing.T) {
	f, err := Seed()
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	g, err := f.Graph()
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if got := len(g.Nodes()); got != len(f.Competences) {
		t.Errorf("nodes = %d, want %d", got, len(f.Competences))
	}

	roots := g.Roots()
	for _, want := range []string{"CP.MA.N1.1", "CP.FR.G1.1", "CP.FR.L1.1", "CP.MA.G1.1"} {
		if !slices.Contains(roots, want) {
			t.Errorf("roots %v missing %s", roots, want)
		}
	}

	prereqs, err := g.Prerequisites("CE1.MA.C2.1")
	if err != nil {
		t.Fatal(err)
	}
	if len(prereqs) != 2 {
		t.Errorf("CE1.MA.C2.1 prerequisites = %d, want 2", len(prereqs))
	}
}

func TestParseDefaults(t *testing.T) {
	f, err := Parse([]byte(`
version: "1"
competences:
  - code: CP.MA.N1.1
    title: a
  - code: CP.MA.N1.2
    title: b
    prerequisites:
      - code: CP.MA.N1.1
      - code: CP.MA.N1.1
        kind: helpful
      - code: CP.MA.N1.1
        kind: recommended
        threshold: 0
        weight: 3
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	edges := f.Edges()
	want := []competence.Edge{
		{Target: "CP.MA.N1.2", Source: "CP.MA.N1.1", Kind: competence.EdgeRequired, Threshold: DefaultThreshold, Weight: DefaultWeight},
		{Target: "CP.MA.N1.2", Source: "CP.MA.N1.1", Kind: competence.EdgeHelpful, Threshold: 0, Weight: DefaultWeight},
		{Target: "CP.MA.N1.2", Source: "CP.MA.N1.1", Kind: competence.EdgeRecommended, Threshold: 0, Weight: 3},
	}
	if !slices.Equal(edges, want) {
		t.Errorf("edges = %+v\nwant %+v", edges, want)
	}
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing version", `competences: [{code: CP.MA.N1.1, title: a}]`},
		{"no competences", `version: "1"
competences: []`},
		{"bad code", `version: "1"
competences: [{code: cp-ma, title: a}]`},
		{"missing title", `version: "1"
competences: [{code: CP.MA.N1.1}]`},
		{"unknown field", `version: "1"
competences: [{code: CP.MA.N1.1, title: a, colour: red}]`},
		{"bad kind", `version: "1"
competences: [{code: CP.MA.N1.1, title: a, prerequisites: [{code: CP.MA.N1.2, kind: optional}]}]`},
		{"threshold too high", `version: "1"
competences: [{code: CP.MA.N1.1, title: a, prerequisites: [{code: CP.MA.N1.2, threshold: 120}]}]`},
		{"fractional threshold", `version: "1"
competences: [{code: CP.MA.N1.1, title: a, prerequisites: [{code: CP.MA.N1.2, threshold: 50.5}]}]`},
		{"zero weight", `version: "1"
competences: [{code: CP.MA.N1.1, title: a, prerequisites: [{code: CP.MA.N1.2, weight: 0}]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			var se *SchemaError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want *SchemaError", err)
			}
		})
	}
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse([]byte("version: [unclosed"))
	if err == nil {
		t.Fatal("expected error")
	}
	var se *SchemaError
	if errors.As(err, &se) {
		t.Errorf("syntax error reported as schema error: %v", err)
	}

	if _, err := Parse(nil); err == nil {
		t.Error("empty document accepted")
	}
}

func TestGraphReportsStructuralProblems(t *testing.T) {
	f, err := Parse([]byte(`
version: "1"
competences:
  - code: CP.MA.N1.1
    title: a
    prerequisites: [{code: CP.MA.N1.2}]
  - code: CP.MA.N1.2
    title: b
    prerequisites: [{code: CP.MA.N1.1}]
  - code: CP.MA.N1.3
    title: c
    prerequisites: [{code: CP.MA.N9.9}]
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = f.Graph()
	var cfgErr *competence.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want *competence.ConfigError", err)
	}
	if len(cfgErr.Problems) == 0 {
		t.Error("no problems reported")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curriculum.yaml")
	if err := os.WriteFile(path, seedYAML, 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Version != "2025.1" {
		t.Errorf("version = %q", f.Version)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file err = %v, want os.ErrNotExist", err)
	}
}

func TestSummarize(t *testing.T) {
	f, err := Seed()
	if err != nil {
		t.Fatal(err)
	}
	s := f.Summarize()
	if s.Competences != 17 {
		t.Errorf("competences = %d, want 17", s.Competences)
	}
	if !slices.Equal(s.Levels, []string{"CE1", "CP"}) {
		t.Errorf("levels = %v", s.Levels)
	}
	if !slices.Equal(s.Subjects, []string{"FR", "MA"}) {
		t.Errorf("subjects = %v", s.Subjects)
	}
	if s.Edges[competence.EdgeHelpful] != 2 || s.Edges[competence.EdgeRecommended] != 3 {
		t.Errorf("edges = %v", s.Edges)
	}
}
