// Package curriculum loads competence graphs from YAML curriculum files.
//
// A file lists competences, each with its prerequisite edges:
//
//	version: "2025.1"
//	competences:
//	  - code: CP.MA.N1.2
//	    title: Lire et écrire les nombres jusqu'à 20
//	    prerequisites:
//	      - code: CP.MA.N1.1
//	        threshold: 80
//
// Files are checked against an embedded JSON schema before the graph is
// built, so shape errors are reported with their location in the file.
package curriculum

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/yous2911/fastrevedkids-sub011/internal/competence"
)

// DefaultThreshold applies to required prerequisites that set none.
const DefaultThreshold = 80

// DefaultWeight applies to prerequisites that set none.
const DefaultWeight = 1.0

//go:embed seed.yaml
var seedYAML []byte

// File is a decoded curriculum file.
type File struct {
	Version     string       `yaml:"version" json:"version"`
	Competences []Competence `yaml:"competences" json:"competences"`
}

// Competence is one competence and the edges pointing at it.
type Competence struct {
	Code          string         `yaml:"code" json:"code"`
	Title         string         `yaml:"title" json:"title"`
	Level         string         `yaml:"level,omitempty" json:"level,omitempty"`
	Subject       string         `yaml:"subject,omitempty" json:"subject,omitempty"`
	Domain        string         `yaml:"domain,omitempty" json:"domain,omitempty"`
	Prerequisites []Prerequisite `yaml:"prerequisites,omitempty" json:"prerequisites,omitempty"`
}

// Prerequisite is an edge from Code to the enclosing competence.
// Kind defaults to required.
type Prerequisite struct {
	Code      string   `yaml:"code" json:"code"`
	Kind      string   `yaml:"kind,omitempty" json:"kind,omitempty"`
	Threshold *int     `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Weight    *float64 `yaml:"weight,omitempty" json:"weight,omitempty"`
}

// Seed returns the built-in CP/CE1 curriculum.
func Seed() (*File, error) {
	f, err := Parse(seedYAML)
	if err != nil {
		return nil, fmt.Errorf("seed curriculum: %w", err)
	}
	return f, nil
}

// Load reads and validates the curriculum file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read curriculum: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes data and checks it against the curriculum schema.
func Parse(data []byte) (*File, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse curriculum: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("parse curriculum: empty document")
	}
	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode curriculum: %w", err)
	}
	return &f, nil
}

// Nodes returns the file's competences as graph nodes, in file order.
func (f *File) Nodes() []competence.Node {
	nodes := make([]competence.Node, 0, len(f.Competences))
	for _, c := range f.Competences {
		nodes = append(nodes, competence.Node{
			Code:    c.Code,
			Title:   c.Title,
			Level:   c.Level,
			Subject: c.Subject,
			Domain:  c.Domain,
		})
	}
	return nodes
}

// Edges returns every prerequisite as a graph edge with defaults filled in.
func (f *File) Edges() []competence.Edge {
	var edges []competence.Edge
	for _, c := range f.Competences {
		for _, p := range c.Prerequisites {
			e := competence.Edge{
				Target: c.Code,
				Source: p.Code,
				Kind:   competence.EdgeKind(p.Kind),
			}
			if e.Kind == "" {
				e.Kind = competence.EdgeRequired
			}
			switch {
			case p.Threshold != nil:
				e.Threshold = *p.Threshold
			case e.Kind == competence.EdgeRequired:
				e.Threshold = DefaultThreshold
			}
			e.Weight = DefaultWeight
			if p.Weight != nil {
				e.Weight = *p.Weight
			}
			edges = append(edges, e)
		}
	}
	return edges
}

// Graph builds the competence graph. Structural problems such as unknown
// codes or required cycles come back as a *competence.ConfigError.
func (f *File) Graph() (*competence.Graph, error) {
	return competence.Build(f.Nodes(), f.Edges())
}

// Summary counts a file's contents for display.
type Summary struct {
	Version     string
	Competences int
	Edges       map[competence.EdgeKind]int
	Levels      []string
	Subjects    []string
}

// Summarize counts competences, edges by kind, levels and subjects.
func (f *File) Summarize() Summary {
	s := Summary{
		Version:     f.Version,
		Competences: len(f.Competences),
		Edges:       make(map[competence.EdgeKind]int),
	}
	levels := map[string]bool{}
	subjects := map[string]bool{}
	for _, e := range f.Edges() {
		s.Edges[e.Kind]++
	}
	for _, c := range f.Competences {
		if c.Level != "" {
			levels[c.Level] = true
		}
		if c.Subject != "" {
			subjects[c.Subject] = true
		}
	}
	s.Levels = sortedKeys(levels)
	s.Subjects = sortedKeys(subjects)
	return s
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// toJSONValue converts a YAML-decoded value into the shape encoding/json
// produces, which is what the schema validator expects.
func toJSONValue(doc any) (any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert curriculum: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("convert curriculum: %w", err)
	}
	return v, nil
}
