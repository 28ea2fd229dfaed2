package mastery

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// DefaultFamily is the profile used when an attempt names no family or
// an unknown one.
const DefaultFamily = "default"

// Weights are the composite weights of the five trace axes. They must sum to 1.
type Weights struct {
	Precision   float64 `yaml:"precision"`
	Speed       float64 `yaml:"speed"`
	Fluidity    float64 `yaml:"fluidity"`
	Inclination float64 `yaml:"inclination"`
	Pressure    float64 `yaml:"pressure"`
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Precision + w.Speed + w.Fluidity + w.Inclination + w.Pressure
}

// PrecisionBucket maps a point-to-path distance band onto a score factor.
type PrecisionBucket struct {
	Below  float64 `yaml:"below"` // distance in px, exclusive
	Factor float64 `yaml:"factor"`
}

// ScoringProfile holds every scoring constant for one exercise family.
type ScoringProfile struct {
	Family          string  `yaml:"family"`
	Version         string  `yaml:"version"`
	PassThreshold   float64 `yaml:"pass_threshold"`
	Weights         Weights `yaml:"weights"`
	MinTraceSamples int     `yaml:"min_trace_samples"`

	PrecisionBuckets    []PrecisionBucket `yaml:"precision_buckets"`
	TargetSeconds       float64           `yaml:"target_seconds"`
	SpeedDecayPerSecond float64           `yaml:"speed_decay_per_second"`
	FluidityPenalty     float64           `yaml:"fluidity_penalty"`
	TargetAngleDeg      float64           `yaml:"target_angle_deg"`
	InclinationPenalty  float64           `yaml:"inclination_penalty"`
	IdealPressure       float64           `yaml:"ideal_pressure"`
	PressureBlend       float64           `yaml:"pressure_blend"`
}

// DefaultProfile returns the standard scoring profile.
func DefaultProfile() ScoringProfile {
	return ScoringProfile{
		Family:          DefaultFamily,
		Version:         "v1",
		PassThreshold:   70,
		Weights:         Weights{Precision: 0.35, Speed: 0.20, Fluidity: 0.25, Inclination: 0.15, Pressure: 0.05},
		MinTraceSamples: 5,
		PrecisionBuckets: []PrecisionBucket{
			{Below: 15, Factor: 1.0},
			{Below: 25, Factor: 0.7},
			{Below: 35, Factor: 0.4},
		},
		TargetSeconds:       10,
		SpeedDecayPerSecond: 20,
		FluidityPenalty:     0.5,
		TargetAngleDeg:      0,
		InclinationPenalty:  4,
		IdealPressure:       0.5,
		PressureBlend:       0.6,
	}
}

const weightTolerance = 1e-6

// Validate checks the profile for internally consistent constants.
func (p ScoringProfile) Validate() error {
	var errs []error
	if p.Family == "" {
		errs = append(errs, errors.New("family is required"))
	}
	// Versions are recorded on every evaluation and compared when
	// profiles are rolled out, so they must order as semantic versions.
	if !semver.IsValid(p.Version) {
		errs = append(errs, fmt.Errorf("version must be a semantic version such as v1 or v1.2.0, got %q", p.Version))
	}
	if sum := p.Weights.Sum(); math.Abs(sum-1.0) > weightTolerance {
		errs = append(errs, fmt.Errorf("weights must sum to 1.0, got %g", sum))
	}
	for name, w := range map[string]float64{
		"precision": p.Weights.Precision, "speed": p.Weights.Speed, "fluidity": p.Weights.Fluidity,
		"inclination": p.Weights.Inclination, "pressure": p.Weights.Pressure,
	} {
		if w < 0 {
			errs = append(errs, fmt.Errorf("weight %s must be >= 0, got %g", name, w))
		}
	}
	if p.PassThreshold < 0 || p.PassThreshold > 100 {
		errs = append(errs, fmt.Errorf("pass_threshold must be in [0, 100], got %g", p.PassThreshold))
	}
	if p.MinTraceSamples < 2 {
		errs = append(errs, fmt.Errorf("min_trace_samples must be >= 2, got %d", p.MinTraceSamples))
	}
	if len(p.PrecisionBuckets) == 0 {
		errs = append(errs, errors.New("at least one precision bucket is required"))
	}
	if !sort.SliceIsSorted(p.PrecisionBuckets, func(i, j int) bool {
		return p.PrecisionBuckets[i].Below < p.PrecisionBuckets[j].Below
	}) {
		errs = append(errs, errors.New("precision buckets must be sorted by distance"))
	}
	if p.TargetSeconds <= 0 {
		errs = append(errs, fmt.Errorf("target_seconds must be > 0, got %g", p.TargetSeconds))
	}
	if p.IdealPressure < 0 || p.IdealPressure > 1 {
		errs = append(errs, fmt.Errorf("ideal_pressure must be in [0, 1], got %g", p.IdealPressure))
	}
	if p.PressureBlend < 0 || p.PressureBlend > 1 {
		errs = append(errs, fmt.Errorf("pressure_blend must be in [0, 1], got %g", p.PressureBlend))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("scoring profile %q: %w", p.Family, err)
	}
	return nil
}

// ProfileSet resolves the scoring profile for an exercise family.
type ProfileSet struct {
	profiles map[string]ScoringProfile
}

// NewProfileSet validates and indexes the given profiles. A default profile
// is added when none of them is named DefaultFamily.
func NewProfileSet(profiles ...ScoringProfile) (*ProfileSet, error) {
	s := &ProfileSet{profiles: make(map[string]ScoringProfile, len(profiles)+1)}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.profiles[p.Family]; dup {
			return nil, fmt.Errorf("duplicate scoring profile %q", p.Family)
		}
		s.profiles[p.Family] = p
	}
	if _, ok := s.profiles[DefaultFamily]; !ok {
		s.profiles[DefaultFamily] = DefaultProfile()
	}
	return s, nil
}

// For returns the profile for family, falling back to the default profile.
func (s *ProfileSet) For(family string) ScoringProfile {
	if p, ok := s.profiles[family]; ok {
		return p
	}
	return s.profiles[DefaultFamily]
}

// Families returns the registered family names, sorted.
func (s *ProfileSet) Families() []string {
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ScoringConfig is the on-disk form of the evaluator configuration.
type ScoringConfig struct {
	Rules    LevelRules       `yaml:"level_rules"`
	Profiles []ScoringProfile `yaml:"profiles"`
}

// LoadScoringConfig reads a YAML scoring file. Profiles inherit every
// constant they leave unset from DefaultProfile, and level rules from
// DefaultLevelRules.
func LoadScoringConfig(path string) (*ScoringConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scoring config: %w", err)
	}
	return ParseScoringConfig(data)
}

// ParseScoringConfig decodes YAML scoring configuration.
func ParseScoringConfig(data []byte) (*ScoringConfig, error) {
	var raw struct {
		Rules    yaml.Node   `yaml:"level_rules"`
		Profiles []yaml.Node `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse scoring config: %w", err)
	}

	cfg := &ScoringConfig{Rules: DefaultLevelRules()}
	if !raw.Rules.IsZero() {
		if err := raw.Rules.Decode(&cfg.Rules); err != nil {
			return nil, fmt.Errorf("decode level_rules: %w", err)
		}
	}
	if err := cfg.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("level_rules: %w", err)
	}

	for i := range raw.Profiles {
		// Decoding over the defaults keeps unset keys at their default value.
		p := DefaultProfile()
		p.Family = ""
		if err := raw.Profiles[i].Decode(&p); err != nil {
			return nil, fmt.Errorf("decode profile %d: %w", i, err)
		}
		cfg.Profiles = append(cfg.Profiles, p)
	}
	return cfg, nil
}
