package mastery

import (
	"errors"
	"fmt"
)

// LevelTarget configures what it takes to reach a level.
type LevelTarget struct {
	// MinProgress is the progress percent needed to advance into the level.
	MinProgress int `yaml:"min_progress"`
	// RequiredSuccesses is the number of successful attempts that counts
	// as 100% progress while this level is the one being approached.
	RequiredSuccesses int `yaml:"required_successes"`
	// MinConsecutiveSuccesses is an extra streak requirement (0 = none).
	MinConsecutiveSuccesses int `yaml:"min_consecutive_successes"`
}

// LevelRules is the versioned configuration of the mastery state machine
// and the adaptive difficulty multiplier.
type LevelRules struct {
	Version    string      `yaml:"version"`
	Practicing LevelTarget `yaml:"practicing"`
	Mastering  LevelTarget `yaml:"mastering"`
	Mastered   LevelTarget `yaml:"mastered"`

	// RegressAfterFailures drops practicing/mastering one level each time
	// the consecutive failure count reaches a multiple of this value.
	RegressAfterFailures int `yaml:"regress_after_failures"`

	DifficultyMin       float64 `yaml:"difficulty_min"`
	DifficultyMax       float64 `yaml:"difficulty_max"`
	DifficultyUpStep    float64 `yaml:"difficulty_up_step"`
	DifficultyUpAfter   int     `yaml:"difficulty_up_after"`
	DifficultyDownStep  float64 `yaml:"difficulty_down_step"`
	DifficultyDownAfter int     `yaml:"difficulty_down_after"`
}

// DefaultLevelRules returns the standard progression.
func DefaultLevelRules() LevelRules {
	return LevelRules{
		Version:              "v1",
		Practicing:           LevelTarget{MinProgress: 40, RequiredSuccesses: 8},
		Mastering:            LevelTarget{MinProgress: 70, RequiredSuccesses: 10},
		Mastered:             LevelTarget{MinProgress: 90, RequiredSuccesses: 12, MinConsecutiveSuccesses: 3},
		RegressAfterFailures: 2,
		DifficultyMin:        0.5,
		DifficultyMax:        2.0,
		DifficultyUpStep:     0.1,
		DifficultyUpAfter:    3,
		DifficultyDownStep:   0.15,
		DifficultyDownAfter:  2,
	}
}

// Target returns the configuration for advancing into level l.
// Discovering and not_started have no target and share practicing's
// success requirement for progress computation.
func (r LevelRules) Target(l Level) LevelTarget {
	switch l {
	case LevelMastering:
		return r.Mastering
	case LevelMastered:
		return r.Mastered
	default:
		return r.Practicing
	}
}

// Validate checks that the rules describe a usable progression.
func (r LevelRules) Validate() error {
	var errs []error
	targets := []struct {
		level Level
		t     LevelTarget
	}{
		{LevelPracticing, r.Practicing},
		{LevelMastering, r.Mastering},
		{LevelMastered, r.Mastered},
	}
	prev := 0
	for _, tt := range targets {
		if tt.t.RequiredSuccesses <= 0 {
			errs = append(errs, fmt.Errorf("%s: required_successes must be > 0, got %d", tt.level, tt.t.RequiredSuccesses))
		}
		if tt.t.MinProgress <= prev || tt.t.MinProgress > 100 {
			errs = append(errs, fmt.Errorf("%s: min_progress must be in (%d, 100], got %d", tt.level, prev, tt.t.MinProgress))
		}
		prev = tt.t.MinProgress
	}
	if r.RegressAfterFailures <= 0 {
		errs = append(errs, fmt.Errorf("regress_after_failures must be > 0, got %d", r.RegressAfterFailures))
	}
	if r.DifficultyMin <= 0 || r.DifficultyMin > 1 || r.DifficultyMax < 1 {
		errs = append(errs, fmt.Errorf("difficulty bounds must satisfy 0 < min <= 1 <= max, got [%g, %g]", r.DifficultyMin, r.DifficultyMax))
	}
	if r.DifficultyUpAfter <= 0 || r.DifficultyDownAfter <= 0 {
		errs = append(errs, errors.New("difficulty_up_after and difficulty_down_after must be > 0"))
	}
	return errors.Join(errs...)
}
