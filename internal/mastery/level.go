package mastery

import "fmt"

// Level is a competence's position in the mastery lifecycle.
type Level string

const (
	LevelNotStarted  Level = "not_started"
	LevelDiscovering Level = "discovering"
	LevelPracticing  Level = "practicing"
	LevelMastering   Level = "mastering"
	LevelMastered    Level = "mastered"
)

var levelOrder = []Level{
	LevelNotStarted,
	LevelDiscovering,
	LevelPracticing,
	LevelMastering,
	LevelMastered,
}

// ParseLevel converts a stored string into a Level.
func ParseLevel(s string) (Level, error) {
	for _, l := range levelOrder {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown mastery level %q", s)
}

// Rank returns the level's position, 0 for not_started through 4 for mastered.
func (l Level) Rank() int {
	for i, o := range levelOrder {
		if o == l {
			return i
		}
	}
	return 0
}

// Next returns the level after l. Mastered is terminal and returns itself.
func (l Level) Next() Level {
	r := l.Rank()
	if r >= len(levelOrder)-1 {
		return LevelMastered
	}
	return levelOrder[r+1]
}

// Prev returns the level before l, never going below discovering
// once a competence has been started.
func (l Level) Prev() Level {
	r := l.Rank()
	if r <= LevelDiscovering.Rank() {
		return l
	}
	return levelOrder[r-1]
}

// Transition triggers.
const (
	TriggerFirstAttempt        = "first-attempt"
	TriggerProgress            = "progress"
	TriggerConsecutiveFailures = "consecutive-failures"
)

// StateTransition records a mastery level change for display and event logging.
type StateTransition struct {
	StudentID      string
	CompetenceCode string
	From           Level
	To             Level
	Trigger        string
}

// Regressed reports whether the transition moved the competence backwards.
func (t *StateTransition) Regressed() bool {
	return t.To.Rank() < t.From.Rank()
}

// Mastered reports whether the transition reached the terminal level.
func (t *StateTransition) Mastered() bool {
	return t.To == LevelMastered && t.From != LevelMastered
}
