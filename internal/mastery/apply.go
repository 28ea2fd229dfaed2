package mastery

import "math"

// ApplyEvaluation folds one evaluation into a competence state and returns
// the new state together with the level transition it caused, if any.
// It is a pure function: the input state is not modified.
//
// An unvalidated evaluation leaves the state untouched.
func ApplyEvaluation(state CompetenceState, ev AttemptEvaluation, passThreshold float64, rules LevelRules) (CompetenceState, *StateTransition) {
	if !ev.Validated {
		return state, nil
	}

	next := state
	if next.Level == "" {
		next.Level = LevelNotStarted
	}
	if next.DifficultyMultiplier == 0 {
		next.DifficultyMultiplier = 1.0
	}
	from := next.Level
	passed := ev.Composite >= passThreshold

	// Counters.
	next.TotalAttempts++
	if passed {
		next.SuccessfulAttempts++
	}
	next.AverageScore += (ev.Composite - next.AverageScore) / float64(next.TotalAttempts)

	if passed {
		next.ConsecutiveFailures = 0
		next.ConsecutiveSuccesses++
	} else {
		next.ConsecutiveSuccesses = 0
		next.ConsecutiveFailures++
	}

	next.DifficultyMultiplier = adjustDifficulty(next, passed, rules)

	// Timestamps.
	if next.FirstAttemptAt.IsZero() {
		next.FirstAttemptAt = ev.EvaluatedAt
	}
	next.LastAttemptAt = ev.EvaluatedAt

	// Level machine: at most one step per evaluation.
	trigger := ""
	switch {
	case next.Level == LevelNotStarted:
		next.Level = LevelDiscovering
		trigger = TriggerFirstAttempt
		next.ProgressPercent = progressFor(next, rules)

	case passed:
		next.ProgressPercent = progressFor(next, rules)
		if canAdvance(next, rules) {
			next.Level = next.Level.Next()
			trigger = TriggerProgress
		}

	case shouldRegress(next, rules):
		next.Level = next.Level.Prev()
		trigger = TriggerConsecutiveFailures
	}

	next.Version = state.Version + 1

	if trigger == "" || next.Level == from {
		return next, nil
	}
	if next.Level == LevelMastered && next.MasteredAt == nil {
		at := ev.EvaluatedAt
		next.MasteredAt = &at
	}
	return next, &StateTransition{
		StudentID:      next.StudentID,
		CompetenceCode: next.CompetenceCode,
		From:           from,
		To:             next.Level,
		Trigger:        trigger,
	}
}

// progressFor computes progress towards the level being approached.
// Progress never decreases, even when the next target asks for more
// successes than the previous one did.
func progressFor(s CompetenceState, rules LevelRules) int {
	required := rules.Target(s.Level.Next()).RequiredSuccesses
	if required <= 0 {
		return s.ProgressPercent
	}
	p := int(math.Round(float64(s.SuccessfulAttempts) / float64(required) * 100))
	p = min(p, 100)
	return max(p, s.ProgressPercent)
}

func canAdvance(s CompetenceState, rules LevelRules) bool {
	if s.Level == LevelMastered {
		return false
	}
	t := rules.Target(s.Level.Next())
	return s.ProgressPercent >= t.MinProgress && s.ConsecutiveSuccesses >= t.MinConsecutiveSuccesses
}

// shouldRegress applies the forgetting rule: practicing and mastering drop
// one level each time the failure streak reaches a multiple of the limit.
func shouldRegress(s CompetenceState, rules LevelRules) bool {
	if s.Level != LevelPracticing && s.Level != LevelMastering {
		return false
	}
	return s.ConsecutiveFailures > 0 && s.ConsecutiveFailures%rules.RegressAfterFailures == 0
}

func adjustDifficulty(s CompetenceState, passed bool, rules LevelRules) float64 {
	m := s.DifficultyMultiplier
	switch {
	case passed && s.ConsecutiveSuccesses%rules.DifficultyUpAfter == 0:
		m = min(m+rules.DifficultyUpStep, rules.DifficultyMax)
	case !passed && s.ConsecutiveFailures%rules.DifficultyDownAfter == 0:
		m = max(m-rules.DifficultyDownStep, rules.DifficultyMin)
	}
	return math.Round(m*100) / 100
}
