package mastery

import "time"

// CompetenceState holds everything the engine knows about one student's
// work on one competence. It is created on the first attempt and only
// ever replaced by ApplyEvaluation; each replacement bumps Version.
type CompetenceState struct {
	StudentID            string     `json:"student_id"`
	CompetenceCode       string     `json:"competence_code"`
	Level                Level      `json:"level"`
	ProgressPercent      int        `json:"progress_percent"`
	TotalAttempts        int        `json:"total_attempts"`
	SuccessfulAttempts   int        `json:"successful_attempts"`
	AverageScore         float64    `json:"average_score"`
	DifficultyMultiplier float64    `json:"difficulty_multiplier"`
	ConsecutiveSuccesses int        `json:"consecutive_successes"`
	ConsecutiveFailures  int        `json:"consecutive_failures"`
	FirstAttemptAt       time.Time  `json:"first_attempt_at"`
	LastAttemptAt        time.Time  `json:"last_attempt_at"`
	MasteredAt           *time.Time `json:"mastered_at,omitempty"`
	Version              int64      `json:"version"`
}

// NewState returns the state of a competence the student has never attempted.
func NewState(studentID, code string) CompetenceState {
	return CompetenceState{
		StudentID:            studentID,
		CompetenceCode:       code,
		Level:                LevelNotStarted,
		DifficultyMultiplier: 1.0,
	}
}

// SuccessRate returns successful over total attempts.
func (s *CompetenceState) SuccessRate() float64 {
	if s.TotalAttempts == 0 {
		return 0.0
	}
	return float64(s.SuccessfulAttempts) / float64(s.TotalAttempts)
}

// IsMastered reports whether the competence reached the terminal level.
func (s *CompetenceState) IsMastered() bool {
	return s.Level == LevelMastered
}
