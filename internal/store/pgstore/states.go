package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yous2911/fastrevedkids-sub011/internal/mastery"
)

const stateColumns = `student_id, competence_code, level, progress_percent,
	total_attempts, successful_attempts, average_score, difficulty_multiplier,
	consecutive_successes, consecutive_failures, first_attempt_at, last_attempt_at,
	mastered_at, version`

// StateRepo implements mastery.StateRepo with optimistic versioning.
type StateRepo struct {
	q querier
}

var _ mastery.StateRepo = (*StateRepo)(nil)

func (r *StateRepo) Get(ctx context.Context, studentID, code string) (mastery.CompetenceState, bool, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+stateColumns+`
		 FROM competence_states
		 WHERE student_id = $1 AND competence_code = $2`,
		studentID, code,
	)
	s, err := scanState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return mastery.CompetenceState{}, false, nil
	}
	if err != nil {
		return mastery.CompetenceState{}, false, fmt.Errorf("query competence state: %w", err)
	}
	return s, true, nil
}

func (r *StateRepo) Put(ctx context.Context, s mastery.CompetenceState, expectedVersion int64) error {
	args := []any{
		s.StudentID, s.CompetenceCode, string(s.Level), s.ProgressPercent,
		s.TotalAttempts, s.SuccessfulAttempts, s.AverageScore, s.DifficultyMultiplier,
		s.ConsecutiveSuccesses, s.ConsecutiveFailures, s.FirstAttemptAt, s.LastAttemptAt,
		s.MasteredAt, s.Version,
	}

	var query string
	if expectedVersion == 0 {
		query = `INSERT INTO competence_states (` + stateColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (student_id, competence_code) DO NOTHING`
	} else {
		query = `UPDATE competence_states SET
				level = $3, progress_percent = $4, total_attempts = $5,
				successful_attempts = $6, average_score = $7, difficulty_multiplier = $8,
				consecutive_successes = $9, consecutive_failures = $10,
				first_attempt_at = $11, last_attempt_at = $12, mastered_at = $13, version = $14
			WHERE student_id = $1 AND competence_code = $2 AND version = $15`
		args = append(args, expectedVersion)
	}

	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save competence state: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	current, ok, err := r.Get(ctx, s.StudentID, s.CompetenceCode)
	if err != nil {
		return err
	}
	var actual int64
	if ok {
		actual = current.Version
	}
	return &mastery.ConflictError{
		StudentID:      s.StudentID,
		CompetenceCode: s.CompetenceCode,
		Expected:       expectedVersion,
		Actual:         actual,
	}
}

func (r *StateRepo) ListByStudent(ctx context.Context, studentID string) ([]mastery.CompetenceState, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+stateColumns+`
		 FROM competence_states
		 WHERE student_id = $1
		 ORDER BY competence_code`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query competence states: %w", err)
	}
	defer rows.Close()

	var result []mastery.CompetenceState
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan competence state: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func scanState(row pgx.Row) (mastery.CompetenceState, error) {
	var (
		s          mastery.CompetenceState
		level      string
		masteredAt *time.Time
	)
	err := row.Scan(
		&s.StudentID, &s.CompetenceCode, &level, &s.ProgressPercent,
		&s.TotalAttempts, &s.SuccessfulAttempts, &s.AverageScore, &s.DifficultyMultiplier,
		&s.ConsecutiveSuccesses, &s.ConsecutiveFailures, &s.FirstAttemptAt, &s.LastAttemptAt,
		&masteredAt, &s.Version,
	)
	if err != nil {
		return mastery.CompetenceState{}, err
	}
	s.Level = mastery.Level(level)
	s.MasteredAt = masteredAt
	return s, nil
}
