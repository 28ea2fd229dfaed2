package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/yous2911/fastrevedkids-sub011/internal/mastery"
)

var stateColumns = []string{
	"student_id", "competence_code", "level", "progress_percent",
	"total_attempts", "successful_attempts", "average_score", "difficulty_multiplier",
	"consecutive_successes", "consecutive_failures", "first_attempt_at", "last_attempt_at",
	"mastered_at", "version",
}

// StateRepo implements mastery.StateRepo with optimistic versioning: a
// write succeeds only while the stored version matches the caller's.
type StateRepo struct {
	db querier
}

var _ mastery.StateRepo = (*StateRepo)(nil)

func (r *StateRepo) Get(ctx context.Context, studentID, code string) (mastery.CompetenceState, bool, error) {
	sel := selectQuery(tableStates, stateColumns...).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.EQ("competence_code", code),
		))
	query, args := sel.Query()
	s, err := scanState(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return mastery.CompetenceState{}, false, nil
	}
	if err != nil {
		return mastery.CompetenceState{}, false, fmt.Errorf("query competence state: %w", err)
	}
	return s, true, nil
}

func (r *StateRepo) Put(ctx context.Context, s mastery.CompetenceState, expectedVersion int64) error {
	var b entsql.Querier
	if expectedVersion == 0 {
		b = insertQuery(tableStates).
			Columns(stateColumns...).
			Values(stateValues(s)...).
			OnConflict(entsql.DoNothing())
	} else {
		u := entsql.Dialect(dialect.SQLite).Update(tableStates)
		vals := stateValues(s)
		for i := 2; i < len(stateColumns); i++ {
			u.Set(stateColumns[i], vals[i])
		}
		b = u.Where(entsql.And(
			entsql.EQ("student_id", s.StudentID),
			entsql.EQ("competence_code", s.CompetenceCode),
			entsql.EQ("version", expectedVersion),
		))
	}

	query, args := b.Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save competence state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save competence state: %w", err)
	}
	if n == 1 {
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
	sel := selectQuery(tableStates, stateColumns...).
		Where(entsql.EQ("student_id", studentID)).
		OrderBy("competence_code")
	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
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

func stateValues(s mastery.CompetenceState) []any {
	var masteredAt any
	if s.MasteredAt != nil {
		masteredAt = utc(*s.MasteredAt)
	}
	return []any{
		s.StudentID, s.CompetenceCode, string(s.Level), s.ProgressPercent,
		s.TotalAttempts, s.SuccessfulAttempts, s.AverageScore, s.DifficultyMultiplier,
		s.ConsecutiveSuccesses, s.ConsecutiveFailures, utc(s.FirstAttemptAt), utc(s.LastAttemptAt),
		masteredAt, s.Version,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanState(row rowScanner) (mastery.CompetenceState, error) {
	var (
		s          mastery.CompetenceState
		level      string
		masteredAt sql.NullTime
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
	if masteredAt.Valid {
		t := masteredAt.Time
		s.MasteredAt = &t
	}
	return s, nil
}
