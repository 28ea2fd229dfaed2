package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/yous2911/fastrevedkids-sub011/internal/mastery"
	"github.com/yous2911/fastrevedkids-sub011/internal/store"
)

// EventRepo is the append-only event log. Attempt and mastery events draw
// their sequence numbers from one shared database sequence.
type EventRepo struct {
	q   querier
	now func() time.Time
}

// AppendAttempt records an evaluated attempt.
func (r *EventRepo) AppendAttempt(ctx context.Context, a mastery.AttemptResult, ev mastery.AttemptEvaluation) error {
	axes := ev.Axes
	if axes == nil {
		axes = map[mastery.Axis]float64{}
	}
	axesJSON, err := json.Marshal(axes)
	if err != nil {
		return fmt.Errorf("marshal axes: %w", err)
	}

	_, err = r.q.Exec(ctx,
		`INSERT INTO attempt_events
		 (timestamp, evaluation_id, student_id, competence_code, exercise_id, exercise_family,
		  validated, passed, composite, reason, profile, profile_version, axes,
		  time_spent_seconds, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		r.now(), ev.ID, a.StudentID, a.CompetenceCode, a.ExerciseID, a.ExerciseFamily,
		ev.Validated, ev.Passed, ev.Composite, ev.Reason, ev.Profile, ev.ProfileVersion, axesJSON,
		a.TimeSpentSeconds, a.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("save attempt event: %w", err)
	}
	return nil
}

// AppendTransition records a mastery level change.
func (r *EventRepo) AppendTransition(ctx context.Context, t mastery.StateTransition, ev mastery.AttemptEvaluation) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO mastery_events
		 (timestamp, student_id, competence_code, from_level, to_level, transition_trigger, evaluation_id, composite)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.now(), t.StudentID, t.CompetenceCode, string(t.From), string(t.To), t.Trigger, ev.ID, ev.Composite,
	)
	if err != nil {
		return fmt.Errorf("save mastery event: %w", err)
	}
	return nil
}

// AttemptEvents returns a student's attempt events, optionally narrowed
// to one competence, oldest first.
func (r *EventRepo) AttemptEvents(ctx context.Context, studentID, code string, opts store.QueryOpts) ([]store.AttemptEvent, error) {
	query, args := eventQuery(`SELECT sequence, timestamp, evaluation_id, student_id, competence_code,
			exercise_id, exercise_family, validated, passed, composite, reason,
			profile, profile_version, axes, time_spent_seconds, submitted_at
		 FROM attempt_events`, studentID, code, opts)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempt events: %w", err)
	}
	defer rows.Close()

	var result []store.AttemptEvent
	for rows.Next() {
		var (
			e    store.AttemptEvent
			axes []byte
		)
		if err := rows.Scan(
			&e.Sequence, &e.Timestamp, &e.EvaluationID, &e.StudentID, &e.CompetenceCode,
			&e.ExerciseID, &e.ExerciseFamily, &e.Validated, &e.Passed, &e.Composite, &e.Reason,
			&e.Profile, &e.ProfileVersion, &axes, &e.TimeSpentSeconds, &e.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("scan attempt event: %w", err)
		}
		if err := json.Unmarshal(axes, &e.Axes); err != nil {
			return nil, fmt.Errorf("unmarshal axes: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(result)
	return result, nil
}

// MasteryEvents returns a student's level changes, optionally narrowed to
// one competence, oldest first.
func (r *EventRepo) MasteryEvents(ctx context.Context, studentID, code string, opts store.QueryOpts) ([]store.MasteryEvent, error) {
	query, args := eventQuery(`SELECT sequence, timestamp, student_id, competence_code,
			from_level, to_level, transition_trigger, evaluation_id, composite
		 FROM mastery_events`, studentID, code, opts)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query mastery events: %w", err)
	}
	defer rows.Close()

	var result []store.MasteryEvent
	for rows.Next() {
		var (
			e        store.MasteryEvent
			from, to string
		)
		if err := rows.Scan(
			&e.Sequence, &e.Timestamp, &e.StudentID, &e.CompetenceCode,
			&from, &to, &e.Trigger, &e.EvaluationID, &e.Composite,
		); err != nil {
			return nil, fmt.Errorf("scan mastery event: %w", err)
		}
		e.From = mastery.Level(from)
		e.To = mastery.Level(to)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(result)
	return result, nil
}

// eventQuery appends the filters of opts to base, newest first.
func eventQuery(base, studentID, code string, opts store.QueryOpts) (string, []any) {
	args := []any{studentID}
	query := base + ` WHERE student_id = $1`
	add := func(cond string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND %s $%d", cond, len(args))
	}
	if code != "" {
		add("competence_code =", code)
	}
	if opts.After > 0 {
		add("sequence >", opts.After)
	}
	if opts.Before > 0 {
		add("sequence <", opts.Before)
	}
	if !opts.From.IsZero() {
		add("timestamp >=", opts.From)
	}
	if !opts.To.IsZero() {
		add("timestamp <=", opts.To)
	}
	query += ` ORDER BY sequence DESC`
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	return query, args
}

// RecentAccuracy returns the share of passed attempts among the last
// lastN validated attempts on a competence, and how many were counted.
// lastN <= 0 counts them all.
func (r *EventRepo) RecentAccuracy(ctx context.Context, studentID, code string, lastN int) (float64, int, error) {
	query := `SELECT count(*), count(*) FILTER (WHERE passed)
		 FROM (SELECT passed FROM attempt_events
		       WHERE student_id = $1 AND competence_code = $2 AND validated
		       ORDER BY sequence DESC`
	if lastN > 0 {
		query += fmt.Sprintf(" LIMIT %d", lastN)
	}
	query += `) recent`

	var count, passed int
	if err := r.q.QueryRow(ctx, query, studentID, code).Scan(&count, &passed); err != nil {
		return 0, 0, fmt.Errorf("query recent attempts: %w", err)
	}
	if count == 0 {
		return 0, 0, nil
	}
	return float64(passed) / float64(count), count, nil
}
