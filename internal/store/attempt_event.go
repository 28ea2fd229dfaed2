package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/yous2911/fastrevedkids-sub011/internal/mastery"
)

var attemptEventColumns = []string{
	"sequence", "timestamp", "evaluation_id", "student_id", "competence_code",
	"exercise_id", "exercise_family", "validated", "passed", "composite",
	"reason", "profile", "profile_version", "axes", "time_spent_seconds", "submitted_at",
}

// AppendAttempt records an evaluated attempt.
func (r *EventRepo) AppendAttempt(ctx context.Context, a mastery.AttemptResult, ev mastery.AttemptEvaluation) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	axes := ev.Axes
	if axes == nil {
		axes = map[mastery.Axis]float64{}
	}
	axesJSON, err := json.Marshal(axes)
	if err != nil {
		return fmt.Errorf("marshal axes: %w", err)
	}

	b := insertQuery(tableAttemptEvents).
		Columns(attemptEventColumns...).
		Values(
			seqNum, utc(r.now()), ev.ID, a.StudentID, a.CompetenceCode,
			a.ExerciseID, a.ExerciseFamily, ev.Validated, ev.Passed, ev.Composite,
			ev.Reason, ev.Profile, ev.ProfileVersion, string(axesJSON), a.TimeSpentSeconds, utc(a.SubmittedAt),
		)
	if err := r.exec(ctx, b); err != nil {
		return fmt.Errorf("save attempt event: %w", err)
	}
	return nil
}

// AttemptEvents returns a student's attempt events, optionally narrowed
// to one competence, oldest first.
func (r *EventRepo) AttemptEvents(ctx context.Context, studentID, code string, opts QueryOpts) ([]AttemptEvent, error) {
	sel := selectQuery(tableAttemptEvents, attemptEventColumns...).
		Where(entsql.EQ("student_id", studentID))
	if code != "" {
		sel.Where(entsql.EQ("competence_code", code))
	}
	events, err := queryRows(ctx, r.db, applyQueryOpts(sel, opts), scanAttemptEvent)
	if err != nil {
		return nil, fmt.Errorf("query attempt events: %w", err)
	}
	return events, nil
}

// RecentAccuracy returns the share of passed attempts among the last
// lastN validated attempts on a competence, and how many were counted.
func (r *EventRepo) RecentAccuracy(ctx context.Context, studentID, code string, lastN int) (float64, int, error) {
	sel := selectQuery(tableAttemptEvents, attemptEventColumns...).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.EQ("competence_code", code),
			entsql.EQ("validated", true),
		))
	events, err := queryRows(ctx, r.db, applyQueryOpts(sel, QueryOpts{Limit: lastN}), scanAttemptEvent)
	if err != nil {
		return 0, 0, fmt.Errorf("query recent attempts: %w", err)
	}

	count := len(events)
	if count == 0 {
		return 0, 0, nil
	}

	passed := 0
	for _, e := range events {
		if e.Passed {
			passed++
		}
	}

	return float64(passed) / float64(count), count, nil
}

func scanAttemptEvent(rows *sql.Rows) (AttemptEvent, error) {
	var (
		e    AttemptEvent
		axes []byte
	)
	err := rows.Scan(
		&e.Sequence, &e.Timestamp, &e.EvaluationID, &e.StudentID, &e.CompetenceCode,
		&e.ExerciseID, &e.ExerciseFamily, &e.Validated, &e.Passed, &e.Composite,
		&e.Reason, &e.Profile, &e.ProfileVersion, &axes, &e.TimeSpentSeconds, &e.SubmittedAt,
	)
	if err != nil {
		return AttemptEvent{}, err
	}
	if len(axes) > 0 {
		if err := json.Unmarshal(axes, &e.Axes); err != nil {
			return AttemptEvent{}, fmt.Errorf("unmarshal axes: %w", err)
		}
	}
	return e, nil
}
