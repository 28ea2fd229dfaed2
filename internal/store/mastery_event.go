package store

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/yous2911/fastrevedkids-sub011/internal/mastery"
)

var masteryEventColumns = []string{
	"sequence", "timestamp", "student_id", "competence_code",
	"from_level", "to_level", "transition_trigger", "evaluation_id", "composite",
}

// AppendTransition records a mastery level change.
func (r *EventRepo) AppendTransition(ctx context.Context, t mastery.StateTransition, ev mastery.AttemptEvaluation) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	b := insertQuery(tableMasteryEvents).
		Columns(masteryEventColumns...).
		Values(
			seqNum, utc(r.now()), t.StudentID, t.CompetenceCode,
			string(t.From), string(t.To), t.Trigger, ev.ID, ev.Composite,
		)
	if err := r.exec(ctx, b); err != nil {
		return fmt.Errorf("save mastery event: %w", err)
	}
	return nil
}

// MasteryEvents returns a student's level changes, optionally narrowed to
// one competence, oldest first.
func (r *EventRepo) MasteryEvents(ctx context.Context, studentID, code string, opts QueryOpts) ([]MasteryEvent, error) {
	sel := selectQuery(tableMasteryEvents, masteryEventColumns...).
		Where(entsql.EQ("student_id", studentID))
	if code != "" {
		sel.Where(entsql.EQ("competence_code", code))
	}
	events, err := queryRows(ctx, r.db, applyQueryOpts(sel, opts), scanMasteryEvent)
	if err != nil {
		return nil, fmt.Errorf("query mastery events: %w", err)
	}
	return events, nil
}

func scanMasteryEvent(rows *sql.Rows) (MasteryEvent, error) {
	var (
		e        MasteryEvent
		from, to string
	)
	err := rows.Scan(
		&e.Sequence, &e.Timestamp, &e.StudentID, &e.CompetenceCode,
		&from, &to, &e.Trigger, &e.EvaluationID, &e.Composite,
	)
	if err != nil {
		return MasteryEvent{}, err
	}
	e.From = mastery.Level(from)
	e.To = mastery.Level(to)
	return e, nil
}
