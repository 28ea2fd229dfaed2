package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/yous2911/fastrevedkids-sub011/internal/spacedrep"
)

var revisionColumns = []string{
	"id", "student_id", "competence_code", "status", "scheduled_for",
	"failure_count", "consecutive_successes", "last_evaluation_id", "history",
	"created_at", "updated_at",
}

// RevisionRepo implements spacedrep.ItemRepo. History is stored as a
// JSON array on the item row.
type RevisionRepo struct {
	db querier
}

var _ spacedrep.ItemRepo = (*RevisionRepo)(nil)

func (r *RevisionRepo) Get(ctx context.Context, id string) (spacedrep.RevisionItem, error) {
	it, ok, err := r.first(ctx, entsql.EQ("id", id))
	if err != nil {
		return spacedrep.RevisionItem{}, err
	}
	if !ok {
		return spacedrep.RevisionItem{}, &spacedrep.NotFoundError{ID: id}
	}
	return it, nil
}

func (r *RevisionRepo) Active(ctx context.Context, studentID, code string) (spacedrep.RevisionItem, bool, error) {
	return r.first(ctx, entsql.And(
		entsql.EQ("student_id", studentID),
		entsql.EQ("competence_code", code),
		entsql.EQ("status", string(spacedrep.StatusPending)),
	))
}

func (r *RevisionRepo) Save(ctx context.Context, it spacedrep.RevisionItem) error {
	history := it.History
	if history == nil {
		history = []spacedrep.HistoryEntry{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal revision history: %w", err)
	}

	b := insertQuery(tableRevisions).
		Columns(revisionColumns...).
		Values(
			it.ID, it.StudentID, it.CompetenceCode, string(it.Status), utc(it.ScheduledFor),
			it.FailureCount, it.ConsecutiveSuccesses, it.LastEvaluationID, string(historyJSON),
			utc(it.CreatedAt), utc(it.UpdatedAt),
		).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWithNewValues(),
		)
	query, args := b.Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save revision item: %w", err)
	}
	return nil
}

func (r *RevisionRepo) ListByStudent(ctx context.Context, studentID string) ([]spacedrep.RevisionItem, error) {
	sel := selectQuery(tableRevisions, revisionColumns...).
		Where(entsql.EQ("student_id", studentID)).
		OrderBy("id")
	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query revision items: %w", err)
	}
	defer rows.Close()

	var result []spacedrep.RevisionItem
	for rows.Next() {
		it, err := scanRevision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan revision item: %w", err)
		}
		result = append(result, it)
	}
	return result, rows.Err()
}

func (r *RevisionRepo) first(ctx context.Context, p *entsql.Predicate) (spacedrep.RevisionItem, bool, error) {
	sel := selectQuery(tableRevisions, revisionColumns...).
		Where(p).
		OrderBy(entsql.Desc("updated_at")).
		Limit(1)
	query, args := sel.Query()
	it, err := scanRevision(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return spacedrep.RevisionItem{}, false, nil
	}
	if err != nil {
		return spacedrep.RevisionItem{}, false, fmt.Errorf("query revision item: %w", err)
	}
	return it, true, nil
}

func scanRevision(row rowScanner) (spacedrep.RevisionItem, error) {
	var (
		it      spacedrep.RevisionItem
		status  string
		history []byte
	)
	err := row.Scan(
		&it.ID, &it.StudentID, &it.CompetenceCode, &status, &it.ScheduledFor,
		&it.FailureCount, &it.ConsecutiveSuccesses, &it.LastEvaluationID, &history,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return spacedrep.RevisionItem{}, err
	}
	it.Status = spacedrep.Status(status)
	if len(history) > 0 {
		if err := json.Unmarshal(history, &it.History); err != nil {
			return spacedrep.RevisionItem{}, fmt.Errorf("unmarshal revision history: %w", err)
		}
	}
	return it, nil
}
