package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yous2911/fastrevedkids-sub011/internal/spacedrep"
)

const revisionColumns = `id, student_id, competence_code, status, scheduled_for,
	failure_count, consecutive_successes, last_evaluation_id, history,
	created_at, updated_at`

// RevisionRepo implements spacedrep.ItemRepo. A partial unique index
// guarantees at most one pending item per (student, competence).
type RevisionRepo struct {
	q querier
}

var _ spacedrep.ItemRepo = (*RevisionRepo)(nil)

func (r *RevisionRepo) Get(ctx context.Context, id string) (spacedrep.RevisionItem, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+revisionColumns+` FROM revision_items WHERE id = $1`,
		id,
	)
	it, err := scanRevision(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return spacedrep.RevisionItem{}, &spacedrep.NotFoundError{ID: id}
	}
	if err != nil {
		return spacedrep.RevisionItem{}, fmt.Errorf("query revision item: %w", err)
	}
	return it, nil
}

func (r *RevisionRepo) Active(ctx context.Context, studentID, code string) (spacedrep.RevisionItem, bool, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+revisionColumns+`
		 FROM revision_items
		 WHERE student_id = $1 AND competence_code = $2 AND status = $3
		 LIMIT 1`,
		studentID, code, string(spacedrep.StatusPending),
	)
	it, err := scanRevision(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return spacedrep.RevisionItem{}, false, nil
	}
	if err != nil {
		return spacedrep.RevisionItem{}, false, fmt.Errorf("query active revision item: %w", err)
	}
	return it, true, nil
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

	_, err = r.q.Exec(ctx,
		`INSERT INTO revision_items (`+revisionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			scheduled_for = EXCLUDED.scheduled_for,
			failure_count = EXCLUDED.failure_count,
			consecutive_successes = EXCLUDED.consecutive_successes,
			last_evaluation_id = EXCLUDED.last_evaluation_id,
			history = EXCLUDED.history,
			updated_at = EXCLUDED.updated_at`,
		it.ID, it.StudentID, it.CompetenceCode, string(it.Status), it.ScheduledFor,
		it.FailureCount, it.ConsecutiveSuccesses, it.LastEvaluationID, historyJSON,
		it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save revision item: %w", err)
	}
	return nil
}

func (r *RevisionRepo) ListByStudent(ctx context.Context, studentID string) ([]spacedrep.RevisionItem, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+revisionColumns+`
		 FROM revision_items
		 WHERE student_id = $1
		 ORDER BY id`,
		studentID,
	)
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

func scanRevision(row pgx.Row) (spacedrep.RevisionItem, error) {
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
