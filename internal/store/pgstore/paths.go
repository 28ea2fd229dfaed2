package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yous2911/fastrevedkids-sub011/internal/learningpath"
)

// PathRepo implements learningpath.EntryRepo with one row per entry.
type PathRepo struct {
	pool *pgxpool.Pool
}

var _ learningpath.EntryRepo = (*PathRepo)(nil)

func (r *PathRepo) Get(ctx context.Context, studentID, code string) (learningpath.Entry, bool, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT student_id, competence_code, status, blocking_reasons, order_index, updated_at
		 FROM path_entries
		 WHERE student_id = $1 AND competence_code = $2`,
		studentID, code,
	)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return learningpath.Entry{}, false, nil
	}
	if err != nil {
		return learningpath.Entry{}, false, fmt.Errorf("query path entry: %w", err)
	}
	return e, true, nil
}

// Save upserts every entry in one transaction.
func (r *PathRepo) Save(ctx context.Context, entries ...learningpath.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range entries {
			reasons := e.BlockingReasons
			if reasons == nil {
				reasons = []string{}
			}
			batch.Queue(`
				INSERT INTO path_entries
				(student_id, competence_code, status, blocking_reasons, order_index, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (student_id, competence_code) DO UPDATE SET
					status = EXCLUDED.status,
					blocking_reasons = EXCLUDED.blocking_reasons,
					order_index = EXCLUDED.order_index,
					updated_at = EXCLUDED.updated_at
			`,
				e.StudentID,
				e.CompetenceCode,
				string(e.Status),
				reasons,
				e.OrderIndex,
				e.UpdatedAt,
			)
		}

		br := tx.SendBatch(ctx, batch)
		defer br.Close()

		for range entries {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("save path entry: %w", err)
			}
		}
		return nil
	})
}

func (r *PathRepo) ListByStudent(ctx context.Context, studentID string) ([]learningpath.Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, competence_code, status, blocking_reasons, order_index, updated_at
		 FROM path_entries
		 WHERE student_id = $1
		 ORDER BY order_index, competence_code`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query path entries: %w", err)
	}
	defer rows.Close()

	var result []learningpath.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan path entry: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func scanEntry(row pgx.Row) (learningpath.Entry, error) {
	var (
		e      learningpath.Entry
		status string
	)
	if err := row.Scan(&e.StudentID, &e.CompetenceCode, &status, &e.BlockingReasons, &e.OrderIndex, &e.UpdatedAt); err != nil {
		return learningpath.Entry{}, err
	}
	e.Status = learningpath.Status(status)
	if len(e.BlockingReasons) == 0 {
		e.BlockingReasons = nil
	}
	return e, nil
}
