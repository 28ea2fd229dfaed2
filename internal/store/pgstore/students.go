package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yous2911/fastrevedkids-sub011/internal/store"
)

// StudentRepo is the student directory.
type StudentRepo struct {
	q querier
}

// Add registers a student. Adding an existing ID updates its display name.
func (r *StudentRepo) Add(ctx context.Context, id, displayName string) (store.Student, error) {
	var st store.Student
	err := r.q.QueryRow(ctx,
		`INSERT INTO students (id, display_name)
		 VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name
		 RETURNING id, display_name, created_at`,
		id, displayName,
	).Scan(&st.ID, &st.DisplayName, &st.CreatedAt)
	if err != nil {
		return store.Student{}, fmt.Errorf("save student: %w", err)
	}
	return st, nil
}

// Exists reports whether id is registered.
func (r *StudentRepo) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.q.QueryRow(ctx, `SELECT 1 FROM students WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query student: %w", err)
	}
	return true, nil
}

// List returns every registered student sorted by ID.
func (r *StudentRepo) List(ctx context.Context) ([]store.Student, error) {
	rows, err := r.q.Query(ctx, `SELECT id, display_name, created_at FROM students ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var result []store.Student
	for rows.Next() {
		var st store.Student
		if err := rows.Scan(&st.ID, &st.DisplayName, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		result = append(result, st)
	}
	return result, rows.Err()
}
