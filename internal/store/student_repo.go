package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// Student is a registered learner.
type Student struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// StudentRepo is the student directory.
type StudentRepo struct {
	db  *sql.DB
	now func() time.Time
}

// Add registers a student. Adding an existing ID updates its display name.
func (r *StudentRepo) Add(ctx context.Context, id, displayName string) (Student, error) {
	st := Student{ID: id, DisplayName: displayName, CreatedAt: utc(r.now())}
	b := insertQuery(tableStudents).
		Columns("id", "display_name", "created_at").
		Values(st.ID, st.DisplayName, st.CreatedAt).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("display_name")
			}),
		)
	query, args := b.Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return Student{}, fmt.Errorf("save student: %w", err)
	}
	return r.get(ctx, id)
}

// Exists reports whether id is registered.
func (r *StudentRepo) Exists(ctx context.Context, id string) (bool, error) {
	_, err := r.get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns every registered student sorted by ID.
func (r *StudentRepo) List(ctx context.Context) ([]Student, error) {
	query, args := selectQuery(tableStudents, "id", "display_name", "created_at").
		OrderBy("id").
		Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var result []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.DisplayName, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

func (r *StudentRepo) get(ctx context.Context, id string) (Student, error) {
	query, args := selectQuery(tableStudents, "id", "display_name", "created_at").
		Where(entsql.EQ("id", id)).
		Query()
	var st Student
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&st.ID, &st.DisplayName, &st.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, err
		}
		return Student{}, fmt.Errorf("query student: %w", err)
	}
	return st, nil
}
