package engine

import (
	"context"
	"errors"
	"fmt"
)

// StudentNotFoundError indicates an empty or unknown student ID.
type StudentNotFoundError struct {
	StudentID string
}

func (e *StudentNotFoundError) Error() string {
	return fmt.Sprintf("student not found: %q", e.StudentID)
}

func (e *StudentNotFoundError) NotFound() bool { return true }

// IsNotFound reports whether err, or any error it wraps, names a missing
// student, competence, or revision item.
func IsNotFound(err error) bool {
	var nf interface{ NotFound() bool }
	return errors.As(err, &nf) && nf.NotFound()
}

// StudentDirectory confirms that a student exists. Deployments without a
// student registry leave it nil, and only empty IDs are rejected.
type StudentDirectory interface {
	Exists(ctx context.Context, studentID string) (bool, error)
}

// StudentDirectoryFunc adapts a function to StudentDirectory.
type StudentDirectoryFunc func(ctx context.Context, studentID string) (bool, error)

func (f StudentDirectoryFunc) Exists(ctx context.Context, studentID string) (bool, error) {
	return f(ctx, studentID)
}
