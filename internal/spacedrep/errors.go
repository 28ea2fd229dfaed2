package spacedrep

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPostpone is returned when a postpone would not move the
	// item forward in time.
	ErrInvalidPostpone = errors.New("postpone date must be after the current schedule")

	// ErrCancelled is returned when an operation needs a pending item.
	ErrCancelled = errors.New("revision item is cancelled")
)

// NotFoundError indicates an unknown revision ID.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("revision item not found: %q", e.ID)
}

// NotFound marks the error as a missing-entity error.
func (e *NotFoundError) NotFound() bool { return true }
