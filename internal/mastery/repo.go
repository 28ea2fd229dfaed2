package mastery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrConcurrencyConflict is matched by every *ConflictError.
var ErrConcurrencyConflict = errors.New("concurrency conflict")

// ConflictError reports an optimistic version mismatch on a competence
// state write. The caller should reload and retry the whole attempt.
type ConflictError struct {
	StudentID      string
	CompetenceCode string
	Expected       int64
	Actual         int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("competence state %s/%s: expected version %d, found %d",
		e.StudentID, e.CompetenceCode, e.Expected, e.Actual)
}

func (e *ConflictError) Unwrap() error { return ErrConcurrencyConflict }

// StateRepo stores competence states.
type StateRepo interface {
	// Get returns the state for the pair, and false if none exists yet.
	Get(ctx context.Context, studentID, code string) (CompetenceState, bool, error)

	// Put writes state if the stored version still equals expectedVersion
	// (0 when the state is being created). Otherwise it returns a
	// *ConflictError and writes nothing.
	Put(ctx context.Context, state CompetenceState, expectedVersion int64) error

	// ListByStudent returns all of a student's states sorted by code.
	ListByStudent(ctx context.Context, studentID string) ([]CompetenceState, error)
}

type stateKey struct {
	studentID string
	code      string
}

// MemoryRepo is an in-memory StateRepo.
type MemoryRepo struct {
	mu     sync.RWMutex
	states map[stateKey]CompetenceState
}

// NewMemoryRepo creates an empty in-memory state repository.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{states: make(map[stateKey]CompetenceState)}
}

func (r *MemoryRepo) Get(_ context.Context, studentID, code string) (CompetenceState, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.states[stateKey{studentID, code}]
	return s, ok, nil
}

func (r *MemoryRepo) Put(_ context.Context, state CompetenceState, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := stateKey{state.StudentID, state.CompetenceCode}
	current := r.states[key].Version
	if current != expectedVersion {
		return &ConflictError{
			StudentID:      state.StudentID,
			CompetenceCode: state.CompetenceCode,
			Expected:       expectedVersion,
			Actual:         current,
		}
	}
	r.states[key] = state
	return nil
}

func (r *MemoryRepo) ListByStudent(_ context.Context, studentID string) ([]CompetenceState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []CompetenceState
	for k, s := range r.states {
		if k.studentID == studentID {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CompetenceCode < result[j].CompetenceCode
	})
	return result, nil
}

// ProgressOf returns a code-to-progress map built from states.
func ProgressOf(states []CompetenceState) map[string]int {
	m := make(map[string]int, len(states))
	for _, s := range states {
		m[s.CompetenceCode] = s.ProgressPercent
	}
	return m
}
