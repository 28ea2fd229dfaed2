package learningpath

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// EntryRepo stores learning-path entries.
type EntryRepo interface {
	// Get returns the entry for the pair, and false if none is stored.
	Get(ctx context.Context, studentID, code string) (Entry, bool, error)

	// Save inserts or replaces entries keyed by (student, code).
	Save(ctx context.Context, entries ...Entry) error

	// ListByStudent returns the student's entries sorted by OrderIndex.
	ListByStudent(ctx context.Context, studentID string) ([]Entry, error)
}

type entryKey struct {
	studentID string
	code      string
}

// MemoryRepo is an in-memory EntryRepo.
type MemoryRepo struct {
	mu      sync.RWMutex
	entries map[entryKey]Entry
}

// NewMemoryRepo creates an empty in-memory entry repository.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{entries: make(map[entryKey]Entry)}
}

func (r *MemoryRepo) Get(_ context.Context, studentID, code string) (Entry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[entryKey{studentID, code}]
	e.BlockingReasons = slices.Clone(e.BlockingReasons)
	return e, ok, nil
}

func (r *MemoryRepo) Save(_ context.Context, entries ...Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		e.BlockingReasons = slices.Clone(e.BlockingReasons)
		r.entries[entryKey{e.StudentID, e.CompetenceCode}] = e
	}
	return nil
}

func (r *MemoryRepo) ListByStudent(_ context.Context, studentID string) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Entry
	for k, e := range r.entries {
		if k.studentID == studentID {
			e.BlockingReasons = slices.Clone(e.BlockingReasons)
			result = append(result, e)
		}
	}
	SortEntries(result)
	return result, nil
}

// SortEntries orders entries by OrderIndex, then code.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].OrderIndex != entries[j].OrderIndex {
			return entries[i].OrderIndex < entries[j].OrderIndex
		}
		return entries[i].CompetenceCode < entries[j].CompetenceCode
	})
}
