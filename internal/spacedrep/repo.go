package spacedrep

import (
	"context"
	"sort"
	"sync"
)

// ItemRepo stores revision items.
type ItemRepo interface {
	// Get returns the item with the given ID or a *NotFoundError.
	Get(ctx context.Context, id string) (RevisionItem, error)

	// Active returns the pending item for the pair, and false if there is none.
	Active(ctx context.Context, studentID, code string) (RevisionItem, bool, error)

	// Save inserts or replaces the item by ID.
	Save(ctx context.Context, item RevisionItem) error

	// ListByStudent returns every item of the student, cancelled ones included.
	ListByStudent(ctx context.Context, studentID string) ([]RevisionItem, error)
}

// MemoryRepo is an in-memory ItemRepo.
type MemoryRepo struct {
	mu    sync.RWMutex
	items map[string]RevisionItem
}

// NewMemoryRepo creates an empty in-memory item repository.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{items: make(map[string]RevisionItem)}
}

func (r *MemoryRepo) Get(_ context.Context, id string) (RevisionItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.items[id]
	if !ok {
		return RevisionItem{}, &NotFoundError{ID: id}
	}
	return it.clone(), nil
}

func (r *MemoryRepo) Active(_ context.Context, studentID, code string) (RevisionItem, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, it := range r.items {
		if it.StudentID == studentID && it.CompetenceCode == code && it.IsActive() {
			return it.clone(), true, nil
		}
	}
	return RevisionItem{}, false, nil
}

func (r *MemoryRepo) Save(_ context.Context, item RevisionItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ID] = item.clone()
	return nil
}

func (r *MemoryRepo) ListByStudent(_ context.Context, studentID string) ([]RevisionItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []RevisionItem
	for _, it := range r.items {
		if it.StudentID == studentID {
			result = append(result, it.clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}
