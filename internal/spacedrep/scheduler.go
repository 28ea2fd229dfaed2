package spacedrep

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// WeightFunc returns the curriculum weight of a competence, added to the
// priority of its revision items.
type WeightFunc func(code string) float64

// DueItem is a due revision item with its priority as of the query time.
type DueItem struct {
	RevisionItem
	Priority float64 `json:"priority"`
}

// Scheduler decides when each competence is revised next.
type Scheduler struct {
	repo   ItemRepo
	cfg    Config
	weight WeightFunc
	now    func() time.Time
	newID  func() string
}

// NewScheduler creates a scheduler over repo. A nil weight func weighs
// every competence 0.
func NewScheduler(repo ItemRepo, cfg Config, weight WeightFunc) *Scheduler {
	if weight == nil {
		weight = func(string) float64 { return 0 }
	}
	return &Scheduler{
		repo:   repo,
		cfg:    cfg,
		weight: weight,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// WithRepo returns a copy of the scheduler that reads and writes through
// repo, typically one bound to a transaction.
func (s *Scheduler) WithRepo(repo ItemRepo) *Scheduler {
	cp := *s
	cp.repo = repo
	return &cp
}

// Config returns the spacing constants in use.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// OnFailure schedules a revision after a failed evaluation at
// now + Backoff(n). n is the caller's failure count; zero means "one more
// than the stored count".
func (s *Scheduler) OnFailure(ctx context.Context, studentID, code string, failureCount int, evalID string, now time.Time) (*RevisionItem, error) {
	it, err := s.activeOrNew(ctx, studentID, code, now)
	if err != nil {
		return nil, err
	}

	if failureCount <= 0 {
		failureCount = it.FailureCount + 1
	}
	it.FailureCount = failureCount
	it.ConsecutiveSuccesses = 0
	it.LastEvaluationID = evalID
	it.ScheduledFor = now.Add(s.cfg.Backoff(failureCount))
	it.record(now, ActionFailure, evalID, "")

	if err := s.repo.Save(ctx, it); err != nil {
		return nil, fmt.Errorf("save revision item: %w", err)
	}
	return &it, nil
}

// OnSuccess schedules a reinforcement revision after a passed evaluation
// at now + Growth(n) and resets the failure count.
func (s *Scheduler) OnSuccess(ctx context.Context, studentID, code string, consecutiveSuccesses int, evalID string, now time.Time) (*RevisionItem, error) {
	it, err := s.activeOrNew(ctx, studentID, code, now)
	if err != nil {
		return nil, err
	}

	it.FailureCount = 0
	it.ConsecutiveSuccesses = consecutiveSuccesses
	it.LastEvaluationID = evalID
	it.ScheduledFor = now.Add(s.cfg.Growth(consecutiveSuccesses))
	it.record(now, ActionSuccess, evalID, "")

	if err := s.repo.Save(ctx, it); err != nil {
		return nil, fmt.Errorf("save revision item: %w", err)
	}
	return &it, nil
}

// Postpone moves a pending item to a later date. The failure count is kept.
func (s *Scheduler) Postpone(ctx context.Context, id string, newDate time.Time, reason string) (*RevisionItem, error) {
	it, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !it.IsActive() {
		return nil, fmt.Errorf("postpone %s: %w", id, ErrCancelled)
	}
	if !newDate.After(it.ScheduledFor) {
		return nil, fmt.Errorf("postpone %s to %s: %w", id, newDate.Format(time.RFC3339), ErrInvalidPostpone)
	}

	it.ScheduledFor = newDate
	it.record(s.now(), ActionPostponed, "", reason)
	if err := s.repo.Save(ctx, it); err != nil {
		return nil, fmt.Errorf("save revision item: %w", err)
	}
	return &it, nil
}

// Cancel withdraws an item from scheduling. The item is retained; the next
// evaluation of the same competence starts a fresh item. Cancelling a
// cancelled item is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, id, reason string) (*RevisionItem, error) {
	it, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !it.IsActive() {
		return &it, nil
	}

	it.Status = StatusCancelled
	it.record(s.now(), ActionCancelled, "", reason)
	if err := s.repo.Save(ctx, it); err != nil {
		return nil, fmt.Errorf("save revision item: %w", err)
	}
	return &it, nil
}

// DueItems returns the student's pending items scheduled at or before asOf,
// highest priority first. Ties go to the earliest date, then the most
// failures. limit <= 0 returns every due item.
func (s *Scheduler) DueItems(ctx context.Context, studentID string, asOf time.Time, limit int) ([]DueItem, error) {
	items, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list revision items: %w", err)
	}

	var due []DueItem
	for _, it := range items {
		if !it.IsDue(asOf) {
			continue
		}
		due = append(due, DueItem{
			RevisionItem: it,
			Priority:     Priority(it, asOf, s.weight(it.CompetenceCode)),
		})
	}
	SortDue(due)

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// SortDue orders items by priority descending, then earliest date, then
// highest failure count, then ID.
func SortDue(due []DueItem) {
	sort.Slice(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.ScheduledFor.Equal(b.ScheduledFor) {
			return a.ScheduledFor.Before(b.ScheduledFor)
		}
		if a.FailureCount != b.FailureCount {
			return a.FailureCount > b.FailureCount
		}
		return a.ID < b.ID
	})
}

// Get returns the item with the given ID, whatever its status.
func (s *Scheduler) Get(ctx context.Context, id string) (*RevisionItem, error) {
	it, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// Active returns the pending item for the pair, if any.
func (s *Scheduler) Active(ctx context.Context, studentID, code string) (*RevisionItem, error) {
	it, ok, err := s.repo.Active(ctx, studentID, code)
	if err != nil {
		return nil, fmt.Errorf("load revision item: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &it, nil
}

// ActiveCodes returns the set of competences with a pending item.
func (s *Scheduler) ActiveCodes(ctx context.Context, studentID string) (map[string]bool, error) {
	items, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list revision items: %w", err)
	}
	active := make(map[string]bool, len(items))
	for _, it := range items {
		if it.IsActive() {
			active[it.CompetenceCode] = true
		}
	}
	return active, nil
}

func (s *Scheduler) activeOrNew(ctx context.Context, studentID, code string, now time.Time) (RevisionItem, error) {
	it, ok, err := s.repo.Active(ctx, studentID, code)
	if err != nil {
		return RevisionItem{}, fmt.Errorf("load revision item: %w", err)
	}
	if ok {
		return it, nil
	}
	return RevisionItem{
		ID:             s.newID(),
		StudentID:      studentID,
		CompetenceCode: code,
		Status:         StatusPending,
		CreatedAt:      now,
	}, nil
}
