package learningpath

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/yous2911/fastrevedkids-sub011/internal/competence"
	"github.com/yous2911/fastrevedkids-sub011/internal/lock"
	"github.com/yous2911/fastrevedkids-sub011/internal/mastery"
	"github.com/yous2911/fastrevedkids-sub011/internal/spacedrep"
)

// Builder maintains learning-path entries and produces recommendations.
// Every change to a student's entries happens under that student's path
// lock, with progress read after the lock is taken.
type Builder struct {
	graphs    *competence.Registry
	states    mastery.StateRepo
	scheduler *spacedrep.Scheduler
	entries   EntryRepo
	locker    lock.Locker
	now       func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLocker sets the locker guarding each student's entries. Processes
// sharing one store must share a locker too.
func WithLocker(l lock.Locker) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.locker = l
		}
	}
}

// NewBuilder creates a learning path builder. Without WithLocker, entries
// are guarded by an in-process lock.
func NewBuilder(graphs *competence.Registry, states mastery.StateRepo, scheduler *spacedrep.Scheduler, entries EntryRepo, opts ...BuilderOption) *Builder {
	b := &Builder{
		graphs:    graphs,
		states:    states,
		scheduler: scheduler,
		entries:   entries,
		locker:    lock.NewKeyedMutex(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builder) lockPath(ctx context.Context, studentID string) (lock.Unlock, error) {
	unlock, err := b.locker.Lock(ctx, lock.PathKey(studentID))
	if err != nil {
		return nil, fmt.Errorf("lock learning path: %w", err)
	}
	return unlock, nil
}

// studentView is the graph plus one student's progress, loaded once per call.
type studentView struct {
	graph    *competence.Graph
	states   map[string]mastery.CompetenceState
	progress competence.ProgressLookup
}

func (b *Builder) load(ctx context.Context, studentID string) (*studentView, error) {
	g, err := b.graphs.Current()
	if err != nil {
		return nil, err
	}
	states, err := b.states.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load competence states: %w", err)
	}
	byCode := make(map[string]mastery.CompetenceState, len(states))
	for _, s := range states {
		byCode[s.CompetenceCode] = s
	}
	return &studentView{
		graph:    g,
		states:   byCode,
		progress: competence.ProgressMap(mastery.ProgressOf(states)),
	}, nil
}

// newEntry derives a fresh entry from the graph.
func (v *studentView) newEntry(studentID, code string, now time.Time) Entry {
	e := Entry{
		StudentID:      studentID,
		CompetenceCode: code,
		Status:         StatusAvailable,
		OrderIndex:     v.graph.TopoIndex(code),
		UpdatedAt:      now,
	}
	reasons, _ := v.graph.BlockingReasons(v.progress, code)
	if len(reasons) > 0 {
		e.Status = StatusLocked
		e.BlockingReasons = reasons
	}
	return e
}

// Entries returns the student's entry for every competence of the current
// graph, in topological order. Missing entries are created from the graph
// and stored. Blocking reasons of locked entries are refreshed, but
// entries are never unlocked here: that is OnMastered's job.
func (b *Builder) Entries(ctx context.Context, studentID string) ([]Entry, error) {
	unlock, err := b.lockPath(ctx, studentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	v, err := b.load(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return b.materialize(ctx, studentID, v)
}

// materialize must run under the student's path lock.
func (b *Builder) materialize(ctx context.Context, studentID string, v *studentView) ([]Entry, error) {
	stored, err := b.entries.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list path entries: %w", err)
	}
	byCode := make(map[string]Entry, len(stored))
	for _, e := range stored {
		byCode[e.CompetenceCode] = e
	}

	now := b.now()
	var changed []Entry
	result := make([]Entry, 0, len(v.graph.TopologicalOrder()))
	for _, code := range v.graph.TopologicalOrder() {
		e, ok := byCode[code]
		if !ok {
			e = v.newEntry(studentID, code, now)
			changed = append(changed, e)
			result = append(result, e)
			continue
		}

		dirty := false
		if idx := v.graph.TopoIndex(code); e.OrderIndex != idx {
			e.OrderIndex = idx
			dirty = true
		}
		if e.Status == StatusLocked {
			reasons, _ := v.graph.BlockingReasons(v.progress, code)
			if len(reasons) > 0 && !slices.Equal(reasons, e.BlockingReasons) {
				e.BlockingReasons = reasons
				dirty = true
			}
		}
		if dirty {
			e.UpdatedAt = now
			changed = append(changed, e)
		}
		result = append(result, e)
	}

	if len(changed) > 0 {
		if err := b.entries.Save(ctx, changed...); err != nil {
			return nil, fmt.Errorf("save path entries: %w", err)
		}
	}
	return result, nil
}

// Entry returns the student's entry for code, creating it if needed.
func (b *Builder) Entry(ctx context.Context, studentID, code string) (Entry, error) {
	unlock, err := b.lockPath(ctx, studentID)
	if err != nil {
		return Entry{}, err
	}
	defer unlock()
	return b.entry(ctx, studentID, code)
}

func (b *Builder) entry(ctx context.Context, studentID, code string) (Entry, error) {
	e, ok, err := b.entries.Get(ctx, studentID, code)
	if err != nil {
		return Entry{}, fmt.Errorf("load path entry: %w", err)
	}
	if ok {
		return e, nil
	}

	v, err := b.load(ctx, studentID)
	if err != nil {
		return Entry{}, err
	}
	if !v.graph.Has(code) {
		return Entry{}, &competence.NotFoundError{Code: code}
	}
	entries, err := b.materialize(ctx, studentID, v)
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.CompetenceCode == code {
			return e, nil
		}
	}
	return Entry{}, &competence.NotFoundError{Code: code}
}

// OnMastered rechecks every dependent of code after the student's progress
// on code went up. Locked dependents whose required prerequisites are now
// all met become available; the others get refreshed blocking reasons.
// It returns the newly unlocked codes, sorted.
func (b *Builder) OnMastered(ctx context.Context, studentID, code string) ([]string, error) {
	unlock, err := b.lockPath(ctx, studentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	v, err := b.load(ctx, studentID)
	if err != nil {
		return nil, err
	}
	dependents, err := v.graph.DependentsOf(code)
	if err != nil {
		return nil, err
	}

	now := b.now()
	var (
		unlocked []string
		changed  []Entry
	)
	for _, dep := range dependents {
		e, ok, err := b.entries.Get(ctx, studentID, dep)
		if err != nil {
			return nil, fmt.Errorf("load path entry: %w", err)
		}
		if !ok {
			// Never materialized: treat it as it stood before this change.
			e = v.newEntry(studentID, dep, now)
			if prereqs, _ := v.graph.Prerequisites(dep); hasRequired(prereqs) {
				e.Status = StatusLocked
			}
			changed = append(changed, e)
		}
		if e.Status != StatusLocked {
			continue
		}

		reasons, err := v.graph.BlockingReasons(v.progress, dep)
		if err != nil {
			return nil, err
		}
		switch {
		case len(reasons) == 0:
			e.Status = StatusAvailable
			e.BlockingReasons = nil
			unlocked = append(unlocked, dep)
		case !slices.Equal(reasons, e.BlockingReasons):
			e.BlockingReasons = reasons
		default:
			if ok {
				continue
			}
		}
		e.UpdatedAt = now
		changed = upsert(changed, e)
	}

	if len(changed) > 0 {
		if err := b.entries.Save(ctx, changed...); err != nil {
			return nil, fmt.Errorf("save path entries: %w", err)
		}
	}
	return unlocked, nil
}

// MarkInProgress records the first attempt on an available competence.
func (b *Builder) MarkInProgress(ctx context.Context, studentID, code string) (Entry, error) {
	return b.transition(ctx, studentID, code, StatusInProgress)
}

// MarkCompleted records mastery of an in-progress competence.
func (b *Builder) MarkCompleted(ctx context.Context, studentID, code string) (Entry, error) {
	return b.transition(ctx, studentID, code, StatusCompleted)
}

// Skip removes an available or in-progress competence from recommendations.
func (b *Builder) Skip(ctx context.Context, studentID, code string) (Entry, error) {
	return b.transition(ctx, studentID, code, StatusSkipped)
}

// Relock moves an available or in-progress competence back to locked when
// its prerequisites have been invalidated. blockers names the prerequisite
// codes responsible; when empty they are recomputed from the graph.
func (b *Builder) Relock(ctx context.Context, studentID, code string, blockers ...string) (Entry, error) {
	g, err := b.graphs.Current()
	if err != nil {
		return Entry{}, err
	}
	for _, c := range blockers {
		if !g.Has(c) {
			return Entry{}, &competence.NotFoundError{Code: c}
		}
	}

	unlock, err := b.lockPath(ctx, studentID)
	if err != nil {
		return Entry{}, err
	}
	defer unlock()

	if len(blockers) == 0 {
		v, err := b.load(ctx, studentID)
		if err != nil {
			return Entry{}, err
		}
		if blockers, err = v.graph.BlockingReasons(v.progress, code); err != nil {
			return Entry{}, err
		}
	}
	blockers = slices.Clone(blockers)
	slices.Sort(blockers)
	blockers = slices.Compact(blockers)

	return b.transitionLocked(ctx, studentID, code, StatusLocked, blockers...)
}

func (b *Builder) transition(ctx context.Context, studentID, code string, to Status) (Entry, error) {
	unlock, err := b.lockPath(ctx, studentID)
	if err != nil {
		return Entry{}, err
	}
	defer unlock()
	return b.transitionLocked(ctx, studentID, code, to)
}

func (b *Builder) transitionLocked(ctx context.Context, studentID, code string, to Status, blockers ...string) (Entry, error) {
	e, err := b.entry(ctx, studentID, code)
	if err != nil {
		return Entry{}, err
	}
	if !e.Status.CanTransition(to) {
		return Entry{}, &TransitionError{StudentID: studentID, CompetenceCode: code, From: e.Status, To: to}
	}
	e.Status = to
	e.BlockingReasons = blockers
	e.UpdatedAt = b.now()
	if err := b.entries.Save(ctx, e); err != nil {
		return Entry{}, fmt.Errorf("save path entry: %w", err)
	}
	return e, nil
}

func hasRequired(edges []competence.Edge) bool {
	for _, e := range edges {
		if e.Blocks() {
			return true
		}
	}
	return false
}

func upsert(entries []Entry, e Entry) []Entry {
	for i := range entries {
		if entries[i].CompetenceCode == e.CompetenceCode {
			entries[i] = e
			return entries
		}
	}
	return append(entries, e)
}
