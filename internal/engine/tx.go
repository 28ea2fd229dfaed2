package engine

import (
	"context"
	"fmt"

	"github.com/yous2911/fastrevedkids-sub011/internal/mastery"
	"github.com/yous2911/fastrevedkids-sub011/internal/spacedrep"
)

// Transactor commits the competence-state write and the revision write of
// one attempt together or not at all. fn must do all of its work through
// the repositories it is handed.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, states mastery.StateRepo, revisions spacedrep.ItemRepo) error) error
}

// stagingTx serves repositories that have no transactions. Writes are
// buffered until fn succeeds; then revision items are saved before the
// state, so a failed revision write leaves the state untouched. The state
// version is checked while staging, under the engine's attempt lock.
type stagingTx struct {
	states    mastery.StateRepo
	revisions spacedrep.ItemRepo
}

func (t stagingTx) InTx(ctx context.Context, fn func(ctx context.Context, states mastery.StateRepo, revisions spacedrep.ItemRepo) error) error {
	st := &stagedStates{StateRepo: t.states}
	rv := &stagedItems{ItemRepo: t.revisions}
	if err := fn(ctx, st, rv); err != nil {
		return err
	}

	for _, it := range rv.saved {
		if err := t.revisions.Save(ctx, it); err != nil {
			return fmt.Errorf("save revision item: %w", err)
		}
	}
	for _, p := range st.puts {
		if err := t.states.Put(ctx, p.state, p.expected); err != nil {
			return err
		}
	}
	return nil
}

type stagedPut struct {
	state    mastery.CompetenceState
	expected int64
}

// stagedStates buffers Put after checking the expected version.
type stagedStates struct {
	mastery.StateRepo
	puts []stagedPut
}

func (s *stagedStates) Put(ctx context.Context, st mastery.CompetenceState, expectedVersion int64) error {
	current, ok, err := s.StateRepo.Get(ctx, st.StudentID, st.CompetenceCode)
	if err != nil {
		return err
	}
	var actual int64
	if ok {
		actual = current.Version
	}
	if actual != expectedVersion {
		return &mastery.ConflictError{
			StudentID:      st.StudentID,
			CompetenceCode: st.CompetenceCode,
			Expected:       expectedVersion,
			Actual:         actual,
		}
	}
	s.puts = append(s.puts, stagedPut{state: st, expected: expectedVersion})
	return nil
}

// stagedItems buffers Save. Get and Active see staged items; other reads
// see committed data only.
type stagedItems struct {
	spacedrep.ItemRepo
	saved []spacedrep.RevisionItem
}

func (s *stagedItems) Get(ctx context.Context, id string) (spacedrep.RevisionItem, error) {
	for i := len(s.saved) - 1; i >= 0; i-- {
		if s.saved[i].ID == id {
			return s.saved[i], nil
		}
	}
	return s.ItemRepo.Get(ctx, id)
}

func (s *stagedItems) Active(ctx context.Context, studentID, code string) (spacedrep.RevisionItem, bool, error) {
	for i := len(s.saved) - 1; i >= 0; i-- {
		it := s.saved[i]
		if it.StudentID == studentID && it.CompetenceCode == code && it.Status == spacedrep.StatusPending {
			return it, true, nil
		}
	}
	return s.ItemRepo.Active(ctx, studentID, code)
}

func (s *stagedItems) Save(_ context.Context, it spacedrep.RevisionItem) error {
	s.saved = append(s.saved, it)
	return nil
}
