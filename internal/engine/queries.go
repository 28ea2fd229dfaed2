package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/yous2911/fastrevedkids-sub011/internal/learningpath"
	"github.com/yous2911/fastrevedkids-sub011/internal/mastery"
	"github.com/yous2911/fastrevedkids-sub011/internal/spacedrep"
)

func (e *Engine) loadState(ctx context.Context, studentID, code string) (mastery.CompetenceState, error) {
	s, ok, err := e.states.Get(ctx, studentID, code)
	if err != nil {
		return mastery.CompetenceState{}, fmt.Errorf("load competence state: %w", err)
	}
	if !ok {
		return mastery.NewState(studentID, code), nil
	}
	return s, nil
}

// CompetenceState returns the student's state on code. A competence the
// student never attempted reports the not_started state at version 0.
func (e *Engine) CompetenceState(ctx context.Context, studentID, code string) (mastery.CompetenceState, error) {
	if err := e.checkStudent(ctx, studentID); err != nil {
		return mastery.CompetenceState{}, err
	}
	if _, err := e.checkCompetence(code); err != nil {
		return mastery.CompetenceState{}, err
	}
	return e.loadState(ctx, studentID, code)
}

// States returns every competence state the student has, sorted by code.
func (e *Engine) States(ctx context.Context, studentID string) ([]mastery.CompetenceState, error) {
	if err := e.checkStudent(ctx, studentID); err != nil {
		return nil, err
	}
	states, err := e.states.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list competence states: %w", err)
	}
	return states, nil
}

// GetDueRevisions returns the student's due revisions, highest priority first.
func (e *Engine) GetDueRevisions(ctx context.Context, studentID string, limit int) ([]spacedrep.DueItem, error) {
	if err := e.checkStudent(ctx, studentID); err != nil {
		return nil, err
	}
	return e.scheduler.DueItems(ctx, studentID, e.now(), limit)
}

// GetLearningPath returns up to maxItems recommendations: new skills
// interleaved with due revisions.
func (e *Engine) GetLearningPath(ctx context.Context, studentID string, maxItems int) ([]learningpath.Recommendation, error) {
	if err := e.checkStudent(ctx, studentID); err != nil {
		return nil, err
	}
	return e.path.Recommend(ctx, studentID, e.now(), maxItems)
}

// PathEntries returns the student's learning-path entry for every competence.
func (e *Engine) PathEntries(ctx context.Context, studentID string) ([]learningpath.Entry, error) {
	if err := e.checkStudent(ctx, studentID); err != nil {
		return nil, err
	}
	return e.path.Entries(ctx, studentID)
}

// Revision returns one revision item with its history.
func (e *Engine) Revision(ctx context.Context, revisionID string) (*spacedrep.RevisionItem, error) {
	return e.scheduler.Get(ctx, revisionID)
}

// PostponeRevision moves a revision to a later date.
func (e *Engine) PostponeRevision(ctx context.Context, revisionID string, newDate time.Time, reason string) (*spacedrep.RevisionItem, error) {
	it, err := e.scheduler.Postpone(ctx, revisionID, newDate, reason)
	if err != nil {
		return nil, err
	}
	e.log.Info("revision postponed", "revision_id", revisionID, "scheduled_for", newDate, "reason", reason)
	return it, nil
}

// CancelRevision withdraws a revision from scheduling.
func (e *Engine) CancelRevision(ctx context.Context, revisionID, reason string) (*spacedrep.RevisionItem, error) {
	it, err := e.scheduler.Cancel(ctx, revisionID, reason)
	if err != nil {
		return nil, err
	}
	e.log.Info("revision cancelled", "revision_id", revisionID, "reason", reason)
	return it, nil
}

// OnMastered rechecks the dependents of code and returns those newly
// unlocked. RecordAttempt runs it whenever progress rises; it is exposed
// for callers that change progress by other means.
func (e *Engine) OnMastered(ctx context.Context, studentID, code string) ([]string, error) {
	if err := e.checkStudent(ctx, studentID); err != nil {
		return nil, err
	}
	return e.path.OnMastered(ctx, studentID, code)
}

// SkipCompetence takes a competence out of the student's recommendations.
func (e *Engine) SkipCompetence(ctx context.Context, studentID, code string) (learningpath.Entry, error) {
	if err := e.checkStudent(ctx, studentID); err != nil {
		return learningpath.Entry{}, err
	}
	return e.path.Skip(ctx, studentID, code)
}

// RelockCompetence locks a competence again after its prerequisites were
// invalidated. blockers defaults to the graph's unmet prerequisites.
func (e *Engine) RelockCompetence(ctx context.Context, studentID, code string, blockers ...string) (learningpath.Entry, error) {
	if err := e.checkStudent(ctx, studentID); err != nil {
		return learningpath.Entry{}, err
	}
	return e.path.Relock(ctx, studentID, code, blockers...)
}
