package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/yous2911/fastrevedkids-sub011/internal/learningpath"
	"github.com/yous2911/fastrevedkids-sub011/internal/lock"
	"github.com/yous2911/fastrevedkids-sub011/internal/mastery"
	"github.com/yous2911/fastrevedkids-sub011/internal/spacedrep"
)

// AttemptOutcome is everything one attempt changed.
type AttemptOutcome struct {
	Evaluation mastery.AttemptEvaluation `json:"evaluation"`
	NewState   mastery.CompetenceState   `json:"new_state"`
	Transition *mastery.StateTransition  `json:"transition,omitempty"`
	Unlocked   []string                  `json:"unlocked,omitempty"`
	Revision   *spacedrep.RevisionItem   `json:"revision,omitempty"`
}

// RecordAttempt evaluates an attempt and applies it under a
// per-(student, competence) lock. The state update and the revision
// reschedule commit together or not at all; the unlock cascade and the
// path and event bookkeeping follow the commit.
//
// An attempt that fails validation is not an error: the outcome carries
// the unvalidated evaluation and the unchanged state.
//
// A concurrent write on the same state surfaces as an error matching
// mastery.ErrConcurrencyConflict; the attempt is not retried.
func (e *Engine) RecordAttempt(ctx context.Context, a mastery.AttemptResult) (*AttemptOutcome, error) {
	if err := e.checkStudent(ctx, a.StudentID); err != nil {
		return nil, err
	}
	if _, err := e.checkCompetence(a.CompetenceCode); err != nil {
		return nil, err
	}
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = e.now()
	}

	ev := e.evaluator.Evaluate(a)

	unlock, err := e.locker.Lock(ctx, lock.Key(a.StudentID, a.CompetenceCode))
	if err != nil {
		return nil, fmt.Errorf("lock competence state: %w", err)
	}
	defer unlock()

	prev, err := e.loadState(ctx, a.StudentID, a.CompetenceCode)
	if err != nil {
		return nil, err
	}
	out := &AttemptOutcome{Evaluation: ev, NewState: prev}
	if !ev.Validated {
		e.log.Debug("attempt not validated", "student_id", a.StudentID, "competence", a.CompetenceCode, "reason", ev.Reason)
		e.appendAttempt(ctx, a, ev)
		return out, nil
	}

	// Materialize the student's path before progress moves, so the
	// cascade below sees the entries as they stood.
	if _, err := e.path.Entry(ctx, a.StudentID, a.CompetenceCode); err != nil {
		e.log.Warn("load path entry failed", "student_id", a.StudentID, "competence", a.CompetenceCode, "error", err)
	}

	next, tr := mastery.ApplyEvaluation(prev, ev, ev.PassThreshold, e.rules)
	var revision *spacedrep.RevisionItem
	err = e.tx.InTx(ctx, func(ctx context.Context, states mastery.StateRepo, revisions spacedrep.ItemRepo) error {
		if err := states.Put(ctx, next, prev.Version); err != nil {
			return err
		}
		sched := e.scheduler.WithRepo(revisions)
		var err error
		if ev.Passed {
			revision, err = sched.OnSuccess(ctx, a.StudentID, a.CompetenceCode, next.ConsecutiveSuccesses, ev.ID, ev.EvaluatedAt)
		} else {
			revision, err = sched.OnFailure(ctx, a.StudentID, a.CompetenceCode, next.ConsecutiveFailures, ev.ID, ev.EvaluatedAt)
		}
		if err != nil {
			return fmt.Errorf("schedule revision: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, mastery.ErrConcurrencyConflict) {
			e.log.Warn("competence state conflict", "student_id", a.StudentID, "competence", a.CompetenceCode, "error", err)
			return nil, err
		}
		return nil, fmt.Errorf("record attempt: %w", err)
	}
	out.NewState = next
	out.Transition = tr
	out.Revision = revision

	e.appendAttempt(ctx, a, ev)
	if tr != nil {
		e.log.Info("mastery level changed",
			"student_id", a.StudentID, "competence", a.CompetenceCode,
			"from", tr.From, "to", tr.To, "trigger", tr.Trigger)
		if e.events != nil {
			if err := e.events.AppendTransition(ctx, *tr, ev); err != nil {
				e.log.Warn("append mastery event failed", "student_id", a.StudentID, "competence", a.CompetenceCode, "error", err)
			}
		}
	}

	e.updatePathEntry(ctx, next, tr)

	if next.ProgressPercent > prev.ProgressPercent {
		unlocked, err := e.path.OnMastered(ctx, a.StudentID, a.CompetenceCode)
		if err != nil {
			e.log.Warn("unlock cascade failed", "student_id", a.StudentID, "competence", a.CompetenceCode, "error", err)
		} else if len(unlocked) > 0 {
			e.log.Info("competences unlocked", "student_id", a.StudentID, "from", a.CompetenceCode, "unlocked", unlocked)
			out.Unlocked = unlocked
		}
	}
	return out, nil
}

// appendAttempt records an attempt that was applied or rejected by
// validation. Attempts that failed to commit leave no event.
func (e *Engine) appendAttempt(ctx context.Context, a mastery.AttemptResult, ev mastery.AttemptEvaluation) {
	if e.events == nil {
		return
	}
	if err := e.events.AppendAttempt(ctx, a, ev); err != nil {
		e.log.Warn("append attempt event failed", "student_id", a.StudentID, "competence", a.CompetenceCode, "error", err)
	}
}

// updatePathEntry keeps the cached learning-path entry in step with the
// state: the first attempt on an available competence starts it, and
// mastery completes it. Entries are a cache, so failures are only logged.
func (e *Engine) updatePathEntry(ctx context.Context, s mastery.CompetenceState, tr *mastery.StateTransition) {
	entry, err := e.path.Entry(ctx, s.StudentID, s.CompetenceCode)
	if err != nil {
		e.log.Warn("load path entry failed", "student_id", s.StudentID, "competence", s.CompetenceCode, "error", err)
		return
	}
	if entry.Status == learningpath.StatusAvailable {
		if entry, err = e.path.MarkInProgress(ctx, s.StudentID, s.CompetenceCode); err != nil {
			e.log.Warn("start path entry failed", "student_id", s.StudentID, "competence", s.CompetenceCode, "error", err)
			return
		}
	}
	if tr != nil && tr.Mastered() && entry.Status == learningpath.StatusInProgress {
		if _, err := e.path.MarkCompleted(ctx, s.StudentID, s.CompetenceCode); err != nil {
			e.log.Warn("complete path entry failed", "student_id", s.StudentID, "competence", s.CompetenceCode, "error", err)
		}
	}
}
