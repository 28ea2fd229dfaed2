// Package engine sequences one attempt through evaluation, the competence
// state update, the unlock cascade and revision scheduling, and serves
// the read-side queries built on them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yous2911/fastrevedkids-sub011/internal/competence"
	"github.com/yous2911/fastrevedkids-sub011/internal/learningpath"
	"github.com/yous2911/fastrevedkids-sub011/internal/lock"
	"github.com/yous2911/fastrevedkids-sub011/internal/mastery"
	"github.com/yous2911/fastrevedkids-sub011/internal/platform/logger"
	"github.com/yous2911/fastrevedkids-sub011/internal/spacedrep"
)

// EventLog is the append-only audit trail of attempts and level changes.
type EventLog interface {
	AppendAttempt(ctx context.Context, a mastery.AttemptResult, ev mastery.AttemptEvaluation) error
	AppendTransition(ctx context.Context, t mastery.StateTransition, ev mastery.AttemptEvaluation) error
}

// Options configures an Engine. Graphs, States, Revisions and Entries are
// required; everything else has a default.
type Options struct {
	Graphs    *competence.Registry
	States    mastery.StateRepo
	Revisions spacedrep.ItemRepo
	Entries   learningpath.EntryRepo

	Evaluator *mastery.Evaluator  // default: built-in scoring profile
	Rules     *mastery.LevelRules // default: mastery.DefaultLevelRules()
	Schedule  *spacedrep.Config   // default: spacedrep.DefaultConfig()
	Tx        Transactor          // default: staged writes over States and Revisions
	Locker    lock.Locker         // default: in-process lock.KeyedMutex
	Events    EventLog            // default: none
	Students  StudentDirectory    // default: accept any non-empty ID
	Logger    *logger.Logger      // default: discard
	Now       func() time.Time    // default: time.Now
}

// Engine is the adaptive learning engine.
type Engine struct {
	graphs    *competence.Registry
	states    mastery.StateRepo
	evaluator *mastery.Evaluator
	rules     mastery.LevelRules
	scheduler *spacedrep.Scheduler
	path      *learningpath.Builder
	tx        Transactor
	locker    lock.Locker
	events    EventLog
	students  StudentDirectory
	log       *logger.Logger
	now       func() time.Time
}

// New validates opts and assembles an engine.
func New(opts Options) (*Engine, error) {
	switch {
	case opts.Graphs == nil:
		return nil, errors.New("engine: graph registry is required")
	case opts.States == nil:
		return nil, errors.New("engine: competence state repository is required")
	case opts.Revisions == nil:
		return nil, errors.New("engine: revision item repository is required")
	case opts.Entries == nil:
		return nil, errors.New("engine: learning path repository is required")
	}
	if _, err := opts.Graphs.Current(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	rules := mastery.DefaultLevelRules()
	if opts.Rules != nil {
		rules = *opts.Rules
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("engine: level rules: %w", err)
	}
	schedule := spacedrep.DefaultConfig()
	if opts.Schedule != nil {
		schedule = *opts.Schedule
	}
	if err := schedule.Validate(); err != nil {
		return nil, fmt.Errorf("engine: revision schedule: %w", err)
	}

	e := &Engine{
		graphs:    opts.Graphs,
		states:    opts.States,
		evaluator: opts.Evaluator,
		rules:     rules,
		tx:        opts.Tx,
		locker:    opts.Locker,
		events:    opts.Events,
		students:  opts.Students,
		log:       opts.Logger,
		now:       opts.Now,
	}
	if e.evaluator == nil {
		e.evaluator = mastery.NewEvaluator(nil)
	}
	if e.tx == nil {
		e.tx = stagingTx{states: opts.States, revisions: opts.Revisions}
	}
	if e.locker == nil {
		e.locker = lock.NewKeyedMutex()
	}
	if e.log == nil {
		e.log = logger.Nop()
	}
	if e.now == nil {
		e.now = time.Now
	}

	e.scheduler = spacedrep.NewScheduler(opts.Revisions, schedule, e.recommendedWeight)
	e.path = learningpath.NewBuilder(opts.Graphs, opts.States, e.scheduler, opts.Entries, learningpath.WithLocker(e.locker))
	return e, nil
}

// recommendedWeight reads the weight from whichever graph is current.
func (e *Engine) recommendedWeight(code string) float64 {
	g, err := e.graphs.Current()
	if err != nil {
		return 0
	}
	return g.RecommendedWeight(code)
}

// Graph returns the graph currently served.
func (e *Engine) Graph() (*competence.Graph, error) {
	return e.graphs.Current()
}

// SwapGraph installs a new, fully built graph and returns its version.
func (e *Engine) SwapGraph(g *competence.Graph) int64 {
	v := e.graphs.Swap(g)
	e.log.Info("competence graph installed", "version", v, "competences", len(g.Nodes()))
	return v
}

// Rules returns the level rules in force.
func (e *Engine) Rules() mastery.LevelRules {
	return e.rules
}

func (e *Engine) checkStudent(ctx context.Context, studentID string) error {
	if studentID == "" {
		return &StudentNotFoundError{StudentID: studentID}
	}
	if e.students == nil {
		return nil
	}
	ok, err := e.students.Exists(ctx, studentID)
	if err != nil {
		return fmt.Errorf("look up student: %w", err)
	}
	if !ok {
		return &StudentNotFoundError{StudentID: studentID}
	}
	return nil
}

func (e *Engine) checkCompetence(code string) (*competence.Graph, error) {
	g, err := e.graphs.Current()
	if err != nil {
		return nil, err
	}
	if !g.Has(code) {
		return nil, &competence.NotFoundError{Code: code}
	}
	return g, nil
}
