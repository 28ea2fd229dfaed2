// Package app assembles the engine from configuration: logger, store
// backend, curriculum graph, scoring profiles and attempt locker.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/yous2911/fastrevedkids-sub011/internal/competence"
	"github.com/yous2911/fastrevedkids-sub011/internal/config"
	"github.com/yous2911/fastrevedkids-sub011/internal/curriculum"
	"github.com/yous2911/fastrevedkids-sub011/internal/engine"
	"github.com/yous2911/fastrevedkids-sub011/internal/learningpath"
	"github.com/yous2911/fastrevedkids-sub011/internal/lock"
	"github.com/yous2911/fastrevedkids-sub011/internal/mastery"
	"github.com/yous2911/fastrevedkids-sub011/internal/platform/logger"
	"github.com/yous2911/fastrevedkids-sub011/internal/spacedrep"
	"github.com/yous2911/fastrevedkids-sub011/internal/store"
	"github.com/yous2911/fastrevedkids-sub011/internal/store/pgstore"
)

// EventReader reads the event log back.
type EventReader interface {
	AttemptEvents(ctx context.Context, studentID, code string, opts store.QueryOpts) ([]store.AttemptEvent, error)
	MasteryEvents(ctx context.Context, studentID, code string, opts store.QueryOpts) ([]store.MasteryEvent, error)
	RecentAccuracy(ctx context.Context, studentID, code string, lastN int) (float64, int, error)
}

// StudentRegistry is the student directory of either backend.
type StudentRegistry interface {
	Add(ctx context.Context, id, displayName string) (store.Student, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]store.Student, error)
}

// backend is the set of repositories one store provides.
type backend struct {
	states    mastery.StateRepo
	revisions spacedrep.ItemRepo
	entries   learningpath.EntryRepo
	tx        engine.Transactor
	events    interface {
		engine.EventLog
		EventReader
	}
	students StudentRegistry
	close    func() error
}

// App is a fully wired engine with the resources it holds.
type App struct {
	Config     config.Config
	Log        *logger.Logger
	Curriculum *curriculum.File
	Engine     *engine.Engine
	Events     EventReader
	Students   StudentRegistry

	closers []func() error
}

// New builds an App from cfg. A curriculum that fails structural checks
// is refused with its *competence.ConfigError.
func New(ctx context.Context, cfg config.Config, log *logger.Logger) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	a := &App{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	file, graph, err := loadCurriculum(cfg.Curriculum)
	if err != nil {
		return nil, err
	}
	a.Curriculum = file

	evaluator, rules, err := loadScoring(cfg.Scoring)
	if err != nil {
		return nil, err
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, b.close)
	a.Events = b.events
	a.Students = b.students

	locker, err := a.openLocker(ctx)
	if err != nil {
		return nil, err
	}

	schedule := cfg.Schedule()
	opts := engine.Options{
		Graphs:    competence.NewRegistry(graph),
		States:    b.states,
		Revisions: b.revisions,
		Entries:   b.entries,
		Tx:        b.tx,
		Evaluator: evaluator,
		Rules:     rules,
		Schedule:  &schedule,
		Locker:    locker,
		Events:    b.events,
		Logger:    log,
	}
	if cfg.RequireRegisteredStudents {
		opts.Students = b.students
	}
	a.Engine, err = engine.New(opts)
	if err != nil {
		return nil, err
	}

	log.Info("engine ready",
		"store", cfg.Store,
		"curriculum_version", file.Version,
		"competences", len(graph.Nodes()),
		"scoring_families", evaluator.Profiles().Families(),
		"shared_lock", cfg.RedisURL != "",
	)
	return a, nil
}

// Close releases every resource in reverse acquisition order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func loadCurriculum(path string) (*curriculum.File, *competence.Graph, error) {
	var (
		file *curriculum.File
		err  error
	)
	if path == "" {
		file, err = curriculum.Seed()
	} else {
		file, err = curriculum.Load(path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load curriculum: %w", err)
	}
	graph, err := file.Graph()
	if err != nil {
		return nil, nil, fmt.Errorf("build competence graph: %w", err)
	}
	return file, graph, nil
}

func loadScoring(path string) (*mastery.Evaluator, *mastery.LevelRules, error) {
	if path == "" {
		return mastery.NewEvaluator(nil), nil, nil
	}
	sc, err := mastery.LoadScoringConfig(path)
	if err != nil {
		return nil, nil, err
	}
	profiles, err := mastery.NewProfileSet(sc.Profiles...)
	if err != nil {
		return nil, nil, fmt.Errorf("scoring profiles: %w", err)
	}
	return mastery.NewEvaluator(profiles), &sc.Rules, nil
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	switch cfg.Store {
	case config.StorePostgres:
		s, err := pgstore.Open(ctx, cfg.Postgres.URL, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return &backend{
			states:    s.States(),
			revisions: s.Revisions(),
			entries:   s.Paths(),
			tx:        s,
			events:    s.Events(),
			students:  s.Students(),
			close:     func() error { s.Close(); return nil },
		}, nil

	default:
		path := cfg.DBPath
		if path == "" {
			p, err := store.DefaultDBPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		s, err := store.Open(path, store.WithSnapshotKeep(cfg.PathSnapshotKeep))
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return &backend{
			states:    s.States(),
			revisions: s.Revisions(),
			entries:   s.Paths(),
			tx:        s,
			events:    s.Events(),
			students:  s.Students(),
			close:     s.Close,
		}, nil
	}
}

func (a *App) openLocker(ctx context.Context) (lock.Locker, error) {
	if a.Config.RedisURL == "" {
		return lock.NewKeyedMutex(), nil
	}
	client, err := lock.NewRedisClient(ctx, a.Config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return lock.NewRedisLocker(client, lock.RedisOptions{TTL: a.Config.LockTTL}, a.Log), nil
}
