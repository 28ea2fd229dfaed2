// Package config reads engine configuration from REVEDKIDS_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/yous2911/fastrevedkids-sub011/internal/spacedrep"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "REVEDKIDS_"

// Store backends.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config holds all engine configuration.
type Config struct {
	// Store selects the persistence backend: "sqlite" or "postgres".
	Store string `env:"STORE" envDefault:"sqlite"`

	// DBPath is the SQLite file. Empty means the XDG data directory.
	DBPath string `env:"DB"`

	Postgres PostgresConfig `envPrefix:"POSTGRES_"`

	// RedisURL enables the cross-process attempt lock when set.
	RedisURL string        `env:"REDIS_URL"`
	LockTTL  time.Duration `env:"LOCK_TTL" envDefault:"10s"`

	// Curriculum is a YAML curriculum file. Empty means the built-in seed.
	Curriculum string `env:"CURRICULUM"`

	// Scoring is a YAML file of scoring profiles and level rules. Empty
	// means the built-in defaults.
	Scoring string `env:"SCORING"`

	// LogMode is "prod" (JSON, info) or "dev" (console, debug).
	LogMode string `env:"LOG_MODE" envDefault:"prod"`

	// RequireRegisteredStudents rejects attempts from students missing
	// from the student directory.
	RequireRegisteredStudents bool `env:"REQUIRE_REGISTERED_STUDENTS" envDefault:"false"`

	// PathSnapshotKeep is how many learning-path snapshots SQLite keeps
	// per student.
	PathSnapshotKeep int `env:"PATH_SNAPSHOT_KEEP" envDefault:"5"`

	Revision RevisionConfig `envPrefix:"REVISION_"`
}

// PostgresConfig holds the PostgreSQL connection settings.
type PostgresConfig struct {
	URL      string `env:"URL"`
	MaxConns int    `env:"MAX_CONNS" envDefault:"10"`
	MinConns int    `env:"MIN_CONNS" envDefault:"0"`
}

// RevisionConfig holds the spaced-repetition spacing constants.
type RevisionConfig struct {
	BaseDelay    time.Duration `env:"BASE_DELAY" envDefault:"24h"`
	MaxDelay     time.Duration `env:"MAX_DELAY" envDefault:"336h"`
	BaseInterval time.Duration `env:"BASE_INTERVAL" envDefault:"48h"`
	GrowthFactor float64       `env:"GROWTH_FACTOR" envDefault:"1.8"`
	MaxInterval  time.Duration `env:"MAX_INTERVAL" envDefault:"4320h"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	sched := spacedrep.DefaultConfig()
	return Config{
		Store:            StoreSQLite,
		Postgres:         PostgresConfig{MaxConns: 10},
		LockTTL:          10 * time.Second,
		LogMode:          "prod",
		PathSnapshotKeep: 5,
		Revision: RevisionConfig{
			BaseDelay:    sched.BaseDelay,
			MaxDelay:     sched.MaxDelay,
			BaseInterval: sched.BaseInterval,
			GrowthFactor: sched.GrowthFactor,
			MaxInterval:  sched.MaxInterval,
		},
	}
}

// Load builds a Config from the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: EnvPrefix})
}

// LoadFrom builds a Config from environ, a map of full variable names.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Prefix: EnvPrefix, Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreSQLite:
	case StorePostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, fmt.Errorf("%sPOSTGRES_URL is required when %sSTORE=postgres", EnvPrefix, EnvPrefix))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q (want %q or %q)", c.Store, StoreSQLite, StorePostgres))
	}
	switch c.LogMode {
	case "prod", "dev":
	default:
		errs = append(errs, fmt.Errorf("unknown log mode %q (want \"prod\" or \"dev\")", c.LogMode))
	}
	if c.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("lock TTL must be positive, got %s", c.LockTTL))
	}
	if c.PathSnapshotKeep < 1 {
		errs = append(errs, fmt.Errorf("path snapshot keep must be at least 1, got %d", c.PathSnapshotKeep))
	}
	if err := c.Schedule().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("revision schedule: %w", err))
	}
	return errors.Join(errs...)
}

// Schedule returns the revision spacing as a scheduler config.
func (c Config) Schedule() spacedrep.Config {
	return spacedrep.Config{
		BaseDelay:    c.Revision.BaseDelay,
		MaxDelay:     c.Revision.MaxDelay,
		BaseInterval: c.Revision.BaseInterval,
		GrowthFactor: c.Revision.GrowthFactor,
		MaxInterval:  c.Revision.MaxInterval,
	}
}
