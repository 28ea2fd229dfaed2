package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yous2911/fastrevedkids-sub011/internal/spacedrep"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, spacedrep.DefaultConfig(), cfg.Schedule())
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"REVEDKIDS_STORE":                       "postgres",
		"REVEDKIDS_POSTGRES_URL":                "postgres://localhost/revedkids",
		"REVEDKIDS_POSTGRES_MAX_CONNS":          "4",
		"REVEDKIDS_REDIS_URL":                   "redis://localhost:6379/0",
		"REVEDKIDS_LOG_MODE":                    "dev",
		"REVEDKIDS_CURRICULUM":                  "/etc/revedkids/curriculum.yaml",
		"REVEDKIDS_REQUIRE_REGISTERED_STUDENTS": "true",
		"REVEDKIDS_REVISION_BASE_DELAY":         "12h",
		"REVEDKIDS_REVISION_GROWTH_FACTOR":      "2.5",
	})
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, "postgres://localhost/revedkids", cfg.Postgres.URL)
	assert.Equal(t, 4, cfg.Postgres.MaxConns)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "dev", cfg.LogMode)
	assert.Equal(t, "/etc/revedkids/curriculum.yaml", cfg.Curriculum)
	assert.True(t, cfg.RequireRegisteredStudents)
	assert.Equal(t, 12*time.Hour, cfg.Schedule().BaseDelay)
	assert.InDelta(t, 2.5, cfg.Schedule().GrowthFactor, 1e-9)
	assert.Equal(t, 14*24*time.Hour, cfg.Schedule().MaxDelay)
}

func TestLoadFrom_ParseError(t *testing.T) {
	_, err := LoadFrom(map[string]string{"REVEDKIDS_LOCK_TTL": "soon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   []string
	}{
		{"default is valid", func(*Config) {}, nil},
		{"postgres without url", func(c *Config) { c.Store = StorePostgres }, []string{"REVEDKIDS_POSTGRES_URL is required"}},
		{"unknown store", func(c *Config) { c.Store = "mysql" }, []string{`unknown store "mysql"`}},
		{"unknown log mode", func(c *Config) { c.LogMode = "verbose" }, []string{`unknown log mode "verbose"`}},
		{"bad schedule", func(c *Config) { c.Revision.GrowthFactor = 0.5 }, []string{"revision schedule"}},
		{"several problems", func(c *Config) {
			c.LockTTL = 0
			c.PathSnapshotKeep = 0
		}, []string{"lock TTL", "path snapshot keep"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, w := range tt.want {
				assert.Contains(t, err.Error(), w)
			}
		})
	}
}

func TestLoad_ProcessEnv(t *testing.T) {
	t.Setenv("REVEDKIDS_LOG_MODE", "dev")
	t.Setenv("REVEDKIDS_PATH_SNAPSHOT_KEEP", "2")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.LogMode)
	assert.Equal(t, 2, cfg.PathSnapshotKeep)
}
