package pgstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yous2911/fastrevedkids-sub011/internal/learningpath"
	"github.com/yous2911/fastrevedkids-sub011/internal/mastery"
	"github.com/yous2911/fastrevedkids-sub011/internal/spacedrep"
	"github.com/yous2911/fastrevedkids-sub011/internal/store"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// openTestStore connects to REVEDKIDS_TEST_POSTGRES_URL or skips. Tests
// use random student IDs so they can share one database.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("REVEDKIDS_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("REVEDKIDS_TEST_POSTGRES_URL not set")
	}
	s, err := Open(context.Background(), url, 4, 0)
	require.NoError(t, err)
	s.now = func() time.Time { return t0 }
	t.Cleanup(s.Close)
	return s
}

func TestParseURL(t *testing.T) {
	_, err := ParseURL("")
	assert.Error(t, err)

	cfg, err := ParseURL("postgres://u:p@localhost:5432/revedkids")
	require.NoError(t, err)
	assert.Equal(t, "revedkids", cfg.ConnConfig.Database)
}

func TestEventQuery(t *testing.T) {
	query, args := eventQuery("SELECT x FROM t", "s1", "CP.MA.N1.1", store.QueryOpts{After: 3, Limit: 10})
	assert.Equal(t, "SELECT x FROM t WHERE student_id = $1 AND competence_code = $2 AND sequence > $3 ORDER BY sequence DESC LIMIT 10", query)
	assert.Equal(t, []any{"s1", "CP.MA.N1.1", int64(3)}, args)
}

func TestStateRepo(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).States()
	student := uuid.NewString()

	s := mastery.NewState(student, "CP.MA.N1.1")
	s.Level = mastery.LevelDiscovering
	s.ProgressPercent = 10
	s.FirstAttemptAt = t0
	s.LastAttemptAt = t0
	s.Version = 1
	require.NoError(t, repo.Put(ctx, s, 0))

	err := repo.Put(ctx, s, 0)
	var conflict *mastery.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(1), conflict.Actual)

	s.Version = 2
	s.ProgressPercent = 20
	require.NoError(t, repo.Put(ctx, s, 1))

	got, ok, err := repo.Get(ctx, student, "CP.MA.N1.1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 20, got.ProgressPercent)
	assert.Equal(t, int64(2), got.Version)

	list, err := repo.ListByStudent(ctx, student)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRevisionRepo_OnePendingPerPair(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Revisions()
	sched := spacedrep.NewScheduler(repo, spacedrep.DefaultConfig(), nil)
	student := uuid.NewString()

	first, err := sched.OnFailure(ctx, student, "CP.MA.N1.4", 1, "ev-1", t0)
	require.NoError(t, err)
	second, err := sched.OnFailure(ctx, student, "CP.MA.N1.4", 2, "ev-2", t0)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 48*time.Hour, second.ScheduledFor.Sub(t0))

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, got.History, 2)

	_, err = repo.Get(ctx, uuid.NewString())
	var nf *spacedrep.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestPathRepo(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Paths()
	student := uuid.NewString()

	require.NoError(t, repo.Save(ctx,
		learningpath.Entry{StudentID: student, CompetenceCode: "CP.MA.N1.2", Status: learningpath.StatusLocked, BlockingReasons: []string{"CP.MA.N1.1"}, OrderIndex: 1, UpdatedAt: t0},
		learningpath.Entry{StudentID: student, CompetenceCode: "CP.MA.N1.1", Status: learningpath.StatusAvailable, OrderIndex: 0, UpdatedAt: t0},
	))

	entries, err := repo.ListByStudent(ctx, student)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "CP.MA.N1.1", entries[0].CompetenceCode)
	assert.Nil(t, entries[0].BlockingReasons)
	assert.Equal(t, []string{"CP.MA.N1.1"}, entries[1].BlockingReasons)
}

func TestEventRepo(t *testing.T) {
	ctx := context.Background()
	events := openTestStore(t).Events()
	student := uuid.NewString()

	ev := mastery.AttemptEvaluation{ID: "ev-1", Validated: true, Passed: true, Composite: 88}
	a := mastery.AttemptResult{StudentID: student, CompetenceCode: "CP.FR.G1.1", SubmittedAt: t0}
	require.NoError(t, events.AppendAttempt(ctx, a, ev))
	require.NoError(t, events.AppendTransition(ctx, mastery.StateTransition{
		StudentID: student, CompetenceCode: "CP.FR.G1.1",
		From: mastery.LevelNotStarted, To: mastery.LevelDiscovering, Trigger: mastery.TriggerFirstAttempt,
	}, ev))

	attempts, err := events.AttemptEvents(ctx, student, "", store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	transitions, err := events.MasteryEvents(ctx, student, "CP.FR.G1.1", store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Greater(t, transitions[0].Sequence, attempts[0].Sequence)
}

func TestStudentRepo(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Students()
	id := uuid.NewString()

	ok, err := repo.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	st, err := repo.Add(ctx, id, "Noé")
	require.NoError(t, err)
	assert.Equal(t, "Noé", st.DisplayName)

	ok, err = repo.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInTx_RollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	student := uuid.NewString()
	boom := errors.New("schedule failed")

	state := mastery.NewState(student, "CP.MA.N1.1")
	state.Version = 1
	revID := uuid.NewString()
	err := s.InTx(ctx, func(ctx context.Context, states mastery.StateRepo, revisions spacedrep.ItemRepo) error {
		if err := states.Put(ctx, state, 0); err != nil {
			return err
		}
		if err := revisions.Save(ctx, spacedrep.RevisionItem{
			ID: revID, StudentID: student, CompetenceCode: "CP.MA.N1.1",
			Status: spacedrep.StatusPending, ScheduledFor: t0, CreatedAt: t0, UpdatedAt: t0,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, ok, err := s.States().Get(ctx, student, "CP.MA.N1.1")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = s.Revisions().Get(ctx, revID)
	var nf *spacedrep.NotFoundError
	assert.ErrorAs(t, err, &nf)

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, states mastery.StateRepo, _ spacedrep.ItemRepo) error {
		return states.Put(ctx, state, 0)
	}))
	_, ok, err = s.States().Get(ctx, student, "CP.MA.N1.1")
	require.NoError(t, err)
	assert.True(t, ok)
}
