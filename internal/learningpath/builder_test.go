package learningpath

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/yous2911/fastrevedkids-sub011/internal/competence"
	"github.com/yous2911/fastrevedkids-sub011/internal/lock"
	"github.com/yous2911/fastrevedkids-sub011/internal/mastery"
	"github.com/yous2911/fastrevedkids-sub011/internal/spacedrep"
)

const (
	numbers1 = "CP.MA.N1.1"
	numbers2 = "CP.MA.N1.2" // requires numbers1 >= 80
	lines1   = "CP.FR.G1.1"
	lines2   = "CP.FR.G1.2" // recommended after lines1, weight 3
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	builder   *Builder
	states    *mastery.MemoryRepo
	scheduler *spacedrep.Scheduler
	entries   *MemoryRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	g, err := competence.Build(
		[]competence.Node{{Code: numbers1}, {Code: numbers2}, {Code: lines1}, {Code: lines2}},
		[]competence.Edge{
			{Target: numbers2, Source: numbers1, Kind: competence.EdgeRequired, Threshold: 80, Weight: 1},
			{Target: lines2, Source: lines1, Kind: competence.EdgeRecommended, Weight: 3},
		},
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	f := &fixture{
		states:    mastery.NewMemoryRepo(),
		scheduler: spacedrep.NewScheduler(spacedrep.NewMemoryRepo(), spacedrep.DefaultConfig(), g.RecommendedWeight),
		entries:   NewMemoryRepo(),
	}
	f.builder = NewBuilder(competence.NewRegistry(g), f.states, f.scheduler, f.entries)
	f.builder.now = func() time.Time { return t0 }
	return f
}

func (f *fixture) setProgress(t *testing.T, code string, progress int, level mastery.Level) {
	t.Helper()
	ctx := context.Background()
	s, ok, _ := f.states.Get(ctx, "s1", code)
	if !ok {
		s = mastery.NewState("s1", code)
	}
	expected := s.Version
	s.ProgressPercent = progress
	s.Level = level
	s.Version++
	if err := f.states.Put(ctx, s, expected); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func entryByCode(entries []Entry, code string) Entry {
	for _, e := range entries {
		if e.CompetenceCode == code {
			return e
		}
	}
	return Entry{}
}

func TestEntries_Materialize(t *testing.T) {
	f := newFixture(t)
	entries, err := f.builder.Entries(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}

	var codes []string
	for _, e := range entries {
		codes = append(codes, e.CompetenceCode)
	}
	if want := []string{lines1, lines2, numbers1, numbers2}; !slices.Equal(codes, want) {
		t.Errorf("order = %v, want %v", codes, want)
	}

	locked := entryByCode(entries, numbers2)
	if locked.Status != StatusLocked || !slices.Equal(locked.BlockingReasons, []string{numbers1}) {
		t.Errorf("%s = %+v, want locked by %s", numbers2, locked, numbers1)
	}
	for _, code := range []string{numbers1, lines1, lines2} {
		if e := entryByCode(entries, code); e.Status != StatusAvailable {
			t.Errorf("%s status = %s, want available", code, e.Status)
		}
	}

	stored, _ := f.entries.ListByStudent(context.Background(), "s1")
	if len(stored) != 4 {
		t.Errorf("stored %d entries, want 4", len(stored))
	}
}

func TestOnMastered_ThresholdUnlock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.builder.Entries(ctx, "s1"); err != nil {
		t.Fatal(err)
	}

	f.setProgress(t, numbers1, 60, mastery.LevelPracticing)
	unlocked, err := f.builder.OnMastered(ctx, "s1", numbers1)
	if err != nil {
		t.Fatal(err)
	}
	if len(unlocked) != 0 {
		t.Errorf("unlocked at 60%% = %v, want none", unlocked)
	}
	e, _, _ := f.entries.Get(ctx, "s1", numbers2)
	if e.Status != StatusLocked || !slices.Equal(e.BlockingReasons, []string{numbers1}) {
		t.Errorf("entry = %+v, want still locked by %s", e, numbers1)
	}

	f.setProgress(t, numbers1, 85, mastery.LevelMastering)
	unlocked, err = f.builder.OnMastered(ctx, "s1", numbers1)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(unlocked, []string{numbers2}) {
		t.Errorf("unlocked = %v, want [%s]", unlocked, numbers2)
	}
	e, _, _ = f.entries.Get(ctx, "s1", numbers2)
	if e.Status != StatusAvailable || len(e.BlockingReasons) != 0 {
		t.Errorf("entry = %+v, want available with no blockers", e)
	}

	again, _ := f.builder.OnMastered(ctx, "s1", numbers1)
	if len(again) != 0 {
		t.Errorf("second cascade unlocked %v, want none", again)
	}
}

func TestOnMastered_WithoutMaterializedEntries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setProgress(t, numbers1, 90, mastery.LevelMastered)

	unlocked, err := f.builder.OnMastered(ctx, "s1", numbers1)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(unlocked, []string{numbers2}) {
		t.Errorf("unlocked = %v, want [%s]", unlocked, numbers2)
	}
}

func TestOnMastered_RecommendedDependentNotReported(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setProgress(t, lines1, 100, mastery.LevelMastered)

	unlocked, err := f.builder.OnMastered(ctx, "s1", lines1)
	if err != nil {
		t.Fatal(err)
	}
	if len(unlocked) != 0 {
		t.Errorf("recommended edges never lock, got unlocked %v", unlocked)
	}
}

func TestOnMastered_UnknownCode(t *testing.T) {
	f := newFixture(t)
	_, err := f.builder.OnMastered(context.Background(), "s1", "CP.XX.0")
	var nf *competence.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("err = %v, want *competence.NotFoundError", err)
	}
}

func TestEntryStateMachine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.builder

	var te *TransitionError
	if _, err := b.MarkInProgress(ctx, "s1", numbers2); !errors.As(err, &te) {
		t.Fatalf("locked -> in_progress: err = %v, want TransitionError", err)
	}
	if te.From != StatusLocked || te.To != StatusInProgress {
		t.Errorf("TransitionError = %+v", te)
	}

	e, err := b.MarkInProgress(ctx, "s1", numbers1)
	if err != nil || e.Status != StatusInProgress {
		t.Fatalf("MarkInProgress: %+v, %v", e, err)
	}
	e, err = b.MarkCompleted(ctx, "s1", numbers1)
	if err != nil || e.Status != StatusCompleted {
		t.Fatalf("MarkCompleted: %+v, %v", e, err)
	}
	if _, err := b.Skip(ctx, "s1", numbers1); !errors.As(err, &te) {
		t.Errorf("completed -> skipped should fail, got %v", err)
	}

	if e, err = b.Skip(ctx, "s1", lines1); err != nil || e.Status != StatusSkipped {
		t.Errorf("Skip available: %+v, %v", e, err)
	}
	if _, err := b.MarkCompleted(ctx, "s1", lines2); !errors.As(err, &te) {
		t.Errorf("available -> completed should fail, got %v", err)
	}
	if _, err := b.MarkInProgress(ctx, "s1", "CP.XX.0"); err == nil {
		t.Error("unknown code should fail")
	}
}

func TestRelock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setProgress(t, numbers1, 85, mastery.LevelMastering)
	if _, err := f.builder.OnMastered(ctx, "s1", numbers1); err != nil {
		t.Fatal(err)
	}
	if _, err := f.builder.MarkInProgress(ctx, "s1", numbers2); err != nil {
		t.Fatal(err)
	}

	e, err := f.builder.Relock(ctx, "s1", numbers2, numbers1)
	if err != nil {
		t.Fatal(err)
	}
	if e.Status != StatusLocked || !slices.Equal(e.BlockingReasons, []string{numbers1}) {
		t.Errorf("relocked entry = %+v", e)
	}

	if _, err := f.builder.Relock(ctx, "s1", numbers1, "CP.XX.0"); err == nil {
		t.Error("unknown blocker should fail")
	}

	var te *TransitionError
	if _, err := f.builder.Relock(ctx, "s1", numbers2); !errors.As(err, &te) {
		t.Errorf("locked -> locked should fail, got %v", err)
	}
}

func TestStatusCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusLocked, StatusAvailable, true},
		{StatusLocked, StatusInProgress, false},
		{StatusAvailable, StatusInProgress, true},
		{StatusAvailable, StatusSkipped, true},
		{StatusAvailable, StatusLocked, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusSkipped, true},
		{StatusInProgress, StatusLocked, true},
		{StatusCompleted, StatusLocked, false},
		{StatusSkipped, StatusAvailable, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

// stallingRepo parks the first Get of one code until release is closed.
type stallingRepo struct {
	*MemoryRepo
	code    string
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (r *stallingRepo) Get(ctx context.Context, studentID, code string) (Entry, bool, error) {
	if code == r.code {
		r.once.Do(func() {
			close(r.entered)
			<-r.release
		})
	}
	return r.MemoryRepo.Get(ctx, studentID, code)
}

func TestOnMastered_ConcurrentCascadesIntoSharedDependent(t *testing.T) {
	const (
		left   = "CP.MA.A1"
		right  = "CP.MA.A2"
		shared = "CP.MA.A3" // requires left and right
	)
	g, err := competence.Build(
		[]competence.Node{{Code: left}, {Code: right}, {Code: shared}},
		[]competence.Edge{
			{Target: shared, Source: left, Kind: competence.EdgeRequired, Threshold: 80, Weight: 1},
			{Target: shared, Source: right, Kind: competence.EdgeRequired, Threshold: 80, Weight: 1},
		},
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ctx := context.Background()
	states := mastery.NewMemoryRepo()
	repo := &stallingRepo{
		MemoryRepo: NewMemoryRepo(),
		code:       shared,
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	sched := spacedrep.NewScheduler(spacedrep.NewMemoryRepo(), spacedrep.DefaultConfig(), nil)
	b := NewBuilder(competence.NewRegistry(g), states, sched, repo)

	if _, err := b.Entries(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	master := func(code string) {
		s := mastery.NewState("s1", code)
		s.ProgressPercent = 100
		s.Level = mastery.LevelMastered
		s.Version = 1
		if err := states.Put(ctx, s, 0); err != nil {
			t.Errorf("Put %s: %v", code, err)
		}
	}

	var leftUnlocked, rightUnlocked []string
	leftErr := make(chan error, 1)
	master(left)
	go func() {
		var err error
		leftUnlocked, err = b.OnMastered(ctx, "s1", left)
		leftErr <- err
	}()
	<-repo.entered

	rightErr := make(chan error, 1)
	master(right)
	go func() {
		var err error
		rightUnlocked, err = b.OnMastered(ctx, "s1", right)
		rightErr <- err
	}()
	// Give the second cascade every chance to overtake the parked one.
	time.Sleep(50 * time.Millisecond)
	close(repo.release)

	if err := <-leftErr; err != nil {
		t.Fatalf("OnMastered(%s): %v", left, err)
	}
	if err := <-rightErr; err != nil {
		t.Fatalf("OnMastered(%s): %v", right, err)
	}

	if got := slices.Concat(leftUnlocked, rightUnlocked); !slices.Equal(got, []string{shared}) {
		t.Errorf("unlocked = %v, want [%s] exactly once", got, shared)
	}
	e, _, _ := repo.MemoryRepo.Get(ctx, "s1", shared)
	if e.Status != StatusAvailable || len(e.BlockingReasons) != 0 {
		t.Errorf("%s entry = %s %v, want available with no blockers", shared, e.Status, e.BlockingReasons)
	}

	recs, err := b.Recommend(ctx, "s1", t0, 0)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range recs {
		if r.CompetenceCode() == shared {
			found = true
		}
	}
	if !found {
		t.Errorf("%s not recommended after both prerequisites were mastered", shared)
	}
}

func TestEntries_WaitsForPathLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	locker := lock.NewKeyedMutex()
	b := NewBuilder(f.builder.graphs, f.states, f.scheduler, f.entries, WithLocker(locker))

	unlock, err := locker.Lock(ctx, lock.PathKey("s1"))
	if err != nil {
		t.Fatal(err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := b.Entries(waitCtx, "s1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Entries while the path is locked: err = %v, want deadline exceeded", err)
	}
	unlock()

	if _, err := b.Entries(ctx, "s1"); err != nil {
		t.Errorf("Entries after unlock: %v", err)
	}
}
