package learningpath

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/yous2911/fastrevedkids-sub011/internal/mastery"
)

func summarize(recs []Recommendation) []string {
	var out []string
	for _, r := range recs {
		out = append(out, string(r.Kind)+":"+r.CompetenceCode())
	}
	return out
}

func TestRecommend_NewSkillsOnly(t *testing.T) {
	f := newFixture(t)
	recs, err := f.builder.Recommend(context.Background(), "s1", t0, 10)
	if err != nil {
		t.Fatal(err)
	}
	// Equal depth: the recommended weight on lines2 puts it first, then
	// topological order.
	want := []string{"new_skill:" + lines2, "new_skill:" + lines1, "new_skill:" + numbers1}
	if got := summarize(recs); !slices.Equal(got, want) {
		t.Errorf("Recommend = %v, want %v", got, want)
	}
	for _, r := range recs {
		if r.Entry == nil || r.Revision != nil {
			t.Errorf("new skill recommendation should carry only an entry: %+v", r)
		}
	}
}

func TestRecommend_InterleavesRevisions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// numbers1: 2 failures, due 3 days ago -> priority 3*2 + 2*3 = 12
	// lines1:   1 failure,  due 4 days ago -> priority 4*2 + 1*3 = 11
	if _, err := f.scheduler.OnFailure(ctx, "s1", numbers1, 2, "ev-1", t0.Add(-5*24*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, err := f.scheduler.OnFailure(ctx, "s1", lines1, 1, "ev-2", t0.Add(-5*24*time.Hour)); err != nil {
		t.Fatal(err)
	}

	recs, err := f.builder.Recommend(ctx, "s1", t0, 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"new_skill:" + lines2, "revision:" + numbers1, "revision:" + lines1}
	if got := summarize(recs); !slices.Equal(got, want) {
		t.Errorf("Recommend = %v, want %v", got, want)
	}
	if recs[1].Revision == nil || recs[1].Revision.Priority != 12 {
		t.Errorf("revision priority = %+v, want 12", recs[1].Revision)
	}

	recs, _ = f.builder.Recommend(ctx, "s1", t0, 2)
	want = []string{"new_skill:" + lines2, "revision:" + numbers1}
	if got := summarize(recs); !slices.Equal(got, want) {
		t.Errorf("Recommend(max 2) = %v, want %v", got, want)
	}
}

func TestRecommend_AlternatesThenAppendsRemainder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.scheduler.OnFailure(ctx, "s1", numbers1, 1, "ev-1", t0.Add(-48*time.Hour)); err != nil {
		t.Fatal(err)
	}
	recs, err := f.builder.Recommend(ctx, "s1", t0, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"new_skill:" + lines2, "revision:" + numbers1, "new_skill:" + lines1}
	if got := summarize(recs); !slices.Equal(got, want) {
		t.Errorf("Recommend = %v, want %v", got, want)
	}
}

func TestRecommend_ExcludesMasteredSkippedAndLocked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.setProgress(t, lines2, 100, mastery.LevelMastered)
	if _, err := f.builder.Skip(ctx, "s1", lines1); err != nil {
		t.Fatal(err)
	}

	recs, err := f.builder.Recommend(ctx, "s1", t0, 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"new_skill:" + numbers1}
	if got := summarize(recs); !slices.Equal(got, want) {
		t.Errorf("Recommend = %v, want %v", got, want)
	}
}

func TestRecommend_NotYetDueRevisionsHideSkill(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.scheduler.OnSuccess(ctx, "s1", numbers1, 1, "ev-1", t0); err != nil {
		t.Fatal(err)
	}
	recs, err := f.builder.Recommend(ctx, "s1", t0, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range recs {
		if r.CompetenceCode() == numbers1 {
			t.Errorf("%s has a pending revision and should not be recommended: %+v", numbers1, r)
		}
	}
}
