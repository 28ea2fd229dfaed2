package mastery

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryRepo_PutGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()

	if _, ok, err := repo.Get(ctx, "s1", "c1"); err != nil || ok {
		t.Fatalf("Get on empty repo: ok=%v err=%v", ok, err)
	}

	s := NewState("s1", "c1")
	s, _ = ApplyEvaluation(s, validEval(90, baseTime), 70, DefaultLevelRules())
	if err := repo.Put(ctx, s, 0); err != nil {
		t.Fatalf("Put new state: %v", err)
	}

	got, ok, err := repo.Get(ctx, "s1", "c1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Version != 1 || got.Level != LevelDiscovering {
		t.Errorf("got %+v", got)
	}
}

func TestMemoryRepo_VersionConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()

	s := NewState("s1", "c1")
	s.Version = 1
	if err := repo.Put(ctx, s, 0); err != nil {
		t.Fatal(err)
	}

	stale := s
	stale.Version = 2
	stale.TotalAttempts = 99
	err := repo.Put(ctx, stale, 0)
	if !errors.Is(err, ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected *ConflictError, got %T", err)
	}
	if conflict.Expected != 0 || conflict.Actual != 1 {
		t.Errorf("conflict = %+v, want expected 0 actual 1", conflict)
	}

	got, _, _ := repo.Get(ctx, "s1", "c1")
	if got.TotalAttempts == 99 {
		t.Error("conflicting write must not be stored")
	}

	if err := repo.Put(ctx, stale, 1); err != nil {
		t.Errorf("Put with matching version: %v", err)
	}
}

func TestMemoryRepo_ListByStudent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	for _, k := range []struct{ student, code string }{
		{"s1", "b"}, {"s1", "a"}, {"s2", "a"},
	} {
		s := NewState(k.student, k.code)
		s.ProgressPercent = len(k.code) * 10
		s.Version = 1
		if err := repo.Put(ctx, s, 0); err != nil {
			t.Fatal(err)
		}
	}

	states, err := repo.ListByStudent(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 2 || states[0].CompetenceCode != "a" || states[1].CompetenceCode != "b" {
		t.Errorf("ListByStudent = %+v, want a, b", states)
	}

	progress := ProgressOf(states)
	if progress["a"] != 10 || progress["b"] != 10 || len(progress) != 2 {
		t.Errorf("ProgressOf = %v", progress)
	}
}

func TestLevelNavigation(t *testing.T) {
	if LevelNotStarted.Next() != LevelDiscovering || LevelMastering.Next() != LevelMastered {
		t.Error("Next broken")
	}
	if LevelMastered.Next() != LevelMastered {
		t.Error("mastered should be terminal")
	}
	if LevelDiscovering.Prev() != LevelDiscovering || LevelMastering.Prev() != LevelPracticing {
		t.Error("Prev broken")
	}
	if _, err := ParseLevel("bogus"); err == nil {
		t.Error("expected error for unknown level")
	}
	if l, err := ParseLevel("mastering"); err != nil || l != LevelMastering {
		t.Errorf("ParseLevel(mastering) = %s, %v", l, err)
	}
}
