package learningpath

import (
	"context"
	"sort"
	"time"
)

// Recommend returns up to maxItems recommendations for the student as of
// asOf. New skills (unlocked, not mastered, never scheduled for revision)
// alternate with due revisions, starting with a new skill; when one list
// runs out the rest of the other follows. maxItems <= 0 returns everything.
func (b *Builder) Recommend(ctx context.Context, studentID string, asOf time.Time, maxItems int) ([]Recommendation, error) {
	v, entries, err := b.snapshot(ctx, studentID)
	if err != nil {
		return nil, err
	}
	active, err := b.scheduler.ActiveCodes(ctx, studentID)
	if err != nil {
		return nil, err
	}

	var fresh []Entry
	for _, e := range entries {
		if e.Status != StatusAvailable && e.Status != StatusInProgress {
			continue
		}
		if s, ok := v.states[e.CompetenceCode]; ok && s.IsMastered() {
			continue
		}
		if active[e.CompetenceCode] {
			continue
		}
		fresh = append(fresh, e)
	}
	g := v.graph
	sort.SliceStable(fresh, func(i, j int) bool {
		a, b := fresh[i].CompetenceCode, fresh[j].CompetenceCode
		if da, db := g.Depth(a), g.Depth(b); da != db {
			return da < db
		}
		if wa, wb := g.RecommendedWeight(a), g.RecommendedWeight(b); wa != wb {
			return wa > wb
		}
		return g.TopoIndex(a) < g.TopoIndex(b)
	})

	due, err := b.scheduler.DueItems(ctx, studentID, asOf, 0)
	if err != nil {
		return nil, err
	}

	limit := maxItems
	if limit <= 0 {
		limit = len(fresh) + len(due)
	}
	result := make([]Recommendation, 0, min(limit, len(fresh)+len(due)))
	i, j := 0, 0
	for len(result) < limit && (i < len(fresh) || j < len(due)) {
		takeNew := i < len(fresh) && (j >= len(due) || i <= j)
		if takeNew {
			e := fresh[i]
			result = append(result, Recommendation{Kind: KindNewSkill, Entry: &e})
			i++
			continue
		}
		d := due[j]
		result = append(result, Recommendation{Kind: KindRevision, Revision: &d})
		j++
	}
	return result, nil
}

// snapshot materializes the student's entries under the path lock and
// returns them with the progress they were derived from.
func (b *Builder) snapshot(ctx context.Context, studentID string) (*studentView, []Entry, error) {
	unlock, err := b.lockPath(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	v, err := b.load(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	entries, err := b.materialize(ctx, studentID, v)
	if err != nil {
		return nil, nil, err
	}
	return v, entries, nil
}
