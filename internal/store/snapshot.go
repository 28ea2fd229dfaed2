package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/yous2911/fastrevedkids-sub011/internal/learningpath"
)

// pathSnapshotVersion is bumped when PathSnapshotData changes shape.
const pathSnapshotVersion = 1

// PathSnapshotData is the full learning path of one student.
type PathSnapshotData struct {
	Version int                  `json:"version"`
	Entries []learningpath.Entry `json:"entries"`
}

// PathSnapshot is a point-in-time capture of a student's learning path.
type PathSnapshot struct {
	ID        int
	StudentID string
	Sequence  int64
	Timestamp time.Time
	Data      PathSnapshotData
}

// PathRepo implements learningpath.EntryRepo on top of per-student
// snapshots: every Save writes a new snapshot holding the whole path, and
// reads come from the latest one. Older snapshots are pruned down to the
// store's keep count.
type PathRepo struct {
	store *Store
}

var _ learningpath.EntryRepo = (*PathRepo)(nil)

func (r *PathRepo) Get(ctx context.Context, studentID, code string) (learningpath.Entry, bool, error) {
	snap, err := r.Latest(ctx, studentID)
	if err != nil || snap == nil {
		return learningpath.Entry{}, false, err
	}
	for _, e := range snap.Data.Entries {
		if e.CompetenceCode == code {
			return e, true, nil
		}
	}
	return learningpath.Entry{}, false, nil
}

func (r *PathRepo) ListByStudent(ctx context.Context, studentID string) ([]learningpath.Entry, error) {
	snap, err := r.Latest(ctx, studentID)
	if err != nil || snap == nil {
		return nil, err
	}
	entries := snap.Data.Entries
	learningpath.SortEntries(entries)
	return entries, nil
}

// Save merges entries into each affected student's latest snapshot and
// writes the result as a new snapshot.
func (r *PathRepo) Save(ctx context.Context, entries ...learningpath.Entry) error {
	r.store.pathMu.Lock()
	defer r.store.pathMu.Unlock()

	byStudent := make(map[string][]learningpath.Entry)
	var order []string
	for _, e := range entries {
		if _, ok := byStudent[e.StudentID]; !ok {
			order = append(order, e.StudentID)
		}
		byStudent[e.StudentID] = append(byStudent[e.StudentID], e)
	}

	for _, studentID := range order {
		if err := r.saveStudent(ctx, studentID, byStudent[studentID]); err != nil {
			return err
		}
	}
	return nil
}

func (r *PathRepo) saveStudent(ctx context.Context, studentID string, changed []learningpath.Entry) error {
	latest, err := r.Latest(ctx, studentID)
	if err != nil {
		return err
	}

	merged := make(map[string]learningpath.Entry)
	if latest != nil {
		for _, e := range latest.Data.Entries {
			merged[e.CompetenceCode] = e
		}
	}
	for _, e := range changed {
		merged[e.CompetenceCode] = e
	}
	data := PathSnapshotData{Version: pathSnapshotVersion, Entries: make([]learningpath.Entry, 0, len(merged))}
	for _, e := range merged {
		data.Entries = append(data.Entries, e)
	}
	learningpath.SortEntries(data.Entries)

	seqNum, err := r.store.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal path snapshot: %w", err)
	}

	b := insertQuery(tablePathSnapshots).
		Columns("student_id", "sequence", "timestamp", "data").
		Values(studentID, seqNum, utc(r.store.now()), string(raw))
	query, args := b.Query()
	if _, err := r.store.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save path snapshot: %w", err)
	}
	return r.Prune(ctx, studentID, r.store.keep)
}

// Latest returns the student's most recent snapshot, or nil if none exist.
func (r *PathRepo) Latest(ctx context.Context, studentID string) (*PathSnapshot, error) {
	sel := selectQuery(tablePathSnapshots, "id", "student_id", "sequence", "timestamp", "data").
		Where(entsql.EQ("student_id", studentID)).
		OrderBy(entsql.Desc("sequence")).
		Limit(1)
	query, args := sel.Query()

	var (
		snap PathSnapshot
		raw  []byte
	)
	err := r.store.db.QueryRowContext(ctx, query, args...).
		Scan(&snap.ID, &snap.StudentID, &snap.Sequence, &snap.Timestamp, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest path snapshot: %w", err)
	}
	if err := json.Unmarshal(raw, &snap.Data); err != nil {
		return nil, fmt.Errorf("unmarshal path snapshot: %w", err)
	}
	return &snap, nil
}

// Prune deletes all but the student's keep most recent snapshots.
func (r *PathRepo) Prune(ctx context.Context, studentID string, keep int) error {
	// Find the threshold: the sequence of the (keep+1)th most recent snapshot.
	sel := selectQuery(tablePathSnapshots, "sequence").
		Where(entsql.EQ("student_id", studentID)).
		OrderBy(entsql.Desc("sequence")).
		Offset(keep).
		Limit(1)
	query, args := sel.Query()

	var threshold int64
	err := r.store.db.QueryRowContext(ctx, query, args...).Scan(&threshold)
	if errors.Is(err, sql.ErrNoRows) {
		return nil // fewer than keep snapshots exist
	}
	if err != nil {
		return fmt.Errorf("query path snapshots for prune: %w", err)
	}

	del := entsql.Dialect(dialect.SQLite).Delete(tablePathSnapshots).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.LTE("sequence", threshold),
		))
	query, args = del.Query()
	if _, err := r.store.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("prune path snapshots: %w", err)
	}
	return nil
}
