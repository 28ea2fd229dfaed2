package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/yous2911/fastrevedkids-sub011/internal/mastery"
)

// sequenceCounter manages the global monotonic sequence number shared across
// all event types and path snapshots. Each kind lives in its own table, so
// per-table IDs can't establish cross-type ordering. This shared counter
// assigns a single increasing sequence to every record regardless of type,
// enabling:
//
//   - Cross-type ordering (did the level change come before or after an attempt?)
//   - Snapshot consistency (query all tables for sequence > snapshot.sequence)
//   - Append-only guarantees (events are never reordered)
//
// The mutex serializes within the process; the RETURNING clause makes the
// increment atomic at the database level.
type sequenceCounter struct {
	mu sync.Mutex
	db *sql.DB
}

// newSequenceCounter creates a counter and ensures the tracking table exists.
func newSequenceCounter(db *sql.DB) (*sequenceCounter, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	return &sequenceCounter{db: db}, nil
}

// Next atomically returns the next sequence number and increments the counter.
func (sc *sequenceCounter) Next(ctx context.Context) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var seq int64
	err := sc.db.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // most recent results to return (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// AttemptEvent records one evaluated attempt, validated or not.
type AttemptEvent struct {
	Sequence         int64                    `json:"sequence"`
	Timestamp        time.Time                `json:"timestamp"`
	EvaluationID     string                   `json:"evaluation_id"`
	StudentID        string                   `json:"student_id"`
	CompetenceCode   string                   `json:"competence_code"`
	ExerciseID       string                   `json:"exercise_id"`
	ExerciseFamily   string                   `json:"exercise_family,omitempty"`
	Validated        bool                     `json:"validated"`
	Passed           bool                     `json:"passed"`
	Composite        float64                  `json:"composite"`
	Reason           string                   `json:"reason,omitempty"`
	Profile          string                   `json:"profile"`
	ProfileVersion   string                   `json:"profile_version"`
	Axes             map[mastery.Axis]float64 `json:"axes,omitempty"`
	TimeSpentSeconds float64                  `json:"time_spent_seconds"`
	SubmittedAt      time.Time                `json:"submitted_at"`
}

// MasteryEvent records one mastery level change.
type MasteryEvent struct {
	Sequence       int64         `json:"sequence"`
	Timestamp      time.Time     `json:"timestamp"`
	StudentID      string        `json:"student_id"`
	CompetenceCode string        `json:"competence_code"`
	From           mastery.Level `json:"from"`
	To             mastery.Level `json:"to"`
	Trigger        string        `json:"trigger"`
	EvaluationID   string        `json:"evaluation_id"`
	Composite      float64       `json:"composite"`
}
