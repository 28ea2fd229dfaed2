package spacedrep

import "time"

// Status is the lifecycle status of a revision item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
)

// History actions.
const (
	ActionFailure   = "failure"
	ActionSuccess   = "success"
	ActionPostponed = "postponed"
	ActionCancelled = "cancelled"
)

// HistoryEntry records one scheduling decision on an item.
type HistoryEntry struct {
	At           time.Time `json:"at"`
	Action       string    `json:"action"`
	ScheduledFor time.Time `json:"scheduled_for"`
	EvaluationID string    `json:"evaluation_id,omitempty"`
	Reason       string    `json:"reason,omitempty"`
}

// RevisionItem schedules the next revision of one competence for one student.
// Priority is not stored; it is computed on read by Priority.
type RevisionItem struct {
	ID                   string         `json:"id"`
	StudentID            string         `json:"student_id"`
	CompetenceCode       string         `json:"competence_code"`
	Status               Status         `json:"status"`
	ScheduledFor         time.Time      `json:"scheduled_for"`
	FailureCount         int            `json:"failure_count"`
	ConsecutiveSuccesses int            `json:"consecutive_successes"`
	LastEvaluationID     string         `json:"last_evaluation_id,omitempty"`
	History              []HistoryEntry `json:"history"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// IsActive reports whether the item still takes part in scheduling.
func (it *RevisionItem) IsActive() bool {
	return it.Status == StatusPending
}

// IsDue returns true if the item is pending and at or past its date.
func (it *RevisionItem) IsDue(asOf time.Time) bool {
	return it.IsActive() && !asOf.Before(it.ScheduledFor)
}

// OverdueDays returns how many days past due the item is. Returns 0 if
// not yet due.
func (it *RevisionItem) OverdueDays(asOf time.Time) float64 {
	if asOf.Before(it.ScheduledFor) {
		return 0
	}
	return asOf.Sub(it.ScheduledFor).Hours() / 24.0
}

// Priority ranks due items: overdue and often-failed items come first,
// and curriculum authors can bias a competence upward through weight.
func Priority(it RevisionItem, asOf time.Time, weight float64) float64 {
	return it.OverdueDays(asOf)*2 + float64(it.FailureCount)*3 + weight
}

func (it *RevisionItem) record(at time.Time, action, evalID, reason string) {
	it.History = append(it.History, HistoryEntry{
		At:           at,
		Action:       action,
		ScheduledFor: it.ScheduledFor,
		EvaluationID: evalID,
		Reason:       reason,
	})
	it.UpdatedAt = at
}

// clone returns a copy that shares no history backing array with it.
func (it RevisionItem) clone() RevisionItem {
	it.History = append([]HistoryEntry(nil), it.History...)
	return it
}
