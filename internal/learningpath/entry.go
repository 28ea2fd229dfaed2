package learningpath

import (
	"fmt"
	"time"

	"github.com/yous2911/fastrevedkids-sub011/internal/spacedrep"
)

// Status is the learning-path status of one competence for one student.
type Status string

const (
	StatusLocked     Status = "locked"
	StatusAvailable  Status = "available"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusSkipped    Status = "skipped"
)

// transitions lists the allowed moves out of each status.
var transitions = map[Status][]Status{
	StatusLocked:     {StatusAvailable},
	StatusAvailable:  {StatusInProgress, StatusSkipped, StatusLocked},
	StatusInProgress: {StatusCompleted, StatusSkipped, StatusLocked},
}

// CanTransition reports whether an entry may move from s to to.
func (s Status) CanTransition(to Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Entry is the derived learning-path record of one competence for one
// student. It is a cache: it can always be rebuilt from the graph and the
// competence states.
type Entry struct {
	StudentID       string    `json:"student_id"`
	CompetenceCode  string    `json:"competence_code"`
	Status          Status    `json:"status"`
	BlockingReasons []string  `json:"blocking_reasons,omitempty"`
	OrderIndex      int       `json:"order_index"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TransitionError reports a status change the state machine does not allow.
type TransitionError struct {
	StudentID      string
	CompetenceCode string
	From           Status
	To             Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("learning path %s/%s: cannot move from %s to %s",
		e.StudentID, e.CompetenceCode, e.From, e.To)
}

// Kind tells new-skill recommendations from revisions.
type Kind string

const (
	KindNewSkill Kind = "new_skill"
	KindRevision Kind = "revision"
)

// Recommendation is one item of a recommended path. Exactly one of Entry
// and Revision is set, according to Kind.
type Recommendation struct {
	Kind     Kind               `json:"kind"`
	Entry    *Entry             `json:"entry,omitempty"`
	Revision *spacedrep.DueItem `json:"revision,omitempty"`
}

// CompetenceCode returns the code the recommendation is about.
func (r Recommendation) CompetenceCode() string {
	if r.Entry != nil {
		return r.Entry.CompetenceCode
	}
	if r.Revision != nil {
		return r.Revision.CompetenceCode
	}
	return ""
}
