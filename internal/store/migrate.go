package store

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table names.
const (
	tableStates        = "competence_states"
	tableRevisions     = "revision_items"
	tablePathSnapshots = "path_snapshots"
	tableAttemptEvents = "attempt_events"
	tableMasteryEvents = "mastery_events"
	tableStudents      = "students"
)

var (
	statesColumns = []*schema.Column{
		{Name: "student_id", Type: field.TypeString},
		{Name: "competence_code", Type: field.TypeString},
		{Name: "level", Type: field.TypeString},
		{Name: "progress_percent", Type: field.TypeInt, Default: 0},
		{Name: "total_attempts", Type: field.TypeInt, Default: 0},
		{Name: "successful_attempts", Type: field.TypeInt, Default: 0},
		{Name: "average_score", Type: field.TypeFloat64, Default: 0},
		{Name: "difficulty_multiplier", Type: field.TypeFloat64, Default: 1},
		{Name: "consecutive_successes", Type: field.TypeInt, Default: 0},
		{Name: "consecutive_failures", Type: field.TypeInt, Default: 0},
		{Name: "first_attempt_at", Type: field.TypeTime},
		{Name: "last_attempt_at", Type: field.TypeTime},
		{Name: "mastered_at", Type: field.TypeTime, Nullable: true},
		{Name: "version", Type: field.TypeInt64},
	}
	statesTable = &schema.Table{
		Name:       tableStates,
		Columns:    statesColumns,
		PrimaryKey: []*schema.Column{statesColumns[0], statesColumns[1]},
	}

	revisionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "student_id", Type: field.TypeString},
		{Name: "competence_code", Type: field.TypeString},
		{Name: "status", Type: field.TypeString},
		{Name: "scheduled_for", Type: field.TypeTime},
		{Name: "failure_count", Type: field.TypeInt, Default: 0},
		{Name: "consecutive_successes", Type: field.TypeInt, Default: 0},
		{Name: "last_evaluation_id", Type: field.TypeString, Default: ""},
		{Name: "history", Type: field.TypeJSON},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	revisionsTable = &schema.Table{
		Name:       tableRevisions,
		Columns:    revisionsColumns,
		PrimaryKey: []*schema.Column{revisionsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "revisionitem_student_id_competence_code_status",
				Columns: []*schema.Column{revisionsColumns[1], revisionsColumns[2], revisionsColumns[3]},
			},
		},
	}

	pathSnapshotsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "student_id", Type: field.TypeString},
		{Name: "sequence", Type: field.TypeInt64},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "data", Type: field.TypeJSON},
	}
	pathSnapshotsTable = &schema.Table{
		Name:       tablePathSnapshots,
		Columns:    pathSnapshotsColumns,
		PrimaryKey: []*schema.Column{pathSnapshotsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "pathsnapshot_student_id_sequence",
				Columns: []*schema.Column{pathSnapshotsColumns[1], pathSnapshotsColumns[2]},
			},
		},
	}

	attemptEventsColumns = []*schema.Column{
		{Name: "sequence", Type: field.TypeInt64},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "evaluation_id", Type: field.TypeString},
		{Name: "student_id", Type: field.TypeString},
		{Name: "competence_code", Type: field.TypeString},
		{Name: "exercise_id", Type: field.TypeString, Default: ""},
		{Name: "exercise_family", Type: field.TypeString, Default: ""},
		{Name: "validated", Type: field.TypeBool},
		{Name: "passed", Type: field.TypeBool},
		{Name: "composite", Type: field.TypeFloat64},
		{Name: "reason", Type: field.TypeString, Default: ""},
		{Name: "profile", Type: field.TypeString, Default: ""},
		{Name: "profile_version", Type: field.TypeString, Default: ""},
		{Name: "axes", Type: field.TypeJSON},
		{Name: "time_spent_seconds", Type: field.TypeFloat64, Default: 0},
		{Name: "submitted_at", Type: field.TypeTime},
	}
	attemptEventsTable = &schema.Table{
		Name:       tableAttemptEvents,
		Columns:    attemptEventsColumns,
		PrimaryKey: []*schema.Column{attemptEventsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "attemptevent_student_id_competence_code",
				Columns: []*schema.Column{attemptEventsColumns[3], attemptEventsColumns[4]},
			},
		},
	}

	masteryEventsColumns = []*schema.Column{
		{Name: "sequence", Type: field.TypeInt64},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "student_id", Type: field.TypeString},
		{Name: "competence_code", Type: field.TypeString},
		{Name: "from_level", Type: field.TypeString},
		{Name: "to_level", Type: field.TypeString},
		{Name: "transition_trigger", Type: field.TypeString},
		{Name: "evaluation_id", Type: field.TypeString, Default: ""},
		{Name: "composite", Type: field.TypeFloat64, Default: 0},
	}
	masteryEventsTable = &schema.Table{
		Name:       tableMasteryEvents,
		Columns:    masteryEventsColumns,
		PrimaryKey: []*schema.Column{masteryEventsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "masteryevent_student_id",
				Columns: []*schema.Column{masteryEventsColumns[2]},
			},
		},
	}

	studentsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "display_name", Type: field.TypeString, Default: ""},
		{Name: "created_at", Type: field.TypeTime},
	}
	studentsTable = &schema.Table{
		Name:       tableStudents,
		Columns:    studentsColumns,
		PrimaryKey: []*schema.Column{studentsColumns[0]},
	}

	tables = []*schema.Table{
		statesTable,
		revisionsTable,
		pathSnapshotsTable,
		attemptEventsTable,
		masteryEventsTable,
		studentsTable,
	}
)

// migrate creates missing tables, columns and indexes. It never drops
// anything, so older databases keep their data.
func migrate(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Create(ctx, tables...); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}
