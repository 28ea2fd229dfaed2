package mastery

import "time"

// Point is a position on the exercise canvas, in pixels.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// TraceSample is one pen/finger sample captured during a fine-motor exercise.
type TraceSample struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Pressure    float64 `json:"pressure"` // 0.0-1.0
	TimestampMs int64   `json:"timestamp_ms"`
}

// AttemptResult is the raw completion signal for one exercise attempt.
// Correctness exercises fill Success and Score; fine-motor exercises also
// carry the captured Trace and the ReferencePath it should follow.
type AttemptResult struct {
	StudentID        string        `json:"student_id"`
	CompetenceCode   string        `json:"competence_code"`
	ExerciseID       string        `json:"exercise_id"`
	ExerciseFamily   string        `json:"exercise_family,omitempty"`
	Success          bool          `json:"success"`
	Score            float64       `json:"score"`
	TimeSpentSeconds float64       `json:"time_spent_seconds"`
	Trace            []TraceSample `json:"trace,omitempty"`
	ReferencePath    []Point       `json:"reference_path,omitempty"`
	SubmittedAt      time.Time     `json:"submitted_at"`
}

// IsTrace reports whether the attempt is scored on trace axes.
func (a *AttemptResult) IsTrace() bool {
	return len(a.Trace) > 0 || len(a.ReferencePath) > 0
}

// Axis names an evaluation dimension.
type Axis string

const (
	AxisAccuracy    Axis = "accuracy"
	AxisPrecision   Axis = "precision"
	AxisSpeed       Axis = "speed"
	AxisFluidity    Axis = "fluidity"
	AxisInclination Axis = "inclination"
	AxisPressure    Axis = "pressure"
)

// Reasons attached to evaluations that could not be scored.
const (
	ReasonTraceTooShort        = "trace too short"
	ReasonScoreOutOfRange      = "score out of range"
	ReasonReferencePathMissing = "reference path missing"
	ReasonNonFiniteValue       = "non-finite measurement"
)

// AttemptEvaluation is the scored outcome of one attempt.
// An evaluation with Validated=false carries a Reason and must not
// change any competence state.
type AttemptEvaluation struct {
	ID             string           `json:"id"`
	StudentID      string           `json:"student_id"`
	CompetenceCode string           `json:"competence_code"`
	ExerciseID     string           `json:"exercise_id"`
	Axes           map[Axis]float64 `json:"axes"`
	Composite      float64          `json:"composite"`
	PassThreshold  float64          `json:"pass_threshold"`
	Passed         bool             `json:"passed"`
	Validated      bool             `json:"validated"`
	Reason         string           `json:"reason,omitempty"`
	Profile        string           `json:"profile"`
	ProfileVersion string           `json:"profile_version"`
	EvaluatedAt    time.Time        `json:"evaluated_at"`
}
