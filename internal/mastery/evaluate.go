package mastery

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Evaluator scores attempts against the profile of their exercise family.
type Evaluator struct {
	profiles *ProfileSet
	now      func() time.Time
	newID    func() string
}

// NewEvaluator creates an evaluator. A nil profile set uses the defaults.
func NewEvaluator(profiles *ProfileSet) *Evaluator {
	if profiles == nil {
		profiles, _ = NewProfileSet()
	}
	return &Evaluator{
		profiles: profiles,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Profiles returns the profile set the evaluator scores with.
func (e *Evaluator) Profiles() *ProfileSet {
	return e.profiles
}

// Evaluate scores a single attempt. Malformed attempts are not errors:
// they come back with Validated=false, a zero composite and a Reason.
func (e *Evaluator) Evaluate(a AttemptResult) AttemptEvaluation {
	p := e.profiles.For(a.ExerciseFamily)

	ev := AttemptEvaluation{
		ID:             e.newID(),
		StudentID:      a.StudentID,
		CompetenceCode: a.CompetenceCode,
		ExerciseID:     a.ExerciseID,
		Axes:           make(map[Axis]float64),
		PassThreshold:  p.PassThreshold,
		Profile:        p.Family,
		ProfileVersion: p.Version,
		EvaluatedAt:    a.SubmittedAt,
	}
	if ev.EvaluatedAt.IsZero() {
		ev.EvaluatedAt = e.now()
	}

	if reason := checkAttempt(a, p); reason != "" {
		ev.Reason = reason
		return ev
	}

	if a.IsTrace() {
		scoreTrace(&ev, a, p)
	} else {
		ev.Axes[AxisAccuracy] = round2(a.Score)
		ev.Composite = round2(a.Score)
	}
	if !finiteScores(ev) {
		ev.Axes = make(map[Axis]float64)
		ev.Composite = 0
		ev.Reason = ReasonNonFiniteValue
		return ev
	}
	ev.Validated = true
	ev.Passed = ev.Composite >= ev.PassThreshold
	return ev
}

// checkAttempt returns the reason an attempt cannot be scored, or "".
func checkAttempt(a AttemptResult, p ScoringProfile) string {
	if math.IsNaN(a.Score) || a.Score < 0 || a.Score > 100 {
		return ReasonScoreOutOfRange
	}
	if !finite(a.TimeSpentSeconds) {
		return ReasonNonFiniteValue
	}
	if !a.IsTrace() {
		return ""
	}
	if len(a.Trace) < p.MinTraceSamples {
		return ReasonTraceTooShort
	}
	if len(a.ReferencePath) < 2 {
		return ReasonReferencePathMissing
	}
	for _, s := range a.Trace {
		if !finite(s.X, s.Y, s.Pressure) {
			return ReasonNonFiniteValue
		}
	}
	for _, pt := range a.ReferencePath {
		if !finite(pt.X, pt.Y) {
			return ReasonNonFiniteValue
		}
	}
	return ""
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// finiteScores reports whether every axis and the composite are real
// numbers. Extreme but finite inputs can still overflow the geometry.
func finiteScores(ev AttemptEvaluation) bool {
	for _, v := range ev.Axes {
		if !finite(v) {
			return false
		}
	}
	return finite(ev.Composite)
}

func scoreTrace(ev *AttemptEvaluation, a AttemptResult, p ScoringProfile) {
	axes := map[Axis]float64{
		AxisPrecision:   precisionScore(a.Trace, a.ReferencePath, p.PrecisionBuckets),
		AxisSpeed:       speedScore(traceSeconds(a.Trace, a.TimeSpentSeconds), p.TargetSeconds, p.SpeedDecayPerSecond),
		AxisFluidity:    fluidityScore(a.Trace, p.FluidityPenalty),
		AxisInclination: inclinationScore(a.Trace, p.TargetAngleDeg, p.InclinationPenalty),
		AxisPressure:    pressureScore(a.Trace, p.IdealPressure, p.PressureBlend),
	}
	composite := p.Weights.Precision*axes[AxisPrecision] +
		p.Weights.Speed*axes[AxisSpeed] +
		p.Weights.Fluidity*axes[AxisFluidity] +
		p.Weights.Inclination*axes[AxisInclination] +
		p.Weights.Pressure*axes[AxisPressure]

	for axis, v := range axes {
		ev.Axes[axis] = round2(v)
	}
	ev.Composite = round2(clamp(composite, 0, 100))
}
