package mastery

import "math"

// precisionScore buckets each sample's distance to the reference path and
// returns the mean factor scaled to 100.
func precisionScore(samples []TraceSample, path []Point, buckets []PrecisionBucket) float64 {
	if len(samples) == 0 {
		return 0
	}
	total := 0.0
	for _, s := range samples {
		d := distanceToPath(Point{X: s.X, Y: s.Y}, path)
		for _, b := range buckets {
			if d < b.Below {
				total += b.Factor
				break
			}
		}
	}
	return clamp(total/float64(len(samples))*100, 0, 100)
}

// speedScore is 100 within the target time, then decays linearly per
// second over target.
func speedScore(seconds, target, decayPerSecond float64) float64 {
	if seconds <= target {
		return 100
	}
	return clamp(100-decayPerSecond*(seconds-target), 0, 100)
}

// fluidityScore penalizes jerky strokes: the more the distance between
// consecutive samples varies, the lower the score.
func fluidityScore(samples []TraceSample, penalty float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	steps := make([]float64, 0, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		steps = append(steps, math.Hypot(samples[i].X-samples[i-1].X, samples[i].Y-samples[i-1].Y))
	}
	return clamp(100-penalty*variance(steps), 0, 100)
}

// inclinationScore compares the overall stroke direction (first to last
// sample) with the target angle.
func inclinationScore(samples []TraceSample, targetDeg, penalty float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	first, last := samples[0], samples[len(samples)-1]
	angle := math.Atan2(last.Y-first.Y, last.X-first.X) * 180 / math.Pi
	return clamp(100-penalty*angularDeviation(angle, targetDeg), 0, 100)
}

// pressureScore blends the mean deviation from the ideal pressure with
// the pressure variance.
func pressureScore(samples []TraceSample, ideal, blend float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	pressures := make([]float64, len(samples))
	deviation := 0.0
	for i, s := range samples {
		pressures[i] = s.Pressure
		deviation += math.Abs(s.Pressure - ideal)
	}
	deviation /= float64(len(samples))
	penalty := 100 * (blend*deviation + (1-blend)*variance(pressures))
	return clamp(100-penalty, 0, 100)
}

// traceSeconds returns the trace duration, falling back to the reported
// time spent when timestamps are missing or out of order.
func traceSeconds(samples []TraceSample, reported float64) float64 {
	if len(samples) >= 2 {
		ms := samples[len(samples)-1].TimestampMs - samples[0].TimestampMs
		if ms > 0 {
			return float64(ms) / 1000
		}
	}
	return max(reported, 0)
}

// distanceToPath returns the shortest distance from p to the polyline.
func distanceToPath(p Point, path []Point) float64 {
	switch len(path) {
	case 0:
		return math.Inf(1)
	case 1:
		return math.Hypot(p.X-path[0].X, p.Y-path[0].Y)
	}
	best := math.Inf(1)
	for i := 1; i < len(path); i++ {
		if d := distanceToSegment(p, path[i-1], path[i]); d < best {
			best = d
		}
	}
	return best
}

func distanceToSegment(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := clamp(((p.X-a.X)*dx+(p.Y-a.Y)*dy)/lenSq, 0, 1)
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}

// angularDeviation returns the absolute difference of two angles in
// degrees, folded into [0, 180].
func angularDeviation(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	v := 0.0
	for _, x := range xs {
		v += (x - mean) * (x - mean)
	}
	return v / float64(len(xs))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
