// Package animation interpolates window bounds and opacity over time.
package animation

import "math"

// EasingFunc maps normalized elapsed time in [0,1] to normalized progress.
type EasingFunc func(t float64) float64

// Linear is the identity curve.
func Linear(t float64) float64 { return clamp01(t) }

// SoftStart is a quartic ease-in to 0.5 at t=0.2, a linear ramp to 0.85 at
// t=0.5, then a cubic ease-out to 1. It never overshoots.
func SoftStart(t float64) float64 {
	t = clamp01(t)
	switch {
	case t < 0.2:
		return 0.5 * math.Pow(t/0.2, 4)
	case t < 0.5:
		return 0.5 + 0.35*(t-0.2)/0.3
	default:
		p := (t - 0.5) / 0.5
		return 0.85 + 0.15*(1-math.Pow(1-p, 3))
	}
}

// CloseBezier evaluates the Bernstein form of cubic-bezier(0, 0.02, 0.1, 1.0).
func CloseBezier(t float64) float64 {
	t = clamp01(t)
	mt := 1 - t
	return 3*0.02*mt*mt*t + 3*0.1*mt*t*t + t*t*t
}

// Spring is 1 - e^(-6t)·cos(πt/0.8), capped at 1 once the curve reaches it.
func Spring(t float64) float64 {
	t = clamp01(t)
	if t == 1 {
		return 1
	}
	return math.Min(1, 1-math.Exp(-6*t)*math.Cos(math.Pi*t/0.8))
}

func clamp01(t float64) float64 {
	switch {
	case t <= 0:
		return 0
	case t >= 1:
		return 1
	default:
		return t
	}
}
