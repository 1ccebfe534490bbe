package animation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEasingEndpoints(t *testing.T) {
	curves := map[string]EasingFunc{
		"linear":       Linear,
		"soft-start":   SoftStart,
		"close-bezier": CloseBezier,
		"spring":       Spring,
	}
	for name, f := range curves {
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, 0, f(0), 1e-9)
			assert.InDelta(t, 1, f(1), 1e-9)
		})
	}
}

func TestSoftStartMonotonic(t *testing.T) {
	prev := SoftStart(0)
	for i := 1; i <= 1000; i++ {
		v := SoftStart(float64(i) / 1000)
		if v < prev {
			t.Fatalf("SoftStart decreased at t=%v: %v < %v", float64(i)/1000, v, prev)
		}
		if v > 1 {
			t.Fatalf("SoftStart overshot at t=%v: %v", float64(i)/1000, v)
		}
		prev = v
	}
}

func TestSoftStartBreakpoints(t *testing.T) {
	assert.InDelta(t, 0.5, SoftStart(0.2), 1e-9)
	assert.InDelta(t, 0.85, SoftStart(0.5), 1e-9)
}

func TestSpringNeverOvershoots(t *testing.T) {
	for i := 0; i <= 1000; i++ {
		v := Spring(float64(i) / 1000)
		if v > 1 || v < 0 {
			t.Fatalf("Spring(%v) = %v out of range", float64(i)/1000, v)
		}
	}
}

func TestSpringCapOnset(t *testing.T) {
	// The raw curve first reaches 1 at t=0.4, where cos(πt/0.8) crosses zero.
	// It would peak near 1.0205 at t≈0.548; the cap holds it at 1 from 0.4 on.
	assert.Less(t, Spring(0.399), 1.0)
	assert.InDelta(t, 1.0, Spring(0.4), 1e-12)
	assert.Equal(t, 1.0, Spring(0.401))
	assert.Equal(t, 1.0, Spring(0.548))
}

func TestCloseBezierCoefficients(t *testing.T) {
	tt := 0.5
	mt := 1 - tt
	want := 3*0.02*mt*mt*tt + 3*0.1*mt*tt*tt + tt*tt*tt
	assert.InDelta(t, want, CloseBezier(tt), 1e-12)
}

func TestEasingClampsInput(t *testing.T) {
	assert.Equal(t, 0.0, SoftStart(-1))
	assert.Equal(t, 1.0, CloseBezier(2))
	assert.False(t, math.IsNaN(Spring(5)))
}
