package window

import (
	"time"

	"noelle/internal/domain"
	"noelle/internal/usecase/animation"
)

// Choreography constants.
const (
	MainOpenDuration  = 800 * time.Millisecond
	OpenDuration      = 600 * time.Millisecond
	ConstraintGrace   = 2 * time.Millisecond
	CloseDuration     = 200 * time.Millisecond
	CloseActionDelay  = CloseDuration + 10*time.Millisecond
	MaximizedDebounce = 80 * time.Millisecond
)

// Background colors for new windows and their splash.
const (
	DarkBackground  = domain.BackgroundDark
	LightBackground = domain.BackgroundLight
)

// openPlan is the transition a window runs when it appears.
type openPlan struct {
	From     domain.Bounds
	To       domain.Bounds
	Duration time.Duration
	Easing   animation.EasingFunc
}

// planOpen centers the transition on (cx, cy). It starts from a quarter-size
// rectangle and ends at the full requested size.
func planOpen(name string, size domain.SizeSpec, cx, cy int) openPlan {
	p := openPlan{
		From: domain.Bounds{
			X:      cx - size.Width/8,
			Y:      cy - size.Height/8,
			Width:  size.Width / 4,
			Height: size.Height / 4,
		},
		To: domain.Bounds{
			X:      cx - size.Width/2,
			Y:      cy - size.Height/2,
			Width:  size.Width,
			Height: size.Height,
		},
		Duration: OpenDuration,
		Easing:   animation.Spring,
	}
	if name == domain.WindowMain {
		p.Duration = MainOpenDuration
		p.Easing = animation.SoftStart
	}
	return p
}

// planClose shrinks current bounds to four fifths around their center.
func planClose(current domain.Bounds) domain.Bounds {
	cx, cy := current.Center()
	w := current.Width * 4 / 5
	h := current.Height * 4 / 5
	return domain.Bounds{X: cx - w/2, Y: cy - h/2, Width: w, Height: h}
}
