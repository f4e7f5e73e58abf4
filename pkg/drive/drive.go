// Package drive converts joystick readings into tank-style differential drive
// commands.
//
// The circle is split into four quadrants. In each one, one track is pinned to
// full power (±1) while the other sweeps linearly, so 0° is straight ahead with
// both tracks forward, 90° spins in place and 180° reverses. The unit mix is then
// scaled by the joystick force.
package drive

import (
	"math"

	"github.com/kome-inc/robocar/pkg/joystick"
)

// Power is a normalized left/right motor command. Sign is direction.
type Power struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// Stop is the zero command.
var Stop = Power{}

// IsZero reports whether both tracks are idle.
func (p Power) IsZero() bool {
	return p.Left == 0 && p.Right == 0
}

// Scale multiplies both tracks by f.
func (p Power) Scale(f float64) Power {
	return Power{Left: p.Left * f, Right: p.Right * f}
}

// Clamp bounds both tracks to [-limit, limit].
func (p Power) Clamp(limit float64) Power {
	return Power{Left: clamp(p.Left, -limit, limit), Right: clamp(p.Right, -limit, limit)}
}

// Mix returns the unscaled track mix for a direction in degrees.
// Angles outside [0, 360) are wrapped; NaN yields NaN on both tracks.
func Mix(degrees float64) Power {
	if math.IsNaN(degrees) {
		return Power{Left: math.NaN(), Right: math.NaN()}
	}

	d := math.Mod(degrees, 360)
	if d < 0 {
		d += 360
	}

	var p Power
	switch {
	case d <= 90:
		p = Power{Left: 1, Right: 1 - 2*d/90}
	case d <= 180:
		p = Power{Left: 1 - 2*(d-90)/90, Right: -1}
	case d < 270:
		p = Power{Left: 2*((d-180)/90) - 1, Right: -1}
	default:
		p = Power{Left: 2*((d-270)/90) - 1, Right: 1}
	}
	return p.Clamp(1)
}

// Map converts a direction and force into a scaled drive command.
func Map(degrees, force float64) Power {
	return Mix(degrees).Scale(force)
}

// FromSample maps a joystick sample. Start and stop samples carry zero force
// and therefore produce Stop.
func FromSample(s joystick.Sample) Power {
	return Map(s.Angle.Degree, s.Force)
}

// LimitForce caps force at max. A non-positive max disables the cap.
func LimitForce(force, max float64) float64 {
	if max <= 0 || force <= max {
		return force
	}
	return max
}

// clamp restricts v to [lo, hi]. NaN passes through.
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
