package joystick

import (
	"fmt"
	"math"
)

// DefaultRadius is the wrapper radius used when none is configured.
const DefaultRadius = 150.0

// SampleType is the touch lifecycle stage a Sample was emitted for.
type SampleType string

const (
	SampleStart SampleType = "start"
	SampleMove  SampleType = "move"
	SampleStop  SampleType = "stop"
)

// Direction carries one angle in both units.
type Direction struct {
	Radian float64 `json:"radian"`
	Degree float64 `json:"degree"`
}

// Sample is the immutable joystick event produced for each touch stage.
type Sample struct {
	Type     SampleType `json:"type"`
	Position Point      `json:"position"`
	Angle    Direction  `json:"angle"`
	Force    float64    `json:"force"`
}

// TouchState is the full result of processing one touch point.
type TouchState struct {
	// Position is the nipple's top-left corner, bounded by the wrapper.
	Position Point
	Angle    Direction
	// Force is the unclamped distance over the nipple diameter.
	Force float64
	// Distance is the unclamped distance from the wrapper center.
	Distance float64
}

// Config selects the joystick geometry.
type Config struct {
	Radius   float64 // wrapper radius in pixels
	Platform string  // registered platform name; empty means ios

	// Normalizer overrides Platform when set.
	Normalizer AxisNormalizer
}

// DefaultConfig returns a 150px wrapper on a native platform.
func DefaultConfig() Config {
	return Config{
		Radius:   DefaultRadius,
		Platform: PlatformIOS,
	}
}

// Engine computes joystick samples for one wrapper geometry.
// It holds no mutable state and may be shared across goroutines.
type Engine struct {
	wrapperRadius float64
	nippleRadius  float64
	platform      string
	normalize     AxisNormalizer
}

// NewEngine validates cfg and builds an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if !(cfg.Radius > 0) || math.IsInf(cfg.Radius, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRadius, cfg.Radius)
	}

	platform := cfg.Platform
	if platform == "" {
		platform = PlatformIOS
	}

	normalize := cfg.Normalizer
	if normalize == nil {
		fn, err := LookupPlatform(platform)
		if err != nil {
			return nil, err
		}
		normalize = fn
	}

	return &Engine{
		wrapperRadius: cfg.Radius,
		nippleRadius:  cfg.Radius / 3,
		platform:      platform,
		normalize:     normalize,
	}, nil
}

// WrapperRadius returns the radius of the outer circle.
func (e *Engine) WrapperRadius() float64 { return e.wrapperRadius }

// NippleRadius returns the radius of the movable knob (a third of the wrapper).
func (e *Engine) NippleRadius() float64 { return e.nippleRadius }

// Platform returns the platform name the engine was built for.
func (e *Engine) Platform() string { return e.platform }

// Center returns the wrapper center.
func (e *Engine) Center() Point {
	return Point{X: e.wrapperRadius, Y: e.wrapperRadius}
}

// RestPosition is the nipple position when nothing touches the joystick.
func (e *Engine) RestPosition() Point {
	return e.Center().Sub(e.nippleRadius)
}

// FindCoord places a point at distance/degrees from the wrapper center. Negative
// Y results are corrected by the side of the bounding square.
func (e *Engine) FindCoord(distance, degrees float64) Point {
	return FindCoord(e.Center(), distance, degrees, 2*e.wrapperRadius)
}

// ComputeTouchState turns a raw platform touch into a bounded nipple position,
// an angle and a force.
func (e *Engine) ComputeTouchState(touch Point) TouchState {
	finger := Point{X: touch.X, Y: e.normalize(touch.Y, e.wrapperRadius)}
	center := e.Center()

	position := finger.Sub(e.nippleRadius)
	degrees := Angle(finger, center)
	dist := Distance(center, finger)
	force := dist / (2 * e.nippleRadius)

	// Only the position is bounded; force keeps the raw distance.
	if dist >= e.wrapperRadius {
		position = e.FindCoord(e.wrapperRadius, degrees).Sub(e.nippleRadius)
	}

	return TouchState{
		Position: position,
		Angle:    Direction{Radian: DegreesToRadians(degrees), Degree: degrees},
		Force:    force,
		Distance: dist,
	}
}

// Start returns the sample emitted when a touch begins.
func (e *Engine) Start() Sample {
	return e.idle(SampleStart)
}

// Move returns the sample for one touch-move point.
func (e *Engine) Move(touch Point) Sample {
	st := e.ComputeTouchState(touch)
	return Sample{
		Type:     SampleMove,
		Position: st.Position,
		Angle:    st.Angle,
		Force:    st.Force,
	}
}

// Stop returns the sample emitted when the touch is released.
func (e *Engine) Stop() Sample {
	return e.idle(SampleStop)
}

func (e *Engine) idle(t SampleType) Sample {
	return Sample{
		Type:     t,
		Position: e.RestPosition(),
	}
}
