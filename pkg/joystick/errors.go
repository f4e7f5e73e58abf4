package joystick

import "errors"

// Sentinel errors returned by NewEngine.
var (
	// ErrInvalidRadius is returned when the wrapper radius is not a positive finite number.
	ErrInvalidRadius = errors.New("joystick: wrapper radius must be positive and finite")

	// ErrUnknownPlatform is returned when no axis normalizer is registered for a platform.
	ErrUnknownPlatform = errors.New("joystick: unknown platform")
)
