package relay

import "errors"

// Sentinel errors returned by the relay.
var (
	// ErrRobotNotConnected is returned when sending to a robot that is not registered.
	ErrRobotNotConnected = errors.New("relay: robot not connected")

	// ErrUnknownPhase is returned for touch phases other than start, move and end.
	ErrUnknownPhase = errors.New("relay: unknown touch phase")

	// ErrUnknownButton is returned for buttons that are not on the panel.
	ErrUnknownButton = errors.New("relay: unknown button")
)
