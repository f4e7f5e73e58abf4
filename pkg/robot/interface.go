// Package robot runs on the car: it receives drive commands from the relay and
// turns them into motor speeds.
//
// Hardware access is split into small interfaces so a board driver only has to
// implement what it supports. LogMotors stands in for real hardware.
package robot

import (
	"errors"

	"github.com/kome-inc/robocar/pkg/protocol"
)

// ErrNotConnected is returned when the agent has no relay connection.
var ErrNotConnected = errors.New("robot: not connected to relay")

// MotorController sets the speed of one motor.
// speed is signed; its magnitude never exceeds the drive's MaxSpeed.
type MotorController interface {
	SetMotor(id, speed int) error
}

// Beeper sounds the buzzer for a face button press.
type Beeper interface {
	Beep(button string) error
}

// StatusReader reports the battery and signal shown in the controller header.
type StatusReader interface {
	Status() (protocol.StateData, error)
}

// Hardware is everything the agent can drive.
type Hardware interface {
	MotorController
	Beeper
	StatusReader
}

// Ensure LogMotors implements Hardware
var _ Hardware = (*LogMotors)(nil)
