package robot

import (
	"errors"
	"fmt"
	"math"

	"github.com/kome-inc/robocar/pkg/drive"
)

// Motor IDs on the four-wheel chassis.
const (
	MotorLeftFront  = 0
	MotorRightFront = 1
	MotorLeftBack   = 2
	MotorRightBack  = 3
)

// DefaultMaxSpeed is the full-scale value of the motor board.
const DefaultMaxSpeed = 255

// TankDrive drives both wheels of a side with the same track power.
type TankDrive struct {
	motors   MotorController
	maxSpeed int
}

// NewTankDrive creates a drive for motors. maxSpeed <= 0 uses DefaultMaxSpeed.
func NewTankDrive(motors MotorController, maxSpeed int) *TankDrive {
	if maxSpeed <= 0 {
		maxSpeed = DefaultMaxSpeed
	}
	return &TankDrive{motors: motors, maxSpeed: maxSpeed}
}

// MaxSpeed returns the full-scale motor speed.
func (t *TankDrive) MaxSpeed() int {
	return t.maxSpeed
}

// Speeds converts track power into motor speeds. Power beyond ±1 saturates;
// NaN stops the track.
func (t *TankDrive) Speeds(p drive.Power) (left, right int) {
	return t.speed(p.Left), t.speed(p.Right)
}

func (t *TankDrive) speed(power float64) int {
	if math.IsNaN(power) {
		return 0
	}
	power = math.Max(-1, math.Min(1, power))
	return int(math.Round(power * float64(t.maxSpeed)))
}

// Apply sets all four motors. Every motor is attempted even if one fails.
func (t *TankDrive) Apply(p drive.Power) error {
	left, right := t.Speeds(p)

	var errs []error
	for _, m := range []struct{ id, speed int }{
		{MotorLeftFront, left},
		{MotorRightFront, right},
		{MotorLeftBack, left},
		{MotorRightBack, right},
	} {
		if err := t.motors.SetMotor(m.id, m.speed); err != nil {
			errs = append(errs, fmt.Errorf("motor %d: %w", m.id, err))
		}
	}
	return errors.Join(errs...)
}

// Stop sets every motor to zero.
func (t *TankDrive) Stop() error {
	return t.Apply(drive.Stop)
}
