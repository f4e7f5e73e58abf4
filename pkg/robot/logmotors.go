package robot

import (
	"sync"

	"github.com/kome-inc/robocar/internal/log"
	"github.com/kome-inc/robocar/pkg/protocol"
)

// MotorCommand is one recorded SetMotor call.
type MotorCommand struct {
	ID    int
	Speed int
}

// LogMotors is a dry-run Hardware that logs and records every command.
type LogMotors struct {
	mu       sync.Mutex
	commands []MotorCommand
	speeds   map[int]int
	beeps    []string
	state    protocol.StateData
}

// NewLogMotors creates a dry-run board reporting a full battery.
func NewLogMotors() *LogMotors {
	return &LogMotors{
		speeds: make(map[int]int),
		state:  protocol.StateData{Battery: 100, Signal: 100, Mode: "dry-run"},
	}
}

// SetMotor records the command.
func (m *LogMotors) SetMotor(id, speed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.speeds[id] != speed {
		log.Debug("motor", "id", id, "speed", speed)
	}
	m.commands = append(m.commands, MotorCommand{ID: id, Speed: speed})
	m.speeds[id] = speed
	return nil
}

// Beep records the button.
func (m *LogMotors) Beep(button string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	log.Info("beep", "button", button)
	m.beeps = append(m.beeps, button)
	return nil
}

// Status returns the configured state.
func (m *LogMotors) Status() (protocol.StateData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

// SetStatus changes what Status reports.
func (m *LogMotors) SetStatus(state protocol.StateData) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

// Speed returns the last speed set on motor id.
func (m *LogMotors) Speed(id int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speeds[id]
}

// Commands returns a copy of every recorded command.
func (m *LogMotors) Commands() []MotorCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MotorCommand(nil), m.commands...)
}

// Beeps returns the buttons pressed so far.
func (m *LogMotors) Beeps() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.beeps...)
}
