package protocol

import (
	"github.com/kome-inc/robocar/pkg/drive"
	"github.com/kome-inc/robocar/pkg/joystick"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewTouchMessage creates a touch sample message
func NewTouchMessage(phase TouchPhase, x, y float64) (*Message, error) {
	return NewMessage(TypeTouch, TouchData{Phase: phase, X: x, Y: y})
}

// NewButtonMessage creates a button press message
func NewButtonMessage(name string) (*Message, error) {
	return NewMessage(TypeButton, ButtonData{Name: name})
}

// NewSampleMessage creates a joystick sample message
func NewSampleMessage(sample joystick.Sample, power drive.Power) (*Message, error) {
	return NewMessage(TypeSample, SampleData{Sample: sample, Drive: power})
}

// NewDriveMessage creates a drive command message
func NewDriveMessage(power drive.Power) (*Message, error) {
	return NewMessage(TypeDrive, power)
}

// NewStateMessage creates a robot state message
func NewStateMessage(state StateData) (*Message, error) {
	return NewMessage(TypeState, state)
}

// NewErrorMessage creates an error message
func NewErrorMessage(code, message string) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Code: code, Message: message})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetTouchData extracts touch data from a message
func (m *Message) GetTouchData() (*TouchData, error) {
	var data TouchData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetButtonData extracts a button press from a message
func (m *Message) GetButtonData() (*ButtonData, error) {
	var data ButtonData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetSampleData extracts a joystick sample from a message
func (m *Message) GetSampleData() (*SampleData, error) {
	var data SampleData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetDriveData extracts a drive command from a message
func (m *Message) GetDriveData() (*DriveData, error) {
	var data DriveData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStateData extracts robot state from a message
func (m *Message) GetStateData() (*StateData, error) {
	var data StateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts an error description from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
