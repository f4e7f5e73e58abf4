// Package protocol defines the WebSocket message types exchanged between the
// controller app, the relay and the robot.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kome-inc/robocar/pkg/drive"
	"github.com/kome-inc/robocar/pkg/joystick"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Controller → Relay messages
	TypeTouch  MessageType = "touch"  // Raw touch sample
	TypeButton MessageType = "button" // Button panel press (also Relay → Robot)

	// Relay → Controller messages
	TypeSample MessageType = "sample" // Computed joystick sample
	TypeError  MessageType = "error"  // Rejected request

	// Relay → Robot messages
	TypeDrive MessageType = "drive" // Left/right motor power (also echoed to controllers)

	// Robot → Relay messages (fanned out to controllers)
	TypeState MessageType = "state" // Battery, signal, mode

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Controller → Relay
// =============================================================================

// TouchPhase is the gesture phase of a touch sample.
type TouchPhase string

const (
	PhaseStart TouchPhase = "start"
	PhaseMove  TouchPhase = "move"
	PhaseEnd   TouchPhase = "end"
)

// Valid reports whether p is a known phase.
func (p TouchPhase) Valid() bool {
	switch p {
	case PhaseStart, PhaseMove, PhaseEnd:
		return true
	}
	return false
}

// TouchData is one touch sample in platform-native pixels.
type TouchData struct {
	Phase TouchPhase `json:"phase"`
	X     float64    `json:"x"`
	Y     float64    `json:"y"`
}

// Point returns the touch coordinate.
func (t *TouchData) Point() joystick.Point {
	return joystick.Point{X: t.X, Y: t.Y}
}

// Button names on the controller's face panel.
const (
	ButtonA = "A"
	ButtonB = "B"
	ButtonX = "X"
	ButtonY = "Y"
)

// ValidButton reports whether name is on the panel.
func ValidButton(name string) bool {
	switch name {
	case ButtonA, ButtonB, ButtonX, ButtonY:
		return true
	}
	return false
}

// ButtonData is a face button press.
type ButtonData struct {
	Name string `json:"name"`
}

// =============================================================================
// Relay → Controller
// =============================================================================

// SampleData is a joystick sample together with the drive command it produced.
type SampleData struct {
	joystick.Sample
	Drive drive.Power `json:"drive"`
}

// ErrorData describes a rejected message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes sent to controllers.
const (
	CodeBadMessage   = "bad_message"
	CodeBadPhase     = "bad_phase"
	CodeBadButton    = "bad_button"
	CodeBadConfig    = "bad_config"
	CodeRobotOffline = "robot_offline"
)

// =============================================================================
// Relay → Robot
// =============================================================================

// DriveData is a differential drive command.
type DriveData = drive.Power

// =============================================================================
// Robot → Relay
// =============================================================================

// StateData contains robot status shown in the controller header.
type StateData struct {
	Connected bool   `json:"connected"`
	Battery   int    `json:"battery"` // percent, 0-100
	Signal    int    `json:"signal"`  // percent, 0-100
	Mode      string `json:"mode,omitempty"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
