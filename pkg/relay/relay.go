// Package relay connects controller apps to robots.
//
// Controllers stream raw touch samples; the relay runs them through the
// joystick engine and the drive mapper, answers each with the computed sample
// and forwards the resulting motor power to the paired robot. Robots report
// their status back, which is fanned out to their controllers.
package relay

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/kome-inc/robocar/internal/log"
	"github.com/kome-inc/robocar/pkg/drive"
	"github.com/kome-inc/robocar/pkg/hub"
	"github.com/kome-inc/robocar/pkg/joystick"
	"github.com/kome-inc/robocar/pkg/protocol"
)

// Config configures a Relay.
type Config struct {
	// Joystick is the geometry used when a controller does not choose one.
	Joystick joystick.Config

	// MaxForce caps force before mapping to motor power. 0 disables the cap.
	MaxForce float64

	Debug bool
}

// DefaultConfig returns the relay defaults.
func DefaultConfig() Config {
	return Config{Joystick: joystick.DefaultConfig()}
}

// conn is a websocket peer with serialized writes.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// RobotConnection represents a connected robot
type RobotConnection struct {
	ID        string
	Connected time.Time

	conn     conn
	mu       sync.Mutex
	lastSeen time.Time
	state    protocol.StateData
}

// Send sends a message to the robot
func (r *RobotConnection) Send(msg *protocol.Message) error {
	return r.conn.send(msg)
}

// LastSeen returns when the robot last sent anything.
func (r *RobotConnection) LastSeen() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSeen
}

// State returns the last status the robot reported.
func (r *RobotConnection) State() protocol.StateData {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *RobotConnection) touch() {
	r.mu.Lock()
	r.lastSeen = time.Now()
	r.mu.Unlock()
}

// ControllerConnection represents a connected controller app paired with one robot.
type ControllerConnection struct {
	ID        string
	RobotID   string
	Connected time.Time

	engine *joystick.Engine
	conn   conn
}

// Send sends a message to the controller
func (c *ControllerConnection) Send(msg *protocol.Message) error {
	return c.conn.send(msg)
}

// Engine returns the joystick geometry the controller negotiated.
func (c *ControllerConnection) Engine() *joystick.Engine {
	return c.engine
}

// TelemetryEvent is published on the telemetry hub for every sample.
type TelemetryEvent struct {
	RobotID      string          `json:"robot_id"`
	ControllerID string          `json:"controller_id"`
	Sample       joystick.Sample `json:"sample"`
	Drive        drive.Power     `json:"drive"`
	Timestamp    int64           `json:"ts"`
}

// Relay manages robot and controller websocket connections.
type Relay struct {
	cfg    Config
	engine *joystick.Engine

	mu          sync.RWMutex
	robots      map[string]*RobotConnection
	controllers map[string]*ControllerConnection

	telemetry *hub.Hub

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	samplesComputed  atomic.Uint64
	drivesSent       atomic.Uint64
	drivesDropped    atomic.Uint64
}

// New creates a relay. telemetry may be nil.
func New(cfg Config, telemetry *hub.Hub) (*Relay, error) {
	engine, err := joystick.NewEngine(cfg.Joystick)
	if err != nil {
		return nil, fmt.Errorf("relay: default joystick: %w", err)
	}

	return &Relay{
		cfg:         cfg,
		engine:      engine,
		robots:      make(map[string]*RobotConnection),
		controllers: make(map[string]*ControllerConnection),
		telemetry:   telemetry,
	}, nil
}

// Engine returns the default joystick engine.
func (r *Relay) Engine() *joystick.Engine {
	return r.engine
}

// Process turns one touch sample into a joystick sample and the drive command
// derived from it. The sample keeps the raw force; the drive command uses the
// capped force when MaxForce is set.
func (r *Relay) Process(engine *joystick.Engine, touch protocol.TouchData) (joystick.Sample, drive.Power, error) {
	var sample joystick.Sample
	switch touch.Phase {
	case protocol.PhaseStart:
		sample = engine.Start()
	case protocol.PhaseMove:
		sample = engine.Move(touch.Point())
	case protocol.PhaseEnd:
		sample = engine.Stop()
	default:
		return joystick.Sample{}, drive.Stop, fmt.Errorf("%w: %q", ErrUnknownPhase, touch.Phase)
	}

	r.samplesComputed.Add(1)
	power := drive.Map(sample.Angle.Degree, drive.LimitForce(sample.Force, r.cfg.MaxForce))
	return sample, power, nil
}

// SendDrive sends a motor power command to a robot
func (r *Relay) SendDrive(robotID string, power drive.Power) error {
	msg, err := protocol.NewDriveMessage(power)
	if err != nil {
		r.drivesDropped.Add(1)
		return err
	}
	if err := r.sendToRobot(robotID, msg); err != nil {
		r.drivesDropped.Add(1)
		return err
	}
	r.drivesSent.Add(1)
	return nil
}

// SendButton forwards a button press to a robot
func (r *Relay) SendButton(robotID, name string) error {
	if !protocol.ValidButton(name) {
		return fmt.Errorf("%w: %q", ErrUnknownButton, name)
	}
	msg, err := protocol.NewButtonMessage(name)
	if err != nil {
		return err
	}
	return r.sendToRobot(robotID, msg)
}

// sendPong answers a ping on any peer.
func (r *Relay) sendPong(c *conn, pingTS int64) error {
	msg, err := protocol.NewPongMessage("", pingTS, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	r.messagesSent.Add(1)
	return c.send(msg)
}

// sendToRobot sends a message to a specific robot
func (r *Relay) sendToRobot(robotID string, msg *protocol.Message) error {
	r.mu.RLock()
	robot, ok := r.robots[robotID]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrRobotNotConnected, robotID)
	}

	r.messagesSent.Add(1)
	return robot.Send(msg)
}

// notifyControllers sends msg to every controller paired with robotID.
func (r *Relay) notifyControllers(robotID string, msg *protocol.Message) {
	r.mu.RLock()
	targets := make([]*ControllerConnection, 0, len(r.controllers))
	for _, c := range r.controllers {
		if c.RobotID == robotID {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range targets {
		r.messagesSent.Add(1)
		if err := c.Send(msg); err != nil && r.cfg.Debug {
			log.Debug("controller send failed", "controller", c.ID, "error", err)
		}
	}
}

// publish pushes a sample to telemetry viewers.
func (r *Relay) publish(robotID, controllerID string, sample joystick.Sample, power drive.Power) {
	if r.telemetry == nil {
		return
	}
	_ = r.telemetry.BroadcastJSON(TelemetryEvent{
		RobotID:      robotID,
		ControllerID: controllerID,
		Sample:       sample,
		Drive:        power,
		Timestamp:    time.Now().UnixMilli(),
	})
}

// GetRobot returns a robot connection by ID
func (r *Relay) GetRobot(robotID string) *RobotConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.robots[robotID]
}

// RobotCount returns the number of connected robots
func (r *Relay) RobotCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.robots)
}

// ControllerCount returns the number of connected controllers
func (r *Relay) ControllerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.controllers)
}

// Stats contains relay statistics
type Stats struct {
	RobotCount       int    `json:"robot_count"`
	ControllerCount  int    `json:"controller_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	SamplesComputed  uint64 `json:"samples_computed"`
	DrivesSent       uint64 `json:"drives_sent"`
	DrivesDropped    uint64 `json:"drives_dropped"`
}

// GetStats returns relay statistics
func (r *Relay) GetStats() Stats {
	return Stats{
		RobotCount:       r.RobotCount(),
		ControllerCount:  r.ControllerCount(),
		MessagesReceived: r.messagesReceived.Load(),
		MessagesSent:     r.messagesSent.Load(),
		SamplesComputed:  r.samplesComputed.Load(),
		DrivesSent:       r.drivesSent.Load(),
		DrivesDropped:    r.drivesDropped.Load(),
	}
}

// RobotInfo contains info about a connected robot
type RobotInfo struct {
	ID          string             `json:"id"`
	Connected   time.Time          `json:"connected"`
	LastSeen    time.Time          `json:"last_seen"`
	State       protocol.StateData `json:"state"`
	Controllers int                `json:"controllers"`
}

// GetRobotInfos returns info about all connected robots
func (r *Relay) GetRobotInfos() []RobotInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paired := make(map[string]int, len(r.robots))
	for _, c := range r.controllers {
		paired[c.RobotID]++
	}

	infos := make([]RobotInfo, 0, len(r.robots))
	for _, robot := range r.robots {
		infos = append(infos, RobotInfo{
			ID:          robot.ID,
			Connected:   robot.Connected,
			LastSeen:    robot.LastSeen(),
			State:       robot.State(),
			Controllers: paired[robot.ID],
		})
	}
	return infos
}

// generateID generates a unique connection ID
func generateID() string {
	return uuid.NewString()
}
