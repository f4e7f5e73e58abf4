package relay

import (
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/kome-inc/robocar/internal/log"
	"github.com/kome-inc/robocar/pkg/protocol"
)

// handleRobot handles a robot WebSocket connection
func (r *Relay) handleRobot(c *websocket.Conn) {
	robotID := c.Params("id")
	if robotID == "" {
		robotID = generateID()
	}

	now := time.Now()
	robot := &RobotConnection{
		ID:        robotID,
		Connected: now,
		conn:      conn{ws: c},
		lastSeen:  now,
		state:     protocol.StateData{Connected: true},
	}

	// A reconnecting robot replaces its stale connection.
	r.mu.Lock()
	old := r.robots[robotID]
	r.robots[robotID] = robot
	robotCount := len(r.robots)
	r.mu.Unlock()
	if old != nil {
		old.conn.ws.Close()
	}

	log.Info("robot connected", "robot", robotID, "robots", robotCount)
	r.announceState(robotID, robot.State())

	defer func() {
		r.mu.Lock()
		current := r.robots[robotID] == robot
		if current {
			delete(r.robots, robotID)
		}
		robotCount := len(r.robots)
		r.mu.Unlock()

		log.Info("robot disconnected", "robot", robotID, "robots", robotCount)
		if current {
			r.announceState(robotID, protocol.StateData{Connected: false})
		}
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if r.cfg.Debug {
				log.Debug("robot read error", "robot", robotID, "error", err)
			}
			return
		}

		robot.touch()
		r.messagesReceived.Add(1)
		r.handleRobotMessage(robot, data)
	}
}

// handleRobotMessage processes an incoming message from a robot
func (r *Relay) handleRobotMessage(robot *RobotConnection, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		log.Warn("robot sent unparseable message", "robot", robot.ID, "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeState:
		state, err := msg.GetStateData()
		if err != nil {
			log.Warn("bad state message", "robot", robot.ID, "error", err)
			return
		}
		state.Connected = true
		robot.mu.Lock()
		robot.state = *state
		robot.mu.Unlock()
		r.announceState(robot.ID, *state)

	case protocol.TypePing:
		if err := r.sendPong(&robot.conn, msg.Timestamp); err != nil {
			log.Debug("pong to robot failed", "robot", robot.ID, "error", err)
		}

	case protocol.TypePong:
		// keepalive only

	default:
		log.Debug("ignoring robot message", "robot", robot.ID, "type", msg.Type)
	}
}

// announceState tells a robot's controllers about its status.
func (r *Relay) announceState(robotID string, state protocol.StateData) {
	msg, err := protocol.NewStateMessage(state)
	if err != nil {
		return
	}
	r.notifyControllers(robotID, msg)
}
