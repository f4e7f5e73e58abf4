package relay

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/kome-inc/robocar/internal/log"
	"github.com/kome-inc/robocar/pkg/drive"
	"github.com/kome-inc/robocar/pkg/joystick"
	"github.com/kome-inc/robocar/pkg/protocol"
)

// controllerEngine builds the joystick engine requested by a controller's
// "radius" and "platform" query parameters, falling back to the defaults.
func (r *Relay) controllerEngine(radius, platform string) (*joystick.Engine, error) {
	if radius == "" && platform == "" {
		return r.engine, nil
	}

	cfg := r.cfg.Joystick
	if radius != "" {
		v, err := strconv.ParseFloat(radius, 64)
		if err != nil {
			return nil, joystick.ErrInvalidRadius
		}
		cfg.Radius = v
	}
	if platform != "" {
		cfg.Platform = platform
		cfg.Normalizer = nil
	}
	return joystick.NewEngine(cfg)
}

// handleController handles a controller WebSocket connection
func (r *Relay) handleController(c *websocket.Conn) {
	robotID := c.Params("id")

	engine, err := r.controllerEngine(c.Query("radius"), c.Query("platform"))
	if err != nil {
		if msg, mErr := protocol.NewErrorMessage(protocol.CodeBadConfig, err.Error()); mErr == nil {
			data, _ := msg.Bytes()
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil && r.cfg.Debug {
				log.Debug("config error reply failed", "robot", robotID, "error", err)
			}
		}
		c.Close()
		return
	}

	ctrl := &ControllerConnection{
		ID:        generateID(),
		RobotID:   robotID,
		Connected: time.Now(),
		engine:    engine,
		conn:      conn{ws: c},
	}

	r.mu.Lock()
	r.controllers[ctrl.ID] = ctrl
	robot := r.robots[robotID]
	r.mu.Unlock()

	log.Info("controller connected", "controller", ctrl.ID, "robot", robotID,
		"radius", engine.WrapperRadius(), "platform", engine.Platform())

	// Tell the header whether the robot is reachable.
	state := protocol.StateData{Connected: false}
	if robot != nil {
		state = robot.State()
	}
	if msg, err := protocol.NewStateMessage(state); err == nil {
		if err := ctrl.Send(msg); err != nil && r.cfg.Debug {
			log.Debug("initial state failed", "controller", ctrl.ID, "error", err)
		}
	}

	// active is true between a start and an end phase.
	active := false

	defer func() {
		r.mu.Lock()
		delete(r.controllers, ctrl.ID)
		r.mu.Unlock()

		// Never leave the car driving after the finger is gone.
		if active {
			if err := r.SendDrive(robotID, drive.Stop); err != nil && r.cfg.Debug {
				log.Debug("stop on disconnect failed", "robot", robotID, "error", err)
			}
		}
		log.Info("controller disconnected", "controller", ctrl.ID, "robot", robotID)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if r.cfg.Debug {
				log.Debug("controller read error", "controller", ctrl.ID, "error", err)
			}
			return
		}

		r.messagesReceived.Add(1)
		active = r.handleControllerMessage(ctrl, data, active)
	}
}

// handleControllerMessage processes one controller message and returns the
// updated gesture state.
func (r *Relay) handleControllerMessage(ctrl *ControllerConnection, data []byte, active bool) bool {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		r.replyError(ctrl, protocol.CodeBadMessage, err.Error())
		return active
	}

	switch msg.Type {
	case protocol.TypeTouch:
		touch, err := msg.GetTouchData()
		if err != nil {
			r.replyError(ctrl, protocol.CodeBadMessage, err.Error())
			return active
		}
		return r.handleTouch(ctrl, *touch, active)

	case protocol.TypeButton:
		button, err := msg.GetButtonData()
		if err != nil {
			r.replyError(ctrl, protocol.CodeBadMessage, err.Error())
			return active
		}
		if err := r.SendButton(ctrl.RobotID, button.Name); err != nil {
			code := protocol.CodeRobotOffline
			if errors.Is(err, ErrUnknownButton) {
				code = protocol.CodeBadButton
			}
			r.replyError(ctrl, code, err.Error())
		}

	case protocol.TypePing:
		if err := r.sendPong(&ctrl.conn, msg.Timestamp); err != nil {
			log.Debug("pong to controller failed", "controller", ctrl.ID, "error", err)
		}

	default:
		r.replyError(ctrl, protocol.CodeBadMessage, "unsupported message type "+string(msg.Type))
	}
	return active
}

// handleTouch computes the sample for one touch, echoes it to the controller,
// publishes telemetry and forwards the drive command. Delivery to the robot is
// fire-and-forget.
func (r *Relay) handleTouch(ctrl *ControllerConnection, touch protocol.TouchData, active bool) bool {
	sample, power, err := r.Process(ctrl.engine, touch)
	if err != nil {
		r.replyError(ctrl, protocol.CodeBadPhase, err.Error())
		return active
	}

	msg, err := protocol.NewSampleMessage(sample, power)
	if err != nil {
		// Non-finite results cannot be encoded; never leave the robot on its last command.
		log.Warn("unencodable sample, stopping robot", "controller", ctrl.ID, "robot", ctrl.RobotID,
			"x", touch.X, "y", touch.Y, "error", err)
		r.replyError(ctrl, protocol.CodeBadMessage, err.Error())
		if err := r.SendDrive(ctrl.RobotID, drive.Stop); err != nil && r.cfg.Debug {
			log.Debug("stop not delivered", "robot", ctrl.RobotID, "error", err)
		}
		return active
	}

	r.messagesSent.Add(1)
	if err := ctrl.Send(msg); err != nil && r.cfg.Debug {
		log.Debug("sample reply failed", "controller", ctrl.ID, "error", err)
	}

	r.publish(ctrl.RobotID, ctrl.ID, sample, power)

	if err := r.SendDrive(ctrl.RobotID, power); err != nil && r.cfg.Debug {
		log.Debug("drive not delivered", "robot", ctrl.RobotID, "error", err)
	}

	return touch.Phase != protocol.PhaseEnd
}

func (r *Relay) replyError(ctrl *ControllerConnection, code, message string) {
	msg, err := protocol.NewErrorMessage(code, message)
	if err != nil {
		return
	}
	r.messagesSent.Add(1)
	if err := ctrl.Send(msg); err != nil && r.cfg.Debug {
		log.Debug("error reply failed", "controller", ctrl.ID, "code", code, "error", err)
	}
}
