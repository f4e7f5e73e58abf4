package relay

import (
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/kome-inc/robocar/pkg/drive"
	"github.com/kome-inc/robocar/pkg/joystick"
	"github.com/kome-inc/robocar/pkg/protocol"
)

// RegisterRoutes registers WebSocket routes on a Fiber app
func (r *Relay) RegisterRoutes(app *fiber.App) {
	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/robot", websocket.New(r.handleRobot))
	app.Get("/ws/robot/:id", websocket.New(r.handleRobot))
	app.Get("/ws/controller/:id", websocket.New(r.handleController))

	if r.telemetry != nil {
		app.Get("/ws/telemetry", r.telemetry.Handler())
	}
}

// ComputeRequest is the body of POST /api/joystick/compute.
type ComputeRequest struct {
	X        float64             `json:"x"`
	Y        float64             `json:"y"`
	Phase    protocol.TouchPhase `json:"phase"`
	Radius   float64             `json:"radius"`
	Platform string              `json:"platform"`
}

// ComputeResponse is the result of POST /api/joystick/compute.
type ComputeResponse struct {
	Sample joystick.Sample `json:"sample"`
	Drive  drive.Power     `json:"drive"`
}

// RegisterAPIRoutes registers REST routes for robot management
func (r *Relay) RegisterAPIRoutes(api fiber.Router) {
	robots := api.Group("/robots")

	// List connected robots
	robots.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"robots": r.GetRobotInfos(),
			"count":  r.RobotCount(),
		})
	})

	// Get relay stats
	robots.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(r.GetStats())
	})

	// Send a raw drive command
	robots.Post("/:id/drive", func(c *fiber.Ctx) error {
		var power drive.Power
		if err := c.BodyParser(&power); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		if err := r.SendDrive(c.Params("id"), power.Clamp(1)); err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(fiber.Map{"status": "sent"})
	})

	// Press a face button
	robots.Post("/:id/button", func(c *fiber.Ctx) error {
		var body protocol.ButtonData
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		if err := r.SendButton(c.Params("id"), body.Name); err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(fiber.Map{"status": "sent"})
	})

	js := api.Group("/joystick")

	js.Get("/platforms", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"platforms": joystick.Platforms()})
	})

	// Run one touch through the engine without any robot
	js.Post("/compute", func(c *fiber.Ctx) error {
		var req ComputeRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		if req.Phase == "" {
			req.Phase = protocol.PhaseMove
		}

		engine := r.engine
		if req.Radius != 0 || req.Platform != "" {
			cfg := r.cfg.Joystick
			if req.Radius != 0 {
				cfg.Radius = req.Radius
			}
			if req.Platform != "" {
				cfg.Platform = req.Platform
				cfg.Normalizer = nil
			}
			var err error
			if engine, err = joystick.NewEngine(cfg); err != nil {
				return errorResponse(c, err)
			}
		}

		sample, power, err := r.Process(engine, protocol.TouchData{Phase: req.Phase, X: req.X, Y: req.Y})
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(ComputeResponse{Sample: sample, Drive: power})
	})
}

// errorResponse maps relay errors onto HTTP status codes.
func errorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, ErrRobotNotConnected):
		status = fiber.StatusNotFound
	case errors.Is(err, ErrUnknownButton),
		errors.Is(err, ErrUnknownPhase),
		errors.Is(err, joystick.ErrInvalidRadius),
		errors.Is(err, joystick.ErrUnknownPlatform):
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
