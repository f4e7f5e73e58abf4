package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"github.com/kome-inc/robocar/internal/config"
	"github.com/kome-inc/robocar/internal/log"
	"github.com/kome-inc/robocar/pkg/hub"
	"github.com/kome-inc/robocar/pkg/relay"
)

func newServeCmd() *cobra.Command {
	var (
		port  int
		debug bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the relay between controllers and robots",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if debug {
				cfg.Server.Debug = true
			}
			return serve(cfg)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "HTTP server port")
	cmd.Flags().BoolVar(&debug, "debug", false, "log every request and dropped message")
	return cmd
}

func serve(cfg *config.Config) error {
	telemetry := hub.New("telemetry")

	rl, err := relay.New(relay.Config{
		Joystick: cfg.JoystickEngineConfig(),
		MaxForce: cfg.Joystick.MaxForce,
		Debug:    cfg.Server.Debug,
	}, telemetry)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:               "robocar",
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	if cfg.Server.Debug {
		app.Use(logger.New())
	}

	rl.RegisterRoutes(app)
	rl.RegisterAPIRoutes(app.Group("/api"))

	// Health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"version":     version,
			"robots":      rl.RobotCount(),
			"controllers": rl.ControllerCount(),
		})
	})

	// Metrics endpoint
	app.Get("/metrics", func(c *fiber.Ctx) error {
		return c.SendString(metrics(rl.GetStats(), telemetry))
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go telemetry.Run(ctx)

	errc := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Info("starting relay", "addr", addr, "version", version,
			"radius", rl.Engine().WrapperRadius(), "platform", rl.Engine().Platform())
		errc <- app.Listen(addr)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

func metrics(stats relay.Stats, telemetry *hub.Hub) string {
	return fmt.Sprintf(`# HELP robocar_robots Connected robot count
# TYPE robocar_robots gauge
robocar_robots %d

# HELP robocar_controllers Connected controller count
# TYPE robocar_controllers gauge
robocar_controllers %d

# HELP robocar_messages_received Total messages received
# TYPE robocar_messages_received counter
robocar_messages_received %d

# HELP robocar_messages_sent Total messages sent
# TYPE robocar_messages_sent counter
robocar_messages_sent %d

# HELP robocar_samples_computed Total joystick samples computed
# TYPE robocar_samples_computed counter
robocar_samples_computed %d

# HELP robocar_drives_sent Drive commands delivered to robots
# TYPE robocar_drives_sent counter
robocar_drives_sent %d

# HELP robocar_drives_dropped Drive commands with no robot to receive them
# TYPE robocar_drives_dropped counter
robocar_drives_dropped %d

# HELP robocar_telemetry_clients Connected telemetry viewers
# TYPE robocar_telemetry_clients gauge
robocar_telemetry_clients %d

# HELP robocar_telemetry_dropped Telemetry messages dropped
# TYPE robocar_telemetry_dropped counter
robocar_telemetry_dropped %d
`, stats.RobotCount, stats.ControllerCount, stats.MessagesReceived, stats.MessagesSent,
		stats.SamplesComputed, stats.DrivesSent, stats.DrivesDropped,
		telemetry.ClientCount(), telemetry.Dropped())
}
