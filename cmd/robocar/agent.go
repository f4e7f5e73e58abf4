package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kome-inc/robocar/internal/config"
	"github.com/kome-inc/robocar/internal/log"
	"github.com/kome-inc/robocar/pkg/robot"
)

func newAgentCmd() *cobra.Command {
	var (
		server string
		id     string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "run on the car: connect to the relay and drive the motors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if server != "" {
				cfg.Robot.ServerURL = server
			}
			if id != "" {
				cfg.Robot.ID = id
			}

			// Only the dry-run board ships with robocar; motor drivers plug in
			// through robot.Hardware.
			if !dryRun {
				return errors.New("no motor driver available, run with --dry-run")
			}
			return runAgent(cfg, robot.NewLogMotors())
		},
	}
	cmd.Flags().StringVarP(&server, "server", "s", "", "relay websocket URL (default from config)")
	cmd.Flags().StringVar(&id, "id", "", "robot ID (default: assigned by the relay)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log motor commands instead of driving hardware")
	return cmd
}

func runAgent(cfg *config.Config, hw robot.Hardware) error {
	url := config.RobotURL(cfg.Robot.ServerURL, cfg.Robot.ID)

	agentCfg := robot.DefaultAgentConfig(url)
	agentCfg.MaxSpeed = cfg.Robot.MaxSpeed
	agentCfg.StateInterval = cfg.Robot.StateInterval
	agentCfg.ReconnectDelay = cfg.Robot.ReconnectDelay
	agentCfg.Rate = robot.RateConfig{
		Rate:     cfg.Robot.ControlRate,
		Watchdog: cfg.Robot.Watchdog,
		DeadZone: cfg.Robot.DeadZone,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting agent", "url", url, "max_speed", agentCfg.MaxSpeed,
		"rate", agentCfg.Rate.Rate, "watchdog", agentCfg.Rate.Watchdog)

	agent := robot.NewAgent(agentCfg, hw)
	err := agent.Run(ctx)

	stats := agent.Controller().Stats()
	log.Info("agent stopped", "sessions", agent.Sessions(), "ticks", stats.Ticks,
		"skipped", stats.Skipped, "errors", stats.Errors, "watchdogs", stats.Watchdogs)
	return err
}
