package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kome-inc/robocar/internal/log"
	"github.com/kome-inc/robocar/pkg/protocol"
	"github.com/kome-inc/robocar/pkg/remote"
)

func newTouchCmd() *cobra.Command {
	var (
		server   string
		platform string
		radius   float64
		hold     time.Duration
		button   string
	)

	cmd := &cobra.Command{
		Use:   "touch <robot-id> [x y]...",
		Short: "drive a robot through the relay as a controller app would",
		Long: `Sends a touch gesture to the relay: a start, one move per x y pair, and an end.
The relay's sample reply is printed for every step.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 || len(args)%2 != 1 {
				return fmt.Errorf("want <robot-id> followed by x y pairs")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if server == "" {
				server = cfg.Robot.ServerURL
			}

			points, err := parsePoints(args[1:])
			if err != nil {
				return err
			}

			c, err := remote.Dial(cmd.Context(), server, args[0], remote.Options{Platform: platform, Radius: radius})
			if err != nil {
				return err
			}
			defer c.Close()

			if msg, err := c.NextOf(protocol.TypeState, 2*time.Second); err == nil {
				if state, err := msg.GetStateData(); err == nil {
					log.Info("robot status", "robot", args[0], "connected", state.Connected,
						"battery", state.Battery, "signal", state.Signal)
				}
			}

			if button != "" {
				if err := c.Press(button); err != nil {
					return err
				}
			}

			steps := []protocol.TouchData{{Phase: protocol.PhaseStart}}
			for _, p := range points {
				steps = append(steps, protocol.TouchData{Phase: protocol.PhaseMove, X: p[0], Y: p[1]})
			}
			steps = append(steps, protocol.TouchData{Phase: protocol.PhaseEnd})

			for _, step := range steps {
				if err := c.Touch(step.Phase, step.X, step.Y); err != nil {
					return err
				}
				if err := printReply(c); err != nil {
					return err
				}
				if step.Phase == protocol.PhaseMove {
					time.Sleep(hold)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&server, "server", "s", "", "relay websocket URL (default from config)")
	cmd.Flags().StringVar(&platform, "platform", "", "touch platform: ios, android or web")
	cmd.Flags().Float64VarP(&radius, "radius", "r", 0, "wrapper radius in pixels (default from relay)")
	cmd.Flags().DurationVar(&hold, "hold", 200*time.Millisecond, "pause between moves")
	cmd.Flags().StringVar(&button, "button", "", "press A, B, X or Y before the gesture")
	return cmd
}

func parsePoints(args []string) ([][2]float64, error) {
	points := make([][2]float64, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		x, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return nil, fmt.Errorf("x %q: %w", args[i], err)
		}
		y, err := strconv.ParseFloat(args[i+1], 64)
		if err != nil {
			return nil, fmt.Errorf("y %q: %w", args[i+1], err)
		}
		points = append(points, [2]float64{x, y})
	}
	return points, nil
}

// printReply waits for the sample answering the last touch.
func printReply(c *remote.Client) error {
	for {
		msg, err := c.Next(2 * time.Second)
		if err != nil {
			return err
		}

		switch msg.Type {
		case protocol.TypeSample:
			s, err := msg.GetSampleData()
			if err != nil {
				return err
			}
			fmt.Printf("%-5s pos=(%.1f,%.1f) angle=%.1f° force=%.2f drive=(%+.2f,%+.2f)\n",
				s.Type, s.Position.X, s.Position.Y, s.Angle.Degree, s.Force, s.Drive.Left, s.Drive.Right)
			return nil
		case protocol.TypeError:
			e, err := msg.GetErrorData()
			if err != nil {
				return err
			}
			if e.Code != protocol.CodeRobotOffline {
				return fmt.Errorf("relay: %s: %s", e.Code, e.Message)
			}
			log.Warn("relay error", "code", e.Code, "message", e.Message)
		}
	}
}
