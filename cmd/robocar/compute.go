package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kome-inc/robocar/pkg/joystick"
	"github.com/kome-inc/robocar/pkg/protocol"
	"github.com/kome-inc/robocar/pkg/relay"
)

func newComputeCmd() *cobra.Command {
	var (
		radius   float64
		platform string
		phase    string
		maxForce float64
	)

	cmd := &cobra.Command{
		Use:   "compute <x> <y>",
		Short: "print the joystick sample and drive power for one touch point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			x, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("x: %w", err)
			}
			y, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("y: %w", err)
			}

			jcfg := cfg.JoystickEngineConfig()
			if cmd.Flags().Changed("radius") {
				jcfg.Radius = radius
			}
			if platform != "" {
				jcfg.Platform = platform
			}
			if !cmd.Flags().Changed("max-force") {
				maxForce = cfg.Joystick.MaxForce
			}

			out, err := compute(jcfg, maxForce, protocol.TouchData{Phase: protocol.TouchPhase(phase), X: x, Y: y})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().Float64VarP(&radius, "radius", "r", joystick.DefaultRadius, "wrapper radius in pixels")
	cmd.Flags().StringVar(&platform, "platform", "", "ios, android or web (default from config)")
	cmd.Flags().StringVar(&phase, "phase", string(protocol.PhaseMove), "start, move or end")
	cmd.Flags().Float64Var(&maxForce, "max-force", 0, "cap force before mapping (0 = off)")
	return cmd
}

func compute(jcfg joystick.Config, maxForce float64, touch protocol.TouchData) (relay.ComputeResponse, error) {
	rl, err := relay.New(relay.Config{Joystick: jcfg, MaxForce: maxForce}, nil)
	if err != nil {
		return relay.ComputeResponse{}, err
	}

	sample, power, err := rl.Process(rl.Engine(), touch)
	if err != nil {
		return relay.ComputeResponse{}, err
	}
	return relay.ComputeResponse{Sample: sample, Drive: power}, nil
}
