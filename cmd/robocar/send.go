package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kome-inc/robocar/internal/config"
	"github.com/kome-inc/robocar/internal/httpc"
	"github.com/kome-inc/robocar/pkg/drive"
	"github.com/kome-inc/robocar/pkg/protocol"
)

func newDriveCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "drive <robot-id> <left> <right>",
		Short: "send one raw track power command through the relay",
		Long:  "Sends left and right track power in [-1, 1]. Use -- before negative values.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			power, err := parsePower(args[1], args[2])
			if err != nil {
				return err
			}
			if server == "" {
				server = cfg.Robot.ServerURL
			}
			return postRobot(cmd.Context(), server, args[0], "drive", power)
		},
	}
	cmd.Flags().StringVarP(&server, "server", "s", "", "relay websocket URL (default from config)")
	return cmd
}

func newButtonCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "button <robot-id> <A|B|X|Y>",
		Short: "press a face button on a robot through the relay",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !protocol.ValidButton(args[1]) {
				return fmt.Errorf("unknown button %q", args[1])
			}
			if server == "" {
				server = cfg.Robot.ServerURL
			}
			return postRobot(cmd.Context(), server, args[0], "button", protocol.ButtonData{Name: args[1]})
		},
	}
	cmd.Flags().StringVarP(&server, "server", "s", "", "relay websocket URL (default from config)")
	return cmd
}

func parsePower(left, right string) (drive.Power, error) {
	l, err := strconv.ParseFloat(left, 64)
	if err != nil {
		return drive.Stop, fmt.Errorf("left: %w", err)
	}
	r, err := strconv.ParseFloat(right, 64)
	if err != nil {
		return drive.Stop, fmt.Errorf("right: %w", err)
	}
	return drive.Power{Left: l, Right: r}, nil
}

// robotEndpoint is the REST URL of action on robotID.
func robotEndpoint(server, robotID, action string) string {
	return fmt.Sprintf("%s/api/robots/%s/%s", config.ServerHTTPURL(server), url.PathEscape(robotID), action)
}

func postRobot(ctx context.Context, server, robotID, action string, body any) error {
	ctx, cancel := context.WithTimeout(ctx, httpc.DefaultTimeout)
	defer cancel()

	var resp struct {
		Status string `json:"status"`
	}
	if err := httpc.PostJSON(ctx, robotEndpoint(server, robotID, action), body, &resp); err != nil {
		return fmt.Errorf("%s %s: %w", action, robotID, err)
	}
	fmt.Printf("%s %s: %s\n", action, robotID, resp.Status)
	return nil
}
