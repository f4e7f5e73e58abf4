package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kome-inc/robocar/internal/config"
	"github.com/kome-inc/robocar/internal/httpc"
	"github.com/kome-inc/robocar/pkg/relay"
)

func newRobotsCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "robots",
		Short: "list robots connected to a relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if server == "" {
				server = cfg.Robot.ServerURL
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), httpc.DefaultTimeout)
			defer cancel()

			var list struct {
				Robots []relay.RobotInfo `json:"robots"`
				Count  int               `json:"count"`
			}
			if err := httpc.GetJSON(ctx, config.ServerHTTPURL(server)+"/api/robots/", &list); err != nil {
				return fmt.Errorf("list robots: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCONNECTED\tLAST SEEN\tBATTERY\tSIGNAL\tCONTROLLERS")
			for _, r := range list.Robots {
				fmt.Fprintf(w, "%s\t%s\t%s ago\t%d%%\t%d%%\t%d\n",
					r.ID,
					r.Connected.Format(time.RFC3339),
					time.Since(r.LastSeen).Round(time.Second),
					r.State.Battery,
					r.State.Signal,
					r.Controllers)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&server, "server", "s", "", "relay websocket URL (default from config)")
	return cmd
}
