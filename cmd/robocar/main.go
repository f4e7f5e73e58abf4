// robocar: touch joystick relay and robot agent for a remote-controlled car.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kome-inc/robocar/internal/config"
	"github.com/kome-inc/robocar/internal/log"
)

var version = "0.3.0"

var (
	configFile string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "robocar",
		Short:         "drive a robot car from a touch joystick",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	rootCmd.AddCommand(
		newServeCmd(),
		newAgentCmd(),
		newComputeCmd(),
		newRobotsCmd(),
		newTouchCmd(),
		newDriveCmd(),
		newButtonCmd(),
	)

	err := rootCmd.Execute()
	log.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and initializes logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log.Init(cfg.LogLevel)
	return cfg, nil
}
