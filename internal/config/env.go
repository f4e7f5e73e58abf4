package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variables read by ApplyEnv.
const (
	EnvPort      = "PORT"
	EnvServerURL = "ROBOCAR_SERVER"
	EnvRobotID   = "ROBOT_ID"
	EnvLogLevel  = "LOG_LEVEL"
	EnvPlatform  = "JOYSTICK_PLATFORM"
)

// ApplyEnv overrides fields from environment variables when they are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv(EnvServerURL); v != "" {
		c.Robot.ServerURL = v
	}
	if v := os.Getenv(EnvRobotID); v != "" {
		c.Robot.ID = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvPlatform); v != "" {
		c.Joystick.Platform = v
	}
}

// ServerHTTPURL converts a relay websocket base URL into its HTTP form.
func ServerHTTPURL(wsURL string) string {
	if rest, ok := strings.CutPrefix(wsURL, "wss://"); ok {
		return "https://" + rest
	}
	if rest, ok := strings.CutPrefix(wsURL, "ws://"); ok {
		return "http://" + rest
	}
	return wsURL
}

// RobotURL returns the websocket URL a robot registers on.
func RobotURL(serverURL, robotID string) string {
	if robotID == "" {
		return fmt.Sprintf("%s/ws/robot", serverURL)
	}
	return fmt.Sprintf("%s/ws/robot/%s", serverURL, robotID)
}

// ControllerURL returns the websocket URL a controller pairs on.
func ControllerURL(serverURL, robotID string) string {
	return fmt.Sprintf("%s/ws/controller/%s", serverURL, robotID)
}
