// Package config loads robocar configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kome-inc/robocar/pkg/joystick"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("config: invalid")

// Defaults
const (
	DefaultPort           = 5000
	DefaultServerURL      = "ws://localhost:5000"
	DefaultMaxSpeed       = 255
	DefaultControlRate    = 20 * time.Millisecond
	DefaultWatchdog       = 500 * time.Millisecond
	DefaultStateInterval  = 2 * time.Second
	DefaultReconnectDelay = time.Second
	DefaultDeadZone       = 0.02
)

// Config is the full robocar configuration.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Server   ServerConfig   `yaml:"server"`
	Joystick JoystickConfig `yaml:"joystick"`
	Robot    RobotConfig    `yaml:"robot"`
}

// ServerConfig configures the relay.
type ServerConfig struct {
	Port         int    `yaml:"port"`
	Debug        bool   `yaml:"debug"`
	AllowOrigins string `yaml:"allow_origins"`
}

// JoystickConfig is the default joystick geometry for controllers that do
// not send their own.
type JoystickConfig struct {
	Radius   float64 `yaml:"radius"`
	Platform string  `yaml:"platform"`

	// MaxForce caps force before it reaches the robot. 0 disables the cap.
	MaxForce float64 `yaml:"max_force"`
}

// RobotConfig configures the robot-side agent.
type RobotConfig struct {
	ID             string        `yaml:"id"`
	ServerURL      string        `yaml:"server_url"`
	MaxSpeed       int           `yaml:"max_speed"`
	ControlRate    time.Duration `yaml:"control_rate"`
	Watchdog       time.Duration `yaml:"watchdog"`
	StateInterval  time.Duration `yaml:"state_interval"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	DeadZone       float64       `yaml:"dead_zone"`
}

// Default returns a configuration that works out of the box on a LAN.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Port:         DefaultPort,
			AllowOrigins: "*",
		},
		Joystick: JoystickConfig{
			Radius:   joystick.DefaultRadius,
			Platform: joystick.PlatformIOS,
		},
		Robot: RobotConfig{
			ServerURL:      DefaultServerURL,
			MaxSpeed:       DefaultMaxSpeed,
			ControlRate:    DefaultControlRate,
			Watchdog:       DefaultWatchdog,
			StateInterval:  DefaultStateInterval,
			ReconnectDelay: DefaultReconnectDelay,
			DeadZone:       DefaultDeadZone,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// JoystickEngineConfig converts the joystick section for joystick.NewEngine.
func (c *Config) JoystickEngineConfig() joystick.Config {
	return joystick.Config{
		Radius:   c.Joystick.Radius,
		Platform: c.Joystick.Platform,
	}
}

// Validate rejects configurations the engine or agent cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	r := c.Joystick.Radius
	if !(r > 0) || math.IsInf(r, 0) {
		return fmt.Errorf("%w: joystick.radius must be positive, got %v", ErrInvalidConfig, r)
	}
	if _, err := joystick.LookupPlatform(c.Joystick.Platform); err != nil {
		return fmt.Errorf("%w: joystick.platform: %v", ErrInvalidConfig, err)
	}
	if c.Joystick.MaxForce < 0 {
		return fmt.Errorf("%w: joystick.max_force must not be negative", ErrInvalidConfig)
	}
	if c.Robot.MaxSpeed <= 0 {
		return fmt.Errorf("%w: robot.max_speed must be positive", ErrInvalidConfig)
	}
	if c.Robot.ControlRate <= 0 {
		return fmt.Errorf("%w: robot.control_rate must be positive", ErrInvalidConfig)
	}
	if c.Robot.DeadZone < 0 {
		return fmt.Errorf("%w: robot.dead_zone must not be negative", ErrInvalidConfig)
	}
	return nil
}
