// Package config provides configuration for go-temi commands.
//
// Values come from built-in defaults, then an optional YAML file, then
// TEMI_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultServiceURL     = "ws://127.0.0.1:7447/ws/sdk"
	DefaultPackageName    = "com.example.temi.skill"
	DefaultCallTimeout    = 5 * time.Second
	DefaultReconnectDelay = 2 * time.Second
	DefaultBridgeAddr     = ":8080"
	DefaultSimAddr        = ":7447"
	DefaultLogLevel       = "info"
)

// Config is the top-level configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	App     AppConfig     `yaml:"app"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Sim     SimConfig     `yaml:"sim"`
	Log     LogConfig     `yaml:"log"`
}

// ServiceConfig describes how to reach the robot service.
type ServiceConfig struct {
	URL            string        `yaml:"url" env:"TEMI_SERVICE_URL"`
	CallTimeout    time.Duration `yaml:"call_timeout" env:"TEMI_CALL_TIMEOUT"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" env:"TEMI_RECONNECT_DELAY"`
}

// AppConfig identifies the application to the robot service.
type AppConfig struct {
	PackageName string `yaml:"package_name" env:"TEMI_PACKAGE_NAME"`
	Kiosk       bool   `yaml:"kiosk" env:"TEMI_KIOSK"`
}

// BridgeConfig configures the local HTTP bridge.
type BridgeConfig struct {
	Addr string `yaml:"addr" env:"TEMI_BRIDGE_ADDR"`
}

// SimConfig configures the simulated robot service.
type SimConfig struct {
	Addr      string        `yaml:"addr" env:"TEMI_SIM_ADDR"`
	StepDelay time.Duration `yaml:"step_delay" env:"TEMI_SIM_STEP_DELAY"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" env:"TEMI_LOG_LEVEL"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			URL:            DefaultServiceURL,
			CallTimeout:    DefaultCallTimeout,
			ReconnectDelay: DefaultReconnectDelay,
		},
		App: AppConfig{
			PackageName: DefaultPackageName,
		},
		Bridge: BridgeConfig{
			Addr: DefaultBridgeAddr,
		},
		Sim: SimConfig{
			Addr:      DefaultSimAddr,
			StepDelay: 500 * time.Millisecond,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required values are present and sane.
func (c *Config) Validate() error {
	var errs []error
	if c.Service.URL == "" {
		errs = append(errs, errors.New("config: service.url is required"))
	}
	if c.App.PackageName == "" {
		errs = append(errs, errors.New("config: app.package_name is required"))
	}
	if c.Service.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("config: service.call_timeout must be positive, got %s", c.Service.CallTimeout))
	}
	if c.Service.ReconnectDelay < 0 {
		errs = append(errs, fmt.Errorf("config: service.reconnect_delay must not be negative, got %s", c.Service.ReconnectDelay))
	}
	return errors.Join(errs...)
}
