package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/vecstream/internal/backend"
	"github.com/samcharles93/vecstream/internal/device"
	"github.com/samcharles93/vecstream/internal/logger"
)

// Config represents the vecstream configuration file (~/.config/vecstream/config.yaml).
type Config struct {
	Backend       string `yaml:"backend"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "vecstream", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig() Config {
	cfg, _ := loadConfigFile(configPath())
	return cfg
}

func loadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// flagSetter reports whether a flag was given explicitly on the command line.
type flagSetter interface {
	IsSet(name string) bool
}

// applyCommonConfig applies config file defaults to the global flags that
// were not set explicitly.
func applyCommonConfig(c flagSetter, cfg Config) {
	if cfg.Backend != "" && !c.IsSet("backend") {
		backendName = cfg.Backend
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

func applyServeConfig(c flagSetter, cfg Config, addr *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}

// setup loads the config file and installs the logger on the context.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	applyCommonConfig(cmd, LoadConfig())
	level := logLevel
	if debug {
		level = "debug"
	}
	log := logger.Setup(os.Stderr, logFormat, level)
	return logger.WithContext(ctx, log), nil
}

// openDevice opens the selected backend, turning failures into exit status 1.
func openDevice(ctx context.Context) (device.Device, error) {
	dev, err := backend.Open(backendName)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("error: open backend: %v", err), 1)
	}
	info := backend.Describe(dev)
	logger.FromContext(ctx).Debug("device opened", "backend", info.Backend, "name", info.Name)
	return dev, nil
}
