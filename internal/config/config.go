// Package config resolves runtime configuration from defaults, an
// optional YAML file and environment variables, in that order.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// Data locations
	DataDir      string
	CheckpointDB string
	LossDir      string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig is the YAML shape of a config file. Empty fields leave the
// current value untouched.
type fileConfig struct {
	DataDir      string `yaml:"data_dir"`
	CheckpointDB string `yaml:"checkpoint_db"`
	LossDir      string `yaml:"loss_dir"`
	LogFile      string `yaml:"log_file"`
	LogLevel     string `yaml:"log_level"`
}

func defaults() Config {
	return Config{
		DataDir:      "data",
		CheckpointDB: "model_checkpoints/replay.db",
		LossDir:      "loss_curves",
		LogFile:      "/tmp/replay.log",
		LogLevel:     slog.LevelInfo,
	}
}

// Load reads configuration from environment variables on top of the
// built-in defaults.
func Load() Config {
	cfg := defaults()
	cfg.applyEnv()
	return cfg
}

// LoadFile reads a YAML config file, then applies environment variables
// on top, so the environment always wins.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg := defaults()
	cfg.applyFile(f)
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyFile(f fileConfig) {
	if f.DataDir != "" {
		c.DataDir = f.DataDir
	}
	if f.CheckpointDB != "" {
		c.CheckpointDB = f.CheckpointDB
	}
	if f.LossDir != "" {
		c.LossDir = f.LossDir
	}
	if f.LogFile != "" {
		c.LogFile = f.LogFile
	}
	if f.LogLevel != "" {
		c.LogLevel = ParseLevel(f.LogLevel)
	}
}

func (c *Config) applyEnv() {
	c.DataDir = getEnv("REPLAY_DATA_DIR", c.DataDir)
	c.CheckpointDB = getEnv("REPLAY_CHECKPOINT_DB", c.CheckpointDB)
	c.LossDir = getEnv("REPLAY_LOSS_DIR", c.LossDir)
	c.LogFile = getEnv("REPLAY_LOG_FILE", c.LogFile)
	if level := os.Getenv("REPLAY_LOG_LEVEL"); level != "" {
		c.LogLevel = ParseLevel(level)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
