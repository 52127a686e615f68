// ABOUTME: Runtime configuration for the player
// ABOUTME: YAML file with environment-variable overrides and sane defaults
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
)

// Config holds all runtime configuration.
type Config struct {
	// Name is the player's friendly name (default: hostname-derived).
	Name string `yaml:"name"`

	// Port is the WebSocket listener and mDNS advertisement port.
	Port int `yaml:"port"`

	// BufferCapacity is the audio buffer capacity in bytes.
	BufferCapacity int `yaml:"buffer_capacity"`

	// StateDir holds the persistent client identity.
	StateDir string `yaml:"state_dir"`

	// PrebufferTimeout bounds the wait for initial audio before
	// playback proceeds regardless.
	PrebufferTimeout time.Duration `yaml:"prebuffer_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	name := "sendspin-player"
	if hostname, err := os.Hostname(); err == nil {
		name = fmt.Sprintf("%s-sendspin-player", hostname)
	}
	return Config{
		Name:             name,
		Port:             8927,
		BufferCapacity:   4 * 1024 * 1024,
		StateDir:         defaultStateDir(),
		PrebufferTimeout: 5 * time.Second,
	}
}

// Load reads configuration from the YAML file at path (skipped when
// path is empty or missing), then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.Name = envStr("SENDSPIN_NAME", cfg.Name)
	cfg.Port = envInt("SENDSPIN_PORT", cfg.Port)
	cfg.BufferCapacity = envInt("SENDSPIN_BUFFER_CAPACITY", cfg.BufferCapacity)
	cfg.StateDir = envStr("SENDSPIN_STATE_DIR", cfg.StateDir)

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.BufferCapacity <= 0 {
		return cfg, fmt.Errorf("invalid buffer capacity %d", cfg.BufferCapacity)
	}
	if cfg.PrebufferTimeout <= 0 {
		cfg.PrebufferTimeout = 5 * time.Second
	}
	return cfg, nil
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/sendspin-player"
	}
	return ".sendspin-player"
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
