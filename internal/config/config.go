// Package config loads the server configuration: built-in defaults,
// optionally overlaid with a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"bomberhans/internal/game"
)

// Config holds everything the server process needs at startup.
type Config struct {
	// ServerName is shown to clients in the hello handshake.
	ServerName string `yaml:"server_name"`

	// Listen is the address the websocket listener binds to.
	Listen string `yaml:"listen"`

	// Database is the SQLite file for match results. Empty disables
	// persistence.
	Database string `yaml:"database"`

	// ResendMS is how long a reliable packet stays unacknowledged before it
	// is retransmitted.
	ResendMS int `yaml:"resend_ms"`

	// SessionTimeoutMS is how long a session may stay silent before the
	// server stops sending to it.
	SessionTimeoutMS int `yaml:"session_timeout_ms"`

	// ScoreCap ends a game once a player reaches this many kills. Zero
	// disables the cap.
	ScoreCap int `yaml:"score_cap"`

	// Game is the default settings for new lobbies; hosts may change them
	// per lobby.
	Game game.Settings `yaml:"game"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ServerName:       "bomberhans",
		Listen:           ":3267",
		Database:         "bomberhans.db",
		ResendMS:         250,
		SessionTimeoutMS: 10_000,
		ScoreCap:         10,
		Game:             game.DefaultSettings(),
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c Config) Validate() error {
	if c.ServerName == "" {
		return fmt.Errorf("config: server_name must not be empty")
	}
	if c.Listen == "" {
		return fmt.Errorf("config: listen address must not be empty")
	}
	if c.ResendMS <= 0 {
		return fmt.Errorf("config: resend_ms must be positive, got %d", c.ResendMS)
	}
	if c.SessionTimeoutMS <= 0 {
		return fmt.Errorf("config: session_timeout_ms must be positive, got %d", c.SessionTimeoutMS)
	}
	if c.ScoreCap < 0 {
		return fmt.Errorf("config: score_cap must not be negative, got %d", c.ScoreCap)
	}
	if err := c.Game.Validate(); err != nil {
		return err
	}
	return nil
}

// Resend returns the retransmission interval.
func (c Config) Resend() time.Duration {
	return time.Duration(c.ResendMS) * time.Millisecond
}

// SessionTimeout returns the silence threshold for sessions.
func (c Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMS) * time.Millisecond
}
