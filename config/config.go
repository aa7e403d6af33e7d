// Package config loads the cueforge TOML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Engine tunes the playback engine and the manager sweep.
type Engine struct {
	ReconcileMS int `toml:"reconcile_ms" validate:"min=1,max=10000"`
	PositionMS  int `toml:"position_ms" validate:"min=1,max=10000"`
	QueueSize   int `toml:"queue_size" validate:"min=1"`
	EventBuffer int `toml:"event_buffer" validate:"min=1"`
}

// Remote configures the OSC server.
type Remote struct {
	Enabled     bool     `toml:"enabled"`
	Listen      string   `toml:"listen" validate:"required_if=Enabled true,omitempty,hostname_port"`
	WorkspaceID string   `toml:"workspace_id" validate:"omitempty,excludesall=/"`
	Feedback    []string `toml:"feedback" validate:"dive,hostname_port"`
}

// Journal configures the SQLite show log.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path" validate:"required_if=Enabled true"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen" validate:"required_if=Enabled true,omitempty,hostname_port"`
}

// Logging configures log output.
type Logging struct {
	Level string `toml:"level" validate:"oneof=debug info warn error"`
}

// Workspace names the show file opened when none is given.
type Workspace struct {
	DefaultPath string `toml:"default_path"`
}

// Config is the whole configuration file.
type Config struct {
	Engine    Engine    `toml:"engine"`
	Remote    Remote    `toml:"remote"`
	Journal   Journal   `toml:"journal"`
	Metrics   Metrics   `toml:"metrics"`
	Logging   Logging   `toml:"log"`
	Workspace Workspace `toml:"workspace"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/cueforge/config.toml")
}

// Load reads path, or the default location when path is empty, over the
// defaults. A missing file is not an error; the second result reports
// whether one was read.
func Load(path string) (*Config, bool, error) {
	cfg := Default()

	resolved := path
	if resolved == "" {
		var err error
		if resolved, err = DefaultConfigPath(); err != nil {
			return nil, false, err
		}
	}
	resolved, err := expandPath(resolved)
	if err != nil {
		return nil, false, err
	}

	exists := true
	file, err := os.Open(resolved)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		exists = false
		log.Debug("No config file, using defaults", "path", resolved)
	case err != nil:
		return nil, false, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return &cfg, exists, nil
}

// Parse decodes a configuration from TOML text over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "warning" {
		c.Logging.Level = "warn"
	}
	c.Remote.Listen = strings.TrimSpace(c.Remote.Listen)
	c.Remote.WorkspaceID = strings.TrimSpace(c.Remote.WorkspaceID)
	c.Metrics.Listen = strings.TrimSpace(c.Metrics.Listen)

	feedback := c.Remote.Feedback[:0]
	for _, target := range c.Remote.Feedback {
		if target = strings.TrimSpace(target); target != "" {
			feedback = append(feedback, target)
		}
	}
	c.Remote.Feedback = feedback

	var err error
	if c.Journal.Path, err = expandPath(strings.TrimSpace(c.Journal.Path)); err != nil {
		return err
	}
	if c.Workspace.DefaultPath, err = expandPath(strings.TrimSpace(c.Workspace.DefaultPath)); err != nil {
		return err
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ReconcileInterval is the manager sweep period.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Engine.ReconcileMS) * time.Millisecond
}

// PositionInterval is how often the engine reports positions.
func (c *Config) PositionInterval() time.Duration {
	return time.Duration(c.Engine.PositionMS) * time.Millisecond
}

// LogLevel is the configured level for charmbracelet/log.
func (c *Config) LogLevel() log.Level {
	level, err := log.ParseLevel(c.Logging.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
