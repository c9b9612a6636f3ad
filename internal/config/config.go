// Package config loads the handpipe configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sova-tungnv/web-ai/internal/capture"
	"github.com/sova-tungnv/web-ai/internal/gesture"
	"github.com/sova-tungnv/web-ai/internal/pipeline"
)

// DataDirName is the per-user directory holding the database, the config
// file and the MediaPipe installation.
const DataDirName = ".handpipe"

// Server configures the HTTP surface.
type Server struct {
	Addr   string `yaml:"addr" json:"addr"`
	WebDir string `yaml:"web_dir" json:"web_dir"`
}

// Store configures the SQLite database.
type Store struct {
	// Path is the database file. Empty disables persistence.
	Path string `yaml:"path" json:"path"`
}

// MediaPipe locates the Python MediaPipe service.
type MediaPipe struct {
	Script string `yaml:"script" json:"script"`
	Python string `yaml:"python" json:"python"`
	// Mock replaces the service with a detector that never finds a subject.
	Mock bool `yaml:"mock" json:"mock"`
}

// Hooks configures the external executables run on gesture events.
type Hooks struct {
	// Dir holds one subdirectory per hook. Empty disables hooks.
	Dir     string        `yaml:"dir" json:"dir"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// Config is the complete handpipe configuration.
type Config struct {
	LogLevel string `yaml:"log_level" json:"log_level"`

	Server    Server    `yaml:"server" json:"server"`
	Store     Store     `yaml:"store" json:"store"`
	MediaPipe MediaPipe `yaml:"mediapipe" json:"mediapipe"`
	Hooks     Hooks     `yaml:"hooks" json:"hooks"`

	Camera   capture.Constraints    `yaml:"camera" json:"camera"`
	Activity capture.Activity       `yaml:"activity" json:"activity"`
	Watchdog capture.WatchdogConfig `yaml:"watchdog" json:"watchdog"`

	Hand pipeline.Config `yaml:"hand" json:"hand"`
	// FaceEnabled starts the face pipeline next to the hand pipeline.
	FaceEnabled bool            `yaml:"face_enabled" json:"face_enabled"`
	Face        pipeline.Config `yaml:"face" json:"face"`

	Gesture gesture.Thresholds `yaml:"gesture" json:"gesture"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: Server{
			Addr: ":8080",
		},
		Store: Store{
			Path: dataPath("handpipe.db"),
		},
		Hooks: Hooks{
			Dir:     dataPath("hooks"),
			Timeout: 2 * time.Second,
		},
		Camera:   capture.DefaultConstraints(),
		Activity: capture.DefaultActivity(),
		Watchdog: capture.DefaultWatchdogConfig(),
		Hand:     pipeline.HandConfig(),
		Face:     pipeline.FaceConfig(),
		Gesture:  gesture.DefaultThresholds(),
	}
}

// DataDir returns the per-user data directory, or "" when the home directory
// cannot be resolved.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DataDirName)
}

// DefaultPath returns the config file looked up when none is given.
func DefaultPath() string {
	return dataPath("config.yaml")
}

func dataPath(name string) string {
	dir := DataDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, name)
}

// Load reads path over the defaults and validates the result. An empty path
// or a missing default file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Hooks.Dir != "" && c.Hooks.Timeout <= 0 {
		return fmt.Errorf("hooks.timeout must be positive, got %s", c.Hooks.Timeout)
	}
	if err := c.Camera.Validate(); err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	if c.Activity.Enabled && c.Activity.IdleFPS <= 0 {
		return fmt.Errorf("activity.idle_fps must be positive, got %d", c.Activity.IdleFPS)
	}
	if err := c.Watchdog.Validate(); err != nil {
		return fmt.Errorf("watchdog: %w", err)
	}
	if err := c.Hand.Validate(); err != nil {
		return fmt.Errorf("hand: %w", err)
	}
	if c.FaceEnabled {
		if err := c.Face.Validate(); err != nil {
			return fmt.Errorf("face: %w", err)
		}
	}
	if err := c.Gesture.Validate(); err != nil {
		return fmt.Errorf("gesture: %w", err)
	}
	return nil
}

// Marshal renders c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
