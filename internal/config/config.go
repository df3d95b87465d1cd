package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chis/pathdesigner/internal/layout"
)

// Config represents the application configuration.
// It is loaded from a YAML file with environment variable overrides;
// environment values take precedence over YAML values.
type Config struct {
	// ListenAddr is the address the HTTP API binds to.
	ListenAddr string `yaml:"listen_addr"`

	// CAMServiceURL is the base URL of the geometry/CAM service.
	CAMServiceURL string `yaml:"cam_service_url"`

	// CAMTimeout bounds each CAM service request.
	CAMTimeout time.Duration `yaml:"cam_timeout"`

	// DatabasePath is the SQLite file holding saved projects.
	DatabasePath string `yaml:"database_path"`

	// PresetsPath points to a YAML file with material presets.
	// Empty means the built-in defaults are served.
	PresetsPath string `yaml:"presets_path"`

	// Layout controls the automatic graph layout.
	Layout LayoutConfig `yaml:"layout"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// LogJSON switches log output to one JSON object per line.
	LogJSON bool `yaml:"log_json"`
}

// LayoutConfig holds the auto-layout spacing and flow direction.
type LayoutConfig struct {
	Direction string  `yaml:"direction"`
	RankGap   float64 `yaml:"rank_gap"`
	NodeGap   float64 `yaml:"node_gap"`
}

// Default returns the configuration used when no file and no
// environment overrides are present.
func Default() Config {
	opts := layout.DefaultOptions()
	return Config{
		ListenAddr:    ":8080",
		CAMServiceURL: "http://localhost:8765",
		CAMTimeout:    60 * time.Second,
		DatabasePath:  "pathdesigner.db",
		Layout: LayoutConfig{
			Direction: layout.TopToBottom.String(),
			RankGap:   opts.RankGap,
			NodeGap:   opts.NodeGap,
		},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path (missing file is not an error),
// applies environment overrides and fills unset fields with defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return Config{}, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.fillDefaults()

	if result := cfg.Validate(); !result.IsValid() {
		return Config{}, fmt.Errorf("invalid configuration: %s", result.Errors[0])
	}
	return cfg, nil
}

// applyEnv overrides fields from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("CAM_SERVICE_URL"); v != "" {
		c.CAMServiceURL = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("PRESETS_PATH"); v != "" {
		c.PresetsPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_JSON"); v != "" {
		c.LogJSON = v == "true" || v == "1"
	}
	if v := os.Getenv("LAYOUT_DIRECTION"); v != "" {
		c.Layout.Direction = v
	}
}

// fillDefaults replaces zero values left by a partial YAML file.
func (c *Config) fillDefaults() {
	def := Default()
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.CAMServiceURL == "" {
		c.CAMServiceURL = def.CAMServiceURL
	}
	if c.CAMTimeout <= 0 {
		c.CAMTimeout = def.CAMTimeout
	}
	if c.DatabasePath == "" {
		c.DatabasePath = def.DatabasePath
	}
	if c.Layout.Direction == "" {
		c.Layout.Direction = def.Layout.Direction
	}
	if c.Layout.RankGap <= 0 {
		c.Layout.RankGap = def.Layout.RankGap
	}
	if c.Layout.NodeGap <= 0 {
		c.Layout.NodeGap = def.Layout.NodeGap
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// LayoutOptions converts the layout section into engine options.
// Call only after Load, which guarantees the direction parses.
func (c *Config) LayoutOptions() layout.Options {
	opts := layout.DefaultOptions()
	if dir, err := layout.ParseDirection(c.Layout.Direction); err == nil {
		opts.Direction = dir
	}
	opts.RankGap = c.Layout.RankGap
	opts.NodeGap = c.Layout.NodeGap
	return opts
}
