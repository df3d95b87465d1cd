package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/chis/pathdesigner/internal/layout"
)

// ValidationResult contains the results of configuration validation.
// Errors block startup; warnings are logged but do not.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// IsValid returns true if there are no validation errors.
// Warnings do not affect validity.
func (vr *ValidationResult) IsValid() bool {
	return len(vr.Errors) == 0
}

// HasWarnings returns true if there are any validation warnings.
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// AddError adds an error message to the validation result.
func (vr *ValidationResult) AddError(msg string) {
	vr.Errors = append(vr.Errors, msg)
}

// AddWarning adds a warning message to the validation result.
func (vr *ValidationResult) AddWarning(msg string) {
	vr.Warnings = append(vr.Warnings, msg)
}

// Validate checks the configuration for problems.
func (c *Config) Validate() ValidationResult {
	result := ValidationResult{}

	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		result.AddError(fmt.Sprintf("invalid listen address %q: %v", c.ListenAddr, err))
	}

	u, err := url.Parse(c.CAMServiceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		result.AddError(fmt.Sprintf("invalid CAM service URL %q: must be an absolute http(s) URL", c.CAMServiceURL))
	}

	if c.CAMTimeout <= 0 {
		result.AddError("cam_timeout must be positive")
	}

	if _, err := layout.ParseDirection(c.Layout.Direction); err != nil {
		result.AddError(err.Error())
	}
	if c.Layout.RankGap <= 0 || c.Layout.NodeGap <= 0 {
		result.AddError("layout gaps must be positive")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		result.AddError(fmt.Sprintf("unknown log level %q", c.LogLevel))
	}

	if c.PresetsPath != "" {
		if _, err := os.Stat(c.PresetsPath); err != nil {
			result.AddWarning(fmt.Sprintf("presets file %s is not readable, serving built-in defaults", c.PresetsPath))
		}
	}

	return result
}
