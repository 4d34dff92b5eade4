package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all a11yscan configuration.
type Config struct {
	// Rule-set identifier passed opaquely to the engine
	Standard string `yaml:"standard"`

	// Rule codes and/or severity names to suppress
	Ignore []string `yaml:"ignore"`

	// Delay between processing and message collection, in milliseconds
	Wait int `yaml:"wait"`

	// Minimum finding type that makes the CLI exit non-zero
	Level string `yaml:"level"`

	// Scan limits
	ScanLimits `yaml:",inline"`

	// Browser transport
	Browser BrowserConfig `yaml:"browser"`

	// Rule engine script
	Engine EngineConfig `yaml:"engine"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ValidStandards lists the rule sets HTML CodeSniffer ships with.
var ValidStandards = []string{"Section508", "WCAG2A", "WCAG2AA", "WCAG2AAA"}

// ValidLevels lists the accepted failure thresholds.
var ValidLevels = []string{"error", "warning", "notice", "none"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Standard: "WCAG2AA",
		Ignore:   []string{},
		Wait:     0,
		Level:    "error",

		ScanLimits: ScanLimits{
			Concurrency: 4,
			Timeout:     "60s",
		},

		Browser: BrowserConfig{
			Headless:            true,
			ViewportWidth:       1280,
			ViewportHeight:      1024,
			NavigationTimeoutMs: 30000,
		},

		Engine: EngineConfig{
			ScriptURL: DefaultScriptURL,
		},

		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("A11YSCAN_STANDARD"); v != "" {
		c.Standard = v
	}
	if v := os.Getenv("A11YSCAN_DEBUGGER_URL"); v != "" {
		c.Browser.DebuggerURL = v
	}
	if v := os.Getenv("A11YSCAN_HTMLCS_PATH"); v != "" {
		c.Engine.ScriptPath = v
	}
	if v := os.Getenv("A11YSCAN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// GetWait returns the wait as a duration.
func (c *Config) GetWait() time.Duration {
	if c.Wait <= 0 {
		return 0
	}
	return time.Duration(c.Wait) * time.Millisecond
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !contains(ValidStandards, c.Standard) {
		return fmt.Errorf("invalid standard: %s (valid: %v)", c.Standard, ValidStandards)
	}
	if !contains(ValidLevels, strings.ToLower(c.Level)) {
		return fmt.Errorf("invalid level: %s (valid: %v)", c.Level, ValidLevels)
	}
	if c.Wait < 0 {
		return fmt.Errorf("wait must be >= 0 ms")
	}
	if err := c.ValidateScanLimits(); err != nil {
		return err
	}
	return c.Engine.Validate()
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
