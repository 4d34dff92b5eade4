package config

import (
	"errors"
	"time"
)

// DefaultScriptURL is where HTML CodeSniffer is loaded from when no local
// script is configured.
const DefaultScriptURL = "https://squizlabs.github.io/HTML_CodeSniffer/build/HTMLCS.js"

// BrowserConfig configures the Chrome instance pages are loaded in.
type BrowserConfig struct {
	DebuggerURL         string   `yaml:"debugger_url" json:"debugger_url,omitempty"`
	Launch              []string `yaml:"launch" json:"launch,omitempty"` // binary followed by flags
	Headless            bool     `yaml:"headless" json:"headless"`
	ViewportWidth       int      `yaml:"viewport_width" json:"viewport_width,omitempty"`
	ViewportHeight      int      `yaml:"viewport_height" json:"viewport_height,omitempty"`
	NavigationTimeoutMs int      `yaml:"navigation_timeout_ms" json:"navigation_timeout_ms,omitempty"`
}

// GetViewportWidth returns viewport width.
func (b BrowserConfig) GetViewportWidth() int {
	if b.ViewportWidth <= 0 {
		return 1280
	}
	return b.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (b BrowserConfig) GetViewportHeight() int {
	if b.ViewportHeight <= 0 {
		return 1024
	}
	return b.ViewportHeight
}

// NavigationTimeout returns the navigation timeout.
func (b BrowserConfig) NavigationTimeout() time.Duration {
	if b.NavigationTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(b.NavigationTimeoutMs) * time.Millisecond
}

// EngineConfig says where the rule engine script comes from. ScriptPath
// wins over ScriptURL.
type EngineConfig struct {
	ScriptPath string `yaml:"script_path" json:"script_path,omitempty"`
	ScriptURL  string `yaml:"script_url" json:"script_url,omitempty"`
}

// Validate requires at least one script source.
func (e EngineConfig) Validate() error {
	if e.ScriptPath == "" && e.ScriptURL == "" {
		return errors.New("engine script not configured (set engine.script_path or engine.script_url)")
	}
	return nil
}
