// Package browser loads pages in Chrome through rod and exposes each loaded
// page as an HTML CodeSniffer engine.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"a11yscan/internal/config"
	"a11yscan/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
)

// scriptSource returns the engine script to inject as either a URL or
// inline content. A local path wins over a URL.
func scriptSource(e config.EngineConfig) (url, content string, err error) {
	if e.ScriptPath != "" {
		data, err := os.ReadFile(e.ScriptPath)
		if err != nil {
			return "", "", fmt.Errorf("read engine script: %w", err)
		}
		return "", string(data), nil
	}
	if e.ScriptURL != "" {
		return e.ScriptURL, "", nil
	}
	return config.DefaultScriptURL, "", nil
}

// Manager owns the Chrome instance and the pages opened in it.
type Manager struct {
	cfg        config.BrowserConfig
	engine     config.EngineConfig
	mu         sync.RWMutex
	browser    *rod.Browser
	launched   *launcher.Launcher
	pages      map[string]*Page
	controlURL string // WebSocket URL for DevTools

	scriptOnce    sync.Once
	scriptURL     string
	scriptContent string
	scriptErr     error
}

// NewManager creates a manager. Nothing is launched until Start.
func NewManager(cfg config.BrowserConfig, engine config.EngineConfig) *Manager {
	return &Manager{
		cfg:    cfg,
		engine: engine,
		pages:  make(map[string]*Page),
	}
}

// Start connects to an existing Chrome or launches a new one.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// If we already have a browser, verify it's still alive
	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		logging.BrowserWarn("stale browser connection detected, reconnecting")
		_ = m.browser.Close()
		m.browser = nil
		m.controlURL = ""
		m.pages = make(map[string]*Page)
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" {
		l := m.launcher()
		url, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		m.launched = l
		controlURL = url
		logging.Browser("launched chrome at %s", controlURL)
	}

	// The browser outlives the start context; pages get their own.
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		m.killLaunched()
		return fmt.Errorf("connect to chrome: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = browser.Close()
		m.killLaunched()
		return err
	}

	m.browser = browser
	m.controlURL = controlURL
	return nil
}

func (m *Manager) launcher() *launcher.Launcher {
	l := launcher.New().Headless(m.cfg.Headless)
	if len(m.cfg.Launch) == 0 {
		return l
	}
	if bin := m.cfg.Launch[0]; bin != "" {
		l = l.Bin(bin)
	}
	for _, rawFlag := range m.cfg.Launch[1:] {
		flagStr := strings.TrimLeft(rawFlag, "-")
		name, val, hasVal := strings.Cut(flagStr, "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}

func (m *Manager) killLaunched() {
	if m.launched != nil {
		m.launched.Kill()
		m.launched.Cleanup()
		m.launched = nil
	}
}

func (m *Manager) ensureStarted(ctx context.Context) error {
	m.mu.RLock()
	started := m.browser != nil
	m.mu.RUnlock()
	if started {
		return nil
	}
	return m.Start(ctx)
}

// ControlURL returns the WebSocket debugger URL.
func (m *Manager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// IsConnected returns whether the browser is connected.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// Open loads url in a fresh incognito page and injects HTML CodeSniffer.
// The returned page is ready for Process.
func (m *Manager) Open(ctx context.Context, url string) (*Page, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	browser := m.browser
	m.mu.RUnlock()
	if browser == nil {
		return nil, errors.New("browser not connected")
	}

	timer := logging.StartTimer(logging.CategoryBrowser, "open "+url)
	defer timer.StopWithThreshold(m.cfg.NavigationTimeout() / 2)

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	rp, err := incognito.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	page := &Page{id: uuid.NewString(), url: url, page: rp, incognito: incognito, mgr: m}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.GetViewportWidth(),
		Height:            m.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(rp); err != nil {
		logging.BrowserWarn("failed to set viewport: %v", err)
	}

	page.watchConsole()

	nav := rp.Context(ctx).Timeout(m.cfg.NavigationTimeout())
	if err := nav.Navigate(url); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := nav.WaitLoad(); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("wait for %s to load: %w", url, err)
	}

	if err := m.inject(ctx, rp); err != nil {
		_ = page.Close()
		return nil, err
	}

	m.mu.Lock()
	m.pages[page.id] = page
	m.mu.Unlock()

	logging.BrowserDebug("opened page %s for %s", page.id, url)
	return page, nil
}

func (m *Manager) inject(ctx context.Context, rp *rod.Page) error {
	m.scriptOnce.Do(func() {
		m.scriptURL, m.scriptContent, m.scriptErr = scriptSource(m.engine)
	})
	if m.scriptErr != nil {
		return m.scriptErr
	}
	if err := rp.Context(ctx).AddScriptTag(m.scriptURL, m.scriptContent); err != nil {
		return fmt.Errorf("inject engine script: %w", err)
	}
	return nil
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	delete(m.pages, id)
	m.mu.Unlock()
}

// Shutdown closes tracked pages and the browser.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, p := range m.pages {
		_ = p.release()
		delete(m.pages, id)
	}

	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	m.killLaunched()
	m.controlURL = ""
	logging.BrowserDebug("browser shut down")
	return err
}
