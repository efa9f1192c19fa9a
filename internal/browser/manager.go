// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/authflow/internal/config"
)

const defaultLaunchTimeout = 60 * time.Second

// Manager launches Chrome instances and hands out sessions bound to them.
// Each acquired session owns its own browser process.
type Manager struct {
	logger  *zap.Logger
	browser config.BrowserConfig
	flow    config.FlowConfig
	goos    string
}

// NewManager creates a browser manager. No browser is started until Acquire.
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	return &Manager{
		logger:  logger.Named("browser_manager"),
		browser: cfg.Browser,
		flow:    cfg.Flow,
		goos:    runtime.GOOS,
	}
}

// Acquire starts a browser, confirms it responds, and returns a session
// configured with the implicit wait. Launch failures wrap ErrLaunchFailed.
func (m *Manager) Acquire(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := m.browser.LaunchTimeout
	if timeout <= 0 {
		timeout = defaultLaunchTimeout
	}

	m.logger.Info("Launching browser...",
		zap.Bool("headless", m.browser.Headless),
		zap.String("exec_path", m.browser.ExecPath),
		zap.Duration("launch_timeout", timeout),
	)

	// The process must outlive ctx; only Session.Close terminates it.
	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), m.allocatorOptions()...)
	cdpLog := m.logger.Named("cdp").Sugar()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(cdpLog.Debugf),
		chromedp.WithErrorf(cdpLog.Debugf),
	)

	cleanup := func() {
		tabCancel()
		allocCancel()
	}

	// The first Run on tabCtx allocates the browser and binds it to tabCtx.
	// It runs in a goroutine so a hung launch can be abandoned.
	launched := make(chan error, 1)
	go func() {
		launched <- chromedp.Run(tabCtx)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-launched:
	case <-timer.C:
		err = fmt.Errorf("browser did not start within %s", timeout)
	case <-ctx.Done():
		cleanup()
		return nil, ctx.Err()
	}
	if err != nil {
		cleanup()
		m.logger.Error("Browser failed to start.", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}

	probeCtx, cancelProbe := context.WithTimeout(tabCtx, timeout)
	err = chromedp.Run(probeCtx, chromedp.Navigate("about:blank"))
	cancelProbe()
	if err != nil {
		cleanup()
		m.logger.Error("Browser started but is not responsive.", zap.Error(err))
		return nil, fmt.Errorf("%w: browser not responsive: %w", ErrLaunchFailed, err)
	}

	s := newCDPSession(uuid.NewString(), tabCtx, tabCancel, allocCancel, m.logger, sessionTimings{
		implicitWait: m.browser.ImplicitWait,
		navigation:   m.browser.NavigationTimeout,
		pollInterval: m.flow.PollInterval,
	})
	m.logger.Info("Browser launched and responsive.", zap.String("session_id", s.ID()))
	return s, nil
}

// launchFlags translates the browser configuration into Chrome command line
// flags. A false boolean removes a flag set by chromedp's defaults.
func (m *Manager) launchFlags() map[string]interface{} {
	flags := map[string]interface{}{
		"headless":           m.browser.Headless,
		"disable-extensions": true,
	}
	if m.browser.Headless {
		flags["disable-gpu"] = true
	}
	// Chrome refuses to start sandboxed as root inside most containers.
	if m.browser.NoSandbox && m.goos == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
		flags["disable-setuid-sandbox"] = true
	}

	for _, arg := range m.browser.Args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimLeft(parts[0], "-")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			flags[name] = parts[1]
		} else {
			flags[name] = true
		}
	}
	return flags
}

// allocatorOptions assembles the chromedp exec allocator options.
func (m *Manager) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	for name, value := range m.launchFlags() {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if m.browser.WindowWidth > 0 && m.browser.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(m.browser.WindowWidth, m.browser.WindowHeight))
	}
	if m.browser.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(m.browser.ExecPath))
	}
	return opts
}
