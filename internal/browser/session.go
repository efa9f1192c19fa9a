// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultImplicitWait = 10 * time.Second
	defaultNavigation   = 30 * time.Second
	defaultPollInterval = 500 * time.Millisecond
)

type sessionTimings struct {
	implicitWait time.Duration
	navigation   time.Duration
	pollInterval time.Duration
}

func (t sessionTimings) withDefaults() sessionTimings {
	if t.implicitWait <= 0 {
		t.implicitWait = defaultImplicitWait
	}
	if t.navigation <= 0 {
		t.navigation = defaultNavigation
	}
	if t.pollInterval <= 0 {
		t.pollInterval = defaultPollInterval
	}
	return t
}

// CDPSession is a Session backed by a chromedp tab in a dedicated browser.
type CDPSession struct {
	id          string
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
	timings     sessionTimings
	// locate reads the page URL; replaced in tests.
	locate func(context.Context) (string, error)

	closed    atomic.Bool
	closeOnce sync.Once
}

var _ Session = (*CDPSession)(nil)

func newCDPSession(
	id string,
	tabCtx context.Context,
	tabCancel, allocCancel context.CancelFunc,
	logger *zap.Logger,
	timings sessionTimings,
) *CDPSession {
	s := &CDPSession{
		id:          id,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		logger:      logger.With(zap.String("session_id", id)),
		timings:     timings.withDefaults(),
	}
	s.locate = s.location
	return s
}

// ID returns the session identifier.
func (s *CDPSession) ID() string { return s.id }

// Navigate loads url, bounded by the navigation timeout.
func (s *CDPSession) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.timings.navigation)
	defer cancel()

	s.logger.Debug("Navigating", zap.String("url", url))
	if err := s.runActions(navCtx, chromedp.Navigate(url)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrSessionClosed) {
			return err
		}
		return fmt.Errorf("%w: %s: %w", ErrNavigationFailed, url, err)
	}
	return nil
}

// SendKeys types value into the element, waiting up to the implicit wait for it.
func (s *CDPSession) SendKeys(ctx context.Context, sel Selector, value string) error {
	return s.lookup(ctx, sel, chromedp.SendKeys(sel.Query(), value, chromedp.ByQuery))
}

// Click clicks the element, waiting up to the implicit wait for it.
func (s *CDPSession) Click(ctx context.Context, sel Selector) error {
	return s.lookup(ctx, sel, chromedp.Click(sel.Query(), chromedp.ByQuery))
}

// Text reads the element's text, waiting up to the implicit wait for it.
func (s *CDPSession) Text(ctx context.Context, sel Selector) (string, error) {
	var text string
	if err := s.lookup(ctx, sel, chromedp.Text(sel.Query(), &text, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return text, nil
}

// CurrentURL returns window.location.href.
func (s *CDPSession) CurrentURL(ctx context.Context) (string, error) {
	if s.closed.Load() {
		return "", ErrSessionClosed
	}
	return s.locate(ctx)
}

func (s *CDPSession) location(ctx context.Context) (string, error) {
	var loc string
	if err := s.runActions(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// WaitForURL polls the current URL every poll interval until it equals want.
// The URL is checked once more after the deadline passes, so a match landing
// anywhere inside timeout is observed.
func (s *CDPSession) WaitForURL(ctx context.Context, want string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(s.timings.pollInterval), 1)
	var last string
	check := func(checkCtx context.Context) (bool, error) {
		current, err := s.CurrentURL(checkCtx)
		if err != nil {
			if errors.Is(err, ErrSessionClosed) {
				return false, err
			}
			s.logger.Debug("Could not read current URL while waiting.", zap.Error(err))
			return false, nil
		}
		last = current
		return current == want, nil
	}

poll:
	for {
		r := limiter.Reserve()
		timer := time.NewTimer(r.Delay())
		select {
		case <-waitCtx.Done():
			timer.Stop()
			r.Cancel()
			break poll
		case <-timer.C:
		}
		if ok, err := check(waitCtx); ok || err != nil {
			return err
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	finalCtx, finalCancel := context.WithTimeout(ctx, finalCheckTimeout(s.timings.pollInterval))
	defer finalCancel()
	if ok, err := check(finalCtx); ok || err != nil {
		return err
	}
	return fmt.Errorf("%w: current URL %q, want %q after %s", ErrWaitTimeout, last, want, timeout)
}

// finalCheckTimeout bounds the post-deadline URL read.
func finalCheckTimeout(poll time.Duration) time.Duration {
	if poll > time.Second {
		return time.Second
	}
	return poll
}

// ClearCookies deletes all browser cookies.
func (s *CDPSession) ClearCookies(ctx context.Context) error {
	if err := s.runActions(ctx, network.ClearBrowserCookies()); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}
	return nil
}

// Reload reloads the current page and waits for it to load.
func (s *CDPSession) Reload(ctx context.Context) error {
	navCtx, cancel := context.WithTimeout(ctx, s.timings.navigation)
	defer cancel()

	if err := s.runActions(navCtx, chromedp.Reload()); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: reload: %w", ErrNavigationFailed, err)
	}
	return nil
}

// Close shuts the browser down. Calls after the first return nil.
func (s *CDPSession) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.logger.Debug("Closing browser session.")

		done := make(chan error, 1)
		go func() {
			done <- chromedp.Cancel(s.tabCtx)
		}()
		select {
		case err = <-done:
		case <-ctx.Done():
			err = fmt.Errorf("graceful browser shutdown interrupted: %w", ctx.Err())
		}

		// Either way, kill the process and remove its profile directory.
		s.tabCancel()
		s.allocCancel()
		s.logger.Info("Browser session closed.")
	})
	return err
}

// lookup runs an element action under the implicit wait and maps its expiry
// to ErrElementNotFound.
func (s *CDPSession) lookup(ctx context.Context, sel Selector, action chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timings.implicitWait)
	defer cancel()

	err := s.runActions(opCtx, action)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, ErrSessionClosed) {
		return err
	}
	if opCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", ErrElementNotFound, sel, s.timings.implicitWait)
	}
	return fmt.Errorf("interaction with %s failed: %w", sel, err)
}

// runActions executes actions against the tab, canceled by either the
// session's lifetime or ctx.
func (s *CDPSession) runActions(ctx context.Context, actions ...chromedp.Action) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	runCtx, cancel := CombineContext(s.tabCtx, ctx)
	defer cancel()

	return chromedp.Run(runCtx, actions...)
}
