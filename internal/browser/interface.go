package browser

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by Session implementations. Callers classify
// failures with errors.Is.
var (
	// ErrLaunchFailed means the browser process could not be started or did
	// not respond.
	ErrLaunchFailed = errors.New("browser launch failed")
	// ErrElementNotFound means a lookup exhausted the implicit wait.
	ErrElementNotFound = errors.New("element not found")
	// ErrWaitTimeout means a bounded wait expired before its condition held.
	ErrWaitTimeout = errors.New("wait timed out")
	// ErrNavigationFailed means the page could not be loaded.
	ErrNavigationFailed = errors.New("navigation failed")
	// ErrSessionClosed is returned by operations on a released session.
	ErrSessionClosed = errors.New("session closed")
)

// Session is a live handle to one browser tab. It is owned by a single caller
// and must be released with Close on every exit path.
type Session interface {
	ID() string
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// SendKeys types value into the element matched by sel.
	SendKeys(ctx context.Context, sel Selector, value string) error
	// Click clicks the element matched by sel.
	Click(ctx context.Context, sel Selector) error
	// Text returns the visible text of the element matched by sel.
	Text(ctx context.Context, sel Selector) (string, error)
	// CurrentURL returns the page's current location.
	CurrentURL(ctx context.Context) (string, error)
	// WaitForURL polls until the current URL equals want exactly, or fails
	// with ErrWaitTimeout once timeout elapses.
	WaitForURL(ctx context.Context, want string, timeout time.Duration) error
	// ClearCookies deletes every cookie in the browser.
	ClearCookies(ctx context.Context) error
	// Reload reloads the current page.
	Reload(ctx context.Context) error
	// Close terminates the browser. Calling it more than once is a no-op.
	Close(ctx context.Context) error
}
