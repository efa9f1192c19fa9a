// internal/flow/fakes_test.go
package flow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/authflow/internal/browser"
	"github.com/xkilldash9x/authflow/internal/config"
	"github.com/xkilldash9x/authflow/internal/identity"
)

// fakeSession is a scripted browser.Session that records every call.
type fakeSession struct {
	mu sync.Mutex

	calls      []string
	closeCount int
	waitCount  int

	// waitErrs fails the n-th WaitForURL call (1-based).
	waitErrs map[int]error
	// texts maps a selector query to the text shown on the page.
	texts map[string]string
	// keyErrs fails SendKeys for a selector query.
	keyErrs map[string]error
	// panicOn panics inside SendKeys for a selector query.
	panicOn     string
	navigateErr error
	textErr     error
	closeErr    error
}

var _ browser.Session = (*fakeSession)(nil)

func newFakeSession() *fakeSession {
	return &fakeSession{
		waitErrs: make(map[int]error),
		texts:    make(map[string]string),
		keyErrs:  make(map[string]error),
	}
}

func (f *fakeSession) record(format string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeSession) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSession) CloseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCount
}

func (f *fakeSession) ID() string { return "fake-session" }

func (f *fakeSession) Navigate(ctx context.Context, url string) error {
	f.record("Navigate %s", url)
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.navigateErr
}

func (f *fakeSession) SendKeys(ctx context.Context, sel browser.Selector, value string) error {
	f.record("SendKeys %s %s", sel.Query(), value)
	if f.panicOn == sel.Query() {
		panic("element detached from DOM")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.keyErrs[sel.Query()]
}

func (f *fakeSession) Click(ctx context.Context, sel browser.Selector) error {
	f.record("Click %s", sel.Query())
	return ctx.Err()
}

func (f *fakeSession) Text(ctx context.Context, sel browser.Selector) (string, error) {
	f.record("Text %s", sel.Query())
	if f.textErr != nil {
		return "", f.textErr
	}
	text, ok := f.texts[sel.Query()]
	if !ok {
		return "", fmt.Errorf("%w: %s", browser.ErrElementNotFound, sel)
	}
	return text, nil
}

func (f *fakeSession) CurrentURL(context.Context) (string, error) {
	f.record("CurrentURL")
	return "", nil
}

func (f *fakeSession) WaitForURL(ctx context.Context, want string, _ time.Duration) error {
	f.mu.Lock()
	f.waitCount++
	n := f.waitCount
	f.mu.Unlock()

	f.record("WaitForURL %s", want)
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.waitErrs[n]
}

func (f *fakeSession) ClearCookies(context.Context) error {
	f.record("ClearCookies")
	return nil
}

func (f *fakeSession) Reload(context.Context) error {
	f.record("Reload")
	return nil
}

func (f *fakeSession) Close(ctx context.Context) error {
	f.mu.Lock()
	f.closeCount++
	f.mu.Unlock()
	f.record("Close")
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return f.closeErr
}

// mockLauncher is a testify mock for Launcher.
type mockLauncher struct {
	mock.Mock
}

func (m *mockLauncher) Acquire(ctx context.Context) (browser.Session, error) {
	args := m.Called(ctx)
	sess, _ := args.Get(0).(browser.Session)
	return sess, args.Error(1)
}

const fixedToken = "ab12cd34"

func fixedIdentities() *identity.Generator {
	return identity.NewGenerator(config.NewDefaultConfig().Identity, identity.WithTokenSource(func() string {
		return fixedToken
	}))
}

func waitTimeout(current string) error {
	return fmt.Errorf("%w: current URL %q", browser.ErrWaitTimeout, current)
}
