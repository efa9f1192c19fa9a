// internal/browser/session_test.go
package browser

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

const (
	registerURL = "http://app.test/register"
	rootURL     = "http://app.test/"
)

// newDetachedSession builds a session whose tab context carries no browser,
// so every chromedp action fails immediately with chromedp.ErrInvalidContext.
func newDetachedSession(t *testing.T, poll time.Duration) (*CDPSession, *atomic.Int32, *atomic.Int32) {
	t.Helper()
	var tabCancels, allocCancels atomic.Int32
	s := newCDPSession(
		"test-session",
		context.Background(),
		func() { tabCancels.Add(1) },
		func() { allocCancels.Add(1) },
		zaptest.NewLogger(t),
		sessionTimings{implicitWait: 200 * time.Millisecond, pollInterval: poll},
	)
	return s, &tabCancels, &allocCancels
}

// redirectAfter reports registerURL until d has elapsed, then rootURL.
func redirectAfter(d time.Duration) func(context.Context) (string, error) {
	start := time.Now()
	return func(context.Context) (string, error) {
		if time.Since(start) >= d {
			return rootURL, nil
		}
		return registerURL, nil
	}
}

func TestCDPSession_WaitForURL_TimesOutAtTheBound(t *testing.T) {
	defer goleak.VerifyNone(t)

	testCases := []struct {
		name    string
		timeout time.Duration
		poll    time.Duration
	}{
		{"PollHalfTheWait", time.Second, 500 * time.Millisecond},
		{"PollEqualsWait", time.Second, time.Second},
		{"ManyPolls", 300 * time.Millisecond, 40 * time.Millisecond},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, _, _ := newDetachedSession(t, tc.poll)
			s.locate = redirectAfter(time.Hour)

			start := time.Now()
			err := s.WaitForURL(context.Background(), rootURL, tc.timeout)
			elapsed := time.Since(start)

			require.ErrorIs(t, err, ErrWaitTimeout)
			assert.Contains(t, err.Error(), registerURL)
			assert.GreaterOrEqual(t, elapsed, tc.timeout)
		})
	}
}

func TestCDPSession_WaitForURL_UnreadableURLTimesOut(t *testing.T) {
	s, _, _ := newDetachedSession(t, 100*time.Millisecond)

	start := time.Now()
	err := s.WaitForURL(context.Background(), rootURL, 400*time.Millisecond)

	require.ErrorIs(t, err, ErrWaitTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}

func TestCDPSession_WaitForURL_SeesRedirectNearDeadline(t *testing.T) {
	defer goleak.VerifyNone(t)

	testCases := []struct {
		name     string
		timeout  time.Duration
		poll     time.Duration
		redirect time.Duration
	}{
		// Ticks land at 0, 400ms and 800ms; the redirect only shows after the last one.
		{"BetweenLastTickAndDeadline", time.Second, 400 * time.Millisecond, 900 * time.Millisecond},
		{"PollEqualsWait", 600 * time.Millisecond, 600 * time.Millisecond, 300 * time.Millisecond},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, _, _ := newDetachedSession(t, tc.poll)
			s.locate = redirectAfter(tc.redirect)

			assert.NoError(t, s.WaitForURL(context.Background(), rootURL, tc.timeout))
		})
	}
}

func TestCDPSession_WaitForURL_ImmediateMatch(t *testing.T) {
	s, _, _ := newDetachedSession(t, time.Second)
	s.locate = redirectAfter(0)

	start := time.Now()
	require.NoError(t, s.WaitForURL(context.Background(), rootURL, 5*time.Second))
	assert.Less(t, time.Since(start), time.Second)
}

func TestCDPSession_WaitForURL_CallerCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _, _ := newDetachedSession(t, 50*time.Millisecond)
	s.locate = redirectAfter(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := s.WaitForURL(ctx, rootURL, 5*time.Second)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrWaitTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)

	canceled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	assert.ErrorIs(t, s.WaitForURL(canceled, rootURL, 5*time.Second), context.Canceled)
}

func TestCDPSession_LookupReturnsCallerError(t *testing.T) {
	s, _, _ := newDetachedSession(t, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Click(ctx, ByID("username"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrElementNotFound)
}

func TestCDPSession_CloseIsIdempotent(t *testing.T) {
	s, tabCancels, allocCancels := newDetachedSession(t, 50*time.Millisecond)

	// No browser behind the tab, so the graceful cancel reports it.
	assert.ErrorIs(t, s.Close(context.Background()), chromedp.ErrInvalidContext)
	assert.NoError(t, s.Close(context.Background()))
	assert.EqualValues(t, 1, tabCancels.Load())
	assert.EqualValues(t, 1, allocCancels.Load())

	ctx := context.Background()
	assert.ErrorIs(t, s.Navigate(ctx, rootURL), ErrSessionClosed)
	assert.ErrorIs(t, s.Click(ctx, ByID("username")), ErrSessionClosed)
	_, err := s.CurrentURL(ctx)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.WaitForURL(ctx, rootURL, time.Second), ErrSessionClosed)
}
