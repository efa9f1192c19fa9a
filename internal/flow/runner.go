// internal/flow/runner.go
package flow

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xkilldash9x/authflow/internal/browser"
	"github.com/xkilldash9x/authflow/internal/config"
	"github.com/xkilldash9x/authflow/internal/identity"
)

const defaultCloseTimeout = 15 * time.Second

// Launcher hands out browser sessions. *browser.Manager implements it.
type Launcher interface {
	Acquire(ctx context.Context) (browser.Session, error)
}

// IdentitySource produces a fresh identity per run. *identity.Generator
// implements it.
type IdentitySource interface {
	New() identity.Identity
}

// Result is the outcome of one run.
type Result struct {
	State    State
	Identity identity.Identity
	// Steps lists every state the run entered, starting with StateIdle.
	Steps []State
	// Err is the *Error that failed the run, nil when it passed.
	Err error
	// ReleaseErr is set when the session could not be closed cleanly. It
	// does not affect State.
	ReleaseErr error
	Diagnostic string
	Duration   time.Duration
}

// Passed reports whether the run reached StatePassed.
func (r Result) Passed() bool { return r.State == StatePassed }

// Code returns the failure classification, empty when the run passed.
func (r Result) Code() ErrorCode { return Classify(r.Err) }

// Errors combines the run and release errors.
func (r Result) Errors() error { return multierr.Combine(r.Err, r.ReleaseErr) }

// Runner drives one registration followed by one login against a single
// browser session.
type Runner struct {
	logger        *zap.Logger
	launcher      Launcher
	identities    IdentitySource
	opts          Options
	teardownPause time.Duration
	closeTimeout  time.Duration
	sleep         func(ctx context.Context, d time.Duration)
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithTeardownPause overrides the pause before the browser is closed.
func WithTeardownPause(d time.Duration) RunnerOption {
	return func(r *Runner) { r.teardownPause = d }
}

// WithSleep replaces the function used for the teardown pause.
func WithSleep(sleep func(ctx context.Context, d time.Duration)) RunnerOption {
	return func(r *Runner) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// NewRunner creates a Runner from the application configuration.
func NewRunner(cfg *config.Config, launcher Launcher, identities IdentitySource, logger *zap.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		logger:        logger.Named("runner"),
		launcher:      launcher,
		identities:    identities,
		opts:          OptionsFromConfig(cfg),
		teardownPause: cfg.Flow.TeardownPause,
		closeTimeout:  cfg.Flow.CloseTimeout,
		sleep:         sleepContext,
	}
	if r.closeTimeout <= 0 {
		r.closeTimeout = defaultCloseTimeout
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the scenario. It never returns an error: every failure,
// including a panic, ends in StateFailed. Once a session has been acquired
// it is closed on every path.
func (r *Runner) Run(ctx context.Context) (res Result) {
	start := time.Now()
	res.State = StateIdle
	res.Steps = []State{StateIdle}

	transition := func(to State) {
		r.logger.Debug("State transition.", zap.Stringer("from", res.State), zap.Stringer("to", to))
		res.State = to
		res.Steps = append(res.Steps, to)
	}
	fail := func(step State, err error) {
		fe := stepError(step, err)
		res.Err = fe
		res.Diagnostic = fe.Diagnostic
		r.logger.Error("Run failed.",
			zap.Stringer("step", fe.Step),
			zap.String("code", string(fe.Code)),
			zap.Error(fe.Err),
		)
		transition(StateFailed)
	}

	defer func() { res.Duration = time.Since(start) }()

	r.logger.Info("Acquiring browser session.")
	sess, err := r.launcher.Acquire(ctx)
	if err != nil {
		fail(StateIdle, errors.Wrap(err, "acquire browser session"))
		return res
	}

	// Deferred calls run last-in first-out: a panic is converted into a
	// failure before the session is released.
	defer r.teardown(ctx, sess, &res)
	defer func() {
		if p := recover(); p != nil {
			fail(res.State, errors.Errorf("panic during %s: %v", res.State, p))
		}
	}()

	transition(StateGenerating)
	res.Identity = r.identities.New()
	r.logger.Info("Generated test identity.",
		zap.String("username", res.Identity.Username),
		zap.String("email", res.Identity.Email),
	)

	transition(StateRegistering)
	if err := Register(ctx, r.logger, sess, r.opts, res.Identity); err != nil {
		fail(StateRegistering, err)
		return res
	}

	transition(StateLoggingIn)
	if err := Login(ctx, r.logger, sess, r.opts, res.Identity); err != nil {
		fail(StateLoggingIn, err)
		return res
	}

	transition(StatePassed)
	r.logger.Info("Registration and login succeeded.", zap.String("username", res.Identity.Username))
	return res
}

// teardown applies the observation pause and releases the session.
func (r *Runner) teardown(ctx context.Context, sess browser.Session, res *Result) {
	if r.teardownPause > 0 && ctx.Err() == nil {
		r.logger.Info("Pausing before closing the browser.", zap.Duration("pause", r.teardownPause))
		r.sleep(ctx, r.teardownPause)
	}

	// Release must happen even when ctx has been canceled.
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.closeTimeout)
	defer cancel()

	if err := sess.Close(closeCtx); err != nil {
		r.logger.Warn("Failed to release browser session.", zap.String("session_id", sess.ID()), zap.Error(err))
		res.ReleaseErr = errors.Wrap(err, "release browser session")
		return
	}
	r.logger.Info("Browser session released.", zap.String("session_id", sess.ID()))
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
