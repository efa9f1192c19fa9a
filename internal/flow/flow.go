// internal/flow/flow.go
package flow

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/xkilldash9x/authflow/internal/browser"
	"github.com/xkilldash9x/authflow/internal/config"
	"github.com/xkilldash9x/authflow/internal/identity"
)

// Options is what the registration and login flows need to know about the
// application under test.
type Options struct {
	Endpoints config.Endpoints
	Selectors config.SelectorsConfig
	// Wait bounds the redirect to Endpoints.Root after each submit.
	Wait time.Duration
	// DiagnoseLogin enables the error message read after a login timeout.
	// Registration always attempts it.
	DiagnoseLogin bool
}

// OptionsFromConfig derives flow options from the application configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Endpoints:     cfg.Target.Endpoints(),
		Selectors:     cfg.Selectors,
		Wait:          cfg.Flow.Wait,
		DiagnoseLogin: cfg.Flow.DiagnoseLogin,
	}
}

type field struct {
	name  string
	sel   browser.Selector
	value string
}

// Register fills and submits the registration form, then waits for the
// redirect to the application root.
func Register(ctx context.Context, logger *zap.Logger, sess browser.Session, opts Options, id identity.Identity) error {
	logger = logger.With(zap.String("flow", "register"))
	logger.Info("Navigating to registration page.", zap.String("url", opts.Endpoints.Register))
	if err := sess.Navigate(ctx, opts.Endpoints.Register); err != nil {
		return stepError(StateRegistering, errors.Wrap(err, "open registration page"))
	}

	fields := []field{
		{"username", browser.ByID(opts.Selectors.UsernameID), id.Username},
		{"email", browser.ByID(opts.Selectors.EmailID), id.Email},
		{"password", browser.ByID(opts.Selectors.PasswordID), id.Password},
		{"confirm password", browser.ByID(opts.Selectors.ConfirmPasswordID), id.ConfirmPassword},
	}
	return submitAndAwait(ctx, logger, sess, opts, StateRegistering, fields, true)
}

// Login starts from a logged-out browser, submits the login form with the
// identity's username, and waits for the redirect to the application root.
func Login(ctx context.Context, logger *zap.Logger, sess browser.Session, opts Options, id identity.Identity) error {
	logger = logger.With(zap.String("flow", "login"))

	// Registration signs the user in; drop that session first.
	logger.Debug("Clearing cookies and reloading.")
	if err := sess.ClearCookies(ctx); err != nil {
		return stepError(StateLoggingIn, errors.Wrap(err, "clear cookies"))
	}
	if err := sess.Reload(ctx); err != nil {
		return stepError(StateLoggingIn, errors.Wrap(err, "reload page"))
	}

	logger.Info("Navigating to login page.", zap.String("url", opts.Endpoints.Login))
	if err := sess.Navigate(ctx, opts.Endpoints.Login); err != nil {
		return stepError(StateLoggingIn, errors.Wrap(err, "open login page"))
	}

	// The login form's username field also accepts an email address.
	fields := []field{
		{"username", browser.ByID(opts.Selectors.UsernameID), id.Username},
		{"password", browser.ByID(opts.Selectors.PasswordID), id.Password},
	}
	return submitAndAwait(ctx, logger, sess, opts, StateLoggingIn, fields, opts.DiagnoseLogin)
}

func submitAndAwait(
	ctx context.Context,
	logger *zap.Logger,
	sess browser.Session,
	opts Options,
	step State,
	fields []field,
	diagnose bool,
) error {
	for _, f := range fields {
		if err := sess.SendKeys(ctx, f.sel, f.value); err != nil {
			return stepError(step, errors.Wrapf(err, "fill %s field", f.name))
		}
	}
	if err := sess.Click(ctx, browser.ByCSS(opts.Selectors.Submit)); err != nil {
		return stepError(step, errors.Wrap(err, "click submit"))
	}

	logger.Debug("Form submitted, waiting for redirect.",
		zap.String("want_url", opts.Endpoints.Root),
		zap.Duration("wait", opts.Wait),
	)
	err := sess.WaitForURL(ctx, opts.Endpoints.Root, opts.Wait)
	if err == nil {
		logger.Info("Redirected to application root.", zap.String("step", step.String()))
		return nil
	}

	fe := stepError(step, errors.Wrap(err, "await redirect"))
	if diagnose && fe.Code == ErrCodeTimeout {
		if msg, ok := Diagnose(ctx, logger, sess, browser.ByClass(opts.Selectors.ErrorMessageClass)); ok {
			logger.Error("Page reported an error.", zap.String("step", step.String()), zap.String("message", msg))
			fe.Diagnostic = msg
		}
	}
	return fe
}

// Diagnose reads the text of the page's error message element. It never
// fails: a missing element or empty text yields ok == false.
func Diagnose(ctx context.Context, logger *zap.Logger, sess browser.Session, sel browser.Selector) (string, bool) {
	text, err := sess.Text(ctx, sel)
	if err != nil {
		if errors.Is(err, browser.ErrElementNotFound) {
			logger.Debug("No error message found on page.", zap.Stringer("selector", sel))
		} else {
			logger.Warn("Could not read error message from page.", zap.Stringer("selector", sel), zap.Error(err))
		}
		return "", false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		logger.Debug("Error message element is empty.", zap.Stringer("selector", sel))
		return "", false
	}
	return text, true
}
