// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/authflow/internal/browser"
	"github.com/xkilldash9x/authflow/internal/config"
	"github.com/xkilldash9x/authflow/internal/flow"
	"github.com/xkilldash9x/authflow/internal/identity"
	"github.com/xkilldash9x/authflow/internal/observability"
	"github.com/xkilldash9x/authflow/internal/reporting"
)

// ErrRunFailed is returned by the run command when the scenario did not pass.
var ErrRunFailed = errors.New("authentication flow failed")

// observePause is the teardown pause used by --observe when none is configured.
const observePause = 2 * time.Second

// newLauncher is a variable so tests can substitute the browser.
var newLauncher = func(cfg *config.Config, logger *zap.Logger) flow.Launcher {
	return browser.NewManager(cfg, logger)
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	var observe, verbose bool
	var reportFile, reportFormat string

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Register a fresh user and log in with it through a real browser",
		Long: `Launches Chrome, registers a newly generated user on the target application,
clears the session, logs back in with the same credentials, and reports the outcome.
The command exits non-zero when either step fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if observe && cfg.Flow.TeardownPause == 0 {
				cfg.Flow.TeardownPause = observePause
			}

			logger := observability.GetLogger()
			logger.Info("Starting authentication flow.",
				zap.String("base_url", cfg.Target.BaseURL),
				zap.Bool("headless", cfg.Browser.Headless),
			)

			runner := flow.NewRunner(cfg, newLauncher(cfg, logger), identity.NewGenerator(cfg.Identity), logger)
			res := runner.Run(cmd.Context())

			console := reporting.NewConsole(cmd.OutOrStdout())
			console.Verbose = verbose
			console.Report(res)

			if reportFile != "" {
				if err := writeReport(reportFormat, reportFile, res); err != nil {
					logger.Error("Failed to write result report.", zap.String("path", reportFile), zap.Error(err))
				}
			}

			if res.Passed() {
				return nil
			}
			if res.Code() == flow.ErrCodeCanceled {
				return fmt.Errorf("%w: %w", ErrRunFailed, context.Canceled)
			}
			return fmt.Errorf("%w: %s", ErrRunFailed, res.Code())
		},
	}

	flags := runCmd.Flags()
	flags.String("base-url", "http://localhost:5173", "base URL of the application under test")
	flags.Bool("headless", true, "run Chrome without a window")
	flags.Duration("wait", 10*time.Second, "how long to wait for the redirect after each submit")
	flags.Duration("implicit-wait", 10*time.Second, "how long element lookups wait for the element to appear")
	flags.BoolVar(&observe, "observe", false, "pause before closing the browser so the final page can be inspected")
	flags.BoolVarP(&verbose, "verbose", "v", false, "include the state trail in the summary")
	flags.StringVar(&reportFile, "report-file", "", "also write the result to this file (\"stdout\" for standard output)")
	flags.StringVar(&reportFormat, "report-format", "json", "format of the result report (json, text)")

	_ = v.BindPFlag("target.base_url", flags.Lookup("base-url"))
	_ = v.BindPFlag("browser.headless", flags.Lookup("headless"))
	_ = v.BindPFlag("flow.wait", flags.Lookup("wait"))
	_ = v.BindPFlag("browser.implicit_wait", flags.Lookup("implicit-wait"))

	return runCmd
}

func writeReport(format, path string, res flow.Result) (err error) {
	r, err := reporting.New(format, path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return r.Write(res)
}
