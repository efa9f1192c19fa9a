package flow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/authflow/internal/browser"
	"github.com/xkilldash9x/authflow/internal/browser/browsertest"
	"github.com/xkilldash9x/authflow/internal/flow"
	"github.com/xkilldash9x/authflow/internal/identity"
)

func TestRunner_Browser(t *testing.T) {
	browsertest.Require(t)

	t.Run("RegistersAndLogsIn", func(t *testing.T) {
		app := browsertest.NewApp(t)
		cfg := browsertest.Config(app.URL)
		logger := zaptest.NewLogger(t)

		r := flow.NewRunner(cfg, browser.NewManager(cfg, logger), identity.NewGenerator(cfg.Identity), logger)
		res := r.Run(context.Background())

		require.True(t, res.Passed(), "run failed: %+v", res.Err)
		assert.NoError(t, res.ReleaseErr)
		assert.True(t, app.Registered(res.Identity.Username))
	})

	t.Run("SurfacesRegistrationError", func(t *testing.T) {
		app := browsertest.NewApp(t)
		app.RejectRegistration("Username already exists")
		cfg := browsertest.Config(app.URL)
		logger := zaptest.NewLogger(t)

		r := flow.NewRunner(cfg, browser.NewManager(cfg, logger), identity.NewGenerator(cfg.Identity), logger)
		res := r.Run(context.Background())

		assert.Equal(t, flow.StateFailed, res.State)
		assert.Equal(t, flow.ErrCodeTimeout, res.Code())
		assert.Equal(t, "Username already exists", res.Diagnostic)
		assert.NoError(t, res.ReleaseErr)
	})

	t.Run("UnreachableApplication", func(t *testing.T) {
		app := browsertest.NewApp(t)
		cfg := browsertest.Config(app.URL)
		app.Close()
		logger := zaptest.NewLogger(t)

		r := flow.NewRunner(cfg, browser.NewManager(cfg, logger), identity.NewGenerator(cfg.Identity), logger)
		res := r.Run(context.Background())

		assert.Equal(t, flow.StateFailed, res.State)
		assert.Equal(t, flow.ErrCodeNavigation, res.Code())
	})
}
