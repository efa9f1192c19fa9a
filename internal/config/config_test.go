// File: internal/config/config_test.go
package config

import (
	"bytes"
	"strings"
	"testing"
	"time"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "authflow", cfg.Logger.ServiceName)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 10*time.Second, cfg.Browser.ImplicitWait)
	assert.Equal(t, 10*time.Second, cfg.Flow.Wait)
	assert.Equal(t, time.Duration(0), cfg.Flow.TeardownPause)
	assert.True(t, cfg.Flow.DiagnoseLogin)
	assert.Equal(t, "http://localhost:5173", cfg.Target.BaseURL)
	assert.Equal(t, "confirmPassword", cfg.Selectors.ConfirmPasswordID)
	assert.Equal(t, "button[type='submit']", cfg.Selectors.Submit)
	assert.Equal(t, "error-message", cfg.Selectors.ErrorMessageClass)
	assert.Equal(t, "Password123!", cfg.Identity.Password)
	assert.Equal(t, ":5000", cfg.Demo.Addr)

	require.NoError(t, cfg.Validate(), "defaults must always validate")
}

// -- Endpoint Derivation --

func TestTargetConfig_Endpoints(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    Endpoints
	}{
		{
			name:    "default vite port",
			baseURL: "http://localhost:5173",
			want: Endpoints{
				Register: "http://localhost:5173/register",
				Login:    "http://localhost:5173/login",
				Root:     "http://localhost:5173/",
			},
		},
		{
			name:    "trailing slashes trimmed",
			baseURL: "https://app.example.com//",
			want: Endpoints{
				Register: "https://app.example.com/register",
				Login:    "https://app.example.com/login",
				Root:     "https://app.example.com/",
			},
		},
		{
			name:    "surrounding whitespace",
			baseURL: "  http://127.0.0.1:8080 ",
			want: Endpoints{
				Register: "http://127.0.0.1:8080/register",
				Login:    "http://127.0.0.1:8080/login",
				Root:     "http://127.0.0.1:8080/",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TargetConfig{BaseURL: tt.baseURL}.Endpoints())
		})
	}
}

// FuzzTargetConfig_Endpoints_Structured populates a TargetConfig from fuzzed bytes
// and checks that derivation never panics and always yields the three suffixes.
func FuzzTargetConfig_Endpoints_Structured(f *testing.F) {
	f.Add([]byte("http://localhost:5173"))
	f.Add([]byte{0x00, 0xff, 0x2f})
	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzz.NewConsumer(data)
		var target TargetConfig
		if err := consumer.GenerateStruct(&target); err != nil {
			return
		}

		ep := target.Endpoints()
		assert.True(t, strings.HasSuffix(ep.Register, "/register"))
		assert.True(t, strings.HasSuffix(ep.Login, "/login"))
		assert.True(t, strings.HasSuffix(ep.Root, "/"))
		assert.Equal(t, strings.TrimSuffix(ep.Root, "/")+"/login", ep.Login)

		// Validation must not panic on arbitrary input either.
		_ = target.Validate()
	})
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty base url", func(c *Config) { c.Target.BaseURL = "" }, "base_url is required"},
		{"non http scheme", func(c *Config) { c.Target.BaseURL = "ftp://example.com" }, "must use http or https"},
		{"missing host", func(c *Config) { c.Target.BaseURL = "http://" }, "has no host"},
		{"zero implicit wait", func(c *Config) { c.Browser.ImplicitWait = 0 }, "browser.implicit_wait"},
		{"zero launch timeout", func(c *Config) { c.Browser.LaunchTimeout = 0 }, "browser.launch_timeout"},
		{"zero flow wait", func(c *Config) { c.Flow.Wait = 0 }, "flow.wait"},
		{"poll longer than wait", func(c *Config) { c.Flow.PollInterval = time.Minute }, "flow.poll_interval"},
		{"poll equal to wait", func(c *Config) { c.Flow.PollInterval = c.Flow.Wait }, "shorter than flow.wait"},
		{"negative pause", func(c *Config) { c.Flow.TeardownPause = -time.Second }, "flow.teardown_pause"},
		{"blank submit selector", func(c *Config) { c.Selectors.Submit = "  " }, "submit must not be empty"},
		{"blank password", func(c *Config) { c.Identity.Password = "" }, "identity.password"},
		{"blank email domain", func(c *Config) { c.Identity.EmailDomain = "" }, "identity.email_domain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// -- Loading Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")

		yamlBytes := []byte(`
target:
  base_url: "http://staging.internal:3000"
browser:
  headless: false
  implicit_wait: 4s
flow:
  wait: 7s
  teardown_pause: 2s
  diagnose_login: false
identity:
  email_domain: "qa.example.org"
`)
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "http://staging.internal:3000", cfg.Target.BaseURL)
		assert.False(t, cfg.Browser.Headless)
		assert.Equal(t, 4*time.Second, cfg.Browser.ImplicitWait)
		assert.Equal(t, 7*time.Second, cfg.Flow.Wait)
		assert.Equal(t, 2*time.Second, cfg.Flow.TeardownPause)
		assert.False(t, cfg.Flow.DiagnoseLogin)
		assert.Equal(t, "qa.example.org", cfg.Identity.EmailDomain)
		// Untouched keys keep their defaults.
		assert.Equal(t, "username", cfg.Selectors.UsernameID)
	})

	t.Run("Environment Override", func(t *testing.T) {
		t.Setenv("AUTHFLOW_TARGET_BASE_URL", "http://env.example:9999")

		v := viper.New()
		SetDefaults(v)
		v.SetEnvPrefix("AUTHFLOW")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "http://env.example:9999", cfg.Target.BaseURL)
	})

	t.Run("Invalid Values Rejected", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("flow.wait", "0s")

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}
