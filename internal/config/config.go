// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
// It is built once per command invocation and passed explicitly to every
// component that needs it; nothing reads configuration from package state.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Target    TargetConfig    `mapstructure:"target" yaml:"target"`
	Selectors SelectorsConfig `mapstructure:"selectors" yaml:"selectors"`
	Flow      FlowConfig      `mapstructure:"flow" yaml:"flow"`
	Identity  IdentityConfig  `mapstructure:"identity" yaml:"identity"`
	Demo      DemoConfig      `mapstructure:"demo" yaml:"demo"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the Chrome instance driven by the runner.
type BrowserConfig struct {
	Headless  bool     `mapstructure:"headless" yaml:"headless"`
	ExecPath  string   `mapstructure:"exec_path" yaml:"exec_path"`
	NoSandbox bool     `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	Args      []string `mapstructure:"args" yaml:"args"`
	// ImplicitWait bounds every element lookup.
	ImplicitWait      time.Duration `mapstructure:"implicit_wait" yaml:"implicit_wait"`
	LaunchTimeout     time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
}

// TargetConfig identifies the application under test.
type TargetConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// SelectorsConfig is the DOM contract the flows depend on.
type SelectorsConfig struct {
	UsernameID        string `mapstructure:"username_id" yaml:"username_id"`
	EmailID           string `mapstructure:"email_id" yaml:"email_id"`
	PasswordID        string `mapstructure:"password_id" yaml:"password_id"`
	ConfirmPasswordID string `mapstructure:"confirm_password_id" yaml:"confirm_password_id"`
	Submit            string `mapstructure:"submit" yaml:"submit"`
	ErrorMessageClass string `mapstructure:"error_message_class" yaml:"error_message_class"`
}

// FlowConfig tunes the registration and login flows.
type FlowConfig struct {
	// Wait is the bound on the post-submit redirect check.
	Wait         time.Duration `mapstructure:"wait" yaml:"wait"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// TeardownPause keeps the browser open for a human observer. Zero skips it.
	TeardownPause time.Duration `mapstructure:"teardown_pause" yaml:"teardown_pause"`
	CloseTimeout  time.Duration `mapstructure:"close_timeout" yaml:"close_timeout"`
	DiagnoseLogin bool          `mapstructure:"diagnose_login" yaml:"diagnose_login"`
}

// IdentityConfig shapes the generated test identity.
type IdentityConfig struct {
	UsernamePrefix string `mapstructure:"username_prefix" yaml:"username_prefix"`
	EmailPrefix    string `mapstructure:"email_prefix" yaml:"email_prefix"`
	EmailDomain    string `mapstructure:"email_domain" yaml:"email_domain"`
	Password       string `mapstructure:"password" yaml:"password"`
}

// DemoConfig configures the demo HTTP service.
type DemoConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Endpoints are the URLs the flows navigate to and assert against.
type Endpoints struct {
	Register string
	Login    string
	// Root is the exact URL a successful submission must redirect to.
	Root string
}

// Endpoints derives the flow URLs from the configured base URL.
// Trailing slashes on the base URL are ignored.
func (t TargetConfig) Endpoints() Endpoints {
	base := strings.TrimRight(strings.TrimSpace(t.BaseURL), "/")
	return Endpoints{
		Register: base + "/register",
		Login:    base + "/login",
		Root:     base + "/",
	}
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "authflow")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "red")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.implicit_wait", "10s")
	v.SetDefault("browser.launch_timeout", "60s")
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 900)

	// -- Target --
	v.SetDefault("target.base_url", "http://localhost:5173")

	// -- Selectors --
	v.SetDefault("selectors.username_id", "username")
	v.SetDefault("selectors.email_id", "email")
	v.SetDefault("selectors.password_id", "password")
	v.SetDefault("selectors.confirm_password_id", "confirmPassword")
	v.SetDefault("selectors.submit", "button[type='submit']")
	v.SetDefault("selectors.error_message_class", "error-message")

	// -- Flow --
	v.SetDefault("flow.wait", "10s")
	v.SetDefault("flow.poll_interval", "500ms")
	v.SetDefault("flow.teardown_pause", "0s")
	v.SetDefault("flow.close_timeout", "15s")
	v.SetDefault("flow.diagnose_login", true)

	// -- Identity --
	v.SetDefault("identity.username_prefix", "user_")
	v.SetDefault("identity.email_prefix", "test_")
	v.SetDefault("identity.email_domain", "example.com")
	v.SetDefault("identity.password", "Password123!")

	// -- Demo --
	v.SetDefault("demo.addr", ":5000")
	v.SetDefault("demo.shutdown_timeout", "5s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("target: %w", err)
	}
	if c.Browser.ImplicitWait <= 0 {
		return errors.New("browser.implicit_wait must be a positive duration")
	}
	if c.Browser.LaunchTimeout <= 0 {
		return errors.New("browser.launch_timeout must be a positive duration")
	}
	if c.Flow.Wait <= 0 {
		return errors.New("flow.wait must be a positive duration")
	}
	if c.Flow.PollInterval <= 0 || c.Flow.PollInterval >= c.Flow.Wait {
		return errors.New("flow.poll_interval must be positive and shorter than flow.wait")
	}
	if c.Flow.TeardownPause < 0 {
		return errors.New("flow.teardown_pause must not be negative")
	}
	if err := c.Selectors.Validate(); err != nil {
		return fmt.Errorf("selectors: %w", err)
	}
	if c.Identity.Password == "" {
		return errors.New("identity.password is required")
	}
	if c.Identity.EmailDomain == "" {
		return errors.New("identity.email_domain is required")
	}
	return nil
}

// Validate checks that the base URL is an absolute http(s) URL.
func (t TargetConfig) Validate() error {
	raw := strings.TrimSpace(t.BaseURL)
	if raw == "" {
		return errors.New("base_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("base_url %q is not a valid URL: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url %q has no host", raw)
	}
	return nil
}

// Validate checks that no part of the DOM contract is blank.
func (s SelectorsConfig) Validate() error {
	fields := map[string]string{
		"username_id":         s.UsernameID,
		"email_id":            s.EmailID,
		"password_id":         s.PasswordID,
		"confirm_password_id": s.ConfirmPasswordID,
		"submit":              s.Submit,
		"error_message_class": s.ErrorMessageClass,
	}
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}
	return nil
}
