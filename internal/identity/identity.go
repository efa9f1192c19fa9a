// internal/identity/identity.go
package identity

import (
	"github.com/google/uuid"

	"github.com/xkilldash9x/authflow/internal/config"
)

// tokenLength is the number of UUID characters kept for the run token.
const tokenLength = 8

// Identity is the user record registered and then logged in during one run.
// Username and Email are both derived from Token; ConfirmPassword always
// equals Password.
type Identity struct {
	Token           string
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// TokenSource returns a fresh random token for each call.
type TokenSource func() string

// UUIDTokenSource returns the first eight characters of a random (v4) UUID.
func UUIDTokenSource() string {
	return uuid.NewString()[:tokenLength]
}

// Generator produces a new Identity per call. It has no failure modes.
type Generator struct {
	cfg    config.IdentityConfig
	tokens TokenSource
}

// Option configures a Generator.
type Option func(*Generator)

// WithTokenSource replaces the random token source, typically in tests.
func WithTokenSource(src TokenSource) Option {
	return func(g *Generator) {
		if src != nil {
			g.tokens = src
		}
	}
}

// NewGenerator creates a Generator shaped by cfg.
func NewGenerator(cfg config.IdentityConfig, opts ...Option) *Generator {
	g := &Generator{cfg: cfg, tokens: UUIDTokenSource}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// New returns a fresh identity.
func (g *Generator) New() Identity {
	token := g.tokens()
	return Identity{
		Token:           token,
		Username:        g.cfg.UsernamePrefix + token,
		Email:           g.cfg.EmailPrefix + token + "@" + g.cfg.EmailDomain,
		Password:        g.cfg.Password,
		ConfirmPassword: g.cfg.Password,
	}
}
