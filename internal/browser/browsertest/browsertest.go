// Package browsertest provides integration test helpers for the real-browser
// tests: a gate on the environment, a session opener, and a small web
// application with registration and login pages.
package browsertest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/authflow/internal/browser"
	"github.com/xkilldash9x/authflow/internal/config"
)

// EnvVar enables the browser based tests when set to "1".
const EnvVar = "AUTHFLOW_BROWSER_TESTS"

const sessionCookie = "authflow_session"

// Require skips the test unless browser tests are enabled.
func Require(t *testing.T) {
	t.Helper()
	if os.Getenv(EnvVar) != "1" {
		t.Skipf("set %s=1 to run tests that launch Chrome", EnvVar)
	}
}

// Config returns a configuration pointed at baseURL with short waits.
func Config(baseURL string) *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Target.BaseURL = baseURL
	cfg.Browser.Headless = true
	cfg.Browser.ImplicitWait = 3 * time.Second
	cfg.Flow.Wait = 5 * time.Second
	cfg.Flow.PollInterval = 100 * time.Millisecond
	return cfg
}

// Open launches a browser for cfg and closes it when the test ends.
func Open(t *testing.T, cfg *config.Config) browser.Session {
	t.Helper()
	Require(t)

	t.Logf("opening browser")
	sess, err := browser.NewManager(cfg, zaptest.NewLogger(t)).Acquire(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Flow.CloseTimeout)
		defer cancel()
		t.Logf("closing browser")
		require.NoError(t, sess.Close(ctx))
	})
	return sess
}

type account struct {
	email    string
	password string
}

// App is an in-memory web application exposing /register, /login and /.
// Successful registration logs the user in; /login redirects home when
// the request already carries a session. Sessions are HS256 tokens signed
// with a per-app key.
type App struct {
	*httptest.Server

	mu                 sync.Mutex
	users              map[string]account
	signingKey         []byte
	rejectRegistration string
}

// NewApp starts the application and shuts it down when the test ends.
func NewApp(t *testing.T) *App {
	t.Helper()
	a := &App{
		users:      make(map[string]account),
		signingKey: []byte(uuid.NewString()),
	}

	r := chi.NewRouter()
	r.Get("/", servePage(homePage))
	r.Get("/register", servePage(registerPage))
	r.Get("/login", a.handleLoginPage)
	r.Post("/api/register", a.handleRegister)
	r.Post("/api/login", a.handleLogin)

	a.Server = httptest.NewServer(r)
	t.Cleanup(a.Close)
	return a
}

// RejectRegistration makes every registration fail with message.
func (a *App) RejectRegistration(message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejectRegistration = message
}

// Registered reports whether username has an account.
func (a *App) Registered(username string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.users[username]
	return ok
}

func servePage(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}
}

func (a *App) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if a.authenticated(r) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	servePage(loginPage)(w, r)
}

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (a *App) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case a.rejectRegistration != "":
		writeError(w, http.StatusConflict, a.rejectRegistration)
	case req.Username == "" || req.Email == "" || req.Password == "":
		writeError(w, http.StatusBadRequest, "All fields are required")
	case req.Password != req.ConfirmPassword:
		writeError(w, http.StatusBadRequest, "Passwords do not match")
	default:
		if _, exists := a.users[req.Username]; exists {
			writeError(w, http.StatusConflict, "Username already exists")
			return
		}
		a.users[req.Username] = account{email: req.Email, password: req.Password}
		if err := a.startSession(w, req.Username); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusCreated)
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// The username field accepts either the username or the email.
	for name, acct := range a.users {
		if (name == req.Username || strings.EqualFold(acct.email, req.Username)) && acct.password == req.Password {
			if err := a.startSession(w, name); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			w.WriteHeader(http.StatusOK)
			return
		}
	}
	writeError(w, http.StatusUnauthorized, "Invalid username or password")
}

// startSession must be called with a.mu held.
func (a *App) startSession(w http.ResponseWriter, username string) error {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   username,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	signed, err := token.SignedString(a.signingKey)
	if err != nil {
		return fmt.Errorf("sign session token: %w", err)
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: signed, Path: "/", HttpOnly: true})
	return nil
}

func (a *App) authenticated(r *http.Request) bool {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(c.Value, &claims, func(*jwt.Token) (interface{}, error) {
		return a.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.users[claims.Subject]
	return ok
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

const homePage = `<!doctype html>
<html><head><title>Home</title></head>
<body><h1>Welcome</h1></body></html>`

// submitScript posts the form fields as JSON and either goes home or renders
// the server's error message.
const submitScript = `
<script>
document.querySelector('form').addEventListener('submit', async (e) => {
  e.preventDefault();
  const body = {};
  for (const input of e.target.querySelectorAll('input')) body[input.id] = input.value;
  const res = await fetch(e.target.dataset.action, {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify(body),
  });
  if (res.ok) { window.location.href = '/'; return; }
  const data = await res.json().catch(() => ({error: 'Request failed'}));
  const box = document.createElement('div');
  box.className = 'error-message';
  box.textContent = data.error;
  document.body.appendChild(box);
});
</script>`

const registerPage = `<!doctype html>
<html><head><title>Register</title></head>
<body>
<form data-action="/api/register">
  <input id="username" type="text">
  <input id="email" type="email">
  <input id="password" type="password">
  <input id="confirmPassword" type="password">
  <button type="submit">Register</button>
</form>` + submitScript + `
</body></html>`

const loginPage = `<!doctype html>
<html><head><title>Login</title></head>
<body>
<form data-action="/api/login">
  <input id="username" type="text">
  <input id="password" type="password">
  <button type="submit">Login</button>
</form>` + submitScript + `
</body></html>`
