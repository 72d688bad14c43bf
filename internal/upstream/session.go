package upstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/greenhouse-labs/catalog-bff/internal/httpclient"
)

const (
	// DefaultSafetyMargin is subtracted from the upstream TTL when computing expiry
	DefaultSafetyMargin = 60 * time.Second

	// DefaultTokenTTL substitutes a missing or non-positive upstream TTL
	DefaultTokenTTL = 3600 * time.Second

	loginFlightKey = "login"
)

// Credentials identifies the service account used for the upstream login
type Credentials struct {
	Username string
	Password string
}

// Session is a cached upstream access token. The zero value is never valid.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// ValidAt reports whether the session may be used at instant t
func (s Session) ValidAt(t time.Time) bool {
	return s.Token != "" && t.Before(s.ExpiresAt)
}

// SessionOption configures a SessionManager
type SessionOption func(*SessionManager)

// WithSafetyMargin overrides DefaultSafetyMargin
func WithSafetyMargin(margin time.Duration) SessionOption {
	return func(m *SessionManager) {
		m.margin = margin
	}
}

// WithDefaultTTL overrides DefaultTokenTTL
func WithDefaultTTL(ttl time.Duration) SessionOption {
	return func(m *SessionManager) {
		m.defaultTTL = ttl
	}
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) {
		m.now = now
	}
}

// SessionManager owns the cached upstream token. Concurrent callers that find
// the token stale share a single in-flight login.
type SessionManager struct {
	client   httpclient.Client
	loginURL string
	creds    Credentials

	margin     time.Duration
	defaultTTL time.Duration
	now        func() time.Time

	mu      sync.RWMutex
	session Session
	flight  singleflight.Group
}

// NewSessionManager creates a session manager that logs in at loginURL
func NewSessionManager(client httpclient.Client, loginURL string, creds Credentials, opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		client:     client,
		loginURL:   loginURL,
		creds:      creds,
		margin:     DefaultSafetyMargin,
		defaultTTL: DefaultTokenTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Token returns a valid token, logging in first when the cached one is stale.
// A failed login returns an *AuthError.
func (m *SessionManager) Token(ctx context.Context) (string, error) {
	if token, ok := m.cached(); ok {
		return token, nil
	}

	// The login itself is detached from ctx so one caller giving up does not
	// fail the login for everyone else waiting on it.
	ch := m.flight.DoChan(loginFlightKey, func() (any, error) {
		if token, ok := m.cached(); ok {
			return token, nil
		}
		return m.login(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached session so the next Token call logs in again
func (m *SessionManager) Invalidate() {
	m.mu.Lock()
	m.session = Session{}
	m.mu.Unlock()
}

// Session returns a copy of the cached session
func (m *SessionManager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

func (m *SessionManager) cached() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session.ValidAt(m.now()) {
		return m.session.Token, true
	}
	return "", false
}

func (m *SessionManager) login(ctx context.Context) (string, error) {
	loginTime := m.now()

	session, err := m.requestSession(ctx, loginTime)
	if err != nil {
		m.Invalidate()
		slog.Error("Upstream login failed", "error", err)
		return "", &AuthError{Err: err}
	}

	m.mu.Lock()
	m.session = session
	m.mu.Unlock()

	slog.Info("Upstream login succeeded", "expires_at", session.ExpiresAt.Format(time.RFC3339))
	return session.Token, nil
}

func (m *SessionManager) requestSession(ctx context.Context, loginTime time.Time) (Session, error) {
	u, err := url.Parse(m.loginURL)
	if err != nil {
		return Session{}, fmt.Errorf("invalid login URL: %w", err)
	}
	q := u.Query()
	q.Set("name", m.creds.Username)
	q.Set("password", m.creds.Password)
	u.RawQuery = q.Encode()

	body, err := m.client.Get(ctx, u.String())
	if err != nil {
		return Session{}, err
	}

	if !gjson.ValidBytes(body) {
		return Session{}, errors.New("malformed login response")
	}

	parsed := gjson.ParseBytes(body)
	token := parsed.Get("token").String()
	if token == "" {
		return Session{}, errors.New("login response carries no token")
	}

	ttl := time.Duration(parsed.Get("expiresIn").Int()) * time.Second
	if ttl <= 0 {
		slog.Warn("Upstream login returned no usable TTL, using default",
			"expires_in", parsed.Get("expiresIn").Raw,
			"default_ttl", m.defaultTTL.String(),
		)
		ttl = m.defaultTTL
	}

	return Session{
		Token:     token,
		ExpiresAt: loginTime.Add(ttl - m.margin),
	}, nil
}
