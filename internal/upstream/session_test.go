package upstream_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenhouse-labs/catalog-bff/internal/httpclient"
	"github.com/greenhouse-labs/catalog-bff/internal/upstream"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// loginServer answers logins with sequential tokens and counts calls
type loginServer struct {
	*httptest.Server
	logins atomic.Int32
}

func newLoginServer(t *testing.T, respond func(n int32, w http.ResponseWriter, r *http.Request)) *loginServer {
	t.Helper()
	ls := &loginServer{}
	ls.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ls.logins.Add(1)
		respond(n, w, r)
	}))
	ls.Config.SetKeepAlivesEnabled(false)
	t.Cleanup(ls.Close)
	return ls
}

func tokenResponder(expiresIn string) func(int32, http.ResponseWriter, *http.Request) {
	return func(n int32, w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintf(w, `{"token":"tok-%d"%s}`, n, expiresIn)
	}
}

func newManager(ls *loginServer, clock *fakeClock) *upstream.SessionManager {
	return upstream.NewSessionManager(
		httpclient.NewDefaultClient(time.Second),
		ls.URL+"/login",
		upstream.Credentials{Username: "sync", Password: "s3cret"},
		upstream.WithClock(clock.Now),
	)
}

func TestSessionManager_LoginRequest(t *testing.T) {
	t.Parallel()

	var gotName, gotPassword, gotPath string
	ls := newLoginServer(t, func(_ int32, w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotName = r.URL.Query().Get("name")
		gotPassword = r.URL.Query().Get("password")
		_, _ = fmt.Fprint(w, `{"token":"abc","expiresIn":3600}`)
	})

	token, err := newManager(ls, newFakeClock()).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
	assert.Equal(t, "/login", gotPath)
	assert.Equal(t, "sync", gotName)
	assert.Equal(t, "s3cret", gotPassword)
}

func TestSessionManager_ReuseUntilSafetyMargin(t *testing.T) {
	t.Parallel()

	ls := newLoginServer(t, tokenResponder(`,"expiresIn":3600`))
	clock := newFakeClock()
	m := newManager(ls, clock)
	ctx := context.Background()
	loginTime := clock.Now()

	token, err := m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, loginTime.Add(3540*time.Second), m.Session().ExpiresAt)

	clock.Advance(3539 * time.Second)
	token, err = m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token, "token is reused before T+3540s")
	assert.Equal(t, int32(1), ls.logins.Load())

	clock.Advance(time.Second)
	token, err = m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token, "a fresh login happens at T+3540s")
	assert.Equal(t, int32(2), ls.logins.Load())
}

func TestSessionManager_DefaultTTL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		expiresIn string
	}{
		{name: "missing ttl", expiresIn: ""},
		{name: "zero ttl", expiresIn: `,"expiresIn":0`},
		{name: "negative ttl", expiresIn: `,"expiresIn":-5`},
		{name: "non-numeric ttl", expiresIn: `,"expiresIn":"soon"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ls := newLoginServer(t, tokenResponder(tt.expiresIn))
			clock := newFakeClock()
			m := newManager(ls, clock)

			_, err := m.Token(context.Background())
			require.NoError(t, err)
			assert.Equal(t, clock.Now().Add(upstream.DefaultTokenTTL-upstream.DefaultSafetyMargin), m.Session().ExpiresAt)
		})
	}
}

func TestSessionManager_LoginFailureResetsCache(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		respond func(int32, http.ResponseWriter, *http.Request)
	}{
		{
			name: "bad credentials",
			respond: func(_ int32, w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
		},
		{
			name: "missing token",
			respond: func(_ int32, w http.ResponseWriter, _ *http.Request) {
				_, _ = fmt.Fprint(w, `{"expiresIn":3600}`)
			},
		},
		{
			name: "malformed body",
			respond: func(_ int32, w http.ResponseWriter, _ *http.Request) {
				_, _ = fmt.Fprint(w, `<html>`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ls := newLoginServer(t, tt.respond)
			m := newManager(ls, newFakeClock())

			_, err := m.Token(context.Background())
			require.Error(t, err)

			var authErr *upstream.AuthError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, upstream.Session{}, m.Session())
			assert.NotContains(t, err.Error(), "s3cret")
		})
	}
}

func TestSessionManager_FailureAfterSuccessClearsToken(t *testing.T) {
	t.Parallel()

	ls := newLoginServer(t, func(n int32, w http.ResponseWriter, _ *http.Request) {
		if n > 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = fmt.Fprint(w, `{"token":"first","expiresIn":120}`)
	})
	clock := newFakeClock()
	m := newManager(ls, clock)

	_, err := m.Token(context.Background())
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = m.Token(context.Background())
	require.Error(t, err)
	assert.Empty(t, m.Session().Token)
	assert.True(t, m.Session().ExpiresAt.IsZero())
}

func TestSessionManager_SingleFlight(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	ls := newLoginServer(t, func(n int32, w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = fmt.Fprintf(w, `{"token":"tok-%d","expiresIn":3600}`, n)
	})
	m := newManager(ls, newFakeClock())

	const callers = 25
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)

	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens[i], errs[i] = m.Token(context.Background())
		}()
	}

	// Give every caller time to join the in-flight login before it completes.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), ls.logins.Load(), "exactly one login for concurrent stale callers")
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, "tok-1", tokens[i])
	}
}

func TestSessionManager_SingleFlightSharesFailure(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	ls := newLoginServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusUnauthorized)
	})
	m := newManager(ls, newFakeClock())

	const callers = 10
	var wg sync.WaitGroup
	var failures atomic.Int32
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Token(context.Background()); err != nil {
				failures.Add(1)
			}
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), ls.logins.Load())
	assert.Equal(t, int32(callers), failures.Load())
}

func TestSessionManager_CallerCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	ls := newLoginServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = fmt.Fprint(w, `{"token":"late","expiresIn":3600}`)
	})
	m := newManager(ls, newFakeClock())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := m.Token(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The detached login still completes and populates the cache.
	close(release)
	require.Eventually(t, func() bool { return m.Session().Token == "late" }, time.Second, 10*time.Millisecond)

	token, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "late", token)
	assert.Equal(t, int32(1), ls.logins.Load())
}

func TestSessionManager_Invalidate(t *testing.T) {
	t.Parallel()

	ls := newLoginServer(t, tokenResponder(`,"expiresIn":3600`))
	m := newManager(ls, newFakeClock())

	first, err := m.Token(context.Background())
	require.NoError(t, err)

	m.Invalidate()
	second, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, int32(2), ls.logins.Load())
}
