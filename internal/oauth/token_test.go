package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/jarvis/internal/config"
	"github.com/hpungsan/jarvis/internal/errors"
)

// fakeClock is a concurrency-safe clock that starts at a fixed instant.
type fakeClock struct {
	base    time.Time
	elapsed atomic.Int64 // seconds
}

func newFakeClock() *fakeClock {
	return &fakeClock{base: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.base.Add(time.Duration(c.elapsed.Load()) * time.Second) }
func (c *fakeClock) Set(sec int64)  { c.elapsed.Store(sec) }

// tokenServer counts refresh-token grants and answers with expires_in.
type tokenServer struct {
	*httptest.Server
	calls     atomic.Int32
	expiresIn int64
	status    atomic.Int32
	delay     time.Duration
}

func newTokenServer(t *testing.T, expiresIn int64) *tokenServer {
	t.Helper()
	ts := &tokenServer{expiresIn: expiresIn}
	ts.status.Store(http.StatusOK)
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ts.calls.Add(1)
		if ts.delay > 0 {
			time.Sleep(ts.delay)
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "refresh" ||
			r.PostForm.Get("client_id") != "cid" || r.PostForm.Get("client_secret") != "secret" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		if st := int(ts.status.Load()); st != http.StatusOK {
			w.WriteHeader(st)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": fmt.Sprintf("token-%d", n),
			"expires_in":   ts.expiresIn,
			"token_type":   "Bearer",
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func testCalendarConfig(tokenURL string) config.CalendarConfig {
	return config.CalendarConfig{
		ClientID:       "cid",
		ClientSecret:   "secret",
		RefreshToken:   "refresh",
		TokenURL:       tokenURL,
		TimeoutSeconds: 5,
	}
}

func TestGetAccessToken_NotConfigured(t *testing.T) {
	ts := newTokenServer(t, 3600)
	cfg := testCalendarConfig(ts.URL)
	cfg.RefreshToken = ""

	cache := NewTokenCache(cfg)
	_, err := cache.GetAccessToken(context.Background())

	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrConfiguration))
	require.Equal(t, int32(0), ts.calls.Load(), "no network call without credentials")
}

func TestGetAccessToken_ExpiryWindow(t *testing.T) {
	ts := newTokenServer(t, 3600)
	clock := newFakeClock()
	cache := NewTokenCache(testCalendarConfig(ts.URL), WithClock(clock.Now))
	ctx := context.Background()

	// t=0: first refresh
	tok, err := cache.GetAccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "token-1", tok)
	require.Equal(t, int32(1), ts.calls.Load())

	_, expiresAt := cache.Entry()
	require.True(t, expiresAt.Equal(clock.base.Add(3300*time.Second)), "expiresAt = %v", expiresAt)

	// t=3000: cached
	clock.Set(3000)
	tok, err = cache.GetAccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "token-1", tok)
	require.Equal(t, int32(1), ts.calls.Load())

	// t=3299: still cached
	clock.Set(3299)
	tok, err = cache.GetAccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "token-1", tok)
	require.Equal(t, int32(1), ts.calls.Load())

	// t=3301: exactly one new refresh
	clock.Set(3301)
	tok, err = cache.GetAccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "token-2", tok)
	require.Equal(t, int32(2), ts.calls.Load())

	// and the new token is cached again
	tok, err = cache.GetAccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "token-2", tok)
	require.Equal(t, int32(2), ts.calls.Load())
}

func TestGetAccessToken_ExactExpiryRefreshes(t *testing.T) {
	ts := newTokenServer(t, 3600)
	clock := newFakeClock()
	cache := NewTokenCache(testCalendarConfig(ts.URL), WithClock(clock.Now))

	_, err := cache.GetAccessToken(context.Background())
	require.NoError(t, err)

	// valid iff expiresAt > now, so t=3300 is already expired
	clock.Set(3300)
	_, err = cache.GetAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(2), ts.calls.Load())
}

func TestGetAccessToken_RefreshFailureKeepsCache(t *testing.T) {
	ts := newTokenServer(t, 3600)
	clock := newFakeClock()
	cache := NewTokenCache(testCalendarConfig(ts.URL), WithClock(clock.Now))
	ctx := context.Background()

	_, err := cache.GetAccessToken(ctx)
	require.NoError(t, err)
	tokBefore, expBefore := cache.Entry()

	ts.status.Store(http.StatusUnauthorized)
	clock.Set(4000)
	_, err = cache.GetAccessToken(ctx)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrRemoteService))
	jErr, ok := errors.As(err)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, jErr.Details["upstream_status"])

	tokAfter, expAfter := cache.Entry()
	require.Equal(t, tokBefore, tokAfter)
	require.True(t, expBefore.Equal(expAfter))
}

func TestGetAccessToken_NetworkFailure(t *testing.T) {
	ts := newTokenServer(t, 3600)
	url := ts.URL
	ts.Close()

	cache := NewTokenCache(testCalendarConfig(url))
	_, err := cache.GetAccessToken(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrRemoteService))

	tok, _ := cache.Entry()
	require.Empty(t, tok)
}

func TestGetAccessToken_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"expires_in": 3600}`))
	}))
	defer srv.Close()

	cache := NewTokenCache(testCalendarConfig(srv.URL))
	_, err := cache.GetAccessToken(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrRemoteService))
}

func TestGetAccessToken_ConcurrentCallersShareRefresh(t *testing.T) {
	ts := newTokenServer(t, 3600)
	ts.delay = 50 * time.Millisecond
	cache := NewTokenCache(testCalendarConfig(ts.URL))

	const callers = 16
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = cache.GetAccessToken(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "token-1", tokens[i])
	}
	require.Equal(t, int32(1), ts.calls.Load())
}

func TestGetAccessToken_CancelledWaiterDoesNotPoisonRefresh(t *testing.T) {
	ts := newTokenServer(t, 3600)
	cache := NewTokenCache(testCalendarConfig(ts.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tok, err := cache.GetAccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "token-1", tok)
}

func TestNewTokenCache_DefaultTokenURL(t *testing.T) {
	cfg := testCalendarConfig("")
	cache := NewTokenCache(cfg)
	require.Equal(t, config.DefaultTokenURL, cache.cfg.TokenURL)

	cache = NewTokenCache(testCalendarConfig("http://127.0.0.1:1/token"))
	require.Equal(t, "http://127.0.0.1:1/token", cache.cfg.TokenURL)
}

func TestGetAccessToken_UsesInjectedClient(t *testing.T) {
	ts := newTokenServer(t, 3600)
	var used atomic.Int32
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		used.Add(1)
		return http.DefaultTransport.RoundTrip(r)
	})}

	cache := NewTokenCache(testCalendarConfig(ts.URL), WithHTTPClient(client))
	tok, err := cache.GetAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "token-1", tok)
	require.Equal(t, int32(1), used.Load())
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
