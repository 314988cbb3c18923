// Package oauth caches the calendar provider's bearer token and refreshes it
// with the refresh-token grant when it is about to expire.
package oauth

import (
	"context"
	stderrors "errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/hpungsan/jarvis/internal/config"
	"github.com/hpungsan/jarvis/internal/errors"
)

// SafetyMargin is subtracted from the provider's expires_in so tokens are
// renewed before they actually expire.
const SafetyMargin = 5 * time.Minute

const serviceName = "oauth"

// TokenCache holds a single cached access token. It is safe for concurrent
// use; concurrent callers past expiry share one refresh request.
type TokenCache struct {
	cfg    config.CalendarConfig
	client *http.Client
	now    func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	group singleflight.Group
}

// Option configures a TokenCache.
type Option func(*TokenCache)

// WithHTTPClient sets the HTTP client used for token refreshes.
func WithHTTPClient(client *http.Client) Option {
	return func(c *TokenCache) {
		if client != nil {
			c.client = client
		}
	}
}

// WithClock overrides the time source. Tests use this to step past expiry.
func WithClock(now func() time.Time) Option {
	return func(c *TokenCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTokenCache creates an empty cache for the given calendar credentials.
func NewTokenCache(cfg config.CalendarConfig, opts ...Option) *TokenCache {
	if cfg.TokenURL == "" {
		cfg.TokenURL = config.DefaultTokenURL
	}
	c := &TokenCache{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetAccessToken returns a valid bearer token, refreshing it if the cached
// one has expired. It fails with a CONFIGURATION error before any network
// call when credentials are missing, and with REMOTE_SERVICE when the refresh
// fails; a failed refresh leaves the cache untouched.
func (c *TokenCache) GetAccessToken(ctx context.Context) (string, error) {
	if !c.cfg.Configured() {
		return "", errors.NewConfiguration("calendar credentials not configured: set GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REFRESH_TOKEN")
	}

	if tok, ok := c.cached(); ok {
		return tok, nil
	}

	v, err, _ := c.group.Do("refresh", func() (any, error) {
		// A refresh that finished between our check and Do already filled the slot.
		if tok, ok := c.cached(); ok {
			return tok, nil
		}
		// Waiters share this call, so one caller's cancellation must not fail the rest.
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout())
		defer cancel()
		return c.refresh(refreshCtx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Entry returns the cached token and its expiry. The token is empty before
// the first successful refresh.
func (c *TokenCache) Entry() (string, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.expiresAt
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.expiresAt.After(c.now()) {
		return c.token, true
	}
	return "", false
}

func (c *TokenCache) refresh(ctx context.Context) (string, error) {
	conf := &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)

	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: c.cfg.RefreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if stderrors.As(err, &re) && re.Response != nil {
			return "", errors.NewRemoteService(serviceName, re.Response.StatusCode, nil)
		}
		return "", errors.NewRemoteService(serviceName, 0, err)
	}

	// oauth2 derives Expiry from the wall clock; expires_in keeps the math on c.now.
	expiresIn := time.Duration(tok.ExpiresIn) * time.Second
	if tok.ExpiresIn == 0 && !tok.Expiry.IsZero() {
		expiresIn = time.Until(tok.Expiry)
	}
	expiresAt := c.now().Add(expiresIn - SafetyMargin)

	c.mu.Lock()
	c.token = tok.AccessToken
	c.expiresAt = expiresAt
	c.mu.Unlock()

	return tok.AccessToken, nil
}
