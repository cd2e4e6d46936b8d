package spotify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// refreshMargin is how long before expiry a cached token is considered stale.
	refreshMargin = 5 * time.Second
	// defaultTokenLifetime applies when the token endpoint omits expires_in.
	defaultTokenLifetime = time.Hour
	tokenFetchTimeout    = 15 * time.Second
)

// ErrNoCredentials is returned when the cache has no client credentials.
var ErrNoCredentials = errors.New("spotify client credentials not configured")

// FetchFunc obtains a fresh token from the accounts service.
type FetchFunc func(ctx context.Context) (*oauth2.Token, error)

// TokenCache caches a client-credentials token and refreshes it shortly
// before it expires. It is safe for concurrent use and implements
// oauth2.TokenSource so it can back an oauth2.Transport.
type TokenCache struct {
	mu      sync.Mutex
	fetch   FetchFunc
	now     func() time.Time
	token   *oauth2.Token
	expires time.Time
	fetches int
}

// NewTokenCache creates a cache that fetches tokens with the client-credentials grant.
func NewTokenCache(clientID, clientSecret, tokenURL string) *TokenCache {
	if clientID == "" || clientSecret == "" {
		return NewTokenCacheWithFetcher(func(context.Context) (*oauth2.Token, error) {
			return nil, ErrNoCredentials
		})
	}
	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	return NewTokenCacheWithFetcher(cc.Token)
}

// NewTokenCacheWithFetcher creates a cache around an arbitrary fetcher.
func NewTokenCacheWithFetcher(fetch FetchFunc) *TokenCache {
	return &TokenCache{fetch: fetch, now: time.Now}
}

// SetClock replaces the time source, for tests.
func (c *TokenCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns a valid access token, fetching a new one if the cached
// token is missing or within the refresh margin of its expiry.
func (c *TokenCache) Get(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != nil && c.now().Before(c.expires.Add(-refreshMargin)) {
		return c.token, nil
	}
	return c.refreshLocked(ctx)
}

// Refresh unconditionally fetches a new token.
func (c *TokenCache) Refresh(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

// Token implements oauth2.TokenSource.
func (c *TokenCache) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), tokenFetchTimeout)
	defer cancel()
	return c.Get(ctx)
}

// Fetches returns how many times the cache went to the token endpoint.
func (c *TokenCache) Fetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

func (c *TokenCache) refreshLocked(ctx context.Context) (*oauth2.Token, error) {
	tok, err := c.fetch(ctx)
	c.fetches++
	if err != nil {
		return nil, fmt.Errorf("spotify token: %w", err)
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, fmt.Errorf("spotify token: empty access token")
	}

	expires := tok.Expiry
	if expires.IsZero() {
		expires = c.now().Add(defaultTokenLifetime)
	}
	stored := *tok
	stored.Expiry = expires
	c.token = &stored
	c.expires = expires
	return c.token, nil
}
