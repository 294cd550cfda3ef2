package publish

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/wikiclaim/internal/cache"
)

// TokenSource hands out CSRF tokens for one client, fetching at most once
// per expiry even under concurrent demand
type TokenSource struct {
	client *Client
	cache  cache.TokenCache
	ttl    time.Duration
	group  singleflight.Group
}

// NewTokenSource creates a token source backed by tc
func NewTokenSource(client *Client, tc cache.TokenCache, ttl time.Duration) *TokenSource {
	if tc == nil {
		tc = cache.NewMemoryCache(ttl, 10*time.Minute)
	}
	return &TokenSource{client: client, cache: tc, ttl: ttl}
}

func (s *TokenSource) key() string {
	return cache.TokenKey(s.client.APIURL(), s.client.User())
}

// Token returns a cached token or fetches a fresh one
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	key := s.key()
	if token, ok := s.cache.Get(key); ok {
		return token, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		token, err := s.client.FetchCSRFToken(ctx)
		if err != nil {
			return "", err
		}
		s.cache.Set(key, token, s.ttl)
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate forgets the cached token so the next call fetches a new one
func (s *TokenSource) Invalidate() {
	s.cache.Delete(s.key())
}
