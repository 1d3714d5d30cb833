package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"sitepilot/internal/metrics"
	"sitepilot/internal/utils/logger"
)

// SecretSource fetches the current API key from an external secret store.
type SecretSource interface {
	FetchSecret(ctx context.Context) (string, error)
}

// ErrNoCredential is returned when neither the secret source nor static configuration yields a key.
var ErrNoCredential = errors.New("no LLM credential available")

type cachedSecret struct {
	value     string
	fetchedAt time.Time
}

// CredentialCache holds the API key for a bounded time.
//
// Concurrent refreshes after expiry each fetch from the source and the last
// store wins; the fetched values are interchangeable, so no lock is taken.
type CredentialCache struct {
	source   SecretSource
	fallback string
	ttl      time.Duration
	now      func() time.Time
	current  atomic.Pointer[cachedSecret]
	log      *logger.Logger
}

// NewCredentialCache builds a cache over source. fallback is the statically
// configured key; source may be nil, in which case fallback is always used.
func NewCredentialCache(source SecretSource, fallback string, ttl time.Duration) *CredentialCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CredentialCache{
		source:   source,
		fallback: fallback,
		ttl:      ttl,
		now:      time.Now,
		log:      logger.New("llm_credentials"),
	}
}

// Get returns a valid key, refreshing from the source when the cached one has expired.
func (c *CredentialCache) Get(ctx context.Context) (string, error) {
	if cur := c.current.Load(); cur != nil && c.now().Sub(cur.fetchedAt) < c.ttl {
		return cur.value, nil
	}

	if c.source == nil {
		return c.useFallback(nil)
	}

	value, err := c.source.FetchSecret(ctx)
	if err == nil && value == "" {
		err = errors.New("secret source returned an empty key")
	}
	if err != nil {
		return c.useFallback(err)
	}

	c.current.Store(&cachedSecret{value: value, fetchedAt: c.now()})
	metrics.CredentialRefreshes.WithLabelValues("success").Inc()
	return value, nil
}

// Invalidate drops the cached key so the next Get refetches it.
func (c *CredentialCache) Invalidate() {
	c.current.Store(nil)
}

func (c *CredentialCache) useFallback(cause error) (string, error) {
	if c.fallback == "" {
		metrics.CredentialRefreshes.WithLabelValues("error").Inc()
		if cause != nil {
			return "", errors.Join(ErrNoCredential, cause)
		}
		return "", ErrNoCredential
	}
	if cause != nil {
		c.log.Warn("Secret source failed, using static key: %v", cause)
		metrics.CredentialRefreshes.WithLabelValues("fallback").Inc()
	}
	return c.fallback, nil
}
