package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Provider resolves a credential by reference.
type Provider interface {
	Get(ctx context.Context, ref string) (string, error)
}

// EnvProvider resolves secret references as environment variable names. It is
// the default backend for development and container deployments where secrets
// are injected into the process environment.
type EnvProvider struct{}

func NewEnvProvider() *EnvProvider {
	return &EnvProvider{}
}

func (p *EnvProvider) Get(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("secrets: empty reference")
	}
	v, ok := os.LookupEnv(ref)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("secrets: %q not set", ref)
	}
	return strings.TrimSpace(v), nil
}

// Cached decorates a Provider with a TTL cache so callers on the hot path do
// not hit the external store on every request. The TTL bounds how long a
// rotated secret can remain stale.
type Cached struct {
	inner Provider
	cache *cache.Cache
}

// NewCached wraps inner with a TTL cache. A zero ttl falls back to 5 minutes.
func NewCached(inner Provider, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cached{
		inner: inner,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *Cached) Get(ctx context.Context, ref string) (string, error) {
	if v, ok := c.cache.Get(ref); ok {
		return v.(string), nil
	}
	v, err := c.inner.Get(ctx, ref)
	if err != nil {
		return "", err
	}
	c.cache.SetDefault(ref, v)
	return v, nil
}

// Reset drops all cached values. Intended for test isolation.
func (c *Cached) Reset() {
	c.cache.Flush()
}

var (
	_ Provider = (*EnvProvider)(nil)
	_ Provider = (*Cached)(nil)
)
