package resolver

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/tokenbridge/pkg/cryptox"
)

// Cached remembers successful resolutions for a short TTL, keyed by a
// fingerprint of the subject token. Failures are never cached.
type Cached struct {
	next  Resolver
	cache *gocache.Cache
}

// NewCached wraps next. A ttl of zero or less returns next unchanged.
func NewCached(next Resolver, ttl time.Duration) Resolver {
	if ttl <= 0 {
		return next
	}
	return &Cached{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *Cached) Resolve(ctx context.Context, req *domain.ExchangeRequest) (*domain.SessionClaims, error) {
	key := cryptox.FingerprintToken(req.SubjectToken)
	if v, ok := c.cache.Get(key); ok {
		return v.(*domain.SessionClaims).Clone(), nil
	}

	claims, err := c.next.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	c.cache.SetDefault(key, claims.Clone())
	return claims, nil
}

// Len reports how many resolutions are currently cached.
func (c *Cached) Len() int {
	return c.cache.ItemCount()
}
