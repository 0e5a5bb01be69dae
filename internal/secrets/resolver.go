package secrets

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Credentials holds the TopstepX API key credentials.
type Credentials struct {
	Username string `json:"username"`
	APIKey   string `json:"api_key"`
}

// Resolver resolves TopstepX credentials from a secrets provider with an
// environment fallback, caching resolved values in-memory.
type Resolver struct {
	logger   *zap.Logger
	provider Provider
	cache    *Cache[Credentials]
	prefix   string
	fallback Credentials // from env; used when the provider has no secret
}

// NewResolver constructs a credential resolver. provider may be nil (env-only mode).
func NewResolver(logger *zap.Logger, provider Provider, cache *Cache[Credentials], prefix string, fallback Credentials) *Resolver {
	return &Resolver{
		logger:   logger,
		provider: provider,
		cache:    cache,
		prefix:   prefix,
		fallback: fallback,
	}
}

// Resolve returns the venue credentials, preferring the secrets provider.
func (r *Resolver) Resolve(ctx context.Context) (Credentials, error) {
	if creds, ok := r.cache.Get(r.prefix); ok {
		return creds, nil
	}

	if r.provider != nil {
		raw, err := r.provider.GetSecret(ctx, r.prefix)
		if err == nil {
			creds := Credentials{
				Username: raw["username"],
				APIKey:   raw["api_key"],
			}
			if creds.Username != "" && creds.APIKey != "" {
				r.cache.Put(r.prefix, creds)
				return creds, nil
			}
			r.logger.Warn("secrets.incomplete_secret", zap.String("key", r.prefix))
		} else {
			r.logger.Warn("secrets.fetch_failed",
				zap.String("key", r.prefix),
				zap.Error(err))
		}
	}

	if r.fallback.Username != "" && r.fallback.APIKey != "" {
		r.cache.Put(r.prefix, r.fallback)
		return r.fallback, nil
	}

	return Credentials{}, fmt.Errorf("no TopstepX credentials: secret [%s] unavailable and env fallback unset", r.prefix)
}
