package main

import (
	"context"
	"fmt"

	"github.com/narvanalabs/codebuild-runner/internal/api"
	"github.com/narvanalabs/codebuild-runner/internal/auth"
	"github.com/narvanalabs/codebuild-runner/internal/logs"
	"github.com/narvanalabs/codebuild-runner/internal/secrets"
	"github.com/narvanalabs/codebuild-runner/internal/shutdown"
	"github.com/narvanalabs/codebuild-runner/internal/store/cache"
	"github.com/narvanalabs/codebuild-runner/internal/store/postgres"
)

// backends are the optional report stores named in the runner config.
type backends struct {
	db    *postgres.PostgresStore
	cache *cache.Cache
}

// openBackends connects to the configured database and cache. Opened
// backends are registered with coord for closing.
func (a *app) openBackends(ctx context.Context, coord *shutdown.Coordinator) (*backends, error) {
	b := &backends{}

	if a.cfg.DatabaseDSN != "" {
		db, err := postgres.NewPostgresStore(postgres.DefaultConfig(a.cfg.DatabaseDSN), a.log.WithComponent("store").Logger)
		if err != nil {
			return nil, fmt.Errorf("connecting to report database: %w", err)
		}
		coord.Register(shutdown.NewCloserComponent("database", db))
		if err := db.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("preparing report database: %w", err)
		}
		b.db = db
	}

	if a.cfg.RedisURL != "" {
		c, err := cache.New(ctx, a.cfg.RedisURL,
			cache.WithTTL(a.cfg.RedisTTL),
			cache.WithLogger(a.log.WithComponent("cache").Logger),
		)
		if err != nil {
			return nil, fmt.Errorf("connecting to report cache: %w", err)
		}
		coord.Register(shutdown.NewCloserComponent("cache", c))
		b.cache = c
	}

	return b, nil
}

// secretService builds the age service used to decrypt secret keys. It
// returns nil when no identity is configured.
func (a *app) secretService(identityFile string) (*secrets.Service, error) {
	if a.cfg.AgeIdentity == "" && identityFile == "" {
		return nil, nil
	}
	return secrets.NewService(secrets.Config{
		Identity:     a.cfg.AgeIdentity,
		IdentityFile: identityFile,
	}, a.log.WithComponent("secrets").Logger)
}

// apiBackends converts b for the report API. Unset backends stay nil
// interfaces.
func (b *backends) apiBackends(broker *logs.Broker) api.Backends {
	out := api.Backends{Broker: broker}
	if b.db != nil {
		out.Database = b.db
	}
	if b.cache != nil {
		out.Cache = b.cache
	}
	return out
}

// authService returns the token service, or nil when no JWT secret is
// configured.
func (a *app) authService() (*auth.Service, error) {
	if a.cfg.API.JWTSecret == "" {
		return nil, nil
	}
	return auth.NewService(&auth.Config{JWTSecret: []byte(a.cfg.API.JWTSecret)}, a.log.WithComponent("auth").Logger)
}
