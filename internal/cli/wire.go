package cli

import (
	"context"
	"errors"
	"fmt"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-admin-auth/dashboard"
	"github.com/goliatone/go-admin-auth/internal/config"
	"github.com/goliatone/go-admin-auth/provider/idtoolkit"
	"github.com/goliatone/go-admin-auth/provider/local"
	"github.com/goliatone/go-admin-auth/registry"
)

// errMemoryRegistry is returned by operator commands that need persistence.
var errMemoryRegistry = errors.New("registry commands need a sql registry driver (sqlite, postgres or mysql)")

// identityProvider is what the binary needs from either provider.
type identityProvider interface {
	auth.IdentityProvider
	auth.TokenObserver
}

func openProvider(ctx context.Context, cfg config.Config, logger auth.Logger) (identityProvider, func(), error) {
	switch cfg.Provider {
	case config.ProviderLocal:
		accounts, err := local.LoadAccountsFile(cfg.Local.AccountsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("load accounts: %w", err)
		}
		p, err := local.New([]byte(cfg.Local.SigningKey), accounts...)
		if err != nil {
			return nil, nil, err
		}
		p.WithLogger(logger).WithTokenTTL(cfg.Local.TokenTTL)
		return p, func() {}, nil

	case config.ProviderIDToolkit:
		opts := []idtoolkit.Option{idtoolkit.WithLogger(logger)}
		if cfg.IDToolkit.TokenFile != "" {
			opts = append(opts, idtoolkit.WithTokenStore(idtoolkit.NewFileTokenStore(cfg.IDToolkit.TokenFile)))
		}
		p, err := idtoolkit.New(ctx, idtoolkit.Config{
			APIKey:           cfg.IDToolkit.APIKey,
			ProjectID:        cfg.IDToolkit.ProjectID,
			IdentityEndpoint: cfg.IDToolkit.IdentityEndpoint,
			TokenEndpoint:    cfg.IDToolkit.TokenEndpoint,
			JWKSURL:          cfg.IDToolkit.JWKSURL,
		}, opts...)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

// openRegistry returns the configured registry. SQL registries get their
// table created and the seed file, if any, granted.
func openRegistry(ctx context.Context, cfg config.Config) (registry.Store, func(), error) {
	if cfg.Registry.Driver == "memory" {
		if cfg.Registry.SeedFile == "" {
			return registry.NewMemory(), func() {}, nil
		}
		mem, err := registry.LoadMemoryFile(cfg.Registry.SeedFile)
		if err != nil {
			return nil, nil, fmt.Errorf("load registry seed: %w", err)
		}
		return mem, func() {}, nil
	}

	db, err := registry.Open(cfg.Registry.Driver, cfg.Registry.DSN)
	if err != nil {
		return nil, nil, err
	}
	closer := func() { _ = db.Close() }

	store := registry.NewSQL(db)
	if err := store.CreateTable(ctx); err != nil {
		closer()
		return nil, nil, fmt.Errorf("create registry table: %w", err)
	}

	if cfg.Registry.SeedFile != "" {
		if err := seedRegistry(ctx, store, cfg.Registry.SeedFile); err != nil {
			closer()
			return nil, nil, err
		}
	}
	return store, closer, nil
}

func seedRegistry(ctx context.Context, store registry.Store, path string) error {
	seed, err := registry.LoadMemoryFile(path)
	if err != nil {
		return fmt.Errorf("load registry seed: %w", err)
	}
	records, err := seed.List(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		role, ok := auth.ParseAdminRole(rec.Role)
		if !ok {
			return auth.NewValidationError("invalid registry seed", map[string]string{rec.UID: "unknown role " + rec.Role})
		}
		if err := store.Grant(ctx, rec.UID, role, rec.Note); err != nil {
			return err
		}
	}
	return nil
}

func openFetcher(cfg config.Config) (dashboard.Fetcher, error) {
	if cfg.DashboardFixtures == "" {
		return dashboard.NewFixtureFetcher(nil), nil
	}
	f, err := dashboard.LoadFixturesFile(cfg.DashboardFixtures)
	if err != nil {
		return nil, fmt.Errorf("load dashboard fixtures: %w", err)
	}
	return f.WithLatency(cfg.DashboardLatency), nil
}
