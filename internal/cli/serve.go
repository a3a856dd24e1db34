package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-admin-auth/activitymap"
	"github.com/goliatone/go-admin-auth/dashboard"
	"github.com/goliatone/go-admin-auth/internal/config"
	"github.com/goliatone/go-admin-auth/internal/views"
	"github.com/goliatone/go-admin-auth/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

type server struct {
	app    *fiber.App
	store  *auth.Store
	loader *dashboard.Loader
	logger auth.Logger

	observer auth.TokenObserver
	closers  []func()
}

func newServeCommand(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin console",
		Long: `Serve the admin console login entry point and the guarded dashboard.

The server starts in the loading state and silently restores any existing
provider session. Guarded routes answer 503 until the restore settles.

The console holds a single process-wide session for one operator. Anyone who
can reach the listener acts as that operator once they sign in, so keep it on
a loopback address and put a proxy with its own authentication in front of it
for remote access.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			srv, err := buildServer(cmd.Context(), cfg, root.logger, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
			if err != nil {
				return err
			}
			defer srv.close()

			return srv.run(cmd.Context(), cfg.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "listen address (loopback only by default)")
	return cmd
}

func buildServer(ctx context.Context, cfg config.Config, logger auth.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*server, error) {
	srv := &server{logger: logger}

	provider, closeProvider, err := openProvider(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	srv.closers = append(srv.closers, closeProvider)
	srv.observer = provider

	registryStore, closeRegistry, err := openRegistry(ctx, cfg)
	if err != nil {
		srv.close()
		return nil, err
	}
	srv.closers = append(srv.closers, closeRegistry)

	fetcher, err := openFetcher(cfg)
	if err != nil {
		srv.close()
		return nil, err
	}

	var hooks auth.Metrics
	if cfg.Metrics {
		m, err := metrics.New(reg)
		if err != nil {
			srv.close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		hooks = m
	}

	resolver := auth.NewResolver(provider, registryStore).
		WithLogger(logger).
		WithDiagnostics(cfg.Diagnostics).
		WithMetrics(hooks)

	srv.store = auth.NewStore(provider, resolver).
		WithLogger(logger).
		WithMetrics(hooks).
		WithActivitySink(activitymap.NewLogSink(logger))

	srv.loader = dashboard.NewLoader(fetcher).WithLogger(logger)

	fiberCfg := fiber.Config{
		AppName:               "admin-console",
		DisableStartupMessage: true,
	}
	ctrlOpts := []auth.ControllerOption{auth.WithControllerLogger(logger)}
	if cfg.Views {
		fiberCfg.Views = views.New(false)
		ctrlOpts = append(ctrlOpts, auth.WithViews(auth.ControllerViews{
			Login:         views.Login,
			PasswordReset: views.PasswordReset,
			Loading:       views.Loading,
			Error:         views.Error,
		}))
	}

	srv.app = fiber.New(fiberCfg)

	controller := auth.NewController(srv.store, ctrlOpts...)
	controller.RegisterRoutes(srv.app)

	guard := auth.ProtectedRoute(srv.store, controller.GuardConfig())
	srv.app.Get("/api/dashboard/overview", guard, dashboard.OverviewHandler(srv.loader, logger))

	admin := srv.app.Group("/admin", guard)
	if cfg.Views {
		admin.Get("/", dashboard.PageHandler(srv.loader, views.Dashboard, logger))
	} else {
		admin.Get("/", func(c *fiber.Ctx) error {
			session, _ := auth.SessionFromContext(c.UserContext())
			return c.JSON(fiber.Map{"session": session})
		})
	}

	srv.app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/admin", fiber.StatusFound)
	})

	if cfg.Metrics && gatherer != nil {
		srv.app.Get("/metrics", metrics.Handler(gatherer))
	}

	return srv, nil
}

// watch subscribes the store to provider token changes and registers the
// stop hooks. It runs on the caller's goroutine so close always sees them.
func (s *server) watch() {
	s.closers = append(s.closers, s.store.Watch(s.observer), s.loader.Cancel)
}

func (s *server) restore(ctx context.Context) {
	if err := s.store.Restore(ctx); err != nil {
		s.logger.Warn("session restore settled unauthenticated", "error", err)
	}
}

// start restores the provider session and begins watching token changes.
func (s *server) start(ctx context.Context) {
	s.watch()
	s.restore(ctx)
}

func (s *server) run(ctx context.Context, addr string) error {
	s.watch()

	ctx, cancel := context.WithCancel(ctx)
	restored := make(chan struct{})
	defer func() { <-restored }()
	defer cancel()

	go func() {
		defer close(restored)
		s.restore(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("admin console listening", "addr", addr)
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if s.closers[i] != nil {
			s.closers[i]()
		}
	}
	s.closers = nil
}
