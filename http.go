package auth

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
)

// GuardConfig configures ProtectedRoute.
type GuardConfig struct {
	// LoginPath is the login entry point. Default: /login.
	LoginPath string
	// ContextKey is the Locals key for the session. Default: admin_session.
	ContextKey string
	// WaitHandler answers requests while the store is loading. The default
	// replies 503 with a short placeholder body.
	WaitHandler fiber.Handler
	Logger      Logger
}

func guardConfigDefault(cfg GuardConfig) GuardConfig {
	if cfg.LoginPath == "" {
		cfg.LoginPath = DefaultLoginPath
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultSessionContextKey
	}
	if cfg.WaitHandler == nil {
		cfg.WaitHandler = func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusServiceUnavailable).SendString("Loading...")
		}
	}
	cfg.Logger = normalizeLogger(cfg.Logger)
	return cfg
}

// ProtectedRoute gates the wrapped routes behind the store state.
//
// Loading answers with the wait handler and a Retry-After header.
// Unauthenticated redirects to the login entry point with the original path
// and query in `next`: 302 for GET and HEAD, 303 otherwise. A redirect
// response replaces the guarded URL, so it never lands in browser history.
// Authenticated stores the session in Locals and the user context.
func ProtectedRoute(store StateReader, cfg GuardConfig) fiber.Handler {
	cfg = guardConfigDefault(cfg)

	return func(c *fiber.Ctx) error {
		requested, err := url.ParseRequestURI(c.OriginalURL())
		if err != nil {
			requested = &url.URL{Path: c.Path()}
		}

		decision := Guard(store.State(), requested, cfg.LoginPath)

		switch decision.Action {
		case GuardWait:
			c.Set(fiber.HeaderRetryAfter, "1")
			c.Set(fiber.HeaderCacheControl, "no-store")
			return cfg.WaitHandler(c)
		case GuardRedirect:
			cfg.Logger.Debug("unauthenticated request, redirecting to login", "path", c.OriginalURL())
			c.Set(fiber.HeaderCacheControl, "no-store")
			status := fiber.StatusSeeOther
			if c.Method() == fiber.MethodGet || c.Method() == fiber.MethodHead {
				status = fiber.StatusFound
			}
			return c.Redirect(decision.Location, status)
		default:
			c.Locals(cfg.ContextKey, decision.Session)
			c.SetUserContext(WithSession(c.UserContext(), decision.Session))
			return c.Next()
		}
	}
}

// ProtectedRouterRoute is ProtectedRoute for go-router hosts. It makes the
// same decisions; the loading reply is always the plain 503 placeholder since
// WaitHandler is a fiber handler.
func ProtectedRouterRoute(store StateReader, cfg GuardConfig) router.MiddlewareFunc {
	cfg = guardConfigDefault(cfg)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			requested, err := url.ParseRequestURI(c.OriginalURL())
			if err != nil {
				requested = &url.URL{Path: c.Path()}
			}

			decision := Guard(store.State(), requested, cfg.LoginPath)

			switch decision.Action {
			case GuardWait:
				c.SetHeader(fiber.HeaderRetryAfter, "1")
				c.SetHeader(fiber.HeaderCacheControl, "no-store")
				return c.Status(fiber.StatusServiceUnavailable).SendString("Loading...")
			case GuardRedirect:
				cfg.Logger.Debug("unauthenticated request, redirecting to login", "path", c.OriginalURL())
				c.SetHeader(fiber.HeaderCacheControl, "no-store")
				status := fiber.StatusSeeOther
				if c.Method() == fiber.MethodGet || c.Method() == fiber.MethodHead {
					status = fiber.StatusFound
				}
				return c.Redirect(decision.Location, status)
			default:
				c.Locals(cfg.ContextKey, decision.Session)
				c.SetContext(WithSession(c.Context(), decision.Session))
				return next(c)
			}
		}
	}
}
