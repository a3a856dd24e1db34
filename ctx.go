package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// DefaultSessionContextKey is the fiber Locals key holding the AuthSession.
const DefaultSessionContextKey = "admin_session"

var sessionCtxKey = &contextKey{"admin_session"}

type contextKey struct {
	name string
}

// WithSession sets the AuthSession in the given context
func WithSession(ctx context.Context, session *AuthSession) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

// SessionFromContext finds the AuthSession in the context.
func SessionFromContext(ctx context.Context) (*AuthSession, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(sessionCtxKey).(*AuthSession)
	return raw, ok && raw != nil
}

// GetFiberSession extracts the AuthSession stored by ProtectedRoute.
func GetFiberSession(c *fiber.Ctx, key string) (*AuthSession, bool) {
	if key == "" {
		key = DefaultSessionContextKey
	}
	raw, ok := c.Locals(key).(*AuthSession)
	return raw, ok && raw != nil
}
