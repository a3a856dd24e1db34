package auth

import (
	"maps"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
)

var TemplateUserKey = "current_user"

// TemplateHelpers returns helper functions and data for django templates.
//
// In templates, you can then use:
//
//	{% if is_authenticated(current_user) %}
//	{% if has_role(current_user, roles.super_admin) %}
func TemplateHelpers() map[string]any {
	roles := map[string]string{}
	for _, r := range AdminRoles() {
		roles[string(r)] = string(r)
	}

	return map[string]any{
		"is_authenticated": isAuthenticated,
		"has_role":         hasRole,
		"roles":            roles,
	}
}

// TemplateHelpersWithSession returns TemplateHelpers with session set as
// current_user.
func TemplateHelpersWithSession(session *AuthSession) map[string]any {
	helpers := TemplateHelpers()
	if session != nil {
		helpers[TemplateUserKey] = session
	}
	return helpers
}

// TemplateHelpersWithFiber returns TemplateHelpers with the session stored by
// ProtectedRoute, read from Locals under key or from the user context.
func TemplateHelpersWithFiber(c *fiber.Ctx, key string) map[string]any {
	session, ok := GetFiberSession(c, key)
	if !ok {
		session, _ = SessionFromContext(c.UserContext())
	}
	return TemplateHelpersWithSession(session)
}

// TemplateHelpersWithRouter returns TemplateHelpers with the Locals value
// under userKey set as current_user. ProtectedRouterRoute stores the session
// under DefaultSessionContextKey.
func TemplateHelpersWithRouter(ctx router.Context, userKey string) map[string]any {
	helpers := TemplateHelpers()
	if user, ok := GetTemplateUser(ctx, userKey); ok {
		helpers[TemplateUserKey] = user
	}
	return helpers
}

// GetTemplateUser reads the template user from router Locals.
func GetTemplateUser(ctx router.Context, userKey string) (any, bool) {
	if userKey == "" {
		userKey = DefaultSessionContextKey
	}

	user := ctx.Locals(userKey)
	return user, user != nil
}

// MergeTemplateData copies the helpers for c into data and returns it.
// Values already in data win.
func MergeTemplateData(c *fiber.Ctx, data fiber.Map) fiber.Map {
	out := fiber.Map{}
	maps.Copy(out, TemplateHelpersWithFiber(c, ""))
	maps.Copy(out, data)
	return out
}

func templateUser(user any) (AdminUser, bool) {
	switch u := user.(type) {
	case *AuthSession:
		if u == nil {
			return AdminUser{}, false
		}
		return u.User(), true
	case AdminUser:
		return u, true
	case *AdminUser:
		if u == nil {
			return AdminUser{}, false
		}
		return *u, true
	case map[string]any:
		// JSON-converted sessions
		if nested, ok := u["user"].(map[string]any); ok {
			u = nested
		}
		uid, _ := u["uid"].(string)
		role, _ := u["role"].(string)
		return AdminUser{UID: uid, Role: AdminRole(role)}, uid != ""
	default:
		return AdminUser{}, false
	}
}

// isAuthenticated checks for a session with a valid admin role
func isAuthenticated(user any) bool {
	u, ok := templateUser(user)
	return ok && u.Role.IsValid()
}

// hasRole checks if the user holds exactly role. Roles have no hierarchy.
func hasRole(user any, role string) bool {
	u, ok := templateUser(user)
	if !ok {
		return false
	}
	target, ok := ParseAdminRole(role)
	return ok && u.Role == target
}
