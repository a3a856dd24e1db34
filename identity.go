package auth

import "time"

// ClaimRoleKey is the claim inspected for an admin role.
const ClaimRoleKey = "role"

// IdentityAssertion is a verified identity as reported by the identity
// provider. Only the fields below are used by this package.
type IdentityAssertion struct {
	UID         string
	Email       string
	DisplayName string
	AvatarURL   string
	// Token is the bearer credential at the time the assertion was issued.
	Token  string
	Claims map[string]any
}

// ClaimsSnapshot is a point in time view of the identity token claims.
type ClaimsSnapshot struct {
	Claims    map[string]any
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Role returns the admin role carried by the claims, if any.
func (c *ClaimsSnapshot) Role() (AdminRole, bool) {
	if c == nil || c.Claims == nil {
		return "", false
	}
	return ParseAdminRole(c.Claims[ClaimRoleKey])
}
