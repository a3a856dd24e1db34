package auth

import "strings"

// AdminRole is a role that grants access to the admin console. Membership is
// the only property modeled; there is no ordering between roles.
type AdminRole string

const (
	// RoleAdmin grants regular admin access
	RoleAdmin AdminRole = "admin"
	// RoleSuperAdmin grants super admin access
	RoleSuperAdmin AdminRole = "super_admin"
)

// IsValid checks if the role is one of the admin roles
func (r AdminRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

func (r AdminRole) String() string {
	return string(r)
}

// AdminRoles returns every admin role
func AdminRoles() []AdminRole {
	return []AdminRole{RoleAdmin, RoleSuperAdmin}
}

// ParseAdminRole parses an untyped claim or registry value. Anything that is
// not a string naming an admin role is reported as absent.
func ParseAdminRole(raw any) (AdminRole, bool) {
	var value string
	switch v := raw.(type) {
	case string:
		value = v
	case AdminRole:
		value = string(v)
	default:
		return "", false
	}

	role := AdminRole(strings.TrimSpace(value))
	if !role.IsValid() {
		return "", false
	}
	return role, true
}
