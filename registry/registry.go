package registry

import (
	"context"
	"strings"
	"time"

	auth "github.com/goliatone/go-admin-auth"
)

// Record is a registry row as seen by operators.
type Record struct {
	UID       string    `yaml:"uid" json:"uid"`
	Role      string    `yaml:"role" json:"role"`
	Note      string    `yaml:"note,omitempty" json:"note,omitempty"`
	GrantedAt time.Time `yaml:"granted_at,omitempty" json:"granted_at,omitempty"`
}

// Entry converts the record to what the resolver reads.
func (r Record) Entry() *auth.RegistryEntry {
	return &auth.RegistryEntry{UID: r.UID, Role: r.Role}
}

// Store is an authorization registry with operator side writes.
type Store interface {
	auth.AuthorizationRegistry
	Grant(ctx context.Context, uid string, role auth.AdminRole, note string) error
	Revoke(ctx context.Context, uid string) error
	List(ctx context.Context) ([]Record, error)
}

func validateGrant(uid string, role auth.AdminRole) (string, error) {
	uid = strings.TrimSpace(uid)
	fields := map[string]string{}
	if uid == "" {
		fields["uid"] = "cannot be blank"
	}
	if !role.IsValid() {
		fields["role"] = "must be one of admin, super_admin"
	}
	if len(fields) > 0 {
		return "", auth.NewValidationError("invalid registry grant", fields)
	}
	return uid, nil
}
