package auth

import (
	"context"
	"fmt"
	"strings"
)

// Logger is the logging contract used across the package. Messages are
// followed by key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// CredentialVerifier exchanges an email/password pair for an identity
// assertion issued by the identity provider.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (*IdentityAssertion, error)
}

// ClaimsSource returns a snapshot of the current identity's claims. When
// forceRefresh is false implementations must serve the cached token unless it
// is expired.
type ClaimsSource interface {
	Claims(ctx context.Context, forceRefresh bool) (*ClaimsSnapshot, error)
}

// IdentityProvider is the full identity provider boundary consumed by Store.
type IdentityProvider interface {
	CredentialVerifier
	ClaimsSource
	SignOut(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) error
	// CurrentIdentity returns nil, nil when no provider session exists.
	CurrentIdentity(ctx context.Context) (*IdentityAssertion, error)
}

// TokenObserver is implemented by providers that publish token changes
// (sign in, sign out, refresh). The identity is nil after a sign out.
type TokenObserver interface {
	OnTokenChange(fn func(identity *IdentityAssertion)) (unsubscribe func())
}

// AuthorizationRegistry is the per-account store of role grants.
type AuthorizationRegistry interface {
	// GetRecord returns nil, nil when no entry exists for uid. Access denial at
	// the storage layer must be reported with an error carrying
	// ErrRegistryAccessDenied.
	GetRecord(ctx context.Context, uid string) (*RegistryEntry, error)
}

// RegistryEntry is the registry record for one account. Role is kept untyped
// here and parsed by the resolver.
type RegistryEntry struct {
	UID  string `json:"uid" yaml:"uid"`
	Role string `json:"role,omitempty" yaml:"role,omitempty"`
}

// StateReader is the read side of Store.
type StateReader interface {
	State() State
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println("[DBG] ADMIN-AUTH " + formatLog(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println("[INF] ADMIN-AUTH " + formatLog(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println("[WRN] ADMIN-AUTH " + formatLog(msg, args...))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println("[ERR] ADMIN-AUTH " + formatLog(msg, args...))
}

func formatLog(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(msg, "\n"))
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			continue
		}
		fmt.Fprintf(&b, " %v", args[i])
	}
	return b.String()
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return noopLogger{}
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
