package auth

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/goliatone/go-admin-auth"

// Outcome is the branch a resolution ended in. The zero value is
// OutcomeFailed so an unset Resolution never reads as authorized.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeAuthorized
	OutcomeNotAuthorized
	OutcomeRegistryUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAuthorized:
		return "authorized"
	case OutcomeNotAuthorized:
		return "not_authorized"
	case OutcomeRegistryUnavailable:
		return "registry_unavailable"
	default:
		return "failed"
	}
}

// RoleSource tells where the resolved role came from.
type RoleSource int

const (
	RoleSourceNone RoleSource = iota
	RoleSourceClaims
	RoleSourceRegistry
)

func (s RoleSource) String() string {
	switch s {
	case RoleSourceClaims:
		return "claims"
	case RoleSourceRegistry:
		return "registry"
	default:
		return "none"
	}
}

// Resolution is the result of Resolver.Resolve. Session is set only for
// OutcomeAuthorized; Err is set for every other outcome.
type Resolution struct {
	Outcome Outcome
	Source  RoleSource
	Session *AuthSession
	Err     error
}

// Authorized reports whether the resolution produced a session.
func (r Resolution) Authorized() bool {
	return r.Outcome == OutcomeAuthorized && r.Session != nil
}

// Result converts the resolution to the usual Go return pair.
func (r Resolution) Result() (*AuthSession, error) {
	if r.Authorized() {
		return r.Session, nil
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return nil, notAuthorized("admin access required", nil)
}

// Resolver decides whether a verified identity holds an admin role.
type Resolver struct {
	claims      ClaimsSource
	registry    AuthorizationRegistry
	logger      Logger
	metrics     Metrics
	tracer      trace.Tracer
	diagnostics bool
	now         func() time.Time
}

// NewResolver returns a Resolver. A nil claims source makes the resolver use
// the claims and token carried by the identity assertion itself.
func NewResolver(claims ClaimsSource, registry AuthorizationRegistry) *Resolver {
	return &Resolver{
		claims:   claims,
		registry: registry,
		logger:   defLogger{},
		metrics:  noopMetrics{},
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
}

func (r *Resolver) WithLogger(logger Logger) *Resolver {
	r.logger = normalizeLogger(logger)
	return r
}

// WithDiagnostics enables warnings about missing registry entries. It is meant
// for non-production environments and never changes the outcome.
func (r *Resolver) WithDiagnostics(enabled bool) *Resolver {
	r.diagnostics = enabled
	return r
}

func (r *Resolver) WithMetrics(metrics Metrics) *Resolver {
	r.metrics = normalizeMetrics(metrics)
	return r
}

func (r *Resolver) WithTracer(tracer trace.Tracer) *Resolver {
	if tracer != nil {
		r.tracer = tracer
	}
	return r
}

func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	if now != nil {
		r.now = now
	}
	return r
}

// Resolve runs the authorization algorithm for identity:
//
//  1. an identity without email is not authorized;
//  2. claims are read without forcing a token refresh;
//  3. a valid claims role is accepted and the registry is not read;
//  4. otherwise the registry entry for the uid decides, and access denial at
//     the storage layer yields OutcomeRegistryUnavailable;
//  5. any other failure is returned unchanged as OutcomeFailed.
func (r *Resolver) Resolve(ctx context.Context, identity *IdentityAssertion) Resolution {
	start := r.now()
	ctx, span := r.tracer.Start(ctx, "auth.resolve")
	defer span.End()

	res := r.resolve(ctx, identity)

	span.SetAttributes(
		attribute.String("auth.outcome", res.Outcome.String()),
		attribute.String("auth.role_source", res.Source.String()),
	)
	switch res.Outcome {
	case OutcomeFailed, OutcomeRegistryUnavailable:
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Outcome.String())
	}

	r.metrics.Resolution(res.Outcome, res.Source, r.now().Sub(start))
	return res
}

func (r *Resolver) resolve(ctx context.Context, identity *IdentityAssertion) Resolution {
	if identity == nil {
		return deny("no identity", nil)
	}

	if strings.TrimSpace(identity.Email) == "" {
		return deny("no email", map[string]any{"uid": identity.UID})
	}

	if strings.TrimSpace(identity.UID) == "" {
		return deny("no uid", nil)
	}

	snapshot, err := r.snapshot(ctx, identity)
	if err != nil {
		r.logger.Error("resolver claims snapshot failed", "uid", identity.UID, "error", err)
		return Resolution{Outcome: OutcomeFailed, Err: err}
	}

	if sub := claimSubject(snapshot); sub != "" && sub != identity.UID {
		return deny("claims subject mismatch", map[string]any{"uid": identity.UID})
	}

	source := RoleSourceClaims
	role, ok := snapshot.Role()
	if !ok {
		source = RoleSourceRegistry
		var res *Resolution
		role, res = r.lookup(ctx, identity.UID)
		if res != nil {
			return *res
		}
	}

	token := snapshot.Token
	if token == "" {
		token = identity.Token
	}

	session, err := NewAuthSession(AdminUser{
		UID:         identity.UID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		Role:        role,
		AvatarURL:   identity.AvatarURL,
	}, token)
	if err != nil {
		return Resolution{Outcome: OutcomeFailed, Source: source, Err: err}
	}

	return Resolution{Outcome: OutcomeAuthorized, Source: source, Session: session}
}

// snapshot reads claims with forceRefresh set to false. A forced refresh
// rotates the token and fires token change notifications.
func (r *Resolver) snapshot(ctx context.Context, identity *IdentityAssertion) (*ClaimsSnapshot, error) {
	if r.claims == nil {
		return &ClaimsSnapshot{Claims: identity.Claims, Token: identity.Token}, nil
	}

	snapshot, err := r.claims.Claims(ctx, false)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return &ClaimsSnapshot{}, nil
	}
	return snapshot, nil
}

// lookup returns the registry role, or a terminal resolution.
func (r *Resolver) lookup(ctx context.Context, uid string) (AdminRole, *Resolution) {
	if r.registry == nil {
		res := deny("admin access required", map[string]any{"uid": uid})
		return "", &res
	}

	entry, err := r.registry.GetRecord(ctx, uid)
	switch {
	case err != nil && IsRegistryAccessDenied(err):
		r.metrics.RegistryRead(RegistryReadDenied)
		r.logger.Error("authorization registry denied read", "uid", uid, "error", err)
		res := Resolution{
			Outcome: OutcomeRegistryUnavailable,
			Source:  RoleSourceRegistry,
			Err: cloneError(ErrRegistryUnavailable, "", err, map[string]any{
				"uid":      uid,
				"guidance": RegistryPermissionsGuidance,
			}),
		}
		return "", &res
	case err != nil:
		r.metrics.RegistryRead(RegistryReadError)
		r.logger.Error("authorization registry read failed", "uid", uid, "error", err)
		res := Resolution{Outcome: OutcomeFailed, Source: RoleSourceRegistry, Err: err}
		return "", &res
	case entry == nil:
		r.metrics.RegistryRead(RegistryReadMissing)
		if r.diagnostics {
			r.logger.Warn("no authorization registry entry for identity", "uid", uid)
		}
		res := deny("admin access required", map[string]any{"uid": uid})
		res.Source = RoleSourceRegistry
		return "", &res
	}

	r.metrics.RegistryRead(RegistryReadFound)

	role, ok := ParseAdminRole(entry.Role)
	if !ok {
		if r.diagnostics {
			r.logger.Warn("authorization registry entry has no admin role", "uid", uid, "role", entry.Role)
		}
		res := deny("admin access required", map[string]any{"uid": uid})
		res.Source = RoleSourceRegistry
		return "", &res
	}

	return role, nil
}

func deny(reason string, meta map[string]any) Resolution {
	return Resolution{Outcome: OutcomeNotAuthorized, Err: notAuthorized(reason, meta)}
}

func claimSubject(snapshot *ClaimsSnapshot) string {
	if snapshot == nil || snapshot.Claims == nil {
		return ""
	}
	for _, key := range []string{"user_id", "sub"} {
		if v, ok := snapshot.Claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
