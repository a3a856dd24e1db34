package auth_test

import (
	"context"
	"errors"
	"testing"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newResolverFixture(identity auth.IdentityAssertion, entries ...auth.RegistryEntry) (*auth.Resolver, *fakeProvider, *countingRegistry) {
	provider := newFakeProvider()
	provider.current = &identity
	registry := newCountingRegistry(entries...)
	resolver := auth.NewResolver(provider, registry).WithLogger(auth.NopLogger())
	return resolver, provider, registry
}

func TestResolve_ClaimsRoleSkipsRegistry(t *testing.T) {
	for _, role := range auth.AdminRoles() {
		t.Run(string(role), func(t *testing.T) {
			identity := adminIdentity("u1", "admin@x.com", map[string]any{"role": string(role)})
			resolver, _, registry := newResolverFixture(identity)

			res := resolver.Resolve(context.Background(), &identity)

			require.True(t, res.Authorized())
			assert.Equal(t, auth.OutcomeAuthorized, res.Outcome)
			assert.Equal(t, auth.RoleSourceClaims, res.Source)
			assert.Equal(t, role, res.Session.Role())
			assert.Equal(t, 0, registry.readCount())
		})
	}
}

func TestResolve_RegistryFallback(t *testing.T) {
	identity := adminIdentity("u1", "admin@x.com", nil)
	resolver, _, registry := newResolverFixture(identity, auth.RegistryEntry{UID: "u1", Role: "admin"})

	res := resolver.Resolve(context.Background(), &identity)

	require.True(t, res.Authorized())
	assert.Equal(t, auth.RoleSourceRegistry, res.Source)
	assert.Equal(t, auth.RoleAdmin, res.Session.Role())
	assert.Equal(t, 1, registry.readCount())
}

func TestResolve_InvalidClaimRoleFallsBackToRegistry(t *testing.T) {
	cases := []struct {
		name  string
		claim any
	}{
		{name: "unknown role", claim: "editor"},
		{name: "non string", claim: 42},
		{name: "nested value", claim: map[string]any{"role": "admin"}},
		{name: "empty", claim: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			identity := adminIdentity("u1", "admin@x.com", map[string]any{"role": tc.claim})
			resolver, _, registry := newResolverFixture(identity, auth.RegistryEntry{UID: "u1", Role: "super_admin"})

			res := resolver.Resolve(context.Background(), &identity)

			require.True(t, res.Authorized())
			assert.Equal(t, auth.RoleSuperAdmin, res.Session.Role())
			assert.Equal(t, 1, registry.readCount())
		})
	}
}

func TestResolve_MissingRegistryEntry(t *testing.T) {
	identity := adminIdentity("u2", "eve@x.com", nil)
	resolver, _, registry := newResolverFixture(identity)

	res := resolver.Resolve(context.Background(), &identity)

	assert.Equal(t, auth.OutcomeNotAuthorized, res.Outcome)
	assert.Nil(t, res.Session)
	assert.True(t, auth.IsNotAuthorized(res.Err))
	assert.Equal(t, 1, registry.readCount())

	session, err := res.Result()
	assert.Nil(t, session)
	assert.True(t, auth.IsNotAuthorized(err))
}

func TestResolve_RegistryEntryWithoutAdminRole(t *testing.T) {
	for _, role := range []string{"", "editor", "ADMIN", "owner"} {
		identity := adminIdentity("u3", "teacher@x.com", nil)
		resolver, _, registry := newResolverFixture(identity, auth.RegistryEntry{UID: "u3", Role: role})

		res := resolver.Resolve(context.Background(), &identity)

		assert.Equal(t, auth.OutcomeNotAuthorized, res.Outcome, role)
		assert.True(t, auth.IsNotAuthorized(res.Err), role)
		assert.Equal(t, 1, registry.readCount(), role)
	}
}

func TestResolve_AccessDeniedIsRegistryUnavailable(t *testing.T) {
	identity := adminIdentity("u1", "admin@x.com", nil)
	resolver, _, registry := newResolverFixture(identity)
	registry.err = auth.NewRegistryAccessDenied(errors.New("permission-denied"), nil)

	res := resolver.Resolve(context.Background(), &identity)

	assert.Equal(t, auth.OutcomeRegistryUnavailable, res.Outcome)
	assert.True(t, auth.IsRegistryUnavailable(res.Err))
	assert.False(t, auth.IsNotAuthorized(res.Err))
	assert.Nil(t, res.Session)
}

func TestResolve_OtherRegistryFailurePropagates(t *testing.T) {
	identity := adminIdentity("u1", "admin@x.com", nil)
	resolver, _, registry := newResolverFixture(identity)
	boom := errors.New("connection reset")
	registry.err = boom

	res := resolver.Resolve(context.Background(), &identity)

	assert.Equal(t, auth.OutcomeFailed, res.Outcome)
	assert.Same(t, boom, res.Err)
	assert.Nil(t, res.Session)
	assert.False(t, auth.IsNotAuthorized(res.Err))
	assert.False(t, auth.IsRegistryUnavailable(res.Err))
}

func TestResolve_EmptyEmailRejectedBeforeAnyRead(t *testing.T) {
	identity := adminIdentity("u1", "  ", map[string]any{"role": "admin"})
	resolver, provider, registry := newResolverFixture(identity)

	res := resolver.Resolve(context.Background(), &identity)

	assert.Equal(t, auth.OutcomeNotAuthorized, res.Outcome)
	assert.True(t, auth.IsNotAuthorized(res.Err))
	assert.Empty(t, provider.claimsCalls)
	assert.Equal(t, 0, registry.readCount())
}

func TestResolve_NilIdentity(t *testing.T) {
	resolver := auth.NewResolver(nil, newCountingRegistry()).WithLogger(auth.NopLogger())

	res := resolver.Resolve(context.Background(), nil)

	assert.Equal(t, auth.OutcomeNotAuthorized, res.Outcome)
}

func TestResolve_ClaimsAreNeverForced(t *testing.T) {
	identity := adminIdentity("u1", "admin@x.com", nil)
	resolver, provider, _ := newResolverFixture(identity, auth.RegistryEntry{UID: "u1", Role: "admin"})

	for i := 0; i < 3; i++ {
		resolver.Resolve(context.Background(), &identity)
	}

	assert.Equal(t, []bool{false, false, false}, provider.claimsCalls)
}

func TestResolve_ClaimsFailurePropagates(t *testing.T) {
	identity := adminIdentity("u1", "admin@x.com", nil)
	resolver, provider, registry := newResolverFixture(identity, auth.RegistryEntry{UID: "u1", Role: "admin"})
	boom := errors.New("network down")
	provider.claimsErr = boom

	res := resolver.Resolve(context.Background(), &identity)

	assert.Equal(t, auth.OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, 0, registry.readCount())
}

func TestResolve_ClaimsSubjectMismatch(t *testing.T) {
	identity := adminIdentity("u1", "admin@x.com", nil)
	resolver, provider, registry := newResolverFixture(identity)
	provider.current = &auth.IdentityAssertion{UID: "other", Claims: map[string]any{"sub": "other", "role": "admin"}}

	res := resolver.Resolve(context.Background(), &identity)

	assert.Equal(t, auth.OutcomeNotAuthorized, res.Outcome)
	assert.Equal(t, 0, registry.readCount())
}

func TestResolve_SessionFields(t *testing.T) {
	identity := auth.IdentityAssertion{
		UID:       "u1",
		Email:     "admin@x.com",
		AvatarURL: "https://cdn.x.com/a.png",
		Token:     "tok-1",
		Claims:    map[string]any{"role": "admin"},
	}
	resolver := auth.NewResolver(nil, newCountingRegistry()).WithLogger(auth.NopLogger())

	session, err := resolver.Resolve(context.Background(), &identity).Result()
	require.NoError(t, err)

	user := session.User()
	assert.Equal(t, "u1", user.UID)
	assert.Equal(t, "admin@x.com", user.Email)
	assert.Equal(t, auth.DefaultDisplayName, user.DisplayName)
	assert.Equal(t, "https://cdn.x.com/a.png", user.AvatarURL)
	assert.Equal(t, "tok-1", session.Token())
}

func TestResolve_Diagnostics(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		identity := adminIdentity("u2", "eve@x.com", nil)
		logger := &captureLogger{}
		resolver := auth.NewResolver(nil, newCountingRegistry()).
			WithLogger(logger).
			WithDiagnostics(enabled)

		res := resolver.Resolve(context.Background(), &identity)

		assert.Equal(t, auth.OutcomeNotAuthorized, res.Outcome)
		if enabled {
			assert.Equal(t, 1, logger.count("warn"))
		} else {
			assert.Equal(t, 0, logger.count("warn"))
		}
	}
}

func TestResolve_SessionRoleAlwaysValid(t *testing.T) {
	claimRoles := []any{nil, "admin", "super_admin", "editor", 7, true}
	registryRoles := []string{"", "admin", "super_admin", "guest"}
	failures := []error{nil, errors.New("boom"), auth.NewRegistryAccessDenied(errors.New("denied"), nil)}

	for _, claim := range claimRoles {
		for _, regRole := range registryRoles {
			for _, failure := range failures {
				identity := adminIdentity("u1", "admin@x.com", map[string]any{"role": claim})
				registry := newCountingRegistry(auth.RegistryEntry{UID: "u1", Role: regRole})
				registry.err = failure
				resolver := auth.NewResolver(nil, registry).WithLogger(auth.NopLogger())

				res := resolver.Resolve(context.Background(), &identity)

				if res.Session != nil {
					assert.True(t, res.Session.Role().IsValid())
					assert.Equal(t, auth.OutcomeAuthorized, res.Outcome)
				} else {
					assert.NotEqual(t, auth.OutcomeAuthorized, res.Outcome)
					assert.Error(t, res.Err)
				}
			}
		}
	}
}

func TestResolution_ZeroValueFailsClosed(t *testing.T) {
	var res auth.Resolution

	assert.False(t, res.Authorized())
	assert.Equal(t, auth.OutcomeFailed, res.Outcome)

	session, err := res.Result()
	assert.Nil(t, session)
	assert.True(t, auth.IsNotAuthorized(err))
}

func TestResolve_Tracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	identity := adminIdentity("u1", "admin@x.com", nil)
	resolver := auth.NewResolver(nil, newCountingRegistry(auth.RegistryEntry{UID: "u1", Role: "admin"})).
		WithLogger(auth.NopLogger()).
		WithTracer(tp.Tracer("test"))

	resolver.Resolve(context.Background(), &identity)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "auth.resolve", spans[0].Name())

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}
	assert.Equal(t, "authorized", attrs["auth.outcome"])
	assert.Equal(t, "registry", attrs["auth.role_source"])
}
