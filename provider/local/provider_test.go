package local_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-admin-auth/provider/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var signingKey = []byte("test-signing-key")

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := local.HashPasswordCost(password, bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func newProvider(t *testing.T, accounts ...local.Account) *local.Provider {
	t.Helper()
	p, err := local.New(signingKey, accounts...)
	require.NoError(t, err)
	return p
}

func TestVerify(t *testing.T) {
	p := newProvider(t, local.Account{
		Email:        "Admin@X.com",
		PasswordHash: mustHash(t, "secret1"),
		DisplayName:  "Ada",
		Role:         "admin",
	})

	identity, err := p.Verify(context.Background(), " admin@x.com ", "secret1")
	require.NoError(t, err)

	uid, err := local.DeriveUID("admin@x.com")
	require.NoError(t, err)

	assert.Equal(t, uid, identity.UID)
	assert.Equal(t, "Admin@X.com", identity.Email)
	assert.Equal(t, "Ada", identity.DisplayName)
	assert.NotEmpty(t, identity.Token)
	assert.Equal(t, "admin", identity.Claims[auth.ClaimRoleKey])

	current, err := p.CurrentIdentity(context.Background())
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, identity.Token, current.Token)
	assert.Equal(t, uid, current.Claims["sub"])
}

func TestVerify_RejectsWithoutRevealingReason(t *testing.T) {
	p := newProvider(t, local.Account{Email: "admin@x.com", PasswordHash: mustHash(t, "secret1")})

	_, wrongPassword := p.Verify(context.Background(), "admin@x.com", "nope123")
	_, unknownEmail := p.Verify(context.Background(), "ghost@x.com", "secret1")

	for _, err := range []error{wrongPassword, unknownEmail} {
		require.Error(t, err)
		assert.True(t, auth.IsCredentialError(err))
		assert.Contains(t, err.Error(), local.InvalidCredentialsMessage)
	}
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())

	current, err := p.CurrentIdentity(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestVerify_UnknownEmailMatchesAccountCost(t *testing.T) {
	stronger, err := local.HashPasswordCost("secret1", bcrypt.MinCost+1)
	require.NoError(t, err)

	p := newProvider(t,
		local.Account{Email: "admin@x.com", PasswordHash: mustHash(t, "secret1")},
		local.Account{Email: "ops@x.com", PasswordHash: stronger},
	)
	assert.Equal(t, bcrypt.MinCost+1, p.HashCost())

	cost, err := bcrypt.Cost(local.DummyHash(p.HashCost()))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)

	assert.Equal(t, local.DefaultPasswordCost, newProvider(t).HashCost())
}

func TestAddAccount_RejectsMalformedHash(t *testing.T) {
	p := newProvider(t)

	err := p.AddAccount(local.Account{Email: "admin@x.com", PasswordHash: "not-a-hash"})
	assert.Error(t, err)

	_, err = p.Verify(context.Background(), "admin@x.com", "secret1")
	assert.True(t, auth.IsCredentialError(err))
}

func TestVerify_EmptyInput(t *testing.T) {
	p := newProvider(t)

	_, err := p.Verify(context.Background(), "", "secret1")
	assert.True(t, auth.IsValidationError(err))
}

func TestClaims(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newProvider(t, local.Account{Email: "admin@x.com", PasswordHash: mustHash(t, "secret1"), Role: "super_admin"}).
		WithClock(func() time.Time { return now })

	_, err := p.Claims(context.Background(), false)
	assert.ErrorIs(t, err, local.ErrNoSession)

	identity, err := p.Verify(context.Background(), "admin@x.com", "secret1")
	require.NoError(t, err)

	snapshot, err := p.Claims(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, identity.Token, snapshot.Token)
	assert.Equal(t, now, snapshot.IssuedAt.UTC())
	assert.Equal(t, now.Add(local.DefaultTokenTTL), snapshot.ExpiresAt.UTC())

	role, ok := snapshot.Role()
	assert.True(t, ok)
	assert.Equal(t, auth.RoleSuperAdmin, role)
}

func TestClaims_ForcedRefreshNotifies(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	p := newProvider(t, local.Account{Email: "admin@x.com", PasswordHash: mustHash(t, "secret1")}).WithClock(clock)

	identity, err := p.Verify(context.Background(), "admin@x.com", "secret1")
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []string
	stop := p.OnTokenChange(func(a *auth.IdentityAssertion) {
		mu.Lock()
		defer mu.Unlock()
		if a == nil {
			seen = append(seen, "")
			return
		}
		seen = append(seen, a.Token)
	})
	defer stop()

	unforced, err := p.Claims(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, identity.Token, unforced.Token)
	assert.Empty(t, seen)

	now = now.Add(time.Minute)
	forced, err := p.Claims(context.Background(), true)
	require.NoError(t, err)
	assert.NotEqual(t, identity.Token, forced.Token)
	assert.Equal(t, []string{forced.Token}, seen)

	current, err := p.CurrentIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, forced.Token, current.Token)
}

func TestSignOut(t *testing.T) {
	p := newProvider(t, local.Account{Email: "admin@x.com", PasswordHash: mustHash(t, "secret1")})
	_, err := p.Verify(context.Background(), "admin@x.com", "secret1")
	require.NoError(t, err)

	var signals []*auth.IdentityAssertion
	stop := p.OnTokenChange(func(a *auth.IdentityAssertion) { signals = append(signals, a) })

	require.NoError(t, p.SignOut(context.Background()))
	require.NoError(t, p.SignOut(context.Background()))
	stop()
	stop()

	current, err := p.CurrentIdentity(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
	require.Len(t, signals, 1)
	assert.Nil(t, signals[0])
}

func TestCurrentIdentity_ExpiredTokenSignsOut(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newProvider(t, local.Account{Email: "admin@x.com", PasswordHash: mustHash(t, "secret1")}).
		WithTokenTTL(time.Minute).
		WithClock(func() time.Time { return now })

	_, err := p.Verify(context.Background(), "admin@x.com", "secret1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)

	current, err := p.CurrentIdentity(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestSendPasswordReset(t *testing.T) {
	p := newProvider(t, local.Account{Email: "admin@x.com", PasswordHash: mustHash(t, "secret1")})

	require.NoError(t, p.SendPasswordReset(context.Background(), "ADMIN@x.com"))
	require.NoError(t, p.SendPasswordReset(context.Background(), "ghost@x.com"))
	assert.True(t, auth.IsValidationError(p.SendPasswordReset(context.Background(), " ")))

	assert.Equal(t, []string{"admin@x.com"}, p.PasswordResets())
}

func TestLoadAccounts(t *testing.T) {
	doc := `
accounts:
  - email: admin@x.com
    password_hash: "$2a$04$abc"
    display_name: Ada
    role: admin
  - email: eve@x.com
    uid: u2
    password_hash: "$2a$04$def"
`
	accounts, err := local.LoadAccounts(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "Ada", accounts[0].DisplayName)
	assert.Equal(t, "admin", accounts[0].Role)
	assert.Equal(t, "u2", accounts[1].UID)

	empty, err := local.LoadAccounts(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestNew_Validation(t *testing.T) {
	_, err := local.New(nil)
	assert.Error(t, err)

	_, err = local.New(signingKey, local.Account{Email: "admin@x.com"})
	assert.Error(t, err)
}

func TestDeriveUID_Stable(t *testing.T) {
	a, err := local.DeriveUID("Admin@X.com ")
	require.NoError(t, err)
	b, err := local.DeriveUID("admin@x.com")
	require.NoError(t, err)
	c, err := local.DeriveUID("eve@x.com")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestProvider_WithStore(t *testing.T) {
	p := newProvider(t,
		local.Account{Email: "admin@x.com", PasswordHash: mustHash(t, "secret1"), Role: "admin"},
		local.Account{Email: "eve@x.com", PasswordHash: mustHash(t, "secret1")},
	)
	store := auth.NewStore(p, auth.NewResolver(p, nil).WithLogger(auth.NopLogger())).WithLogger(auth.NopLogger())

	require.NoError(t, store.Restore(context.Background()))

	session, err := store.Login(context.Background(), "admin@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, session.Role())

	_, err = store.Login(context.Background(), "eve@x.com", "secret1")
	assert.True(t, auth.IsNotAuthorized(err))

	current, err := p.CurrentIdentity(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}
