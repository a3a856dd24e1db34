package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultIssuer is the iss and aud of local ID tokens.
	DefaultIssuer = "go-admin-auth/local"
	// DefaultTokenTTL is how long a local ID token is valid.
	DefaultTokenTTL = time.Hour
	// InvalidCredentialsMessage is the message of every rejected sign in.
	InvalidCredentialsMessage = "INVALID_LOGIN_CREDENTIALS"
)

// ErrNoSession is returned by Claims when nobody is signed in.
var ErrNoSession = goerrors.New("no signed in identity", goerrors.CategoryAuth).
	WithTextCode("NO_SESSION").
	WithCode(goerrors.CodeUnauthorized)

var dummyHashes sync.Map

// dummyHash returns the hash compared against when the email is unknown. It is
// built once per cost so a miss costs the same as a wrong password.
func dummyHash(cost int) []byte {
	if h, ok := dummyHashes.Load(cost); ok {
		return h.([]byte)
	}
	h, err := bcrypt.GenerateFromPassword([]byte("go-admin-auth/local"), cost)
	if err != nil {
		h, _ = bcrypt.GenerateFromPassword([]byte("go-admin-auth/local"), DefaultPasswordCost)
	}
	actual, _ := dummyHashes.LoadOrStore(cost, h)
	return actual.([]byte)
}

type current struct {
	account Account
	token   string
}

// Provider is an in-memory auth.IdentityProvider.
type Provider struct {
	mu       sync.Mutex
	accounts map[string]Account
	// hashCost is the highest bcrypt cost among the accounts.
	hashCost int
	current  *current
	resets   []string

	signer *tokenSigner
	logger auth.Logger
	now    func() time.Time

	obsMu     sync.Mutex
	observers map[uint64]func(*auth.IdentityAssertion)
	nextObs   uint64
}

var (
	_ auth.IdentityProvider = (*Provider)(nil)
	_ auth.TokenObserver    = (*Provider)(nil)
)

// New returns a Provider that signs ID tokens with signingKey.
func New(signingKey []byte, accounts ...Account) (*Provider, error) {
	if len(signingKey) == 0 {
		return nil, errors.New("local: signing key is required")
	}

	p := &Provider{
		accounts:  make(map[string]Account, len(accounts)),
		hashCost:  DefaultPasswordCost,
		signer:    &tokenSigner{key: signingKey, issuer: DefaultIssuer, ttl: DefaultTokenTTL},
		logger:    auth.NopLogger(),
		now:       time.Now,
		observers: map[uint64]func(*auth.IdentityAssertion){},
	}

	for _, acc := range accounts {
		if err := p.AddAccount(acc); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Provider) WithLogger(logger auth.Logger) *Provider {
	if logger != nil {
		p.logger = logger
	}
	return p
}

func (p *Provider) WithIssuer(issuer string) *Provider {
	if issuer != "" {
		p.signer.issuer = issuer
	}
	return p
}

func (p *Provider) WithTokenTTL(ttl time.Duration) *Provider {
	if ttl > 0 {
		p.signer.ttl = ttl
	}
	return p
}

func (p *Provider) WithClock(now func() time.Time) *Provider {
	if now != nil {
		p.now = now
	}
	return p
}

// AddAccount registers or replaces an account.
func (p *Provider) AddAccount(acc Account) error {
	acc, err := acc.normalize()
	if err != nil {
		return err
	}

	cost, err := bcrypt.Cost([]byte(acc.PasswordHash))
	if err != nil {
		return fmt.Errorf("local: account %s: %w", acc.Email, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.accounts) == 0 || cost > p.hashCost {
		p.hashCost = cost
	}
	p.accounts[normalizeEmail(acc.Email)] = acc
	return nil
}

// Verify checks the password and signs the account in.
func (p *Provider) Verify(ctx context.Context, email, password string) (*auth.IdentityAssertion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, auth.NewValidationError("email and password are required", nil)
	}

	p.mu.Lock()
	acc, ok := p.accounts[email]
	cost := p.hashCost
	p.mu.Unlock()

	var hash []byte
	if ok {
		hash = []byte(acc.PasswordHash)
	} else {
		hash = dummyHash(cost)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || !ok {
		p.logger.Debug("local sign in rejected", "email", email)
		return nil, auth.NewCredentialError(InvalidCredentialsMessage, nil)
	}

	token, claims, err := p.signer.mint(acc, p.now())
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.current = &current{account: acc, token: token}
	p.mu.Unlock()

	identity := p.assertion(acc, token, claims)
	p.notify(identity)
	return identity, nil
}

// Claims returns the claims of the current ID token. forceRefresh mints a new
// token and notifies token observers.
func (p *Provider) Claims(ctx context.Context, forceRefresh bool) (*auth.ClaimsSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	cur := p.current
	p.mu.Unlock()
	if cur == nil {
		return nil, ErrNoSession
	}

	token := cur.token
	if forceRefresh {
		minted, claims, err := p.signer.mint(cur.account, p.now())
		if err != nil {
			return nil, err
		}
		token = minted

		p.mu.Lock()
		if p.current != nil && p.current.account.UID == cur.account.UID {
			p.current = &current{account: cur.account, token: token}
		}
		p.mu.Unlock()
		p.notify(p.assertion(cur.account, token, claims))
	}

	claims, err := p.signer.parse(token, p.now())
	if err != nil {
		return nil, err
	}

	snapshot := &auth.ClaimsSnapshot{Claims: map[string]any(claims), Token: token}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		snapshot.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		snapshot.ExpiresAt = exp.Time
	}
	return snapshot, nil
}

// SignOut forgets the current identity.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	was := p.current != nil
	p.current = nil
	p.mu.Unlock()

	if was {
		p.notify(nil)
	}
	return nil
}

// SendPasswordReset records the request for known accounts. Unknown emails
// are accepted without error.
func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return auth.NewValidationError("email is required", map[string]string{"email": "cannot be blank"})
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.accounts[email]; ok {
		p.resets = append(p.resets, email)
		p.logger.Info("local password reset requested", "email", email)
	}
	return nil
}

// PasswordResets returns the emails reset was requested for, oldest first.
func (p *Provider) PasswordResets() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.resets...)
}

// CurrentIdentity returns the signed in identity, or nil. A token that no
// longer validates (expired or signed with another key) signs out.
func (p *Provider) CurrentIdentity(ctx context.Context) (*auth.IdentityAssertion, error) {
	p.mu.Lock()
	cur := p.current
	p.mu.Unlock()
	if cur == nil {
		return nil, nil
	}

	claims, err := p.signer.parse(cur.token, p.now())
	if err != nil {
		p.logger.Debug("local token no longer valid", "uid", cur.account.UID, "error", err)
		_ = p.SignOut(ctx)
		return nil, nil
	}

	identity := p.assertion(cur.account, cur.token, nil)
	identity.Claims = map[string]any(claims)
	return identity, nil
}

// OnTokenChange registers fn for sign in, sign out and token refresh.
func (p *Provider) OnTokenChange(fn func(*auth.IdentityAssertion)) func() {
	p.obsMu.Lock()
	defer p.obsMu.Unlock()

	p.nextObs++
	id := p.nextObs
	p.observers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			p.obsMu.Lock()
			defer p.obsMu.Unlock()
			delete(p.observers, id)
		})
	}
}

func (p *Provider) notify(identity *auth.IdentityAssertion) {
	p.obsMu.Lock()
	fns := make([]func(*auth.IdentityAssertion), 0, len(p.observers))
	for _, fn := range p.observers {
		fns = append(fns, fn)
	}
	p.obsMu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}

func (p *Provider) assertion(acc Account, token string, claims *TokenClaims) *auth.IdentityAssertion {
	identity := &auth.IdentityAssertion{
		UID:         acc.UID,
		Email:       acc.Email,
		DisplayName: strings.TrimSpace(acc.DisplayName),
		AvatarURL:   acc.AvatarURL,
		Token:       token,
	}
	if claims != nil {
		identity.Claims = map[string]any{
			"sub":   claims.Subject,
			"email": claims.Email,
		}
		if claims.Role != "" {
			identity.Claims[auth.ClaimRoleKey] = claims.Role
		}
	}
	return identity
}
