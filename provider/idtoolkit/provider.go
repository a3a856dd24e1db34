package idtoolkit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-admin-auth"
)

// Provider is an auth.IdentityProvider backed by the REST API.
type Provider struct {
	cfg     Config
	client  *client
	keyfunc jwt.Keyfunc
	jwks    *keyfunc.JWKS
	tokens  TokenStore
	logger  auth.Logger
	now     func() time.Time

	mu      sync.Mutex
	session *StoredToken

	refreshMu sync.Mutex

	obsMu     sync.Mutex
	observers map[uint64]func(*auth.IdentityAssertion)
	nextObs   uint64
}

var (
	_ auth.IdentityProvider = (*Provider)(nil)
	_ auth.TokenObserver    = (*Provider)(nil)
)

type Option func(*Provider)

// WithKeyfunc verifies ID tokens with kf instead of fetching the JWKS.
func WithKeyfunc(kf jwt.Keyfunc) Option {
	return func(p *Provider) {
		p.keyfunc = kf
	}
}

func WithTokenStore(store TokenStore) Option {
	return func(p *Provider) {
		if store != nil {
			p.tokens = store
		}
	}
}

func WithLogger(logger auth.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates the provider. Unless WithKeyfunc is given the JWKS is fetched
// before New returns and refreshed in the background until Close.
func New(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	p := &Provider{
		cfg:       cfg,
		client:    &client{cfg: cfg},
		tokens:    NewMemoryTokenStore(),
		logger:    auth.NopLogger(),
		now:       time.Now,
		observers: map[uint64]func(*auth.IdentityAssertion){},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	if p.keyfunc == nil {
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			Ctx:    ctx,
			Client: cfg.HTTPClient,
			RefreshErrorHandler: func(err error) {
				p.logger.Error("idtoolkit jwks background refresh failed", "error", err)
			},
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  time.Minute * 5,
			RefreshTimeout:    time.Second * 10,
			RefreshUnknownKID: true,
		})
		if err != nil {
			return nil, fmt.Errorf("idtoolkit: fetch jwks: %w", err)
		}
		p.jwks = jwks
		p.keyfunc = jwks.Keyfunc
	}

	return p, nil
}

// Close stops the JWKS background refresh.
func (p *Provider) Close() {
	if p.jwks != nil {
		p.jwks.EndBackground()
	}
}

// Verify signs in with email and password.
func (p *Provider) Verify(ctx context.Context, email, password string) (*auth.IdentityAssertion, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, auth.NewValidationError("email and password are required", nil)
	}

	resp, err := p.client.signIn(ctx, email, password)
	if err != nil {
		p.logger.Debug("idtoolkit sign in rejected", "error", err)
		return nil, classify(err)
	}

	claims, err := p.verify(resp.IDToken)
	if err != nil {
		return nil, err
	}
	if sub, _ := claims.GetSubject(); sub != resp.LocalID {
		return nil, tokenInvalid(fmt.Errorf("subject %q does not match account %q", sub, resp.LocalID))
	}

	st := &StoredToken{
		UID:          resp.LocalID,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    p.now().Add(time.Duration(parseExpiresIn(resp.ExpiresIn)) * time.Second),
	}
	p.setSession(ctx, st)

	identity := assertion(st, claims)
	p.notify(identity)
	return identity, nil
}

// Claims returns the claims of the current ID token. Without forceRefresh
// the cached token is used until it gets within ExpirySkew of expiring.
func (p *Provider) Claims(ctx context.Context, forceRefresh bool) (*auth.ClaimsSnapshot, error) {
	st := p.currentSession()
	if st == nil {
		return nil, ErrNoSession
	}

	if forceRefresh || p.expiring(st) {
		var err error
		if st, err = p.refresh(ctx, st); err != nil {
			return nil, err
		}
	}

	claims, err := p.verify(st.IDToken)
	if err != nil {
		return nil, err
	}

	snapshot := &auth.ClaimsSnapshot{Claims: map[string]any(claims), Token: st.IDToken}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		snapshot.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		snapshot.ExpiresAt = exp.Time
	}
	return snapshot, nil
}

// SignOut drops the session locally and from the token store.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	was := p.session != nil
	p.session = nil
	p.mu.Unlock()

	err := p.tokens.Clear(ctx)
	if was {
		p.notify(nil)
	}
	return err
}

// SendPasswordReset requests a reset email. Unknown emails are accepted so
// the response does not tell which accounts exist.
func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return auth.NewValidationError("email is required", map[string]string{"email": "cannot be blank"})
	}

	err := p.client.sendPasswordReset(ctx, email)
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case CodeEmailNotFound:
			p.logger.Debug("idtoolkit password reset for unknown email")
			return nil
		case CodeInvalidEmail:
			return auth.NewValidationError("invalid email", map[string]string{"email": "must be a valid email address"})
		}
	}
	return upstream(err)
}

// CurrentIdentity returns the signed in identity, restoring it from the
// token store when the process has none. Ended sessions yield nil, nil.
func (p *Provider) CurrentIdentity(ctx context.Context) (*auth.IdentityAssertion, error) {
	st := p.currentSession()
	restoring := false
	if st == nil {
		stored, err := p.tokens.Load(ctx)
		if err != nil {
			return nil, err
		}
		if stored == nil || stored.RefreshToken == "" {
			return nil, nil
		}
		st = stored
		restoring = true
	}

	if p.expiring(st) {
		refreshed, err := p.refresh(ctx, st)
		if isNoSession(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		st = refreshed
	}

	claims, err := p.verify(st.IDToken)
	if err != nil {
		return nil, err
	}

	if restoring {
		user, err := p.client.lookup(ctx, st.IDToken)
		if err != nil {
			if sessionEnded(err) {
				p.dropSession(ctx)
				return nil, nil
			}
			return nil, upstream(err)
		}
		if user.Disabled {
			p.dropSession(ctx)
			return nil, nil
		}
		if user.Email != "" {
			st.Email = user.Email
		}
		st.DisplayName = user.DisplayName
		st.PhotoURL = user.PhotoURL
		p.setSession(ctx, st)
	}

	return assertion(st, claims), nil
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

func (p *Provider) refresh(ctx context.Context, st *StoredToken) (*StoredToken, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	resp, err := p.client.refresh(ctx, st.RefreshToken)
	if err != nil {
		if sessionEnded(err) {
			p.logger.Info("idtoolkit session ended by provider", "uid", st.UID, "error", err)
			p.dropSession(ctx)
			clone := ErrNoSession.Clone()
			if clone == nil {
				return nil, ErrNoSession
			}
			clone.Source = err
			return nil, clone
		}
		return nil, upstream(err)
	}

	next := *st
	next.IDToken = resp.IDToken
	if resp.RefreshToken != "" {
		next.RefreshToken = resp.RefreshToken
	}
	next.ExpiresAt = p.now().Add(time.Duration(parseExpiresIn(resp.ExpiresIn)) * time.Second)

	claims, err := p.verify(next.IDToken)
	if err != nil {
		return nil, err
	}

	p.setSession(ctx, &next)
	p.notify(assertion(&next, claims))
	return &next, nil
}

func (p *Provider) verify(idToken string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(idToken, claims, p.keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(p.cfg.Issuer),
		jwt.WithAudience(p.cfg.ProjectID),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, tokenInvalid(err)
	}
	if sub, _ := claims.GetSubject(); sub == "" {
		return nil, tokenInvalid(errors.New("missing subject"))
	}
	return claims, nil
}

func (p *Provider) expiring(st *StoredToken) bool {
	return !p.now().Add(p.cfg.ExpirySkew).Before(st.ExpiresAt)
}

func (p *Provider) currentSession() *StoredToken {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil
	}
	st := *p.session
	return &st
}

func (p *Provider) setSession(ctx context.Context, st *StoredToken) {
	p.mu.Lock()
	copied := *st
	p.session = &copied
	p.mu.Unlock()

	if err := p.tokens.Save(ctx, st); err != nil {
		p.logger.Warn("idtoolkit token store save failed", "error", err)
	}
}

func (p *Provider) dropSession(ctx context.Context) {
	p.mu.Lock()
	was := p.session != nil
	p.session = nil
	p.mu.Unlock()

	if err := p.tokens.Clear(ctx); err != nil {
		p.logger.Warn("idtoolkit token store clear failed", "error", err)
	}
	if was {
		p.notify(nil)
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

func assertion(st *StoredToken, claims jwt.MapClaims) *auth.IdentityAssertion {
	identity := &auth.IdentityAssertion{
		UID:         st.UID,
		Email:       st.Email,
		DisplayName: st.DisplayName,
		AvatarURL:   st.PhotoURL,
		Token:       st.IDToken,
		Claims:      map[string]any(claims),
	}
	if identity.Email == "" {
		identity.Email, _ = claims["email"].(string)
	}
	if identity.DisplayName == "" {
		identity.DisplayName, _ = claims["name"].(string)
	}
	if identity.AvatarURL == "" {
		identity.AvatarURL, _ = claims["picture"].(string)
	}
	return identity
}
