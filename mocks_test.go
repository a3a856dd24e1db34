package auth_test

import (
	"context"
	"sync"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/stretchr/testify/mock"
)

// fakeAccount is a provider account in fakeProvider.
type fakeAccount struct {
	identity auth.IdentityAssertion
	password string
}

// fakeProvider is an in-memory identity provider that counts calls.
type fakeProvider struct {
	mu sync.Mutex

	accounts map[string]fakeAccount
	current  *auth.IdentityAssertion

	verifyErr     error
	signOutErr    error
	currentErr    error
	claimsErr     error
	resetErr      error
	failOnCtxDone bool

	verifyCalls  int
	signOutCalls int
	claimsCalls  []bool
	resets       []string

	observers map[int]func(*auth.IdentityAssertion)
	nextObs   int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts:  map[string]fakeAccount{},
		observers: map[int]func(*auth.IdentityAssertion){},
	}
}

func (p *fakeProvider) addAccount(identity auth.IdentityAssertion, password string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[identity.Email] = fakeAccount{identity: identity, password: password}
}

func (p *fakeProvider) setCurrent(identity *auth.IdentityAssertion) {
	p.mu.Lock()
	p.current = identity
	p.mu.Unlock()
	p.notify(identity)
}

func (p *fakeProvider) Verify(ctx context.Context, email, password string) (*auth.IdentityAssertion, error) {
	if p.failOnCtxDone && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	p.mu.Lock()
	p.verifyCalls++
	if p.verifyErr != nil {
		err := p.verifyErr
		p.mu.Unlock()
		return nil, err
	}
	acc, ok := p.accounts[email]
	if !ok || acc.password != password {
		p.mu.Unlock()
		return nil, auth.NewCredentialError("INVALID_LOGIN_CREDENTIALS", nil)
	}
	identity := acc.identity
	p.current = &identity
	p.mu.Unlock()

	p.notify(&identity)
	return &identity, nil
}

func (p *fakeProvider) Claims(ctx context.Context, forceRefresh bool) (*auth.ClaimsSnapshot, error) {
	if p.failOnCtxDone && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.claimsCalls = append(p.claimsCalls, forceRefresh)
	if p.claimsErr != nil {
		return nil, p.claimsErr
	}
	if p.current == nil {
		return &auth.ClaimsSnapshot{}, nil
	}
	return &auth.ClaimsSnapshot{Claims: p.current.Claims, Token: p.current.Token}, nil
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	if p.failOnCtxDone && ctx.Err() != nil {
		return ctx.Err()
	}

	p.mu.Lock()
	p.signOutCalls++
	p.current = nil
	err := p.signOutErr
	p.mu.Unlock()

	p.notify(nil)
	return err
}

func (p *fakeProvider) SendPasswordReset(ctx context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resetErr != nil {
		return p.resetErr
	}
	p.resets = append(p.resets, email)
	return nil
}

func (p *fakeProvider) CurrentIdentity(ctx context.Context) (*auth.IdentityAssertion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentErr != nil {
		return nil, p.currentErr
	}
	if p.current == nil {
		return nil, nil
	}
	identity := *p.current
	return &identity, nil
}

func (p *fakeProvider) OnTokenChange(fn func(*auth.IdentityAssertion)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextObs
	p.nextObs++
	p.observers[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.observers, id)
	}
}

func (p *fakeProvider) notify(identity *auth.IdentityAssertion) {
	p.mu.Lock()
	fns := make([]func(*auth.IdentityAssertion), 0, len(p.observers))
	for _, fn := range p.observers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}

func (p *fakeProvider) signOuts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signOutCalls
}

// countingRegistry is an AuthorizationRegistry that counts reads.
type countingRegistry struct {
	mu      sync.Mutex
	entries map[string]auth.RegistryEntry
	err     error
	reads   int
}

func newCountingRegistry(entries ...auth.RegistryEntry) *countingRegistry {
	r := &countingRegistry{entries: map[string]auth.RegistryEntry{}}
	for _, e := range entries {
		r.entries[e.UID] = e
	}
	return r
}

func (r *countingRegistry) GetRecord(ctx context.Context, uid string) (*auth.RegistryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	if r.err != nil {
		return nil, r.err
	}
	entry, ok := r.entries[uid]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (r *countingRegistry) readCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

// MockSessionService implements auth.SessionService
type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) State() auth.State {
	args := m.Called()
	return args.Get(0).(auth.State)
}

func (m *MockSessionService) Login(ctx context.Context, email, password string) (*auth.AuthSession, error) {
	args := m.Called(ctx, email, password)
	session, _ := args.Get(0).(*auth.AuthSession)
	return session, args.Error(1)
}

func (m *MockSessionService) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSessionService) SendPasswordReset(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

type logCall struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu    sync.Mutex
	calls []logCall
}

func (l *captureLogger) record(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, logCall{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }

func (l *captureLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c.level == level {
			n++
		}
	}
	return n
}

func adminIdentity(uid, email string, claims map[string]any) auth.IdentityAssertion {
	return auth.IdentityAssertion{
		UID:    uid,
		Email:  email,
		Token:  "token-" + uid,
		Claims: claims,
	}
}
