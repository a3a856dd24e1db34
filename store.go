package auth

import (
	"context"
	"strings"
	"sync"
	"time"
)

// StateKind is the coarse state of the Store.
type StateKind int

const (
	StateLoading StateKind = iota
	StateUnauthenticated
	StateAuthenticated
)

func (k StateKind) String() string {
	switch k {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// State is what readers observe. Session is set only when Kind is
// StateAuthenticated.
type State struct {
	Kind    StateKind
	Session *AuthSession
}

// Loading reports whether the store has not settled yet.
func (s State) Loading() bool {
	return s.Kind == StateLoading
}

// Authenticated reports whether a session is held.
func (s State) Authenticated() bool {
	return s.Kind == StateAuthenticated && s.Session != nil
}

type subscriber struct {
	id uint64
	fn func(State)
}

// Store holds the process wide admin session. It is the only writer of the
// session slot; every transition goes through one lock so a verified but
// unresolved identity is never published.
type Store struct {
	provider IdentityProvider
	resolver *Resolver
	logger   Logger
	activity ActivitySink
	metrics  Metrics

	transition sync.Mutex

	mu    sync.RWMutex
	state State

	notifyMu  sync.Mutex
	subs      []subscriber
	nextSubID uint64

	watchers sync.WaitGroup
}

// NewStore returns a Store in the Loading state. Call Restore once at start.
func NewStore(provider IdentityProvider, resolver *Resolver) *Store {
	return &Store{
		provider: provider,
		resolver: resolver,
		logger:   defLogger{},
		activity: noopActivitySink{},
		metrics:  noopMetrics{},
		state:    State{Kind: StateLoading},
	}
}

func (s *Store) WithLogger(logger Logger) *Store {
	s.logger = normalizeLogger(logger)
	return s
}

func (s *Store) WithActivitySink(sink ActivitySink) *Store {
	s.activity = normalizeActivitySink(sink)
	return s
}

func (s *Store) WithMetrics(metrics Metrics) *Store {
	s.metrics = normalizeMetrics(metrics)
	return s
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Session returns the held session, if any.
func (s *Store) Session() (*AuthSession, bool) {
	state := s.State()
	return state.Session, state.Authenticated()
}

// Subscribe registers fn for state changes. fn is called with the current
// state right away and then after every transition, in order. fn must not
// call Subscribe or the returned unsubscribe function.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	s.notifyMu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	fn(s.State())
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.notifyMu.Lock()
			defer s.notifyMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Restore silently re-validates an existing provider session. Every failure
// lands in StateUnauthenticated; the error is returned for logging only.
// Identities that fail authorization are signed out at the provider.
func (s *Store) Restore(ctx context.Context) error {
	s.transition.Lock()
	defer s.transition.Unlock()

	if s.State().Kind != StateLoading {
		s.publish(State{Kind: StateLoading})
	}

	identity, err := s.provider.CurrentIdentity(ctx)
	if err != nil {
		s.logger.Error("session restore failed to read provider identity", "error", err)
		s.publish(State{Kind: StateUnauthenticated})
		s.record(ctx, ActivityEventRestoreFailure, nil, "", map[string]any{"error": err.Error()})
		return err
	}

	if identity == nil {
		s.publish(State{Kind: StateUnauthenticated})
		return nil
	}

	session, err := s.resolveOrSignOut(ctx, identity)
	if err != nil {
		s.logger.Info("session restore did not authorize identity", "uid", identity.UID, "error", err)
		s.record(ctx, ActivityEventRestoreFailure, nil, identity.Email, map[string]any{
			"uid":   identity.UID,
			"error": err.Error(),
		})
		return err
	}

	s.record(ctx, ActivityEventRestoreSuccess, session, "", nil)
	return nil
}

// Login verifies the credentials and resolves the identity. It runs to
// completion even if ctx is cancelled. On authorization failure the provider
// session is signed out before Login returns.
func (s *Store) Login(ctx context.Context, email, password string) (*AuthSession, error) {
	ctx = context.WithoutCancel(ctx)

	s.transition.Lock()
	defer s.transition.Unlock()

	identity, err := s.provider.Verify(ctx, email, password)
	if err == nil && identity == nil {
		err = NewCredentialError("", nil)
	}
	if err != nil {
		s.metrics.LoginAttempt("credential_error")
		s.record(ctx, ActivityEventLoginFailure, nil, email, map[string]any{"error": err.Error()})
		return nil, err
	}

	session, err := s.resolveOrSignOut(ctx, identity)
	if err != nil {
		s.metrics.LoginAttempt(loginResult(err))
		s.record(ctx, ActivityEventLoginFailure, nil, email, map[string]any{
			"uid":   identity.UID,
			"error": err.Error(),
		})
		return nil, err
	}

	s.metrics.LoginAttempt("success")
	s.record(ctx, ActivityEventLoginSuccess, session, "", nil)
	return session, nil
}

// Logout signs out at the provider and always clears the held session, even
// when the provider sign out fails. The provider error is still returned.
func (s *Store) Logout(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	s.transition.Lock()
	defer s.transition.Unlock()

	previous := s.State().Session

	err := s.provider.SignOut(ctx)
	if err != nil {
		s.logger.Error("provider sign out failed during logout", "error", err)
	}

	s.publish(State{Kind: StateUnauthenticated})

	meta := map[string]any{}
	if err != nil {
		meta["error"] = err.Error()
	}
	s.record(ctx, ActivityEventLogout, previous, "", meta)

	return err
}

// SendPasswordReset delegates to the provider. It does not touch the state.
func (s *Store) SendPasswordReset(ctx context.Context, email string) error {
	ctx = context.WithoutCancel(ctx)

	email = strings.TrimSpace(email)
	if email == "" {
		return NewValidationError("email is required", map[string]string{
			"email": "cannot be blank",
		})
	}

	if err := s.provider.SendPasswordReset(ctx, email); err != nil {
		s.logger.Error("password reset request failed", "error", err)
		return err
	}

	s.record(ctx, ActivityEventPasswordResetRequested, nil, email, nil)
	return nil
}

// Watch reconciles the store with provider token changes. Each notification
// re-reads the provider's current identity and re-resolves only when it no
// longer matches the held session. The returned stop function waits for
// pending reconciliations.
func (s *Store) Watch(observer TokenObserver) (stop func()) {
	if observer == nil {
		return func() {}
	}

	unsubscribe := observer.OnTokenChange(func(*IdentityAssertion) {
		s.watchers.Add(1)
		go func() {
			defer s.watchers.Done()
			s.reconcile(context.Background())
		}()
	})

	return func() {
		unsubscribe()
		s.watchers.Wait()
	}
}

func (s *Store) reconcile(ctx context.Context) {
	s.transition.Lock()
	defer s.transition.Unlock()

	current := s.State()
	if current.Loading() {
		return
	}

	identity, err := s.provider.CurrentIdentity(ctx)
	if err != nil {
		s.logger.Error("token change reconcile failed to read provider identity", "error", err)
		return
	}

	if identity == nil {
		if current.Authenticated() {
			s.publish(State{Kind: StateUnauthenticated})
		}
		return
	}

	if current.Authenticated() &&
		current.Session.UID() == identity.UID &&
		current.Session.Token() == identity.Token {
		return
	}

	if _, err := s.resolveOrSignOut(ctx, identity); err != nil {
		s.logger.Info("token change reconcile did not authorize identity", "uid", identity.UID, "error", err)
	}
}

// resolveOrSignOut must be called with the transition lock held.
func (s *Store) resolveOrSignOut(ctx context.Context, identity *IdentityAssertion) (*AuthSession, error) {
	session, err := s.resolver.Resolve(ctx, identity).Result()
	if err != nil {
		if signOutErr := s.provider.SignOut(ctx); signOutErr != nil {
			s.logger.Error("compensating provider sign out failed", "uid", identity.UID, "error", signOutErr)
		}
		s.publish(State{Kind: StateUnauthenticated})
		return nil, err
	}

	s.publish(State{Kind: StateAuthenticated, Session: session})
	return session, nil
}

func (s *Store) publish(state State) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	s.metrics.StateTransition(state.Kind)

	for _, sub := range s.subs {
		sub.fn(state)
	}
}

func (s *Store) record(ctx context.Context, eventType ActivityEventType, session *AuthSession, email string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Email:      email,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}
	if session != nil {
		user := session.User()
		event.UID = user.UID
		event.Email = user.Email
		event.Role = user.Role
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error", "error", err)
	}
}

func loginResult(err error) string {
	switch {
	case IsNotAuthorized(err):
		return "not_authorized"
	case IsRegistryUnavailable(err):
		return "registry_unavailable"
	default:
		return "error"
	}
}
