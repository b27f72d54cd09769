package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/schoolhub-dev/schoolhub/internal/notify"
	"github.com/schoolhub-dev/schoolhub/internal/roles"
)

// AdminResolver decides the admin flag for a user. It must not fail;
// every error degrades to false.
type AdminResolver interface {
	IsAdmin(ctx context.Context, subject roles.Subject) bool
}

// Notification texts
const (
	MsgSignedIn        = "Signed in successfully"
	MsgSignInFailed    = "Failed to sign in"
	MsgSignedOut       = "Signed out successfully"
	MsgSignOutFailed   = "Failed to sign out"
	MsgUnexpectedError = "An unexpected error occurred"
)

// ErrNoUser is returned by SignIn when the provider reports success without a session
var ErrNoUser = errors.New("no user data returned")

// Store is the single writer of the current user, session and admin flag.
//
// Every trigger (initial load, change notification, sign-in, sign-out,
// refresh) takes a sequence number when it starts. A session result is
// applied only if no later trigger has already applied one, and an admin
// result only if it is not older than the last applied admin result and the
// session it was computed for is still current.
type Store struct {
	provider AuthProvider
	admin    AdminResolver
	notifier notify.Notifier
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	issued      uint64
	sessionSeq  uint64
	adminSeq    uint64
	initialized bool
	disposed    bool
	sub         Subscription
	ready       chan struct{}
	watchers    map[uint64]chan State
	nextWatcher uint64
}

// NewStore creates a store in the loading state. Call Init to populate it.
func NewStore(provider AuthProvider, admin AdminResolver, notifier notify.Notifier, logger zerolog.Logger) *Store {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		provider: provider,
		admin:    admin,
		notifier: notifier,
		logger:   logger.With().Str("component", "session").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		state:    State{Loading: true},
		ready:    make(chan struct{}),
		watchers: make(map[uint64]chan State),
	}
}

// Init subscribes to auth changes and loads the current session. Loading is
// cleared when it returns, whatever the outcome. Calling Init more than once
// has no effect.
func (s *Store) Init(ctx context.Context) {
	s.mu.Lock()
	if s.initialized || s.disposed {
		s.mu.Unlock()
		return
	}
	s.initialized = true
	s.mu.Unlock()

	sub := s.provider.OnAuthStateChange(s.handleEvent)
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	s.sub = sub
	s.mu.Unlock()

	seq := s.begin()
	sess, err := s.provider.GetSession(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load current session")
		sess = nil
	}
	if s.applySession(seq, sess) && sess != nil {
		s.resolveAdmin(ctx, seq, sess)
	}
	s.finishLoading()
}

// handleEvent applies a change notification. Events arrive one at a time,
// so they are applied in arrival order.
func (s *Store) handleEvent(ev AuthEvent) {
	seq := s.begin()
	s.logger.Debug().Str("event", string(ev.Kind)).Uint64("seq", seq).Msg("Auth state changed")

	if s.applySession(seq, ev.Session) && ev.Session != nil {
		s.resolveAdmin(s.ctx, seq, ev.Session)
	}
	s.finishLoading()
}

// SignIn signs in with email and password. A failed sign-in returns the
// provider's error (an *AuthError for rejected credentials) and leaves the
// state to the change notification. On success the admin flag is resolved
// before SignIn returns.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	seq := s.begin()

	sess, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Sign in failed")
		s.notifier.Error(messageOr(err, MsgSignInFailed))
		return err
	}
	if sess == nil {
		s.notifier.Error(MsgUnexpectedError)
		return ErrNoUser
	}

	s.applySession(seq, sess)
	s.resolveAdmin(ctx, seq, sess)
	s.notifier.Success(MsgSignedIn)
	return nil
}

// SignOut signs out with the provider, then clears the local state without
// waiting for the change notification. A provider failure is reported to the
// user and returned.
func (s *Store) SignOut(ctx context.Context) error {
	seq := s.begin()

	if err := s.provider.SignOut(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Sign out failed")
		s.notifier.Error(messageOr(err, MsgSignOutFailed))
		return err
	}

	s.applySession(seq, nil)
	s.notifier.Success(MsgSignedOut)
	return nil
}

// RefreshSession asks the provider for a fresh session and re-resolves the
// admin flag. Failures are logged and leave the store signed out; they are
// never returned. The loading flag is not touched.
func (s *Store) RefreshSession(ctx context.Context) {
	seq := s.begin()

	sess, err := s.provider.RefreshSession(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("Session refresh failed")
		sess = nil
	}
	if s.applySession(seq, sess) && sess != nil {
		s.resolveAdmin(ctx, seq, sess)
	}
}

// Snapshot returns the current state
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Watch returns a channel that always holds the most recent state. Slow
// readers skip intermediate states. The channel is closed by cancel or Dispose.
func (s *Store) Watch() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = ch
	ch <- s.state
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if w, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(w)
			}
		})
	}
}

// WaitReady blocks until the store has finished loading
func (s *Store) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispose unsubscribes from the provider and stops applying updates.
// In-flight operations complete without touching the state.
func (s *Store) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	sub := s.sub
	s.sub = nil
	for id, w := range s.watchers {
		delete(s.watchers, id)
		close(w)
	}
	s.mu.Unlock()

	s.cancel()
	if sub != nil {
		sub.Unsubscribe()
	}
}

func (s *Store) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// applySession installs sess (nil means signed out) unless a later trigger
// already applied its result
func (s *Store) applySession(seq uint64, sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed || seq < s.sessionSeq {
		s.logger.Debug().Uint64("seq", seq).Uint64("applied", s.sessionSeq).Msg("Dropping stale session result")
		return false
	}
	s.sessionSeq = seq

	if sess == nil {
		s.state.Session = nil
		s.state.User = nil
		s.state.IsAdmin = false
		s.publishLocked()
		return true
	}

	// A different user starts out as non-admin until resolved
	if s.state.User == nil || s.state.User.ID != sess.User.ID {
		s.state.IsAdmin = false
	}
	sessCopy := *sess
	user := sess.User
	s.state.Session = &sessCopy
	s.state.User = &user
	s.publishLocked()
	return true
}

func (s *Store) resolveAdmin(ctx context.Context, seq uint64, sess *Session) {
	isAdmin := false
	if s.admin != nil {
		isAdmin = s.admin.IsAdmin(ctx, roles.Subject{
			ID:    sess.User.ID,
			Email: sess.User.Email,
			Roles: sess.User.Roles,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed || seq < s.adminSeq {
		return
	}
	current := s.state.Session
	if current == nil || current.AccessToken != sess.AccessToken {
		return
	}
	s.adminSeq = seq
	if s.state.IsAdmin != isAdmin {
		s.state.IsAdmin = isAdmin
		s.publishLocked()
	}
}

func (s *Store) finishLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || !s.state.Loading {
		return
	}
	s.state.Loading = false
	close(s.ready)
	s.publishLocked()
}

// publishLocked hands the current state to every watcher, replacing any
// value the watcher has not read yet
func (s *Store) publishLocked() {
	for _, w := range s.watchers {
		select {
		case <-w:
		default:
		}
		w <- s.state
	}
}

func messageOr(err error, fallback string) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
