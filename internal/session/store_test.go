package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub-dev/schoolhub/internal/notify"
	"github.com/schoolhub-dev/schoolhub/internal/roles"
)

type fakeProvider struct {
	mu        sync.Mutex
	current   *Session
	getErr    error
	signIn    func(email, password string) (*Session, error)
	signOut   error
	refresh   func(ctx context.Context) (*Session, error)
	callbacks map[int]func(AuthEvent)
	nextSub   int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{callbacks: make(map[int]func(AuthEvent))}
}

func (p *fakeProvider) GetSession(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.getErr
}

func (p *fakeProvider) OnAuthStateChange(cb func(AuthEvent)) Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.callbacks[id] = cb
	return SubscriptionFunc(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.callbacks, id)
	})
}

func (p *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	return p.signIn(email, password)
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	return p.signOut
}

func (p *fakeProvider) RefreshSession(ctx context.Context) (*Session, error) {
	return p.refresh(ctx)
}

// emit delivers an event to every subscriber synchronously
func (p *fakeProvider) emit(kind EventKind, sess *Session) {
	p.mu.Lock()
	cbs := make([]func(AuthEvent), 0, len(p.callbacks))
	for _, cb := range p.callbacks {
		cbs = append(cbs, cb)
	}
	p.mu.Unlock()
	for _, cb := range cbs {
		cb(AuthEvent{Kind: kind, Session: sess})
	}
}

func (p *fakeProvider) subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.callbacks)
}

// fakeProfiles answers profile role lookups through fn
type fakeProfiles struct {
	calls atomic.Int32
	fn    func(ctx context.Context, call int, userID string) (string, bool, error)
}

func (f *fakeProfiles) ProfileRole(ctx context.Context, userID string) (string, bool, error) {
	call := int(f.calls.Add(1))
	return f.fn(ctx, call, userID)
}

func staticProfiles(rolesByUser map[string]string) *fakeProfiles {
	return &fakeProfiles{fn: func(_ context.Context, _ int, userID string) (string, bool, error) {
		role, ok := rolesByUser[userID]
		return role, ok, nil
	}}
}

func newSession(userID, email, token string) *Session {
	return &Session{
		AccessToken:  token,
		RefreshToken: "refresh-" + token,
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         User{ID: userID, Email: email},
	}
}

func newTestStore(t *testing.T, p *fakeProvider, profiles roles.ProfileLookup) (*Store, *notify.Recorder) {
	t.Helper()
	resolver := roles.NewResolver(roles.NewAllowList("admin@example.com"), profiles, zerolog.Nop())
	rec := notify.NewRecorder()
	s := NewStore(p, resolver, rec, zerolog.Nop())
	t.Cleanup(s.Dispose)
	return s, rec
}

func assertInvariant(t *testing.T, st State) {
	t.Helper()
	if st.User == nil {
		assert.False(t, st.IsAdmin, "admin flag set without a user")
		assert.Nil(t, st.Session)
	}
}

func TestInitialStateIsLoading(t *testing.T) {
	s, _ := newTestStore(t, newFakeProvider(), nil)

	st := s.Snapshot()
	assert.True(t, st.Loading)
	assert.Nil(t, st.User)
	assert.False(t, st.IsAdmin)
}

func TestInitWithoutSession(t *testing.T) {
	p := newFakeProvider()
	s, _ := newTestStore(t, p, staticProfiles(nil))

	s.Init(context.Background())

	require.NoError(t, s.WaitReady(context.Background()))
	st := s.Snapshot()
	assert.False(t, st.Loading)
	assert.Nil(t, st.User)
	assert.False(t, st.IsAdmin)
	assert.Equal(t, 1, p.subscribers())
}

func TestInitAllowListIsCaseInsensitive(t *testing.T) {
	p := newFakeProvider()
	p.current = newSession("u1", "Admin@Example.com", "t1")
	profiles := staticProfiles(nil)
	s, _ := newTestStore(t, p, profiles)

	s.Init(context.Background())

	st := s.Snapshot()
	assert.True(t, st.IsAdmin)
	assert.Equal(t, "u1", st.User.ID)
	assert.Zero(t, profiles.calls.Load(), "allow-listed users need no profile lookup")
}

func TestInitErrorStillFinishesLoading(t *testing.T) {
	p := newFakeProvider()
	p.getErr = errors.New("network unreachable")
	s, _ := newTestStore(t, p, staticProfiles(nil))

	s.Init(context.Background())

	st := s.Snapshot()
	assert.False(t, st.Loading)
	assert.Nil(t, st.User)
}

func TestInitTwiceSubscribesOnce(t *testing.T) {
	p := newFakeProvider()
	s, _ := newTestStore(t, p, staticProfiles(nil))

	s.Init(context.Background())
	s.Init(context.Background())

	assert.Equal(t, 1, p.subscribers())
}

func TestProfileLookupErrorFallsBackToMetadata(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  bool
	}{
		{"metadata admin", []string{"editor", "admin"}, true},
		{"metadata without admin", []string{"editor"}, false},
		{"no metadata", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider()
			sess := newSession("u1", "teacher@example.com", "t1")
			sess.User.Roles = tt.roles
			p.current = sess
			failing := &fakeProfiles{fn: func(context.Context, int, string) (string, bool, error) {
				return "", false, errors.New(`relation "profiles" does not exist`)
			}}
			s, _ := newTestStore(t, p, failing)

			s.Init(context.Background())

			assert.Equal(t, tt.want, s.Snapshot().IsAdmin)
		})
	}
}

func TestEventsApplyInArrivalOrder(t *testing.T) {
	p := newFakeProvider()
	profiles := staticProfiles(map[string]string{"admin": "admin", "viewer": "viewer"})
	s, _ := newTestStore(t, p, profiles)
	s.Init(context.Background())

	sessions := []*Session{
		nil,
		newSession("admin", "a@example.com", "ta"),
		newSession("viewer", "v@example.com", "tv"),
		newSession("listed", "ADMIN@example.com", "tl"),
		newSession("nobody", "n@example.com", "tn"),
	}
	wantAdmin := map[string]bool{"admin": true, "listed": true}

	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		var last *Session
		for i := 0; i < 1+rng.Intn(6); i++ {
			last = sessions[rng.Intn(len(sessions))]
			kind := EventSignedIn
			if last == nil {
				kind = EventSignedOut
			}
			p.emit(kind, last)
			assertInvariant(t, s.Snapshot())
		}

		st := s.Snapshot()
		if last == nil {
			require.Nil(t, st.User, "round %d", round)
			require.False(t, st.IsAdmin, "round %d", round)
			continue
		}
		require.NotNil(t, st.User, "round %d", round)
		require.Equal(t, last.User.ID, st.User.ID, "round %d", round)
		require.Equal(t, wantAdmin[last.User.ID], st.IsAdmin, "round %d user %s", round, last.User.ID)
	}
}

func TestSignInFailureReturnsAuthError(t *testing.T) {
	p := newFakeProvider()
	p.signIn = func(string, string) (*Session, error) {
		return nil, &AuthError{Status: 400, Message: "Invalid login credentials"}
	}
	s, rec := newTestStore(t, p, staticProfiles(nil))
	s.Init(context.Background())

	err := s.SignIn(context.Background(), "a@example.com", "wrong")

	authErr, ok := AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, "Invalid login credentials", authErr.Message)
	assert.Equal(t, 1, rec.Count(notify.LevelError, "Invalid login credentials"))
	assert.Nil(t, s.Snapshot().User)
}

func TestSignInResolvesAdminBeforeReturning(t *testing.T) {
	p := newFakeProvider()
	sess := newSession("u1", "head@example.com", "t1")
	p.signIn = func(email, password string) (*Session, error) {
		// The provider announces the sign-in before the call returns
		p.emit(EventSignedIn, sess)
		return sess, nil
	}
	s, rec := newTestStore(t, p, staticProfiles(map[string]string{"u1": "admin"}))
	s.Init(context.Background())

	require.NoError(t, s.SignIn(context.Background(), "head@example.com", "secret"))

	st := s.Snapshot()
	assert.True(t, st.IsAdmin)
	assert.Equal(t, "u1", st.User.ID)
	assert.Equal(t, 1, rec.Count(notify.LevelSuccess, MsgSignedIn))
}

func TestSignInWithoutSessionFails(t *testing.T) {
	p := newFakeProvider()
	p.signIn = func(string, string) (*Session, error) { return nil, nil }
	s, _ := newTestStore(t, p, staticProfiles(nil))

	assert.ErrorIs(t, s.SignIn(context.Background(), "a@example.com", "pw"), ErrNoUser)
}

func TestSignOutClearsWithoutWaitingForNotification(t *testing.T) {
	p := newFakeProvider()
	p.current = newSession("u1", "admin@example.com", "t1")
	s, rec := newTestStore(t, p, staticProfiles(nil))
	s.Init(context.Background())
	require.True(t, s.Snapshot().IsAdmin)

	require.NoError(t, s.SignOut(context.Background()))

	st := s.Snapshot()
	assert.Nil(t, st.User)
	assert.Nil(t, st.Session)
	assert.False(t, st.IsAdmin)
	assert.Equal(t, 1, rec.Count(notify.LevelSuccess, MsgSignedOut))
}

func TestSignOutFailureIsReturned(t *testing.T) {
	p := newFakeProvider()
	p.current = newSession("u1", "admin@example.com", "t1")
	p.signOut = errors.New("network unreachable")
	s, rec := newTestStore(t, p, staticProfiles(nil))
	s.Init(context.Background())

	err := s.SignOut(context.Background())

	assert.EqualError(t, err, "network unreachable")
	assert.Equal(t, 1, rec.Count(notify.LevelError, "network unreachable"))
	assert.NotNil(t, s.Snapshot().User, "a failed sign-out leaves the session in place")
}

func TestSlowRefreshDoesNotResurrectSignedOutUser(t *testing.T) {
	p := newFakeProvider()
	sess := newSession("u1", "admin@example.com", "t1")
	p.current = sess

	started := make(chan struct{})
	release := make(chan struct{})
	p.refresh = func(ctx context.Context) (*Session, error) {
		close(started)
		<-release
		return newSession("u1", "admin@example.com", "t2"), nil
	}
	s, _ := newTestStore(t, p, staticProfiles(nil))
	s.Init(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.RefreshSession(context.Background())
	}()
	<-started

	require.NoError(t, s.SignOut(context.Background()))
	close(release)
	<-done

	st := s.Snapshot()
	assert.Nil(t, st.User)
	assert.False(t, st.IsAdmin)
}

func TestSlowAdminResolutionDoesNotOverwriteNewer(t *testing.T) {
	p := newFakeProvider()
	p.refresh = func(context.Context) (*Session, error) {
		return newSession("u1", "teacher@example.com", "t1"), nil
	}

	firstLookup := make(chan struct{})
	release := make(chan struct{})
	profiles := &fakeProfiles{fn: func(_ context.Context, call int, _ string) (string, bool, error) {
		if call == 1 {
			close(firstLookup)
			<-release
			return "admin", true, nil
		}
		return "viewer", true, nil
	}}
	s, _ := newTestStore(t, p, profiles)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.RefreshSession(context.Background())
	}()
	<-firstLookup

	// A newer notification for the same user resolves first
	p.emit(EventTokenRefreshed, newSession("u1", "teacher@example.com", "t2"))
	require.False(t, s.Snapshot().IsAdmin)

	close(release)
	<-done

	st := s.Snapshot()
	assert.False(t, st.IsAdmin)
	assert.Equal(t, "t2", st.Session.AccessToken)
}

func TestRefreshFailureDegradesToSignedOut(t *testing.T) {
	p := newFakeProvider()
	p.current = newSession("u1", "admin@example.com", "t1")
	p.refresh = func(context.Context) (*Session, error) {
		return nil, &AuthError{Status: 400, Message: "Session expired"}
	}
	s, rec := newTestStore(t, p, staticProfiles(nil))
	s.Init(context.Background())
	require.True(t, s.Snapshot().IsAdmin)

	s.RefreshSession(context.Background())

	st := s.Snapshot()
	assert.Nil(t, st.User)
	assert.False(t, st.IsAdmin)
	assert.Empty(t, rec.Messages(), "refresh failures are not shown to the user")
}

func TestRefreshDoesNotTouchLoading(t *testing.T) {
	p := newFakeProvider()
	p.refresh = func(context.Context) (*Session, error) {
		return newSession("u1", "admin@example.com", "t1"), nil
	}
	s, _ := newTestStore(t, p, staticProfiles(nil))

	s.RefreshSession(context.Background())

	st := s.Snapshot()
	assert.True(t, st.Loading)
	assert.True(t, st.IsAdmin)
}

func TestDisposeStopsUpdates(t *testing.T) {
	p := newFakeProvider()
	s, _ := newTestStore(t, p, staticProfiles(nil))
	s.Init(context.Background())

	var captured func(AuthEvent)
	p.mu.Lock()
	for _, cb := range p.callbacks {
		captured = cb
	}
	p.mu.Unlock()

	ch, _ := s.Watch()
	s.Dispose()

	assert.Zero(t, p.subscribers())
	captured(AuthEvent{Kind: EventSignedIn, Session: newSession("u1", "admin@example.com", "t1")})
	assert.Nil(t, s.Snapshot().User)

	for range ch {
	}
}

func TestWatchDeliversLatestState(t *testing.T) {
	p := newFakeProvider()
	s, _ := newTestStore(t, p, staticProfiles(nil))

	ch, cancel := s.Watch()
	defer cancel()

	first := <-ch
	assert.True(t, first.Loading)

	s.Init(context.Background())
	for i := 0; i < 3; i++ {
		p.emit(EventSignedIn, newSession(fmt.Sprintf("u%d", i), "admin@example.com", fmt.Sprintf("t%d", i)))
	}

	latest := <-ch
	assert.False(t, latest.Loading)
	assert.Equal(t, "u2", latest.User.ID)
	assert.True(t, latest.IsAdmin)

	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sess := &Session{ExpiresAt: now.Add(time.Minute)}

	assert.False(t, sess.Expired(now, 0))
	assert.True(t, sess.Expired(now, time.Minute))
	assert.True(t, sess.Expired(now.Add(2*time.Minute), 0))
}
