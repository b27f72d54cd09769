package login

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub-dev/schoolhub/internal/nav"
	"github.com/schoolhub-dev/schoolhub/internal/notify"
	"github.com/schoolhub-dev/schoolhub/internal/session"
)

type fakeStore struct {
	mu     sync.Mutex
	state  session.State
	err    error
	calls  int
	during func()
}

func (f *fakeStore) Snapshot() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeStore) SignIn(ctx context.Context, email, password string) error {
	f.mu.Lock()
	f.calls++
	during := f.during
	f.mu.Unlock()
	if during != nil {
		during()
	}
	return f.err
}

func newTestFlow(store Store, delay time.Duration) (*Flow, *nav.History, *notify.Recorder) {
	history := nav.NewHistory(nav.LoginPath)
	rec := notify.NewRecorder()
	return New(store, history, rec, zerolog.Nop(), WithRedirectDelay(delay)), history, rec
}

func TestMountRedirectsSignedInAdmin(t *testing.T) {
	tests := []struct {
		name  string
		state session.State
		want  bool
	}{
		{"admin", session.State{User: &session.User{ID: "u1"}, IsAdmin: true}, true},
		{"non-admin", session.State{User: &session.User{ID: "u1"}}, false},
		{"visitor", session.State{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, history, _ := newTestFlow(&fakeStore{state: tt.state}, 0)

			assert.Equal(t, tt.want, f.Mount())
			if tt.want {
				assert.Equal(t, nav.AdminRoot, history.Current())
			} else {
				assert.Equal(t, nav.LoginPath, history.Current())
			}
		})
	}
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		want     string
	}{
		{"blank email", "   ", "secret", MsgEmailRequired},
		{"empty password", "a@example.com", "", MsgPasswordRequired},
		{"both blank", "", "", MsgEmailRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			f, _, rec := newTestFlow(store, 0)

			res := f.Submit(context.Background(), tt.email, tt.password)

			assert.False(t, res.OK)
			assert.Equal(t, tt.want, res.Error)
			assert.Zero(t, store.calls, "the backend is not called for blank input")
			assert.Empty(t, rec.Messages())
			assert.Equal(t, FormState{Error: tt.want}, f.State())
		})
	}
}

func TestSubmitShowsBackendMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"auth error", &session.AuthError{Status: 400, Message: "Invalid login credentials"}, "Invalid login credentials"},
		{"auth error without message", &session.AuthError{Status: 400}, MsgSignInFallback},
		{"network error", errors.New("dial tcp: connection refused"), MsgUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, history, rec := newTestFlow(&fakeStore{err: tt.err}, 0)

			res := f.Submit(context.Background(), "a@example.com", "wrong")

			assert.False(t, res.OK)
			assert.Nil(t, res.Redirected)
			assert.Equal(t, tt.want, res.Error)
			assert.Equal(t, 1, rec.Count(notify.LevelError, MsgLoginFailed))
			assert.Equal(t, nav.LoginPath, history.Current())
			assert.False(t, f.State().Loading)
		})
	}
}

func TestSubmitSuccessRedirectsAfterDelay(t *testing.T) {
	store := &fakeStore{}
	f, history, rec := newTestFlow(store, 30*time.Millisecond)

	var loadingDuringSignIn bool
	store.during = func() { loadingDuringSignIn = f.State().Loading }

	start := time.Now()
	res := f.Submit(context.Background(), "admin@example.com", "secret")

	require.True(t, res.OK)
	assert.True(t, loadingDuringSignIn)
	assert.False(t, f.State().Loading)
	assert.Equal(t, 1, rec.Count(notify.LevelSuccess, MsgWelcome))
	assert.Equal(t, nav.LoginPath, history.Current(), "navigation waits for the delay")

	select {
	case <-res.Redirected:
	case <-time.After(time.Second):
		t.Fatal("redirect did not happen")
	}
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, nav.AdminRoot, history.Current())
}

func TestUnmountCancelsRedirect(t *testing.T) {
	f, history, _ := newTestFlow(&fakeStore{}, 20*time.Millisecond)

	res := f.Submit(context.Background(), "admin@example.com", "secret")
	require.True(t, res.OK)
	f.Unmount()

	select {
	case <-res.Redirected:
	case <-time.After(time.Second):
		t.Fatal("Redirected not closed after Unmount")
	}
	assert.False(t, res.Navigated())

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, history.Redirects())
	assert.False(t, res.Navigated())
}

func TestSecondSubmitReplacesPendingRedirect(t *testing.T) {
	f, history, _ := newTestFlow(&fakeStore{}, 30*time.Millisecond)
	defer f.Unmount()

	first := f.Submit(context.Background(), "admin@example.com", "secret")
	require.True(t, first.OK)
	second := f.Submit(context.Background(), "admin@example.com", "secret")
	require.True(t, second.OK)

	select {
	case <-first.Redirected:
	case <-time.After(time.Second):
		t.Fatal("first Redirected not closed after a second submit")
	}
	assert.False(t, first.Navigated())

	select {
	case <-second.Redirected:
	case <-time.After(time.Second):
		t.Fatal("redirect did not happen")
	}
	assert.True(t, second.Navigated())
	assert.Equal(t, []string{nav.AdminRoot}, history.Redirects())
}

func TestUnmountAfterRedirectIsNoop(t *testing.T) {
	f, _, _ := newTestFlow(&fakeStore{}, 0)

	res := f.Submit(context.Background(), "admin@example.com", "secret")
	<-res.Redirected
	assert.NotPanics(t, f.Unmount)
	assert.True(t, res.Navigated())
}

func TestSubmitShowsMissingUserError(t *testing.T) {
	f, _, _ := newTestFlow(&fakeStore{err: session.ErrNoUser}, 0)

	res := f.Submit(context.Background(), "a@example.com", "pw")

	assert.False(t, res.OK)
	assert.Equal(t, session.ErrNoUser.Error(), res.Error)
}

func TestFormErrorClearedOnRetry(t *testing.T) {
	store := &fakeStore{err: &session.AuthError{Message: "Invalid login credentials"}}
	f, _, _ := newTestFlow(store, time.Hour)
	defer f.Unmount()

	f.Submit(context.Background(), "a@example.com", "wrong")
	require.Equal(t, "Invalid login credentials", f.State().Error)

	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()

	res := f.Submit(context.Background(), "a@example.com", "right")
	assert.True(t, res.OK)
	assert.Empty(t, f.State().Error)
}
