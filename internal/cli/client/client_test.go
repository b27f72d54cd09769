package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub-dev/schoolhub/internal/cli/auth"
	"github.com/schoolhub-dev/schoolhub/internal/config"
	"github.com/schoolhub-dev/schoolhub/internal/roles"
	"github.com/schoolhub-dev/schoolhub/internal/server"
	"github.com/schoolhub-dev/schoolhub/internal/session"
	"github.com/schoolhub-dev/schoolhub/internal/testutil"
)

// memCache is an in-memory session cache for testing
type memCache struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func newMemCache() *memCache {
	return &memCache{sessions: make(map[string]*session.Session)}
}

func (m *memCache) SaveSession(serverURL string, sess *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[serverURL] = sess
	return nil
}

func (m *memCache) LoadSession(serverURL string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[serverURL]
	if !ok {
		return nil, auth.ErrNoSession
	}
	return sess, nil
}

func (m *memCache) DeleteSession(serverURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, serverURL)
	return nil
}

// newBackend starts a real schoolhub server on an in-memory database
func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(newBackendHandler(t))
	t.Cleanup(ts.Close)
	return ts
}

func newBackendHandler(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			AllowedOrigins: []string{"http://localhost:5173"},
			PublicBaseURL:  "http://files.test",
		},
		Auth: config.AuthConfig{
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
			AdminEmails:     []string{"owner@example.com"},
		},
		Storage: config.StorageConfig{Root: t.TempDir()},
	}
	s, err := server.NewWithDB(cfg, testutil.NewDB(t), nil, zerolog.Nop(), "test")
	require.NoError(t, err)
	return s.Handler()
}

func newTestClient(t *testing.T, baseURL string, cache auth.SessionCache) *Client {
	t.Helper()
	c := New(baseURL, cache, zerolog.Nop())
	t.Cleanup(c.Close)
	return c
}

// setupAdmin creates the first admin and returns a client signed in as them
func setupAdmin(t *testing.T, baseURL string) *Client {
	t.Helper()
	c := newTestClient(t, baseURL, nil)
	_, err := c.Setup(context.Background(), SetupRequest{
		Email: "head@example.com", Password: "password123", Name: "Head Teacher",
	})
	require.NoError(t, err)
	return c
}

func collectEvents(c *Client) (func() []session.EventKind, session.Subscription) {
	var mu sync.Mutex
	var kinds []session.EventKind
	sub := c.OnAuthStateChange(func(ev session.AuthEvent) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, ev.Kind)
	})
	return func() []session.EventKind {
		mu.Lock()
		defer mu.Unlock()
		return append([]session.EventKind(nil), kinds...)
	}, sub
}

func TestSignInRefreshSignOut(t *testing.T) {
	backend := newBackend(t)
	setupAdmin(t, backend.URL)

	cache := newMemCache()
	c := newTestClient(t, backend.URL, cache)
	events, sub := collectEvents(c)
	defer sub.Unsubscribe()

	_, err := c.SignInWithPassword(context.Background(), "head@example.com", "wrong-password")
	authErr, ok := session.AsAuthError(err)
	require.True(t, ok, "expected AuthError, got %v", err)
	assert.Equal(t, "Invalid login credentials", authErr.Message)
	assert.Equal(t, http.StatusBadRequest, authErr.Status)

	sess, err := c.SignInWithPassword(context.Background(), "head@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "head@example.com", sess.User.Email)
	assert.True(t, sess.ExpiresAt.After(time.Now()))

	cached, err := cache.LoadSession(backend.URL)
	require.NoError(t, err)
	assert.Equal(t, sess.AccessToken, cached.AccessToken)

	refreshed, err := c.RefreshSession(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, sess.RefreshToken, refreshed.RefreshToken)

	user, err := c.GetUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Head Teacher", user.Name)

	require.NoError(t, c.SignOut(context.Background()))
	_, err = cache.LoadSession(backend.URL)
	assert.ErrorIs(t, err, auth.ErrNoSession)

	current, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)

	want := []session.EventKind{
		session.EventInitialSession,
		session.EventSignedIn,
		session.EventTokenRefreshed,
		session.EventSignedOut,
	}
	assert.Eventually(t, func() bool { return len(events()) == len(want) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, events())
}

func TestRejectedRefreshSignsOut(t *testing.T) {
	backend := newBackend(t)
	c := setupAdmin(t, backend.URL)

	stale, err := c.GetSession(context.Background())
	require.NoError(t, err)
	_, err = c.RefreshSession(context.Background())
	require.NoError(t, err)

	// Reusing a rotated refresh token is rejected
	c.setSession(nil, stale)
	_, err = c.RefreshSession(context.Background())
	_, ok := session.AsAuthError(err)
	require.True(t, ok, "expected AuthError, got %v", err)

	current, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)

	_, err = c.RefreshSession(context.Background())
	authErr, ok := session.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, "Auth session missing!", authErr.Message)
}

func TestRefreshFinishingAfterSignOutIsDiscarded(t *testing.T) {
	handler := newBackendHandler(t)

	// Refresh responses are held back until release is closed
	var hold atomic.Bool
	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !hold.Load() || r.URL.Query().Get("grant_type") != "refresh_token" {
			handler.ServeHTTP(w, r)
			return
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		arrived <- struct{}{}
		<-release
		for k, v := range rec.Header() {
			w.Header()[k] = v
		}
		w.WriteHeader(rec.Code)
		w.Write(rec.Body.Bytes())
	}))
	t.Cleanup(ts.Close)

	setupAdmin(t, ts.URL)
	ctx := context.Background()

	cache := newMemCache()
	c := newTestClient(t, ts.URL, cache)
	events, sub := collectEvents(c)
	defer sub.Unsubscribe()

	store := session.NewStore(c, roles.NewResolver(roles.NewAllowList(), c, zerolog.Nop()), nil, zerolog.Nop())
	defer store.Dispose()
	store.Init(ctx)

	require.NoError(t, store.SignIn(ctx, "head@example.com", "password123"))
	require.True(t, store.Snapshot().IsAdmin)

	hold.Store(true)
	refreshed := make(chan struct{})
	go func() {
		defer close(refreshed)
		store.RefreshSession(ctx)
	}()

	<-arrived
	require.NoError(t, store.SignOut(ctx))
	close(release)
	<-refreshed

	assert.Never(t, func() bool {
		st := store.Snapshot()
		return st.User != nil || st.IsAdmin
	}, 200*time.Millisecond, 10*time.Millisecond)

	_, err := cache.LoadSession(ts.URL)
	assert.ErrorIs(t, err, auth.ErrNoSession)

	current, err := c.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	kinds := events()
	require.NotEmpty(t, kinds)
	assert.Equal(t, session.EventSignedOut, kinds[len(kinds)-1])
	assert.NotContains(t, kinds, session.EventTokenRefreshed)
}

func TestStaleGenerationDoesNotReplaceSession(t *testing.T) {
	backend := newBackend(t)
	c := setupAdmin(t, backend.URL)

	_, gen := c.snapshot()
	assert.True(t, c.setSession(&gen, nil))
	assert.False(t, c.setSession(&gen, &session.Session{AccessToken: "late"}), "stale generation must not replace the session")
	assert.Nil(t, c.cachedSession())
}

func TestGetSessionRefreshesNearExpiry(t *testing.T) {
	backend := newBackend(t)
	c := setupAdmin(t, backend.URL)

	before, err := c.GetSession(context.Background())
	require.NoError(t, err)

	c.now = func() time.Time { return before.ExpiresAt.Add(-10 * time.Second) }

	after, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, before.RefreshToken, after.RefreshToken)
}

func TestSessionIsRestoredFromCache(t *testing.T) {
	backend := newBackend(t)
	cache := newMemCache()

	first := newTestClient(t, backend.URL, cache)
	_, err := first.Setup(context.Background(), SetupRequest{
		Email: "head@example.com", Password: "password123", Name: "Head Teacher",
	})
	require.NoError(t, err)

	second := newTestClient(t, backend.URL, cache)
	sess, err := second.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "head@example.com", sess.User.Email)
}

func TestProfileRole(t *testing.T) {
	backend := newBackend(t)
	c := setupAdmin(t, backend.URL)

	sess, err := c.GetSession(context.Background())
	require.NoError(t, err)

	role, found, err := c.ProfileRole(context.Background(), sess.User.ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "admin", role)

	_, found, err = c.ProfileRole(context.Background(), "01UNKNOWNUSER")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreResolvesAdminThroughBackend(t *testing.T) {
	backend := newBackend(t)
	admin := setupAdmin(t, backend.URL)

	_, err := admin.CreateUser(context.Background(), CreateUserRequest{
		Email: "viewer@example.com", Name: "Viewer", Password: "password123", Role: "viewer",
	})
	require.NoError(t, err)
	_, err = admin.CreateUser(context.Background(), CreateUserRequest{
		Email: "Owner@Example.com", Name: "Owner", Password: "password123", Role: "viewer",
	})
	require.NoError(t, err)

	tests := []struct {
		email string
		want  bool
	}{
		{"head@example.com", true},   // profile role
		{"viewer@example.com", false}, // no admin anywhere
		{"owner@example.com", true},   // allow-list
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			c := newTestClient(t, backend.URL, nil)
			resolver := roles.NewResolver(roles.NewAllowList("owner@example.com"), c, zerolog.Nop())
			store := session.NewStore(c, resolver, nil, zerolog.Nop())
			defer store.Dispose()
			store.Init(context.Background())

			require.NoError(t, store.SignIn(context.Background(), tt.email, "password123"))
			assert.Equal(t, tt.want, store.Snapshot().IsAdmin)
		})
	}
}

func TestAdminContent(t *testing.T) {
	backend := newBackend(t)
	c := setupAdmin(t, backend.URL)
	ctx := context.Background()

	staff, err := c.CreateStaff(ctx, NewStaff{Name: "Ravi", Position: "Principal", IsDirector: true})
	require.NoError(t, err)

	photo := filepath.Join(t.TempDir(), "ravi.jpg")
	require.NoError(t, os.WriteFile(photo, []byte("jpeg"), 0644))
	url, err := c.UploadStaffPhoto(ctx, staff.ID, photo)
	require.NoError(t, err)
	assert.Contains(t, url, "/storage/v1/object/public/staff-photos/")

	list, err := c.ListStaff(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].PhotoURL)
	assert.Equal(t, url, *list[0].PhotoURL)

	article, err := c.CreateNews(ctx, NewNews{Title: "Results", Content: "All passed"})
	require.NoError(t, err)
	assert.False(t, article.IsPublished)

	article, err = c.SetNewsPublished(ctx, article.ID, true)
	require.NoError(t, err)
	assert.True(t, article.IsPublished)

	_, err = c.CreateEvent(ctx, NewEvent{Title: "Sports Day", EventDate: time.Now().AddDate(0, 0, 3).Format("2006-01-02")})
	require.NoError(t, err)

	stats, err := c.Dashboard(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Staff)
	assert.EqualValues(t, 1, stats.News)
	assert.EqualValues(t, 1, stats.Events)

	updates, err := c.LatestUpdates(ctx)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "Sports Day", updates[0].Title)

	require.NoError(t, c.DeleteStaff(ctx, staff.ID))
	err = c.DeleteStaff(ctx, staff.ID)
	assert.True(t, IsNotFound(err), "expected 404, got %v", err)
}

func TestAdminCallsRequireSession(t *testing.T) {
	backend := newBackend(t)
	c := newTestClient(t, backend.URL, nil)

	_, err := c.Dashboard(context.Background())
	assert.True(t, errors.Is(err, auth.ErrNoSession))
}
