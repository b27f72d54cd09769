package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub-dev/schoolhub/internal/cli/auth"
	"github.com/schoolhub-dev/schoolhub/internal/cli/config"
	"github.com/schoolhub-dev/schoolhub/internal/cli/userconfig"
	appconfig "github.com/schoolhub-dev/schoolhub/internal/config"
	"github.com/schoolhub-dev/schoolhub/internal/gate"
	"github.com/schoolhub-dev/schoolhub/internal/login"
	"github.com/schoolhub-dev/schoolhub/internal/notify"
	"github.com/schoolhub-dev/schoolhub/internal/server"
	"github.com/schoolhub-dev/schoolhub/internal/session"
	"github.com/schoolhub-dev/schoolhub/internal/testutil"
)

// memCache is an in-memory session cache standing in for the keyring
type memCache struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
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
	if sess, ok := m.sessions[serverURL]; ok {
		return sess, nil
	}
	return nil, auth.ErrNoSession
}

func (m *memCache) DeleteSession(serverURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, serverURL)
	return nil
}

// testEnv is a running backend plus the dependencies commands share
type testEnv struct {
	server *config.Server
	cache  *memCache
	out    *bytes.Buffer
	notes  *notify.Recorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cfg := &appconfig.Config{
		HTTP: appconfig.HTTPConfig{PublicBaseURL: "http://files.test"},
		Auth: appconfig.AuthConfig{
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
		},
		Storage: appconfig.StorageConfig{Root: t.TempDir()},
	}
	s, err := server.NewWithDB(cfg, testutil.NewDB(t), nil, zerolog.Nop(), "test")
	require.NoError(t, err)

	backend := httptest.NewServer(s.Handler())
	t.Cleanup(backend.Close)

	return &testEnv{
		server: &config.Server{URL: backend.URL, Alias: "test"},
		cache:  &memCache{sessions: make(map[string]*session.Session)},
		out:    &bytes.Buffer{},
		notes:  notify.NewRecorder(),
	}
}

func (e *testEnv) options(extra ...Option) []Option {
	return append([]Option{
		WithServer(e.server),
		WithSessionCache(e.cache),
		WithOutput(e.out),
		WithNotifier(e.notes),
		WithLogger(zerolog.Nop()),
		WithRedirectDelay(time.Millisecond),
		WithPasswordReader(func() (string, error) { return "", errors.New("no terminal") }),
	}, extra...)
}

func run(cmd *cobra.Command, args ...string) error {
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.ExecuteContext(context.Background())
}

// setupAdmin creates head@example.com as the first admin; the env is left signed in
func (e *testEnv) setupAdmin(t *testing.T) {
	t.Helper()
	require.NoError(t, run(NewSetupCmd(e.options()...),
		"--email", "head@example.com", "--name", "Head Teacher", "--password", "password123"))
}

func (e *testEnv) addViewer(t *testing.T, email string) {
	t.Helper()
	require.NoError(t, run(NewUsersCmd(e.options()...),
		"add", email, "--name", "Viewer", "--password", "password123"))
}

func TestSetupLogoutLogin(t *testing.T) {
	env := newTestEnv(t)
	env.setupAdmin(t)
	assert.Equal(t, 1, env.notes.Count(notify.LevelSuccess, "Created administrator head@example.com on test"))

	require.NoError(t, run(NewLogoutCmd(env.options()...)))
	assert.Equal(t, 1, env.notes.Count(notify.LevelSuccess, session.MsgSignedOut))
	_, err := env.cache.LoadSession(env.server.URL)
	assert.ErrorIs(t, err, auth.ErrNoSession)

	env.out.Reset()
	require.NoError(t, run(NewLoginCmd(env.options()...), "--email", "head@example.com", "--password", "password123"))

	assert.Equal(t, 1, env.notes.Count(notify.LevelSuccess, session.MsgSignedIn))
	assert.Equal(t, 1, env.notes.Count(notify.LevelSuccess, login.MsgWelcome))
	assert.Contains(t, env.out.String(), "Signing in to test")
	assert.Contains(t, env.out.String(), "Role: Admin")
	assert.Contains(t, env.out.String(), "Dashboard for test")

	cfg, err := userconfig.Load()
	require.NoError(t, err)
	assert.Equal(t, "head@example.com", cfg.LastEmail)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.setupAdmin(t)
	require.NoError(t, run(NewLogoutCmd(env.options()...)))

	err := run(NewLoginCmd(env.options()...), "--email", "head@example.com", "--password", "wrong-password")
	require.Error(t, err)
	assert.Equal(t, "Invalid login credentials", err.Error())
	assert.Equal(t, 1, env.notes.Count(notify.LevelError, login.MsgLoginFailed))
	assert.NotContains(t, env.out.String(), "Dashboard for")
}

func TestLoginRequiresEmail(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("SCHOOLHUB_EMAIL", "")

	err := run(NewLoginCmd(env.options()...), "--password", "password123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email is required")
}

func TestLoginWhenAlreadySignedIn(t *testing.T) {
	env := newTestEnv(t)
	env.setupAdmin(t)

	require.NoError(t, run(NewLoginCmd(env.options()...)))
	assert.Contains(t, env.out.String(), "Already signed in to test as head@example.com")
	assert.Zero(t, env.notes.Count(notify.LevelSuccess, login.MsgWelcome))
}

func TestAdminCommandWithoutSession(t *testing.T) {
	env := newTestEnv(t)

	err := run(NewStaffCmd(env.options()...), "ls")
	assert.ErrorIs(t, err, auth.ErrNoSession)
	assert.Zero(t, env.notes.Count(notify.LevelWarning, gate.MsgNoAdminPrivileges))
}

func TestViewerIsDenied(t *testing.T) {
	env := newTestEnv(t)
	env.setupAdmin(t)
	env.addViewer(t, "viewer@example.com")
	require.NoError(t, run(NewLogoutCmd(env.options()...)))

	err := run(NewLoginCmd(env.options()...), "--email", "viewer@example.com", "--password", "password123")
	assert.ErrorIs(t, err, ErrAdminRequired)
	assert.Equal(t, 1, env.notes.Count(notify.LevelWarning, gate.MsgNoAdminPrivileges))

	err = run(NewStaffCmd(env.options()...), "ls")
	assert.ErrorIs(t, err, ErrAdminRequired)
	assert.Equal(t, 2, env.notes.Count(notify.LevelWarning, gate.MsgNoAdminPrivileges))

	env.out.Reset()
	require.NoError(t, run(NewWhoamiCmd(env.options()...)))
	assert.Contains(t, env.out.String(), "Role:   Viewer")
}

func TestAllowListGrantsAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.setupAdmin(t)
	env.addViewer(t, "office@example.com")
	require.NoError(t, run(NewLogoutCmd(env.options()...)))

	opts := env.options(WithAdminEmails("Office@Example.com"))
	require.NoError(t, run(NewLoginCmd(opts...), "--email", "office@example.com", "--password", "password123"))

	env.out.Reset()
	require.NoError(t, run(NewStaffCmd(opts...), "ls"))
	assert.Contains(t, env.out.String(), "No staff members found.")
}

func TestStaffCommands(t *testing.T) {
	env := newTestEnv(t)
	env.setupAdmin(t)

	require.NoError(t, run(NewStaffCmd(env.options()...), "add", "Ravi Kumar", "--position", "Principal", "--director"))

	env.out.Reset()
	require.NoError(t, run(NewStaffCmd(env.options()...), "ls"))
	assert.Contains(t, env.out.String(), "Ravi Kumar")
	assert.Contains(t, env.out.String(), "Principal")

	err := run(NewStaffCmd(env.options()...), "add", "No Position")
	assert.Error(t, err)

	err = run(NewStaffCmd(env.options()...), "rm", "01UNKNOWNSTAFF")
	assert.Error(t, err)
}

func TestEventCommands(t *testing.T) {
	env := newTestEnv(t)
	env.setupAdmin(t)

	err := run(NewEventsCmd(env.options()...), "add", "Sports Day", "--date", "03/04/2030")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")

	date := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	require.NoError(t, run(NewEventsCmd(env.options()...), "add", "Sports Day", "--date", date, "--location", "Main ground"))

	env.out.Reset()
	require.NoError(t, run(NewEventsCmd(env.options()...), "ls", "--upcoming"))
	assert.Contains(t, env.out.String(), "Sports Day")
	assert.Contains(t, env.out.String(), "Main ground")

	env.out.Reset()
	require.NoError(t, run(NewDashboardCmd(env.options()...)))
	assert.Contains(t, env.out.String(), "Upcoming:")
	assert.Contains(t, env.out.String(), date)
}

func TestNewsCommands(t *testing.T) {
	env := newTestEnv(t)
	env.setupAdmin(t)

	require.NoError(t, run(NewNewsCmd(env.options()...), "add", "Board Results", "--content", "All **passed**"))

	env.out.Reset()
	require.NoError(t, run(NewNewsCmd(env.options()...), "ls"))
	assert.Contains(t, env.out.String(), "Board Results")
	assert.Contains(t, env.out.String(), "draft")
}

func TestGalleryCategoryInUse(t *testing.T) {
	env := newTestEnv(t)
	env.setupAdmin(t)

	require.NoError(t, run(NewGalleryCmd(env.options()...), "categories", "add", "Sports"))
	messages := env.notes.Messages()
	last := messages[len(messages)-1].Text
	require.True(t, strings.HasPrefix(last, "Added category Sports ("), last)
	categoryID := strings.TrimSuffix(strings.TrimPrefix(last, "Added category Sports ("), ")")

	require.NoError(t, run(NewGalleryCmd(env.options()...),
		"add", "https://cdn.example.com/match.jpg", "--title", "Final match", "--category", categoryID))

	env.out.Reset()
	require.NoError(t, run(NewGalleryCmd(env.options()...), "ls", "--category", categoryID))
	assert.Contains(t, env.out.String(), "Final match")
	assert.Contains(t, env.out.String(), "image")
	assert.Contains(t, env.out.String(), "Sports")

	err := run(NewGalleryCmd(env.options()...), "categories", "rm", categoryID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cannot delete category with existing items")
}

func TestInboxCommandsEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.setupAdmin(t)

	require.NoError(t, run(NewInquiriesCmd(env.options()...), "ls", "--unread"))
	assert.Contains(t, env.out.String(), "No inquiries found.")

	require.NoError(t, run(NewSubscribersCmd(env.options()...), "--all"))
	assert.Contains(t, env.out.String(), "No subscribers found.")
}

func TestInquiryShowMarksRead(t *testing.T) {
	env := newTestEnv(t)
	env.setupAdmin(t)

	resp, err := http.Post(env.server.URL+"/api/contact", "application/json",
		strings.NewReader(`{"name":"Ann","email":"ann@example.com","subject":"Admissions","message":"Is there a waiting list?"}`))
	require.NoError(t, err)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	require.NotEmpty(t, created.ID)

	require.NoError(t, run(NewInquiriesCmd(env.options()...), "show", created.ID, "--keep-unread"))
	assert.Contains(t, env.out.String(), "Is there a waiting list?")

	env.out.Reset()
	require.NoError(t, run(NewInquiriesCmd(env.options()...), "ls", "--unread"))
	assert.Contains(t, env.out.String(), created.ID)

	env.out.Reset()
	require.NoError(t, run(NewInquiriesCmd(env.options()...), "show", created.ID))
	assert.Contains(t, env.out.String(), "Subject:  Admissions")

	env.out.Reset()
	require.NoError(t, run(NewInquiriesCmd(env.options()...), "ls", "--unread"))
	assert.Contains(t, env.out.String(), "No inquiries found.")
}

func TestWhoami(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, run(NewWhoamiCmd(env.options()...)))
	assert.Contains(t, env.out.String(), "Not signed in to test")

	env.setupAdmin(t)
	env.out.Reset()
	require.NoError(t, run(NewWhoamiCmd(env.options()...)))
	assert.Contains(t, env.out.String(), "User:   Head Teacher (head@example.com)")
	assert.Contains(t, env.out.String(), "Role:   Admin")
}
