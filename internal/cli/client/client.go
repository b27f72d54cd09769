package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/schoolhub-dev/schoolhub/internal/cli/auth"
	"github.com/schoolhub-dev/schoolhub/internal/session"
)

// expiryMargin is how long before expiry an access token is refreshed
const expiryMargin = 30 * time.Second

// Client represents an HTTP client for the schoolhub API. It implements
// session.AuthProvider and roles.ProfileLookup.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      auth.SessionCache
	logger     zerolog.Logger
	now        func() time.Time

	// commitMu orders session changes with the events that announce them
	commitMu sync.Mutex
	mu       sync.Mutex
	current  *session.Session
	loaded   bool
	gen      uint64 // bumped on every session change

	listenersMu  sync.Mutex
	listeners    map[int]func(session.AuthEvent)
	nextListener int

	events    chan session.AuthEvent
	closeOnce sync.Once
	done      chan struct{}
}

// APIError is a non-2xx response carrying {"error": "..."}
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// New creates a new API client. cache may be nil to keep the session in memory only.
func New(baseURL string, cache auth.SessionCache, logger zerolog.Logger) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:     cache,
		logger:    logger.With().Str("component", "client").Logger(),
		now:       time.Now,
		listeners: make(map[int]func(session.AuthEvent)),
		events:    make(chan session.AuthEvent, 16),
		done:      make(chan struct{}),
	}
	go c.dispatch()
	return c
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// BaseURL returns the server URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close stops event delivery
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// dispatch delivers auth events to listeners one at a time, in order
func (c *Client) dispatch() {
	for {
		select {
		case ev := <-c.events:
			c.listenersMu.Lock()
			listeners := make([]func(session.AuthEvent), 0, len(c.listeners))
			for _, l := range c.listeners {
				listeners = append(listeners, l)
			}
			c.listenersMu.Unlock()

			for _, l := range listeners {
				l(ev)
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) emit(kind session.EventKind, sess *session.Session) {
	select {
	case c.events <- session.AuthEvent{Kind: kind, Session: sess}:
	case <-c.done:
	}
}

// OnAuthStateChange registers a listener. The listener first receives
// INITIAL_SESSION with the cached session.
func (c *Client) OnAuthStateChange(callback func(session.AuthEvent)) session.Subscription {
	c.listenersMu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listenersMu.Unlock()

	c.commitMu.Lock()
	initial := c.cachedSession()

	c.listenersMu.Lock()
	c.listeners[id] = callback
	c.listenersMu.Unlock()

	c.emit(session.EventInitialSession, initial)
	c.commitMu.Unlock()

	return session.SubscriptionFunc(func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		delete(c.listeners, id)
	})
}

// cachedSession returns the in-memory session, loading it from the cache once
func (c *Client) cachedSession() *session.Session {
	sess, _ := c.snapshot()
	return sess
}

// snapshot returns the in-memory session and its generation
func (c *Client) snapshot() (*session.Session, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		c.loaded = true
		if c.cache != nil {
			sess, err := c.cache.LoadSession(c.baseURL)
			if err != nil && !errors.Is(err, auth.ErrNoSession) {
				c.logger.Warn().Err(err).Msg("Failed to load cached session")
			}
			c.current = sess
		}
	}
	return c.current, c.gen
}

// commit replaces the session and emits kind
func (c *Client) commit(kind session.EventKind, sess *session.Session) {
	c.commitIf(nil, kind, sess)
}

// commitIf replaces the session and emits kind. When gen is set the change is
// dropped unless the session is still at that generation.
func (c *Client) commitIf(gen *uint64, kind session.EventKind, sess *session.Session) bool {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	if !c.setSession(gen, sess) {
		return false
	}
	c.emit(kind, sess)
	return true
}

func (c *Client) setSession(gen *uint64, sess *session.Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != nil && (!c.loaded || *gen != c.gen) {
		return false
	}
	c.current = sess
	c.loaded = true
	c.gen++

	if c.cache == nil {
		return true
	}
	var err error
	if sess == nil {
		err = c.cache.DeleteSession(c.baseURL)
	} else {
		err = c.cache.SaveSession(c.baseURL, sess)
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update cached session")
	}
	return true
}

// GetSession returns the current session, refreshing it first when the
// access token is about to expire. It returns nil when signed out.
func (c *Client) GetSession(ctx context.Context) (*session.Session, error) {
	sess := c.cachedSession()
	if sess == nil {
		return nil, nil
	}
	if !sess.Expired(c.now(), expiryMargin) {
		return sess, nil
	}
	return c.RefreshSession(ctx)
}

// tokenResponse mirrors the server's token grant response
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

// User is the account returned by the auth endpoints
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) toSessionUser() session.User {
	return session.User{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Roles:    u.Roles,
		Metadata: map[string]any{"name": u.Name},
	}
}

func (t *tokenResponse) toSession() (*session.Session, error) {
	if t.AccessToken == "" || t.User == nil {
		return nil, fmt.Errorf("incomplete token response")
	}
	return &session.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    time.Unix(t.ExpiresAt, 0),
		User:         t.User.toSessionUser(),
	}, nil
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInWithPassword exchanges credentials for a session. Rejected
// credentials return a *session.AuthError with the server's message.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*session.Session, error) {
	sess, err := c.grant(ctx, "password", LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	c.commit(session.EventSignedIn, sess)
	return sess, nil
}

// SetupRequest creates the first administrator
type SetupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Setup creates the first administrator on a fresh server and signs in as them
func (c *Client) Setup(ctx context.Context, req SetupRequest) (*session.Session, error) {
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/api/setup", "", req, &resp); err != nil {
		return nil, err
	}
	sess, err := resp.toSession()
	if err != nil {
		return nil, err
	}

	c.commit(session.EventSignedIn, sess)
	return sess, nil
}

// errSessionMissing is returned when there is no session to act on
func errSessionMissing() error {
	return &session.AuthError{Status: http.StatusUnauthorized, Message: "Auth session missing!"}
}

// RefreshSession rotates the refresh token. When the server rejects it the
// local session is cleared and SIGNED_OUT is emitted. A response that arrives
// after the session changed (sign-out, sign-in or another refresh) is
// discarded and reported as a missing session.
func (c *Client) RefreshSession(ctx context.Context) (*session.Session, error) {
	current, gen := c.snapshot()
	if current == nil || current.RefreshToken == "" {
		return nil, errSessionMissing()
	}

	sess, err := c.grant(ctx, "refresh_token", map[string]string{"refresh_token": current.RefreshToken})
	if err != nil {
		if _, ok := session.AsAuthError(err); ok {
			c.commitIf(&gen, session.EventSignedOut, nil)
		}
		return nil, err
	}

	if !c.commitIf(&gen, session.EventTokenRefreshed, sess) {
		c.logger.Debug().Msg("Discarding refresh that finished after the session changed")
		return nil, errSessionMissing()
	}
	return sess, nil
}

func (c *Client) grant(ctx context.Context, grantType string, body interface{}) (*session.Session, error) {
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type="+url.QueryEscape(grantType), "", body, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return nil, &session.AuthError{Status: apiErr.Status, Message: apiErr.Message}
		}
		return nil, err
	}
	return resp.toSession()
}

// SignOut revokes the session on the server and clears it locally. An
// already revoked session is not an error.
func (c *Client) SignOut(ctx context.Context) error {
	current := c.cachedSession()
	if current == nil {
		return nil
	}

	err := c.do(ctx, http.MethodPost, "/auth/v1/logout", current.AccessToken, nil, nil)
	var apiErr *APIError
	if err != nil && !(errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized) {
		return err
	}

	c.commit(session.EventSignedOut, nil)
	return nil
}

// GetUser returns the signed-in user as the server sees it
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.authed(ctx, http.MethodGet, "/auth/v1/user", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ProfileRole looks up the role column of the user's profiles row. A missing
// row is found=false with no error.
func (c *Client) ProfileRole(ctx context.Context, userID string) (string, bool, error) {
	var row struct {
		Role string `json:"role"`
	}
	err := c.authed(ctx, http.MethodGet, "/rest/v1/profiles/"+url.PathEscape(userID), nil, &row)
	if err != nil {
		if IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return row.Role, true, nil
}

// accessToken returns a usable access token, refreshing when near expiry
func (c *Client) accessToken(ctx context.Context) (string, error) {
	sess, err := c.GetSession(ctx)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", auth.ErrNoSession
	}
	return sess.AccessToken, nil
}

// authed sends a request with the current access token
func (c *Client) authed(ctx context.Context, method, path string, body, out interface{}) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, token, body, out)
}

// do sends a JSON request and decodes a JSON response into out (if non-nil)
func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, token, out)
}

func (c *Client) send(req *http.Request, token string, out interface{}) error {
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var payload struct {
		Error string `json:"error"`
	}
	msg := http.StatusText(resp.StatusCode)
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		msg = payload.Error
	} else if len(body) > 0 {
		msg = string(body)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
