// Package session holds the process-wide record of who is signed in and
// whether they are an administrator.
package session

import (
	"context"
	"errors"
	"time"
)

// EventKind identifies an auth-state change notification
type EventKind string

const (
	EventInitialSession EventKind = "INITIAL_SESSION"
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
	EventUserUpdated    EventKind = "USER_UPDATED"
)

// User is the signed-in account as reported by the auth provider
type User struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Name     string         `json:"name,omitempty"`
	Roles    []string       `json:"roles,omitempty"` // Metadata roles
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Session is the token bundle issued by the auth provider
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token has expired at now, allowing skew
func (s *Session) Expired(now time.Time, skew time.Duration) bool {
	return !now.Add(skew).Before(s.ExpiresAt)
}

// AuthEvent is delivered to OnAuthStateChange subscribers. Session is nil
// after a sign-out.
type AuthEvent struct {
	Kind    EventKind
	Session *Session
}

// AuthError is an authentication failure reported by the provider, such as
// bad credentials. Message is suitable for showing to the user verbatim.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// AsAuthError unwraps err into an *AuthError
func AsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// Subscription is the handle returned by OnAuthStateChange
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to a Subscription
type SubscriptionFunc func()

// Unsubscribe calls f
func (f SubscriptionFunc) Unsubscribe() { f() }

// AuthProvider is the hosted authentication backend.
// Callbacks registered with OnAuthStateChange are invoked one at a time, in
// the order the changes occurred.
type AuthProvider interface {
	GetSession(ctx context.Context) (*Session, error)
	OnAuthStateChange(callback func(AuthEvent)) Subscription
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	RefreshSession(ctx context.Context) (*Session, error)
}

// State is a snapshot of the store
type State struct {
	User    *User
	Session *Session
	IsAdmin bool
	Loading bool
}

// SignedIn reports whether a user is present
func (s State) SignedIn() bool {
	return s.User != nil
}
