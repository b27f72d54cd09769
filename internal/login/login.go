// Package login implements the admin sign-in form logic.
package login

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/schoolhub-dev/schoolhub/internal/nav"
	"github.com/schoolhub-dev/schoolhub/internal/notify"
	"github.com/schoolhub-dev/schoolhub/internal/session"
)

// Form and notification texts
const (
	MsgEmailRequired    = "Email is required"
	MsgPasswordRequired = "Password is required"
	MsgSignInFallback   = "Failed to sign in. Please check your credentials."
	MsgUnexpected       = "An unexpected error occurred. Please try again."
	MsgLoginFailed      = "Login failed"
	MsgWelcome          = "Welcome to the admin panel"
)

// DefaultRedirectDelay gives the store time to resolve the admin flag before
// the admin root is opened. The gate still redirects if it was not enough.
const DefaultRedirectDelay = 500 * time.Millisecond

// Store is the part of the session store the login form uses
type Store interface {
	Snapshot() session.State
	SignIn(ctx context.Context, email, password string) error
}

// Result is the outcome of one submit
type Result struct {
	OK    bool
	Error string // Inline form error, empty on success

	// Redirected is closed once the delayed navigation to the admin root has
	// either happened or been cancelled by Unmount or a later Submit. Use
	// Navigated to tell the two apart. Nil when OK is false.
	Redirected <-chan struct{}

	redirect *pendingRedirect
}

// Navigated reports whether the redirect happened. It is false until
// Redirected is closed, and stays false for a cancelled redirect.
func (r Result) Navigated() bool {
	if r.redirect == nil {
		return false
	}
	select {
	case <-r.redirect.done:
		return r.redirect.navigated
	default:
		return false
	}
}

type pendingRedirect struct {
	timer     *time.Timer
	done      chan struct{}
	navigated bool // written before done is closed
}

// FormState is what the form renders besides its inputs
type FormState struct {
	Loading bool
	Error   string
}

// Flow drives the admin login form
type Flow struct {
	store    Store
	nav      nav.Navigator
	notifier notify.Notifier
	logger   zerolog.Logger
	delay    time.Duration

	mu      sync.Mutex
	form    FormState
	pending *pendingRedirect
}

// Option configures a Flow
type Option func(*Flow)

// WithRedirectDelay overrides DefaultRedirectDelay
func WithRedirectDelay(d time.Duration) Option {
	return func(f *Flow) { f.delay = d }
}

// New creates a login flow
func New(store Store, navigator nav.Navigator, notifier notify.Notifier, logger zerolog.Logger, opts ...Option) *Flow {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	f := &Flow{
		store:    store,
		nav:      navigator,
		notifier: notifier,
		logger:   logger.With().Str("component", "login").Logger(),
		delay:    DefaultRedirectDelay,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Mount redirects to the admin root when an admin is already signed in and
// reports whether it did
func (f *Flow) Mount() bool {
	st := f.store.Snapshot()
	if st.User != nil && st.IsAdmin {
		f.nav.Replace(nav.AdminRoot)
		return true
	}
	return false
}

// Unmount cancels a pending redirect. Its Result.Redirected is closed with
// Navigated reporting false.
func (f *Flow) Unmount() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelLocked()
}

func (f *Flow) cancelLocked() {
	if f.pending == nil {
		return
	}
	f.pending.timer.Stop()
	close(f.pending.done)
	f.pending = nil
}

// State returns the current form state
func (f *Flow) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.form
}

// Submit validates the credentials and signs in. Email is only checked for
// blankness; format errors come back from the backend.
func (f *Flow) Submit(ctx context.Context, email, password string) Result {
	f.mu.Lock()
	f.form = FormState{Loading: true}
	f.mu.Unlock()

	res := f.submit(ctx, email, password)

	f.mu.Lock()
	f.form = FormState{Error: res.Error}
	f.mu.Unlock()
	return res
}

func (f *Flow) submit(ctx context.Context, email, password string) Result {
	if strings.TrimSpace(email) == "" {
		return Result{Error: MsgEmailRequired}
	}
	if password == "" {
		return Result{Error: MsgPasswordRequired}
	}

	if err := f.store.SignIn(ctx, email, password); err != nil {
		f.logger.Warn().Err(err).Msg("Admin sign in failed")
		f.notifier.Error(MsgLoginFailed)

		authErr, ok := session.AsAuthError(err)
		if !ok {
			// Transport errors carry URLs and dial details, so only the
			// store's own sentinel is shown as is
			if errors.Is(err, session.ErrNoUser) {
				return Result{Error: err.Error()}
			}
			return Result{Error: MsgUnexpected}
		}
		if authErr.Message == "" {
			return Result{Error: MsgSignInFallback}
		}
		return Result{Error: authErr.Message}
	}

	f.notifier.Success(MsgWelcome)
	r := f.scheduleRedirect()
	return Result{OK: true, Redirected: r.done, redirect: r}
}

// scheduleRedirect replaces any pending redirect with a new one
func (f *Flow) scheduleRedirect() *pendingRedirect {
	p := &pendingRedirect{done: make(chan struct{})}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelLocked()
	f.pending = p
	p.timer = time.AfterFunc(f.delay, func() {
		f.mu.Lock()
		if f.pending != p {
			f.mu.Unlock()
			return
		}
		f.pending = nil
		f.mu.Unlock()

		f.nav.Replace(nav.AdminRoot)
		p.navigated = true
		close(p.done)
	})
	return p
}
