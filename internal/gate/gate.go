// Package gate guards admin-only views using the session store.
package gate

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/schoolhub-dev/schoolhub/internal/nav"
	"github.com/schoolhub-dev/schoolhub/internal/notify"
	"github.com/schoolhub-dev/schoolhub/internal/session"
)

// MsgNoAdminPrivileges is shown to signed-in users without the admin flag
const MsgNoAdminPrivileges = "You do not have admin privileges"

// ErrStoreClosed is returned by Guard when the store is disposed while verifying
var ErrStoreClosed = errors.New("session store closed")

// Decision is what the gate renders for a store state
type Decision int

const (
	Verifying Decision = iota
	Denied
	Authorized
)

func (d Decision) String() string {
	switch d {
	case Verifying:
		return "verifying"
	case Denied:
		return "denied"
	case Authorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Evaluate maps a store state to a decision. Loading always means Verifying.
func Evaluate(st session.State) Decision {
	if st.Loading {
		return Verifying
	}
	if st.User == nil || !st.IsAdmin {
		return Denied
	}
	return Authorized
}

// Store is the part of the session store the gate reads
type Store interface {
	Snapshot() session.State
	Watch() (<-chan session.State, func())
	RefreshSession(ctx context.Context)
}

// Gate redirects visitors who are not signed-in admins to the login path
type Gate struct {
	store     Store
	nav       nav.Navigator
	notifier  notify.Notifier
	logger    zerolog.Logger
	loginPath string
	verifying func()

	mu     sync.Mutex
	warned bool
}

// Option configures a Gate
type Option func(*Gate)

// WithLoginPath overrides the redirect target (default nav.LoginPath)
func WithLoginPath(path string) Option {
	return func(g *Gate) { g.loginPath = path }
}

// WithVerifying sets a callback run once when Guard starts verifying
func WithVerifying(fn func()) Option {
	return func(g *Gate) { g.verifying = fn }
}

// New creates a gate
func New(store Store, navigator nav.Navigator, notifier notify.Notifier, logger zerolog.Logger, opts ...Option) *Gate {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	g := &Gate{
		store:     store,
		nav:       navigator,
		notifier:  notifier,
		logger:    logger.With().Str("component", "gate").Logger(),
		loginPath: nav.LoginPath,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Observe evaluates st and performs the side effects of the decision: the
// privileges warning on entering the signed-in-but-not-admin branch, and a
// redirect on Denied.
func (g *Gate) Observe(st session.State) Decision {
	d := Evaluate(st)

	lacksRole := d == Denied && st.User != nil
	g.mu.Lock()
	warn := lacksRole && !g.warned
	if d != Verifying {
		g.warned = lacksRole
	}
	g.mu.Unlock()

	if warn {
		g.logger.Info().Str("user_id", st.User.ID).Msg("Signed-in user is not an admin")
		g.notifier.Warning(MsgNoAdminPrivileges)
	}
	if d == Denied {
		g.nav.Replace(g.loginPath)
	}
	return d
}

// Guard refreshes the session once, waits until the store has loaded and the
// refresh has finished, then either runs content or redirects to login.
func (g *Gate) Guard(ctx context.Context, content func(ctx context.Context) error) (Decision, error) {
	states, cancel := g.store.Watch()
	defer cancel()

	refreshed := make(chan struct{})
	go func() {
		defer close(refreshed)
		g.store.RefreshSession(ctx)
	}()

	if g.verifying != nil {
		g.verifying()
	}

	pending := refreshed
	var latest session.State
	for {
		select {
		case st, ok := <-states:
			if !ok {
				return Verifying, ErrStoreClosed
			}
			latest = st
		case <-pending:
			pending = nil
			latest = g.store.Snapshot()
		case <-ctx.Done():
			return Verifying, ctx.Err()
		}

		if pending != nil || latest.Loading {
			continue
		}

		switch d := g.Observe(latest); d {
		case Authorized:
			return d, content(ctx)
		case Denied:
			return d, nil
		}
	}
}
