package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/schoolhub-dev/schoolhub/internal/cli/auth"
	"github.com/schoolhub-dev/schoolhub/internal/cli/client"
	"github.com/schoolhub-dev/schoolhub/internal/cli/config"
	"github.com/schoolhub-dev/schoolhub/internal/cli/serverselect"
	"github.com/schoolhub-dev/schoolhub/internal/gate"
	"github.com/schoolhub-dev/schoolhub/internal/login"
	"github.com/schoolhub-dev/schoolhub/internal/logger"
	"github.com/schoolhub-dev/schoolhub/internal/nav"
	"github.com/schoolhub-dev/schoolhub/internal/notify"
	"github.com/schoolhub-dev/schoolhub/internal/roles"
	"github.com/schoolhub-dev/schoolhub/internal/session"
)

// ErrAdminRequired is returned when a signed-in user without admin rights runs an admin command
var ErrAdminRequired = errors.New("admin privileges required. Run 'schoolhub login' with an admin account")

// options holds the dependencies of a command. Production code uses the
// defaults; tests override them.
type options struct {
	serverAlias   string
	server        *config.Server
	adminEmails   []string
	cache         auth.SessionCache
	out           io.Writer
	notifier      notify.Notifier
	logger        *zerolog.Logger
	redirectDelay time.Duration
	readPassword  func() (string, error)
}

// Option configures a command
type Option func(*options)

// WithServer skips project config lookup and uses server directly
func WithServer(server *config.Server) Option {
	return func(o *options) { o.server = server }
}

// WithAdminEmails adds addresses to the admin allow-list
func WithAdminEmails(emails ...string) Option {
	return func(o *options) { o.adminEmails = append(o.adminEmails, emails...) }
}

// WithSessionCache replaces the keyring
func WithSessionCache(cache auth.SessionCache) Option {
	return func(o *options) { o.cache = cache }
}

// WithOutput redirects command output and notifications
func WithOutput(out io.Writer) Option {
	return func(o *options) { o.out = out }
}

// WithNotifier replaces the console notifier
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithRedirectDelay overrides the delay between sign-in and the dashboard
func WithRedirectDelay(d time.Duration) Option {
	return func(o *options) { o.redirectDelay = d }
}

// WithPasswordReader replaces the terminal password prompt
func WithPasswordReader(fn func() (string, error)) Option {
	return func(o *options) { o.readPassword = fn }
}

func newOptions(opts []Option) *options {
	o := &options{
		cache:         auth.Default,
		out:           os.Stdout,
		redirectDelay: login.DefaultRedirectDelay,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.notifier == nil {
		o.notifier = notify.NewConsole(o.out)
	}
	if o.readPassword == nil {
		o.readPassword = func() (string, error) { return promptPassword(o.out) }
	}
	return o
}

// WithLogger replaces the CLI logger
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// log returns the configured logger. The CLI logger is initialized after
// commands are built, so it is looked up on use.
func (o *options) log() zerolog.Logger {
	if o.logger != nil {
		return *o.logger
	}
	return logger.Logger
}

func addServerFlag(cmd *cobra.Command, o *options) {
	cmd.PersistentFlags().StringVar(&o.serverAlias, "server", "", "Server alias (uses the selected server if not specified)")
}

// resolveServer returns the target server and the allow-list configured for it
func (o *options) resolveServer() (*config.Server, []string, error) {
	if o.server != nil {
		return o.server, o.adminEmails, nil
	}

	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w\nRun 'schoolhub init' to create a configuration file", err)
	}

	server, err := serverselect.ResolveServer(cfg, o.serverAlias)
	if err != nil {
		return nil, nil, err
	}

	emails := append([]string{}, cfg.AdminEmails...)
	return server, append(emails, o.adminEmails...), nil
}

// app is one command's view of a server: the API client, the session store
// built on it and an in-process navigation history
type app struct {
	opts    *options
	server  *config.Server
	client  *client.Client
	store   *session.Store
	history *nav.History
}

// openApp connects to the server and loads the cached session. path is the
// admin screen the command represents.
func openApp(ctx context.Context, path string, o *options) (*app, error) {
	server, adminEmails, err := o.resolveServer()
	if err != nil {
		return nil, err
	}

	c := client.New(server.URL, o.cache, o.log())
	resolver := roles.NewResolver(roles.NewAllowList(adminEmails...), c, o.log())
	store := session.NewStore(c, resolver, o.notifier, o.log())
	store.Init(ctx)

	return &app{
		opts:    o,
		server:  server,
		client:  c,
		store:   store,
		history: nav.NewHistory(path),
	}, nil
}

// Close stops the store and the client's event delivery
func (a *app) Close() {
	a.store.Dispose()
	a.client.Close()
}

// guard runs fn only for a signed-in admin
func (a *app) guard(ctx context.Context, fn func(ctx context.Context) error) error {
	g := gate.New(a.store, a.history, a.opts.notifier, a.opts.log())

	decision, err := g.Guard(ctx, fn)
	if err != nil {
		return err
	}
	if decision != gate.Denied {
		return nil
	}
	if a.store.Snapshot().User == nil {
		return auth.ErrNoSession
	}
	return ErrAdminRequired
}

// runAdmin opens the server at path and runs fn behind the admin gate
func (o *options) runAdmin(ctx context.Context, path string, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(ctx, path, o)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.guard(ctx, func(ctx context.Context) error {
		return fn(ctx, a)
	})
}

// promptPassword reads a password from the terminal without echo
func promptPassword(out io.Writer) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("password is required in non-interactive mode (use --password flag or SCHOOLHUB_PASSWORD env var)")
	}

	fmt.Fprint(out, "Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}
