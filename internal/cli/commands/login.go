package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/schoolhub-dev/schoolhub/internal/cli/userconfig"
	"github.com/schoolhub-dev/schoolhub/internal/login"
	"github.com/schoolhub-dev/schoolhub/internal/nav"
)

// NewLoginCmd creates the login command
func NewLoginCmd(opts ...Option) *cobra.Command {
	o := newOptions(opts)
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the admin panel of a schoolhub server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), o, email, password)
		},
	}

	addServerFlag(cmd, o)
	cmd.Flags().StringVar(&email, "email", "", "Email address (or set SCHOOLHUB_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set SCHOOLHUB_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(ctx context.Context, o *options, email, password string) error {
	// Environment variables are useful for CI
	if email == "" {
		email = os.Getenv("SCHOOLHUB_EMAIL")
	}
	if password == "" {
		password = os.Getenv("SCHOOLHUB_PASSWORD")
	}
	if email == "" {
		if cfg, err := userconfig.Load(); err == nil {
			email = cfg.LastEmail
		}
	}

	a, err := openApp(ctx, nav.LoginPath, o)
	if err != nil {
		return err
	}
	defer a.Close()

	flow := login.New(a.store, a.history, o.notifier, o.log(), login.WithRedirectDelay(o.redirectDelay))
	defer flow.Unmount()

	if flow.Mount() {
		st := a.store.Snapshot()
		fmt.Fprintf(o.out, "Already signed in to %s as %s\n", a.server.Alias, st.User.Email)
		return nil
	}

	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("email is required (use --email flag or SCHOOLHUB_EMAIL env var)")
	}
	if password == "" {
		password, err = o.readPassword()
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(o.out, "Signing in to %s (%s)...\n", a.server.Alias, a.server.URL)

	res := flow.Submit(ctx, email, password)
	if !res.OK {
		return errors.New(res.Error)
	}

	if err := userconfig.SetLastEmail(strings.TrimSpace(email)); err != nil {
		o.log().Warn().Err(err).Msg("Failed to remember email")
	}

	select {
	case <-res.Redirected:
	case <-ctx.Done():
		return ctx.Err()
	}
	if !res.Navigated() {
		return errors.New("sign-in redirect was cancelled")
	}

	return a.guard(ctx, func(ctx context.Context) error {
		st := a.store.Snapshot()
		fmt.Fprintf(o.out, "  User: %s (%s)\n", st.User.Name, st.User.Email)
		fmt.Fprintln(o.out, "  Role: Admin")
		fmt.Fprintln(o.out)
		return printDashboard(ctx, a)
	})
}

// NewLogoutCmd creates the logout command
func NewLogoutCmd(opts ...Option) *cobra.Command {
	o := newOptions(opts)

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the cached session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd.Context(), o)
		},
	}

	addServerFlag(cmd, o)
	return cmd
}

func runLogout(ctx context.Context, o *options) error {
	a, err := openApp(ctx, nav.AdminRoot, o)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.store.Snapshot().SignedIn() {
		fmt.Fprintf(o.out, "Not signed in to %s\n", a.server.Alias)
		return nil
	}
	return a.store.SignOut(ctx)
}

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd(opts ...Option) *cobra.Command {
	o := newOptions(opts)

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and whether they are an admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(cmd.Context(), o)
		},
	}

	addServerFlag(cmd, o)
	return cmd
}

func runWhoami(ctx context.Context, o *options) error {
	a, err := openApp(ctx, nav.AdminRoot, o)
	if err != nil {
		return err
	}
	defer a.Close()

	a.store.RefreshSession(ctx)
	st := a.store.Snapshot()
	if !st.SignedIn() {
		fmt.Fprintf(o.out, "Not signed in to %s (%s)\n", a.server.Alias, a.server.URL)
		return nil
	}

	role := "Viewer"
	if st.IsAdmin {
		role = "Admin"
	}
	fmt.Fprintf(o.out, "Server: %s (%s)\n", a.server.Alias, a.server.URL)
	fmt.Fprintf(o.out, "User:   %s (%s)\n", st.User.Name, st.User.Email)
	fmt.Fprintf(o.out, "Role:   %s\n", role)
	return nil
}
