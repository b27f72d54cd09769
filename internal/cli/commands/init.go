package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/schoolhub-dev/schoolhub/internal/cli/config"
)

type initOptions struct {
	alias string
	out   io.Writer
}

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	opts := &initOptions{out: os.Stdout}

	cmd := &cobra.Command{
		Use:   "init <server-url>",
		Short: "Add a schoolhub server to ./schoolhub.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitWithOptions(args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.alias, "alias", "", "Alias for the server (default production, then server-N)")

	return cmd
}

func runInitWithOptions(args []string, opts *initOptions) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one server URL")
	}
	out := opts.out
	if out == nil {
		out = io.Discard
	}

	serverURL, err := config.NormalizeURL(args[0])
	if err != nil {
		return err
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	configPath := filepath.Join(currentDir, config.ConfigFileName)

	var cfg *config.Config
	isNewConfig := false

	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
		fmt.Fprintf(out, "Found existing %s\n", config.ConfigFileName)
	} else {
		cfg = &config.Config{
			Servers: []config.Server{},
		}
		isNewConfig = true
	}

	alias := opts.alias
	if alias == "" {
		if len(cfg.Servers) == 0 {
			alias = "production"
		} else {
			alias = fmt.Sprintf("server-%d", len(cfg.Servers)+1)
		}
	}
	if existing, err := cfg.GetServerByAlias(alias); err == nil && existing.URL != serverURL {
		return fmt.Errorf("alias '%s' is already used by %s", alias, existing.URL)
	}

	if !cfg.AddServer(config.Server{URL: serverURL, Alias: alias}) {
		fmt.Fprintf(out, "Server %s already exists in %s\n", serverURL, config.ConfigFileName)
	} else {
		if err := config.Save(configPath, cfg); err != nil {
			return err
		}

		if isNewConfig {
			fmt.Fprintf(out, "✓ Created ./%s with server %s (%s)\n", config.ConfigFileName, serverURL, alias)
		} else {
			fmt.Fprintf(out, "✓ Added server %s (%s) to ./%s\n", serverURL, alias, config.ConfigFileName)
		}
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Run 'schoolhub setup' to create the first administrator on a new server")
	fmt.Fprintln(out, "  2. Run 'schoolhub login' to sign in")

	return nil
}
