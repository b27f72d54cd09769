package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schoolhub-dev/schoolhub/internal/cli/config"
	"github.com/schoolhub-dev/schoolhub/internal/cli/serverselect"
	"github.com/schoolhub-dev/schoolhub/internal/cli/userconfig"
)

// NewSelectServerCmd creates the select-server command
func NewSelectServerCmd(opts ...Option) *cobra.Command {
	o := newOptions(opts)

	cmd := &cobra.Command{
		Use:   "select-server [url-or-alias]",
		Short: "Select the server to use for commands",
		Long: `Select the server to use for commands.

If no param is provided, an interactive prompt will be shown.

Examples:
  $ schoolhub select-server                             # Interactive selection
  $ schoolhub select-server https://school.example.com  # Select by URL
  $ schoolhub select-server production                  # Select by alias`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var urlOrAlias string
			if len(args) > 0 {
				urlOrAlias = args[0]
			}
			return runSelectServer(o, urlOrAlias)
		},
	}

	return cmd
}

func runSelectServer(o *options, urlOrAlias string) error {
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return fmt.Errorf("failed to load config: %w\nRun 'schoolhub init' to create a configuration file", err)
	}

	var server *config.Server

	if urlOrAlias != "" {
		server, err = serverselect.GetServerByURLOrAlias(cfg, urlOrAlias)
		if err != nil {
			return err
		}
	} else {
		server, err = serverselect.PromptServerSelection(cfg)
		if err != nil {
			return err
		}
	}

	if err := userconfig.SetSelectedServer(server.URL); err != nil {
		return fmt.Errorf("failed to save selected server: %w", err)
	}

	fmt.Fprintf(o.out, "Selected server: %s (%s)\n", server.Alias, server.URL)
	return nil
}
