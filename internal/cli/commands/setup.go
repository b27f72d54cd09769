package commands

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/schoolhub-dev/schoolhub/internal/cli/client"
	"github.com/schoolhub-dev/schoolhub/internal/cli/userconfig"
)

type setupInput struct {
	email    string
	name     string
	password string
}

// NewSetupCmd creates the setup command
func NewSetupCmd(opts ...Option) *cobra.Command {
	o := newOptions(opts)
	var in setupInput
	var interactive bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the first administrator on a new server",
		Long: `Create the first administrator on a new server and sign in as them.

Setup only works once per server. Later accounts are created with
'schoolhub users add'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interactive {
				if err := promptSetupInput(&in); err != nil {
					return err
				}
			}
			return runSetup(cmd.Context(), o, in)
		},
	}

	addServerFlag(cmd, o)
	cmd.Flags().StringVar(&in.email, "email", "", "Administrator email")
	cmd.Flags().StringVar(&in.name, "name", "", "Administrator name")
	cmd.Flags().StringVar(&in.password, "password", "", "Administrator password (will prompt if not provided)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Prompt for missing values")

	return cmd
}

func runSetup(ctx context.Context, o *options, in setupInput) error {
	if strings.TrimSpace(in.email) == "" || strings.TrimSpace(in.name) == "" {
		return fmt.Errorf("--email and --name are required (or use --interactive)")
	}
	if in.password == "" {
		password, err := o.readPassword()
		if err != nil {
			return err
		}
		in.password = password
	}

	server, _, err := o.resolveServer()
	if err != nil {
		return err
	}

	c := client.New(server.URL, o.cache, o.log())
	defer c.Close()

	sess, err := c.Setup(ctx, client.SetupRequest{
		Email:    strings.TrimSpace(in.email),
		Password: in.password,
		Name:     strings.TrimSpace(in.name),
	})
	if err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}

	if err := userconfig.SetLastEmail(sess.User.Email); err != nil {
		o.log().Warn().Err(err).Msg("Failed to remember email")
	}

	o.notifier.Success(fmt.Sprintf("Created administrator %s on %s", sess.User.Email, server.Alias))
	return nil
}

// promptSetupInput asks for the values that were not given as flags
func promptSetupInput(in *setupInput) error {
	if in.name == "" {
		prompt := promptui.Prompt{
			Label: "Name",
			Validate: func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("name is required")
				}
				return nil
			},
		}
		name, err := prompt.Run()
		if err != nil {
			return fmt.Errorf("setup cancelled: %w", err)
		}
		in.name = name
	}

	if in.email == "" {
		prompt := promptui.Prompt{
			Label: "Email",
			Validate: func(s string) error {
				if _, err := mail.ParseAddress(strings.TrimSpace(s)); err != nil {
					return fmt.Errorf("invalid email")
				}
				return nil
			},
		}
		email, err := prompt.Run()
		if err != nil {
			return fmt.Errorf("setup cancelled: %w", err)
		}
		in.email = email
	}

	if in.password == "" {
		prompt := promptui.Prompt{
			Label: "Password",
			Mask:  '*',
			Validate: func(s string) error {
				if len(s) < 8 {
					return fmt.Errorf("password must be at least 8 characters")
				}
				return nil
			},
		}
		password, err := prompt.Run()
		if err != nil {
			return fmt.Errorf("setup cancelled: %w", err)
		}
		in.password = password
	}

	return nil
}
