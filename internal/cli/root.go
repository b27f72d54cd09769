package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/schoolhub-dev/schoolhub/internal/cli/commands"
	"github.com/schoolhub-dev/schoolhub/internal/logger"
)

var version = "dev" // Will be set during build

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "schoolhub",
	Short: "Schoolhub - School website administration",
	Long: `Schoolhub CLI - Manage the content of your school website.

Sign in with an admin account to manage staff, events, news, the gallery,
achievements, contact inquiries and newsletter subscribers.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logLevel, "console", "cli")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "error", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("schoolhub version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewInitCmd())
	rootCmd.AddCommand(commands.NewSetupCmd())
	rootCmd.AddCommand(commands.NewLoginCmd())
	rootCmd.AddCommand(commands.NewLogoutCmd())
	rootCmd.AddCommand(commands.NewWhoamiCmd())
	rootCmd.AddCommand(commands.NewSelectServerCmd())
	rootCmd.AddCommand(commands.NewDashboardCmd())
	rootCmd.AddCommand(commands.NewStaffCmd())
	rootCmd.AddCommand(commands.NewEventsCmd())
	rootCmd.AddCommand(commands.NewNewsCmd())
	rootCmd.AddCommand(commands.NewGalleryCmd())
	rootCmd.AddCommand(commands.NewAchievementsCmd())
	rootCmd.AddCommand(commands.NewInquiriesCmd())
	rootCmd.AddCommand(commands.NewSubscribersCmd())
	rootCmd.AddCommand(commands.NewUsersCmd())
}

// Execute runs the root command
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
