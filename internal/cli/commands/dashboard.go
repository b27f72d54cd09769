package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/schoolhub-dev/schoolhub/internal/nav"
)

// NewDashboardCmd creates the dashboard command
func NewDashboardCmd(opts ...Option) *cobra.Command {
	o := newOptions(opts)

	cmd := &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"dash"},
		Short:   "Show site counters and upcoming events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runAdmin(cmd.Context(), nav.AdminRoot, printDashboard)
		},
	}

	addServerFlag(cmd, o)
	return cmd
}

func printDashboard(ctx context.Context, a *app) error {
	stats, err := a.client.Dashboard(ctx)
	if err != nil {
		return err
	}
	updates, err := a.client.LatestUpdates(ctx)
	if err != nil {
		return err
	}

	out := a.opts.out
	fmt.Fprintf(out, "Dashboard for %s (%s):\n\n", a.server.Alias, a.server.URL)

	w := newTable(out)
	fmt.Fprintf(w, "Staff\t%d\n", stats.Staff)
	fmt.Fprintf(w, "Events\t%d\n", stats.Events)
	fmt.Fprintf(w, "Gallery items\t%d\n", stats.GalleryItems)
	fmt.Fprintf(w, "News articles\t%d\n", stats.News)
	fmt.Fprintf(w, "Achievements\t%d\n", stats.Achievements)
	fmt.Fprintf(w, "Unread inquiries\t%d\n", stats.UnreadInquiries)
	w.Flush()

	if len(updates) == 0 {
		fmt.Fprintln(out, "\nNo upcoming events.")
		return nil
	}

	fmt.Fprintln(out, "\nUpcoming:")
	w = newTable(out)
	for _, u := range updates {
		fmt.Fprintf(w, "  %s\t%s\n", u.EventDate, u.Title)
	}
	return w.Flush()
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

// writeHeader prints column names with an underline row
func writeHeader(w io.Writer, columns ...string) {
	rules := make([]string, len(columns))
	for i, c := range columns {
		rules[i] = strings.Repeat("─", len(c))
	}
	fmt.Fprintln(w, strings.Join(columns, "\t"))
	fmt.Fprintln(w, strings.Join(rules, "\t"))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
