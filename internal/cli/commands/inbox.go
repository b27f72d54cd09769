package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/schoolhub-dev/schoolhub/internal/cli/client"
	"github.com/schoolhub-dev/schoolhub/internal/models"
)

// NewInquiriesCmd creates the inquiries command group
func NewInquiriesCmd(opts ...Option) *cobra.Command {
	o := newOptions(opts)

	cmd := &cobra.Command{
		Use:   "inquiries",
		Short: "Read contact form inquiries",
	}
	addServerFlag(cmd, o)

	var unread bool
	ls := adminCmd(o, "ls", "List inquiries, newest first", inquiriesPath, cobra.NoArgs,
		func(ctx context.Context, a *app, _ []string) error {
			list, err := a.client.ListInquiries(ctx, unread)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(a.opts.out, "No inquiries found.")
				return nil
			}

			w := newTable(a.opts.out)
			writeHeader(w, "ID", "RECEIVED", "FROM", "SUBJECT", "READ")
			for _, q := range list {
				fmt.Fprintf(w, "%s\t%s\t%s <%s>\t%s\t%t\n",
					q.ID, q.CreatedAt.Format("2006-01-02 15:04"), q.Name, q.Email, deref(q.Subject), q.IsRead)
			}
			return w.Flush()
		})
	ls.Aliases = []string{"list"}
	ls.Flags().BoolVar(&unread, "unread", false, "Only unread inquiries")

	var keepUnread bool
	show := adminCmd(o, "show <id>", "Print an inquiry and mark it read", inquiriesPath, cobra.ExactArgs(1),
		func(ctx context.Context, a *app, args []string) error {
			inquiry, err := a.client.GetInquiry(ctx, args[0])
			if err != nil {
				return err
			}
			printInquiry(a, inquiry)
			if inquiry.IsRead || keepUnread {
				return nil
			}
			_, err = a.client.MarkInquiryRead(ctx, inquiry.ID, true)
			return err
		})
	show.Flags().BoolVar(&keepUnread, "keep-unread", false, "Do not mark the inquiry read")

	markUnread := adminCmd(o, "unread <id>", "Mark an inquiry unread", inquiriesPath, cobra.ExactArgs(1),
		func(ctx context.Context, a *app, args []string) error {
			if _, err := a.client.MarkInquiryRead(ctx, args[0], false); err != nil {
				return err
			}
			a.opts.notifier.Success("Inquiry marked unread")
			return nil
		})

	cmd.AddCommand(ls, show, markUnread)
	return cmd
}

func printInquiry(a *app, q *models.ContactInquiry) {
	out := a.opts.out
	fmt.Fprintf(out, "From:     %s <%s>\n", q.Name, q.Email)
	if q.Phone != nil {
		fmt.Fprintf(out, "Phone:    %s\n", *q.Phone)
	}
	if q.Subject != nil {
		fmt.Fprintf(out, "Subject:  %s\n", *q.Subject)
	}
	fmt.Fprintf(out, "Received: %s\n\n", q.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintln(out, strings.TrimSpace(q.Message))
}

// NewSubscribersCmd creates the subscribers command
func NewSubscribersCmd(opts ...Option) *cobra.Command {
	o := newOptions(opts)
	var all bool

	cmd := adminCmd(o, "subscribers", "List newsletter subscribers", subscribersPath, cobra.NoArgs,
		func(ctx context.Context, a *app, _ []string) error {
			subs, err := a.client.ListSubscribers(ctx, all)
			if err != nil {
				return err
			}
			if len(subs) == 0 {
				fmt.Fprintln(a.opts.out, "No subscribers found.")
				return nil
			}

			w := newTable(a.opts.out)
			writeHeader(w, "EMAIL", "SINCE", "ACTIVE")
			for _, s := range subs {
				fmt.Fprintf(w, "%s\t%s\t%t\n", s.Email, s.CreatedAt.Format("2006-01-02"), s.IsActive)
			}
			return w.Flush()
		})
	addServerFlag(cmd, o)
	cmd.Flags().BoolVar(&all, "all", false, "Include unsubscribed addresses")

	return cmd
}

// NewUsersCmd creates the users command group
func NewUsersCmd(opts ...Option) *cobra.Command {
	o := newOptions(opts)

	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts and roles",
	}
	addServerFlag(cmd, o)

	ls := adminCmd(o, "ls", "List accounts", usersPath, cobra.NoArgs,
		func(ctx context.Context, a *app, _ []string) error {
			users, err := a.client.ListUsers(ctx)
			if err != nil {
				return err
			}

			w := newTable(a.opts.out)
			writeHeader(w, "ID", "EMAIL", "NAME", "CREATED")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Name, u.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		})
	ls.Aliases = []string{"list"}

	var req client.CreateUserRequest
	addCmd := adminCmd(o, "add <email>", "Create an account", usersPath, cobra.ExactArgs(1),
		func(ctx context.Context, a *app, args []string) error {
			create := req
			create.Email = args[0]
			if create.Password == "" {
				password, err := a.opts.readPassword()
				if err != nil {
					return err
				}
				create.Password = password
			}

			user, err := a.client.CreateUser(ctx, create)
			if err != nil {
				return err
			}
			a.opts.notifier.Success(fmt.Sprintf("Created %s (%s)", user.Email, user.ID))
			return nil
		})
	addCmd.Flags().StringVar(&req.Name, "name", "", "Display name (required)")
	addCmd.Flags().StringVar(&req.Password, "password", "", "Initial password (will prompt if not provided)")
	addCmd.Flags().StringVar(&req.Role, "role", models.RoleViewer, "Profile role: admin, editor or viewer")
	_ = addCmd.MarkFlagRequired("name")

	role := adminCmd(o, "role <user-id> <role>", "Change a user's profile role", usersPath, cobra.ExactArgs(2),
		func(ctx context.Context, a *app, args []string) error {
			profile, err := a.client.SetProfileRole(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			a.opts.notifier.Success(fmt.Sprintf("Role of %s is now %s", profile.UserID, profile.Role))
			return nil
		})

	cmd.AddCommand(ls, addCmd, role)
	return cmd
}
