package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/schoolhub-dev/schoolhub/internal/cli/client"
)

// Admin screens
const (
	staffPath        = "/admin/staff"
	eventsPath       = "/admin/events"
	newsPath         = "/admin/news"
	galleryPath      = "/admin/gallery"
	achievementsPath = "/admin/achievements"
	inquiriesPath    = "/admin/inquiries"
	subscribersPath  = "/admin/subscribers"
	usersPath        = "/admin/users"
)

// adminCmd builds a leaf command that runs behind the admin gate
func adminCmd(o *options, use, short, path string, args cobra.PositionalArgs, fn func(ctx context.Context, a *app, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runAdmin(cmd.Context(), path, func(ctx context.Context, a *app) error {
				return fn(ctx, a, args)
			})
		},
	}
}

// NewStaffCmd creates the staff command group
func NewStaffCmd(opts ...Option) *cobra.Command {
	o := newOptions(opts)

	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage staff members",
	}
	addServerFlag(cmd, o)

	ls := adminCmd(o, "ls", "List staff members", staffPath, cobra.NoArgs,
		func(ctx context.Context, a *app, _ []string) error {
			staff, err := a.client.ListStaff(ctx)
			if err != nil {
				return err
			}
			if len(staff) == 0 {
				fmt.Fprintln(a.opts.out, "No staff members found.")
				return nil
			}

			w := newTable(a.opts.out)
			writeHeader(w, "ID", "NAME", "POSITION", "DIRECTOR", "ORDER")
			for _, s := range staff {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%d\n", s.ID, s.Name, s.Position, s.IsDirector, s.DisplayOrder)
			}
			return w.Flush()
		})
	ls.Aliases = []string{"list"}

	var add client.NewStaff
	var bio, photo string
	addCmd := adminCmd(o, "add <name>", "Add a staff member", staffPath, cobra.ExactArgs(1),
		func(ctx context.Context, a *app, args []string) error {
			req := add
			req.Name = args[0]
			req.Bio = optional(bio)

			staff, err := a.client.CreateStaff(ctx, req)
			if err != nil {
				return err
			}
			if photo != "" {
				if _, err := a.client.UploadStaffPhoto(ctx, staff.ID, photo); err != nil {
					return fmt.Errorf("staff member %s created but photo upload failed: %w", staff.ID, err)
				}
			}
			a.opts.notifier.Success(fmt.Sprintf("Added %s (%s)", staff.Name, staff.ID))
			return nil
		})
	addCmd.Flags().StringVar(&add.Position, "position", "", "Position (required)")
	addCmd.Flags().StringVar(&bio, "bio", "", "Short biography")
	addCmd.Flags().BoolVar(&add.IsDirector, "director", false, "Show in the director section")
	addCmd.Flags().IntVar(&add.DisplayOrder, "order", 0, "Display order")
	addCmd.Flags().StringVar(&photo, "photo", "", "Photo file to upload")
	_ = addCmd.MarkFlagRequired("position")

	photoCmd := adminCmd(o, "photo <id> <file>", "Upload a staff photo", staffPath, cobra.ExactArgs(2),
		func(ctx context.Context, a *app, args []string) error {
			url, err := a.client.UploadStaffPhoto(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			a.opts.notifier.Success("Photo uploaded: " + url)
			return nil
		})

	rm := adminCmd(o, "rm <id>", "Remove a staff member", staffPath, cobra.ExactArgs(1),
		func(ctx context.Context, a *app, args []string) error {
			if err := a.client.DeleteStaff(ctx, args[0]); err != nil {
				return err
			}
			a.opts.notifier.Success("Staff member deleted")
			return nil
		})

	cmd.AddCommand(ls, addCmd, photoCmd, rm)
	return cmd
}

// NewEventsCmd creates the events command group
func NewEventsCmd(opts ...Option) *cobra.Command {
	o := newOptions(opts)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Manage school events",
	}
	addServerFlag(cmd, o)

	var query client.EventQuery
	ls := adminCmd(o, "ls", "List events by date", eventsPath, cobra.NoArgs,
		func(ctx context.Context, a *app, _ []string) error {
			events, err := a.client.ListEvents(ctx, query)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(a.opts.out, "No events found.")
				return nil
			}

			w := newTable(a.opts.out)
			writeHeader(w, "ID", "DATE", "TIME", "TITLE", "LOCATION", "FEATURED")
			for _, e := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n",
					e.ID, e.EventDate, deref(e.EventTime), e.Title, deref(e.Location), e.IsFeatured)
			}
			return w.Flush()
		})
	ls.Aliases = []string{"list"}
	ls.Flags().BoolVar(&query.Upcoming, "upcoming", false, "Only events from today on")
	ls.Flags().BoolVar(&query.Featured, "featured", false, "Only featured events")
	ls.Flags().IntVar(&query.Limit, "limit", 0, "Maximum number of events")

	var date, eventTime, location, description string
	var featured bool
	addCmd := adminCmd(o, "add <title>", "Add an event", eventsPath, cobra.ExactArgs(1),
		func(ctx context.Context, a *app, args []string) error {
			if _, err := time.Parse("2006-01-02", date); err != nil {
				return fmt.Errorf("--date must be YYYY-MM-DD")
			}
			event, err := a.client.CreateEvent(ctx, client.NewEvent{
				Title:       args[0],
				EventDate:   date,
				EventTime:   optional(eventTime),
				Location:    optional(location),
				Description: optional(description),
				IsFeatured:  featured,
			})
			if err != nil {
				return err
			}
			a.opts.notifier.Success(fmt.Sprintf("Added event %s (%s)", event.Title, event.ID))
			return nil
		})
	addCmd.Flags().StringVar(&date, "date", "", "Event date, YYYY-MM-DD (required)")
	addCmd.Flags().StringVar(&eventTime, "time", "", "Event time")
	addCmd.Flags().StringVar(&location, "location", "", "Location")
	addCmd.Flags().StringVar(&description, "description", "", "Description")
	addCmd.Flags().BoolVar(&featured, "featured", false, "Feature on the home page")
	_ = addCmd.MarkFlagRequired("date")

	rm := adminCmd(o, "rm <id>", "Remove an event", eventsPath, cobra.ExactArgs(1),
		func(ctx context.Context, a *app, args []string) error {
			if err := a.client.DeleteEvent(ctx, args[0]); err != nil {
				return err
			}
			a.opts.notifier.Success("Event deleted")
			return nil
		})

	cmd.AddCommand(ls, addCmd, rm)
	return cmd
}

// NewNewsCmd creates the news command group
func NewNewsCmd(opts ...Option) *cobra.Command {
	o := newOptions(opts)

	cmd := &cobra.Command{
		Use:   "news",
		Short: "Manage news articles",
	}
	addServerFlag(cmd, o)

	ls := adminCmd(o, "ls", "List articles including drafts", newsPath, cobra.NoArgs,
		func(ctx context.Context, a *app, _ []string) error {
			news, err := a.client.ListNews(ctx)
			if err != nil {
				return err
			}
			if len(news) == 0 {
				fmt.Fprintln(a.opts.out, "No articles found.")
				return nil
			}

			w := newTable(a.opts.out)
			writeHeader(w, "ID", "TITLE", "STATUS", "CREATED")
			for _, n := range news {
				status := "draft"
				if n.IsPublished {
					status = "published"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.ID, n.Title, status, n.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		})
	ls.Aliases = []string{"list"}

	var content, excerpt string
	var publish bool
	addCmd := adminCmd(o, "add <title>", "Write an article (markdown content)", newsPath, cobra.ExactArgs(1),
		func(ctx context.Context, a *app, args []string) error {
			article, err := a.client.CreateNews(ctx, client.NewNews{
				Title:       args[0],
				Content:     content,
				Excerpt:     optional(excerpt),
				IsPublished: publish,
			})
			if err != nil {
				return err
			}
			a.opts.notifier.Success(fmt.Sprintf("Saved article %s (%s)", article.Title, article.ID))
			return nil
		})
	addCmd.Flags().StringVar(&content, "content", "", "Markdown content (required)")
	addCmd.Flags().StringVar(&excerpt, "excerpt", "", "Short summary")
	addCmd.Flags().BoolVar(&publish, "publish", false, "Publish immediately")
	_ = addCmd.MarkFlagRequired("content")

	setPublished := func(use, short string, value bool, done string) *cobra.Command {
		return adminCmd(o, use, short, newsPath, cobra.ExactArgs(1),
			func(ctx context.Context, a *app, args []string) error {
				if _, err := a.client.SetNewsPublished(ctx, args[0], value); err != nil {
					return err
				}
				a.opts.notifier.Success(done)
				return nil
			})
	}

	rm := adminCmd(o, "rm <id>", "Remove an article", newsPath, cobra.ExactArgs(1),
		func(ctx context.Context, a *app, args []string) error {
			if err := a.client.DeleteNews(ctx, args[0]); err != nil {
				return err
			}
			a.opts.notifier.Success("Article deleted")
			return nil
		})

	cmd.AddCommand(ls, addCmd,
		setPublished("publish <id>", "Publish an article", true, "Article published"),
		setPublished("unpublish <id>", "Move an article back to drafts", false, "Article unpublished"),
		rm)
	return cmd
}

// NewGalleryCmd creates the gallery command group
func NewGalleryCmd(opts ...Option) *cobra.Command {
	o := newOptions(opts)

	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "Manage gallery items and categories",
	}
	addServerFlag(cmd, o)

	var category string
	ls := adminCmd(o, "ls", "List gallery items, newest first", galleryPath, cobra.NoArgs,
		func(ctx context.Context, a *app, _ []string) error {
			items, err := a.client.ListGallery(ctx, category)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(a.opts.out, "No gallery items found.")
				return nil
			}

			w := newTable(a.opts.out)
			writeHeader(w, "ID", "TITLE", "TYPE", "CATEGORY", "URL")
			for _, item := range items {
				categoryName := ""
				if item.Category != nil {
					categoryName = item.Category.Name
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", item.ID, deref(item.Title), item.MediaType, categoryName, item.MediaURL)
			}
			return w.Flush()
		})
	ls.Aliases = []string{"list"}
	ls.Flags().StringVar(&category, "category", "", "Only items in this category ID")

	var item client.NewGalleryItem
	var title, itemCategory string
	addCmd := adminCmd(o, "add <media-url>", "Add a gallery item for an existing media URL", galleryPath, cobra.ExactArgs(1),
		func(ctx context.Context, a *app, args []string) error {
			req := item
			req.MediaURL = args[0]
			req.Title = optional(title)
			req.CategoryID = optional(itemCategory)

			created, err := a.client.CreateGalleryItem(ctx, req)
			if err != nil {
				return err
			}
			a.opts.notifier.Success("Added gallery item " + created.ID)
			return nil
		})
	addCmd.Flags().StringVar(&title, "title", "", "Title")
	addCmd.Flags().StringVar(&itemCategory, "category", "", "Category ID")
	addCmd.Flags().StringVar(&item.MediaType, "type", "", "Media type, image or video (detected from the URL if empty)")

	upload := adminCmd(o, "upload <id> <file>", "Upload the media file of a gallery item", galleryPath, cobra.ExactArgs(2),
		func(ctx context.Context, a *app, args []string) error {
			url, mediaType, err := a.client.UploadGalleryMedia(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			a.opts.notifier.Success(fmt.Sprintf("Uploaded %s: %s", mediaType, url))
			return nil
		})

	rm := adminCmd(o, "rm <id>", "Remove a gallery item and its media", galleryPath, cobra.ExactArgs(1),
		func(ctx context.Context, a *app, args []string) error {
			if err := a.client.DeleteGalleryItem(ctx, args[0]); err != nil {
				return err
			}
			a.opts.notifier.Success("Gallery item deleted")
			return nil
		})

	categories := &cobra.Command{
		Use:   "categories",
		Short: "Manage gallery categories",
	}

	catLs := adminCmd(o, "ls", "List categories", galleryPath, cobra.NoArgs,
		func(ctx context.Context, a *app, _ []string) error {
			list, err := a.client.ListCategories(ctx)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(a.opts.out, "No categories found.")
				return nil
			}
			w := newTable(a.opts.out)
			writeHeader(w, "ID", "NAME", "DESCRIPTION")
			for _, c := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Name, deref(c.Description))
			}
			return w.Flush()
		})
	catLs.Aliases = []string{"list"}

	var catDescription string
	catAdd := adminCmd(o, "add <name>", "Add a category", galleryPath, cobra.ExactArgs(1),
		func(ctx context.Context, a *app, args []string) error {
			created, err := a.client.CreateCategory(ctx, args[0], optional(catDescription))
			if err != nil {
				return err
			}
			a.opts.notifier.Success(fmt.Sprintf("Added category %s (%s)", created.Name, created.ID))
			return nil
		})
	catAdd.Flags().StringVar(&catDescription, "description", "", "Description")

	catRm := adminCmd(o, "rm <id>", "Remove an empty category", galleryPath, cobra.ExactArgs(1),
		func(ctx context.Context, a *app, args []string) error {
			if err := a.client.DeleteCategory(ctx, args[0]); err != nil {
				return err
			}
			a.opts.notifier.Success("Category deleted")
			return nil
		})

	categories.AddCommand(catLs, catAdd, catRm)
	cmd.AddCommand(ls, addCmd, upload, rm, categories)
	return cmd
}

// NewAchievementsCmd creates the achievements command group
func NewAchievementsCmd(opts ...Option) *cobra.Command {
	o := newOptions(opts)

	cmd := &cobra.Command{
		Use:   "achievements",
		Short: "Manage achievements",
	}
	addServerFlag(cmd, o)

	var classFilter string
	ls := adminCmd(o, "ls", "List achievements, newest year first", achievementsPath, cobra.NoArgs,
		func(ctx context.Context, a *app, _ []string) error {
			list, err := a.client.ListAchievements(ctx, classFilter)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(a.opts.out, "No achievements found.")
				return nil
			}

			w := newTable(a.opts.out)
			writeHeader(w, "ID", "YEAR", "CLASS", "TITLE")
			for _, ach := range list {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", ach.ID, ach.Year, deref(ach.ClassLevel), ach.Title)
			}
			return w.Flush()
		})
	ls.Aliases = []string{"list"}
	ls.Flags().StringVar(&classFilter, "class", "", "Only achievements for class 10, 12 or both")

	var year, classLevel, description string
	addCmd := adminCmd(o, "add <title>", "Add an achievement", achievementsPath, cobra.ExactArgs(1),
		func(ctx context.Context, a *app, args []string) error {
			y, err := strconv.Atoi(year)
			if err != nil {
				return fmt.Errorf("--year must be a number")
			}
			created, err := a.client.CreateAchievement(ctx, client.NewAchievement{
				Title:       args[0],
				Year:        y,
				ClassLevel:  optional(classLevel),
				Description: optional(description),
			})
			if err != nil {
				return err
			}
			a.opts.notifier.Success(fmt.Sprintf("Added achievement %s (%s)", created.Title, created.ID))
			return nil
		})
	addCmd.Flags().StringVar(&year, "year", strconv.Itoa(time.Now().Year()), "Year")
	addCmd.Flags().StringVar(&classLevel, "class", "", "Class level: 10, 12 or both")
	addCmd.Flags().StringVar(&description, "description", "", "Description")

	rm := adminCmd(o, "rm <id>", "Remove an achievement", achievementsPath, cobra.ExactArgs(1),
		func(ctx context.Context, a *app, args []string) error {
			if err := a.client.DeleteAchievement(ctx, args[0]); err != nil {
				return err
			}
			a.opts.notifier.Success("Achievement deleted")
			return nil
		})

	cmd.AddCommand(ls, addCmd, rm)
	return cmd
}
