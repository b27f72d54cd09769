// Package pgclient reads the content tables of a legacy Supabase (PostgreSQL)
// school site database.
package pgclient

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	_ "github.com/lib/pq"

	"github.com/schoolhub-dev/schoolhub/internal/models"
)

// Tables lists the legacy tables the importer reads, parents before children
var Tables = []string{
	"staff",
	"events",
	"gallery_categories",
	"gallery_items",
	"news",
	"achievements",
	"contact_inquiries",
	"newsletter_subscriptions",
}

// Client wraps a PostgreSQL connection
type Client struct {
	db *sql.DB
}

// NewClient creates a new PostgreSQL client
func NewClient(connectionString string) (*Client, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	return &Client{db: db}, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping tests the database connection
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// GetVersion retrieves the PostgreSQL version string
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	var version string
	if err := c.db.QueryRowContext(ctx, "SHOW server_version").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to query PostgreSQL version: %w", err)
	}
	return version, nil
}

// MissingTables returns the entries of Tables that do not exist in the public schema
func (c *Client) MissingTables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	var missing []string
	for _, t := range Tables {
		if !present[t] {
			missing = append(missing, t)
		}
	}
	sort.Strings(missing)
	return missing, nil
}

// Staff reads the staff table
func (c *Client) Staff(ctx context.Context) ([]models.Staff, error) {
	return query(ctx, c.db, `
		SELECT id, name, position, qualifications, experience, photo_url, bio,
		       is_director, display_order, created_at
		FROM staff ORDER BY display_order, created_at`,
		func(rows *sql.Rows) (models.Staff, error) {
			var s models.Staff
			var qualifications, experience, photo, bio sql.NullString
			err := rows.Scan(&s.ID, &s.Name, &s.Position, &qualifications, &experience, &photo, &bio,
				&s.IsDirector, &s.DisplayOrder, &s.CreatedAt)
			s.Qualifications = nullable(qualifications)
			s.Experience = nullable(experience)
			s.PhotoURL = nullable(photo)
			s.Bio = nullable(bio)
			return s, err
		})
}

// Events reads the events table. Dates are returned as YYYY-MM-DD.
func (c *Client) Events(ctx context.Context) ([]models.Event, error) {
	return query(ctx, c.db, `
		SELECT id, title, description, event_date, event_time::text, location, image_url,
		       is_featured, created_at
		FROM events ORDER BY event_date`,
		func(rows *sql.Rows) (models.Event, error) {
			var e models.Event
			var date time.Time
			var description, eventTime, location, image sql.NullString
			err := rows.Scan(&e.ID, &e.Title, &description, &date, &eventTime, &location, &image,
				&e.IsFeatured, &e.CreatedAt)
			e.EventDate = date.Format("2006-01-02")
			e.Description = nullable(description)
			e.EventTime = nullable(eventTime)
			e.Location = nullable(location)
			e.ImageURL = nullable(image)
			return e, err
		})
}

// GalleryCategories reads the gallery_categories table
func (c *Client) GalleryCategories(ctx context.Context) ([]models.GalleryCategory, error) {
	return query(ctx, c.db, `
		SELECT id, name, description, created_at
		FROM gallery_categories ORDER BY name`,
		func(rows *sql.Rows) (models.GalleryCategory, error) {
			var gc models.GalleryCategory
			var description sql.NullString
			err := rows.Scan(&gc.ID, &gc.Name, &description, &gc.CreatedAt)
			gc.Description = nullable(description)
			return gc, err
		})
}

// GalleryItems reads the gallery_items table
func (c *Client) GalleryItems(ctx context.Context) ([]models.GalleryItem, error) {
	return query(ctx, c.db, `
		SELECT id, title, description, media_url, media_type, category_id, created_at
		FROM gallery_items ORDER BY created_at`,
		func(rows *sql.Rows) (models.GalleryItem, error) {
			var item models.GalleryItem
			var title, description, category sql.NullString
			err := rows.Scan(&item.ID, &title, &description, &item.MediaURL, &item.MediaType, &category, &item.CreatedAt)
			item.Title = nullable(title)
			item.Description = nullable(description)
			item.CategoryID = nullable(category)
			return item, err
		})
}

// News reads the news table
func (c *Client) News(ctx context.Context) ([]models.News, error) {
	return query(ctx, c.db, `
		SELECT id, title, content, excerpt, is_published, is_featured, created_at
		FROM news ORDER BY created_at`,
		func(rows *sql.Rows) (models.News, error) {
			var n models.News
			var excerpt sql.NullString
			err := rows.Scan(&n.ID, &n.Title, &n.Content, &excerpt, &n.IsPublished, &n.IsFeatured, &n.CreatedAt)
			n.Excerpt = nullable(excerpt)
			return n, err
		})
}

// Achievements reads the achievements table
func (c *Client) Achievements(ctx context.Context) ([]models.Achievement, error) {
	return query(ctx, c.db, `
		SELECT id, title, description, class_level, year, image_url, is_featured, created_at
		FROM achievements ORDER BY year DESC, title`,
		func(rows *sql.Rows) (models.Achievement, error) {
			var a models.Achievement
			var description, classLevel, image sql.NullString
			err := rows.Scan(&a.ID, &a.Title, &description, &classLevel, &a.Year, &image, &a.IsFeatured, &a.CreatedAt)
			a.Description = nullable(description)
			a.ClassLevel = nullable(classLevel)
			a.ImageURL = nullable(image)
			return a, err
		})
}

// ContactInquiries reads the contact_inquiries table
func (c *Client) ContactInquiries(ctx context.Context) ([]models.ContactInquiry, error) {
	return query(ctx, c.db, `
		SELECT id, name, email, phone, subject, message, is_read, created_at
		FROM contact_inquiries ORDER BY created_at`,
		func(rows *sql.Rows) (models.ContactInquiry, error) {
			var q models.ContactInquiry
			var phone, subject sql.NullString
			err := rows.Scan(&q.ID, &q.Name, &q.Email, &phone, &subject, &q.Message, &q.IsRead, &q.CreatedAt)
			q.Phone = nullable(phone)
			q.Subject = nullable(subject)
			return q, err
		})
}

// NewsletterSubscriptions reads the newsletter_subscriptions table
func (c *Client) NewsletterSubscriptions(ctx context.Context) ([]models.NewsletterSubscription, error) {
	return query(ctx, c.db, `
		SELECT id, email, is_active, created_at
		FROM newsletter_subscriptions ORDER BY created_at`,
		func(rows *sql.Rows) (models.NewsletterSubscription, error) {
			var s models.NewsletterSubscription
			err := rows.Scan(&s.ID, &s.Email, &s.IsActive, &s.CreatedAt)
			return s, err
		})
}

func query[T any](ctx context.Context, db *sql.DB, q string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

// WithTimeout wraps a context with a timeout for database operations
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}
