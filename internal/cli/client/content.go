package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/schoolhub-dev/schoolhub/internal/content"
	"github.com/schoolhub-dev/schoolhub/internal/models"
)

// Dashboard returns the admin dashboard counters
func (c *Client) Dashboard(ctx context.Context) (*content.DashboardStats, error) {
	var stats content.DashboardStats
	if err := c.authed(ctx, http.MethodGet, "/api/admin/dashboard", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// LatestUpdates returns the ticker feed of upcoming events
func (c *Client) LatestUpdates(ctx context.Context) ([]content.UpdateItem, error) {
	var items []content.UpdateItem
	if err := c.do(ctx, http.MethodGet, "/api/updates", "", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateUserRequest creates an account from the admin console
type CreateUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// CreateUser creates a new account
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	var user User
	if err := c.authed(ctx, http.MethodPost, "/api/admin/users", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers lists every account
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.authed(ctx, http.MethodGet, "/api/admin/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SetProfileRole changes a user's profile role
func (c *Client) SetProfileRole(ctx context.Context, userID, role string) (*models.Profile, error) {
	var profile models.Profile
	err := c.authed(ctx, http.MethodPatch, "/api/admin/profiles/"+url.PathEscape(userID),
		map[string]string{"role": role}, &profile)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListStaff lists staff in display order
func (c *Client) ListStaff(ctx context.Context) ([]models.Staff, error) {
	var staff []models.Staff
	if err := c.do(ctx, http.MethodGet, "/api/staff", "", nil, &staff); err != nil {
		return nil, err
	}
	return staff, nil
}

// NewStaff is the body of a staff creation
type NewStaff struct {
	Name         string  `json:"name"`
	Position     string  `json:"position"`
	Bio          *string `json:"bio,omitempty"`
	IsDirector   bool    `json:"is_director"`
	DisplayOrder int     `json:"display_order"`
}

// CreateStaff adds a staff member
func (c *Client) CreateStaff(ctx context.Context, req NewStaff) (*models.Staff, error) {
	var staff models.Staff
	if err := c.authed(ctx, http.MethodPost, "/api/admin/staff", req, &staff); err != nil {
		return nil, err
	}
	return &staff, nil
}

// DeleteStaff removes a staff member
func (c *Client) DeleteStaff(ctx context.Context, id string) error {
	return c.authed(ctx, http.MethodDelete, "/api/admin/staff/"+url.PathEscape(id), nil, nil)
}

// UploadStaffPhoto uploads a photo file for a staff member and returns its public URL
func (c *Client) UploadStaffPhoto(ctx context.Context, id, filePath string) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.upload(ctx, "/api/admin/staff/"+url.PathEscape(id)+"/photo", filePath, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// EventQuery filters ListEvents
type EventQuery struct {
	Upcoming bool
	Featured bool
	Limit    int
}

// ListEvents lists events in date order
func (c *Client) ListEvents(ctx context.Context, q EventQuery) ([]models.Event, error) {
	params := url.Values{}
	if q.Upcoming {
		params.Set("upcoming", "true")
	}
	if q.Featured {
		params.Set("featured", "true")
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var events []models.Event
	if err := c.do(ctx, http.MethodGet, withQuery("/api/events", params), "", nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// NewEvent is the body of an event creation
type NewEvent struct {
	Title       string  `json:"title"`
	EventDate   string  `json:"event_date"`
	EventTime   *string `json:"event_time,omitempty"`
	Location    *string `json:"location,omitempty"`
	Description *string `json:"description,omitempty"`
	IsFeatured  bool    `json:"is_featured"`
}

// CreateEvent adds an event
func (c *Client) CreateEvent(ctx context.Context, req NewEvent) (*models.Event, error) {
	var event models.Event
	if err := c.authed(ctx, http.MethodPost, "/api/admin/events", req, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// DeleteEvent removes an event
func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	return c.authed(ctx, http.MethodDelete, "/api/admin/events/"+url.PathEscape(id), nil, nil)
}

// ListNews lists every article including drafts
func (c *Client) ListNews(ctx context.Context) ([]models.News, error) {
	var news []models.News
	if err := c.authed(ctx, http.MethodGet, "/api/admin/news", nil, &news); err != nil {
		return nil, err
	}
	return news, nil
}

// NewNews is the body of an article creation
type NewNews struct {
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	Excerpt     *string `json:"excerpt,omitempty"`
	IsPublished bool    `json:"is_published"`
}

// CreateNews adds an article
func (c *Client) CreateNews(ctx context.Context, req NewNews) (*models.News, error) {
	var article models.News
	if err := c.authed(ctx, http.MethodPost, "/api/admin/news", req, &article); err != nil {
		return nil, err
	}
	return &article, nil
}

// SetNewsPublished publishes or unpublishes an article
func (c *Client) SetNewsPublished(ctx context.Context, id string, published bool) (*models.News, error) {
	var article models.News
	err := c.authed(ctx, http.MethodPost, "/api/admin/news/"+url.PathEscape(id)+"/publish",
		map[string]bool{"value": published}, &article)
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// DeleteNews removes an article
func (c *Client) DeleteNews(ctx context.Context, id string) error {
	return c.authed(ctx, http.MethodDelete, "/api/admin/news/"+url.PathEscape(id), nil, nil)
}

// ListGallery lists gallery items, optionally in one category
func (c *Client) ListGallery(ctx context.Context, categoryID string) ([]models.GalleryItem, error) {
	params := url.Values{}
	if categoryID != "" {
		params.Set("category_id", categoryID)
	}
	var items []models.GalleryItem
	if err := c.do(ctx, http.MethodGet, withQuery("/api/gallery", params), "", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ListCategories lists gallery categories by name
func (c *Client) ListCategories(ctx context.Context) ([]models.GalleryCategory, error) {
	var categories []models.GalleryCategory
	if err := c.do(ctx, http.MethodGet, "/api/gallery/categories", "", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// CreateCategory adds a gallery category
func (c *Client) CreateCategory(ctx context.Context, name string, description *string) (*models.GalleryCategory, error) {
	req := struct {
		Name        string  `json:"name"`
		Description *string `json:"description,omitempty"`
	}{Name: name, Description: description}

	var category models.GalleryCategory
	if err := c.authed(ctx, http.MethodPost, "/api/admin/gallery/categories", req, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

// DeleteCategory removes an empty gallery category
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.authed(ctx, http.MethodDelete, "/api/admin/gallery/categories/"+url.PathEscape(id), nil, nil)
}

// NewGalleryItem is the body of a gallery item creation
type NewGalleryItem struct {
	Title      *string `json:"title,omitempty"`
	MediaURL   string  `json:"media_url"`
	MediaType  string  `json:"media_type,omitempty"`
	CategoryID *string `json:"category_id,omitempty"`
}

// CreateGalleryItem adds a gallery item pointing at an existing media URL
func (c *Client) CreateGalleryItem(ctx context.Context, req NewGalleryItem) (*models.GalleryItem, error) {
	var item models.GalleryItem
	if err := c.authed(ctx, http.MethodPost, "/api/admin/gallery", req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UploadGalleryMedia uploads a file for a gallery item and returns its URL and media type
func (c *Client) UploadGalleryMedia(ctx context.Context, id, filePath string) (string, string, error) {
	var resp struct {
		URL  string `json:"url"`
		Type string `json:"type"`
	}
	if err := c.upload(ctx, "/api/admin/gallery/"+url.PathEscape(id)+"/media", filePath, &resp); err != nil {
		return "", "", err
	}
	return resp.URL, resp.Type, nil
}

// DeleteGalleryItem removes a gallery item and its stored media
func (c *Client) DeleteGalleryItem(ctx context.Context, id string) error {
	return c.authed(ctx, http.MethodDelete, "/api/admin/gallery/"+url.PathEscape(id), nil, nil)
}

// ListAchievements lists achievements, newest year first
func (c *Client) ListAchievements(ctx context.Context, classLevel string) ([]models.Achievement, error) {
	params := url.Values{}
	if classLevel != "" {
		params.Set("class_level", classLevel)
	}
	var achievements []models.Achievement
	if err := c.do(ctx, http.MethodGet, withQuery("/api/achievements", params), "", nil, &achievements); err != nil {
		return nil, err
	}
	return achievements, nil
}

// NewAchievement is the body of an achievement creation
type NewAchievement struct {
	Title       string  `json:"title"`
	Year        int     `json:"year"`
	ClassLevel  *string `json:"class_level,omitempty"`
	Description *string `json:"description,omitempty"`
}

// CreateAchievement adds an achievement
func (c *Client) CreateAchievement(ctx context.Context, req NewAchievement) (*models.Achievement, error) {
	var achievement models.Achievement
	if err := c.authed(ctx, http.MethodPost, "/api/admin/achievements", req, &achievement); err != nil {
		return nil, err
	}
	return &achievement, nil
}

// DeleteAchievement removes an achievement
func (c *Client) DeleteAchievement(ctx context.Context, id string) error {
	return c.authed(ctx, http.MethodDelete, "/api/admin/achievements/"+url.PathEscape(id), nil, nil)
}

// ListInquiries lists contact inquiries, newest first. unreadOnly limits the list to unread ones.
func (c *Client) ListInquiries(ctx context.Context, unreadOnly bool) ([]models.ContactInquiry, error) {
	params := url.Values{}
	if unreadOnly {
		params.Set("read", "false")
	}
	var inquiries []models.ContactInquiry
	if err := c.authed(ctx, http.MethodGet, withQuery("/api/admin/inquiries", params), nil, &inquiries); err != nil {
		return nil, err
	}
	return inquiries, nil
}

// GetInquiry returns one inquiry without changing its read flag
func (c *Client) GetInquiry(ctx context.Context, id string) (*models.ContactInquiry, error) {
	var inquiry models.ContactInquiry
	if err := c.authed(ctx, http.MethodGet, "/api/admin/inquiries/"+url.PathEscape(id), nil, &inquiry); err != nil {
		return nil, err
	}
	return &inquiry, nil
}

// MarkInquiryRead sets the read flag of an inquiry
func (c *Client) MarkInquiryRead(ctx context.Context, id string, read bool) (*models.ContactInquiry, error) {
	var inquiry models.ContactInquiry
	err := c.authed(ctx, http.MethodPatch, "/api/admin/inquiries/"+url.PathEscape(id),
		map[string]bool{"is_read": read}, &inquiry)
	if err != nil {
		return nil, err
	}
	return &inquiry, nil
}

// ListSubscribers lists newsletter subscriptions; all includes inactive ones
func (c *Client) ListSubscribers(ctx context.Context, all bool) ([]models.NewsletterSubscription, error) {
	params := url.Values{}
	if all {
		params.Set("all", "true")
	}
	var subs []models.NewsletterSubscription
	if err := c.authed(ctx, http.MethodGet, withQuery("/api/admin/subscribers", params), nil, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// upload sends filePath as the multipart "file" field
func (c *Client) upload(ctx context.Context, path, filePath string, out interface{}) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finish upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req, token, out)
}

func withQuery(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}
