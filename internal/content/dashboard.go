package content

import (
	"context"
	"fmt"

	"github.com/schoolhub-dev/schoolhub/internal/models"
)

// DashboardStats are the counters on the admin dashboard
type DashboardStats struct {
	Staff           int64 `json:"staff"`
	Events          int64 `json:"events"`
	GalleryItems    int64 `json:"gallery_items"`
	News            int64 `json:"news"`
	Achievements    int64 `json:"achievements"`
	UnreadInquiries int64 `json:"unread_inquiries"`
}

// Dashboard counts the rows in each content table
func (s *Service) Dashboard(ctx context.Context) (*DashboardStats, error) {
	db := s.db.WithContext(ctx)
	stats := &DashboardStats{}

	counts := []struct {
		name  string
		model interface{}
		where []interface{}
		dest  *int64
	}{
		{"staff", &models.Staff{}, nil, &stats.Staff},
		{"events", &models.Event{}, nil, &stats.Events},
		{"gallery items", &models.GalleryItem{}, nil, &stats.GalleryItems},
		{"news", &models.News{}, nil, &stats.News},
		{"achievements", &models.Achievement{}, nil, &stats.Achievements},
		{"inquiries", &models.ContactInquiry{}, []interface{}{"is_read = ?", false}, &stats.UnreadInquiries},
	}

	for _, c := range counts {
		q := db.Model(c.model)
		if len(c.where) > 0 {
			q = q.Where(c.where[0], c.where[1:]...)
		}
		if err := q.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.name, err)
		}
	}
	return stats, nil
}

// UpdateItem is one entry of the latest updates feed
type UpdateItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	EventDate string `json:"event_date"`
}

// UpdatesFeedSize is the number of entries in the latest updates feed
const UpdatesFeedSize = 5

// LatestUpdates returns the next upcoming events for the updates ticker
func (s *Service) LatestUpdates(ctx context.Context) ([]UpdateItem, error) {
	events, err := s.ListEvents(ctx, EventFilter{Upcoming: true, Limit: UpdatesFeedSize})
	if err != nil {
		return nil, err
	}
	items := make([]UpdateItem, 0, len(events))
	for _, e := range events {
		items = append(items, UpdateItem{ID: e.ID, Title: e.Title, EventDate: e.EventDate})
	}
	return items, nil
}
