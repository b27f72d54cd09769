package content

import (
	"context"
	"fmt"

	"github.com/schoolhub-dev/schoolhub/internal/models"
	"github.com/schoolhub-dev/schoolhub/internal/storage"
)

const dateLayout = "2006-01-02"

// EventFilter narrows an events listing
type EventFilter struct {
	Featured bool
	Upcoming bool // event_date >= today
	Limit    int
}

// EventPatch is a partial update; nil fields are left unchanged
type EventPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	EventDate   *string `json:"event_date" binding:"omitempty,datetime=2006-01-02"`
	EventTime   *string `json:"event_time"`
	Location    *string `json:"location"`
	ImageURL    *string `json:"image_url"`
	IsFeatured  *bool   `json:"is_featured"`
}

func (p EventPatch) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	setIf(cols, "title", p.Title)
	setIf(cols, "description", p.Description)
	setIf(cols, "event_date", p.EventDate)
	setIf(cols, "event_time", p.EventTime)
	setIf(cols, "location", p.Location)
	setIf(cols, "image_url", p.ImageURL)
	setIf(cols, "is_featured", p.IsFeatured)
	return cols
}

// ListEvents returns events in date order
func (s *Service) ListEvents(ctx context.Context, f EventFilter) ([]models.Event, error) {
	q := s.db.WithContext(ctx).Order("event_date ASC")
	if f.Featured {
		q = q.Where("is_featured = ?", true)
	}
	if f.Upcoming {
		q = q.Where("event_date >= ?", s.now().Format(dateLayout))
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var events []models.Event
	if err := q.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// EventsBetween returns events whose date lies in [start, end]
func (s *Service) EventsBetween(ctx context.Context, start, end string) ([]models.Event, error) {
	var events []models.Event
	err := s.db.WithContext(ctx).
		Where("event_date >= ? AND event_date <= ?", start, end).
		Order("event_date ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events by date range: %w", err)
	}
	return events, nil
}

// GetEvent returns one event
func (s *Service) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	if err := models.FindByID(s.db.WithContext(ctx), id, &event); err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

// CreateEvent inserts an event
func (s *Service) CreateEvent(ctx context.Context, event *models.Event) error {
	event.ID = ""
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// UpdateEvent applies a partial update
func (s *Service) UpdateEvent(ctx context.Context, id string, patch EventPatch) (*models.Event, error) {
	var event models.Event
	if err := updateColumns(s.db.WithContext(ctx), id, patch.columns(), &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// DeleteEvent removes an event
func (s *Service) DeleteEvent(ctx context.Context, id string) error {
	return deleteByID[models.Event](s.db.WithContext(ctx), id)
}

// UploadEventImage stores an image and points the event at it
func (s *Service) UploadEventImage(ctx context.Context, id string, file Upload) (string, error) {
	if _, err := s.GetEvent(ctx, id); err != nil {
		return "", err
	}
	url, err := s.uploadTo(storage.BucketEventImages, storage.ObjectName(id, file.Filename), file)
	if err != nil {
		return "", err
	}
	if _, err := s.UpdateEvent(ctx, id, EventPatch{ImageURL: &url}); err != nil {
		return "", err
	}
	return url, nil
}
