package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/schoolhub-dev/schoolhub/internal/models"
)

// InquiryFilter narrows an inquiries listing. Read is nil for all inquiries.
type InquiryFilter struct {
	Read  *bool
	Limit int
}

// SubscriptionResult reports what Subscribe did
type SubscriptionResult string

const (
	SubscriptionCreated       SubscriptionResult = "created"
	SubscriptionReactivated   SubscriptionResult = "reactivated"
	SubscriptionAlreadyActive SubscriptionResult = "already_active"
)

// Message is the user-facing text for a subscription result
func (r SubscriptionResult) Message() string {
	switch r {
	case SubscriptionAlreadyActive:
		return "You are already subscribed to our newsletter!"
	case SubscriptionReactivated:
		return "Welcome back! Your subscription has been reactivated."
	default:
		return "Thank you for subscribing to our newsletter!"
	}
}

// UnsubscribedMessage is the user-facing text after an unsubscribe
const UnsubscribedMessage = "You have been unsubscribed from our newsletter."

// Welcome reports whether the subscriber should receive a welcome email
func (r SubscriptionResult) Welcome() bool {
	return r != SubscriptionAlreadyActive
}

// SubmitInquiry stores a contact form message as unread
func (s *Service) SubmitInquiry(ctx context.Context, inquiry *models.ContactInquiry) error {
	inquiry.ID = ""
	inquiry.IsRead = false
	if err := s.db.WithContext(ctx).Create(inquiry).Error; err != nil {
		return fmt.Errorf("failed to submit inquiry: %w", err)
	}
	return nil
}

// ListInquiries returns inquiries newest first
func (s *Service) ListInquiries(ctx context.Context, f InquiryFilter) ([]models.ContactInquiry, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if f.Read != nil {
		q = q.Where("is_read = ?", *f.Read)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var inquiries []models.ContactInquiry
	if err := q.Find(&inquiries).Error; err != nil {
		return nil, fmt.Errorf("failed to list inquiries: %w", err)
	}
	return inquiries, nil
}

// GetInquiry returns one inquiry
func (s *Service) GetInquiry(ctx context.Context, id string) (*models.ContactInquiry, error) {
	var inquiry models.ContactInquiry
	if err := models.FindByID(s.db.WithContext(ctx), id, &inquiry); err != nil {
		return nil, notFound(err)
	}
	return &inquiry, nil
}

// MarkInquiryRead sets the read flag
func (s *Service) MarkInquiryRead(ctx context.Context, id string, read bool) (*models.ContactInquiry, error) {
	var inquiry models.ContactInquiry
	if err := updateColumns(s.db.WithContext(ctx), id, map[string]interface{}{"is_read": read}, &inquiry); err != nil {
		return nil, err
	}
	return &inquiry, nil
}

// DeleteInquiry removes an inquiry
func (s *Service) DeleteInquiry(ctx context.Context, id string) error {
	return deleteByID[models.ContactInquiry](s.db.WithContext(ctx), id)
}

// Subscribe adds an address to the newsletter, reactivating it if it was
// unsubscribed before
func (s *Service) Subscribe(ctx context.Context, email string) (SubscriptionResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	var result SubscriptionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.NewsletterSubscription
		err := tx.Where("email = ?", email).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			result = SubscriptionCreated
			return tx.Create(&models.NewsletterSubscription{Email: email, IsActive: true}).Error
		case err != nil:
			return err
		case existing.IsActive:
			result = SubscriptionAlreadyActive
			return nil
		default:
			result = SubscriptionReactivated
			return tx.Model(&existing).Update("is_active", true).Error
		}
	})
	if err != nil {
		return "", fmt.Errorf("failed to subscribe: %w", err)
	}
	return result, nil
}

// Unsubscribe deactivates an address. Unknown addresses are not an error.
func (s *Service) Unsubscribe(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	err := s.db.WithContext(ctx).Model(&models.NewsletterSubscription{}).
		Where("email = ?", email).
		Update("is_active", false).Error
	if err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}

// ListSubscribers returns subscriptions newest first, active only unless all is set
func (s *Service) ListSubscribers(ctx context.Context, all bool) ([]models.NewsletterSubscription, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if !all {
		q = q.Where("is_active = ?", true)
	}

	var subs []models.NewsletterSubscription
	if err := q.Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return subs, nil
}
