package workers

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/schoolhub-dev/schoolhub/internal/mailer"
	"github.com/schoolhub-dev/schoolhub/internal/models"
	"github.com/schoolhub-dev/schoolhub/internal/tasks"
)

// HandleInquiryNotification emails the school office about a contact inquiry
func HandleInquiryNotification(ctx context.Context, t *asynq.Task, db *gorm.DB, sender mailer.Sender, officeEmail string, logger zerolog.Logger) error {
	payload, err := tasks.ParseTaskPayload(t)
	if err != nil {
		return fmt.Errorf("failed to parse payload: %w: %w", err, asynq.SkipRetry)
	}

	if officeEmail == "" {
		logger.Warn().Str("inquiry_id", payload.InquiryID).Msg("No office email configured, skipping inquiry notification")
		return nil
	}

	var inquiry models.ContactInquiry
	if err := models.FindByID(db.WithContext(ctx), payload.InquiryID, &inquiry); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn().Str("inquiry_id", payload.InquiryID).Msg("Inquiry no longer exists, skipping notification")
			return nil
		}
		return fmt.Errorf("failed to load inquiry: %w", err)
	}

	in := mailer.Inquiry{
		Name:      inquiry.Name,
		Email:     inquiry.Email,
		Message:   inquiry.Message,
		CreatedAt: inquiry.CreatedAt,
	}
	if inquiry.Phone != nil {
		in.Phone = *inquiry.Phone
	}
	if inquiry.Subject != nil {
		in.Subject = *inquiry.Subject
	}

	msg, err := mailer.InquiryNotification(officeEmail, in)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	if _, err := sender.Send(ctx, msg); err != nil {
		logger.Error().Err(err).Str("inquiry_id", inquiry.ID).Msg("Failed to send inquiry notification")
		return err
	}

	logger.Info().Str("inquiry_id", inquiry.ID).Msg("Inquiry notification sent")
	return nil
}

// HandleNewsletterWelcome sends the welcome email to a subscriber that is still active
func HandleNewsletterWelcome(ctx context.Context, t *asynq.Task, db *gorm.DB, sender mailer.Sender, logger zerolog.Logger) error {
	payload, err := tasks.ParseTaskPayload(t)
	if err != nil {
		return fmt.Errorf("failed to parse payload: %w: %w", err, asynq.SkipRetry)
	}

	var sub models.NewsletterSubscription
	err = db.WithContext(ctx).Where("email = ?", payload.Email).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !sub.IsActive) {
		logger.Info().Str("email", payload.Email).Msg("Subscriber no longer active, skipping welcome email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load subscription: %w", err)
	}

	msg, err := mailer.NewsletterWelcome(sub.Email)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	if _, err := sender.Send(ctx, msg); err != nil {
		logger.Error().Err(err).Str("email", sub.Email).Msg("Failed to send welcome email")
		return err
	}
	return nil
}
