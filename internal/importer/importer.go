// Package importer copies the content of a legacy site database into a
// schoolhub database.
package importer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/schoolhub-dev/schoolhub/internal/anonymize"
	"github.com/schoolhub-dev/schoolhub/internal/models"
)

const batchSize = 200

// Source yields the legacy rows. pgclient.Client implements it.
type Source interface {
	Staff(ctx context.Context) ([]models.Staff, error)
	Events(ctx context.Context) ([]models.Event, error)
	GalleryCategories(ctx context.Context) ([]models.GalleryCategory, error)
	GalleryItems(ctx context.Context) ([]models.GalleryItem, error)
	News(ctx context.Context) ([]models.News, error)
	Achievements(ctx context.Context) ([]models.Achievement, error)
	ContactInquiries(ctx context.Context) ([]models.ContactInquiry, error)
	NewsletterSubscriptions(ctx context.Context) ([]models.NewsletterSubscription, error)
}

// Options controls an import
type Options struct {
	// Anonymize rules run after the copy. Nil skips anonymization.
	Anonymize []anonymize.Rule
}

// Report counts the rows written per table
type Report struct {
	Tables    map[string]int
	AnonRules int
}

// Total returns the number of rows written
func (r *Report) Total() int {
	total := 0
	for _, n := range r.Tables {
		total += n
	}
	return total
}

// Importer copies legacy rows into db
type Importer struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New creates an importer writing to db
func New(db *gorm.DB, logger zerolog.Logger) *Importer {
	return &Importer{db: db, logger: logger}
}

// Run reads every table from src and upserts it by id in a single
// transaction. Existing rows with the same id are overwritten.
func (im *Importer) Run(ctx context.Context, src Source, opts Options) (*Report, error) {
	report := &Report{Tables: make(map[string]int)}

	err := im.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		steps := []struct {
			table string
			run   func() (int, error)
		}{
			{"staff", func() (int, error) { return copyTable(ctx, tx, src.Staff) }},
			{"events", func() (int, error) { return copyTable(ctx, tx, src.Events) }},
			{"gallery_categories", func() (int, error) { return copyTable(ctx, tx, src.GalleryCategories) }},
			{"gallery_items", func() (int, error) { return copyTable(ctx, tx, src.GalleryItems) }},
			{"news", func() (int, error) { return copyTable(ctx, tx, src.News) }},
			{"achievements", func() (int, error) { return copyTable(ctx, tx, src.Achievements) }},
			{"contact_inquiries", func() (int, error) { return copyTable(ctx, tx, src.ContactInquiries) }},
			{"newsletter_subscriptions", func() (int, error) { return copyTable(ctx, tx, src.NewsletterSubscriptions) }},
		}

		for _, step := range steps {
			n, err := step.run()
			if err != nil {
				return fmt.Errorf("%s: %w", step.table, err)
			}
			report.Tables[step.table] = n
			im.logger.Info().Str("table", step.table).Int("rows", n).Msg("Imported table")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("import failed: %w", err)
	}

	if opts.Anonymize != nil {
		n, err := anonymize.Apply(ctx, im.db, opts.Anonymize, im.logger)
		if err != nil {
			return report, err
		}
		report.AnonRules = n
	}

	return report, nil
}

func copyTable[T any](ctx context.Context, tx *gorm.DB, read func(context.Context) ([]T, error)) (int, error) {
	rows, err := read(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(&rows, batchSize).Error; err != nil {
		return 0, fmt.Errorf("failed to write: %w", err)
	}
	return len(rows), nil
}
