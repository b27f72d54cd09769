// Package content implements the site's tables: staff, events, gallery, news,
// achievements, contact inquiries, newsletter subscriptions and profiles.
package content

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/schoolhub-dev/schoolhub/internal/storage"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Service provides CRUD over the content tables
type Service struct {
	db     *gorm.DB
	store  *storage.Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new content service
func NewService(db *gorm.DB, store *storage.Store, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		store:  store,
		logger: logger.With().Str("service", "content").Logger(),
		now:    time.Now,
	}
}

// Upload is a file handed to one of the upload operations
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// notFound converts gorm's not-found error into ErrNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// uploadTo stores a file at objectPath in bucket and returns its public URL
func (s *Service) uploadTo(bucket, objectPath string, file Upload) (string, error) {
	obj, err := s.store.Upload(bucket, objectPath, file.Body, storage.Options{
		CacheControl: storage.DefaultCacheControl,
		ContentType:  file.ContentType,
		Upsert:       true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return obj.PublicURL, nil
}

// updateColumns applies a column map to the row with id and reloads it into dest
func updateColumns[T any](db *gorm.DB, id string, cols map[string]interface{}, dest *T) error {
	var existing T
	if err := db.Where("id = ?", id).First(&existing).Error; err != nil {
		return notFound(err)
	}
	if len(cols) > 0 {
		if err := db.Model(&existing).Updates(cols).Error; err != nil {
			return err
		}
	}
	return notFound(db.Where("id = ?", id).First(dest).Error)
}

// deleteByID deletes the row with id, returning ErrNotFound when nothing matched
func deleteByID[T any](db *gorm.DB, id string) error {
	var model T
	result := db.Where("id = ?", id).Delete(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// setIf adds a column to cols when the patch value is present
func setIf[V any](cols map[string]interface{}, column string, v *V) {
	if v != nil {
		cols[column] = *v
	}
}
