package content

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"gorm.io/gorm"

	"github.com/schoolhub-dev/schoolhub/internal/models"
	"github.com/schoolhub-dev/schoolhub/internal/storage"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".webm": true, ".avi": true, ".mkv": true, ".m4v": true,
}

// ErrCategoryInUse is returned when deleting a category that still has items
var ErrCategoryInUse = errors.New("cannot delete category with existing items, move or delete the items first")

// FeaturedGallerySize is the number of latest items shown as featured
const FeaturedGallerySize = 8

// MediaTypeFor classifies a file as image or video. The content type wins
// when present; otherwise the extension decides.
func MediaTypeFor(filename, contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.MediaImage
	case strings.HasPrefix(contentType, "video/"):
		return models.MediaVideo
	case videoExtensions[strings.ToLower(path.Ext(filename))]:
		return models.MediaVideo
	}
	return models.MediaImage
}

// GalleryFilter narrows a gallery listing
type GalleryFilter struct {
	CategoryID string
	Featured   bool // The latest FeaturedGallerySize items
	Limit      int
}

// CategoryPatch is a partial update; nil fields are left unchanged
type CategoryPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// GalleryItemPatch is a partial update; nil fields are left unchanged
type GalleryItemPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	MediaURL    *string `json:"media_url"`
	MediaType   *string `json:"media_type" binding:"omitempty,media_type"`
	CategoryID  *string `json:"category_id"`
}

func (p GalleryItemPatch) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	setIf(cols, "title", p.Title)
	setIf(cols, "description", p.Description)
	setIf(cols, "media_url", p.MediaURL)
	setIf(cols, "media_type", p.MediaType)
	if p.CategoryID != nil {
		// An empty category clears the assignment
		if *p.CategoryID == "" {
			cols["category_id"] = nil
		} else {
			cols["category_id"] = *p.CategoryID
		}
	}
	return cols
}

// ListCategories returns all categories by name
func (s *Service) ListCategories(ctx context.Context) ([]models.GalleryCategory, error) {
	var categories []models.GalleryCategory
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to list gallery categories: %w", err)
	}
	return categories, nil
}

// CreateCategory inserts a category
func (s *Service) CreateCategory(ctx context.Context, category *models.GalleryCategory) error {
	category.ID = ""
	if err := s.db.WithContext(ctx).Create(category).Error; err != nil {
		return fmt.Errorf("failed to create gallery category: %w", err)
	}
	return nil
}

// UpdateCategory applies a partial update
func (s *Service) UpdateCategory(ctx context.Context, id string, patch CategoryPatch) (*models.GalleryCategory, error) {
	cols := map[string]interface{}{}
	setIf(cols, "name", patch.Name)
	setIf(cols, "description", patch.Description)

	var category models.GalleryCategory
	if err := updateColumns(s.db.WithContext(ctx), id, cols, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

// DeleteCategory removes an empty category
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items int64
		if err := tx.Model(&models.GalleryItem{}).Where("category_id = ?", id).Count(&items).Error; err != nil {
			return fmt.Errorf("failed to count gallery items: %w", err)
		}
		if items > 0 {
			return ErrCategoryInUse
		}
		return deleteByID[models.GalleryCategory](tx, id)
	})
}

// ListGalleryItems returns items newest first with their category
func (s *Service) ListGalleryItems(ctx context.Context, f GalleryFilter) ([]models.GalleryItem, error) {
	q := s.db.WithContext(ctx).Preload("Category").Order("created_at DESC")
	if f.CategoryID != "" {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	switch {
	case f.Limit > 0:
		q = q.Limit(f.Limit)
	case f.Featured:
		q = q.Limit(FeaturedGallerySize)
	}

	var items []models.GalleryItem
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list gallery items: %w", err)
	}
	return items, nil
}

// GetGalleryItem returns one item with its category
func (s *Service) GetGalleryItem(ctx context.Context, id string) (*models.GalleryItem, error) {
	var item models.GalleryItem
	if err := models.FindByIDWithPreload(s.db.WithContext(ctx), id, &item, "Category"); err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

// CreateGalleryItem inserts an item
func (s *Service) CreateGalleryItem(ctx context.Context, item *models.GalleryItem) error {
	item.ID = ""
	if item.MediaType == "" {
		item.MediaType = MediaTypeFor(item.MediaURL, "")
	}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("failed to create gallery item: %w", err)
	}
	return nil
}

// UpdateGalleryItem applies a partial update
func (s *Service) UpdateGalleryItem(ctx context.Context, id string, patch GalleryItemPatch) (*models.GalleryItem, error) {
	if err := updateColumns(s.db.WithContext(ctx), id, patch.columns(), &models.GalleryItem{}); err != nil {
		return nil, err
	}
	return s.GetGalleryItem(ctx, id)
}

// DeleteGalleryItem deletes the row and its stored media. A failure to remove
// the media is logged and does not stop the row deletion.
func (s *Service) DeleteGalleryItem(ctx context.Context, id string) error {
	item, err := s.GetGalleryItem(ctx, id)
	if err != nil {
		return err
	}

	if objectPath, ok := s.store.PathFromPublicURL(storage.BucketGalleryMedia, item.MediaURL); ok {
		if err := s.store.Remove(storage.BucketGalleryMedia, objectPath); err != nil {
			s.logger.Warn().Err(err).Str("item_id", id).Str("path", objectPath).
				Msg("Failed to remove gallery media")
		}
	}

	return deleteByID[models.GalleryItem](s.db.WithContext(ctx), id)
}

// UploadGalleryMedia stores a file for an item under "<type>s/" and points the item at it
func (s *Service) UploadGalleryMedia(ctx context.Context, id string, file Upload) (url, mediaType string, err error) {
	if _, err := s.GetGalleryItem(ctx, id); err != nil {
		return "", "", err
	}

	mediaType = MediaTypeFor(file.Filename, file.ContentType)
	url, err = s.uploadTo(storage.BucketGalleryMedia, path.Join(mediaType+"s", path.Base(storage.ObjectName(id, file.Filename))), file)
	if err != nil {
		return "", "", err
	}

	if _, err := s.UpdateGalleryItem(ctx, id, GalleryItemPatch{MediaURL: &url, MediaType: &mediaType}); err != nil {
		return "", "", err
	}
	return url, mediaType, nil
}
