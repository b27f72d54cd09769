package content

import (
	"context"
	"fmt"

	"github.com/schoolhub-dev/schoolhub/internal/models"
	"github.com/schoolhub-dev/schoolhub/internal/storage"
)

// AchievementFilter narrows an achievements listing
type AchievementFilter struct {
	Featured   bool
	ClassLevel string // Matches the level itself or "both"
	Year       int
	Limit      int
}

// AchievementPatch is a partial update; nil fields are left unchanged
type AchievementPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ClassLevel  *string `json:"class_level" binding:"omitempty,class_level"`
	Year        *int    `json:"year" binding:"omitempty,min=1900,max=2200"`
	ImageURL    *string `json:"image_url"`
	IsFeatured  *bool   `json:"is_featured"`
}

func (p AchievementPatch) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	setIf(cols, "title", p.Title)
	setIf(cols, "description", p.Description)
	setIf(cols, "class_level", p.ClassLevel)
	setIf(cols, "year", p.Year)
	setIf(cols, "image_url", p.ImageURL)
	setIf(cols, "is_featured", p.IsFeatured)
	return cols
}

// ValidClassLevel reports whether level is an accepted class level
func ValidClassLevel(level string) bool {
	switch level {
	case models.ClassLevel10, models.ClassLevel12, models.ClassLevelBoth:
		return true
	}
	return false
}

// ListAchievements returns achievements by year (newest first) then title
func (s *Service) ListAchievements(ctx context.Context, f AchievementFilter) ([]models.Achievement, error) {
	q := s.db.WithContext(ctx).Order("year DESC").Order("title ASC")
	if f.Featured {
		q = q.Where("is_featured = ?", true)
	}
	if f.ClassLevel != "" {
		q = q.Where("class_level IN ?", []string{f.ClassLevel, models.ClassLevelBoth})
	}
	if f.Year > 0 {
		q = q.Where("year = ?", f.Year)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var achievements []models.Achievement
	if err := q.Find(&achievements).Error; err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	return achievements, nil
}

// AchievementYears returns the distinct years, newest first
func (s *Service) AchievementYears(ctx context.Context) ([]int, error) {
	var years []int
	err := s.db.WithContext(ctx).Model(&models.Achievement{}).
		Distinct("year").
		Order("year DESC").
		Pluck("year", &years).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list achievement years: %w", err)
	}
	return years, nil
}

// GetAchievement returns one achievement
func (s *Service) GetAchievement(ctx context.Context, id string) (*models.Achievement, error) {
	var achievement models.Achievement
	if err := models.FindByID(s.db.WithContext(ctx), id, &achievement); err != nil {
		return nil, notFound(err)
	}
	return &achievement, nil
}

// CreateAchievement inserts an achievement
func (s *Service) CreateAchievement(ctx context.Context, achievement *models.Achievement) error {
	if achievement.ClassLevel != nil && !ValidClassLevel(*achievement.ClassLevel) {
		return fmt.Errorf("%w: class_level must be 10, 12 or both", ErrInvalidInput)
	}
	achievement.ID = ""
	if err := s.db.WithContext(ctx).Create(achievement).Error; err != nil {
		return fmt.Errorf("failed to create achievement: %w", err)
	}
	return nil
}

// UpdateAchievement applies a partial update
func (s *Service) UpdateAchievement(ctx context.Context, id string, patch AchievementPatch) (*models.Achievement, error) {
	if patch.ClassLevel != nil && !ValidClassLevel(*patch.ClassLevel) {
		return nil, fmt.Errorf("%w: class_level must be 10, 12 or both", ErrInvalidInput)
	}
	var achievement models.Achievement
	if err := updateColumns(s.db.WithContext(ctx), id, patch.columns(), &achievement); err != nil {
		return nil, err
	}
	return &achievement, nil
}

// DeleteAchievement removes an achievement
func (s *Service) DeleteAchievement(ctx context.Context, id string) error {
	return deleteByID[models.Achievement](s.db.WithContext(ctx), id)
}

// SetAchievementFeatured sets the featured flag
func (s *Service) SetAchievementFeatured(ctx context.Context, id string, featured bool) (*models.Achievement, error) {
	return s.UpdateAchievement(ctx, id, AchievementPatch{IsFeatured: &featured})
}

// UploadAchievementImage stores an image and points the achievement at it
func (s *Service) UploadAchievementImage(ctx context.Context, id string, file Upload) (string, error) {
	if _, err := s.GetAchievement(ctx, id); err != nil {
		return "", err
	}
	url, err := s.uploadTo(storage.BucketAchievementImages, storage.ObjectName(id, file.Filename), file)
	if err != nil {
		return "", err
	}
	if _, err := s.UpdateAchievement(ctx, id, AchievementPatch{ImageURL: &url}); err != nil {
		return "", err
	}
	return url, nil
}
