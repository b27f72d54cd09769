package content

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/schoolhub-dev/schoolhub/internal/models"
	"github.com/schoolhub-dev/schoolhub/internal/storage"
)

// ProfilePatch is a partial update; nil fields are left unchanged
type ProfilePatch struct {
	FullName  *string `json:"full_name"`
	Role      *string `json:"role" binding:"omitempty,oneof=admin editor viewer"`
	AvatarURL *string `json:"avatar_url"`
}

func (p ProfilePatch) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	setIf(cols, "full_name", p.FullName)
	setIf(cols, "role", p.Role)
	setIf(cols, "avatar_url", p.AvatarURL)
	return cols
}

// GetProfile returns the profile of a user
func (s *Service) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, notFound(err)
	}
	return &profile, nil
}

// UpsertProfile creates the profile of a user or overwrites its fields
func (s *Service) UpsertProfile(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	if profile.Role == "" {
		profile.Role = models.RoleViewer
	}
	profile.ID = ""
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_name", "role", "avatar_url", "updated_at"}),
	}).Create(profile).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}
	return s.GetProfile(ctx, profile.UserID)
}

// UpdateProfile applies a partial update to the profile of a user
func (s *Service) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (*models.Profile, error) {
	existing, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	var profile models.Profile
	if err := updateColumns(s.db.WithContext(ctx), existing.ID, patch.columns(), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UploadAvatar stores an avatar and points the profile at it
func (s *Service) UploadAvatar(ctx context.Context, userID string, file Upload) (string, error) {
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return "", err
	}
	url, err := s.uploadTo(storage.BucketAvatars, storage.ObjectName(userID, file.Filename), file)
	if err != nil {
		return "", err
	}
	if _, err := s.UpdateProfile(ctx, userID, ProfilePatch{AvatarURL: &url}); err != nil {
		return "", err
	}
	return url, nil
}

// ProfileRoles looks up profile roles in the database
type ProfileRoles struct {
	db *gorm.DB
}

// NewProfileRoles creates a role lookup over the profiles table
func NewProfileRoles(db *gorm.DB) *ProfileRoles {
	return &ProfileRoles{db: db}
}

// ProfileRole returns the stored role of a user; found is false without a profile row
func (p *ProfileRoles) ProfileRole(ctx context.Context, userID string) (string, bool, error) {
	var profile models.Profile
	err := p.db.WithContext(ctx).Select("role").Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return profile.Role, true, nil
}
