package content

import (
	"context"
	"fmt"

	"github.com/schoolhub-dev/schoolhub/internal/models"
	"github.com/schoolhub-dev/schoolhub/internal/storage"
)

// StaffPatch is a partial update; nil fields are left unchanged
type StaffPatch struct {
	Name           *string `json:"name"`
	Position       *string `json:"position"`
	Qualifications *string `json:"qualifications"`
	Experience     *string `json:"experience"`
	PhotoURL       *string `json:"photo_url"`
	Bio            *string `json:"bio"`
	IsDirector     *bool   `json:"is_director"`
	DisplayOrder   *int    `json:"display_order"`
}

func (p StaffPatch) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	setIf(cols, "name", p.Name)
	setIf(cols, "position", p.Position)
	setIf(cols, "qualifications", p.Qualifications)
	setIf(cols, "experience", p.Experience)
	setIf(cols, "photo_url", p.PhotoURL)
	setIf(cols, "bio", p.Bio)
	setIf(cols, "is_director", p.IsDirector)
	setIf(cols, "display_order", p.DisplayOrder)
	return cols
}

// ListStaff returns all staff ordered by display order
func (s *Service) ListStaff(ctx context.Context) ([]models.Staff, error) {
	var staff []models.Staff
	if err := s.db.WithContext(ctx).Order("display_order ASC").Order("name ASC").Find(&staff).Error; err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	return staff, nil
}

// GetStaff returns one staff member
func (s *Service) GetStaff(ctx context.Context, id string) (*models.Staff, error) {
	var staff models.Staff
	if err := models.FindByID(s.db.WithContext(ctx), id, &staff); err != nil {
		return nil, notFound(err)
	}
	return &staff, nil
}

// CreateStaff inserts a staff member
func (s *Service) CreateStaff(ctx context.Context, staff *models.Staff) error {
	staff.ID = ""
	if err := s.db.WithContext(ctx).Create(staff).Error; err != nil {
		return fmt.Errorf("failed to create staff: %w", err)
	}
	return nil
}

// UpdateStaff applies a partial update
func (s *Service) UpdateStaff(ctx context.Context, id string, patch StaffPatch) (*models.Staff, error) {
	var staff models.Staff
	if err := updateColumns(s.db.WithContext(ctx), id, patch.columns(), &staff); err != nil {
		return nil, err
	}
	return &staff, nil
}

// DeleteStaff removes a staff member
func (s *Service) DeleteStaff(ctx context.Context, id string) error {
	return deleteByID[models.Staff](s.db.WithContext(ctx), id)
}

// UploadStaffPhoto stores a photo and points the staff record at it
func (s *Service) UploadStaffPhoto(ctx context.Context, id string, file Upload) (string, error) {
	if _, err := s.GetStaff(ctx, id); err != nil {
		return "", err
	}
	url, err := s.uploadTo(storage.BucketStaffPhotos, storage.ObjectName(id, file.Filename), file)
	if err != nil {
		return "", err
	}
	if _, err := s.UpdateStaff(ctx, id, StaffPatch{PhotoURL: &url}); err != nil {
		return "", err
	}
	return url, nil
}
