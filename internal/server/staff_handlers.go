package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolhub-dev/schoolhub/internal/content"
	"github.com/schoolhub-dev/schoolhub/internal/models"
	"github.com/schoolhub-dev/schoolhub/internal/storage"
)

// CreateStaffRequest represents a new staff member
type CreateStaffRequest struct {
	Name           string  `json:"name" binding:"required"`
	Position       string  `json:"position" binding:"required"`
	Qualifications *string `json:"qualifications"`
	Experience     *string `json:"experience"`
	PhotoURL       *string `json:"photo_url"`
	Bio            *string `json:"bio"`
	IsDirector     bool    `json:"is_director"`
	DisplayOrder   int     `json:"display_order"`
}

// @Summary List staff
// @Tags staff
// @Produce json
// @Success 200 {array} models.Staff
// @Router /api/staff [get]
func (s *Server) listStaff(c *gin.Context) {
	staff, err := s.content.ListStaff(c.Request.Context())
	if err != nil {
		s.respondServiceError(c, err, "Failed to list staff")
		return
	}
	c.JSON(http.StatusOK, staff)
}

func (s *Server) getStaff(c *gin.Context) {
	staff, err := s.content.GetStaff(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondServiceError(c, err, "Failed to load staff member")
		return
	}
	c.JSON(http.StatusOK, staff)
}

// @Summary Create staff member
// @Tags staff
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateStaffRequest true "Staff member"
// @Success 201 {object} models.Staff
// @Router /api/admin/staff [post]
func (s *Server) createStaff(c *gin.Context) {
	var req CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	staff := &models.Staff{
		Name:           req.Name,
		Position:       req.Position,
		Qualifications: req.Qualifications,
		Experience:     req.Experience,
		PhotoURL:       req.PhotoURL,
		Bio:            req.Bio,
		IsDirector:     req.IsDirector,
		DisplayOrder:   req.DisplayOrder,
	}
	if err := s.content.CreateStaff(c.Request.Context(), staff); err != nil {
		s.respondServiceError(c, err, "Failed to create staff member")
		return
	}
	c.JSON(http.StatusCreated, staff)
}

func (s *Server) updateStaff(c *gin.Context) {
	var patch content.StaffPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	staff, err := s.content.UpdateStaff(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.respondServiceError(c, err, "Failed to update staff member")
		return
	}
	c.JSON(http.StatusOK, staff)
}

func (s *Server) deleteStaff(c *gin.Context) {
	if err := s.content.DeleteStaff(c.Request.Context(), c.Param("id")); err != nil {
		s.respondServiceError(c, err, "Failed to delete staff member")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) uploadStaffPhoto(c *gin.Context) {
	s.withUpload(c, storage.BucketStaffPhotos, func(u content.Upload) (string, error) {
		return s.content.UploadStaffPhoto(c.Request.Context(), c.Param("id"), u)
	})
}
