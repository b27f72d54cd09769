package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolhub-dev/schoolhub/internal/content"
	"github.com/schoolhub-dev/schoolhub/internal/models"
	"github.com/schoolhub-dev/schoolhub/internal/storage"
)

// ProfileRequest is the body of a profile upsert by its owner
type ProfileRequest struct {
	FullName  *string `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
}

// @Summary Profile row
// @Description Returns the profile row of a user; 404 when the user has none
// @Tags profiles
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Profile
// @Failure 404 {object} map[string]interface{}
// @Router /rest/v1/profiles/{user_id} [get]
func (s *Server) getProfileRow(c *gin.Context) {
	profile, err := s.content.GetProfile(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		s.respondServiceError(c, err, "Failed to load profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) getOwnProfile(c *gin.Context) {
	sessionData, _ := GetSessionData(c)
	profile, err := s.content.GetProfile(c.Request.Context(), sessionData.UserID)
	if err != nil {
		s.respondServiceError(c, err, "Failed to load profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// upsertOwnProfile creates or overwrites the caller's profile. The role of an
// existing profile is kept; new profiles start as viewers.
func (s *Server) upsertOwnProfile(c *gin.Context) {
	sessionData, _ := GetSessionData(c)
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := models.RoleViewer
	if existing, err := s.content.GetProfile(c.Request.Context(), sessionData.UserID); err == nil {
		role = existing.Role
	}

	profile, err := s.content.UpsertProfile(c.Request.Context(), &models.Profile{
		UserID:    sessionData.UserID,
		FullName:  req.FullName,
		AvatarURL: req.AvatarURL,
		Role:      role,
	})
	if err != nil {
		s.respondServiceError(c, err, "Failed to save profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) updateOwnProfile(c *gin.Context) {
	sessionData, _ := GetSessionData(c)
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Owners cannot change their own role
	profile, err := s.content.UpdateProfile(c.Request.Context(), sessionData.UserID, content.ProfilePatch{
		FullName:  req.FullName,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		s.respondServiceError(c, err, "Failed to update profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) uploadOwnAvatar(c *gin.Context) {
	sessionData, _ := GetSessionData(c)
	s.withUpload(c, storage.BucketAvatars, func(u content.Upload) (string, error) {
		return s.content.UploadAvatar(c.Request.Context(), sessionData.UserID, u)
	})
}

// @Summary Update profile
// @Description Updates any user's profile, including the role (admin only)
// @Tags profiles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body content.ProfilePatch true "Profile fields"
// @Success 200 {object} models.Profile
// @Router /api/admin/profiles/{user_id} [patch]
func (s *Server) updateProfile(c *gin.Context) {
	var patch content.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := s.content.UpdateProfile(c.Request.Context(), c.Param("user_id"), patch)
	if err != nil {
		s.respondServiceError(c, err, "Failed to update profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}
