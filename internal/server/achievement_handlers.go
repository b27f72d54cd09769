package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolhub-dev/schoolhub/internal/content"
	"github.com/schoolhub-dev/schoolhub/internal/models"
	"github.com/schoolhub-dev/schoolhub/internal/storage"
)

// CreateAchievementRequest represents a new achievement
type CreateAchievementRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description *string `json:"description"`
	ClassLevel  *string `json:"class_level" binding:"omitempty,class_level"`
	Year        int     `json:"year" binding:"required,min=1900,max=2200"`
	ImageURL    *string `json:"image_url"`
	IsFeatured  bool    `json:"is_featured"`
}

// @Summary List achievements
// @Description Achievements by year (newest first) then title
// @Tags achievements
// @Produce json
// @Param featured query bool false "Only featured achievements"
// @Param class_level query string false "10 or 12; achievements for both levels always match"
// @Param year query int false "Year filter"
// @Param limit query int false "Maximum number of achievements"
// @Success 200 {array} models.Achievement
// @Router /api/achievements [get]
func (s *Server) listAchievements(c *gin.Context) {
	featured, ok := queryBool(c, "featured")
	if !ok {
		return
	}
	year, ok := queryInt(c, "year")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	level := c.Query("class_level")
	if level != "" && !content.ValidClassLevel(level) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid class_level"})
		return
	}

	filter := content.AchievementFilter{ClassLevel: level, Year: year, Limit: limit}
	if featured != nil {
		filter.Featured = *featured
	}

	achievements, err := s.content.ListAchievements(c.Request.Context(), filter)
	if err != nil {
		s.respondServiceError(c, err, "Failed to list achievements")
		return
	}
	c.JSON(http.StatusOK, achievements)
}

func (s *Server) listAchievementYears(c *gin.Context) {
	years, err := s.content.AchievementYears(c.Request.Context())
	if err != nil {
		s.respondServiceError(c, err, "Failed to list achievement years")
		return
	}
	c.JSON(http.StatusOK, years)
}

func (s *Server) createAchievement(c *gin.Context) {
	var req CreateAchievementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	achievement := &models.Achievement{
		Title:       req.Title,
		Description: req.Description,
		ClassLevel:  req.ClassLevel,
		Year:        req.Year,
		ImageURL:    req.ImageURL,
		IsFeatured:  req.IsFeatured,
	}
	if err := s.content.CreateAchievement(c.Request.Context(), achievement); err != nil {
		s.respondServiceError(c, err, "Failed to create achievement")
		return
	}
	c.JSON(http.StatusCreated, achievement)
}

func (s *Server) updateAchievement(c *gin.Context) {
	var patch content.AchievementPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	achievement, err := s.content.UpdateAchievement(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.respondServiceError(c, err, "Failed to update achievement")
		return
	}
	c.JSON(http.StatusOK, achievement)
}

func (s *Server) deleteAchievement(c *gin.Context) {
	if err := s.content.DeleteAchievement(c.Request.Context(), c.Param("id")); err != nil {
		s.respondServiceError(c, err, "Failed to delete achievement")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) setAchievementFeatured(c *gin.Context) {
	var req FlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	achievement, err := s.content.SetAchievementFeatured(c.Request.Context(), c.Param("id"), *req.Value)
	if err != nil {
		s.respondServiceError(c, err, "Failed to update featured status")
		return
	}
	c.JSON(http.StatusOK, achievement)
}

func (s *Server) uploadAchievementImage(c *gin.Context) {
	s.withUpload(c, storage.BucketAchievementImages, func(u content.Upload) (string, error) {
		return s.content.UploadAchievementImage(c.Request.Context(), c.Param("id"), u)
	})
}
