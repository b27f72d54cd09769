package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolhub-dev/schoolhub/internal/content"
	"github.com/schoolhub-dev/schoolhub/internal/models"
	"github.com/schoolhub-dev/schoolhub/internal/storage"
)

// CreateCategoryRequest represents a new gallery category
type CreateCategoryRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

// CreateGalleryItemRequest represents a new gallery item
type CreateGalleryItemRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	MediaURL    string  `json:"media_url" binding:"required"`
	MediaType   string  `json:"media_type" binding:"omitempty,media_type"`
	CategoryID  *string `json:"category_id"`
}

// @Summary List gallery categories
// @Tags gallery
// @Produce json
// @Success 200 {array} models.GalleryCategory
// @Router /api/gallery/categories [get]
func (s *Server) listCategories(c *gin.Context) {
	categories, err := s.content.ListCategories(c.Request.Context())
	if err != nil {
		s.respondServiceError(c, err, "Failed to list gallery categories")
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (s *Server) createCategory(c *gin.Context) {
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	category := &models.GalleryCategory{Name: req.Name, Description: req.Description}
	if err := s.content.CreateCategory(c.Request.Context(), category); err != nil {
		s.respondServiceError(c, err, "Failed to create gallery category")
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (s *Server) updateCategory(c *gin.Context) {
	var patch content.CategoryPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	category, err := s.content.UpdateCategory(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.respondServiceError(c, err, "Failed to update gallery category")
		return
	}
	c.JSON(http.StatusOK, category)
}

func (s *Server) deleteCategory(c *gin.Context) {
	err := s.content.DeleteCategory(c.Request.Context(), c.Param("id"))
	if errors.Is(err, content.ErrCategoryInUse) {
		c.JSON(http.StatusConflict, gin.H{"error": "Cannot delete category with existing items. Please move or delete the items first."})
		return
	}
	if err != nil {
		s.respondServiceError(c, err, "Failed to delete gallery category")
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List gallery items
// @Description Items newest first, with their category
// @Tags gallery
// @Produce json
// @Param category_id query string false "Category filter"
// @Param featured query bool false "Only the latest items"
// @Param limit query int false "Maximum number of items"
// @Success 200 {array} models.GalleryItem
// @Router /api/gallery [get]
func (s *Server) listGalleryItems(c *gin.Context) {
	featured, ok := queryBool(c, "featured")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	filter := content.GalleryFilter{CategoryID: c.Query("category_id"), Limit: limit}
	if featured != nil {
		filter.Featured = *featured
	}

	items, err := s.content.ListGalleryItems(c.Request.Context(), filter)
	if err != nil {
		s.respondServiceError(c, err, "Failed to list gallery items")
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) createGalleryItem(c *gin.Context) {
	var req CreateGalleryItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item := &models.GalleryItem{
		Title:       req.Title,
		Description: req.Description,
		MediaURL:    req.MediaURL,
		MediaType:   req.MediaType,
		CategoryID:  req.CategoryID,
	}
	if err := s.content.CreateGalleryItem(c.Request.Context(), item); err != nil {
		s.respondServiceError(c, err, "Failed to create gallery item")
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (s *Server) updateGalleryItem(c *gin.Context) {
	var patch content.GalleryItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := s.content.UpdateGalleryItem(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.respondServiceError(c, err, "Failed to update gallery item")
		return
	}
	c.JSON(http.StatusOK, item)
}

// @Summary Delete gallery item
// @Description Deletes the item and its stored media; a media removal failure does not block the deletion
// @Tags gallery
// @Security BearerAuth
// @Success 204
// @Router /api/admin/gallery/{id} [delete]
func (s *Server) deleteGalleryItem(c *gin.Context) {
	if err := s.content.DeleteGalleryItem(c.Request.Context(), c.Param("id")); err != nil {
		s.respondServiceError(c, err, "Failed to delete gallery item")
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Upload gallery media
// @Description Stores an image or video for the item and updates its media URL and type
// @Tags gallery
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/gallery/{id}/media [post]
func (s *Server) uploadGalleryMedia(c *gin.Context) {
	upload, done, ok := openUpload(c)
	if !ok {
		return
	}
	defer done()

	url, mediaType, err := s.content.UploadGalleryMedia(c.Request.Context(), c.Param("id"), upload)
	if err != nil {
		s.respondServiceError(c, err, "Failed to upload media")
		return
	}

	s.metrics.StorageUploads.WithLabelValues(storage.BucketGalleryMedia).Inc()
	c.JSON(http.StatusOK, gin.H{"url": url, "type": mediaType})
}
