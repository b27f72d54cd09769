package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolhub-dev/schoolhub/internal/content"
	"github.com/schoolhub-dev/schoolhub/internal/models"
)

// CreateNewsRequest represents a new article
type CreateNewsRequest struct {
	Title       string  `json:"title" binding:"required"`
	Content     string  `json:"content" binding:"required"`
	Excerpt     *string `json:"excerpt"`
	IsPublished bool    `json:"is_published"`
	IsFeatured  bool    `json:"is_featured"`
}

// FlagRequest sets a boolean flag such as published or featured
type FlagRequest struct {
	Value *bool `json:"value" binding:"required"`
}

// @Summary List news
// @Description Published articles newest first, with rendered HTML
// @Tags news
// @Produce json
// @Param featured query bool false "Only featured articles"
// @Param limit query int false "Maximum number of articles"
// @Success 200 {array} models.News
// @Router /api/news [get]
func (s *Server) listNews(c *gin.Context) {
	s.respondNews(c, false)
}

func (s *Server) listNewsAdmin(c *gin.Context) {
	s.respondNews(c, true)
}

func (s *Server) respondNews(c *gin.Context, includeDrafts bool) {
	featured, ok := queryBool(c, "featured")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	filter := content.NewsFilter{IncludeDrafts: includeDrafts, Limit: limit}
	if featured != nil {
		filter.Featured = *featured
	}

	articles, err := s.content.ListNews(c.Request.Context(), filter)
	if err != nil {
		s.respondServiceError(c, err, "Failed to list news")
		return
	}
	c.JSON(http.StatusOK, articles)
}

// getNews returns a published article; drafts are hidden from the public API
func (s *Server) getNews(c *gin.Context) {
	article, err := s.content.GetNews(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondServiceError(c, err, "Failed to load article")
		return
	}
	if !article.IsPublished {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.JSON(http.StatusOK, article)
}

func (s *Server) listRelatedNews(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	articles, err := s.content.RelatedNews(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		s.respondServiceError(c, err, "Failed to list related news")
		return
	}
	c.JSON(http.StatusOK, articles)
}

func (s *Server) createNews(c *gin.Context) {
	var req CreateNewsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	article := &models.News{
		Title:       req.Title,
		Content:     req.Content,
		Excerpt:     req.Excerpt,
		IsPublished: req.IsPublished,
		IsFeatured:  req.IsFeatured,
	}
	if err := s.content.CreateNews(c.Request.Context(), article); err != nil {
		s.respondServiceError(c, err, "Failed to create article")
		return
	}
	c.JSON(http.StatusCreated, article)
}

func (s *Server) updateNews(c *gin.Context) {
	var patch content.NewsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	article, err := s.content.UpdateNews(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.respondServiceError(c, err, "Failed to update article")
		return
	}
	c.JSON(http.StatusOK, article)
}

func (s *Server) deleteNews(c *gin.Context) {
	if err := s.content.DeleteNews(c.Request.Context(), c.Param("id")); err != nil {
		s.respondServiceError(c, err, "Failed to delete article")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) setNewsPublished(c *gin.Context) {
	var req FlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	article, err := s.content.SetNewsPublished(c.Request.Context(), c.Param("id"), *req.Value)
	if err != nil {
		s.respondServiceError(c, err, "Failed to update published status")
		return
	}
	c.JSON(http.StatusOK, article)
}

func (s *Server) setNewsFeatured(c *gin.Context) {
	var req FlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	article, err := s.content.SetNewsFeatured(c.Request.Context(), c.Param("id"), *req.Value)
	if err != nil {
		s.respondServiceError(c, err, "Failed to update featured status")
		return
	}
	c.JSON(http.StatusOK, article)
}
