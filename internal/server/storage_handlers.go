package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/schoolhub-dev/schoolhub/internal/storage"
)

// @Summary Public object
// @Description Serves a stored object with its Cache-Control and content type
// @Tags storage
// @Success 200
// @Failure 404 {object} map[string]interface{}
// @Router /storage/v1/object/public/{bucket}/{path} [get]
func (s *Server) getPublicObject(c *gin.Context) {
	objectPath := strings.TrimPrefix(c.Param("path"), "/")

	f, obj, err := s.store.Open(c.Param("bucket"), objectPath)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrUnknownBucket), errors.Is(err, storage.ErrInvalidPath):
			c.JSON(http.StatusNotFound, gin.H{"error": "Object not found"})
		default:
			s.logger.Error().Err(err).Str("path", objectPath).Msg("Failed to open object")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.logger.Error().Err(err).Str("path", objectPath).Msg("Failed to stat object")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Object not found"})
		return
	}

	c.Header("Cache-Control", obj.CacheControl)
	if obj.ContentType != "" {
		c.Header("Content-Type", obj.ContentType)
	}
	http.ServeContent(c.Writer, c.Request, objectPath, info.ModTime(), f)
}
