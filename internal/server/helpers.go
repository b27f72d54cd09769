package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/schoolhub-dev/schoolhub/internal/content"
	"github.com/schoolhub-dev/schoolhub/internal/storage"
)

// maxUploadSize bounds multipart uploads
const maxUploadSize = 50 << 20

// respondServiceError maps content errors to HTTP responses
func (s *Server) respondServiceError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, content.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, content.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrInvalidPath), errors.Is(err, storage.ErrUnknownBucket):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrObjectExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.logger.Error().Err(err).Msg(message)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}

// queryInt parses an optional integer query parameter
func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + key})
		return 0, false
	}
	return n, true
}

// queryBool parses an optional boolean query parameter
func queryBool(c *gin.Context, key string) (*bool, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + key})
		return nil, false
	}
	return &b, true
}

// openUpload opens the multipart "file" field. The caller must call done when ok is true.
func openUpload(c *gin.Context) (upload content.Upload, done func(), ok bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file"})
		return content.Upload{}, nil, false
	}
	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable file"})
		return content.Upload{}, nil, false
	}

	return content.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        f,
	}, func() { f.Close() }, true
}

// withUpload passes the uploaded file to fn and responds with the resulting URL
func (s *Server) withUpload(c *gin.Context, bucket string, fn func(content.Upload) (string, error)) {
	upload, done, ok := openUpload(c)
	if !ok {
		return
	}
	defer done()

	url, err := fn(upload)
	if err != nil {
		s.respondServiceError(c, err, "Failed to upload file")
		return
	}

	s.metrics.StorageUploads.WithLabelValues(bucket).Inc()
	c.JSON(http.StatusOK, gin.H{"url": url})
}
