package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolhub-dev/schoolhub/internal/content"
	"github.com/schoolhub-dev/schoolhub/internal/models"
	"github.com/schoolhub-dev/schoolhub/internal/storage"
)

// CreateEventRequest represents a new event
type CreateEventRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description *string `json:"description"`
	EventDate   string  `json:"event_date" binding:"required,datetime=2006-01-02"`
	EventTime   *string `json:"event_time"`
	Location    *string `json:"location"`
	ImageURL    *string `json:"image_url"`
	IsFeatured  bool    `json:"is_featured"`
}

// @Summary List events
// @Description Events in date order
// @Tags events
// @Produce json
// @Param featured query bool false "Only featured events"
// @Param upcoming query bool false "Only events from today on"
// @Param limit query int false "Maximum number of events"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Success 200 {array} models.Event
// @Router /api/events [get]
func (s *Server) listEvents(c *gin.Context) {
	if from, to := c.Query("from"), c.Query("to"); from != "" || to != "" {
		if from == "" || to == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Both from and to are required"})
			return
		}
		events, err := s.content.EventsBetween(c.Request.Context(), from, to)
		if err != nil {
			s.respondServiceError(c, err, "Failed to list events")
			return
		}
		c.JSON(http.StatusOK, events)
		return
	}

	featured, ok := queryBool(c, "featured")
	if !ok {
		return
	}
	upcoming, ok := queryBool(c, "upcoming")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	filter := content.EventFilter{Limit: limit}
	if featured != nil {
		filter.Featured = *featured
	}
	if upcoming != nil {
		filter.Upcoming = *upcoming
	}

	events, err := s.content.ListEvents(c.Request.Context(), filter)
	if err != nil {
		s.respondServiceError(c, err, "Failed to list events")
		return
	}
	c.JSON(http.StatusOK, events)
}

func (s *Server) getEvent(c *gin.Context) {
	event, err := s.content.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondServiceError(c, err, "Failed to load event")
		return
	}
	c.JSON(http.StatusOK, event)
}

// @Summary Create event
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateEventRequest true "Event"
// @Success 201 {object} models.Event
// @Router /api/admin/events [post]
func (s *Server) createEvent(c *gin.Context) {
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event := &models.Event{
		Title:       req.Title,
		Description: req.Description,
		EventDate:   req.EventDate,
		EventTime:   req.EventTime,
		Location:    req.Location,
		ImageURL:    req.ImageURL,
		IsFeatured:  req.IsFeatured,
	}
	if err := s.content.CreateEvent(c.Request.Context(), event); err != nil {
		s.respondServiceError(c, err, "Failed to create event")
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (s *Server) updateEvent(c *gin.Context) {
	var patch content.EventPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	event, err := s.content.UpdateEvent(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.respondServiceError(c, err, "Failed to update event")
		return
	}
	c.JSON(http.StatusOK, event)
}

func (s *Server) deleteEvent(c *gin.Context) {
	if err := s.content.DeleteEvent(c.Request.Context(), c.Param("id")); err != nil {
		s.respondServiceError(c, err, "Failed to delete event")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) uploadEventImage(c *gin.Context) {
	s.withUpload(c, storage.BucketEventImages, func(u content.Upload) (string, error) {
		return s.content.UploadEventImage(c.Request.Context(), c.Param("id"), u)
	})
}
