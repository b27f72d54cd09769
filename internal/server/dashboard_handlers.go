package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary Admin dashboard
// @Description Row counts per content table and the number of unread inquiries
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} content.DashboardStats
// @Router /api/admin/dashboard [get]
func (s *Server) getDashboard(c *gin.Context) {
	stats, err := s.content.Dashboard(c.Request.Context())
	if err != nil {
		s.respondServiceError(c, err, "Failed to load dashboard")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary Latest updates
// @Description The next upcoming events for the site's updates ticker
// @Tags events
// @Produce json
// @Success 200 {array} content.UpdateItem
// @Router /api/updates [get]
func (s *Server) latestUpdates(c *gin.Context) {
	items, err := s.content.LatestUpdates(c.Request.Context())
	if err != nil {
		s.respondServiceError(c, err, "Failed to load updates")
		return
	}
	c.JSON(http.StatusOK, items)
}
