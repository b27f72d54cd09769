package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/schoolhub-dev/schoolhub/internal/content"
	"github.com/schoolhub-dev/schoolhub/internal/models"
	"github.com/schoolhub-dev/schoolhub/internal/tasks"
)

// ContactRequest is a contact form submission
type ContactRequest struct {
	Name    string  `json:"name" binding:"required,max=200"`
	Email   string  `json:"email" binding:"required,email"`
	Phone   *string `json:"phone" binding:"omitempty,max=40"`
	Subject *string `json:"subject" binding:"omitempty,max=200"`
	Message string  `json:"message" binding:"required,max=10000"`
}

// NewsletterRequest carries a newsletter address
type NewsletterRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// MarkReadRequest sets the read flag of an inquiry
type MarkReadRequest struct {
	IsRead *bool `json:"is_read" binding:"required"`
}

// @Summary Submit contact form
// @Description Stores the inquiry and notifies the school office by email
// @Tags contact
// @Accept json
// @Produce json
// @Param request body ContactRequest true "Inquiry"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/contact [post]
func (s *Server) submitInquiry(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inquiry := &models.ContactInquiry{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Subject: req.Subject,
		Message: req.Message,
	}
	if err := s.content.SubmitInquiry(c.Request.Context(), inquiry); err != nil {
		s.respondServiceError(c, err, "Failed to submit contact form")
		return
	}

	task, err := tasks.NewInquiryNotificationTask(inquiry.ID)
	s.enqueue(task, err, asynq.Queue(tasks.QueueDefault), asynq.MaxRetry(5))

	c.JSON(http.StatusCreated, gin.H{"success": true, "id": inquiry.ID})
}

// @Summary Subscribe to newsletter
// @Tags contact
// @Accept json
// @Produce json
// @Param request body NewsletterRequest true "Address"
// @Success 200 {object} map[string]interface{}
// @Router /api/newsletter/subscribe [post]
func (s *Server) subscribe(c *gin.Context) {
	var req NewsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.content.Subscribe(c.Request.Context(), req.Email)
	if err != nil {
		s.respondServiceError(c, err, "Failed to subscribe to newsletter")
		return
	}

	if result.Welcome() {
		task, err := tasks.NewNewsletterWelcomeTask(req.Email)
		s.enqueue(task, err, asynq.Queue(tasks.QueueLow), asynq.MaxRetry(3))
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "status": result, "message": result.Message()})
}

func (s *Server) unsubscribe(c *gin.Context) {
	var req NewsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.content.Unsubscribe(c.Request.Context(), req.Email); err != nil {
		s.respondServiceError(c, err, "Failed to unsubscribe from newsletter")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": content.UnsubscribedMessage})
}

// @Summary List inquiries
// @Tags contact
// @Produce json
// @Security BearerAuth
// @Param read query bool false "Read filter"
// @Param limit query int false "Maximum number of inquiries"
// @Success 200 {array} models.ContactInquiry
// @Router /api/admin/inquiries [get]
func (s *Server) listInquiries(c *gin.Context) {
	read, ok := queryBool(c, "read")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	inquiries, err := s.content.ListInquiries(c.Request.Context(), content.InquiryFilter{Read: read, Limit: limit})
	if err != nil {
		s.respondServiceError(c, err, "Failed to list inquiries")
		return
	}
	c.JSON(http.StatusOK, inquiries)
}

func (s *Server) getInquiry(c *gin.Context) {
	inquiry, err := s.content.GetInquiry(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondServiceError(c, err, "Failed to get inquiry")
		return
	}
	c.JSON(http.StatusOK, inquiry)
}

func (s *Server) markInquiryRead(c *gin.Context) {
	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	inquiry, err := s.content.MarkInquiryRead(c.Request.Context(), c.Param("id"), *req.IsRead)
	if err != nil {
		s.respondServiceError(c, err, "Failed to mark inquiry as read")
		return
	}
	c.JSON(http.StatusOK, inquiry)
}

func (s *Server) deleteInquiry(c *gin.Context) {
	if err := s.content.DeleteInquiry(c.Request.Context(), c.Param("id")); err != nil {
		s.respondServiceError(c, err, "Failed to delete inquiry")
		return
	}
	c.Status(http.StatusNoContent)
}

// listSubscribers returns active subscribers, or all with ?all=true
func (s *Server) listSubscribers(c *gin.Context) {
	all, ok := queryBool(c, "all")
	if !ok {
		return
	}
	subs, err := s.content.ListSubscribers(c.Request.Context(), all != nil && *all)
	if err != nil {
		s.respondServiceError(c, err, "Failed to list subscribers")
		return
	}
	c.JSON(http.StatusOK, subs)
}
