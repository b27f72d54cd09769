package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/schoolhub-dev/schoolhub/internal/identity"
	"github.com/schoolhub-dev/schoolhub/internal/metrics"
	"github.com/schoolhub-dev/schoolhub/internal/models"
)

// SetupRequest represents the first-run setup request
type SetupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

// PasswordGrantRequest is the body of a password sign-in
type PasswordGrantRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshGrantRequest is the body of a refresh token exchange
type RefreshGrantRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenResponse is returned by every successful token grant
type TokenResponse struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	RefreshToken string      `json:"refresh_token"`
	User         *UserDetail `json:"user"`
}

// UserDetail represents user information returned in responses
type UserDetail struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateUserRequest represents a request to create a new user
type CreateUserRequest struct {
	Email    string   `json:"email" binding:"required,email"`
	Name     string   `json:"name" binding:"required"`
	Password string   `json:"password" binding:"required,min=8"`
	Role     string   `json:"role" binding:"omitempty,oneof=admin editor viewer"`
	Roles    []string `json:"roles"`
}

func toUserDetail(user *models.User) *UserDetail {
	roles := []string(user.Roles)
	if roles == nil {
		roles = []string{}
	}
	return &UserDetail{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Roles:     roles,
		CreatedAt: user.CreatedAt,
	}
}

func toTokenResponse(t *identity.Tokens) TokenResponse {
	return TokenResponse{
		AccessToken:  t.AccessToken,
		TokenType:    "bearer",
		ExpiresIn:    int(time.Until(t.ExpiresAt).Seconds()),
		ExpiresAt:    t.ExpiresAt.Unix(),
		RefreshToken: t.RefreshToken,
		User:         toUserDetail(t.User),
	}
}

// @Summary First-run setup
// @Description Creates the first admin user (only works if no users exist)
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SetupRequest true "Setup request"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/setup [post]
func (s *Server) setupFirstAdmin(c *gin.Context) {
	var req SetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.identity.Setup(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, identity.ErrSetupCompleted) {
			c.JSON(http.StatusConflict, gin.H{"error": "Setup already completed"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to create admin user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	tokens, err := s.identity.SignInWithPassword(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign in first admin")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("First admin user created")
	c.JSON(http.StatusOK, toTokenResponse(tokens))
}

// @Summary Token grant
// @Description Password sign-in (grant_type=password) or refresh token exchange (grant_type=refresh_token)
// @Tags auth
// @Accept json
// @Produce json
// @Param grant_type query string true "password or refresh_token"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} map[string]interface{}
// @Router /auth/v1/token [post]
func (s *Server) token(c *gin.Context) {
	switch c.Query("grant_type") {
	case "password":
		s.passwordGrant(c)
	case "refresh_token":
		s.refreshGrant(c)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported grant type"})
	}
}

func (s *Server) passwordGrant(c *gin.Context) {
	var req PasswordGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	tokens, err := s.identity.SignInWithPassword(c.Request.Context(), req.Email, req.Password)
	s.metrics.SignIns.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid login credentials"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to sign in")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, toTokenResponse(tokens))
}

func (s *Server) refreshGrant(c *gin.Context) {
	var req RefreshGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Refresh token is required"})
		return
	}

	tokens, err := s.identity.Refresh(c.Request.Context(), req.RefreshToken)
	s.metrics.TokenRefreshes.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidRefresh):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid refresh token"})
		case errors.Is(err, identity.ErrSessionExpired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Session expired"})
		default:
			s.logger.Error().Err(err).Msg("Failed to refresh session")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, toTokenResponse(tokens))
}

// @Summary Sign out
// @Description Revokes the session of the access token
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} map[string]interface{}
// @Router /auth/v1/logout [post]
func (s *Server) logout(c *gin.Context) {
	sessionData, exists := GetSessionData(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := s.identity.SignOut(c.Request.Context(), sessionData.SessionID); err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign out")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign out"})
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Get current user
// @Description Get information about the currently authenticated user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserDetail
// @Failure 401 {object} map[string]interface{}
// @Router /auth/v1/user [get]
func (s *Server) getCurrentUser(c *gin.Context) {
	sessionData, exists := GetSessionData(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var user models.User
	if err := models.FindByID(s.db.WithContext(c.Request.Context()), sessionData.UserID, &user); err != nil {
		s.logger.Error().Err(err).Str("user_id", sessionData.UserID).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, toUserDetail(&user))
}

// @Summary List users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} UserDetail
// @Router /api/admin/users [get]
func (s *Server) listUsers(c *gin.Context) {
	var users []models.User
	if err := s.db.WithContext(c.Request.Context()).Order("created_at DESC").Find(&users).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to list users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	details := make([]*UserDetail, len(users))
	for i := range users {
		details[i] = toUserDetail(&users[i])
	}
	c.JSON(http.StatusOK, details)
}

// @Summary Create user
// @Description Creates an account and its profile (admin only)
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "User"
// @Success 201 {object} UserDetail
// @Failure 409 {object} map[string]interface{}
// @Router /api/admin/users [post]
func (s *Server) createUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.identity.CreateUser(c.Request.Context(), identity.NewUser{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
		Roles:    req.Roles,
	})
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to create user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, toUserDetail(user))
}
