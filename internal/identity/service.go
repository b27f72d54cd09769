package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/schoolhub-dev/schoolhub/internal/assert"
	"github.com/schoolhub-dev/schoolhub/internal/auth"
	"github.com/schoolhub-dev/schoolhub/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrInvalidRefresh     = errors.New("invalid refresh token")
	ErrSessionExpired     = errors.New("session expired")
	ErrSetupCompleted     = errors.New("setup already completed")
	ErrEmailTaken         = errors.New("email already registered")
)

// Tokens is the result of a sign-in or refresh
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	SessionID    string
	User         *models.User
}

// NewUser describes an account to create
type NewUser struct {
	Email    string
	Password string
	Name     string
	Role     string   // Profile role
	Roles    []string // Metadata roles
}

// Service is the auth provider: password sign-in, refresh-token rotation,
// sign-out and access token authentication
type Service struct {
	db         *gorm.DB
	signer     *auth.Signer
	refreshTTL time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

// NewService creates a new identity service
func NewService(db *gorm.DB, signer *auth.Signer, refreshTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		db:         db,
		signer:     signer,
		refreshTTL: refreshTTL,
		logger:     logger.With().Str("service", "identity").Logger(),
		now:        time.Now,
	}
}

// secretLength is the length of the hex-encoded JWT secret
const secretLength = 64

// LoadOrCreateSecret returns the persisted JWT secret, generating it on first boot
func LoadOrCreateSecret(db *gorm.DB) (string, error) {
	var cfg models.Config
	err := db.First(&cfg).Error
	if err == nil {
		return cfg.JWTSecret, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	buf := make([]byte, secretLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	cfg = models.Config{JWTSecret: hex.EncodeToString(buf)}
	assert.Hex(cfg.JWTSecret, secretLength/2)
	if err := db.Create(&cfg).Error; err != nil {
		return "", fmt.Errorf("failed to persist JWT secret: %w", err)
	}
	return cfg.JWTSecret, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignInWithPassword verifies credentials and opens a new session
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*Tokens, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := auth.VerifyPassword(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	refreshToken := uuid.NewString()
	session := &models.AuthSession{
		UserID:           user.ID,
		RefreshTokenHash: auth.HashRefreshToken(refreshToken),
		ExpiresAt:        s.now().Add(s.refreshTTL),
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Str("session_id", session.ID).Msg("User signed in")
	return s.issue(&user, session.ID, refreshToken)
}

// Refresh rotates a refresh token and issues a new access token
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefresh
	}

	now := s.now()
	next := uuid.NewString()
	var session models.AuthSession

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("User").
			Where("refresh_token_hash = ?", auth.HashRefreshToken(refreshToken)).
			First(&session).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidRefresh
			}
			return fmt.Errorf("failed to find session: %w", err)
		}

		if !session.Active(now) {
			return ErrSessionExpired
		}

		result := tx.Model(&models.AuthSession{}).
			Where("id = ? AND refresh_token_hash = ?", session.ID, session.RefreshTokenHash).
			Updates(map[string]interface{}{
				"refresh_token_hash": auth.HashRefreshToken(next),
				"last_refreshed_at":  now,
				"expires_at":         now.Add(s.refreshTTL),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to rotate refresh token: %w", result.Error)
		}
		// Lost a race with a concurrent refresh of the same token
		if result.RowsAffected == 0 {
			return ErrInvalidRefresh
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("session_id", session.ID).Msg("Session refreshed")
	return s.issue(&session.User, session.ID, next)
}

func (s *Service) issue(user *models.User, sessionID, refreshToken string) (*Tokens, error) {
	access, expiresAt, err := s.signer.GenerateToken(user.ID, user.Email, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &Tokens{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		SessionID:    sessionID,
		User:         user,
	}, nil
}

// SignOut revokes a session. Revoking an already revoked session is not an error.
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	err := s.db.WithContext(ctx).Model(&models.AuthSession{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", s.now()).Error
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	s.logger.Info().Str("session_id", sessionID).Msg("Session revoked")
	return nil
}

// Authenticate validates an access token and returns its user and session
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*models.User, *models.AuthSession, error) {
	claims, err := s.signer.ValidateToken(accessToken)
	if err != nil {
		return nil, nil, err
	}

	var session models.AuthSession
	err = s.db.WithContext(ctx).Preload("User").
		Where("id = ? AND user_id = ?", claims.SessionID, claims.UserID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrSessionExpired
		}
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session.RevokedAt != nil {
		return nil, nil, ErrSessionExpired
	}

	return &session.User, &session, nil
}

// Setup creates the first administrator. It only succeeds while no users exist.
func (s *Service) Setup(ctx context.Context, email, password, name string) (*models.User, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil, ErrSetupCompleted
	}

	return s.CreateUser(ctx, NewUser{
		Email:    email,
		Password: password,
		Name:     name,
		Role:     models.RoleAdmin,
	})
}

// CreateUser creates an account together with its profile row
func (s *Service) CreateUser(ctx context.Context, req NewUser) (*models.User, error) {
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := req.Role
	if role == "" {
		role = models.RoleViewer
	}

	user := &models.User{
		Email:        normalizeEmail(req.Email),
		PasswordHash: passwordHash,
		Name:         req.Name,
		Roles:        req.Roles,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrEmailTaken
		}
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		fullName := req.Name
		return tx.Create(&models.Profile{UserID: user.ID, FullName: &fullName, Role: role}).Error
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Str("role", role).Msg("User created")
	return user, nil
}

// PruneSessions deletes sessions that expired, or were revoked more than a day ago
func (s *Service) PruneSessions(ctx context.Context) (int64, error) {
	now := s.now()
	result := s.db.WithContext(ctx).
		Where("expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)", now, now.Add(-24*time.Hour)).
		Delete(&models.AuthSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
