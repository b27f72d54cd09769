package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/schoolhub-dev/schoolhub/internal/assert"
)

const ulidLength = 26

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
		assert.Length(b.ID, ulidLength)
	}
	return nil
}

// Config is the singleton row holding deployment secrets
type Config struct {
	BaseModel
	JWTSecret string `json:"-" gorm:"type:varchar(64);not null"` // Auto-generated on first setup (64 hex chars)
}

// User is an account known to the auth provider
type User struct {
	BaseModel
	Email        string         `json:"email" gorm:"unique;not null"`
	PasswordHash string         `json:"-" gorm:"not null"`
	Name         string         `json:"name"`
	Roles        pq.StringArray `json:"roles" gorm:"type:text"` // User metadata roles, consulted when the profiles lookup fails
	UpdatedAt    time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// AuthSession is one signed-in device. Access tokens carry its ID; the refresh
// token is stored hashed and rotated on every refresh.
type AuthSession struct {
	BaseModel
	UserID           string     `json:"user_id" gorm:"not null;index"`
	RefreshTokenHash string     `json:"-" gorm:"not null;uniqueIndex"`
	ExpiresAt        time.Time  `json:"expires_at" gorm:"not null;index"`
	LastRefreshedAt  *time.Time `json:"last_refreshed_at"`
	RevokedAt        *time.Time `json:"revoked_at" gorm:"index"`

	User User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// Active reports whether the session can still be used at now
func (s *AuthSession) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// Role values stored in profiles.role
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Profile holds per-user site data, including the role used for admin checks
type Profile struct {
	BaseModel
	UserID    string    `json:"user_id" gorm:"not null;uniqueIndex"`
	FullName  *string   `json:"full_name"`
	Role      string    `json:"role" gorm:"not null;default:viewer"`
	AvatarURL *string   `json:"avatar_url"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Staff is a member of the school staff shown on the public staff page
type Staff struct {
	BaseModel
	Name           string    `json:"name" gorm:"not null"`
	Position       string    `json:"position" gorm:"not null"`
	Qualifications *string   `json:"qualifications"`
	Experience     *string   `json:"experience"`
	PhotoURL       *string   `json:"photo_url"`
	Bio            *string   `json:"bio"`
	IsDirector     bool      `json:"is_director" gorm:"not null;default:false"`
	DisplayOrder   int       `json:"display_order" gorm:"not null;default:0;index"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Event is a dated school event. EventDate is a calendar date (YYYY-MM-DD).
type Event struct {
	BaseModel
	Title       string    `json:"title" gorm:"not null"`
	Description *string   `json:"description"`
	EventDate   string    `json:"event_date" gorm:"type:varchar(10);not null;index"`
	EventTime   *string   `json:"event_time"`
	Location    *string   `json:"location"`
	ImageURL    *string   `json:"image_url"`
	IsFeatured  bool      `json:"is_featured" gorm:"not null;default:false"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// GalleryCategory groups gallery items
type GalleryCategory struct {
	BaseModel
	Name        string  `json:"name" gorm:"not null"`
	Description *string `json:"description"`
}

// Media types for gallery items
const (
	MediaImage = "image"
	MediaVideo = "video"
)

// GalleryItem is one image or video in the gallery
type GalleryItem struct {
	BaseModel
	Title       *string `json:"title"`
	Description *string `json:"description"`
	MediaURL    string  `json:"media_url" gorm:"not null"`
	MediaType   string  `json:"media_type" gorm:"type:varchar(8);not null"`
	CategoryID  *string `json:"category_id" gorm:"index"`

	Category *GalleryCategory `json:"category,omitempty" gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL"`
}

// News is an article. Content is markdown; ContentHTML is rendered on read.
type News struct {
	BaseModel
	Title       string    `json:"title" gorm:"not null"`
	Content     string    `json:"content" gorm:"type:text;not null"`
	ContentHTML string    `json:"content_html,omitempty" gorm:"-"`
	Excerpt     *string   `json:"excerpt"`
	IsPublished bool      `json:"is_published" gorm:"not null;default:false;index"`
	IsFeatured  bool      `json:"is_featured" gorm:"not null;default:false"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Class levels for achievements
const (
	ClassLevel10   = "10"
	ClassLevel12   = "12"
	ClassLevelBoth = "both"
)

// Achievement is a student or school achievement
type Achievement struct {
	BaseModel
	Title       string  `json:"title" gorm:"not null"`
	Description *string `json:"description"`
	ClassLevel  *string `json:"class_level" gorm:"type:varchar(4)"`
	Year        int     `json:"year" gorm:"not null;index"`
	ImageURL    *string `json:"image_url"`
	IsFeatured  bool    `json:"is_featured" gorm:"not null;default:false"`
}

// ContactInquiry is a message submitted through the contact form
type ContactInquiry struct {
	BaseModel
	Name    string  `json:"name" gorm:"not null"`
	Email   string  `json:"email" gorm:"not null"`
	Phone   *string `json:"phone"`
	Subject *string `json:"subject"`
	Message string  `json:"message" gorm:"type:text;not null"`
	IsRead  bool    `json:"is_read" gorm:"not null;default:false;index"`
}

// NewsletterSubscription is one newsletter address
type NewsletterSubscription struct {
	BaseModel
	Email    string `json:"email" gorm:"unique;not null"`
	IsActive bool   `json:"is_active" gorm:"not null;default:true"`
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	models := []interface{}{
		&Config{}, &User{}, &AuthSession{}, &Profile{},
		&Staff{}, &Event{}, &GalleryCategory{}, &GalleryItem{},
		&News{}, &Achievement{}, &ContactInquiry{}, &NewsletterSubscription{},
	}

	return db.AutoMigrate(models...)
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}

// FindByIDWithPreload finds a record by ID with preloading
func FindByIDWithPreload[T any](db *gorm.DB, id string, model *T, preloads ...string) error {
	query := db
	for _, preload := range preloads {
		query = query.Preload(preload)
	}
	return query.Where("id = ?", id).First(model).Error
}
