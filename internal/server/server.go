// Package server
//
// @title SchoolHub API
// @version 1.0
// @description School website backend: auth provider, site content and admin API
// @host localhost:8080
// @BasePath /
package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/schoolhub-dev/schoolhub/internal/auth"
	"github.com/schoolhub-dev/schoolhub/internal/config"
	"github.com/schoolhub-dev/schoolhub/internal/content"
	"github.com/schoolhub-dev/schoolhub/internal/identity"
	"github.com/schoolhub-dev/schoolhub/internal/metrics"
	"github.com/schoolhub-dev/schoolhub/internal/models"
	"github.com/schoolhub-dev/schoolhub/internal/roles"
	"github.com/schoolhub-dev/schoolhub/internal/storage"
	"github.com/schoolhub-dev/schoolhub/internal/tasks"
)

// Server represents the HTTP server
type Server struct {
	router     *gin.Engine
	db         *gorm.DB
	config     *config.Config
	logger     zerolog.Logger
	jobs       tasks.Enqueuer
	jobsCloser io.Closer
	identity   *identity.Service
	content    *content.Service
	store      *storage.Store
	resolver   *roles.Resolver
	metrics    *metrics.Metrics
	version    string
}

// New creates a new server instance
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	// Initialize database with production settings
	db, err := initDatabase(cfg, zlog)
	if err != nil {
		return nil, err
	}

	// Initialize Asynq client for enqueueing tasks
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: cfg.Redis.Address,
	})

	s, err := NewWithDB(cfg, db, asynqClient, zlog, version)
	if err != nil {
		asynqClient.Close()
		return nil, err
	}
	s.jobsCloser = asynqClient
	return s, nil
}

// NewWithDB wires services around an open database and job queue.
// jobs may be nil, in which case background jobs are skipped.
func NewWithDB(cfg *config.Config, db *gorm.DB, jobs tasks.Enqueuer, zlog zerolog.Logger, version string) (*Server, error) {
	// Run database migrations
	if err := models.AutoMigrate(db); err != nil {
		return nil, err
	}

	// The JWT secret is generated on first boot and persisted
	secret, err := identity.LoadOrCreateSecret(db)
	if err != nil {
		return nil, err
	}
	signer := auth.NewSigner(secret, cfg.Auth.AccessTokenTTL)

	store, err := storage.New(cfg.Storage.Root, cfg.HTTP.PublicBaseURL, zlog)
	if err != nil {
		return nil, err
	}

	registerValidators()

	allow := roles.NewAllowList(cfg.Auth.AdminEmails...)
	zlog.Info().Int("admin_emails", allow.Len()).Msg("Admin allow-list loaded")

	s := &Server{
		db:       db,
		config:   cfg,
		logger:   zlog,
		jobs:     jobs,
		identity: identity.NewService(db, signer, cfg.Auth.RefreshTokenTTL, zlog),
		content:  content.NewService(db, store, zlog),
		store:    store,
		resolver: roles.NewResolver(allow, content.NewProfileRoles(db), zlog),
		metrics:  metrics.New(),
		version:  version,
	}

	// Setup router
	s.setupRouter()

	return s, nil
}

var registerOnce sync.Once

// registerValidators adds the custom binding rules used by request structs
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterValidation("class_level", func(fl validator.FieldLevel) bool {
			return content.ValidClassLevel(fl.Field().String())
		})
		v.RegisterValidation("media_type", func(fl validator.FieldLevel) bool {
			value := fl.Field().String()
			return value == models.MediaImage || value == models.MediaVideo
		})
	})
}

// OpenDatabase opens and migrates the configured database for tools that run
// outside the server
func OpenDatabase(cfg *config.Config, zlog zerolog.Logger) (*gorm.DB, error) {
	db, err := initDatabase(cfg, zlog)
	if err != nil {
		return nil, err
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// initDatabase initializes the database connection with production settings
func initDatabase(cfg *config.Config, zlog zerolog.Logger) (*gorm.DB, error) {
	const (
		maxOpenConns    = 8
		maxIdleConns    = 4
		connMaxLifetime = 300  // 5 minutes
		busyTimeout     = 5000 // 5 seconds
		cacheSize       = 10000
	)

	db, err := gorm.Open(sqlite.Open(cfg.Database.URL), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL mode must be set first
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
		fmt.Sprintf("PRAGMA cache_size=-%d", cacheSize),
		"PRAGMA foreign_keys=1",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			zlog.Warn().Str("pragma", pragma).Err(err).Msg("Failed to apply pragma")
		}
	}

	return db, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.HTTP.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check and metrics (no auth required)
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	// First-run setup
	s.router.POST("/api/setup", s.setupFirstAdmin)

	// Auth provider
	authRoutes := s.router.Group("/auth/v1")
	{
		authRoutes.POST("/token", s.token)
		authRoutes.POST("/logout", JWTAuthMiddleware(s.identity, s.logger), s.logout)
		authRoutes.GET("/user", JWTAuthMiddleware(s.identity, s.logger), s.getCurrentUser)
	}

	// Table lookups for signed-in clients
	rest := s.router.Group("/rest/v1")
	rest.Use(JWTAuthMiddleware(s.identity, s.logger))
	{
		rest.GET("/profiles/:user_id", s.getProfileRow)
	}

	// Public object storage
	s.router.GET("/storage/v1/object/public/:bucket/*path", s.getPublicObject)
	s.router.HEAD("/storage/v1/object/public/:bucket/*path", s.getPublicObject)

	// Public site API
	public := s.router.Group("/api")
	{
		public.GET("/staff", s.listStaff)
		public.GET("/staff/:id", s.getStaff)
		public.GET("/events", s.listEvents)
		public.GET("/events/:id", s.getEvent)
		public.GET("/gallery", s.listGalleryItems)
		public.GET("/gallery/categories", s.listCategories)
		public.GET("/news", s.listNews)
		public.GET("/news/:id", s.getNews)
		public.GET("/news/:id/related", s.listRelatedNews)
		public.GET("/achievements", s.listAchievements)
		public.GET("/achievements/years", s.listAchievementYears)
		public.GET("/updates", s.latestUpdates)
		public.POST("/contact", s.submitInquiry)
		public.POST("/newsletter/subscribe", s.subscribe)
		public.POST("/newsletter/unsubscribe", s.unsubscribe)
	}

	// Signed-in user's own profile
	me := s.router.Group("/api/profile")
	me.Use(JWTAuthMiddleware(s.identity, s.logger))
	{
		me.GET("", s.getOwnProfile)
		me.PUT("", s.upsertOwnProfile)
		me.PATCH("", s.updateOwnProfile)
		me.POST("/avatar", s.uploadOwnAvatar)
	}

	// Admin API (JWT + admin flag required)
	admin := s.router.Group("/api/admin")
	admin.Use(JWTAuthMiddleware(s.identity, s.logger))
	admin.Use(AdminOnlyMiddleware(s.resolver, s.metrics, s.logger))
	{
		admin.GET("/dashboard", s.getDashboard)

		admin.GET("/users", s.listUsers)
		admin.POST("/users", s.createUser)
		admin.PATCH("/profiles/:user_id", s.updateProfile)

		admin.POST("/staff", s.createStaff)
		admin.PATCH("/staff/:id", s.updateStaff)
		admin.DELETE("/staff/:id", s.deleteStaff)
		admin.POST("/staff/:id/photo", s.uploadStaffPhoto)

		admin.POST("/events", s.createEvent)
		admin.PATCH("/events/:id", s.updateEvent)
		admin.DELETE("/events/:id", s.deleteEvent)
		admin.POST("/events/:id/image", s.uploadEventImage)

		admin.POST("/gallery/categories", s.createCategory)
		admin.PATCH("/gallery/categories/:id", s.updateCategory)
		admin.DELETE("/gallery/categories/:id", s.deleteCategory)
		admin.POST("/gallery", s.createGalleryItem)
		admin.POST("/gallery/:id/media", s.uploadGalleryMedia)
		admin.PATCH("/gallery/:id", s.updateGalleryItem)
		admin.DELETE("/gallery/:id", s.deleteGalleryItem)

		admin.GET("/news", s.listNewsAdmin)
		admin.POST("/news", s.createNews)
		admin.PATCH("/news/:id", s.updateNews)
		admin.DELETE("/news/:id", s.deleteNews)
		admin.POST("/news/:id/publish", s.setNewsPublished)
		admin.POST("/news/:id/feature", s.setNewsFeatured)

		admin.POST("/achievements", s.createAchievement)
		admin.PATCH("/achievements/:id", s.updateAchievement)
		admin.DELETE("/achievements/:id", s.deleteAchievement)
		admin.POST("/achievements/:id/feature", s.setAchievementFeatured)
		admin.POST("/achievements/:id/image", s.uploadAchievementImage)

		admin.GET("/inquiries", s.listInquiries)
		admin.GET("/inquiries/:id", s.getInquiry)
		admin.PATCH("/inquiries/:id", s.markInquiryRead)
		admin.DELETE("/inquiries/:id", s.deleteInquiry)
		admin.GET("/subscribers", s.listSubscribers)
	}
}

// loggingMiddleware logs each request with zerolog and records HTTP metrics
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		// Route templates keep label cardinality bounded
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, fmt.Sprint(c.Writer.Status())).Inc()
		s.metrics.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(duration.Seconds())

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// @Router /health [get]
// @Success 200 {object} map[string]interface{}
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "schoolhub-api",
		"version":   s.version,
	})
}

// enqueue schedules a background job. Failures are logged and never fail the request.
func (s *Server) enqueue(task *asynq.Task, err error, opts ...asynq.Option) {
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create task")
		return
	}
	if s.jobs == nil {
		return
	}
	if _, err := s.jobs.Enqueue(task, opts...); err != nil {
		s.metrics.JobsEnqueued.WithLabelValues(task.Type(), metrics.ResultFailure).Inc()
		s.logger.Error().Err(err).Str("task_type", task.Type()).Msg("Failed to enqueue task")
		return
	}
	s.metrics.JobsEnqueued.WithLabelValues(task.Type(), metrics.ResultSuccess).Inc()
}

// GetDB returns the database connection for use by workers
func (s *Server) GetDB() *gorm.DB {
	return s.db
}

// Identity returns the auth provider service for use by workers
func (s *Server) Identity() *identity.Service {
	return s.identity
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	port := ":" + s.config.HTTP.Port

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              port,
		Handler:           s.router,
		ReadTimeout:       60 * time.Second, // Uploads
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		s.logger.Info().Str("port", port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	<-sigChan
	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	if s.jobsCloser != nil {
		if err := s.jobsCloser.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Error closing Asynq client")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	s.logger.Info().Msg("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	// Close database connection to flush WAL writes
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Error closing database")
		}
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
