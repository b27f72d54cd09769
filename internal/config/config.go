package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	// Database Configuration
	Database DatabaseConfig

	// Redis Configuration
	Redis RedisConfig

	// Logging Configuration
	Logging LoggingConfig

	// HTTP server configuration
	HTTP HTTPConfig

	// Authentication configuration
	Auth AuthConfig

	// Object storage configuration
	Storage StorageConfig

	// Outbound email configuration
	Email EmailConfig

	// Background job configuration
	Jobs JobsConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address string // Redis address (host:port)
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// HTTPConfig holds listener and CORS settings
type HTTPConfig struct {
	Port           string
	AllowedOrigins []string
	PublicBaseURL  string // Used to build public storage URLs
}

// AuthConfig holds token lifetimes and the admin allow-list
type AuthConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	AdminEmails     []string
}

// StorageConfig holds object storage settings
type StorageConfig struct {
	Root string // Directory holding one sub-directory per bucket
}

// EmailConfig holds Resend settings. Email is disabled when APIKey is empty.
type EmailConfig struct {
	APIKey      string
	From        string
	OfficeEmail string // Receives contact inquiry notifications
}

// JobsConfig holds schedules for periodic jobs
type JobsConfig struct {
	SessionPruneSchedule string // Cron expression
}

// siteFile is the optional YAML site configuration (SITE_CONFIG_FILE)
type siteFile struct {
	Admins struct {
		Emails []string `yaml:"emails"`
	} `yaml:"admins"`
	Office struct {
		Email string `yaml:"email"`
	} `yaml:"office"`
}

// DefaultAdminEmails are always treated as administrators
var DefaultAdminEmails = []string{
	"admin@example.com",
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	accessTTL, err := durationEnv("ACCESS_TOKEN_TTL", time.Hour)
	if err != nil {
		return nil, err
	}
	refreshTTL, err := durationEnv("REFRESH_TOKEN_TTL", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}

	port := getEnv("PORT", "8080")

	cfg := &Config{
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", "schoolhub.sqlite"),
		},
		Redis: RedisConfig{
			Address: getEnv("REDIS_ADDRESS", "localhost:6379"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		HTTP: HTTPConfig{
			Port:           port,
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
			PublicBaseURL:  strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		},
		Auth: AuthConfig{
			AccessTokenTTL:  accessTTL,
			RefreshTokenTTL: refreshTTL,
			AdminEmails:     append(append([]string{}, DefaultAdminEmails...), splitList(os.Getenv("ADMIN_EMAILS"))...),
		},
		Storage: StorageConfig{
			Root: getEnv("STORAGE_ROOT", "storage"),
		},
		Email: EmailConfig{
			APIKey:      os.Getenv("RESEND_API_KEY"),
			From:        getEnv("EMAIL_FROM", "School Office <office@example.com>"),
			OfficeEmail: os.Getenv("OFFICE_EMAIL"),
		},
		Jobs: JobsConfig{
			SessionPruneSchedule: getEnv("SESSION_PRUNE_SCHEDULE", "0 * * * *"),
		},
	}

	if path := os.Getenv("SITE_CONFIG_FILE"); path != "" {
		if err := cfg.mergeSiteFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// mergeSiteFile adds allow-list entries and the office address from a YAML file
func (c *Config) mergeSiteFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read site config: %w", err)
	}

	var site siteFile
	if err := yaml.Unmarshal(data, &site); err != nil {
		return fmt.Errorf("failed to parse site config: %w", err)
	}

	c.Auth.AdminEmails = append(c.Auth.AdminEmails, site.Admins.Emails...)
	if c.Email.OfficeEmail == "" {
		c.Email.OfficeEmail = site.Office.Email
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	// Plain integers are seconds
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
