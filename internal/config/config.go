package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port            string        `json:"port" validate:"required,numeric"`
	Env             string        `json:"env"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" validate:"gt=0"`
	HTTPTimeout     time.Duration `json:"http_timeout" validate:"gt=0"`

	// Feed configuration
	FeedURL             string `json:"feed_url" validate:"required,url"`
	FeedFetchLimit      int    `json:"feed_fetch_limit" validate:"min=1,max=100"`
	PlaceholderImageURL string `json:"placeholder_image_url" validate:"required"`

	// AI Configuration
	AIProvider        string        `json:"ai_provider" validate:"oneof=gemini offline"`
	AIApiKey          string        `json:"ai_api_key" validate:"required_if=AIProvider gemini"`
	AIModel           string        `json:"ai_model" validate:"required"`
	AITimeout         time.Duration `json:"ai_timeout" validate:"gt=0"`
	TargetLanguage    string        `json:"target_language" validate:"required"`
	TargetSelectCount int           `json:"target_select_count" validate:"min=1"`
	RewriteCooldown   time.Duration `json:"rewrite_cooldown" validate:"gte=0"`

	// Scheduling
	ScheduleTimes    []string `json:"schedule_times" validate:"dive,datetime=15:04"`
	ScheduleTimezone string   `json:"schedule_timezone"`

	// Storage
	DatabasePath   string   `json:"database_path" validate:"required"`
	ImageOutputDir string   `json:"image_output_dir" validate:"required"`
	FontPaths      []string `json:"font_paths"`

	// Processed-URL cache; without RedisURL an in-memory cache is used
	RedisURL    string        `json:"redis_url"`
	RedisPrefix string        `json:"redis_prefix"`
	CacheTTL    time.Duration `json:"cache_ttl"`

	// CloudFlare R2 Configuration; empty endpoint keeps images local
	R2Endpoint  string `json:"r2_endpoint"`
	R2AccessKey string `json:"r2_access_key"`
	R2SecretKey string `json:"r2_secret_key"`
	R2Bucket    string `json:"r2_bucket"`
	R2PublicURL string `json:"r2_public_url" validate:"required_with=R2Endpoint"`

	// Publishing
	PublishProvider     string `json:"publish_provider" validate:"oneof=facebook offline"`
	FacebookPageID      string `json:"facebook_page_id" validate:"required_if=PublishProvider facebook"`
	FacebookAccessToken string `json:"facebook_access_token" validate:"required_if=PublishProvider facebook"`
	FacebookAPIVersion  string `json:"facebook_api_version"`

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`
}

// Load loads configuration from environment variables and validates it
func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := FromEnv()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	return cfg
}

// FromEnv builds a Config from the process environment without validating it.
func FromEnv() *Config {
	aiKey := getEnv("AI_API_KEY", getEnv("GEMINI_API_KEY", ""))
	aiProvider := "gemini"
	if aiKey == "" {
		aiProvider = "offline"
	}

	fbToken := getEnv("FACEBOOK_ACCESS_TOKEN", "")
	publishProvider := "facebook"
	if fbToken == "" {
		publishProvider = "offline"
	}

	cooldown := getEnvAsDuration("REWRITE_COOLDOWN", 20*time.Second)
	if ms := getEnvAsInt("REWRITE_COOLDOWN_MS", -1); ms >= 0 {
		cooldown = time.Duration(ms) * time.Millisecond
	}

	return &Config{
		// Server configuration
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("APP_ENV", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 15*time.Second),

		// Feed configuration
		FeedURL:             getEnv("FEED_URL", "https://www.espn.com/espn/rss/news"),
		FeedFetchLimit:      getEnvAsInt("FEED_FETCH_LIMIT", 10),
		PlaceholderImageURL: getEnv("PLACEHOLDER_IMAGE_URL", "https://placehold.co/1024x1024.jpg"),

		// AI Configuration
		AIProvider:        getEnv("AI_PROVIDER", aiProvider),
		AIApiKey:          aiKey,
		AIModel:           getEnv("AI_MODEL", "gemini-2.0-flash"),
		AITimeout:         getEnvAsDuration("AI_TIMEOUT", 60*time.Second),
		TargetLanguage:    getEnv("TARGET_LANGUAGE", "Thai"),
		TargetSelectCount: getEnvAsInt("TARGET_SELECT_COUNT", 3),
		RewriteCooldown:   cooldown,

		// Scheduling
		ScheduleTimes:    getEnvAsList("SCHEDULE_TIMES", []string{"09:00", "15:00", "21:00"}),
		ScheduleTimezone: getEnv("SCHEDULE_TIMEZONE", ""),

		// Storage
		DatabasePath:   getEnv("DATABASE_PATH", "./data/news.db"),
		ImageOutputDir: getEnv("IMAGE_OUTPUT_DIR", "./data/generated_images"),
		FontPaths:      getEnvAsList("FONT_PATHS", nil),

		// Processed-URL cache
		RedisURL:    getEnv("REDIS_URL", ""),
		RedisPrefix: getEnv("REDIS_PREFIX", "newsroom:processed:"),
		CacheTTL:    getEnvAsDuration("CACHE_TTL", 720*time.Hour), // 30 days

		// CloudFlare R2 Configuration
		R2Endpoint:  getEnv("R2_ENDPOINT", ""),
		R2AccessKey: getEnv("R2_ACCESS_KEY", ""),
		R2SecretKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:    getEnv("R2_BUCKET", "newsroom"),
		R2PublicURL: getEnv("R2_PUBLIC_URL", ""),

		// Publishing
		PublishProvider:     getEnv("PUBLISH_PROVIDER", publishProvider),
		FacebookPageID:      getEnv("FACEBOOK_PAGE_ID", ""),
		FacebookAccessToken: fbToken,
		FacebookAPIVersion:  getEnv("FACEBOOK_API_VERSION", "v19.0"),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.ScheduleTimezone != "" {
		if _, err := time.LoadLocation(c.ScheduleTimezone); err != nil {
			return fmt.Errorf("invalid SCHEDULE_TIMEZONE %q: %w", c.ScheduleTimezone, err)
		}
	}
	return nil
}

// Location returns the time zone schedule times are interpreted in.
func (c *Config) Location() *time.Location {
	if c.ScheduleTimezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.ScheduleTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping empty entries
func getEnvAsList(name string, defaultVal []string) []string {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
