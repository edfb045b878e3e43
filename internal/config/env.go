package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	ServerURL        string
	SourceHostAPIURL string
	Port             string
	WebDir           string
	AllowedOrigins   []string
	LogLevel         string
	Production       bool

	HTTPTimeout     time.Duration
	PollInterval    time.Duration
	ViewTTL         time.Duration
	MaxViews        int
	RepoPageSize    int
	SourceHostRPS   float64
	NotificationTTL time.Duration

	CookieSecret      string
	CookieSecure      bool
	SessionTTL        time.Duration
	SourceHostTTL     time.Duration
	ProtectedPrefixes []string

	DatabaseURL  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	S3Endpoint   string
}

// LoadConfig loads the environment variables and return config.
// envFiles are passed to godotenv; a missing file is not an error.
func LoadConfig(envFiles ...string) (*Config, error) {

	_ = godotenv.Load(envFiles...)

	production := getEnv("APP_ENV", "development") == "production"

	cfg := &Config{
		ServerURL:         strings.TrimSuffix(getEnv("SERVER_URL", ""), "/"),
		SourceHostAPIURL:  strings.TrimSuffix(getEnv("SOURCE_HOST_API_URL", "https://api.github.com"), "/"),
		Port:              getEnv("PORT", "3000"),
		WebDir:            getEnv("WEB_DIR", "./web"),
		AllowedOrigins:    getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Production:        production,
		HTTPTimeout:       getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		PollInterval:      getEnvDuration("POLL_INTERVAL", 3*time.Second),
		ViewTTL:           getEnvDuration("VIEW_TTL", 30*time.Minute),
		MaxViews:          getEnvInt("MAX_VIEWS", 1024),
		RepoPageSize:      getEnvInt("REPO_PAGE_SIZE", 10),
		SourceHostRPS:     getEnvFloat("SOURCE_HOST_RPS", 5),
		NotificationTTL:   getEnvDuration("NOTIFICATION_TTL", 4*time.Second),
		CookieSecret:      getEnv("COOKIE_SECRET", ""),
		CookieSecure:      getEnvBool("COOKIE_SECURE", production),
		SessionTTL:        getEnvDuration("SESSION_TTL", 7*24*time.Hour),
		SourceHostTTL:     getEnvDuration("SOURCE_HOST_TTL", 30*24*time.Hour),
		ProtectedPrefixes: getEnvList("PROTECTED_PREFIXES", []string{"/dashboard", "/documentation", "/repositories"}),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		AwsAccessKey:      getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:      getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:         getEnv("AWS_REGION", "us-east-2"),
		BucketName:        getEnv("BUCKET_NAME", ""),
		S3Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
	}

	if cfg.ServerURL == "" {
		return nil, errors.New("SERVER_URL not set")
	}
	if cfg.PollInterval <= 0 {
		return nil, errors.New("POLL_INTERVAL must be positive")
	}

	return cfg, nil
}

// ExportEnabled reports whether documentation exports can be archived to S3.
func (c *Config) ExportEnabled() bool {
	return c.BucketName != "" && c.AwsAccessKey != "" && c.AwsSecretKey != ""
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Int("default", def).Msg("not an int, using default")
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Float64("default", def).Msg("not a number, using default")
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Bool("default", def).Msg("not a bool, using default")
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Dur("default", def).Msg("not a duration, using default")
		return def
	}
	return d
}

func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
