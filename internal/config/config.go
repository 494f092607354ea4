package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment         string
	HTTPPort            string
	DatabaseURL         string
	TokenSecret         string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	FrontendURL         string
	APIBaseURL          string
	WidgetBaseURL       string
	ExtraAllowedOrigins []string
	APIKeys             []string
	CookieName          string
	CookieDomain        string
	MagicLinkTTL        time.Duration
	SessionTTL          time.Duration
	MailEndpoint        string
	MailAPIKey          string
	MailFrom            string
	ServiceName         string
	RateLimitRPM        int
	TelemetryEndpoint   string
	TelemetryInsecure   bool
}

// IsProduction reports whether the service runs with production hardening
// (secure cookies, no dev-mode token fallbacks).
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:         getEnv("APP_ENV", "development"),
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		TokenSecret:         os.Getenv("TOKEN_SECRET"),
		RedisAddr:           getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             getInt("REDIS_DB", 0),
		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:3000"),
		APIBaseURL:          getEnv("API_BASE_URL", "http://localhost:8080"),
		WidgetBaseURL:       getEnv("WIDGET_BASE_URL", "http://localhost:8080"),
		ExtraAllowedOrigins: getList("EXTRA_ALLOWED_ORIGINS", nil),
		APIKeys:             getList("API_KEYS", nil),
		CookieName:          getEnv("COOKIE_NAME", "ck_auth"),
		CookieDomain:        os.Getenv("COOKIE_DOMAIN"),
		MagicLinkTTL:        getDuration("MAGIC_LINK_TTL", 15*time.Minute),
		SessionTTL:          getDuration("SESSION_TTL", 30*24*time.Hour),
		MailEndpoint:        os.Getenv("MAIL_ENDPOINT"),
		MailAPIKey:          os.Getenv("MAIL_API_KEY"),
		MailFrom:            getEnv("MAIL_FROM", "CommentKit <login@commentkit.io>"),
		ServiceName:         getEnv("SERVICE_NAME", "commentkit-api"),
		RateLimitRPM:        getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:   getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.TokenSecret == "" {
		return Config{}, fmt.Errorf("TOKEN_SECRET is required")
	}
	if cfg.IsProduction() && len(cfg.TokenSecret) < 32 {
		return Config{}, fmt.Errorf("TOKEN_SECRET must be at least 32 bytes in production")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
