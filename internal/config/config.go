package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/waggishPlayer/hot-wax/internal/validation"
)

// Config is everything the dashboard reads from the environment.
type Config struct {
	BackendURL   string        `validate:"required,url"`
	ListenAddr   string        `validate:"required"`
	RunLocal     bool
	HTTPTimeout  time.Duration `validate:"min=0"` // 0 means no timeout beyond the transport's
	LogLevel     string        `validate:"oneof=debug info warn error"`
	SessionKey   []byte        `validate:"min=32"`
	CSRFKey      []byte        `validate:"min=32"`
	CookieSecure bool

	// Optional AWS wiring; empty disables the feature.
	ActivityQueueURL string `validate:"omitempty,url"`
	MetricsNamespace string
	MetricsInterval  time.Duration `validate:"min=0"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := &Config{
		BackendURL:       strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:8080"), "/"),
		ListenAddr:       getEnv("LISTEN_ADDR", ":3000"),
		RunLocal:         getEnv("RUN_LOCAL", "false") == "true",
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		CookieSecure:     getEnv("COOKIE_SECURE", "false") == "true",
		ActivityQueueURL: getEnv("ACTIVITY_QUEUE_URL", ""),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", ""),
	}

	var err error
	if cfg.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.MetricsInterval, err = getDuration("METRICS_INTERVAL", time.Minute); err != nil {
		return nil, err
	}

	cfg.SessionKey = loadKey("SESSION_KEY")
	cfg.CSRFKey = loadKey("CSRF_KEY")

	if err := validation.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SlogLevel maps LogLevel onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getDuration accepts Go durations ("30s") or plain seconds ("30").
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

// loadKey decodes a base64 key of at least 32 bytes, or generates a random
// one for development.
func loadKey(name string) []byte {
	raw := os.Getenv(name)
	if raw == "" {
		slog.Warn(name + " not set. Generating a random key for development; sessions will not survive a restart. SET " + name + " IN PRODUCTION!")
		return generateRandomBytes(32)
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(decoded) < 32 {
		slog.Warn(name + " is invalid or shorter than 32 bytes. Generating a random key for development. SET A SECURE " + name + " IN PRODUCTION!")
		return generateRandomBytes(32)
	}
	return decoded
}

func generateRandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing leaves nothing safe to fall back to
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	return b
}
