package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"lms/internal/infrastructure/blob"
	"lms/pkg/logger"
)

// LoadConfig reads the shared settings from the environment.
// DATABASE_URL and JWT_SECRET are required.
func LoadConfig() (Config, error) {
	cfg := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		MaxConns:    int32(GetEnvInt("DB_MAX_CONNS", 25)),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		Storage: blob.Config{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    GetEnv("MINIO_BUCKET", "certificates"),
			UseSSL:    GetEnvBool("MINIO_USE_SSL", false),
		},
		PublicBaseURL:  GetEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		IdempotencyTTL: GetEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		AuditThreshold: GetEnvInt("AUDIT_COMPRESS_THRESHOLD", 10*1024),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("required environment variable DATABASE_URL not set")
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("required environment variable JWT_SECRET not set")
	}
	return cfg, nil
}

// NewLogger builds the process logger from LOG_LEVEL and APP_ENV.
func NewLogger(component string) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:         GetEnv("LOG_LEVEL", "info"),
		Development:   GetEnv("APP_ENV", "development") == "development",
		InitialFields: map[string]any{"app": component},
	})
}

// GetEnv returns the variable or defaultValue when unset.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func GetEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return defaultValue
}

// GetEnvList splits a comma-separated variable, dropping blanks.
func GetEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
