// Package config assembles the server settings from defaults, an optional
// .env file, the process environment and command-line flags, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime settings for the server
type Config struct {
	Port    string
	DataDir string

	// Repository selects "memory" or "sql". DatabaseDSN is a postgres URL
	// or a sqlite file path; empty means <DataDir>/scriptmatch.db.
	Repository  string
	DatabaseDSN string

	// DefaultUserID must be 1 on a fresh store; other ids must already exist
	DefaultUserID   int64
	DefaultUsername string
	DefaultPassword string

	MaxImageBytes  int64
	MaxImageEdge   int
	MaxImagePixels int
	Scorer         string
	ScorerTimeout  time.Duration

	ImageStore       string
	S3Endpoint       string
	S3Region         string
	S3Bucket         string
	S3AccessKey      string
	S3SecretKey      string
	S3ForcePathStyle bool

	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	AnalyzeLimitPerMin int

	JWTSecret string
	TokenTTL  time.Duration

	FontsCacheTTL  time.Duration
	CORSOrigins    []string
	EnableHSTS     bool
	RequestTimeout time.Duration
	LogLevel       string
	GinMode        string
}

// Development defaults that a release build refuses to run with
const (
	defaultJWTSecret       = "change-me-in-production"
	defaultDefaultPassword = "default"
)

// LoadDefaults populates Config with development defaults
func (c *Config) LoadDefaults() {
	c.Port = "8080"
	c.DataDir = "./data"
	c.Repository = "sql"
	c.DatabaseDSN = ""
	c.DefaultUserID = 1
	c.DefaultUsername = "default"
	c.DefaultPassword = defaultDefaultPassword
	c.MaxImageBytes = 5 << 20
	c.MaxImageEdge = 400
	c.MaxImagePixels = 40_000_000
	c.Scorer = "stroke"
	c.ScorerTimeout = 10 * time.Second
	c.ImageStore = "disk"
	c.S3Endpoint = "http://127.0.0.1:9000"
	c.S3Region = "us-east-1"
	c.S3Bucket = "scriptmatch"
	c.S3AccessKey = "admin"
	c.S3SecretKey = "secretpassword"
	c.S3ForcePathStyle = true
	c.RedisAddr = ""
	c.RedisDB = 0
	c.AnalyzeLimitPerMin = 30
	c.JWTSecret = defaultJWTSecret
	c.TokenTTL = 24 * time.Hour
	c.FontsCacheTTL = 10 * time.Minute
	c.CORSOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	c.RequestTimeout = 30 * time.Second
	c.LogLevel = "info"
	c.GinMode = "release"
}

// Load builds a Config from defaults, .env, environment and args
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	cfg.LoadDefaults()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects combinations the server cannot start with
func (c *Config) Validate() error {
	switch c.Repository {
	case "memory", "sql":
	default:
		return fmt.Errorf("REPOSITORY must be memory or sql, got %q", c.Repository)
	}

	switch c.Scorer {
	case "random", "stroke":
	default:
		return fmt.Errorf("SCORER must be random or stroke, got %q", c.Scorer)
	}

	switch c.ImageStore {
	case "disk", "s3":
	default:
		return fmt.Errorf("IMAGE_STORE must be disk or s3, got %q", c.ImageStore)
	}

	if c.DefaultUserID < 1 {
		return fmt.Errorf("DEFAULT_USER_ID must be positive, got %d", c.DefaultUserID)
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be positive, got %d", c.MaxImageBytes)
	}
	if c.MaxImageEdge <= 0 {
		return fmt.Errorf("MAX_IMAGE_EDGE must be positive, got %d", c.MaxImageEdge)
	}
	if c.MaxImagePixels <= 0 {
		return fmt.Errorf("MAX_IMAGE_PIXELS must be positive, got %d", c.MaxImagePixels)
	}
	if c.ScorerTimeout <= 0 {
		return fmt.Errorf("SCORER_TIMEOUT must be positive, got %s", c.ScorerTimeout)
	}
	if c.AnalyzeLimitPerMin <= 0 {
		return fmt.Errorf("ANALYZE_LIMIT_PER_MIN must be positive, got %d", c.AnalyzeLimitPerMin)
	}

	if c.GinMode == "release" {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be set in release mode")
		}
		if c.DefaultPassword == defaultDefaultPassword {
			return fmt.Errorf("DEFAULT_PASSWORD must be set in release mode")
		}
	}

	return nil
}

// SlogLevel maps LogLevel onto a slog level
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) applyEnv() error {
	c.Port = getEnvOrDefault("PORT", c.Port)
	c.DataDir = getEnvOrDefault("DATA_DIR", c.DataDir)
	c.Repository = getEnvOrDefault("REPOSITORY", c.Repository)
	c.DatabaseDSN = getEnvOrDefault("DATABASE_DSN", c.DatabaseDSN)
	c.DefaultUsername = getEnvOrDefault("DEFAULT_USERNAME", c.DefaultUsername)
	c.DefaultPassword = getEnvOrDefault("DEFAULT_PASSWORD", c.DefaultPassword)
	c.Scorer = getEnvOrDefault("SCORER", c.Scorer)
	c.ImageStore = getEnvOrDefault("IMAGE_STORE", c.ImageStore)
	c.S3Endpoint = getEnvOrDefault("S3_ENDPOINT", c.S3Endpoint)
	c.S3Region = getEnvOrDefault("S3_REGION", c.S3Region)
	c.S3Bucket = getEnvOrDefault("S3_BUCKET", c.S3Bucket)
	c.S3AccessKey = getEnvOrDefault("S3_ACCESS_KEY", c.S3AccessKey)
	c.S3SecretKey = getEnvOrDefault("S3_SECRET_KEY", c.S3SecretKey)
	c.RedisAddr = getEnvOrDefault("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", c.RedisPassword)
	c.JWTSecret = getEnvOrDefault("JWT_SECRET", c.JWTSecret)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.GinMode = getEnvOrDefault("GIN_MODE", c.GinMode)

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}

	var err error
	if c.DefaultUserID, err = getEnvInt64("DEFAULT_USER_ID", c.DefaultUserID); err != nil {
		return err
	}
	if c.MaxImageBytes, err = getEnvInt64("MAX_IMAGE_BYTES", c.MaxImageBytes); err != nil {
		return err
	}
	if c.MaxImageEdge, err = getEnvInt("MAX_IMAGE_EDGE", c.MaxImageEdge); err != nil {
		return err
	}
	if c.MaxImagePixels, err = getEnvInt("MAX_IMAGE_PIXELS", c.MaxImagePixels); err != nil {
		return err
	}
	if c.RedisDB, err = getEnvInt("REDIS_DB", c.RedisDB); err != nil {
		return err
	}
	if c.AnalyzeLimitPerMin, err = getEnvInt("ANALYZE_LIMIT_PER_MIN", c.AnalyzeLimitPerMin); err != nil {
		return err
	}
	if c.S3ForcePathStyle, err = getEnvBool("S3_FORCE_PATH_STYLE", c.S3ForcePathStyle); err != nil {
		return err
	}
	if c.EnableHSTS, err = getEnvBool("ENABLE_HSTS", c.EnableHSTS); err != nil {
		return err
	}
	if c.RequestTimeout, err = getEnvDuration("REQUEST_TIMEOUT", c.RequestTimeout); err != nil {
		return err
	}
	if c.ScorerTimeout, err = getEnvDuration("SCORER_TIMEOUT", c.ScorerTimeout); err != nil {
		return err
	}
	if c.TokenTTL, err = getEnvDuration("TOKEN_TTL", c.TokenTTL); err != nil {
		return err
	}
	if c.FontsCacheTTL, err = getEnvDuration("FONTS_CACHE_TTL", c.FontsCacheTTL); err != nil {
		return err
	}

	return nil
}

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
