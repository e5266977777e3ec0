// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Catalog  CatalogConfig
	OCR      OCRConfig
	Session  SessionConfig
	Upload   UploadConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

// CatalogConfig points at the external catalog and credit-decision engine.
type CatalogConfig struct {
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	CacheTTL    time.Duration
	APIKey      string
}

// OCRConfig points at the external identity-document parsing service.
type OCRConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

type SessionConfig struct {
	TTL time.Duration
}

type UploadConfig struct {
	MaxFileSize int64
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:      normalizeRedisURL(getEnv("REDIS_URL", "localhost:6379")),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "change-this-secret"),
		},
		Catalog: CatalogConfig{
			BaseURL:    getEnv("CATALOG_BASE_URL", "http://localhost:9100"),
			Timeout:    getDurationEnv("CATALOG_TIMEOUT", 10*time.Second),
			MaxRetries: getIntEnv("CATALOG_MAX_RETRIES", 2),
			CacheTTL:   getDurationEnv("CATALOG_CACHE_TTL", 5*time.Minute),
			APIKey:     getEnv("CATALOG_API_KEY", ""),
		},
		OCR: OCRConfig{
			BaseURL:    getEnv("OCR_BASE_URL", "http://localhost:9200"),
			Timeout:    getDurationEnv("OCR_TIMEOUT", 30*time.Second),
			MaxRetries: getIntEnv("OCR_MAX_RETRIES", 1),
		},
		Session: SessionConfig{
			TTL: getDurationEnv("SESSION_TTL", 24*time.Hour),
		},
		Upload: UploadConfig{
			MaxFileSize: int64(getIntEnv("UPLOAD_MAX_FILE_SIZE", 10<<20)),
		},
	}
}

// ValidateCore checks settings every service needs before it can start.
func (c *Config) ValidateCore() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWT.Secret == "" || c.JWT.Secret == "change-this-secret" {
		return fmt.Errorf("JWT_SECRET must be set to a non-default value")
	}
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("CATALOG_BASE_URL is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// normalizeRedisURL strips a redis:// scheme so the value can be handed to
// the client as a plain host:port address.
func normalizeRedisURL(url string) string {
	url = strings.TrimPrefix(url, "redis://")
	url = strings.TrimPrefix(url, "rediss://")
	if i := strings.Index(url, "@"); i >= 0 {
		url = url[i+1:]
	}
	return url
}
