package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded once at startup.
type Config struct {
	Server   ServerConfig
	PACS     PACSConfig
	SCP      SCPConfig
	Client   ClientConfig
	Log      LogConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Metrics  MetricsConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PACSConfig describes the remote PACS node queried over DIMSE, or a
// DICOMweb origin when Type is "dicomweb".
type PACSConfig struct {
	Type string // "dimse" or "dicomweb"
	Host string
	Port int
	AET  string
}

// SCPConfig configures the local C-STORE receiver.
type SCPConfig struct {
	AET        string
	Port       int
	StorageDir string
}

// ClientConfig is the identity used when acting as SCU.
type ClientConfig struct {
	AET string
}

type LogConfig struct {
	Level  string
	Format string
}

type CacheConfig struct {
	Enabled bool
	Type    string // "memory" or "redis"
	TTL     time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// DatabaseConfig configures the optional audit database.
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	LogLevel string
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type MetricsConfig struct {
	Enabled bool
}

// Load reads configuration from the environment, honoring a .env file if
// one is present in the working directory.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments use actual env vars.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8000),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 330*time.Second),
		},
		PACS: PACSConfig{
			Type: getEnv("PACS_TYPE", "dimse"),
			Host: getEnv("PACS_HOST", "127.0.0.1"),
			Port: getEnvInt("PACS_PORT", 11112),
			AET:  getEnv("PACS_AET", "DCM4CHEE"),
		},
		SCP: SCPConfig{
			AET:        getEnv("SCP_AET", "GATEWAY_SCP"),
			Port:       getEnvInt("SCP_PORT", 11115),
			StorageDir: getEnv("SCP_STORAGE_DIR", "./dicom_received"),
		},
		Client: ClientConfig{
			AET: getEnv("CLIENT_AET", "GATEWAY_SCU"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Cache: CacheConfig{
			Enabled: getEnvBool("CACHE_ENABLED", true),
			Type:    getEnv("CACHE_TYPE", "memory"),
			TTL:     getEnvDuration("CACHE_TTL", 60*time.Second),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvBool("AUDIT_DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "gateway"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "dicom_gateway"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			LogLevel: getEnv("DB_LOG_LEVEL", "warn"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: getEnvList("CORS_ALLOWED_HEADERS", []string{"Accept", "Content-Type"}),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
	}

	return cfg, nil
}

// Validate checks the invariants required before startup.
func (c *Config) Validate() error {
	if c.PACS.Host == "" {
		return fmt.Errorf("PACS_HOST is required")
	}
	if c.PACS.Port <= 0 || c.PACS.Port > 65535 {
		return fmt.Errorf("PACS_PORT out of range: %d", c.PACS.Port)
	}
	if c.PACS.AET == "" {
		return fmt.Errorf("PACS_AET is required")
	}
	if c.PACS.Type != "dimse" && c.PACS.Type != "dicomweb" {
		return fmt.Errorf("unsupported PACS_TYPE: %s", c.PACS.Type)
	}
	if c.Client.AET == "" {
		return fmt.Errorf("CLIENT_AET is required")
	}
	if c.SCP.AET == "" {
		return fmt.Errorf("SCP_AET is required")
	}
	if c.SCP.Port <= 0 || c.SCP.Port > 65535 {
		return fmt.Errorf("SCP_PORT out of range: %d", c.SCP.Port)
	}
	if c.SCP.StorageDir == "" {
		return fmt.Errorf("SCP_STORAGE_DIR is required")
	}
	if c.Cache.Enabled && c.Cache.Type != "memory" && c.Cache.Type != "redis" {
		return fmt.Errorf("unsupported CACHE_TYPE: %s", c.Cache.Type)
	}
	return nil
}

// EnsureDirs creates the directories the service writes to.
func (c *Config) EnsureDirs() error {
	if err := os.MkdirAll(c.SCP.StorageDir, 0o755); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", c.SCP.StorageDir, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
