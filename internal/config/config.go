// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Process  ProcessConfig
	Storage  StorageConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// ProcessConfig holds search/replace run settings.
type ProcessConfig struct {
	// MaxConcurrent is the maximum number of parallel runs (default: 4)
	MaxConcurrent int `env:"PROCESS_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a request waits for a run slot (default: 10s)
	MaxWaitTime time.Duration `env:"PROCESS_MAX_WAIT_TIME" default:"10s"`

	// Timeout is the maximum duration for a single run (default: 10m)
	Timeout time.Duration `env:"PROCESS_TIMEOUT" default:"10m"`

	// MaxFileSize is the maximum allowed input size in bytes, for uploads
	// and remote fetches alike (default: 100MB)
	MaxFileSize int64 `env:"PROCESS_MAX_FILE_SIZE" default:"104857600"`
}

// StorageConfig holds artifact and upload storage settings.
type StorageConfig struct {
	// Backend selects where artifacts live: disk or s3 (default: disk)
	Backend string `env:"STORAGE_BACKEND" default:"disk"`

	// ArtifactDir is the disk backend's artifact directory (default: data/artifacts)
	ArtifactDir string `env:"STORAGE_ARTIFACT_DIR" default:"data/artifacts"`

	// UploadDir is the intake directory for uploaded inputs (default: data/uploads)
	UploadDir string `env:"STORAGE_UPLOAD_DIR" default:"data/uploads"`

	// DownloadPath is the URL path prefix artifacts are served from (default: /api/download)
	DownloadPath string `env:"STORAGE_DOWNLOAD_PATH" default:"/api/download"`

	// ArtifactTTL is how long artifacts stay downloadable (default: 24h)
	ArtifactTTL time.Duration `env:"STORAGE_ARTIFACT_TTL" default:"24h"`

	// UploadTTL is how long unconsumed uploads stay (default: 1h)
	UploadTTL time.Duration `env:"STORAGE_UPLOAD_TTL" default:"1h"`

	// CleanupInterval is how often the retention sweeper runs (default: 10m)
	CleanupInterval time.Duration `env:"STORAGE_CLEANUP_INTERVAL" default:"10m"`

	// S3Bucket is the bucket for the s3 backend (required when Backend is s3)
	S3Bucket string `env:"S3_BUCKET"`

	// S3Prefix is the object key prefix for the s3 backend (default: artifacts)
	S3Prefix string `env:"S3_PREFIX" default:"artifacts"`

	// S3Region overrides the ambient AWS region when set
	S3Region string `env:"S3_REGION"`

	// S3Endpoint points at an S3-compatible store when set
	S3Endpoint string `env:"S3_ENDPOINT"`

	// S3UsePathStyle forces path-style addressing, for S3-compatible stores (default: false)
	S3UsePathStyle bool `env:"S3_USE_PATH_STYLE" default:"false"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ProcessLimit is requests per minute for the processing endpoints (default: 10)
	ProcessLimit int `env:"RATE_LIMIT_PROCESS" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
