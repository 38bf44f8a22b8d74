// Package config provides common configuration loading and management
// utilities, plus the concrete server and client configuration shapes for
// bdp, built on the same environment-variable conventions viper exposes
// to the CLI (flag > env > config file > default).
package config

import (
	"fmt"
	"strings"
	"time"
)

// EnvConfig reads environment variables under an optional prefix, e.g.
// NewEnvConfig("INGEST").GetInt("WORKER_THREADS", 4) reads INGEST_WORKER_THREADS.
type EnvConfig struct {
	prefix string
}

func NewEnvConfig(prefix string) *EnvConfig { return &EnvConfig{prefix: prefix} }

func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix == "" {
		return key
	}
	return ec.prefix + "_" + key
}

func (ec *EnvConfig) GetString(key, defaultValue string) string {
	return GetEnv(ec.buildKey(key), defaultValue)
}

func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	return GetEnvInt(ec.buildKey(key), defaultValue)
}

func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	return GetEnvBool(ec.buildKey(key), defaultValue)
}

func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	raw := GetEnv(ec.buildKey(key), "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return d
}

func (ec *EnvConfig) GetStringSlice(key string, defaultValue []string) []string {
	raw := GetEnv(ec.buildKey(key), "")
	if raw == "" {
		return defaultValue
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Validator accumulates field-level configuration errors so the server or
// CLI can report every problem at once instead of failing on the first.
type Validator struct {
	errors []string
}

func NewValidator() *Validator { return &Validator{} }

func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

func (v *Validator) RequirePositiveInt(field string, value int) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be positive", field))
	}
}

func (v *Validator) RequireOneOf(field, value string, allowed []string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
		return
	}
	for _, option := range allowed {
		if value == option {
			return
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

func (v *Validator) Validate() error {
	if len(v.errors) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed: %s", strings.Join(v.errors, "; "))
}

// S3Config holds the blob store connection parameters.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// IngestConfig sizes the ingestion worker pool.
type IngestConfig struct {
	WorkerThreads       int
	BlobConcurrency     int
	MetadataBatchSize   int
	AnnotationBatchSize int
	MaxRetries          int
}

// CORSConfig mirrors the CORS_ALLOWED_ORIGINS / CORS_ALLOW_CREDENTIALS
// environment variables.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
}

// AdminConfig gates the basic-auth-protected admin routes (manual
// ingestion triggers) behind a single operator credential.
type AdminConfig struct {
	Username     string
	PasswordHash string
}

// ServerConfig is the fully resolved bdp-server configuration.
type ServerConfig struct {
	Host               string
	Port               int
	DatabaseURL        string
	S3                 S3Config
	Ingest             IngestConfig
	RateLimitPerMinute int
	CORS               CORSConfig
	JWTSecret          string
	Admin              AdminConfig
	LogLevel           string
	LogFormat          string
	DownloadGrantTTL   time.Duration
}

// LoadServerConfig reads the bdp-server configuration from the process
// environment. Command-line flags bound through viper override these
// values before LoadServerConfig's caller uses them; see internal/cliapp.
func LoadServerConfig() (ServerConfig, error) {
	env := NewEnvConfig("")
	ingestEnv := NewEnvConfig("INGEST")

	cfg := ServerConfig{
		Host:        env.GetString("HOST", "0.0.0.0"),
		Port:        env.GetInt("PORT", 8080),
		DatabaseURL: env.GetString("DATABASE_URL", ""),
		S3: S3Config{
			Endpoint:  env.GetString("S3_ENDPOINT", ""),
			Region:    env.GetString("S3_REGION", "us-east-1"),
			Bucket:    env.GetString("S3_BUCKET", ""),
			AccessKey: env.GetString("S3_ACCESS_KEY", ""),
			SecretKey: env.GetString("S3_SECRET_KEY", ""),
			PathStyle: env.GetBool("S3_PATH_STYLE", true),
		},
		Ingest: IngestConfig{
			WorkerThreads:       ingestEnv.GetInt("WORKER_THREADS", 0),
			BlobConcurrency:     ingestEnv.GetInt("BLOB_CONCURRENCY", 8),
			MetadataBatchSize:   ingestEnv.GetInt("METADATA_BATCH_SIZE", 500),
			AnnotationBatchSize: ingestEnv.GetInt("ANNOTATION_BATCH_SIZE", 1000),
			MaxRetries:          ingestEnv.GetInt("MAX_RETRIES", 3),
		},
		RateLimitPerMinute: env.GetInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 120),
		CORS: CORSConfig{
			AllowedOrigins:   env.GetStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowCredentials: env.GetBool("CORS_ALLOW_CREDENTIALS", false),
		},
		JWTSecret: env.GetString("JWT_SECRET", ""),
		Admin: AdminConfig{
			Username:     env.GetString("ADMIN_USERNAME", "admin"),
			PasswordHash: env.GetString("ADMIN_PASSWORD_HASH", ""),
		},
		LogLevel:         env.GetString("LOG_LEVEL", "info"),
		LogFormat:        env.GetString("LOG_FORMAT", "text"),
		DownloadGrantTTL: env.GetDuration("DOWNLOAD_GRANT_TTL", 15*time.Minute),
	}

	v := NewValidator()
	v.RequireString("DATABASE_URL", cfg.DatabaseURL)
	v.RequireString("S3_BUCKET", cfg.S3.Bucket)
	v.RequirePositiveInt("Port", cfg.Port)
	if err := v.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// ClientConfig is the resolved bdp CLI configuration.
type ClientConfig struct {
	ServerURL string
	CacheDir  string
}

// LoadClientConfig reads BDP_SERVER_URL / BDP_CACHE_DIR with sensible
// per-project defaults; projectDir is the directory containing bdp.yml.
func LoadClientConfig(projectDir string) ClientConfig {
	env := NewEnvConfig("BDP")
	defaultCache := projectDir + "/.bdp/cache"
	return ClientConfig{
		ServerURL: env.GetString("SERVER_URL", "http://localhost:8080"),
		CacheDir:  env.GetString("CACHE_DIR", defaultCache),
	}
}
