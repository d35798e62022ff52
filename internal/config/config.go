package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Diagnostics scopes.
const (
	DiagnosticsScopeProcess = "process"
	DiagnosticsScopeSession = "session"
)

// Config aggregates runtime configuration for the asset upload service.
type Config struct {
	Server      ServerConfig
	Postgres    PostgresConfig
	MinIO       MinIOConfig
	Upload      UploadConfig
	Diagnostics DiagnosticsConfig
	Metrics     MetricsConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host             string
	Port             int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	SessionCacheSize int
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Database      string
	SSLMode       string
	RunMigrations bool

	// MaxConns caps the pool size. MinConns connections are kept open.
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// MinIOConfig carries object storage connection and bucket information.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
	// PublicBaseURL prefixes public object URLs. Derived from the endpoint when empty.
	PublicBaseURL string
	Buckets       BucketNames
	ProbeWrite    bool
}

// BucketNames names the container used for each upload target kind.
type BucketNames struct {
	User    string
	Contact string
	Company string
}

// All returns the bucket names in user, contact, company order.
func (b BucketNames) All() []string {
	return []string{b.User, b.Contact, b.Company}
}

// UploadConfig groups upload pipeline settings.
type UploadConfig struct {
	MaxBytes        int64
	VerifyPublicURL bool
	VerifyTimeout   time.Duration
}

// DiagnosticsConfig controls the diagnostic event log.
type DiagnosticsConfig struct {
	Capacity int
	Scope    string
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:             getString("ASSETS_API_HOST", "0.0.0.0"),
			Port:             getInt("ASSETS_API_PORT", 8080),
			ReadTimeout:      getDuration("ASSETS_API_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:     getDuration("ASSETS_API_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:      getDuration("ASSETS_API_IDLE_TIMEOUT", 60*time.Second),
			SessionCacheSize: getInt("ASSETS_SESSION_CACHE_SIZE", 256),
		},
		Postgres: PostgresConfig{
			Host:            getString("POSTGRES_HOST", "localhost"),
			Port:            getInt("POSTGRES_PORT", 5432),
			User:            getString("POSTGRES_USER", "crm_app"),
			Password:        getString("POSTGRES_PASSWORD", "change-me"),
			Database:        getString("POSTGRES_DB", "crm"),
			SSLMode:         strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
			RunMigrations:   getBool("ASSETS_RUN_MIGRATIONS", true),
			MaxConns:        int32(getInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:        int32(getInt("POSTGRES_MIN_CONNS", 0)),
			MaxConnLifetime: getDuration("POSTGRES_MAX_CONN_LIFETIME", 30*time.Minute),
		},
		MinIO: MinIOConfig{
			Endpoint:        getString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getString("MINIO_ROOT_USER", "crm"),
			SecretAccessKey: getString("MINIO_ROOT_PASSWORD", "change-me-strong-password"),
			UseSSL:          getBool("MINIO_USE_SSL", false),
			Region:          getString("MINIO_REGION", ""),
			PublicBaseURL:   strings.TrimRight(getString("MINIO_PUBLIC_BASE_URL", ""), "/"),
			Buckets: BucketNames{
				User:    getString("ASSETS_BUCKET_USER", "user-avatars"),
				Contact: getString("ASSETS_BUCKET_CONTACT", "contact-photos"),
				Company: getString("ASSETS_BUCKET_COMPANY", "company-logos"),
			},
			ProbeWrite: getBool("ASSETS_PROBE_WRITE", true),
		},
		Upload: UploadConfig{
			MaxBytes:        getInt64("ASSETS_MAX_UPLOAD_BYTES", 5*1024*1024),
			VerifyPublicURL: getBool("ASSETS_VERIFY_PUBLIC_URL", true),
			VerifyTimeout:   getDuration("ASSETS_VERIFY_TIMEOUT", 5*time.Second),
		},
		Diagnostics: DiagnosticsConfig{
			Capacity: getInt("ASSETS_DIAGNOSTICS_CAPACITY", 50),
			Scope:    strings.ToLower(getString("ASSETS_DIAGNOSTICS_SCOPE", DiagnosticsScopeProcess)),
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("ASSETS_METRICS_PATH", "/metrics"),
		},
	}

	if cfg.MinIO.PublicBaseURL == "" {
		cfg.MinIO.PublicBaseURL = defaultPublicBaseURL(cfg.MinIO)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration values the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error

	seen := make(map[string]struct{}, 3)
	for _, name := range c.MinIO.Buckets.All() {
		name = strings.TrimSpace(name)
		if name == "" {
			errs = append(errs, errors.New("bucket names must not be empty"))
			continue
		}
		if _, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("bucket name %q configured twice", name))
		}
		seen[name] = struct{}{}
	}

	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("max upload bytes must be positive, got %d", c.Upload.MaxBytes))
	}
	if c.Diagnostics.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("diagnostics capacity must be positive, got %d", c.Diagnostics.Capacity))
	}
	switch c.Diagnostics.Scope {
	case DiagnosticsScopeProcess, DiagnosticsScopeSession:
	default:
		errs = append(errs, fmt.Errorf("unknown diagnostics scope %q", c.Diagnostics.Scope))
	}
	if c.Postgres.MaxConns < 0 || c.Postgres.MinConns < 0 || (c.Postgres.MaxConns > 0 && c.Postgres.MinConns > c.Postgres.MaxConns) {
		errs = append(errs, fmt.Errorf("postgres pool bounds invalid: min %d, max %d", c.Postgres.MinConns, c.Postgres.MaxConns))
	}
	if c.Server.SessionCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("session cache size must be positive, got %d", c.Server.SessionCacheSize))
	}

	return errors.Join(errs...)
}

func defaultPublicBaseURL(cfg MinIOConfig) string {
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
