package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"user-avatars", "contact-photos", "company-logos"}, cfg.MinIO.Buckets.All())
	assert.Equal(t, int64(5*1024*1024), cfg.Upload.MaxBytes)
	assert.Equal(t, 50, cfg.Diagnostics.Capacity)
	assert.Equal(t, DiagnosticsScopeProcess, cfg.Diagnostics.Scope)
	assert.Equal(t, "http://localhost:9000", cfg.MinIO.PublicBaseURL)
	assert.True(t, cfg.MinIO.ProbeWrite)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("ASSETS_BUCKET_USER", "avatars")
	t.Setenv("ASSETS_MAX_UPLOAD_BYTES", "1024")
	t.Setenv("ASSETS_VERIFY_TIMEOUT", "2s")
	t.Setenv("ASSETS_DIAGNOSTICS_SCOPE", "Session")
	t.Setenv("MINIO_PUBLIC_BASE_URL", "https://cdn.example.com/")
	t.Setenv("ASSETS_PROBE_WRITE", "no")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "avatars", cfg.MinIO.Buckets.User)
	assert.Equal(t, int64(1024), cfg.Upload.MaxBytes)
	assert.Equal(t, 2*time.Second, cfg.Upload.VerifyTimeout)
	assert.Equal(t, DiagnosticsScopeSession, cfg.Diagnostics.Scope)
	assert.Equal(t, "https://cdn.example.com", cfg.MinIO.PublicBaseURL)
	assert.False(t, cfg.MinIO.ProbeWrite)
}

func TestLoadRejectsDuplicateBuckets(t *testing.T) {
	t.Setenv("ASSETS_BUCKET_CONTACT", "user-avatars")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configured twice")
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Config{
		MinIO:       MinIOConfig{Buckets: BucketNames{User: "a", Contact: "", Company: "c"}},
		Upload:      UploadConfig{MaxBytes: 0},
		Diagnostics: DiagnosticsConfig{Capacity: 0, Scope: "global"},
		Server:      ServerConfig{SessionCacheSize: 1},
	}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"must not be empty", "max upload bytes", "diagnostics capacity", "unknown diagnostics scope"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestPublicBaseURLFollowsSSL(t *testing.T) {
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("MINIO_ENDPOINT", "s3.internal:443")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://s3.internal:443", cfg.MinIO.PublicBaseURL)
}

func TestLoadRejectsInvertedPoolBounds(t *testing.T) {
	t.Setenv("POSTGRES_MAX_CONNS", "2")
	t.Setenv("POSTGRES_MIN_CONNS", "4")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres pool bounds invalid: min 4, max 2")
}
