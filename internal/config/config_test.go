package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// debugMode lets Load accept the development secrets
func debugMode(t *testing.T) {
	t.Setenv("GIN_MODE", "debug")
}

func TestLoadDefaults(t *testing.T) {
	debugMode(t)
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, int64(1), cfg.DefaultUserID)
	assert.Equal(t, int64(5<<20), cfg.MaxImageBytes)
	assert.Equal(t, 400, cfg.MaxImageEdge)
	assert.Equal(t, 40_000_000, cfg.MaxImagePixels)
	assert.Equal(t, "stroke", cfg.Scorer)
	assert.Equal(t, 10*time.Second, cfg.ScorerTimeout)
	assert.Equal(t, "disk", cfg.ImageStore)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.EnableHSTS)
}

func TestLoadEnvironmentOverlay(t *testing.T) {
	debugMode(t)
	t.Setenv("PORT", "9090")
	t.Setenv("REPOSITORY", "memory")
	t.Setenv("DEFAULT_USER_ID", "3")
	t.Setenv("SCORER", "random")
	t.Setenv("SCORER_TIMEOUT", "250ms")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("S3_FORCE_PATH_STYLE", "false")
	t.Setenv("ENABLE_HSTS", "true")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("MAX_IMAGE_PIXELS", "1000000")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "memory", cfg.Repository)
	assert.Equal(t, int64(3), cfg.DefaultUserID)
	assert.Equal(t, "random", cfg.Scorer)
	assert.Equal(t, 250*time.Millisecond, cfg.ScorerTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.False(t, cfg.S3ForcePathStyle)
	assert.True(t, cfg.EnableHSTS)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 1_000_000, cfg.MaxImagePixels)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	debugMode(t)
	t.Setenv("PORT", "9090")

	cfg, err := Load([]string{"-port", "7070", "-repository", "memory", "-scorer", "random"})
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "memory", cfg.Repository)
	assert.Equal(t, "random", cfg.Scorer)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown repository", "REPOSITORY", "mongo"},
		{"unknown scorer", "SCORER", "neural"},
		{"unknown image store", "IMAGE_STORE", "ftp"},
		{"zero default user", "DEFAULT_USER_ID", "0"},
		{"non numeric default user", "DEFAULT_USER_ID", "one"},
		{"bad duration", "SCORER_TIMEOUT", "soon"},
		{"negative image limit", "MAX_IMAGE_BYTES", "-1"},
		{"zero analyze limit", "ANALYZE_LIMIT_PER_MIN", "0"},
		{"zero pixel limit", "MAX_IMAGE_PIXELS", "0"},
	}

	debugMode(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(nil)
			assert.Error(t, err)
		})
	}
}

func TestReleaseModeRefusesDevelopmentSecrets(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"defaults", nil, "JWT_SECRET"},
		{"secret set", map[string]string{"JWT_SECRET": "s3cret"}, "DEFAULT_PASSWORD"},
		{"password set", map[string]string{"DEFAULT_PASSWORD": "hunter22"}, "JWT_SECRET"},
		{"both set", map[string]string{"JWT_SECRET": "s3cret", "DEFAULT_PASSWORD": "hunter22"}, ""},
		{"debug mode", map[string]string{"GIN_MODE": "debug"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GIN_MODE", "release")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(nil)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}

	for level, want := range tests {
		cfg := &Config{LogLevel: level}
		assert.Equal(t, want, cfg.SlogLevel(), level)
	}
}
