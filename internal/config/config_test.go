package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := fromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, StoreMongo, cfg.StoreDriver)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURL)
	assert.Equal(t, 120, cfg.RateLimit)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Empty(t, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.OTelEnabled)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("API_PREFIX", "api/v2/")
	t.Setenv("STORE_DRIVER", " Postgres ")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "u")
	t.Setenv("DB_PASSWORD", "p")
	t.Setenv("DB_NAME", "users")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("OTEL_ENABLED", "true")

	cfg, err := fromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/api/v2", cfg.APIPrefix)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, "postgres://u:p@db:5432/users?sslmode=disable", cfg.DBURL)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.OTelEnabled)
}

func TestRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "cassandra")

	_, err := fromViper(newViper())
	assert.Error(t, err)
}

func TestRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "0")

	_, err := fromViper(newViper())
	assert.Error(t, err)
}

func TestNormalizePrefix(t *testing.T) {
	tests := map[string]string{
		"":         "",
		"/":        "",
		"/api/v1":  "/api/v1",
		"/api/v1/": "/api/v1",
		"api":      "/api",
	}

	for in, want := range tests {
		assert.Equal(t, want, normalizePrefix(in), in)
	}
}
