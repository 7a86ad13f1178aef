package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, "co_gestionnaires", cfg.Collections.CoGestionnaires)
	assert.Equal(t, "messages", cfg.Collections.Messages)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "change-me-in-production", cfg.Auth.JWTSecret)
	assert.True(t, cfg.Features[FeatureAccountRequests])
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSAllowedOrigins)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("COLLECTION_ACCOUNT_REQUESTS", "demandes_compte")
	t.Setenv("ADMIN_EMAILS", "Root@Laala.app, ops@laala.app")
	t.Setenv("FEATURE_CAMPAIGNS", "false")
	t.Setenv("TOKEN_TTL", "30m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, "demandes_compte", cfg.Collections.AccountRequests)
	assert.False(t, cfg.Features[FeatureCampaigns])
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.True(t, cfg.IsAdminEmail("root@laala.app"))
	assert.True(t, cfg.IsAdminEmail(" OPS@laala.app "))
	assert.False(t, cfg.IsAdminEmail("bob@example.com"))
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "laala.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_port: 7070\nsmtp_host: smtp.example.com\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.ServerPort)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	t.Run("unknown store driver", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "firestore")
		_, err := Load()
		assert.ErrorContains(t, err, "STORE_DRIVER")
	})
	t.Run("production without secret", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "production")
		_, err := Load()
		assert.ErrorContains(t, err, "JWT_SECRET")
	})
	t.Run("oidc without audience", func(t *testing.T) {
		t.Setenv("OIDC_ISSUER_URL", "https://id.example.com")
		_, err := Load()
		assert.ErrorContains(t, err, "OIDC_AUDIENCE")
	})
}

func TestCollectionTablesFollowRenames(t *testing.T) {
	t.Setenv("COLLECTION_CO_GESTIONNAIRES", "gestionnaires")
	cfg, err := Load()
	require.NoError(t, err)

	tables := cfg.Collections.Tables()
	assert.Contains(t, tables, "gestionnaires")
	assert.NotContains(t, tables, "co_gestionnaires")
	assert.Contains(t, tables, "users")
	assert.Len(t, tables, 6)
}
