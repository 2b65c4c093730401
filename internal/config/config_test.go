package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secreto")
	t.Setenv("PORT", "9100")
	t.Setenv("REPORT_RECIPIENT", "admin@laboratorio.test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "admin@laboratorio.test", cfg.ReportRecipient)
	assert.Equal(t, "300-M", cfg.RateLimit)
	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.IsProduction())
}

func TestLoadClient(t *testing.T) {
	t.Setenv("CAJA_API_URL", "http://caja.local:8000")
	t.Setenv("CAJA_REGISTER_ID", "6f1c1f52-9a57-4a40-8d8b-6d1e2f0a7c11")
	t.Setenv("CAJA_HTTP_TIMEOUT", "3s")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "http://caja.local:8000", cfg.APIURL)
	assert.Equal(t, "6f1c1f52-9a57-4a40-8d8b-6d1e2f0a7c11", cfg.RegisterID)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
}

func TestAllowedOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, (&Config{}).AllowedOrigins())
	assert.Equal(t, []string{"https://caja.lab", "https://admin.lab"},
		(&Config{CORSOrigins: "https://caja.lab,https://admin.lab"}).AllowedOrigins())
}

func TestLoadStorage_ToleratesMissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/caja")

	cfg, err := LoadStorage()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/caja", cfg.DatabaseURL)
}
