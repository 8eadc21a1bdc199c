package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBilling(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "billing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// TestLoadBilling_Overrides, dosyadaki kategorilerin varsayılanları ezdiğini test eder.
func TestLoadBilling_Overrides(t *testing.T) {
	// Arrange
	path := writeBilling(t, `
rate_limits:
  ai:
    per_minute: 3
    per_hour: 30
    per_day: 90
plans:
  price_craiverse_pro_monthly:
    name: Pro
    monthly_credits: 5000
packs:
  pack_small:
    name: Small
    credits: 500
`)

	// Act
	billing, err := LoadBilling(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, CategoryLimit{PerMinute: 3, PerHour: 30, PerDay: 90}, billing.RateLimits[CategoryAI])
	assert.Equal(t, 60, billing.RateLimits[CategoryAPI].PerMinute)

	plan, ok := billing.PlanFor("price_craiverse_pro_monthly")
	require.True(t, ok)
	assert.Equal(t, int64(5000), plan.MonthlyCredits)

	pack, ok := billing.PackFor("pack_small")
	require.True(t, ok)
	assert.Equal(t, int64(500), pack.Credits)

	_, ok = billing.PackFor("pack_huge")
	assert.False(t, ok)
}

// TestLoadBilling_MissingFile, dosya yoksa varsayılanların döndüğünü test eder.
func TestLoadBilling_MissingFile(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "absent.yaml")} {
		billing, err := LoadBilling(path)

		require.NoError(t, err)
		assert.Equal(t, DefaultBilling().RateLimits, billing.RateLimits)
		assert.Empty(t, billing.Plans)
	}
}

// TestLoadBilling_Invalid, geçersiz değerlerin hata verdiğini test eder.
func TestLoadBilling_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero window", "rate_limits:\n  ai:\n    per_minute: 0\n    per_hour: 10\n    per_day: 10\n"},
		{"negative plan", "plans:\n  p1:\n    monthly_credits: -5\n"},
		{"empty pack", "packs:\n  k1:\n    name: Empty\n"},
		{"malformed yaml", "rate_limits: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBilling(writeBilling(t, tt.content))
			assert.Error(t, err)
		})
	}
}

// TestLoadConfig_Defaults, environment boşken varsayılan değerleri test eder.
func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "PORT", "DATABASE_URL", "IDEMPOTENCY_TTL", "RATE_LIMIT_FAIL_OPEN", "CORS_ALLOWED_ORIGINS", "TRUSTED_PROXIES"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.False(t, cfg.IdempotencyFailOpen)
	assert.True(t, cfg.RateLimitFailOpen)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.TrustedProxies)
	assert.False(t, cfg.IsProduction())
	assert.Contains(t, cfg.GetDSN(), "@localhost:5432/creditsdb")
}

// TestLoadConfig_FromEnv, environment değerlerinin okunduğunu test eder.
func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/credits")
	t.Setenv("IDEMPOTENCY_TTL", "2h")
	t.Setenv("IDEMPOTENCY_FAIL_OPEN", "true")
	t.Setenv("RATE_LIMIT_FAIL_OPEN", "false")
	t.Setenv("EDGE_BURST", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://craiverse.ai, *.craiverse.ai,")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.10")

	cfg := LoadConfig()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "postgres://u:p@db:5432/credits", cfg.GetDSN())
	assert.Equal(t, 2*time.Hour, cfg.IdempotencyTTL)
	assert.True(t, cfg.IdempotencyFailOpen)
	assert.False(t, cfg.RateLimitFailOpen)
	assert.Equal(t, 50, cfg.EdgeBurst)
	assert.Equal(t, []string{"https://craiverse.ai", "*.craiverse.ai"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, cfg.TrustedProxies)
}
