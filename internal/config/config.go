package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the runtime configuration read from the environment
type Config struct {
	AppEnv   string
	Port     string
	LogLevel string

	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPass      string
	DBName      string

	AuthSecret string

	StripeWebhookSecret string
	PayPalClientID      string
	PayPalClientSecret  string
	PayPalWebhookID     string
	PayPalAPIBase       string

	IdempotencyTTL        time.Duration
	IdempotencyFailOpen   bool
	IdempotencyRequireKey bool

	RateLimitFailOpen   bool
	RateLimitStore      string // postgres | sqlite
	RateLimitSQLitePath string

	EdgeRequestsPerMinute int
	EdgeBurst             int

	SweepInterval      time.Duration
	BillingConfigPath  string
	CORSAllowedOrigins []string
	TrustedProxies     []string // X-Forwarded-For'a güvenilen proxy IP/CIDR'ları
}

// getEnv returns the env value or the default when unset
func getEnv(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvBool(key string, defaultVal bool) bool {
	val, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) int {
	val, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val, err := time.ParseDuration(os.Getenv(key))
	if err != nil || val <= 0 {
		return defaultVal
	}
	return val
}

func getEnvList(key string, defaultVal []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadConfig loads the whole configuration
func LoadConfig() *Config {
	return &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "credits"),
		DBPass:      getEnv("DB_PASS", "password"),
		DBName:      getEnv("DB_NAME", "creditsdb"),

		AuthSecret: getEnv("AUTH_SECRET", "change-me-in-production"),

		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		PayPalClientID:      os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalClientSecret:  os.Getenv("PAYPAL_CLIENT_SECRET"),
		PayPalWebhookID:     os.Getenv("PAYPAL_WEBHOOK_ID"),
		PayPalAPIBase:       getEnv("PAYPAL_API_BASE", "https://api-m.paypal.com"),

		IdempotencyTTL:        getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		IdempotencyFailOpen:   getEnvBool("IDEMPOTENCY_FAIL_OPEN", false),
		IdempotencyRequireKey: getEnvBool("IDEMPOTENCY_REQUIRE_KEY", false),

		RateLimitFailOpen:   getEnvBool("RATE_LIMIT_FAIL_OPEN", true),
		RateLimitStore:      getEnv("RATE_LIMIT_STORE", "postgres"),
		RateLimitSQLitePath: getEnv("RATE_LIMIT_SQLITE_PATH", "./data/ratelimit.db"),

		EdgeRequestsPerMinute: getEnvInt("EDGE_REQUESTS_PER_MINUTE", 600),
		EdgeBurst:             getEnvInt("EDGE_BURST", 50),

		SweepInterval:      getEnvDuration("SWEEP_INTERVAL", 10*time.Minute),
		BillingConfigPath:  getEnv("BILLING_CONFIG", "config/billing.yaml"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES", nil),
	}
}

// GetDSN returns the database connection URL. DATABASE_URL wins when set.
func (c *Config) GetDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName,
	)
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
