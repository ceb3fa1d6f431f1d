package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// LoadEnv reads a .env file when one exists. Real environment variables win.
func LoadEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Printf("[ENV] No .env file loaded: %v", err)
	}
}

// GetEnv returns the value of an environment variable or an empty string.
func GetEnv(key string) string {
	return os.Getenv(key)
}

// GetEnvDefault returns the value of an environment variable or def when unset.
func GetEnvDefault(key, def string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return def
}

// LicensingConfig collects the settings of the licensing workflow.
type LicensingConfig struct {
	Port          string
	LogLevel      string
	LogDir        string
	CORSOrigins   string
	SecureCookies bool

	GSTFree         bool
	GSTRate         decimal.Decimal
	CheckoutFeeGate string
	Currency        string

	StripeSecretKey  string
	StripeSuccessURL string
	StripeCancelURL  string
	StripeWebhookKey string

	RedisAddress    string
	CatalogCacheTTL time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	MailPerMin   int

	TokenSymmetricKey string
	SearchIndexDir    string
	ExportDir         string
	ReminderSchedule  string
	ReminderAfter     time.Duration
	CleanupSchedule   string
	ExportTTL         time.Duration

	SeedOnStart bool
	AdminEmail  string
}

// LoadLicensingConfig reads LicensingConfig from the environment.
func LoadLicensingConfig() (*LicensingConfig, error) {
	cfg := &LicensingConfig{
		Port:              GetEnvDefault("PORT", "8080"),
		LogLevel:          GetEnvDefault("LOG_LEVEL", "info"),
		LogDir:            GetEnvDefault("LOG_DIR", "logs"),
		CORSOrigins:       GetEnvDefault("CORS_ORIGINS", "http://localhost:5173"),
		CheckoutFeeGate:   GetEnvDefault("CHECKOUT_FEE_GATE", "payable_at_issue,adjusted_licence_fee,additional_fee"),
		Currency:          strings.ToLower(GetEnvDefault("CURRENCY", "aud")),
		StripeSecretKey:   GetEnv("STRIPE_SECRET_KEY"),
		StripeSuccessURL:  GetEnvDefault("STRIPE_SUCCESS_URL", "http://localhost:3000/checkout/success"),
		StripeCancelURL:   GetEnvDefault("STRIPE_CANCEL_URL", "http://localhost:3000/checkout/cancel"),
		StripeWebhookKey:  GetEnv("STRIPE_WEBHOOK_SECRET"),
		RedisAddress:      GetEnvDefault("REDIS_ADDRESS", "localhost:6379"),
		SMTPHost:          GetEnv("SMTP_HOST"),
		SMTPUsername:      GetEnv("SMTP_USERNAME"),
		SMTPPassword:      GetEnv("SMTP_PASSWORD"),
		MailFrom:          GetEnvDefault("MAIL_FROM", "licensing@example.com"),
		TokenSymmetricKey: GetEnv("TOKEN_SYMMETRIC_KEY"),
		SearchIndexDir:    GetEnvDefault("SEARCH_INDEX_DIR", "indexes"),
		ExportDir:         GetEnvDefault("EXPORT_DIR", "public/files"),
		ReminderSchedule:  GetEnvDefault("ASSESSMENT_REMINDER_SCHEDULE", "0 7 * * *"),
		CleanupSchedule:   GetEnvDefault("EXPORT_CLEANUP_SCHEDULE", "0 1 * * *"),
		AdminEmail:        GetEnv("ADMIN_EMAIL"),
	}

	var err error
	if cfg.GSTFree, err = parseBool("GST_FREE", "false"); err != nil {
		return nil, err
	}
	if cfg.SecureCookies, err = parseBool("SECURE_COOKIES", "false"); err != nil {
		return nil, err
	}
	if cfg.SeedOnStart, err = parseBool("SEED_ON_START", "false"); err != nil {
		return nil, err
	}
	if cfg.GSTRate, err = decimal.NewFromString(GetEnvDefault("GST_RATE", "10")); err != nil {
		return nil, fmt.Errorf("invalid GST_RATE: %w", err)
	}
	if cfg.GSTRate.IsNegative() {
		return nil, fmt.Errorf("invalid GST_RATE: must not be negative")
	}
	if cfg.CatalogCacheTTL, err = time.ParseDuration(GetEnvDefault("CATALOG_CACHE_TTL", "10m")); err != nil {
		return nil, fmt.Errorf("invalid CATALOG_CACHE_TTL: %w", err)
	}
	if cfg.ReminderAfter, err = time.ParseDuration(GetEnvDefault("ASSESSMENT_REMINDER_AFTER", "168h")); err != nil {
		return nil, fmt.Errorf("invalid ASSESSMENT_REMINDER_AFTER: %w", err)
	}
	if cfg.ExportTTL, err = time.ParseDuration(GetEnvDefault("EXPORT_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("invalid EXPORT_TTL: %w", err)
	}
	if cfg.SeedOnStart && cfg.AdminEmail == "" {
		return nil, fmt.Errorf("SEED_ON_START needs ADMIN_EMAIL")
	}
	if cfg.SMTPPort, err = strconv.Atoi(GetEnvDefault("SMTP_PORT", "587")); err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	if cfg.MailPerMin, err = strconv.Atoi(GetEnvDefault("MAIL_PER_MINUTE", "60")); err != nil {
		return nil, fmt.Errorf("invalid MAIL_PER_MINUTE: %w", err)
	}

	return cfg, nil
}

func parseBool(key, def string) (bool, error) {
	value, err := strconv.ParseBool(GetEnvDefault(key, def))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
