// Package config provides configuration loading and management for the application.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string `validate:"required,numeric"`

	LogLevel  string `validate:"required"`
	LogFormat string `validate:"oneof=json text"`

	// OpenTelemetry endpoint for observability, empty disables tracing
	OtelEndpoint string
	ServiceName  string `validate:"required"`

	// Session tokens
	JWTSecret  string        `validate:"required"`
	SessionTTL time.Duration `validate:"gt=0"`

	// Passkey relying party
	RPID   string `validate:"required"`
	RPName string

	// BTC/USD feeds, comma separated in the environment
	BTCPriceURLs     []string `validate:"dive,url"`
	BTCPriceAPIKey   string
	BTCPriceFallback float64       `validate:"gt=0"`
	PriceCacheTTL    time.Duration `validate:"gt=0"`

	// Request limiting
	RateLimitRPS   float64 `validate:"gt=0"`
	RateLimitBurst int     `validate:"gt=0"`
	RequestTimeout time.Duration
	CORSOrigins    []string

	// Settled transaction webhook
	WebhookEnabled   bool
	WebhookURL       string `validate:"required_if=WebhookEnabled true,omitempty,url"`
	WebhookAPIKey    string
	WebhookBatchSize int `validate:"gte=0"`
	WebhookInterval  time.Duration

	// Receipt signing, empty key generates an ephemeral one
	ReceiptSigningKey string
	ReceiptValidity   time.Duration

	// Bridge circuit breaker
	BridgeFailureThreshold int `validate:"gt=0"`
	BridgeCooldown         time.Duration

	// Simulator
	ConfirmationDelayScale float64 `validate:"gte=0"`
	SeedDemoData           bool
	GaugeRefreshSpec       string `validate:"required"`

	// DevMode enables the manual confirmation endpoint
	DevMode bool
}

var defaults = map[string]any{
	"PORT":                        "8080",
	"LOG_LEVEL":                   "info",
	"LOG_FORMAT":                  "json",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
	"OTEL_SERVICE_NAME":           "liquid-btc-yield",
	"JWT_SECRET":                  "dev-insecure-secret",
	"SESSION_TTL":                 "24h",
	"RP_ID":                       "localhost",
	"RP_NAME":                     "Liquid Bitcoin Yield",
	"BTC_PRICE_URL":               "",
	"BTC_PRICE_API_KEY":           "",
	"BTC_PRICE_FALLBACK":          65000.0,
	"BTC_PRICE_CACHE_TTL":         "1m",
	"RATE_LIMIT_RPS":              20.0,
	"RATE_LIMIT_BURST":            40,
	"REQUEST_TIMEOUT":             "15s",
	"CORS_ORIGINS":                "*",
	"WEBHOOK_ENABLED":             false,
	"WEBHOOK_URL":                 "",
	"WEBHOOK_API_KEY":             "",
	"WEBHOOK_BATCH_SIZE":          50,
	"WEBHOOK_INTERVAL":            "1m",
	"RECEIPT_SIGNING_KEY":         "",
	"RECEIPT_VALIDITY":            "0s",
	"BRIDGE_FAILURE_THRESHOLD":    3,
	"BRIDGE_COOLDOWN":             "5m",
	"CONFIRMATION_DELAY_SCALE":    1.0,
	"SEED_DEMO_DATA":              true,
	"GAUGE_REFRESH_SPEC":          "@every 30s",
	"DEV_MODE":                    false,
}

// Load reads .env (if present) and the environment into a validated Config
func Load() (Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("Failed to load %s: %v", envFile, err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:                   v.GetString("PORT"),
		LogLevel:               strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:              strings.ToLower(v.GetString("LOG_FORMAT")),
		OtelEndpoint:           v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:            v.GetString("OTEL_SERVICE_NAME"),
		JWTSecret:              v.GetString("JWT_SECRET"),
		SessionTTL:             v.GetDuration("SESSION_TTL"),
		RPID:                   v.GetString("RP_ID"),
		RPName:                 v.GetString("RP_NAME"),
		BTCPriceURLs:           splitList(v.GetString("BTC_PRICE_URL")),
		BTCPriceAPIKey:         v.GetString("BTC_PRICE_API_KEY"),
		BTCPriceFallback:       v.GetFloat64("BTC_PRICE_FALLBACK"),
		PriceCacheTTL:          v.GetDuration("BTC_PRICE_CACHE_TTL"),
		RateLimitRPS:           v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:         v.GetInt("RATE_LIMIT_BURST"),
		RequestTimeout:         v.GetDuration("REQUEST_TIMEOUT"),
		CORSOrigins:            splitList(v.GetString("CORS_ORIGINS")),
		WebhookEnabled:         v.GetBool("WEBHOOK_ENABLED"),
		WebhookURL:             v.GetString("WEBHOOK_URL"),
		WebhookAPIKey:          v.GetString("WEBHOOK_API_KEY"),
		WebhookBatchSize:       v.GetInt("WEBHOOK_BATCH_SIZE"),
		WebhookInterval:        v.GetDuration("WEBHOOK_INTERVAL"),
		ReceiptSigningKey:      v.GetString("RECEIPT_SIGNING_KEY"),
		ReceiptValidity:        v.GetDuration("RECEIPT_VALIDITY"),
		BridgeFailureThreshold: v.GetInt("BRIDGE_FAILURE_THRESHOLD"),
		BridgeCooldown:         v.GetDuration("BRIDGE_COOLDOWN"),
		ConfirmationDelayScale: v.GetFloat64("CONFIRMATION_DELAY_SCALE"),
		SeedDemoData:           v.GetBool("SEED_DEMO_DATA"),
		GaugeRefreshSpec:       v.GetString("GAUGE_REFRESH_SPEC"),
		DevMode:                v.GetBool("DEV_MODE"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.JWTSecret == defaults["JWT_SECRET"] && !cfg.DevMode {
		logrus.Warn("JWT_SECRET is not set, sessions use the development secret")
	}
	return cfg, nil
}

// Defaults returns a viper instance holding only the default values
func Defaults() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
