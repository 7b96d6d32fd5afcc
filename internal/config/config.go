package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds the runtime configuration for the IPN listener.
type Config struct {
	ServiceName string
	Environment string
	ListenAddr  string
	DatabaseDSN string

	// PayPalVerifyURL is the remote endpoint notifications are echoed back to.
	PayPalVerifyURL string
	// PayPalBusinessID is the expected receiver identity. Empty disables the
	// receiver check.
	PayPalBusinessID string
	// SupportedCurrency is the only currency accepted on notifications that
	// carry a currency field.
	SupportedCurrency string
	// LocalTestHostSuffix marks requests to matching hosts as trusted local
	// origins that skip remote verification.
	LocalTestHostSuffix string

	TracingEnabled          bool
	TracingExporterEndpoint string
	TracingExporterProtocol string
	TracingSamplingRatio    float64
}

func Load() Config {
	return Config{
		ServiceName:             envOr("SERVICE_NAME", "paypal-inventory-listener"),
		Environment:             envOr("ENVIRONMENT", "development"),
		ListenAddr:              envOr("LISTEN_ADDR", ":8080"),
		DatabaseDSN:             envOr("DATABASE_DSN", "file:listener.db?_busy_timeout=5000"),
		PayPalVerifyURL:         envOr("PAYPAL_VERIFY_URL", "https://ipnpb.paypal.com/cgi-bin/webscr"),
		PayPalBusinessID:        strings.TrimSpace(os.Getenv("PAYPAL_BUSINESS_ID")),
		SupportedCurrency:       envOr("SUPPORTED_CURRENCY", "USD"),
		LocalTestHostSuffix:     envOr("LOCAL_TEST_HOST_SUFFIX", "lndo.site"),
		TracingEnabled:          envBool("TRACING_ENABLED", false),
		TracingExporterEndpoint: strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		TracingExporterProtocol: envOr("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
		TracingSamplingRatio:    envFloat("TRACING_SAMPLING_RATIO", 0.1),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
