package observability

import (
	"github.com/makehaven/paypal-inventory-listener/internal/config"
	"github.com/makehaven/paypal-inventory-listener/internal/observability/logger"
	"github.com/makehaven/paypal-inventory-listener/internal/observability/metrics"
	"github.com/makehaven/paypal-inventory-listener/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var version = "dev"

var Module = fx.Module("observability",
	logger.Module,
	fx.Invoke(setupTracing),
	fx.Invoke(setupMetrics),
)

func setupTracing(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) error {
	_, err := tracing.NewProvider(lc, tracing.Config{
		Enabled:          cfg.TracingEnabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   version,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.TracingExporterEndpoint,
		ExporterProtocol: cfg.TracingExporterProtocol,
		SamplingRatio:    cfg.TracingSamplingRatio,
	}, log)
	return err
}

func setupMetrics(cfg config.Config) {
	shared := metrics.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	}
	metrics.ListenerWithConfig(shared)
	metrics.HTTPWithConfig(shared)
}
