// Package observability wires logging and metrics into the fx graph.
package observability

import (
	"github.com/clinovia/billing/internal/config"
	"github.com/clinovia/billing/internal/observability/logger"
	"github.com/clinovia/billing/internal/observability/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Module provides the logger and Prometheus instruments.
var Module = fx.Module("observability",
	logger.Module,
	fx.Provide(func(cfg config.Config) *metrics.BillingMetrics {
		return metrics.NewBillingMetrics(prometheus.DefaultRegisterer, metrics.Config{
			ServiceName: "clinovia",
			Environment: cfg.Environment,
		})
	}),
	fx.Provide(func(cfg config.Config) *metrics.HTTPMetrics {
		return metrics.NewHTTPMetrics(prometheus.DefaultRegisterer, metrics.Config{
			ServiceName: "clinovia",
			Environment: cfg.Environment,
		})
	}),
)
