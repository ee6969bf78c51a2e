// Package observability builds the logger and metrics adapters selected by
// configuration.
package observability

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"imagesaver/config"
	domainobs "imagesaver/domain/observability"
	logrusAdapter "imagesaver/infrastructure/observability/adapters/logrus"
	"imagesaver/infrastructure/observability/adapters/noop"
	promAdapter "imagesaver/infrastructure/observability/adapters/prometheus"
)

// Observability bundles the process-wide logger and metrics.
// Registry is nil when metrics are disabled.
type Observability struct {
	Logger   domainobs.Logger
	Metrics  domainobs.Metrics
	Registry *prometheus.Registry
}

// Create builds logger and metrics from configuration.
// A nil output writes logs to stdout.
func Create(cfg *config.Config, output io.Writer) (*Observability, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	logger, err := logrusAdapter.NewLogger(logrusAdapter.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	if !cfg.Handler.EnableMetrics {
		return &Observability{Logger: logger, Metrics: noop.NewMetrics()}, nil
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Observability{
		Logger:   logger,
		Metrics:  promAdapter.NewMetrics(cfg.ServiceName, registry),
		Registry: registry,
	}, nil
}
