package noop

import "imagesaver/domain/observability"

// Metrics discards every observation. Used when metrics are disabled.
type Metrics struct{}

// NewMetrics creates a no-op metrics adapter
func NewMetrics() observability.Metrics {
	return Metrics{}
}

func (Metrics) IncrementCounter(string, map[string]string) {}

func (Metrics) RecordHistogram(string, float64, map[string]string) {}

func (Metrics) RecordGauge(string, float64, map[string]string) {}

func (m Metrics) WithTags(map[string]string) observability.Metrics { return m }
