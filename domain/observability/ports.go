package observability

// Logger defines the interface for structured logging in the application.
// Fields are passed as alternating key/value pairs.
type Logger interface {
	// Debug logs verbose diagnostics that are disabled in production.
	Debug(msg string, fields ...interface{})

	// Info logs informational messages for normal operations.
	// Use for tracking successful operations, state changes, and general flow.
	Info(msg string, fields ...interface{})

	// Warn logs recoverable problems, such as a failed best-effort cleanup.
	Warn(msg string, fields ...interface{})

	// Error logs error conditions with the associated error object.
	// Always pass the actual error under the "error" key.
	Error(msg string, fields ...interface{})

	// WithFields returns a new Logger with the given fields added to all subsequent logs.
	// Useful for adding consistent context like request_id or component name.
	WithFields(fields map[string]interface{}) Logger
}

// Metrics defines the interface for recording application metrics.
type Metrics interface {
	// IncrementCounter increments a counter metric by 1.
	// Use for counting discrete events: requests, errors, completions.
	IncrementCounter(name string, tags map[string]string)

	// RecordHistogram records a value in a histogram distribution.
	// Use for latencies, sizes, or any value where distribution matters.
	RecordHistogram(name string, value float64, tags map[string]string)

	// RecordGauge records a point-in-time measurement.
	RecordGauge(name string, value float64, tags map[string]string)

	// WithTags returns a new Metrics instance with additional default tags.
	WithTags(tags map[string]string) Metrics
}

// Scope returns logger and metrics scoped to a component of the service.
func Scope(logger Logger, metrics Metrics, service, version, env, component string) (Logger, Metrics) {
	scopedLogger := logger.WithFields(map[string]interface{}{
		"service":   service,
		"version":   version,
		"env":       env,
		"component": component,
	})
	scopedMetrics := metrics.WithTags(map[string]string{
		"component": component,
	})
	return scopedLogger, scopedMetrics
}
