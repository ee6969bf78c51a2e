package prometheus

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"imagesaver/domain/observability"
)

// Metrics implements observability.Metrics on a dedicated Prometheus registry.
//
// Metric names use the dotted form of the rest of the code base
// ("fetch.attempts") and are exported as "<namespace>_fetch_attempts".
// The label set of a metric is fixed by its first observation: later calls
// fill missing labels with "" and drop unknown ones.
type Metrics struct {
	state       *state
	defaultTags map[string]string
}

type state struct {
	mu         sync.Mutex
	namespace  string
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
	labels     map[string][]string
}

// NewMetrics creates a Prometheus metrics adapter registering into registry
func NewMetrics(namespace string, registry *prometheus.Registry) *Metrics {
	return &Metrics{
		state: &state{
			namespace:  sanitize(namespace),
			registry:   registry,
			counters:   make(map[string]*prometheus.CounterVec),
			histograms: make(map[string]*prometheus.HistogramVec),
			gauges:     make(map[string]*prometheus.GaugeVec),
			labels:     make(map[string][]string),
		},
		defaultTags: map[string]string{},
	}
}

// IncrementCounter increments a counter metric
func (m *Metrics) IncrementCounter(name string, tags map[string]string) {
	tags = m.merge(tags)
	vec := m.state.counter(name, tags)
	if vec == nil {
		return
	}
	vec.With(m.state.values(name, tags)).Inc()
}

// RecordHistogram records a histogram observation
func (m *Metrics) RecordHistogram(name string, value float64, tags map[string]string) {
	tags = m.merge(tags)
	vec := m.state.histogram(name, tags)
	if vec == nil {
		return
	}
	vec.With(m.state.values(name, tags)).Observe(value)
}

// RecordGauge sets a gauge metric
func (m *Metrics) RecordGauge(name string, value float64, tags map[string]string) {
	tags = m.merge(tags)
	vec := m.state.gauge(name, tags)
	if vec == nil {
		return
	}
	vec.With(m.state.values(name, tags)).Set(value)
}

// WithTags returns a Metrics sharing the registry with additional default tags
func (m *Metrics) WithTags(tags map[string]string) observability.Metrics {
	return &Metrics{
		state:       m.state,
		defaultTags: m.merge(tags),
	}
}

func (m *Metrics) merge(tags map[string]string) map[string]string {
	merged := make(map[string]string, len(m.defaultTags)+len(tags))
	for k, v := range m.defaultTags {
		merged[k] = v
	}
	for k, v := range tags {
		merged[k] = v
	}
	return merged
}

func (s *state) counter(name string, tags map[string]string) *prometheus.CounterVec {
	s.mu.Lock()
	defer s.mu.Unlock()

	if vec, ok := s.counters[name]; ok {
		return vec
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: s.fullName(name, "_total"),
		Help: "Counter " + name,
	}, s.labelKeys(name, tags))
	if err := s.registry.Register(vec); err != nil {
		return nil
	}
	s.counters[name] = vec
	return vec
}

func (s *state) histogram(name string, tags map[string]string) *prometheus.HistogramVec {
	s.mu.Lock()
	defer s.mu.Unlock()

	if vec, ok := s.histograms[name]; ok {
		return vec
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    s.fullName(name, ""),
		Help:    "Histogram " + name,
		Buckets: bucketsFor(name),
	}, s.labelKeys(name, tags))
	if err := s.registry.Register(vec); err != nil {
		return nil
	}
	s.histograms[name] = vec
	return vec
}

func (s *state) gauge(name string, tags map[string]string) *prometheus.GaugeVec {
	s.mu.Lock()
	defer s.mu.Unlock()

	if vec, ok := s.gauges[name]; ok {
		return vec
	}
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: s.fullName(name, ""),
		Help: "Gauge " + name,
	}, s.labelKeys(name, tags))
	if err := s.registry.Register(vec); err != nil {
		return nil
	}
	s.gauges[name] = vec
	return vec
}

// labelKeys must be called with mu held
func (s *state) labelKeys(name string, tags map[string]string) []string {
	if keys, ok := s.labels[name]; ok {
		return keys
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, sanitize(k))
	}
	sort.Strings(keys)
	s.labels[name] = keys
	return keys
}

func (s *state) values(name string, tags map[string]string) prometheus.Labels {
	s.mu.Lock()
	keys := s.labels[name]
	s.mu.Unlock()

	sanitized := make(map[string]string, len(tags))
	for k, v := range tags {
		sanitized[sanitize(k)] = v
	}

	labels := make(prometheus.Labels, len(keys))
	for _, k := range keys {
		labels[k] = sanitized[k]
	}
	return labels
}

func (s *state) fullName(name, suffix string) string {
	full := sanitize(name)
	if s.namespace != "" {
		full = s.namespace + "_" + full
	}
	if suffix != "" && !strings.HasSuffix(full, suffix) {
		full += suffix
	}
	return full
}

// bucketsFor picks byte-sized buckets for size metrics, default otherwise
func bucketsFor(name string) []float64 {
	if strings.HasSuffix(name, ".bytes") || strings.HasSuffix(name, ".size") {
		return []float64{
			1024,      // 1KB
			10240,     // 10KB
			102400,    // 100KB
			1048576,   // 1MB
			10485760,  // 10MB
			104857600, // 100MB
		}
	}
	return prometheus.DefBuckets
}

// sanitize maps a dotted metric or tag name onto the Prometheus charset
func sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9' && i > 0:
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
