package mocks

import (
	"imagesaver/domain/observability"

	"github.com/stretchr/testify/mock"
)

// MockMetrics is a mock implementation of Metrics interface
type MockMetrics struct {
	mock.Mock
}

// NewNopMetrics returns a MockMetrics that accepts every call.
func NewNopMetrics() *MockMetrics {
	m := new(MockMetrics)
	m.On("IncrementCounter", mock.Anything, mock.Anything).Maybe()
	m.On("RecordHistogram", mock.Anything, mock.Anything, mock.Anything).Maybe()
	m.On("RecordGauge", mock.Anything, mock.Anything, mock.Anything).Maybe()
	m.On("WithTags", mock.Anything).Maybe().Return(nil)
	return m
}

// IncrementCounter mocks the IncrementCounter method
func (m *MockMetrics) IncrementCounter(name string, tags map[string]string) {
	m.Called(name, tags)
}

// RecordHistogram mocks the RecordHistogram method
func (m *MockMetrics) RecordHistogram(name string, value float64, tags map[string]string) {
	m.Called(name, value, tags)
}

// RecordGauge mocks the RecordGauge method
func (m *MockMetrics) RecordGauge(name string, value float64, tags map[string]string) {
	m.Called(name, value, tags)
}

// WithTags mocks the WithTags method
func (m *MockMetrics) WithTags(tags map[string]string) observability.Metrics {
	args := m.Called(tags)
	if metrics, ok := args.Get(0).(observability.Metrics); ok {
		return metrics
	}
	return m
}
