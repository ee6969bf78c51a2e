// Package mocks provides mock implementations for testing
package mocks

import (
	"context"

	"imagesaver/domain/token"

	"github.com/stretchr/testify/mock"
)

// MockAccessGate is a mock implementation of token.AccessGate
type MockAccessGate struct {
	mock.Mock
}

func (m *MockAccessGate) Authorize(ctx context.Context, tok string) (token.Authorization, error) {
	args := m.Called(ctx, tok)
	return args.Get(0).(token.Authorization), args.Error(1)
}

func (m *MockAccessGate) RecordUsage(ctx context.Context, tok string) error {
	args := m.Called(ctx, tok)
	return args.Error(0)
}
