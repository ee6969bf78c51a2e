// Package mocks provides mock implementations of the image ports for testing
package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"imagesaver/domain/image"
)

// MockAllocator is a mock implementation of image.IdentifierAllocator
type MockAllocator struct {
	mock.Mock
}

// Allocate mocks the Allocate method
func (m *MockAllocator) Allocate() string {
	args := m.Called()
	return args.String(0)
}

// MockFetcher is a mock implementation of image.Fetcher
type MockFetcher struct {
	mock.Mock
}

// Fetch mocks the Fetch method
func (m *MockFetcher) Fetch(ctx context.Context, rawURL string) (*image.Source, error) {
	args := m.Called(ctx, rawURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*image.Source), args.Error(1)
}

// MockPersister is a mock implementation of image.Persister
type MockPersister struct {
	mock.Mock
}

// Persist mocks the Persist method
func (m *MockPersister) Persist(ctx context.Context, identifier, extension string, body io.Reader) (*image.StoredImage, error) {
	args := m.Called(ctx, identifier, extension, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*image.StoredImage), args.Error(1)
}

// MockResolver is a mock implementation of image.Resolver
type MockResolver struct {
	mock.Mock
}

// Resolve mocks the Resolve method
func (m *MockResolver) Resolve(ctx context.Context, identifier string) (string, error) {
	args := m.Called(ctx, identifier)
	return args.String(0), args.Error(1)
}
