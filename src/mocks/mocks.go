package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/inkforge/gateway/src/models"
)

// MockCompleter implements models.Completer
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, model string, messages []models.Message, opts models.ResolvedOptions) (string, error) {
	args := m.Called(ctx, model, messages, opts)
	return args.String(0), args.Error(1)
}

func (m *MockCompleter) CompleteStream(ctx context.Context, model string, messages []models.Message, opts models.ResolvedOptions, callback func(delta string) error) (string, error) {
	args := m.Called(ctx, model, messages, opts, callback)
	return args.String(0), args.Error(1)
}

// MockResponseCache implements models.ResponseCache
type MockResponseCache struct {
	mock.Mock
}

func (m *MockResponseCache) Get(ctx context.Context, messages []models.Message, opts models.ResolvedOptions) (*models.CacheResult, error) {
	args := m.Called(ctx, messages, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CacheResult), args.Error(1)
}

func (m *MockResponseCache) Set(ctx context.Context, messages []models.Message, opts models.ResolvedOptions, resp *models.GenerateResponse) error {
	args := m.Called(ctx, messages, opts, resp)
	return args.Error(0)
}

func (m *MockResponseCache) Close() error {
	args := m.Called()
	return args.Error(0)
}
