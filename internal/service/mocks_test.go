package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/okabe-d/llm-hub/internal/domain"
	"github.com/okabe-d/llm-hub/internal/provider"
)

// MockSessionStore mocks the store.SessionStore interface
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Create(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	args := m.Called(ctx, session)
	if rf, ok := args.Get(0).(func(context.Context, *domain.Session) (*domain.Session, error)); ok {
		return rf(ctx, session)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionStore) Update(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	args := m.Called(ctx, session)
	if rf, ok := args.Get(0).(func(context.Context, *domain.Session) (*domain.Session, error)); ok {
		return rf(ctx, session)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionStore) List(ctx context.Context, limit, offset int) ([]*domain.Session, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Session), args.Error(1)
}

func (m *MockSessionStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockAdapter mocks the provider.Adapter interface
type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockAdapter) SupportedModels() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

func (m *MockAdapter) DefaultModel() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockAdapter) Initialize(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAdapter) ResolveModel(model string) string {
	args := m.Called(model)
	return args.String(0)
}

func (m *MockAdapter) Chat(ctx context.Context, req provider.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockAdapter) ChatStream(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan provider.Chunk), args.Error(1)
}

func (m *MockAdapter) HealthCheck(ctx context.Context) provider.Health {
	args := m.Called(ctx)
	return args.Get(0).(provider.Health)
}

// newStubAdapter returns a MockAdapter preloaded with the identity behavior
// most tests want: aliases resolve to themselves and every listed model is
// supported.
func newStubAdapter(models []string, defaultModel string) *MockAdapter {
	adapter := new(MockAdapter)
	adapter.On("SupportedModels").Return(models).Maybe()
	adapter.On("DefaultModel").Return(defaultModel).Maybe()
	for _, model := range models {
		adapter.On("ResolveModel", model).Return(model).Maybe()
	}
	adapter.On("ResolveModel", "").Return(defaultModel).Maybe()
	return adapter
}

// chunkStream converts a slice of chunks into the receive-only channel an
// adapter would return
func chunkStream(chunks ...provider.Chunk) <-chan provider.Chunk {
	ch := make(chan provider.Chunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}
