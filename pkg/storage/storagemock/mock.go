package storagemock

import (
	"context"

	"github.com/edsmon/edsmon/pkg/storage"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

var _ storage.Store = (*MockStore)(nil)

func (m *MockStore) LoadAccess(ctx context.Context, account string) (storage.Access, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(storage.Access), args.Error(1)
}

func (m *MockStore) SaveAccess(ctx context.Context, account string, access storage.Access) error {
	args := m.Called(ctx, account, access)
	return args.Error(0)
}

func (m *MockStore) LoadCookies(ctx context.Context, account string) ([]storage.Cookie, error) {
	args := m.Called(ctx, account)
	if c, ok := args.Get(0).([]storage.Cookie); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) SaveCookies(ctx context.Context, account string, cookies []storage.Cookie) error {
	args := m.Called(ctx, account, cookies)
	return args.Error(0)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
