package service

import (
	"bytes"
	"context"
	"testing"

	"repo-triage/internal/domain"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClassifier 模拟Classifier接口
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(rawURL string) (domain.Target, error) {
	args := m.Called(rawURL)
	return args.Get(0).(domain.Target), args.Error(1)
}

// MockGateway 模拟Gateway接口
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) ResolveAccount(ctx context.Context, username string) (domain.Account, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(domain.Account), args.Error(1)
}

func (m *MockGateway) ListRepositories(ctx context.Context, account domain.Account) ([]domain.RepositoryListing, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RepositoryListing), args.Error(1)
}

func (m *MockGateway) FetchRootContents(ctx context.Context, ref domain.RepoRef) ([]domain.ContentItem, bool, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]domain.ContentItem), args.Bool(1), args.Error(2)
}

func (m *MockGateway) FetchCommitAuthors(ctx context.Context, ref domain.RepoRef) ([]string, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGateway) Download(ctx context.Context, downloadURL string) ([]byte, error) {
	args := m.Called(ctx, downloadURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockFilter 模拟Filter接口
type MockFilter struct {
	mock.Mock
}

func (m *MockFilter) Allows(account domain.Account) bool {
	return m.Called(account).Bool(0)
}

func (m *MockFilter) MaxDays() int {
	return m.Called().Int(0)
}

// MockNotifier 模拟Notifier接口
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, report *domain.Report) error {
	return m.Called(ctx, report).Error(0)
}

// zipWith 在内存里构造 zip
func zipWith(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("content of " + name))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
