package analyzer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"repo-triage/internal/adapter/digest"
	"repo-triage/internal/common"
	"repo-triage/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDownloader 模拟Downloader接口
type MockDownloader struct {
	mock.Mock
}

func (m *MockDownloader) Download(ctx context.Context, downloadURL string) ([]byte, error) {
	args := m.Called(ctx, downloadURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockInspector 模拟Inspector接口
type MockInspector struct {
	mock.Mock
}

func (m *MockInspector) InspectFirstEntry(data []byte) (string, string, error) {
	args := m.Called(data)
	return args.String(0), args.String(1), args.Error(2)
}

func TestContentAnalyzer_ShouldEscalate(t *testing.T) {
	a := NewContentAnalyzer(&MockInspector{}, DefaultCeiling, nil)

	tests := []struct {
		name string
		item domain.ContentItem
		want bool
	}{
		{"低于上限的 zip", domain.ContentItem{Name: "a.zip", Size: 3_499_999}, true},
		{"正好等于上限不升级", domain.ContentItem{Name: "a.zip", Size: 3_500_000}, false},
		{"超过上限", domain.ContentItem{Name: "a.tar", Size: 9_000_000}, false},
		{"tar", domain.ContentItem{Name: "a.tar", Size: 10}, true},
		{"非压缩包", domain.ContentItem{Name: "README.md", Size: 10}, false},
		{"大写扩展名", domain.ContentItem{Name: "A.ZIP", Size: 10}, false},
		{"显式的普通文件", domain.ContentItem{Name: "a.zip", Size: 10, Type: "file"}, true},
		{"目录名像压缩包", domain.ContentItem{Name: "x.zip", Type: "dir"}, false},
		{"子模块", domain.ContentItem{Name: "vendor.tar", Type: "submodule"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.ShouldEscalate(tt.item))
		})
	}
}

func TestContentAnalyzer_Analyze(t *testing.T) {
	items := []domain.ContentItem{
		{Name: "first.zip", Size: 100, DownloadURL: "u1"},
		{Name: "README.md", Size: 20, DownloadURL: "u2"},
		{Name: "second.tar", Size: 200, DownloadURL: "u3"},
		{Name: "huge.zip", Size: 3_500_000, DownloadURL: "u4"},
	}

	dl := &MockDownloader{}
	// 第一个下载更慢，验证结果仍按列表顺序
	dl.On("Download", mock.Anything, "u1").After(30*time.Millisecond).Return([]byte("zip-bytes"), nil)
	dl.On("Download", mock.Anything, "u3").Return([]byte("tar-bytes"), nil)

	inspector := &MockInspector{}
	inspector.On("InspectFirstEntry", []byte("zip-bytes")).Return("payload.exe", "d1", nil)
	inspector.On("InspectFirstEntry", []byte("tar-bytes")).Return("", "", nil)

	a := NewContentAnalyzer(inspector, DefaultCeiling, nil)
	findings, err := a.Analyze(context.Background(), dl, items)
	require.NoError(t, err)
	require.Len(t, findings, 4)

	assert.Equal(t, "first.zip", findings[0].Name)
	require.True(t, findings[0].Inspected())
	assert.Equal(t, digest.SHA256Hex([]byte("zip-bytes")), *findings[0].SHA256)
	assert.Equal(t, "payload.exe", *findings[0].FirstContentName)
	assert.Equal(t, "d1", *findings[0].FirstContentSHA256)

	assert.Equal(t, domain.ContentFinding{Name: "README.md", Size: 20}, findings[1])

	assert.Equal(t, "second.tar", findings[2].Name)
	require.True(t, findings[2].Inspected())
	assert.Equal(t, "", *findings[2].FirstContentName)
	assert.Equal(t, "", *findings[2].FirstContentSHA256)

	assert.Equal(t, domain.ContentFinding{Name: "huge.zip", Size: 3_500_000}, findings[3])

	dl.AssertExpectations(t)
	dl.AssertNotCalled(t, "Download", mock.Anything, "u2")
	dl.AssertNotCalled(t, "Download", mock.Anything, "u4")
	inspector.AssertExpectations(t)
}

func TestContentAnalyzer_Analyze_Errors(t *testing.T) {
	items := []domain.ContentItem{{Name: "bad.zip", Size: 10, DownloadURL: "u1"}}

	t.Run("下载失败", func(t *testing.T) {
		dl := &MockDownloader{}
		dl.On("Download", mock.Anything, "u1").Return(nil, common.UpstreamError(500, "boom", nil))

		findings, err := NewContentAnalyzer(&MockInspector{}, 0, nil).Analyze(context.Background(), dl, items)
		assert.Nil(t, findings)
		require.Error(t, err)
		assert.True(t, common.IsCode(err, common.ErrCodeUpstream))
		assert.Contains(t, err.Error(), "download bad.zip")
	})

	t.Run("压缩包损坏", func(t *testing.T) {
		dl := &MockDownloader{}
		dl.On("Download", mock.Anything, "u1").Return([]byte("junk"), nil)
		inspector := &MockInspector{}
		inspector.On("InspectFirstEntry", []byte("junk")).Return("", "", common.NewError(common.ErrCodeInspection, "corrupt"))

		_, err := NewContentAnalyzer(inspector, 0, nil).Analyze(context.Background(), dl, items)
		require.Error(t, err)
		assert.True(t, common.IsCode(err, common.ErrCodeInspection))
	})
}

// countingDownloader 记录同时进行的下载数量
type countingDownloader struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (c *countingDownloader) Download(ctx context.Context, downloadURL string) ([]byte, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		peak := c.peak.Load()
		if n <= peak || c.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return []byte(downloadURL), nil
}

func TestContentAnalyzer_SetMaxGoroutines(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"设置为正数", 2, 2},
		{"设置为0不生效", 0, 4},
		{"设置为负数不生效", -1, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewContentAnalyzer(&MockInspector{}, 0, nil)
			a.SetMaxGoroutines(tt.input)
			assert.Equal(t, tt.expected, a.maxGoroutines)
		})
	}

	t.Run("并发数受限", func(t *testing.T) {
		items := make([]domain.ContentItem, 8)
		for i := range items {
			items[i] = domain.ContentItem{Name: "x.zip", Size: 1, DownloadURL: string(rune('a' + i))}
		}
		inspector := &MockInspector{}
		inspector.On("InspectFirstEntry", mock.Anything).Return("e", "d", nil)

		dl := &countingDownloader{}
		a := NewContentAnalyzer(inspector, 0, nil)
		a.SetMaxGoroutines(2)

		findings, err := a.Analyze(context.Background(), dl, items)
		require.NoError(t, err)
		assert.Len(t, findings, 8)
		assert.LessOrEqual(t, dl.peak.Load(), int32(2))
	})
}

func TestContentAnalyzer_Analyze_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dl := &MockDownloader{}
	dl.On("Download", mock.Anything, "u1").Return(nil, context.Canceled)

	_, err := NewContentAnalyzer(&MockInspector{}, 0, nil).Analyze(ctx, dl, []domain.ContentItem{{Name: "a.zip", Size: 1, DownloadURL: "u1"}})
	assert.True(t, errors.Is(err, context.Canceled))
}
