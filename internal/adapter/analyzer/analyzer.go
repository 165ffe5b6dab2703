package analyzer

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"repo-triage/internal/adapter/digest"
	"repo-triage/internal/domain"
	"repo-triage/internal/port"
)

// DefaultCeiling 升级检查的文件大小上限（不含）
const DefaultCeiling int64 = 3_500_000

// ContentAnalyzer 对可疑仓库的根目录文件做升级检查：下载、计算摘要、解析压缩包
type ContentAnalyzer struct {
	inspector     port.Inspector
	ceiling       int64
	maxGoroutines int // 最大并发数
	logger        *slog.Logger
}

// NewContentAnalyzer 创建新的分析器实例
func NewContentAnalyzer(inspector port.Inspector, ceiling int64, logger *slog.Logger) *ContentAnalyzer {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentAnalyzer{
		inspector:     inspector,
		ceiling:       ceiling,
		maxGoroutines: 4, // 默认并发数为4
		logger:        logger,
	}
}

// SetMaxGoroutines 设置最大并发数
func (a *ContentAnalyzer) SetMaxGoroutines(max int) {
	if max > 0 {
		a.maxGoroutines = max
	}
}

// ShouldEscalate 普通文件、文件名是压缩包且声明大小低于上限才下载
// 目录和子模块没有下载地址，即使名字像压缩包也不升级
func (a *ContentAnalyzer) ShouldEscalate(item domain.ContentItem) bool {
	return item.IsFile() && item.Size < a.ceiling && domain.IsArchiveName(item.Name)
}

// Analyze 并发处理全部条目，结果按列表顺序写回
// 任一下载或解析失败会取消其余任务并返回该错误
func (a *ContentAnalyzer) Analyze(ctx context.Context, dl port.Downloader, items []domain.ContentItem) ([]domain.ContentFinding, error) {
	findings := make([]domain.ContentFinding, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxGoroutines)

	for i, item := range items {
		if !a.ShouldEscalate(item) {
			findings[i] = item.Lightweight()
			continue
		}
		i, item := i, item
		g.Go(func() error {
			finding, err := a.escalate(gctx, dl, item)
			if err != nil {
				return err
			}
			findings[i] = finding
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return findings, nil
}

func (a *ContentAnalyzer) escalate(ctx context.Context, dl port.Downloader, item domain.ContentItem) (domain.ContentFinding, error) {
	a.logger.Debug("escalating content item", "name", item.Name, "size", item.Size)

	data, err := dl.Download(ctx, item.DownloadURL)
	if err != nil {
		return domain.ContentFinding{}, fmt.Errorf("download %s: %w", item.Name, err)
	}

	fileDigest := digest.SHA256Hex(data)
	entryName, entryDigest, err := a.inspector.InspectFirstEntry(data)
	if err != nil {
		return domain.ContentFinding{}, fmt.Errorf("inspect %s: %w", item.Name, err)
	}

	return domain.ContentFinding{
		Name:               item.Name,
		Size:               item.Size,
		SHA256:             &fileDigest,
		FirstContentName:   &entryName,
		FirstContentSHA256: &entryDigest,
	}, nil
}
