package service

import (
	"context"
	"fmt"
	"log/slog"

	"repo-triage/internal/domain"
	"repo-triage/internal/port"
)

// RepoTriager 单个仓库的排查引擎
type RepoTriager struct {
	analyzer port.Analyzer
	ratio    float64
	logger   *slog.Logger
}

// NewRepoTriager 创建仓库排查引擎
func NewRepoTriager(analyzer port.Analyzer, policy Policy, logger *slog.Logger) *RepoTriager {
	ratio := policy.ArchiveRatio
	if ratio <= 0 {
		ratio = DefaultPolicy().ArchiveRatio
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RepoTriager{analyzer: analyzer, ratio: ratio, logger: logger}
}

// ArchiveRatio 统计压缩包命名的条目数、总条目数和占比，总数为 0 时占比为 0
func ArchiveRatio(items []domain.ContentItem) (archives, total int, ratio float64) {
	total = len(items)
	for _, item := range items {
		if domain.IsArchiveName(item.Name) {
			archives++
		}
	}
	if total == 0 {
		return archives, total, 0
	}
	return archives, total, float64(archives) / float64(total)
}

// Triage 排查单个仓库
//  1. 提取提交邮箱（没有提交数据不是错误）
//  2. 列出根目录；空仓库直接判定 benign
//  3. 压缩包占比低于阈值判定 undetermined，只保留 name/size
//  4. 否则判定 suspicious，对所有条目做升级检查
func (t *RepoTriager) Triage(ctx context.Context, gw port.Gateway, listing domain.RepositoryListing) (domain.RepositoryRecord, error) {
	emails, err := gw.FetchCommitAuthors(ctx, listing.Ref)
	if err != nil {
		return domain.RepositoryRecord{}, fmt.Errorf("fetch commit authors: %w", err)
	}
	if emails == nil {
		emails = []string{}
	}

	items, found, err := gw.FetchRootContents(ctx, listing.Ref)
	if err != nil {
		return domain.RepositoryRecord{}, fmt.Errorf("fetch root contents: %w", err)
	}

	var (
		verdict  domain.Verdict
		findings []domain.ContentFinding
	)
	archives, total, ratio := ArchiveRatio(items)
	switch {
	case !found:
		verdict, findings = domain.VerdictBenign, []domain.ContentFinding{}
	case total == 0 || archives == 0 || ratio < t.ratio:
		verdict, findings = domain.VerdictUndetermined, domain.LightweightFindings(items)
	default:
		findings, err = t.analyzer.Analyze(ctx, gw, items)
		if err != nil {
			return domain.RepositoryRecord{}, err
		}
		verdict = domain.VerdictSuspicious
	}

	t.logger.Debug("repository triaged",
		"repo", listing.Ref.String(),
		"verdict", verdict,
		"archives", archives,
		"total", total,
	)

	return domain.RepositoryRecord{
		Name:         listing.Name,
		Description:  listing.Description,
		CreatedAt:    listing.CreatedAt,
		Verdict:      verdict,
		CommitEmails: emails,
		Contents:     findings,
		Ref:          listing.Ref,
	}, nil
}
