package port

import (
	"context"

	"repo-triage/internal/domain"
)

// Classifier (分诊台): 识别输入 URL 属于哪个平台，并解析出用户名
type Classifier interface {
	Classify(rawURL string) (domain.Target, error)
}

// Downloader 只负责按下载地址拉取原始字节
type Downloader interface {
	Download(ctx context.Context, downloadURL string) ([]byte, error)
}

// Gateway (网关): 封装平台 API 的全部 I/O，不含业务逻辑
type Gateway interface {
	Downloader

	// 账号不存在返回 NOT_FOUND，其他失败返回 UPSTREAM_ERROR
	ResolveAccount(ctx context.Context, username string) (domain.Account, error)

	// 空列表不是错误
	ListRepositories(ctx context.Context, account domain.Account) ([]domain.RepositoryListing, error)

	// found=false 表示仓库没有内容（平台返回 404）
	FetchRootContents(ctx context.Context, ref domain.RepoRef) (items []domain.ContentItem, found bool, err error)

	// 4xx 视为没有提交数据，返回空集合
	FetchCommitAuthors(ctx context.Context, ref domain.RepoRef) ([]string, error)
}

// Inspector (鉴定师): 解析压缩包，返回第一个条目的名字和摘要
type Inspector interface {
	InspectFirstEntry(data []byte) (name, digest string, err error)
}

// Notifier (信使): 可疑报告的告警推送
type Notifier interface {
	Notify(ctx context.Context, report *domain.Report) error
}

// Analyzer (鉴定流水线): 对可疑仓库的根目录条目做升级检查，结果顺序与输入一致
type Analyzer interface {
	Analyze(ctx context.Context, dl Downloader, items []domain.ContentItem) ([]domain.ContentFinding, error)
}

// Filter (门卫): 账号级别的前置过滤
type Filter interface {
	Allows(account domain.Account) bool
	MaxDays() int
}
