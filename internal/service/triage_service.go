package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"repo-triage/internal/common"
	"repo-triage/internal/domain"
	"repo-triage/internal/port"
)

// ProgressFunc 每排查完一个仓库回调一次
type ProgressFunc func(done, total int, repo string)

type triageOptions struct {
	progress ProgressFunc
}

// TriageOption 单次排查的选项
type TriageOption func(*triageOptions)

// WithProgress 设置进度回调
func WithProgress(fn ProgressFunc) TriageOption {
	return func(o *triageOptions) {
		o.progress = fn
	}
}

// defaultAlertTimeout 覆盖飞书推送的全部重试
const defaultAlertTimeout = time.Minute

// TriageService 账号排查编排
type TriageService struct {
	classifier port.Classifier
	gateways   map[string]port.Gateway
	triager    *RepoTriager
	filter     port.Filter
	notifier   port.Notifier
	logger     *slog.Logger

	alerts       sync.WaitGroup
	alertTimeout time.Duration
}

// NewTriageService 创建账号排查服务，filter 和 notifier 可以为 nil
func NewTriageService(
	classifier port.Classifier,
	gateways map[string]port.Gateway,
	triager *RepoTriager,
	filter port.Filter,
	notifier port.Notifier,
	logger *slog.Logger,
) *TriageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TriageService{
		classifier:   classifier,
		gateways:     gateways,
		triager:      triager,
		filter:       filter,
		notifier:     notifier,
		logger:       logger,
		alertTimeout: defaultAlertTimeout,
	}
}

// Triage 排查一个账号
// 返回 *domain.Report 或 *domain.BenignDetermination；其他情况返回错误，不返回部分结果
func (s *TriageService) Triage(ctx context.Context, rawURL string, opts ...TriageOption) (domain.Outcome, error) {
	o := &triageOptions{}
	for _, opt := range opts {
		opt(o)
	}
	start := time.Now()

	// 1. 识别平台
	target, err := s.classifier.Classify(rawURL)
	if err != nil {
		return nil, err
	}
	gw, ok := s.gateways[target.Platform]
	if !ok {
		return nil, common.NewError(common.ErrCodeUnsupportedHost, fmt.Sprintf("no gateway for platform %s", target.Platform))
	}

	// 2. 查询账号
	account, err := gw.ResolveAccount(ctx, target.Username)
	if err != nil {
		return nil, err
	}
	if s.filter != nil && !s.filter.Allows(account) {
		reason := fmt.Sprintf("%s is older than %d days", target.Username, s.filter.MaxDays())
		s.logger.Info("account skipped by age gate", "username", target.Username, "created", account.CreatedAt)
		return domain.NewBenign(target.URL, target.Username, reason), nil
	}

	// 3. 列出仓库
	listings, err := gw.ListRepositories(ctx, account)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return domain.NewBenign(target.URL, target.Username, fmt.Sprintf("%s has no repos", target.Username)), nil
	}

	// 4. 按顺序逐个排查，任一失败整体失败
	records := make([]domain.RepositoryRecord, 0, len(listings))
	for i, listing := range listings {
		record, err := s.triager.Triage(ctx, gw, listing)
		if err != nil {
			return nil, fmt.Errorf("triage repository %s: %w", listing.Ref, err)
		}
		records = append(records, record)
		if o.progress != nil {
			o.progress(i+1, len(listings), listing.Name)
		}
	}

	// 5. 汇总
	report := &domain.Report{
		Verdict:      domain.AggregateVerdict(records),
		URL:          target.URL,
		Username:     target.Username,
		Platform:     target.Platform,
		UserCreated:  account.CreatedAt,
		Repositories: records,
	}

	s.logger.Info("triage finished",
		"url", target.URL,
		"username", target.Username,
		"verdict", report.Verdict,
		"repositories", len(records),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if report.Verdict == domain.VerdictSuspicious && s.notifier != nil {
		s.alert(ctx, report)
	}

	return report, nil
}

// alert 在后台推送告警，不阻塞返回结果，也不随调用方的 ctx 取消
func (s *TriageService) alert(ctx context.Context, report *domain.Report) {
	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.alertTimeout)
	s.alerts.Add(1)
	go func() {
		defer s.alerts.Done()
		defer cancel()
		if err := s.notifier.Notify(alertCtx, report); err != nil {
			s.logger.Warn("alert delivery failed", "username", report.Username, "error", err)
		}
	}()
}

// WaitAlerts 等待所有后台告警结束，进程退出前调用
func (s *TriageService) WaitAlerts() {
	s.alerts.Wait()
}

// ErrorResult 把错误转换成对外的错误结构
func ErrorResult(rawURL string, err error) domain.ErrorPayload {
	return domain.ErrorPayload{URL: rawURL, Error: common.PublicMessage(err)}
}
