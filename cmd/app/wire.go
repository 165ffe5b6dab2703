package main

import (
	"log/slog"

	"repo-triage/internal/adapter/analyzer"
	"repo-triage/internal/adapter/archive"
	"repo-triage/internal/adapter/feishu"
	"repo-triage/internal/adapter/filter"
	"repo-triage/internal/adapter/github"
	"repo-triage/internal/adapter/platform"
	"repo-triage/internal/config"
	"repo-triage/internal/domain"
	"repo-triage/internal/port"
	"repo-triage/internal/service"
)

// buildService 组装排查服务
func buildService(cfg *config.Config, logger *slog.Logger) (*service.TriageService, error) {
	gateway, err := github.NewGateway(github.Options{
		Token:          cfg.GitHubToken,
		BaseURL:        cfg.GitHubAPIURL,
		UserAgent:      cfg.UserAgent,
		CommitPageSize: cfg.CommitPageSize,
	})
	if err != nil {
		return nil, err
	}

	policy := cfg.Policy()
	contentAnalyzer := analyzer.NewContentAnalyzer(archive.NewInspector(), policy.EscalationCeiling, logger)
	contentAnalyzer.SetMaxGoroutines(cfg.EscalationWorkers)

	var notifier port.Notifier
	if cfg.FeishuWebhook != "" {
		notifier = feishu.NewNotifier(cfg.FeishuWebhook, logger)
	}

	return service.NewTriageService(
		platform.NewClassifier(),
		map[string]port.Gateway{domain.PlatformGitHub: gateway},
		service.NewRepoTriager(contentAnalyzer, policy, logger),
		filter.NewAgeGate(policy.MaxAccountAgeDays),
		notifier,
		logger,
	), nil
}
