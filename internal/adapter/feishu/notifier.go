package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"repo-triage/internal/common"
	"repo-triage/internal/domain"
)

// Notifier 实现了 port.Notifier 接口，把可疑报告推送到飞书群机器人
type Notifier struct {
	webhookURL string
	client     *http.Client
	retryDelay time.Duration
}

// NewNotifier 创建飞书推送器
func NewNotifier(webhook string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if webhook == "" {
		logger.Warn("飞书 Webhook 为空，推送功能将无法工作")
	}
	return &Notifier{
		webhookURL: webhook,
		client:     &http.Client{Timeout: 10 * time.Second},
		retryDelay: 500 * time.Millisecond,
	}
}

// Notify 发送飞书卡片消息 (Schema 2.0)
func (n *Notifier) Notify(ctx context.Context, report *domain.Report) error {
	if n.webhookURL == "" {
		return common.NewError(common.ErrCodeNotification, "Webhook URL 为空")
	}

	body, err := json.Marshal(buildCard(report))
	if err != nil {
		return common.WrapError(common.ErrCodeNotification, "构造卡片失败", err)
	}

	err = common.Do(ctx, func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
		if reqErr != nil {
			return common.Permanent(reqErr)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, postErr := n.client.Do(req)
		if postErr != nil {
			return postErr
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return common.UpstreamError(resp.StatusCode, "", fmt.Errorf("飞书 API 报错: 状态码 %d", resp.StatusCode))
		}
		return nil
	},
		common.WithMaxRetries(3),
		common.WithInitialDelay(n.retryDelay),
		common.WithRetryIf(retryable),
	)
	if err != nil {
		return common.WrapError(common.ErrCodeNotification, "发送请求失败", err)
	}

	return nil
}

// retryable 只有 5xx 和网络错误会重试
func retryable(err error) bool {
	if !common.IsCode(err, common.ErrCodeUpstream) {
		return true
	}
	var appErr *common.AppError
	return errors.As(err, &appErr) && appErr.Status >= http.StatusInternalServerError
}

func buildCard(report *domain.Report) map[string]interface{} {
	title := fmt.Sprintf("🚨 发现可疑账号: %s", report.Username)

	var sb strings.Builder
	fmt.Fprintf(&sb, "**平台:** %s  |  **注册时间:** %s\n", report.Platform, report.UserCreated.Format("2006-01-02"))
	fmt.Fprintf(&sb, "**仓库总数:** %d\n\n", len(report.Repositories))
	sb.WriteString("**🧨 可疑仓库:**\n")
	for _, repo := range report.SuspiciousRepositories() {
		fmt.Fprintf(&sb, "- **%s**", repo.Name)
		if len(repo.CommitEmails) > 0 {
			fmt.Fprintf(&sb, " (%s)", strings.Join(repo.CommitEmails, ", "))
		}
		sb.WriteString("\n")
		for _, c := range repo.Contents {
			if !c.Inspected() {
				continue
			}
			entry := *c.FirstContentName
			if entry == "" {
				entry = "(空压缩包)"
			}
			fmt.Fprintf(&sb, "  - `%s` → `%s` sha256:%s\n", c.Name, entry, shortDigest(*c.SHA256))
		}
	}

	return map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"schema": "2.0",
			"config": map[string]interface{}{
				"update_multi": true,
			},
			"header": map[string]interface{}{
				"title": map[string]interface{}{
					"tag":     "plain_text",
					"content": title,
				},
				"template": "red",
			},
			"body": map[string]interface{}{
				"direction": "vertical",
				"elements": []map[string]interface{}{
					{
						"tag":       "markdown",
						"content":   sb.String(),
						"text_size": "normal",
					},
					{
						"tag": "button",
						"text": map[string]interface{}{
							"tag":     "plain_text",
							"content": "🔗 查看账号",
						},
						"type": "danger",
						"behaviors": []map[string]interface{}{
							{
								"type":        "open_url",
								"default_url": report.URL,
							},
						},
					},
				},
			},
		},
	}
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
