package filter

import (
	"time"

	"repo-triage/internal/domain"
)

// AgeGate 账号年龄闸门：只排查注册时间不超过 maxDays 天的账号
// maxDays 为 0 时关闭，所有账号都放行
type AgeGate struct {
	maxDays int
	nowFunc func() time.Time
}

// NewAgeGate 创建新的年龄闸门，负数视为关闭
func NewAgeGate(maxDays int) *AgeGate {
	if maxDays < 0 {
		maxDays = 0
	}
	return &AgeGate{
		maxDays: maxDays,
		nowFunc: time.Now, // 便于测试注入当前时间
	}
}

// Enabled 是否启用
func (g *AgeGate) Enabled() bool {
	return g != nil && g.maxDays > 0
}

// MaxDays 返回配置的天数上限
func (g *AgeGate) MaxDays() int {
	if g == nil {
		return 0
	}
	return g.maxDays
}

// Allows 判断账号是否需要继续排查，边界（正好 maxDays 天）放行
func (g *AgeGate) Allows(account domain.Account) bool {
	if !g.Enabled() {
		return true
	}
	current := time.Now()
	if g.nowFunc != nil {
		current = g.nowFunc()
	}
	maxAge := time.Duration(g.maxDays) * 24 * time.Hour
	return current.Sub(account.CreatedAt) <= maxAge
}
