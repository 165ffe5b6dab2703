package platform

import (
	"net/url"
	"slices"
	"strings"

	"golang.org/x/net/publicsuffix"

	"repo-triage/internal/common"
	"repo-triage/internal/domain"
)

// UnsupportedHostMessage 原样返回给调用方
const UnsupportedHostMessage = "unsupported host, only GitHub is supported for now"

// Rule 把可注册域名（eTLD+1）绑定到平台
// Hosts 非空时只接受列出的完整主机名，其余子域（docs.、api.、gist. 等）一律不支持
type Rule struct {
	Domain   string
	Hosts    []string
	Platform string
}

// DefaultRules 内置的主机表
var DefaultRules = []Rule{
	{Domain: "github.com", Hosts: []string{"github.com", "www.github.com"}, Platform: domain.PlatformGitHub},
}

// Classifier 实现了 port.Classifier 接口
type Classifier struct {
	rules []Rule
}

// NewClassifier 创建分诊台，不传规则时使用 DefaultRules
func NewClassifier(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

// Classify 解析平台和用户名，输入可以不带 scheme，例如 "github.com/octocat"
func (c *Classifier) Classify(rawURL string) (domain.Target, error) {
	input := strings.TrimSpace(rawURL)
	if input == "" {
		return domain.Target{}, common.NewError(common.ErrCodeInvalidInput, "url is required")
	}
	if !strings.Contains(input, "://") {
		input = "https://" + input
	}

	u, err := url.Parse(input)
	if err != nil {
		return domain.Target{}, common.WrapError(common.ErrCodeInvalidInput, "invalid url", err)
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return domain.Target{}, common.NewError(common.ErrCodeInvalidInput, "invalid url: missing host")
	}

	platformID, ok := c.match(host)
	if !ok {
		return domain.Target{}, common.NewError(common.ErrCodeUnsupportedHost, UnsupportedHostMessage)
	}

	username := firstSegment(u.Path)
	if username == "" {
		return domain.Target{}, common.NewError(common.ErrCodeInvalidInput, "invalid url: missing username")
	}

	return domain.Target{
		Platform: platformID,
		Username: username,
		URL:      rawURL,
	}, nil
}

func (c *Classifier) match(host string) (string, bool) {
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		registrable = host
	}
	for _, r := range c.rules {
		if registrable != r.Domain {
			continue
		}
		if len(r.Hosts) == 0 || slices.Contains(r.Hosts, host) {
			return r.Platform, true
		}
	}
	return "", false
}

func firstSegment(path string) string {
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			return seg
		}
	}
	return ""
}
