package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"repo-triage/internal/common"
	"repo-triage/internal/domain"

	"github.com/google/go-github/v53/github"
	"golang.org/x/oauth2"
)

// NoReplyEmail 是平台对隐藏邮箱的提交者使用的占位地址
const NoReplyEmail = "noreply@github.com"

const (
	defaultUserAgent      = "repo-triage/1.0"
	defaultCommitPageSize = 100
	reposPerPage          = 100
)

// Options 网关配置
type Options struct {
	// Token 为空时匿名访问（60 次/小时）
	Token string
	// BaseURL 覆盖 API 地址，GitHub Enterprise 或测试时使用
	BaseURL        string
	UserAgent      string
	CommitPageSize int
	HTTPClient     *http.Client
}

// Gateway 实现了 port.Gateway 接口
// 不做任何重试，上游失败直接返回
type Gateway struct {
	client         *github.Client
	commitPageSize int
}

// NewGateway 初始化 GitHub 客户端
func NewGateway(opts Options) (*Gateway, error) {
	httpClient := opts.HTTPClient
	if opts.Token != "" {
		ctx := context.Background()
		if httpClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		}
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: opts.Token},
		)
		httpClient = oauth2.NewClient(ctx, ts)
	}

	client := github.NewClient(httpClient)

	if opts.BaseURL != "" {
		baseURL, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, common.WrapError(common.ErrCodeConfig, "invalid GitHub API url", err)
		}
		if !strings.HasSuffix(baseURL.Path, "/") {
			baseURL.Path += "/"
		}
		client.BaseURL = baseURL
	}

	client.UserAgent = opts.UserAgent
	if client.UserAgent == "" {
		client.UserAgent = defaultUserAgent
	}

	pageSize := opts.CommitPageSize
	if pageSize <= 0 {
		pageSize = defaultCommitPageSize
	}

	return &Gateway{client: client, commitPageSize: pageSize}, nil
}

// ResolveAccount 查询账号信息
func (g *Gateway) ResolveAccount(ctx context.Context, username string) (domain.Account, error) {
	user, resp, err := g.client.Users.Get(ctx, username)
	if err != nil {
		if statusOf(resp) == http.StatusNotFound {
			return domain.Account{}, common.NewError(common.ErrCodeNotFound, fmt.Sprintf("user %s not found", username))
		}
		return domain.Account{}, upstreamError(resp, err)
	}

	return domain.Account{
		Platform:  domain.PlatformGitHub,
		Username:  username,
		CreatedAt: user.GetCreatedAt().Time,
	}, nil
}

// ListRepositories 按创建时间升序列出账号名下的全部仓库
func (g *Gateway) ListRepositories(ctx context.Context, account domain.Account) ([]domain.RepositoryListing, error) {
	opts := &github.RepositoryListOptions{
		Type:      "owner",
		Sort:      "created",
		Direction: "asc",
		ListOptions: github.ListOptions{
			PerPage: reposPerPage,
		},
	}

	listings := []domain.RepositoryListing{}
	for {
		repos, resp, err := g.client.Repositories.List(ctx, account.Username, opts)
		if err != nil {
			return nil, upstreamError(resp, err)
		}

		for _, item := range repos {
			owner := item.GetOwner().GetLogin()
			if owner == "" {
				owner = account.Username
			}
			listings = append(listings, domain.RepositoryListing{
				Ref:         domain.RepoRef{Owner: owner, Name: item.GetName()},
				Name:        item.GetName(),
				Description: item.GetDescription(),
				CreatedAt:   item.GetCreatedAt().Time,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return listings, nil
}

// FetchRootContents 列出仓库根目录
// 平台返回 404（空仓库）时 found 为 false，不是错误
func (g *Gateway) FetchRootContents(ctx context.Context, ref domain.RepoRef) ([]domain.ContentItem, bool, error) {
	_, dir, resp, err := g.client.Repositories.GetContents(ctx, ref.Owner, ref.Name, "", nil)
	if err != nil {
		if statusOf(resp) == http.StatusNotFound {
			return nil, false, nil
		}
		return nil, false, upstreamError(resp, err)
	}

	items := make([]domain.ContentItem, 0, len(dir))
	for _, c := range dir {
		items = append(items, domain.ContentItem{
			Name:        c.GetName(),
			Size:        int64(c.GetSize()),
			DownloadURL: c.GetDownloadURL(),
			Type:        c.GetType(),
		})
	}
	return items, true, nil
}

// FetchCommitAuthors 提取提交记录中的邮箱，去重并保持首次出现的顺序
// 4xx（例如空仓库的 409）视为没有提交数据
func (g *Gateway) FetchCommitAuthors(ctx context.Context, ref domain.RepoRef) ([]string, error) {
	opts := &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: g.commitPageSize},
	}

	commits, resp, err := g.client.Repositories.ListCommits(ctx, ref.Owner, ref.Name, opts)
	if err != nil {
		if status := statusOf(resp); status >= 400 && status < 500 {
			return []string{}, nil
		}
		return nil, upstreamError(resp, err)
	}

	return commitEmails(commits), nil
}

func commitEmails(commits []*github.RepositoryCommit) []string {
	seen := make(map[string]struct{})
	emails := []string{}
	add := func(email string) {
		if email == "" {
			return
		}
		if _, ok := seen[email]; ok {
			return
		}
		seen[email] = struct{}{}
		emails = append(emails, email)
	}

	for _, c := range commits {
		add(c.GetCommit().GetAuthor().GetEmail())
		if committer := c.GetCommit().GetCommitter().GetEmail(); committer != NoReplyEmail {
			add(committer)
		}
	}
	return emails
}

// Download 通过同一个客户端拉取文件原始内容
func (g *Gateway) Download(ctx context.Context, downloadURL string) ([]byte, error) {
	if downloadURL == "" {
		return nil, common.NewError(common.ErrCodeUpstream, "missing download url")
	}

	req, err := g.client.NewRequest(http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, common.WrapError(common.ErrCodeUpstream, "invalid download url", err)
	}

	var buf bytes.Buffer
	resp, err := g.client.Do(ctx, req, &buf)
	if err != nil {
		return nil, upstreamError(resp, err)
	}
	return buf.Bytes(), nil
}

func statusOf(resp *github.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}

// upstreamError 带上上游的状态码和原始响应体
func upstreamError(resp *github.Response, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	status := statusOf(resp)
	if status == 0 {
		return common.WrapError(common.ErrCodeUpstream, "github request failed", err)
	}

	var body string
	if resp.Body != nil {
		// go-github 在 CheckResponse 里已经把响应体重新填回去了
		if data, readErr := io.ReadAll(resp.Body); readErr == nil {
			body = strings.TrimSpace(string(data))
		}
	}
	return common.UpstreamError(status, body, err)
}
