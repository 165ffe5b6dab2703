package domain

import (
	"strings"
	"time"
)

// Verdict 是仓库或账号级别的判定结果
type Verdict string

const (
	VerdictSuspicious   Verdict = "suspicious"
	VerdictBenign       Verdict = "benign"
	VerdictUndetermined Verdict = "undetermined"
)

// PlatformGitHub is the only platform identifier the classifier currently emits.
const PlatformGitHub = "github"

// Target is a classified triage input.
type Target struct {
	Platform string
	Username string
	URL      string // as supplied by the caller
}

// RepoRef locates a repository on the platform API. Never serialised.
type RepoRef struct {
	Owner string
	Name  string
}

func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name
}

// Account 是被排查的账号
type Account struct {
	Platform  string
	Username  string
	CreatedAt time.Time
}

// RepositoryListing is one entry of an account's repository list, before triage.
type RepositoryListing struct {
	Ref         RepoRef
	Name        string
	Description string
	CreatedAt   time.Time
}

// ContentItemFile is the platform's type for a regular file entry.
const ContentItemFile = "file"

// ContentItem is a root-level entry as reported by the platform.
type ContentItem struct {
	Name        string
	Size        int64
	DownloadURL string
	Type        string // file, dir, symlink, submodule; empty when unknown
}

// IsFile reports whether the item can be downloaded. Unknown types count as files.
func (c ContentItem) IsFile() bool {
	return c.Type == "" || c.Type == ContentItemFile
}

// Lightweight returns the name/size-only finding for an item that is not escalated.
func (c ContentItem) Lightweight() ContentFinding {
	return ContentFinding{Name: c.Name, Size: c.Size}
}

// LightweightFindings maps items to unescalated findings. Never returns nil.
func LightweightFindings(items []ContentItem) []ContentFinding {
	findings := make([]ContentFinding, 0, len(items))
	for _, item := range items {
		findings = append(findings, item.Lightweight())
	}
	return findings
}

// ContentFinding 是单个根目录文件的排查结果
// 未升级检查的文件只有 name/size；升级检查过的压缩包三个摘要字段都会输出（可能为空字符串）
type ContentFinding struct {
	Name               string  `json:"name"`
	Size               int64   `json:"size"`
	SHA256             *string `json:"sha256,omitempty"`
	FirstContentName   *string `json:"first_content_name,omitempty"`
	FirstContentSHA256 *string `json:"first_content_sha256,omitempty"`
}

// Inspected reports whether the finding went through archive inspection.
func (f ContentFinding) Inspected() bool {
	return f.SHA256 != nil
}

// RepositoryRecord 是单个仓库的排查结果
type RepositoryRecord struct {
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	CreatedAt    time.Time        `json:"created"`
	Verdict      Verdict          `json:"verdict"`
	CommitEmails []string         `json:"commit_emails"`
	Contents     []ContentFinding `json:"contents"`

	Ref RepoRef `json:"-"`
}

// Outcome is a non-error terminal result of a triage run: either *Report or
// *BenignDetermination. Hard failures are returned as errors instead.
type Outcome interface {
	outcome()
}

// Report 是完整的账号排查报告
type Report struct {
	Verdict      Verdict            `json:"verdict"`
	URL          string             `json:"url"`
	Username     string             `json:"username"`
	Platform     string             `json:"platform"`
	UserCreated  time.Time          `json:"user_created"`
	Repositories []RepositoryRecord `json:"repositories"`
}

func (*Report) outcome() {}

// SuspiciousRepositories returns the records marked suspicious, in report order.
func (r *Report) SuspiciousRepositories() []RepositoryRecord {
	var out []RepositoryRecord
	for _, repo := range r.Repositories {
		if repo.Verdict == VerdictSuspicious {
			out = append(out, repo)
		}
	}
	return out
}

// BenignDetermination 表示输入不满足可疑条件而提前结束，不是错误
type BenignDetermination struct {
	Verdict  Verdict `json:"verdict"`
	URL      string  `json:"url"`
	Username string  `json:"username"`
	Reason   string  `json:"reason"`
}

func (*BenignDetermination) outcome() {}

// NewBenign builds a BenignDetermination; the verdict is always benign.
func NewBenign(url, username, reason string) *BenignDetermination {
	return &BenignDetermination{
		Verdict:  VerdictBenign,
		URL:      url,
		Username: username,
		Reason:   reason,
	}
}

// ErrorPayload is the wire shape of a failed triage.
type ErrorPayload struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// IsArchiveName 判断文件名是否以 .zip 或 .tar 结尾（区分大小写）
func IsArchiveName(name string) bool {
	return strings.HasSuffix(name, ".zip") || strings.HasSuffix(name, ".tar")
}

// AggregateVerdict folds repository verdicts into the account verdict:
// suspicious if any repository is suspicious, otherwise undetermined.
func AggregateVerdict(repos []RepositoryRecord) Verdict {
	for _, r := range repos {
		if r.Verdict == VerdictSuspicious {
			return VerdictSuspicious
		}
	}
	return VerdictUndetermined
}
