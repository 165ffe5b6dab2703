package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"repo-triage/internal/common"
	"repo-triage/internal/service"
)

// Config is the process configuration, read from the environment.
type Config struct {
	GitHubToken  string `env:"GITHUB_TOKEN"`
	GitHubAPIURL string `env:"GITHUB_API_URL"`
	UserAgent    string `env:"TRIAGE_USER_AGENT" envDefault:"repo-triage/1.0"`

	ArchiveRatio      float64 `env:"TRIAGE_ARCHIVE_RATIO" envDefault:"0.5"`
	EscalationCeiling int64   `env:"TRIAGE_ESCALATION_CEILING" envDefault:"3500000"`
	MaxAccountAgeDays int     `env:"TRIAGE_MAX_ACCOUNT_AGE" envDefault:"0"`
	EscalationWorkers int     `env:"TRIAGE_ESCALATION_WORKERS" envDefault:"4"`
	CommitPageSize    int     `env:"TRIAGE_COMMIT_PAGE_SIZE" envDefault:"100"`

	ListenAddr         string `env:"LISTEN_ADDR" envDefault:":8080"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`

	FeishuWebhook string `env:"FEISHU_WEBHOOK"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, common.WrapError(common.ErrCodeConfig, "parse environment", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the triage pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.ArchiveRatio <= 0 || c.ArchiveRatio > 1:
		return common.NewError(common.ErrCodeConfig, fmt.Sprintf("TRIAGE_ARCHIVE_RATIO must be in (0,1], got %v", c.ArchiveRatio))
	case c.EscalationCeiling <= 0:
		return common.NewError(common.ErrCodeConfig, "TRIAGE_ESCALATION_CEILING must be positive")
	case c.MaxAccountAgeDays < 0:
		return common.NewError(common.ErrCodeConfig, "TRIAGE_MAX_ACCOUNT_AGE must not be negative")
	case c.EscalationWorkers < 0:
		return common.NewError(common.ErrCodeConfig, "TRIAGE_ESCALATION_WORKERS must not be negative")
	case c.CommitPageSize < 1 || c.CommitPageSize > 100:
		return common.NewError(common.ErrCodeConfig, "TRIAGE_COMMIT_PAGE_SIZE must be between 1 and 100")
	case c.RateLimitPerMinute < 0:
		return common.NewError(common.ErrCodeConfig, "RATE_LIMIT_PER_MINUTE must not be negative")
	}
	return nil
}

// Policy returns the triage thresholds.
func (c *Config) Policy() service.Policy {
	return service.Policy{
		ArchiveRatio:      c.ArchiveRatio,
		EscalationCeiling: c.EscalationCeiling,
		MaxAccountAgeDays: c.MaxAccountAgeDays,
	}
}
