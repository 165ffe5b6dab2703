package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"repo-triage/internal/adapter/analyzer"
	"repo-triage/internal/adapter/archive"
	"repo-triage/internal/adapter/digest"
	"repo-triage/internal/adapter/github"
	"repo-triage/internal/common"
	"repo-triage/internal/config"
	"repo-triage/internal/domain"
	"repo-triage/internal/service"
)

// 调试工具：单独运行压缩包鉴定或单个仓库的排查
func main() {
	app := &cli.App{
		Name:  "repo-triage-debug",
		Usage: "Run single triage stages by hand",
		Commands: []*cli.Command{
			{
				Name:      "inspect",
				Usage:     "Hash a local archive and fingerprint its first entry",
				ArgsUsage: "<file>",
				Action:    runInspect,
			},
			{
				Name:      "repo",
				Usage:     "Triage a single repository",
				ArgsUsage: "<owner>/<name>",
				Action:    runRepo,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		color.Red("❌ %v", err)
		os.Exit(1)
	}
}

func runInspect(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowSubcommandHelp(c)
	}
	path := c.Args().First()

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	fmt.Println("🔍 调试模式：鉴定本地压缩包")
	fmt.Printf("文件: %s (%d bytes)\n", path, len(data))
	fmt.Printf("sha256: %s\n", digest.SHA256Hex(data))
	fmt.Printf("按文件名会升级检查: %v\n", domain.IsArchiveName(path))

	name, entryDigest, err := archive.NewInspector().InspectFirstEntry(data)
	if err != nil {
		return err
	}
	if name == "" && entryDigest == "" {
		color.Yellow("压缩包没有任何条目")
		return nil
	}
	color.Green("✅ 第一个条目: %s", name)
	fmt.Printf("条目 sha256: %s\n", entryDigest)
	return nil
}

func runRepo(c *cli.Context) error {
	owner, name, ok := strings.Cut(c.Args().First(), "/")
	if c.NArg() != 1 || !ok || owner == "" || name == "" {
		return cli.ShowSubcommandHelp(c)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := common.NewLogger("debug", os.Stderr)

	gateway, err := github.NewGateway(github.Options{
		Token:          cfg.GitHubToken,
		BaseURL:        cfg.GitHubAPIURL,
		UserAgent:      cfg.UserAgent,
		CommitPageSize: cfg.CommitPageSize,
	})
	if err != nil {
		return err
	}

	policy := cfg.Policy()
	contentAnalyzer := analyzer.NewContentAnalyzer(archive.NewInspector(), policy.EscalationCeiling, logger)
	contentAnalyzer.SetMaxGoroutines(cfg.EscalationWorkers)
	triager := service.NewRepoTriager(contentAnalyzer, policy, logger)

	fmt.Printf("🔍 调试模式：排查仓库 %s/%s\n", owner, name)
	record, err := triager.Triage(context.Background(), gateway, domain.RepositoryListing{
		Ref:  domain.RepoRef{Owner: owner, Name: name},
		Name: name,
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	color.Cyan("verdict: %s", record.Verdict)
	return nil
}
