package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"repo-triage/internal/adapter/httpapi"
	"repo-triage/internal/common"
	"repo-triage/internal/config"
	"repo-triage/internal/domain"
	"repo-triage/internal/service"
)

const (
	exitError      = 1
	exitSuspicious = 3
)

var version = "dev"

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		os.Exit(exitError)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "repo-triage",
		Usage:     "Detect accounts that distribute malware disguised as archives",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Commands: []*cli.Command{
			{
				Name:      "check",
				Usage:     "Triage one profile or repository URL and print the report as JSON",
				ArgsUsage: "<url>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "fail-on-suspicious",
						Usage: "Exit with status 3 when the account is suspicious",
					},
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "Only print the JSON result",
					},
				},
				Action: runCheck,
			},
			{
				Name:  "serve",
				Usage: "Serve the triage HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "listen",
						Aliases: []string{"l"},
						Usage:   "Listen address (overrides LISTEN_ADDR)",
					},
				},
				Action: runServe,
			},
		},
	}
}

func loadRuntime(c *cli.Context) (*config.Config, *slog.Logger, *service.TriageService, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := common.NewLogger(cfg.LogLevel, c.App.ErrWriter)
	svc, err := buildService(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, svc, nil
}

func runCheck(c *cli.Context) error {
	if c.NArg() != 1 {
		_ = cli.ShowSubcommandHelp(c)
		return cli.Exit("", exitError)
	}
	rawURL := c.Args().First()
	stdout, stderr := c.App.Writer, c.App.ErrWriter
	quiet := c.Bool("quiet")

	_, _, svc, err := loadRuntime(c)
	if err != nil {
		fmt.Fprintln(stderr, color.RedString("❌ %v", err))
		return cli.Exit("", exitError)
	}

	var bar *progressbar.ProgressBar
	progress := func(done, total int, repo string) {
		if quiet {
			return
		}
		if bar == nil {
			bar = newProgressBar(stderr, total)
		}
		bar.Describe(fmt.Sprintf("[cyan]%s[reset]", repo))
		_ = bar.Set(done)
	}

	if !quiet {
		fmt.Fprintln(stderr, color.BlueString("Target: %s", rawURL))
	}

	outcome, err := svc.Triage(c.Context, rawURL, service.WithProgress(progress))
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(stderr)
	}
	if err != nil {
		_ = printJSON(stdout, service.ErrorResult(rawURL, err))
		if !quiet {
			fmt.Fprintln(stderr, color.RedString("❌ %s", common.PublicMessage(err)))
		}
		return cli.Exit("", exitError)
	}

	if err := printJSON(stdout, outcome); err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	if !quiet {
		printSummary(stderr, outcome)
	}
	// 结果已经输出，退出前把告警发完
	svc.WaitAlerts()

	if report, ok := outcome.(*domain.Report); ok && report.Verdict == domain.VerdictSuspicious && c.Bool("fail-on-suspicious") {
		return cli.Exit("", exitSuspicious)
	}
	return nil
}

func runServe(c *cli.Context) error {
	cfg, logger, svc, err := loadRuntime(c)
	if err != nil {
		fmt.Fprintln(c.App.ErrWriter, color.RedString("❌ %v", err))
		return cli.Exit("", exitError)
	}

	addr := cfg.ListenAddr
	if c.String("listen") != "" {
		addr = c.String("listen")
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := httpapi.New(svc, httpapi.NewIPLimiter(cfg.RateLimitPerMinute), logger)
	srv := api.NewHTTPServer(addr)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return cli.Exit(err.Error(), exitError)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	svc.WaitAlerts()
	return nil
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription("[cyan]Triaging repositories[reset]"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]#[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: "-",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummary(w io.Writer, outcome domain.Outcome) {
	switch o := outcome.(type) {
	case *domain.BenignDetermination:
		fmt.Fprintln(w, color.GreenString("✅ benign: %s", o.Reason))
	case *domain.Report:
		suspicious := o.SuspiciousRepositories()
		switch o.Verdict {
		case domain.VerdictSuspicious:
			fmt.Fprintln(w, color.RedString("🚨 suspicious: %d of %d repositories look like archive bait", len(suspicious), len(o.Repositories)))
			for _, repo := range suspicious {
				fmt.Fprintf(w, "   %s %s\n", color.RedString("•"), repo.Name)
				for _, c := range repo.Contents {
					if c.Inspected() {
						fmt.Fprintf(w, "     %s → %s\n", c.Name, displayEntry(*c.FirstContentName))
					}
				}
			}
		default:
			fmt.Fprintln(w, color.YellowString("❔ %s: %d repositories checked, nothing conclusive", o.Verdict, len(o.Repositories)))
		}
	}
}

func displayEntry(name string) string {
	if name == "" {
		return "(empty archive)"
	}
	return name
}
