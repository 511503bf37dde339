package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	goruntime "runtime"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ccollicutt/gclog/pkg/analyzer"
	"github.com/ccollicutt/gclog/pkg/config"
	"github.com/ccollicutt/gclog/pkg/metrics"
	"github.com/ccollicutt/gclog/pkg/output"
	"github.com/ccollicutt/gclog/pkg/parser"
	"github.com/ccollicutt/gclog/pkg/webhook"
)

// ParseOptions holds command-line options for the parse command.
type ParseOptions struct {
	Output      string
	Verbose     bool
	Quiet       bool
	Jobs        int
	MetricsFile string

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewParseCommand creates the parse command.
func NewParseCommand(globals *GlobalOptions) *cobra.Command {
	opts := &ParseOptions{}

	cmd := &cobra.Command{
		Use:   "parse <log>...",
		Short: "Parse G1 GC logs into region transitions and sizing events",
		Long: `Parse one or more G1 garbage-collector logs written by JVM unified logging.

Each file becomes its own document holding:
  - Heap region transitions, one per GC pause
  - Time-based heap sizing activity (evaluations, uncommits, expansions)

Rotated logs compressed with gzip (.gz) or lz4 (.lz4) are read transparently.
Glob patterns are expanded; "-" reads standard input.

Exit codes:
  0 - Parsed successfully
  1 - Skipped-line ratio above output.skipped_warn_ratio
  2 - Configuration or runtime error`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args, globals, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Output format (text|json|yaml); default text on a terminal, json otherwise")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show every event and the skipped-line sample")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", goruntime.NumCPU(), "Number of files parsed in parallel")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus textfile metrics to this path")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", "on_issues", "When to fire webhook (on_issues|always|never)")

	return cmd
}

func runParse(cmd *cobra.Command, args []string, globals *GlobalOptions, opts *ParseOptions) error {
	ctx := contextOf(cmd.Context())

	sess, err := globals.load(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	switch config.WebhookTrigger(opts.WebhookTrigger) {
	case "", config.WebhookTriggerOnIssues, config.WebhookTriggerAlways, config.WebhookTriggerNever:
	default:
		return fmt.Errorf("invalid --webhook-trigger %q (use on_issues, always, or never)", opts.WebhookTrigger)
	}

	files, err := parser.ExpandGlobs(args)
	if err != nil {
		return fmt.Errorf("expanding log paths: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no log files matched: %v", args)
	}

	formatter, err := createFormatter(sess.cfg, opts, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	var rec *metrics.Recorder
	if opts.MetricsFile != "" {
		rec = metrics.NewRecorder()
	}
	a := sess.newAnalyzer(rec)

	start := time.Now()
	sources, err := parseFiles(ctx, a, files, opts.Jobs)
	if err != nil {
		return err
	}
	report := output.NewReport(sources, globals.ConfigPath, time.Now(), time.Since(start))

	if err := formatter.Format(ctx, report, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	if rec != nil {
		if err := rec.WriteTextfile(opts.MetricsFile); err != nil {
			return err
		}
		sess.logger.Debug("wrote metrics", "path", opts.MetricsFile)
	}

	// Webhook failures are logged but don't fail the parse
	sendWebhooks(ctx, sess.cfg, opts, report, sess.logger)

	if limit := sess.cfg.Output.SkippedWarnRatio; limit > 0 && report.SkippedRatio() > limit {
		sess.logger.Warn("skipped-line ratio above threshold",
			"ratio", fmt.Sprintf("%.3f", report.SkippedRatio()),
			"threshold", limit)
		ExitCode = ExitSkipped
	}

	return nil
}

// parseFiles parses every file into its own document, up to jobs at a time.
// Results keep the order of files.
func parseFiles(ctx context.Context, a *analyzer.Analyzer, files []string, jobs int) ([]output.Source, error) {
	sources := make([]output.Source, len(files))

	g, gctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}

	for i, path := range files {
		g.Go(func() error {
			src, err := parseFile(gctx, a, path)
			if err != nil {
				return err
			}
			sources[i] = src
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sources, nil
}

func parseFile(ctx context.Context, a *analyzer.Analyzer, path string) (output.Source, error) {
	r, err := parser.Open(path)
	if err != nil {
		return output.Source{}, err
	}
	defer r.Close()

	start := time.Now()
	doc, err := a.Parse(ctx, r)
	if err != nil {
		return output.Source{}, fmt.Errorf("%s: %w", path, err)
	}
	return output.Source{Path: path, Document: doc, Duration: time.Since(start)}, nil
}

// createFormatter picks the output format: the flag, then the config file,
// then text on a terminal and json otherwise.
func createFormatter(cfg *config.Config, opts *ParseOptions, stdout io.Writer) (output.Formatter, error) {
	name := opts.Output
	if name == "" {
		name = cfg.Output.Format
	}
	if name == "" {
		name = "json"
		if isTerminal(stdout) {
			name = "text"
		}
	}

	return output.NewFormatter(name, output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
	})
}

// sendWebhooks posts every document to all configured webhooks whose
// trigger fires for it.
func sendWebhooks(ctx context.Context, cfg *config.Config, opts *ParseOptions, report *output.Report, logger *slog.Logger) {
	webhooks := collectWebhooks(cfg, opts)
	if len(webhooks) == 0 {
		return
	}

	client := webhook.NewClient()

	for _, wh := range webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		for _, src := range report.Sources {
			if src.Document == nil || !webhook.ShouldSend(wh.Trigger, src.Document) {
				continue
			}

			resp := client.SendDocument(ctx, src.Path, src.Document, webhook.SendOptions{
				URL:     wh.URL,
				Token:   wh.Token,
				Timeout: wh.Timeout,
			})

			if resp.Success() {
				logger.Info("webhook sent", "webhook", name, "source", src.Path,
					"status", resp.StatusCode, "duration", resp.Duration)
			} else {
				logger.Error("webhook failed", "webhook", name, "source", src.Path, "error", resp.Error)
			}
		}
	}
}

// collectWebhooks merges config file webhooks with the CLI webhook.
func collectWebhooks(cfg *config.Config, opts *ParseOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)
	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		if trigger == "" {
			trigger = config.WebhookTriggerOnIssues
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}
