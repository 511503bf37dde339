package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ccollicutt/gclog/pkg/config"
	"github.com/ccollicutt/gclog/pkg/detector"
	"github.com/ccollicutt/gclog/pkg/events"
	"github.com/ccollicutt/gclog/pkg/output"
	"github.com/ccollicutt/gclog/pkg/parser"
)

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	Verbose bool
}

// Diagnostic statuses.
const (
	StatusOK      = "ok"
	StatusWarning = "warning"
	StatusError   = "error"
)

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string // "ok", "warning", "error"
	Message  string
	Details  []string
	Suggests []string
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand(globals *GlobalOptions) *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose <log-file>",
		Short: "Explain why lines of a GC log were skipped",
		Long: `Diagnose a GC log and the configuration used to parse it.

This command checks:
- Log file existence and readability
- Config file syntax and webhook settings (when --config is given)
- Detected line grammar
- Parse statistics: skipped lines by category, malformed events,
  region size availability
- A sample of skipped lines with the reason each was skipped

Example:
  gclog diagnose gc.log
  gclog diagnose -v --config gclog.yaml gc.log.3.gz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(contextOf(cmd.Context()), cmd.OutOrStdout(), args[0], globals, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")

	return cmd
}

func runDiagnose(ctx context.Context, w io.Writer, logFile string, globals *GlobalOptions, opts *DiagnoseOptions) error {
	results := []DiagnosticResult{}

	result := checkLogFile(logFile)
	results = append(results, result)
	if result.Status == StatusError {
		printDiagnostics(w, results, opts)
		return nil
	}

	result = checkConfig(ctx, globals)
	results = append(results, result)
	if result.Status == StatusError {
		printDiagnostics(w, results, opts)
		return nil
	}

	sess, err := globals.load(ctx, io.Discard)
	if err != nil {
		return err
	}
	results = append(results, checkWebhooks(sess.cfg, opts)...)

	r, err := parser.Open(logFile)
	if err != nil {
		results = append(results, DiagnosticResult{
			Check:   "Parse",
			Status:  StatusError,
			Message: fmt.Sprintf("Cannot open log: %v", err),
		})
		printDiagnostics(w, results, opts)
		return nil
	}
	defer r.Close()

	doc, err := sess.newAnalyzer(nil).Parse(ctx, r)
	if err != nil {
		results = append(results, DiagnosticResult{
			Check:    "Parse",
			Status:   StatusError,
			Message:  fmt.Sprintf("Read failed: %v", err),
			Suggests: []string{"Check that compressed logs are complete (.gz/.lz4)"},
		})
		if doc == nil {
			printDiagnostics(w, results, opts)
			return nil
		}
	}
	results = append(results, checkFormat(doc))
	results = append(results, checkParse(doc, sess.cfg.Output.SkippedWarnRatio)...)

	printDiagnostics(w, results, opts)

	if len(doc.Metadata.Diagnostics) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Skipped line sample (%d of %d):\n", len(doc.Metadata.Diagnostics), doc.Metadata.SkippedLines)
		output.FormatDiagnostics(doc.Metadata.Diagnostics, w)
	}
	return nil
}

func checkLogFile(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Log File",
	}

	if path == parser.StdinPath {
		result.Status = StatusOK
		result.Message = "Reading standard input"
		return result
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Log file not found: %s", path)
		result.Suggests = []string{
			"Check the file path is correct",
			"Enable GC logging with -Xlog:gc*:file=gc.log",
		}
		return result
	}
	if err != nil {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Cannot access log file: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return result
	}
	if info.IsDir() {
		result.Status = StatusError
		result.Message = "Path is a directory, not a file"
		result.Suggests = []string{"Pass a glob such as 'logs/gc.log*' to the parse command"}
		return result
	}
	if info.Size() == 0 {
		result.Status = StatusWarning
		result.Message = "Log file is empty (0 bytes)"
		return result
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("Found: %s (%s)", path, humanize.IBytes(uint64(info.Size())))
	return result
}

func checkConfig(ctx context.Context, globals *GlobalOptions) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Config",
	}

	cfg, err := config.Load(ctx, globals.ConfigPath)
	if err != nil {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Failed to load config: %v", err)
		if strings.Contains(err.Error(), "yaml") {
			result.Suggests = []string{
				"Check YAML syntax - ensure proper indentation (use spaces, not tabs)",
			}
		}
		return result
	}

	result.Status = StatusOK
	if globals.ConfigPath == "" {
		result.Message = "No config file, using defaults"
	} else {
		result.Message = fmt.Sprintf("Loaded %s", globals.ConfigPath)
	}
	result.Details = []string{
		fmt.Sprintf("Lookahead: %d lines", cfg.Parser.LookaheadLines),
		fmt.Sprintf("Max pending evaluations: %d", cfg.Parser.MaxPendingEvaluations),
		fmt.Sprintf("Max line length: %s", humanize.IBytes(uint64(cfg.Parser.MaxLineBytes))),
		fmt.Sprintf("Webhooks: %d", len(cfg.Webhooks)),
	}
	return result
}

func checkFormat(doc *events.Document) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Format",
	}

	md := doc.Metadata
	if md.TotalLines == 0 {
		result.Status = StatusWarning
		result.Message = "No non-blank lines"
		return result
	}

	if md.Format == detector.FormatUnknown {
		result.Status = StatusError
		result.Message = "No unified-logging grammar recognized; every line was skipped"
		result.Suggests = []string{
			"gclog reads JVM unified logging output (JDK 9+), e.g. -Xlog:gc*,gc+heap=debug:file=gc.log",
			"Pre-JDK 9 -XX:+PrintGCDetails logs are not supported",
		}
		return result
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("Detected %s", md.Format)
	if !md.StartTime.IsZero() {
		result.Details = []string{fmt.Sprintf("Log start: %s", md.StartTime.UTC().Format(time.RFC3339))}
	}
	return result
}

func checkParse(doc *events.Document, warnRatio float64) []DiagnosticResult {
	md := doc.Metadata
	results := []DiagnosticResult{}

	lines := DiagnosticResult{
		Check:  "Lines",
		Status: StatusOK,
		Message: fmt.Sprintf("%d lines: %d contributed, %d ignored, %d skipped",
			md.TotalLines, doc.ContributingLines(), md.IgnoredLines, md.SkippedLines),
	}
	if md.SkippedLines > 0 {
		ratio := float64(md.SkippedLines) / float64(md.TotalLines)
		lines.Status = StatusWarning
		if warnRatio > 0 && ratio > warnRatio {
			lines.Status = StatusError
			lines.Suggests = append(lines.Suggests,
				fmt.Sprintf("Skipped ratio %.1f%% exceeds skipped_warn_ratio %.1f%%; parse will exit 1", ratio*100, warnRatio*100))
		}
		for _, category := range []string{
			events.SkipOversize, events.SkipUnknownFormat, events.SkipGrammar, events.SkipTimestamp,
			events.SkipUnrecognized, events.SkipMalformed, events.SkipTruncated,
		} {
			if n := md.SkippedByCategory[category]; n > 0 {
				lines.Details = append(lines.Details, fmt.Sprintf("%s: %d", category, n))
			}
		}
		if md.SkippedByCategory[events.SkipTruncated] > 0 {
			lines.Suggests = append(lines.Suggests, "Truncated pause blocks usually mean the log was rotated mid-pause")
		}
		if md.SkippedByCategory[events.SkipOversize] > 0 {
			lines.Suggests = append(lines.Suggests, "Raise parser.max_line_bytes for very long lines")
		}
	}
	results = append(results, lines)

	evts := DiagnosticResult{
		Check:  "Events",
		Status: StatusOK,
		Message: fmt.Sprintf("%d region transitions, %d sizing entries, %d correlations",
			len(doc.RegionTransitions), len(doc.SizingEntries), md.Correlations),
	}
	if len(doc.RegionTransitions) == 0 && len(doc.SizingEntries) == 0 && md.Format != detector.FormatUnknown {
		evts.Status = StatusWarning
		evts.Suggests = []string{"Enable gc+heap=debug to log per-region pause details"}
	}
	if md.MalformedEvents > 0 {
		evts.Status = StatusWarning
		evts.Details = append(evts.Details, fmt.Sprintf("Malformed events dropped: %d", md.MalformedEvents))
	}
	if md.HasSizingData {
		mode := "mixed sizing"
		if md.IsUncommitOnly {
			mode = "uncommit-only"
		}
		evts.Details = append(evts.Details, fmt.Sprintf("Time-based sizing: %s", mode))
	}
	results = append(results, evts)

	region := DiagnosticResult{Check: "Region Size"}
	switch {
	case md.RegionSizeBytes > 0:
		region.Status = StatusOK
		region.Message = humanize.IBytes(uint64(md.RegionSizeBytes))
	case len(doc.RegionTransitions) > 0:
		region.Status = StatusWarning
		region.Message = "Unknown; per-region byte values are zero"
		region.Suggests = []string{"Include gc+init logging so the 'Heap Region Size' line is written"}
	default:
		region.Status = StatusOK
		region.Message = "Not logged"
	}
	results = append(results, region)

	return results
}

func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) {
	fmt.Fprintln(w, "=== gclog Diagnostics ===")
	fmt.Fprintln(w)

	okCount := 0
	warnCount := 0
	errCount := 0

	for _, r := range results {
		var label *color.Color
		var icon string
		switch r.Status {
		case StatusOK:
			icon, label = "PASS", color.New(color.FgGreen)
			okCount++
		case StatusWarning:
			icon, label = "WARN", color.New(color.FgYellow)
			warnCount++
		case StatusError:
			icon, label = "FAIL", color.New(color.FgRed)
			errCount++
		}

		fmt.Fprintf(w, "[%s] %s\n", label.Sprint(icon), r.Check)
		fmt.Fprintf(w, "    %s\n", r.Message)

		if opts.Verbose || r.Status != StatusOK {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}

		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)
}

func checkWebhooks(cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  StatusOK,
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	for _, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		result := DiagnosticResult{
			Check:  fmt.Sprintf("Webhook: %s", name),
			Status: StatusOK,
		}

		if wh.Token == "" && strings.Contains(wh.URL, "https://") {
			result.Details = append(result.Details, "No token configured")
		}
		if _, err := url.Parse(wh.URL); err != nil {
			result.Status = StatusError
			result.Message = fmt.Sprintf("Invalid URL: %v", err)
			results = append(results, result)
			continue
		}

		result.Message = fmt.Sprintf("Trigger: %s", wh.Trigger)
		if opts.Verbose {
			result.Details = append(result.Details,
				fmt.Sprintf("URL: %s", wh.URL),
				fmt.Sprintf("Timeout: %s", wh.Timeout))
		}
		results = append(results, result)

		if opts.Verbose {
			conn := checkWebhookConnectivity(wh)
			conn.Check = fmt.Sprintf("Webhook Connectivity: %s", name)
			results = append(results, conn)
		}
	}

	return results
}

func checkWebhookConnectivity(wh config.WebhookConfig) DiagnosticResult {
	result := DiagnosticResult{}

	// A HEAD request only checks that the endpoint is reachable
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(http.MethodHead, wh.URL, nil)
	if err != nil {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Cannot create request: %v", err)
		return result
	}

	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Cannot connect: %v", err)
		result.Suggests = []string{
			"Check if the webhook URL is correct",
			"Verify network connectivity",
		}
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Status = StatusOK
		result.Message = fmt.Sprintf("Reachable (status %d)", resp.StatusCode)
	} else {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Reachable but returned status %d", resp.StatusCode)
		result.Suggests = []string{
			"The endpoint may only accept POST (documents are sent with POST)",
			"Check authentication if using a token",
		}
	}

	return result
}
