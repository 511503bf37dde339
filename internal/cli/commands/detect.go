package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/gclog/pkg/detector"
	"github.com/ccollicutt/gclog/pkg/parser"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	Output    string
	Lookahead int
}

// NewDetectCommand creates the detect command.
func NewDetectCommand(globals *GlobalOptions) *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <log-file>",
		Short: "Detect the unified-logging grammar of a GC log",
		Long: `Inspect the head of a GC log and report which unified-logging line grammar
it uses.

Supported grammars:
  - TRADITIONAL: [0.155s][info][gc,heap] ...
  - MODERN:      [2025-07-01T10:00:00.000+0000][pid][tid][info][gc,heap] ...

The first non-blank line matched by exactly one grammar decides the format.

Example:
  gclog detect gc.log
  gclog detect --lookahead 500 gc.log.1.gz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, globals, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.Lookahead, "lookahead", "n", 0, "Number of non-blank lines to inspect (default from config)")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string, globals *GlobalOptions, opts *DetectOptions) error {
	logFile := args[0]
	ctx := contextOf(cmd.Context())

	sess, err := globals.load(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	lookahead := opts.Lookahead
	if lookahead <= 0 {
		lookahead = sess.cfg.Parser.LookaheadLines
	}

	r, err := parser.Open(logFile)
	if err != nil {
		return err
	}
	defer r.Close()

	result, err := detector.New(detector.WithLookahead(lookahead)).DetectFromReader(ctx, r)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	switch opts.Output {
	case "json":
		return outputDetectJSON(cmd.OutOrStdout(), result, logFile)
	case "text", "":
		outputDetectText(cmd.OutOrStdout(), result, logFile)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (use text or json)", opts.Output)
	}
}

func outputDetectText(w io.Writer, result *detector.DetectionResult, logFile string) {
	fmt.Fprintln(w, "=== GC Log Format Detection ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File: %s\n", logFile)
	fmt.Fprintf(w, "Lines sampled: %d\n", result.SampledLines)
	fmt.Fprintln(w)

	if !result.HasMatch() {
		fmt.Fprintln(w, "No GC log format detected.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Tip: gclog reads JVM unified logging output, e.g. -Xlog:gc*:file=gc.log")
		fmt.Fprintln(w, "Every line is skipped when the format is unknown.")
		return
	}

	fmt.Fprintf(w, "Detected Format: %s (%s)\n", result.Format, result.Grammar.Name)
	fmt.Fprintf(w, "Decided by line %d of the sample:\n  %s\n", result.MatchLine, result.SampleLine)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Grammar: %s\n", result.Grammar.PatternStr)
}

// DetectJSON is the JSON output of the detect command.
type DetectJSON struct {
	File         string `json:"file"`
	Format       string `json:"format"`
	Grammar      string `json:"grammar,omitempty"`
	Pattern      string `json:"pattern,omitempty"`
	SampledLines int    `json:"sampled_lines"`
	MatchLine    int    `json:"match_line,omitempty"`
	SampleLine   string `json:"sample_line,omitempty"`
}

func outputDetectJSON(w io.Writer, result *detector.DetectionResult, logFile string) error {
	out := DetectJSON{
		File:         logFile,
		Format:       string(result.Format),
		SampledLines: result.SampledLines,
		MatchLine:    result.MatchLine,
		SampleLine:   result.SampleLine,
	}
	if result.Grammar != nil {
		out.Grammar = result.Grammar.Name
		out.Pattern = result.Grammar.PatternStr
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
