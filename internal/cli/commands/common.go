package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/ccollicutt/gclog/pkg/analyzer"
	"github.com/ccollicutt/gclog/pkg/config"
	"github.com/ccollicutt/gclog/pkg/metrics"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// Exit codes.
const (
	ExitOK      = 0
	ExitSkipped = 1 // skipped-line ratio above the configured threshold
	ExitError   = 2
)

// GlobalOptions holds the persistent flags shared by all commands.
type GlobalOptions struct {
	ConfigPath string
	LogLevel   string
}

// session is the loaded configuration and the logger built from it.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
}

// load reads the configuration named by the global flags and sets up
// logging on stderr.
func (g *GlobalOptions) load(ctx context.Context, stderr io.Writer) (*session, error) {
	cfg, err := config.Load(ctx, g.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if g.LogLevel != "" {
		cfg.Logging.Level = g.LogLevel
		if err := config.Validate(cfg); err != nil {
			return nil, fmt.Errorf("--log-level: %w", err)
		}
	}

	return &session{cfg: cfg, logger: newLogger(cfg.Logging, stderr)}, nil
}

// newLogger builds the diagnostic logger.
func newLogger(lc config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lc.SlogLevel()}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newAnalyzer creates an analyzer from the parser configuration.
func (s *session) newAnalyzer(rec *metrics.Recorder) *analyzer.Analyzer {
	p := s.cfg.Parser
	opts := []analyzer.Option{
		analyzer.WithLookahead(p.LookaheadLines),
		analyzer.WithMaxPending(p.MaxPendingEvaluations),
		analyzer.WithMaxLineBytes(p.MaxLineBytes),
		analyzer.WithDiagnosticsLimit(p.DiagnosticsLimit),
		analyzer.WithLogger(s.logger),
	}
	if rec != nil {
		opts = append(opts, analyzer.WithMetrics(rec))
	}
	return analyzer.New(opts...)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func contextOf(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
