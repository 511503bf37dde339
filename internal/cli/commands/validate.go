package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ccollicutt/gclog/pkg/config"
	"github.com/ccollicutt/gclog/pkg/output"
	"github.com/ccollicutt/gclog/pkg/parser"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(globals *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate parse documents or configuration files",
		Long: `Validate gclog inputs and outputs without parsing a log.

Subcommands:
  document  Check JSON or YAML parse output against the document schema
  config    Check a gclog configuration file
  schema    Print the document JSON Schema`,
	}

	cmd.AddCommand(newValidateDocumentCommand())
	cmd.AddCommand(newValidateConfigCommand(globals))
	cmd.AddCommand(newValidateSchemaCommand())

	return cmd
}

func newValidateDocumentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "document <file>",
		Short: "Validate parse output against the document schema",
		Long: `Validate the output of 'gclog parse -o json' or '-o yaml'.

The file may hold one document or a list of documents. Use "-" to read
standard input.

Example:
  gclog parse -o json gc.log | gclog validate document -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateDocument(cmd.InOrStdin(), cmd.OutOrStdout(), args[0])
		},
	}
}

func runValidateDocument(stdin io.Reader, w io.Writer, path string) error {
	var (
		data []byte
		err  error
	)
	if path == parser.StdinPath {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	docs, err := output.DecodeDocuments(data)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	invalid := 0
	for i, doc := range docs {
		name := fmt.Sprintf("document %d", i+1)
		if src, ok := doc["source"].(string); ok && src != "" {
			name = src
		}

		if err := output.Validate(doc); err != nil {
			invalid++
			fmt.Fprintf(w, "%s %s\n", red("✗"), name)
			var verr *output.ValidationError
			if errors.As(err, &verr) {
				for _, p := range verr.Problems {
					fmt.Fprintf(w, "    %s\n", p)
				}
			} else {
				fmt.Fprintf(w, "    %v\n", err)
			}
			continue
		}
		fmt.Fprintf(w, "%s %s\n", green("✓"), name)
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d documents invalid", invalid, len(docs))
	}
	fmt.Fprintf(w, "\n%d document(s) valid (schema version %s)\n", len(docs), output.SchemaVersion)
	return nil
}

func newValidateConfigCommand(globals *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config [config-file]",
		Short: "Validate a configuration file",
		Long: `Validate a gclog configuration file.

Checks:
  - YAML syntax
  - Parser limits are positive
  - Output format and skipped-line ratio
  - Logging level and format
  - Webhook URLs and triggers

Without an argument the file given by --config is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := globals.ConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errors.New("no config file given")
			}
			return runValidateConfig(cmd, path)
		},
	}
}

func runValidateConfig(cmd *cobra.Command, configPath string) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Validating %s...\n", configPath)

	cfg, err := config.Load(contextOf(cmd.Context()), configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(w, "\nConfiguration valid!\n")
	fmt.Fprintf(w, "  Lookahead lines:         %d\n", cfg.Parser.LookaheadLines)
	fmt.Fprintf(w, "  Max pending evaluations: %d\n", cfg.Parser.MaxPendingEvaluations)
	fmt.Fprintf(w, "  Max line bytes:          %d\n", cfg.Parser.MaxLineBytes)
	fmt.Fprintf(w, "  Diagnostics limit:       %d\n", cfg.Parser.DiagnosticsLimit)

	format := cfg.Output.Format
	if format == "" {
		format = "auto"
	}
	fmt.Fprintf(w, "  Output format:           %s\n", format)
	fmt.Fprintf(w, "  Skipped warn ratio:      %.2f\n", cfg.Output.SkippedWarnRatio)
	fmt.Fprintf(w, "  Logging:                 %s (%s)\n", cfg.Logging.Level, cfg.Logging.Format)

	if len(cfg.Webhooks) > 0 {
		fmt.Fprintf(w, "\nWebhooks:\n")
		for i, wh := range cfg.Webhooks {
			name := wh.Name
			if name == "" {
				name = wh.URL
			}
			fmt.Fprintf(w, "  %d. %s [%s]\n", i+1, name, wh.Trigger)
		}
	}

	return nil
}

func newValidateSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the document JSON Schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write(output.DocumentSchema())
			return err
		},
	}
}
