// Package cli provides the command-line interface for gclog.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/gclog/internal/cli/commands"
	"github.com/ccollicutt/gclog/internal/cli/plugins"
	"github.com/ccollicutt/gclog/pkg/config"
)

// Execute runs the root command and returns the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return Run(ctx, os.Args[1:], plugins.StdStreams())
}

// Run executes gclog with args (without the program name) and returns the
// exit code.
func Run(ctx context.Context, args []string, streams plugins.Streams) int {
	commands.ExitCode = commands.ExitOK

	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetIn(streams.In)
	rootCmd.SetOut(streams.Out)
	rootCmd.SetErr(streams.Err)

	// Check if the first argument might be a plugin command
	potentialCommand := pluginCandidate(rootCmd, args)
	if potentialCommand != "" {
		if pluginPath, err := plugins.FindPlugin(potentialCommand); err == nil {
			return plugins.Execute(ctx, pluginPath, args[1:], streams)
		}
	}

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if potentialCommand != "" {
			_, _ = fmt.Fprintln(streams.Err, plugins.FormatNotFoundError(potentialCommand))
			return commands.ExitError
		}
		// SilenceErrors prevents Cobra from printing this
		_, _ = fmt.Fprintf(streams.Err, "Error: %v\n", err)
		return commands.ExitError
	}
	return commands.ExitCode
}

// pluginCandidate returns the first argument when it names neither a flag
// nor a built-in command.
func pluginCandidate(rootCmd *cobra.Command, args []string) string {
	if len(args) == 0 {
		return ""
	}
	name := args[0]
	if name == "" || name[0] == '-' || isBuiltinCommand(rootCmd, name) {
		return ""
	}
	return name
}

// isBuiltinCommand checks if a command name is a built-in cobra command.
func isBuiltinCommand(rootCmd *cobra.Command, name string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name || cmd.HasAlias(name) {
			return true
		}
	}
	// Also check for special commands like help and completion
	return name == "help" || name == "completion" || name == cobra.ShellCompRequestCmd
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	globals := &commands.GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "gclog",
		Short: "Parse G1 garbage collector logs",
		Long: `gclog parses G1 garbage-collector logs written by JVM unified logging
(-Xlog) into structured documents.

It extracts:
  - Heap region transitions per GC pause (Eden, Survivor, Old, Humongous, Archive)
  - Time-based heap sizing: evaluations, uncommits, and expansions, with
    evaluations linked to the uncommits they caused

Lines that cannot be parsed are skipped and counted by category; use
'gclog diagnose' to see why.

PLUGINS:
  gclog supports plugins for extended functionality. Plugins are standalone
  binaries named gclog-<command> that are automatically discovered and invoked.

  Plugin locations (searched in order):
    1. Same directory as the gclog binary
    2. Directories listed in GCLOG_PLUGIN_PATH
    3. ~/.gclog/plugins/
    4. Anywhere in PATH`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&globals.ConfigPath, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&globals.LogLevel, "log-level", "",
		fmt.Sprintf("Diagnostic log level (debug|info|warn|error); overrides %s", config.EnvLogLevel))

	rootCmd.AddCommand(commands.NewParseCommand(globals))
	rootCmd.AddCommand(commands.NewDetectCommand(globals))
	rootCmd.AddCommand(commands.NewDiagnoseCommand(globals))
	rootCmd.AddCommand(commands.NewValidateCommand(globals))
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
