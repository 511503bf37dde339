// Package plugins provides exec-based plugin support for gclog.
// Plugins are separate binaries named gclog-<command> that are discovered
// and executed when an unknown command is invoked.
//
// This follows the same pattern used by kubectl and git for plugins.
package plugins

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Prefix is prepended to a command name to form the plugin binary name.
const Prefix = "gclog-"

// EnvPluginPath lists extra plugin directories, separated like PATH.
const EnvPluginPath = "GCLOG_PLUGIN_PATH"

// KnownPlugins lists plugins that have official implementations available.
// These get special error messages directing users where to obtain them.
var KnownPlugins = map[string]string{
	"plot":  "Renders heap occupancy and uncommit timelines from 'gclog parse -o json' output.",
	"watch": "Follows a live GC log and re-parses on rotation.",
}

// ErrPluginNotFound is returned when no plugin binary can be located.
var ErrPluginNotFound = errors.New("plugin not found")

// Finder locates plugin binaries. Empty fields are skipped.
type Finder struct {
	ExecDir   string   // directory of the gclog binary
	HomeDir   string   // plugins are looked up in HomeDir/.gclog/plugins
	ExtraDirs []string // from GCLOG_PLUGIN_PATH
	UsePath   bool
}

// DefaultFinder returns a Finder for the running process.
func DefaultFinder() *Finder {
	f := &Finder{UsePath: true}
	if execPath, err := os.Executable(); err == nil {
		f.ExecDir = filepath.Dir(execPath)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		f.HomeDir = homeDir
	}
	if extra := os.Getenv(EnvPluginPath); extra != "" {
		f.ExtraDirs = filepath.SplitList(extra)
	}
	return f
}

// FindPlugin searches for gclog-<command> with the default finder.
func FindPlugin(command string) (string, error) {
	return DefaultFinder().Find(command)
}

// Find searches for a plugin binary named gclog-<command> in order:
//  1. Same directory as the gclog binary
//  2. Directories from GCLOG_PLUGIN_PATH
//  3. ~/.gclog/plugins/
//  4. Anywhere in PATH
//
// Returns the full path to the plugin binary if found.
func (f *Finder) Find(command string) (string, error) {
	if command == "" || strings.ContainsAny(command, `/\`) {
		return "", ErrPluginNotFound
	}
	pluginName := Prefix + command

	for _, dir := range f.dirs() {
		candidate := filepath.Join(dir, pluginName)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	if f.UsePath {
		if path, err := exec.LookPath(pluginName); err == nil {
			return path, nil
		}
	}

	return "", ErrPluginNotFound
}

func (f *Finder) dirs() []string {
	var dirs []string
	if f.ExecDir != "" {
		dirs = append(dirs, f.ExecDir)
	}
	for _, d := range f.ExtraDirs {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	if f.HomeDir != "" {
		dirs = append(dirs, filepath.Join(f.HomeDir, ".gclog", "plugins"))
	}
	return dirs
}

// Streams are the standard streams handed to a plugin process.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the process standard streams.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// Execute runs a plugin with the given arguments and returns the plugin's
// exit code. The plugin is killed if ctx is cancelled.
func Execute(ctx context.Context, pluginPath string, args []string, streams Streams) int {
	cmd := exec.CommandContext(ctx, pluginPath, args...)
	cmd.Stdin = streams.In
	cmd.Stdout = streams.Out
	cmd.Stderr = streams.Err

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(streams.Err, "Error executing plugin: %v\n", err)
		return 2
	}

	return 0
}

// FormatNotFoundError returns a helpful error message when a plugin is not found.
// If the command is a known plugin, includes information about what it does.
func FormatNotFoundError(command string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "unknown command %q for \"gclog\"\n", command)

	if info, ok := KnownPlugins[command]; ok {
		fmt.Fprintf(&sb, "\n%q is available as a plugin.\n", command)
		sb.WriteString(info)
		sb.WriteString("\n\nInstall the plugin binary as one of:\n")
	} else {
		sb.WriteString("\nIf this is a plugin, install the binary as one of:\n")
	}

	fmt.Fprintf(&sb, "  - %s%s in the same directory as gclog\n", Prefix, command)
	fmt.Fprintf(&sb, "  - a directory listed in %s\n", EnvPluginPath)
	fmt.Fprintf(&sb, "  - ~/.gclog/plugins/%s%s\n", Prefix, command)
	fmt.Fprintf(&sb, "  - %s%s anywhere in your PATH\n", Prefix, command)

	sb.WriteString("\nRun 'gclog --help' for usage.")

	return sb.String()
}

// isExecutable checks if a file exists and is executable.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode()&0111 != 0
}
