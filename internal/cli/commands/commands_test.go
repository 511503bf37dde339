package commands

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccollicutt/gclog/pkg/config"
)

// sampleLog has eleven non-blank lines: one young pause, an uncommit-only
// sizing sequence, and two lines that are skipped.
const sampleLog = `[0.004s][info][gc,init] Heap Region Size: 1M
[0.155s][info][gc,start    ] GC(0) Pause Young (Normal) (G1 Evacuation Pause)
[0.156s][info][gc,heap     ] GC(0) Eden regions: 12->0(10)
[0.156s][info][gc,heap     ] GC(0) Survivor regions: 0->2(2)
[0.156s][info][gc,heap     ] GC(0) Old regions: 3->3
[0.160s][info][gc          ] GC(0) Pause Young (Normal) (G1 Evacuation Pause) 24M->4M(256M) 5.123ms
[1.000s][info][gc,init] Heap sizing initialized (mode: uncommit-only)
[60.001s][info][gc,heap] Time-based evaluation: shrink by 16MB
[60.005s][info][gc,heap] Time-based shrink: uncommitted 16 oldest regions (16MB), heap size now 240MB
[61.000s][info][gc,heap] Time-based shrink: deactivated some regions
not a gc line at all
`

const modernLog = `[2025-07-01T10:00:00.000+0000][4242][4243][info][gc,init] Heap Region Size: 1M
[2025-07-01T10:05:00.000+0000][4242][4250][info][gc,heap] Uncommit evaluation: found 20 inactive regions, uncommitting 16 regions (16MB)
[2025-07-01T10:05:00.010+0000][4242][4250][info][gc,heap] Heap shrink details: uncommitted 16 regions (16MB), heap size now 240MB
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeGzip(t *testing.T, dir, name, content string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return writeFile(t, dir, name, buf.String())
}

// execute runs cmd with args and returns what it wrote to stdout and stderr.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	ExitCode = ExitOK
	t.Cleanup(func() { ExitCode = ExitOK })

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCommandConstructors(t *testing.T) {
	g := &GlobalOptions{}

	parse := NewParseCommand(g)
	assert.Equal(t, "parse <log>...", parse.Use)
	for _, flag := range []string{"output", "verbose", "quiet", "jobs", "metrics-file", "webhook-url", "webhook-token", "webhook-trigger"} {
		assert.NotNil(t, parse.Flags().Lookup(flag), "missing flag %s", flag)
	}

	detect := NewDetectCommand(g)
	assert.Equal(t, "detect <log-file>", detect.Use)
	assert.NotNil(t, detect.Flags().Lookup("lookahead"))

	diagnose := NewDiagnoseCommand(g)
	assert.Equal(t, "diagnose <log-file>", diagnose.Use)
	assert.NotNil(t, diagnose.Flags().Lookup("verbose"))

	validate := NewValidateCommand(g)
	names := []string{}
	for _, c := range validate.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"document", "config", "schema"}, names)
}

func TestVersionCommand(t *testing.T) {
	old := Version
	Version = "1.2.3"
	t.Cleanup(func() { Version = old })

	out, _, err := execute(t, NewVersionCommand())
	require.NoError(t, err)
	assert.Equal(t, "gclog 1.2.3 (schema 1)\n", out)
}

func TestGlobalOptions_Load(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "gclog.yaml", "logging:\n  level: warn\n  format: json\n")

	sess, err := (&GlobalOptions{ConfigPath: path}).load(t.Context(), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "warn", sess.cfg.Logging.Level)
	assert.Equal(t, 200, sess.cfg.Parser.LookaheadLines)

	sess, err = (&GlobalOptions{ConfigPath: path, LogLevel: "debug"}).load(t.Context(), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "debug", sess.cfg.Logging.Level)

	_, err = (&GlobalOptions{LogLevel: "loud"}).load(t.Context(), &bytes.Buffer{})
	assert.ErrorContains(t, err, "--log-level")

	_, err = (&GlobalOptions{ConfigPath: filepath.Join(dir, "missing.yaml")}).load(t.Context(), &bytes.Buffer{})
	assert.ErrorContains(t, err, "loading config")
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	logger.Debug("hidden")
	logger.Info("shown", "k", 1)

	assert.NotContains(t, buf.String(), "hidden")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestIsTerminal_Buffer(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))
}

func TestValidateDocument_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.log", sampleLog)
	b := writeFile(t, dir, "b.log", modernLog)

	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			out, _, err := execute(t, NewParseCommand(&GlobalOptions{}), "-o", format, a, b)
			require.NoError(t, err)
			docPath := writeFile(t, dir, "out."+format, out)

			report, _, err := execute(t, NewValidateCommand(&GlobalOptions{}), "document", docPath)
			require.NoError(t, err)
			assert.Contains(t, report, a)
			assert.Contains(t, report, b)
			assert.Contains(t, report, "2 document(s) valid")
		})
	}
}

func TestValidateDocument_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.json", `{"schema_version":"1","detected_format":"CSV"}`)

	out, _, err := execute(t, NewValidateCommand(&GlobalOptions{}), "document", path)
	assert.ErrorContains(t, err, "1 of 1 documents invalid")
	assert.Contains(t, out, "document 1")
	assert.Contains(t, out, "detected_format")
}

func TestValidateDocument_NotADocument(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scalar.json", `42`)

	_, _, err := execute(t, NewValidateCommand(&GlobalOptions{}), "document", path)
	assert.ErrorContains(t, err, "decoding document")
}

func TestValidateConfig(t *testing.T) {
	dir := t.TempDir()
	valid := writeFile(t, dir, "gclog.yaml", `parser:
  lookahead_lines: 50
output:
  format: yaml
webhooks:
  - name: ops
    url: https://hooks.example.com/gc
    trigger: always
`)

	out, _, err := execute(t, NewValidateCommand(&GlobalOptions{}), "config", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid!")
	assert.Contains(t, out, "Lookahead lines:         50")
	assert.Contains(t, out, "1. ops [always]")

	// Falls back to --config
	out, _, err = execute(t, NewValidateCommand(&GlobalOptions{ConfigPath: valid}), "config")
	require.NoError(t, err)
	assert.Contains(t, out, "Validating "+valid)

	invalid := writeFile(t, dir, "bad.yaml", "parser:\n  lookahead_lines: -1\n")
	_, _, err = execute(t, NewValidateCommand(&GlobalOptions{}), "config", invalid)
	assert.ErrorContains(t, err, "validation failed")

	_, _, err = execute(t, NewValidateCommand(&GlobalOptions{}), "config")
	assert.ErrorContains(t, err, "no config file given")
}

func TestValidateSchema(t *testing.T) {
	out, _, err := execute(t, NewValidateCommand(&GlobalOptions{}), "schema")
	require.NoError(t, err)
	assert.Contains(t, out, `"$schema"`)
	assert.Contains(t, out, "region_transitions")
}
