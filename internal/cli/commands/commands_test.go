package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffkemp/diffpat/internal/errors"
)

var fixtureConfig = filepath.Join("..", "..", "pattern", "testdata", "patterns.yaml")

// Helper function to run the root command with args
func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--no-color", "--log-level", "fatal"}, args...))

	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// Helper function to write a configuration with one broken and one valid file
func writeMixedConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"ok.ll": `define void @diffkemp.old.ok() {
  ret void
}

define void @diffkemp.new.ok() {
  ret void
}
`,
		"half.ll": `define void @diffkemp.old.half() {
  ret void
}
`,
		"diffpat.yaml": "pattern_files: [ok.ll, half.ll]\n" + extra,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return filepath.Join(dir, "diffpat.yaml")
}

func TestVersionCommand(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "diffpat version: dev")
	assert.Contains(t, out, "Go version: ")
}

func TestValidateCommand(t *testing.T) {
	out, _, err := run(t, "validate", "-c", fixtureConfig)
	require.NoError(t, err)
	assert.Equal(t, "✓ 3 patterns loaded from 3 files\n", out)
}

func TestValidateCommandFailures(t *testing.T) {
	path := writeMixedConfig(t, "")

	out, _, err := run(t, "validate", "-c", path)
	require.NoError(t, err, "failures are tolerated while some patterns load")
	assert.Contains(t, out, "✗ PAT002: ")
	assert.Contains(t, out, "(pattern half)")
	assert.Contains(t, out, "1 patterns loaded from 1 files, 1 failures")

	_, _, err = run(t, "validate", "-c", path, "--strict")
	assert.EqualError(t, err, "1 pattern load failures")
}

func TestValidateCommandMissingConfig(t *testing.T) {
	_, _, err := run(t, "validate", "-c", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrConfigMissing, errors.CodeOf(err))
}

func TestListCommand(t *testing.T) {
	out, _, err := run(t, "list", "-c", fixtureConfig)
	require.NoError(t, err)

	assert.Contains(t, out, "PATTERN")
	assert.Contains(t, out, "bounds_check.ll")
	assert.Contains(t, out, "icmp (line 20)")
	assert.Contains(t, out, "getelementptr (line 6)")
	assert.Contains(t, out, "swap_args")
}

func TestListCommandEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diffpat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pattern_files: []\n"), 0o644))

	out, _, err := run(t, "list", "-c", path)
	require.NoError(t, err)
	assert.Equal(t, "No patterns loaded.\n", out)
}

func TestShowCommand(t *testing.T) {
	out, _, err := run(t, "show", "swap_args", "-c", fixtureConfig)
	require.NoError(t, err)

	assert.Contains(t, out, "Pattern swap_args\n")
	assert.Contains(t, out, "@diffkemp.old.swap_args i32 (i32, i32)")
	assert.Contains(t, out, "on_parse_failure=error")
	assert.Contains(t, out, "HALF")
	assert.Contains(t, out, "basic-block-limit-end")
}

func TestShowCommandUnknownPattern(t *testing.T) {
	_, stderr, err := run(t, "show", "swap_arg", "-c", fixtureConfig)
	require.Error(t, err)
	assert.Contains(t, stderr, `no pattern named "swap_arg"`)
	assert.Contains(t, stderr, "Did you mean: swap_args?")
}

func TestDecodeCommand(t *testing.T) {
	out, _, err := run(t, "decode", `!{!"basic-block-limit", i32 3, !{!"first-difference"}}`)
	require.NoError(t, err)

	assert.Contains(t, out, "basic-block-limit=3 first-difference")
	assert.Regexp(t, `basic-block-limit-end:\s+false`, out)
	assert.Regexp(t, `first-difference:\s+true`, out)
}

func TestDecodeCommandFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.ll")
	require.NoError(t, os.WriteFile(path, []byte("!0\n!0 = !{!\"basic-block-limit-end\"}\n"), 0o644))

	out, _, err := run(t, "decode", "--file", path)
	require.NoError(t, err)
	assert.Regexp(t, `basic-block-limit:\s+none`, out)
	assert.Regexp(t, `basic-block-limit-end:\s+true`, out)
}

func TestDecodeCommandErrors(t *testing.T) {
	_, _, err := run(t, "decode", `!{!"max-skip"}`)
	require.Error(t, err)
	assert.Equal(t, errors.ErrMetadataMalformed, errors.CodeOf(err))

	_, _, err = run(t, "decode", "   ")
	assert.EqualError(t, err, "empty metadata node")

	_, _, err = run(t, "decode")
	assert.Error(t, err)

	_, _, err = run(t, "decode", "--file", filepath.Join(t.TempDir(), "missing.ll"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRelativePath(t *testing.T) {
	assert.Equal(t, "a.ll", relativePath("/patterns", "/patterns/a.ll"))
	assert.Equal(t, filepath.Join("..", "b.ll"), relativePath("/patterns", "/b.ll"))
	assert.Equal(t, "/b.ll", relativePath("patterns", "/b.ll"))
}

func TestShowCommandDiff(t *testing.T) {
	out, _, err := run(t, "show", "swap_args", "--diff", "-c", fixtureConfig)
	require.NoError(t, err)

	assert.Contains(t, out, "Differences from start positions\n")
	assert.Contains(t, out, "@@ 1 @@\n"+
		"- %r = call i32 @compute(i32 %a, i32 %b)\n"+
		"+ %r = call i32 @compute(i32 %b, i32 %a)\n")
	assert.NotContains(t, out, "@@ 2 @@")
	assert.Contains(t, out, "1 instructions changed, 0 added, 0 removed")
}
