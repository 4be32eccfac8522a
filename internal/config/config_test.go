package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffkemp/diffpat/internal/errors"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "patterns.yaml", `
on_parse_failure: Warn
pattern_files:
  - patterns/a.ll
  - /abs/b.ll
  - patterns/a.ll
settings:
  strict_signatures: "true"
overrides:
  - file: patterns/a.ll
    on_parse_failure: ignore
    settings:
      strict_signatures: "false"
`)
	dir := filepath.Dir(path)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, PolicyWarn, cfg.OnParseFailure)
	assert.Equal(t, []string{filepath.Join(dir, "patterns/a.ll"), "/abs/b.ll"}, cfg.PatternFiles)

	assert.True(t, cfg.Settings.Bool(KeyStrictSignatures, false))
	assert.Equal(t, PolicyWarn, cfg.Settings.Policy())

	a := cfg.SettingsFor(filepath.Join(dir, "patterns/a.ll"))
	assert.Equal(t, PolicyIgnore, a.Policy())
	assert.False(t, a.Bool(KeyStrictSignatures, true))

	b := cfg.SettingsFor("/abs/b.ll")
	assert.Equal(t, PolicyWarn, b.Policy())
	assert.True(t, b.Bool(KeyStrictSignatures, false))
}

func TestLoadDefaultsAndAlias(t *testing.T) {
	path := writeConfig(t, "patterns.yml", `
patterns:
  - one.ll
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, PolicyError, cfg.OnParseFailure)
	assert.Equal(t, []string{filepath.Join(filepath.Dir(path), "one.ll")}, cfg.PatternFiles)
	assert.Empty(t, cfg.Overrides)
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "patterns.json", `{
  "on_parse_failure": "ignore",
  "pattern_files": ["x.ll"]
}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, PolicyIgnore, cfg.OnParseFailure)
	assert.Len(t, cfg.PatternFiles, 1)
}

func TestLoadUnknownExtensionAsYAML(t *testing.T) {
	path := writeConfig(t, "diffkemp.patterns", "on_parse_failure: warn\npattern_files: [p.ll]\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, PolicyWarn, cfg.OnParseFailure)
}

func TestLoadHCL(t *testing.T) {
	path := writeConfig(t, "patterns.hcl", `
on_parse_failure = "warn"
pattern_files    = ["a.ll", "b.ll"]

settings = {
  strict_signatures = "true"
}

override "b.ll" {
  on_parse_failure = "error"
}
`)
	dir := filepath.Dir(path)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, PolicyWarn, cfg.OnParseFailure)
	assert.Equal(t, []string{filepath.Join(dir, "a.ll"), filepath.Join(dir, "b.ll")}, cfg.PatternFiles)
	assert.True(t, cfg.Settings.Bool(KeyStrictSignatures, false))
	assert.Equal(t, PolicyError, cfg.SettingsFor(filepath.Join(dir, "b.ll")).Policy())
	assert.Equal(t, PolicyWarn, cfg.SettingsFor(filepath.Join(dir, "a.ll")).Policy())
}

func TestLoadHCLDefaultPolicy(t *testing.T) {
	path := writeConfig(t, "patterns.hcl", `pattern_files = ["a.ll"]`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, PolicyError, cfg.OnParseFailure)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		code    errors.Code
	}{
		{"invalid policy", "c.yaml", "on_parse_failure: sometimes\n", errors.ErrConfigInvalid},
		{"invalid override policy", "c.yaml", "overrides:\n  - file: a.ll\n    on_parse_failure: loud\n", errors.ErrConfigInvalid},
		{"override without file", "c.yaml", "overrides:\n  - on_parse_failure: warn\n", errors.ErrConfigInvalid},
		{"empty pattern entry", "c.yaml", "pattern_files: [\"\"]\n", errors.ErrConfigInvalid},
		{"malformed yaml", "c.yaml", "pattern_files: [a.ll\n", errors.ErrConfigUnreadable},
		{"malformed hcl", "c.hcl", "pattern_files = [\n", errors.ErrConfigUnreadable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.content)

			cfg, err := Load(path)
			require.Error(t, err)
			assert.Nil(t, cfg)

			var cfgErr *errors.ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %T", err)
			assert.Equal(t, tt.code, cfgErr.Code)
			assert.Equal(t, path, cfgErr.Path)
			assert.Equal(t, errors.Fatal, errors.SeverityOf(err))
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, errors.ErrConfigMissing, errors.CodeOf(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	path := writeConfig(t, "patterns.yaml", "on_parse_failure: error\n")
	t.Setenv(EnvPrefix+"_ON_PARSE_FAILURE", "ignore")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, PolicyIgnore, cfg.OnParseFailure)
}

func TestLoadExpandsDirectories(t *testing.T) {
	path := writeConfig(t, "patterns.yaml", "pattern_files: [extra.ll, lib, extra.ll]\n")
	dir := filepath.Dir(path)

	lib := filepath.Join(dir, "lib")
	require.NoError(t, os.MkdirAll(filepath.Join(lib, "nested"), 0o755))
	for _, name := range []string{"b.ll", "a.ll", "notes.txt", filepath.Join("nested", "c.ll")} {
		require.NoError(t, os.WriteFile(filepath.Join(lib, name), nil, 0o644))
	}

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "extra.ll"),
		filepath.Join(lib, "a.ll"),
		filepath.Join(lib, "b.ll"),
		filepath.Join(lib, "nested", "c.ll"),
	}, cfg.PatternFiles)
}

func TestFindPatternFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p.ll"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p.bc"), nil, 0o644))

	files, err := FindPatternFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "p.ll")}, files)

	_, err = FindPatternFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
