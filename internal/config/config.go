// Package config loads the difference-pattern configuration: which pattern
// files to load and the settings that govern how they are decoded.
//
// YAML, JSON and TOML files are read with viper; files ending in .hcl are
// decoded with hclsimple. Both share the same keys:
//
//	on_parse_failure: warn
//	pattern_files:
//	  - patterns/bounds-check.ll
//	settings:
//	  strict_signatures: "true"
//	overrides:
//	  - file: patterns/bounds-check.ll
//	    on_parse_failure: error
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/spf13/viper"

	"github.com/diffkemp/diffpat/internal/errors"
)

// EnvPrefix prefixes environment variables that override top-level keys,
// e.g. DIFFPAT_ON_PARSE_FAILURE.
const EnvPrefix = "DIFFPAT"

// PatternConfiguration is the parsed configuration file
type PatternConfiguration struct {
	// Path is the configuration file the values were read from.
	Path string
	// OnParseFailure is the global parse-failure policy.
	OnParseFailure ParseFailurePolicy
	// PatternFiles lists pattern files in load order, resolved against the
	// configuration file's directory.
	PatternFiles []string
	// Settings are the global settings, including on_parse_failure.
	Settings Settings
	// Overrides holds per-file settings keyed by resolved path.
	Overrides map[string]Settings
}

// SettingsFor returns the effective settings for one pattern file: global
// settings overridden by the file's own.
func (c *PatternConfiguration) SettingsFor(path string) Settings {
	if override, ok := c.Overrides[path]; ok {
		return c.Settings.Merge(override)
	}
	return c.Settings
}

// rawConfig mirrors the file layout
type rawConfig struct {
	OnParseFailure string            `mapstructure:"on_parse_failure" hcl:"on_parse_failure,optional"`
	PatternFiles   []string          `mapstructure:"pattern_files" hcl:"pattern_files,optional"`
	Patterns       []string          `mapstructure:"patterns" hcl:"patterns,optional"`
	Settings       map[string]string `mapstructure:"settings" hcl:"settings,optional"`
	Overrides      []rawOverride     `mapstructure:"overrides" hcl:"override,block"`
}

type rawOverride struct {
	File           string            `mapstructure:"file" hcl:"file,label"`
	OnParseFailure string            `mapstructure:"on_parse_failure" hcl:"on_parse_failure,optional"`
	Settings       map[string]string `mapstructure:"settings" hcl:"settings,optional"`
}

// Load reads and validates the configuration file at path
func Load(path string) (*PatternConfiguration, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewConfigError(errors.ErrConfigMissing, path, "configuration file not found", err)
	}

	var raw *rawConfig
	var err error
	if strings.EqualFold(filepath.Ext(path), ".hcl") {
		raw, err = readHCL(path)
	} else {
		raw, err = readViper(path)
	}
	if err != nil {
		return nil, err
	}

	return build(path, raw)
}

// readViper reads YAML, JSON or TOML. Unknown extensions are read as YAML.
func readViper(path string) (*rawConfig, error) {
	v := viper.New()

	v.SetDefault(KeyOnParseFailure, PolicyError.String())

	v.SetConfigFile(path)
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "yaml", "yml", "json", "toml":
	default:
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.NewConfigError(errors.ErrConfigUnreadable, path, "failed to read config file", err)
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, errors.NewConfigError(errors.ErrConfigInvalid, path, "failed to unmarshal config", err)
	}
	return &raw, nil
}

// readHCL decodes an HCL configuration file
func readHCL(path string) (*rawConfig, error) {
	var raw rawConfig
	if err := hclsimple.DecodeFile(path, nil, &raw); err != nil {
		return nil, errors.NewConfigError(errors.ErrConfigUnreadable, path, "failed to decode HCL config", err)
	}
	if raw.OnParseFailure == "" {
		raw.OnParseFailure = PolicyError.String()
	}
	return &raw, nil
}

// build validates raw values and resolves paths
func build(path string, raw *rawConfig) (*PatternConfiguration, error) {
	policy, err := ParsePolicy(raw.OnParseFailure)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrConfigInvalid, path, "invalid parse-failure policy", err)
	}

	baseDir := filepath.Dir(path)
	cfg := &PatternConfiguration{
		Path:           path,
		OnParseFailure: policy,
		Settings:       NewSettings(raw.Settings).With(KeyOnParseFailure, policy.String()),
		Overrides:      make(map[string]Settings),
	}

	seen := make(map[string]bool)
	for _, file := range append(raw.PatternFiles, raw.Patterns...) {
		if strings.TrimSpace(file) == "" {
			return nil, errors.NewConfigError(errors.ErrConfigInvalid, path, "empty pattern file entry", nil)
		}
		expanded, err := expandEntry(resolve(baseDir, file))
		if err != nil {
			return nil, errors.NewConfigError(errors.ErrConfigUnreadable, path,
				fmt.Sprintf("failed to list pattern directory %s", file), err)
		}
		for _, f := range expanded {
			if seen[f] {
				continue
			}
			seen[f] = true
			cfg.PatternFiles = append(cfg.PatternFiles, f)
		}
	}

	for i, o := range raw.Overrides {
		if strings.TrimSpace(o.File) == "" {
			return nil, errors.NewConfigError(errors.ErrConfigInvalid, path,
				fmt.Sprintf("override %d has no file", i), nil)
		}
		settings := NewSettings(o.Settings)
		if o.OnParseFailure != "" {
			p, err := ParsePolicy(o.OnParseFailure)
			if err != nil {
				return nil, errors.NewConfigError(errors.ErrConfigInvalid, path,
					fmt.Sprintf("invalid override for %s", o.File), err)
			}
			settings = settings.With(KeyOnParseFailure, p.String())
		}
		resolved := resolve(baseDir, o.File)
		if existing, ok := cfg.Overrides[resolved]; ok {
			settings = existing.Merge(settings)
		}
		cfg.Overrides[resolved] = settings
	}

	return cfg, nil
}

// resolve interprets file relative to baseDir
func resolve(baseDir, file string) string {
	if filepath.IsAbs(file) {
		return filepath.Clean(file)
	}
	return filepath.Join(baseDir, file)
}
