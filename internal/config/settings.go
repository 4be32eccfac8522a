package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Well-known setting keys
const (
	// KeyOnParseFailure selects the ParseFailurePolicy.
	KeyOnParseFailure = "on_parse_failure"
	// KeyStrictSignatures rejects patterns whose halves have different
	// signatures when set to true.
	KeyStrictSignatures = "strict_signatures"
)

// ParseFailurePolicy decides what happens when a pattern metadata node
// cannot be decoded.
type ParseFailurePolicy int

const (
	// PolicyError discards the whole pattern.
	PolicyError ParseFailurePolicy = iota
	// PolicyWarn logs the failure and drops only that annotation.
	PolicyWarn
	// PolicyIgnore drops the annotation silently.
	PolicyIgnore
)

// String returns the configuration spelling of the policy
func (p ParseFailurePolicy) String() string {
	switch p {
	case PolicyError:
		return "error"
	case PolicyWarn:
		return "warn"
	case PolicyIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy parses a policy name, case-insensitively. "warning" is
// accepted as an alias of "warn".
func ParsePolicy(s string) (ParseFailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return PolicyError, nil
	case "warn", "warning":
		return PolicyWarn, nil
	case "ignore":
		return PolicyIgnore, nil
	default:
		return PolicyError, fmt.Errorf("invalid %s value %q (expected error, warn or ignore)", KeyOnParseFailure, s)
	}
}

// Settings is an immutable set of key/value settings scoped to one
// configuration load. Keys are case-insensitive.
type Settings struct {
	values map[string]string
}

// NewSettings copies values into a Settings.
func NewSettings(values map[string]string) Settings {
	s := Settings{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[strings.ToLower(k)] = v
	}
	return s
}

// Get returns the value of key.
func (s Settings) Get(key string) (string, bool) {
	v, ok := s.values[strings.ToLower(key)]
	return v, ok
}

// Bool returns key parsed as a boolean, or def when unset or unparsable.
func (s Settings) Bool(key string, def bool) bool {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// Policy returns the parse-failure policy, defaulting to PolicyError.
func (s Settings) Policy() ParseFailurePolicy {
	v, ok := s.Get(KeyOnParseFailure)
	if !ok {
		return PolicyError
	}
	p, err := ParsePolicy(v)
	if err != nil {
		return PolicyError
	}
	return p
}

// With returns a copy of s with key set to value.
func (s Settings) With(key, value string) Settings {
	out := NewSettings(s.values)
	out.values[strings.ToLower(key)] = value
	return out
}

// Merge returns a copy of s overridden by every key of override.
func (s Settings) Merge(override Settings) Settings {
	out := NewSettings(s.values)
	for k, v := range override.values {
		out.values[k] = v
	}
	return out
}

// Keys returns the keys in sorted order.
func (s Settings) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys.
func (s Settings) Len() int {
	return len(s.values)
}

// Map returns a copy of the settings.
func (s Settings) Map() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
