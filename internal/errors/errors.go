// Package errors defines the failures that can occur while loading
// difference patterns. Each error carries a stable code so that callers and
// tooling can tell a broken configuration from a single broken pattern file.
//
// ConfigError is fatal to building a pattern registry. PatternLoadError drops
// the patterns of one file and loading continues. MetadataDecodeError is
// handled according to the configured parse-failure policy.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is a stable identifier for a class of failure
type Code string

// Error codes
// CFG001-CFG099: configuration errors
// PAT001-PAT099: pattern file errors
// MD001-MD099:   metadata decoding errors
const (
	ErrConfigMissing    Code = "CFG001"
	ErrConfigUnreadable Code = "CFG002"
	ErrConfigInvalid    Code = "CFG003"

	ErrPatternParse       Code = "PAT001"
	ErrPatternMissingHalf Code = "PAT002"
	ErrPatternNoBody      Code = "PAT003"
	ErrPatternSignature   Code = "PAT004"
	ErrPatternDuplicate   Code = "PAT005"
	ErrPatternEmpty       Code = "PAT006"
	ErrPatternMetadata    Code = "PAT007"

	ErrMetadataMalformed Code = "MD001"
	ErrMetadataTooDeep   Code = "MD002"
)

// Sentinel errors for registry usage mistakes
var (
	// ErrNotInitialized is returned by session-dependent calls made before
	// the registry was initialized against a function pair.
	ErrNotInitialized = stderrors.New("pattern comparator not initialized")
	// ErrClosed is returned by calls made after the registry was closed.
	ErrClosed = stderrors.New("pattern comparator closed")
)

// Severity represents the severity level of an error
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ConfigError reports a missing or unparsable configuration file.
type ConfigError struct {
	Code    Code
	Path    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a ConfigError
func NewConfigError(code Code, path, message string, cause error) *ConfigError {
	return &ConfigError{Code: code, Path: path, Message: message, Err: cause}
}

// PatternLoadError reports a pattern file, or one pattern inside it, that
// could not be loaded.
type PatternLoadError struct {
	Code    Code
	Path    string
	Pattern string // empty when the whole file failed
	Message string
	Err     error
}

// Error implements the error interface
func (e *PatternLoadError) Error() string {
	subject := e.Path
	if e.Pattern != "" {
		subject += " (pattern " + e.Pattern + ")"
	}
	msg := fmt.Sprintf("%s: %s: %s", e.Code, subject, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *PatternLoadError) Unwrap() error {
	return e.Err
}

// NewPatternLoadError creates a PatternLoadError
func NewPatternLoadError(code Code, path, pattern, message string, cause error) *PatternLoadError {
	return &PatternLoadError{Code: code, Path: path, Pattern: pattern, Message: message, Err: cause}
}

// MetadataDecodeError reports a malformed pattern metadata node.
type MetadataDecodeError struct {
	Code    Code
	Operand int    // index of the operand that failed to decode
	Node    string // textual form of the node
	Message string

	// Location, filled in by the loader
	Path     string
	Function string
	Line     int
}

// Error implements the error interface
func (e *MetadataDecodeError) Error() string {
	loc := ""
	if e.Path != "" {
		loc = fmt.Sprintf("%s:%d: ", e.Path, e.Line)
	}
	if e.Function != "" {
		loc += "@" + e.Function + ": "
	}
	return fmt.Sprintf("%s%s: operand %d of %s: %s", loc, e.Code, e.Operand, e.Node, e.Message)
}

// SeverityOf classifies an error for reporting.
func SeverityOf(err error) Severity {
	var cfgErr *ConfigError
	var loadErr *PatternLoadError
	var mdErr *MetadataDecodeError
	switch {
	case err == nil:
		return Info
	case stderrors.As(err, &cfgErr):
		return Fatal
	case stderrors.As(err, &loadErr):
		return Error
	case stderrors.As(err, &mdErr):
		return Warning
	default:
		return Error
	}
}

// CodeOf returns the code carried by err, or "" when it has none.
func CodeOf(err error) Code {
	var cfgErr *ConfigError
	var loadErr *PatternLoadError
	var mdErr *MetadataDecodeError
	switch {
	case stderrors.As(err, &cfgErr):
		return cfgErr.Code
	case stderrors.As(err, &loadErr):
		return loadErr.Code
	case stderrors.As(err, &mdErr):
		return mdErr.Code
	}
	return ""
}

// Is, As, New and Join forward to the standard library.
var (
	Is   = stderrors.Is
	As   = stderrors.As
	New  = stderrors.New
	Join = stderrors.Join
)
