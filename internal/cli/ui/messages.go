package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/diffkemp/diffpat/internal/errors"
)

// MessageOptions describes a diagnostic printed to the user
type MessageOptions struct {
	Severity    errors.Severity
	Code        string
	Problem     string
	Detail      string
	Suggestions []string
	Hints       []string
	NoColor     bool
}

// FormatMessage renders a diagnostic.
//
// Example output:
//
//	✗ PAT002: patterns/a.ll (pattern swap)
//	   missing new half @diffkemp.new.swap
//
//	   → List loaded patterns: diffpat list -c patterns.yaml
func FormatMessage(opts MessageOptions) string {
	var b strings.Builder

	symbol, attr := "✗", color.FgRed
	switch opts.Severity {
	case errors.Warning:
		symbol, attr = "!", color.FgYellow
	case errors.Info:
		symbol, attr = "i", color.FgCyan
	}
	head := newColor(opts.NoColor, attr, color.Bold)
	body := newColor(opts.NoColor, attr)

	if opts.Code != "" {
		head.Fprintf(&b, "%s %s: %s\n", symbol, opts.Code, opts.Problem)
	} else {
		head.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}
	if opts.Detail != "" {
		body.Fprintf(&b, "   %s\n", opts.Detail)
	}

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		newColor(opts.NoColor, color.FgYellow).Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.Hints) > 0 {
		b.WriteString("\n")
		hint := newColor(opts.NoColor, color.FgCyan)
		for _, h := range opts.Hints {
			hint.Fprintf(&b, "   → %s\n", h)
		}
	}

	return b.String()
}

// WriteLoadError prints one pattern loading failure.
func WriteLoadError(w io.Writer, err error, noColor bool) {
	opts := MessageOptions{
		Severity: errors.SeverityOf(err),
		Code:     string(errors.CodeOf(err)),
		Problem:  err.Error(),
		NoColor:  noColor,
	}

	var loadErr *errors.PatternLoadError
	if errors.As(err, &loadErr) {
		opts.Problem = loadErr.Path
		if loadErr.Pattern != "" {
			opts.Problem += " (pattern " + loadErr.Pattern + ")"
		}
		opts.Detail = loadErr.Message
		if loadErr.Err != nil {
			opts.Detail += ": " + loadErr.Err.Error()
		}
	}
	fmt.Fprint(w, FormatMessage(opts))
}

// PatternNotFound formats a lookup failure with close names as suggestions.
func PatternNotFound(name string, known []string, noColor bool) string {
	return FormatMessage(MessageOptions{
		Severity:    errors.Error,
		Problem:     fmt.Sprintf("no pattern named %q", name),
		Suggestions: FindSimilar(name, known, nil),
		Hints:       []string{"List loaded patterns: diffpat list"},
		NoColor:     noColor,
	})
}

// FormatSuccess renders a success line
func FormatSuccess(message string, noColor bool) string {
	return newColor(noColor, color.FgGreen, color.Bold).Sprintf("✓ %s", message)
}

// WriteSuccess writes a success line
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}
