// Package parser turns textual IR into an ir.Module. It is a line-oriented
// recursive descent parser that records errors and resynchronizes at the
// next line, so one malformed instruction does not hide the rest.
package parser

import (
	"fmt"
	"strings"

	"github.com/diffkemp/diffpat/internal/ir/lexer"
)

// ParseError represents an error encountered during lexing or parsing
type ParseError struct {
	Message string
	File    string
	Line    int
	Column  int
	Lexeme  string
}

// Error implements the error interface
func (e ParseError) Error() string {
	loc := fmt.Sprintf("%d:%d", e.Line, e.Column)
	if e.File != "" {
		loc = e.File + ":" + loc
	}
	if e.Lexeme == "" {
		return fmt.Sprintf("%s: %s", loc, e.Message)
	}
	return fmt.Sprintf("%s: %s (near '%s')", loc, e.Message, e.Lexeme)
}

// NewParseError creates a new parse error at the given token
func NewParseError(message string, token lexer.Token) ParseError {
	return ParseError{
		Message: message,
		Line:    token.Line,
		Column:  token.Column,
		Lexeme:  token.Lexeme,
	}
}

// fromLexError converts a lexical error
func fromLexError(err lexer.LexError) ParseError {
	return ParseError{
		Message: err.Message,
		Line:    err.Line,
		Column:  err.Column,
		Lexeme:  err.Lexeme,
	}
}

// ErrorList collects every error found in one file.
type ErrorList []ParseError

// Error implements the error interface, reporting the first error and how
// many more followed.
func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	default:
		var sb strings.Builder
		sb.WriteString(l[0].Error())
		fmt.Fprintf(&sb, " (and %d more errors)", len(l)-1)
		return sb.String()
	}
}
