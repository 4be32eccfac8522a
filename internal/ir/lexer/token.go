package lexer

import "fmt"

// TokenType represents the type of a token in textual IR
type TokenType int

const (
	// TOKEN_EOF marks the end of the token stream.
	TOKEN_EOF TokenType = iota
	// TOKEN_ERROR represents a lexical error encountered during scanning.
	TOKEN_ERROR
	// TOKEN_NEWLINE ends an instruction or top-level entity. Newlines inside
	// parentheses and brackets are not emitted.
	TOKEN_NEWLINE

	// Names
	TOKEN_IDENTIFIER  // define, i32, add, label, ...
	TOKEN_LABEL       // entry:   (Literal holds the name without ':')
	TOKEN_GLOBAL      // @name    (Literal holds the name without '@')
	TOKEN_LOCAL       // %name    (Literal holds the name without '%')
	TOKEN_METADATA    // !name or !0 (Literal holds the name, or an int64 for numbered nodes)
	TOKEN_MD_STRING   // !"text"  (Literal holds the unquoted text)
	TOKEN_MD_OPEN     // !{
	TOKEN_ATTR_GROUP  // #0

	// Literals
	TOKEN_INT_LITERAL    // 42, -1
	TOKEN_FLOAT_LITERAL  // 1.5, 0x3FF0000000000000
	TOKEN_STRING_LITERAL // "text"

	// Delimiters
	TOKEN_LPAREN   // (
	TOKEN_RPAREN   // )
	TOKEN_LBRACE   // {
	TOKEN_RBRACE   // }
	TOKEN_LBRACKET // [
	TOKEN_RBRACKET // ]
	TOKEN_LT       // <
	TOKEN_GT       // >
	TOKEN_COMMA    // ,
	TOKEN_EQUALS   // =
	TOKEN_STAR     // *
	TOKEN_ELLIPSIS // ...
)

// TokenTypeNames maps token types to their string representations
var TokenTypeNames = map[TokenType]string{
	TOKEN_EOF:            "EOF",
	TOKEN_ERROR:          "ERROR",
	TOKEN_NEWLINE:        "NEWLINE",
	TOKEN_IDENTIFIER:     "IDENTIFIER",
	TOKEN_LABEL:          "LABEL",
	TOKEN_GLOBAL:         "GLOBAL",
	TOKEN_LOCAL:          "LOCAL",
	TOKEN_METADATA:       "METADATA",
	TOKEN_MD_STRING:      "MD_STRING",
	TOKEN_MD_OPEN:        "MD_OPEN",
	TOKEN_ATTR_GROUP:     "ATTR_GROUP",
	TOKEN_INT_LITERAL:    "INT_LITERAL",
	TOKEN_FLOAT_LITERAL:  "FLOAT_LITERAL",
	TOKEN_STRING_LITERAL: "STRING_LITERAL",
	TOKEN_LPAREN:         "LPAREN",
	TOKEN_RPAREN:         "RPAREN",
	TOKEN_LBRACE:         "LBRACE",
	TOKEN_RBRACE:         "RBRACE",
	TOKEN_LBRACKET:       "LBRACKET",
	TOKEN_RBRACKET:       "RBRACKET",
	TOKEN_LT:             "LT",
	TOKEN_GT:             "GT",
	TOKEN_COMMA:          "COMMA",
	TOKEN_EQUALS:         "EQUALS",
	TOKEN_STAR:           "STAR",
	TOKEN_ELLIPSIS:       "ELLIPSIS",
}

// String returns the string representation of a TokenType
func (t TokenType) String() string {
	if name, ok := TokenTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", t)
}

// Token represents a single lexical token
type Token struct {
	Type    TokenType   // The type of the token
	Lexeme  string      // The raw text of the token
	Literal interface{} // The parsed value (names, numbers, strings)
	Line    int         // Line number (1-indexed)
	Column  int         // Column number (1-indexed)
}

// String returns a string representation of the token
func (t Token) String() string {
	if t.Literal != nil {
		return fmt.Sprintf("%s '%s' (%v) at %d:%d",
			t.Type.String(), t.Lexeme, t.Literal, t.Line, t.Column)
	}
	return fmt.Sprintf("%s '%s' at %d:%d",
		t.Type.String(), t.Lexeme, t.Line, t.Column)
}

// Name returns the literal name carried by identifier-like tokens, falling
// back to the lexeme.
func (t Token) Name() string {
	if s, ok := t.Literal.(string); ok {
		return s
	}
	return t.Lexeme
}

// MetadataID returns the number of a numbered metadata token (!N).
func (t Token) MetadataID() (int, bool) {
	if t.Type != TOKEN_METADATA {
		return 0, false
	}
	id, ok := t.Literal.(int64)
	return int(id), ok
}

// LexError represents a lexical error with position information
type LexError struct {
	Message string
	Line    int
	Column  int
	Lexeme  string
}

// Error implements the error interface
func (e LexError) Error() string {
	return fmt.Sprintf("Lexical error at %d:%d: %s (near '%s')",
		e.Line, e.Column, e.Message, e.Lexeme)
}
