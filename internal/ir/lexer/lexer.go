// Package lexer provides lexical analysis for textual IR.
// It tokenizes .ll pattern files into a stream of tokens for the parser.
package lexer

import (
	"fmt"
	"strconv"
	"strings"
)

// Lexer tokenizes textual IR.
//
// Thread Safety: Lexer instances are NOT thread-safe. Each goroutine must
// create its own Lexer instance via New().
type Lexer struct {
	source  string     // Source code to tokenize
	start   int        // Start position of current token
	current int        // Current position in source
	line    int        // Current line number (1-indexed)
	column  int        // Current column number (1-indexed)
	tokens  []Token    // Collected tokens
	errors  []LexError // Collected errors

	// Newlines are insignificant inside ( ) and [ ], which lets switch
	// tables and long call argument lists span several lines.
	nesting int
}

// New creates a new Lexer for the given source code
func New(source string) *Lexer {
	return &Lexer{
		source:  source,
		line:    1,
		column:  1,
		tokens:  make([]Token, 0),
		errors:  make([]LexError, 0),
		nesting: 0,
	}
}

// ScanTokens tokenizes the entire source and returns tokens and errors
func (l *Lexer) ScanTokens() ([]Token, []LexError) {
	for !l.isAtEnd() {
		l.start = l.current
		l.scanToken()
	}

	l.addNewline()
	l.tokens = append(l.tokens, Token{
		Type:   TOKEN_EOF,
		Lexeme: "",
		Line:   l.line,
		Column: l.column,
	})

	return l.tokens, l.errors
}

// scanToken processes the next token.
//
//nolint:gocyclo,cyclop // Lexer dispatch function - complexity is inherent to the pattern
func (l *Lexer) scanToken() {
	c := l.advance()

	switch {
	case c == '(' || c == ')' || c == '[' || c == ']' || c == '{' || c == '}':
		l.scanDelimiter(c)
	case c == '<':
		l.addToken(TOKEN_LT)
	case c == '>':
		l.addToken(TOKEN_GT)
	case c == ',':
		l.addToken(TOKEN_COMMA)
	case c == '=':
		l.addToken(TOKEN_EQUALS)
	case c == '*':
		l.addToken(TOKEN_STAR)
	case c == ';':
		l.comment()
	case c == '@':
		l.scanName(TOKEN_GLOBAL, "@")
	case c == '%':
		l.scanName(TOKEN_LOCAL, "%")
	case c == '!':
		l.scanMetadata()
	case c == '#':
		l.scanAttributeGroup()
	case c == '"':
		l.string()
	case c == '.':
		l.scanDot()
	case c == ' ' || c == '\r' || c == '\t':
		// Ignore whitespace
	case c == '\n':
		if l.nesting == 0 {
			l.addNewline()
		}
		l.line++
		l.column = 1
	default:
		l.scanDefault(c)
	}
}

// scanDelimiter handles ( ) [ ] { }
func (l *Lexer) scanDelimiter(c byte) {
	switch c {
	case '(':
		l.nesting++
		l.addToken(TOKEN_LPAREN)
	case ')':
		if l.nesting > 0 {
			l.nesting--
		}
		l.addToken(TOKEN_RPAREN)
	case '[':
		l.nesting++
		l.addToken(TOKEN_LBRACKET)
	case ']':
		if l.nesting > 0 {
			l.nesting--
		}
		l.addToken(TOKEN_RBRACKET)
	case '{':
		l.addToken(TOKEN_LBRACE)
	case '}':
		l.addToken(TOKEN_RBRACE)
	}
}

// scanDefault handles numbers, identifiers and labels, or reports an error
func (l *Lexer) scanDefault(c byte) {
	switch {
	case c == '-' && l.isDigit(l.peek()):
		l.number()
	case l.isDigit(c):
		l.number()
	case l.isNameStart(c):
		l.identifier()
	default:
		l.addError(fmt.Sprintf("Unexpected character: '%c'", c))
	}
}

// scanDot handles the "..." varargs marker
func (l *Lexer) scanDot() {
	if l.peek() == '.' && l.peekNext() == '.' {
		l.advance()
		l.advance()
		l.addToken(TOKEN_ELLIPSIS)
		return
	}
	l.identifier()
}

// scanName handles @global and %local names, including quoted names
func (l *Lexer) scanName(tokenType TokenType, sigil string) {
	if l.peek() == '"' {
		l.advance()
		value, ok := l.readQuoted()
		if !ok {
			return
		}
		l.addTokenWithLiteral(tokenType, value)
		return
	}

	startPos := l.current
	for l.isNameChar(l.peek()) {
		l.advance()
	}
	if startPos == l.current {
		l.addError(fmt.Sprintf("Expected name after '%s'", sigil))
		return
	}
	l.addTokenWithLiteral(tokenType, l.source[startPos:l.current])
}

// scanMetadata handles !name, !0, !"string" and !{
func (l *Lexer) scanMetadata() {
	switch {
	case l.peek() == '"':
		l.advance()
		value, ok := l.readQuoted()
		if !ok {
			return
		}
		l.addTokenWithLiteral(TOKEN_MD_STRING, value)
	case l.peek() == '{':
		l.advance()
		l.addToken(TOKEN_MD_OPEN)
	case l.isNameChar(l.peek()):
		startPos := l.current
		for l.isNameChar(l.peek()) {
			l.advance()
		}
		name := l.source[startPos:l.current]
		if id, err := strconv.ParseInt(name, 10, 64); err == nil {
			l.addTokenWithLiteral(TOKEN_METADATA, id)
			return
		}
		l.addTokenWithLiteral(TOKEN_METADATA, name)
	default:
		l.addError("Expected metadata name, number, string or '{' after '!'")
	}
}

// scanAttributeGroup handles #0 attribute group references
func (l *Lexer) scanAttributeGroup() {
	if !l.isDigit(l.peek()) {
		l.addError("Expected attribute group number after '#'")
		return
	}
	for l.isDigit(l.peek()) {
		l.advance()
	}
	l.addToken(TOKEN_ATTR_GROUP)
}

// comment handles ';' comments running to the end of the line
func (l *Lexer) comment() {
	for l.peek() != '\n' && !l.isAtEnd() {
		l.advance()
	}
}

// string handles "..." string literals
func (l *Lexer) string() {
	startLine := l.line
	startColumn := l.column - 1

	value, ok := l.readQuoted()
	if !ok {
		return
	}

	l.tokens = append(l.tokens, Token{
		Type:    TOKEN_STRING_LITERAL,
		Lexeme:  l.source[l.start:l.current],
		Literal: value,
		Line:    startLine,
		Column:  startColumn,
	})
}

// readQuoted reads the body of a quoted string whose opening '"' was already
// consumed. Escapes follow the IR convention of two hex digits (\22); \\ and
// \" are accepted as well.
func (l *Lexer) readQuoted() (string, bool) {
	startLine := l.line
	startColumn := l.column
	value := strings.Builder{}

	for !l.isAtEnd() && l.peek() != '"' && l.peek() != '\n' {
		if l.peek() != '\\' {
			value.WriteByte(l.advance())
			continue
		}

		l.advance() // consume backslash
		switch {
		case l.isHexDigit(l.peek()) && l.isHexDigit(l.peekNext()):
			hi := l.advance()
			lo := l.advance()
			b, _ := strconv.ParseUint(string([]byte{hi, lo}), 16, 8)
			value.WriteByte(byte(b))
		case l.peek() == '\\' || l.peek() == '"':
			value.WriteByte(l.advance())
		default:
			value.WriteByte('\\')
		}
	}

	if l.isAtEnd() || l.peek() == '\n' {
		l.addError(fmt.Sprintf("Unterminated string starting at %d:%d", startLine, startColumn))
		return "", false
	}

	// Consume closing "
	l.advance()
	return value.String(), true
}

// number handles integer and floating point literals, and numeric labels
func (l *Lexer) number() {
	if l.source[l.start] == '0' && (l.peek() == 'x' || l.peek() == 'X') {
		l.advance()
		for l.isHexDigit(l.peek()) || l.peek() == 'K' || l.peek() == 'L' || l.peek() == 'M' || l.peek() == 'H' {
			l.advance()
		}
		l.addToken(TOKEN_FLOAT_LITERAL)
		return
	}

	for l.isDigit(l.peek()) {
		l.advance()
	}

	// Numeric block labels such as "4:"
	if l.peek() == ':' && l.source[l.start] != '-' {
		name := l.source[l.start:l.current]
		l.advance()
		l.addTokenWithLiteral(TOKEN_LABEL, name)
		return
	}

	isFloat := false
	if l.peek() == '.' && l.isDigit(l.peekNext()) {
		isFloat = true
		l.advance()
		for l.isDigit(l.peek()) {
			l.advance()
		}
	}

	if l.peek() == 'e' || l.peek() == 'E' {
		isFloat = true
		l.advance()
		if l.peek() == '+' || l.peek() == '-' {
			l.advance()
		}
		if !l.isDigit(l.peek()) {
			l.addError("Invalid number: expected digits after exponent")
			return
		}
		for l.isDigit(l.peek()) {
			l.advance()
		}
	}

	lexeme := l.source[l.start:l.current]
	if isFloat {
		value, err := strconv.ParseFloat(lexeme, 64)
		if err != nil {
			l.addError(fmt.Sprintf("Invalid float literal: %s", lexeme))
			return
		}
		l.addTokenWithLiteral(TOKEN_FLOAT_LITERAL, value)
		return
	}

	value, err := strconv.ParseInt(lexeme, 10, 64)
	if err != nil {
		l.addError(fmt.Sprintf("Invalid integer literal: %s", lexeme))
		return
	}
	l.addTokenWithLiteral(TOKEN_INT_LITERAL, value)
}

// identifier handles keywords, types, opcodes and "name:" labels
func (l *Lexer) identifier() {
	for l.isNameChar(l.peek()) && l.peek() != '-' {
		l.advance()
	}

	text := l.source[l.start:l.current]
	if l.peek() == ':' {
		l.advance()
		l.addTokenWithLiteral(TOKEN_LABEL, text)
		return
	}
	l.addTokenWithLiteral(TOKEN_IDENTIFIER, text)
}

// Helper methods

// isAtEnd checks if we've reached the end of the source
func (l *Lexer) isAtEnd() bool {
	return l.current >= len(l.source)
}

// advance consumes and returns the current character
func (l *Lexer) advance() byte {
	if l.isAtEnd() {
		return 0
	}
	c := l.source[l.current]
	l.current++
	l.column++
	return c
}

// peek returns the current character without consuming it
func (l *Lexer) peek() byte {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.current]
}

// peekNext returns the next character without consuming
func (l *Lexer) peekNext() byte {
	if l.current+1 >= len(l.source) {
		return 0
	}
	return l.source[l.current+1]
}

// isDigit checks if a character is a digit
func (l *Lexer) isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// isHexDigit checks if a character is a hexadecimal digit
func (l *Lexer) isHexDigit(c byte) bool {
	return l.isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// isNameStart checks if a character may start a bare identifier
func (l *Lexer) isNameStart(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		c == '_' || c == '$'
}

// isNameChar checks if a character may appear in a name ([-a-zA-Z$._0-9])
func (l *Lexer) isNameChar(c byte) bool {
	return l.isNameStart(c) || l.isDigit(c) || c == '.' || c == '-'
}

// addNewline emits a NEWLINE token unless the previous token already ends a line
func (l *Lexer) addNewline() {
	if len(l.tokens) == 0 || l.tokens[len(l.tokens)-1].Type == TOKEN_NEWLINE {
		return
	}
	l.tokens = append(l.tokens, Token{
		Type:   TOKEN_NEWLINE,
		Lexeme: "\\n",
		Line:   l.line,
		Column: l.column,
	})
}

// addToken adds a token with the current lexeme
func (l *Lexer) addToken(tokenType TokenType) {
	l.addTokenWithLiteral(tokenType, nil)
}

// addTokenWithLiteral adds a token with a literal value
func (l *Lexer) addTokenWithLiteral(tokenType TokenType, literal interface{}) {
	lexeme := l.source[l.start:l.current]
	token := Token{
		Type:    tokenType,
		Lexeme:  lexeme,
		Literal: literal,
		Line:    l.line,
		Column:  l.column - (l.current - l.start),
	}
	l.tokens = append(l.tokens, token)
}

// addError records a lexical error
func (l *Lexer) addError(message string) {
	lexeme := ""
	if l.start < len(l.source) {
		end := l.current
		if end > l.start+20 {
			end = l.start + 20
		}
		lexeme = l.source[l.start:end]
	}

	err := LexError{
		Message: message,
		Line:    l.line,
		Column:  l.column - (l.current - l.start),
		Lexeme:  lexeme,
	}
	l.errors = append(l.errors, err)
}
