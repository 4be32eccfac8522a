package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/diffkemp/diffpat/internal/ir"
	"github.com/diffkemp/diffpat/internal/ir/lexer"
)

// skippedKeywords are linkage, visibility, calling convention and
// parameter attribute keywords that carry no type information.
var skippedKeywords = map[string]bool{
	"private": true, "internal": true, "available_externally": true,
	"linkonce": true, "weak": true, "common": true, "appending": true,
	"extern_weak": true, "linkonce_odr": true, "weak_odr": true,
	"external": true, "dso_local": true, "dso_preemptable": true,
	"hidden": true, "protected": true, "default": true,
	"unnamed_addr": true, "local_unnamed_addr": true,
	"dllimport": true, "dllexport": true,
	"ccc": true, "fastcc": true, "coldcc": true, "tailcc": true,
	"noundef": true, "nocapture": true, "readonly": true, "readnone": true,
	"writeonly": true, "nonnull": true, "zeroext": true, "signext": true,
	"inreg": true, "noalias": true, "returned": true, "nest": true,
	"immarg": true, "byval": true, "byref": true, "sret": true,
	"inalloca": true, "preallocated": true, "dereferenceable": true,
	"dereferenceable_or_null": true, "align": true, "swiftself": true,
	"swifterror": true, "allocalign": true, "allocptr": true,
}

// callPrefixes may precede the call opcode.
var callPrefixes = map[string]bool{
	"tail":     true,
	"musttail": true,
	"notail":   true,
}

// Parser transforms a token stream into an ir.Module
type Parser struct {
	tokens  []lexer.Token
	current int
	errors  []ParseError
	module  *ir.Module
}

// New creates a parser that fills the given module
func New(tokens []lexer.Token, module *ir.Module) *Parser {
	return &Parser{
		tokens:  tokens,
		current: 0,
		errors:  make([]ParseError, 0),
		module:  module,
	}
}

// ParseFile reads and parses the file at path into a new module owned by ctx.
func ParseFile(ctx *ir.Context, path string) (*ir.Module, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseSource(ctx, path, source)
}

// ParseSource parses the contents of the file at path, already read by the
// caller, into a new module owned by ctx.
func ParseSource(ctx *ir.Context, path string, source []byte) (*ir.Module, error) {
	return parseSource(ctx, filepath.Base(path), path, string(source))
}

// ParseString parses source into a new module named name owned by ctx.
func ParseString(ctx *ir.Context, name, source string) (*ir.Module, error) {
	return parseSource(ctx, name, "", source)
}

func parseSource(ctx *ir.Context, name, path, source string) (*ir.Module, error) {
	tokens, lexErrors := lexer.New(source).ScanTokens()
	if len(lexErrors) > 0 {
		errs := make(ErrorList, len(lexErrors))
		for i, le := range lexErrors {
			errs[i] = fromLexError(le)
			errs[i].File = path
		}
		return nil, errs
	}

	module := ctx.NewModule(name, path)
	_, parseErrors := New(tokens, module).Parse()
	if len(parseErrors) > 0 {
		errs := make(ErrorList, len(parseErrors))
		for i, pe := range parseErrors {
			pe.File = path
			errs[i] = pe
		}
		return nil, errs
	}
	return module, nil
}

// Parse parses the token stream and returns the module and any errors
func (p *Parser) Parse() (*ir.Module, []ParseError) {
	for !p.isAtEnd() {
		if p.match(lexer.TOKEN_NEWLINE) {
			continue
		}
		p.parseTopLevel()
	}

	for _, id := range p.module.UndefinedMetadata() {
		p.error(p.peek(), fmt.Sprintf("Metadata !%d is referenced but never defined", id))
	}

	return p.module, p.errors
}

// parseTopLevel parses one top-level entity
func (p *Parser) parseTopLevel() {
	tok := p.peek()
	switch tok.Type {
	case lexer.TOKEN_IDENTIFIER:
		switch tok.Lexeme {
		case "define":
			p.parseDefine()
		case "declare":
			p.parseDeclare()
		default:
			// source_filename, target, attributes, module asm, ...
			p.skipLine()
		}
	case lexer.TOKEN_GLOBAL:
		p.module.AddGlobal(tok.Name())
		p.skipLine()
	case lexer.TOKEN_LOCAL:
		// Named type definitions: %struct.s = type { ... }
		p.skipLine()
	case lexer.TOKEN_METADATA:
		p.parseMetadataDefinition()
	default:
		p.error(tok, fmt.Sprintf("Unexpected token at top level: %s", tok.Lexeme))
		p.skipLine()
	}
}

// parseDeclare parses a body-less function declaration
func (p *Parser) parseDeclare() {
	p.advance() // declare

	nameTok, retType, params, ok := p.parseFunctionHeader()
	if !ok {
		p.skipLine()
		return
	}
	p.skipLine()

	fn, err := p.module.NewFunction(nameTok.Name(), p.module.Context().Type(retType), params)
	if err != nil {
		p.error(nameTok, err.Error())
		return
	}
	fn.Line = nameTok.Line
}

// parseDefine parses a function definition including its body
func (p *Parser) parseDefine() {
	p.advance() // define

	nameTok, retType, params, ok := p.parseFunctionHeader()
	if !ok {
		p.skipFunction()
		return
	}

	// Function attributes, #N groups, section/comdat and !dbg attachments
	for !p.check(lexer.TOKEN_LBRACE) && !p.check(lexer.TOKEN_NEWLINE) && !p.isAtEnd() {
		p.advance()
	}
	if !p.match(lexer.TOKEN_LBRACE) {
		p.error(p.peek(), "Expected '{' to open function body")
		p.skipFunction()
		return
	}

	fn, err := p.module.NewFunction(nameTok.Name(), p.module.Context().Type(retType), params)
	if err != nil {
		p.error(nameTok, err.Error())
		p.skipFunction()
		return
	}
	fn.Line = nameTok.Line

	p.parseBody(fn)
}

// parseFunctionHeader parses "<attrs> <ret> @name(<params>)"
func (p *Parser) parseFunctionHeader() (lexer.Token, string, []ir.Param, bool) {
	var prefix []lexer.Token
	for !p.check(lexer.TOKEN_GLOBAL) && !p.check(lexer.TOKEN_NEWLINE) && !p.isAtEnd() {
		prefix = append(prefix, p.advance())
	}

	nameTok := p.consume(lexer.TOKEN_GLOBAL, "Expected function name")
	if nameTok.Type == lexer.TOKEN_ERROR {
		return nameTok, "", nil, false
	}

	retType := joinTokens(stripKeywords(prefix))
	if retType == "" {
		p.error(nameTok, fmt.Sprintf("Expected return type for @%s", nameTok.Name()))
		return nameTok, "", nil, false
	}

	if !p.match(lexer.TOKEN_LPAREN) {
		p.error(p.peek(), "Expected '(' after function name")
		return nameTok, "", nil, false
	}

	params, ok := p.parseParams()
	return nameTok, retType, params, ok
}

// parseParams parses a parameter list up to and including ')'
func (p *Parser) parseParams() ([]ir.Param, bool) {
	var groups [][]lexer.Token
	var group []lexer.Token
	depth := 0

	for {
		if p.isAtEnd() || p.check(lexer.TOKEN_NEWLINE) {
			p.error(p.peek(), "Unterminated parameter list")
			return nil, false
		}
		tok := p.advance()
		if tok.Type == lexer.TOKEN_RPAREN && depth == 0 {
			break
		}
		if tok.Type == lexer.TOKEN_COMMA && depth == 0 {
			groups = append(groups, group)
			group = nil
			continue
		}
		depth += nestingDelta(tok)
		group = append(group, tok)
	}
	if len(group) > 0 {
		groups = append(groups, group)
	}

	params := make([]ir.Param, 0, len(groups))
	for _, g := range groups {
		if len(g) == 1 && g[0].Type == lexer.TOKEN_ELLIPSIS {
			continue
		}
		var param ir.Param
		if last := g[len(g)-1]; last.Type == lexer.TOKEN_LOCAL {
			param.Name = last.Name()
			g = g[:len(g)-1]
		}
		typeText := joinTokens(stripKeywords(g))
		if typeText == "" {
			p.error(g[0], "Expected parameter type")
			return nil, false
		}
		param.Type = p.module.Context().Type(typeText)
		params = append(params, param)
	}
	return params, true
}

// parseBody parses basic blocks until the closing '}' at the start of a line
func (p *Parser) parseBody(fn *ir.Function) {
	var block *ir.BasicBlock

	for {
		if p.isAtEnd() {
			p.error(p.peek(), fmt.Sprintf("Unterminated body of function @%s", fn.Name))
			return
		}
		if p.match(lexer.TOKEN_NEWLINE) {
			continue
		}
		if p.match(lexer.TOKEN_RBRACE) {
			return
		}
		if p.check(lexer.TOKEN_LABEL) {
			block = fn.NewBlock(p.advance().Name())
			continue
		}
		if block == nil {
			block = fn.NewBlock("")
		}
		if inst := p.parseInstruction(); inst != nil {
			block.Append(inst)
		}
	}
}

// parseInstruction parses "[%res =] opcode args [, !name <node>]*"
func (p *Parser) parseInstruction() *ir.Instruction {
	first := p.peek()
	inst := &ir.Instruction{Line: first.Line}

	if p.check(lexer.TOKEN_LOCAL) && p.peekAt(1).Type == lexer.TOKEN_EQUALS {
		inst.Result = p.advance().Name()
		p.advance() // =
	}

	for p.check(lexer.TOKEN_IDENTIFIER) && callPrefixes[p.peek().Lexeme] {
		p.advance()
	}

	opTok := p.consume(lexer.TOKEN_IDENTIFIER, "Expected instruction opcode")
	if opTok.Type == lexer.TOKEN_ERROR {
		p.skipLine()
		return nil
	}
	inst.Opcode = opTok.Lexeme

	var args []lexer.Token
	depth := 0
	for !p.check(lexer.TOKEN_NEWLINE) && !p.isAtEnd() {
		if depth == 0 && p.isAttachmentStart() {
			p.advance() // ,
			nameTok := p.advance()
			node := p.parseMetadataValue()
			if node == nil {
				p.skipLine()
				return nil
			}
			inst.Attach(nameTok.Name(), node)
			continue
		}

		tok := p.advance()
		depth += nestingDelta(tok)
		args = append(args, tok)
	}
	p.match(lexer.TOKEN_NEWLINE)

	inst.Args = joinTokens(args)
	return inst
}

// isAttachmentStart reports whether the next tokens are ", !name"
func (p *Parser) isAttachmentStart() bool {
	if !p.check(lexer.TOKEN_COMMA) {
		return false
	}
	next := p.peekAt(1)
	if next.Type != lexer.TOKEN_METADATA {
		return false
	}
	_, numbered := next.MetadataID()
	return !numbered
}

// parseMetadataDefinition parses "!N = [distinct] !{...}" and "!name = !{...}"
func (p *Parser) parseMetadataDefinition() {
	nameTok := p.advance()
	if !p.match(lexer.TOKEN_EQUALS) {
		p.error(p.peek(), "Expected '=' after metadata name")
		p.skipLine()
		return
	}

	distinct := false
	if p.check(lexer.TOKEN_IDENTIFIER) && p.peek().Lexeme == "distinct" {
		p.advance()
		distinct = true
	}

	id, numbered := nameTok.MetadataID()
	if !numbered {
		if node := p.parseMetadataValue(); node != nil {
			p.module.SetNamedMetadata(nameTok.Name(), node)
		}
		p.skipLine()
		return
	}

	var err error
	switch {
	case p.check(lexer.TOKEN_MD_OPEN):
		p.advance()
		body := p.parseNodeBody()
		if body == nil {
			p.skipLine()
			return
		}
		_, err = p.module.DefineMetadata(id, distinct, "", body.Operands)
	case p.check(lexer.TOKEN_METADATA) && p.peekAt(1).Type == lexer.TOKEN_LPAREN:
		kind := p.advance().Name()
		p.skipParens()
		_, err = p.module.DefineMetadata(id, distinct, kind, nil)
	default:
		p.error(p.peek(), fmt.Sprintf("Expected metadata node after '!%d ='", id))
		p.skipLine()
		return
	}
	if err != nil {
		p.error(nameTok, err.Error())
	}
	p.skipLine()
}

// parseMetadataValue parses a node reference (!N), an inline node (!{...})
// or a specialized node (!DIxxx(...))
func (p *Parser) parseMetadataValue() *ir.MDNode {
	tok := p.peek()
	switch tok.Type {
	case lexer.TOKEN_METADATA:
		if id, ok := tok.MetadataID(); ok {
			p.advance()
			return p.module.MetadataNode(id)
		}
		if p.peekAt(1).Type == lexer.TOKEN_LPAREN {
			p.advance()
			p.skipParens()
			return ir.NewSpecializedNode(tok.Name())
		}
	case lexer.TOKEN_MD_OPEN:
		p.advance()
		return p.parseNodeBody()
	}

	p.error(tok, "Expected metadata node")
	return nil
}

// parseNodeBody parses operands after "!{" up to and including "}"
func (p *Parser) parseNodeBody() *ir.MDNode {
	if p.match(lexer.TOKEN_RBRACE) {
		return ir.NewNode()
	}

	var operands []ir.Metadata
	for {
		op := p.parseMetadataOperand()
		if op == nil {
			return nil
		}
		operands = append(operands, op)

		if p.match(lexer.TOKEN_COMMA) {
			continue
		}
		if p.match(lexer.TOKEN_RBRACE) {
			break
		}
		p.error(p.peek(), "Expected ',' or '}' in metadata node")
		return nil
	}
	return ir.NewNode(operands...)
}

// parseMetadataOperand parses a single operand of a metadata node
func (p *Parser) parseMetadataOperand() ir.Metadata {
	tok := p.peek()
	switch tok.Type {
	case lexer.TOKEN_MD_STRING:
		p.advance()
		return &ir.MDString{Value: tok.Name()}
	case lexer.TOKEN_METADATA, lexer.TOKEN_MD_OPEN:
		node := p.parseMetadataValue()
		if node == nil {
			return nil
		}
		return node
	case lexer.TOKEN_IDENTIFIER:
		if tok.Lexeme == "null" {
			p.advance()
			return &ir.MDNull{}
		}
		return p.parseTypedConstant()
	}

	p.error(tok, "Expected metadata operand")
	return nil
}

// parseTypedConstant parses "<type> <int>" or "i1 true/false"
func (p *Parser) parseTypedConstant() ir.Metadata {
	typeTok := p.advance()
	valueTok := p.peek()
	typ := p.module.Context().Type(typeTok.Lexeme)

	switch {
	case valueTok.Type == lexer.TOKEN_INT_LITERAL:
		p.advance()
		return &ir.MDInt{Type: typ, Value: valueTok.Literal.(int64)}
	case valueTok.Type == lexer.TOKEN_IDENTIFIER && valueTok.Lexeme == "true":
		p.advance()
		return &ir.MDInt{Type: typ, Value: 1}
	case valueTok.Type == lexer.TOKEN_IDENTIFIER && valueTok.Lexeme == "false":
		p.advance()
		return &ir.MDInt{Type: typ, Value: 0}
	}

	p.error(valueTok, fmt.Sprintf("Expected integer constant after type '%s'", typeTok.Lexeme))
	return nil
}

// Helper methods

// peek returns the current token without consuming it
func (p *Parser) peek() lexer.Token {
	return p.peekAt(0)
}

// peekAt returns the token n positions ahead
func (p *Parser) peekAt(n int) lexer.Token {
	if len(p.tokens) == 0 {
		return lexer.Token{Type: lexer.TOKEN_EOF}
	}
	if p.current+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.current+n]
}

// previous returns the most recently consumed token
func (p *Parser) previous() lexer.Token {
	if len(p.tokens) == 0 || p.current == 0 {
		return lexer.Token{Type: lexer.TOKEN_EOF}
	}
	return p.tokens[p.current-1]
}

// advance consumes the current token and returns it
func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

// check returns true if the current token matches the given type
func (p *Parser) check(tokenType lexer.TokenType) bool {
	if p.isAtEnd() {
		return false
	}
	return p.peek().Type == tokenType
}

// match consumes the token if it matches any of the given types
func (p *Parser) match(types ...lexer.TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

// consume advances if the next token matches, otherwise reports an error
func (p *Parser) consume(tokenType lexer.TokenType, message string) lexer.Token {
	if p.check(tokenType) {
		return p.advance()
	}

	p.error(p.peek(), message)
	return lexer.Token{Type: lexer.TOKEN_ERROR}
}

// isAtEnd returns true if we've reached the end of the token stream
func (p *Parser) isAtEnd() bool {
	return p.current >= len(p.tokens) || p.tokens[p.current].Type == lexer.TOKEN_EOF
}

// error records a parse error
func (p *Parser) error(token lexer.Token, message string) {
	p.errors = append(p.errors, NewParseError(message, token))
}

// skipLine consumes tokens up to and including the next NEWLINE
func (p *Parser) skipLine() {
	for !p.isAtEnd() && !p.check(lexer.TOKEN_NEWLINE) {
		p.advance()
	}
	p.match(lexer.TOKEN_NEWLINE)
}

// skipParens consumes a balanced "( ... )" group
func (p *Parser) skipParens() {
	depth := 0
	for !p.isAtEnd() {
		tok := p.advance()
		switch tok.Type {
		case lexer.TOKEN_LPAREN:
			depth++
		case lexer.TOKEN_RPAREN:
			depth--
			if depth <= 0 {
				return
			}
		}
	}
}

// skipFunction recovers from a broken function header by skipping to the
// '}' that closes its body
func (p *Parser) skipFunction() {
	p.skipLine()
	for !p.isAtEnd() {
		if p.match(lexer.TOKEN_RBRACE) {
			p.skipLine()
			return
		}
		p.skipLine()
	}
}

// nestingDelta tracks bracket depth across instruction operands
func nestingDelta(tok lexer.Token) int {
	switch tok.Type {
	case lexer.TOKEN_LPAREN, lexer.TOKEN_LBRACKET, lexer.TOKEN_LBRACE, lexer.TOKEN_LT, lexer.TOKEN_MD_OPEN:
		return 1
	case lexer.TOKEN_RPAREN, lexer.TOKEN_RBRACKET, lexer.TOKEN_RBRACE, lexer.TOKEN_GT:
		return -1
	}
	return 0
}

// stripKeywords drops attribute and linkage keywords (with their arguments)
// and attribute group references
func stripKeywords(tokens []lexer.Token) []lexer.Token {
	out := make([]lexer.Token, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.Type == lexer.TOKEN_ATTR_GROUP {
			continue
		}
		if tok.Type != lexer.TOKEN_IDENTIFIER || !skippedKeywords[tok.Lexeme] {
			out = append(out, tok)
			continue
		}
		// align 8, dereferenceable(16), byval(%struct.s)
		if i+1 < len(tokens) && tokens[i+1].Type == lexer.TOKEN_INT_LITERAL {
			i++
		} else if i+1 < len(tokens) && tokens[i+1].Type == lexer.TOKEN_LPAREN {
			depth := 0
			for i++; i < len(tokens); i++ {
				depth += nestingDelta(tokens[i])
				if depth == 0 {
					break
				}
			}
		}
	}
	return out
}

// joinTokens rebuilds operand text with conventional spacing
func joinTokens(tokens []lexer.Token) string {
	var sb strings.Builder
	for i, tok := range tokens {
		if i > 0 && needsSpace(tokens[i-1], tok) {
			sb.WriteByte(' ')
		}
		sb.WriteString(tok.Lexeme)
	}
	return sb.String()
}

func needsSpace(prev, tok lexer.Token) bool {
	switch tok.Type {
	case lexer.TOKEN_COMMA, lexer.TOKEN_RPAREN, lexer.TOKEN_RBRACKET, lexer.TOKEN_GT, lexer.TOKEN_STAR:
		return false
	case lexer.TOKEN_LPAREN:
		if prev.Type == lexer.TOKEN_GLOBAL || prev.Type == lexer.TOKEN_METADATA {
			return false
		}
	}
	switch prev.Type {
	case lexer.TOKEN_LPAREN, lexer.TOKEN_LBRACKET, lexer.TOKEN_LT, lexer.TOKEN_MD_OPEN:
		return false
	}
	return true
}
