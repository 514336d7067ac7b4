package parser

import (
	"fmt"

	"github.com/cmm-lang/cmmc/pkg/ast"
	"github.com/cmm-lang/cmmc/pkg/config"
	"github.com/cmm-lang/cmmc/pkg/token"
)

// SyntaxError is the first grammar violation found. Parsing stops there.
type SyntaxError struct {
	Message string
	Tok     token.Token
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("Linha %d, Coluna %d: %s (Token: %s '%s')",
		e.Tok.Line, e.Tok.Column, e.Message, e.Tok.Type, e.Tok.Value)
}

// bailout carries a SyntaxError up the recursive descent to Parse.
type bailout struct{ err *SyntaxError }

// Parser holds the state for the parsing process
type Parser struct {
	tokens  []token.Token
	pos     int
	current token.Token
	eof     token.Token
	cfg     *config.Config
}

// NewParser creates and initializes a new Parser from a token stream. The
// stream does not need a trailing EOF token.
func NewParser(tokens []token.Token, cfg *config.Config) *Parser {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	p := &Parser{tokens: tokens, cfg: cfg, eof: token.Token{Type: token.EOF, Line: 1, Column: 1}}
	if n := len(tokens); n > 0 {
		last := tokens[n-1]
		if last.Type == token.EOF {
			p.tokens = tokens[:n-1]
			p.eof = last
		} else {
			p.eof.Line, p.eof.Column = last.Line, last.Column+last.Len
		}
	}
	p.current = p.at(0)
	return p
}

// ParseProgram parses tokens with the default configuration.
func ParseProgram(tokens []token.Token) (*ast.Node, error) {
	return NewParser(tokens, nil).Parse()
}

// Parse builds the Program node. The returned error, if any, is a *SyntaxError.
func (p *Parser) Parse() (prog *ast.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			prog, err = nil, b.err
		}
	}()

	tok := p.current
	var stmts []*ast.Node
	for !p.check(token.EOF) {
		stmts = append(stmts, p.parseStmt())
	}
	return ast.NewProgram(tok, stmts), nil
}

// Parser helpers
func (p *Parser) at(i int) token.Token {
	if i < len(p.tokens) {
		return p.tokens[i]
	}
	return p.eof
}

func (p *Parser) peek() token.Token { return p.at(p.pos + 1) }

func (p *Parser) advance() token.Token {
	prev := p.current
	if p.pos < len(p.tokens) {
		p.pos++
	}
	p.current = p.at(p.pos)
	return prev
}

func (p *Parser) check(tokType token.Type) bool { return p.current.Type == tokType }

func (p *Parser) checkPunct(value string) bool { return p.current.Is(value) }

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) matchPunct(values ...string) (string, bool) {
	for _, v := range values {
		if p.current.Is(v) {
			p.advance()
			return v, true
		}
	}
	return "", false
}

func (p *Parser) expect(tokType token.Type, message string) token.Token {
	if p.check(tokType) {
		return p.advance()
	}
	p.errorf(p.current, "%s", message)
	return token.Token{}
}

func (p *Parser) expectPunct(value, context string) token.Token {
	if p.current.Is(value) {
		return p.advance()
	}
	found := p.current.Value
	if p.check(token.EOF) {
		found = "end of input"
	}
	p.errorf(p.current, "Expected '%s' %s, found '%s'.", value, context, found)
	return token.Token{}
}

func (p *Parser) errorf(tok token.Token, format string, args ...interface{}) {
	panic(bailout{&SyntaxError{Message: fmt.Sprintf(format, args...), Tok: tok}})
}

// Statement Parsing
func (p *Parser) parseStmt() *ast.Node {
	tok := p.current

	switch {
	case tok.Type.IsTypeKeyword():
		if p.peek().Type == token.Ident && p.at(p.pos+2).Is("(") {
			return p.parseFuncDef()
		}
		return p.parseDeclaration()
	case p.check(token.Ident):
		if p.peek().Is("(") {
			expr := p.parseExpr()
			p.expectPunct(";", "after function call")
			return ast.NewExprStmt(tok, expr)
		}
		node := p.parseAssignment()
		p.expectPunct(";", "after assignment")
		return node
	case p.match(token.If):
		cond := p.parseParenExpr("if")
		thenStmt := p.parseStmt()
		var elseStmt *ast.Node
		if p.match(token.Else) {
			elseStmt = p.parseStmt()
		}
		return ast.NewIf(tok, cond, thenStmt, elseStmt)
	case p.match(token.While):
		cond := p.parseParenExpr("while")
		body := p.parseStmt()
		return ast.NewWhile(tok, cond, body)
	case p.match(token.For):
		return p.parseFor(tok)
	case p.match(token.Return):
		var expr *ast.Node
		if !p.checkPunct(";") {
			expr = p.parseExpr()
		}
		p.expectPunct(";", "after return statement")
		return ast.NewReturn(tok, expr)
	case p.match(token.Switch):
		return p.parseSwitch(tok)
	case p.match(token.Break):
		p.expectPunct(";", "after 'break'")
		return ast.NewBreak(tok)
	case p.match(token.Continue):
		p.expectPunct(";", "after 'continue'")
		return ast.NewContinue(tok)
	case p.checkPunct("{"):
		return p.parseBlock()
	case p.checkPunct(";"):
		p.advance()
		return ast.NewEmpty(tok)
	}

	p.errorf(tok, "Unexpected token at start of statement.")
	return nil
}

func (p *Parser) parseTypeName(what string) token.Token {
	if !p.current.Type.IsTypeKeyword() {
		p.errorf(p.current, "Expected a type (int|float|char|void) for %s.", what)
	}
	return p.advance()
}

// parseDeclaration parses "Type Identifier ('=' Expr)? ';'".
func (p *Parser) parseDeclaration() *ast.Node {
	typeTok := p.parseTypeName("declaration")
	nameTok := p.expect(token.Ident, "Expected identifier after type in declaration.")
	var init *ast.Node
	if _, ok := p.matchPunct("="); ok {
		init = p.parseExpr()
	}
	p.expectPunct(";", "after declaration")
	return ast.NewDeclaration(nameTok, typeTok.Value, nameTok.Value, init)
}

// parseAssignment parses "Identifier '=' Expr" without the terminator.
func (p *Parser) parseAssignment() *ast.Node {
	nameTok := p.expect(token.Ident, "Expected identifier at start of assignment.")
	p.expectPunct("=", "in assignment")
	expr := p.parseExpr()
	return ast.NewAssignment(nameTok, nameTok.Value, expr)
}

func (p *Parser) parseBlock() *ast.Node {
	tok := p.expectPunct("{", "to start a block")
	var stmts []*ast.Node
	for !p.checkPunct("}") {
		if p.check(token.EOF) {
			p.expectPunct("}", "to close block")
		}
		stmts = append(stmts, p.parseStmt())
	}
	p.advance()
	return ast.NewBlock(tok, stmts)
}

func (p *Parser) parseParenExpr(construct string) *ast.Node {
	p.expectPunct("(", "after '"+construct+"'")
	expr := p.parseExpr()
	p.expectPunct(")", "after "+construct+" condition")
	return expr
}

// parseFor parses "'(' (Declaration | Assignment ';' | ';') Expr? ';' Expr? ')' Stmt".
func (p *Parser) parseFor(tok token.Token) *ast.Node {
	p.expectPunct("(", "after 'for'")

	var init *ast.Node
	switch {
	case p.current.Type.IsTypeKeyword():
		init = p.parseDeclaration()
	case p.check(token.Ident):
		init = p.parseAssignment()
		p.expectPunct(";", "after for initializer")
	default:
		p.expectPunct(";", "after empty for initializer")
	}

	var cond *ast.Node
	if !p.checkPunct(";") {
		cond = p.parseExpr()
	}
	p.expectPunct(";", "after for condition")

	var post *ast.Node
	if !p.checkPunct(")") {
		postTok := p.current
		if p.check(token.Ident) && p.peek().Is("=") {
			post = p.parseAssignment()
		} else {
			post = ast.NewExprStmt(postTok, p.parseExpr())
		}
	}
	p.expectPunct(")", "after for clauses")

	body := p.parseStmt()
	return ast.NewFor(tok, init, cond, post, body)
}

// parseSwitch parses "'(' Expr ')' '{' Case* Default? '}'". Case and default
// bodies run up to the next label or the closing brace.
func (p *Parser) parseSwitch(tok token.Token) *ast.Node {
	expr := p.parseParenExpr("switch")
	p.expectPunct("{", "to open switch body")

	var cases []*ast.Node
	for p.check(token.Case) {
		caseTok := p.advance()
		value := p.parseExpr()
		p.expectPunct(":", "after case value")
		cases = append(cases, ast.NewCase(caseTok, value, p.parseLabelBody(true)))
	}

	var def []*ast.Node
	hasDefault := false
	if p.match(token.Default) {
		hasDefault = true
		p.expectPunct(":", "after 'default'")
		def = p.parseLabelBody(false)
	}

	p.expectPunct("}", "to close switch body")
	return ast.NewSwitch(tok, expr, cases, def, hasDefault)
}

func (p *Parser) parseLabelBody(stopAtDefault bool) []*ast.Node {
	var stmts []*ast.Node
	for !p.checkPunct("}") && !p.check(token.Case) && !(stopAtDefault && p.check(token.Default)) {
		if p.check(token.EOF) {
			p.expectPunct("}", "to close switch body")
		}
		stmts = append(stmts, p.parseStmt())
	}
	return stmts
}

// parseFuncDef parses "Type Identifier '(' ParamList? ')' Block".
func (p *Parser) parseFuncDef() *ast.Node {
	typeTok := p.advance()
	nameTok := p.expect(token.Ident, "Expected function name.")
	p.expectPunct("(", "after function name")

	var params []ast.Param
	if !p.checkPunct(")") {
		for {
			ptype := p.parseTypeName("parameter")
			pname := p.expect(token.Ident, "Expected parameter name.")
			params = append(params, ast.Param{Type: ptype.Value, Name: pname.Value, Tok: pname})
			if _, ok := p.matchPunct(","); !ok {
				break
			}
		}
	}
	p.expectPunct(")", "after parameters")

	body := p.parseBlock()
	return ast.NewFuncDef(nameTok, typeTok.Value, nameTok.Value, params, body)
}
