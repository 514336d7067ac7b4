package parser

import (
	"strconv"

	"github.com/cmm-lang/cmmc/pkg/ast"
	"github.com/cmm-lang/cmmc/pkg/config"
	"github.com/cmm-lang/cmmc/pkg/token"
)

// Expression Parsing
//
// Lowest to highest: || , && , == != , < <= > >= , + - , * / % , unary.
// Every binary level is left associative.
func (p *Parser) getBinaryOpPrecedence(tok token.Token) int {
	if tok.Type != token.Operator {
		return -1
	}
	switch tok.Value {
	case "*", "/":
		return 6
	case "%":
		if p.cfg.IsFeatureEnabled(config.FeatModOp) {
			return 6
		}
		return -1
	case "+", "-":
		return 5
	case "<", "<=", ">", ">=":
		return 4
	case "==", "!=":
		return 3
	case "&&":
		return 2
	case "||":
		return 1
	default:
		return -1
	}
}

func (p *Parser) parseExpr() *ast.Node {
	return p.parseBinaryExpr(1)
}

func (p *Parser) parseBinaryExpr(minPrec int) *ast.Node {
	left := p.parseUnaryExpr()
	for {
		prec := p.getBinaryOpPrecedence(p.current)
		if prec < minPrec {
			break
		}
		opTok := p.advance()
		right := p.parseBinaryExpr(prec + 1)
		left = ast.NewBinaryOp(opTok, opTok.Value, left, right)
	}
	return left
}

func (p *Parser) parseUnaryExpr() *ast.Node {
	tok := p.current
	if op, ok := p.matchPunct("!", "-", "+"); ok {
		operand := p.parseUnaryExpr()
		return ast.NewUnaryOp(tok, op, operand)
	}
	return p.parsePrimaryExpr()
}

func (p *Parser) parsePrimaryExpr() *ast.Node {
	tok := p.current
	switch {
	case p.match(token.Number):
		return ast.NewNumber(tok, tok.Value)
	case p.match(token.String):
		return ast.NewStringLit(tok, tok.Value[1:len(tok.Value)-1])
	case p.check(token.Char) && p.cfg.IsFeatureEnabled(config.FeatCharLiterals):
		p.advance()
		return ast.NewNumber(tok, strconv.Itoa(charCode(tok.Value)))
	case p.match(token.Ident):
		if p.checkPunct("(") {
			return p.parseCallArgs(tok)
		}
		return ast.NewIdent(tok, tok.Value)
	case p.checkPunct("("):
		p.advance()
		expr := p.parseExpr()
		p.expectPunct(")", "after expression")
		return expr
	}
	p.errorf(tok, "Expected an expression (unary operator, number, string, identifier, call or parenthesis).")
	return nil
}

func (p *Parser) parseCallArgs(nameTok token.Token) *ast.Node {
	p.expectPunct("(", "after function name")
	var args []*ast.Node
	if !p.checkPunct(")") {
		for {
			args = append(args, p.parseExpr())
			if _, ok := p.matchPunct(","); !ok {
				break
			}
		}
	}
	p.expectPunct(")", "after function arguments")
	return ast.NewFuncCall(nameTok, nameTok.Value, args)
}

// charCode decodes a lexed character literal such as 'a' or '\n'.
func charCode(lit string) int {
	body := lit[1 : len(lit)-1]
	if body[0] != '\\' {
		return int(body[0])
	}
	escapes := map[byte]int{
		'n': '\n', 't': '\t', 'r': '\r', '0': 0, '\\': '\\',
		'\'': '\'', '"': '"', 'a': '\a', 'b': '\b', 'f': '\f', 'v': '\v',
	}
	if v, ok := escapes[body[1]]; ok {
		return v
	}
	return int(body[1])
}
