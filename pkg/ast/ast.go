// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import (
	"github.com/cmm-lang/cmmc/pkg/token"
)

// NodeType defines the kind of a node in the AST
type NodeType int

// Node types enum. The set is closed: every walker switches over all of it.
const (
	// Expressions
	Number NodeType = iota
	StringLit
	Ident
	UnaryOp
	BinaryOp
	FuncCall

	// Statements
	Program
	FuncDef
	Block
	Declaration
	Assignment
	If
	While
	For
	Switch
	Case
	Break
	Continue
	Return
	ExprStmt
	Empty
)

var nodeTypeNames = [...]string{
	Number: "Number", StringLit: "StringLiteral", Ident: "Identifier",
	UnaryOp: "UnaryOp", BinaryOp: "BinaryOp", FuncCall: "FunctionCall",
	Program: "Program", FuncDef: "FunctionDef", Block: "Block",
	Declaration: "Declaration", Assignment: "Assignment", If: "If",
	While: "While", For: "For", Switch: "Switch", Case: "Case",
	Break: "Break", Continue: "Continue", Return: "Return",
	ExprStmt: "ExpressionStatement", Empty: "EmptyStatement",
}

func (t NodeType) String() string {
	if t >= 0 && int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return "Unknown"
}

// IsExpression reports whether nodes of this type produce a value.
func (t NodeType) IsExpression() bool { return t >= Number && t <= FuncCall }

// IsStatement reports whether t may appear in a statement list. Case is a
// child container of Switch and is not a statement.
func (t NodeType) IsStatement() bool { return t >= Program && t <= Empty && t != Case }

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	Type NodeType
	Tok  token.Token
	Data interface{}
}

// Param is a (type, name) pair owned by a FuncDefNode.
type Param struct {
	Type string
	Name string
	Tok  token.Token
}

// --- Node Data Structs ---
type NumberNode struct{ Text string }
type StringLitNode struct{ Value string }
type IdentNode struct{ Name string }
type UnaryOpNode struct {
	Op   string
	Expr *Node
}
type BinaryOpNode struct {
	Op          string
	Left, Right *Node
}
type FuncCallNode struct {
	Name string
	Args []*Node
}

type ProgramNode struct{ Stmts []*Node }
type FuncDefNode struct {
	ReturnType string
	Name       string
	Params     []Param
	Body       *Node
}
type BlockNode struct{ Stmts []*Node }
type DeclarationNode struct {
	VarType string
	Name    string
	Init    *Node // nil when the declaration has no initializer
}
type AssignmentNode struct {
	Name string
	Expr *Node
}
type IfNode struct{ Cond, Then, Else *Node }
type WhileNode struct{ Cond, Body *Node }

// ForNode's Init, Cond and Post are each optional. Post is an Assignment or an ExprStmt.
type ForNode struct{ Init, Cond, Post, Body *Node }
type SwitchNode struct {
	Expr       *Node
	Cases      []*Node
	Default    []*Node
	HasDefault bool
}
type CaseNode struct {
	Value *Node
	Stmts []*Node
}
type BreakNode struct{}
type ContinueNode struct{}
type ReturnNode struct{ Expr *Node }
type ExprStmtNode struct{ Expr *Node }
type EmptyNode struct{}

// --- Node Constructors ---

func newNode(tok token.Token, nodeType NodeType, data interface{}) *Node {
	return &Node{Type: nodeType, Tok: tok, Data: data}
}

func NewNumber(tok token.Token, text string) *Node {
	return newNode(tok, Number, NumberNode{Text: text})
}
func NewStringLit(tok token.Token, value string) *Node {
	return newNode(tok, StringLit, StringLitNode{Value: value})
}
func NewIdent(tok token.Token, name string) *Node {
	return newNode(tok, Ident, IdentNode{Name: name})
}
func NewUnaryOp(tok token.Token, op string, expr *Node) *Node {
	return newNode(tok, UnaryOp, UnaryOpNode{Op: op, Expr: expr})
}
func NewBinaryOp(tok token.Token, op string, left, right *Node) *Node {
	return newNode(tok, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right})
}
func NewFuncCall(tok token.Token, name string, args []*Node) *Node {
	return newNode(tok, FuncCall, FuncCallNode{Name: name, Args: args})
}
func NewProgram(tok token.Token, stmts []*Node) *Node {
	return newNode(tok, Program, ProgramNode{Stmts: stmts})
}
func NewFuncDef(tok token.Token, returnType, name string, params []Param, body *Node) *Node {
	return newNode(tok, FuncDef, FuncDefNode{ReturnType: returnType, Name: name, Params: params, Body: body})
}
func NewBlock(tok token.Token, stmts []*Node) *Node {
	return newNode(tok, Block, BlockNode{Stmts: stmts})
}
func NewDeclaration(tok token.Token, varType, name string, init *Node) *Node {
	return newNode(tok, Declaration, DeclarationNode{VarType: varType, Name: name, Init: init})
}
func NewAssignment(tok token.Token, name string, expr *Node) *Node {
	return newNode(tok, Assignment, AssignmentNode{Name: name, Expr: expr})
}
func NewIf(tok token.Token, cond, then, els *Node) *Node {
	return newNode(tok, If, IfNode{Cond: cond, Then: then, Else: els})
}
func NewWhile(tok token.Token, cond, body *Node) *Node {
	return newNode(tok, While, WhileNode{Cond: cond, Body: body})
}
func NewFor(tok token.Token, init, cond, post, body *Node) *Node {
	return newNode(tok, For, ForNode{Init: init, Cond: cond, Post: post, Body: body})
}
func NewSwitch(tok token.Token, expr *Node, cases, def []*Node, hasDefault bool) *Node {
	return newNode(tok, Switch, SwitchNode{Expr: expr, Cases: cases, Default: def, HasDefault: hasDefault})
}
func NewCase(tok token.Token, value *Node, stmts []*Node) *Node {
	return newNode(tok, Case, CaseNode{Value: value, Stmts: stmts})
}
func NewBreak(tok token.Token) *Node {
	return newNode(tok, Break, BreakNode{})
}
func NewContinue(tok token.Token) *Node {
	return newNode(tok, Continue, ContinueNode{})
}
func NewReturn(tok token.Token, expr *Node) *Node {
	return newNode(tok, Return, ReturnNode{Expr: expr})
}
func NewExprStmt(tok token.Token, expr *Node) *Node {
	return newNode(tok, ExprStmt, ExprStmtNode{Expr: expr})
}
func NewEmpty(tok token.Token) *Node {
	return newNode(tok, Empty, EmptyNode{})
}

// Walk calls visitor for node and then, depth first, for each of its
// children in source order. Nil children are skipped.
func Walk(node *Node, visitor func(n *Node)) {
	if node == nil {
		return
	}
	visitor(node)

	switch d := node.Data.(type) {
	case UnaryOpNode:
		Walk(d.Expr, visitor)
	case BinaryOpNode:
		Walk(d.Left, visitor)
		Walk(d.Right, visitor)
	case FuncCallNode:
		for _, arg := range d.Args {
			Walk(arg, visitor)
		}
	case ProgramNode:
		for _, s := range d.Stmts {
			Walk(s, visitor)
		}
	case FuncDefNode:
		Walk(d.Body, visitor)
	case BlockNode:
		for _, s := range d.Stmts {
			Walk(s, visitor)
		}
	case DeclarationNode:
		Walk(d.Init, visitor)
	case AssignmentNode:
		Walk(d.Expr, visitor)
	case IfNode:
		Walk(d.Cond, visitor)
		Walk(d.Then, visitor)
		Walk(d.Else, visitor)
	case WhileNode:
		Walk(d.Cond, visitor)
		Walk(d.Body, visitor)
	case ForNode:
		Walk(d.Init, visitor)
		Walk(d.Cond, visitor)
		Walk(d.Post, visitor)
		Walk(d.Body, visitor)
	case SwitchNode:
		Walk(d.Expr, visitor)
		for _, c := range d.Cases {
			Walk(c, visitor)
		}
		for _, s := range d.Default {
			Walk(s, visitor)
		}
	case CaseNode:
		Walk(d.Value, visitor)
		for _, s := range d.Stmts {
			Walk(s, visitor)
		}
	case ReturnNode:
		Walk(d.Expr, visitor)
	case ExprStmtNode:
		Walk(d.Expr, visitor)
	}
}
