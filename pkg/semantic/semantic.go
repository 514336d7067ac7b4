package semantic

import (
	"fmt"

	"github.com/cmm-lang/cmmc/pkg/ast"
	"github.com/cmm-lang/cmmc/pkg/config"
	"github.com/cmm-lang/cmmc/pkg/token"
)

const errPrefix = "Erro Semântico: "

// Warning is a non-fatal finding. Only warnings enabled in the config are kept.
type Warning struct {
	Kind    config.Warning
	Tok     token.Token
	Message string
}

type Scope struct {
	Name    string
	Symbols map[string]token.Token
}

// Analyzer checks declarations, uses and loop control over a parsed program.
// Each Analyze call starts from a clean state, so an Analyzer may be reused.
type Analyzer struct {
	scopes       []*Scope
	errors       []string
	warnings     []Warning
	blockCounter int
	loopDepth    int
	switchDepth  int
	cfg          *config.Config
}

func NewAnalyzer(cfg *config.Config) *Analyzer {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Analyzer{cfg: cfg}
}

// Analyze runs a fresh Analyzer with the default configuration.
func Analyze(program *ast.Node) []string {
	return NewAnalyzer(nil).Analyze(program)
}

// Analyze walks the whole program and returns every diagnostic found, in
// source order. An empty result means the program is valid.
func (a *Analyzer) Analyze(program *ast.Node) []string {
	a.scopes = nil
	a.errors = nil
	a.warnings = nil
	a.blockCounter = 0
	a.enterScope("global")
	a.visitStmt(program)
	a.exitScope()
	return a.errors
}

func (a *Analyzer) Warnings() []Warning { return a.warnings }

func (a *Analyzer) errorf(format string, args ...interface{}) {
	a.errors = append(a.errors, errPrefix+fmt.Sprintf(format, args...))
}

func (a *Analyzer) warn(kind config.Warning, tok token.Token, format string, args ...interface{}) {
	if !a.cfg.IsWarningEnabled(kind) {
		return
	}
	a.warnings = append(a.warnings, Warning{Kind: kind, Tok: tok, Message: fmt.Sprintf(format, args...)})
}

func (a *Analyzer) enterScope(name string) {
	a.scopes = append(a.scopes, &Scope{Name: name, Symbols: make(map[string]token.Token)})
}

func (a *Analyzer) enterBlockScope() {
	a.blockCounter++
	a.enterScope(fmt.Sprintf("block%d", a.blockCounter))
}

func (a *Analyzer) exitScope() { a.scopes = a.scopes[:len(a.scopes)-1] }

func (a *Analyzer) currentScope() *Scope { return a.scopes[len(a.scopes)-1] }

// lookup searches from the innermost scope outwards.
func (a *Analyzer) lookup(name string) (*Scope, bool) {
	for i := len(a.scopes) - 1; i >= 0; i-- {
		if _, ok := a.scopes[i].Symbols[name]; ok {
			return a.scopes[i], true
		}
	}
	return nil, false
}

// declare registers name in the current scope, reporting a redeclaration.
func (a *Analyzer) declare(name string, tok token.Token, what string) {
	scope := a.currentScope()
	if _, exists := scope.Symbols[name]; exists {
		a.errorf("%s '%s' already declared in scope '%s'", what, name, scope.Name)
		return
	}
	if outer, ok := a.lookup(name); ok {
		a.warn(config.WarnShadow, tok, "declaration of '%s' shadows a variable in scope '%s'", name, outer.Name)
	}
	scope.Symbols[name] = tok
}

func (a *Analyzer) checkUse(name string) {
	if _, ok := a.lookup(name); !ok {
		a.errorf("variable '%s' used before declared", name)
	}
}

func (a *Analyzer) visitStmts(stmts []*ast.Node) {
	terminated := false
	for _, stmt := range stmts {
		if terminated && stmt.Type != ast.Empty {
			a.warn(config.WarnUnreachableCode, stmt.Tok, "unreachable code")
			terminated = false
		}
		a.visitStmt(stmt)
		switch stmt.Type {
		case ast.Return, ast.Break, ast.Continue:
			terminated = true
		}
	}
}

// visitBody walks the body of an if/while in its own anonymous scope. A
// block body shares that scope instead of opening a second one.
func (a *Analyzer) visitBody(body *ast.Node, construct string) {
	a.checkEmptyBody(body, construct)
	a.enterBlockScope()
	if body.Type == ast.Block {
		a.visitStmts(body.Data.(ast.BlockNode).Stmts)
	} else {
		a.visitStmt(body)
	}
	a.exitScope()
}

func (a *Analyzer) visitStmt(node *ast.Node) {
	if node == nil {
		return
	}

	switch d := node.Data.(type) {
	case ast.ProgramNode:
		a.visitStmts(d.Stmts)
	case ast.FuncDefNode:
		a.declare(d.Name, node.Tok, "function")
		a.enterScope(d.Name)
		for _, prm := range d.Params {
			a.declare(prm.Name, prm.Tok, "parameter")
		}
		a.visitStmts(d.Body.Data.(ast.BlockNode).Stmts)
		a.exitScope()
	case ast.BlockNode:
		a.enterBlockScope()
		a.visitStmts(d.Stmts)
		a.exitScope()
	case ast.DeclarationNode:
		a.visitExpr(d.Init)
		a.declare(d.Name, node.Tok, "variable")
	case ast.AssignmentNode:
		a.checkUse(d.Name)
		a.visitExpr(d.Expr)
	case ast.IfNode:
		a.visitExpr(d.Cond)
		a.visitBody(d.Then, "if")
		if d.Else != nil {
			a.visitBody(d.Else, "else")
		}
	case ast.WhileNode:
		a.visitExpr(d.Cond)
		a.loopDepth++
		a.visitBody(d.Body, "while")
		a.loopDepth--
	case ast.ForNode:
		a.loopDepth++
		a.enterBlockScope()
		a.visitStmt(d.Init)
		a.visitExpr(d.Cond)
		a.visitStmt(d.Post)
		a.checkEmptyBody(d.Body, "for")
		if d.Body.Type == ast.Block {
			a.visitStmts(d.Body.Data.(ast.BlockNode).Stmts)
		} else {
			a.visitStmt(d.Body)
		}
		a.exitScope()
		a.loopDepth--
	case ast.SwitchNode:
		a.visitSwitch(d)
	case ast.BreakNode:
		if a.loopDepth == 0 && a.switchDepth == 0 {
			a.errorf("'break' used outside a loop")
		}
	case ast.ContinueNode:
		if a.loopDepth == 0 {
			a.errorf("'continue' used outside a loop")
		}
	case ast.ReturnNode:
		a.visitExpr(d.Expr)
	case ast.ExprStmtNode:
		a.visitExpr(d.Expr)
	case ast.EmptyNode:
	default:
		if node.Type.IsExpression() {
			a.visitExpr(node)
		}
	}
}

func (a *Analyzer) checkEmptyBody(body *ast.Node, construct string) {
	if body.Type == ast.Empty {
		a.warn(config.WarnExtra, body.Tok, "suggest braces around empty body in '%s' statement", construct)
	}
}

func (a *Analyzer) visitSwitch(d ast.SwitchNode) {
	a.visitExpr(d.Expr)
	a.switchDepth++
	a.enterBlockScope()
	for i, c := range d.Cases {
		cd := c.Data.(ast.CaseNode)
		a.visitExpr(cd.Value)
		a.visitStmts(cd.Stmts)
		hasNext := i+1 < len(d.Cases) || d.HasDefault
		if hasNext && len(cd.Stmts) > 0 && !endsControl(cd.Stmts) {
			a.warn(config.WarnFallthrough, c.Tok, "case falls through into the next label")
		}
	}
	a.visitStmts(d.Default)
	a.exitScope()
	a.switchDepth--
}

func endsControl(stmts []*ast.Node) bool {
	switch stmts[len(stmts)-1].Type {
	case ast.Break, ast.Return, ast.Continue:
		return true
	}
	return false
}

func (a *Analyzer) visitExpr(node *ast.Node) {
	if node == nil {
		return
	}

	switch d := node.Data.(type) {
	case ast.NumberNode, ast.StringLitNode:
	case ast.IdentNode:
		a.checkUse(d.Name)
	case ast.UnaryOpNode:
		a.visitExpr(d.Expr)
	case ast.BinaryOpNode:
		a.visitExpr(d.Left)
		a.visitExpr(d.Right)
	case ast.FuncCallNode:
		for _, arg := range d.Args {
			a.visitExpr(arg)
		}
	default:
		if node.Type.IsStatement() {
			a.visitStmt(node)
		}
	}
}
