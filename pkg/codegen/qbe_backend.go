package codegen

import (
	"fmt"
	"strings"

	"github.com/cmm-lang/cmmc/pkg/ast"
	"github.com/cmm-lang/cmmc/pkg/config"
)

// qbeBackend lowers the AST straight to QBE IL. Every local lives in a stack
// slot, so no phi nodes are needed except for short-circuit operators.
type qbeBackend struct {
	out        *strings.Builder
	cfg        *config.Config
	tempCount  int
	labelCount int
	block      string
	terminated bool
	isVoid     bool
	loops      []jumpTarget
	switches   []string
}

func NewQBEBackend() Backend { return &qbeBackend{} }

var qbeBinOps = map[string]string{
	"+": "add", "-": "sub", "*": "mul", "/": "div", "%": "rem",
	"<": "csltw", "<=": "cslew", ">": "csgtw", ">=": "csgew", "==": "ceqw", "!=": "cnew",
}

// GenerateIR returns the QBE IL for prog.
func (b *qbeBackend) GenerateIR(prog *ast.Node, cfg *config.Config) (ir string, err error) {
	defer recoverBailout(&err)

	if cfg == nil {
		cfg = config.NewConfig()
	}
	var out strings.Builder
	b.out, b.cfg = &out, cfg
	b.tempCount, b.labelCount = 0, 0

	p, ok := prog.Data.(ast.ProgramNode)
	if !ok {
		fatalf(prog.Tok, "expected a program, got %s", prog.Type)
	}
	for _, stmt := range p.Stmts {
		switch stmt.Type {
		case ast.FuncDef:
			b.genFunc(stmt)
		case ast.Empty:
		default:
			fatalf(stmt.Tok, "%s is not supported outside a function", stmt.Type)
		}
	}
	return out.String(), nil
}

func (b *qbeBackend) newTemp() string {
	b.tempCount++
	return fmt.Sprintf("%%t%d", b.tempCount)
}

func (b *qbeBackend) newLabel(prefix string) string {
	b.labelCount++
	return fmt.Sprintf("%s%d", prefix, b.labelCount)
}

// emit writes one instruction. Code after a jump or return gets a fresh
// block, since QBE blocks must end in exactly one terminator.
func (b *qbeBackend) emit(format string, args ...interface{}) {
	if b.terminated {
		b.label(b.newLabel("dead"))
	}
	b.out.WriteString("\t")
	fmt.Fprintf(b.out, format, args...)
	b.out.WriteString("\n")
}

func (b *qbeBackend) terminate(format string, args ...interface{}) {
	b.emit(format, args...)
	b.terminated = true
}

// jump closes the current block with a jump to name unless it already ended.
func (b *qbeBackend) jump(name string) {
	if !b.terminated {
		b.terminate("jmp @%s", name)
	}
}

func (b *qbeBackend) label(name string) {
	fmt.Fprintf(b.out, "@%s\n", name)
	b.block = name
	b.terminated = false
}

func localName(name string) string { return "%v." + name }

func (b *qbeBackend) genFunc(node *ast.Node) {
	d := node.Data.(ast.FuncDefNode)
	b.isVoid = d.ReturnType == "void"
	b.loops = nil
	b.switches = nil

	retType := " w"
	if b.isVoid {
		retType = ""
	}
	params := make([]string, len(d.Params))
	for i, prm := range d.Params {
		params[i] = "w %p." + prm.Name
	}
	fmt.Fprintf(b.out, "\nexport function%s $%s(%s) {\n", retType, d.Name, strings.Join(params, ", "))
	b.label("start")

	for _, name := range collectLocals(d) {
		b.emit("%s =l alloc4 4", localName(name))
	}
	for _, prm := range d.Params {
		b.emit("storew %%p.%s, %s", prm.Name, localName(prm.Name))
	}

	b.genStmts(d.Body.Data.(ast.BlockNode).Stmts)
	if !b.terminated {
		b.genRet(nil)
	}
	b.out.WriteString("}\n")
}

// collectLocals lists every name a function reads or writes, parameters
// first, in order of first appearance.
func collectLocals(d ast.FuncDefNode) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, prm := range d.Params {
		add(prm.Name)
	}
	ast.Walk(d.Body, func(n *ast.Node) {
		switch nd := n.Data.(type) {
		case ast.DeclarationNode:
			add(nd.Name)
		case ast.AssignmentNode:
			add(nd.Name)
		case ast.IdentNode:
			add(nd.Name)
		}
	})
	return names
}

func (b *qbeBackend) genRet(value *ast.Node) {
	switch {
	case b.isVoid:
		if value != nil {
			b.genExpr(value)
		}
		b.terminate("ret")
	case value == nil:
		b.terminate("ret 0")
	default:
		b.terminate("ret %s", b.genExpr(value))
	}
}

func (b *qbeBackend) genStmts(stmts []*ast.Node) {
	for _, s := range stmts {
		b.genStmt(s)
	}
}

func (b *qbeBackend) genStmt(node *ast.Node) {
	if node == nil {
		return
	}

	switch d := node.Data.(type) {
	case ast.BlockNode:
		b.genStmts(d.Stmts)
	case ast.DeclarationNode:
		if d.Init != nil {
			b.emit("storew %s, %s", b.genExpr(d.Init), localName(d.Name))
		}
	case ast.AssignmentNode:
		b.emit("storew %s, %s", b.genExpr(d.Expr), localName(d.Name))
	case ast.IfNode:
		thenLabel := b.newLabel("if_then")
		elseLabel := b.newLabel("if_else")
		endLabel := b.newLabel("if_end")
		b.terminate("jnz %s, @%s, @%s", b.genExpr(d.Cond), thenLabel, elseLabel)
		b.label(thenLabel)
		b.genStmt(d.Then)
		b.jump(endLabel)
		b.label(elseLabel)
		b.genStmt(d.Else)
		b.label(endLabel)
	case ast.WhileNode:
		startLabel := b.newLabel("while_start")
		bodyLabel := b.newLabel("while_body")
		endLabel := b.newLabel("while_end")
		b.label(startLabel)
		b.terminate("jnz %s, @%s, @%s", b.genExpr(d.Cond), bodyLabel, endLabel)
		b.label(bodyLabel)
		b.genBody(d.Body, jumpTarget{continueLabel: startLabel, breakLabel: endLabel})
		b.jump(startLabel)
		b.label(endLabel)
	case ast.ForNode:
		startLabel := b.newLabel("for_start")
		bodyLabel := b.newLabel("for_body")
		nextLabel := b.newLabel("for_next")
		endLabel := b.newLabel("for_end")
		b.genStmt(d.Init)
		b.label(startLabel)
		if d.Cond != nil {
			b.terminate("jnz %s, @%s, @%s", b.genExpr(d.Cond), bodyLabel, endLabel)
		}
		b.label(bodyLabel)
		b.genBody(d.Body, jumpTarget{continueLabel: nextLabel, breakLabel: endLabel})
		b.label(nextLabel)
		b.genStmt(d.Post)
		b.jump(startLabel)
		b.label(endLabel)
	case ast.SwitchNode:
		b.genSwitch(d)
	case ast.BreakNode:
		switch {
		case len(b.loops) > 0:
			b.terminate("jmp @%s", b.loops[len(b.loops)-1].breakLabel)
		case len(b.switches) > 0:
			b.terminate("jmp @%s", b.switches[len(b.switches)-1])
		default:
			fatalf(node.Tok, "'break' outside a loop or switch")
		}
	case ast.ContinueNode:
		if len(b.loops) == 0 {
			fatalf(node.Tok, "'continue' outside a loop")
		}
		b.terminate("jmp @%s", b.loops[len(b.loops)-1].continueLabel)
	case ast.ReturnNode:
		b.genRet(d.Expr)
	case ast.ExprStmtNode:
		b.genExpr(d.Expr)
	case ast.EmptyNode:
	default:
		fatalf(node.Tok, "no code generation rule for %s", node.Type)
	}
}

func (b *qbeBackend) genBody(body *ast.Node, target jumpTarget) {
	b.loops = append(b.loops, target)
	b.genStmt(body)
	b.loops = b.loops[:len(b.loops)-1]
}

func (b *qbeBackend) genSwitch(d ast.SwitchNode) {
	endLabel := b.newLabel("switch_end")
	value := b.genExpr(d.Expr)

	caseLabels := make([]string, len(d.Cases))
	for i, c := range d.Cases {
		caseLabels[i] = b.newLabel("switch_case")
		testLabel := b.newLabel("switch_test")
		eq := b.newTemp()
		b.emit("%s =w ceqw %s, %s", eq, value, b.genExpr(c.Data.(ast.CaseNode).Value))
		b.terminate("jnz %s, @%s, @%s", eq, caseLabels[i], testLabel)
		b.label(testLabel)
	}

	var defaultLabel string
	if d.HasDefault {
		defaultLabel = b.newLabel("switch_default")
		b.terminate("jmp @%s", defaultLabel)
	} else {
		b.terminate("jmp @%s", endLabel)
	}

	b.switches = append(b.switches, endLabel)
	for i, c := range d.Cases {
		b.label(caseLabels[i])
		b.genStmts(c.Data.(ast.CaseNode).Stmts)
	}
	if d.HasDefault {
		b.label(defaultLabel)
		b.genStmts(d.Default)
	}
	b.switches = b.switches[:len(b.switches)-1]
	b.label(endLabel)
}

// genExpr returns the QBE value (a temporary or an integer constant) holding
// the result of node.
func (b *qbeBackend) genExpr(node *ast.Node) string {
	switch d := node.Data.(type) {
	case ast.NumberNode:
		if strings.Contains(d.Text, ".") {
			fatalf(node.Tok, "floating point literal '%s' is not supported", d.Text)
		}
		return d.Text
	case ast.StringLitNode:
		fatalf(node.Tok, "string literals are not supported")
	case ast.IdentNode:
		t := b.newTemp()
		b.emit("%s =w loadw %s", t, localName(d.Name))
		return t
	case ast.UnaryOpNode:
		v := b.genExpr(d.Expr)
		switch d.Op {
		case "+":
			return v
		case "-":
			t := b.newTemp()
			b.emit("%s =w neg %s", t, v)
			return t
		case "!":
			t := b.newTemp()
			b.emit("%s =w ceqw %s, 0", t, v)
			return t
		}
		fatalf(node.Tok, "unsupported unary operator '%s'", d.Op)
	case ast.BinaryOpNode:
		if d.Op == "&&" || d.Op == "||" {
			if b.cfg.IsFeatureEnabled(config.FeatShortCircuit) {
				return b.genShortCircuit(d)
			}
			return b.genLogical(d)
		}
		op, ok := qbeBinOps[d.Op]
		if !ok {
			fatalf(node.Tok, "unsupported binary operator '%s'", d.Op)
		}
		l := b.genExpr(d.Left)
		r := b.genExpr(d.Right)
		t := b.newTemp()
		b.emit("%s =w %s %s, %s", t, op, l, r)
		return t
	case ast.FuncCallNode:
		if len(d.Args) > maxRegArgs {
			fatalf(node.Tok, "call to '%s' passes %d arguments; at most %d are supported", d.Name, len(d.Args), maxRegArgs)
		}
		args := make([]string, len(d.Args))
		for i, arg := range d.Args {
			args[i] = "w " + b.genExpr(arg)
		}
		t := b.newTemp()
		b.emit("%s =w call $%s(%s)", t, d.Name, strings.Join(args, ", "))
		return t
	}
	fatalf(node.Tok, "no code generation rule for %s", node.Type)
	return ""
}

// genLogical evaluates both operands and combines their truth values.
func (b *qbeBackend) genLogical(d ast.BinaryOpNode) string {
	l := b.genExpr(d.Left)
	r := b.genExpr(d.Right)
	lt, rt, t := b.newTemp(), b.newTemp(), b.newTemp()
	b.emit("%s =w cnew %s, 0", lt, l)
	b.emit("%s =w cnew %s, 0", rt, r)
	op := "or"
	if d.Op == "&&" {
		op = "and"
	}
	b.emit("%s =w %s %s, %s", t, op, lt, rt)
	return t
}

func (b *qbeBackend) genShortCircuit(d ast.BinaryOpNode) string {
	isAnd := d.Op == "&&"
	prefix := "or"
	if isAnd {
		prefix = "and"
	}
	rhsLabel := b.newLabel(prefix + "_rhs")
	shortLabel := b.newLabel(prefix + "_short")
	endLabel := b.newLabel(prefix + "_end")

	l := b.genExpr(d.Left)
	if isAnd {
		b.terminate("jnz %s, @%s, @%s", l, rhsLabel, shortLabel)
	} else {
		b.terminate("jnz %s, @%s, @%s", l, shortLabel, rhsLabel)
	}
	b.label(rhsLabel)
	r := b.genExpr(d.Right)
	rt := b.newTemp()
	b.emit("%s =w cnew %s, 0", rt, r)
	rhsEnd := b.block
	b.terminate("jmp @%s", endLabel)
	b.label(shortLabel)
	b.terminate("jmp @%s", endLabel)
	b.label(endLabel)

	shortValue := "1"
	if isAnd {
		shortValue = "0"
	}
	t := b.newTemp()
	b.emit("%s =w phi @%s %s, @%s %s", t, rhsEnd, rt, shortLabel, shortValue)
	return t
}

// GenerateQBE returns the QBE IL for prog without compiling it.
func GenerateQBE(prog *ast.Node, cfg *config.Config) (string, error) {
	return (&qbeBackend{}).GenerateIR(prog, cfg)
}
