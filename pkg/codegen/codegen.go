package codegen

import (
	"fmt"
	"strings"

	"github.com/cmm-lang/cmmc/pkg/ast"
	"github.com/cmm-lang/cmmc/pkg/config"
	"github.com/cmm-lang/cmmc/pkg/token"
)

// maxRegArgs is the number of integer argument registers in the System V ABI.
const maxRegArgs = 6

var (
	argRegs32 = [maxRegArgs]string{"edi", "esi", "edx", "ecx", "r8d", "r9d"}
	argRegs64 = [maxRegArgs]string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}
)

// Error is a fatal code generation failure. The program was accepted by the
// earlier phases but uses a construct this generator cannot emit.
type Error struct {
	Message string
	Tok     token.Token
}

func (e *Error) Error() string {
	return fmt.Sprintf("Linha %d, Coluna %d: %s", e.Tok.Line, e.Tok.Column, e.Message)
}

type bailout struct{ err *Error }

func fatalf(tok token.Token, format string, args ...interface{}) {
	panic(bailout{&Error{Message: fmt.Sprintf(format, args...), Tok: tok}})
}

// recoverBailout turns a bailout panic into *err. Other panics propagate.
func recoverBailout(err *error) {
	if r := recover(); r != nil {
		b, ok := r.(bailout)
		if !ok {
			panic(r)
		}
		*err = b.err
	}
}

// jumpTarget is one enclosing construct that break or continue may leave.
// Switches have no continue label.
type jumpTarget struct {
	continueLabel string
	breakLabel    string
}

// Context holds the state of one generation pass.
type Context struct {
	cfg        *config.Config
	body       *strings.Builder
	labelCount int
	locals     map[string]int
	nextOffset int
	pushDepth  int
	loops      []jumpTarget
	switches   []string
}

func NewContext(cfg *config.Config) *Context {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Context{cfg: cfg}
}

// Generate emits NASM for program with the default configuration.
func Generate(program *ast.Node) (string, error) {
	return NewContext(nil).Generate(program)
}

// Generate emits the whole program. On error nothing is returned, so a
// failing construct never leaves partial output behind.
func (ctx *Context) Generate(program *ast.Node) (asm string, err error) {
	defer recoverBailout(&err)

	ctx.labelCount = 0
	var out strings.Builder
	out.WriteString("section .text\n")
	out.WriteString("global main\n")

	prog, ok := program.Data.(ast.ProgramNode)
	if !ok {
		fatalf(program.Tok, "expected a program, got %s", program.Type)
	}
	for _, stmt := range prog.Stmts {
		switch stmt.Type {
		case ast.FuncDef:
			out.WriteString("\n")
			out.WriteString(ctx.genFunc(stmt))
		case ast.Empty:
		default:
			fatalf(stmt.Tok, "%s is not supported outside a function", stmt.Type)
		}
	}
	return out.String(), nil
}

func (ctx *Context) newLabel(prefix string) string {
	ctx.labelCount++
	return fmt.Sprintf("%s%d", prefix, ctx.labelCount)
}

func (ctx *Context) emit(format string, args ...interface{}) {
	ctx.body.WriteString("    ")
	fmt.Fprintf(ctx.body, format, args...)
	ctx.body.WriteByte('\n')
}

func (ctx *Context) label(name string) { fmt.Fprintf(ctx.body, "%s:\n", name) }

func (ctx *Context) push() {
	ctx.emit("push rax")
	ctx.pushDepth++
}

func (ctx *Context) pop(reg string) {
	ctx.emit("pop %s", reg)
	ctx.pushDepth--
}

// slot returns the frame offset of name, allocating the next 4-byte slot on
// first use.
func (ctx *Context) slot(name string) int {
	if off, ok := ctx.locals[name]; ok {
		return off
	}
	ctx.nextOffset -= 4
	ctx.locals[name] = ctx.nextOffset
	return ctx.nextOffset
}

func (ctx *Context) load(name string) { ctx.emit("mov eax, dword [rbp%d]", ctx.slot(name)) }

func (ctx *Context) store(name string) { ctx.emit("mov dword [rbp%d], eax", ctx.slot(name)) }

func (ctx *Context) epilogue() {
	ctx.emit("mov rsp, rbp")
	ctx.emit("pop rbp")
	ctx.emit("ret")
}

// frameSize is the 16-byte aligned space reserved for locals, at least 16.
func (ctx *Context) frameSize() int {
	size := -ctx.nextOffset
	if size < 16 {
		return 16
	}
	return (size + 15) &^ 15
}

func (ctx *Context) genFunc(node *ast.Node) string {
	d := node.Data.(ast.FuncDefNode)
	if len(d.Params) > maxRegArgs {
		fatalf(node.Tok, "function '%s' has %d parameters; at most %d are supported", d.Name, len(d.Params), maxRegArgs)
	}

	var body strings.Builder
	ctx.body = &body
	ctx.locals = make(map[string]int)
	ctx.nextOffset = 0
	ctx.pushDepth = 0
	ctx.loops = nil
	ctx.switches = nil

	for i, prm := range d.Params {
		ctx.emit("mov dword [rbp%d], %s", ctx.slot(prm.Name), argRegs32[i])
	}
	ctx.genStmts(d.Body.Data.(ast.BlockNode).Stmts)
	ctx.emit("mov eax, 0")
	ctx.epilogue()

	var fn strings.Builder
	fmt.Fprintf(&fn, "%s:\n", d.Name)
	fmt.Fprintf(&fn, "    push rbp\n    mov rbp, rsp\n    sub rsp, %d\n", ctx.frameSize())
	fn.WriteString(body.String())
	return fn.String()
}

func (ctx *Context) genStmts(stmts []*ast.Node) {
	for _, s := range stmts {
		ctx.genStmt(s)
	}
}

func (ctx *Context) genStmt(node *ast.Node) {
	if node == nil {
		return
	}

	switch d := node.Data.(type) {
	case ast.BlockNode:
		ctx.genStmts(d.Stmts)
	case ast.DeclarationNode:
		ctx.slot(d.Name)
		if d.Init != nil {
			ctx.genExpr(d.Init)
			ctx.store(d.Name)
		}
	case ast.AssignmentNode:
		ctx.genExpr(d.Expr)
		ctx.store(d.Name)
	case ast.IfNode:
		elseLabel := ctx.newLabel("if_else")
		endLabel := ctx.newLabel("if_end")
		ctx.genExpr(d.Cond)
		ctx.emit("cmp eax, 0")
		ctx.emit("je %s", elseLabel)
		ctx.genStmt(d.Then)
		ctx.emit("jmp %s", endLabel)
		ctx.label(elseLabel)
		ctx.genStmt(d.Else)
		ctx.label(endLabel)
	case ast.WhileNode:
		startLabel := ctx.newLabel("while_start")
		endLabel := ctx.newLabel("while_end")
		ctx.label(startLabel)
		ctx.genExpr(d.Cond)
		ctx.emit("cmp eax, 0")
		ctx.emit("je %s", endLabel)
		ctx.genBody(d.Body, jumpTarget{continueLabel: startLabel, breakLabel: endLabel})
		ctx.emit("jmp %s", startLabel)
		ctx.label(endLabel)
	case ast.ForNode:
		ctx.genFor(d)
	case ast.SwitchNode:
		ctx.genSwitch(d)
	case ast.BreakNode:
		ctx.emit("jmp %s", ctx.breakLabel(node))
	case ast.ContinueNode:
		if len(ctx.loops) == 0 {
			fatalf(node.Tok, "'continue' outside a loop")
		}
		ctx.emit("jmp %s", ctx.loops[len(ctx.loops)-1].continueLabel)
	case ast.ReturnNode:
		if d.Expr != nil {
			ctx.genExpr(d.Expr)
		}
		ctx.epilogue()
	case ast.ExprStmtNode:
		ctx.genExpr(d.Expr)
	case ast.EmptyNode:
	case ast.FuncDefNode:
		fatalf(node.Tok, "nested function '%s' is not supported", d.Name)
	default:
		fatalf(node.Tok, "no code generation rule for %s", node.Type)
	}
}

func (ctx *Context) genBody(body *ast.Node, target jumpTarget) {
	ctx.loops = append(ctx.loops, target)
	ctx.genStmt(body)
	ctx.loops = ctx.loops[:len(ctx.loops)-1]
}

// breakLabel picks the innermost loop's end while any loop is active and
// falls back to the innermost switch's end otherwise.
func (ctx *Context) breakLabel(node *ast.Node) string {
	if n := len(ctx.loops); n > 0 {
		return ctx.loops[n-1].breakLabel
	}
	if n := len(ctx.switches); n > 0 {
		return ctx.switches[n-1]
	}
	fatalf(node.Tok, "'break' outside a loop or switch")
	return ""
}

func (ctx *Context) genFor(d ast.ForNode) {
	startLabel := ctx.newLabel("for_start")
	nextLabel := ctx.newLabel("for_next")
	endLabel := ctx.newLabel("for_end")

	ctx.genStmt(d.Init)
	ctx.label(startLabel)
	if d.Cond != nil {
		ctx.genExpr(d.Cond)
		ctx.emit("cmp eax, 0")
		ctx.emit("je %s", endLabel)
	}
	ctx.genBody(d.Body, jumpTarget{continueLabel: nextLabel, breakLabel: endLabel})
	ctx.label(nextLabel)
	ctx.genStmt(d.Post)
	ctx.emit("jmp %s", startLabel)
	ctx.label(endLabel)
}

// genSwitch saves the scrutinee in a hidden slot, emits the comparison chain
// and then the bodies in source order so cases fall through.
func (ctx *Context) genSwitch(d ast.SwitchNode) {
	endLabel := ctx.newLabel("switch_end")
	saved := fmt.Sprintf("switch.%d", ctx.labelCount)

	ctx.genExpr(d.Expr)
	ctx.store(saved)

	caseLabels := make([]string, len(d.Cases))
	for i, c := range d.Cases {
		caseLabels[i] = ctx.newLabel("switch_case")
		ctx.genExpr(c.Data.(ast.CaseNode).Value)
		ctx.emit("cmp dword [rbp%d], eax", ctx.slot(saved))
		ctx.emit("je %s", caseLabels[i])
	}

	var defaultLabel string
	if d.HasDefault {
		defaultLabel = ctx.newLabel("switch_default")
		ctx.emit("jmp %s", defaultLabel)
	} else {
		ctx.emit("jmp %s", endLabel)
	}

	ctx.switches = append(ctx.switches, endLabel)
	for i, c := range d.Cases {
		ctx.label(caseLabels[i])
		ctx.genStmts(c.Data.(ast.CaseNode).Stmts)
	}
	if d.HasDefault {
		ctx.label(defaultLabel)
		ctx.genStmts(d.Default)
	}
	ctx.switches = ctx.switches[:len(ctx.switches)-1]
	ctx.label(endLabel)
}

// genExpr leaves the value of node in eax.
func (ctx *Context) genExpr(node *ast.Node) {
	switch d := node.Data.(type) {
	case ast.NumberNode:
		if strings.Contains(d.Text, ".") {
			fatalf(node.Tok, "floating point literal '%s' is not supported", d.Text)
		}
		ctx.emit("mov eax, %s", d.Text)
	case ast.StringLitNode:
		fatalf(node.Tok, "string literals are not supported")
	case ast.IdentNode:
		ctx.load(d.Name)
	case ast.UnaryOpNode:
		ctx.genExpr(d.Expr)
		switch d.Op {
		case "-":
			ctx.emit("neg eax")
		case "!":
			ctx.emit("cmp eax, 0")
			ctx.emit("sete al")
			ctx.emit("movzx eax, al")
		case "+":
		default:
			fatalf(node.Tok, "unsupported unary operator '%s'", d.Op)
		}
	case ast.BinaryOpNode:
		if (d.Op == "&&" || d.Op == "||") && ctx.cfg.IsFeatureEnabled(config.FeatShortCircuit) {
			ctx.genShortCircuit(d)
			return
		}
		ctx.genExpr(d.Left)
		ctx.push()
		ctx.genExpr(d.Right)
		ctx.pop("rbx")
		ctx.genBinaryOp(node, d.Op)
	case ast.FuncCallNode:
		ctx.genCall(node, d)
	default:
		fatalf(node.Tok, "no code generation rule for %s", node.Type)
	}
}

var setInstr = map[string]string{
	"<": "setl", "<=": "setle", ">": "setg", ">=": "setge", "==": "sete", "!=": "setne",
}

// genBinaryOp combines ebx (left) and eax (right) into eax.
func (ctx *Context) genBinaryOp(node *ast.Node, op string) {
	switch op {
	case "+":
		ctx.emit("add eax, ebx")
	case "-":
		ctx.emit("sub ebx, eax")
		ctx.emit("mov eax, ebx")
	case "*":
		ctx.emit("imul eax, ebx")
	case "/", "%":
		ctx.emit("mov ecx, eax")
		ctx.emit("mov eax, ebx")
		ctx.emit("cdq")
		ctx.emit("idiv ecx")
		if op == "%" {
			ctx.emit("mov eax, edx")
		}
	case "<", "<=", ">", ">=", "==", "!=":
		ctx.emit("cmp ebx, eax")
		ctx.emit("%s al", setInstr[op])
		ctx.emit("movzx eax, al")
	case "&&", "||":
		if op == "&&" {
			ctx.emit("and eax, ebx")
		} else {
			ctx.emit("or eax, ebx")
		}
		ctx.emit("cmp eax, 0")
		ctx.emit("setne al")
		ctx.emit("movzx eax, al")
	default:
		fatalf(node.Tok, "unsupported binary operator '%s'", op)
	}
}

func (ctx *Context) genShortCircuit(d ast.BinaryOpNode) {
	isAnd := d.Op == "&&"
	prefix := "or"
	if isAnd {
		prefix = "and"
	}
	shortLabel := ctx.newLabel(prefix + "_short")
	endLabel := ctx.newLabel(prefix + "_end")

	// && stops on the first zero, || on the first non-zero.
	jump := "jne"
	if isAnd {
		jump = "je"
	}
	ctx.genExpr(d.Left)
	ctx.emit("cmp eax, 0")
	ctx.emit("%s %s", jump, shortLabel)
	ctx.genExpr(d.Right)
	ctx.emit("cmp eax, 0")
	ctx.emit("%s %s", jump, shortLabel)
	if isAnd {
		ctx.emit("mov eax, 1")
	} else {
		ctx.emit("mov eax, 0")
	}
	ctx.emit("jmp %s", endLabel)
	ctx.label(shortLabel)
	if isAnd {
		ctx.emit("mov eax, 0")
	} else {
		ctx.emit("mov eax, 1")
	}
	ctx.label(endLabel)
}

// genCall evaluates the arguments left to right onto the stack, then pops
// them into the argument registers so that nested calls cannot clobber
// registers already filled.
func (ctx *Context) genCall(node *ast.Node, d ast.FuncCallNode) {
	if len(d.Args) > maxRegArgs {
		fatalf(node.Tok, "call to '%s' passes %d arguments; at most %d are supported", d.Name, len(d.Args), maxRegArgs)
	}

	for _, arg := range d.Args {
		ctx.genExpr(arg)
		ctx.push()
	}
	for i := len(d.Args) - 1; i >= 0; i-- {
		ctx.pop(argRegs64[i])
	}

	// rsp is 16-byte aligned after the prologue; every outstanding push
	// moves it by 8.
	pad := ctx.pushDepth%2 != 0
	if pad {
		ctx.emit("sub rsp, 8")
	}
	ctx.emit("call %s", d.Name)
	if pad {
		ctx.emit("add rsp, 8")
	}
}
