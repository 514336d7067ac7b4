package ast

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes an indented textual representation of the tree rooted at
// node to w. The output is deterministic and contains no positions other
// than the line of each statement.
func Fprint(w io.Writer, node *Node) {
	p := &printer{w: w}
	p.print(node)
}

// Sprint is Fprint into a string.
func Sprint(node *Node) string {
	var sb strings.Builder
	Fprint(&sb, node)
	return sb.String()
}

type printer struct {
	w      io.Writer
	indent int
}

func (p *printer) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", p.indent), fmt.Sprintf(format, args...))
}

func (p *printer) list(label string, nodes []*Node) {
	p.printf("%s:", label)
	p.indent++
	for _, n := range nodes {
		p.print(n)
	}
	p.indent--
}

func (p *printer) child(label string, n *Node) {
	if n == nil {
		return
	}
	p.printf("%s:", label)
	p.indent++
	p.print(n)
	p.indent--
}

func (p *printer) print(node *Node) {
	if node == nil {
		return
	}

	switch d := node.Data.(type) {
	case NumberNode:
		p.printf("Number %s", d.Text)
	case StringLitNode:
		p.printf("StringLiteral %q", d.Value)
	case IdentNode:
		p.printf("Identifier %s", d.Name)
	case UnaryOpNode:
		p.printf("UnaryOp %s", d.Op)
		p.indent++
		p.print(d.Expr)
		p.indent--
	case BinaryOpNode:
		p.printf("BinaryOp %s", d.Op)
		p.indent++
		p.print(d.Left)
		p.print(d.Right)
		p.indent--
	case FuncCallNode:
		p.printf("FunctionCall %s (%d args)", d.Name, len(d.Args))
		p.indent++
		for _, arg := range d.Args {
			p.print(arg)
		}
		p.indent--

	case ProgramNode:
		p.printf("Program")
		p.indent++
		for _, s := range d.Stmts {
			p.print(s)
		}
		p.indent--
	case FuncDefNode:
		params := make([]string, len(d.Params))
		for i, prm := range d.Params {
			params[i] = prm.Type + " " + prm.Name
		}
		p.printf("FunctionDef %s %s(%s) line %d", d.ReturnType, d.Name, strings.Join(params, ", "), node.Tok.Line)
		p.indent++
		p.print(d.Body)
		p.indent--
	case BlockNode:
		p.printf("Block")
		p.indent++
		for _, s := range d.Stmts {
			p.print(s)
		}
		p.indent--
	case DeclarationNode:
		p.printf("Declaration %s %s line %d", d.VarType, d.Name, node.Tok.Line)
		p.indent++
		p.print(d.Init)
		p.indent--
	case AssignmentNode:
		p.printf("Assignment %s line %d", d.Name, node.Tok.Line)
		p.indent++
		p.print(d.Expr)
		p.indent--
	case IfNode:
		p.printf("If line %d", node.Tok.Line)
		p.indent++
		p.child("Cond", d.Cond)
		p.child("Then", d.Then)
		p.child("Else", d.Else)
		p.indent--
	case WhileNode:
		p.printf("While line %d", node.Tok.Line)
		p.indent++
		p.child("Cond", d.Cond)
		p.child("Body", d.Body)
		p.indent--
	case ForNode:
		p.printf("For line %d", node.Tok.Line)
		p.indent++
		p.child("Init", d.Init)
		p.child("Cond", d.Cond)
		p.child("Post", d.Post)
		p.child("Body", d.Body)
		p.indent--
	case SwitchNode:
		p.printf("Switch line %d", node.Tok.Line)
		p.indent++
		p.child("Expr", d.Expr)
		for _, c := range d.Cases {
			p.print(c)
		}
		if d.HasDefault {
			p.list("Default", d.Default)
		}
		p.indent--
	case CaseNode:
		p.printf("Case")
		p.indent++
		p.child("Value", d.Value)
		p.list("Body", d.Stmts)
		p.indent--
	case BreakNode:
		p.printf("Break line %d", node.Tok.Line)
	case ContinueNode:
		p.printf("Continue line %d", node.Tok.Line)
	case ReturnNode:
		p.printf("Return line %d", node.Tok.Line)
		p.indent++
		p.print(d.Expr)
		p.indent--
	case ExprStmtNode:
		p.printf("ExpressionStatement line %d", node.Tok.Line)
		p.indent++
		p.print(d.Expr)
		p.indent--
	case EmptyNode:
		p.printf("EmptyStatement")
	default:
		p.printf("%s <unknown payload %T>", node.Type, node.Data)
	}
}
