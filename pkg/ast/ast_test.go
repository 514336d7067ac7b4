package ast

import (
	"testing"

	"github.com/cmm-lang/cmmc/pkg/token"
	"github.com/google/go-cmp/cmp"
)

func at(line int) token.Token { return token.Token{Line: line, Column: 1} }

// sample builds: int main() { int a = 1; while (a) { a = a - 1; } return -a; }
func sample() *Node {
	decl := NewDeclaration(at(1), "int", "a", NewNumber(at(1), "1"))
	loop := NewWhile(at(2), NewIdent(at(2), "a"), NewBlock(at(2), []*Node{
		NewAssignment(at(3), "a", NewBinaryOp(at(3), "-", NewIdent(at(3), "a"), NewNumber(at(3), "1"))),
	}))
	ret := NewReturn(at(5), NewUnaryOp(at(5), "-", NewIdent(at(5), "a")))
	body := NewBlock(at(1), []*Node{decl, loop, ret})
	return NewProgram(at(1), []*Node{NewFuncDef(at(1), "int", "main", nil, body)})
}

func TestWalkOrder(t *testing.T) {
	var got []NodeType
	Walk(sample(), func(n *Node) { got = append(got, n.Type) })

	want := []NodeType{
		Program, FuncDef, Block,
		Declaration, Number,
		While, Ident, Block, Assignment, BinaryOp, Ident, Number,
		Return, UnaryOp, Ident,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("walk order mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkNil(t *testing.T) {
	called := false
	Walk(nil, func(*Node) { called = true })
	if called {
		t.Error("visitor called for a nil node")
	}
}

func TestNodeTypeClassification(t *testing.T) {
	for _, nt := range []NodeType{Number, StringLit, Ident, UnaryOp, BinaryOp, FuncCall} {
		if !nt.IsExpression() || nt.IsStatement() {
			t.Errorf("%s: want expression only", nt)
		}
	}
	for _, nt := range []NodeType{Program, FuncDef, Block, Declaration, Assignment, If, While, For, Switch, Break, Continue, Return, ExprStmt, Empty} {
		if nt.IsExpression() || !nt.IsStatement() {
			t.Errorf("%s: want statement only", nt)
		}
	}
	if Case.IsStatement() || Case.IsExpression() {
		t.Error("Case must be neither a statement nor an expression")
	}
	if got := NodeType(99).String(); got != "Unknown" {
		t.Errorf("String() of out of range type = %q", got)
	}
	if got := ExprStmt.String(); got != "ExpressionStatement" {
		t.Errorf("ExprStmt.String() = %q", got)
	}
}

func TestSprint(t *testing.T) {
	want := `Program
  FunctionDef int main() line 1
    Block
      Declaration int a line 1
        Number 1
      While line 2
        Cond:
          Identifier a
        Body:
          Block
            Assignment a line 3
              BinaryOp -
                Identifier a
                Number 1
      Return line 5
        UnaryOp -
          Identifier a
`
	if diff := cmp.Diff(want, Sprint(sample())); diff != "" {
		t.Errorf("Sprint mismatch (-want +got):\n%s", diff)
	}
}

func TestSprintSwitch(t *testing.T) {
	sw := NewSwitch(at(1), NewIdent(at(1), "x"), []*Node{
		NewCase(at(2), NewNumber(at(2), "1"), []*Node{NewBreak(at(2))}),
	}, []*Node{NewEmpty(at(3))}, true)

	want := `Switch line 1
  Expr:
    Identifier x
  Case
    Value:
      Number 1
    Body:
      Break line 2
  Default:
    EmptyStatement
`
	if diff := cmp.Diff(want, Sprint(sw)); diff != "" {
		t.Errorf("Sprint mismatch (-want +got):\n%s", diff)
	}
}
