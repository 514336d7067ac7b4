package codegen

import (
	"errors"
	"strings"
	"testing"

	"github.com/cmm-lang/cmmc/pkg/ast"
	"github.com/cmm-lang/cmmc/pkg/config"
	"github.com/cmm-lang/cmmc/pkg/lexer"
	"github.com/cmm-lang/cmmc/pkg/parser"
	"github.com/google/go-cmp/cmp"
)

func parse(t *testing.T, src string) *ast.Node {
	t.Helper()
	toks, errs := lexer.Tokenize(src)
	if len(errs) != 0 {
		t.Fatalf("lexical errors: %v", errs)
	}
	prog, err := parser.ParseProgram(toks)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return prog
}

func generate(t *testing.T, src string, cfg *config.Config) string {
	t.Helper()
	asm, err := NewContext(cfg).Generate(parse(t, src))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return asm
}

// assertSequence checks that want appears, line by line and in order, among
// the trimmed lines of asm. Other lines may be interleaved.
func assertSequence(t *testing.T, asm string, want ...string) {
	t.Helper()
	lines := strings.Split(asm, "\n")
	i := 0
	for _, w := range want {
		for i < len(lines) && strings.TrimSpace(lines[i]) != w {
			i++
		}
		if i == len(lines) {
			t.Fatalf("line %q not found in order in:\n%s", w, asm)
		}
		i++
	}
}

func TestGenerateReturnSum(t *testing.T) {
	want := `section .text
global main

main:
    push rbp
    mov rbp, rsp
    sub rsp, 16
    mov eax, 1
    push rax
    mov eax, 2
    pop rbx
    add eax, ebx
    mov rsp, rbp
    pop rbp
    ret
    mov eax, 0
    mov rsp, rbp
    pop rbp
    ret
`
	asm, err := Generate(parse(t, "int main() { return 1 + 2; }"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, asm); diff != "" {
		t.Errorf("assembly mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateEmptyProgram(t *testing.T) {
	asm := generate(t, "", nil)
	if asm != "section .text\nglobal main\n" {
		t.Errorf("got %q", asm)
	}
}

func TestGenerateParams(t *testing.T) {
	asm := generate(t, "int sub(int a, int b) { return a - b; }", nil)
	assertSequence(t, asm,
		"sub:",
		"mov dword [rbp-4], edi",
		"mov dword [rbp-8], esi",
		"mov eax, dword [rbp-4]",
		"push rax",
		"mov eax, dword [rbp-8]",
		"pop rbx",
		"sub ebx, eax",
		"mov eax, ebx",
	)
}

func TestGenerateOperators(t *testing.T) {
	tests := []struct {
		expr string
		want []string
	}{
		{"a * b", []string{"imul eax, ebx"}},
		{"a / b", []string{"mov ecx, eax", "mov eax, ebx", "cdq", "idiv ecx"}},
		{"a % b", []string{"cdq", "idiv ecx", "mov eax, edx"}},
		{"a < b", []string{"cmp ebx, eax", "setl al", "movzx eax, al"}},
		{"a <= b", []string{"cmp ebx, eax", "setle al", "movzx eax, al"}},
		{"a > b", []string{"cmp ebx, eax", "setg al", "movzx eax, al"}},
		{"a >= b", []string{"cmp ebx, eax", "setge al", "movzx eax, al"}},
		{"a == b", []string{"cmp ebx, eax", "sete al", "movzx eax, al"}},
		{"a != b", []string{"cmp ebx, eax", "setne al", "movzx eax, al"}},
		{"a && b", []string{"and eax, ebx", "cmp eax, 0", "setne al", "movzx eax, al"}},
		{"a || b", []string{"or eax, ebx", "cmp eax, 0", "setne al", "movzx eax, al"}},
		{"-a", []string{"mov eax, dword [rbp-4]", "neg eax"}},
		{"!a", []string{"cmp eax, 0", "sete al", "movzx eax, al"}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			asm := generate(t, "int f(int a, int b) { return "+tt.expr+"; }", nil)
			assertSequence(t, asm, tt.want...)
		})
	}
}

func TestGenerateFrameSize(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"return 0;", "sub rsp, 16"},
		{"int a; int b; int c; int d; return 0;", "sub rsp, 16"},
		{"int a; int b; int c; int d; int e; return 0;", "sub rsp, 32"},
	}
	for _, tt := range tests {
		asm := generate(t, "int main() { "+tt.body+" }", nil)
		assertSequence(t, asm, "mov rbp, rsp", tt.want)
	}
}

func TestGenerateIfElse(t *testing.T) {
	asm := generate(t, "int main() { int a = 1; if (a) a = 2; else a = 3; return a; }", nil)
	assertSequence(t, asm,
		"cmp eax, 0",
		"je if_else1",
		"mov eax, 2",
		"jmp if_end2",
		"if_else1:",
		"mov eax, 3",
		"if_end2:",
	)
}

func TestGenerateWhile(t *testing.T) {
	asm := generate(t, "int main() { int a = 3; while (a) { a = a - 1; if (a == 1) break; continue; } return a; }", nil)
	assertSequence(t, asm,
		"while_start1:",
		"cmp eax, 0",
		"je while_end2",
		"jmp while_end2",
		"jmp while_start1",
		"jmp while_start1",
		"while_end2:",
	)
}

func TestGenerateFor(t *testing.T) {
	src := `int main() {
	int s = 0;
	for (int i = 0; i < 3; i = i + 1) {
		if (i == 1) continue;
		s = s + i;
	}
	return s;
}`
	asm := generate(t, src, nil)
	assertSequence(t, asm,
		"for_start1:",
		"je for_end3",
		"jmp for_next2",
		"for_next2:",
		"jmp for_start1",
		"for_end3:",
	)
}

func TestGenerateForWithoutClauses(t *testing.T) {
	asm := generate(t, "int main() { for (;;) { break; } return 0; }", nil)
	assertSequence(t, asm,
		"for_start1:",
		"jmp for_end3",
		"for_next2:",
		"jmp for_start1",
		"for_end3:",
	)
	if strings.Contains(asm, "je for_end3") {
		t.Error("loop without a condition must not test eax")
	}
}

func TestLabelsAreUnique(t *testing.T) {
	src := `int f(int a) { while (a) { while (a) { a = a - 1; } } return a; }
int main() { int b = 1; if (b) { b = 2; } if (b) { b = 3; } return f(b); }`
	asm := generate(t, src, nil)

	seen := make(map[string]bool)
	for _, line := range strings.Split(asm, "\n") {
		if !strings.HasSuffix(line, ":") || strings.HasPrefix(line, " ") {
			continue
		}
		if seen[line] {
			t.Errorf("label %s defined twice", line)
		}
		seen[line] = true
	}
	for _, l := range []string{"while_start1:", "while_end2:", "while_start3:", "while_end4:", "if_else5:", "if_end6:", "if_else7:", "if_end8:"} {
		if !seen[l] {
			t.Errorf("missing label %s", l)
		}
	}
}

func TestGenerateSwitch(t *testing.T) {
	src := "int main() { int x = 2; switch (x) { case 1: x = 10; break; case 2: x = 20; default: x = 30; } return x; }"
	asm := generate(t, src, nil)
	assertSequence(t, asm,
		"mov eax, dword [rbp-4]",
		"mov dword [rbp-8], eax",
		"mov eax, 1",
		"cmp dword [rbp-8], eax",
		"je switch_case2",
		"mov eax, 2",
		"cmp dword [rbp-8], eax",
		"je switch_case3",
		"jmp switch_default4",
		"switch_case2:",
		"mov eax, 10",
		"jmp switch_end1",
		"switch_case3:",
		"mov eax, 20",
		"switch_default4:",
		"mov eax, 30",
		"switch_end1:",
	)
}

func TestGenerateSwitchWithoutDefault(t *testing.T) {
	asm := generate(t, "int main() { int x = 1; switch (x) { case 1: x = 5; } return x; }", nil)
	assertSequence(t, asm, "je switch_case2", "jmp switch_end1", "switch_case2:", "switch_end1:")
}

func TestGenerateBreakInSwitchInsideLoop(t *testing.T) {
	src := "int main() { int x = 0; while (x < 3) { switch (x) { case 1: break; } x = x + 1; } return x; }"
	asm := generate(t, src, nil)
	assertSequence(t, asm,
		"while_start1:",
		"je while_end2",
		"jmp switch_end3",
		"switch_case4:",
		"jmp while_end2",
		"switch_end3:",
		"jmp while_start1",
		"while_end2:",
	)
}

func TestGenerateCalls(t *testing.T) {
	asm := generate(t, "int main() { return g(1, 2, 3); }", nil)
	assertSequence(t, asm,
		"mov eax, 1", "push rax",
		"mov eax, 2", "push rax",
		"mov eax, 3", "push rax",
		"pop rdx", "pop rsi", "pop rdi",
		"call g",
	)
	if strings.Contains(asm, "sub rsp, 8") {
		t.Error("aligned call must not be padded")
	}

	asm = generate(t, "int main() { return 1 + g(2); }", nil)
	assertSequence(t, asm, "push rax", "mov eax, 2", "push rax", "pop rdi", "sub rsp, 8", "call g", "add rsp, 8", "pop rbx", "add eax, ebx")

	asm = generate(t, "int main() { g(); return 0; }", nil)
	assertSequence(t, asm, "call g", "mov eax, 0")
}

func TestGenerateShortCircuit(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatShortCircuit, true)

	asm := generate(t, "int main() { int a = 1; int b = 0; return a && b; }", cfg)
	assertSequence(t, asm,
		"mov eax, dword [rbp-4]",
		"cmp eax, 0",
		"je and_short1",
		"mov eax, dword [rbp-8]",
		"cmp eax, 0",
		"je and_short1",
		"mov eax, 1",
		"jmp and_end2",
		"and_short1:",
		"mov eax, 0",
		"and_end2:",
	)

	asm = generate(t, "int main() { int a = 1; int b = 0; return a || b; }", cfg)
	assertSequence(t, asm, "jne or_short1", "jne or_short1", "mov eax, 0", "jmp or_end2", "or_short1:", "mov eax, 1", "or_end2:")
	if strings.Contains(asm, "or eax, ebx") {
		t.Error("short-circuit output still combines operands bitwise")
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"too many arguments", "int main() { return f(1, 2, 3, 4, 5, 6, 7); }", "call to 'f' passes 7 arguments; at most 6 are supported"},
		{"too many parameters", "int f(int a, int b, int c, int d, int e, int g, int h) { return a; }", "function 'f' has 7 parameters; at most 6 are supported"},
		{"float literal", "int main() { return 1.5; }", "floating point literal '1.5' is not supported"},
		{"string literal", `int main() { int s = "hi"; return 0; }`, "string literals are not supported"},
		{"global declaration", "int g = 1; int main() { return g; }", "Declaration is not supported outside a function"},
		{"break outside", "int main() { break; }", "'break' outside a loop or switch"},
		{"continue in switch", "int main() { switch (1) { case 1: continue; } return 0; }", "'continue' outside a loop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asm, err := Generate(parse(t, tt.src))
			if asm != "" {
				t.Errorf("partial output on error:\n%s", asm)
			}
			var cgErr *Error
			if !errors.As(err, &cgErr) {
				t.Fatalf("error = %v, want *Error", err)
			}
			if cgErr.Message != tt.msg {
				t.Errorf("message = %q, want %q", cgErr.Message, tt.msg)
			}
		})
	}
}

func TestErrorFormat(t *testing.T) {
	_, err := Generate(parse(t, "int main() {\n  return 2.5;\n}"))
	if err == nil {
		t.Fatal("expected an error")
	}
	want := "Linha 2, Coluna 10: floating point literal '2.5' is not supported"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNASMBackend(t *testing.T) {
	cfg := config.NewConfig()
	prog := parse(t, "int main() { return 7; }")

	buf, err := NewBackend(cfg).Generate(prog, cfg)
	if err != nil {
		t.Fatal(err)
	}
	direct, _ := Generate(prog)
	if diff := cmp.Diff(direct, buf.String()); diff != "" {
		t.Errorf("backend output differs from Generate (-want +got):\n%s", diff)
	}

	cfg.BackendName = "qbe"
	if _, ok := NewBackend(cfg).(*qbeBackend); !ok {
		t.Error("qbe backend not selected")
	}
}
