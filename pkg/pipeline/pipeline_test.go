package pipeline

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/cmm-lang/cmmc/pkg/config"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestValidPrograms(t *testing.T) {
	files, err := filepath.Glob("../../testdata/valid/*.c")
	if err != nil || len(files) == 0 {
		t.Fatalf("no valid test programs found: %v", err)
	}
	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			res := Run(readFile(t, file), nil)
			if !res.OK() {
				t.Fatalf("stopped at %s: lex=%v syntax=%v semantic=%v codegen=%v",
					res.Stage, res.LexErrors, res.SyntaxError, res.SemanticErrors, res.CodegenError)
			}
			if !strings.HasPrefix(res.Asm, "section .text\nglobal main\n") || !strings.Contains(res.Asm, "\nmain:\n") {
				t.Errorf("unexpected assembly:\n%s", res.Asm)
			}
		})
	}
}

func TestInvalidPrograms(t *testing.T) {
	tests := []struct {
		file  string
		stage Stage
		check func(t *testing.T, res *Result)
	}{
		{"lex_error.c", StageLex, func(t *testing.T, res *Result) {
			if len(res.LexErrors) != 1 || res.LexErrors[0].Symbol != "@" {
				t.Errorf("LexErrors = %v", res.LexErrors)
			}
			if res.Program != nil {
				t.Error("parser ran after a lexical error")
			}
		}},
		{"missing_semicolon.c", StageParse, func(t *testing.T, res *Result) {
			if res.SyntaxError == nil || res.SyntaxError.Tok.Line != 3 {
				t.Errorf("SyntaxError = %v", res.SyntaxError)
			}
		}},
		{"undeclared.c", StageSemantic, func(t *testing.T, res *Result) {
			want := []string{
				"Erro Semântico: variable 'x' already declared in scope 'main'",
				"Erro Semântico: variable 'y' used before declared",
				"Erro Semântico: 'break' used outside a loop",
			}
			if strings.Join(res.SemanticErrors, "\n") != strings.Join(want, "\n") {
				t.Errorf("SemanticErrors = %q", res.SemanticErrors)
			}
			if res.Asm != "" {
				t.Error("code generated for an invalid program")
			}
		}},
		{"too_many_args.c", StageCodegen, func(t *testing.T, res *Result) {
			if res.CodegenError == nil || !strings.Contains(res.CodegenError.Error(), "7 arguments") {
				t.Errorf("CodegenError = %v", res.CodegenError)
			}
		}},
		{"string_literal.c", StageCodegen, func(t *testing.T, res *Result) {
			if res.CodegenError == nil || res.Asm != "" {
				t.Errorf("CodegenError = %v, Asm = %q", res.CodegenError, res.Asm)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			res := Run(readFile(t, filepath.Join("../../testdata/invalid", tt.file)), nil)
			if res.OK() {
				t.Fatal("invalid program compiled")
			}
			if res.Stage != tt.stage {
				t.Fatalf("stopped at %s, want %s", res.Stage, tt.stage)
			}
			tt.check(t, res)
		})
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("int main() { return 0; }")
	if a != Fingerprint("int main() { return 0; }") {
		t.Error("fingerprint is not deterministic")
	}
	if a == Fingerprint("int main() { return 1; }") {
		t.Error("different sources share a fingerprint")
	}
	if res := Run("int main() { return 0; }", nil); res.Fingerprint != a {
		t.Error("Run does not record the source fingerprint")
	}
}

func TestWarningsSurviveSuccess(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetWarning(config.WarnShadow, true)
	res := Run("int main() { int x = 1; { int x = 2; } return x; }", cfg)
	if !res.OK() {
		t.Fatalf("stopped at %s", res.Stage)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Kind != config.WarnShadow {
		t.Errorf("Warnings = %v", res.Warnings)
	}
}

func TestLog(t *testing.T) {
	log := Run("int main() { return 1; }", nil).Log("main.c")
	for _, want := range []string{
		"Arquivo: main.c",
		"=== Tokens ===\n[INT: int]\n",
		"=== AST ===\nProgram\n",
		"=== Análise Semântica ===\nNenhum erro semântico encontrado.\n",
		"=== Assembly ===\nsection .text\n",
	} {
		if !strings.Contains(log, want) {
			t.Errorf("log lacks %q:\n%s", want, log)
		}
	}

	log = Run("int main() { y = 1; }", nil).Log("bad.c")
	if !strings.Contains(log, "Erro Semântico: variable 'y' used before declared") || strings.Contains(log, "=== Assembly ===") {
		t.Errorf("semantic failure log:\n%s", log)
	}

	log = Run("int main() { return 1 }", nil).Log("bad.c")
	if !strings.Contains(log, "=== Erro Sintático ===\nLinha 1") {
		t.Errorf("syntax failure log:\n%s", log)
	}
}

func TestQBEBackend(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("libqbe is not linked on windows")
	}
	cfg := config.NewConfig()
	if err := cfg.SetTarget("linux", "amd64", "qbe", "amd64_sysv"); err != nil {
		t.Fatal(err)
	}
	res := Run("int main() { int a = 2; return a * 3; }", cfg)
	if !res.OK() {
		t.Fatalf("stopped at %s: %v", res.Stage, res.CodegenError)
	}
	if !strings.Contains(res.Asm, "main") {
		t.Errorf("qbe output lacks main:\n%s", res.Asm)
	}
}
