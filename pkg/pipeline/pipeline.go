// Package pipeline runs the compiler phases over one source text and
// collects every intermediate result.
package pipeline

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/cmm-lang/cmmc/pkg/ast"
	"github.com/cmm-lang/cmmc/pkg/codegen"
	"github.com/cmm-lang/cmmc/pkg/config"
	"github.com/cmm-lang/cmmc/pkg/lexer"
	"github.com/cmm-lang/cmmc/pkg/parser"
	"github.com/cmm-lang/cmmc/pkg/semantic"
	"github.com/cmm-lang/cmmc/pkg/token"
)

// Stage names the phase a run stopped at.
type Stage int

const (
	StageLex Stage = iota
	StageParse
	StageSemantic
	StageCodegen
	StageDone
)

var stageNames = [...]string{"lex", "parse", "semantic", "codegen", "done"}

func (s Stage) String() string { return stageNames[s] }

// Result holds everything one run produced. Fields after the failing stage
// are zero.
type Result struct {
	Fingerprint    uint64
	Tokens         []token.Token
	LexErrors      []lexer.Error
	Program        *ast.Node
	SyntaxError    *parser.SyntaxError
	SemanticErrors []string
	Warnings       []semantic.Warning
	Asm            string
	CodegenError   error
	Stage          Stage
}

// OK reports whether every phase succeeded.
func (r *Result) OK() bool { return r.Stage == StageDone }

// Fingerprint hashes source text. Equal sources always produce equal
// fingerprints, which keys golden files and log names.
func Fingerprint(source string) uint64 { return xxhash.Sum64String(source) }

// Run compiles source with cfg. Lexical and semantic errors stop the run
// after their phase has finished, so each list is complete.
func Run(source string, cfg *config.Config) *Result {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	res := &Result{Fingerprint: Fingerprint(source), Stage: StageLex}

	res.Tokens, res.LexErrors = lexer.Tokenize(source)
	if len(res.LexErrors) > 0 {
		return res
	}

	res.Stage = StageParse
	prog, err := parser.NewParser(res.Tokens, cfg).Parse()
	if err != nil {
		res.SyntaxError = err.(*parser.SyntaxError)
		return res
	}
	res.Program = prog

	res.Stage = StageSemantic
	analyzer := semantic.NewAnalyzer(cfg)
	res.SemanticErrors = analyzer.Analyze(prog)
	res.Warnings = analyzer.Warnings()
	if len(res.SemanticErrors) > 0 {
		return res
	}

	res.Stage = StageCodegen
	buf, err := codegen.NewBackend(cfg).Generate(prog, cfg)
	if err != nil {
		res.CodegenError = err
		return res
	}
	res.Asm = buf.String()
	res.Stage = StageDone
	return res
}

// Log renders a plain-text report of a run: tokens, tree, diagnostics and
// assembly, in phase order.
func (r *Result) Log(filename string) string {
	var b logBuilder
	b.printf("Arquivo: %s\nFingerprint: %016x\n", filename, r.Fingerprint)

	b.section("Tokens")
	for _, tok := range r.Tokens {
		b.printf("%s\n", tok)
	}
	for _, e := range r.LexErrors {
		b.printf("%s\n", e.Error())
	}

	if r.SyntaxError != nil {
		b.section("Erro Sintático")
		b.printf("%s\n", r.SyntaxError)
	}
	if r.Program != nil {
		b.section("AST")
		b.printf("%s", ast.Sprint(r.Program))
	}
	if r.Stage >= StageSemantic {
		b.section("Análise Semântica")
		if len(r.SemanticErrors) == 0 {
			b.printf("Nenhum erro semântico encontrado.\n")
		}
		for _, e := range r.SemanticErrors {
			b.printf("%s\n", e)
		}
		for _, w := range r.Warnings {
			b.printf("Linha %d: aviso: %s\n", w.Tok.Line, w.Message)
		}
	}
	if r.CodegenError != nil {
		b.section("Erro de Geração de Código")
		b.printf("%s\n", r.CodegenError)
	}
	if r.Asm != "" {
		b.section("Assembly")
		b.printf("%s", r.Asm)
	}
	return b.String()
}

type logBuilder struct{ out []byte }

func (b *logBuilder) printf(format string, args ...interface{}) {
	b.out = fmt.Appendf(b.out, format, args...)
}

func (b *logBuilder) section(title string) { b.printf("\n=== %s ===\n", title) }

func (b *logBuilder) String() string { return string(b.out) }
