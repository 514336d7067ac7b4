package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/cmm-lang/cmmc/pkg/ast"
	"github.com/cmm-lang/cmmc/pkg/cli"
	"github.com/cmm-lang/cmmc/pkg/codegen"
	"github.com/cmm-lang/cmmc/pkg/config"
	"github.com/cmm-lang/cmmc/pkg/pipeline"
	"github.com/cmm-lang/cmmc/pkg/token"
	"github.com/cmm-lang/cmmc/pkg/util"
	"golang.org/x/term"
)

// errReported means the diagnostics were already printed.
var errReported = errors.New("compilation failed")

type options struct {
	outFile    string
	target     string
	qbeTarget  string
	std        string
	quiet      bool
	dumpTokens bool
	dumpAST    bool
	dumpIR     bool
	pedantic   bool
	wall       bool
	wnoAll     bool
}

func main() {
	app := cli.NewApp("cmmc")
	app.Synopsis = "[options] <input.c>"
	app.Description = "A compiler for CMM, a small subset of C, producing x86-64 NASM assembly."
	app.Authors = []string{"The cmmc authors"}
	app.Since = 2025

	var opts options
	fs := app.FlagSet
	fs.String(&opts.outFile, "output", "o", "", "Place the assembly into <file> (default: <input>.asm).", "file")
	fs.String(&opts.target, "target", "t", "nasm", "Select the backend: nasm or qbe.", "backend")
	fs.String(&opts.qbeTarget, "qbe-target", "", "", "QBE target ABI (default: host).", "abi")
	fs.String(&opts.std, "std", "", "cmm", "Specify language standard (cmm, strict).", "std")
	fs.Bool(&opts.quiet, "quiet", "q", false, "Only print diagnostics.")
	fs.Bool(&opts.dumpTokens, "dump-tokens", "", false, "Print the token list.")
	fs.Bool(&opts.dumpAST, "dump-ast", "", false, "Print the syntax tree.")
	fs.Bool(&opts.dumpIR, "dump-ir", "d", false, "Print the QBE intermediate language and exit.")
	fs.Bool(&opts.pedantic, "pedantic", "", false, "Issue all warnings demanded by the current standard.")
	fs.Bool(&opts.wall, "Wall", "", false, "Enable most warnings.")
	fs.Bool(&opts.wnoAll, "Wno-all", "", false, "Disable all warnings.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(args []string) error {
		if len(args) != 1 {
			fmt.Fprintln(app.Stderr, "cmmc: exactly one input file is required")
			app.WriteUsage(app.Stderr)
			return errReported
		}

		if opts.pedantic {
			cfg.SetWarning(config.WarnPedantic, true)
		}
		if err := cfg.ApplyStd(opts.std); err != nil {
			return err
		}
		if opts.wall {
			cfg.ProcessFlags("-Wall")
		}
		if opts.wnoAll {
			cfg.ProcessFlags("-Wno-all")
		}
		cfg.ApplyFlagGroups(warningFlags, featureFlags)
		if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, opts.target, opts.qbeTarget); err != nil {
			return err
		}
		cfg.ApplyEnv(os.Getenv)

		return compile(args[0], opts, cfg, app.Stdout, app.Stderr)
	}

	if err := app.Run(os.Args[1:]); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "cmmc: %v\n", err)
		}
		os.Exit(1)
	}
}

func compile(path string, opts options, cfg *config.Config, stdout, stderr io.Writer) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read file '%s': %w", path, err)
	}
	source := string(src)

	progress := func(format string, args ...interface{}) {
		if !opts.quiet {
			fmt.Fprintf(stdout, format, args...)
		}
	}
	rep := util.NewReporter(stderr, path, source, isTerminal(stderr))

	progress("----------------------\n")
	progress("Compiling '%s' with the '%s' backend...\n", path, cfg.BackendName)
	res := pipeline.Run(source, cfg)

	if opts.dumpTokens {
		for _, tok := range res.Tokens {
			fmt.Fprintln(stdout, tok)
		}
	}
	if opts.dumpAST && res.Program != nil {
		ast.Fprint(stdout, res.Program)
	}
	if cfg.WriteLogs {
		logPath, err := writeOutput(cfg.LogDir, fmt.Sprintf("%s-%016x.log", baseName(path), res.Fingerprint), res.Log(path))
		if err != nil {
			return err
		}
		progress("Log written to '%s'\n", logPath)
	}

	for _, e := range res.LexErrors {
		rep.Error(token.Token{Line: e.Line, Column: e.Column, Len: 1}, "%s", e.Message)
	}
	if res.SyntaxError != nil {
		rep.Error(res.SyntaxError.Tok, "%s", res.SyntaxError.Message)
	}
	for _, w := range res.Warnings {
		rep.Warn(cfg.Warnings[w.Kind].Name, w.Tok, "%s", w.Message)
	}
	for _, e := range res.SemanticErrors {
		rep.Error(token.Token{}, "%s", strings.TrimPrefix(e, "Erro Semântico: "))
	}
	if res.CodegenError != nil {
		var cgErr *codegen.Error
		if errors.As(res.CodegenError, &cgErr) {
			rep.Error(cgErr.Tok, "%s", cgErr.Message)
		} else {
			rep.Error(token.Token{}, "backend code generation failed: %v", res.CodegenError)
		}
	}
	if !res.OK() {
		progress("Stopped after the %s phase with %d error(s).\n", res.Stage, rep.ErrorCount())
		return errReported
	}

	if opts.dumpIR {
		il, err := codegen.GenerateQBE(res.Program, cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(stdout, il)
		return nil
	}

	outFile := opts.outFile
	if outFile == "" {
		outFile = strings.TrimSuffix(path, filepath.Ext(path)) + ".asm"
	}
	if err := os.WriteFile(outFile, []byte(res.Asm), 0o644); err != nil {
		return fmt.Errorf("could not write '%s': %w", outFile, err)
	}
	progress("Assembly written to '%s'\n", outFile)

	if cfg.WriteAsm {
		asmPath, err := writeOutput(cfg.AsmDir, baseName(path)+".asm", res.Asm)
		if err != nil {
			return err
		}
		progress("Assembly copied to '%s'\n", asmPath)
	}

	progress("----------------------\n")
	progress("Done!\n")
	return nil
}

// writeOutput writes content to dir/name, creating dir when missing.
func writeOutput(dir, name, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create directory '%s': %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("could not write '%s': %w", path, err)
	}
	return path, nil
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
