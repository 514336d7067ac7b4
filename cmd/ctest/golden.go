package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cmm-lang/cmmc/pkg/config"
	"github.com/cmm-lang/cmmc/pkg/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Snapshot is the observable outcome of compiling one file. It is what a
// golden file stores.
type Snapshot struct {
	Hash           string   `json:"hash"`
	Stage          string   `json:"stage"`
	TokenCount     int      `json:"token_count"`
	LexErrors      []string `json:"lex_errors,omitempty"`
	SyntaxError    string   `json:"syntax_error,omitempty"`
	SemanticErrors []string `json:"semantic_errors,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	CodegenError   string   `json:"codegen_error,omitempty"`
	Asm            string   `json:"asm,omitempty"`
}

type status string

const (
	statusPass  status = "PASS"
	statusFail  status = "FAIL"
	statusSkip  status = "SKIP"
	statusError status = "ERROR"
)

type FileTestResult struct {
	File     string        `json:"file"`
	Status   status        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Diff     string        `json:"diff,omitempty"`
	Duration time.Duration `json:"duration"`
	Golden   *Snapshot     `json:"golden,omitempty"`
	Actual   *Snapshot     `json:"actual,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

func newConfig(flags string) *config.Config {
	cfg := config.NewConfig()
	cfg.ProcessFlags(flags)
	return cfg
}

// snapshot compiles source in process. Each call builds its own pipeline, so
// workers never share state.
func snapshot(source string, cfg *config.Config) *Snapshot {
	res := pipeline.Run(source, cfg)
	s := &Snapshot{
		Hash:           fmt.Sprintf("%016x", res.Fingerprint),
		Stage:          res.Stage.String(),
		TokenCount:     len(res.Tokens),
		SemanticErrors: res.SemanticErrors,
		Asm:            res.Asm,
	}
	for _, e := range res.LexErrors {
		s.LexErrors = append(s.LexErrors, e.Error())
	}
	if res.SyntaxError != nil {
		s.SyntaxError = res.SyntaxError.Error()
	}
	for _, w := range res.Warnings {
		s.Warnings = append(s.Warnings, fmt.Sprintf("%d:%d: %s [-W%s]", w.Tok.Line, w.Tok.Column, w.Message, cfg.Warnings[w.Kind].Name))
	}
	if res.CodegenError != nil {
		s.CodegenError = res.CodegenError.Error()
	}
	return s
}

func goldenPath(sourceFile, dir string) string {
	name := "." + filepath.Base(sourceFile) + ".json"
	if dir != "" {
		return filepath.Join(dir, name)
	}
	return filepath.Join(filepath.Dir(sourceFile), name)
}

func readGolden(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("could not parse golden file %s: %w", path, err)
	}
	return &s, nil
}

func writeGolden(path string, s *Snapshot) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// compareSnapshots diffs everything but the hash. Empty and nil lists are
// equal.
func compareSnapshots(golden, actual *Snapshot) string {
	return cmp.Diff(golden, actual,
		cmpopts.IgnoreFields(Snapshot{}, "Hash"),
		cmpopts.EquateEmpty(),
	)
}

// testFile compiles file and checks it against its golden snapshot.
func testFile(file, flags, dir string, update bool) *FileTestResult {
	start := time.Now()
	src, err := os.ReadFile(file)
	if err != nil {
		return &FileTestResult{File: file, Status: statusError, Message: fmt.Sprintf("Could not read file: %v", err)}
	}
	actual := snapshot(string(src), newConfig(flags))
	elapsed := time.Since(start)

	path := goldenPath(file, dir)
	if update {
		if err := writeGolden(path, actual); err != nil {
			return &FileTestResult{File: file, Status: statusError, Message: fmt.Sprintf("Could not write golden file %s: %v", path, err)}
		}
		return &FileTestResult{File: file, Status: statusPass, Message: "Golden file updated", Duration: elapsed, Actual: actual}
	}

	golden, err := readGolden(path)
	if os.IsNotExist(err) {
		return &FileTestResult{File: file, Status: statusSkip, Message: "No golden file; run with -update to create one", Actual: actual}
	}
	if err != nil {
		return &FileTestResult{File: file, Status: statusError, Message: err.Error()}
	}

	res := &FileTestResult{File: file, Duration: elapsed, Golden: golden, Actual: actual}
	if diff := compareSnapshots(golden, actual); diff != "" {
		res.Status, res.Message, res.Diff = statusFail, "Output differs from golden file", diff
		if golden.Hash != actual.Hash {
			res.Message += " (source changed since it was recorded)"
		}
		return res
	}
	res.Status, res.Message = statusPass, fmt.Sprintf("Matches golden file (stage: %s)", actual.Stage)
	if golden.Hash != actual.Hash {
		res.Message += ", source changed"
	}
	return res
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "-"):
			b.WriteString(cRed)
		case strings.HasPrefix(trimmed, "+"):
			b.WriteString(cGreen)
		}
		b.WriteString("    " + line + cNone + "\n")
	}
	return b.String()
}
