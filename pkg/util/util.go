package util

import (
	"fmt"
	"io"
	"strings"

	"github.com/cmm-lang/cmmc/pkg/token"
)

const (
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorReset  = "\033[0m"
)

// Reporter prints compiler diagnostics for a single source file in the
// "file:line:col: error: msg" form followed by the source line and a caret.
type Reporter struct {
	Out      io.Writer
	Filename string
	Color    bool
	lines    []string
	errors   int
	warnings int
}

func NewReporter(out io.Writer, filename, source string, color bool) *Reporter {
	return &Reporter{
		Out:      out,
		Filename: filename,
		Color:    color,
		lines:    strings.Split(source, "\n"),
	}
}

func (r *Reporter) ErrorCount() int   { return r.errors }
func (r *Reporter) WarningCount() int { return r.warnings }

func (r *Reporter) paint(color, s string) string {
	if !r.Color {
		return s
	}
	return color + s + colorReset
}

// printErrorLine prints the source line and a caret indicating the error position
func (r *Reporter) printErrorLine(tok token.Token) {
	if tok.Line < 1 || tok.Line > len(r.lines) {
		return
	}
	line := strings.TrimRight(r.lines[tok.Line-1], "\r")
	fmt.Fprintf(r.Out, "  %s\n", line)

	col := tok.Column
	if col < 1 {
		col = 1
	}
	caret := "^"
	if tok.Len > 1 {
		caret += strings.Repeat("~", tok.Len-1)
	}
	fmt.Fprintf(r.Out, "  %s%s\n", strings.Repeat(" ", col-1), r.paint(colorGreen, caret))
}

func (r *Reporter) header(tok token.Token, kind, color string) {
	if tok.Line > 0 {
		fmt.Fprintf(r.Out, "%s:%d:%d: %s ", r.Filename, tok.Line, tok.Column, r.paint(color, kind+":"))
		return
	}
	fmt.Fprintf(r.Out, "%s: %s ", r.Filename, r.paint(color, kind+":"))
}

// Error prints a formatted error message. A zero token omits the position.
func (r *Reporter) Error(tok token.Token, format string, args ...interface{}) {
	r.errors++
	r.header(tok, "error", colorRed)
	fmt.Fprintf(r.Out, format, args...)
	fmt.Fprintln(r.Out)
	r.printErrorLine(tok)
}

// Warn prints a formatted warning tagged with the flag that controls it.
func (r *Reporter) Warn(flag string, tok token.Token, format string, args ...interface{}) {
	r.warnings++
	r.header(tok, "warning", colorYellow)
	fmt.Fprintf(r.Out, format, args...)
	fmt.Fprintf(r.Out, " [-W%s]\n", flag)
	r.printErrorLine(tok)
}
