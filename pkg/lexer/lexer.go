package lexer

import (
	"fmt"
	"strings"

	"github.com/cmm-lang/cmmc/pkg/token"
)

// Error is a lexical error for a single byte that no token pattern accepted.
type Error struct {
	Line    int
	Column  int
	Symbol  string
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("Linha %d, Coluna %d: %s", e.Line, e.Column, e.Message)
}

// Longer operators come first so "<=" is never split into "<" and "=".
var operators = []string{"||", "&&", "==", "!=", "<=", ">=", "<", ">", "!", "+", "-", "*", "/", "=", "%"}

const delimiters = "()[]{};,:"

type Lexer struct {
	source string
	pos    int
	line   int
	column int
	tokens []token.Token
	errors []Error
}

func NewLexer(source string) *Lexer {
	return &Lexer{source: source, line: 1, column: 1}
}

// Tokenize scans source in one pass. It never fails; unrecognised bytes are
// reported in the returned error list and skipped.
func Tokenize(source string) ([]token.Token, []Error) {
	return NewLexer(source).Tokenize()
}

func (l *Lexer) Tokenize() ([]token.Token, []Error) {
	for !l.isAtEnd() {
		l.next()
	}
	return l.tokens, l.errors
}

// next consumes exactly one pattern match, or one invalid byte.
func (l *Lexer) next() {
	ch := l.peek()

	switch {
	case isSpace(ch):
		n := 0
		for l.pos+n < len(l.source) && isSpace(l.source[l.pos+n]) {
			n++
		}
		l.skip(n)
		return
	case ch == '/' && l.peekAt(1) == '/':
		n := strings.IndexByte(l.source[l.pos:], '\n')
		if n < 0 {
			n = len(l.source) - l.pos
		}
		l.skip(n)
		return
	case ch == '/' && l.peekAt(1) == '*':
		if end := strings.Index(l.source[l.pos+2:], "*/"); end >= 0 {
			l.skip(end + 4)
			return
		}
		// An unterminated block comment is not a comment: '/' lexes as an operator.
	case ch == '"':
		if n := l.quotedLen('"', false); n > 0 {
			l.emit(token.String, n)
			return
		}
	case ch == '\'':
		if n := l.quotedLen('\'', true); n > 0 {
			l.emit(token.Char, n)
			return
		}
	case isLetter(ch):
		n := 1
		for l.pos+n < len(l.source) && (isLetter(l.source[l.pos+n]) || isDigit(l.source[l.pos+n])) {
			n++
		}
		word := l.source[l.pos : l.pos+n]
		if kw, ok := token.KeywordMap[word]; ok {
			l.emit(kw, n)
		} else {
			l.emit(token.Ident, n)
		}
		return
	case isDigit(ch):
		l.emit(token.Number, l.numberLen())
		return
	}

	for _, op := range operators {
		if strings.HasPrefix(l.source[l.pos:], op) {
			l.emit(token.Operator, len(op))
			return
		}
	}
	if strings.IndexByte(delimiters, ch) >= 0 {
		l.emit(token.Delimiter, 1)
		return
	}

	sym := l.source[l.pos : l.pos+1]
	l.errors = append(l.errors, Error{
		Line: l.line, Column: l.column, Symbol: sym,
		Message: fmt.Sprintf("Símbolo inválido encontrado: '%s'", sym),
	})
	l.skip(1)
}

// quotedLen returns the length of a quoted literal starting at the cursor, or 0
// if it is unterminated. A backslash escapes any byte except a newline. With
// single set, exactly one character or escape may appear between the quotes.
func (l *Lexer) quotedLen(quote byte, single bool) int {
	i := l.pos + 1
	chars := 0
	for i < len(l.source) {
		c := l.source[i]
		switch {
		case c == quote:
			if single && chars != 1 {
				return 0
			}
			return i + 1 - l.pos
		case c == '\\':
			if i+1 >= len(l.source) || l.source[i+1] == '\n' {
				return 0
			}
			i += 2
		default:
			i++
		}
		chars++
		if single && chars > 1 {
			return 0
		}
	}
	return 0
}

func (l *Lexer) numberLen() int {
	n := 0
	for l.pos+n < len(l.source) && isDigit(l.source[l.pos+n]) {
		n++
	}
	if l.peekAt(n) == '.' && isDigit(l.peekAt(n+1)) {
		n++
		for l.pos+n < len(l.source) && isDigit(l.source[l.pos+n]) {
			n++
		}
	}
	return n
}

func (l *Lexer) emit(typ token.Type, n int) {
	l.tokens = append(l.tokens, token.Token{
		Type: typ, Value: l.source[l.pos : l.pos+n],
		Line: l.line, Column: l.column, Len: n,
	})
	l.skip(n)
}

func (l *Lexer) skip(n int) {
	for i := 0; i < n && !l.isAtEnd(); i++ {
		l.advance()
	}
}

func (l *Lexer) advance() byte {
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) peek() byte { return l.peekAt(0) }

func (l *Lexer) peekAt(off int) byte {
	if l.pos+off >= len(l.source) {
		return 0
	}
	return l.source[l.pos+off]
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isLetter(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
