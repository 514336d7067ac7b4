package token

import "fmt"

type Type int

const (
	EOF Type = iota
	String
	Char
	Int
	Float
	CharKw
	Void
	If
	Else
	Return
	While
	For
	Break
	Continue
	Switch
	Case
	Default
	Ident
	Number
	Operator
	Delimiter
)

var KeywordMap = map[string]Type{
	"int":      Int,
	"float":    Float,
	"char":     CharKw,
	"void":     Void,
	"if":       If,
	"else":     Else,
	"return":   Return,
	"while":    While,
	"for":      For,
	"break":    Break,
	"continue": Continue,
	"switch":   Switch,
	"case":     Case,
	"default":  Default,
}

var typeNames = [...]string{
	EOF:       "EOF",
	String:    "STRING_LITERAL",
	Char:      "CHAR_LITERAL",
	Int:       "INT",
	Float:     "FLOAT",
	CharKw:    "CHAR",
	Void:      "VOID",
	If:        "IF",
	Else:      "ELSE",
	Return:    "RETURN",
	While:     "WHILE",
	For:       "FOR",
	Break:     "BREAK",
	Continue:  "CONTINUE",
	Switch:    "SWITCH",
	Case:      "CASE",
	Default:   "DEFAULT",
	Ident:     "IDENTIFIER",
	Number:    "NUMBER",
	Operator:  "OPERATOR",
	Delimiter: "DELIMITER",
}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

func (t Type) IsKeyword() bool { return t >= Int && t <= Default }

// IsTypeKeyword reports whether t names a CMM type (int, float, char, void).
func (t Type) IsTypeKeyword() bool { return t >= Int && t <= Void }

type Token struct {
	Type   Type
	Value  string
	Line   int
	Column int
	Len    int
}

// String renders the canonical "[KIND: text]" form.
func (t Token) String() string {
	return fmt.Sprintf("[%s: %s]", t.Type, t.Value)
}

// Is reports whether t is the operator or delimiter spelled value.
func (t Token) Is(value string) bool {
	return (t.Type == Operator || t.Type == Delimiter) && t.Value == value
}
