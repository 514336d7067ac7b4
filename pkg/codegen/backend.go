package codegen

import (
	"bytes"

	"github.com/cmm-lang/cmmc/pkg/ast"
	"github.com/cmm-lang/cmmc/pkg/config"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate takes a semantically valid program and a configuration, and
	// produces the target assembly as a byte buffer.
	Generate(prog *ast.Node, cfg *config.Config) (*bytes.Buffer, error)
}

// NewBackend returns the backend selected by cfg.BackendName.
func NewBackend(cfg *config.Config) Backend {
	if cfg.BackendName == "qbe" {
		return NewQBEBackend()
	}
	return NewNASMBackend()
}

type nasmBackend struct{}

func NewNASMBackend() Backend { return nasmBackend{} }

func (nasmBackend) Generate(prog *ast.Node, cfg *config.Config) (*bytes.Buffer, error) {
	asm, err := NewContext(cfg).Generate(prog)
	if err != nil {
		return nil, err
	}
	return bytes.NewBufferString(asm), nil
}
