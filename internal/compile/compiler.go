// Package compile wraps the bytecode compiler as a black-box collaborator:
// given source text, a qualified module name and an optimization level it
// returns compiled bytecode bytes. The concrete implementation drives a
// Python worker process that is expensive to start, so one instance is
// acquired per packaging run and reused sequentially across all modules.
package compile

import (
	"context"
	"fmt"

	"pyforge/internal/pyres"
)

// Mode selects the bytecode artifact shape.
type Mode uint8

const (
	// ModeBytecode produces raw marshaled code, for in-memory loading.
	ModeBytecode Mode = iota
	// ModePycUncheckedHash produces a .pyc with an unchecked-hash header,
	// embedding a content hash instead of a timestamp for reproducibility.
	ModePycUncheckedHash
)

func (m Mode) String() string {
	switch m {
	case ModeBytecode:
		return "bytecode"
	case ModePycUncheckedHash:
		return "pyc-unchecked-hash"
	}
	return "unknown"
}

// Compiler compiles Python source into bytecode.
//
// Implementations are stateful and not safe for concurrent use: the
// packaging pipeline issues calls in strict sequence.
type Compiler interface {
	Compile(ctx context.Context, source []byte, name string, level pyres.OptimizationLevel, mode Mode) ([]byte, error)
	Close() error
}

// Error wraps a compiler failure with the offending module and level.
type Error struct {
	Module string
	Level  pyres.OptimizationLevel
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to compile %s at optimization level %s: %v", e.Module, e.Level, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
