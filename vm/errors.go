package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/minijvm/classfile"
)

var (
	ErrStackUnderflow       = errors.New("operand stack underflow")
	ErrCallStackUnderflow   = errors.New("call stack underflow")
	ErrStackOverflow        = errors.New("call stack depth exceeded")
	ErrInvalidJumpTarget    = errors.New("invalid jump target")
	ErrInvalidLocalIndex    = errors.New("invalid local variable index")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrUnimplementedOpcode  = errors.New("unimplemented opcode")
	ErrTypeMismatch         = errors.New("type mismatch")
	ErrDivisionByZero       = errors.New("division by zero")
	ErrNoSuchMethod         = errors.New("no such method")
)

// ExecutionError reports a failure while executing an instruction. It
// unwraps to one of the sentinel errors above, or to the error returned by
// the class provider.
type ExecutionError struct {
	Class    string
	Method   string
	Position int
	Opcode   classfile.Opcode
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s.%s at %04d (%s): %v", e.Class, e.Method, e.Position, e.Opcode, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
