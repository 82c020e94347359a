package vm

import (
	"fmt"

	"github.com/chazu/minijvm/classfile"
)

// ---------------------------------------------------------------------------
// Frame: execution state for a method invocation
// ---------------------------------------------------------------------------

// Frame holds the locals, operand stack and instruction cursor of one
// method invocation. A frame is owned by the call stack holding it.
type Frame struct {
	Class  *classfile.Class
	Method *classfile.Method

	locals []Value
	stack  []Value
	cursor int // index into Method.Instructions
}

// NewFrame creates a frame for m with MaxLocals zeroed local slots.
func NewFrame(class *classfile.Class, m *classfile.Method) *Frame {
	return &Frame{
		Class:  class,
		Method: m,
		locals: make([]Value, m.MaxLocals),
		stack:  make([]Value, 0, m.MaxStack),
	}
}

// Push appends v to the operand stack.
func (f *Frame) Push(v Value) {
	f.stack = append(f.stack, v)
}

// Pop removes and returns the top of the operand stack.
func (f *Frame) Pop() (Value, error) {
	n := len(f.stack)
	if n == 0 {
		return Value{}, ErrStackUnderflow
	}
	v := f.stack[n-1]
	f.stack = f.stack[:n-1]
	return v, nil
}

// PopInt pops the top of the operand stack, which must be an integer.
func (f *Frame) PopInt() (int32, error) {
	v, err := f.Pop()
	if err != nil {
		return 0, err
	}
	n, ok := v.AsInt()
	if !ok {
		return 0, fmt.Errorf("%w: expected int, got %s", ErrTypeMismatch, v.Kind())
	}
	return n, nil
}

// Peek returns the top of the operand stack without removing it.
func (f *Frame) Peek() (Value, error) {
	if len(f.stack) == 0 {
		return Value{}, ErrStackUnderflow
	}
	return f.stack[len(f.stack)-1], nil
}

// StackDepth returns the number of values on the operand stack.
func (f *Frame) StackDepth() int {
	return len(f.stack)
}

// Stack returns a copy of the operand stack, bottom first.
func (f *Frame) Stack() []Value {
	return append([]Value(nil), f.stack...)
}

// Locals returns a copy of the local slots.
func (f *Frame) Locals() []Value {
	return append([]Value(nil), f.locals...)
}

// Local returns local slot i.
func (f *Frame) Local(i int) (Value, error) {
	if i < 0 || i >= len(f.locals) {
		return Value{}, fmt.Errorf("%w: %d (max locals %d)", ErrInvalidLocalIndex, i, len(f.locals))
	}
	return f.locals[i], nil
}

// SetLocal stores v in local slot i.
func (f *Frame) SetLocal(i int, v Value) error {
	if i < 0 || i >= len(f.locals) {
		return fmt.Errorf("%w: %d (max locals %d)", ErrInvalidLocalIndex, i, len(f.locals))
	}
	f.locals[i] = v
	return nil
}

// Next returns the instruction at the cursor and advances past it. It
// reports false once the method's instructions are exhausted.
func (f *Frame) Next() (classfile.Instruction, bool) {
	if f.cursor >= len(f.Method.Instructions) {
		return classfile.Instruction{}, false
	}
	in := f.Method.Instructions[f.cursor]
	f.cursor++
	return in, true
}

// Position returns the byte position of the instruction Next will return,
// or -1 when the method is exhausted.
func (f *Frame) Position() int {
	if f.cursor >= len(f.Method.Instructions) {
		return -1
	}
	return f.Method.Instructions[f.cursor].Position
}

// JumpTo moves the cursor to the instruction starting at position.
func (f *Frame) JumpTo(position int) error {
	idx, ok := f.Method.IndexOf(position)
	if !ok {
		return fmt.Errorf("%w: %d in %s", ErrInvalidJumpTarget, position, f.Method)
	}
	f.cursor = idx
	return nil
}

// className returns the owning class name, or "?" for frames without one.
func (f *Frame) className() string {
	if f.Class == nil {
		return "?"
	}
	return f.Class.Name
}

func (f *Frame) String() string {
	return f.className() + "." + f.Method.Name
}
