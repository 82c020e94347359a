package vm

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/chazu/minijvm/classfile"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("minijvm.vm")

// ClassProvider supplies decoded classes by name.
type ClassProvider interface {
	LoadClass(name string) (*classfile.Class, error)
}

// hostMethod backs the frame Call places beneath its callee so that ireturn
// has a caller to deliver the result to.
var hostMethod = &classfile.Method{Name: "<host>"}

// ---------------------------------------------------------------------------
// Interpreter: dispatch loop
// ---------------------------------------------------------------------------

// Interpreter executes methods loaded from a ClassProvider. An Interpreter
// runs one program at a time and is not safe for concurrent use.
type Interpreter struct {
	Classes ClassProvider
	Out     io.Writer // println output
	Trace   io.Writer // when set, every executed instruction is logged here

	// MaxDepth bounds the call stack. It takes effect at the next Start,
	// Boot or Call.
	MaxDepth int

	frames   *CallStack
	executed uint64
}

// NewInterpreter creates an interpreter loading classes from classes and
// printing to out. A nil out means os.Stdout.
func NewInterpreter(classes ClassProvider, out io.Writer) *Interpreter {
	if out == nil {
		out = os.Stdout
	}
	return &Interpreter{
		Classes:  classes,
		Out:      out,
		MaxDepth: DefaultMaxDepth,
		frames:   NewCallStack(DefaultMaxDepth),
	}
}

// CallStack returns the current call stack.
func (i *Interpreter) CallStack() *CallStack {
	return i.frames
}

// Executed returns the number of instructions executed since the last
// Start, Boot or Call.
func (i *Interpreter) Executed() uint64 {
	return i.executed
}

// resolve loads className and finds its first method named methodName.
func (i *Interpreter) resolve(className, methodName string) (*classfile.Class, *classfile.Method, error) {
	class, err := i.Classes.LoadClass(className)
	if err != nil {
		return nil, nil, err
	}
	m, ok := class.Method(methodName)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s.%s", ErrNoSuchMethod, class.Name, methodName)
	}
	return class, m, nil
}

// newFrame builds a frame for m with args in its leading local slots.
func newFrame(class *classfile.Class, m *classfile.Method, args []Value) (*Frame, error) {
	f := NewFrame(class, m)
	for slot, v := range args {
		if err := f.SetLocal(slot, v); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", class.Name, m, err)
		}
	}
	return f, nil
}

func (i *Interpreter) reset() {
	i.frames = NewCallStack(i.MaxDepth)
	i.executed = 0
}

// Start prepares to execute the first method named methodName in className,
// with args in its leading local slots. Nothing runs until Run or Step.
func (i *Interpreter) Start(className, methodName string, args ...Value) error {
	class, m, err := i.resolve(className, methodName)
	if err != nil {
		return err
	}
	f, err := newFrame(class, m, args)
	if err != nil {
		return err
	}
	i.reset()
	log.Debugf("start %s (max depth %d)", f, i.frames.MaxDepth())
	return i.frames.Push(f)
}

// Boot runs the main method of className to completion. Local slot 0 of
// main holds ArgsHandle, standing for args; the strings themselves are
// not reachable from bytecode.
func (i *Interpreter) Boot(ctx context.Context, className string, args []string) error {
	log.Debugf("boot %s with %d arguments", className, len(args))
	if err := i.Start(className, "main", HandleValue(ArgsHandle)); err != nil {
		return err
	}
	err := i.Run(ctx)
	log.Infof("%s.main: executed %d instructions", classfile.InternalName(className), i.executed)
	return err
}

// Call runs the first method named methodName in className to completion
// and returns what it returned. A method returning void yields the zero
// Value.
func (i *Interpreter) Call(ctx context.Context, className, methodName string, args ...Value) (Value, error) {
	class, m, err := i.resolve(className, methodName)
	if err != nil {
		return Value{}, err
	}
	callee, err := newFrame(class, m, args)
	if err != nil {
		return Value{}, err
	}
	i.reset()
	host := NewFrame(nil, hostMethod)
	if err := i.frames.Push(host); err != nil {
		return Value{}, err
	}
	if err := i.frames.Push(callee); err != nil {
		return Value{}, err
	}
	if err := i.run(ctx, 1); err != nil {
		return Value{}, err
	}
	if _, err := i.frames.Pop(); err != nil {
		return Value{}, err
	}
	if host.StackDepth() == 0 {
		return Value{}, nil
	}
	return host.Pop()
}

// Run executes until the call stack is empty, an instruction fails or ctx
// is done.
func (i *Interpreter) Run(ctx context.Context) error {
	return i.run(ctx, 0)
}

// run executes while more than floor frames remain.
func (i *Interpreter) run(ctx context.Context, floor int) error {
	for i.frames.Depth() > floor {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := i.step(); err != nil {
			return err
		}
	}
	return nil
}

// Step executes a single instruction of the top frame, or the implicit
// return of an exhausted method. It reports whether the program has
// finished.
func (i *Interpreter) Step() (bool, error) {
	if i.frames.Depth() == 0 {
		return true, nil
	}
	if err := i.step(); err != nil {
		return false, err
	}
	return i.frames.Depth() == 0, nil
}

func (i *Interpreter) step() error {
	frame := i.frames.Top()
	in, ok := frame.Next()
	if !ok {
		// Ran off the end of the method: treat as return.
		log.Debugf("implicit return from %s", frame)
		_, err := i.frames.Pop()
		return err
	}
	i.executed++

	if i.Trace != nil {
		var pool classfile.ConstantPool
		if frame.Class != nil {
			pool = frame.Class.ConstantPool
		}
		fmt.Fprintf(i.Trace, "[%d] %s %s\n", i.frames.Depth(), frame, classfile.DisassembleInstruction(pool, in))
	}

	if err := i.execute(frame, in); err != nil {
		return &ExecutionError{
			Class:    frame.className(),
			Method:   frame.Method.String(),
			Position: in.Position,
			Opcode:   in.Opcode,
			Err:      err,
		}
	}
	return nil
}

// execute dispatches one instruction.
func (i *Interpreter) execute(frame *Frame, in classfile.Instruction) error {
	switch op := in.Opcode; op {
	case classfile.OpNop:
		return nil

	// --- Constants ---
	case classfile.OpIconstM1, classfile.OpIconst0, classfile.OpIconst1, classfile.OpIconst2,
		classfile.OpIconst3, classfile.OpIconst4, classfile.OpIconst5:
		frame.Push(Int(int32(op) - int32(classfile.OpIconst0)))
		return nil

	case classfile.OpBipush, classfile.OpSipush:
		frame.Push(Int(int32(in.Operand)))
		return nil

	// --- Locals ---
	case classfile.OpIload:
		return loadLocal(frame, in.Operand)

	case classfile.OpIload0, classfile.OpIload1, classfile.OpIload2, classfile.OpIload3:
		return loadLocal(frame, int(op-classfile.OpIload0))

	case classfile.OpIstore:
		return storeLocal(frame, in.Operand)

	case classfile.OpIstore0, classfile.OpIstore1, classfile.OpIstore2, classfile.OpIstore3:
		return storeLocal(frame, int(op-classfile.OpIstore0))

	// --- Stack ---
	case classfile.OpPop:
		_, err := frame.Pop()
		return err

	case classfile.OpDup:
		v, err := frame.Peek()
		if err != nil {
			return err
		}
		frame.Push(v)
		return nil

	// --- Arithmetic ---
	case classfile.OpIadd, classfile.OpIsub, classfile.OpImul, classfile.OpIdiv, classfile.OpIrem:
		return arith(frame, op)

	// --- Control flow ---
	case classfile.OpIfeq, classfile.OpIfne:
		v, err := frame.PopInt()
		if err != nil {
			return err
		}
		if (v != 0) == (op == classfile.OpIfne) {
			return frame.JumpTo(in.Operand)
		}
		return nil

	case classfile.OpGoto, classfile.OpGotoW:
		return frame.JumpTo(in.Operand)

	// --- Fields and invocation ---
	case classfile.OpGetstatic:
		return getStatic(frame, in.Operand)

	case classfile.OpInvokestatic:
		return i.invokeStatic(frame, in.Operand)

	case classfile.OpInvokevirtual:
		return i.invokeVirtual(frame, in.Operand)

	// --- Returns ---
	case classfile.OpIreturn:
		if i.frames.Depth() < 2 {
			return fmt.Errorf("%w: ireturn from outermost frame", ErrCallStackUnderflow)
		}
		v, err := frame.Pop()
		if err != nil {
			return err
		}
		if _, err := i.frames.Pop(); err != nil {
			return err
		}
		i.frames.Top().Push(v)
		log.Debugf("%s returned %s", frame, v)
		return nil

	case classfile.OpReturn:
		_, err := i.frames.Pop()
		return err

	default:
		return fmt.Errorf("%w: %s", ErrUnimplementedOpcode, op)
	}
}

func loadLocal(frame *Frame, slot int) error {
	v, err := frame.Local(slot)
	if err != nil {
		return err
	}
	frame.Push(v)
	return nil
}

func storeLocal(frame *Frame, slot int) error {
	v, err := frame.Pop()
	if err != nil {
		return err
	}
	return frame.SetLocal(slot, v)
}

// arith pops b then a and pushes a op b with 32-bit wrap-around.
func arith(frame *Frame, op classfile.Opcode) error {
	b, err := frame.PopInt()
	if err != nil {
		return err
	}
	a, err := frame.PopInt()
	if err != nil {
		return err
	}
	var r int32
	switch op {
	case classfile.OpIadd:
		r = a + b
	case classfile.OpIsub:
		r = a - b
	case classfile.OpImul:
		r = a * b
	case classfile.OpIdiv:
		if b == 0 {
			return ErrDivisionByZero
		}
		r = a / b
	case classfile.OpIrem:
		if b == 0 {
			return ErrDivisionByZero
		}
		r = a % b
	default:
		return fmt.Errorf("%w: %s", ErrUnimplementedOpcode, op)
	}
	frame.Push(Int(r))
	return nil
}

// invokeStatic pushes a frame for the referenced method. The callee's
// argument slots are filled from the caller's operand stack, deepest value
// into slot 0; its remaining locals start at zero.
func (i *Interpreter) invokeStatic(frame *Frame, index int) error {
	pool := frame.Class.ConstantPool
	owner, err := pool.OwnerClassName(index)
	if err != nil {
		return err
	}
	name, err := pool.MemberName(index)
	if err != nil {
		return err
	}
	class, m, err := i.resolve(owner, name)
	if err != nil {
		return err
	}
	if m.ArgSlots > m.MaxLocals {
		return fmt.Errorf("%w: %s.%s takes %d argument slots but has %d locals",
			ErrInvalidLocalIndex, class.Name, m, m.ArgSlots, m.MaxLocals)
	}

	callee := NewFrame(class, m)
	for slot := m.ArgSlots - 1; slot >= 0; slot-- {
		v, err := frame.Pop()
		if err != nil {
			return err
		}
		callee.locals[slot] = v
	}
	if err := i.frames.Push(callee); err != nil {
		return err
	}
	log.Debugf("call %s (depth %d)", callee, i.frames.Depth())
	return nil
}
