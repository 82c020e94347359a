package vm

import "strconv"

// ---------------------------------------------------------------------------
// Value: operand-stack and local-slot contents
// ---------------------------------------------------------------------------

// Kind discriminates the variants of Value.
type Kind uint8

const (
	KindInt Kind = iota
	KindHandle
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindHandle:
		return "handle"
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Handle names an external object that can sit on the operand stack.
type Handle uint8

const (
	// StdoutHandle is the value of java/lang/System.out.
	StdoutHandle Handle = iota + 1
	// ArgsHandle is the argument vector passed to main.
	ArgsHandle
)

func (h Handle) String() string {
	switch h {
	case StdoutHandle:
		return "System.out"
	case ArgsHandle:
		return "String[] args"
	}
	return "Handle(" + strconv.Itoa(int(h)) + ")"
}

// Value is either a 32-bit integer or an external handle. The zero Value is
// the integer 0, which is what fresh local slots hold.
type Value struct {
	kind Kind
	bits int32
}

// Int returns an integer Value.
func Int(v int32) Value {
	return Value{kind: KindInt, bits: v}
}

// HandleValue returns a Value referring to h.
func HandleValue(h Handle) Value {
	return Value{kind: KindHandle, bits: int32(h)}
}

func (v Value) Kind() Kind { return v.kind }

// AsInt returns the integer held by v.
func (v Value) AsInt() (int32, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.bits, true
}

// AsHandle returns the handle held by v.
func (v Value) AsHandle() (Handle, bool) {
	if v.kind != KindHandle {
		return 0, false
	}
	return Handle(v.bits), true
}

func (v Value) String() string {
	if v.kind == KindHandle {
		return "<" + Handle(v.bits).String() + ">"
	}
	return strconv.FormatInt(int64(v.bits), 10)
}
