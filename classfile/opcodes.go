package classfile

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode is a single JVM instruction tag.
type Opcode byte

// Constants
const (
	OpNop       Opcode = 0x00 // no operation
	OpIconstM1  Opcode = 0x02 // push -1
	OpIconst0   Opcode = 0x03 // push 0
	OpIconst1   Opcode = 0x04 // push 1
	OpIconst2   Opcode = 0x05 // push 2
	OpIconst3   Opcode = 0x06 // push 3
	OpIconst4   Opcode = 0x07 // push 4
	OpIconst5   Opcode = 0x08 // push 5
	OpBipush    Opcode = 0x10 // push sign-extended byte
	OpSipush    Opcode = 0x11 // push sign-extended short
	OpLdc       Opcode = 0x12 // push constant (8-bit pool index)
)

// Locals
const (
	OpIload   Opcode = 0x15 // push int local (8-bit index)
	OpIload0  Opcode = 0x1A
	OpIload1  Opcode = 0x1B
	OpIload2  Opcode = 0x1C
	OpIload3  Opcode = 0x1D
	OpAload0  Opcode = 0x2A
	OpIstore  Opcode = 0x36 // pop into int local (8-bit index)
	OpIstore0 Opcode = 0x3B
	OpIstore1 Opcode = 0x3C
	OpIstore2 Opcode = 0x3D
	OpIstore3 Opcode = 0x3E
)

// Stack and arithmetic
const (
	OpPop  Opcode = 0x57
	OpDup  Opcode = 0x59
	OpIadd Opcode = 0x60
	OpIsub Opcode = 0x64
	OpImul Opcode = 0x68
	OpIdiv Opcode = 0x6C
	OpIrem Opcode = 0x70
	OpIinc Opcode = 0x84
)

// Control flow
const (
	OpIfeq         Opcode = 0x99 // pop, branch if zero (16-bit offset)
	OpIfne         Opcode = 0x9A // pop, branch if non-zero (16-bit offset)
	OpGoto         Opcode = 0xA7 // unconditional branch (16-bit offset)
	OpTableswitch  Opcode = 0xAA
	OpLookupswitch Opcode = 0xAB
	OpIreturn      Opcode = 0xAC
	OpReturn       Opcode = 0xB1
	OpGotoW        Opcode = 0xC8 // unconditional branch (32-bit offset)
	OpJsrW         Opcode = 0xC9
)

// References
const (
	OpGetstatic       Opcode = 0xB2 // push static field (16-bit pool index)
	OpInvokevirtual   Opcode = 0xB6 // 16-bit pool index
	OpInvokespecial   Opcode = 0xB7 // 16-bit pool index
	OpInvokestatic    Opcode = 0xB8 // 16-bit pool index
	OpInvokeinterface Opcode = 0xB9 // 16-bit pool index, count, 0
	OpInvokedynamic   Opcode = 0xBA // 16-bit pool index, 0, 0
	OpNew             Opcode = 0xBB
	OpWide            Opcode = 0xC4
	OpMultianewarray  Opcode = 0xC5 // 16-bit pool index, dimensions
)

// variableOperands marks opcodes whose operand length depends on the
// position or on the following bytes.
const variableOperands = -1

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string // mnemonic as printed by javap
	OperandBytes int    // operand bytes following the opcode (-1 = variable)
}

// opcodeNames lists the mnemonics of every defined JVM opcode, 0x00..0xC9.
var opcodeNames = [...]string{
	"nop", "aconst_null", "iconst_m1", "iconst_0", "iconst_1", "iconst_2", "iconst_3", "iconst_4",
	"iconst_5", "lconst_0", "lconst_1", "fconst_0", "fconst_1", "fconst_2", "dconst_0", "dconst_1",
	"bipush", "sipush", "ldc", "ldc_w", "ldc2_w", "iload", "lload", "fload",
	"dload", "aload", "iload_0", "iload_1", "iload_2", "iload_3", "lload_0", "lload_1",
	"lload_2", "lload_3", "fload_0", "fload_1", "fload_2", "fload_3", "dload_0", "dload_1",
	"dload_2", "dload_3", "aload_0", "aload_1", "aload_2", "aload_3", "iaload", "laload",
	"faload", "daload", "aaload", "baload", "caload", "saload", "istore", "lstore",
	"fstore", "dstore", "astore", "istore_0", "istore_1", "istore_2", "istore_3", "lstore_0",
	"lstore_1", "lstore_2", "lstore_3", "fstore_0", "fstore_1", "fstore_2", "fstore_3", "dstore_0",
	"dstore_1", "dstore_2", "dstore_3", "astore_0", "astore_1", "astore_2", "astore_3", "iastore",
	"lastore", "fastore", "dastore", "aastore", "bastore", "castore", "sastore", "pop",
	"pop2", "dup", "dup_x1", "dup_x2", "dup2", "dup2_x1", "dup2_x2", "swap",
	"iadd", "ladd", "fadd", "dadd", "isub", "lsub", "fsub", "dsub",
	"imul", "lmul", "fmul", "dmul", "idiv", "ldiv", "fdiv", "ddiv",
	"irem", "lrem", "frem", "drem", "ineg", "lneg", "fneg", "dneg",
	"ishl", "lshl", "ishr", "lshr", "iushr", "lushr", "iand", "land",
	"ior", "lor", "ixor", "lxor", "iinc", "i2l", "i2f", "i2d",
	"l2i", "l2f", "l2d", "f2i", "f2l", "f2d", "d2i", "d2l",
	"d2f", "i2b", "i2c", "i2s", "lcmp", "fcmpl", "fcmpg", "dcmpl",
	"dcmpg", "ifeq", "ifne", "iflt", "ifge", "ifgt", "ifle", "if_icmpeq",
	"if_icmpne", "if_icmplt", "if_icmpge", "if_icmpgt", "if_icmple", "if_acmpeq", "if_acmpne", "goto",
	"jsr", "ret", "tableswitch", "lookupswitch", "ireturn", "lreturn", "freturn", "dreturn",
	"areturn", "return", "getstatic", "putstatic", "getfield", "putfield", "invokevirtual", "invokespecial",
	"invokestatic", "invokeinterface", "invokedynamic", "new", "newarray", "anewarray", "arraylength", "athrow",
	"checkcast", "instanceof", "monitorenter", "monitorexit", "wide", "multianewarray", "ifnull", "ifnonnull",
	"goto_w", "jsr_w",
}

// operandBytes lists every opcode that carries operands. Opcodes absent
// from the map take none.
var operandBytes = map[Opcode]int{
	0x10: 1, 0x11: 2, 0x12: 1, 0x13: 2, 0x14: 2, // bipush sipush ldc ldc_w ldc2_w
	0x15: 1, 0x16: 1, 0x17: 1, 0x18: 1, 0x19: 1, // xload
	0x36: 1, 0x37: 1, 0x38: 1, 0x39: 1, 0x3A: 1, // xstore
	0x84: 2, // iinc
	0xA9: 1, // ret
	0xAA: variableOperands, 0xAB: variableOperands, 0xC4: variableOperands,
	0xB2: 2, 0xB3: 2, 0xB4: 2, 0xB5: 2, // field access
	0xB6: 2, 0xB7: 2, 0xB8: 2, 0xB9: 4, 0xBA: 4, // invokes
	0xBB: 2, 0xBC: 1, 0xBD: 2, 0xC0: 2, 0xC1: 2, 0xC5: 3,
	0xC8: 4, 0xC9: 4,
}

// Defined reports whether op is part of the instruction set.
func (op Opcode) Defined() bool {
	return int(op) < len(opcodeNames)
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if !op.Defined() {
		return OpcodeInfo{Name: fmt.Sprintf("unknown_%02x", byte(op))}
	}
	n := operandBytes[op]
	if op >= OpIfeq && op <= 0xA8 || op == 0xC6 || op == 0xC7 {
		n = 2
	}
	return OpcodeInfo{Name: opcodeNames[op], OperandBytes: n}
}

// Name returns the mnemonic for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// OperandBytes returns the number of operand bytes for an opcode.
func (op Opcode) OperandBytes() int {
	return op.Info().OperandBytes
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// IsBranch reports whether the operand of op is a jump target.
func (op Opcode) IsBranch() bool {
	switch {
	case op >= OpIfeq && op <= 0xA8:
		return true
	case op == 0xC6, op == 0xC7, op == OpGotoW, op == OpJsrW:
		return true
	}
	return false
}

// IsConstantRef reports whether the operand of op indexes the constant pool.
func (op Opcode) IsConstantRef() bool {
	switch op {
	case OpLdc, 0x13, 0x14, 0xB2, 0xB3, 0xB4, 0xB5,
		OpInvokevirtual, OpInvokespecial, OpInvokestatic, OpInvokeinterface, OpInvokedynamic,
		OpNew, 0xBD, 0xC0, 0xC1, OpMultianewarray:
		return true
	}
	return false
}

// Width returns the encoded length of an instruction with a fixed operand
// length, including the opcode byte. It returns 0 for variable-length
// instructions.
func (op Opcode) Width() int {
	n := op.OperandBytes()
	if n == variableOperands {
		return 0
	}
	return 1 + n
}
