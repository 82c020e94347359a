package classfile

import (
	"fmt"
	"strings"
)

// DisassembleInstruction renders one instruction, resolving constant-pool
// operands against pool.
func DisassembleInstruction(pool ConstantPool, in Instruction) string {
	name := in.Opcode.Name()
	switch {
	case in.Opcode.OperandBytes() == 0:
		return fmt.Sprintf("%04d  %s", in.Position, name)
	case in.Opcode.IsBranch(), in.Opcode == OpTableswitch, in.Opcode == OpLookupswitch:
		return fmt.Sprintf("%04d  %-14s -> %04d", in.Position, name, in.Operand)
	case in.Opcode.IsConstantRef() && in.Opcode.HasExtra():
		return fmt.Sprintf("%04d  %-14s #%d, %d  // %s", in.Position, name, in.Operand, in.Extra, pool.Describe(in.Operand))
	case in.Opcode.IsConstantRef():
		return fmt.Sprintf("%04d  %-14s #%d  // %s", in.Position, name, in.Operand, pool.Describe(in.Operand))
	case in.Opcode.HasExtra():
		return fmt.Sprintf("%04d  %-14s %d, %d", in.Position, name, in.Operand, in.Extra)
	}
	return fmt.Sprintf("%04d  %-14s %d", in.Position, name, in.Operand)
}

// DisassembleMethod returns a listing of one method.
func DisassembleMethod(pool ConstantPool, m *Method) string {
	var sb strings.Builder
	if m.IsStatic() {
		sb.WriteString("static ")
	}
	fmt.Fprintf(&sb, "%s%s  ; locals=%d args=%d\n", m.Name, m.Descriptor, m.MaxLocals, m.ArgSlots)
	for _, in := range m.Instructions {
		sb.WriteString("  ")
		sb.WriteString(DisassembleInstruction(pool, in))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Disassemble returns a listing of every method of c.
func Disassemble(c *Class) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; class %s", c.Name)
	if c.SuperName != "" {
		fmt.Fprintf(&sb, " extends %s", c.SuperName)
	}
	sb.WriteString("\n")
	for _, m := range c.Methods {
		sb.WriteString("\n")
		sb.WriteString(DisassembleMethod(c.ConstantPool, m))
	}
	return sb.String()
}
