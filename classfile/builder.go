package classfile

import "fmt"

// ---------------------------------------------------------------------------
// ClassBuilder: assembles classes in memory
// ---------------------------------------------------------------------------

// ClassBuilder constructs a Class without going through the binary format.
// Instruction positions are assigned from the opcode width table, so built
// methods address jumps the same way decoded ones do.
type ClassBuilder struct {
	class   *Class
	index   map[string]int
	methods []*MethodBuilder
}

// NewClassBuilder creates a builder for a class with the given binary or
// internal name.
func NewClassBuilder(name string) *ClassBuilder {
	b := &ClassBuilder{
		class: &Class{
			Name:         InternalName(name),
			SuperName:    "java/lang/Object",
			AccessFlags:  AccPublic,
			ConstantPool: ConstantPool{{Tag: TagUnused}},
		},
		index: make(map[string]int),
	}
	b.Class(b.class.Name)
	b.Class(b.class.SuperName)
	return b
}

// add interns a constant and returns its pool index.
func (b *ClassBuilder) add(key string, c Constant) int {
	if idx, ok := b.index[key]; ok {
		return idx
	}
	b.class.ConstantPool = append(b.class.ConstantPool, c)
	idx := len(b.class.ConstantPool) - 1
	b.index[key] = idx
	return idx
}

// Utf8 interns a Utf8 constant.
func (b *ClassBuilder) Utf8(s string) int {
	return b.add("U:"+s, Constant{Tag: TagUtf8, Text: s})
}

// Class interns a Class constant.
func (b *ClassBuilder) Class(name string) int {
	name = InternalName(name)
	nameIdx := b.Utf8(name)
	return b.add("C:"+name, Constant{Tag: TagClass, A: uint16(nameIdx)})
}

// NameAndType interns a NameAndType constant.
func (b *ClassBuilder) NameAndType(name, descriptor string) int {
	n := b.Utf8(name)
	d := b.Utf8(descriptor)
	return b.add("N:"+name+":"+descriptor, Constant{Tag: TagNameAndType, A: uint16(n), B: uint16(d)})
}

// MethodRef interns a Methodref constant.
func (b *ClassBuilder) MethodRef(owner, name, descriptor string) int {
	return b.memberRef(TagMethodRef, "M:", owner, name, descriptor)
}

// FieldRef interns a Fieldref constant.
func (b *ClassBuilder) FieldRef(owner, name, descriptor string) int {
	return b.memberRef(TagFieldRef, "F:", owner, name, descriptor)
}

func (b *ClassBuilder) memberRef(tag ConstantTag, prefix, owner, name, descriptor string) int {
	c := b.Class(owner)
	nat := b.NameAndType(name, descriptor)
	key := prefix + InternalName(owner) + "." + name + ":" + descriptor
	return b.add(key, Constant{Tag: tag, A: uint16(c), B: uint16(nat)})
}

// Method starts a public static method. ArgSlots is derived from the
// descriptor; an invalid descriptor panics.
func (b *ClassBuilder) Method(name, descriptor string, maxLocals int) *MethodBuilder {
	slots, err := ArgSlots(descriptor)
	if err != nil {
		panic(fmt.Sprintf("ClassBuilder.Method: %v", err))
	}
	b.Utf8(name)
	b.Utf8(descriptor)
	b.Utf8("Code")
	mb := &MethodBuilder{
		method: &Method{
			Name:        name,
			Descriptor:  descriptor,
			AccessFlags: AccPublic | AccStatic,
			MaxLocals:   maxLocals,
			ArgSlots:    slots,
		},
	}
	b.methods = append(b.methods, mb)
	return mb
}

// Build finalizes every method and returns the class.
func (b *ClassBuilder) Build() *Class {
	b.class.Methods = make([]*Method, 0, len(b.methods))
	for _, mb := range b.methods {
		b.class.Methods = append(b.class.Methods, mb.Build())
	}
	return b.class
}

// ---------------------------------------------------------------------------
// MethodBuilder
// ---------------------------------------------------------------------------

// MethodBuilder appends instructions to a method.
type MethodBuilder struct {
	method *Method
	pos    int
	labels []*Label
}

// Label is a jump target that may be marked after the jumps referring to it.
type Label struct {
	resolved bool
	position int
	refs     []int // indices of instructions whose operand is this label
}

// Position returns the byte offset the next instruction will occupy.
func (mb *MethodBuilder) Position() int {
	return mb.pos
}

func (mb *MethodBuilder) append(op Opcode, operand int) *MethodBuilder {
	width := op.Width()
	if width == 0 {
		panic(fmt.Sprintf("MethodBuilder: %s has variable length", op))
	}
	mb.method.Instructions = append(mb.method.Instructions, Instruction{Opcode: op, Operand: operand, Position: mb.pos})
	mb.pos += width
	return mb
}

// Emit appends an instruction without operands.
func (mb *MethodBuilder) Emit(op Opcode) *MethodBuilder {
	if op.OperandBytes() != 0 {
		panic(fmt.Sprintf("MethodBuilder.Emit: %s requires an operand", op))
	}
	return mb.append(op, 0)
}

// EmitOperand appends an instruction with a literal, slot or pool-index
// operand.
func (mb *MethodBuilder) EmitOperand(op Opcode, operand int) *MethodBuilder {
	if op.OperandBytes() == 0 {
		panic(fmt.Sprintf("MethodBuilder.EmitOperand: %s takes no operand", op))
	}
	return mb.append(op, operand)
}

// NewLabel creates an unresolved label.
func (mb *MethodBuilder) NewLabel() *Label {
	l := &Label{}
	mb.labels = append(mb.labels, l)
	return l
}

// Mark resolves a label to the current position.
func (mb *MethodBuilder) Mark(l *Label) *MethodBuilder {
	if l.resolved {
		panic("label already resolved")
	}
	l.resolved = true
	l.position = mb.pos
	for _, ref := range l.refs {
		mb.method.Instructions[ref].Operand = l.position
	}
	l.refs = nil
	return mb
}

// EmitJump appends a branch to a label.
func (mb *MethodBuilder) EmitJump(op Opcode, l *Label) *MethodBuilder {
	if !op.IsBranch() {
		panic(fmt.Sprintf("MethodBuilder.EmitJump: %s is not a branch", op))
	}
	if l.resolved {
		return mb.append(op, l.position)
	}
	l.refs = append(l.refs, len(mb.method.Instructions))
	return mb.append(op, 0)
}

// Build returns the method. Every label must have been marked.
func (mb *MethodBuilder) Build() *Method {
	for _, l := range mb.labels {
		if !l.resolved {
			panic(fmt.Sprintf("MethodBuilder.Build: unresolved label in %s", mb.method))
		}
	}
	return mb.method
}
