// Package classfile models decoded JVM classes: their constant pools,
// methods and instruction lists. It also decodes the binary class-file
// format and provides a builder for assembling classes in memory.
//
// Instructions are stored decoded rather than as raw bytes. Each carries its
// byte offset within the method (Position), which is the unit branch targets
// are expressed in. The decoder converts the relative branch offsets of the
// class-file format into absolute positions, so an interpreter can resolve a
// jump with a single lookup.
package classfile

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Access flags used by the engine.
const (
	AccPublic = 0x0001
	AccStatic = 0x0008
)

// Instruction is one decoded instruction.
//
// Operand meaning depends on the opcode: the sign-extended literal for
// bipush/sipush, the slot for indexed local access, the constant-pool index
// for field and method references, and the absolute target position for
// branches.
//
// Extra holds the second operand of the few opcodes that have one: the
// signed increment of iinc, the argument count of invokeinterface and the
// dimension count of multianewarray.
type Instruction struct {
	Opcode   Opcode `cbor:"1,keyasint"`
	Operand  int    `cbor:"2,keyasint,omitempty"`
	Position int    `cbor:"3,keyasint"`
	Extra    int    `cbor:"4,keyasint,omitempty"`
}

// HasExtra reports whether op carries a second operand in Extra.
func (op Opcode) HasExtra() bool {
	return op == OpIinc || op == OpInvokeinterface || op == OpMultianewarray
}

func (in Instruction) String() string {
	switch {
	case in.Opcode.OperandBytes() == 0:
		return fmt.Sprintf("%04d  %s", in.Position, in.Opcode)
	case in.Opcode.HasExtra():
		return fmt.Sprintf("%04d  %s %d %d", in.Position, in.Opcode, in.Operand, in.Extra)
	}
	return fmt.Sprintf("%04d  %s %d", in.Position, in.Opcode, in.Operand)
}

// Method is a decoded method. Methods are immutable once built.
type Method struct {
	Name         string        `cbor:"1,keyasint"`
	Descriptor   string        `cbor:"2,keyasint"`
	AccessFlags  uint16        `cbor:"3,keyasint"`
	MaxStack     int           `cbor:"4,keyasint"`
	MaxLocals    int           `cbor:"5,keyasint"`
	ArgSlots     int           `cbor:"6,keyasint"`
	Instructions []Instruction `cbor:"7,keyasint"`

	indexOnce  sync.Once
	byPosition map[int]int
}

// IsStatic reports whether the method carries ACC_STATIC.
func (m *Method) IsStatic() bool {
	return m.AccessFlags&AccStatic != 0
}

// IndexOf returns the index into Instructions of the instruction starting at
// the given byte position.
func (m *Method) IndexOf(position int) (int, bool) {
	m.indexOnce.Do(func() {
		m.byPosition = make(map[int]int, len(m.Instructions))
		for i, in := range m.Instructions {
			m.byPosition[in.Position] = i
		}
	})
	idx, ok := m.byPosition[position]
	return idx, ok
}

func (m *Method) String() string {
	return m.Name + m.Descriptor
}

// Class is a decoded class.
type Class struct {
	Name         string       `cbor:"1,keyasint"` // internal form, e.g. com/example/Main
	SuperName    string       `cbor:"2,keyasint,omitempty"`
	AccessFlags  uint16       `cbor:"3,keyasint"`
	ConstantPool ConstantPool `cbor:"4,keyasint"`
	Methods      []*Method    `cbor:"5,keyasint"`
}

// Method returns the first method with the given name. Overloads are not
// disambiguated.
func (c *Class) Method(name string) (*Method, bool) {
	for _, m := range c.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// ClassRefs returns the distinct class names referenced from the constant
// pool, excluding the class itself.
func (c *Class) ClassRefs() []string {
	seen := map[string]bool{c.Name: true}
	var refs []string
	for i, e := range c.ConstantPool {
		if e.Tag != TagClass {
			continue
		}
		name, err := c.ConstantPool.ClassName(i)
		if err != nil || seen[name] || strings.HasPrefix(name, "[") {
			continue
		}
		seen[name] = true
		refs = append(refs, name)
	}
	return refs
}

// InternalName converts a binary class name (com.example.Main) to the
// internal form used in class files (com/example/Main).
func InternalName(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

// ErrBadDescriptor is returned for malformed method descriptors.
var ErrBadDescriptor = errors.New("bad method descriptor")

// ArgSlots returns the number of local-variable slots taken by the
// parameters of a method descriptor. long and double take two slots.
func ArgSlots(descriptor string) (int, error) {
	if !strings.HasPrefix(descriptor, "(") {
		return 0, errors.Wrapf(ErrBadDescriptor, "%q", descriptor)
	}
	slots := 0
	for i := 1; i < len(descriptor); i++ {
		switch descriptor[i] {
		case ')':
			return slots, nil
		case 'B', 'C', 'F', 'I', 'S', 'Z':
			slots++
		case 'J', 'D':
			slots += 2
		case 'L':
			end := strings.IndexByte(descriptor[i:], ';')
			if end < 0 {
				return 0, errors.Wrapf(ErrBadDescriptor, "%q: unterminated class type", descriptor)
			}
			i += end
			slots++
		case '[':
			for i < len(descriptor) && descriptor[i] == '[' {
				i++
			}
			if i < len(descriptor) && descriptor[i] == 'L' {
				end := strings.IndexByte(descriptor[i:], ';')
				if end < 0 {
					return 0, errors.Wrapf(ErrBadDescriptor, "%q: unterminated class type", descriptor)
				}
				i += end
			}
			slots++
		default:
			return 0, errors.Wrapf(ErrBadDescriptor, "%q: unexpected %q", descriptor, descriptor[i])
		}
	}
	return 0, errors.Wrapf(ErrBadDescriptor, "%q: missing ')'", descriptor)
}
