package classfile

import (
	"fmt"

	"github.com/pkg/errors"
)

// ---------------------------------------------------------------------------
// Constant pool entries
// ---------------------------------------------------------------------------

// ConstantTag identifies the kind of a constant-pool entry. The values match
// the tags used in the class-file format.
type ConstantTag uint8

const (
	TagUnused             ConstantTag = 0
	TagUtf8               ConstantTag = 1
	TagInteger            ConstantTag = 3
	TagFloat              ConstantTag = 4
	TagLong               ConstantTag = 5
	TagDouble             ConstantTag = 6
	TagClass              ConstantTag = 7
	TagString             ConstantTag = 8
	TagFieldRef           ConstantTag = 9
	TagMethodRef          ConstantTag = 10
	TagInterfaceMethodRef ConstantTag = 11
	TagNameAndType        ConstantTag = 12
	TagMethodHandle       ConstantTag = 15
	TagMethodType         ConstantTag = 16
	TagDynamic            ConstantTag = 17
	TagInvokeDynamic      ConstantTag = 18
	TagModule             ConstantTag = 19
	TagPackage            ConstantTag = 20
)

var tagNames = map[ConstantTag]string{
	TagUnused:             "Unused",
	TagUtf8:               "Utf8",
	TagInteger:            "Integer",
	TagFloat:              "Float",
	TagLong:               "Long",
	TagDouble:             "Double",
	TagClass:              "Class",
	TagString:             "String",
	TagFieldRef:           "Fieldref",
	TagMethodRef:          "Methodref",
	TagInterfaceMethodRef: "InterfaceMethodref",
	TagNameAndType:        "NameAndType",
	TagMethodHandle:       "MethodHandle",
	TagMethodType:         "MethodType",
	TagDynamic:            "Dynamic",
	TagInvokeDynamic:      "InvokeDynamic",
	TagModule:             "Module",
	TagPackage:            "Package",
}

func (t ConstantTag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// Constant is one constant-pool entry. Which fields are meaningful depends on
// Tag:
//
//	Utf8                  Text
//	Integer               Value
//	Class, String         A = name / string index
//	NameAndType           A = name index, B = descriptor index
//	Fieldref, Methodref   A = class index, B = name-and-type index
//
// Other tags are kept only so that pool indices stay aligned.
type Constant struct {
	Tag   ConstantTag `cbor:"1,keyasint"`
	Text  string      `cbor:"2,keyasint,omitempty"`
	A     uint16      `cbor:"3,keyasint,omitempty"`
	B     uint16      `cbor:"4,keyasint,omitempty"`
	Value int64       `cbor:"5,keyasint,omitempty"`
}

// ConstantPool is indexed the same way as in the class file: entry 0 is
// unused and long/double constants occupy two slots.
type ConstantPool []Constant

// ErrBadConstant is returned when an index does not refer to an entry of
// the expected kind.
var ErrBadConstant = errors.New("bad constant pool reference")

// entry returns the constant at index after checking its tag.
func (cp ConstantPool) entry(index int, tags ...ConstantTag) (Constant, error) {
	if index <= 0 || index >= len(cp) {
		return Constant{}, errors.Wrapf(ErrBadConstant, "index %d out of range (pool size %d)", index, len(cp))
	}
	c := cp[index]
	for _, t := range tags {
		if c.Tag == t {
			return c, nil
		}
	}
	return Constant{}, errors.Wrapf(ErrBadConstant, "index %d is %s, want %v", index, c.Tag, tags)
}

// Utf8 returns the text of a Utf8 entry.
func (cp ConstantPool) Utf8(index int) (string, error) {
	c, err := cp.entry(index, TagUtf8)
	if err != nil {
		return "", err
	}
	return c.Text, nil
}

// ClassName follows a Class entry to its name.
func (cp ConstantPool) ClassName(index int) (string, error) {
	c, err := cp.entry(index, TagClass)
	if err != nil {
		return "", err
	}
	return cp.Utf8(int(c.A))
}

// memberRef returns the Fieldref/Methodref entry at index.
func (cp ConstantPool) memberRef(index int) (Constant, error) {
	return cp.entry(index, TagMethodRef, TagInterfaceMethodRef, TagFieldRef)
}

// nameAndType returns the NameAndType entry a member reference points at.
func (cp ConstantPool) nameAndType(index int) (Constant, error) {
	ref, err := cp.memberRef(index)
	if err != nil {
		return Constant{}, err
	}
	return cp.entry(int(ref.B), TagNameAndType)
}

// ---------------------------------------------------------------------------
// Resolver
// ---------------------------------------------------------------------------

// OwnerClassName resolves a method or field reference to the internal name
// of the class declaring the member (Methodref -> Class -> Utf8).
func (cp ConstantPool) OwnerClassName(index int) (string, error) {
	ref, err := cp.memberRef(index)
	if err != nil {
		return "", err
	}
	return cp.ClassName(int(ref.A))
}

// MemberName resolves a method or field reference to the member's simple
// name (Methodref -> NameAndType -> Utf8).
func (cp ConstantPool) MemberName(index int) (string, error) {
	nat, err := cp.nameAndType(index)
	if err != nil {
		return "", err
	}
	return cp.Utf8(int(nat.A))
}

// MemberDescriptor resolves a method or field reference to its type
// descriptor, e.g. "(I)I" or "Ljava/io/PrintStream;".
func (cp ConstantPool) MemberDescriptor(index int) (string, error) {
	nat, err := cp.nameAndType(index)
	if err != nil {
		return "", err
	}
	return cp.Utf8(int(nat.B))
}

// Describe renders the entry at index for disassembly listings. It never
// fails; unresolvable entries are rendered with their tag.
func (cp ConstantPool) Describe(index int) string {
	if index <= 0 || index >= len(cp) {
		return fmt.Sprintf("#%d <invalid>", index)
	}
	c := cp[index]
	switch c.Tag {
	case TagUtf8:
		return fmt.Sprintf("%q", c.Text)
	case TagInteger, TagLong:
		return fmt.Sprintf("int %d", c.Value)
	case TagClass:
		name, _ := cp.ClassName(index)
		return "class " + name
	case TagString:
		s, _ := cp.Utf8(int(c.A))
		return fmt.Sprintf("String %q", s)
	case TagFieldRef, TagMethodRef, TagInterfaceMethodRef:
		owner, _ := cp.OwnerClassName(index)
		name, _ := cp.MemberName(index)
		desc, _ := cp.MemberDescriptor(index)
		kind := "Method"
		if c.Tag == TagFieldRef {
			kind = "Field"
		}
		return fmt.Sprintf("%s %s.%s:%s", kind, owner, name, desc)
	}
	return c.Tag.String()
}
