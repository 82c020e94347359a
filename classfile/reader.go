package classfile

import (
	"encoding/binary"
	"unicode"
	"unicode/utf16"

	"github.com/pkg/errors"
)

// Magic is the first four bytes of every class file.
const Magic uint32 = 0xCAFEBABE

var (
	ErrBadMagic  = errors.New("invalid magic number: expected 0xCAFEBABE")
	ErrTruncated = errors.New("unexpected end of class data")
	ErrBadCode   = errors.New("malformed code attribute")
)

// ---------------------------------------------------------------------------
// Reader: sequential big-endian reads over class-file bytes
// ---------------------------------------------------------------------------

type reader struct {
	data   []byte
	offset int
}

func (r *reader) u1() (uint8, error) {
	if r.offset+1 > len(r.data) {
		return 0, ErrTruncated
	}
	v := r.data[r.offset]
	r.offset++
	return v, nil
}

func (r *reader) u2() (uint16, error) {
	if r.offset+2 > len(r.data) {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint16(r.data[r.offset:])
	r.offset += 2
	return v, nil
}

func (r *reader) u4() (uint32, error) {
	if r.offset+4 > len(r.data) {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint32(r.data[r.offset:])
	r.offset += 4
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.offset+n > len(r.data) {
		return nil, ErrTruncated
	}
	b := r.data[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

func (r *reader) skip(n int) error {
	_, err := r.bytes(n)
	return err
}

// ---------------------------------------------------------------------------
// Parse
// ---------------------------------------------------------------------------

// Parse decodes a class file.
func Parse(data []byte) (*Class, error) {
	r := &reader{data: data}

	magic, err := r.u4()
	if err != nil {
		return nil, errors.Wrap(err, "reading magic")
	}
	if magic != Magic {
		return nil, errors.Wrapf(ErrBadMagic, "got 0x%08X", magic)
	}
	if err := r.skip(4); err != nil { // minor, major version
		return nil, errors.Wrap(err, "reading version")
	}

	pool, err := readConstantPool(r)
	if err != nil {
		return nil, err
	}

	c := &Class{ConstantPool: pool}
	if c.AccessFlags, err = r.u2(); err != nil {
		return nil, errors.Wrap(err, "reading access flags")
	}
	this, err := r.u2()
	if err != nil {
		return nil, errors.Wrap(err, "reading this_class")
	}
	if c.Name, err = pool.ClassName(int(this)); err != nil {
		return nil, errors.Wrap(err, "resolving this_class")
	}
	super, err := r.u2()
	if err != nil {
		return nil, errors.Wrap(err, "reading super_class")
	}
	if super != 0 {
		if c.SuperName, err = pool.ClassName(int(super)); err != nil {
			return nil, errors.Wrap(err, "resolving super_class")
		}
	}

	interfaces, err := r.u2()
	if err != nil {
		return nil, errors.Wrap(err, "reading interfaces")
	}
	if err := r.skip(2 * int(interfaces)); err != nil {
		return nil, errors.Wrap(err, "reading interfaces")
	}

	fields, err := r.u2()
	if err != nil {
		return nil, errors.Wrap(err, "reading fields")
	}
	for i := 0; i < int(fields); i++ {
		if err := r.skip(6); err != nil { // access, name, descriptor
			return nil, errors.Wrapf(err, "reading field %d", i)
		}
		if err := skipAttributes(r); err != nil {
			return nil, errors.Wrapf(err, "reading field %d", i)
		}
	}

	methods, err := r.u2()
	if err != nil {
		return nil, errors.Wrap(err, "reading methods")
	}
	c.Methods = make([]*Method, 0, methods)
	for i := 0; i < int(methods); i++ {
		m, err := readMethod(r, pool)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: method %d", c.Name, i)
		}
		c.Methods = append(c.Methods, m)
	}

	// Class attributes (SourceFile etc.) are not needed.
	return c, nil
}

func readConstantPool(r *reader) (ConstantPool, error) {
	count, err := r.u2()
	if err != nil {
		return nil, errors.Wrap(err, "reading constant pool count")
	}
	pool := make(ConstantPool, count)
	for i := 1; i < int(count); i++ {
		tag, err := r.u1()
		if err != nil {
			return nil, errors.Wrapf(err, "reading constant %d", i)
		}
		c := Constant{Tag: ConstantTag(tag)}
		switch c.Tag {
		case TagUtf8:
			n, err := r.u2()
			if err != nil {
				return nil, errors.Wrapf(err, "reading constant %d", i)
			}
			b, err := r.bytes(int(n))
			if err != nil {
				return nil, errors.Wrapf(err, "reading constant %d", i)
			}
			c.Text = decodeModifiedUTF8(b)
		case TagInteger:
			v, err := r.u4()
			if err != nil {
				return nil, errors.Wrapf(err, "reading constant %d", i)
			}
			c.Value = int64(int32(v))
		case TagFloat:
			v, err := r.u4()
			if err != nil {
				return nil, errors.Wrapf(err, "reading constant %d", i)
			}
			c.Value = int64(v) // raw IEEE 754 bits
		case TagLong, TagDouble:
			hi, err := r.u4()
			if err != nil {
				return nil, errors.Wrapf(err, "reading constant %d", i)
			}
			lo, err := r.u4()
			if err != nil {
				return nil, errors.Wrapf(err, "reading constant %d", i)
			}
			c.Value = int64(uint64(hi)<<32 | uint64(lo))
			pool[i] = c
			i++ // the following slot is unusable
			continue
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			if c.A, err = r.u2(); err != nil {
				return nil, errors.Wrapf(err, "reading constant %d", i)
			}
		case TagFieldRef, TagMethodRef, TagInterfaceMethodRef, TagNameAndType, TagDynamic, TagInvokeDynamic:
			if c.A, err = r.u2(); err != nil {
				return nil, errors.Wrapf(err, "reading constant %d", i)
			}
			if c.B, err = r.u2(); err != nil {
				return nil, errors.Wrapf(err, "reading constant %d", i)
			}
		case TagMethodHandle:
			kind, err := r.u1()
			if err != nil {
				return nil, errors.Wrapf(err, "reading constant %d", i)
			}
			c.A = uint16(kind)
			if c.B, err = r.u2(); err != nil {
				return nil, errors.Wrapf(err, "reading constant %d", i)
			}
		default:
			return nil, errors.Wrapf(ErrBadConstant, "constant %d: unknown tag %d", i, tag)
		}
		pool[i] = c
	}
	return pool, nil
}

func readMethod(r *reader, pool ConstantPool) (*Method, error) {
	access, err := r.u2()
	if err != nil {
		return nil, err
	}
	nameIdx, err := r.u2()
	if err != nil {
		return nil, err
	}
	descIdx, err := r.u2()
	if err != nil {
		return nil, err
	}
	m := &Method{AccessFlags: access}
	if m.Name, err = pool.Utf8(int(nameIdx)); err != nil {
		return nil, err
	}
	if m.Descriptor, err = pool.Utf8(int(descIdx)); err != nil {
		return nil, err
	}
	if m.ArgSlots, err = ArgSlots(m.Descriptor); err != nil {
		return nil, err
	}

	attrs, err := r.u2()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(attrs); i++ {
		nameIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		length, err := r.u4()
		if err != nil {
			return nil, err
		}
		body, err := r.bytes(int(length))
		if err != nil {
			return nil, err
		}
		name, err := pool.Utf8(int(nameIdx))
		if err != nil {
			return nil, err
		}
		if name != "Code" {
			continue
		}
		if err := readCode(body, m); err != nil {
			return nil, errors.Wrapf(err, "%s%s", m.Name, m.Descriptor)
		}
	}
	return m, nil
}

// readCode decodes a Code attribute body into m. The exception table and
// nested attributes are skipped.
func readCode(body []byte, m *Method) error {
	r := &reader{data: body}
	maxStack, err := r.u2()
	if err != nil {
		return err
	}
	maxLocals, err := r.u2()
	if err != nil {
		return err
	}
	length, err := r.u4()
	if err != nil {
		return err
	}
	code, err := r.bytes(int(length))
	if err != nil {
		return err
	}
	m.MaxStack = int(maxStack)
	m.MaxLocals = int(maxLocals)
	m.Instructions, err = DecodeInstructions(code)
	return err
}

func skipAttributes(r *reader) error {
	n, err := r.u2()
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		if err := r.skip(2); err != nil {
			return err
		}
		length, err := r.u4()
		if err != nil {
			return err
		}
		if err := r.skip(int(length)); err != nil {
			return err
		}
	}
	return nil
}

// decodeModifiedUTF8 converts the class-file string encoding to a Go string.
// It differs from UTF-8 in encoding NUL as two bytes and supplementary
// characters as surrogate pairs of three bytes each. A pair is combined into
// one rune; an unpaired surrogate becomes U+FFFD.
func decodeModifiedUTF8(b []byte) string {
	runes := make([]rune, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			runes = append(runes, rune(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b):
			runes = append(runes, rune(c&0x1F)<<6|rune(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			r := decode3(b[i:])
			i += 3
			if utf16.IsSurrogate(r) && i+2 < len(b) && b[i]&0xF0 == 0xE0 {
				if pair := utf16.DecodeRune(r, decode3(b[i:])); pair != unicode.ReplacementChar {
					r = pair
					i += 3
				}
			}
			runes = append(runes, r)
		default:
			runes = append(runes, 0xFFFD)
			i++
		}
	}
	return string(runes)
}

func decode3(b []byte) rune {
	return rune(b[0]&0x0F)<<12 | rune(b[1]&0x3F)<<6 | rune(b[2]&0x3F)
}
