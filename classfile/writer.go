package classfile

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"

	"github.com/pkg/errors"
)

// Class-file version written by Encode (Java 8).
const (
	MajorVersion = 52
	MinorVersion = 0
)

// ---------------------------------------------------------------------------
// writer: serializes a Class back to class-file bytes
// ---------------------------------------------------------------------------

type writer struct {
	buf  *bytes.Buffer
	pool ConstantPool
}

func (w *writer) u1(v uint8)  { w.buf.WriteByte(v) }
func (w *writer) u2(v uint16) { w.buf.Write(binary.BigEndian.AppendUint16(nil, v)) }
func (w *writer) u4(v uint32) { w.buf.Write(binary.BigEndian.AppendUint32(nil, v)) }

// utf8Index finds or appends a Utf8 constant.
func (w *writer) utf8Index(s string) uint16 {
	for i, c := range w.pool {
		if c.Tag == TagUtf8 && c.Text == s {
			return uint16(i)
		}
	}
	w.pool = append(w.pool, Constant{Tag: TagUtf8, Text: s})
	return uint16(len(w.pool) - 1)
}

// classIndex finds or appends a Class constant.
func (w *writer) classIndex(name string) uint16 {
	for i, c := range w.pool {
		if c.Tag != TagClass {
			continue
		}
		if n, err := w.pool.ClassName(i); err == nil && n == name {
			return uint16(i)
		}
	}
	nameIdx := w.utf8Index(name)
	w.pool = append(w.pool, Constant{Tag: TagClass, A: nameIdx})
	return uint16(len(w.pool) - 1)
}

// Encode writes c in class-file format. Constants the file needs but the
// pool lacks (the super class, method names, "Code") are appended. Only
// fixed-width instructions can be encoded, so methods containing
// tableswitch, lookupswitch or wide-indexed instructions fail.
func Encode(c *Class) ([]byte, error) {
	w := &writer{buf: new(bytes.Buffer), pool: append(ConstantPool(nil), c.ConstantPool...)}
	if len(w.pool) == 0 {
		w.pool = ConstantPool{{Tag: TagUnused}}
	}

	// Resolve every index first; the pool is written before anything
	// that refers to it.
	this := w.classIndex(c.Name)
	var super uint16
	if c.SuperName != "" {
		super = w.classIndex(c.SuperName)
	}
	out := w.buf
	w.buf = new(bytes.Buffer)
	for _, m := range c.Methods {
		if err := w.method(m); err != nil {
			return nil, errors.Wrapf(err, "%s: %s", c.Name, m)
		}
	}
	methods := w.buf.Bytes()
	w.buf = out

	w.u4(Magic)
	w.u2(MinorVersion)
	w.u2(MajorVersion)
	if err := w.constantPool(); err != nil {
		return nil, errors.Wrap(err, c.Name)
	}
	w.u2(c.AccessFlags)
	w.u2(this)
	w.u2(super)
	w.u2(0) // interfaces
	w.u2(0) // fields
	w.u2(uint16(len(c.Methods)))
	w.buf.Write(methods)
	w.u2(0) // attributes
	return w.buf.Bytes(), nil
}

func (w *writer) constantPool() error {
	if len(w.pool) > 0xFFFF {
		return errors.Wrapf(ErrBadConstant, "pool has %d entries", len(w.pool))
	}
	w.u2(uint16(len(w.pool)))
	for i := 1; i < len(w.pool); i++ {
		c := w.pool[i]
		w.u1(uint8(c.Tag))
		switch c.Tag {
		case TagUtf8:
			b := encodeModifiedUTF8(c.Text)
			if len(b) > 0xFFFF {
				return errors.Wrapf(ErrBadConstant, "constant %d: string too long", i)
			}
			w.u2(uint16(len(b)))
			w.buf.Write(b)
		case TagInteger, TagFloat:
			w.u4(uint32(c.Value))
		case TagLong, TagDouble:
			w.u4(uint32(uint64(c.Value) >> 32))
			w.u4(uint32(c.Value))
			i++
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			w.u2(c.A)
		case TagFieldRef, TagMethodRef, TagInterfaceMethodRef, TagNameAndType, TagDynamic, TagInvokeDynamic:
			w.u2(c.A)
			w.u2(c.B)
		case TagMethodHandle:
			w.u1(uint8(c.A))
			w.u2(c.B)
		default:
			return errors.Wrapf(ErrBadConstant, "constant %d: cannot encode %s", i, c.Tag)
		}
	}
	return nil
}

func (w *writer) method(m *Method) error {
	code, err := encodeInstructions(m.Instructions)
	if err != nil {
		return err
	}
	w.u2(m.AccessFlags)
	w.u2(w.utf8Index(m.Name))
	w.u2(w.utf8Index(m.Descriptor))
	if m.Instructions == nil {
		w.u2(0)
		return nil
	}
	w.u2(1)
	w.u2(w.utf8Index("Code"))
	w.u4(uint32(2 + 2 + 4 + len(code) + 2 + 2))
	w.u2(uint16(m.MaxStack))
	w.u2(uint16(m.MaxLocals))
	w.u4(uint32(len(code)))
	w.buf.Write(code)
	w.u2(0) // exception table
	w.u2(0) // attributes
	return nil
}

// encodeInstructions is the inverse of DecodeInstructions for fixed-width
// instructions.
func encodeInstructions(ins []Instruction) ([]byte, error) {
	var code []byte
	for _, in := range ins {
		if in.Position != len(code) {
			return nil, errors.Wrapf(ErrBadCode, "%s at %d: expected position %d", in.Opcode, in.Position, len(code))
		}
		n := in.Opcode.OperandBytes()
		if n < 0 || in.Opcode == OpWide {
			return nil, errors.Wrapf(ErrBadCode, "%s at %d: variable-length instruction", in.Opcode, in.Position)
		}
		code = append(code, byte(in.Opcode))
		switch {
		case n == 0:
		case in.Opcode.IsBranch() && n == 2:
			code = binary.BigEndian.AppendUint16(code, uint16(int16(in.Operand-in.Position)))
		case in.Opcode.IsBranch() && n == 4:
			code = binary.BigEndian.AppendUint32(code, uint32(int32(in.Operand-in.Position)))
		case in.Opcode == OpIinc:
			if in.Operand > 0xFF || in.Extra < -128 || in.Extra > 127 {
				return nil, errors.Wrapf(ErrBadCode, "iinc at %d: slot %d or increment %d needs wide", in.Position, in.Operand, in.Extra)
			}
			code = append(code, byte(in.Operand), byte(int8(in.Extra)))
		case n == 1:
			code = append(code, byte(in.Operand))
		default:
			code = binary.BigEndian.AppendUint16(code, uint16(in.Operand))
			// count byte of invokeinterface and multianewarray, then the
			// zero padding of invokeinterface and invokedynamic
			for k := 2; k < n; k++ {
				if k == 2 && in.Opcode.HasExtra() {
					code = append(code, byte(in.Extra))
					continue
				}
				code = append(code, 0)
			}
		}
	}
	return code, nil
}

// encodeModifiedUTF8 is the inverse of decodeModifiedUTF8.
func encodeModifiedUTF8(s string) []byte {
	var b []byte
	for _, r := range s {
		switch {
		case r != 0 && r < 0x80:
			b = append(b, byte(r))
		case r < 0x800:
			b = append(b, 0xC0|byte(r>>6), 0x80|byte(r&0x3F))
		case r < 0x10000:
			b = append(b, 0xE0|byte(r>>12), 0x80|byte(r>>6&0x3F), 0x80|byte(r&0x3F))
		default:
			hi, lo := utf16.EncodeRune(r)
			for _, u := range []rune{hi, lo} {
				b = append(b, 0xE0|byte(u>>12), 0x80|byte(u>>6&0x3F), 0x80|byte(u&0x3F))
			}
		}
	}
	return b
}
