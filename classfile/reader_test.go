package classfile

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// factorialClass builds:
//
//	static int fact(int n) { if (n != 0) return n * fact(n - 1); return 1; }
func factorialClass() *Class {
	b := NewClassBuilder("com.github.hcsp.RecursiveClass")
	fact := b.MethodRef("com/github/hcsp/RecursiveClass", "fact", "(I)I")
	mb := b.Method("fact", "(I)I", 1)
	recurse := mb.NewLabel()
	mb.Emit(OpIload0).
		EmitJump(OpIfne, recurse).
		Emit(OpIconst1).
		Emit(OpIreturn).
		Mark(recurse).
		Emit(OpIload0).
		Emit(OpIload0).
		Emit(OpIconst1).
		Emit(OpIsub).
		EmitOperand(OpInvokestatic, fact).
		Emit(OpImul).
		Emit(OpIreturn)
	return b.Build()
}

func TestParseRoundTrip(t *testing.T) {
	want := factorialClass()
	data, err := Encode(want)
	require.NoError(t, err)
	got, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "com/github/hcsp/RecursiveClass", got.Name)
	assert.Equal(t, "java/lang/Object", got.SuperName)
	assert.Equal(t, want.ConstantPool, got.ConstantPool)
	require.Len(t, got.Methods, 1)

	m := got.Methods[0]
	assert.Equal(t, "fact", m.Name)
	assert.Equal(t, "(I)I", m.Descriptor)
	assert.Equal(t, 1, m.MaxLocals)
	assert.Equal(t, 1, m.ArgSlots)
	assert.True(t, m.IsStatic())
	assert.Equal(t, want.Methods[0].Instructions, m.Instructions)

	// ifne at 1 jumps forward to the second iload_0
	assert.Equal(t, OpIfne, m.Instructions[1].Opcode)
	assert.Equal(t, 6, m.Instructions[1].Operand)
}

func TestParseBadMagic(t *testing.T) {
	_, err := Parse([]byte{0xCA, 0xFE, 0xBA, 0xBF, 0, 0, 0, 52})
	assert.True(t, errors.Is(err, ErrBadMagic), "got %v", err)
}

func TestParseTruncated(t *testing.T) {
	data, err := Encode(factorialClass())
	require.NoError(t, err)
	for _, n := range []int{0, 3, 9, len(data) / 2, len(data) - 3} {
		_, err := Parse(data[:n])
		assert.Error(t, err, "length %d", n)
	}
	_, err = Parse(data[:len(data)/2])
	assert.True(t, errors.Is(err, ErrTruncated), "got %v", err)
}

func TestParseLongOccupiesTwoSlots(t *testing.T) {
	var buf bytes.Buffer
	w := func(v interface{}) { require.NoError(t, binary.Write(&buf, binary.BigEndian, v)) }
	w(Magic)
	w(uint32(52))
	w(uint16(6)) // slots 1..5

	w(uint8(TagLong)) // #1, #2
	w(uint64(1) << 40)
	w(uint8(TagUtf8)) // #3
	w(uint16(1))
	buf.WriteString("A")
	w(uint8(TagClass)) // #4
	w(uint16(3))
	w(uint8(TagInteger)) // #5
	w(int32(-7))
	w(uint16(AccPublic))
	w(uint16(4))
	w(uint16(0))
	w(uint16(0))
	w(uint16(0))
	w(uint16(0))
	w(uint16(0))

	c, err := Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "A", c.Name)
	assert.Equal(t, TagLong, c.ConstantPool[1].Tag)
	assert.Equal(t, int64(1)<<40, c.ConstantPool[1].Value)
	assert.Equal(t, TagUnused, c.ConstantPool[2].Tag)
	assert.Equal(t, int64(-7), c.ConstantPool[5].Value)
}

func TestDecodeInstructionsSwitchAndWide(t *testing.T) {
	code := []byte{
		0x1A,                   // 0: iload_0
		0xAA, 0x00, 0x00, // 1: tableswitch, 2 bytes padding
		0x00, 0x00, 0x00, 0x1B, // default +27 -> 28
		0x00, 0x00, 0x00, 0x00, // low 0
		0x00, 0x00, 0x00, 0x01, // high 1
		0x00, 0x00, 0x00, 0x1B,
		0x00, 0x00, 0x00, 0x1B,
		0xC4, 0x15, 0x01, 0x2C, // 24: wide iload 300
		0xC4, 0x84, 0x01, 0x2C, 0x00, 0x01, // 28: wide iinc 300 1
		0xB1, // 34: return
	}
	ins, err := DecodeInstructions(code)
	require.NoError(t, err)
	require.Len(t, ins, 5)

	assert.Equal(t, Instruction{Opcode: OpTableswitch, Operand: 28, Position: 1}, ins[1])
	assert.Equal(t, Instruction{Opcode: OpIload, Operand: 300, Position: 24}, ins[2])
	assert.Equal(t, Instruction{Opcode: OpIinc, Operand: 300, Position: 28, Extra: 1}, ins[3])
	assert.Equal(t, Instruction{Opcode: OpReturn, Position: 34}, ins[4])
}

func TestDecodeInstructionsLookupswitch(t *testing.T) {
	code := []byte{
		0x00, 0x00, 0x00, // 0-2: nop
		0xAB,                   // 3: lookupswitch, no padding
		0x00, 0x00, 0x00, 0x15, // default +21 -> 24
		0x00, 0x00, 0x00, 0x01, // 1 pair
		0x00, 0x00, 0x00, 0x07, 0x00, 0x00, 0x00, 0x15,
		0x00, 0x00, 0x00, 0x00, // 20-23: nop
		0xB1, // 24
	}
	ins, err := DecodeInstructions(code)
	require.NoError(t, err)
	require.Len(t, ins, 9)
	assert.Equal(t, Instruction{Opcode: OpLookupswitch, Operand: 24, Position: 3}, ins[3])
	assert.Equal(t, 24, ins[8].Position)
}

func TestDecodeInstructionsErrors(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"undefined opcode", []byte{0xCA}},
		{"truncated operand", []byte{0x11, 0x01}},
		{"truncated branch", []byte{0x9A, 0x00}},
		{"truncated tableswitch", []byte{0xAA, 0, 0, 0, 0, 0, 0, 0}},
		{"wide return", []byte{0xC4, 0xB1, 0x00, 0x00}},
		{"truncated wide", []byte{0xC4, 0x15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeInstructions(tt.code)
			assert.True(t, errors.Is(err, ErrBadCode), "got %v", err)
		})
	}
}

func TestDecodeSignedOperands(t *testing.T) {
	ins, err := DecodeInstructions([]byte{
		0x10, 0xFF, // bipush -1
		0x11, 0x80, 0x00, // sipush -32768
		0xA7, 0xFF, 0xFB, // goto -5 -> 0
	})
	require.NoError(t, err)
	assert.Equal(t, -1, ins[0].Operand)
	assert.Equal(t, -32768, ins[1].Operand)
	assert.Equal(t, 0, ins[2].Operand)
}

func TestDecodeModifiedUTF8(t *testing.T) {
	assert.Equal(t, "abc", decodeModifiedUTF8([]byte("abc")))
	assert.Equal(t, "\x00", decodeModifiedUTF8([]byte{0xC0, 0x80}))
	assert.Equal(t, "é", decodeModifiedUTF8([]byte{0xC3, 0xA9}))
	assert.Equal(t, "€", decodeModifiedUTF8([]byte{0xE2, 0x82, 0xAC}))
	// U+1F600 as the surrogate pair D83D DE00
	assert.Equal(t, "hi 😀", decodeModifiedUTF8([]byte{'h', 'i', ' ', 0xED, 0xA0, 0xBD, 0xED, 0xB8, 0x80}))
	// an unpaired surrogate
	assert.Equal(t, "\uFFFDx", decodeModifiedUTF8([]byte{0xED, 0xA0, 0xBD, 'x'}))

	for _, s := range []string{"", "abc", "a\x00b", "é€", "hi 😀", "𝄞 and 😀"} {
		assert.Equal(t, s, decodeModifiedUTF8(encodeModifiedUTF8(s)), "%q", s)
	}
}

func TestDecodeSecondOperands(t *testing.T) {
	code := []byte{
		0x84, 0x01, 0xFB, // 0: iinc 1 -5
		0xB9, 0x00, 0x07, 0x02, 0x00, // 3: invokeinterface #7, 2
		0xC5, 0x00, 0x09, 0x03, // 8: multianewarray #9, 3
		0xBA, 0x00, 0x0B, 0x00, 0x00, // 12: invokedynamic #11
		0xB1, // 17: return
	}
	ins, err := DecodeInstructions(code)
	require.NoError(t, err)
	require.Len(t, ins, 5)

	assert.Equal(t, Instruction{Opcode: OpIinc, Operand: 1, Extra: -5, Position: 0}, ins[0])
	assert.Equal(t, Instruction{Opcode: OpInvokeinterface, Operand: 7, Extra: 2, Position: 3}, ins[1])
	assert.Equal(t, Instruction{Opcode: OpMultianewarray, Operand: 9, Extra: 3, Position: 8}, ins[2])
	assert.Equal(t, Instruction{Opcode: OpInvokedynamic, Operand: 11, Position: 12}, ins[3])

	back, err := encodeInstructions(ins)
	require.NoError(t, err)
	assert.Equal(t, code, back)
}
