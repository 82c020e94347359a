package classfile

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeAddsMissingConstants(t *testing.T) {
	c := &Class{
		Name:      "Bare",
		SuperName: "java/lang/Object",
		Methods: []*Method{{
			Name:        "f",
			Descriptor:  "()I",
			AccessFlags: AccPublic | AccStatic,
			MaxStack:    1,
			Instructions: []Instruction{
				{Opcode: OpIconst2, Position: 0},
				{Opcode: OpIreturn, Position: 1},
			},
		}},
	}
	data, err := Encode(c)
	require.NoError(t, err)
	assert.Nil(t, c.ConstantPool, "input left alone")

	got, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "Bare", got.Name)
	assert.Equal(t, "java/lang/Object", got.SuperName)
	m, ok := got.Method("f")
	require.True(t, ok)
	assert.Equal(t, 1, m.MaxStack)
	assert.Equal(t, c.Methods[0].Instructions, m.Instructions)
}

func TestEncodeSignedAndWideOperands(t *testing.T) {
	b := NewClassBuilder("Ops")
	mb := b.Method("f", "()V", 2)
	back := mb.NewLabel()
	mb.Mark(back).
		EmitOperand(OpBipush, -128).
		EmitOperand(OpSipush, -32768).
		EmitOperand(OpIstore, 1).
		EmitOperand(OpIinc, 1).
		EmitJump(OpGotoW, back).
		Emit(OpReturn)
	want := b.Build()

	data, err := Encode(want)
	require.NoError(t, err)
	got, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, want.Methods[0].Instructions, got.Methods[0].Instructions)
}

func TestEncodeMethodWithoutCode(t *testing.T) {
	c := &Class{Name: "Abstract", Methods: []*Method{{Name: "f", Descriptor: "()V"}}}
	data, err := Encode(c)
	require.NoError(t, err)
	got, err := Parse(data)
	require.NoError(t, err)
	assert.Empty(t, got.SuperName)
	assert.Nil(t, got.Methods[0].Instructions)
}

func TestEncodeRejectsVariableLength(t *testing.T) {
	for _, in := range []Instruction{
		{Opcode: OpTableswitch},
		{Opcode: OpLookupswitch},
		{Opcode: OpWide},
		{Opcode: OpNop, Position: 3},
	} {
		c := &Class{Name: "V", Methods: []*Method{{Name: "f", Descriptor: "()V", Instructions: []Instruction{in}}}}
		_, err := Encode(c)
		assert.True(t, errors.Is(err, ErrBadCode), "%s: got %v", in.Opcode, err)
	}
}

func TestEncodeConstantKinds(t *testing.T) {
	c := &Class{
		Name: "K",
		ConstantPool: ConstantPool{
			{},
			{Tag: TagUtf8, Text: "K"},
			{Tag: TagClass, A: 1},
			{Tag: TagLong, Value: -5},
			{},
			{Tag: TagInteger, Value: -1},
			{Tag: TagUtf8, Text: "nul\x00 é €"},
			{Tag: TagString, A: 6},
			{Tag: TagMethodHandle, A: 6, B: 2},
		},
	}
	data, err := Encode(c)
	require.NoError(t, err)
	got, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, c.ConstantPool, got.ConstantPool)
}

func TestEncodeKeepsSecondOperands(t *testing.T) {
	b := NewClassBuilder("Second")
	iface := b.MethodRef("java/lang/Runnable", "run", "()V")
	want := b.Build()
	want.Methods = []*Method{{
		Name:       "f",
		Descriptor: "()V",
		MaxStack:   2,
		MaxLocals:  2,
		Instructions: []Instruction{
			{Opcode: OpIinc, Operand: 1, Extra: -100, Position: 0},
			{Opcode: OpInvokeinterface, Operand: iface, Extra: 1, Position: 3},
			{Opcode: OpReturn, Position: 8},
		},
	}}

	data, err := Encode(want)
	require.NoError(t, err)
	got, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, want.Methods[0].Instructions, got.Methods[0].Instructions)

	listing := DisassembleMethod(got.ConstantPool, got.Methods[0])
	assert.Contains(t, listing, "0000  iinc           1, -100")
	assert.Contains(t, listing, "invokeinterface #")
}

func TestEncodeRejectsNarrowIincOverflow(t *testing.T) {
	for _, in := range []Instruction{
		{Opcode: OpIinc, Operand: 1, Extra: 128},
		{Opcode: OpIinc, Operand: 1, Extra: -129},
		{Opcode: OpIinc, Operand: 256, Extra: 1},
	} {
		_, err := encodeInstructions([]Instruction{in})
		assert.True(t, errors.Is(err, ErrBadCode), "%v: got %v", in, err)
	}
}
