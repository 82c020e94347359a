package classfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpcodeNames(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpNop, "nop"},
		{OpIconst1, "iconst_1"},
		{OpIconst5, "iconst_5"},
		{OpBipush, "bipush"},
		{OpSipush, "sipush"},
		{OpIload0, "iload_0"},
		{OpIload3, "iload_3"},
		{OpIsub, "isub"},
		{OpImul, "imul"},
		{OpIrem, "irem"},
		{OpIfne, "ifne"},
		{OpGoto, "goto"},
		{OpIreturn, "ireturn"},
		{OpReturn, "return"},
		{OpGetstatic, "getstatic"},
		{OpInvokevirtual, "invokevirtual"},
		{OpInvokestatic, "invokestatic"},
		{OpJsrW, "jsr_w"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.op.String(), "opcode 0x%02X", byte(tt.op))
	}
}

func TestUndefinedOpcode(t *testing.T) {
	op := Opcode(0xCA)
	assert.False(t, op.Defined())
	assert.True(t, strings.HasPrefix(op.Name(), "unknown"))
}

func TestOpcodeOperandBytes(t *testing.T) {
	tests := []struct {
		op   Opcode
		want int
	}{
		{OpIconst3, 0},
		{OpBipush, 1},
		{OpSipush, 2},
		{OpIload, 1},
		{OpIinc, 2},
		{OpIfeq, 2},
		{OpIfne, 2},
		{OpGoto, 2},
		{0xC6, 2}, // ifnull
		{OpGotoW, 4},
		{OpGetstatic, 2},
		{OpInvokestatic, 2},
		{OpInvokeinterface, 4},
		{OpTableswitch, variableOperands},
		{OpWide, variableOperands},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.op.OperandBytes(), "%s", tt.op)
	}
}

func TestOpcodeClassification(t *testing.T) {
	for _, op := range []Opcode{OpIfeq, OpIfne, OpGoto, 0xA4, 0xC7, OpGotoW} {
		assert.True(t, op.IsBranch(), "%s should be a branch", op)
	}
	for _, op := range []Opcode{OpBipush, OpIload, OpInvokestatic, OpTableswitch} {
		assert.False(t, op.IsBranch(), "%s should not be a branch", op)
	}
	for _, op := range []Opcode{OpGetstatic, OpInvokevirtual, OpInvokestatic, OpLdc, OpNew} {
		assert.True(t, op.IsConstantRef(), "%s should reference the pool", op)
	}
	assert.False(t, OpSipush.IsConstantRef())
	assert.Equal(t, 3, OpInvokestatic.Width())
	assert.Equal(t, 0, OpLookupswitch.Width())
}
