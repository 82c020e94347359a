package classfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisassemble(t *testing.T) {
	b := NewClassBuilder("com.example.Main")
	out := b.FieldRef("java/lang/System", "out", "Ljava/io/PrintStream;")
	printlnRef := b.MethodRef("java/io/PrintStream", "println", "(I)V")
	mb := b.Method("main", "([Ljava/lang/String;)V", 1)
	end := mb.NewLabel()
	mb.EmitOperand(OpGetstatic, out).
		EmitOperand(OpBipush, 42).
		EmitOperand(OpInvokevirtual, printlnRef).
		Emit(OpIconst0).
		EmitJump(OpIfne, end).
		Mark(end).
		Emit(OpReturn)
	listing := Disassemble(b.Build())

	for _, want := range []string{
		"; class com/example/Main extends java/lang/Object",
		"static main([Ljava/lang/String;)V  ; locals=1 args=1",
		"0000  getstatic",
		"// Field java/lang/System.out:Ljava/io/PrintStream;",
		"0003  bipush         42",
		"// Method java/io/PrintStream.println:(I)V",
		"0008  iconst_0",
		"0009  ifne           -> 0012",
		"0012  return",
	} {
		assert.True(t, strings.Contains(listing, want), "missing %q in\n%s", want, listing)
	}
}
