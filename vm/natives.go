package vm

import (
	"fmt"
	"io"
	"strconv"
)

// The only library members the interpreter models.
const (
	systemClass      = "java/lang/System"
	printStreamClass = "java/io/PrintStream"
)

// getStatic supports java/lang/System.out and nothing else.
func getStatic(frame *Frame, index int) error {
	pool := frame.Class.ConstantPool
	owner, err := pool.OwnerClassName(index)
	if err != nil {
		return err
	}
	name, err := pool.MemberName(index)
	if err != nil {
		return err
	}
	if owner != systemClass || name != "out" {
		return fmt.Errorf("%w: getstatic %s.%s", ErrUnsupportedOperation, owner, name)
	}
	frame.Push(HandleValue(StdoutHandle))
	return nil
}

// invokeVirtual supports java/io/PrintStream.println with no argument or a
// single int-like argument. The argument and the receiver are both consumed.
func (i *Interpreter) invokeVirtual(frame *Frame, index int) error {
	pool := frame.Class.ConstantPool
	owner, err := pool.OwnerClassName(index)
	if err != nil {
		return err
	}
	name, err := pool.MemberName(index)
	if err != nil {
		return err
	}
	desc, err := pool.MemberDescriptor(index)
	if err != nil {
		return err
	}
	if owner != printStreamClass || name != "println" {
		return fmt.Errorf("%w: invokevirtual %s.%s", ErrUnsupportedOperation, owner, name)
	}

	var format func(int32) string
	switch desc {
	case "()V":
	case "(I)V", "(S)V", "(B)V":
		format = func(v int32) string { return strconv.FormatInt(int64(v), 10) }
	case "(C)V":
		format = func(v int32) string { return string(rune(uint16(v))) }
	case "(Z)V":
		format = func(v int32) string { return strconv.FormatBool(v != 0) }
	default:
		return fmt.Errorf("%w: invokevirtual %s.%s%s", ErrUnsupportedOperation, owner, name, desc)
	}

	var text string
	if format != nil {
		v, err := frame.PopInt()
		if err != nil {
			return err
		}
		text = format(v)
	}
	recv, err := frame.Pop()
	if err != nil {
		return err
	}
	if h, ok := recv.AsHandle(); !ok || h != StdoutHandle {
		return fmt.Errorf("%w: println receiver is %s", ErrTypeMismatch, recv)
	}
	_, err = io.WriteString(i.Out, text+"\n")
	return err
}
