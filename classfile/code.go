package classfile

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// DecodeInstructions decodes the bytes of a Code attribute. Branch operands
// are converted from offsets relative to the branching instruction to
// absolute positions. A wide prefix is folded into the instruction it
// modifies.
func DecodeInstructions(code []byte) ([]Instruction, error) {
	var out []Instruction
	for pos := 0; pos < len(code); {
		op := Opcode(code[pos])
		if !op.Defined() {
			return nil, errors.Wrapf(ErrBadCode, "undefined opcode 0x%02X at %d", byte(op), pos)
		}

		var (
			in    Instruction
			width int
			err   error
		)
		switch op {
		case OpTableswitch:
			in, width, err = decodeTableswitch(code, pos)
		case OpLookupswitch:
			in, width, err = decodeLookupswitch(code, pos)
		case OpWide:
			in, width, err = decodeWide(code, pos)
		default:
			in, width, err = decodeFixed(code, pos, op)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, in)
		pos += width
	}
	return out, nil
}

func operandSlice(code []byte, pos, n int) ([]byte, error) {
	if pos+1+n > len(code) {
		return nil, errors.Wrapf(ErrBadCode, "%s at %d: truncated operand", Opcode(code[pos]), pos)
	}
	return code[pos+1 : pos+1+n], nil
}

func decodeFixed(code []byte, pos int, op Opcode) (Instruction, int, error) {
	n := op.OperandBytes()
	b, err := operandSlice(code, pos, n)
	if err != nil {
		return Instruction{}, 0, err
	}
	in := Instruction{Opcode: op, Position: pos}
	switch {
	case n == 0:
	case op == OpBipush:
		in.Operand = int(int8(b[0]))
	case op == OpSipush:
		in.Operand = int(int16(binary.BigEndian.Uint16(b)))
	case op.IsBranch() && n == 2:
		in.Operand = pos + int(int16(binary.BigEndian.Uint16(b)))
	case op.IsBranch() && n == 4:
		in.Operand = pos + int(int32(binary.BigEndian.Uint32(b)))
	case op == OpIinc:
		in.Operand = int(b[0])
		in.Extra = int(int8(b[1]))
	case n == 1:
		in.Operand = int(b[0])
	default:
		// 2-byte pool or slot index. invokeinterface and multianewarray
		// follow it with a count byte; invokedynamic with zeros.
		in.Operand = int(binary.BigEndian.Uint16(b))
		if op.HasExtra() {
			in.Extra = int(b[2])
		}
	}
	return in, 1 + n, nil
}

// switchPadding returns the number of alignment bytes after a switch opcode
// at pos.
func switchPadding(pos int) int {
	return (4 - (pos+1)%4) % 4
}

func readInt32At(code []byte, at int) (int, error) {
	if at+4 > len(code) {
		return 0, errors.Wrapf(ErrBadCode, "switch truncated at %d", at)
	}
	return int(int32(binary.BigEndian.Uint32(code[at:]))), nil
}

// decodeTableswitch keeps the default target as the operand.
func decodeTableswitch(code []byte, pos int) (Instruction, int, error) {
	at := pos + 1 + switchPadding(pos)
	def, err := readInt32At(code, at)
	if err != nil {
		return Instruction{}, 0, err
	}
	low, err := readInt32At(code, at+4)
	if err != nil {
		return Instruction{}, 0, err
	}
	high, err := readInt32At(code, at+8)
	if err != nil {
		return Instruction{}, 0, err
	}
	if high < low {
		return Instruction{}, 0, errors.Wrapf(ErrBadCode, "tableswitch at %d: high %d < low %d", pos, high, low)
	}
	end := at + 12 + 4*(high-low+1)
	if end > len(code) {
		return Instruction{}, 0, errors.Wrapf(ErrBadCode, "tableswitch at %d truncated", pos)
	}
	return Instruction{Opcode: OpTableswitch, Operand: pos + def, Position: pos}, end - pos, nil
}

// decodeLookupswitch keeps the default target as the operand.
func decodeLookupswitch(code []byte, pos int) (Instruction, int, error) {
	at := pos + 1 + switchPadding(pos)
	def, err := readInt32At(code, at)
	if err != nil {
		return Instruction{}, 0, err
	}
	pairs, err := readInt32At(code, at+4)
	if err != nil {
		return Instruction{}, 0, err
	}
	if pairs < 0 {
		return Instruction{}, 0, errors.Wrapf(ErrBadCode, "lookupswitch at %d: negative pair count", pos)
	}
	end := at + 8 + 8*pairs
	if end > len(code) {
		return Instruction{}, 0, errors.Wrapf(ErrBadCode, "lookupswitch at %d truncated", pos)
	}
	return Instruction{Opcode: OpLookupswitch, Operand: pos + def, Position: pos}, end - pos, nil
}

// decodeWide returns the widened instruction with its 16-bit slot index.
func decodeWide(code []byte, pos int) (Instruction, int, error) {
	if pos+4 > len(code) {
		return Instruction{}, 0, errors.Wrapf(ErrBadCode, "wide at %d truncated", pos)
	}
	op := Opcode(code[pos+1])
	in := Instruction{Opcode: op, Operand: int(binary.BigEndian.Uint16(code[pos+2:])), Position: pos}
	switch {
	case op == OpIinc:
		if pos+6 > len(code) {
			return Instruction{}, 0, errors.Wrapf(ErrBadCode, "wide iinc at %d truncated", pos)
		}
		in.Extra = int(int16(binary.BigEndian.Uint16(code[pos+4:])))
		return in, 6, nil
	case op >= OpIload && op <= 0x19, op >= OpIstore && op <= 0x3A, op == 0xA9:
		return in, 4, nil
	}
	return Instruction{}, 0, errors.Wrapf(ErrBadCode, "wide at %d: cannot modify %s", pos, op)
}
