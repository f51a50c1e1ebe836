package envelope

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/txscript"
)

// PushKind classifies the opcode found at a push position.
type PushKind uint8

const (
	Unrecognized PushKind = iota
	DirectPush
	PushData1
	PushData2
	PushData4
	Terminator
)

func (k PushKind) String() string {
	switch k {
	case DirectPush:
		return "direct"
	case PushData1:
		return "OP_PUSHDATA1"
	case PushData2:
		return "OP_PUSHDATA2"
	case PushData4:
		return "OP_PUSHDATA4"
	case Terminator:
		return "OP_ENDIF"
	default:
		return "unrecognized"
	}
}

// lengthSize is the width of the little-endian length field following the
// opcode.
func (k PushKind) lengthSize() int {
	switch k {
	case PushData1:
		return 1
	case PushData2:
		return 2
	case PushData4:
		return 4
	default:
		return 0
	}
}

// MaxLength is the largest operand the kind can describe.
func (k PushKind) MaxLength() uint64 {
	switch k {
	case DirectPush:
		return txscript.OP_DATA_75
	case PushData1:
		return 0xff
	case PushData2:
		return 0xffff
	case PushData4:
		return 0xffffffff
	default:
		return 0
	}
}

// Classify maps an opcode byte to its PushKind by numeric value.
func Classify(op byte) PushKind {
	switch {
	case op == txscript.OP_ENDIF:
		return Terminator
	case op >= txscript.OP_DATA_1 && op <= txscript.OP_DATA_75:
		return DirectPush
	case op == txscript.OP_PUSHDATA1:
		return PushData1
	case op == txscript.OP_PUSHDATA2:
		return PushData2
	case op == txscript.OP_PUSHDATA4:
		return PushData4
	default:
		return Unrecognized
	}
}

// Push is a single operation read from the script.
type Push struct {
	Kind PushKind
	// Opcode is the raw opcode byte.
	Opcode byte
	// Offset is the position of the opcode, DataOffset the position of the
	// first operand byte.
	Offset     int
	DataOffset int
	// Data aliases the script; callers copy it if they keep it.
	Data []byte
	// Next is the cursor position following the operand.
	Next int
}

// ReadPush decodes the operation at cursor.
func ReadPush(script []byte, cursor int) (Push, error) {
	if cursor < 0 || cursor >= len(script) {
		return Push{}, decodeError(cursor, ErrTruncated, "expected opcode")
	}

	op := script[cursor]
	p := Push{Kind: Classify(op), Opcode: op, Offset: cursor}

	var length uint64
	pos := cursor + 1
	switch p.Kind {
	case Terminator:
		p.DataOffset, p.Next = pos, pos
		return p, nil
	case DirectPush:
		length = uint64(op)
	case PushData1, PushData2, PushData4:
		size := p.Kind.lengthSize()
		if len(script)-pos < size {
			return Push{}, decodeError(pos, ErrTruncated, "%s length needs %d bytes", p.Kind, size)
		}
		field := script[pos : pos+size]
		switch size {
		case 1:
			length = uint64(field[0])
		case 2:
			length = uint64(binary.LittleEndian.Uint16(field))
		case 4:
			length = uint64(binary.LittleEndian.Uint32(field))
		}
		pos += size
	default:
		return Push{}, decodeError(cursor, ErrMalformedPush, "unexpected opcode 0x%02x", op)
	}

	if uint64(len(script)-pos) < length {
		return Push{}, decodeError(pos, ErrTruncated, "%s operand of %d bytes, %d remaining", p.Kind, length, len(script)-pos)
	}

	end := pos + int(length)
	p.DataOffset = pos
	p.Data = script[pos:end:end]
	p.Next = end
	return p, nil
}
