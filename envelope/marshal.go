package envelope

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

// MaxChunkSize is the largest body push a standard inscription uses.
const MaxChunkSize = txscript.MaxScriptElementSize

// Marshal builds the canonical script for envelope, splitting the content
// into MaxChunkSize pushes.
func Marshal(envelope *Envelope) ([]byte, error) {
	return NewBuilder(envelope.ContentType).
		AddContent(envelope.Content, MaxChunkSize).
		Script()
}

type chunk struct {
	kind PushKind
	data []byte
}

// Builder assembles an envelope script push by push. The first error
// encountered is kept and returned by Script.
type Builder struct {
	prefix      []byte
	contentType string
	chunks      []chunk
	err         error
}

func NewBuilder(contentType string) *Builder {
	return &Builder{contentType: contentType}
}

// Prefix sets raw script bytes placed before the envelope, typically
// <pubkey> OP_CHECKSIG.
func (b *Builder) Prefix(script []byte) *Builder {
	b.prefix = script
	return b
}

// AddChunk appends one body push encoded with kind.
func (b *Builder) AddChunk(kind PushKind, data []byte) *Builder {
	if b.err != nil {
		return b
	}
	switch kind {
	case DirectPush:
		if len(data) == 0 {
			b.err = fmt.Errorf("direct push cannot carry an empty operand")
			return b
		}
	case PushData1, PushData2, PushData4:
	default:
		b.err = fmt.Errorf("%s is not a data push", kind)
		return b
	}
	if uint64(len(data)) > kind.MaxLength() {
		b.err = fmt.Errorf("%d bytes do not fit a %s push", len(data), kind)
		return b
	}
	b.chunks = append(b.chunks, chunk{kind: kind, data: data})
	return b
}

// AddContent splits data into pushes of at most size bytes, each using the
// smallest encoding that fits.
func (b *Builder) AddContent(data []byte, size int) *Builder {
	if size <= 0 {
		b.err = fmt.Errorf("invalid chunk size %d", size)
		return b
	}
	for len(data) > 0 {
		n := min(size, len(data))
		b.AddChunk(MinimalKind(n), data[:n])
		data = data[n:]
	}
	return b
}

// Script returns the encoded envelope. A content type with bytes outside
// ASCII fails with ErrInvalidMimeEncoding.
func (b *Builder) Script() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := checkContentType(b.contentType); err != nil {
		return nil, err
	}

	script := make([]byte, 0, len(b.prefix)+len(StartMarker)+len(b.contentType)+8)
	script = append(script, b.prefix...)
	script = append(script, StartMarker...)
	script = appendPush(script, MinimalKind(len(b.contentType)), []byte(b.contentType))
	script = append(script, BodySeparator)
	for _, c := range b.chunks {
		script = appendPush(script, c.kind, c.data)
	}
	return append(script, txscript.OP_ENDIF), nil
}

// MinimalKind returns the smallest push encoding for an operand of n bytes.
// Empty operands use OP_PUSHDATA1 with a zero length since OP_0 is not a
// data push inside an envelope.
func MinimalKind(n int) PushKind {
	switch {
	case n == 0:
		return PushData1
	case n <= txscript.OP_DATA_75:
		return DirectPush
	case n <= 0xff:
		return PushData1
	case n <= 0xffff:
		return PushData2
	default:
		return PushData4
	}
}

func appendPush(script []byte, kind PushKind, data []byte) []byte {
	switch kind {
	case DirectPush:
		script = append(script, byte(len(data)))
	case PushData1:
		script = append(script, txscript.OP_PUSHDATA1, byte(len(data)))
	case PushData2:
		script = append(script, txscript.OP_PUSHDATA2)
		script = binary.LittleEndian.AppendUint16(script, uint16(len(data)))
	case PushData4:
		script = append(script, txscript.OP_PUSHDATA4)
		script = binary.LittleEndian.AppendUint32(script, uint32(len(data)))
	}
	return append(script, data...)
}
