package envelope

import (
	"bytes"

	"github.com/btcsuite/btcd/txscript"
)

// ProtocolID is the tag pushed right after OP_IF.
const ProtocolID = "ord"

// ContentTypeTag is the field tag that precedes the content type push.
const ContentTypeTag = 0x01

// StartMarker is OP_FALSE OP_IF <push "ord"> <push 0x01>.
var StartMarker = []byte{
	txscript.OP_FALSE,
	txscript.OP_IF,
	txscript.OP_DATA_3, 'o', 'r', 'd',
	txscript.OP_DATA_1, ContentTypeTag,
}

// Locate returns the offset of the first byte following the first envelope
// start marker in script. Later markers are ignored.
func Locate(script []byte) (int, error) {
	i := bytes.Index(script, StartMarker)
	if i < 0 {
		return 0, &DecodeError{Offset: len(script), Err: ErrNotFound}
	}
	return i + len(StartMarker), nil
}
