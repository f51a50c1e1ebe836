// Package envelope decodes ordinal inscription envelopes embedded in a
// transaction's witness script.
//
// An envelope is an unexecuted OP_FALSE OP_IF ... OP_ENDIF block that starts
// with the "ord" tag, carries the content type as a single push, and then
// the content itself split across any number of data pushes.
package envelope

import "bytes"

type Envelope struct {
	ContentType string
	Content     []byte
}

// Bytes returns the raw inscription content.
func (e *Envelope) Bytes() []byte {
	return e.Content
}

func (e *Envelope) Size() int {
	return len(e.Content)
}

func (e *Envelope) NewReader() *bytes.Reader {
	return bytes.NewReader(e.Content)
}
