package envelope

import "github.com/btcsuite/btcd/txscript"

// BodySeparator is the OP_0 field tag between the content type and the body.
const BodySeparator = txscript.OP_0

// Unmarshal decodes the first envelope in script into envelope. On error the
// envelope is left untouched.
func Unmarshal(script []byte, envelope *Envelope) error {
	cursor, err := Locate(script)
	if err != nil {
		return err
	}

	// Content type
	mime, err := ReadPush(script, cursor)
	if err != nil {
		return err
	}
	if mime.Kind == Terminator {
		return decodeError(mime.Offset, ErrMalformedPush, "content type missing")
	}
	contentType, err := parseContentType(mime)
	if err != nil {
		return err
	}
	cursor = mime.Next

	// Body separator
	cursor, err = readSeparator(script, cursor)
	if err != nil {
		return err
	}

	// Body
	var content []byte
	for {
		p, err := ReadPush(script, cursor)
		if err != nil {
			return err
		}
		if p.Kind == Terminator {
			break
		}
		content = append(content, p.Data...)
		cursor = p.Next
	}

	if content == nil {
		content = []byte{}
	}
	envelope.ContentType = contentType
	envelope.Content = content
	return nil
}

func readSeparator(script []byte, cursor int) (int, error) {
	if cursor >= len(script) {
		return cursor, decodeError(cursor, ErrTruncated, "expected body separator")
	}
	if script[cursor] != BodySeparator {
		return cursor, decodeError(cursor, ErrMalformedPush, "expected body separator, found 0x%02x", script[cursor])
	}
	return cursor + 1, nil
}
