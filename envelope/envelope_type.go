package envelope

import (
	"fmt"
	"unicode/utf8"
)

func parseContentType(p Push) (string, error) {
	if i := nonASCII(p.Data); i >= 0 {
		return "", decodeError(p.DataOffset+i, ErrInvalidMimeEncoding, "byte 0x%02x", p.Data[i])
	}
	return string(p.Data), nil
}

// checkContentType applies the decoder's rule to a content type about to be
// encoded, so Marshal never emits a script Unmarshal rejects.
func checkContentType(contentType string) error {
	if i := nonASCII([]byte(contentType)); i >= 0 {
		return fmt.Errorf("%w: byte 0x%02x at index %d of %q", ErrInvalidMimeEncoding, contentType[i], i, contentType)
	}
	return nil
}

// nonASCII returns the index of the first byte outside ASCII, or -1.
func nonASCII(b []byte) int {
	for i, c := range b {
		if c >= utf8.RuneSelf {
			return i
		}
	}
	return -1
}
