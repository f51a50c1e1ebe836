package envelope

import (
	"encoding/hex"
	"strings"
)

// Parse decodes the envelope carried by a hex encoded witness script.
func Parse(witnessHex string) (*Envelope, error) {
	script, err := DecodeHex(witnessHex)
	if err != nil {
		return nil, err
	}

	envelope := &Envelope{}
	err = Unmarshal(script, envelope)
	if err != nil {
		return nil, err
	}

	return envelope, nil
}

// DecodeHex turns a case-insensitive hex string into script bytes.
func DecodeHex(witnessHex string) ([]byte, error) {
	witnessHex = strings.TrimSpace(witnessHex)
	script, err := hex.DecodeString(witnessHex)
	if err != nil {
		offset := len(witnessHex) / 2
		if e, ok := err.(hex.InvalidByteError); ok {
			offset = strings.IndexByte(witnessHex, byte(e)) / 2
		}
		return nil, &DecodeError{Offset: offset, Err: ErrInvalidHex, Detail: err.Error()}
	}
	return script, nil
}
