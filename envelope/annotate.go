package envelope

import "fmt"

// Segment labels a contiguous range of script bytes.
type Segment struct {
	Offset int    `json:"offset"`
	Bytes  []byte `json:"-"`
	Hex    string `json:"hex"`
	Label  string `json:"label"`
}

// Annotate splits script into labelled segments covering every byte, in
// order. It decodes the same way Unmarshal does and fails the same way.
func Annotate(script []byte) ([]Segment, error) {
	var segments []Segment
	add := func(from, to int, label string, args ...any) {
		if to <= from {
			return
		}
		b := script[from:to:to]
		segments = append(segments, Segment{
			Offset: from,
			Bytes:  b,
			Hex:    fmt.Sprintf("%x", b),
			Label:  fmt.Sprintf(label, args...),
		})
	}

	cursor, err := Locate(script)
	if err != nil {
		return nil, err
	}
	start := cursor - len(StartMarker)
	add(0, start, "script prefix")
	add(start, start+1, "OP_FALSE")
	add(start+1, start+2, "OP_IF")
	add(start+2, start+6, "OP_PUSH %q", ProtocolID)
	add(start+6, cursor, "OP_PUSH 1 (content type tag)")

	mime, err := ReadPush(script, cursor)
	if err != nil {
		return nil, err
	}
	if mime.Kind == Terminator {
		return nil, decodeError(mime.Offset, ErrMalformedPush, "content type missing")
	}
	contentType, err := parseContentType(mime)
	if err != nil {
		return nil, err
	}
	addPushHeader(add, mime)
	add(mime.DataOffset, mime.Next, "content type %q", contentType)

	cursor, err = readSeparator(script, mime.Next)
	if err != nil {
		return nil, err
	}
	add(mime.Next, cursor, "OP_0 (body tag)")

	for {
		p, err := ReadPush(script, cursor)
		if err != nil {
			return nil, err
		}
		if p.Kind == Terminator {
			add(p.Offset, p.Next, "OP_ENDIF")
			add(p.Next, len(script), "script suffix")
			return segments, nil
		}
		addPushHeader(add, p)
		add(p.DataOffset, p.Next, "data (%d bytes)", len(p.Data))
		cursor = p.Next
	}
}

func addPushHeader(add func(from, to int, label string, args ...any), p Push) {
	if p.Kind == DirectPush {
		add(p.Offset, p.Offset+1, "direct push %d bytes", len(p.Data))
		return
	}
	add(p.Offset, p.Offset+1, "%s", p.Kind)
	add(p.Offset+1, p.DataOffset, "length %d bytes", len(p.Data))
}
