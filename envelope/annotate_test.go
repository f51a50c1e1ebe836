package envelope

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnnotate(t *testing.T) {
	script, err := DecodeHex("20" + strings.Repeat("11", 32) + "ac" + helloHex)
	require.NoError(t, err)

	segments, err := Annotate(script)
	require.NoError(t, err)

	var labels []string
	var joined strings.Builder
	for _, s := range segments {
		labels = append(labels, s.Label)
		joined.WriteString(s.Hex)
	}

	require.Equal(t, []string{
		"script prefix",
		"OP_FALSE",
		"OP_IF",
		`OP_PUSH "ord"`,
		"OP_PUSH 1 (content type tag)",
		"direct push 10 bytes",
		`content type "text/plain"`,
		"OP_0 (body tag)",
		"direct push 13 bytes",
		"data (13 bytes)",
		"OP_ENDIF",
	}, labels)
	require.Equal(t, strings.ToLower("20"+strings.Repeat("11", 32)+"ac"+helloHex), joined.String())
}

func TestAnnotatePushData(t *testing.T) {
	script, err := NewBuilder("image/png").
		AddChunk(PushData2, make([]byte, 300)).
		Script()
	require.NoError(t, err)
	script = append(script, 0xde, 0xad)

	segments, err := Annotate(script)
	require.NoError(t, err)

	n := len(segments)
	require.Equal(t, "OP_PUSHDATA2", segments[n-5].Label)
	require.Equal(t, "length 300 bytes", segments[n-4].Label)
	require.Equal(t, "2c01", segments[n-4].Hex)
	require.Equal(t, "data (300 bytes)", segments[n-3].Label)
	require.Equal(t, "OP_ENDIF", segments[n-2].Label)
	require.Equal(t, "script suffix", segments[n-1].Label)
	require.Equal(t, "dead", segments[n-1].Hex)
}

func TestAnnotateFails(t *testing.T) {
	_, err := Annotate([]byte{0x51})
	require.ErrorIs(t, err, ErrNotFound)

	script, err := DecodeHex(helloHeader + "ff")
	require.NoError(t, err)
	_, err = Annotate(script)
	require.ErrorIs(t, err, ErrMalformedPush)
}
