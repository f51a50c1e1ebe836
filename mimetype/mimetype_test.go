package mimetype

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"image/png":                  "png",
		"image/jpeg":                 "jpg",
		"text/plain;charset=utf-8":   "txt",
		"Text/Plain; charset=UTF-8":  "txt",
		"text/html;charset=utf-8":    "html",
		"model/gltf-binary":          "glb",
		"image/svg+xml":              "svg",
		"application/octet-stream":   "bin",
		"":                           "bin",
		"text/markdown;charset=utf8": "bin",
	}
	for contentType, want := range tests {
		require.Equal(t, want, Extension(contentType), contentType)
	}
}

func TestCategoryOf(t *testing.T) {
	require.Equal(t, Image, CategoryOf("image/webp"))
	require.Equal(t, Audio, CategoryOf("audio/mpeg"))
	require.Equal(t, Video, CategoryOf("VIDEO/mp4"))
	require.Equal(t, Text, CategoryOf("text/plain;charset=utf-8"))
	require.Equal(t, Binary, CategoryOf("model/gltf-binary"))
	require.Equal(t, Binary, CategoryOf("garbage"))
}
