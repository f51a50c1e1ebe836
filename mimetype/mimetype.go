// Package mimetype maps inscription content types to file extensions and
// presentation categories.
package mimetype

import "strings"

// DefaultExtension is used for content types without a mapping.
const DefaultExtension = "bin"

var extensions = map[string]string{
	"application/json":         "json",
	"application/pdf":          "pdf",
	"audio/mpeg":               "mpeg",
	"image/avif":               "avif",
	"image/gif":                "gif",
	"image/jpeg":               "jpg",
	"image/png":                "png",
	"image/svg+xml":            "svg",
	"image/webp":               "webp",
	"model/gltf-binary":        "glb",
	"text/html":                "html",
	"text/html;charset=utf-8":  "html",
	"text/javascript":          "js",
	"text/plain":               "txt",
	"text/plain;charset=utf-8": "txt",
	"text/x-python":            "py",
	"video/mp4":                "mp4",
	"video/webm":               "webm",
}

// Extension returns the file extension for contentType, without the dot.
func Extension(contentType string) string {
	if ext, ok := extensions[normalize(contentType)]; ok {
		return ext
	}
	return DefaultExtension
}

// Category is the top-level kind used to pick a renderer.
type Category string

const (
	Image  Category = "image"
	Audio  Category = "audio"
	Video  Category = "video"
	Text   Category = "text"
	Binary Category = "binary"
)

// CategoryOf classifies contentType by its top-level type.
func CategoryOf(contentType string) Category {
	top, _, _ := strings.Cut(normalize(contentType), "/")
	switch top {
	case "image":
		return Image
	case "audio":
		return Audio
	case "video":
		return Video
	case "text":
		return Text
	default:
		return Binary
	}
}

// normalize lower-cases contentType and drops whitespace around parameters,
// so "Text/Plain; charset=UTF-8" matches "text/plain;charset=utf-8".
func normalize(contentType string) string {
	parts := strings.Split(strings.ToLower(contentType), ";")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return strings.Join(parts, ";")
}
