// Package filewriter persists decoded inscription content to disk.
package filewriter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/socheatsok78/ordextract/envelope"
	"github.com/socheatsok78/ordextract/mimetype"
)

// DefaultBase is the file name used when none is given.
const DefaultBase = "inscription"

var ErrInvalidName = errors.New("invalid file name")

// Filename returns base with the extension matching the envelope's
// content type.
func Filename(base string, env *envelope.Envelope) string {
	if base == "" {
		base = DefaultBase
	}
	return base + "." + mimetype.Extension(env.ContentType)
}

// Write stores the envelope content as dir/base.<ext> and returns the path.
// An existing file is replaced.
func Write(dir, base string, env *envelope.Envelope) (string, error) {
	if base != "" && (base != filepath.Base(base) || base == "." || base == "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, base)
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating output directory: %w", err)
	}

	path := filepath.Join(dir, Filename(base, env))
	if err := os.WriteFile(path, env.Content, 0o644); err != nil {
		return "", fmt.Errorf("error writing inscription: %w", err)
	}
	return path, nil
}
