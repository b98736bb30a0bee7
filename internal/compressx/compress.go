// Package compressx holds the optional lz4 stage applied to chunks before
// encryption.
package compressx

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// incompressible lists content-type prefixes that are already compressed.
var incompressible = []string{
	"image/",
	"video/",
	"audio/",
	"application/zip",
	"application/gzip",
	"application/x-7z-compressed",
	"application/x-rar-compressed",
	"application/vnd.rar",
}

// ShouldCompress reports whether chunks of a file with the given content
// type are worth compressing.
func ShouldCompress(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	for _, p := range incompressible {
		if strings.HasPrefix(ct, p) {
			return false
		}
	}
	return true
}

// Compress returns the lz4 frame encoding of data.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compression failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, lz4.NewReader(bytes.NewReader(data))); err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}
	return buf.Bytes(), nil
}
