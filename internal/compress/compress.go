// Package compress provides the trace reader's optional decompression
// support, adapted from the teacher's pkg/store/compress: a small
// Compressor interface with a handful of concrete codecs, selected by
// file extension (ForPath) rather than by a value stored alongside the
// data.
package compress

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressor decodes a whole compressed byte stream into its original
// form. The trace reader only ever decodes (traces are generated
// upstream, never written by this module), so there is no Encode side.
type Compressor interface {
	Decode(r io.Reader) (io.Reader, error)
	Extension() string
}

// ForPath picks a Compressor by the trace file's extension, defaulting
// to no compression when the extension is unrecognized.
func ForPath(path string) Compressor {
	switch {
	case strings.HasSuffix(path, ".gz"):
		return Gzip{}
	case strings.HasSuffix(path, ".zst"):
		return Zstd{}
	case strings.HasSuffix(path, ".lz4"):
		return LZ4{}
	default:
		return None{}
	}
}

// None passes the stream through unchanged.
type None struct{}

func (None) Decode(r io.Reader) (io.Reader, error) { return r, nil }
func (None) Extension() string                     { return "" }

// Gzip wraps klauspost/compress's gzip reader.
type Gzip struct{}

func (Gzip) Decode(r io.Reader) (io.Reader, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("compress: gzip reader: %w", err)
	}
	return gr, nil
}

func (Gzip) Extension() string { return ".gz" }

// Zstd wraps klauspost/compress's zstd decoder.
type Zstd struct{}

func (Zstd) Decode(r io.Reader) (io.Reader, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("compress: zstd reader: %w", err)
	}
	return zr, nil
}

func (Zstd) Extension() string { return ".zst" }

// LZ4 wraps pierrec/lz4's frame reader.
type LZ4 struct{}

func (LZ4) Decode(r io.Reader) (io.Reader, error) {
	return lz4.NewReader(r), nil
}

func (LZ4) Extension() string { return ".lz4" }

// DecodeAll is a convenience helper for callers that want the whole
// decompressed payload in memory at once. Only this package's tests call
// it; the streaming trace reader decodes incrementally instead.
func DecodeAll(c Compressor, data []byte) ([]byte, error) {
	r, err := c.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("compress: read: %w", err)
	}
	return out, nil
}
