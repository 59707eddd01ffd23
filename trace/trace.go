// Package trace implements the pull-based trace source (§4.7): a
// reader over ASCII `<timestamp> <object_id> <size>` lines, with
// optional transparent decompression by file extension.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/codeGROOVE-dev/hrcache/internal/compress"
)

// Request is one parsed trace line.
type Request struct {
	Timestamp float64
	ObjectID  int
	Size      int
}

// Source is a pull-based iterator over trace requests.
type Source interface {
	// Next returns the next request, or io.EOF once the trace is
	// exhausted. A non-nil, non-EOF error means the line was
	// malformed or the underlying reader failed.
	Next() (Request, error)
	Close() error
}

// FileSource reads a trace file line by line, decompressing
// transparently based on the file's extension (.gz, .zst, .lz4).
type FileSource struct {
	f       *os.File
	scanner *bufio.Scanner
	line    int
}

// Open opens path for sequential reading, selecting a decompressor by
// extension via internal/compress.
func Open(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", path, err)
	}

	r, err := compress.ForPath(path).Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("trace: decompress %s: %w", path, err)
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	return &FileSource{f: f, scanner: sc}, nil
}

// Next implements Source.
func (s *FileSource) Next() (Request, error) {
	for s.scanner.Scan() {
		s.line++
		text := strings.TrimSpace(s.scanner.Text())
		if text == "" {
			continue
		}
		return parseLine(text, s.line)
	}
	if err := s.scanner.Err(); err != nil {
		return Request{}, fmt.Errorf("trace: read: %w", err)
	}
	return Request{}, io.EOF
}

// Close implements Source.
func (s *FileSource) Close() error { return s.f.Close() }

func parseLine(text string, line int) (Request, error) {
	fields := strings.Fields(text)
	if len(fields) != 3 {
		return Request{}, fmt.Errorf("trace: line %d: expected 3 fields, got %d", line, len(fields))
	}

	t, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Request{}, fmt.Errorf("trace: line %d: bad timestamp %q: %w", line, fields[0], err)
	}
	oid, err := strconv.Atoi(fields[1])
	if err != nil {
		return Request{}, fmt.Errorf("trace: line %d: bad object id %q: %w", line, fields[1], err)
	}
	size, err := strconv.Atoi(fields[2])
	if err != nil {
		return Request{}, fmt.Errorf("trace: line %d: bad size %q: %w", line, fields[2], err)
	}

	return Request{Timestamp: t, ObjectID: oid, Size: size}, nil
}
