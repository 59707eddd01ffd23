package trace

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeTrace(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.csv")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestFileSourceParsesLines(t *testing.T) {
	path := writeTrace(t, "1.0 10 100\n2.5 20 200\n\n3.0 10 50\n")
	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	var got []Request
	for {
		r, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, r)
	}

	want := []Request{{1.0, 10, 100}, {2.5, 20, 200}, {3.0, 10, 50}}
	if len(got) != len(want) {
		t.Fatalf("got %d requests, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("request %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFileSourceRejectsMalformedLine(t *testing.T) {
	path := writeTrace(t, "1.0 10\n")
	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	if _, err := src.Next(); err == nil {
		t.Fatal("expected an error on a malformed line")
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("expected an error opening a nonexistent file")
	}
}

