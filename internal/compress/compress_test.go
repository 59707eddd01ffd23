package compress

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var payload = []byte(`{"t":1,"oid":42,"size":1024}` + "\n")

func TestForPathSelectsByExtension(t *testing.T) {
	cases := map[string]Compressor{
		"trace.csv.gz":  Gzip{},
		"trace.csv.zst": Zstd{},
		"trace.csv.lz4": LZ4{},
		"trace.csv":     None{},
	}
	for path, want := range cases {
		if got := ForPath(path); got.Extension() != want.Extension() {
			t.Errorf("ForPath(%q).Extension() = %q, want %q", path, got.Extension(), want.Extension())
		}
	}
}

func TestNoneRoundTrip(t *testing.T) {
	r, err := None{}.Decode(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("got %q, want %q", got, payload)
	}
}

func TestGzipRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := DecodeAll(Gzip{}, buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("got %q, want %q", got, payload)
	}
}

func TestZstdRoundTrip(t *testing.T) {
	zw, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	encoded := zw.EncodeAll(payload, nil)
	zw.Close()

	got, err := DecodeAll(Zstd{}, encoded)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("got %q, want %q", got, payload)
	}
}

func TestLZ4RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	lw := lz4.NewWriter(&buf)
	if _, err := lw.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := lw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := DecodeAll(LZ4{}, buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("got %q, want %q", got, payload)
	}
}
