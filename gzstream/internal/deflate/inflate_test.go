package deflate

import (
	"bytes"
	"compress/flate"
	"errors"
	"testing"

	"github.com/cryoden/densitystream/chunkbuf"
)

func deflateCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		t.Fatalf("flate.NewWriter: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func inflateAll(t *testing.T, compressed []byte, chunkSize int) []byte {
	t.Helper()
	cb := chunkbuf.New()
	d := NewDecompressor(cb)

	var out []byte
	pos := 0
	for {
		data, done, err := d.Inflate()
		if err != nil {
			t.Fatalf("Inflate: %v", err)
		}
		out = append(out, data...)
		if done {
			return out
		}
		if pos >= len(compressed) {
			cb.CloseEnd()
			continue
		}
		end := pos + chunkSize
		if end > len(compressed) {
			end = len(compressed)
		}
		cb.Append(compressed[pos:end])
		pos = end
		if pos >= len(compressed) {
			cb.CloseEnd()
		}
	}
}

func TestInflateRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 200)
	compressed := deflateCompress(t, data)

	got := inflateAll(t, compressed, len(compressed))
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(data))
	}
}

func TestInflateOneByteAtATime(t *testing.T) {
	data := []byte("Hello, World!")
	compressed := deflateCompress(t, data)

	got := inflateAll(t, compressed, 1)
	if !bytes.Equal(got, data) {
		t.Fatalf("one-byte-chunked mismatch: got %q, want %q", got, data)
	}
}

func TestInflateRunLengthExtension(t *testing.T) {
	data := append([]byte("ab"), bytes.Repeat([]byte("a"), 298)...)
	compressed := deflateCompress(t, data)

	got := inflateAll(t, compressed, len(compressed))
	if !bytes.Equal(got, data) {
		t.Fatalf("run-length mismatch: got %d bytes, want %d", len(got), len(data))
	}
}

func TestInflateReservedBlockType(t *testing.T) {
	// A single byte 0b111: BFINAL=1, BTYPE=11 (reserved).
	cb := chunkbuf.New()
	cb.Append([]byte{0b00000111})
	cb.CloseEnd()

	d := NewDecompressor(cb)
	_, _, err := d.Inflate()
	if err == nil {
		t.Fatal("expected error for reserved BTYPE")
	}
	var be *BlockError
	if !errors.As(err, &be) {
		t.Fatalf("got %T, want *BlockError", err)
	}
}
