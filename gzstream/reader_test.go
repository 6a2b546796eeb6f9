package gzstream

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/cryoden/densitystream/chunkbuf"
)

// gzipCompress is a fixture generator: it shells out to the stdlib gzip
// writer (never to any part of this module) to produce a reference
// compressed stream, the same oracle role main.go's compare() plays against
// a stdlib gzip.Reader.
func gzipCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("gzip.Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip.Close: %v", err)
	}
	return buf.Bytes()
}

// readAll drives a Reader to completion, feeding compressed in chunks of
// chunkSize bytes (chunkSize <= 0 means "all at once").
func readAll(t *testing.T, compressed []byte, chunkSize int, opts Options) []byte {
	t.Helper()
	cb := chunkbuf.New()
	r := NewReader(cb, opts)

	if chunkSize <= 0 {
		chunkSize = len(compressed) + 1
	}

	var out []byte
	pos := 0
	for {
		data, done, err := r.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, data...)
		if done {
			return out
		}
		if pos < len(compressed) {
			end := pos + chunkSize
			if end > len(compressed) {
				end = len(compressed)
			}
			cb.Append(compressed[pos:end])
			pos = end
		}
		if pos >= len(compressed) {
			cb.CloseEnd()
		}
	}
}

// TestEmptyStoredBlock covers a GZIP member wrapping a single empty
// stored DEFLATE block.
func TestEmptyStoredBlock(t *testing.T) {
	hexBytes := []byte{
		0x1F, 0x8B, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0xFF, 0xFF,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	got := readAll(t, hexBytes, 0, Options{Checksum: ChecksumIgnore})
	if len(got) != 0 {
		t.Fatalf("expected empty output, got %d bytes", len(got))
	}
}

// TestFixedHuffmanHelloWorld covers a fixed-Huffman member.
func TestFixedHuffmanHelloWorld(t *testing.T) {
	want := []byte("Hello, World!")
	compressed := gzipCompress(t, want)

	got := readAll(t, compressed, 0, Options{Checksum: ChecksumFatal})
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// TestOneByteChunking feeds a fixed-Huffman member's compressed bytes one
// byte per Append call; the decoded output must be unaffected by chunking.
func TestOneByteChunking(t *testing.T) {
	want := []byte("Hello, World!")
	compressed := gzipCompress(t, want)

	got := readAll(t, compressed, 1, Options{Checksum: ChecksumFatal})
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// TestDynamicHuffmanRunExtension covers a dynamic-Huffman member whose
// body contains a run-length back-reference with distance < length.
func TestDynamicHuffmanRunExtension(t *testing.T) {
	want := append([]byte("ab"), bytes.Repeat([]byte("a"), 298)...)
	compressed := gzipCompress(t, want)

	got := readAll(t, compressed, 7, Options{Checksum: ChecksumFatal})
	if !bytes.Equal(got, want) {
		t.Fatalf("got %d bytes, want %d", len(got), len(want))
	}
	if !bytes.Equal(got, want) {
		t.Fatal("round-trip mismatch")
	}
}

func TestTrailerCRCMismatchFatal(t *testing.T) {
	compressed := gzipCompress(t, []byte("Hello, World!"))
	// Corrupt the CRC32 field in the trailer (last 8 bytes: crc32, isize).
	corrupted := append([]byte(nil), compressed...)
	corrupted[len(corrupted)-8] ^= 0xFF

	cb := chunkbuf.New()
	cb.Append(corrupted)
	cb.CloseEnd()
	r := NewReader(cb, Options{Checksum: ChecksumFatal})

	var sawErr error
	for {
		_, done, err := r.Next()
		if err != nil {
			sawErr = err
			break
		}
		if done {
			break
		}
	}
	if sawErr == nil {
		t.Fatal("expected a trailer error, got none")
	}
	var terr *TrailerError
	if !asTrailerError(sawErr, &terr) {
		t.Fatalf("expected *TrailerError, got %T: %v", sawErr, sawErr)
	}
}

func TestTrailerCRCMismatchWarnOnly(t *testing.T) {
	compressed := gzipCompress(t, []byte("Hello, World!"))
	corrupted := append([]byte(nil), compressed...)
	corrupted[len(corrupted)-8] ^= 0xFF

	cb := chunkbuf.New()
	cb.Append(corrupted)
	cb.CloseEnd()
	r := NewReader(cb, Options{Checksum: ChecksumWarn})

	for {
		_, done, err := r.Next()
		if err != nil {
			t.Fatalf("unexpected fatal error under ChecksumWarn: %v", err)
		}
		if done {
			break
		}
	}
	if len(r.Warnings()) == 0 {
		t.Fatal("expected a recorded warning")
	}
}

func TestBadSignature(t *testing.T) {
	cb := chunkbuf.New()
	cb.Append([]byte{0x00, 0x00, 0x08, 0x00, 0, 0, 0, 0, 0, 0})
	cb.CloseEnd()
	r := NewReader(cb, Options{})
	_, _, err := r.Next()
	var herr *HeaderError
	if !asHeaderError(err, &herr) {
		t.Fatalf("expected *HeaderError, got %T: %v", err, err)
	}
}

func TestCheckpointResume(t *testing.T) {
	want := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 2000)
	compressed := gzipCompress(t, want)

	cb := chunkbuf.New()
	cb.Append(compressed)
	cb.CloseEnd()
	r := NewReader(cb, Options{Checksum: ChecksumIgnore, CheckpointInterval: 4096})

	for {
		_, done, err := r.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if done {
			break
		}
	}

	cks := r.Checkpoints()
	if len(cks) == 0 {
		t.Fatal("expected at least one checkpoint")
	}
	idx := r.BuildIndex()
	encoded, err := idx.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := DecodeIndex(encoded)
	if err != nil {
		t.Fatalf("DecodeIndex: %v", err)
	}
	if len(decoded.Checkpoints) != len(cks) {
		t.Fatalf("round-tripped index has %d checkpoints, want %d", len(decoded.Checkpoints), len(cks))
	}

	mid := decoded.Nearest(cks[len(cks)/2].Out)
	if mid == nil {
		t.Fatal("Nearest returned nil for a known checkpoint offset")
	}

	// Reconstructing a Reader from a checkpoint must not panic and must
	// carry the member header over; exercising the resumed decode itself
	// requires feeding input from the matching compressed byte offset,
	// which a Checkpoint does not record, so it is not exercised here.
	cb2 := chunkbuf.New()
	resumed := NewReaderFromCheckpoint(cb2, decoded.Header, mid, Options{Checksum: ChecksumIgnore})
	if resumed.Header == nil {
		t.Fatal("expected header to carry over")
	}
}

func asTrailerError(err error, target **TrailerError) bool {
	if e, ok := err.(*TrailerError); ok {
		*target = e
		return true
	}
	return false
}

func asHeaderError(err error, target **HeaderError) bool {
	if e, ok := err.(*HeaderError); ok {
		*target = e
		return true
	}
	return false
}
