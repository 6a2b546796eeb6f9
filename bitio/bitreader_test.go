package bitio

import (
	"errors"
	"io"
	"testing"

	"github.com/cryoden/densitystream/chunkbuf"
)

func TestShiftLSBFirst(t *testing.T) {
	buf := chunkbuf.New()
	// 0b10110010 -> low 3 bits are 010 = 2
	buf.Append([]byte{0b10110010})
	r := New(buf)

	v, err := r.Shift(3, true)
	if err != nil {
		t.Fatalf("Shift: %v", err)
	}
	if v != 0b010 {
		t.Fatalf("Shift(3) = %b, want %b", v, 0b010)
	}

	v, err = r.Shift(5, true)
	if err != nil {
		t.Fatalf("Shift: %v", err)
	}
	if v != 0b10110 {
		t.Fatalf("Shift(5) = %b, want %b", v, 0b10110)
	}
}

func TestShiftNeedsMoreRetainsState(t *testing.T) {
	buf := chunkbuf.New()
	buf.Append([]byte{0xFF})
	r := New(buf)

	if _, err := r.Shift(16, false); !errors.Is(err, chunkbuf.ErrNeedMore) {
		t.Fatalf("Shift(16): got %v, want ErrNeedMore", err)
	}
	if r.Len() != 8 {
		t.Fatalf("Len() after failed Shift = %d, want 8 (partial byte retained)", r.Len())
	}

	buf.Append([]byte{0x00})
	v, err := r.Shift(16, true)
	if err != nil {
		t.Fatalf("Shift(16) after refill: %v", err)
	}
	if v != 0x00FF {
		t.Fatalf("Shift(16) = %#x, want 0x00ff", v)
	}
}

func TestShiftTruncated(t *testing.T) {
	buf := chunkbuf.New()
	buf.CloseEnd()
	r := New(buf)

	if _, err := r.Shift(1, false); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Shift on closed empty buffer: got %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestSaveRestore(t *testing.T) {
	buf := chunkbuf.New()
	buf.Append([]byte{0b00001111, 0b11110000})
	r := New(buf)

	if _, err := r.Shift(4, true); err != nil {
		t.Fatal(err)
	}
	snap := r.Save()

	v1, _ := r.Shift(4, true)
	r.Restore(snap)
	v2, _ := r.Shift(4, true)

	if v1 != v2 {
		t.Fatalf("restored shift mismatch: %b != %b", v1, v2)
	}
}

func TestResetDropsFraction(t *testing.T) {
	buf := chunkbuf.New()
	buf.Append([]byte{0xAB, 0xCD})
	r := New(buf)

	if _, err := r.Shift(3, true); err != nil {
		t.Fatal(err)
	}
	r.Reset()
	if r.Len() != 0 {
		t.Fatalf("Len() after Reset = %d, want 0", r.Len())
	}

	b, err := r.AlignedByte()
	if err != nil {
		t.Fatal(err)
	}
	if b != 0xCD {
		t.Fatalf("AlignedByte = %#x, want 0xcd (next whole byte after realignment)", b)
	}
}
