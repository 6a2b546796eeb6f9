// Package huffman builds canonical Huffman decode tables for DEFLATE
// (RFC 1951 §3.2.2), following the construction in
// sgzip/internal/flate.huffmanDecoder.init but flattened to the single
// flat table this package uses instead of sgzip/internal/flate's
// chunk-plus-overflow-link scheme: two parallel arrays of size
// 1<<maxCodeLen, indexed by peeking maxCodeLen bits, each entry carrying a
// symbol and the real code length so callers know how many bits to drop.
package huffman

import (
	"errors"
	"math/bits"
)

// ErrNoSymbols is returned by Build when every code length is zero.
var ErrNoSymbols = errors.New("huffman: no symbols (all code lengths zero)")

// ErrIncomplete is returned by Build when the code lengths don't form a
// complete prefix code (the degenerate-single-symbol case from RFC 1951 is
// explicitly allowed, matching zlib's and sgzip/internal/flate's sanity check).
var ErrIncomplete = errors.New("huffman: incomplete or over-subscribed code")

const maxMaxCodeLen = 15 // DEFLATE never needs more than 15-bit codes

// Table is a canonical Huffman decode table. Lookup: peek MaxCodeLen bits as
// i; Symbol[i] is the decoded symbol, CodeLen[i] is how many of those bits
// actually belong to the code (the rest must be dropped by the caller after
// re-peeking, or simply not consumed beyond CodeLen[i]).
type Table struct {
	Symbol     []uint16
	CodeLen    []uint8
	MaxCodeLen uint
	MinCodeLen uint
}

// Build constructs a canonical Huffman table from code lengths L, where
// L[i] is the bit length of symbol i's code (0 meaning "symbol i is unused").
// Codes are assigned in order of increasing length then increasing symbol
// index (RFC 1951 §3.2.2), then each code is bit-reversed to its own length
// because the bitstream is read LSB-first, and every table index whose low
// bits match the reversed code (mod 2^length) is populated.
func Build(lengths []int) (*Table, error) {
	var count [maxMaxCodeLen + 1]int
	min, max := 0, 0
	for _, n := range lengths {
		if n == 0 {
			continue
		}
		if n < 0 || n > maxMaxCodeLen {
			return nil, errors.New("huffman: code length out of range")
		}
		if min == 0 || n < min {
			min = n
		}
		if n > max {
			max = n
		}
		count[n]++
	}
	if max == 0 {
		return nil, ErrNoSymbols
	}

	var nextCode [maxMaxCodeLen + 1]int
	code := 0
	for i := min; i <= max; i++ {
		code <<= 1
		nextCode[i] = code
		code += count[i]
	}
	// Degenerate single-symbol codes (code==1, max==1) are accepted for
	// zlib compatibility, same exception sgzip/internal/flate's init carries.
	if code != 1<<uint(max) && !(code == 1 && max == 1) {
		return nil, ErrIncomplete
	}

	size := 1 << uint(max)
	t := &Table{
		Symbol:     make([]uint16, size),
		CodeLen:    make([]uint8, size),
		MaxCodeLen: uint(max),
		MinCodeLen: uint(min),
	}

	for sym, n := range lengths {
		if n == 0 {
			continue
		}
		c := nextCode[n]
		nextCode[n]++

		reversed := int(bits.Reverse16(uint16(c))) >> (16 - n)
		for idx := reversed; idx < size; idx += 1 << uint(n) {
			t.Symbol[idx] = uint16(sym)
			t.CodeLen[idx] = uint8(n)
		}
	}

	return t, nil
}

// Decode looks up the symbol and consumed bit-length for the maxCodeLen bits
// peeked in peeked (only the low MaxCodeLen bits are significant).
func (t *Table) Decode(peeked uint32) (symbol uint16, codeLen uint8) {
	idx := peeked & (uint32(len(t.Symbol)) - 1)
	return t.Symbol[idx], t.CodeLen[idx]
}
