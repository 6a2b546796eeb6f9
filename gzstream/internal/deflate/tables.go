// Package deflate implements a resumable RFC 1951 DEFLATE inflator: stored,
// fixed-Huffman, and dynamic-Huffman blocks over a 32 KiB sliding window,
// suspending with ErrNeedMore at block boundaries instead of blocking on an
// io.Reader. It is the resumable-by-snapshot generalization of
// sgzip/internal/flate.Decompressor's step-function state machine.
package deflate

// codeOrder is the order in which code-length-code lengths are transmitted
// (RFC 1951 §3.2.7), matching sgzip/internal/flate.codeOrder.
var codeOrder = [19]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// lengthBase and lengthExtra give the base match length and number of extra
// bits for length symbols 257..285 (RFC 1951 §3.2.5).
var lengthBase = [29]int{
	3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31,
	35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258,
}
var lengthExtra = [29]uint{
	0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2,
	3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0,
}

// distBase and distExtra give the base distance and number of extra bits for
// distance symbols 0..29 (RFC 1951 §3.2.5).
var distBase = [30]int{
	1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193,
	257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577,
}
var distExtra = [30]uint{
	0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6,
	7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
}

const (
	endBlockMarker  = 256
	maxNumLit       = 286
	maxNumDist      = 30
	numCodegenCodes = 19

	// WindowSize is the maximum back-reference distance DEFLATE allows,
	// and therefore the size of the sliding window this package keeps.
	WindowSize = 1 << 15
)

// fixedLitLengths and fixedDistLengths are the fixed Huffman code lengths
// defined by RFC 1951 §3.2.6, used for BTYPE=01 blocks.
func fixedLitLengths() []int {
	lens := make([]int, 288)
	for i := 0; i < 144; i++ {
		lens[i] = 8
	}
	for i := 144; i < 256; i++ {
		lens[i] = 9
	}
	for i := 256; i < 280; i++ {
		lens[i] = 7
	}
	for i := 280; i < 288; i++ {
		lens[i] = 8
	}
	return lens
}

func fixedDistLengths() []int {
	lens := make([]int, 32)
	for i := range lens {
		lens[i] = 5
	}
	return lens
}
