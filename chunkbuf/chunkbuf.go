// Package chunkbuf implements an append-only byte queue for streaming
// decoders that must suspend when fewer bytes are available than they need
// and resume once more have arrived.
package chunkbuf

import (
	"errors"
	"io"
)

// ErrNeedMore is returned when a read would need bytes that haven't arrived
// yet but the stream is still open. Callers should retry once more data has
// been appended.
var ErrNeedMore = errors.New("chunkbuf: need more input")

// Buffer is a read cursor over an append-only sequence of byte chunks.
//
// It is not safe for concurrent use: the orchestrator only ever writes to a
// Buffer while its consumer is suspended on ErrNeedMore.
type Buffer struct {
	buf    []byte
	offset int // bytes before offset have been consumed, and may be compacted
	closed bool

	// discarded counts the bytes Compact has removed from the front of buf,
	// so Checkpoint tokens stay valid across compactions.
	discarded int

	// checkpoints holds outstanding saved offsets; the prefix below the
	// smallest live checkpoint can never be compacted away.
	checkpoints []int
}

// New returns an empty, open Buffer.
func New() *Buffer {
	return &Buffer{}
}

// Append adds more bytes to the queue. It is a no-op after CloseEnd, mirroring
// an io.Writer to a closed pipe being harmless rather than an error: a slow
// producer racing its own cancellation shouldn't crash the consumer.
func (b *Buffer) Append(chunk []byte) {
	if b.closed || len(chunk) == 0 {
		return
	}
	b.buf = append(b.buf, chunk...)
}

// CloseEnd latches end-of-stream. Once closed, a read that still can't be
// satisfied is truncation, not a transient underflow.
func (b *Buffer) CloseEnd() {
	b.closed = true
}

// Closed reports whether CloseEnd has been called.
func (b *Buffer) Closed() bool {
	return b.closed
}

// Len returns the number of unconsumed bytes currently buffered.
func (b *Buffer) Len() int {
	return len(b.buf) - b.offset
}

// TryTake returns the next n unconsumed bytes without advancing the cursor,
// or ErrNeedMore / io.ErrUnexpectedEOF if fewer than n bytes are available.
func (b *Buffer) TryTake(n int) ([]byte, error) {
	if n < 0 {
		panic("chunkbuf: negative take")
	}
	if b.offset+n <= len(b.buf) {
		return b.buf[b.offset : b.offset+n], nil
	}
	if b.closed {
		return nil, io.ErrUnexpectedEOF
	}
	return nil, ErrNeedMore
}

// Advance moves the read cursor forward by n bytes, which must already have
// been observed via TryTake or PeekByte.
func (b *Buffer) Advance(n int) {
	b.offset += n
	if b.offset > len(b.buf) {
		panic("chunkbuf: advance past end")
	}
}

// Available returns every currently unconsumed byte without advancing the
// cursor. Unlike TryTake, it never fails: it's for scanning formats with a
// variable-length terminator (e.g. a GZIP NUL-terminated name field) where
// the required length isn't known up front. Callers that don't find what
// they need in the returned slice should check Closed(): if false, more
// bytes may still arrive; if true, the input is truncated.
func (b *Buffer) Available() []byte {
	return b.buf[b.offset:]
}

// PeekByte returns the next unconsumed byte without advancing the cursor.
func (b *Buffer) PeekByte() (byte, error) {
	bs, err := b.TryTake(1)
	if err != nil {
		return 0, err
	}
	return bs[0], nil
}

// NextByte returns the next unconsumed byte and advances past it, matching
// bitio.ByteSource.
func (b *Buffer) NextByte() (byte, error) {
	c, err := b.PeekByte()
	if err != nil {
		return 0, err
	}
	b.Advance(1)
	return c, nil
}

// Checkpoint saves the current read offset and returns a token that Restore
// accepts. Checkpoints nest: Restore may be called with any previously
// returned token as long as it hasn't been discarded by a later Checkpoint
// call being Restored past it.
func (b *Buffer) Checkpoint() int {
	b.checkpoints = append(b.checkpoints, b.offset)
	return b.discarded + b.offset
}

// Restore rewinds the read cursor to a token returned by Checkpoint, and
// drops that checkpoint (and any later ones) from the outstanding set.
func (b *Buffer) Restore(token int) {
	b.offset = token - b.discarded
	for len(b.checkpoints) > 0 && b.checkpoints[len(b.checkpoints)-1] >= b.offset {
		b.checkpoints = b.checkpoints[:len(b.checkpoints)-1]
	}
}

// Compact discards the consumed prefix that no outstanding checkpoint still
// references, bounding memory use of a long-lived Buffer fed by many small
// Append calls.
func (b *Buffer) Compact() {
	floor := b.offset
	for _, c := range b.checkpoints {
		if c < floor {
			floor = c
		}
	}
	if floor == 0 {
		return
	}
	b.buf = append(b.buf[:0], b.buf[floor:]...)
	b.offset -= floor
	b.discarded += floor
	for i := range b.checkpoints {
		b.checkpoints[i] -= floor
	}
}
