package gzstream

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"

	"github.com/cryoden/densitystream/chunkbuf"
)

const (
	flagText    = 1 << 0
	flagHCRC    = 1 << 1
	flagExtra   = 1 << 2
	flagName    = 1 << 3
	flagComment = 1 << 4
)

// Header holds the optional metadata carried in a GZIP member header
// (RFC 1952 §2.3), following the field set of sgzip/internal/flate.Header.
type Header struct {
	ModTime time.Time
	OS      byte
	Extra   []byte
	Name    string
	Comment string
	hadHCRC bool
}

// parseHeader consumes a GZIP member header from the front of cb. It never
// partially advances cb: on success the whole header (including any
// optional fields) is consumed atomically; on chunkbuf.ErrNeedMore nothing
// is consumed and the caller should retry once more bytes arrive.
func parseHeader(cb *chunkbuf.Buffer) (*Header, int, error) {
	avail := cb.Available()

	if len(avail) < 10 {
		return nil, 0, needMoreOrTruncated(cb, 10)
	}

	// RFC 1952 §2.3.1: two signature bytes, read and compared directly to
	// avoid the little/big-endian ambiguity a 16-bit comparison invites
	// to avoid the ambiguity of a 16-bit comparison.
	if avail[0] != 0x1F || avail[1] != 0x8B {
		return nil, 0, &HeaderError{Reason: "bad signature"}
	}
	if avail[2] != 8 {
		return nil, 0, &HeaderError{Reason: "unsupported compression method"}
	}
	flg := avail[3]
	mtime := binary.LittleEndian.Uint32(avail[4:8])
	// avail[8] is XFL, ignored.
	os := avail[9]

	pos := 10
	hdr := &Header{
		ModTime: time.Unix(int64(mtime), 0).UTC(),
		OS:      os,
	}

	if flg&flagExtra != 0 {
		if len(avail) < pos+2 {
			return nil, 0, needMoreOrTruncated(cb, pos+2)
		}
		xlen := int(binary.LittleEndian.Uint16(avail[pos : pos+2]))
		pos += 2
		if len(avail) < pos+xlen {
			return nil, 0, needMoreOrTruncated(cb, pos+xlen)
		}
		hdr.Extra = append([]byte(nil), avail[pos:pos+xlen]...)
		pos += xlen
	}

	if flg&flagName != 0 {
		n, end, err := readNulTerminated(cb, avail, pos)
		if err != nil {
			return nil, 0, err
		}
		hdr.Name = n
		pos = end
	}

	if flg&flagComment != 0 {
		c, end, err := readNulTerminated(cb, avail, pos)
		if err != nil {
			return nil, 0, err
		}
		hdr.Comment = c
		pos = end
	}

	if flg&flagHCRC != 0 {
		if len(avail) < pos+2 {
			return nil, 0, needMoreOrTruncated(cb, pos+2)
		}
		hdr.hadHCRC = true
		pos += 2
	}

	cb.Advance(pos)
	return hdr, pos, nil
}

// readNulTerminated scans avail starting at pos for a NUL-terminated field,
// per RFC 1952 FNAME/FCOMMENT. It returns the decoded string and the
// position just past the terminator; cb is only consulted to tell a
// transient underflow from truncation when no terminator is found.
func readNulTerminated(cb *chunkbuf.Buffer, avail []byte, pos int) (string, int, error) {
	if idx := bytes.IndexByte(avail[pos:], 0); idx >= 0 {
		return string(avail[pos : pos+idx]), pos + idx + 1, nil
	}
	if cb.Closed() {
		return "", 0, io.ErrUnexpectedEOF
	}
	return "", 0, chunkbuf.ErrNeedMore
}

// needMoreOrTruncated reports whether cb could ever satisfy a request for
// total bytes: truncated if the stream is already closed short of that,
// otherwise a transient underflow.
func needMoreOrTruncated(cb *chunkbuf.Buffer, total int) error {
	if cb.Closed() {
		return io.ErrUnexpectedEOF
	}
	return chunkbuf.ErrNeedMore
}
