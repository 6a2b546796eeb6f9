package gzstream

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/cespare/xxhash/v2"
	"github.com/cryoden/densitystream/chunkbuf"
	"github.com/cryoden/densitystream/gzstream/internal/deflate"
)

// ChecksumMode controls how Reader treats a CRC32/ISIZE trailer mismatch.
// Trailer verification is optional: a caller that doesn't care can skip
// it entirely, while one that does can choose between a soft warning and
// a fatal error on mismatch.
type ChecksumMode int

const (
	ChecksumIgnore ChecksumMode = iota // don't even read the trailer bytes into a comparison
	ChecksumWarn                       // verify, but surface mismatches via Warnings() rather than Next's error
	ChecksumFatal                      // verify, and return a *TrailerError from Next on mismatch
)

// Options configures a Reader.
type Options struct {
	Checksum ChecksumMode

	// CheckpointInterval, if positive, makes Reader record a Checkpoint
	// (see Checkpoints) at least this many decoded bytes apart, the same
	// gate used to decide when enough output has accumulated to checkpoint.
	CheckpointInterval int64
}

type readerState int

const (
	stateHeader readerState = iota
	stateBody
	stateTrailer
	stateDone
)

// Reader frames a single GZIP member: parses its header, decodes its
// DEFLATE payload through gzstream/internal/deflate, and verifies its
// trailer. It is the resumable generalization of gsip.Reader.
type Reader struct {
	cb    *chunkbuf.Buffer
	d     *deflate.Decompressor
	opts  Options
	state readerState

	Header *Header

	crc       uint32
	outTotal  int64
	lastCkOut int64

	checkpoints []*Checkpoint
	warnings    []error
}

// NewReader returns a Reader that will parse a fresh GZIP member header
// from cb before decoding its body.
func NewReader(cb *chunkbuf.Buffer, opts Options) *Reader {
	return &Reader{cb: cb, opts: opts}
}

// NewReaderFromCheckpoint reconstructs a Reader positioned at a previously
// recorded Checkpoint, skipping header parsing and re-decoding from zero —
// the generalization of gsip.Reader.acquireReader's "Continue from the
// highest checkpoint at or before the target offset" path.
func NewReaderFromCheckpoint(cb *chunkbuf.Buffer, hdr *Header, ck *Checkpoint, opts Options) *Reader {
	return &Reader{
		cb:        cb,
		d:         deflate.Resume(cb, ck.State),
		opts:      opts,
		state:     stateBody,
		Header:    hdr,
		outTotal:  ck.Out,
		lastCkOut: ck.Out,
	}
}

// Warnings returns non-fatal checksum mismatches recorded under
// ChecksumWarn.
func (r *Reader) Warnings() []error {
	return r.warnings
}

// Checkpoints returns the checkpoints recorded so far (see Options.CheckpointInterval).
func (r *Reader) Checkpoints() []*Checkpoint {
	return r.checkpoints
}

// BuildIndex snapshots the checkpoints recorded so far, along with the
// member header, into a persistable Index.
func (r *Reader) BuildIndex() *Index {
	return &Index{Header: r.Header, Checkpoints: r.checkpoints}
}

// Next advances the member by at most one DEFLATE block (or the header or
// trailer):
//
//   - err == nil, done == false: data (possibly empty) is the output of the
//     step just taken. Call Next again; when data is empty, more input is
//     usually needed first, so append to the ChunkBuffer before calling.
//   - err == nil, done == true: the member's payload and trailer have been
//     fully consumed and verified.
//   - err != nil: fatal.
func (r *Reader) Next() ([]byte, bool, error) {
	for {
		switch r.state {
		case stateHeader:
			hdr, _, err := parseHeader(r.cb)
			if err != nil {
				if err == chunkbuf.ErrNeedMore {
					return nil, false, nil
				}
				return nil, false, err
			}
			r.Header = hdr
			r.d = deflate.NewDecompressor(r.cb)
			r.state = stateBody

		case stateBody:
			block, done, err := r.d.InflateBlock()
			if err != nil {
				if err == chunkbuf.ErrNeedMore {
					return nil, false, nil
				}
				return nil, false, err
			}

			if len(block) > 0 {
				r.crc = crc32.Update(r.crc, crc32.IEEETable, block)
			}
			r.outTotal += int64(len(block))
			r.maybeCheckpoint()

			if done {
				r.state = stateTrailer
			}
			return block, false, nil

		case stateTrailer:
			if r.opts.Checksum == ChecksumIgnore {
				if _, err := r.cb.TryTake(8); err != nil {
					if err == chunkbuf.ErrNeedMore {
						return nil, false, nil
					}
					return nil, false, err
				}
				r.cb.Advance(8)
				r.state = stateDone
				return nil, true, nil
			}

			raw, err := r.cb.TryTake(8)
			if err != nil {
				if err == chunkbuf.ErrNeedMore {
					return nil, false, nil
				}
				return nil, false, err
			}
			wantCRC := binary.LittleEndian.Uint32(raw[0:4])
			wantSize := binary.LittleEndian.Uint32(raw[4:8])
			r.cb.Advance(8)

			if wantCRC != r.crc {
				err := &TrailerError{Reason: "crc32 mismatch"}
				if r.opts.Checksum == ChecksumFatal {
					return nil, false, err
				}
				r.warnings = append(r.warnings, err)
			}
			if wantSize != uint32(r.outTotal) {
				err := &TrailerError{Reason: "isize mismatch"}
				if r.opts.Checksum == ChecksumFatal {
					return nil, false, err
				}
				r.warnings = append(r.warnings, err)
			}

			r.state = stateDone
			return nil, true, nil

		case stateDone:
			return nil, true, nil
		}
	}
}

// maybeCheckpoint records a Checkpoint if CheckpointInterval is configured
// and enough output has accumulated since the last one.
func (r *Reader) maybeCheckpoint() {
	if r.opts.CheckpointInterval <= 0 {
		return
	}
	if r.outTotal-r.lastCkOut < r.opts.CheckpointInterval {
		return
	}
	state := r.d.Checkpoint()
	r.checkpoints = append(r.checkpoints, &Checkpoint{
		Out:         r.outTotal,
		State:       state,
		Fingerprint: xxhash.Sum64(state.Hist),
	})
	r.lastCkOut = r.outTotal
}
