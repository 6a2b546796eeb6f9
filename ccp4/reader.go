package ccp4

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/cryoden/densitystream/chunkbuf"
)

const symmetryRecordSize = 80

// ReadOptions configures a Reader.
type ReadOptions struct {
	// ExpandSymmetry requests tiling the asymmetric unit across the full
	// unit cell using the parsed symmetry operators. Not implemented: set
	// true together with a header carrying NSYMBT > 0 and Next returns
	// SymmetryExpansionUnsupportedError.
	ExpandSymmetry bool
}

// DensityMap is a fully decoded CCP4/MRC map: a dense float32 grid plus its
// crystallographic metadata.
type DensityMap struct {
	Size      [3]int32 // nx, ny, nz
	Start     [3]int32 // nxstart, nystart, nzstart
	Intervals [3]int32 // mx, my, mz
	Axes      [3]int32 // mapc, mapr, maps

	CellSize [3]float32 // a, b, c (Å)
	Angles   [3]float32 // alpha, beta, gamma (degrees)

	AMin, AMax, AMean, ARMS float32
	SpaceGroupNumber        int32

	Data []float32 // row-major, stored axis order, fastest-varying is x

	SymmetryOps []SymmetryOp
	Skew        *SkewTransform
}

type readerState int

const (
	stateHeader readerState = iota
	stateSymmetry
	stateVoxels
	stateVerifyEnd
	stateDone
)

// Reader decodes one CCP4/MRC map from a decoded byte stream (normally fed
// by a gzstream.Reader's output).
type Reader struct {
	cb    *chunkbuf.Buffer
	opts  ReadOptions
	state readerState

	header *Header

	symBytesRead int32
	voxelsRead   int64
	bpv          int

	result *DensityMap
}

// NewReader returns a Reader that will parse a fresh CCP4 header from cb.
func NewReader(cb *chunkbuf.Buffer, opts ReadOptions) *Reader {
	return &Reader{cb: cb, opts: opts}
}

// Result returns the decoded DensityMap once Next has reported done=true.
func (r *Reader) Result() *DensityMap {
	return r.result
}

// Next drives the decoder as far as currently buffered input allows.
//
//   - err == nil, done == false: more input is needed; append to the
//     ChunkBuffer and call Next again.
//   - err == nil, done == true: Result returns the fully populated map.
//   - err != nil: fatal.
func (r *Reader) Next() (done bool, err error) {
	for {
		switch r.state {
		case stateHeader:
			raw, err := r.cb.TryTake(headerSize)
			if err != nil {
				if err == chunkbuf.ErrNeedMore {
					return false, nil
				}
				return false, err
			}
			hdr, err := parseHeader(raw)
			if err != nil {
				return false, err
			}
			r.cb.Advance(headerSize)
			r.header = hdr
			r.bpv, _ = bytesPerVoxel(hdr.Mode) // validated already by parseHeader

			r.result = &DensityMap{
				Size:             [3]int32{hdr.NC, hdr.NR, hdr.NS},
				Start:            [3]int32{hdr.NCStart, hdr.NRStart, hdr.NSStart},
				Intervals:        [3]int32{hdr.MX, hdr.MY, hdr.MZ},
				Axes:             [3]int32{hdr.MapC, hdr.MapR, hdr.MapS},
				CellSize:         [3]float32{hdr.CellA, hdr.CellB, hdr.CellC},
				Angles:           [3]float32{hdr.Alpha, hdr.Beta, hdr.Gamma},
				AMin:             hdr.AMin,
				AMax:             hdr.AMax,
				AMean:            hdr.AMean,
				ARMS:             hdr.ARMS,
				SpaceGroupNumber: hdr.SpaceGroupNumber,
				Skew:             hdr.Skew,
				Data:             make([]float32, 0, hdr.voxelCount()),
			}

			if r.opts.ExpandSymmetry && hdr.NSymBT > 0 {
				return false, &SymmetryExpansionUnsupportedError{}
			}

			if hdr.NSymBT == 0 {
				r.state = stateVoxels
			} else {
				r.state = stateSymmetry
			}

		case stateSymmetry:
			remaining := r.header.NSymBT - r.symBytesRead
			if remaining == 0 {
				r.state = stateVoxels
				continue
			}

			// A final stretch shorter than one record can't be a symmetry
			// operator (every real record is 80 bytes); consume it without
			// parsing rather than waiting forever for 80 bytes that will
			// never arrive.
			if remaining < symmetryRecordSize {
				if _, err := r.cb.TryTake(int(remaining)); err != nil {
					if err == chunkbuf.ErrNeedMore {
						return false, nil
					}
					return false, err
				}
				r.cb.Advance(int(remaining))
				r.symBytesRead += remaining
				continue
			}

			avail := r.cb.Available()
			// Only consume whole symmetry records at a time; a record that
			// straddles the currently-buffered prefix is deferred to the
			// next call instead of being parsed from a partial copy.
			take := int32(len(avail))
			if take > remaining {
				take = remaining
			}
			take -= take % symmetryRecordSize
			if take == 0 {
				if r.cb.Closed() {
					return false, io.ErrUnexpectedEOF
				}
				return false, nil
			}

			for off := int32(0); off < take; off += symmetryRecordSize {
				record := string(avail[off : off+symmetryRecordSize])
				op, err := ParseSymmetryOperator(record)
				if err != nil {
					return false, err
				}
				r.result.SymmetryOps = append(r.result.SymmetryOps, op)
			}
			r.cb.Advance(int(take))
			r.symBytesRead += take

		case stateVoxels:
			total := r.header.voxelCount()
			remaining := total - r.voxelsRead
			if remaining == 0 {
				r.state = stateVerifyEnd
				continue
			}

			avail := r.cb.Available()
			maxVoxels := int64(len(avail) / r.bpv)
			if maxVoxels == 0 {
				if r.cb.Closed() {
					return false, io.ErrUnexpectedEOF
				}
				return false, nil
			}
			if maxVoxels > remaining {
				maxVoxels = remaining
			}

			for i := int64(0); i < maxVoxels; i++ {
				off := int(i) * r.bpv
				r.result.Data = append(r.result.Data, decodeVoxel(avail[off:off+r.bpv], r.header.Mode))
			}
			consumed := int(maxVoxels) * r.bpv
			r.cb.Advance(consumed)
			r.voxelsRead += maxVoxels

		case stateVerifyEnd:
			_, err := r.cb.TryTake(1)
			switch err {
			case nil:
				return false, &SizeMismatchError{
					Want: r.header.expectedTotalSize(),
					Got:  -1, // exact trailing length unknown without consuming the rest
				}
			case chunkbuf.ErrNeedMore:
				return false, nil
			case io.ErrUnexpectedEOF:
				r.state = stateDone
			default:
				return false, err
			}

		case stateDone:
			return true, nil
		}
	}
}

func decodeVoxel(raw []byte, mode int32) float32 {
	switch mode {
	case modeInt8:
		return float32(int8(raw[0]))
	case modeFloat32:
		return math.Float32frombits(binary.LittleEndian.Uint32(raw))
	default:
		panic("ccp4: decodeVoxel called with unsupported mode")
	}
}
