package ccp4

import (
	"encoding/binary"
	"math"
)

const (
	headerSize = 1024
	wordSize   = 4
	magicWord  = 0x2050414D // "MAP " read little-endian at word 52

	modeInt8    = 0
	modeFloat32 = 2
)

// Header holds the decoded fields of a CCP4/MRC 1024-byte map header
// (words 0..255, little-endian). Field names follow the word table: NC/NR/NS
// are the stored grid dimensions, MAPC/MAPR/MAPS the axis permutation.
type Header struct {
	NC, NR, NS          int32
	Mode                int32
	NCStart, NRStart, NSStart int32
	MX, MY, MZ          int32
	CellA, CellB, CellC float32
	Alpha, Beta, Gamma  float32
	MapC, MapR, MapS    int32
	AMin, AMax, AMean   float32
	SpaceGroupNumber    int32
	NSymBT              int32
	LSKFLG              int32
	Skew                *SkewTransform
	ARMS                float32
}

// SkewTransform holds the optional skew matrix/translation (words 25..36),
// parsed but never applied: callers needing orthogonalised coordinates
// apply it downstream (see Header.Skew).
type SkewTransform struct {
	Matrix      [9]float32 // row-major 3x3
	Translation [3]float32
}

func bytesPerVoxel(mode int32) (int, error) {
	switch mode {
	case modeInt8:
		return 1, nil
	case modeFloat32:
		return 4, nil
	default:
		return 0, &UnsupportedModeError{Mode: mode}
	}
}

func word(buf []byte, i int) uint32 {
	return binary.LittleEndian.Uint32(buf[i*wordSize : i*wordSize+wordSize])
}

func wordI32(buf []byte, i int) int32 {
	return int32(word(buf, i))
}

func wordF32(buf []byte, i int) float32 {
	return math.Float32frombits(word(buf, i))
}

// parseHeader decodes a 1024-byte CCP4 header, validating the magic
// identifier, the storage mode, and NSYMBT's word alignment. It does not
// validate the overall payload size invariant: that requires knowing the
// voxel and symmetry-record bytes actually present, checked once the
// stream has been fully consumed (see Reader.Next).
func parseHeader(buf []byte) (*Header, error) {
	if len(buf) != headerSize {
		panic("ccp4: parseHeader requires exactly 1024 bytes")
	}

	got := word(buf, 52)
	if got != magicWord {
		return nil, &BadMagicError{Got: got}
	}

	mode := wordI32(buf, 3)
	if _, err := bytesPerVoxel(mode); err != nil {
		return nil, err
	}

	nsymbt := wordI32(buf, 23)
	if nsymbt < 0 || nsymbt%4 != 0 {
		return nil, &SymmetryMisalignmentError{NSYMBT: nsymbt}
	}

	h := &Header{
		NC: wordI32(buf, 0), NR: wordI32(buf, 1), NS: wordI32(buf, 2),
		Mode:    mode,
		NCStart: wordI32(buf, 4), NRStart: wordI32(buf, 5), NSStart: wordI32(buf, 6),
		MX: wordI32(buf, 7), MY: wordI32(buf, 8), MZ: wordI32(buf, 9),
		CellA: wordF32(buf, 10), CellB: wordF32(buf, 11), CellC: wordF32(buf, 12),
		Alpha: wordF32(buf, 13), Beta: wordF32(buf, 14), Gamma: wordF32(buf, 15),
		MapC: wordI32(buf, 16), MapR: wordI32(buf, 17), MapS: wordI32(buf, 18),
		AMin: wordF32(buf, 19), AMax: wordF32(buf, 20), AMean: wordF32(buf, 21),
		SpaceGroupNumber: wordI32(buf, 22),
		NSymBT:           nsymbt,
		LSKFLG:           wordI32(buf, 24),
		ARMS:             wordF32(buf, 54),
	}

	if h.LSKFLG != 0 {
		skew := &SkewTransform{}
		for i := 0; i < 9; i++ {
			skew.Matrix[i] = wordF32(buf, 25+i)
		}
		for i := 0; i < 3; i++ {
			skew.Translation[i] = wordF32(buf, 34+i)
		}
		h.Skew = skew
	}

	return h, nil
}

// expectedTotalSize computes 1024 + NSYMBT + bytesPerVoxel*NC*NR*NS, the
// size invariant every accepted header must satisfy exactly.
func (h *Header) expectedTotalSize() int64 {
	bpv, err := bytesPerVoxel(h.Mode)
	if err != nil {
		panic(err) // unreachable: parseHeader already validated Mode
	}
	voxels := int64(h.NC) * int64(h.NR) * int64(h.NS)
	return int64(headerSize) + int64(h.NSymBT) + int64(bpv)*voxels
}

func (h *Header) voxelCount() int64 {
	return int64(h.NC) * int64(h.NR) * int64(h.NS)
}
