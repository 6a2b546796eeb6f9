package deflate

import (
	"io"
	"sync"

	"github.com/cryoden/densitystream/bitio"
	"github.com/cryoden/densitystream/chunkbuf"
	"github.com/cryoden/densitystream/gzstream/internal/huffman"
)

var (
	fixedTablesOnce sync.Once
	fixedLitTable   *huffman.Table
	fixedDistTable  *huffman.Table
)

// initFixedTables builds the RFC 1951 §3.2.6 fixed Huffman tables once,
// mirroring sgzip/internal/flate's fixedHuffmanDecoderInit/sync.Once pattern.
func initFixedTables() {
	fixedTablesOnce.Do(func() {
		lit, err := huffman.Build(fixedLitLengths())
		if err != nil {
			panic("deflate: fixed literal table: " + err.Error())
		}
		dist, err := huffman.Build(fixedDistLengths())
		if err != nil {
			panic("deflate: fixed distance table: " + err.Error())
		}
		fixedLitTable, fixedDistTable = lit, dist
	})
}

// Decompressor is a resumable RFC 1951 inflator. Call Inflate repeatedly:
// each call decodes as many complete blocks as the ChunkBuffer currently
// allows, returning done=false once it would have to block, or done=true
// once the final block has been consumed.
type Decompressor struct {
	cb *chunkbuf.Buffer
	br *bitio.Reader
	w  *window

	final bool
}

// NewDecompressor returns a Decompressor reading from cb.
func NewDecompressor(cb *chunkbuf.Buffer) *Decompressor {
	initFixedTables()
	return &Decompressor{cb: cb, br: bitio.New(cb), w: newWindow()}
}

// Final reports whether the final block has already been consumed.
func (d *Decompressor) Final() bool {
	return d.final
}

type blockSnapshot struct {
	cbToken int
	bit     bitio.Snapshot
	win     windowSnapshot
	pending []byte
}

func (d *Decompressor) snapshot() blockSnapshot {
	pending := make([]byte, len(d.w.out))
	copy(pending, d.w.out)
	return blockSnapshot{
		cbToken: d.cb.Checkpoint(),
		bit:     d.br.Save(),
		win:     d.w.save(),
		pending: pending,
	}
}

func (d *Decompressor) restore(s blockSnapshot) {
	d.cb.Restore(s.cbToken)
	d.br.Restore(s.bit)
	d.w.restore(s.win)
	d.w.out = append([]byte(nil), s.pending...)
}

// InflateBlock decodes exactly one DEFLATE block: the unit suspension
// snapshots around, and the unit Checkpoint/Resume operate on.
//
//   - err == nil, done == false: one block was decoded; data holds its
//     output (which may be empty, e.g. an empty stored block).
//   - err == nil, done == true: the final block was decoded; data is its
//     (possibly empty) output.
//   - err == chunkbuf.ErrNeedMore: the block couldn't be finished with
//     currently-buffered input. The decoder is left exactly as it was
//     before the call (nothing consumed, nothing emitted) so the caller can
//     feed more bytes and call InflateBlock again to redecode the whole
//     block.
//   - any other err: fatal, malformed input.
func (d *Decompressor) InflateBlock() (data []byte, done bool, err error) {
	if d.final {
		return nil, true, nil
	}

	snap := d.snapshot()
	if err := d.decodeBlock(); err != nil {
		if err == chunkbuf.ErrNeedMore {
			d.restore(snap)
			return nil, false, chunkbuf.ErrNeedMore
		}
		return nil, false, err
	}

	return d.w.drain(), d.final, nil
}

// Inflate decodes as many whole DEFLATE blocks as currently available,
// looping over InflateBlock.
//
//   - err == nil, done == false: all currently-buffered input has been
//     consumed up to (but not including) a block the decoder couldn't yet
//     finish; data holds everything decoded from completed blocks so far.
//     Feed more bytes to the ChunkBuffer and call Inflate again.
//   - err == nil, done == true: the final block has been decoded; data is
//     final.
//   - err != nil: fatal. Truncation surfaces as io.ErrUnexpectedEOF
//     (wrapping through chunkbuf); anything else is malformed input.
func (d *Decompressor) Inflate() (data []byte, done bool, err error) {
	var out []byte
	for {
		block, done, err := d.InflateBlock()
		if err != nil {
			if err == chunkbuf.ErrNeedMore {
				return out, false, nil
			}
			return out, false, err
		}
		out = append(out, block...)
		if done {
			return out, true, nil
		}
	}
}

// Checkpoint captures the decoder's state at a block boundary (i.e.
// immediately after InflateBlock returns successfully), in the same shape
// as sgzip/internal/flate.Checkpoint (Hist/WrPos/RdPos/Full/B/NB), so it can
// be persisted and later resumed with Resume.
type Checkpoint struct {
	Hist  []byte       `json:"hist,omitempty"`
	WrPos int          `json:"wrpos,omitempty"`
	Full  bool         `json:"full,omitempty"`
	Bit   bitio.Snapshot `json:"bit"`
	Final bool         `json:"final,omitempty"`
}

// Checkpoint snapshots the current state for later Resume. Only meaningful
// at a block boundary, i.e. right after InflateBlock returns err == nil.
func (d *Decompressor) Checkpoint() Checkpoint {
	ws := d.w.save()
	return Checkpoint{
		Hist:  ws.hist,
		WrPos: ws.pos,
		Full:  ws.full,
		Bit:   d.br.Save(),
		Final: d.final,
	}
}

// Resume reconstructs a Decompressor from a Checkpoint, reading further
// input from cb (a ChunkBuffer positioned at the byte offset the checkpoint
// was taken at).
func Resume(cb *chunkbuf.Buffer, c Checkpoint) *Decompressor {
	initFixedTables()
	d := &Decompressor{cb: cb, br: bitio.New(cb), w: newWindow(), final: c.Final}
	d.w.restore(windowSnapshot{hist: c.Hist, pos: c.WrPos, full: c.Full})
	d.br.Restore(c.Bit)
	return d
}

// decodeBlock decodes exactly one DEFLATE block (RFC 1951 §3.2.3): header,
// then stored/fixed/dynamic payload, writing decoded bytes into d.w.
func (d *Decompressor) decodeBlock() error {
	hdr, err := d.br.Shift(3, true)
	if err != nil {
		return err
	}
	final := hdr&1 == 1
	btype := (hdr >> 1) & 3

	switch btype {
	case 0:
		if err := d.storedBlock(); err != nil {
			return err
		}
	case 1:
		if err := d.huffmanBlock(fixedLitTable, fixedDistTable); err != nil {
			return err
		}
	case 2:
		lit, dist, err := d.readDynamicTables()
		if err != nil {
			return err
		}
		if err := d.huffmanBlock(lit, dist); err != nil {
			return err
		}
	default:
		return &BlockError{Reason: "reserved BTYPE 3"}
	}

	if final {
		d.final = true
		// Whole bytes the bit reader fetched past the end of the final block
		// belong to whatever follows the DEFLATE stream (the GZIP trailer):
		// hand them back to cb and drop the padding bits.
		if k := int(d.br.Len() / 8); k > 0 {
			d.cb.Restore(d.cb.Checkpoint() - k)
		}
		d.br.Reset()
	}
	return nil
}

func (d *Decompressor) storedBlock() error {
	d.br.Reset()

	var lenBytes [4]byte
	for i := range lenBytes {
		b, err := d.br.AlignedByte()
		if err != nil {
			return err
		}
		lenBytes[i] = b
	}

	n := int(lenBytes[0]) | int(lenBytes[1])<<8
	nn := int(lenBytes[2]) | int(lenBytes[3])<<8
	if uint16(nn) != uint16(^n) {
		return &BlockError{Reason: "stored block LEN/NLEN mismatch"}
	}

	for i := 0; i < n; i++ {
		b, err := d.br.AlignedByte()
		if err != nil {
			return err
		}
		d.w.writeByte(b)
	}
	return nil
}

// readDynamicTables reads HLIT/HDIST/HCLEN, the code-length alphabet, and
// the literal/length and distance code lengths (RFC 1951 §3.2.7), then
// builds both Huffman tables.
func (d *Decompressor) readDynamicTables() (lit, dist *huffman.Table, err error) {
	hlit, err := d.br.Shift(5, true)
	if err != nil {
		return nil, nil, err
	}
	nlit := int(hlit) + 257

	hdist, err := d.br.Shift(5, true)
	if err != nil {
		return nil, nil, err
	}
	ndist := int(hdist) + 1

	hclen, err := d.br.Shift(4, true)
	if err != nil {
		return nil, nil, err
	}
	nclen := int(hclen) + 4

	var codegenLens [numCodegenCodes]int
	for i := 0; i < nclen; i++ {
		v, err := d.br.Shift(3, true)
		if err != nil {
			return nil, nil, err
		}
		codegenLens[codeOrder[i]] = int(v)
	}

	codegenTable, err := huffman.Build(codegenLens[:])
	if err != nil {
		return nil, nil, &BlockError{Reason: "code-length table: " + err.Error()}
	}

	total := nlit + ndist
	lens := make([]int, total)
	for i := 0; i < total; {
		sym, err := d.decodeSymbol(codegenTable, "codegen")
		if err != nil {
			return nil, nil, err
		}

		switch {
		case sym < 16:
			lens[i] = int(sym)
			i++
		case sym == 16:
			if i == 0 {
				return nil, nil, &BlockError{Reason: "repeat-previous code at position 0"}
			}
			rep, err := d.br.Shift(2, true)
			if err != nil {
				return nil, nil, err
			}
			n := 3 + int(rep)
			if i+n > total {
				return nil, nil, &BlockError{Reason: "code length repeat overruns table"}
			}
			prev := lens[i-1]
			for j := 0; j < n; j++ {
				lens[i] = prev
				i++
			}
		case sym == 17:
			rep, err := d.br.Shift(3, true)
			if err != nil {
				return nil, nil, err
			}
			n := 3 + int(rep)
			if i+n > total {
				return nil, nil, &BlockError{Reason: "zero-repeat (17) overruns table"}
			}
			i += n
		case sym == 18:
			rep, err := d.br.Shift(7, true)
			if err != nil {
				return nil, nil, err
			}
			n := 11 + int(rep)
			if i+n > total {
				return nil, nil, &BlockError{Reason: "zero-repeat (18) overruns table"}
			}
			i += n
		default:
			return nil, nil, &SymbolError{Table: "codegen", Symbol: int(sym)}
		}
	}

	lit, err = huffman.Build(lens[:nlit])
	if err != nil {
		return nil, nil, &BlockError{Reason: "literal/length table: " + err.Error()}
	}
	dist, err = huffman.Build(lens[nlit:])
	if err != nil {
		return nil, nil, &BlockError{Reason: "distance table: " + err.Error()}
	}
	return lit, dist, nil
}

// decodeSymbol peeks t.MaxCodeLen bits, decodes one symbol, and drops
// exactly the bits that code actually used. At the end of a closed stream
// fewer than t.MaxCodeLen bits may remain; the symbol is then decoded from
// the bits still buffered if its code fits in them.
func (d *Decompressor) decodeSymbol(t *huffman.Table, name string) (uint16, error) {
	n := t.MaxCodeLen
	peeked, err := d.br.Shift(n, false)
	if err == io.ErrUnexpectedEOF {
		n = d.br.Len()
		peeked, _ = d.br.Shift(n, false)
	} else if err != nil {
		return 0, err
	}
	sym, codeLen := t.Decode(peeked)
	if uint(codeLen) > n {
		return 0, err
	}
	if codeLen == 0 {
		return 0, &SymbolError{Table: name, Symbol: int(sym)}
	}
	d.br.Drop(uint(codeLen))
	return sym, nil
}

// huffmanBlock decodes symbols from lit (and, for back-references, dist)
// until the end-of-block marker (RFC 1951 §3.2.3).
func (d *Decompressor) huffmanBlock(lit, dist *huffman.Table) error {
	for {
		sym, err := d.decodeSymbol(lit, "literal/length")
		if err != nil {
			return err
		}

		switch {
		case sym < 256:
			d.w.writeByte(byte(sym))
			continue
		case sym == endBlockMarker:
			return nil
		case int(sym) < endBlockMarker+1+len(lengthBase):
			idx := int(sym) - lengthCodesStart
			length := lengthBase[idx]
			if n := lengthExtra[idx]; n > 0 {
				extra, err := d.br.Shift(n, true)
				if err != nil {
					return err
				}
				length += int(extra)
			}

			dsym, err := d.decodeSymbol(dist, "distance")
			if err != nil {
				return err
			}
			if int(dsym) >= maxNumDist {
				return &SymbolError{Table: "distance", Symbol: int(dsym)}
			}
			distance := distBase[dsym]
			if n := distExtra[dsym]; n > 0 {
				extra, err := d.br.Shift(n, true)
				if err != nil {
					return err
				}
				distance += int(extra)
			}

			if distance > d.w.histSize() {
				return &BlockError{Reason: "back-reference distance exceeds available history"}
			}
			d.w.writeCopy(distance, length)
		default:
			return &SymbolError{Table: "literal/length", Symbol: int(sym)}
		}
	}
}

const lengthCodesStart = 257
