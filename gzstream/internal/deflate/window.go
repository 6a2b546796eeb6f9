package deflate

// window is the 32 KiB sliding window LZ77 back-references are served from.
// It also accumulates the bytes produced by the current call to Inflate so
// they can be returned to the caller. Its ring-buffer shape mirrors the
// "hist ring buffer with wrPos/rdPos/full" fields carried in
// sgzip/internal/flate.Checkpoint, generalized into its own type instead of
// being inlined fields on the decompressor.
type window struct {
	hist []byte // ring buffer, length WindowSize once primed
	pos  int    // next write position
	full bool   // true once hist has wrapped at least once

	out []byte // bytes produced since the last drain, in order
}

func newWindow() *window {
	return &window{hist: make([]byte, WindowSize)}
}

func (w *window) writeByte(b byte) {
	w.hist[w.pos] = b
	w.pos++
	if w.pos == len(w.hist) {
		w.pos = 0
		w.full = true
	}
	w.out = append(w.out, b)
}

// writeCopy performs an LZ77 back-reference copy of length bytes from
// distance bytes back in the window, byte by byte so that distance < length
// (run-length extension, distance < length) reproduces correctly: each
// copied byte immediately becomes available as a source for the next one.
func (w *window) writeCopy(distance, length int) {
	for i := 0; i < length; i++ {
		srcPos := w.pos - distance
		if srcPos < 0 {
			srcPos += len(w.hist)
		}
		w.writeByte(w.hist[srcPos])
	}
}

// histSize reports how many bytes of history are currently available to
// back-reference against.
func (w *window) histSize() int {
	if w.full {
		return len(w.hist)
	}
	return w.pos
}

// drain returns and clears the bytes accumulated since the last drain.
func (w *window) drain() []byte {
	out := w.out
	w.out = nil
	return out
}

// snapshot captures the ring buffer contents in Checkpoint-style
// representation: the raw history bytes in ring order plus
// the write cursor and fullness flag, so it can be restored exactly.
type windowSnapshot struct {
	hist []byte
	pos  int
	full bool
}

func (w *window) save() windowSnapshot {
	hist := make([]byte, len(w.hist))
	copy(hist, w.hist)
	return windowSnapshot{hist: hist, pos: w.pos, full: w.full}
}

func (w *window) restore(s windowSnapshot) {
	w.hist = make([]byte, len(s.hist))
	copy(w.hist, s.hist)
	w.pos = s.pos
	w.full = s.full
	w.out = nil
}
