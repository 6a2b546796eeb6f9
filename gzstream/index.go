package gzstream

import (
	"encoding/json"
	"fmt"

	"github.com/cryoden/densitystream/gzstream/internal/deflate"
)

// Checkpoint is a resumption point inside a member's decoded output: Out
// bytes of plaintext had been produced when it was taken, State captures
// enough decoder state (window + bit position) to resume from exactly
// there, and Fingerprint is an xxhash of the saved window so a cache keyed
// on it can recognize two checkpoints with identical history without
// comparing the window bytes directly. This generalizes gsip's per-member
// flate.Checkpoint list into something JSON-portable and cache-keyable.
type Checkpoint struct {
	Out         int64           `json:"out"`
	Fingerprint uint64          `json:"fp"`
	State       deflate.Checkpoint `json:"state"`
}

// Index is the persisted set of checkpoints for one GZIP member, the
// generalization of gsip.Index for an arbitrary GZIP member decoded from
// any chunk source, indexed for random access by decoded-byte offset.
type Index struct {
	Header      *Header       `json:"header"`
	Checkpoints []*Checkpoint `json:"checkpoints"`
}

// Encode serializes the index as JSON, mirroring gsip.Index.Encode.
func (idx *Index) Encode() ([]byte, error) {
	b, err := json.Marshal(idx)
	if err != nil {
		return nil, fmt.Errorf("gzstream: encode index: %w", err)
	}
	return b, nil
}

// DecodeIndex parses an Index previously produced by Encode, mirroring
// gsip.DecodeIndex.
func DecodeIndex(b []byte) (*Index, error) {
	var idx Index
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, fmt.Errorf("gzstream: decode index: %w", err)
	}
	return &idx, nil
}

// Nearest returns the latest checkpoint at or before the requested decoded
// offset, or nil if none qualifies (the caller should start from the
// member's header in that case). This is the lookup gsip's acquireReader
// performs over its Index.Checkpoints before falling back to NewReader.
func (idx *Index) Nearest(offset int64) *Checkpoint {
	var best *Checkpoint
	for _, ck := range idx.Checkpoints {
		if ck.Out <= offset && (best == nil || ck.Out > best.Out) {
			best = ck
		}
	}
	return best
}
