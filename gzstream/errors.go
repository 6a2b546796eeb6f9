// Package gzstream implements the RFC 1952 GZIP member framer: it parses
// the member header, hands the compressed payload to an
// internal/deflate.Decompressor, and verifies the CRC32 + ISIZE trailer.
// It generalizes gsip.Reader/gsip.Index (a seekable gzip reader built from
// flate checkpoints, serving ReadAt over HTTP range requests) into driving
// a chunkbuf.Buffer fed by any producer.
package gzstream

import "fmt"

// HeaderError reports a malformed GZIP member header: bad signature,
// unsupported compression method, or (not produced by this package but
// reserved for callers) any other framing problem.
type HeaderError struct {
	Reason string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("gzstream: %s", e.Reason)
}

// TrailerError reports a CRC32 or ISIZE mismatch between the trailer and
// the decoded stream.
type TrailerError struct {
	Reason string
}

func (e *TrailerError) Error() string {
	return fmt.Sprintf("gzstream: trailer: %s", e.Reason)
}
