package orchestrator

import (
	"context"
	"errors"
	"io"
	"net/http"

	"golang.org/x/exp/mmap"

	"github.com/cryoden/densitystream/ranger"
)

// HTTPProducer fetches sequential byte ranges of a remote .map.gz over
// HTTP, via ranger.Reader, and feeds them to the decode loop's channel.
type HTTPProducer struct {
	reader    *ranger.Reader
	chunkSize int64
}

// NewHTTPProducer returns a Producer reading uri in chunkSize-byte windows.
func NewHTTPProducer(ctx context.Context, uri string, rt http.RoundTripper, chunkSize int64) *HTTPProducer {
	return &HTTPProducer{reader: ranger.New(ctx, uri, rt), chunkSize: chunkSize}
}

func (p *HTTPProducer) Produce(ctx context.Context, out chan<- []byte) error {
	defer close(out)

	var off int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		buf := make([]byte, p.chunkSize)
		n, err := p.reader.ReadAt(buf, off)
		if n > 0 {
			chunk := buf[:n]
			select {
			case out <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
			off += int64(n)
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
			return nil
		default:
			return err
		}
	}
}

// MmapProducer reads sequential windows of a local file via a memory-mapped
// ReaderAt, for the case where the .map.gz has already been downloaded (or
// is served from a local cache directory, see the catalog package).
type MmapProducer struct {
	ra        *mmap.ReaderAt
	chunkSize int64
}

// NewMmapProducer memory-maps path for sequential chunkSize-byte reads.
func NewMmapProducer(path string, chunkSize int64) (*MmapProducer, error) {
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	return &MmapProducer{ra: ra, chunkSize: chunkSize}, nil
}

// Close releases the underlying memory mapping.
func (p *MmapProducer) Close() error {
	return p.ra.Close()
}

func (p *MmapProducer) Produce(ctx context.Context, out chan<- []byte) error {
	defer close(out)

	size := int64(p.ra.Len())
	var off int64
	for off < size {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n := p.chunkSize
		if off+n > size {
			n = size - off
		}

		buf := make([]byte, n)
		if _, err := p.ra.ReadAt(buf, off); err != nil && err != io.EOF {
			return err
		}

		select {
		case out <- buf:
		case <-ctx.Done():
			return ctx.Err()
		}
		off += n
	}
	return nil
}
