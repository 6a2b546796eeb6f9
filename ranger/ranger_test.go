package ranger

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cryoden/densitystream/chunkbuf"
)

// fixtureServer serves a single in-memory blob with range-request support
// via http.ServeContent, standing in for the remote EMDB archive.
func fixtureServer(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/map.gz", func(w http.ResponseWriter, req *http.Request) {
		http.ServeContent(w, req, "map.gz", time.Time{}, bytes.NewReader(data))
	})
	s := httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func randomBlob(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	if _, err := crand.Read(b); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return b
}

func TestRanger(t *testing.T) {
	data := randomBlob(t, 65536)
	s := fixtureServer(t, data)

	ra := New(context.Background(), s.URL+"/map.gz", s.Client().Transport)
	size := int64(len(data))

	for range 100 {
		start := rand.Int64N(size)
		length := rand.Int64N(size - start)
		if length == 0 {
			continue
		}

		want := data[start : start+length]
		got := make([]byte, length)
		n, err := ra.ReadAt(got, start)
		if err != nil {
			t.Fatalf("ReadAt(%d, %d): %v", start, length, err)
		}
		if int64(n) != length {
			t.Fatalf("ReadAt(%d, %d): got %d bytes", start, length, n)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("ReadAt(%d, %d): content mismatch", start, length)
		}
	}
}

func TestFeed(t *testing.T) {
	data := randomBlob(t, 10_003) // deliberately not a multiple of the chunk size
	s := fixtureServer(t, data)

	ra := New(context.Background(), s.URL+"/map.gz", s.Client().Transport)
	cb := chunkbuf.New()
	if err := ra.Feed(context.Background(), cb, 4096); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if !cb.Closed() {
		t.Fatal("expected Feed to close the buffer once the source is exhausted")
	}
	got, err := cb.TryTake(cb.Len())
	if err != nil {
		t.Fatalf("TryTake: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("fed %d bytes, want %d matching the source", len(got), len(data))
	}
}
