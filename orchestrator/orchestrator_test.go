package orchestrator

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// buildSyntheticMap assembles a minimal valid CCP4 payload (header plus
// NC*NR*NS mode-2 voxels, all set to value) with no symmetry records.
func buildSyntheticMap(t *testing.T, nc, nr, ns int32, value float32) []byte {
	t.Helper()
	buf := make([]byte, 1024)
	put := func(i int, v int32) { binary.LittleEndian.PutUint32(buf[i*4:i*4+4], uint32(v)) }
	putF := func(i int, v float32) { binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v)) }

	put(0, nc)
	put(1, nr)
	put(2, ns)
	put(3, 2) // mode 2
	put(7, nc)
	put(8, nr)
	put(9, ns)
	putF(10, 1)
	putF(11, 1)
	putF(12, 1)
	putF(13, 90)
	putF(14, 90)
	putF(15, 90)
	put(16, 1)
	put(17, 2)
	put(18, 3)
	putF(19, value)
	putF(20, value)
	putF(21, value)
	put(22, 1)
	binary.LittleEndian.PutUint32(buf[52*4:52*4+4], 0x2050414D)

	n := int(nc) * int(nr) * int(ns)
	voxels := make([]byte, n*4)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(voxels[i*4:i*4+4], math.Float32bits(value))
	}
	return append(buf, voxels...)
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var out bytes.Buffer
	w := gzip.NewWriter(&out)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return out.Bytes()
}

func TestRunOverHTTP(t *testing.T) {
	plain := buildSyntheticMap(t, 4, 4, 4, 3.5)
	compressed := gzipBytes(t, plain)

	mux := http.NewServeMux()
	mux.HandleFunc("/map.gz", func(w http.ResponseWriter, req *http.Request) {
		http.ServeContent(w, req, "map.gz", time.Time{}, bytes.NewReader(compressed))
	})
	s := httptest.NewServer(mux)
	defer s.Close()

	ctx := context.Background()
	producer := NewHTTPProducer(ctx, s.URL+"/map.gz", s.Client().Transport, 17)

	cache := NewCache()
	m, err := Run(ctx, producer, Options{Checkpoints: cache})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.Size != [3]int32{4, 4, 4} {
		t.Fatalf("Size = %v, want (4,4,4)", m.Size)
	}
	if len(m.Data) != 64 {
		t.Fatalf("len(Data) = %d, want 64", len(m.Data))
	}
	for i, v := range m.Data {
		if v != 3.5 {
			t.Fatalf("Data[%d] = %v, want 3.5", i, v)
		}
	}
}

func TestRunOverMmap(t *testing.T) {
	plain := buildSyntheticMap(t, 2, 2, 2, -1.25)
	compressed := gzipBytes(t, plain)

	dir := t.TempDir()
	path := filepath.Join(dir, "density.map.gz")
	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	producer, err := NewMmapProducer(path, 23)
	if err != nil {
		t.Fatalf("NewMmapProducer: %v", err)
	}
	defer producer.Close()

	m, err := Run(context.Background(), producer, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(m.Data) != 8 {
		t.Fatalf("len(Data) = %d, want 8", len(m.Data))
	}
	for i, v := range m.Data {
		if v != -1.25 {
			t.Fatalf("Data[%d] = %v, want -1.25", i, v)
		}
	}
}

func TestRunPropagatesHeaderError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.gz")
	if err := os.WriteFile(path, []byte("not a gzip member"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	producer, err := NewMmapProducer(path, 8)
	if err != nil {
		t.Fatalf("NewMmapProducer: %v", err)
	}
	defer producer.Close()

	_, err = Run(context.Background(), producer, Options{})
	if err == nil {
		t.Fatal("expected an error decoding a non-gzip file")
	}
}
