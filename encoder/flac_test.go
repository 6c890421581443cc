package encoder

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func sine(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(math.Sin(2*math.Pi*440*float64(i)/SampleRate) * 8000)
	}
	return out
}

func TestFlacEncoder(t *testing.T) {
	samples := sine(SampleRate)

	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	flacData, err := EncodeAll(enc, samples)
	if err != nil {
		t.Fatalf("EncodeAll: %v", err)
	}

	if enc.TotalFrames() != uint64(len(samples)) {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), len(samples))
	}
	if len(flacData) < 4 || string(flacData[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
}

func TestFlacEncoderEmpty(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close on empty encoder: %v", err)
	}
	if enc.TotalFrames() != 0 {
		t.Errorf("TotalFrames = %d, want 0", enc.TotalFrames())
	}
	if len(enc.Bytes()) == 0 {
		t.Error("expected non-empty FLAC output (at least header)")
	}
}

func TestFlacEncoderPartialBlock(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}

	partial := make([]int16, BlockSize/4)
	for i := range partial {
		partial[i] = int16(i % 1000)
	}

	if err := enc.EncodeBlock(partial); err != nil {
		t.Fatalf("EncodeBlock partial: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if enc.TotalFrames() != uint64(len(partial)) {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), len(partial))
	}
}

func TestWriteFlacFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunk.flac")
	if err := WriteFlacFile(path, sine(BlockSize*2+10), SampleRate); err != nil {
		t.Fatalf("WriteFlacFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data[:4]) != "fLaC" {
		t.Errorf("missing FLAC magic in %s", path)
	}
}
