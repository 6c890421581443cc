package audio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vox/encoder"
)

func sine(n, rate int, freq float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(math.Sin(2*math.Pi*freq*float64(i)/float64(rate)) * 12000)
	}
	return out
}

func TestDecodeWAV(t *testing.T) {
	in := PCM{Samples: sine(8000, 8000, 440), SampleRate: 8000}
	got, err := DecodeBytes(EncodeWAV(in))
	if err != nil {
		t.Fatal(err)
	}
	if got.SampleRate != 8000 || len(got.Samples) != 8000 {
		t.Fatalf("got %d samples at %d Hz", len(got.Samples), got.SampleRate)
	}
	for i := range in.Samples {
		if got.Samples[i] != in.Samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, got.Samples[i], in.Samples[i])
		}
	}
	if got.Duration() != time.Second {
		t.Errorf("duration = %v, want 1s", got.Duration())
	}
}

func TestDecodeWAVStereoDownmix(t *testing.T) {
	wav := EncodeWAV(PCM{Samples: []int16{100, 300, -50, -150}, SampleRate: 8000})
	// Patch the header to two channels.
	wav[22] = 2
	got, err := DecodeBytes(wav)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Samples) != 2 || got.Samples[0] != 200 || got.Samples[1] != -100 {
		t.Errorf("downmix = %v, want [200 -100]", got.Samples)
	}
}

func TestDecodeFLAC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msg.flac")
	in := sine(encoder.SampleRate/2, encoder.SampleRate, 300)
	if err := encoder.WriteFlacFile(path, in, encoder.SampleRate); err != nil {
		t.Fatal(err)
	}
	got, err := Decode(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.SampleRate != encoder.SampleRate {
		t.Errorf("rate = %d", got.SampleRate)
	}
	if len(got.Samples) != len(in) {
		t.Fatalf("got %d samples, want %d", len(got.Samples), len(in))
	}
	if got.Samples[100] != in[100] {
		t.Errorf("sample 100 = %d, want %d (flac is lossless)", got.Samples[100], in[100])
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"garbage", []byte("not audio at all"), ErrUnsupportedFormat},
		{"empty", nil, ErrUnsupportedFormat},
		{"no samples", EncodeWAV(PCM{SampleRate: 16000}), ErrNoAudio},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBytes(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeTruncatedFLAC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msg.flac")
	if err := encoder.WriteFlacFile(path, sine(16000, 16000, 300), 16000); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeBytes(data[:20]); err == nil {
		t.Error("expected error for truncated flac")
	}
}

func TestResample(t *testing.T) {
	in := PCM{Samples: sine(48000, 48000, 200), SampleRate: 48000}
	out := Resample(in, 16000)
	if out.SampleRate != 16000 || len(out.Samples) != 16000 {
		t.Fatalf("got %d samples at %d Hz", len(out.Samples), out.SampleRate)
	}
	if out.Samples[30] != in.Samples[90] {
		t.Errorf("sample 30 = %d, want %d", out.Samples[30], in.Samples[90])
	}
	same := Resample(out, 16000)
	if len(same.Samples) != len(out.Samples) {
		t.Error("resample to the same rate changed length")
	}
}
