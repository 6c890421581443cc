package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mewkiz/flac"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrNoAudio           = errors.New("no audio samples")
)

// PCM is decoded mono audio.
type PCM struct {
	Samples    []int16
	SampleRate int
}

func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(p.Samples)) * time.Second / time.Duration(p.SampleRate)
}

// Decode reads a WAV, FLAC or Ogg/Opus file and downmixes it to mono.
func Decode(path string) (PCM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PCM{}, err
	}
	return DecodeBytes(data)
}

// DecodeBytes sniffs the container from its magic bytes.
func DecodeBytes(data []byte) (PCM, error) {
	var (
		pcm PCM
		err error
	)
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		pcm, err = decodeWAV(data)
	case len(data) >= 4 && string(data[0:4]) == "fLaC":
		pcm, err = decodeFLAC(data)
	case len(data) >= 4 && string(data[0:4]) == "OggS":
		pcm, err = decodeOpus(data)
	default:
		return PCM{}, ErrUnsupportedFormat
	}
	if err != nil {
		return PCM{}, err
	}
	if len(pcm.Samples) == 0 {
		return PCM{}, ErrNoAudio
	}
	return pcm, nil
}

func decodeWAV(data []byte) (PCM, error) {
	var (
		format     uint16
		channels   int
		sampleRate int
		bits       uint16
		body       []byte
		haveFmt    bool
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		pos += 8
		end := min(pos+size, len(data))
		switch id {
		case "fmt ":
			if end-pos < 16 {
				return PCM{}, fmt.Errorf("wav: short fmt chunk")
			}
			format = binary.LittleEndian.Uint16(data[pos:])
			channels = int(binary.LittleEndian.Uint16(data[pos+2:]))
			sampleRate = int(binary.LittleEndian.Uint32(data[pos+4:]))
			bits = binary.LittleEndian.Uint16(data[pos+14:])
			haveFmt = true
		case "data":
			body = data[pos:end]
		}
		// Chunks are word aligned.
		pos = end + size%2
	}
	if !haveFmt {
		return PCM{}, fmt.Errorf("wav: missing fmt chunk")
	}
	if format != 1 || bits != 16 {
		return PCM{}, fmt.Errorf("wav: format %d/%d-bit: %w", format, bits, ErrUnsupportedFormat)
	}
	if channels < 1 || sampleRate <= 0 {
		return PCM{}, fmt.Errorf("wav: %d channels at %d Hz", channels, sampleRate)
	}

	frames := len(body) / (2 * channels)
	samples := make([]int16, frames)
	for i := range samples {
		var sum int
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * 2
			sum += int(int16(binary.LittleEndian.Uint16(body[off:])))
		}
		samples[i] = int16(sum / channels)
	}
	return PCM{Samples: samples, SampleRate: sampleRate}, nil
}

func decodeFLAC(data []byte) (PCM, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return PCM{}, fmt.Errorf("flac: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	if channels < 1 {
		return PCM{}, fmt.Errorf("flac: no channels")
	}
	shift := int(info.BitsPerSample) - 16

	var samples []int16
	if info.NSamples > 0 {
		samples = make([]int16, 0, info.NSamples)
	}
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return PCM{}, fmt.Errorf("flac frame: %w", err)
		}
		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			var sum int64
			for ch := 0; ch < channels; ch++ {
				sum += int64(frame.Subframes[ch].Samples[i])
			}
			v := sum / int64(channels)
			if shift > 0 {
				v >>= shift
			} else if shift < 0 {
				v <<= -shift
			}
			samples = append(samples, int16(v))
		}
	}
	return PCM{Samples: samples, SampleRate: int(info.SampleRate)}, nil
}

// Resample converts pcm to rate by linear interpolation. Speech-to-text
// providers take 16 kHz, which is all this is used for.
func Resample(pcm PCM, rate int) PCM {
	if pcm.SampleRate == rate || pcm.SampleRate <= 0 || rate <= 0 || len(pcm.Samples) == 0 {
		return pcm
	}
	n := int(int64(len(pcm.Samples)) * int64(rate) / int64(pcm.SampleRate))
	out := make([]int16, n)
	step := float64(pcm.SampleRate) / float64(rate)
	last := len(pcm.Samples) - 1
	for i := range out {
		x := float64(i) * step
		j := int(x)
		if j >= last {
			out[i] = pcm.Samples[last]
			continue
		}
		frac := x - float64(j)
		a, b := float64(pcm.Samples[j]), float64(pcm.Samples[j+1])
		out[i] = int16(a + (b-a)*frac)
	}
	return PCM{Samples: out, SampleRate: rate}
}

// Bytes returns the samples as little-endian PCM16.
func (p PCM) Bytes() []byte {
	out := make([]byte, len(p.Samples)*2)
	for i, s := range p.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// EncodeWAV wraps pcm in a canonical 44-byte RIFF header.
func EncodeWAV(pcm PCM) []byte {
	body := pcm.Bytes()
	buf := make([]byte, 44, 44+len(body))
	copy(buf[0:], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+len(body)))
	copy(buf[8:], "WAVE")
	copy(buf[12:], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], 1)
	binary.LittleEndian.PutUint16(buf[22:], 1)
	binary.LittleEndian.PutUint32(buf[24:], uint32(pcm.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:], uint32(pcm.SampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:], 2)
	binary.LittleEndian.PutUint16(buf[34:], 16)
	copy(buf[36:], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(len(body)))
	return append(buf, body...)
}
