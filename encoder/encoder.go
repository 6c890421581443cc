package encoder

import "time"

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// Encoder turns blocks of mono PCM16 into an upload-ready byte stream.
type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
}

// EncodeAll runs samples through enc in BlockSize pieces and closes it.
func EncodeAll(enc Encoder, samples []int16) ([]byte, error) {
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		start := time.Now()
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return nil, err
		}
		enc.AddEncodeTime(time.Since(start))
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}
