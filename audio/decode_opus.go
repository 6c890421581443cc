//go:build opus

package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/hraban/opus"
)

// opusRate is the rate libopusfile always decodes to.
const opusRate = 48000

// decodeOpus assumes a mono stream, which is what voice messages are
// recorded as.
func decodeOpus(data []byte) (PCM, error) {
	s, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return PCM{}, fmt.Errorf("opus: %w", err)
	}
	defer s.Close()

	var samples []int16
	buf := make([]int16, 5760)
	for {
		n, err := s.Read(buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return PCM{}, fmt.Errorf("opus read: %w", err)
		}
		samples = append(samples, buf[:n]...)
	}
	return PCM{Samples: samples, SampleRate: opusRate}, nil
}
