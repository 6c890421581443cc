//go:build !opus

package audio

import "fmt"

func decodeOpus([]byte) (PCM, error) {
	return PCM{}, fmt.Errorf("ogg/opus (build with -tags opus): %w", ErrUnsupportedFormat)
}
