package waveform

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
)

// Envelope reduces pcm to n RMS buckets scaled so the loudest bucket is 1.
func Envelope(pcm []int16, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	if len(pcm) == 0 {
		return out
	}

	var peak float64
	for i := 0; i < n; i++ {
		start := i * len(pcm) / n
		end := (i + 1) * len(pcm) / n
		if end <= start {
			end = min(start+1, len(pcm))
		}
		var sumSquares float64
		for _, s := range pcm[start:end] {
			v := float64(s) / 32768.0
			sumSquares += v * v
		}
		rms := math.Sqrt(sumSquares / float64(end-start))
		out[i] = rms
		peak = max(peak, rms)
	}
	if peak == 0 {
		return out
	}
	for i := range out {
		out[i] /= peak
	}
	return out
}

// Digest identifies a piece of audio for cache keys.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}
