// Package waveform holds the amplitude envelope drawn behind a voice message.
package waveform

import "math"

// DefaultSpacing is the widget width consumed by one bar plus its gap.
const DefaultSpacing = 4.0

// Buffer is an immutable run of normalized amplitudes. A new Buffer replaces
// the old one on every update; nothing mutates a Buffer after construction.
type Buffer struct {
	samples []float64
}

// NewBuffer copies samples, clamping each to [0,1].
func NewBuffer(samples []float64) Buffer {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = clamp01(s)
	}
	return Buffer{samples: out}
}

func (b Buffer) Len() int { return len(b.samples) }

func (b Buffer) At(i int) float64 { return b.samples[i] }

// Samples returns a copy of the amplitudes.
func (b Buffer) Samples() []float64 {
	out := make([]float64, len(b.samples))
	copy(out, b.samples)
	return out
}

// RequiredSamples is the number of bars a widget of the given width can draw.
func RequiredSamples(width, spacing float64) int {
	if spacing <= 0 {
		spacing = DefaultSpacing
	}
	if width <= 0 || math.IsNaN(width) || math.IsInf(width, 0) {
		return 0
	}
	return int(math.Floor(width / spacing))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
