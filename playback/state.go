package playback

import (
	"fmt"
	"math"
	"time"

	"vox/waveform"
)

// PlaceholderLabel is shown instead of an elapsed time while audio loads.
const PlaceholderLabel = "--:--"

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhasePlaying
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhasePlaying:
		return "playing"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State is an immutable snapshot of one voice message widget. Only the
// Controller produces States; consumers receive copies.
//
// While Loading is set, Progress still holds the real playback position; the
// view shows zero progress and no samples.
type State struct {
	Phase           Phase
	ElapsedLabel    string
	Progress        float64
	Samples         waveform.Buffer
	Duration        time.Duration
	Playing         bool
	PlaybackEnabled bool
	Recording       bool
	Loading         bool
}

// FormatElapsed renders d as m:ss.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func elapsedAt(progress float64, duration time.Duration) string {
	return FormatElapsed(time.Duration(progress * float64(duration)))
}

// Clamp limits a seek target to [0,1]. NaN maps to 0.
func Clamp(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
