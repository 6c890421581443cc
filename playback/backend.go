package playback

import "time"

type EventKind int

const (
	// EventReady reports that decoding finished and Duration is known.
	EventReady EventKind = iota
	EventProgress
	EventSamples
	EventDecodeFailed
	EventEnded
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventProgress:
		return "progress"
	case EventSamples:
		return "samples"
	case EventDecodeFailed:
		return "decode_failed"
	case EventEnded:
		return "ended"
	}
	return "unknown"
}

// Event is a callback from the audio backend to the Controller.
type Event struct {
	Kind     EventKind
	Progress float64
	Label    string
	Samples  []float64
	Duration time.Duration
	Err      error
}

// Backend is the audio engine driven by a Controller. Every command must
// return without waiting for the engine; results arrive on Events.
type Backend interface {
	Load()
	Play()
	Pause()
	Seek(progress float64)
	Resample(count int)
	Events() <-chan Event
}
