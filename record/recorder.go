// Package record captures voice messages and voice broadcasts from a
// microphone into FLAC files.
package record

import (
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"vox/audio"
	"vox/encoder"
	"vox/log"
)

const (
	DefaultChunkLength     = 120 * time.Second
	DefaultMaxLength       = 14400 * time.Second
	DefaultSpeechThreshold = 0.02

	// Recordings shorter than this are discarded.
	minRecording = 100 * time.Millisecond
)

// Indicator is told when recording starts and stops. A playback.Controller
// satisfies it.
type Indicator interface {
	SetRecording(on bool)
}

type Options struct {
	// Dir receives the FLAC files.
	Dir string
	// Broadcast splits the recording into ChunkLength pieces.
	Broadcast   bool
	ChunkLength time.Duration
	// MaxLength stops the recording. Zero means DefaultMaxLength.
	MaxLength time.Duration
	// SpeechThreshold is the tick RMS above which a tick counts as speech.
	SpeechThreshold float64
	// AutoStop ends the recording after 30s without speech.
	AutoStop     bool
	TickInterval time.Duration
}

type StopReason int

const (
	StopRequested StopReason = iota
	StopSilence
	StopMaxLength
)

func (r StopReason) String() string {
	switch r {
	case StopSilence:
		return "silence"
	case StopMaxLength:
		return "max_length"
	}
	return "requested"
}

type EventKind int

const (
	EventLevel EventKind = iota
	EventTick
	EventSilence
	EventChunk
)

// Event reports recorder progress to the host. Level and tick events are
// dropped when the host falls behind.
type Event struct {
	Kind    EventKind
	Level   float64
	Elapsed time.Duration
	Silence SilenceEvent
	Chunk   string
}

type Result struct {
	// Files holds one path for a voice message and one per chunk for a
	// broadcast, in order.
	Files    []string
	Duration time.Duration
	Reason   StopReason
}

type Recorder struct {
	capture   audio.CaptureDevice
	indicator Indicator
	opts      Options
	events    chan Event
	id        string

	mu       sync.Mutex
	pending  []int16
	total    int
	tickSq   float64
	tickN    int
	stopped  bool
	files    []string
	chunkSeq int
	writeErr error
}

func New(capture audio.CaptureDevice, indicator Indicator, opts Options) *Recorder {
	if opts.ChunkLength <= 0 {
		opts.ChunkLength = DefaultChunkLength
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultMaxLength
	}
	if opts.SpeechThreshold <= 0 {
		opts.SpeechThreshold = DefaultSpeechThreshold
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	return &Recorder{
		capture:   capture,
		indicator: indicator,
		opts:      opts,
		events:    make(chan Event, 64),
		id:        uuid.NewString(),
	}
}

func (r *Recorder) Events() <-chan Event { return r.events }

func (r *Recorder) send(ev Event) {
	select {
	case r.events <- ev:
	default:
	}
}

func samplesFor(d time.Duration) int {
	return int(d * encoder.SampleRate / time.Second)
}

func durationOf(samples int) time.Duration {
	return time.Duration(samples) * time.Second / encoder.SampleRate
}

func (r *Recorder) onData(data []byte, _ uint32) {
	if len(data) < 2 {
		return
	}
	samples := make([]int16, len(data)/2)
	var sumSquares float64
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = s
		v := float64(s) / 32768.0
		sumSquares += v * v
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.pending = append(r.pending, samples...)
	r.total += len(samples)
	r.tickSq += sumSquares
	r.tickN += len(samples)
	r.mu.Unlock()

	r.send(Event{Kind: EventLevel, Level: math.Sqrt(sumSquares / float64(len(samples)))})
}

// takeTick returns the RMS level since the previous tick and the captured
// duration so far.
func (r *Recorder) takeTick() (float64, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rms float64
	if r.tickN > 0 {
		rms = math.Sqrt(r.tickSq / float64(r.tickN))
	}
	r.tickSq, r.tickN = 0, 0
	return rms, durationOf(r.total)
}

// flushChunks writes every complete chunk. With final set the remainder is
// written too.
func (r *Recorder) flushChunks(final bool) {
	chunk := samplesFor(r.opts.ChunkLength)
	for {
		block, seq := r.nextChunk(chunk, final)
		if block == nil {
			return
		}
		path := filepath.Join(r.opts.Dir, fmt.Sprintf("broadcast-%s-%03d.flac", r.id, seq))
		err := encoder.WriteFlacFile(path, block, encoder.SampleRate)

		r.mu.Lock()
		if err != nil {
			r.writeErr = err
		} else {
			r.files = append(r.files, path)
		}
		r.mu.Unlock()
		if err != nil {
			return
		}
		r.send(Event{Kind: EventChunk, Chunk: path})
	}
}

func (r *Recorder) nextChunk(size int, final bool) ([]int16, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var block []int16
	switch {
	case len(r.pending) >= size:
		block = r.pending[:size]
		r.pending = r.pending[size:]
	case final && len(r.pending) > 0:
		block = r.pending
		r.pending = nil
	default:
		return nil, 0
	}
	r.chunkSeq++
	return block, r.chunkSeq
}

// Record captures until stop fires, the silence monitor gives up, or the
// maximum length is reached.
func (r *Recorder) Record(stop <-chan struct{}) (Result, error) {
	r.capture.SetCallback(r.onData)
	if err := r.capture.Start(); err != nil {
		r.capture.ClearCallback()
		return Result{}, fmt.Errorf("start capture: %w", err)
	}
	if r.indicator != nil {
		r.indicator.SetRecording(true)
		defer r.indicator.SetRecording(false)
	}
	device := "default"
	if named, ok := r.capture.(interface{ DeviceName() string }); ok {
		device = named.DeviceName()
	}
	log.RecordingStart(device, r.opts.Broadcast)

	mon := newSilenceMonitor(r.opts.TickInterval, r.opts.AutoStop)
	ticker := time.NewTicker(r.opts.TickInterval)
	reason := StopRequested
loop:
	for {
		select {
		case <-stop:
			break loop
		case <-ticker.C:
		}
		rms, elapsed := r.takeTick()
		r.send(Event{Kind: EventTick, Elapsed: elapsed})

		if ev := mon.Tick(rms >= r.opts.SpeechThreshold); ev != SilenceNone {
			log.Info("silence_" + ev.String())
			r.send(Event{Kind: EventSilence, Silence: ev})
			if ev == SilenceAutoStop {
				reason = StopSilence
				break loop
			}
		}
		if elapsed >= r.opts.MaxLength {
			reason = StopMaxLength
			break loop
		}
		if r.opts.Broadcast {
			r.flushChunks(false)
		}
	}
	ticker.Stop()

	r.capture.Stop()
	r.capture.ClearCallback()

	r.mu.Lock()
	r.stopped = true
	if limit := samplesFor(r.opts.MaxLength); len(r.pending) > 0 && r.total > limit {
		// Drop whatever arrived past the limit.
		over := min(r.total-limit, len(r.pending))
		r.pending = r.pending[:len(r.pending)-over]
		r.total -= over
	}
	total := r.total
	r.mu.Unlock()

	res := Result{Duration: durationOf(total), Reason: reason}
	if res.Duration < minRecording {
		log.RecordingEnd(res.Duration.Seconds(), 0, "too_short")
		return res, nil
	}

	if r.opts.Broadcast {
		r.flushChunks(true)
	} else {
		path := filepath.Join(r.opts.Dir, fmt.Sprintf("voice-%s.flac", r.id))
		if err := encoder.WriteFlacFile(path, r.pending, encoder.SampleRate); err != nil {
			return res, err
		}
		r.files = append(r.files, path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	res.Files = append(res.Files, r.files...)
	log.RecordingEnd(res.Duration.Seconds(), len(res.Files), reason.String())
	return res, r.writeErr
}
