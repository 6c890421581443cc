package audio

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"vox/log"
	"vox/playback"
	"vox/waveform"
)

// DefaultTickInterval is how often a playing Engine reports its position.
const DefaultTickInterval = 100 * time.Millisecond

type EngineOptions struct {
	// Cache stores computed envelopes. Nil disables caching.
	Cache        *waveform.Cache
	TickInterval time.Duration
	// Output picks the playback sink; nil uses the default.
	Output *DeviceInfo
}

// Engine plays one voice message file through an OutputDevice and reports
// back as a playback.Backend. Commands are handled on the Engine's own
// goroutine; decoding and envelope computation run in the background.
type Engine struct {
	ctx    Context
	path   string
	cache  *waveform.Cache
	output *DeviceInfo
	tick   time.Duration
	events chan playback.Event
	cmds   chan func()
	ended  chan struct{}
	quit   chan struct{}
	done   chan struct{}

	closeOnce sync.Once

	// pos is shared with the output's audio thread.
	pos atomic.Int64

	// Owned by the run goroutine.
	pcm         PCM
	digest      string
	loading     bool
	loaded      bool
	playing     bool
	out         OutputDevice
	pendingBars int
	pendingSeek float64
}

var _ playback.Backend = (*Engine)(nil)

func NewEngine(ctx Context, path string, opts EngineOptions) *Engine {
	tick := opts.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	e := &Engine{
		ctx:    ctx,
		path:   path,
		cache:  opts.Cache,
		output: opts.Output,
		tick:   tick,
		events: make(chan playback.Event, 32),
		cmds:   make(chan func(), 32),
		ended:  make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Engine) Events() <-chan playback.Event { return e.events }

func (e *Engine) enqueue(fn func()) {
	select {
	case e.cmds <- fn:
	case <-e.quit:
	}
}

func (e *Engine) emit(ev playback.Event) {
	select {
	case e.events <- ev:
	case <-e.quit:
	}
}

// Digest identifies the loaded audio; empty until Ready.
func (e *Engine) Digest() string {
	ch := make(chan string, 1)
	e.enqueue(func() { ch <- e.digest })
	select {
	case d := <-ch:
		return d
	case <-e.done:
		return ""
	}
}

// PCM returns the decoded audio once loaded.
func (e *Engine) PCM() (PCM, bool) {
	type result struct {
		pcm PCM
		ok  bool
	}
	ch := make(chan result, 1)
	e.enqueue(func() { ch <- result{e.pcm, e.loaded} })
	select {
	case r := <-ch:
		return r.pcm, r.ok
	case <-e.done:
		return PCM{}, false
	}
}

func (e *Engine) Load() {
	e.enqueue(func() {
		if e.loading || e.loaded {
			return
		}
		e.loading = true
		go e.decode()
	})
}

func (e *Engine) decode() {
	data, err := os.ReadFile(e.path)
	var pcm PCM
	if err == nil {
		pcm, err = DecodeBytes(data)
	}
	if err != nil {
		e.enqueue(func() {
			e.loading = false
			e.emit(playback.Event{
				Kind: playback.EventDecodeFailed,
				Err:  &playback.DecodeError{Source: e.path, Err: err},
			})
		})
		return
	}
	digest := waveform.Digest(data)
	e.enqueue(func() {
		e.loading = false
		e.loaded = true
		e.pcm = pcm
		e.digest = digest
		e.pos.Store(int64(e.pendingSeek * float64(len(pcm.Samples))))
		d := pcm.Duration()
		e.emit(playback.Event{
			Kind:     playback.EventReady,
			Duration: d,
			Label:    playback.FormatElapsed(d),
		})
		if e.pendingBars > 0 {
			e.resample(e.pendingBars)
		}
	})
}

func (e *Engine) Play() {
	e.enqueue(func() {
		if !e.loaded || e.playing {
			return
		}
		if e.out == nil {
			out, err := e.ctx.NewOutput(OutputConfig{
				SampleRate: uint32(e.pcm.SampleRate),
				Device:     e.output,
			})
			if err != nil {
				log.Errorf("open output: %v", err)
				return
			}
			e.out = out
		}
		if e.pos.Load() >= int64(len(e.pcm.Samples)) {
			e.pos.Store(0)
		}
		if err := e.out.Start(e.source(e.pcm.Samples)); err != nil {
			log.Errorf("start output: %v", err)
			return
		}
		e.playing = true
	})
}

// source reads from samples at pos and signals the run loop once when the
// end is reached.
func (e *Engine) source(samples []int16) SampleSource {
	total := int64(len(samples))
	return func(buf []int16) int {
		for {
			p := e.pos.Load()
			if p >= total {
				select {
				case e.ended <- struct{}{}:
				default:
				}
				return 0
			}
			n := copy(buf, samples[p:])
			if e.pos.CompareAndSwap(p, p+int64(n)) {
				return n
			}
		}
	}
}

func (e *Engine) Pause() {
	e.enqueue(func() {
		if !e.playing {
			return
		}
		e.out.Stop()
		e.playing = false
		e.reportProgress()
	})
}

func (e *Engine) Seek(progress float64) {
	e.enqueue(func() {
		if !e.loaded {
			e.pendingSeek = playback.Clamp(progress)
			return
		}
		e.pos.Store(int64(playback.Clamp(progress) * float64(len(e.pcm.Samples))))
	})
}

// Resample computes an envelope of count bars. Requests made before the
// audio is decoded are served once it is.
func (e *Engine) Resample(count int) {
	e.enqueue(func() {
		if count <= 0 {
			return
		}
		if !e.loaded {
			e.pendingBars = count
			return
		}
		e.resample(count)
	})
}

func (e *Engine) resample(count int) {
	pcm, digest, cache := e.pcm.Samples, e.digest, e.cache
	go func() {
		if cache != nil {
			bars, ok, err := cache.Get(digest, count)
			if err != nil {
				log.Warnf("waveform cache: %v", err)
			}
			if ok {
				e.emit(playback.Event{Kind: playback.EventSamples, Samples: bars})
				return
			}
		}
		bars := waveform.Envelope(pcm, count)
		if cache != nil {
			if err := cache.Put(digest, bars); err != nil {
				log.Warnf("waveform cache: %v", err)
			}
		}
		e.emit(playback.Event{Kind: playback.EventSamples, Samples: bars})
	}()
}

func (e *Engine) reportProgress() {
	total := len(e.pcm.Samples)
	if total == 0 {
		return
	}
	p := min(e.pos.Load(), int64(total))
	ev := playback.Event{
		Kind:     playback.EventProgress,
		Progress: float64(p) / float64(total),
		Label:    playback.FormatElapsed(time.Duration(p) * time.Second / time.Duration(e.pcm.SampleRate)),
	}
	// Ticks are disposable; the next one supersedes a dropped one.
	select {
	case e.events <- ev:
	default:
	}
}

func (e *Engine) run() {
	defer close(e.done)
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()
	for {
		select {
		case <-e.quit:
			return
		case fn := <-e.cmds:
			fn()
		case <-ticker.C:
			if e.playing {
				e.reportProgress()
			}
		case <-e.ended:
			if !e.playing {
				continue
			}
			if e.pos.Load() < int64(len(e.pcm.Samples)) {
				// A seek landed after the source drained; that stream is gone.
				if err := e.out.Start(e.source(e.pcm.Samples)); err != nil {
					log.Errorf("restart output: %v", err)
					e.playing = false
					e.reportProgress()
				}
				continue
			}
			e.out.Stop()
			e.playing = false
			e.pos.Store(0)
			e.emit(playback.Event{Kind: playback.EventEnded})
		}
	}
}

// Close stops playback and releases the output device. A decode still in
// flight is abandoned.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.quit)
		<-e.done
		if e.out != nil {
			e.out.Close()
		}
	})
}
