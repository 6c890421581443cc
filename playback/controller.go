package playback

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"vox/log"
	"vox/waveform"
)

// Options tune a Controller. The zero value is usable.
type Options struct {
	// SampleSpacing is the widget width taken by one waveform bar.
	SampleSpacing float64
}

// Controller is the single owner of a voice message's State. All mutations
// run on one goroutine; the exported methods only enqueue work and return.
type Controller struct {
	id      string
	backend Backend
	spacing float64

	cmds     chan func()
	updates  chan State
	failures chan error
	quit     chan struct{}
	done     chan struct{}

	current   atomic.Pointer[State]
	closeOnce sync.Once

	// Owned by the run goroutine.
	s           State
	wantSamples int
}

// NewController starts the event loop for backend. Call Load to begin
// decoding.
func NewController(backend Backend, opts Options) *Controller {
	spacing := opts.SampleSpacing
	if spacing <= 0 {
		spacing = waveform.DefaultSpacing
	}
	c := &Controller{
		id:       uuid.NewString(),
		backend:  backend,
		spacing:  spacing,
		cmds:     make(chan func(), 64),
		updates:  make(chan State, 1),
		failures: make(chan error, 4),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		s:        State{Phase: PhaseIdle, ElapsedLabel: FormatElapsed(0)},
	}
	initial := c.s
	c.current.Store(&initial)
	go c.run()
	return c
}

func (c *Controller) ID() string { return c.id }

// State returns the latest published snapshot.
func (c *Controller) State() State { return *c.current.Load() }

// Updates delivers snapshots. Slow readers only see the newest one.
func (c *Controller) Updates() <-chan State { return c.updates }

// Failures delivers decode failures. They are informational; the State
// already reflects the disabled playback.
func (c *Controller) Failures() <-chan error { return c.failures }

func (c *Controller) enqueue(fn func()) {
	select {
	case c.cmds <- fn:
	case <-c.quit:
	}
}

// Flush blocks until every command enqueued before it has been applied.
func (c *Controller) Flush() {
	applied := make(chan struct{})
	c.enqueue(func() { close(applied) })
	select {
	case <-applied:
	case <-c.done:
	}
}

// Close stops the event loop. The backend is left to its owner.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.quit)
		<-c.done
	})
}

func (c *Controller) Load() {
	c.enqueue(func() {
		if c.s.Phase != PhaseIdle {
			return
		}
		c.s.Phase = PhaseLoading
		c.s.Loading = true
		c.s.PlaybackEnabled = false
		c.s.ElapsedLabel = PlaceholderLabel
		c.publish()
		c.backend.Load()
	})
}

func (c *Controller) TogglePlayback() {
	c.enqueue(func() {
		if !c.s.PlaybackEnabled || c.s.Recording {
			return
		}
		if c.s.Playing {
			c.backend.Pause()
			c.s.Playing = false
			c.s.Phase = PhaseReady
			log.Playback(c.id, "pause", c.s.Progress)
		} else {
			c.backend.Play()
			c.s.Playing = true
			c.s.Phase = PhasePlaying
			log.Playback(c.id, "play", c.s.Progress)
		}
		c.publish()
	})
}

// Seek moves playback to progress, clamped to [0,1]. Ignored while recording.
func (c *Controller) Seek(progress float64) {
	progress = Clamp(progress)
	c.enqueue(func() {
		// Seeks while loading are queued by the backend; a failed or
		// unloaded message has nothing to seek.
		if c.s.Recording || (!c.s.PlaybackEnabled && !c.s.Loading) {
			return
		}
		c.backend.Seek(progress)
		c.s.Progress = progress
		if c.s.Duration > 0 && !c.s.Loading {
			c.s.ElapsedLabel = elapsedAt(progress, c.s.Duration)
		}
		c.publish()
	})
}

// WidthChanged asks the backend for a waveform matching the new width. The
// current samples stay on screen until the new buffer arrives.
func (c *Controller) WidthChanged(width float64) {
	c.enqueue(func() {
		n := waveform.RequiredSamples(width, c.spacing)
		if n == c.wantSamples {
			return
		}
		c.wantSamples = n
		c.backend.Resample(n)
	})
}

// SetRecording toggles the recording state. Starting a recording pauses
// playback so Playing and Recording are never both set.
func (c *Controller) SetRecording(on bool) {
	c.enqueue(func() {
		if c.s.Recording == on {
			return
		}
		if on && c.s.Playing {
			c.backend.Pause()
			c.s.Playing = false
			c.s.Phase = PhaseReady
		}
		c.s.Recording = on
		c.publish()
	})
}

// ProgressTick applies a backend position report.
func (c *Controller) ProgressTick(progress float64, label string) {
	c.enqueue(func() { c.applyTick(Clamp(progress), label) })
}

func (c *Controller) applyTick(progress float64, label string) {
	if progress == c.s.Progress && (label == "" || label == c.s.ElapsedLabel) {
		return
	}
	c.s.Progress = progress
	if label != "" && !c.s.Loading {
		c.s.ElapsedLabel = label
	}
	c.publish()
}

func (c *Controller) run() {
	defer close(c.done)
	events := c.backend.Events()
	for {
		select {
		case <-c.quit:
			return
		case fn := <-c.cmds:
			fn()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.handle(ev)
		}
	}
}

func (c *Controller) handle(ev Event) {
	switch ev.Kind {
	case EventReady:
		c.s.Duration = ev.Duration
		c.s.Loading = false
		c.s.PlaybackEnabled = true
		if c.s.Phase == PhaseLoading || c.s.Phase == PhaseIdle {
			c.s.Phase = PhaseReady
		}
		if c.s.Progress == 0 {
			c.s.ElapsedLabel = FormatElapsed(c.s.Duration)
		} else {
			c.s.ElapsedLabel = elapsedAt(c.s.Progress, c.s.Duration)
		}
		log.Playback(c.id, "ready", c.s.Progress)
		c.publish()

	case EventProgress:
		c.applyTick(Clamp(ev.Progress), ev.Label)

	case EventSamples:
		if len(ev.Samples) != c.wantSamples {
			return
		}
		c.s.Samples = waveform.NewBuffer(ev.Samples)
		c.publish()

	case EventDecodeFailed:
		c.s.Phase = PhaseIdle
		c.s.Playing = false
		c.s.PlaybackEnabled = false
		c.s.Loading = false
		c.s.ElapsedLabel = FormatElapsed(0)
		log.DecodeFailure(c.id, ev.Err)
		c.publish()
		select {
		case c.failures <- ev.Err:
		default:
		}

	case EventEnded:
		c.s.Playing = false
		c.s.Phase = PhaseReady
		c.s.Progress = 0
		c.s.ElapsedLabel = FormatElapsed(c.s.Duration)
		log.Playback(c.id, "ended", 1)
		c.publish()
	}
}

func (c *Controller) publish() {
	snap := c.s
	c.current.Store(&snap)
	select {
	case c.updates <- snap:
		return
	default:
	}
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- snap:
	default:
	}
}
