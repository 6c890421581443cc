// Package seek turns pointer gestures over a waveform into seek requests.
//
// A press only arms seeking after it has been held for the hold threshold, so
// a touch that is really the start of a scroll never moves playback. Once
// armed, every drag to a new position emits a seek until the pointer lifts.
package seek

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultHold is how long a press must rest before it arms seeking.
const DefaultHold = 200 * time.Millisecond

// DefaultSlop is how far a pointer may wander before arming and still count
// as a press rather than a scroll.
const DefaultSlop = 10.0

type gestureKind int

const (
	gesturePress gestureKind = iota
	gestureDrag
	gestureEnd
)

type gesture struct {
	kind  gestureKind
	x     float64
	width float64
}

type session struct {
	pressX float64
	width  float64
	armed  bool
	last   float64
}

// Interpreter runs the press/arm/drag state machine on its own goroutine.
type Interpreter struct {
	hold time.Duration
	slop float64

	events chan gesture
	seeks  chan float64
	quit   chan struct{}
	done   chan struct{}

	armed     atomic.Bool
	closeOnce sync.Once
}

// New starts an interpreter. hold <= 0 selects DefaultHold; slop <= 0
// disables the scroll check.
func New(hold time.Duration, slop float64) *Interpreter {
	if hold <= 0 {
		hold = DefaultHold
	}
	in := &Interpreter{
		hold:   hold,
		slop:   slop,
		events: make(chan gesture, 32),
		seeks:  make(chan float64, 16),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go in.run()
	return in
}

// Seeks delivers normalized seek targets. It is closed by Close.
func (in *Interpreter) Seeks() <-chan float64 { return in.seeks }

// Armed reports whether a held press is currently steering playback.
func (in *Interpreter) Armed() bool { return in.armed.Load() }

// Press starts a gesture at x on a widget of the given width.
func (in *Interpreter) Press(x, width float64) {
	in.send(gesture{kind: gesturePress, x: x, width: width})
}

func (in *Interpreter) Drag(x float64) { in.send(gesture{kind: gestureDrag, x: x}) }

func (in *Interpreter) Release() { in.send(gesture{kind: gestureEnd}) }

func (in *Interpreter) Cancel() { in.send(gesture{kind: gestureEnd}) }

func (in *Interpreter) Close() {
	in.closeOnce.Do(func() {
		close(in.quit)
		<-in.done
	})
}

func (in *Interpreter) send(g gesture) {
	select {
	case in.events <- g:
	case <-in.quit:
	}
}

func (in *Interpreter) run() {
	defer close(in.done)
	defer close(in.seeks)

	var sess *session
	var timer *time.Timer
	var fire <-chan time.Time
	stopTimer := func() {
		if timer != nil && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		fire = nil
	}
	defer stopTimer()

	for {
		select {
		case <-in.quit:
			return

		case g := <-in.events:
			switch g.kind {
			case gesturePress:
				stopTimer()
				sess = &session{pressX: g.x, width: g.width, last: -1}
				timer = time.NewTimer(in.hold)
				fire = timer.C
				in.armed.Store(false)

			case gestureDrag:
				if sess == nil {
					continue
				}
				if !sess.armed {
					// Moving before the hold elapses means the user is scrolling.
					if in.slop > 0 && math.Abs(g.x-sess.pressX) > in.slop {
						stopTimer()
						sess = nil
					}
					continue
				}
				in.emit(sess, g.x)

			case gestureEnd:
				stopTimer()
				sess = nil
				in.armed.Store(false)
			}

		case <-fire:
			fire = nil
			if sess == nil {
				continue
			}
			sess.armed = true
			in.armed.Store(true)
			in.emit(sess, sess.pressX)
		}
	}
}

func (in *Interpreter) emit(sess *session, x float64) {
	p := Progress(x, sess.width)
	if p == sess.last {
		return
	}
	sess.last = p
	select {
	case in.seeks <- p:
	case <-in.quit:
	}
}

// Progress maps x on a widget of the given width to [0,1].
func Progress(x, width float64) float64 {
	if width <= 0 || math.IsNaN(x) {
		return 0
	}
	return math.Min(math.Max(x, 0), width) / width
}
