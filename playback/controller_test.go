package playback

import (
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"
)

func newReady(t *testing.T) (*Controller, *FakeBackend) {
	t.Helper()
	fb := NewFakeBackend()
	c := NewController(fb, Options{})
	t.Cleanup(c.Close)
	c.Load()
	fb.Emit(Event{Kind: EventReady, Duration: 10 * time.Second})
	waitFor(t, c, func(s State) bool { return s.PlaybackEnabled })
	fb.Reset()
	return c, fb
}

// waitFor polls until cond holds; events travel a different channel than
// commands so Flush alone does not order them.
func waitFor(t *testing.T, c *Controller, cond func(State) bool) State {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		c.Flush()
		if s := c.State(); cond(s) {
			return s
		}
		select {
		case <-deadline:
			t.Fatalf("timed out; last state %+v", c.State())
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestLoadTransitions(t *testing.T) {
	fb := NewFakeBackend()
	c := NewController(fb, Options{})
	defer c.Close()

	c.Load()
	c.Flush()
	s := c.State()
	if s.Phase != PhaseLoading || !s.Loading || s.PlaybackEnabled {
		t.Fatalf("after Load: %+v", s)
	}
	if s.ElapsedLabel != PlaceholderLabel {
		t.Errorf("label = %q, want placeholder", s.ElapsedLabel)
	}

	fb.Emit(Event{Kind: EventReady, Duration: 65 * time.Second})
	s = waitFor(t, c, func(s State) bool { return s.Phase == PhaseReady })
	if s.Loading || !s.PlaybackEnabled {
		t.Errorf("after ready: %+v", s)
	}
	if s.ElapsedLabel != "1:05" {
		t.Errorf("label = %q, want 1:05", s.ElapsedLabel)
	}
	if !slices.Equal(fb.Calls(), []string{"load"}) {
		t.Errorf("calls = %v", fb.Calls())
	}
}

func TestSeekClamps(t *testing.T) {
	c, fb := newReady(t)

	for _, tt := range []struct{ in, want float64 }{
		{-0.5, 0},
		{0, 0},
		{0.25, 0.25},
		{1, 1},
		{1.7, 1},
	} {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			c.Seek(tt.in)
			c.Flush()
			if got := c.State().Progress; got != tt.want {
				t.Errorf("Progress = %v, want %v", got, tt.want)
			}
		})
	}
	if n := len(fb.Calls()); n != 5 {
		t.Errorf("backend got %d seeks, want 5", n)
	}
}

func TestSeekUpdatesElapsedLabel(t *testing.T) {
	c, _ := newReady(t)
	c.Seek(0.5)
	c.Flush()
	if got := c.State().ElapsedLabel; got != "0:05" {
		t.Errorf("label = %q, want 0:05", got)
	}
}

func TestToggleTwiceRestoresPaused(t *testing.T) {
	c, fb := newReady(t)
	c.Seek(0.4)
	c.Flush()
	before := c.State()

	c.TogglePlayback()
	c.Flush()
	if !c.State().Playing || c.State().Phase != PhasePlaying {
		t.Fatalf("expected playing, got %+v", c.State())
	}
	c.TogglePlayback()
	c.Flush()
	after := c.State()
	if after.Playing || after.Phase != PhaseReady || after.Progress != before.Progress {
		t.Errorf("after two toggles %+v, want paused at %v", after, before.Progress)
	}
	if !slices.Equal(fb.Calls(), []string{"seek 0.40", "play", "pause"}) {
		t.Errorf("calls = %v", fb.Calls())
	}
}

func TestToggleIgnoredWhenDisabled(t *testing.T) {
	fb := NewFakeBackend()
	c := NewController(fb, Options{})
	defer c.Close()

	c.TogglePlayback()
	c.Flush()
	if c.State().Playing {
		t.Error("toggle should be a no-op before the backend is ready")
	}
	if len(fb.Calls()) != 0 {
		t.Errorf("calls = %v, want none", fb.Calls())
	}
}

func TestRecordingSuppressesTransport(t *testing.T) {
	c, fb := newReady(t)
	c.Seek(0.3)
	c.SetRecording(true)
	c.Flush()
	fb.Reset()

	c.Seek(0.9)
	c.TogglePlayback()
	c.Flush()

	if len(fb.Calls()) != 0 {
		t.Errorf("backend received %v while recording", fb.Calls())
	}
	s := c.State()
	if s.Progress != 0.3 || s.Playing {
		t.Errorf("state changed while recording: %+v", s)
	}
}

func TestRecordingPausesPlayback(t *testing.T) {
	c, fb := newReady(t)
	c.TogglePlayback()
	c.SetRecording(true)
	c.Flush()

	s := c.State()
	if s.Playing || !s.Recording {
		t.Errorf("recording and playing overlap: %+v", s)
	}
	if !slices.Equal(fb.Calls(), []string{"play", "pause"}) {
		t.Errorf("calls = %v", fb.Calls())
	}
}

func TestProgressTickIdempotent(t *testing.T) {
	c, _ := newReady(t)
	for len(c.Updates()) > 0 {
		<-c.Updates()
	}

	c.ProgressTick(0.2, "0:02")
	c.Flush()
	select {
	case s := <-c.Updates():
		if s.Progress != 0.2 || s.ElapsedLabel != "0:02" {
			t.Errorf("tick state %+v", s)
		}
	default:
		t.Fatal("expected update for new progress")
	}

	c.ProgressTick(0.2, "0:02")
	c.Flush()
	select {
	case s := <-c.Updates():
		t.Errorf("unchanged tick published %+v", s)
	default:
	}
}

func TestWidthChangeResamplesWithoutLoading(t *testing.T) {
	c, fb := newReady(t)

	c.WidthChanged(200)
	c.Flush()
	fb.Emit(Event{Kind: EventSamples, Samples: make([]float64, 50)})
	waitFor(t, c, func(s State) bool { return s.Samples.Len() == 50 })

	fb.Reset()
	c.WidthChanged(400)
	c.Flush()
	if !slices.Equal(fb.Calls(), []string{"resample 100"}) {
		t.Fatalf("calls = %v, want resample 100", fb.Calls())
	}
	s := c.State()
	if s.Loading || s.Samples.Len() != 50 {
		t.Errorf("old samples should stay visible during resample: %+v", s)
	}

	fb.Emit(Event{Kind: EventSamples, Samples: make([]float64, 100)})
	s = waitFor(t, c, func(s State) bool { return s.Samples.Len() == 100 })
	if s.Loading {
		t.Error("resample flashed loading")
	}
}

func TestWidthChangeSameCountIsNoop(t *testing.T) {
	c, fb := newReady(t)
	c.WidthChanged(200)
	c.WidthChanged(201)
	c.Flush()
	if !slices.Equal(fb.Calls(), []string{"resample 50"}) {
		t.Errorf("calls = %v", fb.Calls())
	}
}

func TestStaleSamplesDropped(t *testing.T) {
	c, fb := newReady(t)
	c.WidthChanged(200)
	c.WidthChanged(400)
	c.Flush()

	fb.Emit(Event{Kind: EventSamples, Samples: make([]float64, 50)})
	fb.Emit(Event{Kind: EventSamples, Samples: make([]float64, 100)})
	s := waitFor(t, c, func(s State) bool { return s.Samples.Len() != 0 })
	if s.Samples.Len() != 100 {
		t.Errorf("applied stale buffer of %d samples", s.Samples.Len())
	}
}

func TestDecodeFailureDisablesPlayback(t *testing.T) {
	c, fb := newReady(t)
	c.TogglePlayback()
	c.Flush()

	cause := &DecodeError{Source: "voice.ogg", Err: errors.New("bad header")}
	fb.Emit(Event{Kind: EventDecodeFailed, Err: cause})
	s := waitFor(t, c, func(s State) bool { return s.Phase == PhaseIdle })
	if s.PlaybackEnabled || s.Playing {
		t.Errorf("after decode failure: %+v", s)
	}

	select {
	case err := <-c.Failures():
		if !errors.Is(err, ErrDecode) {
			t.Errorf("failure %v does not match ErrDecode", err)
		}
	case <-time.After(time.Second):
		t.Fatal("decode failure was not reported")
	}

	fb.Reset()
	c.TogglePlayback()
	c.Seek(0.6)
	c.Flush()
	if len(fb.Calls()) != 0 {
		t.Errorf("transport after failure reached backend: %v", fb.Calls())
	}
	if got := c.State(); got.Progress != s.Progress || got.ElapsedLabel != s.ElapsedLabel {
		t.Errorf("seek after failure changed state: %+v", got)
	}
}

func TestEndedResetsProgress(t *testing.T) {
	c, fb := newReady(t)
	c.TogglePlayback()
	c.Flush()
	fb.Emit(Event{Kind: EventProgress, Progress: 0.99, Label: "0:10"})
	fb.Emit(Event{Kind: EventEnded})
	s := waitFor(t, c, func(s State) bool { return !s.Playing })
	if s.Progress != 0 || s.Phase != PhaseReady || s.ElapsedLabel != "0:10" {
		t.Errorf("after end: %+v", s)
	}
}

func TestCloseIdempotent(t *testing.T) {
	c := NewController(NewFakeBackend(), Options{})
	c.Close()
	c.Close()
	c.Seek(0.5) // must not block after close
	c.Flush()
}

func TestFormatElapsed(t *testing.T) {
	for _, tt := range []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{1500 * time.Millisecond, "0:02"},
		{59 * time.Second, "0:59"},
		{61 * time.Second, "1:01"},
		{-time.Second, "0:00"},
		{10 * time.Minute, "10:00"},
	} {
		if got := FormatElapsed(tt.d); got != tt.want {
			t.Errorf("FormatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
