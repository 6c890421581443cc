package seek

import (
	"testing"
	"time"
)

const threshold = 50 * time.Millisecond

func waitSeek(t *testing.T, in *Interpreter) float64 {
	t.Helper()
	select {
	case p := <-in.Seeks():
		return p
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for seek")
	}
	return 0
}

func expectNoSeek(t *testing.T, in *Interpreter, within time.Duration) {
	t.Helper()
	select {
	case p := <-in.Seeks():
		t.Fatalf("unexpected seek to %v", p)
	case <-time.After(within):
	}
}

func TestLongPressArmsAndSeeksToPress(t *testing.T) {
	in := New(threshold, 0)
	defer in.Close()

	in.Press(50, 200)
	if got := waitSeek(t, in); got != 0.25 {
		t.Errorf("arming seek = %v, want 0.25", got)
	}
	if !in.Armed() {
		t.Error("expected armed after hold")
	}
}

func TestDragBeforeHoldIsIgnored(t *testing.T) {
	in := New(200*time.Millisecond, 0)
	defer in.Close()

	in.Press(10, 100)
	in.Drag(40)
	in.Drag(60)
	in.Release()
	expectNoSeek(t, in, 300*time.Millisecond)
	if in.Armed() {
		t.Error("short press must not arm")
	}
}

func TestDragAfterHoldEmitsPerDistinctDelta(t *testing.T) {
	in := New(threshold, 0)
	defer in.Close()

	in.Press(0, 100)
	if got := waitSeek(t, in); got != 0 {
		t.Fatalf("arming seek = %v, want 0", got)
	}

	in.Drag(25)
	in.Drag(25) // same position, no new seek
	in.Drag(75)
	if got := waitSeek(t, in); got != 0.25 {
		t.Errorf("first drag = %v, want 0.25", got)
	}
	if got := waitSeek(t, in); got != 0.75 {
		t.Errorf("second drag = %v, want 0.75", got)
	}
	expectNoSeek(t, in, 50*time.Millisecond)
}

func TestReleaseStopsSeeking(t *testing.T) {
	in := New(threshold, 0)
	defer in.Close()

	in.Press(20, 100)
	waitSeek(t, in)
	in.Release()
	in.Drag(90)
	expectNoSeek(t, in, 100*time.Millisecond)
	if in.Armed() {
		t.Error("release should disarm")
	}
}

func TestCancelBeforeHold(t *testing.T) {
	in := New(threshold, 0)
	defer in.Close()

	in.Press(20, 100)
	in.Cancel()
	expectNoSeek(t, in, threshold+50*time.Millisecond)
}

func TestMovementBeyondSlopAbandonsPress(t *testing.T) {
	in := New(threshold, 10)
	defer in.Close()

	in.Press(20, 100)
	in.Drag(45)
	expectNoSeek(t, in, threshold+50*time.Millisecond)

	// Small jitter stays a press.
	in.Press(20, 100)
	in.Drag(25)
	if got := waitSeek(t, in); got != 0.2 {
		t.Errorf("seek = %v, want press location 0.2", got)
	}
}

func TestMultipleGestures(t *testing.T) {
	in := New(threshold, 0)
	defer in.Close()

	in.Press(10, 100)
	waitSeek(t, in)
	in.Drag(30)
	waitSeek(t, in)
	in.Release()

	in.Press(80, 100)
	if got := waitSeek(t, in); got != 0.8 {
		t.Errorf("second gesture seek = %v, want 0.8", got)
	}
	in.Release()
}

func TestProgressClamps(t *testing.T) {
	for _, tt := range []struct{ x, width, want float64 }{
		{-5, 100, 0},
		{50, 100, 0.5},
		{150, 100, 1},
		{10, 0, 0},
	} {
		if got := Progress(tt.x, tt.width); got != tt.want {
			t.Errorf("Progress(%v, %v) = %v, want %v", tt.x, tt.width, got, tt.want)
		}
	}
}

func TestCloseClosesSeeks(t *testing.T) {
	in := New(threshold, 0)
	in.Close()
	in.Close()
	if _, ok := <-in.Seeks(); ok {
		t.Error("Seeks should be closed")
	}
	in.Press(1, 2) // must not block
}
