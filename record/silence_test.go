package record

import (
	"testing"
	"time"
)

func manualMonitor() *silenceMonitor {
	return newSilenceMonitor(DefaultTickInterval, false)
}

func autoStopMonitor() *silenceMonitor {
	return newSilenceMonitor(DefaultTickInterval, true)
}

func feedN(m *silenceMonitor, speech bool, n int) SilenceEvent {
	var last SilenceEvent
	for i := 0; i < n; i++ {
		last = m.Tick(speech)
	}
	return last
}

func TestSilenceWarnAfter8s(t *testing.T) {
	m := manualMonitor()
	for i := 0; i < 79; i++ {
		if ev := m.Tick(false); ev != SilenceNone {
			t.Fatalf("unexpected event at tick %d: %v", i, ev)
		}
	}
	if ev := m.Tick(false); ev != SilenceWarn {
		t.Fatalf("expected SilenceWarn at tick 80, got %v", ev)
	}
}

func TestSilenceWarnClearsOnSpeech(t *testing.T) {
	m := manualMonitor()
	feedN(m, false, 80)

	for i := 0; i < 80; i++ {
		if m.Tick(true) == SilenceWarnClear {
			return
		}
	}
	t.Fatal("expected SilenceWarnClear after speech")
}

func TestNoWarnDuringSpeech(t *testing.T) {
	m := manualMonitor()
	for i := 0; i < 200; i++ {
		if ev := m.Tick(true); ev == SilenceWarn {
			t.Fatalf("unexpected warn during speech at tick %d", i)
		}
	}
}

func TestAutoStopRepeatWarning(t *testing.T) {
	m := autoStopMonitor()
	feedN(m, false, 80)
	for i := 0; i < 100; i++ {
		if m.Tick(false) == SilenceRepeat {
			return
		}
	}
	t.Fatal("expected SilenceRepeat with auto-stop enabled")
}

func TestAutoStopAfter30s(t *testing.T) {
	m := autoStopMonitor()
	for i := 0; i < 400; i++ {
		ev := m.Tick(false)
		if ev == SilenceAutoStop {
			if i != 299 {
				t.Errorf("auto-stop at tick %d, want 299", i)
			}
			return
		}
		if i >= 299 && ev == SilenceRepeat {
			t.Fatalf("SilenceRepeat fired at tick %d instead of SilenceAutoStop", i)
		}
	}
	t.Fatal("expected SilenceAutoStop within 400 ticks")
}

func TestNoAutoStopWhenManual(t *testing.T) {
	m := manualMonitor()
	for i := 0; i < 400; i++ {
		switch m.Tick(false) {
		case SilenceAutoStop:
			t.Fatalf("unexpected auto-stop at tick %d", i)
		case SilenceRepeat:
			t.Fatalf("unexpected repeat at tick %d", i)
		}
	}
}

func TestAutoStopPreventedBySpeech(t *testing.T) {
	m := autoStopMonitor()
	for i := 0; i < 500; i++ {
		if ev := m.Tick(i%10 < 7); ev == SilenceAutoStop {
			t.Fatalf("unexpected auto-stop with speech at tick %d", i)
		}
	}
}

func TestWarnOnlyOnce(t *testing.T) {
	m := manualMonitor()
	warns := 0
	for i := 0; i < 300; i++ {
		if m.Tick(false) == SilenceWarn {
			warns++
		}
	}
	if warns != 1 {
		t.Fatalf("expected exactly 1 SilenceWarn, got %d", warns)
	}
}

func TestWarnStaysDuringNoise(t *testing.T) {
	m := manualMonitor()
	feedN(m, false, 80)

	// Sparse speech (10%) is below the clear threshold.
	for i := 0; i < 80; i++ {
		if m.Tick(i%10 == 0) == SilenceWarnClear {
			t.Fatalf("warning cleared at tick %d with 10%% speech", i)
		}
	}
}

func TestMonitorScalesWithTick(t *testing.T) {
	m := newSilenceMonitor(time.Second, false)
	if ev := feedN(m, false, 8); ev != SilenceWarn {
		t.Fatalf("expected SilenceWarn after 8 one-second ticks, got %v", ev)
	}
}
