package record

import "time"

const (
	DefaultTickInterval = 100 * time.Millisecond
	silenceWarnEvery    = 8 * time.Second
	silenceAutoStopDur  = 30 * time.Second
	speechMinRatio      = 0.10
	speechClearRatio    = 0.25 // higher threshold to clear warning (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // no voice detected
	SilenceWarnClear              // speech resumed after warning
	SilenceRepeat                 // still silent, warn again
	SilenceAutoStop               // stop recording
)

func (e SilenceEvent) String() string {
	switch e {
	case SilenceWarn:
		return "warn"
	case SilenceWarnClear:
		return "clear"
	case SilenceRepeat:
		return "repeat"
	case SilenceAutoStop:
		return "auto_stop"
	}
	return "none"
}

// silenceMonitor watches a sliding window of per-tick speech flags.
type silenceMonitor struct {
	warnAt   int
	windowSz int
	autoStop bool

	ticks       int
	window      []bool
	speechCount int
	warned      bool
	lastWarn    int
}

func newSilenceMonitor(tick time.Duration, autoStop bool) *silenceMonitor {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	windowSz := int(silenceAutoStopDur / tick)
	return &silenceMonitor{
		warnAt:   int(silenceWarnEvery / tick),
		windowSz: windowSz,
		autoStop: autoStop,
		window:   make([]bool, windowSz),
	}
}

func (m *silenceMonitor) ratio(n int) float64 {
	n = min(n, m.ticks)
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(hasSpeech bool) SilenceEvent {
	idx := m.ticks % m.windowSz
	if m.ticks >= m.windowSz && m.window[idx] {
		m.speechCount--
	}
	m.window[idx] = hasSpeech
	if hasSpeech {
		m.speechCount++
	}
	m.ticks++

	r := m.ratio(m.warnAt)

	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		m.lastWarn = m.ticks
		return SilenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return SilenceWarnClear
	}

	if !m.autoStop {
		return SilenceNone
	}

	// Auto-stop is checked before repeat.
	if m.ticks >= m.windowSz && float64(m.speechCount)/float64(m.windowSz) < speechMinRatio {
		return SilenceAutoStop
	}

	if m.warned && m.ticks-m.lastWarn >= m.warnAt {
		m.lastWarn = m.ticks
		return SilenceRepeat
	}

	return SilenceNone
}
