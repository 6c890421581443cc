// Package beep plays short recording cues through an audio output device.
package beep

import (
	"math"
	"sync"
	"time"

	"vox/audio"
	"vox/log"
)

const (
	sampleRate = 44100

	// Start cue: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End cue: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Warn cue: silence warning, soft and low
	warnFreq   = 600
	warnVolume = 0.35
	warnDecay  = 25

	// Error cue: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30

	// tail keeps the output buffer filled until the decay has finished
	tailSeconds = 0.2

	drainTimeout = 2 * time.Second
)

type Sound int

const (
	Start Sound = iota
	End
	Warn
	Error
)

func (s Sound) String() string {
	switch s {
	case Start:
		return "start"
	case End:
		return "end"
	case Warn:
		return "warn"
	case Error:
		return "error"
	}
	return "unknown"
}

// Player renders cues on demand. A nil or disabled Player is silent.
type Player struct {
	ctx audio.Context

	mu       sync.Mutex
	disabled bool
	sounds   map[Sound][]int16
	wg       sync.WaitGroup
}

func New(ctx audio.Context) *Player {
	return &Player{
		ctx: ctx,
		sounds: map[Sound][]int16{
			Start: generateTick(sampleRate, startFreq, tailSeconds, startVolume, startDecay),
			End:   generateTick(sampleRate, endFreq, tailSeconds, endVolume, endDecay),
			Warn:  generateTick(sampleRate, warnFreq, tailSeconds, warnVolume, warnDecay),
			Error: generateDoubleBeep(sampleRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay),
		},
	}
}

func (p *Player) Disable() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.disabled = true
	p.mu.Unlock()
}

// Play starts s in the background and returns immediately.
func (p *Player) Play(s Sound) {
	if p == nil {
		return
	}
	p.mu.Lock()
	samples, ok := p.sounds[s]
	off := p.disabled || p.ctx == nil
	p.mu.Unlock()
	if off || !ok {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.play(samples); err != nil {
			log.Warnf("beep %s: %v", s, err)
		}
	}()
}

// Wait blocks until every cue started so far has drained.
func (p *Player) Wait() {
	if p == nil {
		return
	}
	p.wg.Wait()
}

func (p *Player) play(samples []int16) error {
	out, err := p.ctx.NewOutput(audio.OutputConfig{SampleRate: sampleRate})
	if err != nil {
		return err
	}
	defer out.Close()

	done := make(chan struct{})
	var once sync.Once
	pos := 0
	src := func(buf []int16) int {
		if pos >= len(samples) {
			once.Do(func() { close(done) })
			return 0
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n
	}
	if err := out.Start(src); err != nil {
		return err
	}
	select {
	case <-done:
	case <-time.After(drainTimeout):
	}
	out.Stop()
	return nil
}

func generateTick(sampleRate int, freq float64, duration float64, volume float64, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func generateDoubleBeep(sampleRate int, freq float64, beepDur float64, gapDur float64, volume float64, decay float64) []int16 {
	beep := generateTick(sampleRate, freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(sampleRate)*gapDur))
	result := make([]int16, 0, len(beep)*2+len(gap))
	result = append(result, beep...)
	result = append(result, gap...)
	result = append(result, beep...)
	return result
}
