package beep

import (
	"testing"
	"time"

	"vox/audio"
)

func TestPlayDrainsAndClosesOutput(t *testing.T) {
	ctx, err := audio.NewFakeContext("", true)
	if err != nil {
		t.Fatal(err)
	}
	p := New(ctx)
	p.Play(Start)

	waited := make(chan struct{})
	go func() {
		p.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(3 * time.Second):
		t.Fatal("cue did not drain")
	}

	out := ctx.LastOutput()
	if out == nil {
		t.Fatal("no output opened")
	}
	if got, want := out.Consumed(), len(p.sounds[Start]); got != want {
		t.Errorf("consumed %d samples, want %d", got, want)
	}
	if !out.Closed() {
		t.Error("output not closed after cue")
	}
	if out.SampleRate() != sampleRate {
		t.Errorf("sample rate = %d", out.SampleRate())
	}
}

func TestDisabledPlayerIsSilent(t *testing.T) {
	ctx, _ := audio.NewFakeContext("", true)
	p := New(ctx)
	p.Disable()
	p.Play(End)
	p.Wait()
	if ctx.LastOutput() != nil {
		t.Error("disabled player opened an output")
	}

	var nilPlayer *Player
	nilPlayer.Play(Warn)
	nilPlayer.Wait()
}

func TestDoubleBeepLength(t *testing.T) {
	single := generateTick(sampleRate, errorFreq, 0.08, errorVolume, errorDecay)
	double := generateDoubleBeep(sampleRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay)
	gap := int(float64(sampleRate) * 0.05)
	if len(double) != 2*len(single)+gap {
		t.Errorf("double beep has %d samples, want %d", len(double), 2*len(single)+gap)
	}
}

func TestTickDecays(t *testing.T) {
	s := generateTick(sampleRate, startFreq, tailSeconds, startVolume, startDecay)
	peak := func(xs []int16) int16 {
		var m int16
		for _, x := range xs {
			if x < 0 {
				x = -x
			}
			if x > m {
				m = x
			}
		}
		return m
	}
	head, tail := peak(s[:len(s)/10]), peak(s[len(s)*9/10:])
	if tail >= head {
		t.Errorf("tail peak %d not below head peak %d", tail, head)
	}
}
