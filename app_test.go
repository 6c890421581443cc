package main

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vox/audio"
	"vox/config"
	"vox/playback"
	"vox/record"
	"vox/render"
	"vox/transcriber"
)

func TestMain(m *testing.M) {
	transcriber.WarmLanguageDetector()
	os.Exit(m.Run())
}

type chanSink struct {
	states   chan playback.State
	failed   chan error
	results  chan transcriber.Transcription
	trFailed chan error
	opened   chan string
	stopped  chan record.Result
}

func newChanSink() *chanSink {
	return &chanSink{
		states:   make(chan playback.State, 256),
		failed:   make(chan error, 4),
		results:  make(chan transcriber.Transcription, 4),
		trFailed: make(chan error, 4),
		opened:   make(chan string, 4),
		stopped:  make(chan record.Result, 4),
	}
}

func (s *chanSink) MessageOpened(path string, _ render.CellKind, _, _ int) {
	s.opened <- path
}

func (s *chanSink) PlaybackState(st playback.State) {
	select {
	case s.states <- st:
	default:
	}
}

func (s *chanSink) PlaybackFailed(err error) {
	s.failed <- err
}

func (s *chanSink) Transcription(t transcriber.Transcription, _ bool) {
	s.results <- t
}

func (s *chanSink) TranscriptionFailed(err error) {
	s.trFailed <- err
}

func (s *chanSink) RecordingStart(bool) {}

func (s *chanSink) RecordingStop(res record.Result, _ error) {
	s.stopped <- res
}

func (s *chanSink) RecordingTick(time.Duration, int) {}

func (s *chanSink) AudioLevel(float64) {}

func (s *chanSink) Silence(record.SilenceEvent) {}

func (s *chanSink) waitEnabled(t *testing.T) playback.State {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case st := <-s.states:
			if st.PlaybackEnabled {
				return st
			}
		case err := <-s.failed:
			t.Fatalf("decode failed: %v", err)
		case <-deadline:
			t.Fatal("timeout waiting for ready state")
		}
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		DataDir:     dir,
		StorePath:   filepath.Join(dir, "transcriptions.db"),
		CachePath:   filepath.Join(dir, "waveforms.db"),
		Hold:        50 * time.Millisecond,
		Slop:        10,
		Spacing:     4,
		Timeout:     5 * time.Second,
		Theme:       "dark",
		ChunkLength: time.Second,
		MaxLength:   3 * time.Second,
		Test:        true,
	}
}

func writeTone(t *testing.T, seconds float64) string {
	t.Helper()
	const rate = 16000
	samples := make([]int16, int(seconds*rate))
	for i := range samples {
		samples[i] = int16(math.Sin(2*math.Pi*440*float64(i)/rate) * 10000)
	}
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := os.WriteFile(path, audio.EncodeWAV(audio.PCM{Samples: samples, SampleRate: rate}), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestApp(t *testing.T, cfg config.Config, tr transcriber.Transcriber) (*app, *chanSink, *audio.FakeContext) {
	t.Helper()
	ctx, err := audio.NewFakeContext("", false)
	if err != nil {
		t.Fatal(err)
	}
	sink := newChanSink()
	a := newApp(cfg, ctx, tr, sink)
	t.Cleanup(a.Close)
	return a, sink, ctx
}

func TestAppOpenSeekAndWidth(t *testing.T) {
	a, sink, _ := newTestApp(t, testConfig(t), nil)
	path := writeTone(t, 2)
	a.Open(path, render.CellVoiceMessage)
	if got := <-sink.opened; got != path {
		t.Fatalf("opened %q", got)
	}
	st := sink.waitEnabled(t)
	if st.ElapsedLabel != "0:02" {
		t.Errorf("label = %q", st.ElapsedLabel)
	}

	a.Seek(0.5)
	a.Flush()
	st, _ = a.State()
	if st.Progress != 0.5 || st.ElapsedLabel != "0:01" {
		t.Errorf("after seek: progress=%v label=%q", st.Progress, st.ElapsedLabel)
	}

	a.WidthChanged(200)
	deadline := time.After(3 * time.Second)
	for {
		a.Flush()
		if st, _ := a.State(); st.Samples.Len() == 50 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("waveform never resampled to 50 bars")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestAppHoldToSeek(t *testing.T) {
	a, sink, _ := newTestApp(t, testConfig(t), nil)
	a.Open(writeTone(t, 2), render.CellVoiceMessage)
	<-sink.opened
	sink.waitEnabled(t)

	a.Press(20, 200)
	time.Sleep(150 * time.Millisecond)
	if !a.Armed() {
		t.Fatal("press not armed after hold")
	}
	a.Drag(100)
	a.Release()

	deadline := time.After(2 * time.Second)
	for {
		a.Flush()
		if st, _ := a.State(); st.Progress == 0.5 {
			return
		}
		select {
		case <-deadline:
			st, _ := a.State()
			t.Fatalf("progress = %v, want 0.5", st.Progress)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestAppTranscribeUsesStore(t *testing.T) {
	fake := transcriber.NewFake("hello from the voice message", nil)
	a, sink, _ := newTestApp(t, testConfig(t), fake)
	a.Open(writeTone(t, 1), render.CellVoiceMessage)
	<-sink.opened
	sink.waitEnabled(t)

	if err := a.Transcribe(); err != nil {
		t.Fatal(err)
	}
	var first transcriber.Transcription
	select {
	case first = <-sink.results:
	case err := <-sink.trFailed:
		t.Fatalf("transcription failed: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for transcription")
	}
	if first.Text != "hello from the voice message" || first.Cached {
		t.Errorf("first = %+v", first)
	}

	if err := a.Transcribe(); err != nil {
		t.Fatal(err)
	}
	select {
	case second := <-sink.results:
		if !second.Cached || second.Text != first.Text {
			t.Errorf("second = %+v, want cached copy", second)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for cached transcription")
	}
	if fake.Calls() != 1 {
		t.Errorf("provider called %d times, want 1", fake.Calls())
	}
}

func TestAppTranscribeWithoutProvider(t *testing.T) {
	a, sink, _ := newTestApp(t, testConfig(t), nil)
	if err := a.Transcribe(); err != errNoMessage {
		t.Errorf("err = %v, want errNoMessage", err)
	}
	a.Open(writeTone(t, 1), render.CellVoiceMessage)
	<-sink.opened
	if err := a.Transcribe(); err == nil {
		t.Error("expected error without provider")
	}
}

func TestAppDecodeFailure(t *testing.T) {
	a, sink, _ := newTestApp(t, testConfig(t), nil)
	bad := filepath.Join(t.TempDir(), "bad.wav")
	os.WriteFile(bad, []byte("garbage"), 0644)
	a.Open(bad, render.CellVoiceMessage)
	select {
	case <-sink.failed:
	case <-time.After(3 * time.Second):
		t.Fatal("no decode failure reported")
	}
	a.Flush()
	if st, _ := a.State(); st.PlaybackEnabled {
		t.Error("playback enabled after decode failure")
	}
}

func TestAppRecordOpensMessage(t *testing.T) {
	a, sink, _ := newTestApp(t, testConfig(t), nil)
	if err := a.StartRecording(); err != nil {
		t.Fatal(err)
	}
	if err := a.StartRecording(); err != errRecordingBusy {
		t.Errorf("second start err = %v", err)
	}
	time.Sleep(300 * time.Millisecond)
	a.StopRecording()
	a.WaitRecording()

	res := <-sink.stopped
	if len(res.Files) != 1 {
		t.Fatalf("files = %v", res.Files)
	}
	if got := <-sink.opened; got != res.Files[0] {
		t.Errorf("opened %q, want %q", got, res.Files[0])
	}
	if a.Recording() {
		t.Error("still recording")
	}
}

func TestAppBroadcastChunks(t *testing.T) {
	cfg := testConfig(t)
	cfg.Broadcast = true
	cfg.Record = true
	a, sink, _ := newTestApp(t, cfg, nil)
	if err := a.StartRecording(); err != nil {
		t.Fatal(err)
	}
	a.WaitRecording()

	res := <-sink.stopped
	if res.Reason != record.StopMaxLength || len(res.Files) != 3 {
		t.Fatalf("result = %+v", res)
	}
	<-sink.opened
	a.Chunk(1, false)
	if got := <-sink.opened; got != res.Files[1] {
		t.Errorf("chunk 2 opened %q", got)
	}
	a.Chunk(5, false)
	select {
	case got := <-sink.opened:
		t.Errorf("out-of-range chunk opened %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("the quick brown fox jumps", 10)
	want := []string{"the quick", "brown fox", "jumps"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}
