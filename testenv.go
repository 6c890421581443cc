package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"vox/audio"
	"vox/config"
	"vox/log"
	"vox/playback"
	"vox/record"
	"vox/render"
	"vox/transcriber"
)

const defaultFakeTranscript = "this is a test voice message"

// gate is closed once per opened message.
type gate struct {
	once sync.Once
	ch   chan struct{}
}

func newGate() *gate { return &gate{ch: make(chan struct{})} }

func (g *gate) open() {
	g.once.Do(func() { close(g.ch) })
}

// lineSink prints pipeline events as single lines for the stdin driver.
type lineSink struct {
	mu         sync.Mutex
	out        io.Writer
	ready      *gate
	transcript chan struct{}
}

func newLineSink(out io.Writer) *lineSink {
	return &lineSink{out: out, ready: newGate(), transcript: make(chan struct{}, 1)}
}

func (s *lineSink) readyGate() *gate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *lineSink) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format+"\n", args...)
}

func (s *lineSink) MessageOpened(path string, kind render.CellKind, chunk, chunks int) {
	s.mu.Lock()
	s.ready = newGate()
	s.mu.Unlock()
	s.printf("OPENED %s kind=%d chunk=%d/%d", path, kind, chunk+1, chunks)
}

func (s *lineSink) PlaybackState(st playback.State) {
	if st.PlaybackEnabled {
		s.readyGate().open()
	}
}

func (s *lineSink) PlaybackFailed(err error) {
	s.printf("DECODE_FAILED %v", err)
	s.readyGate().open()
}

func (s *lineSink) Transcription(t transcriber.Transcription, copied bool) {
	s.printf("TRANSCRIPTION lang=%s cached=%t copied=%t %s", t.Language, t.Cached, copied, t.Text)
	s.signalTranscript()
}

func (s *lineSink) TranscriptionFailed(err error) {
	s.printf("TRANSCRIPTION_FAILED %v", err)
	s.signalTranscript()
}

func (s *lineSink) signalTranscript() {
	select {
	case s.transcript <- struct{}{}:
	default:
	}
}

func (s *lineSink) RecordingStart(broadcast bool) {
	s.printf("RECORDING broadcast=%t", broadcast)
}

func (s *lineSink) RecordingStop(res record.Result, err error) {
	if err != nil {
		s.printf("RECORDED error=%v", err)
		return
	}
	s.printf("RECORDED files=%d duration=%.1fs reason=%s", len(res.Files), res.Duration.Seconds(), res.Reason)
}

func (s *lineSink) RecordingTick(time.Duration, int) {}

func (s *lineSink) AudioLevel(float64) {}

func (s *lineSink) Silence(ev record.SilenceEvent) {
	s.printf("SILENCE %s", ev)
}

// waitReady blocks until the open message has loaded or failed to.
func (s *lineSink) waitReady(timeout time.Duration) bool {
	select {
	case <-s.readyGate().ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

func formatState(st playback.State) string {
	return fmt.Sprintf("STATE phase=%s progress=%.3f label=%s playing=%t enabled=%t recording=%t loading=%t samples=%d",
		st.Phase, st.Progress, st.ElapsedLabel, st.Playing, st.PlaybackEnabled, st.Recording, st.Loading, st.Samples.Len())
}

// runTestMode drives the app headless from commands on stdin. Audio devices
// are fakes: captures replay the message file and outputs run in real time.
func runTestMode(cfg config.Config) {
	fakeCtx, err := audio.NewFakeContext(cfg.File, true)
	if err != nil {
		// An undecodable message still runs; captures are silent.
		fakeCtx, _ = audio.NewFakeContext("", true)
	}

	tr, err := newTestTranscriber(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sink := newLineSink(os.Stdout)
	a := newApp(cfg, fakeCtx, tr, sink)
	name := "none"
	if tr != nil {
		name = tr.Name()
	}
	log.SessionStart(name, "flac", cfg.Language)

	if cfg.File != "" {
		a.Open(cfg.File, render.CellVoiceMessage)
	}
	if cfg.Record {
		if err := a.StartRecording(); err != nil {
			sink.printf("ERROR %v", err)
		}
	}

	code := driveTestMode(a, sink, os.Stdin)
	a.Close()
	log.Close()
	os.Exit(code)
}

func newTestTranscriber(cfg config.Config) (transcriber.Transcriber, error) {
	switch cfg.Provider {
	case "", config.ProviderFake:
		text := os.Getenv("VOX_FAKE_TRANSCRIPT")
		if text == "" {
			text = defaultFakeTranscript
		}
		return transcriber.NewFake(text, nil), nil
	}
	return newTranscriber(cfg)
}

func driveTestMode(a *app, sink *lineSink, in io.Reader) int {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		arg := func(i int) float64 {
			if i >= len(fields) {
				return 0
			}
			v, _ := strconv.ParseFloat(fields[i], 64)
			return v
		}

		switch strings.ToUpper(fields[0]) {
		case "PLAY":
			a.TogglePlayback()
		case "SEEK":
			a.Seek(arg(1))
		case "PRESS":
			a.Press(arg(1), arg(2))
		case "DRAG":
			a.Drag(arg(1))
		case "RELEASE":
			a.Release()
		case "CANCEL":
			a.Cancel()
		case "WIDTH":
			a.WidthChanged(arg(1))
		case "TRANSCRIBE":
			if err := a.Transcribe(); err != nil {
				sink.printf("REJECTED %v", err)
			}
		case "WAIT_TRANSCRIPT":
			select {
			case <-sink.transcript:
			case <-time.After(10 * time.Second):
				sink.printf("TIMEOUT transcript")
			}
		case "RECORD":
			if err := a.ToggleRecording(); err != nil {
				sink.printf("ERROR %v", err)
			}
		case "WAIT_RECORD":
			a.WaitRecording()
		case "WAIT_READY":
			if !sink.waitReady(10 * time.Second) {
				sink.printf("TIMEOUT ready")
			}
		case "CHUNK":
			a.Chunk(int(arg(1)), false)
		case "SLEEP":
			time.Sleep(time.Duration(arg(1)) * time.Millisecond)
		case "STATE":
			a.Flush()
			st, ok := a.State()
			if !ok {
				sink.printf("STATE none")
				continue
			}
			sink.printf("%s", formatState(st))
		case "ARMED":
			sink.printf("ARMED %t", a.Armed())
		case "QUIT":
			return 0
		default:
			sink.printf("UNKNOWN %s", fields[0])
		}
	}
	return 0
}
