package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"vox/audio"
	"vox/beep"
	"vox/clipboard"
	"vox/config"
	"vox/encoder"
	"vox/log"
	"vox/playback"
	"vox/record"
	"vox/render"
	"vox/seek"
	"vox/store"
	"vox/transcriber"
	"vox/waveform"
)

var (
	errNotLoaded     = errors.New("voice message not loaded")
	errNoMessage     = errors.New("no voice message open")
	errRecordingBusy = errors.New("recording in progress")
)

// message is one open voice message with its playback pipeline.
type message struct {
	path   string
	kind   render.CellKind
	engine *audio.Engine
	ctrl   *playback.Controller
	interp *seek.Interpreter
	req    *transcriber.Requester

	quit chan struct{}
	wg   sync.WaitGroup

	// Owned by app.mu.
	autoplay     bool
	wasPlaying   bool
	pausedByUser bool
}

func (m *message) close() {
	close(m.quit)
	m.req.Close()
	m.interp.Close()
	m.wg.Wait()
	m.ctrl.Close()
	m.engine.Close()
}

// app wires the voice message pipeline to the audio devices, storage and a
// display sink. All exported-style methods are safe to call from the UI
// goroutine.
type app struct {
	cfg   config.Config
	actx  audio.Context
	cache *waveform.Cache
	store *store.Store
	tr    transcriber.Transcriber
	cues  *beep.Player
	sink  EventSink

	device *audio.DeviceInfo
	output *audio.DeviceInfo

	mu      sync.Mutex
	msg     *message
	chunks  []string
	chunk   int
	stopRec chan struct{}
	recDone chan struct{}
}

func newApp(cfg config.Config, actx audio.Context, tr transcriber.Transcriber, sink EventSink) *app {
	a := &app{
		cfg:  cfg,
		actx: actx,
		tr:   tr,
		sink: sink,
		cues: beep.New(actx),
	}
	if cfg.NoBeep || cfg.Test {
		a.cues.Disable()
	}

	if !cfg.NoCache {
		c, err := waveform.OpenCache(cfg.CachePath)
		if err != nil {
			log.Warnf("waveform cache disabled: %v", err)
		} else {
			a.cache = c
		}
	}
	if tr != nil {
		if cfg.Language == "" {
			go transcriber.WarmLanguageDetector()
		}
		st, err := store.Open(cfg.StorePath)
		if err != nil {
			log.Warnf("transcription store disabled: %v", err)
		} else {
			a.store = st
		}
	}
	return a
}

// Close tears down the open message and releases storage.
func (a *app) Close() {
	a.StopRecording()
	a.WaitRecording()

	a.mu.Lock()
	m := a.msg
	a.msg = nil
	a.mu.Unlock()
	if m != nil {
		m.close()
	}
	a.cues.Wait()
	if a.cache != nil {
		a.cache.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

func (a *app) transcriptionAvailable() bool { return a.tr != nil }

// Open replaces the current voice message with the file at path.
func (a *app) Open(path string, kind render.CellKind) {
	a.open(path, kind, false)
}

func (a *app) open(path string, kind render.CellKind, autoplay bool) {
	m := &message{
		path:     path,
		kind:     kind,
		engine:   audio.NewEngine(a.actx, path, audio.EngineOptions{Cache: a.cache, Output: a.output}),
		interp:   seek.New(a.cfg.Hold, a.cfg.Slop),
		quit:     make(chan struct{}),
		autoplay: autoplay,
	}
	m.ctrl = playback.NewController(m.engine, playback.Options{SampleSpacing: a.cfg.Spacing})

	var cache transcriber.Cache
	if a.store != nil {
		cache = storeCache{a.store}
	}
	m.req = transcriber.NewRequester(a.tr, pcmSource(m.engine), transcriber.RequesterOptions{
		Cache:    cache,
		Timeout:  a.cfg.Timeout,
		Language: a.cfg.Language,
	})

	a.mu.Lock()
	old := a.msg
	a.msg = m
	chunk, chunks := a.chunk, len(a.chunks)
	a.mu.Unlock()
	if old != nil {
		old.close()
	}

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		for p := range m.interp.Seeks() {
			m.ctrl.Seek(p)
		}
	}()
	go func() {
		defer m.wg.Done()
		a.forward(m)
	}()

	a.sink.MessageOpened(path, kind, chunk, chunks)
	m.ctrl.Load()
}

func (a *app) forward(m *message) {
	for {
		select {
		case <-m.quit:
			return
		case s := <-m.ctrl.Updates():
			a.onState(m, s)
		case err := <-m.ctrl.Failures():
			a.sink.PlaybackFailed(err)
		case t := <-m.req.Results():
			a.onTranscription(t)
		case err := <-m.req.Failures():
			a.sink.TranscriptionFailed(err)
		}
	}
}

func (a *app) onState(m *message, s playback.State) {
	a.sink.PlaybackState(s)

	a.mu.Lock()
	ended := m.wasPlaying && !s.Playing && !m.pausedByUser && !s.Recording
	m.wasPlaying = s.Playing
	if s.Playing {
		m.pausedByUser = false
	}
	play := m.autoplay && s.PlaybackEnabled && !s.Playing
	if play {
		m.autoplay = false
	}
	next := ended && m.kind == render.CellBroadcastPlayback && a.chunk+1 < len(a.chunks)
	a.mu.Unlock()

	if play {
		m.ctrl.TogglePlayback()
	}
	if next {
		// open waits for this goroutine, so switch chunks from another one
		go a.Chunk(1, true)
	}
}

func (a *app) onTranscription(t transcriber.Transcription) {
	copied := false
	if a.cfg.Copy && t.Text != "" {
		if err := clipboard.Copy(t.Text); err != nil {
			log.Warnf("clipboard copy: %v", err)
		} else {
			copied = true
		}
	}
	a.sink.Transcription(t, copied)
}

func (a *app) current() *message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.msg
}

// State is the latest snapshot of the open message, or the zero state.
func (a *app) State() (playback.State, bool) {
	m := a.current()
	if m == nil {
		return playback.State{}, false
	}
	return m.ctrl.State(), true
}

// Flush waits until commands sent so far have been applied.
func (a *app) Flush() {
	if m := a.current(); m != nil {
		m.ctrl.Flush()
	}
}

func (a *app) TogglePlayback() {
	m := a.current()
	if m == nil {
		return
	}
	a.mu.Lock()
	m.pausedByUser = m.ctrl.State().Playing
	a.mu.Unlock()
	m.ctrl.TogglePlayback()
}

func (a *app) Seek(progress float64) {
	if m := a.current(); m != nil {
		m.ctrl.Seek(progress)
	}
}

// SeekBy moves the playhead by delta of the whole message.
func (a *app) SeekBy(delta float64) {
	if m := a.current(); m != nil {
		m.ctrl.Seek(playback.Clamp(m.ctrl.State().Progress + delta))
	}
}

// WidthChanged reports the waveform's width in points.
func (a *app) WidthChanged(points float64) {
	if m := a.current(); m != nil {
		m.ctrl.WidthChanged(points)
	}
}

func (a *app) Press(x, width float64) {
	if m := a.current(); m != nil {
		m.interp.Press(x, width)
	}
}

func (a *app) Drag(x float64) {
	if m := a.current(); m != nil {
		m.interp.Drag(x)
	}
}

func (a *app) Release() {
	if m := a.current(); m != nil {
		m.interp.Release()
	}
}

func (a *app) Cancel() {
	if m := a.current(); m != nil {
		m.interp.Cancel()
	}
}

// Armed reports whether a held press is steering playback.
func (a *app) Armed() bool {
	m := a.current()
	return m != nil && m.interp.Armed()
}

// Transcribe asks for a transcription of the open message. The result
// arrives on the sink.
func (a *app) Transcribe() error {
	m := a.current()
	if m == nil {
		return errNoMessage
	}
	return m.req.Request(context.Background())
}

// Chunk moves through the chunks of a recorded voice broadcast.
func (a *app) Chunk(delta int, autoplay bool) {
	a.mu.Lock()
	if len(a.chunks) == 0 || a.stopRec != nil {
		a.mu.Unlock()
		return
	}
	i := a.chunk + delta
	if i < 0 || i >= len(a.chunks) {
		a.mu.Unlock()
		return
	}
	a.chunk = i
	path := a.chunks[i]
	a.mu.Unlock()
	a.open(path, render.CellBroadcastPlayback, autoplay)
}

// Recording reports whether a recording is running.
func (a *app) Recording() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopRec != nil
}

// ToggleRecording starts a recording, or stops the running one.
func (a *app) ToggleRecording() error {
	if a.Recording() {
		a.StopRecording()
		return nil
	}
	return a.StartRecording()
}

func (a *app) StartRecording() error {
	a.mu.Lock()
	if a.stopRec != nil {
		a.mu.Unlock()
		return errRecordingBusy
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	a.stopRec, a.recDone = stop, done
	m := a.msg
	a.mu.Unlock()

	dir := filepath.Join(a.cfg.DataDir, "recordings")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		a.clearRecording()
		close(done)
		return err
	}
	capture, err := a.actx.NewCapture(a.device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		a.clearRecording()
		close(done)
		return fmt.Errorf("open capture: %w", err)
	}

	var indicator record.Indicator
	if m != nil {
		indicator = m.ctrl
	}
	rec := record.New(capture, indicator, record.Options{
		Dir:         dir,
		Broadcast:   a.cfg.Broadcast,
		ChunkLength: a.cfg.ChunkLength,
		MaxLength:   a.cfg.MaxLength,
		AutoStop:    a.cfg.AutoStop,
	})

	a.cues.Play(beep.Start)
	a.sink.RecordingStart(a.cfg.Broadcast)

	go func() {
		defer close(done)
		ended := make(chan struct{})
		relayed := make(chan struct{})
		go func() {
			defer close(relayed)
			a.relayRecorder(rec, ended)
		}()

		res, err := rec.Record(stop)
		capture.Close()
		close(ended)
		<-relayed
		a.clearRecording()

		if err != nil {
			a.cues.Play(beep.Error)
			log.Errorf("recording error: %v", err)
		} else {
			a.cues.Play(beep.End)
		}
		a.sink.RecordingStop(res, err)
		a.finishRecording(res)
	}()
	return nil
}

// relayRecorder forwards recorder events until the recording has ended.
func (a *app) relayRecorder(rec *record.Recorder, ended <-chan struct{}) {
	chunks := 0
	for {
		select {
		case ev := <-rec.Events():
			switch ev.Kind {
			case record.EventLevel:
				a.sink.AudioLevel(ev.Level)
			case record.EventTick:
				a.sink.RecordingTick(ev.Elapsed, chunks)
			case record.EventChunk:
				chunks++
			case record.EventSilence:
				if ev.Silence == record.SilenceWarn || ev.Silence == record.SilenceRepeat {
					a.cues.Play(beep.Warn)
				}
				a.sink.Silence(ev.Silence)
			}
		case <-ended:
			return
		}
	}
}

func (a *app) clearRecording() {
	a.mu.Lock()
	a.stopRec = nil
	a.mu.Unlock()
}

// StopRecording ends the running recording. It does not wait for the files
// to be written.
func (a *app) StopRecording() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopRec == nil {
		return
	}
	select {
	case <-a.stopRec:
	default:
		close(a.stopRec)
	}
}

// WaitRecording blocks until the last recording has been written and
// opened.
func (a *app) WaitRecording() {
	a.mu.Lock()
	done := a.recDone
	a.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (a *app) finishRecording(res record.Result) {
	if len(res.Files) == 0 {
		return
	}
	if a.cfg.Broadcast {
		a.mu.Lock()
		a.chunks = res.Files
		a.chunk = 0
		a.mu.Unlock()
		a.Open(res.Files[0], render.CellBroadcastPlayback)
		return
	}
	a.mu.Lock()
	a.chunks = nil
	a.chunk = 0
	a.mu.Unlock()
	a.Open(res.Files[0], render.CellVoiceMessage)
}

// pcmSource hands the requester the decoded message at the transcription
// rate.
func pcmSource(e *audio.Engine) transcriber.AudioSource {
	return func(context.Context) (transcriber.Audio, error) {
		pcm, ok := e.PCM()
		if !ok {
			return transcriber.Audio{}, errNotLoaded
		}
		return transcriber.Audio{
			Digest: e.Digest(),
			PCM:    audio.Resample(pcm, encoder.SampleRate).Samples,
		}, nil
	}
}

// storeCache serves transcriptions from the SQLite store.
type storeCache struct{ st *store.Store }

func (c storeCache) Lookup(ctx context.Context, digest string) (transcriber.Transcription, bool, error) {
	r, err := c.st.Lookup(ctx, digest)
	if errors.Is(err, store.ErrNotFound) {
		return transcriber.Transcription{}, false, nil
	}
	if err != nil {
		return transcriber.Transcription{}, false, err
	}
	t := transcriber.Transcription{
		Digest:   r.Digest,
		Text:     r.Text,
		Language: r.Language,
		Provider: r.Provider,
	}
	if t.Language != "" {
		t.LanguageName = transcriber.LanguageName(t.Language)
	}
	return t, true, nil
}

func (c storeCache) Save(ctx context.Context, t transcriber.Transcription) error {
	_, err := c.st.Save(ctx, store.Record{
		Digest:   t.Digest,
		Provider: t.Provider,
		Language: t.Language,
		Text:     t.Text,
	})
	return err
}
