package transcriber

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type FakeTranscriber struct {
	text  string
	err   error
	delay time.Duration
	calls atomic.Int32

	mu   sync.Mutex
	lang string
}

func NewFake(text string, err error) *FakeTranscriber {
	return &FakeTranscriber{text: text, err: err}
}

// WithDelay makes every session take d to close, or until its context ends.
func (f *FakeTranscriber) WithDelay(d time.Duration) *FakeTranscriber {
	f.delay = d
	return f
}

func (f *FakeTranscriber) Name() string { return "fake" }

func (f *FakeTranscriber) SetLanguage(lang string) {
	f.mu.Lock()
	f.lang = lang
	f.mu.Unlock()
}

func (f *FakeTranscriber) GetLanguage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lang
}

// Calls counts sessions that reached Close.
func (f *FakeTranscriber) Calls() int { return int(f.calls.Load()) }

func (f *FakeTranscriber) NewSession(ctx context.Context, _ SessionConfig) (Session, error) {
	return &fakeSession{ctx: ctx, f: f}, nil
}

type fakeSession struct {
	ctx     context.Context
	f       *FakeTranscriber
	samples int
}

func (s *fakeSession) Feed(pcm []int16) { s.samples += len(pcm) }

func (s *fakeSession) Close() (SessionResult, error) {
	s.f.calls.Add(1)
	if s.f.delay > 0 {
		select {
		case <-time.After(s.f.delay):
		case <-s.ctx.Done():
			return SessionResult{}, s.ctx.Err()
		}
	}
	if s.f.err != nil {
		return SessionResult{}, fmt.Errorf("fake transcriber error: %w", s.f.err)
	}
	r := SessionResult{
		Text:     s.f.text,
		HasText:  s.f.text != "",
		NoSpeech: s.f.text == "",
		Batch: &BatchStats{
			AudioLengthS: float64(s.samples) / 16000,
			TotalTimeMs:  10,
		},
		Metrics: []string{"total: 10ms (fake)"},
	}
	r.captureMemStats()
	return r, nil
}
