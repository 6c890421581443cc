package playback

import (
	"fmt"
	"sync"
)

// FakeBackend records commands and lets tests inject events.
type FakeBackend struct {
	events chan Event

	mu    sync.Mutex
	calls []string
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{events: make(chan Event, 16)}
}

func (f *FakeBackend) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *FakeBackend) Load()                 { f.record("load") }
func (f *FakeBackend) Play()                 { f.record("play") }
func (f *FakeBackend) Pause()                { f.record("pause") }
func (f *FakeBackend) Seek(progress float64) { f.record(fmt.Sprintf("seek %.2f", progress)) }
func (f *FakeBackend) Resample(count int)    { f.record(fmt.Sprintf("resample %d", count)) }
func (f *FakeBackend) Events() <-chan Event  { return f.events }

// Emit delivers ev to the controller as if the engine produced it.
func (f *FakeBackend) Emit(ev Event) { f.events <- ev }

// Calls returns the commands received so far.
func (f *FakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *FakeBackend) Reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}
