package audio

import (
	"sync"
	"time"

	"vox/encoder"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext stands in for the sound server in tests and -test mode. Its
// capture devices replay a fixed clip; its outputs consume PCM without
// producing sound.
type FakeContext struct {
	pcm      []byte
	realtime bool

	mu      sync.Mutex
	outputs []*FakeOutput
}

// NewFakeContext loads the clip captures will replay. It is resampled to
// the capture rate.
func NewFakeContext(clipPath string, realtime bool) (*FakeContext, error) {
	var data []byte
	if clipPath != "" {
		pcm, err := Decode(clipPath)
		if err != nil {
			return nil, err
		}
		data = Resample(pcm, encoder.SampleRate).Bytes()
	}
	return &FakeContext{pcm: data, realtime: realtime}, nil
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) OutputDevices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake-out", Name: "fake speaker"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return &FakeCapture{pcm: f.pcm, realtime: f.realtime, audioDone: make(chan struct{})}, nil
}

func (f *FakeContext) NewOutput(config OutputConfig) (OutputDevice, error) {
	out := NewFakeOutput(config, f.realtime)
	f.mu.Lock()
	f.outputs = append(f.outputs, out)
	f.mu.Unlock()
	return out, nil
}

// LastOutput returns the most recently opened output, or nil.
func (f *FakeContext) LastOutput() *FakeOutput {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.outputs) == 0 {
		return nil
	}
	return f.outputs[len(f.outputs)-1]
}

type FakeCapture struct {
	pcm       []byte
	realtime  bool
	audioDone chan struct{}

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
}

// AudioDone is closed once the whole clip has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
	return end
}

func (f *FakeCapture) Start() error {
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	// audioDone is reset in Stop, not here; callers may already wait on it.

	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	interval := time.Millisecond
	if f.realtime {
		interval = time.Duration(fakeFrameSize) * time.Second / time.Duration(encoder.SampleRate)
	}

	go func() {
		defer close(f.feedDone)
		pos := 0
		silence := make([]byte, chunkBytes)
		finished := false
		for {
			select {
			case <-f.stopCh:
				return
			default:
			}

			if cb := f.callback(); cb != nil {
				if pos < len(f.pcm) {
					pos = f.feedChunk(cb, pos, chunkBytes)
				} else {
					if !finished {
						finished = true
						close(f.audioDone)
					}
					cb(silence, fakeFrameSize)
				}
			}

			select {
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.feedDone
	f.audioDone = make(chan struct{}) // reset for replay
}

func (f *FakeCapture) Close() {}

// FakeOutput consumes PCM from its source. In realtime mode a goroutine
// pulls at the configured sample rate; otherwise tests step it with Advance.
type FakeOutput struct {
	config   OutputConfig
	realtime bool

	mu       sync.Mutex
	src      SampleSource
	consumed int
	stop     chan struct{}
	done     chan struct{}
	closed   bool
}

func NewFakeOutput(config OutputConfig, realtime bool) *FakeOutput {
	return &FakeOutput{config: config, realtime: realtime}
}

func (o *FakeOutput) Start(src SampleSource) error {
	o.Stop()
	o.mu.Lock()
	o.src = src
	if o.realtime {
		o.stop = make(chan struct{})
		o.done = make(chan struct{})
		go o.feed(o.stop, o.done)
	}
	o.mu.Unlock()
	return nil
}

func (o *FakeOutput) feed(stop, done chan struct{}) {
	defer close(done)
	const tick = 20 * time.Millisecond
	chunk := max(int(o.config.SampleRate)*int(tick/time.Millisecond)/1000, 1)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		if o.Advance(chunk) == 0 {
			return
		}
	}
}

// Advance pulls up to n samples from the running source and returns how
// many it produced. A stopped output produces nothing.
func (o *FakeOutput) Advance(n int) int {
	o.mu.Lock()
	src := o.src
	o.mu.Unlock()
	if src == nil {
		return 0
	}
	got := src(make([]int16, n))
	o.mu.Lock()
	o.consumed += got
	if got == 0 && o.src != nil {
		o.src = nil
	}
	o.mu.Unlock()
	return got
}

func (o *FakeOutput) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.src != nil
}

// Consumed is the total number of samples pulled so far.
func (o *FakeOutput) Consumed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.consumed
}

func (o *FakeOutput) SampleRate() uint32 { return o.config.SampleRate }

// Device is the sink the output was opened on; nil means the default.
func (o *FakeOutput) Device() *DeviceInfo { return o.config.Device }

func (o *FakeOutput) Stop() {
	o.mu.Lock()
	o.src = nil
	stop, done := o.stop, o.done
	o.stop, o.done = nil, nil
	o.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
}

func (o *FakeOutput) Close() {
	o.Stop()
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

func (o *FakeOutput) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
