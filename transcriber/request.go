package transcriber

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"vox/log"
)

var (
	ErrTranscriptionInProgress = errors.New("transcription already in progress")
	ErrNoTranscription         = errors.New("no speech in recording")
	ErrRequesterClosed         = errors.New("requester closed")
)

const DefaultRequestTimeout = 60 * time.Second

// Audio is one voice message ready for transcription.
type Audio struct {
	// Digest identifies the source file; it keys the cache.
	Digest string
	// PCM is 16 kHz mono.
	PCM []int16
}

// AudioSource supplies the audio to transcribe when a request starts.
type AudioSource func(ctx context.Context) (Audio, error)

type Transcription struct {
	Digest       string
	Text         string
	Language     string
	LanguageName string
	Provider     string
	Cached       bool
}

// Cache remembers transcriptions across runs.
type Cache interface {
	Lookup(ctx context.Context, digest string) (Transcription, bool, error)
	Save(ctx context.Context, t Transcription) error
}

type RequesterOptions struct {
	Cache    Cache
	Timeout  time.Duration
	Language string
}

// Requester runs at most one transcription at a time for a voice message
// and delivers successful results on Results. Failures are logged and
// reported on Failures without detail beyond the error.
type Requester struct {
	tr      Transcriber
	src     AudioSource
	cache   Cache
	timeout time.Duration
	lang    string

	results  chan Transcription
	failures chan error
	inFlight atomic.Bool

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
	// gen changes on Close; a result from an older generation is dropped.
	gen atomic.Uint64
}

func NewRequester(tr Transcriber, src AudioSource, opts RequesterOptions) *Requester {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Requester{
		tr:       tr,
		src:      src,
		cache:    opts.Cache,
		timeout:  timeout,
		lang:     opts.Language,
		results:  make(chan Transcription, 1),
		failures: make(chan error, 1),
	}
}

func (r *Requester) Results() <-chan Transcription { return r.results }

// Failures receives one error per failed request, for hosts that show a
// "no transcription available" status.
func (r *Requester) Failures() <-chan error { return r.failures }

// InFlight reports whether a request is running.
func (r *Requester) InFlight() bool { return r.inFlight.Load() }

// Available reports whether a provider is configured.
func (r *Requester) Available() bool { return r != nil && r.tr != nil }

// Request starts a transcription and returns immediately. It fails with
// ErrTranscriptionInProgress while an earlier request is still running.
func (r *Requester) Request(ctx context.Context) error {
	if !r.Available() {
		return ErrNoProvider
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRequesterClosed
	}
	if !r.inFlight.CompareAndSwap(false, true) {
		return ErrTranscriptionInProgress
	}
	gen := r.gen.Load()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	r.cancel = cancel
	go func() {
		t, err := r.run(ctx)
		cancel()
		r.inFlight.Store(false)

		if r.gen.Load() != gen {
			log.Info("transcription discarded after close")
			return
		}
		if err != nil {
			log.Warnf("transcription failed: %v", err)
			select {
			case r.failures <- err:
			default:
			}
			return
		}
		select {
		case r.results <- t:
		default:
			// An undelivered result is still pending; keep the older one.
			log.Warn("transcription result dropped")
		}
	}()
	return nil
}

func (r *Requester) run(ctx context.Context) (Transcription, error) {
	audio, err := r.src(ctx)
	if err != nil {
		return Transcription{}, err
	}

	if r.cache != nil && audio.Digest != "" {
		t, ok, err := r.cache.Lookup(ctx, audio.Digest)
		if err != nil {
			log.Warnf("transcription cache lookup: %v", err)
		} else if ok {
			t.Cached = true
			log.TranscriptionResult(audio.Digest, t.Provider, t.Language, true, nil)
			return t, nil
		}
	}

	res, err := Transcribe(ctx, r.tr, audio.PCM, r.lang)
	if err != nil {
		log.TranscriptionResult(audio.Digest, r.tr.Name(), r.lang, false, err)
		return Transcription{}, err
	}
	if !res.HasText {
		return Transcription{}, ErrNoTranscription
	}

	t := Transcription{
		Digest:   audio.Digest,
		Text:     res.Text,
		Language: r.lang,
		Provider: r.tr.Name(),
	}
	if t.Language == "" {
		t.Language = res.Language
	}
	if t.Language == "" && ctx.Err() == nil {
		t.Language, _ = DetectLanguage(res.Text)
	}
	if t.Language != "" {
		t.LanguageName = LanguageName(t.Language)
	}

	log.TranscriptionText(t.Text)
	log.TranscriptionResult(t.Digest, t.Provider, t.Language, false, nil)

	if r.cache != nil && t.Digest != "" {
		if err := r.cache.Save(ctx, t); err != nil {
			log.Warnf("transcription cache save: %v", err)
		}
	}
	return t, nil
}

// Close cancels a running request and makes its result disappear. It does
// not wait for the request goroutine to return.
func (r *Requester) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.gen.Add(1)
	if r.cancel != nil {
		r.cancel()
	}
}
