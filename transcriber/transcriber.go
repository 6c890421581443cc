// Package transcriber turns recorded speech into text using a hosted
// speech-to-text provider.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrNoProvider = errors.New("no transcription provider configured")

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Result struct {
	Text         string
	Metrics      *NetworkMetrics
	RateLimit    string
	Confidence   float64
	NoSpeechProb float64
	Duration     float64
	// Language is the provider's detected language, if it reports one.
	Language string
}

type Transcriber interface {
	Name() string
	SetLanguage(lang string)
	GetLanguage() string
	NewSession(ctx context.Context, cfg SessionConfig) (Session, error)
}

type baseTranscriber struct {
	client *TracedClient
	apiURL string
	lang   string
}

func (b *baseTranscriber) SetLanguage(lang string) { b.lang = lang }

func (b *baseTranscriber) GetLanguage() string { return b.lang }

// Keys holds provider API keys; empty means unavailable.
type Keys struct {
	Groq     string
	Deepgram string
	OpenAI   string
}

// New returns the named provider. An empty name picks the first provider
// with a key, in the order deepgram, groq, openai.
func New(provider string, keys Keys) (Transcriber, error) {
	switch provider {
	case "":
		switch {
		case keys.Deepgram != "":
			return NewDeepgram(keys.Deepgram), nil
		case keys.Groq != "":
			return NewGroq(keys.Groq), nil
		case keys.OpenAI != "":
			return NewOpenAI(keys.OpenAI), nil
		}
		return nil, fmt.Errorf("%w: set DEEPGRAM_API_KEY, GROQ_API_KEY or OPENAI_API_KEY", ErrNoProvider)
	case "deepgram":
		if keys.Deepgram == "" {
			return nil, fmt.Errorf("%w: DEEPGRAM_API_KEY not set", ErrNoProvider)
		}
		return NewDeepgram(keys.Deepgram), nil
	case "groq":
		if keys.Groq == "" {
			return nil, fmt.Errorf("%w: GROQ_API_KEY not set", ErrNoProvider)
		}
		return NewGroq(keys.Groq), nil
	case "openai":
		if keys.OpenAI == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", ErrNoProvider)
		}
		return NewOpenAI(keys.OpenAI), nil
	}
	return nil, fmt.Errorf("unknown provider %q", provider)
}

// Transcribe runs one batch session over 16 kHz mono PCM.
func Transcribe(ctx context.Context, tr Transcriber, pcm []int16, lang string) (SessionResult, error) {
	sess, err := tr.NewSession(ctx, SessionConfig{Format: "flac", Language: lang})
	if err != nil {
		return SessionResult{}, err
	}
	sess.Feed(pcm)
	return sess.Close()
}
