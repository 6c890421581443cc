package transcriber

import "runtime"

func (r *SessionResult) captureMemStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	r.MemoryAllocMB = float64(m.Alloc) / 1024 / 1024
	r.MemoryPeakMB = float64(m.TotalAlloc) / 1024 / 1024
}

type SessionConfig struct {
	Format   string // only "flac"
	Language string
}

type BatchStats struct {
	AudioLengthS     float64
	RawSizeKB        float64
	CompressedSizeKB float64
	CompressionPct   float64
	EncodeTimeMs     float64
	DNSTimeMs        float64
	TLSTimeMs        float64
	TTFBMs           float64
	TotalTimeMs      float64
	ConnReused       bool
	TLSProtocol      string
	Confidence       float64
}

type SessionResult struct {
	Text          string
	HasText       bool
	NoSpeech      bool
	Language      string
	RateLimit     string // "remaining/limit" or empty
	MemoryAllocMB float64
	MemoryPeakMB  float64
	Batch         *BatchStats
	Metrics       []string // pre-formatted lines for the TUI
}

// Session accumulates 16 kHz mono PCM and transcribes it on Close.
type Session interface {
	Feed(pcm []int16)
	Close() (SessionResult, error)
}
