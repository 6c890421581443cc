package transcriber

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"vox/encoder"
	"vox/log"
)

type transcribeFunc func(ctx context.Context, audio []byte, format string) (*Result, error)

// batchSession encodes blocks on a goroutine while audio is still being fed
// and uploads once on Close.
type batchSession struct {
	ctx        context.Context
	provider   string
	cfg        SessionConfig
	transcribe transcribeFunc
	encoder    encoder.Encoder
	blockChan  chan []int16
	encodeDone chan struct{}
	encodeErr  error
	sampleBuf  []int16
	bufMu      sync.Mutex
}

func newBatchSession(ctx context.Context, provider string, cfg SessionConfig, transcribe transcribeFunc) (*batchSession, error) {
	if cfg.Format == "" {
		cfg.Format = "flac"
	}
	enc, err := newEncoder(cfg.Format)
	if err != nil {
		return nil, err
	}

	bs := &batchSession{
		ctx:        ctx,
		provider:   provider,
		cfg:        cfg,
		transcribe: transcribe,
		encoder:    enc,
		blockChan:  make(chan []int16, 64),
		encodeDone: make(chan struct{}),
	}

	go func() {
		defer close(bs.encodeDone)
		for block := range bs.blockChan {
			start := time.Now()
			if err := bs.encoder.EncodeBlock(block); err != nil && bs.encodeErr == nil {
				bs.encodeErr = err
			}
			bs.encoder.AddEncodeTime(time.Since(start))
		}
	}()

	log.SessionStart(provider, cfg.Format, cfg.Language)
	return bs, nil
}

func (bs *batchSession) Feed(pcm []int16) {
	bs.bufMu.Lock()
	bs.sampleBuf = append(bs.sampleBuf, pcm...)
	var blocks [][]int16
	for len(bs.sampleBuf) >= encoder.BlockSize {
		block := make([]int16, encoder.BlockSize)
		copy(block, bs.sampleBuf[:encoder.BlockSize])
		bs.sampleBuf = bs.sampleBuf[encoder.BlockSize:]
		blocks = append(blocks, block)
	}
	bs.bufMu.Unlock()

	for _, block := range blocks {
		bs.blockChan <- block
	}
}

func (bs *batchSession) Close() (SessionResult, error) {
	bs.bufMu.Lock()
	if len(bs.sampleBuf) > 0 {
		partial := make([]int16, len(bs.sampleBuf))
		copy(partial, bs.sampleBuf)
		bs.blockChan <- partial
		bs.sampleBuf = nil
	}
	bs.bufMu.Unlock()

	close(bs.blockChan)
	<-bs.encodeDone
	if bs.encodeErr != nil {
		return SessionResult{}, fmt.Errorf("encode: %w", bs.encodeErr)
	}

	if err := bs.encoder.Close(); err != nil {
		return SessionResult{}, err
	}

	result, err := bs.transcribe(bs.ctx, bs.encoder.Bytes(), bs.cfg.Format)
	if err != nil {
		return SessionResult{}, err
	}
	if result.Metrics == nil {
		result.Metrics = &NetworkMetrics{}
	}

	text := strings.TrimSpace(result.Text)

	enc := bs.encoder
	rawSize := enc.TotalFrames() * 2
	encodedSize := uint64(len(enc.Bytes()))
	var compressionPct float64
	if rawSize > 0 {
		compressionPct = (1.0 - float64(encodedSize)/float64(rawSize)) * 100
	}
	audioDuration := float64(enc.TotalFrames()) / float64(encoder.SampleRate)
	netMetrics := result.Metrics

	sr := SessionResult{
		Text:      text,
		HasText:   text != "",
		NoSpeech:  text == "",
		Language:  result.Language,
		RateLimit: result.RateLimit,
		Batch: &BatchStats{
			AudioLengthS:     audioDuration,
			RawSizeKB:        float64(rawSize) / 1024,
			CompressedSizeKB: float64(encodedSize) / 1024,
			CompressionPct:   compressionPct,
			EncodeTimeMs:     float64(enc.EncodeTime().Milliseconds()),
			DNSTimeMs:        float64(netMetrics.DNS.Milliseconds()),
			TLSTimeMs:        float64(netMetrics.TLS.Milliseconds()),
			TTFBMs:           float64(netMetrics.TTFB.Milliseconds()),
			TotalTimeMs:      float64(netMetrics.Sum().Milliseconds()),
			ConnReused:       netMetrics.ConnReused,
			TLSProtocol:      netMetrics.TLSProtocol,
			Confidence:       result.Confidence,
		},
		Metrics: bs.formatMetrics(rawSize, encodedSize, compressionPct, audioDuration, result),
	}
	sr.captureMemStats()

	b := sr.Batch
	log.TranscriptionMetrics(log.Metrics{
		AudioLengthS:     b.AudioLengthS,
		RawSizeKB:        b.RawSizeKB,
		CompressedSizeKB: b.CompressedSizeKB,
		CompressionPct:   b.CompressionPct,
		EncodeTimeMs:     b.EncodeTimeMs,
		DNSTimeMs:        b.DNSTimeMs,
		TLSTimeMs:        b.TLSTimeMs,
		TTFBMs:           b.TTFBMs,
		TotalTimeMs:      b.TotalTimeMs,
		MemoryAllocMB:    sr.MemoryAllocMB,
		MemoryPeakMB:     sr.MemoryPeakMB,
	}, bs.cfg.Format, bs.provider, b.ConnReused, b.TLSProtocol)
	log.Confidence(result.Confidence)
	return sr, nil
}

func (bs *batchSession) formatMetrics(rawSize, encodedSize uint64, compressionPct, audioDuration float64, result *Result) []string {
	metrics := result.Metrics

	reusedStatus := ""
	if metrics.ConnReused {
		reusedStatus = " (reused)"
	}

	lines := []string{
		fmt.Sprintf("audio:      %.1fs | %.1f KB → %.1f KB (%.0f%% smaller)",
			audioDuration, float64(rawSize)/1024, float64(encodedSize)/1024, compressionPct),
		fmt.Sprintf("provider:   %s", bs.provider),
		fmt.Sprintf("encode:     %dms (concurrent)", bs.encoder.EncodeTime().Milliseconds()),
		fmt.Sprintf("conn_wait:  %dms%s", metrics.ConnWait.Milliseconds(), reusedStatus),
		fmt.Sprintf("dns:        %dms", metrics.DNS.Milliseconds()),
		fmt.Sprintf("tls:        %dms", metrics.TLS.Milliseconds()),
		fmt.Sprintf("ttfb:       %dms", metrics.TTFB.Milliseconds()),
		fmt.Sprintf("total:      %dms", metrics.Sum().Milliseconds()),
	}
	if result.Duration > 0 {
		lines = append(lines, fmt.Sprintf("api_dur:    %.2fs", result.Duration))
	}
	if result.Confidence > 0 {
		lines = append(lines, fmt.Sprintf("confidence: %.4f", result.Confidence))
	}
	return lines
}

func newEncoder(format string) (encoder.Encoder, error) {
	switch format {
	case "flac":
		return encoder.NewFlac()
	}
	return nil, fmt.Errorf("unknown format %q", format)
}
