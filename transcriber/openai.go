package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAI goes through the official SDK rather than the traced client, so
// only total request time is reported.
type OpenAI struct {
	baseTranscriber
	client openai.Client
	model  openai.AudioModel
}

func NewOpenAI(apiKey string, opts ...option.RequestOption) *OpenAI {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  openai.AudioModelWhisper1,
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) NewSession(ctx context.Context, cfg SessionConfig) (Session, error) {
	if cfg.Language != "" {
		o.SetLanguage(cfg.Language)
	}
	return newBatchSession(ctx, o.Name(), cfg, o.transcribe)
}

func (o *OpenAI) transcribe(ctx context.Context, audioData []byte, format string) (*Result, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audioData), "audio."+format, "audio/"+format),
		Model: o.model,
	}
	if o.lang != "" {
		params.Language = openai.String(o.lang)
	}

	start := time.Now()
	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}
	return &Result{
		Text:    resp.Text,
		Metrics: &NetworkMetrics{Total: time.Since(start), TTFB: time.Since(start)},
	}, nil
}
