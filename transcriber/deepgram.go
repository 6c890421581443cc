package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const deepgramAPIURL = "https://api.deepgram.com/v1/listen"

type Deepgram struct {
	baseTranscriber
	apiKey string
}

func NewDeepgram(apiKey string) *Deepgram {
	return newDeepgramAt(apiKey, deepgramAPIURL)
}

func newDeepgramAt(apiKey, apiURL string) *Deepgram {
	return &Deepgram{
		baseTranscriber: baseTranscriber{
			client: NewTracedClient(apiURL),
			apiURL: apiURL,
		},
		apiKey: apiKey,
	}
}

func (d *Deepgram) Name() string { return "deepgram" }

func (d *Deepgram) NewSession(ctx context.Context, cfg SessionConfig) (Session, error) {
	go d.client.Warm()
	if cfg.Language != "" {
		d.SetLanguage(cfg.Language)
	}
	return newBatchSession(ctx, d.Name(), cfg, d.transcribe)
}

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *Deepgram) endpoint() string {
	q := url.Values{}
	q.Set("model", "nova-3")
	q.Set("smart_format", "true")
	if d.lang != "" {
		q.Set("language", d.lang)
	} else {
		q.Set("detect_language", "true")
	}
	return d.apiURL + "?" + q.Encode()
}

func (d *Deepgram) transcribe(ctx context.Context, audioData []byte, format string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint(), bytes.NewReader(audioData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", "audio/"+format)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepgram API error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var dgResp deepgramResponse
	if err := json.Unmarshal(resp.Body, &dgResp); err != nil {
		return nil, fmt.Errorf("deepgram response parse error: %w", err)
	}

	res := &Result{
		Metrics:  resp.Metrics,
		Duration: dgResp.Metadata.Duration,
	}
	if len(dgResp.Results.Channels) > 0 {
		ch := dgResp.Results.Channels[0]
		res.Language = ch.DetectedLanguage
		if len(ch.Alternatives) > 0 {
			res.Text = ch.Alternatives[0].Transcript
			res.Confidence = ch.Alternatives[0].Confidence
		}
	}

	remaining := firstNonEmpty(resp.Header,
		"x-dg-ratelimit-remaining", "x-ratelimit-remaining", "ratelimit-remaining")
	limit := firstNonEmpty(resp.Header,
		"x-dg-ratelimit-limit", "x-ratelimit-limit", "ratelimit-limit")
	res.RateLimit = remaining + "/" + limit
	return res, nil
}
