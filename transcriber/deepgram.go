package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"vox/trace"
)

const (
	deepgramURL   = "https://api.deepgram.com/v1/listen"
	deepgramModel = "nova-3"
)

type Deepgram struct {
	url    string
	model  string
	apiKey string
	lang   string
	client *trace.Client
}

func NewDeepgram(cfg Config) (*Deepgram, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("deepgram engine needs an API key")
	}
	d := &Deepgram{
		url:    deepgramURL,
		model:  deepgramModel,
		apiKey: cfg.APIKey,
		lang:   cfg.Language,
		client: trace.NewClient(cfg.Timeout),
	}
	if cfg.URL != "" {
		d.url = cfg.URL
	}
	if cfg.Model != "" {
		d.model = cfg.Model
	}
	return d, nil
}

func (d *Deepgram) Name() string { return "deepgram" }

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *Deepgram) endpoint() string {
	q := url.Values{}
	q.Set("model", d.model)
	q.Set("smart_format", "true")
	if d.lang != "" {
		q.Set("language", d.lang)
	} else {
		q.Set("detect_language", "true")
	}
	return d.url + "?" + q.Encode()
}

func (d *Deepgram) Transcribe(ctx context.Context, audio []byte, filename string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint(), bytes.NewReader(audio))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", contentType(filename))

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &upstreamError{engine: "deepgram", status: resp.StatusCode, body: string(resp.Body)}
	}

	var parsed deepgramResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("deepgram response parse error: %w", err)
	}

	remaining := firstNonEmpty(resp.Header, "x-dg-ratelimit-remaining", "x-ratelimit-remaining", "ratelimit-remaining")
	limit := firstNonEmpty(resp.Header, "x-dg-ratelimit-limit", "x-ratelimit-limit", "ratelimit-limit")
	r := &Result{
		Duration:  parsed.Metadata.Duration,
		Metrics:   resp.Metrics,
		RateLimit: remaining + "/" + limit,
	}
	if len(parsed.Results.Channels) > 0 && len(parsed.Results.Channels[0].Alternatives) > 0 {
		alt := parsed.Results.Channels[0].Alternatives[0]
		r.Text = alt.Transcript
		r.Confidence = alt.Confidence
	}
	return r, nil
}
