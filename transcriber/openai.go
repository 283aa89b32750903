package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"

	"vox/trace"
)

const (
	groqURL     = "https://api.groq.com/openai/v1/audio/transcriptions"
	groqModel   = "whisper-large-v3-turbo"
	openaiURL   = "https://api.openai.com/v1/audio/transcriptions"
	openaiModel = "gpt-4o-transcribe"
)

// OpenAICompatible speaks the /audio/transcriptions API shared by OpenAI,
// Groq and self-hosted whisper servers.
type OpenAICompatible struct {
	name   string
	url    string
	model  string
	apiKey string
	lang   string
	client *trace.Client
}

func newOpenAICompatible(name, url, model string, cfg Config) (*OpenAICompatible, error) {
	if cfg.URL != "" {
		url = cfg.URL
	}
	if cfg.Model != "" {
		model = cfg.Model
	}
	if cfg.APIKey == "" && cfg.URL == "" {
		return nil, fmt.Errorf("%s engine needs an API key", name)
	}
	return &OpenAICompatible{
		name:   name,
		url:    url,
		model:  model,
		apiKey: cfg.APIKey,
		lang:   cfg.Language,
		client: trace.NewClient(cfg.Timeout),
	}, nil
}

func (o *OpenAICompatible) Name() string { return o.name }

type verboseResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
}

func (o *OpenAICompatible) Transcribe(ctx context.Context, audio []byte, filename string) (*Result, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, err
	}
	w.WriteField("model", o.model)
	// gpt-4o models only accept json
	if o.name == "openai" {
		w.WriteField("response_format", "json")
	} else {
		w.WriteField("response_format", "verbose_json")
	}
	if o.lang != "" {
		w.WriteField("language", o.lang)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, &body)
	if err != nil {
		return nil, err
	}
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", o.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &upstreamError{engine: o.name, status: resp.StatusCode, body: string(resp.Body)}
	}

	var parsed verboseResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("%s response parse error: %w", o.name, err)
	}

	remaining := firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")
	return &Result{
		Text:      parsed.Text,
		Duration:  parsed.Duration,
		Metrics:   resp.Metrics,
		RateLimit: remaining + "/" + limit,
	}, nil
}
