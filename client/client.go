// Package client talks to the vox service on behalf of the desktop app.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vox/api"
	"vox/trace"
)

const DefaultTimeout = 60 * time.Second

type Client struct {
	baseURL string
	timeout time.Duration
	http    *trace.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    trace.NewClient(timeout),
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

type Transcript struct {
	Text              string
	Words             int
	WordsUsedThisWeek int
	WordsRemaining    int
	IsPro             bool
	Metrics           *trace.Metrics
}

// Unlimited reports whether the account has no weekly cap.
func (t *Transcript) Unlimited() bool { return t.WordsRemaining < 0 }

// Transcribe uploads the artifact at path in a single request. There are no
// retries; a failure is reported and the caller decides what to do.
func (c *Client) Transcribe(ctx context.Context, path, credential string) (*Transcript, error) {
	if credential == "" {
		return nil, ErrUnauthorized
	}
	audio, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(api.TranscribeFormFile, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var out api.TranscribeResponse
	metrics, err := c.do(ctx, http.MethodPost, api.PathTranscribe, credential, w.FormDataContentType(), &body, &out)
	if err != nil {
		return nil, err
	}
	return &Transcript{
		Text:              out.Text,
		Words:             out.Words,
		WordsUsedThisWeek: out.WordsUsedThisWeek,
		WordsRemaining:    out.WordsRemaining,
		IsPro:             out.IsPro,
		Metrics:           metrics,
	}, nil
}

func (c *Client) Health(ctx context.Context) (*api.Health, error) {
	var out api.Health
	if _, err := c.do(ctx, http.MethodGet, api.PathHealth, "", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, credential string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	_, err := c.do(ctx, method, path, credential, contentType, body, out)
	return err
}

// do sends one request and maps the reply onto the package's error values.
func (c *Client) do(ctx context.Context, method, path, credential, contentType string, body io.Reader, out any) (*trace.Metrics, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.Metrics, statusError(resp.StatusCode, resp.Body)
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return resp.Metrics, &ServerError{StatusCode: resp.StatusCode, Detail: "malformed response: " + err.Error()}
		}
	}
	return resp.Metrics, nil
}

func statusError(status int, body []byte) error {
	var e api.Error
	if json.Unmarshal(body, &e) != nil || e.Detail == "" {
		e.Detail = strings.TrimSpace(string(body))
	}

	switch {
	case status == http.StatusUnauthorized:
		return wrapDetail(ErrUnauthorized, e.Detail)
	case status == http.StatusForbidden:
		return wrapDetail(ErrQuotaExceeded, e.Detail)
	case status == http.StatusConflict || e.Code == api.CodeEmailTaken:
		return wrapDetail(ErrEmailTaken, e.Detail)
	case e.Code == api.CodeKeyAlreadyUsed:
		return wrapDetail(ErrKeyAlreadyUsed, e.Detail)
	case e.Code == api.CodeInvalidKey:
		return wrapDetail(ErrInvalidKey, e.Detail)
	}
	return &ServerError{StatusCode: status, Detail: e.Detail}
}

func wrapDetail(sentinel error, detail string) error {
	if detail == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, detail)
}
