package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultTimeout bounds one transcription request. Long-form chunks
	// are capped at 300s of audio, which Whisper processes well inside this.
	DefaultTimeout = 5 * time.Minute

	// defaultMaxRetries is the client-level retry count for transient HTTP
	// failures. Job-level retries remain the queue's business.
	defaultMaxRetries = 3
)

// retryBaseDelay is a var so tests can shrink it.
var retryBaseDelay = 2 * time.Second

// ErrUploadTooLarge indicates the audio file exceeds the API's upload limit.
var ErrUploadTooLarge = errors.New("audio file exceeds upload limit")

// WhisperClient implements Transcriber against an OpenAI-compatible
// /audio/transcriptions endpoint using the verbose_json response format.
type WhisperClient struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

// Compile-time check that WhisperClient implements Transcriber.
var _ Transcriber = (*WhisperClient)(nil)

// WhisperOption configures a WhisperClient.
type WhisperOption func(*WhisperClient)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) WhisperOption {
	return func(c *WhisperClient) {
		c.httpClient.Timeout = d
	}
}

// WithMaxRetries overrides the client-level retry count.
func WithMaxRetries(n int) WhisperOption {
	return func(c *WhisperClient) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithHTTPClient replaces the HTTP client (for testing).
func WithHTTPClient(hc *http.Client) WhisperOption {
	return func(c *WhisperClient) {
		c.httpClient = hc
	}
}

// NewWhisperClient creates a Whisper transcription client.
func NewWhisperClient(url, apiKey, model string, opts ...WhisperOption) *WhisperClient {
	c := &WhisperClient{
		url:        url,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transcribe uploads the audio file and returns the transcription with
// per-segment timing and confidence signals. Transient HTTP failures are
// retried with exponential backoff before the error surfaces.
func (c *WhisperClient) Transcribe(ctx context.Context, audioPath string) (*Transcription, error) {
	var result *Transcription
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		result, lastErr = c.transcribeOnce(ctx, audioPath)
		if lastErr == nil {
			return result, nil
		}
		if !isRetryable(lastErr) {
			return nil, lastErr
		}
		if attempt == c.maxRetries {
			break
		}

		delay := retryBaseDelay << (attempt - 1)
		slog.Warn("transcription attempt failed, retrying", "attempt", attempt, "delay", delay, "error", lastErr)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("transcribe after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *WhisperClient) transcribeOnce(ctx context.Context, audioPath string) (*Transcription, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}
	if err := writer.WriteField("model", c.model); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	// verbose_json carries per-segment timing and confidence signals.
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return nil, fmt.Errorf("write response_format field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transientError{fmt.Errorf("transcription request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transientError{fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return nil, fmt.Errorf("%w: %s", ErrUploadTooLarge, truncate(respBody, 200))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &transientError{fmt.Errorf("transcription API returned %d: %s", resp.StatusCode, truncate(respBody, 200))}
	default:
		return nil, fmt.Errorf("transcription API returned %d: %s", resp.StatusCode, truncate(respBody, 200))
	}

	var result Transcription
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode transcription: %w", err)
	}
	return &result, nil
}

// transientError marks failures worth a client-level retry: network
// errors, rate limits, server errors.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
