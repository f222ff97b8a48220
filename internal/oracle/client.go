package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/GeekyJ160/ADA/internal/audio"
)

// Client provides the HTTP implementation of the single-shot oracle
// operations: synthesis, batch translation and language detection.
type Client struct {
	config     Config
	httpClient *http.Client
	semaphore  chan struct{} // Rate limiting semaphore

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64
	avgResponseTime time.Duration

	recorder RequestRecorder

	mu sync.RWMutex
}

// RequestRecorder receives per-request outcomes, typically backed by the
// process metrics.
type RequestRecorder interface {
	RecordOracleRequest(operation string, durationSeconds float64, success bool)
	RecordOracleRetry()
}

// Config contains oracle client configuration.
type Config struct {
	Endpoint      string
	APIKey        string
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
}

// ClientStats represents client statistics.
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	TotalRetries    uint64        `json:"total_retries"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

type synthesizeResponse struct {
	Audio    string `json:"audio"` // base64 PCM-16 at 24 kHz, empty when no audio
	MimeType string `json:"mime_type,omitempty"`
}

type translateRequest struct {
	Texts          []string `json:"texts"`
	TargetLanguage string   `json:"target_language"`
}

type translateResponse struct {
	Translations []string `json:"translations"`
}

type detectRequest struct {
	Sample string `json:"sample"`
}

// NewClient creates a new oracle HTTP client.
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 2
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// SetRecorder installs an outcome recorder. Call before first use; the
// client does not synchronize recorder replacement with in-flight requests.
func (c *Client) SetRecorder(r RequestRecorder) {
	c.recorder = r
}

// Synthesize requests speech for one text segment. Returns nil audio without
// error when the oracle declines to produce audio.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	var resp synthesizeResponse
	err := c.do(ctx, "/v1/synthesize", synthesizeRequest{Text: text, VoiceID: voiceID}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Audio == "" {
		return nil, nil
	}
	pcm, err := audio.DecodeOracleAudio(resp.Audio)
	if err != nil {
		return nil, fmt.Errorf("synthesis payload: %w", err)
	}
	return pcm, nil
}

// TranslateBatch translates texts into targetLanguage. The whole batch fails
// atomically when the response does not align with the request: the oracle is
// assumed to preserve order and count, and that assumption is checked here
// rather than trusted.
func (c *Client) TranslateBatch(ctx context.Context, texts []string, targetLanguage string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp translateResponse
	err := c.do(ctx, "/v1/translate", translateRequest{Texts: texts, TargetLanguage: targetLanguage}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Translations) != len(texts) {
		return nil, fmt.Errorf("translation batch mismatch: sent %d texts, received %d translations",
			len(texts), len(resp.Translations))
	}
	return resp.Translations, nil
}

// DetectLanguage identifies the language of a text or transcript sample.
func (c *Client) DetectLanguage(ctx context.Context, sample string) (*Language, error) {
	var resp Language
	if err := c.do(ctx, "/v1/detect", detectRequest{Sample: sample}, &resp); err != nil {
		return nil, err
	}
	if resp.Name == "" {
		return nil, fmt.Errorf("detection returned no language")
	}
	return &resp, nil
}

// do performs one JSON request with rate limiting and retry.
func (c *Client) do(ctx context.Context, path string, request, response any) error {
	// Acquire semaphore for rate limiting
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return ctx.Err()
	}

	startTime := time.Now()
	c.incrementTotalRequests()
	operation := strings.TrimPrefix(path, "/v1/")

	var lastErr error

	// Retry loop with exponential backoff
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.incrementTotalRetries()
			if c.recorder != nil {
				c.recorder.RecordOracleRetry()
			}

			backoffTime := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoffTime > 10*time.Second {
				backoffTime = 10 * time.Second
			}

			select {
			case <-time.After(backoffTime):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := c.doRequest(ctx, path, request, response)
		if err == nil {
			c.incrementSuccessRequests()
			c.updateAvgResponseTime(time.Since(startTime))
			if c.recorder != nil {
				c.recorder.RecordOracleRequest(operation, time.Since(startTime).Seconds(), true)
			}
			return nil
		}

		lastErr = err
		if !c.isRetryableError(err) {
			break
		}
	}

	c.incrementFailedRequests()
	if c.recorder != nil {
		c.recorder.RecordOracleRequest(operation, time.Since(startTime).Seconds(), false)
	}
	return fmt.Errorf("oracle request %s failed after %d attempts: %w", path, c.config.MaxRetries+1, lastErr)
}

// doRequest performs a single HTTP request against the oracle API.
func (c *Client) doRequest(ctx context.Context, path string, request, response any) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(c.config.Endpoint, "/")+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "ada-dubbing-studio/1.0")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, response); err != nil {
		return fmt.Errorf("failed to parse response JSON: %w", err)
	}

	return nil
}

// isRetryableError determines if an error is retryable.
func (c *Client) isRetryableError(err error) bool {
	if err == context.DeadlineExceeded {
		return true
	}

	errStr := err.Error()

	// 5xx server errors and rate limiting are retryable
	if strings.Contains(errStr, "HTTP error 5") || strings.Contains(errStr, "HTTP error 429") {
		return true
	}

	// Network/connection errors are typically retryable
	if strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "refused") {
		return true
	}

	return false
}

// Statistics methods
func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) incrementTotalRetries() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRetries++
}

func (c *Client) updateAvgResponseTime(responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple moving average
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics.
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    c.totalRetries,
		AvgResponseTime: c.avgResponseTime,
		ActiveRequests:  len(c.semaphore),
	}
}

// Close gracefully shuts down the client, waiting for active requests.
func (c *Client) Close() error {
	for i := 0; i < c.config.MaxConcurrent; i++ {
		c.semaphore <- struct{}{}
	}
	return nil
}
