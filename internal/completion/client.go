// Package completion talks to OpenAI-compatible chat completion endpoints
// such as LM Studio, llama.cpp server or vLLM.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alienxp03/botdebate/internal/bot"
	"github.com/alienxp03/botdebate/internal/core"
)

const (
	maxRetries     = 3
	maxErrorBody   = 512
	defaultTimeout = 2 * time.Minute
)

// ErrEmptyResponse is returned when an endpoint answers without choices.
var ErrEmptyResponse = errors.New("completion returned no choices")

// Options configures a Client.
type Options struct {
	// Timeout bounds each HTTP attempt. Zero means two minutes.
	Timeout time.Duration

	// APIKey is sent as a bearer token when set.
	APIKey string

	Temperature float64
	MaxTokens   int

	Logger *zap.Logger
}

// Client calls the chat completions endpoint of a bot.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
	backoffFunc func(attempt int) time.Duration
}

func defaultBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		apiKey:      opts.APIKey,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		logger:      logger.With(zap.String("component", "completion")),
		backoffFunc: defaultBackoff,
	}
}

// Complete posts messages to the bot's endpoint and returns the first
// choice. It retries rate limits and server errors.
func (c *Client) Complete(ctx context.Context, profile bot.Profile, messages []core.Message) (string, error) {
	reqBody := chatRequest{
		Model:       profile.Model(),
		Messages:    toWire(messages),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.doWithRetry(ctx, profile.Name(), func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, profile.Endpoint(), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		return c.httpClient.Do(req)
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response from %s: %w", profile.Name(), err)
	}
	if len(chatResp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return chatResp.Choices[0].Message.Content, nil
}

// toWire maps history onto OpenAI messages. The speaker name is only sent
// when it is a valid OpenAI name.
func toWire(messages []core.Message) []message {
	out := make([]message, 0, len(messages))
	for _, m := range messages {
		wm := message{Role: string(m.Role), Content: m.Content}
		if validName(m.Speaker) {
			wm.Name = m.Speaker
		}
		out = append(out, wm)
	}
	return out
}

func validName(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

func isRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

func (c *Client) doWithRetry(ctx context.Context, botName string, do func(context.Context) (*http.Response, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoffFunc(attempt - 1)
			c.logger.Debug("retrying completion",
				zap.String("bot", botName),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		resp, err := do(ctx)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		apiErr := &APIError{
			Bot:        botName,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
		if !apiErr.Retryable() {
			return nil, apiErr
		}

		// Retry-After adds to the backoff; a zero backoff disables it.
		if resp.StatusCode == http.StatusTooManyRequests {
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 && c.backoffFunc(0) > 0 {
				if err := sleep(ctx, time.Duration(secs)*time.Second); err != nil {
					return nil, err
				}
			}
		}
		lastErr = apiErr
	}
	return nil, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
