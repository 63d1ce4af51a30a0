package completion

import (
	"fmt"
	"time"
)

// message is the OpenAI chat message shape.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

type chatRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	Choices []choice `json:"choices"`
}

type choice struct {
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// APIError is returned for a non-success HTTP status.
type APIError struct {
	// Bot is the name of the bot whose endpoint answered.
	Bot string

	// StatusCode is the HTTP status of the last attempt.
	StatusCode int

	// Body is the beginning of the response body.
	Body string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s endpoint returned status %d", e.Bot, e.StatusCode)
	}
	return fmt.Sprintf("%s endpoint returned status %d: %s", e.Bot, e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth retrying.
func (e *APIError) Retryable() bool {
	return isRetryable(e.StatusCode)
}

// HealthStatus is the outcome of a bot health check.
type HealthStatus struct {
	Bot          string        `json:"bot"`
	Endpoint     string        `json:"endpoint"`
	Available    bool          `json:"available"`
	Models       []string      `json:"models,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	CheckedAt    time.Time     `json:"checked_at"`
}
