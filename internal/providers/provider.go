package providers

import (
	"sync/atomic"
)

// RateLimitCounter counts HTTP 429 responses across concurrent calls.
// A nil counter discards increments.
type RateLimitCounter struct {
	n atomic.Int64
}

// Inc records one rate-limit hit.
func (c *RateLimitCounter) Inc() {
	if c != nil {
		c.n.Add(1)
	}
}

// Load returns the number of hits recorded so far.
func (c *RateLimitCounter) Load() int {
	if c == nil {
		return 0
	}
	return int(c.n.Load())
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

func newChatRequest(model string, temperature float64, systemPrompt, userPrompt string, stream bool) chatRequest {
	return chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: temperature,
		Stream:      stream,
	}
}
