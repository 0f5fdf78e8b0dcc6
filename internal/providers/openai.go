package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/juris/internal/config"
	"github.com/dshills/juris/internal/logging"
)

const defaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	apiKey       string
	model        string
	baseURL      string
	temperature  float64
	client       *http.Client
	streamClient *http.Client
	retry        RetryPolicy
	transport    TransportPolicy
	log          *zap.Logger

	// test seams
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(n int64) int64
}

// Options configures a Client.
type Options struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	// Timeout bounds each non-streaming HTTP round trip.
	Timeout   time.Duration
	Retry     RetryPolicy
	Transport TransportPolicy
	// HTTPClient overrides the clients used for both calls and streams.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// New creates a Client. The API key is required.
func New(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("API key is not set (set OPENAI_API_KEY or provider.apiKey)")
	}
	if opts.Model == "" {
		return nil, errors.New("model is not set")
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	c := &Client{
		apiKey:      opts.APIKey,
		model:       opts.Model,
		baseURL:     baseURL,
		temperature: opts.Temperature,
		retry:       opts.Retry.withDefaults(),
		transport:   opts.Transport.withDefaults(),
		log:         logging.OrGlobal(opts.Logger).Named("provider"),
		sleep:       sleepCtx,
		jitter:      rand.Int64N,
	}
	if opts.HTTPClient != nil {
		c.client = opts.HTTPClient
		c.streamClient = opts.HTTPClient
	} else {
		c.client = &http.Client{Timeout: timeout}
		// streams are bounded by the caller's context, not a fixed timeout
		c.streamClient = &http.Client{}
	}
	return c, nil
}

// FromConfig builds a Client from the provider and review sections of cfg.
func FromConfig(cfg config.Config, log *zap.Logger) (*Client, error) {
	return New(Options{
		APIKey:      cfg.Provider.APIKey,
		Model:       cfg.Provider.Model,
		BaseURL:     cfg.Provider.BaseURL,
		Temperature: cfg.Provider.Temperature,
		Timeout:     cfg.Provider.RequestTimeout(),
		Retry: RetryPolicy{
			MaxRetries: cfg.Review.MaxRetries,
			BaseDelay:  cfg.Review.RetryDelay(),
		},
		Transport: TransportPolicy{
			MaxTries:   cfg.Review.TransportMaxTries,
			MaxElapsed: cfg.Review.TransportMaxElapsed(),
		},
		Logger: log,
	})
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Call sends one chat completion and returns choices[0].message.content.
// Failed attempts, and content rejected by a WithContentCheck option, are
// retried according to the client's RetryPolicy; every 429 response
// increments hits.
func (c *Client) Call(ctx context.Context, systemPrompt, userPrompt string, hits *RateLimitCounter, opts ...CallOption) (string, error) {
	payload, err := json.Marshal(newChatRequest(c.model, c.temperature, systemPrompt, userPrompt, false))
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}
	return c.callWithRetry(ctx, payload, hits, opts)
}

// OpenStream starts a streaming completion and returns the raw event body.
// A non-200 response is returned as a *StatusError without retrying.
func (c *Client) OpenStream(ctx context.Context, systemPrompt, userPrompt string) (io.ReadCloser, error) {
	payload, err := json.Marshal(newChatRequest(c.model, c.temperature, systemPrompt, userPrompt, true))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := c.newRequest(ctx, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		c.log.Error("stream open failed", zap.Int("status", resp.StatusCode))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return resp.Body, nil
}

type rawResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

func (c *Client) newRequest(ctx context.Context, payload []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}

// send performs exactly one round trip. Errors are transport-level only.
func (c *Client) send(ctx context.Context, payload []byte) (*rawResponse, error) {
	req, err := c.newRequest(ctx, payload)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &rawResponse{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}
