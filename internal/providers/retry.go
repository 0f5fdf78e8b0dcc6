package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy is the batch-level retry budget: MaxRetries attempts with a
// linear delay of BaseDelay*attempt between them.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries < 1 {
		p.MaxRetries = 3
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	return p
}

// TransportPolicy bounds the inner retry around a single round trip:
// exponential backoff with full jitter, at most MaxTries tries and
// MaxElapsed total.
type TransportPolicy struct {
	MaxTries        int
	MaxElapsed      time.Duration
	InitialInterval time.Duration
}

func (p TransportPolicy) withDefaults() TransportPolicy {
	if p.MaxTries < 1 {
		p.MaxTries = 3
	}
	if p.MaxElapsed <= 0 {
		p.MaxElapsed = 10 * time.Second
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = 500 * time.Millisecond
	}
	return p
}

// AttemptKind tags the result of one batch-level attempt.
type AttemptKind int

const (
	AttemptOK AttemptKind = iota
	AttemptRetryable
	AttemptFatal
)

func (k AttemptKind) String() string {
	switch k {
	case AttemptOK:
		return "ok"
	case AttemptRetryable:
		return "retryable"
	case AttemptFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ContentCheck vets the text of an otherwise successful completion. A non-nil
// error turns the attempt into a retryable one.
type ContentCheck func(content string) error

// CallOption adjusts a single Call.
type CallOption func(*callConfig)

type callConfig struct {
	check ContentCheck
}

// WithContentCheck makes Call retry, within the same attempt budget, when
// check rejects the returned content.
func WithContentCheck(check ContentCheck) CallOption {
	return func(c *callConfig) { c.check = check }
}

// CheckContent applies the content check configured by opts, if any.
func CheckContent(content string, opts ...CallOption) error {
	var cfg callConfig
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.check == nil {
		return nil
	}
	return cfg.check(content)
}

type attemptResult struct {
	Kind    AttemptKind
	Content string
	Err     error

	RateLimited   bool
	RetryAfter    time.Duration
	HasRetryAfter bool
}

func okResult(content string) attemptResult { return attemptResult{Kind: AttemptOK, Content: content} }
func retryableResult(err error) attemptResult {
	return attemptResult{Kind: AttemptRetryable, Err: err}
}
func fatalResult(err error) attemptResult { return attemptResult{Kind: AttemptFatal, Err: err} }

func (c *Client) callWithRetry(ctx context.Context, payload []byte, hits *RateLimitCounter, opts []CallOption) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxRetries; attempt++ {
		res := c.attempt(ctx, payload, opts)
		switch res.Kind {
		case AttemptOK:
			return res.Content, nil
		case AttemptFatal:
			c.log.Error("completion failed", zap.Int("attempt", attempt), zap.Error(res.Err))
			return "", res.Err
		}

		lastErr = res.Err
		delay := c.retry.BaseDelay * time.Duration(attempt)
		if res.RateLimited {
			hits.Inc()
			if res.HasRetryAfter {
				delay = res.RetryAfter
			}
			c.log.Warn("rate limited",
				zap.Int("attempt", attempt),
				zap.Duration("retry_after", delay))
		} else {
			c.log.Warn("completion attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(res.Err))
		}

		if attempt == c.retry.MaxRetries {
			break
		}
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", &ExhaustedError{Attempts: c.retry.MaxRetries, Last: lastErr}
}

// attempt runs one batch-level attempt and classifies the outcome.
func (c *Client) attempt(ctx context.Context, payload []byte, opts []CallOption) attemptResult {
	resp, err := c.sendWithJitter(ctx, payload)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fatalResult(ctxErr)
		}
		return retryableResult(err)
	}

	switch {
	case resp.Status == http.StatusTooManyRequests:
		res := retryableResult(&StatusError{Code: resp.Status, Body: truncate(string(resp.Body), 512)})
		res.RateLimited = true
		res.RetryAfter, res.HasRetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		return res
	case resp.Status != http.StatusOK:
		return fatalResult(&StatusError{Code: resp.Status, Body: truncate(string(resp.Body), 512)})
	}

	var result chatResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return retryableResult(fmt.Errorf("parsing response: %w", err))
	}
	if len(result.Choices) == 0 {
		return retryableResult(errors.New("no choices in response"))
	}
	content := result.Choices[0].Message.Content
	if content == "" {
		return retryableResult(errors.New("empty text content in API response"))
	}
	if err := CheckContent(content, opts...); err != nil {
		return retryableResult(&ContentError{Err: err})
	}
	return okResult(content)
}

// sendWithJitter retries transport errors only. Any HTTP response, whatever its
// status, is returned to the caller for classification.
func (c *Client) sendWithJitter(ctx context.Context, payload []byte) (*rawResponse, error) {
	start := time.Now()
	var lastErr error
	tries := 0
	for tries < c.transport.MaxTries {
		tries++
		resp, err := c.send(ctx, payload)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if tries == c.transport.MaxTries {
			break
		}

		ceiling := c.transport.InitialInterval << (tries - 1)
		if ceiling > c.transport.MaxElapsed || ceiling <= 0 {
			ceiling = c.transport.MaxElapsed
		}
		wait := time.Duration(c.jitter(int64(ceiling) + 1))
		if time.Since(start)+wait > c.transport.MaxElapsed {
			break
		}
		c.log.Debug("transport error, backing off",
			zap.Int("try", tries),
			zap.Duration("wait", wait),
			zap.Error(err))
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, &TransportError{Tries: tries, Err: lastErr}
}

// parseRetryAfter accepts delay-seconds (integer or decimal) or an HTTP date.
func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
