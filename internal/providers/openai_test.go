package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, url string, hc *http.Client) (*Client, *[]time.Duration) {
	t.Helper()
	c, err := New(Options{
		APIKey:      "test-key",
		Model:       "gpt-3.5-turbo",
		BaseURL:     url,
		Temperature: 0.3,
		HTTPClient:  hc,
		Retry:       RetryPolicy{MaxRetries: 3, BaseDelay: 2 * time.Second},
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	var sleeps []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return c, &sleeps
}

func writeContent(w http.ResponseWriter, content string) {
	resp := chatResponse{Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: content}}}}
	json.NewEncoder(w).Encode(resp)
}

func TestClient_Call(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("Missing or wrong Authorization header")
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "gpt-3.5-turbo" {
			t.Errorf("Model = %q, want %q", req.Model, "gpt-3.5-turbo")
		}
		if req.Temperature != 0.3 {
			t.Errorf("Temperature = %g, want 0.3", req.Temperature)
		}
		if req.Stream {
			t.Error("Stream should be false for Call")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.Messages[1].Content != "user prompt" {
			t.Errorf("user content = %q", req.Messages[1].Content)
		}
		writeContent(w, "[]")
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, server.Client())
	got, err := c.Call(context.Background(), "system prompt", "user prompt", nil)
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if got != "[]" {
		t.Errorf("Content = %q, want %q", got, "[]")
	}
}

func TestClient_Call_RateLimitThenSuccess(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		switch attempts {
		case 1:
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limited"}`))
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limited"}`))
		default:
			writeContent(w, "[]")
		}
	}))
	defer server.Close()

	c, sleeps := newTestClient(t, server.URL, server.Client())
	var hits RateLimitCounter
	got, err := c.Call(context.Background(), "s", "u", &hits)
	if err != nil {
		t.Fatalf("Call error after retries: %v", err)
	}
	if got != "[]" {
		t.Errorf("Content = %q, want %q", got, "[]")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if hits.Load() != 2 {
		t.Errorf("rate limit hits = %d, want 2", hits.Load())
	}
	// Retry-After wins on the first 429; the second falls back to baseDelay*2.
	want := []time.Duration{time.Second, 4 * time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", *sleeps, want)
	}
	for i := range want {
		if (*sleeps)[i] != want[i] {
			t.Errorf("sleep[%d] = %v, want %v", i, (*sleeps)[i], want[i])
		}
	}
}

func TestClient_Call_FatalStatus(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal server error"}`))
	}))
	defer server.Close()

	c, sleeps := newTestClient(t, server.URL, server.Client())
	_, err := c.Call(context.Background(), "s", "u", nil)
	if err == nil {
		t.Fatal("Expected error for 500")
	}
	if !IsStatus(err, 500) {
		t.Errorf("Expected status 500 error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on hard failure)", attempts)
	}
	if len(*sleeps) != 0 {
		t.Errorf("sleeps = %v, want none", *sleeps)
	}
}

func TestClient_Call_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid key"}`))
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, server.Client())
	_, err := c.Call(context.Background(), "s", "u", nil)
	if !IsAuthError(err) {
		t.Errorf("Expected auth error, got: %v", err)
	}
}

func TestClient_Call_SoftFailuresExhaust(t *testing.T) {
	bodies := []string{
		``,
		`{"choices":[]}`,
		`{"choices":[{"message":{"role":"assistant","content":""}}]}`,
	}
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(bodies[attempts%len(bodies)]))
		attempts++
	}))
	defer server.Close()

	c, sleeps := newTestClient(t, server.URL, server.Client())
	_, err := c.Call(context.Background(), "s", "u", nil)
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("Expected ExhaustedError, got: %v", err)
	}
	if ex.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", ex.Attempts)
	}
	if attempts != 3 {
		t.Errorf("server attempts = %d, want 3", attempts)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(*sleeps) != 2 || (*sleeps)[0] != want[0] || (*sleeps)[1] != want[1] {
		t.Errorf("sleeps = %v, want %v", *sleeps, want)
	}
}

func TestClient_Call_MalformedThenSuccess(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Write([]byte(`not json`))
			return
		}
		writeContent(w, `[{"clause_key":"clause-1"}]`)
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, server.Client())
	got, err := c.Call(context.Background(), "s", "u", nil)
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if !strings.Contains(got, "clause-1") {
		t.Errorf("Content = %q", got)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestClient_Call_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeContent(w, "[]")
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, server.Client())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Call(ctx, "s", "u", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestClient_OpenStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if !req.Stream {
			t.Error("Stream should be true for OpenStream")
		}
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\ndata: [DONE]\n\n"))
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, server.Client())
	body, err := c.OpenStream(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("OpenStream error: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	if !strings.Contains(string(data), "[DONE]") {
		t.Errorf("stream body = %q", data)
	}
}

func TestClient_OpenStream_NonOK(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"overloaded"}`))
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, server.Client())
	_, err := c.OpenStream(context.Background(), "s", "u")
	if !IsStatus(err, http.StatusServiceUnavailable) {
		t.Errorf("Expected 503 status error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (stream open is never retried)", attempts)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{Model: "gpt-4o"}); err == nil {
		t.Error("Expected error for missing API key")
	}
	if _, err := New(Options{APIKey: "k"}); err == nil {
		t.Error("Expected error for missing model")
	}
	c, err := New(Options{APIKey: "k", Model: "m"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if c.baseURL != defaultOpenAIURL {
		t.Errorf("baseURL = %q, want default", c.baseURL)
	}
	if c.retry.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", c.retry.MaxRetries)
	}
	if c.Model() != "m" {
		t.Errorf("Model() = %q, want %q", c.Model(), "m")
	}
}
