package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

func TestCompleteWithSystemSendsClassifierSettings(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"{\"isJobApplication\":false}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "k", BaseURL: srv.URL + "/v1"})
	text, err := c.CompleteWithSystem(context.Background(), "system", "user")
	if err != nil {
		t.Fatal(err)
	}
	if text != `{"isJobApplication":false}` {
		t.Errorf("text = %q", text)
	}
	if got.Model != DefaultModel || got.MaxTokens != DefaultMaxTokens {
		t.Errorf("request = %+v", got)
	}
	if got.Temperature < 0.09 || got.Temperature > 0.11 {
		t.Errorf("temperature = %v", got.Temperature)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestCompleteWithSystemEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "k", BaseURL: srv.URL + "/v1"})
	if _, err := c.CompleteWithSystem(context.Background(), "s", "u"); !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestCompleteWithSystemAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "k", BaseURL: srv.URL + "/v1"})
	_, err := c.CompleteWithSystem(context.Background(), "s", "u")
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) || apiErr.HTTPStatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected APIError 429, got %v", err)
	}
}

func TestCompleteWithSystemRetries(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int32
		wantErr   bool
	}{
		{"recovers after server errors", []int{500, 503, 200}, 3, false},
		{"rate limit then success", []int{429, 200}, 2, false},
		{"bad request is final", []int{400, 200}, 1, true},
		{"gives up after max retries", []int{500, 500, 500, 500}, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.statuses[n-1])
				if tt.statuses[n-1] != http.StatusOK {
					_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"server_error"}}`))
					return
				}
				_, _ = w.Write([]byte(`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`))
			}))
			defer srv.Close()

			c := NewClient(ClientConfig{APIKey: "k", BaseURL: srv.URL + "/v1", MaxRetries: 2, RetryBaseDelay: time.Millisecond, BreakerTrips: 10})
			text, err := c.CompleteWithSystem(context.Background(), "s", "u")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && text != "ok" {
				t.Errorf("text = %q", text)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestCompleteWithSystemBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"down","type":"server_error"}}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "k", BaseURL: srv.URL + "/v1", BreakerTrips: 2})
	for i := 0; i < 2; i++ {
		if _, err := c.CompleteWithSystem(context.Background(), "s", "u"); err == nil {
			t.Fatal("expected error")
		}
	}
	_, err := c.CompleteWithSystem(context.Background(), "s", "u")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}
