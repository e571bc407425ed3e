// Package llm is the chat-completion client behind the email classifier.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/sanskarm7/JobCATGmail/core/port/out"
	"github.com/sanskarm7/JobCATGmail/pkg/logger"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.1

	DefaultBreakerTrips   = 5
	DefaultRetryBaseDelay = 500 * time.Millisecond
)

// ErrEmptyCompletion is returned when the model sends no choices.
var ErrEmptyCompletion = errors.New("empty completion")

// Client retries transient failures with exponential backoff. Every attempt
// goes through one circuit breaker, so a failing API is skipped quickly.
type Client struct {
	client      *openai.Client
	cb          *gobreaker.CircuitBreaker
	model       string
	maxTokens   int
	temperature float32
	maxRetries  int
	retryBase   time.Duration
}

type ClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64

	// MaxRetries is the number of extra attempts after a transient failure.
	MaxRetries     int
	RetryBaseDelay time.Duration
	// BreakerTrips is the run of consecutive failures that opens the breaker.
	BreakerTrips int
}

func NewClient(cfg ClientConfig) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	retryBase := cfg.RetryBaseDelay
	if retryBase <= 0 {
		retryBase = DefaultRetryBaseDelay
	}
	trips := cfg.BreakerTrips
	if trips <= 0 {
		trips = DefaultBreakerTrips
	}

	settings := gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(trips)
		},
		// A rejected request says nothing about the API's health.
		IsSuccessful: func(err error) bool {
			return err == nil || !transient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &Client{
		client:      openai.NewClientWithConfig(oc),
		cb:          gobreaker.NewCircuitBreaker(settings),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
		maxRetries:  retries,
		retryBase:   retryBase,
	}
}

var _ out.LLMClient = (*Client)(nil)

func (c *Client) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryBase * time.Duration(1<<(attempt-1))
			logger.Debug("[LLMClient.CompleteWithSystem] retry %d in %s: %v", attempt, delay, err)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		var res interface{}
		res, err = c.cb.Execute(func() (interface{}, error) {
			return c.complete(ctx, systemPrompt, userPrompt)
		})
		if err == nil {
			return res.(string), nil
		}
		if !transient(err) {
			break
		}
	}
	return "", fmt.Errorf("chat completion: %w", err)
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	logger.Debug("[LLMClient.CompleteWithSystem] model=%s prompt_tokens=%d completion_tokens=%d",
		resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return resp.Choices[0].Message.Content, nil
}

// transient reports whether another attempt may succeed: rate limits, server
// errors and transport failures. Cancellation and an open breaker are final.
func transient(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, ErrEmptyCompletion),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
