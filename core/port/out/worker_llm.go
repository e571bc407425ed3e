package out

import "context"

// LLMClient sends a system and user prompt and returns the raw completion text.
type LLMClient interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
