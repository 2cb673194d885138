package qualify

import (
	"context"
	"errors"

	"github.com/instalily/leadqual/internal/resilience"
	"github.com/instalily/leadqual/pkg/anthropic"
	"github.com/instalily/leadqual/pkg/perplexity"
)

// Provider is the single-turn completion surface the classifier needs.
// Implementations map their transport failures to *ProviderError so the
// retry policy can tell transient from permanent.
type Provider interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// PerplexityProvider backs classification with Perplexity's research models.
type PerplexityProvider struct {
	Client perplexity.Client
	Model  string
}

func (p *PerplexityProvider) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := p.Client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model: p.Model,
		Messages: []perplexity.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		var apiErr *perplexity.APIError
		if errors.As(err, &apiErr) {
			return "", &ProviderError{
				Err:        err,
				StatusCode: apiErr.StatusCode,
				Transient:  resilience.IsTransientHTTPStatus(apiErr.StatusCode),
			}
		}
		return "", &ProviderError{Err: err, Transient: resilience.IsTransient(err)}
	}
	return resp.Text(), nil
}

// AnthropicProvider backs classification with the Anthropic API.
type AnthropicProvider struct {
	Client    anthropic.Client
	Model     string
	MaxTokens int64
}

func (p *AnthropicProvider) Complete(ctx context.Context, system, user string) (string, error) {
	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	resp, err := p.Client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.Model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []anthropic.Message{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", &ProviderError{Err: err, Transient: resilience.IsTransient(err)}
	}
	return resp.Text(), nil
}
