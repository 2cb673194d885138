package outreach

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/instalily/leadqual/internal/qualify"
	"github.com/instalily/leadqual/internal/resilience"
)

const (
	draftMaxTokens   = 200
	draftTemperature = 0.5
)

// OpenAIProvider backs email drafting with OpenAI chat completions. It
// satisfies qualify.Provider so the drafter shares the classifier's retry
// semantics.
type OpenAIProvider struct {
	Client *openai.Client
	Model  string
}

// NewOpenAIProvider creates a provider for the given API key and model.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	return &OpenAIProvider{Client: openai.NewClient(apiKey), Model: model}
}

func (p *OpenAIProvider) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := p.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   draftMaxTokens,
		Temperature: draftTemperature,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &qualify.ProviderError{
				Err:        err,
				StatusCode: apiErr.HTTPStatusCode,
				Transient:  resilience.IsTransientHTTPStatus(apiErr.HTTPStatusCode),
			}
		}
		return "", &qualify.ProviderError{Err: err, Transient: resilience.IsTransient(err)}
	}
	if len(resp.Choices) == 0 {
		return "", &qualify.ProviderError{Err: errors.New("empty completion"), Transient: false}
	}
	return resp.Choices[0].Message.Content, nil
}
