package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI is a Completer using an OpenAI-compatible chat completions API.
type OpenAI struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
}

// OpenAIConfig configures an OpenAI completer.
type OpenAIConfig struct {
	// Key is the API key.
	Key string
	// BaseURL is the API base URL. If empty, the default is used.
	BaseURL     string
	Model       string
	Temperature float64
	// MaxTokens limits the completion length. Zero means no limit.
	MaxTokens int64
}

// NewOpenAI creates an OpenAI completer.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.Key),
		// Messages arrive continuously. Retrying a stale prompt is worse
		// than dropping it.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Complete requests a chat completion.
func (o *OpenAI) Complete(ctx context.Context, prompt []Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(prompt))
	for _, m := range prompt {
		switch m.Role {
		case System:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case Assistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	params := openai.ChatCompletionNewParams{
		Messages:    msgs,
		Model:       openai.ChatModel(o.model),
		Temperature: openai.Float(o.temperature),
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Int(o.maxTokens)
	}
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("couldn't complete: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
