package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// NVIDIA's OpenAI-compatible endpoint and the small instruct model used for NPC voices.
const (
	DefaultBaseURL = "https://integrate.api.nvidia.com/v1"
	DefaultModel   = "nvidia/nemotron-mini-4b-instruct"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client       openai.Client
	defaultModel string
}

// NewOpenAIClient creates a client. Returns nil if apiKey is empty.
func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	if apiKey == "" {
		return nil
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIClient{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
			option.WithRequestTimeout(30*time.Second),
			option.WithMaxRetries(1),
		),
		defaultModel: model,
	}
}

// Enabled returns true if the client was configured.
func (c *OpenAIClient) Enabled() bool {
	return c != nil
}

// Generate implements Generator.
func (c *OpenAIClient) Generate(ctx context.Context, system, prompt, model string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	if model == "" {
		model = c.defaultModel
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.2),
		TopP:        openai.Float(0.7),
		MaxTokens:   openai.Int(1024),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response")
	}

	slog.Debug("chat completion",
		"model", model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	return resp.Choices[0].Message.Content, nil
}
