// Package openai implements llm.Generator with chat completions, against
// either the OpenAI API or an Azure OpenAI deployment.
package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"github.com/yairfalse/carta/internal/config"
	"github.com/yairfalse/carta/internal/llm"
)

func init() {
	llm.Register("openai", NewFromConfig)
	llm.Register("azure-openai", NewFromConfig)
}

// Generator calls the chat completions endpoint.
type Generator struct {
	client openai.Client
	model  string
}

// NewFromConfig builds a generator. For azure-openai, Model names the
// deployment and Endpoint/APIVersion select the resource.
func NewFromConfig(cfg config.LLMConfig) (llm.Generator, error) {
	key := cfg.APIKey()
	if key == "" {
		return nil, fmt.Errorf("%s api key missing; set %s", cfg.Provider, cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}

	var opts []option.RequestOption
	switch cfg.Provider {
	case "azure-openai":
		opts = append(opts,
			azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
			azure.WithAPIKey(key),
		)
	default:
		opts = append(opts, option.WithAPIKey(key))
		if cfg.Endpoint != "" {
			opts = append(opts, option.WithBaseURL(cfg.Endpoint))
		}
	}
	return New(cfg.Model, opts...), nil
}

// New creates a generator with explicit request options.
func New(model string, opts ...option.RequestOption) *Generator {
	return &Generator{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Generate sends the system and user messages and returns the first choice.
func (g *Generator) Generate(ctx context.Context, req llm.Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
