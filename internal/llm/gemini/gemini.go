// Package gemini implements llm.Generator on the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/yairfalse/carta/internal/config"
	"github.com/yairfalse/carta/internal/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

func init() {
	llm.Register("gemini", NewFromConfig)
}

// Generator calls GenerateContent.
type Generator struct {
	client *genai.Client
	model  string
}

// NewFromConfig builds a generator. Endpoint, when set, overrides the API base URL.
func NewFromConfig(cfg config.LLMConfig) (llm.Generator, error) {
	key := cfg.APIKey()
	if key == "" {
		return nil, fmt.Errorf("gemini api key missing; set %s", cfg.APIKeyEnv)
	}
	return New(context.Background(), key, cfg.Model, cfg.Endpoint)
}

// New creates a Gemini generator.
func New(ctx context.Context, apiKey, model, baseURL string) (*Generator, error) {
	if model == "" {
		model = DefaultModel
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Generator{client: client, model: model}, nil
}

// Generate sends the user content with the system instruction.
func (g *Generator) Generate(ctx context.Context, req llm.Request) (string, error) {
	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.User), gc)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}
