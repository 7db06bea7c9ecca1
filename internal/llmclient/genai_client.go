// internal/llmclient/genai_client.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/overlayhq/sherpa/api/schemas"
	"github.com/overlayhq/sherpa/internal/config"
)

// GenAIClient implements schemas.VLMClient on top of the official
// google.golang.org/genai SDK. Prefer this over GeminiClient when SDK-side
// auth (Vertex, ADC) matters; the direct HTTP client is the lighter default.
type GenAIClient struct {
	client *genai.Client
	model  string
	logger *zap.Logger
	config config.LLMModelConfig
}

// NewGenAIClient creates a client backed by the genai SDK.
func NewGenAIClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("GenAI model name is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIClient{
		client: client,
		model:  cfg.Model,
		logger: logger.Named("vlm_client.genai"),
		config: cfg,
	}, nil
}

// Generate sends the request through the SDK and returns the response text.
func (c *GenAIClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	var contents []*genai.Content
	if req.Image != nil && !req.Image.IsZero() {
		parts := []*genai.Part{
			genai.NewPartFromText(req.UserPrompt),
			genai.NewPartFromBytes(req.Image.Data, req.Image.MIMEType),
		}
		contents = []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	} else {
		contents = []*genai.Content{genai.NewContentFromText(req.UserPrompt, genai.RoleUser)}
	}

	temp := float32(req.Options.Temperature)
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemPrompt, genai.RoleUser),
		Temperature:       &temp,
	}
	if c.config.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(c.config.MaxTokens)
	}
	if req.Options.ForceJSONFormat {
		genCfg.ResponseMIMEType = "application/json"
	}

	res, err := c.client.Models.GenerateContent(ctx, c.model, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("genai generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("genai returned empty text")
	}

	c.logger.Debug("VLM generation complete (GenAI)",
		zap.String("model", c.model),
		zap.Bool("with_image", req.Image != nil),
	)
	return text, nil
}

// Close tears down the underlying SDK client.
// The genai SDK client has no Close method; nothing to release.
func (c *GenAIClient) Close() error {
	return nil
}
