// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/overlayhq/sherpa/api/schemas"
	"github.com/overlayhq/sherpa/internal/config"
)

// NewClient is a factory function that creates a VLMClient for a single model
// based on its configured provider.
func NewClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (schemas.VLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini, "":
		return NewGeminiClient(cfg, logger)
	case config.ProviderGenAI:
		return NewGenAIClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported VLM provider configured: '%s'. Supported: [%s, %s]",
			cfg.Provider, config.ProviderGemini, config.ProviderGenAI)
	}
}

// NewRouterFromConfig builds the tiered router the guidance engine uses: one
// client for the fast tier and one for the powerful tier, each resolved from
// the routing configuration. When both tiers name the same model a single
// client serves both.
func NewRouterFromConfig(ctx context.Context, cfg config.LLMRouterConfig, logger *zap.Logger) (*Router, error) {
	fastCfg := cfg.ModelFor(cfg.DefaultFastModel)
	powerfulCfg := cfg.ModelFor(cfg.DefaultPowerfulModel)

	fastClient, err := NewClient(ctx, fastCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating fast tier client: %w", err)
	}

	if cfg.DefaultFastModel == cfg.DefaultPowerfulModel {
		return NewRouter(logger, fastClient, fastClient)
	}

	powerfulClient, err := NewClient(ctx, powerfulCfg, logger)
	if err != nil {
		fastClient.Close()
		return nil, fmt.Errorf("creating powerful tier client: %w", err)
	}

	return NewRouter(logger, fastClient, powerfulClient)
}
