package llmclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overlayhq/sherpa/internal/config"
)

func TestNewClient_Gemini(t *testing.T) {
	logger := setupTestLogger(t)
	cfg := getValidModelConfig()

	client, err := NewClient(context.Background(), cfg, logger)

	require.NoError(t, err)
	assert.IsType(t, &GeminiClient{}, client)
}

func TestNewClient_DefaultsToGemini(t *testing.T) {
	logger := setupTestLogger(t)
	cfg := getValidModelConfig()
	cfg.Provider = ""

	client, err := NewClient(context.Background(), cfg, logger)

	require.NoError(t, err)
	assert.IsType(t, &GeminiClient{}, client)
}

func TestNewClient_UnknownProvider(t *testing.T) {
	logger := setupTestLogger(t)
	cfg := getValidModelConfig()
	cfg.Provider = "anthropic"

	client, err := NewClient(context.Background(), cfg, logger)

	assert.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "unknown or unsupported VLM provider")
}

func TestNewRouterFromConfig_DistinctTiers(t *testing.T) {
	logger := setupTestLogger(t)
	cfg := config.LLMRouterConfig{
		DefaultFastModel:     "fast-model",
		DefaultPowerfulModel: "powerful-model",
		Models: map[string]config.LLMModelConfig{
			"fast-model":     {Provider: config.ProviderGemini, APIKey: "k1"},
			"powerful-model": {Provider: config.ProviderGemini, APIKey: "k2"},
		},
	}

	router, err := NewRouterFromConfig(context.Background(), cfg, logger)

	require.NoError(t, err)
	require.NotNil(t, router)
	assert.Len(t, router.clients, 2)
}

func TestNewRouterFromConfig_SharedModel(t *testing.T) {
	logger := setupTestLogger(t)
	cfg := config.LLMRouterConfig{
		DefaultFastModel:     "only-model",
		DefaultPowerfulModel: "only-model",
		Models: map[string]config.LLMModelConfig{
			"only-model": {Provider: config.ProviderGemini, APIKey: "k"},
		},
	}

	router, err := NewRouterFromConfig(context.Background(), cfg, logger)

	require.NoError(t, err)
	// Both tiers must resolve to the same underlying client.
	assert.Same(t, router.clients["fast"], router.clients["powerful"])
}

func TestNewRouterFromConfig_MissingKey(t *testing.T) {
	logger := setupTestLogger(t)
	cfg := config.LLMRouterConfig{
		DefaultFastModel:     "fast-model",
		DefaultPowerfulModel: "powerful-model",
	}

	router, err := NewRouterFromConfig(context.Background(), cfg, logger)

	assert.Error(t, err)
	assert.Nil(t, router)
	assert.Contains(t, err.Error(), "creating fast tier client")
}
