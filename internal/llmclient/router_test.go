package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/overlayhq/sherpa/api/schemas"
)

// setupRouter creates a standard Router instance for testing, along with its
// mocks and a log observer.
func setupRouter(t *testing.T) (*Router, *MockVLMClient, *MockVLMClient, *observer.ObservedLogs) {
	t.Helper()
	loggerCore, observedLogs := observer.New(zap.DebugLevel)
	logger := zap.New(loggerCore)

	fastClient := &MockVLMClient{Name: "FastClient"}
	powerfulClient := &MockVLMClient{Name: "PowerfulClient"}

	router, err := NewRouter(logger, fastClient, powerfulClient)
	require.NoError(t, err, "NewRouter should initialize successfully")

	return router, fastClient, powerfulClient, observedLogs
}

func TestNewRouter_Success(t *testing.T) {
	router, fastClient, powerfulClient, _ := setupRouter(t)

	require.NotNil(t, router)
	assert.Equal(t, fastClient, router.clients[schemas.TierFast])
	assert.Equal(t, powerfulClient, router.clients[schemas.TierPowerful])
}

func TestNewRouter_Failure_MissingClients(t *testing.T) {
	logger := setupTestLogger(t)
	validClient := new(MockVLMClient)
	expectedError := "both fast and powerful tier clients must be provided"

	tests := []struct {
		name     string
		fast     schemas.VLMClient
		powerful schemas.VLMClient
	}{
		{"Missing Fast Client", nil, validClient},
		{"Missing Powerful Client", validClient, nil},
		{"Missing Both Clients", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, err := NewRouter(logger, tt.fast, tt.powerful)
			assert.Error(t, err)
			assert.Nil(t, router)
			assert.Contains(t, err.Error(), expectedError)
		})
	}
}

func TestGenerate_Routing_TierFast(t *testing.T) {
	router, fastClient, powerfulClient, observedLogs := setupRouter(t)

	req := schemas.GenerationRequest{UserPrompt: "Did the dialog close?", Tier: schemas.TierFast}
	fastClient.On("Generate", mock.Anything, req).Return("yes", nil).Once()

	response, err := router.Generate(context.Background(), req)

	assert.NoError(t, err)
	assert.Equal(t, "yes", response)
	fastClient.AssertExpectations(t)
	powerfulClient.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)

	debugLogs := observedLogs.FilterLevelExact(zap.DebugLevel)
	require.Equal(t, 1, debugLogs.Len())
	assert.Equal(t, "fast", debugLogs.All()[0].ContextMap()["tier"])
}

func TestGenerate_Routing_TierPowerful(t *testing.T) {
	router, fastClient, powerfulClient, _ := setupRouter(t)

	req := schemas.GenerationRequest{UserPrompt: "Plan the task.", Tier: schemas.TierPowerful}
	powerfulClient.On("Generate", mock.Anything, req).Return("plan", nil).Once()

	response, err := router.Generate(context.Background(), req)

	assert.NoError(t, err)
	assert.Equal(t, "plan", response)
	powerfulClient.AssertExpectations(t)
	fastClient.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestGenerate_Routing_DefaultsToPowerful(t *testing.T) {
	router, fastClient, powerfulClient, _ := setupRouter(t)

	req := schemas.GenerationRequest{UserPrompt: "No tier set."}
	powerfulClient.On("Generate", mock.Anything, req).Return("ok", nil).Once()

	response, err := router.Generate(context.Background(), req)

	assert.NoError(t, err)
	assert.Equal(t, "ok", response)
	powerfulClient.AssertExpectations(t)
	fastClient.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestGenerate_Routing_UnknownTier(t *testing.T) {
	router, _, _, _ := setupRouter(t)

	req := schemas.GenerationRequest{Tier: schemas.ModelTier("turbo")}
	response, err := router.Generate(context.Background(), req)

	assert.Error(t, err)
	assert.Empty(t, response)
	assert.Contains(t, err.Error(), "no VLM client configured for tier: turbo")
}

func TestGenerate_PropagatesClientError(t *testing.T) {
	router, fastClient, _, _ := setupRouter(t)

	expectedErr := errors.New("model unavailable")
	req := schemas.GenerationRequest{Tier: schemas.TierFast}
	fastClient.On("Generate", mock.Anything, req).Return("", expectedErr).Once()

	_, err := router.Generate(context.Background(), req)

	assert.ErrorIs(t, err, expectedErr)
	fastClient.AssertExpectations(t)
}

func TestClose_ClosesEachClientOnce(t *testing.T) {
	router, fastClient, powerfulClient, _ := setupRouter(t)

	fastClient.On("Close").Return(nil).Once()
	powerfulClient.On("Close").Return(nil).Once()

	assert.NoError(t, router.Close())
	fastClient.AssertExpectations(t)
	powerfulClient.AssertExpectations(t)
}

func TestClose_SharedClientClosedOnce(t *testing.T) {
	logger := setupTestLogger(t)
	shared := &MockVLMClient{Name: "Shared"}
	router, err := NewRouter(logger, shared, shared)
	require.NoError(t, err)

	shared.On("Close").Return(nil).Once()

	assert.NoError(t, router.Close())
	shared.AssertExpectations(t)
}
