// internal/llmclient/router.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/overlayhq/sherpa/api/schemas"
)

// Router implements the VLMClient interface and dispatches each request to
// the client registered for its tier. The four guidance roles never pick a
// model by name; they pick a tier and the router does the rest.
type Router struct {
	logger  *zap.Logger
	clients map[schemas.ModelTier]schemas.VLMClient
}

// NewRouter creates a new router with the specified clients for each tier.
func NewRouter(logger *zap.Logger, fastClient, powerfulClient schemas.VLMClient) (*Router, error) {
	if fastClient == nil || powerfulClient == nil {
		return nil, fmt.Errorf("both fast and powerful tier clients must be provided")
	}

	return &Router{
		logger: logger.Named("vlm_router"),
		clients: map[schemas.ModelTier]schemas.VLMClient{
			schemas.TierFast:     fastClient,
			schemas.TierPowerful: powerfulClient,
		},
	}, nil
}

// Generate selects the appropriate client based on the request's Tier.
func (r *Router) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	tier := req.Tier
	if tier == "" {
		tier = schemas.TierPowerful // Default to the powerful tier if unspecified.
	}

	client, ok := r.clients[tier]
	if !ok {
		return "", fmt.Errorf("no VLM client configured for tier: %s", tier)
	}

	r.logger.Debug("Routing VLM request", zap.String("tier", string(tier)))
	return client.Generate(ctx, req)
}

// Close closes every distinct underlying client once.
func (r *Router) Close() error {
	seen := make(map[schemas.VLMClient]bool)
	var firstErr error
	for _, client := range r.clients {
		if seen[client] {
			continue
		}
		seen[client] = true
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
