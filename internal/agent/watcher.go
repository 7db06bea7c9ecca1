// internal/agent/watcher.go
package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/overlayhq/sherpa/api/schemas"
	"github.com/overlayhq/sherpa/internal/llmutil"
	"github.com/overlayhq/sherpa/internal/session"
)

const watcherSystemPrompt = `You are the verification component of a screen-guidance assistant.
You receive a success criterion and a screenshot of the user's current screen.
Judge strictly from what is visible whether the criterion is satisfied.
Respond with JSON only, matching this schema exactly:
{"is_complete": true, "reasoning": "..."}
If the screen does not clearly satisfy the criterion, answer false.`

// Watcher verifies a pending instruction's success criterion against the
// current screen.
type Watcher struct {
	client schemas.VLMClient
	logger *zap.Logger
}

// NewWatcher creates the verification step.
func NewWatcher(client schemas.VLMClient, logger *zap.Logger) *Watcher {
	return &Watcher{
		client: client,
		logger: logger.Named("watcher"),
	}
}

// watcherResponse is the wire shape of one verdict.
type watcherResponse struct {
	IsComplete bool   `json:"is_complete"`
	Reasoning  string `json:"reasoning"`
}

// Check asks whether the screen satisfies the criterion. Format parse
// failures degrade to a substring heuristic; only transport-level failures
// return an error.
func (w *Watcher) Check(ctx context.Context, successCriteria string, img schemas.Screenshot) (session.WatcherResult, error) {
	if img.IsZero() {
		return session.WatcherResult{}, fmt.Errorf("%w: screenshot is empty", ErrImageEncodingFailed)
	}

	req := schemas.GenerationRequest{
		SystemPrompt: watcherSystemPrompt,
		UserPrompt:   fmt.Sprintf("Success criterion: %s\n\nDoes the attached screenshot satisfy it?", successCriteria),
		Image:        &img,
		Tier:         schemas.TierFast,
		Options: schemas.GenerationOptions{
			Temperature:     0.0,
			ForceJSONFormat: true,
		},
	}

	raw, err := w.client.Generate(ctx, req)
	if err != nil {
		return session.WatcherResult{}, fmt.Errorf("watcher capability call: %w: %w", ErrMaxRetriesExceeded, err)
	}

	parsed, parseErr := llmutil.ParseJSONResponse[watcherResponse](raw)
	if parseErr != nil {
		w.logger.Warn("Watcher response was unparseable, using heuristic fallback", zap.Error(parseErr))
		return heuristicVerdict(raw), nil
	}

	w.logger.Debug("Watcher verdict", zap.Bool("is_complete", parsed.IsComplete))
	return session.WatcherResult{
		IsComplete: parsed.IsComplete,
		Reasoning:  strings.TrimSpace(parsed.Reasoning),
	}, nil
}

// heuristicVerdict scans malformed output for the JSON fragments or literal
// phrases the model was asked for. This is a lower-confidence approximation:
// negative signals are checked first, and absence of any signal means "not
// complete" so a garbled answer can never advance the session by accident.
func heuristicVerdict(raw string) session.WatcherResult {
	lowered := strings.ToLower(raw)

	negative := []string{`"is_complete": false`, `"is_complete":false`, "not complete", "incomplete"}
	for _, marker := range negative {
		if strings.Contains(lowered, marker) {
			return session.WatcherResult{IsComplete: false, Reasoning: "Heuristic parse of malformed verdict (negative marker)."}
		}
	}

	positive := []string{`"is_complete": true`, `"is_complete":true`, "complete"}
	for _, marker := range positive {
		if strings.Contains(lowered, marker) {
			return session.WatcherResult{IsComplete: true, Reasoning: "Heuristic parse of malformed verdict (positive marker)."}
		}
	}

	return session.WatcherResult{IsComplete: false, Reasoning: "Verdict unreadable; assuming the step is not complete."}
}
