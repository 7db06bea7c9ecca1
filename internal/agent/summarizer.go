// internal/agent/summarizer.go
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

const summarizerSystemPrompt = `You are the summarization component of a screen-guidance assistant.
A milestone was just completed. Compress it into one short past-tense sentence
describing what was accomplished. Respond with the sentence only: no JSON, no
quotes, no preamble.`

// Summarizer compresses a completed milestone into a single history line.
type Summarizer struct {
	client schemas.VLMClient
	logger *zap.Logger
}

// NewSummarizer creates the summarization step.
func NewSummarizer(client schemas.VLMClient, logger *zap.Logger) *Summarizer {
	return &Summarizer{
		client: client,
		logger: logger.Named("summarizer"),
	}
}

// Summarize produces the one-line history entry for a finished milestone.
// When the model returns nothing usable the milestone title stands in, so a
// summarization hiccup never blocks progression.
func (s *Summarizer) Summarize(ctx context.Context, goal session.MesoGoal, instructions []string) (string, error) {
	var steps strings.Builder
	if len(instructions) == 0 {
		steps.WriteString("(the user completed it without issued instructions)\n")
	}
	for _, instr := range instructions {
		fmt.Fprintf(&steps, "- %s\n", instr)
	}

	req := schemas.GenerationRequest{
		SystemPrompt: summarizerSystemPrompt,
		UserPrompt: fmt.Sprintf("Milestone: %s\n%s\n\nInstructions issued while it was active:\n%s",
			goal.Title, goal.Description, steps.String()),
		Tier: schemas.TierFast,
		Options: schemas.GenerationOptions{
			Temperature: 0.3,
		},
	}

	raw, err := s.client.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("summarizer capability call: %w: %w", ErrMaxRetriesExceeded, err)
	}

	summary := llmutil.CleanTextOutput(raw)
	if summary == "" {
		s.logger.Warn("Summarizer returned empty text, falling back to the milestone title")
		summary = fmt.Sprintf("Completed: %s", goal.Title)
	}

	s.logger.Debug("Milestone summarized", zap.String("milestone", goal.Title))
	return summary, nil
}
