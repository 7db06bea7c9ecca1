// internal/agent/planner.go
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

const plannerSystemPrompt = `You are the planning component of a screen-guidance assistant.
The user states an overall goal and you break it into an ordered list of milestones.
Each milestone is a self-contained stage the user can recognize as done.
Respond with JSON only, matching this schema exactly:
{"goals": [{"id": 1, "title": "...", "description": "..."}]}
Rules:
- IDs are sequential integers starting at 1, no gaps.
- 2 to 8 milestones; fewer, larger stages beat many trivial ones.
- Titles are short noun phrases; descriptions say what "done" looks like.`

// Planner turns a user goal plus session history into a milestone plan.
type Planner struct {
	client schemas.VLMClient
	logger *zap.Logger
}

// NewPlanner creates the planning step.
func NewPlanner(client schemas.VLMClient, logger *zap.Logger) *Planner {
	return &Planner{
		client: client,
		logger: logger.Named("planner"),
	}
}

// plannerGoal is the wire shape of one planned milestone.
type plannerGoal struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// plannerResponse is the strict-schema wrapper the prompt asks for.
type plannerResponse struct {
	Goals []plannerGoal `json:"goals"`
}

// Plan requests a milestone decomposition of the goal. The returned list is
// non-empty, order-preserving, and renumbered to a gap-free 1..n sequence.
// Fails with ErrNoPlanGenerated when the model yields nothing usable.
func (p *Planner) Plan(ctx context.Context, userGoal, history string, img schemas.Screenshot) ([]session.MesoGoal, error) {
	userPrompt := fmt.Sprintf("Overall goal: %s\n\nProgress so far:\n%s\n\nThe attached screenshot shows the user's current screen. Produce the milestone plan.",
		userGoal, history)

	req := schemas.GenerationRequest{
		SystemPrompt: plannerSystemPrompt,
		UserPrompt:   userPrompt,
		Tier:         schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			Temperature:     0.4,
			ForceJSONFormat: true,
		},
	}
	if !img.IsZero() {
		req.Image = &img
	}

	raw, err := p.client.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("planner capability call: %w: %w", ErrMaxRetriesExceeded, err)
	}

	goals, parseErr := parsePlannerGoals(raw)
	if parseErr != nil {
		p.logger.Warn("Planner response was unparseable", zap.Error(parseErr), zap.Int("raw_len", len(raw)))
		return nil, fmt.Errorf("%w: %w", ErrNoPlanGenerated, parseErr)
	}
	if len(goals) == 0 {
		p.logger.Warn("Planner returned an empty milestone list")
		return nil, fmt.Errorf("%w: model returned zero milestones", ErrNoPlanGenerated)
	}

	plan := normalizeGoals(goals)
	p.logger.Info("Milestone plan generated", zap.Int("milestones", len(plan)))
	return plan, nil
}

// parsePlannerGoals tries the strict wrapper schema first, then falls back to
// a bare array of goals, which smaller models tend to emit.
func parsePlannerGoals(raw string) ([]plannerGoal, error) {
	if wrapped, err := llmutil.ParseJSONResponse[plannerResponse](raw); err == nil {
		return wrapped.Goals, nil
	}

	bare, err := llmutil.ParseJSONResponse[[]plannerGoal](raw)
	if err != nil {
		return nil, err
	}
	return *bare, nil
}

// normalizeGoals drops empty or duplicate titles and renumbers the survivors
// sequentially, preserving the model's ordering.
func normalizeGoals(goals []plannerGoal) []session.MesoGoal {
	seen := make(map[string]bool, len(goals))
	plan := make([]session.MesoGoal, 0, len(goals))
	for _, g := range goals {
		title := strings.TrimSpace(g.Title)
		if title == "" || seen[strings.ToLower(title)] {
			continue
		}
		seen[strings.ToLower(title)] = true
		plan = append(plan, session.MesoGoal{
			ID:          len(plan) + 1,
			Title:       title,
			Description: strings.TrimSpace(g.Description),
		})
	}
	return plan
}
