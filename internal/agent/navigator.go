// internal/agent/navigator.go
package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/overlayhq/sherpa/api/schemas"
	"github.com/overlayhq/sherpa/internal/llmutil"
	"github.com/overlayhq/sherpa/internal/session"
)

const navigatorSystemPrompt = `You are the navigation component of a screen-guidance assistant.
Given the current milestone and a screenshot of the user's screen, produce the
single next atomic action the user should perform. One click, one keystroke
sequence, one field entry. Never bundle steps.
Respond with JSON only, matching this schema exactly:
{"instruction": "...", "success_criteria": "...", "memory_to_save": {"key": "value"}, "value_to_copy": "..."}
Rules:
- "instruction" addresses the user directly and names the visible UI element.
- "success_criteria" describes what the screen looks like once the action is done,
  so a later check can verify it from a screenshot alone.
- "memory_to_save" records facts worth remembering (names, URLs, generated values); omit when empty.
- "value_to_copy" is text the user should paste somewhere; omit when not applicable.`

// fallbackSuccessCriteria is the generic criterion attached when the model's
// answer could not be parsed and the raw text is served as the instruction.
const fallbackSuccessCriteria = "The user confirms the step is complete."

// Navigator produces the next atomic instruction for the active milestone.
type Navigator struct {
	client schemas.VLMClient
	logger *zap.Logger
}

// NewNavigator creates the navigation step.
func NewNavigator(client schemas.VLMClient, logger *zap.Logger) *Navigator {
	return &Navigator{
		client: client,
		logger: logger.Named("navigator"),
	}
}

// navigatorResponse is the wire shape of one instruction.
type navigatorResponse struct {
	Instruction     string            `json:"instruction"`
	SuccessCriteria string            `json:"success_criteria"`
	MemoryToSave    map[string]string `json:"memory_to_save,omitempty"`
	ValueToCopy     string            `json:"value_to_copy,omitempty"`
}

// NextInstruction asks for the next atomic step toward the milestone. A
// malformed but successfully transported response degrades to a fallback
// instruction carrying the raw text; only transport-level failures return an
// error.
func (n *Navigator) NextInstruction(ctx context.Context, goal session.MesoGoal, img schemas.Screenshot, blackboard map[string]string) (*session.MicroInstruction, error) {
	if img.IsZero() {
		return nil, fmt.Errorf("%w: screenshot is empty", ErrImageEncodingFailed)
	}

	userPrompt := fmt.Sprintf("Current milestone: %s\n%s\n\nKnown facts:\n%s\nActions already taken for this milestone:\n%s\nThe attached screenshot shows the current screen. What is the single next action?",
		goal.Title, goal.Description, formatBlackboard(blackboard), formatActions(goal.CompletedActions))

	req := schemas.GenerationRequest{
		SystemPrompt: navigatorSystemPrompt,
		UserPrompt:   userPrompt,
		Image:        &img,
		Tier:         schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			Temperature:     0.2,
			ForceJSONFormat: true,
		},
	}

	raw, err := n.client.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("navigator capability call: %w: %w", ErrMaxRetriesExceeded, err)
	}

	parsed, parseErr := llmutil.ParseJSONResponse[navigatorResponse](raw)
	if parseErr != nil || strings.TrimSpace(parsed.Instruction) == "" {
		// Format failure, not transport failure. The raw text is usually
		// still a readable instruction, so serve it with a generic criterion.
		n.logger.Warn("Navigator response was unparseable, using raw-text fallback",
			zap.Error(parseErr), zap.Int("raw_len", len(raw)))
		return &session.MicroInstruction{
			Instruction:     llmutil.CleanTextOutput(raw),
			SuccessCriteria: fallbackSuccessCriteria,
		}, nil
	}

	n.logger.Debug("Instruction generated", zap.String("milestone", goal.Title))
	return &session.MicroInstruction{
		Instruction:     strings.TrimSpace(parsed.Instruction),
		SuccessCriteria: strings.TrimSpace(parsed.SuccessCriteria),
		MemoryToSave:    parsed.MemoryToSave,
		ValueToCopy:     strings.TrimSpace(parsed.ValueToCopy),
	}, nil
}

func formatBlackboard(blackboard map[string]string) string {
	if len(blackboard) == 0 {
		return "(none)\n"
	}
	keys := make([]string, 0, len(blackboard))
	for k := range blackboard {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, blackboard[k])
	}
	return b.String()
}

func formatActions(actions []string) string {
	if len(actions) == 0 {
		return "(none yet)\n"
	}
	var b strings.Builder
	for _, a := range actions {
		fmt.Fprintf(&b, "- %s\n", a)
	}
	return b.String()
}
