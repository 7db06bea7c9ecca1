// internal/agent/models.go
package agent

import (
	"context"

	"github.com/overlayhq/sherpa/api/schemas"
	"github.com/overlayhq/sherpa/internal/session"
)

// AgentState represents the engine's current phase within the guidance loop.
// Exactly one value is active at any instant.
type AgentState string

const (
	StateIdle        AgentState = "IDLE"        // No session is active.
	StatePlanning    AgentState = "PLANNING"    // The planner is decomposing the goal into milestones.
	StateNavigating  AgentState = "NAVIGATING"  // The navigator is producing the next instruction.
	StateWatching    AgentState = "WATCHING"    // An instruction is pending; the watcher verifies the screen against it.
	StateSummarizing AgentState = "SUMMARIZING" // The summarizer is compressing the finished milestone.
	StateCompleted   AgentState = "COMPLETED"   // Every milestone is done.
	StateError       AgentState = "ERROR"       // A step failed; only a reset recovers.
)

// IsTerminal reports whether the state ends automatic progression for the
// current session. Only a reset leaves a terminal state.
func (s AgentState) IsTerminal() bool {
	return s == StateCompleted || s == StateError
}

// Snapshot is the read-only view of the engine the UI renders from. It is a
// value copy; holding one never observes later mutations.
type Snapshot struct {
	State        AgentState `json:"state"`
	ErrorMessage string     `json:"error_message,omitempty"`

	SessionID string `json:"session_id,omitempty"`
	UserGoal  string `json:"user_goal,omitempty"`

	// Instruction is the display string for the pending step. On error it
	// carries the explanatory message instead, so the UI always has
	// something meaningful to show.
	Instruction string `json:"instruction,omitempty"`
	ValueToCopy string `json:"value_to_copy,omitempty"`

	CurrentMilestone string   `json:"current_milestone,omitempty"`
	CompletedCount   int      `json:"completed_count"`
	TotalMilestones  int      `json:"total_milestones"`
	History          []string `json:"history,omitempty"`
}

// PlannerStep decomposes a user goal into an ordered milestone list.
type PlannerStep interface {
	Plan(ctx context.Context, userGoal, history string, img schemas.Screenshot) ([]session.MesoGoal, error)
}

// NavigatorStep produces the single next atomic instruction for a milestone.
type NavigatorStep interface {
	NextInstruction(ctx context.Context, goal session.MesoGoal, img schemas.Screenshot, blackboard map[string]string) (*session.MicroInstruction, error)
}

// WatcherStep judges whether the screen satisfies a pending instruction's
// success criterion.
type WatcherStep interface {
	Check(ctx context.Context, successCriteria string, img schemas.Screenshot) (session.WatcherResult, error)
}

// SummarizerStep compresses a completed milestone into one history line.
type SummarizerStep interface {
	Summarize(ctx context.Context, goal session.MesoGoal, instructions []string) (string, error)
}
