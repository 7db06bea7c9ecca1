// internal/session/session.go
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryCapacity bounds the rolling milestone summary when the caller
// does not supply a capacity.
const DefaultHistoryCapacity = 10

// MesoGoal is one mid-granularity milestone between the overall user goal and
// a single atomic instruction. Goals are created in bulk by the planning step
// and only ever mutated by the orchestrator.
type MesoGoal struct {
	ID               int      `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	IsCompleted      bool     `json:"is_completed"`
	CompletedActions []string `json:"completed_actions,omitempty"`
}

// MicroInstruction is one atomic, user-actionable step plus its
// machine-checkable completion criterion. Immutable after creation; the next
// navigation call supersedes it rather than editing it.
type MicroInstruction struct {
	Instruction     string            `json:"instruction"`
	SuccessCriteria string            `json:"success_criteria"`
	MemoryToSave    map[string]string `json:"memory_to_save,omitempty"`
	ValueToCopy     string            `json:"value_to_copy,omitempty"`
}

// WatcherResult is the verification verdict for a pending instruction.
// Ephemeral: consumed once by the orchestrator, never persisted.
type WatcherResult struct {
	IsComplete bool   `json:"is_complete"`
	Reasoning  string `json:"reasoning"`
}

// Context is the aggregate holding everything one guidance session knows:
// the user goal, the milestone plan and cursor, the bounded history summary,
// the blackboard scratchpad, and the pending instruction. Exactly one Context
// is live at a time; reset replaces it wholesale rather than clearing fields.
type Context struct {
	mu sync.RWMutex

	id        string
	startTime time.Time
	userGoal  string

	historySummary  []string
	historyCapacity int

	blackboard map[string]string

	mesoGoals          []MesoGoal
	mesoIndex          int
	completedMesoCount int

	currentInstruction *MicroInstruction
	// instructionLog accumulates the instruction texts issued for the goal at
	// the current cursor. Cleared on every advance.
	instructionLog []string
}

// New creates a fresh session context for the given goal. A non-positive
// capacity falls back to DefaultHistoryCapacity.
func New(userGoal string, historyCapacity int) *Context {
	if historyCapacity <= 0 {
		historyCapacity = DefaultHistoryCapacity
	}
	return &Context{
		id:              uuid.NewString(),
		startTime:       time.Now(),
		userGoal:        userGoal,
		historyCapacity: historyCapacity,
		blackboard:      make(map[string]string),
	}
}

// ID returns the session's unique identity. In-flight work is tagged with
// this value so stale results can be told apart from live ones.
func (c *Context) ID() string {
	return c.id
}

// StartTime returns when the session was created.
func (c *Context) StartTime() time.Time {
	return c.startTime
}

// UserGoal returns the overall goal the session is working toward.
func (c *Context) UserGoal() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userGoal
}

// AddToHistory appends one summary line, evicting the oldest entry once the
// capacity is exceeded.
func (c *Context) AddToHistory(summary string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.historySummary = append(c.historySummary, summary)
	if len(c.historySummary) > c.historyCapacity {
		c.historySummary = c.historySummary[1:]
	}
}

// History returns a copy of the rolling milestone summary, oldest first.
func (c *Context) History() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.historySummary))
	copy(out, c.historySummary)
	return out
}

// FormatHistory renders the history as a numbered block for prompt
// construction, or a fixed placeholder when nothing has happened yet.
func (c *Context) FormatHistory() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.historySummary) == 0 {
		return "No previous actions."
	}
	var b strings.Builder
	for i, entry := range c.historySummary {
		fmt.Fprintf(&b, "%d. %s\n", i+1, entry)
	}
	return strings.TrimRight(b.String(), "\n")
}

// UpdateBlackboard merges entries into the scratchpad. Later keys overwrite
// existing ones; nothing is ever removed within a session.
func (c *Context) UpdateBlackboard(entries map[string]string) {
	if len(entries) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range entries {
		c.blackboard[k] = v
	}
}

// BlackboardSnapshot returns a copy of the scratchpad safe for concurrent
// reads while steps run.
func (c *Context) BlackboardSnapshot() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.blackboard))
	for k, v := range c.blackboard {
		out[k] = v
	}
	return out
}

// InstallPlan replaces the milestone list and resets the cursor to the first
// goal. Called exactly once per session, when planning succeeds.
func (c *Context) InstallPlan(goals []MesoGoal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mesoGoals = make([]MesoGoal, len(goals))
	copy(c.mesoGoals, goals)
	c.mesoIndex = 0
	c.completedMesoCount = 0
	c.currentInstruction = nil
	c.instructionLog = nil
}

// CurrentMesoGoal returns the goal at the cursor, or false when the cursor
// has run past the end of the plan.
func (c *Context) CurrentMesoGoal() (MesoGoal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.mesoIndex < 0 || c.mesoIndex >= len(c.mesoGoals) {
		return MesoGoal{}, false
	}
	goal := c.mesoGoals[c.mesoIndex]
	goal.CompletedActions = append([]string(nil), goal.CompletedActions...)
	return goal, true
}

// HasMoreMesoGoals reports whether the cursor still points inside the plan.
func (c *Context) HasMoreMesoGoals() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mesoIndex < len(c.mesoGoals)
}

// AdvanceToNextMeso marks the goal at the cursor complete, bumps the
// completion counter and the cursor in lock-step, and clears the pending
// instruction and the per-milestone instruction log. Callable exactly once
// per milestone completion.
func (c *Context) AdvanceToNextMeso() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mesoIndex >= len(c.mesoGoals) {
		return fmt.Errorf("no milestone at cursor %d to advance past", c.mesoIndex)
	}
	c.mesoGoals[c.mesoIndex].IsCompleted = true
	c.completedMesoCount++
	c.mesoIndex++
	c.currentInstruction = nil
	c.instructionLog = nil
	return nil
}

// SetInstruction installs the pending instruction and appends its text to the
// per-milestone log and to the current goal's action record.
func (c *Context) SetInstruction(instr *MicroInstruction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentInstruction = instr
	if instr == nil {
		return
	}
	c.instructionLog = append(c.instructionLog, instr.Instruction)
	if c.mesoIndex >= 0 && c.mesoIndex < len(c.mesoGoals) {
		goal := &c.mesoGoals[c.mesoIndex]
		goal.CompletedActions = append(goal.CompletedActions, instr.Instruction)
	}
}

// CurrentInstruction returns the pending instruction, or nil when no
// navigation call has produced one yet for this milestone.
func (c *Context) CurrentInstruction() *MicroInstruction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentInstruction
}

// InstructionLog returns a copy of the instruction texts issued for the
// current milestone, in order.
func (c *Context) InstructionLog() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.instructionLog))
	copy(out, c.instructionLog)
	return out
}

// Progress returns how many milestones are done and how many exist in total.
func (c *Context) Progress() (completed, total int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.completedMesoCount, len(c.mesoGoals)
}

// MesoIndex returns the current cursor position.
func (c *Context) MesoIndex() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mesoIndex
}

// CompletedMesoCount returns how many goals have been marked complete.
func (c *Context) CompletedMesoCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.completedMesoCount
}

// MesoGoals returns a copy of the full plan.
func (c *Context) MesoGoals() []MesoGoal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]MesoGoal, len(c.mesoGoals))
	copy(out, c.mesoGoals)
	return out
}
