// internal/agent/orchestrator.go
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/overlayhq/sherpa/api/schemas"
	"github.com/overlayhq/sherpa/internal/config"
	"github.com/overlayhq/sherpa/internal/screen"
	"github.com/overlayhq/sherpa/internal/session"
)

// Orchestrator owns the guidance state machine and the single live session.
// It dispatches the four steps, enforces at most one step call in flight,
// and publishes state snapshots to subscribers. All step calls run in
// goroutines; no command blocks its caller on model I/O.
type Orchestrator struct {
	logger *zap.Logger
	cfg    config.AgentConfig

	planner    PlannerStep
	navigator  NavigatorStep
	watcher    WatcherStep
	summarizer SummarizerStep

	mu           sync.Mutex
	state        AgentState
	errMsg       string
	sess         *session.Context
	isProcessing bool
	// sessionCtx is cancelled by Reset so outstanding calls stop promptly.
	sessionCtx    context.Context
	cancelSession context.CancelFunc
	// lastScreenshot backs chained navigation calls that arrive without a
	// fresh image (e.g. after a manual mark-complete).
	lastScreenshot schemas.Screenshot

	screenSource    schemas.ScreenSource
	unsubscribeFeed func()
	debouncer       *screen.Debouncer
	feedDone        chan struct{}

	listeners      map[uint64]chan Snapshot
	nextListenerID uint64
}

// New creates an orchestrator with explicitly injected steps. Every
// collaborator is a constructor argument; the orchestrator holds no ambient
// global state.
func New(cfg config.AgentConfig, planner PlannerStep, navigator NavigatorStep, watcher WatcherStep, summarizer SummarizerStep, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		logger:     logger.Named("orchestrator"),
		cfg:        cfg,
		planner:    planner,
		navigator:  navigator,
		watcher:    watcher,
		summarizer: summarizer,
		state:      StateIdle,
		listeners:  make(map[uint64]chan Snapshot),
	}
}

// NewFromClient wires the four concrete steps around a single VLM client,
// which is the normal production construction.
func NewFromClient(cfg config.AgentConfig, client schemas.VLMClient, logger *zap.Logger) *Orchestrator {
	return New(cfg,
		NewPlanner(client, logger),
		NewNavigator(client, logger),
		NewWatcher(client, logger),
		NewSummarizer(client, logger),
		logger,
	)
}

// -- Observation --

// Snapshot returns the current read-only view of the engine.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:        o.state,
		ErrorMessage: o.errMsg,
	}
	if o.sess == nil {
		return snap
	}

	snap.SessionID = o.sess.ID()
	snap.UserGoal = o.sess.UserGoal()
	snap.CompletedCount, snap.TotalMilestones = o.sess.Progress()
	snap.History = o.sess.History()

	if goal, ok := o.sess.CurrentMesoGoal(); ok {
		snap.CurrentMilestone = goal.Title
	}

	if o.state == StateError {
		// The instruction slot shows the explanation; progress and history
		// stay inspectable so the UI can show how far the session got.
		snap.Instruction = o.errMsg
	} else if instr := o.sess.CurrentInstruction(); instr != nil {
		snap.Instruction = instr.Instruction
		snap.ValueToCopy = instr.ValueToCopy
	}
	return snap
}

// Subscribe registers a listener for state snapshots. The returned function
// unregisters it and closes the channel. Slow listeners miss intermediate
// snapshots rather than blocking the engine.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextListenerID
	o.nextListenerID++
	ch := make(chan Snapshot, 16)
	o.listeners[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if _, ok := o.listeners[id]; ok {
				delete(o.listeners, id)
				close(ch)
			}
		})
	}
	return ch, unsubscribe
}

func (o *Orchestrator) notifyLocked() {
	snap := o.snapshotLocked()
	for _, ch := range o.listeners {
		select {
		case ch <- snap:
		default:
		}
	}
}

// updateStateLocked transitions the state machine and publishes the change.
// A non-empty message puts the explanation in front of the UI.
func (o *Orchestrator) updateStateLocked(next AgentState, errMsg string) {
	if o.state == next && o.errMsg == errMsg {
		return
	}
	o.logger.Info("State transition",
		zap.String("from", string(o.state)),
		zap.String("to", string(next)),
	)
	o.state = next
	o.errMsg = errMsg
	o.notifyLocked()
}

// -- Commands --

// StartSession begins a fresh guidance session for the goal: the session
// context is created, planning starts immediately, and on success the first
// navigation call chains without further input. Returns an error if a
// session is already underway.
func (o *Orchestrator) StartSession(goal string, img schemas.Screenshot) error {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return fmt.Errorf("user goal must not be empty")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateIdle {
		return fmt.Errorf("cannot start a session while state is %s; reset first", o.state)
	}

	o.sess = session.New(goal, o.cfg.HistoryCapacity)
	o.sessionCtx, o.cancelSession = context.WithCancel(context.Background())
	o.lastScreenshot = img
	o.isProcessing = true
	o.updateStateLocked(StatePlanning, "")

	sid := o.sess.ID()
	ctx := o.sessionCtx
	history := o.sess.FormatHistory()
	o.logger.Info("Session started", zap.String("session_id", sid), zap.String("goal", goal))

	go o.runPlanning(ctx, sid, goal, history, img)
	return nil
}

// ProcessNextStep nudges a stalled session forward: it re-plans when the
// milestone list is empty or exhausted without completion, or requests the
// next instruction when none is pending. Triggers during an in-flight step
// are dropped.
func (o *Orchestrator) ProcessNextStep(img schemas.Screenshot) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sess == nil {
		return fmt.Errorf("%w: no session to advance", ErrSessionNotActive)
	}
	if o.isProcessing {
		o.logger.Debug("Dropping next-step trigger, a step call is already in flight")
		return nil
	}
	if o.state.IsTerminal() {
		return fmt.Errorf("%w: session is in terminal state %s", ErrSessionNotActive, o.state)
	}

	if !img.IsZero() {
		o.lastScreenshot = img
	}
	sid := o.sess.ID()
	ctx := o.sessionCtx

	if !o.sess.HasMoreMesoGoals() {
		// No usable plan; build one.
		o.isProcessing = true
		o.updateStateLocked(StatePlanning, "")
		go o.runPlanning(ctx, sid, o.sess.UserGoal(), o.sess.FormatHistory(), o.lastScreenshot)
		return nil
	}

	if o.sess.CurrentInstruction() == nil {
		goal, _ := o.sess.CurrentMesoGoal()
		o.isProcessing = true
		o.updateStateLocked(StateNavigating, "")
		go o.runNavigation(ctx, sid, goal, o.lastScreenshot)
		return nil
	}

	o.logger.Debug("Next-step trigger ignored, an instruction is already pending")
	return nil
}

// CheckStepCompletion runs the watcher against the pending instruction.
// Driven by the debounced screen-change subscription; triggers that arrive
// outside the watching state or while a step is in flight are dropped, not
// queued.
func (o *Orchestrator) CheckStepCompletion(img schemas.Screenshot) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sess == nil {
		return fmt.Errorf("%w: no session to check", ErrSessionNotActive)
	}
	if o.state != StateWatching {
		o.logger.Debug("Dropping completion check outside watching state", zap.String("state", string(o.state)))
		return nil
	}
	if o.isProcessing {
		o.logger.Debug("Dropping completion check, a step call is already in flight")
		return nil
	}

	instr := o.sess.CurrentInstruction()
	if instr == nil {
		return fmt.Errorf("watching state with no pending instruction")
	}

	if !img.IsZero() {
		o.lastScreenshot = img
	}
	o.isProcessing = true

	go o.runWatch(o.sessionCtx, o.sess.ID(), instr.SuccessCriteria, o.lastScreenshot)
	return nil
}

// MarkStepComplete is the user's manual override: the pending instruction is
// treated as done without consulting the watcher, and summarization starts
// immediately.
func (o *Orchestrator) MarkStepComplete() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sess == nil {
		return fmt.Errorf("%w: no session to advance", ErrSessionNotActive)
	}
	if o.state != StateWatching {
		return fmt.Errorf("%w: nothing is awaiting completion (state %s)", ErrSessionNotActive, o.state)
	}
	if o.isProcessing {
		o.logger.Debug("Dropping manual completion, a step call is already in flight")
		return nil
	}

	o.isProcessing = true
	o.updateStateLocked(StateSummarizing, "")
	go o.runSummarize(o.sessionCtx, o.sess.ID())
	return nil
}

// Reset cancels any outstanding call, unsubscribes from the screen-change
// feed, discards the session wholesale, and returns to idle. Results of calls
// started before the reset are recognized by their stale session identity and
// discarded on arrival. A feed must be re-attached for the next session.
func (o *Orchestrator) Reset() {
	o.DetachScreenFeed()

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cancelSession != nil {
		o.cancelSession()
		o.cancelSession = nil
		o.sessionCtx = nil
	}

	o.sess = nil
	o.isProcessing = false
	o.lastScreenshot = schemas.Screenshot{}
	o.logger.Info("Session reset")
	o.updateStateLocked(StateIdle, "")
}

// -- Screen feed wiring --

// AttachScreenFeed subscribes to the change feed and drives completion
// checks from it: each raw change restarts the debounce timer, and only
// after the quiet period does a capture-and-check fire. A nil clock uses
// runtime timers.
func (o *Orchestrator) AttachScreenFeed(feed schemas.ChangeFeed, source schemas.ScreenSource, clock screen.Clock) {
	o.mu.Lock()
	if o.unsubscribeFeed != nil {
		o.mu.Unlock()
		o.logger.Warn("Screen feed already attached, ignoring")
		return
	}

	ch, unsubscribe := feed.Subscribe()
	done := make(chan struct{})
	o.screenSource = source
	o.unsubscribeFeed = unsubscribe
	o.debouncer = screen.NewDebouncer(o.cfg.DebounceQuietPeriod, clock)
	o.feedDone = done
	debouncer := o.debouncer
	o.mu.Unlock()

	go func() {
		defer close(done)
		for range ch {
			debouncer.Debounce(o.captureAndCheck)
		}
	}()
}

// DetachScreenFeed unsubscribes from the change feed and waits for the
// consumer goroutine to drain.
func (o *Orchestrator) DetachScreenFeed() {
	o.mu.Lock()
	unsubscribe := o.unsubscribeFeed
	done := o.feedDone
	if o.debouncer != nil {
		o.debouncer.Cancel()
	}
	o.unsubscribeFeed = nil
	o.feedDone = nil
	o.screenSource = nil
	o.debouncer = nil
	o.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if done != nil {
		<-done
	}
}

// Close tears down the feed subscription and cancels any outstanding work.
func (o *Orchestrator) Close() {
	o.Reset()
}

func (o *Orchestrator) captureAndCheck() {
	o.mu.Lock()
	source := o.screenSource
	active := o.sess != nil && o.state == StateWatching && !o.isProcessing
	o.mu.Unlock()
	if !active {
		return
	}

	img := schemas.Screenshot{}
	if source != nil {
		captured, err := source.Capture(context.Background())
		if err != nil {
			o.logger.Warn("Screen capture for completion check failed", zap.Error(err))
			return
		}
		img = captured
	}
	if err := o.CheckStepCompletion(img); err != nil {
		o.logger.Debug("Debounced completion check rejected", zap.Error(err))
	}
}

// -- Step goroutines --

// stepContext derives the bounded context for one model call.
func (o *Orchestrator) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.StepTimeout > 0 {
		return context.WithTimeout(ctx, o.cfg.StepTimeout)
	}
	return context.WithCancel(ctx)
}

// apply runs fn under the lock only if sid still names the live session.
// Results tagged with a stale identity are discarded without touching
// anything: a session created by a later reset must never observe them.
func (o *Orchestrator) apply(sid string, fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess == nil || o.sess.ID() != sid {
		o.logger.Debug("Discarding result from a superseded session", zap.String("session_id", sid))
		return
	}
	fn()
}

func (o *Orchestrator) runPlanning(ctx context.Context, sid, goal, history string, img schemas.Screenshot) {
	stepCtx, cancel := o.stepContext(ctx)
	defer cancel()

	plan, err := o.planner.Plan(stepCtx, goal, history, img)

	o.apply(sid, func() {
		if err != nil {
			o.isProcessing = false
			o.logger.Error("Planning failed", zap.Error(err), zap.String("code", string(CodeForError(err))))
			o.updateStateLocked(StateError, planErrorMessage(err))
			return
		}

		o.sess.InstallPlan(plan)
		// Chain straight into the first navigation call; isProcessing stays
		// set across the transition so no other trigger can interleave.
		nextGoal, _ := o.sess.CurrentMesoGoal()
		o.updateStateLocked(StateNavigating, "")
		go o.runNavigation(ctx, sid, nextGoal, img)
	})
}

func (o *Orchestrator) runNavigation(ctx context.Context, sid string, goal session.MesoGoal, img schemas.Screenshot) {
	stepCtx, cancel := o.stepContext(ctx)
	defer cancel()

	instr, err := o.navigator.NextInstruction(stepCtx, goal, img, o.blackboardFor(sid))

	o.apply(sid, func() {
		o.isProcessing = false
		if err != nil {
			o.logger.Error("Navigation failed", zap.Error(err), zap.String("code", string(CodeForError(err))))
			o.updateStateLocked(StateError, fmt.Sprintf("Could not determine the next step: %v", err))
			return
		}

		// Memory writes land before the instruction is published, so any
		// later read sees them.
		o.sess.UpdateBlackboard(instr.MemoryToSave)
		o.sess.SetInstruction(instr)
		o.updateStateLocked(StateWatching, "")
	})
}

func (o *Orchestrator) runWatch(ctx context.Context, sid, successCriteria string, img schemas.Screenshot) {
	stepCtx, cancel := o.stepContext(ctx)
	defer cancel()

	result, err := o.watcher.Check(stepCtx, successCriteria, img)

	o.apply(sid, func() {
		if err != nil {
			o.isProcessing = false
			o.logger.Error("Completion check failed", zap.Error(err), zap.String("code", string(CodeForError(err))))
			o.updateStateLocked(StateError, fmt.Sprintf("Could not verify the step: %v", err))
			return
		}

		if !result.IsComplete {
			// Reasoning is informational only; nothing mutates and the
			// pending instruction remains on display.
			o.isProcessing = false
			o.logger.Debug("Step not complete yet", zap.String("reasoning", result.Reasoning))
			return
		}

		o.logger.Info("Step verified complete", zap.String("reasoning", result.Reasoning))
		o.updateStateLocked(StateSummarizing, "")
		go o.runSummarize(ctx, sid)
	})
}

func (o *Orchestrator) runSummarize(ctx context.Context, sid string) {
	var (
		goal         session.MesoGoal
		instructions []string
		ok           bool
	)
	o.apply(sid, func() {
		goal, ok = o.sess.CurrentMesoGoal()
		instructions = o.sess.InstructionLog()
	})
	if !ok {
		o.apply(sid, func() {
			o.isProcessing = false
			o.updateStateLocked(StateError, "No active milestone to summarize.")
		})
		return
	}

	stepCtx, cancel := o.stepContext(ctx)
	defer cancel()

	summary, err := o.summarizer.Summarize(stepCtx, goal, instructions)

	o.apply(sid, func() {
		if err != nil {
			o.isProcessing = false
			o.logger.Error("Summarization failed", zap.Error(err), zap.String("code", string(CodeForError(err))))
			o.updateStateLocked(StateError, fmt.Sprintf("Could not summarize the milestone: %v", err))
			return
		}

		o.sess.AddToHistory(summary)
		if advErr := o.sess.AdvanceToNextMeso(); advErr != nil {
			o.isProcessing = false
			o.updateStateLocked(StateError, fmt.Sprintf("Could not advance the plan: %v", advErr))
			return
		}

		if !o.sess.HasMoreMesoGoals() {
			o.isProcessing = false
			o.logger.Info("All milestones complete")
			o.updateStateLocked(StateCompleted, "")
			return
		}

		// Next milestone: chain into navigation with the freshest image we
		// can get. isProcessing stays set across the transition.
		nextGoal, _ := o.sess.CurrentMesoGoal()
		img := o.lastScreenshot
		source := o.screenSource
		o.updateStateLocked(StateNavigating, "")
		go func() {
			if source != nil {
				if captured, captureErr := source.Capture(ctx); captureErr == nil {
					img = captured
				}
			}
			o.runNavigation(ctx, sid, nextGoal, img)
		}()
	})
}

func (o *Orchestrator) blackboardFor(sid string) map[string]string {
	var snapshot map[string]string
	o.apply(sid, func() {
		snapshot = o.sess.BlackboardSnapshot()
	})
	return snapshot
}

func planErrorMessage(err error) string {
	if CodeForError(err) == ErrCodeNoPlanGenerated {
		return "Could not generate a plan for this goal. Please try rephrasing it."
	}
	return fmt.Sprintf("Could not plan this goal: %v", err)
}
