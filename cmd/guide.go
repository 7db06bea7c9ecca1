// -- cmd/guide.go --
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/overlayhq/sherpa/api/schemas"
	"github.com/overlayhq/sherpa/internal/agent"
	"github.com/overlayhq/sherpa/internal/llmclient"
	"github.com/overlayhq/sherpa/internal/observability"
	"github.com/overlayhq/sherpa/internal/screen"
)

var (
	screenshotPath string
)

// guideCmd runs an interactive guidance session on the terminal. The
// screenshot file is re-read on every step, so an external capture tool can
// keep it fresh while the session runs.
var guideCmd = &cobra.Command{
	Use:   "guide [goal]",
	Short: "Start an interactive step-by-step guidance session",
	Long: `Starts a guidance session for the given goal and drives it from stdin.

Commands while the session runs:
  changed   the screen changed (feeds the debounced completion check)
  check     check the pending step against the current screenshot now
  done      mark the pending step complete without checking
  next      nudge a stalled session forward
  reset     abandon the session and return to idle
  quit      exit`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGuide(cmd.Context(), args[0])
	},
}

func init() {
	guideCmd.Flags().StringVarP(&screenshotPath, "screenshot", "s", "screen.png", "path to the continuously-updated screenshot file")
	rootCmd.AddCommand(guideCmd)
}

func runGuide(ctx context.Context, goal string) error {
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	router, err := llmclient.NewRouterFromConfig(ctx, appCfg.LLM, logger)
	if err != nil {
		return fmt.Errorf("building VLM router: %w", err)
	}
	defer router.Close()

	orch := agent.NewFromClient(appCfg.Agent, router, logger)
	defer orch.Close()

	source := screen.NewFileSource(screenshotPath, appCfg.Agent.MaxImageBytes)
	feed := screen.NewFeed(logger, 4)
	defer feed.Shutdown()
	orch.AttachScreenFeed(feed, source, nil)

	snapshots, unsubscribe := orch.Subscribe()
	defer unsubscribe()

	img, err := source.Capture(ctx)
	if err != nil {
		return fmt.Errorf("reading initial screenshot: %w", err)
	}
	if err := orch.StartSession(goal, img); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	// Render state transitions as they arrive.
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case snap, ok := <-snapshots:
				if !ok {
					return nil
				}
				renderSnapshot(snap)
				if snap.State == agent.StateCompleted {
					cancel()
					return nil
				}
			}
		}
	})

	// Translate stdin commands into engine calls.
	g.Go(func() error {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := dispatchCommand(ctx, orch, feed, source, strings.TrimSpace(scanner.Text())); err != nil {
				if err == errQuit {
					cancel()
					return nil
				}
				fmt.Fprintln(os.Stderr, "!", err)
			}
		}
		cancel()
		return scanner.Err()
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	logger.Info("Guidance session finished", zap.String("final_state", string(orch.Snapshot().State)))
	return nil
}

var errQuit = fmt.Errorf("quit requested")

func dispatchCommand(ctx context.Context, orch *agent.Orchestrator, feed *screen.Feed, source schemas.ScreenSource, line string) error {
	switch line {
	case "":
		return nil
	case "changed":
		feed.Publish()
		return nil
	case "check":
		img, err := source.Capture(ctx)
		if err != nil {
			return err
		}
		return orch.CheckStepCompletion(img)
	case "done":
		return orch.MarkStepComplete()
	case "next":
		img, err := source.Capture(ctx)
		if err != nil {
			return err
		}
		return orch.ProcessNextStep(img)
	case "reset":
		orch.Reset()
		return nil
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q (changed, check, done, next, reset, quit)", line)
	}
}

func renderSnapshot(snap agent.Snapshot) {
	switch snap.State {
	case agent.StatePlanning:
		fmt.Println("… planning milestones")
	case agent.StateNavigating:
		fmt.Println("… working out the next step")
	case agent.StateWatching:
		fmt.Printf("\n[%d/%d] %s\n→ %s\n", snap.CompletedCount+1, snap.TotalMilestones, snap.CurrentMilestone, snap.Instruction)
		if snap.ValueToCopy != "" {
			fmt.Printf("  (copy: %s)\n", snap.ValueToCopy)
		}
	case agent.StateSummarizing:
		fmt.Println("… summarizing progress")
	case agent.StateCompleted:
		fmt.Printf("\nAll %d milestones complete.\n", snap.TotalMilestones)
	case agent.StateError:
		fmt.Printf("\nError: %s\n(reset to start over)\n", snap.ErrorMessage)
	case agent.StateIdle:
		fmt.Println("Session reset. Start again with a new goal.")
	}
}
