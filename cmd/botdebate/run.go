package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/alienxp03/botdebate/internal/core"
	"github.com/alienxp03/botdebate/internal/debate"
	"github.com/alienxp03/botdebate/internal/storage"
)

// maxConsecutiveFailures ends the run when the bots keep failing.
const maxConsecutiveFailures = 5

var (
	runMaxSteps int
	runMock     bool
	runInterval time.Duration
	runJudge    string
)

var runCmd = &cobra.Command{
	Use:   "run [topic]",
	Short: "Run a debate in the terminal",
	Long: `Start a debate on the given topic and print every accepted turn.

The debate runs until the bots agree, --max-steps turns are accepted, or
you press Ctrl+C.

Examples:
  botdebate run "Do social networks do more harm than good?"
  botdebate run "Remote work" --max-steps 10 --interval 5s
  botdebate run "Nuclear power" --mock`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDebate,
}

func init() {
	runCmd.Flags().IntVarP(&runMaxSteps, "max-steps", "n", 0, "Stop after this many accepted turns (0 = until agreement)")
	runCmd.Flags().BoolVar(&runMock, "mock", false, "Use scripted replies instead of the bot endpoints")
	runCmd.Flags().DurationVarP(&runInterval, "interval", "i", 0, "Pause between steps (default: from config)")
	runCmd.Flags().StringVar(&runJudge, "judge", "", "Bot that confirms agreement (default: from config)")
}

func runDebate(cmd *cobra.Command, args []string) error {
	topic := strings.Join(args, " ")

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()
	if runJudge != "" {
		a.cfg.Debate.Judge = runJudge
	}

	store, err := a.openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	m, err := a.newManager(a.completer(runMock), debate.WithRecorder(storage.NewRecorder(store)))
	if err != nil {
		return err
	}
	id, err := m.StartInfiniteDebate(topic)
	if err != nil {
		return err
	}

	bots := m.Bots()
	fmt.Printf("\n🎭 Starting Debate: %s\n", strings.TrimSpace(topic))
	fmt.Printf("   %s (%s) vs %s (%s)\n", bots[0].Name(), bots[0].Endpoint(), bots[1].Name(), bots[1].Endpoint())
	fmt.Printf("   ID: %s\n\n", id)
	fmt.Println(strings.Repeat("─", 60))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interval := runInterval
	if interval <= 0 {
		interval = a.cfg.Debate.StepInterval
	}
	err = drive(ctx, m, newLimiter(interval), runMaxSteps, a.logger)
	if ctx.Err() != nil {
		m.StopInfiniteDebate()
		fmt.Printf("\n\nInterrupted. Use 'botdebate show %s' to view the debate.\n", core.ShortID(id))
		return nil
	}
	if err != nil {
		m.StopInfiniteDebate()
		return fmt.Errorf("debate failed: %w", err)
	}

	snap, err := m.GetStateSnapshot()
	if err != nil {
		return err
	}
	fmt.Println(strings.Repeat("═", 60))
	if snap.AgreementReached {
		fmt.Println("✅ Agreement reached")
	} else {
		fmt.Printf("🏁 Stopped after %d turns without agreement\n", snap.HistoryLen)
	}
	fmt.Printf("   Coherence: %.2f\n", snap.CoherenceScore)
	if snap.OffTopic {
		fmt.Println("   ⚠️  The debate drifted off topic")
	}
	return nil
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// drive steps the current debate until it ends, maxSteps turns are
// accepted, or ctx is cancelled. Every new turn is printed.
func drive(ctx context.Context, m *debate.Manager, limiter *rate.Limiter, maxSteps int, logger *zap.Logger) error {
	accepted := 0
	seen := 0
	failures := 0
	for {
		if maxSteps > 0 && accepted >= maxSteps {
			m.StopInfiniteDebate()
			return nil
		}
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		more, err := m.StepInfiniteDebate(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var completionErr *debate.CompletionError
			if !more || !errors.As(err, &completionErr) {
				return err
			}
			failures++
			logger.Warn("step failed, retrying", zap.Int("failures", failures), zap.Error(err))
			if failures >= maxConsecutiveFailures {
				return fmt.Errorf("giving up after %d consecutive failures: %w", failures, err)
			}
			continue
		}
		failures = 0

		snap, err := m.GetStateSnapshot()
		if err != nil {
			return err
		}
		if snap.HistoryLen > seen && len(snap.HistoryTail) > 0 {
			last := snap.HistoryTail[len(snap.HistoryTail)-1]
			printTurn(snap.HistoryLen, last.Speaker, last.Content)
			accepted++
		}
		seen = snap.HistoryLen
		if !more {
			return nil
		}
	}
}

func printTurn(number int, speaker, content string) {
	fmt.Printf("\n📢 Turn %d - %s\n", number, speaker)
	fmt.Println(strings.Repeat("─", 40))
	fmt.Println(content)
}
