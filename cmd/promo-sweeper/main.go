package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/promo-sweeper/internal/adapters/oracle"
	"github.com/mikey/promo-sweeper/internal/config"
	"github.com/mikey/promo-sweeper/internal/core"
	"github.com/mikey/promo-sweeper/internal/di"
	"github.com/mikey/promo-sweeper/internal/factory"
	"github.com/mikey/promo-sweeper/internal/gate"
	"github.com/mikey/promo-sweeper/internal/review"
	"github.com/mikey/promo-sweeper/internal/session"
	"github.com/mikey/promo-sweeper/internal/sweep"
)

var (
	configFile = flag.String("config", "", "Path to config file")
	deleteMode = flag.Bool("delete", false, "Move approved messages to trash (default is a dry run)")
	noResume   = flag.Bool("no-resume", false, "Start a new session instead of resuming an interrupted one")
	query      = flag.String("query", "", "Gmail search query (default from sweep.query)")
	maxCount   = flag.Int("max", 0, "Maximum number of messages to list, 0 for all")
	market     = flag.String("market", "", "Protected market scope (all, usa, india, germany)")
	threshold  = flag.Float64("threshold", 0, "Minimum confidence for deletion")
	jsonOutput = flag.Bool("json", false, "Print the run report as JSON")
)

const usage = `Usage: promo-sweeper [flags] [command]

Commands:
  sweep                 classify the mailbox and trash approved promotions (default)
  review                list decisions flagged for human review
  label <id> <LABEL>    record the true label of a reviewed message
  purge                 trash flagged messages labeled PROMOTIONAL (with -delete)
  status                show the progress of an interrupted session

Flags:
`

func main() {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.NewWithFile(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	container, err := di.BuildContainer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := dispatch(container, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// applyFlags copies explicitly set flags over the configuration
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "delete":
			cfg.Set("sweep.delete", *deleteMode)
		case "no-resume":
			cfg.Set("sweep.resume", !*noResume)
		case "query":
			cfg.Set("sweep.query", *query)
		case "max":
			cfg.Set("sweep.max_messages", *maxCount)
		case "market":
			cfg.Set("gate.market", *market)
		case "threshold":
			cfg.Set("gate.delete_threshold", *threshold)
		}
	})
}

func dispatch(container *dig.Container, args []string) error {
	command := "sweep"
	if len(args) > 0 {
		command = args[0]
	}

	switch command {
	case "review", "label", "purge":
		if err := container.Invoke(func(f *factory.StoreFactory) error {
			return f.RequirePersistent()
		}); err != nil {
			return err
		}
	}

	switch command {
	case "sweep":
		return container.Invoke(runSweep)
	case "review":
		return container.Invoke(func(logger *zap.Logger, repo core.DecisionRepository) error {
			defer closeRepository(logger, repo)
			return runReview(context.Background(), repo, os.Stdout)
		})
	case "label":
		if len(args) != 3 {
			return errors.New("usage: promo-sweeper label <message-id> <LABEL>")
		}
		label, ok := core.ParseLabel(args[2])
		if !ok {
			return fmt.Errorf("unknown label %q", args[2])
		}
		return container.Invoke(func(logger *zap.Logger, repo core.DecisionRepository) error {
			defer closeRepository(logger, repo)
			if err := repo.SetGroundTruth(context.Background(), args[1], label); err != nil {
				return fmt.Errorf("failed to label %s: %w", args[1], err)
			}
			fmt.Printf("Recorded %s as %s\n", args[1], label)
			return nil
		})
	case "purge":
		return container.Invoke(func(logger *zap.Logger, cfg *config.Config, repo core.DecisionRepository) error {
			return runPurge(container, logger, cfg, repo)
		})
	case "status":
		return container.Invoke(func(tracker *session.Tracker) {
			runStatus(tracker, os.Stdout)
		})
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// runSweep is the main application function that gets all dependencies injected
func runSweep(
	logger *zap.Logger,
	cfg *config.Config,
	svc *sweep.Service,
	evaluator *gate.Evaluator,
	completer oracle.Completer,
	repo core.DecisionRepository,
) error {
	defer logger.Sync()
	defer closeRepository(logger, repo)
	defer func() {
		if closer, ok := completer.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Error("Failed to close LLM client", zap.Error(err))
			}
		}
	}()

	lock, err := session.AcquireLock(cfg.GetSession().Dir)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Error("Failed to release session lock", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, runErr := svc.Run(ctx)
	if report != nil {
		if err := writeReport(os.Stdout, report, *jsonOutput); err != nil {
			logger.Error("Failed to write report", zap.Error(err))
		}
		if !*jsonOutput {
			if err := evaluator.Stats().Snapshot().WriteSummary(os.Stdout); err != nil {
				logger.Error("Failed to write statistics", zap.Error(err))
			}
		}
	}

	if errors.Is(runErr, context.Canceled) {
		logger.Info("Interrupted, run again to resume the session")
		return nil
	}
	return runErr
}

func writeReport(w io.Writer, r *sweep.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	mode := "dry run"
	if r.Delete {
		mode = "delete"
	}
	_, err := fmt.Fprintf(w, `Session:   %s (resumed: %t, %s)
Found:     %d
Skipped:   %d (already processed)
Decided:   %d
  approved %d, rejected %d, flagged %d
Trashed:   %d
Failed:    %d
Completed: %t
`, r.SessionID, r.Resumed, mode, r.Found, r.Skipped, r.Decided,
		r.Approved, r.Rejected, r.Flagged, r.Trashed, r.Failed, r.Completed)
	if err == nil && r.ArchivePath != "" {
		_, err = fmt.Fprintf(w, "Archive:   %s\n", r.ArchivePath)
	}
	return err
}

func runReview(ctx context.Context, repo core.DecisionRepository, w io.Writer) error {
	flagged, err := repo.ListByDecision(ctx, core.DecisionFlagged)
	if err != nil {
		return err
	}
	if len(flagged) == 0 {
		_, err := fmt.Fprintln(w, "No decisions awaiting review")
		return err
	}
	for _, d := range flagged {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s %.1f%%\t%s\n",
			d.MessageID, d.Sender, d.Label, d.Confidence, d.Reason); err != nil {
			return err
		}
	}
	return nil
}

// runPurge lists reviewer-approved messages, and trashes them in delete mode
func runPurge(container *dig.Container, logger *zap.Logger, cfg *config.Config, repo core.DecisionRepository) error {
	defer closeRepository(logger, repo)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.GetSweep().Delete {
		return writePurgePreview(ctx, repo, os.Stdout)
	}
	return container.Invoke(func(svc *review.Service) error {
		result, err := svc.Apply(ctx)
		if result != nil {
			fmt.Printf("Approved:  %d\nTrashed:   %d\nFailed:    %d\n",
				result.Approved, len(result.Trashed), result.Failed)
		}
		return err
	})
}

func writePurgePreview(ctx context.Context, repo core.DecisionRepository, w io.Writer) error {
	approved, err := review.Approved(ctx, repo)
	if err != nil {
		return err
	}
	if len(approved) == 0 {
		_, err := fmt.Fprintln(w, "No reviewer-approved messages to trash")
		return err
	}
	for _, d := range approved {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s %.1f%%\n",
			d.MessageID, d.Sender, d.Label, d.Confidence); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "Would trash %d messages (dry run, pass -delete to trash them)\n", len(approved))
	return err
}

func runStatus(tracker *session.Tracker, w io.Writer) {
	if !tracker.Load() {
		fmt.Fprintln(w, "No resumable session")
		return
	}
	s := tracker.Summary()
	fmt.Fprintf(w, "Session %s started %s, last updated %s\n",
		s.SessionID, s.StartedAt.Format("2006-01-02 15:04:05"), s.LastUpdated.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Found %d, processed %d (approved %d, rejected %d, flagged %d)\n",
		s.TotalFound, s.Processed, s.Approved, s.Rejected, s.Flagged)
}

func closeRepository(logger *zap.Logger, repo core.DecisionRepository) {
	if closer, ok := repo.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close decision store", zap.Error(err))
		}
	}
	if stopper, ok := repo.(interface{ Stop() }); ok {
		stopper.Stop()
	}
}
