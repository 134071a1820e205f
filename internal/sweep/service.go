package sweep

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mikey/promo-sweeper/internal/core"
	"github.com/mikey/promo-sweeper/internal/session"
)

// Defaults for Options
const (
	DefaultBatchSize = 100
	DefaultWorkers   = 4
)

// Evaluator turns a classification into a deletion decision
type Evaluator interface {
	Evaluate(meta core.EmailMetadata, cls *core.ClassificationResult) *core.DecisionResult
}

// Options configures a sweep run
type Options struct {
	Query       string
	MaxMessages int
	BatchSize   int
	Workers     int
	Delete      bool
	Resume      bool

	// Recorded with the session
	Market          string
	Language        string
	Provider        string
	DeleteThreshold float64
}

// Report summarizes a run
type Report struct {
	SessionID   string `json:"session_id"`
	Resumed     bool   `json:"resumed"`
	Delete      bool   `json:"delete"`
	Found       int    `json:"found"`
	Skipped     int    `json:"skipped"`
	Failed      int    `json:"failed"`
	Decided     int    `json:"decided"`
	Approved    int    `json:"approved"`
	Rejected    int    `json:"rejected"`
	Flagged     int    `json:"flagged"`
	Trashed     int    `json:"trashed"`
	Completed   bool   `json:"completed"`
	ArchivePath string `json:"archive_path,omitempty"`
}

// Service runs resumable sweeps over a mailbox
type Service struct {
	mail       core.MailClient
	classifier core.Classifier
	evaluator  Evaluator
	tracker    *session.Tracker
	repo       core.DecisionRepository
	notifier   core.ReviewNotifier
	opts       Options
	logger     *zap.Logger
}

// NewService creates a new sweep service
func NewService(
	mail core.MailClient,
	classifier core.Classifier,
	evaluator Evaluator,
	tracker *session.Tracker,
	repo core.DecisionRepository,
	notifier core.ReviewNotifier,
	opts Options,
	logger *zap.Logger,
) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		mail:       mail,
		classifier: classifier,
		evaluator:  evaluator,
		tracker:    tracker,
		repo:       repo,
		notifier:   notifier,
		opts:       opts,
		logger:     logger,
	}
}

type classified struct {
	email *core.Email
	cls   *core.ClassificationResult
	err   error
}

type counters struct {
	fetched, classified, decided int
	approved, rejected, flagged  int
}

// Run lists matching messages, skips those already processed, and decides the
// rest batch by batch. State is flushed after every batch. The session is
// completed only when every message was decided; after a cancellation or a
// per-message failure it stays resumable.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	report := &Report{Delete: s.opts.Delete}
	query, maxMessages := s.opts.Query, s.opts.MaxMessages

	if s.opts.Resume && s.tracker.Load() {
		report.Resumed = true
		params := s.tracker.Parameters()
		query, maxMessages = params.Query, params.MaxMessages
	} else {
		if _, err := s.tracker.Start(session.Parameters{
			Query:           query,
			MaxMessages:     maxMessages,
			Market:          s.opts.Market,
			Language:        s.opts.Language,
			Provider:        s.opts.Provider,
			DeleteThreshold: s.opts.DeleteThreshold,
			Delete:          s.opts.Delete,
		}); err != nil {
			return nil, err
		}
	}
	report.SessionID = s.tracker.SessionID()

	s.logger.Info("Starting sweep",
		zap.String("session_id", report.SessionID),
		zap.Bool("resumed", report.Resumed),
		zap.String("query", query),
		zap.Bool("delete", s.opts.Delete))

	ids, err := s.mail.List(ctx, query, maxMessages)
	if err != nil {
		return report, fmt.Errorf("failed to list messages: %w", err)
	}
	report.Found = len(ids)

	var pending []string
	for _, id := range ids {
		if s.tracker.IsProcessed(id) {
			report.Skipped++
			continue
		}
		pending = append(pending, id)
	}

	sum := s.tracker.Summary()
	c := counters{
		fetched:    sum.Fetched,
		classified: sum.Classified,
		decided:    sum.Decided,
		approved:   sum.Approved,
		rejected:   sum.Rejected,
		flagged:    sum.Flagged,
	}
	if err := s.tracker.UpdateProgress(session.Progress{TotalFound: session.Int(len(ids))}); err != nil {
		return report, err
	}
	if err := s.tracker.Flush(); err != nil {
		return report, err
	}

	var flagged []*core.DecisionResult
	for start := 0; start < len(pending); start += s.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("Sweep interrupted, session can be resumed",
				zap.String("session_id", report.SessionID),
				zap.Int("remaining", len(pending)-start))
			return report, err
		}

		end := start + s.opts.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batchFlagged, err := s.processBatch(ctx, pending[start:end], &c, report)
		flagged = append(flagged, batchFlagged...)
		if err != nil {
			return report, err
		}
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	if len(flagged) > 0 && s.notifier != nil {
		if err := s.notifier.NotifyFlagged(ctx, report.SessionID, flagged); err != nil {
			s.logger.Error("Failed to send review digest", zap.Error(err))
		}
	}

	if report.Failed > 0 {
		s.logger.Warn("Some messages could not be decided, session kept for resume",
			zap.String("session_id", report.SessionID),
			zap.Int("failed", report.Failed))
		return report, nil
	}

	archive, err := s.tracker.Complete()
	if err != nil {
		return report, err
	}
	report.Completed = true
	report.ArchivePath = archive

	s.logger.Info("Sweep complete",
		zap.String("session_id", report.SessionID),
		zap.Int("found", report.Found),
		zap.Int("skipped", report.Skipped),
		zap.Int("decided", report.Decided),
		zap.Int("approved", report.Approved),
		zap.Int("flagged", report.Flagged),
		zap.Int("trashed", report.Trashed),
		zap.Int("failed", report.Failed))
	return report, nil
}

// processBatch classifies a batch in parallel, then evaluates, archives and
// trashes in message order before flushing the session
func (s *Service) processBatch(ctx context.Context, ids []string, c *counters, report *Report) ([]*core.DecisionResult, error) {
	results := s.classifyBatch(ctx, ids)

	var (
		decided  []*core.DecisionResult
		approved []string
		flagged  []*core.DecisionResult
	)
	for i, r := range results {
		if r.err != nil {
			report.Failed++
			s.logger.Warn("Skipping message, it will be retried on resume",
				zap.String("id", ids[i]),
				zap.Error(r.err))
			continue
		}
		c.fetched++
		c.classified++

		decision := s.evaluator.Evaluate(r.email.EmailMetadata, r.cls)
		if err := s.repo.Save(ctx, decision); err != nil {
			report.Failed++
			s.logger.Error("Failed to archive decision",
				zap.String("id", decision.MessageID),
				zap.Error(err))
			continue
		}
		decided = append(decided, decision)
		if decision.Decision == core.DecisionApproved {
			approved = append(approved, decision.MessageID)
		}
	}

	inTrash := make(map[string]bool, len(approved))
	if s.opts.Delete && len(approved) > 0 {
		trashed, err := s.mail.Trash(ctx, approved)
		for _, id := range trashed {
			inTrash[id] = true
		}
		report.Trashed += len(trashed)
		if err != nil {
			s.logger.Error("Failed to trash approved messages, the rest will be retried on resume",
				zap.Int("trashed", len(trashed)),
				zap.Int("remaining", len(approved)-len(trashed)),
				zap.Error(err))
		}
	}

	for _, d := range decided {
		if s.opts.Delete && d.Decision == core.DecisionApproved && !inTrash[d.MessageID] {
			report.Failed++
			continue
		}
		if err := s.tracker.MarkProcessed(d.MessageID); err != nil {
			return flagged, err
		}
		c.decided++
		report.Decided++
		switch d.Decision {
		case core.DecisionApproved:
			c.approved++
			report.Approved++
		case core.DecisionFlagged:
			c.flagged++
			report.Flagged++
			flagged = append(flagged, d)
		default:
			c.rejected++
			report.Rejected++
		}
	}

	if err := s.tracker.UpdateProgress(session.Progress{
		Fetched:    session.Int(c.fetched),
		Classified: session.Int(c.classified),
		Decided:    session.Int(c.decided),
	}); err != nil {
		return flagged, err
	}
	if err := s.tracker.UpdateResults(session.Results{
		Approved: session.Int(c.approved),
		Rejected: session.Int(c.rejected),
		Flagged:  session.Int(c.flagged),
	}); err != nil {
		return flagged, err
	}
	if err := s.tracker.Flush(); err != nil {
		return flagged, fmt.Errorf("failed to persist session: %w", err)
	}

	s.logger.Info("Processed batch",
		zap.Int("size", len(ids)),
		zap.Int("decided", len(decided)),
		zap.Int("approved", len(approved)))
	return flagged, nil
}

// classifyBatch fetches and classifies messages with a bounded worker pool.
// Results keep the order of ids.
func (s *Service) classifyBatch(ctx context.Context, ids []string) []classified {
	results := make([]classified, len(ids))

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].err = err
				return nil
			}
			email, err := s.mail.Fetch(ctx, id)
			if err != nil {
				results[i].err = fmt.Errorf("fetch: %w", err)
				return nil
			}
			if email.ID == "" {
				email.ID = id
			}
			cls, err := s.classifier.Classify(ctx, email)
			if err != nil {
				results[i].err = fmt.Errorf("classify: %w", err)
				return nil
			}
			if cls == nil {
				results[i].err = errors.New("classify: empty result")
				return nil
			}
			results[i] = classified{email: email, cls: cls}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
