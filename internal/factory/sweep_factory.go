package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/promo-sweeper/internal/config"
	"github.com/mikey/promo-sweeper/internal/core"
	"github.com/mikey/promo-sweeper/internal/session"
	"github.com/mikey/promo-sweeper/internal/sweep"
)

// SweepFactory creates the session tracker and the sweep service
type SweepFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewSweepFactory creates a new sweep factory
func NewSweepFactory(cfg *config.Config, logger *zap.Logger) *SweepFactory {
	return &SweepFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTracker creates the session tracker for the configured directory
func (f *SweepFactory) CreateTracker() (*session.Tracker, error) {
	return session.NewTracker(f.cfg.GetSession().Dir, f.logger)
}

// Options returns the sweep options derived from configuration
func (f *SweepFactory) Options() sweep.Options {
	sc := f.cfg.GetSweep()
	sess := f.cfg.GetSession()
	gc := f.cfg.GetGate()
	return sweep.Options{
		Query:           sc.Query,
		MaxMessages:     sc.MaxMessages,
		BatchSize:       sess.BatchSize,
		Workers:         sess.Workers,
		Delete:          sc.Delete,
		Resume:          sc.Resume,
		Market:          gc.Market,
		Language:        "auto",
		Provider:        f.cfg.GetLLM().Provider,
		DeleteThreshold: gc.DeleteThreshold,
	}
}

// CreateService wires the sweep service
func (f *SweepFactory) CreateService(
	mail core.MailClient,
	classifier core.Classifier,
	evaluator sweep.Evaluator,
	tracker *session.Tracker,
	repo core.DecisionRepository,
	notifier core.ReviewNotifier,
) *sweep.Service {
	return sweep.NewService(mail, classifier, evaluator, tracker, repo, notifier, f.Options(), f.logger)
}
