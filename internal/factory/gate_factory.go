package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/promo-sweeper/internal/config"
	"github.com/mikey/promo-sweeper/internal/gate"
	"github.com/mikey/promo-sweeper/internal/protected"
)

// GateFactory creates the protected-entity matcher and the decision evaluator
type GateFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewGateFactory creates a new gate factory
func NewGateFactory(cfg *config.Config, logger *zap.Logger) *GateFactory {
	return &GateFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateMatcher builds the protected-entity matcher for the configured market
func (f *GateFactory) CreateMatcher() (*protected.Matcher, error) {
	gc := f.cfg.GetGate()
	market, err := protected.ParseMarket(gc.Market)
	if err != nil {
		return nil, err
	}
	entries, err := protected.ReferenceEntries(gc.ProtectedFile)
	if err != nil {
		return nil, err
	}
	return protected.NewMatcher(market, entries, f.logger)
}

// CreateEvaluator builds the five-gate evaluator around a matcher
func (f *GateFactory) CreateEvaluator(matcher *protected.Matcher) (*gate.Evaluator, error) {
	gc := f.cfg.GetGate()
	tiers, err := gate.NewTierClassifier(gc.HighCut, gc.MediumCut)
	if err != nil {
		return nil, err
	}
	return gate.NewEvaluator(matcher, tiers, gate.Options{
		DeleteThreshold: gc.DeleteThreshold,
		HumanReview:     gc.HumanReview,
	}, f.logger)
}
