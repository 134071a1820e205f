package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/promo-sweeper/internal/adapters/oracle"
	"github.com/mikey/promo-sweeper/internal/config"
	"github.com/mikey/promo-sweeper/internal/core"
	"github.com/mikey/promo-sweeper/internal/factory"
	"github.com/mikey/promo-sweeper/internal/gate"
	"github.com/mikey/promo-sweeper/internal/logging"
	"github.com/mikey/promo-sweeper/internal/protected"
	"github.com/mikey/promo-sweeper/internal/review"
	"github.com/mikey/promo-sweeper/internal/session"
	"github.com/mikey/promo-sweeper/internal/sweep"
	"github.com/mikey/promo-sweeper/internal/utils"
)

// BuildContainer creates and configures a dependency injection container.
// Components are constructed lazily, so a caller that only invokes the
// decision repository never authenticates against Gmail or an LLM provider.
func BuildContainer(cfg *config.Config) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register factories
	for _, ctor := range []interface{}{
		factory.NewLLMFactory,
		factory.NewStoreFactory,
		factory.NewMailFactory,
		factory.NewNotifierFactory,
		factory.NewGateFactory,
		factory.NewSweepFactory,
	} {
		if err := container.Provide(ctor); err != nil {
			return nil, err
		}
	}

	// Register LLM client and classification oracle
	if err := container.Provide(func(f *factory.LLMFactory) (oracle.Completer, error) {
		return f.CreateCompleter(context.Background())
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.LLMFactory, completer oracle.Completer) core.Classifier {
		return f.CreateOracle(completer)
	}); err != nil {
		return nil, err
	}

	// Register decision repository
	if err := container.Provide(func(f *factory.StoreFactory) (core.DecisionRepository, error) {
		return f.CreateDecisionRepository()
	}); err != nil {
		return nil, err
	}

	// Register mail client
	if err := container.Provide(func(f *factory.MailFactory) (core.MailClient, error) {
		return f.CreateMailClient(context.Background())
	}); err != nil {
		return nil, err
	}

	// Register review notifier
	if err := container.Provide(func(f *factory.NotifierFactory) core.ReviewNotifier {
		return f.CreateNotifier()
	}); err != nil {
		return nil, err
	}

	// Register protected matcher and gate evaluator
	if err := container.Provide(func(f *factory.GateFactory, logger *zap.Logger) (*protected.Matcher, error) {
		m, err := f.CreateMatcher()
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded protected entities", zap.String("market", string(m.Scope())))
		return m, nil
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.GateFactory, m *protected.Matcher) (*gate.Evaluator, error) {
		return f.CreateEvaluator(m)
	}); err != nil {
		return nil, err
	}

	// Register session tracker
	if err := container.Provide(func(f *factory.SweepFactory) (*session.Tracker, error) {
		return f.CreateTracker()
	}); err != nil {
		return nil, err
	}

	// Register sweep service
	if err := container.Provide(func(
		f *factory.SweepFactory,
		mail core.MailClient,
		classifier core.Classifier,
		evaluator *gate.Evaluator,
		tracker *session.Tracker,
		repo core.DecisionRepository,
		notifier core.ReviewNotifier,
	) *sweep.Service {
		return f.CreateService(mail, classifier, evaluator, tracker, repo, notifier)
	}); err != nil {
		return nil, err
	}

	// Register review service
	if err := container.Provide(review.NewService); err != nil {
		return nil, err
	}

	return container, nil
}
