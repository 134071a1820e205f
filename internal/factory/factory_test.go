package factory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/promo-sweeper/internal/adapters/notify"
	"github.com/mikey/promo-sweeper/internal/adapters/store"
	"github.com/mikey/promo-sweeper/internal/config"
	"github.com/mikey/promo-sweeper/internal/core"
	"github.com/mikey/promo-sweeper/internal/protected"
	"github.com/mikey/promo-sweeper/internal/utils"
)

func testConfig(t *testing.T, values map[string]interface{}) *config.Config {
	t.Helper()
	cfg := config.NewFromViper(config.NewEmptyViper())
	for k, v := range values {
		cfg.Set(k, v)
	}
	return cfg
}

func TestStoreFactory(t *testing.T) {
	logger := zap.NewNop()

	memory := NewStoreFactory(testConfig(t, map[string]interface{}{"store.type": "memory"}), logger)
	assert.ErrorIs(t, memory.RequirePersistent(), ErrEphemeralStore)
	repo, err := memory.CreateDecisionRepository()
	require.NoError(t, err)
	mem, ok := repo.(*store.MemoryStore)
	require.True(t, ok)
	mem.Stop()

	cfg := testConfig(t, map[string]interface{}{
		"store.type":        "sqlite",
		"store.sqlite_path": filepath.Join(t.TempDir(), "db", "decisions.db"),
	})
	sqlite := NewStoreFactory(cfg, logger)
	assert.NoError(t, sqlite.RequirePersistent())
	repo, err = sqlite.CreateDecisionRepository()
	require.NoError(t, err)
	sqlStore, ok := repo.(*store.SQLStore)
	require.True(t, ok)
	require.NoError(t, sqlStore.Close())

	_, err = NewStoreFactory(testConfig(t, map[string]interface{}{"store.type": "redis"}), logger).CreateDecisionRepository()
	assert.ErrorContains(t, err, "unsupported store type")
}

func TestStoreFactoryDefaultKeepsDecisionsBetweenRuns(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	open := func() core.DecisionRepository {
		f := NewStoreFactory(testConfig(t, map[string]interface{}{"session.dir": dir}), zap.NewNop())
		require.NoError(t, f.RequirePersistent())
		repo, err := f.CreateDecisionRepository()
		require.NoError(t, err)
		return repo
	}

	first := open()
	require.NoError(t, first.Save(ctx, &core.DecisionResult{
		MessageID:   "m1",
		Label:       core.LabelPromotional,
		Confidence:  80,
		Decision:    core.DecisionFlagged,
		EvaluatedAt: time.Now(),
	}))
	require.NoError(t, first.(*store.SQLStore).Close())

	second := open()
	defer second.(*store.SQLStore).Close()
	flagged, err := second.ListByDecision(ctx, core.DecisionFlagged)
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	require.NoError(t, second.SetGroundTruth(ctx, "m1", core.LabelPromotional))
	assert.FileExists(t, filepath.Join(dir, "decisions.db"))
}

func TestLLMFactoryCreateCompleter(t *testing.T) {
	logger := zap.NewNop()
	tp := utils.NewTextProcessor(logger)

	_, err := NewLLMFactory(testConfig(t, map[string]interface{}{"llm.provider": "llama"}), logger, tp).
		CreateCompleter(context.Background())
	assert.ErrorContains(t, err, "unsupported LLM provider")

	_, err = NewLLMFactory(testConfig(t, map[string]interface{}{"llm.provider": "openai"}), logger, tp).
		CreateCompleter(context.Background())
	assert.ErrorContains(t, err, "openai.api_key")

	cfg := testConfig(t, map[string]interface{}{
		"llm.provider":    "openai",
		"openai.api_key":  "sk-test",
		"openai.base_url": "http://127.0.0.1:1/v1",
	})
	f := NewLLMFactory(cfg, logger, tp)
	completer, err := f.CreateCompleter(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", completer.Model())
	assert.NotNil(t, f.CreateOracle(completer))
}

func TestNotifierFactory(t *testing.T) {
	logger := zap.NewNop()

	n := NewNotifierFactory(testConfig(t, nil), logger).CreateNotifier()
	assert.IsType(t, notify.NopNotifier{}, n)

	cfg := testConfig(t, map[string]interface{}{
		"notify.enabled": true,
		"notify.to":      []string{"me@example.com"},
	})
	n = NewNotifierFactory(cfg, logger).CreateNotifier()
	assert.IsType(t, &notify.SMTPNotifier{}, n)
}

func TestGateFactory(t *testing.T) {
	logger := zap.NewNop()
	f := NewGateFactory(testConfig(t, map[string]interface{}{"gate.market": "india"}), logger)

	matcher, err := f.CreateMatcher()
	require.NoError(t, err)
	assert.Equal(t, protected.MarketIndia, matcher.Scope())

	evaluator, err := f.CreateEvaluator(matcher)
	require.NoError(t, err)

	d := evaluator.Evaluate(
		core.EmailMetadata{ID: "m", Sender: "deals@shop-example.com"},
		&core.ClassificationResult{Label: core.LabelPromotional, Confidence: 99, Verified: true},
	)
	assert.Equal(t, core.DecisionApproved, d.Decision)

	_, err = NewGateFactory(testConfig(t, map[string]interface{}{"gate.market": "mars"}), logger).CreateMatcher()
	assert.Error(t, err)

	bad := NewGateFactory(testConfig(t, map[string]interface{}{"gate.medium_cut": 95.0}), logger)
	_, err = bad.CreateEvaluator(matcher)
	assert.Error(t, err)
}

func TestSweepFactoryOptions(t *testing.T) {
	cfg := testConfig(t, map[string]interface{}{
		"sweep.max_messages": 25,
		"llm.provider":       "bedrock",
		"session.dir":        t.TempDir(),
	})
	f := NewSweepFactory(cfg, zap.NewNop())

	opts := f.Options()
	assert.Equal(t, "category:promotions", opts.Query)
	assert.Equal(t, 25, opts.MaxMessages)
	assert.Equal(t, 100, opts.BatchSize)
	assert.Equal(t, 4, opts.Workers)
	assert.False(t, opts.Delete)
	assert.True(t, opts.Resume)
	assert.Equal(t, "bedrock", opts.Provider)
	assert.Equal(t, 90.0, opts.DeleteThreshold)

	tracker, err := f.CreateTracker()
	require.NoError(t, err)
	assert.Equal(t, cfg.GetSession().Dir, tracker.Dir())
}
