package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/promo-sweeper/internal/adapters/bedrock"
	"github.com/mikey/promo-sweeper/internal/adapters/gemini"
	"github.com/mikey/promo-sweeper/internal/adapters/openai"
	"github.com/mikey/promo-sweeper/internal/adapters/oracle"
	"github.com/mikey/promo-sweeper/internal/config"
	"github.com/mikey/promo-sweeper/internal/utils"
)

// LLMFactory creates the classification oracle and the LLM client behind it
type LLMFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateCompleter creates the LLM client for the configured provider
func (f *LLMFactory) CreateCompleter(ctx context.Context) (oracle.Completer, error) {
	llmConfig := f.cfg.GetLLM()

	switch llmConfig.Provider {
	case "bedrock":
		return bedrock.NewFactory(f.cfg.GetBedrock(), f.logger).CreateClient(ctx)
	case "gemini":
		return gemini.NewFactory(f.cfg.GetGemini(), f.logger).CreateClient(ctx)
	case "openai":
		return openai.NewFactory(f.cfg.GetOpenAI(), f.logger).CreateClient()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
}

// CreateOracle wraps a completer in the two-pass classification oracle
func (f *LLMFactory) CreateOracle(completer oracle.Completer) *oracle.Oracle {
	llmConfig := f.cfg.GetLLM()
	opts := oracle.Options{
		RetryBase:   llmConfig.RetryBase,
		MaxBodySize: llmConfig.MaxBodySize,
	}
	if llmConfig.MaxRetries > 0 {
		opts.MaxRetries = uint64(llmConfig.MaxRetries)
	}
	return oracle.NewOracle(completer, f.textProcessor, opts, f.logger)
}
