package factory

import (
	"context"

	"go.uber.org/zap"

	"github.com/mikey/promo-sweeper/internal/adapters/gmail"
	"github.com/mikey/promo-sweeper/internal/config"
	"github.com/mikey/promo-sweeper/internal/core"
)

// MailFactory creates the mail provider client
type MailFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewMailFactory creates a new mail factory
func NewMailFactory(cfg *config.Config, logger *zap.Logger) *MailFactory {
	return &MailFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateMailClient authenticates against Gmail and returns a client.
// The first run asks for OAuth consent on the terminal.
func (f *MailFactory) CreateMailClient(ctx context.Context) (core.MailClient, error) {
	gc := f.cfg.GetGmail()
	svc, err := gmail.NewService(ctx, gc.ConfigDir, gc.CredentialsFile, gc.TokenFile, f.logger)
	if err != nil {
		return nil, err
	}
	return gmail.NewClient(svc, gc.PageSize, f.logger), nil
}
