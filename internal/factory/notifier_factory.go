package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/promo-sweeper/internal/adapters/notify"
	"github.com/mikey/promo-sweeper/internal/config"
	"github.com/mikey/promo-sweeper/internal/core"
)

// NotifierFactory creates the review notifier
type NotifierFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewNotifierFactory creates a new notifier factory
func NewNotifierFactory(cfg *config.Config, logger *zap.Logger) *NotifierFactory {
	return &NotifierFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateNotifier returns an SMTP notifier, or a no-op one when notifications are disabled
func (f *NotifierFactory) CreateNotifier() core.ReviewNotifier {
	nc := f.cfg.GetNotify()
	if !nc.Enabled {
		return notify.NopNotifier{}
	}
	f.logger.Info("Review digests enabled",
		zap.String("smtp_address", nc.SMTPAddress),
		zap.Bool("starttls", nc.StartTLS),
		zap.Strings("to", nc.To))
	return notify.NewSMTPNotifier(nc.SMTPAddress, nc.Username, nc.Password, nc.From, nc.To, nc.StartTLS, f.logger)
}
