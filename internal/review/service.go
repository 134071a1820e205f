package review

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/promo-sweeper/internal/core"
)

// ApprovedReason is recorded on decisions a reviewer released for deletion
const ApprovedReason = "Approved for deletion by reviewer"

// Result summarizes one application of review verdicts
type Result struct {
	Approved int      `json:"approved"`
	Trashed  []string `json:"trashed"`
	Failed   int      `json:"failed"`
}

// Service trashes FLAGGED messages whose reviewed label is PROMOTIONAL
type Service struct {
	repo   core.DecisionRepository
	mail   core.MailClient
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new review service
func NewService(repo core.DecisionRepository, mail core.MailClient, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		mail:   mail,
		logger: logger,
		now:    time.Now,
	}
}

// Approved returns the FLAGGED decisions whose ground truth is PROMOTIONAL,
// oldest first. Flagged messages without a verdict, or with any other
// verdict, are left alone.
func Approved(ctx context.Context, repo core.DecisionRepository) ([]*core.DecisionResult, error) {
	outcomes, err := repo.LabeledOutcomes(ctx)
	if err != nil {
		return nil, err
	}
	promotional := make(map[string]bool, len(outcomes))
	for _, o := range outcomes {
		if o.Actual == core.LabelPromotional {
			promotional[o.MessageID] = true
		}
	}
	if len(promotional) == 0 {
		return nil, nil
	}

	flagged, err := repo.ListByDecision(ctx, core.DecisionFlagged)
	if err != nil {
		return nil, err
	}
	var approved []*core.DecisionResult
	for _, d := range flagged {
		if promotional[d.MessageID] {
			approved = append(approved, d)
		}
	}
	return approved, nil
}

// Apply moves reviewer-approved messages to trash and archives each trashed
// message as APPROVED so it is not trashed again. Messages the mail client
// did not trash stay FLAGGED and are retried on the next call.
func (s *Service) Apply(ctx context.Context) (*Result, error) {
	approved, err := Approved(ctx, s.repo)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviewed decisions: %w", err)
	}
	result := &Result{Approved: len(approved)}
	if len(approved) == 0 {
		s.logger.Info("No reviewer-approved messages to trash")
		return result, nil
	}

	byID := make(map[string]*core.DecisionResult, len(approved))
	ids := make([]string, 0, len(approved))
	for _, d := range approved {
		byID[d.MessageID] = d
		ids = append(ids, d.MessageID)
	}

	trashed, trashErr := s.mail.Trash(ctx, ids)
	for _, id := range trashed {
		released := *byID[id]
		released.Decision = core.DecisionApproved
		released.Reason = ApprovedReason
		released.EvaluatedAt = s.now().UTC()
		if err := s.repo.Save(ctx, &released); err != nil {
			s.logger.Error("Failed to archive reviewed decision",
				zap.String("id", id),
				zap.Error(err))
			result.Failed++
			continue
		}
		result.Trashed = append(result.Trashed, id)
	}
	result.Failed += len(ids) - len(trashed)

	s.logger.Info("Applied review verdicts",
		zap.Int("approved", result.Approved),
		zap.Int("trashed", len(result.Trashed)),
		zap.Int("failed", result.Failed))

	if trashErr != nil {
		return result, fmt.Errorf("failed to trash reviewed messages: %w", trashErr)
	}
	return result, nil
}
