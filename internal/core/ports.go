package core

import (
	"context"
	"errors"
)

// ErrNotFound is returned by repositories when a record does not exist
var ErrNotFound = errors.New("record not found")

// Classifier defines the interface for the classification oracle
type Classifier interface {
	// Classify labels a single email. Implementations must return a
	// normalized label; verification is reported through Verified.
	Classify(ctx context.Context, email *Email) (*ClassificationResult, error)
}

// MailClient defines the interface for the mail provider
type MailClient interface {
	// List returns message IDs matching query, at most max when max > 0
	List(ctx context.Context, query string, max int) ([]string, error)

	// Fetch retrieves a single message with its flags
	Fetch(ctx context.Context, id string) (*Email, error)

	// Trash moves messages to the provider's trash. It returns the ids that
	// were trashed, which on error may be a prefix of ids.
	Trash(ctx context.Context, ids []string) ([]string, error)
}

// DecisionRepository archives decisions and their ground truth for calibration
type DecisionRepository interface {
	// Save stores a decision, replacing any earlier decision for the same message
	Save(ctx context.Context, decision *DecisionResult) error

	// Get retrieves the decision for a message
	Get(ctx context.Context, messageID string) (*DecisionResult, error)

	// ListByDecision returns decisions with the given outcome
	ListByDecision(ctx context.Context, decision Decision) ([]*DecisionResult, error)

	// SetGroundTruth records the reviewed, true label of a message
	SetGroundTruth(ctx context.Context, messageID string, actual Label) error

	// LabeledOutcomes returns every decision that has a ground truth label
	LabeledOutcomes(ctx context.Context) ([]LabeledOutcome, error)

	// Cleanup removes decisions older than the retention period
	Cleanup(ctx context.Context) error
}

// ReviewNotifier sends flagged decisions to a human reviewer
type ReviewNotifier interface {
	NotifyFlagged(ctx context.Context, sessionID string, flagged []*DecisionResult) error
}
