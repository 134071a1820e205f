package gate

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/promo-sweeper/internal/core"
	"github.com/mikey/promo-sweeper/internal/protected"
)

// Gate names in evaluation order
const (
	GateCategory     = "Category Check"
	GateVerification = "Verification Check"
	GateConfidence   = "Confidence Threshold"
	GateProtected    = "Protected Entity Check"
	GateManualFlags  = "Manual Flag Check"
)

const gateCount = 5

var gateNames = [gateCount]string{
	GateCategory,
	GateVerification,
	GateConfidence,
	GateProtected,
	GateManualFlags,
}

// GateNames returns the gate names in evaluation order
func GateNames() []string {
	names := make([]string, gateCount)
	copy(names, gateNames[:])
	return names
}

// DefaultDeleteThreshold is the minimum HIGH tier score that may be deleted
const DefaultDeleteThreshold = 90.0

// ErrInvalidThreshold is returned for a deletion threshold outside [0,100]
var ErrInvalidThreshold = errors.New("invalid deletion threshold")

// ProtectedMatcher tells whether a sender belongs to a protected entity
type ProtectedMatcher interface {
	Classify(sender string) protected.Match
}

// Options configures the evaluator
type Options struct {
	DeleteThreshold float64
	HumanReview     bool
}

// Evaluator runs the five safety gates. It is safe for concurrent use.
type Evaluator struct {
	matcher ProtectedMatcher
	tiers   *TierClassifier
	opts    Options
	stats   *Stats
	logger  *zap.Logger
	now     func() time.Time
}

// NewEvaluator creates a new decision evaluator
func NewEvaluator(matcher ProtectedMatcher, tiers *TierClassifier, opts Options, logger *zap.Logger) (*Evaluator, error) {
	if matcher == nil {
		return nil, errors.New("protected matcher is required")
	}
	if tiers == nil {
		tiers = DefaultTierClassifier()
	}
	if math.IsNaN(opts.DeleteThreshold) || opts.DeleteThreshold < 0 || opts.DeleteThreshold > 100 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, opts.DeleteThreshold)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Evaluator{
		matcher: matcher,
		tiers:   tiers,
		opts:    opts,
		stats:   &Stats{},
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Stats returns the evaluator counters. The decision path never reads them.
func (e *Evaluator) Stats() *Stats {
	return e.stats
}

// Evaluate decides whether a message may be deleted. A nil classification
// is treated as an unverified PERSONAL_SAFE result with zero confidence.
func (e *Evaluator) Evaluate(meta core.EmailMetadata, cls *core.ClassificationResult) *core.DecisionResult {
	var in core.ClassificationResult
	if cls != nil {
		in = *cls
	}
	label := in.Label.Sanitize()
	confidence := core.ClampConfidence(in.Confidence)
	tier := e.tiers.Tier(confidence)
	match := e.safeMatch(meta.Sender)

	gates := []core.GateResult{
		e.categoryGate(label),
		e.verificationGate(in.Verified),
		e.confidenceGate(confidence, tier),
		e.protectedGate(match),
		e.manualFlagGate(meta.Starred, meta.Important),
	}

	decision, reason := e.finalDecision(gates, tier)

	result := &core.DecisionResult{
		MessageID:   meta.ID,
		Sender:      meta.Sender,
		Label:       label,
		Confidence:  confidence,
		Tier:        tier,
		Verified:    in.Verified,
		Language:    in.Language,
		Gates:       gates,
		Decision:    decision,
		Reason:      reason,
		EvaluatedAt: e.now().UTC(),
	}
	if match.IsProtected {
		result.ProtectedMarket = string(match.Market)
		result.ProtectedCategory = string(match.Category)
	}

	e.stats.record(result)

	e.logger.Debug("Evaluated message",
		zap.String("id", meta.ID),
		zap.String("decision", decision.String()),
		zap.String("label", label.String()),
		zap.Float64("confidence", confidence),
		zap.String("reason", reason))

	return result
}

// safeMatch never lets a matcher failure escape; a panic counts as protected
func (e *Evaluator) safeMatch(sender string) (match protected.Match) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Protected entity check failed",
				zap.String("sender", sender),
				zap.Any("panic", r))
			match = protected.Match{
				IsProtected: true,
				Kind:        protected.MatchInvalid,
				Reason:      "protected entity check failed",
			}
		}
	}()
	return e.matcher.Classify(sender)
}

func (e *Evaluator) categoryGate(label core.Label) core.GateResult {
	g := core.GateResult{Index: 1, Name: GateCategory, Passed: label == core.LabelPromotional}
	if g.Passed {
		g.Reason = "Category is PROMOTIONAL"
	} else {
		g.Reason = fmt.Sprintf("Category is %s, not PROMOTIONAL", label)
	}
	return g
}

func (e *Evaluator) verificationGate(verified bool) core.GateResult {
	g := core.GateResult{Index: 2, Name: GateVerification, Passed: verified}
	if verified {
		g.Reason = "Passed dual-agent verification"
	} else {
		g.Reason = "Failed dual-agent verification"
	}
	return g
}

func (e *Evaluator) confidenceGate(confidence float64, tier core.Tier) core.GateResult {
	g := core.GateResult{Index: 3, Name: GateConfidence}
	threshold := e.opts.DeleteThreshold

	switch tier {
	case core.TierHigh:
		g.Passed = confidence >= threshold
		if g.Passed {
			g.Reason = fmt.Sprintf("Confidence %.1f%% >= threshold %.1f%%", confidence, threshold)
		} else {
			g.Reason = fmt.Sprintf("Confidence %.1f%% < threshold %.1f%%", confidence, threshold)
		}
	case core.TierMedium:
		if e.opts.HumanReview {
			g.Passed = true
			g.Reason = fmt.Sprintf("Medium confidence (%.1f%%) - flagged for human review", confidence)
		} else {
			g.Reason = fmt.Sprintf("Medium confidence (%.1f%%) and human review is disabled", confidence)
		}
	default:
		g.Reason = fmt.Sprintf("Low confidence (%.1f%%)", confidence)
	}
	return g
}

func (e *Evaluator) protectedGate(match protected.Match) core.GateResult {
	g := core.GateResult{Index: 4, Name: GateProtected, Passed: !match.IsProtected}
	if g.Passed {
		g.Reason = "Not from a protected entity"
	} else {
		g.Reason = "PROTECTED: " + match.Reason
	}
	return g
}

func (e *Evaluator) manualFlagGate(starred, important bool) core.GateResult {
	var flags []string
	if starred {
		flags = append(flags, "starred")
	}
	if important {
		flags = append(flags, "important")
	}

	g := core.GateResult{Index: 5, Name: GateManualFlags, Passed: len(flags) == 0}
	if g.Passed {
		g.Reason = "No manual flags"
	} else {
		g.Reason = "Has manual flags: " + strings.Join(flags, ", ")
	}
	return g
}

func (e *Evaluator) finalDecision(gates []core.GateResult, tier core.Tier) (core.Decision, string) {
	var failed []string
	for _, g := range gates {
		if !g.Passed {
			failed = append(failed, g.Name)
		}
	}

	switch {
	case len(failed) > 0:
		return core.DecisionRejected, "Failed gates: " + strings.Join(failed, ", ")
	case tier == core.TierMedium && e.opts.HumanReview:
		return core.DecisionFlagged, "All gates passed with medium confidence - requires human review"
	case tier == core.TierHigh:
		return core.DecisionApproved, "All 5 safety gates passed with high confidence"
	default:
		return core.DecisionRejected, "Not eligible for deletion"
	}
}
