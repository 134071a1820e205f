package gate

import (
	"errors"
	"fmt"
	"math"

	"github.com/mikey/promo-sweeper/internal/core"
)

// Default tier cut points
const (
	DefaultHighCut   = 90.0
	DefaultMediumCut = 70.0
)

// ErrInvalidCutPoints is returned when tier cut points are out of order or range
var ErrInvalidCutPoints = errors.New("invalid tier cut points")

// TierClassifier maps a confidence score to a tier.
// A score equal to a cut point belongs to the higher tier.
type TierClassifier struct {
	high   float64
	medium float64
}

// NewTierClassifier creates a tier classifier. It requires 0 <= medium <= high <= 100.
func NewTierClassifier(high, medium float64) (*TierClassifier, error) {
	if math.IsNaN(high) || math.IsNaN(medium) || medium < 0 || high > 100 || medium > high {
		return nil, fmt.Errorf("%w: high=%v medium=%v", ErrInvalidCutPoints, high, medium)
	}
	return &TierClassifier{high: high, medium: medium}, nil
}

// DefaultTierClassifier returns a classifier with the default cut points
func DefaultTierClassifier() *TierClassifier {
	return &TierClassifier{high: DefaultHighCut, medium: DefaultMediumCut}
}

// Tier returns the tier for score. NaN is LOW.
func (c *TierClassifier) Tier(score float64) core.Tier {
	switch {
	case math.IsNaN(score):
		return core.TierLow
	case score >= c.high:
		return core.TierHigh
	case score >= c.medium:
		return core.TierMedium
	default:
		return core.TierLow
	}
}

// HighCut returns the lower bound of the HIGH tier
func (c *TierClassifier) HighCut() float64 { return c.high }

// MediumCut returns the lower bound of the MEDIUM tier
func (c *TierClassifier) MediumCut() float64 { return c.medium }
