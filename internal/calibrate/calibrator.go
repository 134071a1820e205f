package calibrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/mikey/promo-sweeper/internal/core"
)

// DefaultMinPrecision is the precision bound used for the safety recommendation
const DefaultMinPrecision = 0.99

// ErrNoAnalyses is returned when there is nothing to choose from
var ErrNoAnalyses = errors.New("no threshold analyses")

// ThresholdAnalysis holds classification quality at one deletion threshold
type ThresholdAnalysis struct {
	Threshold      float64 `json:"threshold"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1_score"`
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	TrueNegatives  int     `json:"true_negatives"`
	FalseNegatives int     `json:"false_negatives"`

	// DeletionRate is the fraction of all messages that would be deleted
	DeletionRate float64 `json:"deletion_rate"`
}

// Recommendation is the threshold chosen under a precision bound
type Recommendation struct {
	Analysis     ThresholdAnalysis `json:"analysis"`
	MinPrecision float64           `json:"min_precision"`
	Attainable   bool              `json:"attainable"`
	Warning      string            `json:"warning,omitempty"`
}

// DefaultThresholds returns 50, 51, ... 99
func DefaultThresholds() []float64 {
	thresholds := make([]float64, 0, 50)
	for t := 50; t < 100; t++ {
		thresholds = append(thresholds, float64(t))
	}
	return thresholds
}

// Calibrator measures how deletion thresholds would have performed on
// reviewed outcomes
type Calibrator struct {
	outcomes []core.LabeledOutcome
	logger   *zap.Logger
}

// NewCalibrator creates a calibrator over the given outcomes. Labels and
// confidences are sanitized the same way the decision gates sanitize them.
func NewCalibrator(outcomes []core.LabeledOutcome, logger *zap.Logger) *Calibrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	clean := make([]core.LabeledOutcome, len(outcomes))
	for i, o := range outcomes {
		o.Predicted = o.Predicted.Sanitize()
		o.Actual = o.Actual.Sanitize()
		o.Confidence = core.ClampConfidence(o.Confidence)
		clean[i] = o
	}
	return &Calibrator{outcomes: clean, logger: logger}
}

// Len returns the number of outcomes
func (c *Calibrator) Len() int {
	return len(c.outcomes)
}

// Sweep analyzes every threshold in order. A nil or empty slice sweeps the
// default thresholds.
func (c *Calibrator) Sweep(thresholds []float64) []ThresholdAnalysis {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds()
	}
	analyses := make([]ThresholdAnalysis, 0, len(thresholds))
	for _, t := range thresholds {
		analyses = append(analyses, c.Analyze(t))
	}
	c.logger.Debug("Swept thresholds",
		zap.Int("outcomes", len(c.outcomes)),
		zap.Int("thresholds", len(thresholds)))
	return analyses
}

// Analyze computes the confusion matrix at a single threshold
func (c *Calibrator) Analyze(threshold float64) ThresholdAnalysis {
	a := ThresholdAnalysis{Threshold: threshold}
	deletions := 0

	for _, o := range c.outcomes {
		actual := o.Actual == core.LabelPromotional
		predicted := wouldDelete(o, threshold)
		if predicted {
			deletions++
		}
		switch {
		case actual && predicted:
			a.TruePositives++
		case !actual && predicted:
			a.FalsePositives++
		case !actual && !predicted:
			a.TrueNegatives++
		default:
			a.FalseNegatives++
		}
	}

	a.Precision = ratio(a.TruePositives, a.TruePositives+a.FalsePositives)
	a.Recall = ratio(a.TruePositives, a.TruePositives+a.FalseNegatives)
	if a.Precision+a.Recall > 0 {
		a.F1 = 2 * a.Precision * a.Recall / (a.Precision + a.Recall)
	}
	a.DeletionRate = ratio(deletions, len(c.outcomes))
	return a
}

// FalsePositives returns the outcomes that would have been deleted at
// threshold although they were not promotional
func (c *Calibrator) FalsePositives(threshold float64) []core.LabeledOutcome {
	var fps []core.LabeledOutcome
	for _, o := range c.outcomes {
		if wouldDelete(o, threshold) && o.Actual != core.LabelPromotional {
			fps = append(fps, o)
		}
	}
	return fps
}

func wouldDelete(o core.LabeledOutcome, threshold float64) bool {
	return o.Predicted == core.LabelPromotional && o.Confidence >= threshold
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Recommend picks the analysis with the highest recall among those meeting
// minPrecision. Ties go to higher precision, then to the higher threshold.
// When no analysis qualifies the most precise one is returned with
// Attainable set to false.
func Recommend(analyses []ThresholdAnalysis, minPrecision float64) (Recommendation, error) {
	if len(analyses) == 0 {
		return Recommendation{}, ErrNoAnalyses
	}

	var best *ThresholdAnalysis
	for i := range analyses {
		a := &analyses[i]
		if a.Precision < minPrecision {
			continue
		}
		if best == nil || betterRecall(a, best) {
			best = a
		}
	}
	if best != nil {
		return Recommendation{Analysis: *best, MinPrecision: minPrecision, Attainable: true}, nil
	}

	best = &analyses[0]
	for i := 1; i < len(analyses); i++ {
		a := &analyses[i]
		if a.Precision > best.Precision || (a.Precision == best.Precision && a.Threshold > best.Threshold) {
			best = a
		}
	}
	warning := fmt.Sprintf("no threshold achieves %.1f%% precision, falling back to the most precise threshold %.1f%%",
		minPrecision*100, best.Threshold)
	return Recommendation{
		Analysis:     *best,
		MinPrecision: minPrecision,
		Attainable:   false,
		Warning:      warning,
	}, nil
}

func betterRecall(a, b *ThresholdAnalysis) bool {
	if a.Recall != b.Recall {
		return a.Recall > b.Recall
	}
	if a.Precision != b.Precision {
		return a.Precision > b.Precision
	}
	return a.Threshold > b.Threshold
}

// BestF1 returns the analysis with the highest F1 score; ties go to the
// higher threshold
func BestF1(analyses []ThresholdAnalysis) (ThresholdAnalysis, error) {
	if len(analyses) == 0 {
		return ThresholdAnalysis{}, ErrNoAnalyses
	}
	best := analyses[0]
	for _, a := range analyses[1:] {
		if a.F1 > best.F1 || (a.F1 == best.F1 && a.Threshold > best.Threshold) {
			best = a
		}
	}
	return best, nil
}

// fileOutcome accepts both our field names and the validation export format
type fileOutcome struct {
	MessageID         string      `json:"message_id"`
	EmailID           string      `json:"email_id"`
	Predicted         *core.Label `json:"predicted"`
	PredictedCategory *core.Label `json:"predicted_category"`
	Actual            *core.Label `json:"actual"`
	ActualCategory    *core.Label `json:"actual_category"`
	Confidence        float64     `json:"confidence"`
}

// LoadOutcomes reads a JSON array of labeled outcomes
func LoadOutcomes(path string) ([]core.LabeledOutcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read outcomes: %w", err)
	}

	var raw []fileOutcome
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse outcomes %s: %w", path, err)
	}

	outcomes := make([]core.LabeledOutcome, 0, len(raw))
	for _, r := range raw {
		o := core.LabeledOutcome{
			MessageID:  firstNonEmpty(r.MessageID, r.EmailID),
			Confidence: r.Confidence,
			Predicted:  firstLabel(r.Predicted, r.PredictedCategory),
			Actual:     firstLabel(r.Actual, r.ActualCategory),
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstLabel(labels ...*core.Label) core.Label {
	for _, l := range labels {
		if l != nil {
			return *l
		}
	}
	return core.LabelPersonalSafe
}
