package calibrate

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// KeyThresholds are the rows of the comparison table
var KeyThresholds = []float64{70, 75, 80, 85, 90, 95, 99}

// Report summarizes a threshold sweep
type Report struct {
	Outcomes    int                 `json:"outcomes"`
	BestF1      ThresholdAnalysis   `json:"best_f1"`
	Recommended Recommendation      `json:"recommended"`
	Table       []ThresholdAnalysis `json:"table"`
}

// BuildReport sweeps thresholds and selects the F1 optimum and the safety
// recommendation
func (c *Calibrator) BuildReport(thresholds []float64, minPrecision float64) (*Report, error) {
	if c.Len() == 0 {
		return nil, fmt.Errorf("%w: no labeled outcomes", ErrNoAnalyses)
	}

	analyses := c.Sweep(thresholds)
	best, err := BestF1(analyses)
	if err != nil {
		return nil, err
	}
	rec, err := Recommend(analyses, minPrecision)
	if err != nil {
		return nil, err
	}

	var table []ThresholdAnalysis
	for _, key := range KeyThresholds {
		for _, a := range analyses {
			if a.Threshold == key {
				table = append(table, a)
				break
			}
		}
	}

	return &Report{
		Outcomes:    c.Len(),
		BestF1:      best,
		Recommended: rec,
		Table:       table,
	}, nil
}

// WriteText writes the report in a fixed-width text layout
func (r *Report) WriteText(w io.Writer) error {
	rule := strings.Repeat("=", 80)

	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "CONFIDENCE THRESHOLD ANALYSIS REPORT")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Labeled outcomes: %d\n\n", r.Outcomes)

	fmt.Fprintln(&b, "OPTIMAL THRESHOLD (by F1 score):")
	writeAnalysis(&b, r.BestF1)
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "RECOMMENDED THRESHOLD (%.0f%%+ precision):\n", r.Recommended.MinPrecision*100)
	writeAnalysis(&b, r.Recommended.Analysis)
	if !r.Recommended.Attainable {
		fmt.Fprintf(&b, "  WARNING: %s\n", r.Recommended.Warning)
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "THRESHOLD COMPARISON:")
	fmt.Fprintf(&b, "%10s %10s %10s %10s %6s %8s\n", "Threshold", "Precision", "Recall", "F1", "FP", "Del%")
	fmt.Fprintln(&b, strings.Repeat("-", 70))
	for _, a := range r.Table {
		fmt.Fprintf(&b, "%9.0f%% %9.2f%% %9.2f%% %10.3f %6d %7.2f%%\n",
			a.Threshold, a.Precision*100, a.Recall*100, a.F1, a.FalsePositives, a.DeletionRate*100)
	}
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, rule)

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON writes the report as indented JSON
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func writeAnalysis(b *strings.Builder, a ThresholdAnalysis) {
	fmt.Fprintf(b, "  Threshold:       %.1f%%\n", a.Threshold)
	fmt.Fprintf(b, "  Precision:       %.2f%%\n", a.Precision*100)
	fmt.Fprintf(b, "  Recall:          %.2f%%\n", a.Recall*100)
	fmt.Fprintf(b, "  F1 score:        %.3f\n", a.F1)
	fmt.Fprintf(b, "  Deletion rate:   %.2f%%\n", a.DeletionRate*100)
	fmt.Fprintf(b, "  False positives: %d\n", a.FalsePositives)
}
