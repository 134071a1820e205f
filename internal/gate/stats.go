package gate

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mikey/promo-sweeper/internal/core"
)

// Snapshot is a point-in-time copy of the evaluator counters
type Snapshot struct {
	Processed    int            `json:"total_processed"`
	Approved     int            `json:"approved"`
	Rejected     int            `json:"rejected"`
	Flagged      int            `json:"flagged"`
	GateFailures map[string]int `json:"gate_failures"`
}

// Rates holds decision percentages in [0,100]
type Rates struct {
	Approval  float64 `json:"approval_rate"`
	Rejection float64 `json:"rejection_rate"`
	Flag      float64 `json:"flag_rate"`
}

// Stats counts decisions and gate failures. It is safe for concurrent use.
type Stats struct {
	mu           sync.Mutex
	processed    int
	approved     int
	rejected     int
	flagged      int
	gateFailures [gateCount]int
}

func (s *Stats) record(result *core.DecisionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed++
	switch result.Decision {
	case core.DecisionApproved:
		s.approved++
	case core.DecisionFlagged:
		s.flagged++
	default:
		s.rejected++
	}
	for _, g := range result.Gates {
		if !g.Passed && g.Index >= 1 && g.Index <= gateCount {
			s.gateFailures[g.Index-1]++
		}
	}
}

// Snapshot returns a copy of the counters
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	failures := make(map[string]int, gateCount)
	for i, name := range gateNames {
		failures[name] = s.gateFailures[i]
	}
	return Snapshot{
		Processed:    s.processed,
		Approved:     s.approved,
		Rejected:     s.rejected,
		Flagged:      s.flagged,
		GateFailures: failures,
	}
}

// Rates returns decision percentages; all zero before anything was processed
func (s Snapshot) Rates() Rates {
	if s.Processed == 0 {
		return Rates{}
	}
	total := float64(s.Processed)
	return Rates{
		Approval:  float64(s.Approved) / total * 100,
		Rejection: float64(s.Rejected) / total * 100,
		Flag:      float64(s.Flagged) / total * 100,
	}
}

// Reset zeroes every counter
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed = 0
	s.approved = 0
	s.rejected = 0
	s.flagged = 0
	s.gateFailures = [gateCount]int{}
}

// WriteSummary writes a human-readable summary of the counters
func (s Snapshot) WriteSummary(w io.Writer) error {
	rates := s.Rates()
	rule := strings.Repeat("=", 60)

	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "DECISION STATISTICS")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Total processed:        %d\n\n", s.Processed)
	fmt.Fprintf(&b, "Approved for deletion:  %4d (%5.1f%%)\n", s.Approved, rates.Approval)
	fmt.Fprintf(&b, "Rejected:               %4d (%5.1f%%)\n", s.Rejected, rates.Rejection)
	fmt.Fprintf(&b, "Flagged for review:     %4d (%5.1f%%)\n\n", s.Flagged, rates.Flag)
	fmt.Fprintln(&b, "Gate failures:")
	for i, name := range gateNames {
		if n := s.GateFailures[name]; n > 0 {
			fmt.Fprintf(&b, "  %d. %s: %d\n", i+1, name, n)
		}
	}
	fmt.Fprintln(&b, rule)

	_, err := io.WriteString(w, b.String())
	return err
}
