package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/promo-sweeper/internal/core"
)

type memoryEntry struct {
	decision    core.DecisionResult
	groundTruth *core.Label
}

// MemoryStore is an in-memory DecisionRepository
type MemoryStore struct {
	entries     map[string]*memoryEntry
	mu          sync.RWMutex
	logger      *zap.Logger
	retention   time.Duration
	cleanupFreq time.Duration
	now         func() time.Time
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMemoryStore creates a new in-memory decision store
func NewMemoryStore(logger *zap.Logger, retention, cleanupFreq time.Duration) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MemoryStore{
		entries:     make(map[string]*memoryEntry),
		logger:      logger,
		retention:   retention,
		cleanupFreq: cleanupFreq,
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}
	if cleanupFreq > 0 && retention > 0 {
		go s.startCleanupTask()
	}
	return s
}

// Save stores a copy of the decision, keeping any recorded ground truth
func (s *MemoryStore) Save(_ context.Context, d *core.DecisionResult) error {
	copied := copyDecision(d)

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[d.MessageID]; ok {
		e.decision = copied
		return nil
	}
	s.entries[d.MessageID] = &memoryEntry{decision: copied}
	return nil
}

// Get retrieves the decision for a message
func (s *MemoryStore) Get(_ context.Context, messageID string) (*core.DecisionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[messageID]
	if !ok {
		return nil, core.ErrNotFound
	}
	d := copyDecision(&e.decision)
	return &d, nil
}

// ListByDecision returns decisions with the given outcome, oldest first
func (s *MemoryStore) ListByDecision(_ context.Context, decision core.Decision) ([]*core.DecisionResult, error) {
	s.mu.RLock()
	var out []*core.DecisionResult
	for _, e := range s.entries {
		if e.decision.Decision == decision {
			d := copyDecision(&e.decision)
			out = append(out, &d)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].EvaluatedAt.Equal(out[j].EvaluatedAt) {
			return out[i].EvaluatedAt.Before(out[j].EvaluatedAt)
		}
		return out[i].MessageID < out[j].MessageID
	})
	return out, nil
}

// SetGroundTruth records the reviewed label of a message
func (s *MemoryStore) SetGroundTruth(_ context.Context, messageID string, actual core.Label) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[messageID]
	if !ok {
		return core.ErrNotFound
	}
	label := actual.Sanitize()
	e.groundTruth = &label
	return nil
}

// LabeledOutcomes returns every decision that has a ground truth label
func (s *MemoryStore) LabeledOutcomes(_ context.Context) ([]core.LabeledOutcome, error) {
	s.mu.RLock()
	var out []core.LabeledOutcome
	for id, e := range s.entries {
		if e.groundTruth == nil {
			continue
		}
		out = append(out, core.LabeledOutcome{
			MessageID:  id,
			Predicted:  e.decision.Label,
			Confidence: e.decision.Confidence,
			Actual:     *e.groundTruth,
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out, nil
}

// Cleanup removes unlabeled decisions older than the retention period
func (s *MemoryStore) Cleanup(_ context.Context) error {
	if s.retention <= 0 {
		return nil
	}
	cutoff := s.now().Add(-s.retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	expiredCount := 0
	for id, e := range s.entries {
		if e.groundTruth == nil && e.decision.EvaluatedAt.Before(cutoff) {
			delete(s.entries, id)
			expiredCount++
		}
	}

	s.logger.Debug("Cleaned up expired decisions", zap.Int("expired_count", expiredCount))
	return nil
}

func (s *MemoryStore) startCleanupTask() {
	ticker := time.NewTicker(s.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Cleanup(context.Background()); err != nil {
				s.logger.Error("Failed to clean up decision store", zap.Error(err))
			}
		case <-s.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func copyDecision(d *core.DecisionResult) core.DecisionResult {
	copied := *d
	copied.Gates = append([]core.GateResult(nil), d.Gates...)
	return copied
}
