package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/mikey/promo-sweeper/internal/core"
)

// dialect holds the statements that differ between SQL engines
type dialect struct {
	name   string
	schema []string
	upsert string
}

// SQLStore is a DecisionRepository backed by a SQL database through sqlx.
// SQLite, MySQL and PostgreSQL differ only in their dialect.
type SQLStore struct {
	db          *sqlx.DB
	dialect     dialect
	logger      *zap.Logger
	retention   time.Duration
	cleanupFreq time.Duration
	now         func() time.Time
	stopCh      chan struct{}
}

func newSQLStore(db *sqlx.DB, d dialect, logger *zap.Logger, retention, cleanupFreq time.Duration) (*SQLStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create %s schema: %w", d.name, err)
		}
	}

	s := &SQLStore{
		db:          db,
		dialect:     d,
		logger:      logger,
		retention:   retention,
		cleanupFreq: cleanupFreq,
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}
	if cleanupFreq > 0 && retention > 0 {
		go s.startCleanupTask()
	}

	logger.Info("Initialized decision store", zap.String("type", d.name))
	return s, nil
}

// Save stores a decision, keeping any ground truth already recorded
func (s *SQLStore) Save(ctx context.Context, d *core.DecisionResult) error {
	row, err := toRow(d)
	if err != nil {
		return err
	}
	if _, err := s.db.NamedExecContext(ctx, s.dialect.upsert, row); err != nil {
		return fmt.Errorf("failed to save decision %s: %w", d.MessageID, err)
	}
	return nil
}

// Get retrieves the decision for a message
func (s *SQLStore) Get(ctx context.Context, messageID string) (*core.DecisionResult, error) {
	var row decisionRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT `+decisionColumns+`
		FROM decisions
		WHERE message_id = ?
	`), messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query decision: %w", err)
	}
	return row.toDecision()
}

// ListByDecision returns decisions with the given outcome, oldest first
func (s *SQLStore) ListByDecision(ctx context.Context, decision core.Decision) ([]*core.DecisionResult, error) {
	var rows []decisionRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT `+decisionColumns+`
		FROM decisions
		WHERE decision = ?
		ORDER BY evaluated_at, message_id
	`), decision.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}

	out := make([]*core.DecisionResult, 0, len(rows))
	for i := range rows {
		d, err := rows[i].toDecision()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// SetGroundTruth records the reviewed label of a message
func (s *SQLStore) SetGroundTruth(ctx context.Context, messageID string, actual core.Label) error {
	var exists int
	if err := s.db.GetContext(ctx, &exists, s.db.Rebind(`
		SELECT COUNT(1) FROM decisions WHERE message_id = ?
	`), messageID); err != nil {
		return fmt.Errorf("failed to look up decision: %w", err)
	}
	if exists == 0 {
		return core.ErrNotFound
	}

	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE decisions SET ground_truth = ? WHERE message_id = ?
	`), actual.Sanitize().String(), messageID); err != nil {
		return fmt.Errorf("failed to record ground truth: %w", err)
	}
	return nil
}

// LabeledOutcomes returns every decision that has a ground truth label
func (s *SQLStore) LabeledOutcomes(ctx context.Context) ([]core.LabeledOutcome, error) {
	var rows []outcomeRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT message_id, label, confidence, ground_truth
		FROM decisions
		WHERE ground_truth IS NOT NULL
		ORDER BY message_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query labeled outcomes: %w", err)
	}

	out := make([]core.LabeledOutcome, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toOutcome())
	}
	return out, nil
}

// Cleanup removes unlabeled decisions older than the retention period.
// Labeled decisions are calibration data and are kept.
func (s *SQLStore) Cleanup(ctx context.Context) error {
	if s.retention <= 0 {
		return nil
	}
	cutoff := s.now().Add(-s.retention).UnixMilli()
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM decisions
		WHERE evaluated_at < ? AND ground_truth IS NULL
	`), cutoff)
	if err != nil {
		return fmt.Errorf("failed to clean up expired decisions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		s.logger.Debug("Cleaned up expired decisions", zap.Int64("expired_count", rowsAffected))
	}
	return nil
}

func (s *SQLStore) startCleanupTask() {
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

// Close stops the background cleanup task and closes the database connection
func (s *SQLStore) Close() error {
	select {
	case <-s.stopCh:
		return nil
	default:
		close(s.stopCh)
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close %s database: %w", s.dialect.name, err)
	}
	return nil
}
