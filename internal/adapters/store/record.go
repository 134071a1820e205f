package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mikey/promo-sweeper/internal/core"
)

// decisionRow is the flattened form of a DecisionResult shared by the SQL stores
type decisionRow struct {
	MessageID         string         `db:"message_id"`
	Sender            string         `db:"sender"`
	Label             string         `db:"label"`
	Confidence        float64        `db:"confidence"`
	Tier              string         `db:"tier"`
	Verified          bool           `db:"verified"`
	Language          string         `db:"language"`
	Gates             string         `db:"gates"`
	Decision          string         `db:"decision"`
	Reason            string         `db:"reason"`
	ProtectedMarket   string         `db:"protected_market"`
	ProtectedCategory string         `db:"protected_category"`
	EvaluatedAt       int64          `db:"evaluated_at"`
	GroundTruth       sql.NullString `db:"ground_truth"`
}

// outcomeRow is one labeled prediction
type outcomeRow struct {
	MessageID   string  `db:"message_id"`
	Label       string  `db:"label"`
	Confidence  float64 `db:"confidence"`
	GroundTruth string  `db:"ground_truth"`
}

// Column lists for the upsert statements. ground_truth is never overwritten by Save.
const (
	insertColumns = `message_id, sender, label, confidence, tier, verified, language, gates, decision, reason, protected_market, protected_category, evaluated_at`
	insertValues  = `:message_id, :sender, :label, :confidence, :tier, :verified, :language, :gates, :decision, :reason, :protected_market, :protected_category, :evaluated_at`

	conflictUpdates = `sender = excluded.sender, label = excluded.label, confidence = excluded.confidence, tier = excluded.tier, verified = excluded.verified, language = excluded.language, gates = excluded.gates, decision = excluded.decision, reason = excluded.reason, protected_market = excluded.protected_market, protected_category = excluded.protected_category, evaluated_at = excluded.evaluated_at`

	duplicateUpdates = `sender = VALUES(sender), label = VALUES(label), confidence = VALUES(confidence), tier = VALUES(tier), verified = VALUES(verified), language = VALUES(language), gates = VALUES(gates), decision = VALUES(decision), reason = VALUES(reason), protected_market = VALUES(protected_market), protected_category = VALUES(protected_category), evaluated_at = VALUES(evaluated_at)`
)

const decisionColumns = `message_id, sender, label, confidence, tier, verified, language, gates,
	decision, reason, protected_market, protected_category, evaluated_at, ground_truth`

func toRow(d *core.DecisionResult) (*decisionRow, error) {
	gates, err := json.Marshal(d.Gates)
	if err != nil {
		return nil, fmt.Errorf("failed to encode gates: %w", err)
	}
	return &decisionRow{
		MessageID:         d.MessageID,
		Sender:            d.Sender,
		Label:             d.Label.Sanitize().String(),
		Confidence:        d.Confidence,
		Tier:              d.Tier.String(),
		Verified:          d.Verified,
		Language:          d.Language,
		Gates:             string(gates),
		Decision:          d.Decision.String(),
		Reason:            d.Reason,
		ProtectedMarket:   d.ProtectedMarket,
		ProtectedCategory: d.ProtectedCategory,
		EvaluatedAt:       d.EvaluatedAt.UnixMilli(),
	}, nil
}

func (r *decisionRow) toDecision() (*core.DecisionResult, error) {
	d := &core.DecisionResult{
		MessageID:         r.MessageID,
		Sender:            r.Sender,
		Label:             core.NormalizeLabel(r.Label),
		Confidence:        r.Confidence,
		Verified:          r.Verified,
		Language:          r.Language,
		Reason:            r.Reason,
		ProtectedMarket:   r.ProtectedMarket,
		ProtectedCategory: r.ProtectedCategory,
		EvaluatedAt:       time.UnixMilli(r.EvaluatedAt).UTC(),
	}
	_ = d.Tier.UnmarshalText([]byte(r.Tier))
	_ = d.Decision.UnmarshalText([]byte(r.Decision))
	if r.Gates != "" {
		if err := json.Unmarshal([]byte(r.Gates), &d.Gates); err != nil {
			return nil, fmt.Errorf("failed to decode gates of %s: %w", r.MessageID, err)
		}
	}
	return d, nil
}

func (r *outcomeRow) toOutcome() core.LabeledOutcome {
	return core.LabeledOutcome{
		MessageID:  r.MessageID,
		Predicted:  core.NormalizeLabel(r.Label),
		Confidence: r.Confidence,
		Actual:     core.NormalizeLabel(r.GroundTruth),
	}
}
