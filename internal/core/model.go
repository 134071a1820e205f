package core

import (
	"time"
)

// Email represents a message fetched from the mail provider
type Email struct {
	EmailMetadata
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// EmailMetadata is the subset of a message the decision gates look at
type EmailMetadata struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Starred   bool   `json:"starred"`
	Important bool   `json:"important"`
}

// ClassificationResult is the oracle's verdict for a single message
type ClassificationResult struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
	Verified   bool    `json:"verified"`
	Language   string  `json:"language"`
	Reason     string  `json:"reason,omitempty"`
	ModelUsed  string  `json:"model_used,omitempty"`
}

// GateResult is the outcome of one safety gate
type GateResult struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason"`
}

// DecisionResult is the audited outcome of evaluating one message.
// It is immutable once produced.
type DecisionResult struct {
	MessageID         string       `json:"message_id"`
	Sender            string       `json:"sender"`
	Label             Label        `json:"label"`
	Confidence        float64      `json:"confidence"`
	Tier              Tier         `json:"tier"`
	Verified          bool         `json:"verified"`
	Language          string       `json:"language"`
	Gates             []GateResult `json:"gates"`
	Decision          Decision     `json:"decision"`
	Reason            string       `json:"reason"`
	ProtectedMarket   string       `json:"protected_market,omitempty"`
	ProtectedCategory string       `json:"protected_category,omitempty"`
	EvaluatedAt       time.Time    `json:"evaluated_at"`
}

// FailedGates returns the gates that did not pass, in evaluation order
func (d *DecisionResult) FailedGates() []GateResult {
	var failed []GateResult
	for _, g := range d.Gates {
		if !g.Passed {
			failed = append(failed, g)
		}
	}
	return failed
}

// LabeledOutcome pairs an archived prediction with its ground truth
type LabeledOutcome struct {
	MessageID  string  `json:"message_id"`
	Predicted  Label   `json:"predicted"`
	Confidence float64 `json:"confidence"`
	Actual     Label   `json:"actual"`
}
