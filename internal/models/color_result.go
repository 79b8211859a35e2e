// internal/models/color_result.go
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"personal-color-workers/internal/ensemble"
)

// ColorResult is one saved analysis in a user's color history
// (color_results table).
type ColorResult struct {
	ID                string          `json:"id"`
	UserID            string          `json:"userId"`
	RequestID         string          `json:"requestId"`
	PersonalColorType string          `json:"personalColorType"`
	Season            string          `json:"season"`
	Subtype           string          `json:"subtype"`
	Undertone         string          `json:"undertone"`
	Confidence        float64         `json:"confidence"`
	AggregationMethod string          `json:"aggregationMethod"`
	AgreementRatio    float64         `json:"agreementRatio"`
	Reasoning         string          `json:"reasoning"`
	ModelResults      json.RawMessage `json:"modelResults"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// NewColorResult flattens a decision into a history record with a fresh ID.
func NewColorResult(userID string, d *ensemble.EnsembleDecision, now time.Time) (*ColorResult, error) {
	if d == nil {
		return nil, fmt.Errorf("decision is required")
	}
	if !d.PersonalColorType.IsValid() {
		return nil, fmt.Errorf("decision has unknown personal color type %q", d.PersonalColorType)
	}

	outcomes := d.ModelResults
	if outcomes == nil {
		outcomes = []ensemble.ModelOutcome{}
	}
	modelResults, err := json.Marshal(outcomes)
	if err != nil {
		return nil, fmt.Errorf("marshal model results: %w", err)
	}

	return &ColorResult{
		ID:                uuid.NewString(),
		UserID:            userID,
		RequestID:         d.RequestID,
		PersonalColorType: string(d.PersonalColorType),
		Season:            string(d.Season),
		Subtype:           d.Subtype,
		Undertone:         string(d.Undertone),
		Confidence:        d.Confidence,
		AggregationMethod: string(d.AggregationMethod),
		AgreementRatio:    d.AgreementRatio,
		Reasoning:         d.Reasoning,
		ModelResults:      modelResults,
		CreatedAt:         now.UTC(),
	}, nil
}
