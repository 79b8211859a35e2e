// internal/models/notification.go
package models

import "time"

const EventColorResultSaved = "color_result.saved"

// ColorResultEvent is published when a color result is saved.
type ColorResultEvent struct {
	EventType         string    `json:"eventType"`
	ResultID          string    `json:"resultId"`
	UserID            string    `json:"userId"`
	PersonalColorType string    `json:"personalColorType"`
	Season            string    `json:"season"`
	Confidence        float64   `json:"confidence"`
	AggregationMethod string    `json:"aggregationMethod"`
	CreatedAt         time.Time `json:"createdAt"`
}

// NewColorResultEvent builds the saved event for r.
func NewColorResultEvent(r *ColorResult) ColorResultEvent {
	return ColorResultEvent{
		EventType:         EventColorResultSaved,
		ResultID:          r.ID,
		UserID:            r.UserID,
		PersonalColorType: r.PersonalColorType,
		Season:            r.Season,
		Confidence:        r.Confidence,
		AggregationMethod: r.AggregationMethod,
		CreatedAt:         r.CreatedAt,
	}
}
