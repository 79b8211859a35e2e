package analyzecolorparallel

import "personal-color-workers/internal/ensemble"

// Input is the decoded job input. Image holds the raw image bytes.
type Input struct {
	Image             []byte
	AggregationMethod ensemble.AggregationMethod
	UserID            string
}

type Output struct {
	Decision *ensemble.EnsembleDecision `json:"decision"`
	UserID   string                     `json:"userId,omitempty"`
}
