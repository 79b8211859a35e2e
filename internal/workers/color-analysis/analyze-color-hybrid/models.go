package analyzecolorhybrid

import "personal-color-workers/internal/ensemble"

type Input struct {
	Image      []byte
	JudgeModel ensemble.ProviderID
	UserID     string
}

type Output struct {
	Decision *ensemble.EnsembleDecision `json:"decision"`
	UserID   string                     `json:"userId,omitempty"`
}
