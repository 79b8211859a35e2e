package savecolorresult

import (
	"time"

	"personal-color-workers/internal/ensemble"
)

type Input struct {
	UserID   string
	Decision *ensemble.EnsembleDecision
}

type Output struct {
	ResultID  string    `json:"resultId"`
	CreatedAt time.Time `json:"createdAt"`
}
