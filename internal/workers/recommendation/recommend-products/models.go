package recommendproducts

import (
	"personal-color-workers/internal/ensemble"
	"personal-color-workers/internal/models"
)

type Input struct {
	PersonalColorType ensemble.ColorType
	Category          string
	Limit             int
}

type Output struct {
	Products []models.Product `json:"products"`
	Total    int64            `json:"total"`
	// MatchedBy is "personal_color_type", or "season" when the season
	// fallback answered.
	MatchedBy string `json:"matchedBy"`
}
