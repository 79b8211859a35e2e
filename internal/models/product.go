// internal/models/product.go
package models

// Product is a catalog item from the products index. PersonalColorTypes
// lists the types the item's color flatters.
type Product struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Brand              string   `json:"brand"`
	Category           string   `json:"category"`
	ColorName          string   `json:"color_name"`
	Hex                string   `json:"hex"`
	PersonalColorTypes []string `json:"personal_color_types"`
	Seasons            []string `json:"seasons"`
	Price              float64  `json:"price"`
	Popularity         float64  `json:"popularity"`
	ImageURL           string   `json:"image_url,omitempty"`
}
