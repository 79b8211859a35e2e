package queries

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"

	"personal-color-workers/internal/models"
)

var (
	ErrMissingIndex = errors.New("index name is required")
	ErrIndexMissing = errors.New("index does not exist")
)

// Field selects which keyword field a product query matches on.
type Field string

const (
	FieldColorType Field = "personal_color_types"
	FieldSeason    Field = "seasons"
)

// ProductQuery is a catalog lookup for one color type or season.
type ProductQuery struct {
	Index    string
	Field    Field
	Value    string
	Category string
	Limit    int
}

// Result is one page of matched products.
type Result struct {
	Products []models.Product
	Total    int64
	Took     int
}

// BuildBody returns the search body: exact keyword filters, most popular
// first, cheaper first on ties.
func BuildBody(q ProductQuery) map[string]interface{} {
	filters := []interface{}{
		map[string]interface{}{"term": map[string]interface{}{string(q.Field): q.Value}},
	}
	if q.Category != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"category": q.Category},
		})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filters},
		},
		"sort": []interface{}{
			map[string]interface{}{"popularity": map[string]interface{}{"order": "desc", "missing": "_last"}},
			map[string]interface{}{"price": map[string]interface{}{"order": "asc", "missing": "_last"}},
		},
		"size":             q.Limit,
		"track_total_hits": true,
	}
}

type searchResponse struct {
	Took int `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string         `json:"_id"`
			Source models.Product `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs q against the catalog index.
func Search(ctx context.Context, es *elasticsearch.Client, q ProductQuery) (*Result, error) {
	if q.Index == "" {
		return nil, ErrMissingIndex
	}

	body, err := json.Marshal(BuildBody(q))
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(q.Index),
		es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", q.Index, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, fmt.Errorf("%w: %s", ErrIndexMissing, q.Index)
	}
	if res.IsError() {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("search %s: %s: %s", q.Index, res.Status(), bytes.TrimSpace(detail))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	result := &Result{
		Products: make([]models.Product, 0, len(parsed.Hits.Hits)),
		Total:    parsed.Hits.Total.Value,
		Took:     parsed.Took,
	}
	for _, hit := range parsed.Hits.Hits {
		p := hit.Source
		if p.ID == "" {
			p.ID = hit.ID
		}
		result.Products = append(result.Products, p)
	}
	return result, nil
}
