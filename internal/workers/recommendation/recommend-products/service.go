package recommendproducts

import (
	"context"
	stderrors "errors"

	"github.com/elastic/go-elasticsearch/v8"

	"personal-color-workers/internal/common/errors"
	"personal-color-workers/internal/common/logger"
	"personal-color-workers/internal/workers/recommendation/recommend-products/queries"
)

const (
	matchedByType   = "personal_color_type"
	matchedBySeason = "season"
)

type ServiceDependencies struct {
	Elasticsearch *elasticsearch.Client
	Logger        logger.Logger
}

type Service struct {
	config *Config
	es     *elasticsearch.Client
	logger logger.Logger
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config: config,
		es:     deps.Elasticsearch,
		logger: deps.Logger,
	}
}

func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}

	query := queries.ProductQuery{
		Index:    s.config.Index,
		Field:    queries.FieldColorType,
		Value:    string(input.PersonalColorType),
		Category: input.Category,
		Limit:    limit,
	}

	result, err := s.search(ctx, query)
	if err != nil {
		return nil, err
	}
	matchedBy := matchedByType

	if result.Total == 0 && s.config.SeasonFallback {
		query.Field = queries.FieldSeason
		query.Value = string(input.PersonalColorType.Season())
		result, err = s.search(ctx, query)
		if err != nil {
			return nil, err
		}
		matchedBy = matchedBySeason
	}

	s.logger.Info("Product recommendations retrieved", map[string]interface{}{
		"personalColorType": string(input.PersonalColorType),
		"category":          input.Category,
		"matchedBy":         matchedBy,
		"returned":          len(result.Products),
		"total":             result.Total,
		"tookMs":            result.Took,
	})

	return &Output{
		Products:  result.Products,
		Total:     result.Total,
		MatchedBy: matchedBy,
	}, nil
}

func (s *Service) search(ctx context.Context, q queries.ProductQuery) (*queries.Result, error) {
	result, err := queries.Search(ctx, s.es, q)
	switch {
	case err == nil:
		return result, nil
	case stderrors.Is(err, queries.ErrIndexMissing), stderrors.Is(err, queries.ErrMissingIndex):
		return nil, errors.NewIndexNotFoundError(q.Index)
	case stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, errors.NewSearchTimeoutError(string(q.Field))
	default:
		return nil, errors.NewSearchQueryFailedError(string(q.Field), err)
	}
}
