package analyzecolorparallel

import (
	"context"

	"personal-color-workers/internal/common/errors"
	"personal-color-workers/internal/common/logger"
	"personal-color-workers/internal/ensemble"
)

// Analyzer runs a parallel ensemble request. *ensemble.Orchestrator
// satisfies it.
type Analyzer interface {
	AnalyzeParallel(ctx context.Context, image []byte, method ensemble.AggregationMethod) (*ensemble.EnsembleDecision, error)
}

type ServiceDependencies struct {
	Analyzer Analyzer
	Logger   logger.Logger
}

type Service struct {
	config   *Config
	analyzer Analyzer
	logger   logger.Logger
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config:   config,
		analyzer: deps.Analyzer,
		logger:   deps.Logger,
	}
}

// Execute runs the ensemble with the requested method. Without one it uses
// the worker override, then the orchestrator's default. Ensemble failures
// come back as *errors.StandardError.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	method := input.AggregationMethod
	if method == "" {
		method = s.config.DefaultMethod
	}

	decision, err := s.analyzer.AnalyzeParallel(ctx, input.Image, method)
	if err != nil {
		return nil, errors.FromEnsembleError(err)
	}

	s.logger.Info("Color analysis completed", map[string]interface{}{
		"requestId":         decision.RequestID,
		"userId":            input.UserID,
		"method":            string(decision.AggregationMethod),
		"personalColorType": string(decision.PersonalColorType),
		"confidence":        decision.Confidence,
		"agreementRatio":    decision.AgreementRatio,
		"reducedEnsemble":   decision.ReducedEnsemble,
	})

	return &Output{Decision: decision, UserID: input.UserID}, nil
}
