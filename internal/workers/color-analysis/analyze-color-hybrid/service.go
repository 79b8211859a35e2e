package analyzecolorhybrid

import (
	"context"

	"personal-color-workers/internal/common/errors"
	"personal-color-workers/internal/common/logger"
	"personal-color-workers/internal/ensemble"
)

// Analyzer runs a hybrid ensemble request.
type Analyzer interface {
	AnalyzeHybrid(ctx context.Context, image []byte, judge ensemble.ProviderID) (*ensemble.EnsembleDecision, error)
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

func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	judge := input.JudgeModel
	if judge == "" {
		judge = s.config.DefaultJudge
	}

	decision, err := s.analyzer.AnalyzeHybrid(ctx, input.Image, judge)
	if err != nil {
		return nil, errors.FromEnsembleError(err)
	}

	fields := map[string]interface{}{
		"requestId":         decision.RequestID,
		"userId":            input.UserID,
		"requestedJudge":    string(judge),
		"personalColorType": string(decision.PersonalColorType),
		"confidence":        decision.Confidence,
	}
	if decision.JudgeFallback {
		s.logger.Warn("Judge unavailable, best candidate returned", fields)
	} else {
		s.logger.Info("Hybrid color analysis completed", fields)
	}

	return &Output{Decision: decision, UserID: input.UserID}, nil
}
