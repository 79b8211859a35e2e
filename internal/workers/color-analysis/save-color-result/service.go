package savecolorresult

import (
	"context"
	"time"

	"personal-color-workers/internal/common/errors"
	"personal-color-workers/internal/common/logger"
	"personal-color-workers/internal/models"
)

// EventPublisher publishes domain events. *aws.SNSClient satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topicARN, eventType string, payload interface{}) (string, error)
}

type ServiceDependencies struct {
	Store     *Store
	Publisher EventPublisher
	Logger    logger.Logger
	Now       func() time.Time
}

type Service struct {
	config    *Config
	store     *Store
	publisher EventPublisher
	logger    logger.Logger
	now       func() time.Time
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		config:    config,
		store:     deps.Store,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		now:       now,
	}
}

// Execute inserts the decision into the user's history. A failed event
// publish is logged and does not fail the job.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	record, err := models.NewColorResult(input.UserID, input.Decision, s.now())
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}

	if err := s.store.Insert(ctx, record); err != nil {
		if connectionLost(err) {
			return nil, errors.NewDatabaseConnectionFailedError(err)
		}
		return nil, errors.NewDatabaseInsertFailedError(err)
	}

	s.logger.Info("Color result saved", map[string]interface{}{
		"resultId":          record.ID,
		"userId":            record.UserID,
		"requestId":         record.RequestID,
		"personalColorType": record.PersonalColorType,
	})

	s.publish(ctx, record)

	return &Output{ResultID: record.ID, CreatedAt: record.CreatedAt}, nil
}

func (s *Service) publish(ctx context.Context, record *models.ColorResult) {
	if s.publisher == nil || s.config.TopicARN == "" {
		return
	}

	messageID, err := s.publisher.PublishEvent(ctx, s.config.TopicARN, models.EventColorResultSaved, models.NewColorResultEvent(record))
	if err != nil {
		s.logger.Warn("Failed to publish color result event", map[string]interface{}{
			"resultId": record.ID,
			"error":    errors.NewNotificationSendFailedError("sns", err).Details,
		})
		return
	}

	s.logger.Debug("Color result event published", map[string]interface{}{
		"resultId":  record.ID,
		"messageId": messageID,
	})
}
