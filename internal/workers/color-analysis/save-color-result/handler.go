package savecolorresult

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"personal-color-workers/internal/common/config"
	"personal-color-workers/internal/common/errors"
	"personal-color-workers/internal/common/logger"
	"personal-color-workers/internal/common/metrics"
	"personal-color-workers/internal/common/observability"
	"personal-color-workers/internal/ensemble"
)

const TaskType = "save-color-result"

type Handler struct {
	config       *Config
	logger       logger.Logger
	service      *Service
	errorHandler *errors.ErrorHandler
	obs          *observability.Observability
}

type HandlerOptions struct {
	AppConfig     *config.Config
	DB            *sql.DB
	Publisher     EventPublisher
	CustomConfig  *Config
	Logger        logger.Logger
	Observability *observability.Observability
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.DB == nil {
		return nil, fmt.Errorf("%s requires a database", TaskType)
	}

	loggerInstance := opts.Logger
	if loggerInstance == nil {
		loggerInstance = logger.NewStructured("info", "json")
	}
	loggerInstance = loggerInstance.WithFields(map[string]interface{}{"worker": TaskType})

	return &Handler{
		config:       workerConfig,
		logger:       loggerInstance,
		errorHandler: errors.NewErrorHandler(loggerInstance),
		obs:          opts.Observability,
		service: NewService(ServiceDependencies{
			Store:     NewStore(opts.DB),
			Publisher: opts.Publisher,
			Logger:    loggerInstance,
		}, workerConfig),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Saving color result", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	output, err := h.process(ctx, job, startTime)
	if err != nil {
		h.failJob(ctx, client, job, startTime, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.ObserveJob(TaskType, startTime, "")
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.service.Execute(ctx, input)
}

// process parses and runs the job inside its job span.
func (h *Handler) process(ctx context.Context, job entities.Job, startTime time.Time) (output *Output, err error) {
	ctx, span := h.obs.StartJobSpan(ctx, job)
	defer func() { h.obs.FinishJob(ctx, span, TaskType, startTime, err) }()

	input, err := h.parseInput(job)
	if err != nil {
		return nil, err
	}
	return h.Execute(ctx, input)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse job variables: %v", err))
	}

	if result := inputSchema.Validate(variables); !result.Valid {
		return nil, errors.NewInvalidInputError(result.Error())
	}

	decision, err := decodeDecision(variables["decision"])
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}

	return &Input{
		UserID:   variables["userId"].(string),
		Decision: decision,
	}, nil
}

// decodeDecision re-reads the decision variable written by the analysis
// workers and pins season and subtype to the canonical type.
func decodeDecision(raw interface{}) (*ensemble.EnsembleDecision, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode decision: %w", err)
	}

	var decision ensemble.EnsembleDecision
	if err := json.Unmarshal(data, &decision); err != nil {
		return nil, fmt.Errorf("decode decision: %w", err)
	}

	colorType, ok := ensemble.ParseColorType(string(decision.PersonalColorType))
	if !ok {
		return nil, fmt.Errorf("unrecognized personal color type %q", decision.PersonalColorType)
	}
	decision.PersonalColorType = colorType
	decision.Season = colorType.Season()
	decision.Subtype = colorType.Subtype()
	if !decision.Undertone.IsValid() {
		decision.Undertone = decision.Season.DefaultUndertone()
	}

	return &decision, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
	}
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, startTime time.Time, err error) {
	stdErr := errors.FromEnsembleError(err)
	metrics.ObserveJob(TaskType, startTime, string(stdErr.Code))
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()

	if appConfig != nil {
		if workerCfg, exists := appConfig.Workers[TaskType]; exists {
			cfg.Enabled = workerCfg.Enabled
			if workerCfg.MaxJobsActive > 0 {
				cfg.MaxJobsActive = workerCfg.MaxJobsActive
			}
			if workerCfg.Timeout > 0 {
				cfg.Timeout = time.Duration(workerCfg.Timeout) * time.Millisecond
			}
		}
		if appConfig.Notifications.SNS.Enabled {
			cfg.TopicARN = appConfig.Notifications.SNS.TopicARN
		}
	}

	return cfg
}
