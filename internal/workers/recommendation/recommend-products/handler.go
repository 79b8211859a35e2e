package recommendproducts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"

	"personal-color-workers/internal/common/config"
	"personal-color-workers/internal/common/errors"
	"personal-color-workers/internal/common/logger"
	"personal-color-workers/internal/common/metrics"
	"personal-color-workers/internal/common/observability"
	"personal-color-workers/internal/ensemble"
)

const TaskType = "recommend-products"

type Handler struct {
	config       *Config
	logger       logger.Logger
	service      *Service
	errorHandler *errors.ErrorHandler
	obs          *observability.Observability
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Elasticsearch *elasticsearch.Client
	CustomConfig  *Config
	Logger        logger.Logger
	Observability *observability.Observability
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Elasticsearch == nil {
		return nil, fmt.Errorf("%s requires an elasticsearch client", TaskType)
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
			Elasticsearch: opts.Elasticsearch,
			Logger:        loggerInstance,
		}, workerConfig),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing product recommendation", map[string]interface{}{
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

	raw := variables["personalColorType"].(string)
	colorType, ok := ensemble.ParseColorType(raw)
	if !ok {
		return nil, errors.NewUnrecognizedColorTypeError(raw)
	}

	input := &Input{PersonalColorType: colorType}

	if category, ok := variables["category"].(string); ok {
		input.Category = strings.ToLower(strings.TrimSpace(category))
	}
	if limit, ok := variables["limit"].(float64); ok {
		input.Limit = int(limit)
	}

	return input, nil
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
		if index := appConfig.Database.Elasticsearch.ProductIndex; index != "" {
			cfg.Index = index
		}
	}

	return cfg
}
