// cmd/tools/worker-generator/templates.go
package main

// Templates use {{bt}} for a backtick.

const handlerTemplate = `package {{ .PackageName }}

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"personal-color-workers/internal/common/config"
	"personal-color-workers/internal/common/errors"
	"personal-color-workers/internal/common/logger"
	"personal-color-workers/internal/common/metrics"
	"personal-color-workers/internal/common/observability"
)

const TaskType = "{{ .TaskType }}"

// Handler runs the {{ .Name }} worker.
type Handler struct {
	config       *Config
	logger       logger.Logger
	service      *Service
	errorHandler *errors.ErrorHandler
	obs          *observability.Observability
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Logger        logger.Logger
	Observability *observability.Observability
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
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
		service:      NewService(ServiceDependencies{Logger: loggerInstance}, workerConfig),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.process(ctx, job, startTime)
	if err != nil {
		h.failJob(ctx, client, job, startTime, err)
		return
	}

	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{"jobKey": job.GetKey(), "error": err.Error()})
		return
	}
	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{"jobKey": job.GetKey(), "error": err.Error()})
		return
	}
	metrics.ObserveJob(TaskType, startTime, "")
}

func (h *Handler) process(ctx context.Context, job entities.Job, startTime time.Time) (output *Output, err error) {
	ctx, span := h.obs.StartJobSpan(ctx, job)
	defer func() { h.obs.FinishJob(ctx, span, TaskType, startTime, err) }()

	input, err := h.parseInput(job)
	if err != nil {
		return nil, err
	}
	return h.service.Execute(ctx, input)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse job variables: %v", err))
	}
	if result := inputSchema.Validate(variables); !result.Valid {
		return nil, errors.NewInvalidInputError(result.Error())
	}

	var input Input
	if err := job.GetVariablesAs(&input); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	return &input, nil
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
	}
	return cfg
}
`

const serviceTemplate = `package {{ .PackageName }}

import (
	"context"

	"personal-color-workers/internal/common/logger"
)

type ServiceDependencies struct {
	Logger logger.Logger
}

type Service struct {
	config *Config
	logger logger.Logger
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{config: config, logger: deps.Logger}
}

{{ if .Description }}// Execute: {{ .Description }}
{{ end }}func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	// Business logic goes here.
	return &Output{}, nil
}
`

const configTemplate = `package {{ .PackageName }}

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled       bool          {{ bt }}mapstructure:"enabled"{{ bt }}
	MaxJobsActive int           {{ bt }}mapstructure:"max_jobs_active"{{ bt }}
	Timeout       time.Duration {{ bt }}mapstructure:"timeout"{{ bt }}
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       {{ .Timeout.Milliseconds }} * time.Millisecond,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	return nil
}
`

const modelsTemplate = `package {{ .PackageName }}

type Input struct {
{{- range .InputFields }}
{{- if .Comment }}
	// {{ .Comment }}
{{- end }}
	{{ .Name }} {{ .GoType }} {{ bt }}json:"{{ .JSONName }}{{ if not .Required }},omitempty{{ end }}"{{ bt }}
{{- end }}
}

type Output struct {
{{- range .OutputFields }}
	{{ .Name }} {{ .GoType }} {{ bt }}json:"{{ .JSONName }},omitempty"{{ bt }}
{{- end }}
}
`

const validationTemplate = `package {{ .PackageName }}

import "personal-color-workers/internal/common/validation"

var inputSchema = validation.MustCompile(TaskType, {{ bt }}{{ .InputSchema }}{{ bt }})
{{ if .ErrorCodes }}
// Error codes this worker may raise:
{{- range .ErrorCodes }}
//   - {{ . }}
{{- end }}
{{- end }}
`

const testTemplate = `package {{ .PackageName }}

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personal-color-workers/internal/common/logger"
)

func TestNewHandler(t *testing.T) {
	h, err := NewHandler(HandlerOptions{Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)
	assert.Equal(t, TaskType, h.GetTaskType())

	_, err = NewHandler(HandlerOptions{CustomConfig: &Config{MaxJobsActive: 1}})
	assert.Error(t, err)
}

func TestInputSchema_Empty(t *testing.T) {
	result := inputSchema.Validate(map[string]interface{}{})
	assert.Equal(t, {{ not .HasRequired }}, result.Valid)
}

func TestService_Execute(t *testing.T) {
	svc := NewService(ServiceDependencies{Logger: logger.NewTestLogger(t)}, DefaultConfig())
	out, err := svc.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.NotNil(t, out)
}
`

// HasRequired reports whether the input schema names required properties.
func (d *WorkerData) HasRequired() bool {
	for _, f := range d.InputFields {
		if f.Required {
			return true
		}
	}
	return false
}
