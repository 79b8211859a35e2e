package analyzecolorhybrid

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"personal-color-workers/internal/common/config"
	"personal-color-workers/internal/common/errors"
	"personal-color-workers/internal/common/logger"
	"personal-color-workers/internal/ensemble"
)

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) AnalyzeHybrid(ctx context.Context, image []byte, judge ensemble.ProviderID) (*ensemble.EnsembleDecision, error) {
	args := m.Called(ctx, image, judge)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ensemble.EnsembleDecision), args.Error(1)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "personal-color-analysis",
		ElementId:          "Activity_AnalyzeColorHybrid",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

var testImage = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 32)...)

func createTestHandler(t *testing.T, analyzer Analyzer) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		Analyzer: analyzer,
		CustomConfig: &Config{
			Enabled:       true,
			MaxJobsActive: 2,
			Timeout:       time.Minute,
		},
		Logger: logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func createJudgedDecision(fallback bool) *ensemble.EnsembleDecision {
	return &ensemble.EnsembleDecision{
		RequestID:         "req-h1",
		Mode:              ensemble.ModeHybrid,
		PersonalColorType: ensemble.SoftSummer,
		Season:            ensemble.SeasonSummer,
		Subtype:           "soft",
		Undertone:         ensemble.UndertoneCool,
		Confidence:        0.74,
		AggregationMethod: ensemble.MethodHybridJudge,
		AgreementRatio:    0.5,
		JudgeFallback:     fallback,
	}
}

func TestHandler_NewHandler_Validation(t *testing.T) {
	_, err := NewHandler(HandlerOptions{
		Analyzer:     &MockAnalyzer{},
		CustomConfig: &Config{Enabled: true, MaxJobsActive: 1, Timeout: time.Second, DefaultJudge: "mistral"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_judge")

	_, err = NewHandler(HandlerOptions{CustomConfig: DefaultConfig()})
	require.Error(t, err)
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	cfg := createConfigFromAppConfig(&config.Config{
		Workers:  map[string]config.WorkerConfig{TaskType: {Enabled: true, MaxJobsActive: 4, Timeout: 30000}},
		Ensemble: config.EnsembleConfig{DefaultJudge: "claude"},
	}, nil)
	assert.Empty(t, cfg.DefaultJudge, "ensemble judge stays with the orchestrator")
	assert.Equal(t, 4, cfg.MaxJobsActive)
	assert.Equal(t, 30*time.Second, cfg.Timeout)

	cfg = createConfigFromAppConfig(nil, nil)
	assert.Equal(t, DefaultConfig().Timeout, cfg.Timeout)
}

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, &MockAnalyzer{})
	encoded := base64.StdEncoding.EncodeToString(testImage)

	tests := []struct {
		name      string
		variables map[string]interface{}
		wantCode  errors.ErrorCode
		want      *Input
	}{
		{
			name:      "default judge",
			variables: map[string]interface{}{"image": encoded},
			want:      &Input{Image: testImage},
		},
		{
			name:      "judge alias",
			variables: map[string]interface{}{"image": encoded, "judgeModel": "anthropic", "userId": "u-1"},
			want:      &Input{Image: testImage, JudgeModel: ensemble.ProviderClaude, UserID: "u-1"},
		},
		{
			name:      "empty judge uses default",
			variables: map[string]interface{}{"image": encoded, "judgeModel": ""},
			want:      &Input{Image: testImage},
		},
		{
			name:      "unknown judge",
			variables: map[string]interface{}{"image": encoded, "judgeModel": "llama"},
			wantCode:  errors.ErrCodeInvalidInput,
		},
		{
			name:      "empty image string",
			variables: map[string]interface{}{"image": ""},
			wantCode:  errors.ErrCodeInvalidInput,
		},
		{
			name:      "data URL without base64 marker",
			variables: map[string]interface{}{"image": "data:image/jpeg," + encoded},
			wantCode:  errors.ErrCodeInvalidImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(createMockJob(2, tt.variables))
			if tt.wantCode != "" {
				require.Error(t, err)
				stdErr, ok := err.(*errors.StandardError)
				require.True(t, ok)
				assert.Equal(t, tt.wantCode, stdErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, input)
		})
	}
}

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name      string
		input     *Input
		wantJudge ensemble.ProviderID
		fallback  bool
	}{
		{
			name:  "judge left to the ensemble",
			input: &Input{Image: testImage},
		},
		{
			name:      "requested judge",
			input:     &Input{Image: testImage, JudgeModel: ensemble.ProviderOpenAI},
			wantJudge: ensemble.ProviderOpenAI,
		},
		{
			name:      "judge fallback is still a success",
			input:     &Input{Image: testImage, JudgeModel: ensemble.ProviderClaude},
			wantJudge: ensemble.ProviderClaude,
			fallback:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &MockAnalyzer{}
			analyzer.On("AnalyzeHybrid", mock.Anything, testImage, tt.wantJudge).
				Return(createJudgedDecision(tt.fallback), nil)
			h := createTestHandler(t, analyzer)

			output, err := h.Execute(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, ensemble.SoftSummer, output.Decision.PersonalColorType)
			assert.Equal(t, tt.fallback, output.Decision.JudgeFallback)
			analyzer.AssertExpectations(t)
		})
	}
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode errors.ErrorCode
	}{
		{
			name: "both candidates failed",
			err: &ensemble.AggregationError{
				Kind: ensemble.AggregationAllModelsFailed, Method: ensemble.MethodHybridJudge, Total: 2, Failed: 2,
			},
			wantCode: errors.ErrCodeAllModelsFailed,
		},
		{
			name:     "invalid judge",
			err:      ensemble.ErrInvalidJudge,
			wantCode: errors.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &MockAnalyzer{}
			analyzer.On("AnalyzeHybrid", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)
			h := createTestHandler(t, analyzer)

			_, err := h.Execute(context.Background(), &Input{Image: testImage})
			require.Error(t, err)
			stdErr, ok := err.(*errors.StandardError)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, stdErr.Code)
		})
	}
}

func TestHandler_Execute_WorkerJudgeOverride(t *testing.T) {
	analyzer := &MockAnalyzer{}
	analyzer.On("AnalyzeHybrid", mock.Anything, testImage, ensemble.ProviderOpenAI).
		Return(createJudgedDecision(false), nil)

	custom := DefaultConfig()
	custom.DefaultJudge = ensemble.ProviderOpenAI
	h, err := NewHandler(HandlerOptions{Analyzer: analyzer, CustomConfig: custom, Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), &Input{Image: testImage})
	require.NoError(t, err)
	analyzer.AssertExpectations(t)
}

// ==========================
// Ensemble Default Tests
// ==========================

type fixedModel struct {
	provider ensemble.ProviderID
	answer   string
}

func (m fixedModel) Provider() ensemble.ProviderID { return m.provider }

func (m fixedModel) Analyze(ctx context.Context, image []byte) (ensemble.RawColorResult, error) {
	return ensemble.RawColorResult{"personal_color_type": m.answer, "confidence": 0.7}, nil
}

func (m fixedModel) Judge(ctx context.Context, image []byte, candidates []ensemble.ColorAnalysisResult) (ensemble.RawColorResult, error) {
	return m.Analyze(ctx, image)
}

func TestHandler_Execute_EnsembleDefaultJudge(t *testing.T) {
	log := logger.NewTestLogger(t)
	adapters := []ensemble.ModelAdapter{
		fixedModel{ensemble.ProviderGemini, "Soft Summer"},
		fixedModel{ensemble.ProviderOpenAI, "Soft Summer"},
		fixedModel{ensemble.ProviderClaude, "Cool Winter"},
	}
	orchestrator, err := ensemble.NewOrchestrator(ensemble.DefaultConfig(), adapters, log)
	require.NoError(t, err)

	for _, appConfig := range []*config.Config{nil, {}} {
		h, err := NewHandler(HandlerOptions{AppConfig: appConfig, Analyzer: orchestrator, Logger: log})
		require.NoError(t, err)

		output, err := h.Execute(context.Background(), &Input{Image: testImage})
		require.NoError(t, err)

		var judges []ensemble.ProviderID
		for _, outcome := range output.Decision.ModelResults {
			if outcome.Role == ensemble.RoleJudge {
				judges = append(judges, outcome.Provider)
			}
		}
		assert.Equal(t, []ensemble.ProviderID{ensemble.ProviderGemini}, judges)
		assert.Equal(t, ensemble.SoftSummer, output.Decision.PersonalColorType)
		assert.False(t, output.Decision.JudgeFallback)
	}
}
