package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personal-color-workers/internal/ensemble"
)

func TestFromEnsembleError(t *testing.T) {
	noConsensus := &ensemble.AggregationError{
		Kind:   ensemble.AggregationNoConsensus,
		Method: ensemble.MethodConsensus,
		Total:  3,
	}
	allFailed := &ensemble.AggregationError{
		Kind:   ensemble.AggregationAllModelsFailed,
		Method: ensemble.MethodVoting,
		Total:  3,
		Failed: 3,
		Outcomes: []ensemble.ModelOutcome{
			{Provider: ensemble.ProviderGemini, Status: ensemble.OutcomeFailure, FailureKind: "timeout"},
		},
	}

	tests := []struct {
		name      string
		err       error
		code      ErrorCode
		retryable bool
	}{
		{"no consensus", noConsensus, ErrCodeNoConsensus, false},
		{"wrapped all models failed", fmt.Errorf("analyze: %w", allFailed), ErrCodeAllModelsFailed, false},
		{"empty image", ensemble.ErrEmptyImage, ErrCodeInvalidImage, false},
		{"invalid method", fmt.Errorf("%w: %q", ensemble.ErrInvalidMethod, "x"), ErrCodeInvalidInput, false},
		{"invalid judge", ensemble.ErrInvalidJudge, ErrCodeInvalidInput, false},
		{"hybrid unavailable", fmt.Errorf("wrap: %w", ensemble.ErrHybridUnavailable), ErrCodeInvalidInput, false},
		{"rate limit", ensemble.NewProviderError(ensemble.ProviderOpenAI, ensemble.ProviderRateLimit, nil), ErrCodeProviderRateLimited, true},
		{"invalid response", ensemble.NewProviderError(ensemble.ProviderClaude, ensemble.ProviderInvalidResponse, nil), ErrCodeProviderInvalidResponse, false},
		{"normalization", &ensemble.NormalizationError{Value: "Sunset"}, ErrCodeUnrecognizedColorType, false},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout, true},
		{"unknown", stderrors.New("boom"), ErrCodeInternal, false},
		{"standard error passes through", NewInvalidInputError("bad"), ErrCodeInvalidInput, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdErr := FromEnsembleError(tt.err)
			require.NotNil(t, stdErr)
			assert.Equal(t, tt.code, stdErr.Code)
			assert.Equal(t, tt.retryable, stdErr.Retryable)
			assert.False(t, stdErr.Timestamp.IsZero())
		})
	}
}

func TestFromEnsembleError_AggregationMetadata(t *testing.T) {
	stdErr := FromEnsembleError(&ensemble.AggregationError{
		Kind:   ensemble.AggregationAllModelsFailed,
		Method: ensemble.MethodHybridJudge,
		Total:  2,
		Failed: 2,
		Outcomes: []ensemble.ModelOutcome{
			{Provider: ensemble.ProviderOpenAI, Status: ensemble.OutcomeFailure, FailureKind: "transport"},
			{Provider: ensemble.ProviderClaude, Status: ensemble.OutcomeFailure, FailureKind: "timeout"},
		},
	})

	assert.Equal(t, "hybrid_judge", stdErr.Metadata["method"])
	assert.Equal(t, 2, stdErr.Metadata["failedModels"])
	assert.Equal(t, map[string]interface{}{"openai": "transport", "claude": "timeout"}, stdErr.Metadata["failures"])

	bpmnErr := ConvertToBPMNError(stdErr)
	assert.Equal(t, "ALL_MODELS_FAILED", bpmnErr.Code)
	assert.Equal(t, 0, bpmnErr.Retries)
	vars := bpmnErr.ToErrorVariables()
	assert.Equal(t, "hybrid_judge", vars["method"])
	assert.Equal(t, "ALL_MODELS_FAILED", vars["errorCode"])
}

func TestConvertToBPMNError_Retries(t *testing.T) {
	tests := []struct {
		err     *StandardError
		retries int
	}{
		{NewDatabaseInsertFailedError(stderrors.New("x")), 3},
		{NewSearchTimeoutError("products"), 2},
		{NewIndexNotFoundError("products"), 0},
		{NewInvalidImageError("bad base64"), 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			bpmnErr := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.retries, bpmnErr.Retries)
			assert.Equal(t, string(tt.err.Code), bpmnErr.Code)
			assert.Equal(t, string(tt.err.Code), bpmnErr.ErrorVariables["originalErrorCode"])
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "MODEL_PROVIDER", GetErrorCategory(ErrCodeProviderTimeout))
	assert.Equal(t, "MODEL_PROVIDER", GetErrorCategory(ErrCodeUnrecognizedColorType))
	assert.Equal(t, "ENSEMBLE", GetErrorCategory(ErrCodeNoConsensus))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeDatabaseInsertFailed))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeIndexNotFound))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeNotificationSendFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidImage))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
	assert.True(t, IsRetryableErrorCode(ErrCodeProviderTransport))
	assert.False(t, IsRetryableErrorCode(ErrCodeNoConsensus))
}
