// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"personal-color-workers/internal/ensemble"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidImage ErrorCode = "INVALID_IMAGE"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	ErrCodeProviderTimeout         ErrorCode = "PROVIDER_TIMEOUT"
	ErrCodeProviderRateLimited     ErrorCode = "PROVIDER_RATE_LIMITED"
	ErrCodeProviderInvalidResponse ErrorCode = "PROVIDER_INVALID_RESPONSE"
	ErrCodeProviderTransport       ErrorCode = "PROVIDER_TRANSPORT"
	ErrCodeUnrecognizedColorType   ErrorCode = "UNRECOGNIZED_COLOR_TYPE"

	ErrCodeNoConsensus     ErrorCode = "NO_CONSENSUS"
	ErrCodeAllModelsFailed ErrorCode = "ALL_MODELS_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout     ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeIndexNotFound     ErrorCode = "INDEX_NOT_FOUND"

	ErrCodeTimeout  ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidImageError creates a non-retryable image decoding error.
func NewInvalidImageError(details string) *StandardError {
	return newError(ErrCodeInvalidImage, "Image is missing or cannot be decoded", details, false)
}

// NewInvalidInputError creates a non-retryable job input error.
func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid job input", details, false)
}

// NewProviderError creates a retryable error for a failed model provider call.
func NewProviderError(provErr *ensemble.ProviderError) *StandardError {
	code := ErrCodeProviderTransport
	switch provErr.Kind {
	case ensemble.ProviderTimeout:
		code = ErrCodeProviderTimeout
	case ensemble.ProviderRateLimit:
		code = ErrCodeProviderRateLimited
	case ensemble.ProviderInvalidResponse:
		code = ErrCodeProviderInvalidResponse
	}
	e := newError(code, fmt.Sprintf("Model provider '%s' call failed", provErr.Provider), provErr.Error(), code != ErrCodeProviderInvalidResponse)
	e.Metadata = map[string]interface{}{"provider": string(provErr.Provider)}
	return e
}

// NewUnrecognizedColorTypeError creates a non-retryable normalization error.
func NewUnrecognizedColorTypeError(value string) *StandardError {
	return newError(ErrCodeUnrecognizedColorType, "Unrecognized personal color type", fmt.Sprintf("value: %q", value), false)
}

// NewNoConsensusError creates a non-retryable error for a consensus miss.
func NewNoConsensusError(aggErr *ensemble.AggregationError) *StandardError {
	e := newError(ErrCodeNoConsensus, "Models did not reach consensus", aggErr.Error(), false)
	e.Metadata = aggregationMetadata(aggErr)
	return e
}

// NewAllModelsFailedError creates a non-retryable error for a request where
// no model produced a usable result.
func NewAllModelsFailedError(aggErr *ensemble.AggregationError) *StandardError {
	e := newError(ErrCodeAllModelsFailed, "All models failed", aggErr.Error(), false)
	e.Metadata = aggregationMetadata(aggErr)
	return e
}

func aggregationMetadata(aggErr *ensemble.AggregationError) map[string]interface{} {
	failures := make(map[string]interface{}, len(aggErr.Outcomes))
	for _, o := range aggErr.Outcomes {
		if !o.Succeeded() {
			failures[string(o.Provider)] = o.FailureKind
		}
	}
	return map[string]interface{}{
		"method":       string(aggErr.Method),
		"totalModels":  aggErr.Total,
		"failedModels": aggErr.Failed,
		"failures":     failures,
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err.Error(), true)
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()), true)
}

// NewSearchQueryFailedError creates a retryable search query error.
func NewSearchQueryFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true)
}

// NewSearchTimeoutError creates a retryable search timeout error.
func NewSearchTimeoutError(queryType string) *StandardError {
	return newError(ErrCodeSearchTimeout, "Elasticsearch query timeout", fmt.Sprintf("queryType: %s", queryType), true)
}

// NewIndexNotFoundError creates a non-retryable index not found error.
func NewIndexNotFoundError(indexName string) *StandardError {
	return newError(ErrCodeIndexNotFound, "Elasticsearch index not found", fmt.Sprintf("indexName: %s", indexName), false)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// FromEnsembleError maps an error returned by the ensemble orchestrator onto
// a StandardError. Unknown errors become INTERNAL_ERROR.
func FromEnsembleError(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}

	var aggErr *ensemble.AggregationError
	if stderrors.As(err, &aggErr) {
		if aggErr.Kind == ensemble.AggregationNoConsensus {
			return NewNoConsensusError(aggErr)
		}
		return NewAllModelsFailedError(aggErr)
	}

	var provErr *ensemble.ProviderError
	if stderrors.As(err, &provErr) {
		return NewProviderError(provErr)
	}
	var normErr *ensemble.NormalizationError
	if stderrors.As(err, &normErr) {
		return NewUnrecognizedColorTypeError(normErr.Value)
	}

	switch {
	case stderrors.Is(err, ensemble.ErrEmptyImage):
		return NewInvalidImageError(err.Error())
	case stderrors.Is(err, ensemble.ErrInvalidMethod), stderrors.Is(err, ensemble.ErrInvalidJudge),
		stderrors.Is(err, ensemble.ErrHybridUnavailable):
		return NewInvalidInputError(err.Error())
	case stderrors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError("ensemble", err)
	}
	return NewInternalError(err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes. Codes not
// listed are passed through unchanged.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidImage:             "INVALID_IMAGE",
	ErrCodeInvalidInput:             "INVALID_INPUT",
	ErrCodeProviderTimeout:          "PROVIDER_TIMEOUT",
	ErrCodeProviderRateLimited:      "PROVIDER_RATE_LIMITED",
	ErrCodeProviderInvalidResponse:  "PROVIDER_INVALID_RESPONSE",
	ErrCodeProviderTransport:        "PROVIDER_TRANSPORT",
	ErrCodeUnrecognizedColorType:    "UNRECOGNIZED_COLOR_TYPE",
	ErrCodeNoConsensus:              "NO_CONSENSUS",
	ErrCodeAllModelsFailed:          "ALL_MODELS_FAILED",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeDatabaseInsertFailed:     "DATABASE_INSERT_FAILED",
	ErrCodeNotificationSendFailed:   "NOTIFICATION_SEND_FAILED",
	ErrCodeSearchQueryFailed:        "SEARCH_QUERY_FAILED",
	ErrCodeSearchTimeout:            "SEARCH_TIMEOUT",
	ErrCodeIndexNotFound:            "INDEX_NOT_FOUND",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeProviderTransport:
		return 3

	case ErrCodeSearchTimeout,
		ErrCodeProviderTimeout,
		ErrCodeProviderRateLimited,
		ErrCodeTimeout:
		return 2

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "PROVIDER") || codeStr == string(ErrCodeUnrecognizedColorType):
		return "MODEL_PROVIDER"
	case codeStr == string(ErrCodeNoConsensus) || codeStr == string(ErrCodeAllModelsFailed):
		return "ENSEMBLE"
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
