package ensemble

import (
	"errors"
	"fmt"
)

// ProviderErrorKind classifies adapter failures.
type ProviderErrorKind string

const (
	ProviderTimeout         ProviderErrorKind = "timeout"
	ProviderRateLimit       ProviderErrorKind = "rate_limit"
	ProviderInvalidResponse ProviderErrorKind = "invalid_response"
	ProviderTransport       ProviderErrorKind = "transport"
)

// ProviderError is returned by model adapters. The orchestrator absorbs it
// into a failed ModelOutcome; it never fails a request on its own.
type ProviderError struct {
	Provider ProviderID
	Kind     ProviderErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider %s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError builds a ProviderError.
func NewProviderError(provider ProviderID, kind ProviderErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// NormalizationErrorKind classifies normalization failures.
type NormalizationErrorKind string

const (
	NormalizationUnrecognizedType NormalizationErrorKind = "unrecognized_type"
)

// NormalizationError means a provider reply could not be mapped onto the
// canonical enumeration. Treated as a per-model failure.
type NormalizationError struct {
	Provider ProviderID
	Kind     NormalizationErrorKind
	Value    string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s reply: %s %q", e.Provider, e.Kind, e.Value)
}

// AggregationErrorKind classifies terminal aggregation failures.
type AggregationErrorKind string

const (
	AggregationNoConsensus     AggregationErrorKind = "no_consensus"
	AggregationAllModelsFailed AggregationErrorKind = "all_models_failed"
)

var (
	// ErrNoConsensus matches any AggregationError of kind no_consensus.
	ErrNoConsensus = errors.New("NO_CONSENSUS")
	// ErrAllModelsFailed matches any AggregationError of kind all_models_failed.
	ErrAllModelsFailed = errors.New("ALL_MODELS_FAILED")
)

// AggregationError is a request-level failure. It carries enough detail for
// a caller to decide whether to retry in a different mode.
type AggregationError struct {
	Kind   AggregationErrorKind
	Method AggregationMethod
	// Total is the number of dispatched models, Failed how many of them failed.
	Total  int
	Failed int
	Detail string

	// Outcomes is the per-model trail of the failed request.
	Outcomes []ModelOutcome
}

func (e *AggregationError) Error() string {
	msg := fmt.Sprintf("aggregation %s failed: %s (%d/%d models failed)", e.Method, e.Kind, e.Failed, e.Total)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is lets errors.Is match the kind sentinels.
func (e *AggregationError) Is(target error) bool {
	switch target {
	case ErrNoConsensus:
		return e.Kind == AggregationNoConsensus
	case ErrAllModelsFailed:
		return e.Kind == AggregationAllModelsFailed
	default:
		return false
	}
}

// failureKind returns the string recorded on a failed ModelOutcome.
func failureKind(err error) string {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return string(provErr.Kind)
	}
	var normErr *NormalizationError
	if errors.As(err, &normErr) {
		return string(normErr.Kind)
	}
	return string(ProviderTransport)
}

var (
	// ErrEmptyImage is returned for a request without image bytes.
	ErrEmptyImage = errors.New("image is empty")
	// ErrInvalidMethod is returned for an aggregation method that parallel
	// mode cannot run.
	ErrInvalidMethod = errors.New("invalid aggregation method")
	// ErrInvalidJudge is returned for a judge that is unknown or has no adapter.
	ErrInvalidJudge = errors.New("invalid judge model")
	// ErrHybridUnavailable is returned by AnalyzeHybrid when the provider
	// order is too short to seat a judge and two candidates.
	ErrHybridUnavailable = errors.New("hybrid mode unavailable")
)
