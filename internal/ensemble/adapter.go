package ensemble

import (
	"context"
	"errors"
	"time"
)

// ModelAdapter is the capability the orchestrator needs from each vision
// provider. Implementations must be safe for concurrent use and should
// return *ProviderError on failure.
type ModelAdapter interface {
	// Provider identifies the adapter.
	Provider() ProviderID

	// Analyze classifies the person in image.
	Analyze(ctx context.Context, image []byte) (RawColorResult, error)

	// Judge reviews the candidates' answers for the same image and returns
	// either one of them or a new synthesized answer.
	Judge(ctx context.Context, image []byte, candidates []ColorAnalysisResult) (RawColorResult, error)
}

// callResult is what one adapter goroutine hands back to the collector.
type callResult struct {
	raw RawColorResult
	err error
}

// boundedCall runs fn under its own timeout and returns no later than the
// deadline, even when fn ignores its context. The result channel is buffered
// so a late fn can still finish and exit.
func boundedCall(ctx context.Context, provider ProviderID, timeout time.Duration, fn func(context.Context) (RawColorResult, error)) (RawColorResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewProviderError(provider, ProviderTimeout, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		raw, err := fn(callCtx)
		done <- callResult{raw: raw, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, asProviderError(callCtx, provider, res.err)
		}
		if res.raw == nil {
			return nil, NewProviderError(provider, ProviderInvalidResponse, errors.New("empty reply"))
		}
		return res.raw, nil
	case <-callCtx.Done():
		return nil, NewProviderError(provider, ProviderTimeout, callCtx.Err())
	}
}

// asProviderError keeps adapter-classified errors and classifies the rest.
func asProviderError(ctx context.Context, provider ProviderID, err error) error {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return err
	}
	var normErr *NormalizationError
	if errors.As(err, &normErr) {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError(provider, ProviderTimeout, err)
	}
	return NewProviderError(provider, ProviderTransport, err)
}
