package ensemble

import (
	"context"
	"fmt"
	"time"
)

// JudgeEngine runs the hybrid-mode judge over two candidate results.
type JudgeEngine struct {
	normalizer *Normalizer
	timeout    time.Duration
}

// NewJudgeEngine returns a judge engine whose judge replies pass through
// normalizer and whose judge calls are bounded by timeout.
func NewJudgeEngine(normalizer *Normalizer, timeout time.Duration) *JudgeEngine {
	return &JudgeEngine{normalizer: normalizer, timeout: timeout}
}

// Judge asks judge to select or synthesize an answer from candidates, which
// must be the surviving candidates in dispatch order. A failed judge call is
// recovered by returning the most confident candidate. The returned outcome
// describes the judge call itself.
func (j *JudgeEngine) Judge(ctx context.Context, judge ModelAdapter, image []byte, candidates []ColorAnalysisResult) (*EnsembleDecision, ModelOutcome, error) {
	if len(candidates) == 0 {
		return nil, ModelOutcome{}, &AggregationError{
			Kind:   AggregationAllModelsFailed,
			Method: MethodHybridJudge,
			Detail: "no candidate survived for the judge",
		}
	}

	provider := judge.Provider()
	started := time.Now()
	raw, err := boundedCall(ctx, provider, j.timeout, func(callCtx context.Context) (RawColorResult, error) {
		return judge.Judge(callCtx, image, candidates)
	})
	var verdict ColorAnalysisResult
	if err == nil {
		verdict, err = j.normalizer.Normalize(raw, provider)
	}
	outcome := newOutcome(provider, RoleJudge, verdict, err, time.Since(started))

	if err != nil {
		return fallbackDecision(candidates, provider, err), outcome, nil
	}

	d := &EnsembleDecision{
		Mode:              ModeHybrid,
		Undertone:         verdict.Undertone,
		Confidence:        verdict.Confidence,
		Reasoning:         verdict.Reasoning,
		AggregationMethod: MethodHybridJudge,
	}
	d.applyType(verdict.PersonalColorType)
	if matchesCandidate(verdict.PersonalColorType, candidates) {
		d.AgreementRatio = 1.0
	} else {
		d.addDiagnostic("judge %s chose %s, which matches no candidate", provider, verdict.PersonalColorType)
	}
	if d.Reasoning == "" {
		d.Reasoning = fmt.Sprintf("Judge %s decided '%s' from %d candidates.", provider, verdict.PersonalColorType, len(candidates))
	}
	return d, outcome, nil
}

// fallbackDecision returns the highest-confidence candidate; ties keep the
// earlier candidate.
func fallbackDecision(candidates []ColorAnalysisResult, judge ProviderID, cause error) *EnsembleDecision {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}

	agreeing := 0
	for _, c := range candidates {
		if c.PersonalColorType == best.PersonalColorType {
			agreeing++
		}
	}

	d := &EnsembleDecision{
		Mode:              ModeHybrid,
		Undertone:         best.Undertone,
		Confidence:        best.Confidence,
		Reasoning:         best.Reasoning,
		AggregationMethod: MethodHybridJudge,
		AgreementRatio:    float64(agreeing) / float64(len(candidates)),
		JudgeFallback:     true,
	}
	d.applyType(best.PersonalColorType)
	d.addDiagnostic("judge %s failed (%s); returned candidate from %s", judge, failureKind(cause), best.SourceModel)
	return d
}

func matchesCandidate(t ColorType, candidates []ColorAnalysisResult) bool {
	for _, c := range candidates {
		if c.PersonalColorType == t {
			return true
		}
	}
	return false
}
