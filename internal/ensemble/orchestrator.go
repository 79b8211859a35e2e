package ensemble

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"personal-color-workers/internal/common/logger"
)

const tracerName = "personal-color-workers/ensemble"

// Recorder receives per-call and per-request measurements.
type Recorder interface {
	RecordModelCall(provider ProviderID, role ParticipantRole, status OutcomeStatus, failureKind string, latency time.Duration)
	RecordDecision(mode Mode, method AggregationMethod, outcome string, agreement float64)
	RecordJudgeFallback(judge ProviderID)
}

type nopRecorder struct{}

func (nopRecorder) RecordModelCall(ProviderID, ParticipantRole, OutcomeStatus, string, time.Duration) {}
func (nopRecorder) RecordDecision(Mode, AggregationMethod, string, float64)                         {}
func (nopRecorder) RecordJudgeFallback(ProviderID)                                                  {}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// Orchestrator dispatches color analysis requests to the model adapters and
// turns their replies into one EnsembleDecision. It holds no per-request
// state and is safe for concurrent use.
type Orchestrator struct {
	cfg        Config
	adapters   map[ProviderID]ModelAdapter
	normalizer *Normalizer
	aggregator *Aggregator
	judge      *JudgeEngine
	logger     logger.Logger
	tracer     trace.Tracer
	recorder   Recorder
}

// NewOrchestrator validates cfg and builds an orchestrator over adapters.
// Every provider in cfg.ProviderOrder needs an adapter.
func NewOrchestrator(cfg Config, adapters []ModelAdapter, log logger.Logger, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ensemble config: %w", err)
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	byProvider := make(map[ProviderID]ModelAdapter, len(adapters))
	for _, a := range adapters {
		if a == nil {
			return nil, errors.New("nil model adapter")
		}
		p := a.Provider()
		if _, dup := byProvider[p]; dup {
			return nil, fmt.Errorf("duplicate adapter for provider %s", p)
		}
		byProvider[p] = a
	}
	for _, p := range cfg.ProviderOrder {
		if _, ok := byProvider[p]; !ok {
			return nil, fmt.Errorf("no adapter configured for provider %s", p)
		}
	}

	cfg = cfg.clone()
	normalizer := NewNormalizer(cfg.FallbackConfidence)
	o := &Orchestrator{
		cfg:        cfg,
		adapters:   byProvider,
		normalizer: normalizer,
		aggregator: NewAggregator(cfg),
		judge:      NewJudgeEngine(normalizer, cfg.JudgeTimeout),
		logger:     log,
		tracer:     otel.Tracer(tracerName),
		recorder:   nopRecorder{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// AnalyzeParallel queries every configured provider and aggregates the
// survivors with method. An empty method selects the configured default.
// Terminal failures are *AggregationError.
func (o *Orchestrator) AnalyzeParallel(ctx context.Context, image []byte, method AggregationMethod) (*EnsembleDecision, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}
	if method == "" {
		method = o.cfg.DefaultMethod
	}
	if !method.IsParallel() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}

	ctx, run := o.start(ctx, ModeParallel, method)
	defer run.span.End()

	outcomes := o.dispatch(ctx, run, o.cfg.ProviderOrder, RoleVoter, image)
	survivors := successful(outcomes)
	if len(survivors) == 0 {
		return nil, o.fail(run, method, allFailed(method, outcomes))
	}

	run.transition(StateAggregating)
	decision, err := o.aggregator.Aggregate(method, survivors)
	if err != nil {
		var aggErr *AggregationError
		if errors.As(err, &aggErr) {
			aggErr.Total = len(outcomes)
			aggErr.Failed = len(outcomes) - len(survivors)
			aggErr.Outcomes = outcomes
		}
		return nil, o.fail(run, method, err)
	}

	if len(survivors) < len(outcomes) && !decision.ReducedEnsemble {
		decision.ReducedEnsemble = true
		decision.addDiagnostic("ensemble reduced: %d of %d models contributed", len(survivors), len(outcomes))
	}
	return o.finish(run, decision, outcomes), nil
}

// AnalyzeHybrid queries the two providers other than judge and lets judge
// decide between them. An empty judge selects the configured default.
func (o *Orchestrator) AnalyzeHybrid(ctx context.Context, image []byte, judge ProviderID) (*EnsembleDecision, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}
	if judge == "" {
		judge = o.cfg.DefaultJudge
	}
	judgeAdapter, ok := o.adapters[judge]
	if !judge.IsValid() || !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidJudge, judge)
	}
	if !o.cfg.HybridEnabled() {
		return nil, fmt.Errorf("%w: provider order %v has no room for a judge and two candidates", ErrHybridUnavailable, o.cfg.ProviderOrder)
	}
	candidates := o.candidatesFor(judge)
	if len(candidates) < 2 {
		return nil, fmt.Errorf("%w: hybrid mode needs two candidate providers besides %s", ErrInvalidJudge, judge)
	}

	ctx, run := o.start(ctx, ModeHybrid, MethodHybridJudge)
	defer run.span.End()
	run.span.SetAttributes(attribute.String("ensemble.judge", judge.String()))

	outcomes := o.dispatch(ctx, run, candidates, RoleCandidate, image)
	survivors := successful(outcomes)
	if len(survivors) == 0 {
		return nil, o.fail(run, MethodHybridJudge, allFailed(MethodHybridJudge, outcomes))
	}

	run.transition(StateJudging)
	decision, judgeOutcome, err := o.judge.Judge(ctx, judgeAdapter, image, survivors)
	if err != nil {
		return nil, o.fail(run, MethodHybridJudge, err)
	}
	o.observeOutcome(run, judgeOutcome)
	if decision.JudgeFallback {
		o.recorder.RecordJudgeFallback(judge)
		run.log.Warn("Judge failed, falling back to best candidate", map[string]interface{}{
			"judge":       judge,
			"failureKind": judgeOutcome.FailureKind,
		})
	}

	if len(survivors) < len(candidates) {
		decision.ReducedEnsemble = true
		decision.addDiagnostic("ensemble reduced: %d of %d candidates reached the judge", len(survivors), len(candidates))
	}
	return o.finish(run, decision, append(outcomes, judgeOutcome)), nil
}

// candidatesFor returns the first two non-judge providers in provider order.
func (o *Orchestrator) candidatesFor(judge ProviderID) []ProviderID {
	var out []ProviderID
	for _, p := range o.cfg.ProviderOrder {
		if p != judge {
			out = append(out, p)
		}
	}
	if len(out) > 2 {
		out = out[:2]
	}
	return out
}

// dispatch fires one call per provider at once and waits until all of them
// settle. Outcomes are indexed by dispatch position, not completion order.
func (o *Orchestrator) dispatch(ctx context.Context, run *requestRun, providers []ProviderID, role ParticipantRole, image []byte) []ModelOutcome {
	outcomes := make([]ModelOutcome, len(providers))
	var g errgroup.Group
	for i, p := range providers {
		adapter := o.adapters[p]
		g.Go(func() error {
			outcomes[i] = o.analyze(ctx, adapter, role, image)
			return nil
		})
	}
	run.transition(StateCollecting)
	_ = g.Wait()

	for _, outcome := range outcomes {
		o.observeOutcome(run, outcome)
	}
	return outcomes
}

func (o *Orchestrator) analyze(ctx context.Context, adapter ModelAdapter, role ParticipantRole, image []byte) ModelOutcome {
	provider := adapter.Provider()
	started := time.Now()
	raw, err := boundedCall(ctx, provider, o.cfg.CallTimeout, func(callCtx context.Context) (RawColorResult, error) {
		return adapter.Analyze(callCtx, image)
	})
	var result ColorAnalysisResult
	if err == nil {
		result, err = o.normalizer.Normalize(raw, provider)
	}
	return newOutcome(provider, role, result, err, time.Since(started))
}

func (o *Orchestrator) observeOutcome(run *requestRun, outcome ModelOutcome) {
	o.recorder.RecordModelCall(outcome.Provider, outcome.Role, outcome.Status, outcome.FailureKind,
		time.Duration(outcome.LatencyMS)*time.Millisecond)

	fields := map[string]interface{}{
		"provider":  outcome.Provider,
		"role":      outcome.Role,
		"latencyMs": outcome.LatencyMS,
	}
	if !outcome.Succeeded() {
		fields["failureKind"] = outcome.FailureKind
		fields["error"] = outcome.Error
		run.log.Warn("Model call failed", fields)
		return
	}
	fields["colorType"] = outcome.Result.PersonalColorType
	fields["confidence"] = outcome.Result.Confidence
	run.log.Debug("Model call succeeded", fields)
}

// requestRun carries the per-request state machine.
type requestRun struct {
	id      string
	mode    Mode
	state   RequestState
	started time.Time
	log     logger.Logger
	span    trace.Span
}

func (o *Orchestrator) start(ctx context.Context, mode Mode, method AggregationMethod) (context.Context, *requestRun) {
	id := uuid.New().String()
	ctx, span := o.tracer.Start(ctx, "ensemble.Analyze",
		trace.WithAttributes(
			attribute.String("ensemble.request_id", id),
			attribute.String("ensemble.mode", string(mode)),
			attribute.String("ensemble.method", string(method)),
		))
	run := &requestRun{
		id:      id,
		mode:    mode,
		state:   StateDispatched,
		started: time.Now(),
		span:    span,
		log: o.logger.With(map[string]interface{}{
			"requestId": id,
			"mode":      mode,
			"method":    method,
		}),
	}
	run.log.Debug("Request dispatched", nil)
	span.AddEvent(string(StateDispatched))
	return ctx, run
}

func (r *requestRun) transition(next RequestState) {
	if !r.state.CanTransition(next) {
		r.log.Warn("Invalid request state transition", map[string]interface{}{
			"from": r.state,
			"to":   next,
		})
		return
	}
	r.log.Debug("Request state changed", map[string]interface{}{
		"from": r.state,
		"to":   next,
	})
	r.span.AddEvent(string(next))
	r.state = next
}

func (o *Orchestrator) finish(run *requestRun, d *EnsembleDecision, outcomes []ModelOutcome) *EnsembleDecision {
	d.RequestID = run.id
	d.Mode = run.mode
	d.ModelResults = outcomes
	d.CompletedAt = time.Now().UTC()
	run.transition(StateDone)

	o.recorder.RecordDecision(d.Mode, d.AggregationMethod, "success", d.AgreementRatio)
	run.span.SetAttributes(
		attribute.String("ensemble.color_type", string(d.PersonalColorType)),
		attribute.Float64("ensemble.confidence", d.Confidence),
		attribute.Float64("ensemble.agreement_ratio", d.AgreementRatio),
	)
	run.span.SetStatus(codes.Ok, "")
	run.log.Info("Ensemble decision completed", map[string]interface{}{
		"colorType":       d.PersonalColorType,
		"confidence":      d.Confidence,
		"agreementRatio":  d.AgreementRatio,
		"succeeded":       d.SuccessCount(),
		"reducedEnsemble": d.ReducedEnsemble,
		"judgeFallback":   d.JudgeFallback,
		"durationMs":      time.Since(run.started).Milliseconds(),
	})
	return d
}

func (o *Orchestrator) fail(run *requestRun, method AggregationMethod, err error) error {
	run.transition(StateFailed)

	outcome := "error"
	var aggErr *AggregationError
	if errors.As(err, &aggErr) {
		outcome = string(aggErr.Kind)
	}
	o.recorder.RecordDecision(run.mode, method, outcome, 0)
	run.span.RecordError(err)
	run.span.SetStatus(codes.Error, outcome)
	run.log.WithError(err).Warn("Ensemble request failed", map[string]interface{}{
		"outcome":    outcome,
		"durationMs": time.Since(run.started).Milliseconds(),
	})
	return err
}

func allFailed(method AggregationMethod, outcomes []ModelOutcome) *AggregationError {
	return &AggregationError{
		Kind:     AggregationAllModelsFailed,
		Method:   method,
		Total:    len(outcomes),
		Failed:   len(outcomes),
		Detail:   "no model produced a usable result",
		Outcomes: outcomes,
	}
}

func successful(outcomes []ModelOutcome) []ColorAnalysisResult {
	var out []ColorAnalysisResult
	for _, o := range outcomes {
		if o.Succeeded() {
			out = append(out, *o.Result)
		}
	}
	return out
}

func newOutcome(provider ProviderID, role ParticipantRole, result ColorAnalysisResult, err error, latency time.Duration) ModelOutcome {
	outcome := ModelOutcome{
		Provider:  provider,
		Role:      role,
		LatencyMS: latency.Milliseconds(),
	}
	if err != nil {
		outcome.Status = OutcomeFailure
		outcome.FailureKind = failureKind(err)
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Status = OutcomeSuccess
	outcome.Result = &result
	return outcome
}
