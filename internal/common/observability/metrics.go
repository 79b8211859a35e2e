package observability

import (
	"context"
	stderrors "errors"
	"log"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"personal-color-workers/internal/common/errors"
)

// Observability owns the OpenTelemetry meter and tracer providers of the
// process.
type Observability struct {
	serviceName    string
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	jobCounter     otelmetric.Int64Counter
	jobDuration    otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{serviceName: serviceName, tracer: otel.Tracer(serviceName)}
	}

	o := newWithReader(serviceName, exporter)
	otel.SetMeterProvider(o.meterProvider)
	return o
}

func newWithReader(serviceName string, reader metric.Reader) *Observability {
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)

	jobDuration, _ := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		serviceName:   serviceName,
		meterProvider: provider,
		meter:         meter,
		tracer:        otel.Tracer(serviceName),
		jobCounter:    jobCounter,
		jobDuration:   jobDuration,
	}
}

// Tracer returns the process tracer. It delegates to the global provider
// until EnableTracing succeeds.
func (o *Observability) Tracer() trace.Tracer {
	return o.tracer
}

// StartSpan starts a span on the process tracer. A nil Observability
// returns a no-op span.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartJobSpan opens the span for one Zeebe job. Work started from the
// returned context, the ensemble request included, nests under it.
func (o *Observability) StartJobSpan(ctx context.Context, job entities.Job) (context.Context, trace.Span) {
	return o.StartSpan(ctx, job.GetType(),
		attribute.Int64("job.key", job.GetKey()),
		attribute.Int64("job.process_instance_key", job.GetProcessInstanceKey()),
		attribute.String("job.bpmn_process_id", job.GetBpmnProcessId()),
		attribute.Int64("job.retries", int64(job.GetRetries())),
	)
}

// FinishJob ends a job span and records the outcome on the job meters.
// The status is "completed", or the error code for a failed job.
func (o *Observability) FinishJob(ctx context.Context, span trace.Span, taskType string, started time.Time, err error) {
	status := "completed"
	if err != nil {
		status = "failed"
		var stdErr *errors.StandardError
		if stderrors.As(err, &stdErr) {
			status = string(stdErr.Code)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
	}
	span.SetAttributes(attribute.String("job.status", status))
	span.End()

	o.RecordJobProcessed(ctx, taskType, status)
	o.RecordJobDuration(ctx, taskType, time.Since(started), status)
}

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string) {
	if o != nil && o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("task_type", taskType),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string) {
	if o != nil && o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("task_type", taskType),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if o.tracerProvider != nil {
		if err := o.tracerProvider.Shutdown(ctx); err != nil {
			log.Printf("Failed to shut down tracer provider: %v", err)
		}
	}
	if o.meterProvider != nil {
		if err := o.meterProvider.Shutdown(ctx); err != nil {
			log.Printf("Failed to shut down meter provider: %v", err)
		}
	}
}
